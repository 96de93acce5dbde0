package rfcomm

import (
	"context"
	"io"

	"github.com/pkg/errors"
	"github.com/tarm/serial"

	"github.com/arzzra/handsfree/pkg/handsfree"
)

// SerialDialer использует последовательный порт, уже привязанный к AG
// (например /dev/rfcomm0 после rfcomm bind).
type SerialDialer struct {
	Path string
	Baud int
}

func (d SerialDialer) Dial(ctx context.Context, dev handsfree.Device) (io.ReadWriteCloser, error) {
	if d.Path == "" {
		return nil, errors.New("rfcomm: не задан путь порта")
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	baud := d.Baud
	if baud == 0 {
		baud = 115200
	}
	port, err := serial.OpenPort(&serial.Config{Name: d.Path, Baud: baud})
	if err != nil {
		return nil, errors.Wrapf(err, "rfcomm: открытие %s", d.Path)
	}
	return port, nil
}
