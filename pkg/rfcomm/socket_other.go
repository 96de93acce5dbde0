//go:build !linux

package rfcomm

import (
	"context"
	"io"

	"github.com/pkg/errors"

	"github.com/arzzra/handsfree/pkg/handsfree"
)

var errUnsupported = errors.New("rfcomm: сокеты Bluetooth доступны только в Linux")

type SocketDialer struct {
	Channel uint8
}

func (d SocketDialer) Dial(ctx context.Context, dev handsfree.Device) (io.ReadWriteCloser, error) {
	if _, err := parseAddress(dev.Address); err != nil {
		return nil, err
	}
	return nil, errUnsupported
}

func FileConn(fd int, name string) (io.ReadWriteCloser, error) {
	return nil, errUnsupported
}
