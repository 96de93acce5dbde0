//go:build linux

package rfcomm

import (
	"context"
	"io"
	"os"

	"github.com/pkg/errors"
	"golang.org/x/sys/unix"

	"github.com/arzzra/handsfree/pkg/handsfree"
)

// SocketDialer открывает RFCOMM сокет напрямую, без BlueZ профиля.
type SocketDialer struct {
	// Channel RFCOMM канал HFP AG на стороне телефона
	Channel uint8
}

func (d SocketDialer) Dial(ctx context.Context, dev handsfree.Device) (io.ReadWriteCloser, error) {
	addr, err := parseAddress(dev.Address)
	if err != nil {
		return nil, err
	}
	fd, err := unix.Socket(unix.AF_BLUETOOTH, unix.SOCK_STREAM|unix.SOCK_CLOEXEC, unix.BTPROTO_RFCOMM)
	if err != nil {
		return nil, errors.Wrap(err, "rfcomm: socket")
	}

	done := make(chan error, 1)
	go func() {
		done <- unix.Connect(fd, &unix.SockaddrRFCOMM{Addr: addr, Channel: d.Channel})
	}()

	select {
	case err = <-done:
	case <-ctx.Done():
		// connect блокирующий, прерываем его через shutdown
		unix.Shutdown(fd, unix.SHUT_RDWR)
		<-done
		err = ctx.Err()
	}
	if err != nil {
		unix.Close(fd)
		return nil, errors.Wrapf(err, "rfcomm: connect %s канал %d", dev.Address, d.Channel)
	}
	return FileConn(fd, "rfcomm:"+dev.Address)
}

// FileConn оборачивает дескриптор RFCOMM сокета, например полученный от BlueZ.
// Дескриптор переводится в неблокирующий режим, чтобы Close прерывал чтение.
func FileConn(fd int, name string) (io.ReadWriteCloser, error) {
	if err := unix.SetNonblock(fd, true); err != nil {
		unix.Close(fd)
		return nil, errors.Wrap(err, "rfcomm: nonblock")
	}
	return os.NewFile(uintptr(fd), name), nil
}
