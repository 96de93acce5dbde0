// Package rfcomm байтовые потоки к AG: RFCOMM сокет ядра Linux и последовательный порт.
package rfcomm

import (
	"strconv"
	"strings"

	"github.com/pkg/errors"
)

// parseAddress разбирает "XX:XX:XX:XX:XX:XX" в порядке байт bdaddr_t (младший первым).
func parseAddress(s string) ([6]byte, error) {
	var addr [6]byte
	parts := strings.Split(s, ":")
	if len(parts) != 6 {
		return addr, errors.Errorf("rfcomm: некорректный адрес %q", s)
	}
	for i, part := range parts {
		if len(part) != 2 {
			return addr, errors.Errorf("rfcomm: некорректный адрес %q", s)
		}
		b, err := strconv.ParseUint(part, 16, 8)
		if err != nil {
			return addr, errors.Wrapf(err, "rfcomm: некорректный адрес %q", s)
		}
		addr[5-i] = byte(b)
	}
	return addr, nil
}
