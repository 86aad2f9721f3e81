package cmdqueue

import (
	"errors"

	"golang.org/x/sys/unix"
)

const syscallNonblock = unix.O_NONBLOCK

func isWouldBlock(err error) bool {
	return errors.Is(err, unix.EAGAIN) || errors.Is(err, unix.EWOULDBLOCK)
}
