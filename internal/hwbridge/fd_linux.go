package hwbridge

import "golang.org/x/sys/unix"

// closeFd releases a dma-buf file descriptor once its EGLImage (which
// takes its own reference) has been destroyed.
func closeFd(fd int) {
	_ = unix.Close(fd)
}
