package daemon

import (
	"fmt"
	"time"

	"golang.org/x/sys/unix"

	"github.com/genomewalker/ghostly/internal/registry"
)

// listen creates, binds and listens on a UNIX stream socket at path,
// mode 0600, removing any stale socket file first. Raw unix syscalls
// are used (rather than net.Listen) so the resulting fd can sit
// alongside the PTY master and client fds in a single unix.Poll() set
// driven by one goroutine; net.Listener hides its fd behind the Go
// runtime's own poller, which would rule that out.
func listen(path string) (fd int, err error) {
	if !registry.FitsSocketPath(path) {
		return -1, fmt.Errorf("daemon: %w: %s", registry.ErrPathTooLong, path)
	}

	fd, err = unix.Socket(unix.AF_UNIX, unix.SOCK_STREAM, 0)
	if err != nil {
		return -1, fmt.Errorf("daemon: socket: %w", err)
	}

	unix.Unlink(path)
	addr := &unix.SockaddrUnix{Name: path}
	if err := unix.Bind(fd, addr); err != nil {
		unix.Close(fd)
		return -1, fmt.Errorf("daemon: bind %s: %w", path, err)
	}
	if err := unix.Listen(fd, 4); err != nil {
		unix.Close(fd)
		return -1, fmt.Errorf("daemon: listen %s: %w", path, err)
	}
	if err := unix.Chmod(path, 0o600); err != nil {
		unix.Close(fd)
		return -1, fmt.Errorf("daemon: chmod %s: %w", path, err)
	}
	return fd, nil
}

// setRecvTimeout sets SO_RCVTIMEO on fd. A zero duration disables the
// timeout (blocking read).
func setRecvTimeout(fd int, d time.Duration) error {
	tv := unix.NsecToTimeval(d.Nanoseconds())
	return unix.SetsockoptTimeval(fd, unix.SOL_SOCKET, unix.SO_RCVTIMEO, &tv)
}
