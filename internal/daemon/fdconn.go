package daemon

import (
	"io"
	"time"

	"golang.org/x/sys/unix"
)

// fdConn adapts a raw file descriptor to io.Reader/io.Writer so it can
// be passed straight to protocol.Encode/Decode. Client sockets are kept
// as blocking descriptors with SO_RCVTIMEO/SO_SNDTIMEO bounding how long
// any single read or write may take — the asymmetric non-blocking
// treatment in protocol.WriteFull is reserved for the PTY master.
type fdConn struct{ fd int }

func (c fdConn) Read(p []byte) (int, error) {
	for {
		n, err := unix.Read(c.fd, p)
		if err == unix.EINTR {
			continue
		}
		if err != nil {
			return 0, err
		}
		if n == 0 {
			return 0, io.EOF
		}
		return n, nil
	}
}

func (c fdConn) Write(p []byte) (int, error) {
	for {
		n, err := unix.Write(c.fd, p)
		if err == unix.EINTR {
			continue
		}
		return n, err
	}
}

func setRecvDeadline(fd int, d time.Duration) error { return setRecvTimeout(fd, d) }

func setSendTimeout(fd int, d time.Duration) error {
	tv := unix.NsecToTimeval(d.Nanoseconds())
	return unix.SetsockoptTimeval(fd, unix.SOL_SOCKET, unix.SO_SNDTIMEO, &tv)
}
