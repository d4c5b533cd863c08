package protocol

import (
	"errors"
	"io"
	"os"
	"syscall"
	"time"

	"golang.org/x/sys/unix"
)

// outputWait bounds how long WriteFull will wait for a non-blocking
// descriptor to become writable again after EAGAIN before giving up.
const outputWait = 1 * time.Second

// fdWriter is satisfied by *os.File (the non-blocking PTY master). The
// raw-fd client socket wrappers do not satisfy it, and are written to with
// a simple retry loop instead — their blocking/timeout semantics already
// bound how long a write can take.
type fdWriter interface {
	io.Writer
	Fd() uintptr
}

// WriteFull writes all of buf to w, retrying on short writes and, for
// non-blocking file descriptors (the PTY master), on EAGAIN — polling for
// writability with a bounded wait rather than busy-spinning. This is the
// single choke point every frame write in the daemon and client goes
// through; no caller should write directly to a socket or PTY fd.
func WriteFull(w io.Writer, buf []byte) error {
	fw, nonBlocking := w.(fdWriter)
	for len(buf) > 0 {
		n, err := w.Write(buf)
		if n > 0 {
			buf = buf[n:]
		}
		if err == nil {
			continue
		}
		if errors.Is(err, syscall.EINTR) {
			continue
		}
		if nonBlocking && errors.Is(err, syscall.EAGAIN) {
			if !waitWritable(fw.Fd(), outputWait) {
				return err
			}
			continue
		}
		return err
	}
	return nil
}

// waitWritable polls fd for POLLOUT readiness, returning false on timeout
// or error.
func waitWritable(fd uintptr, timeout time.Duration) bool {
	fds := []unix.PollFd{{Fd: int32(fd), Events: unix.POLLOUT}}
	n, err := unix.Poll(fds, int(timeout/time.Millisecond))
	if err != nil || n <= 0 {
		return false
	}
	return fds[0].Revents&unix.POLLOUT != 0
}

var _ fdWriter = (*os.File)(nil)
