// Package client implements the attach side of a session: connecting
// to a running daemon's socket, negotiating the initial window size,
// and relaying bytes between the user's terminal and the PTY until a
// detach key, an EXIT message, or a socket hang-up ends the session.
package client

import (
	"fmt"
	"os"
	"os/signal"

	"golang.org/x/sys/unix"
	"golang.org/x/term"

	"github.com/genomewalker/ghostly/internal/protocol"
	"github.com/genomewalker/ghostly/internal/registry"
)

// detachKey is Ctrl+\ (0x1C); scanning stdin for it is how a client
// leaves a session without killing it. It is never forwarded to the PTY.
const detachKey = 0x1c

const (
	readChunk   = 8192
	pollTimeout = 500
)

// Attach connects to name's daemon and relays the controlling
// terminal's stdin/stdout until detach, daemon exit, or hang-up. It
// returns the process exit code to report: the daemon's reported
// child exit code, or 1 if the session could not be reached at all.
func Attach(name string) int {
	if !registry.ValidName(name) {
		fmt.Fprintf(os.Stderr, "ghostly: invalid session name %q\n", name)
		return 1
	}
	spath := registry.SocketPath(name)
	if !registry.FitsSocketPath(spath) {
		fmt.Fprintf(os.Stderr, "ghostly: socket path too long for session %q\n", name)
		return 1
	}

	fd, err := dial(spath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "ghostly: cannot attach to session %q: not running\n", name)
		return 1
	}
	defer unix.Close(fd)

	cols, rows := termSize()
	conn := rawConn{fd: fd}
	if err := protocol.Encode(conn, protocol.Hello, protocol.EncodeWinsize(cols, rows)); err != nil {
		fmt.Fprintf(os.Stderr, "ghostly: failed to send hello to session %q\n", name)
		return 1
	}

	stdinFd := int(os.Stdin.Fd())
	var oldState *term.State
	if term.IsTerminal(stdinFd) {
		oldState, err = term.MakeRaw(stdinFd)
		if err != nil {
			fmt.Fprintf(os.Stderr, "ghostly: cannot set raw mode: %v\n", err)
			return 1
		}
		defer term.Restore(stdinFd, oldState)
	}

	winch := make(chan os.Signal, 1)
	signal.Notify(winch, unix.SIGWINCH)
	defer signal.Stop(winch)

	exitCode, detached := attachLoop(fd, winch)
	if oldState != nil {
		term.Restore(stdinFd, oldState)
	}
	if detached {
		fmt.Fprintf(os.Stderr, "\r\n[detached from '%s']\r\n", name)
	}
	return exitCode
}

// attachLoop drives the relay once raw mode and HELLO are done. It
// returns the exit code to report and whether the session ended via
// an explicit detach rather than the daemon itself ending.
func attachLoop(fd int, winch chan os.Signal) (exitCode int, detached bool) {
	conn := rawConn{fd: fd}
	stdinFd := int(os.Stdin.Fd())

	for {
		select {
		case <-winch:
			cols, rows := termSize()
			protocol.Encode(conn, protocol.Winch, protocol.EncodeWinsize(cols, rows))
		default:
		}

		fds := []unix.PollFd{
			{Fd: int32(stdinFd), Events: unix.POLLIN},
			{Fd: int32(fd), Events: unix.POLLIN},
		}
		n, err := unix.Poll(fds, pollTimeout)
		if err != nil {
			if err == unix.EINTR {
				continue
			}
			return exitCode, detached
		}
		if n == 0 {
			continue
		}

		if fds[0].Revents&unix.POLLIN != 0 {
			buf := make([]byte, readChunk)
			k, err := unix.Read(stdinFd, buf)
			if k > 0 {
				if i := indexByte(buf[:k], detachKey); i >= 0 {
					protocol.Encode(conn, protocol.Detach, nil)
					return exitCode, true
				}
				if err := protocol.Encode(conn, protocol.Data, buf[:k]); err != nil {
					return exitCode, detached
				}
			}
			if k == 0 || (err != nil && err != unix.EAGAIN && err != unix.EINTR) {
				return exitCode, detached
			}
		}

		if fds[1].Revents&unix.POLLIN != 0 {
			msg, err := protocol.Decode(conn)
			if err != nil {
				return exitCode, detached
			}
			switch msg.Type {
			case protocol.Data:
				if len(msg.Payload) > 0 {
					protocol.WriteFull(os.Stdout, msg.Payload)
				}
			case protocol.Exit:
				if len(msg.Payload) >= 1 {
					exitCode = int(msg.Payload[0])
				}
				return exitCode, detached
			}
		}
		if fds[1].Revents&(unix.POLLHUP|unix.POLLERR) != 0 {
			return exitCode, detached
		}
	}
}

func indexByte(buf []byte, b byte) int {
	for i, c := range buf {
		if c == b {
			return i
		}
	}
	return -1
}

// termSize reads the controlling terminal's current size, falling
// back to 80x24 when stdin is not a terminal.
func termSize() (cols, rows uint16) {
	stdinFd := int(os.Stdin.Fd())
	if !term.IsTerminal(stdinFd) {
		return 80, 24
	}
	w, h, err := term.GetSize(stdinFd)
	if err != nil {
		return 80, 24
	}
	return uint16(w), uint16(h)
}
