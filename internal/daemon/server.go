package daemon

import (
	"log"
	"os"
	"sync/atomic"
	"syscall"
	"time"

	"golang.org/x/sys/unix"

	"github.com/genomewalker/ghostly/internal/protocol"
	"github.com/genomewalker/ghostly/internal/registry"
)

const (
	maxClients        = 16
	readChunk         = 8192
	helloTimeout      = 2 * time.Second
	clientRecvTimeout = 30 * time.Second
	clientSendTimeout = 1 * time.Second
	pollTimeoutMillis = 1000
)

// Server owns one daemon's PTY, listening socket and attached clients. A
// process runs exactly one Server for its lifetime; Run blocks until the
// session is torn down and returns the exit code to report to attached
// clients and to the process's own exit status.
type Server struct {
	name    string
	command string

	ptyMaster *os.File
	ptyFd     int
	listenFd  int
	clients   []int

	created time.Time
	childPid int

	childExitCode atomic.Int32
	childReaped   atomic.Bool
	running       atomic.Bool
}

// newServer wires up a freshly-started child and listening socket into a
// Server ready for Run.
func newServer(name, command string, ptyMaster *os.File, childPid, listenFd int) *Server {
	return &Server{
		name:      name,
		command:   command,
		ptyMaster: ptyMaster,
		ptyFd:     int(ptyMaster.Fd()),
		listenFd:  listenFd,
		created:   time.Now(),
		childPid:  childPid,
	}
}

// Run drives the single-threaded poll loop until the child exits, a
// SIGTERM arrives, or the PTY master reports EOF/error, then tears
// everything down and returns the child's exit code.
func (s *Server) Run() int {
	s.running.Store(true)
	stop := installSignals(s)
	defer stop()

	s.persistInfo()

	for s.running.Load() {
		fds := make([]unix.PollFd, 2+len(s.clients))
		fds[0] = unix.PollFd{Fd: int32(s.listenFd), Events: unix.POLLIN}
		fds[1] = unix.PollFd{Fd: int32(s.ptyFd), Events: unix.POLLIN}
		for i, fd := range s.clients {
			fds[2+i] = unix.PollFd{Fd: int32(fd), Events: unix.POLLIN}
		}

		n, err := unix.Poll(fds, pollTimeoutMillis)
		if err != nil {
			if err == unix.EINTR {
				continue
			}
			log.Printf("ghostly: poll: %v", err)
			break
		}
		if n == 0 {
			continue
		}

		if fds[0].Revents&unix.POLLIN != 0 {
			s.acceptClient()
		}

		if fds[1].Revents&unix.POLLIN != 0 {
			s.drainPty()
		}
		if fds[1].Revents&(unix.POLLHUP|unix.POLLERR) != 0 {
			s.running.Store(false)
		}

		// fds only covers the clients polled this iteration; acceptClient
		// and broadcast may have changed s.clients since, so each polled
		// fd is looked up by value.
		for k := len(fds) - 1; k >= 2; k-- {
			ev := fds[k].Revents
			i := -1
			for j, fd := range s.clients {
				if fd == int(fds[k].Fd) {
					i = j
					break
				}
			}
			if i < 0 {
				continue
			}
			if ev&unix.POLLIN != 0 {
				s.handleClient(i)
			} else if ev&(unix.POLLHUP|unix.POLLERR) != 0 {
				s.removeClient(i)
			}
		}
	}

	return s.shutdown()
}

// acceptClient accepts one pending connection, runs the HELLO handshake
// under a short timeout, and either admits it as a client or closes it.
// A client that fails the handshake, or arrives once maxClients are
// already attached, never gets added to the poll set. A recover() guard
// logs and continues rather than taking the whole daemon down on an
// unexpected panic in this path.
func (s *Server) acceptClient() {
	defer func() {
		if r := recover(); r != nil {
			log.Printf("ghostly: panic accepting client: %v", r)
		}
	}()

	cfd, _, err := unix.Accept(s.listenFd)
	if err != nil {
		return
	}
	if len(s.clients) >= maxClients {
		unix.Close(cfd)
		return
	}

	if err := setRecvTimeout(cfd, helloTimeout); err != nil {
		unix.Close(cfd)
		return
	}
	conn := fdConn{fd: cfd}
	msg, err := protocol.Decode(conn)
	if err != nil || msg.Type != protocol.Hello {
		unix.Close(cfd)
		return
	}
	cols, rows, err := protocol.DecodeWinsize(msg.Payload)
	if err != nil {
		unix.Close(cfd)
		return
	}
	if err := setWinsize(s.ptyMaster, cols, rows); err != nil {
		log.Printf("ghostly: set initial winsize: %v", err)
	}

	if err := setRecvTimeout(cfd, clientRecvTimeout); err != nil {
		unix.Close(cfd)
		return
	}
	if err := setSendTimeout(cfd, clientSendTimeout); err != nil {
		unix.Close(cfd)
		return
	}
	s.clients = append(s.clients, cfd)
	s.persistInfo()
}

// drainPty reads one chunk from the PTY master and fans it out to every
// attached client. A short read is normal (the master is non-blocking);
// EOF or a non-retryable error ends the session.
func (s *Server) drainPty() {
	buf := make([]byte, readChunk)
	n, err := unix.Read(s.ptyFd, buf)
	if n > 0 {
		s.broadcast(protocol.Data, buf[:n])
	}
	if n == 0 || (err != nil && err != unix.EAGAIN && err != unix.EINTR) {
		s.running.Store(false)
	}
}

// handleClient decodes one frame from client index i and acts on it.
// A decode failure or a DETACH frame removes the client.
func (s *Server) handleClient(i int) {
	conn := fdConn{fd: s.clients[i]}
	msg, err := protocol.Decode(conn)
	if err != nil {
		s.removeClient(i)
		return
	}
	switch msg.Type {
	case protocol.Data:
		if len(msg.Payload) > 0 {
			if err := protocol.WriteFull(s.ptyMaster, msg.Payload); err != nil {
				log.Printf("ghostly: write pty: %v", err)
			}
		}
	case protocol.Winch:
		cols, rows, err := protocol.DecodeWinsize(msg.Payload)
		if err == nil {
			if err := setWinsize(s.ptyMaster, cols, rows); err != nil {
				log.Printf("ghostly: resize pty: %v", err)
			}
		}
	case protocol.Detach:
		s.removeClient(i)
	}
}

// broadcast sends type/payload to every client in reverse index order,
// removing any client whose write fails.
func (s *Server) broadcast(t protocol.Type, payload []byte) {
	for i := len(s.clients) - 1; i >= 0; i-- {
		conn := fdConn{fd: s.clients[i]}
		if err := protocol.Encode(conn, t, payload); err != nil {
			s.removeClient(i)
		}
	}
}

func (s *Server) removeClient(i int) {
	unix.Close(s.clients[i])
	last := len(s.clients) - 1
	s.clients[i] = s.clients[last]
	s.clients = s.clients[:last]
	s.persistInfo()
}

func (s *Server) persistInfo() {
	if err := registry.WriteInfo(s.name, os.Getpid(), len(s.clients), s.created.Unix(), s.command); err != nil {
		log.Printf("ghostly: write info: %v", err)
	}
}

// shutdown escalates signals against a still-living child (SIGHUP, then
// SIGTERM, then SIGKILL, each separated by a short grace period),
// broadcasts the final exit code to every client, closes every
// descriptor, and removes the session's registry files.
func (s *Server) shutdown() int {
	if s.childPid > 0 && !s.childReaped.Load() {
		escalateShutdown(s.childPid, &s.childReaped, &s.childExitCode)
	}

	ec := byte(s.childExitCode.Load())
	s.broadcast(protocol.Exit, []byte{ec})

	for _, fd := range s.clients {
		unix.Close(fd)
	}
	unix.Close(s.listenFd)
	s.ptyMaster.Close()
	registry.Cleanup(s.name)

	return int(s.childExitCode.Load())
}

func escalateShutdown(pid int, reaped *atomic.Bool, exitCode *atomic.Int32) {
	signal := func(sig syscall.Signal) bool {
		syscall.Kill(pid, sig)
		time.Sleep(50 * time.Millisecond)
		var status syscall.WaitStatus
		wp, err := syscall.Wait4(pid, &status, syscall.WNOHANG, nil)
		if err == nil && wp > 0 {
			if reaped.CompareAndSwap(false, true) {
				code := 0
				switch {
				case status.Exited():
					code = status.ExitStatus()
				case status.Signaled():
					code = 128 + int(status.Signal())
				}
				exitCode.Store(int32(code))
			}
			return true
		}
		return false
	}

	if signal(syscall.SIGHUP) {
		return
	}
	time.Sleep(50 * time.Millisecond)
	if signal(syscall.SIGTERM) {
		return
	}
	syscall.Kill(pid, syscall.SIGKILL)
	var status syscall.WaitStatus
	syscall.Wait4(pid, &status, 0, nil)
	if reaped.CompareAndSwap(false, true) {
		code := 0
		switch {
		case status.Exited():
			code = status.ExitStatus()
		case status.Signaled():
			code = 128 + int(status.Signal())
		}
		exitCode.Store(int32(code))
	}
}
