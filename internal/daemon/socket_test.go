package daemon

import (
	"path/filepath"
	"testing"
	"time"

	"golang.org/x/sys/unix"
)

func TestListen_CreatesAndAccepts(t *testing.T) {
	path := filepath.Join(t.TempDir(), "test.sock")
	fd, err := listen(path)
	if err != nil {
		t.Fatalf("listen: %v", err)
	}
	defer unix.Close(fd)

	cfd, err := unix.Socket(unix.AF_UNIX, unix.SOCK_STREAM, 0)
	if err != nil {
		t.Fatalf("socket: %v", err)
	}
	defer unix.Close(cfd)
	if err := unix.Connect(cfd, &unix.SockaddrUnix{Name: path}); err != nil {
		t.Fatalf("connect: %v", err)
	}
}

func TestListen_RejectsOverlongPath(t *testing.T) {
	longDir := filepath.Join(t.TempDir(), string(make([]byte, 200)))
	_, err := listen(filepath.Join(longDir, "x.sock"))
	if err == nil {
		t.Fatal("expected error for overlong socket path")
	}
}

func TestSetRecvTimeout(t *testing.T) {
	fds, err := unix.Socketpair(unix.AF_UNIX, unix.SOCK_STREAM, 0)
	if err != nil {
		t.Fatalf("socketpair: %v", err)
	}
	defer unix.Close(fds[0])
	defer unix.Close(fds[1])

	if err := setRecvTimeout(fds[0], 50*time.Millisecond); err != nil {
		t.Fatalf("setRecvTimeout: %v", err)
	}
	buf := make([]byte, 16)
	start := time.Now()
	_, err = unix.Read(fds[0], buf)
	if time.Since(start) > time.Second {
		t.Fatalf("read did not honor timeout, took %v", time.Since(start))
	}
	if err == nil {
		t.Fatal("expected timeout error on empty socket")
	}
}
