package daemon

import (
	"fmt"
	"os"
	"os/exec"
	"syscall"
	"time"

	"github.com/genomewalker/ghostly/internal/registry"
)

// runServerArg is the hidden subcommand the re-exec'd daemon process
// recognizes; it never appears in help output or shell completion.
const runServerArg = "__run-server"

// RunServerArg returns the hidden subcommand name so main's dispatch
// table can recognize a re-exec'd daemon invocation without the two
// packages sharing a magic string literal.
func RunServerArg() string { return runServerArg }

const (
	defaultCols = 80
	defaultRows = 24

	socketPollInterval = 50 * time.Millisecond
	socketPollAttempts = 20
)

// Create validates name, then daemonizes: it re-execs the current
// binary with a hidden subcommand, detached into its own session with
// stdio pointed at /dev/null, and waits briefly for the new daemon's
// socket to appear before returning. The re-exec'd process becomes the
// actual session daemon via RunServer; this call never runs the event
// loop itself.
func Create(name, cmd string) error {
	if err := registry.ResolveForCreate(name); err != nil {
		return err
	}

	self, err := os.Executable()
	if err != nil {
		return fmt.Errorf("daemon: locate executable: %w", err)
	}

	child := exec.Command(self, runServerArg, name, cmd)
	child.Env = os.Environ()
	child.Stdin = nil
	child.Stdout = nil
	child.Stderr = nil
	child.SysProcAttr = &syscall.SysProcAttr{Setsid: true}

	if err := child.Start(); err != nil {
		return fmt.Errorf("daemon: start: %w", err)
	}
	// The re-exec'd process detaches fully; we must not wait on it.
	go child.Process.Release()

	spath := registry.SocketPath(name)
	for i := 0; i < socketPollAttempts; i++ {
		time.Sleep(socketPollInterval)
		if _, err := os.Stat(spath); err == nil {
			return nil
		}
	}
	return nil
}

// RunServer is the entry point for the re-exec'd daemon process: it
// owns the PTY and the listening socket for the rest of this process's
// life and never returns until the session ends. Its return value is
// the exit status the process should report via os.Exit.
func RunServer(name, cmd string) int {
	master, childPid, err := startChild(cmd, defaultCols, defaultRows)
	if err != nil {
		fmt.Fprintf(os.Stderr, "ghostly: %v\n", err)
		return 1
	}

	fd, err := listen(registry.SocketPath(name))
	if err != nil {
		fmt.Fprintf(os.Stderr, "ghostly: %v\n", err)
		syscall.Kill(childPid, syscall.SIGTERM)
		master.Close()
		return 1
	}

	command := cmd
	if command == "" {
		command = "bash"
	}
	if err := registry.WritePid(name, os.Getpid()); err != nil {
		fmt.Fprintf(os.Stderr, "ghostly: %v\n", err)
	}
	if err := registry.WriteInfo(name, os.Getpid(), 0, time.Now().Unix(), command); err != nil {
		fmt.Fprintf(os.Stderr, "ghostly: %v\n", err)
	}

	srv := newServer(name, command, master, childPid, fd)
	return srv.Run()
}
