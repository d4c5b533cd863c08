package cli

import (
	"fmt"
	"io"
	"syscall"
	"time"

	"github.com/genomewalker/ghostly/internal/registry"
)

const (
	killPollInterval = 100 * time.Millisecond
	killPollAttempts = 10
)

// Kill terminates name's daemon: SIGTERM, then a short poll for the
// process to die, escalating to SIGKILL if it hasn't. Registry files
// are always cleaned up, even when the session was already dead.
func Kill(w io.Writer, name string) error {
	if !registry.ValidName(name) {
		return fmt.Errorf("ghostly: invalid session name %q", name)
	}

	pid := registry.ReadPid(name)
	if pid <= 0 || !registry.ProcessAlive(pid) {
		registry.Cleanup(name)
		return fmt.Errorf("session %q not found or already dead", name)
	}

	syscall.Kill(pid, syscall.SIGTERM)
	for i := 0; i < killPollAttempts; i++ {
		time.Sleep(killPollInterval)
		if !registry.ProcessAlive(pid) {
			registry.Cleanup(name)
			fmt.Fprintf(w, "Session %q killed.\n", name)
			return nil
		}
	}

	syscall.Kill(pid, syscall.SIGKILL)
	time.Sleep(killPollInterval)
	registry.Cleanup(name)
	fmt.Fprintf(w, "Session %q killed (SIGKILL).\n", name)
	return nil
}
