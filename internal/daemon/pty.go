package daemon

import (
	"fmt"
	"os"
	"os/exec"
	"strings"

	"github.com/creack/pty"
	"golang.org/x/sys/unix"
)

// childShell returns the shell to exec and the arguments that make it
// run as a login shell, optionally executing cmd. $SHELL governs the
// choice, falling back to /bin/bash.
func childShell(cmd string) (shell string, args []string) {
	shell = os.Getenv("SHELL")
	if shell == "" {
		shell = "/bin/bash"
	}
	if cmd == "" {
		return shell, []string{"-l"}
	}
	return shell, []string{"-l", "-c", cmd}
}

// JoinCmd joins trailing arguments after "--" with single spaces into
// one command string before handing it to "$SHELL -l -c <cmd>", the
// same join the original daemon performs in its own command collector.
func JoinCmd(args []string) string {
	return strings.Join(args, " ")
}

// startChild opens a PTY pair, execs the configured shell attached to
// it, and returns the non-blocking master side plus the child's pid.
// If the shell cannot be exec'd, starting it fails and startChild
// returns that error; no child is left running, and nothing writes to
// the PTY or exits with status 127.
func startChild(cmd string, cols, rows uint16) (master *os.File, pid int, err error) {
	shell, args := childShell(cmd)
	c := exec.Command(shell, args...)
	c.Env = os.Environ()

	ptmx, err := pty.StartWithSize(c, &pty.Winsize{Cols: cols, Rows: rows})
	if err != nil {
		return nil, 0, fmt.Errorf("daemon: start shell %s: %w", shell, err)
	}
	if err := unix.SetNonblock(int(ptmx.Fd()), true); err != nil {
		ptmx.Close()
		return nil, 0, fmt.Errorf("daemon: set pty master nonblocking: %w", err)
	}
	return ptmx, c.Process.Pid, nil
}

// setWinsize applies a window size to the PTY via the platform's
// set-window-size control operation (TIOCSWINSZ), used both for the
// client's initial HELLO and for in-band WINCH messages.
func setWinsize(master *os.File, cols, rows uint16) error {
	return pty.Setsize(master, &pty.Winsize{Cols: cols, Rows: rows})
}
