package cli

import (
	"fmt"
	"os"
	"time"

	"github.com/genomewalker/ghostly/internal/client"
	"github.com/genomewalker/ghostly/internal/daemon"
	"github.com/genomewalker/ghostly/internal/registry"
)

// createAttachDelay gives a freshly daemonized session a moment to
// finish opening its listening socket before the first attach dials it.
const createAttachDelay = 100 * time.Millisecond

// Open attaches to name if it is already live, or creates it and then
// attaches, matching the create-or-attach semantics of the open
// command. It returns the process exit code to report.
func Open(name, cmd string) int {
	if !registry.ValidName(name) {
		fmt.Fprintf(os.Stderr, "ghostly: invalid session name %q\n", name)
		return 1
	}

	if registry.Live(name) {
		return client.Attach(name)
	}

	if err := daemon.Create(name, cmd); err != nil {
		return 1
	}
	time.Sleep(createAttachDelay)
	return client.Attach(name)
}
