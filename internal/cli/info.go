package cli

import (
	"encoding/json"
	"fmt"
	"io"

	"github.com/genomewalker/ghostly/internal/sysinfo"
)

// PrintInfo renders a host telemetry snapshot to w, as KEY:VALUE lines
// or as a single JSON object.
func PrintInfo(w io.Writer, asJSON bool) error {
	snap := sysinfo.Collect()

	if asJSON {
		enc := json.NewEncoder(w)
		return enc.Encode(snap)
	}

	fmt.Fprintf(w, "USER:%s\n", snap.User)
	fmt.Fprintf(w, "CONDA:%s\n", snap.Conda)
	fmt.Fprintf(w, "LOAD:%s\n", snap.Load)
	fmt.Fprintf(w, "DISK:%s\n", snap.Disk)
	fmt.Fprintf(w, "JOBS:%s\n", snap.SlurmJob)
	fmt.Fprintf(w, "MUX:%s\n", snap.Backend)
	fmt.Fprintf(w, "SESSIONS:%d\n", snap.Sessions)
	return nil
}
