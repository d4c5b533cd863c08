// Package cli implements the text and JSON rendering for the
// list/info subcommands, plus the kill and open command logic that
// sits above the daemon and client packages.
package cli

import (
	"encoding/json"
	"fmt"
	"io"
	"sort"

	"github.com/genomewalker/ghostly/internal/registry"
)

// PrintList renders the live session registry to w, as a table or as
// a single JSON object, matching the field set and key order a caller
// scripting against this tool would expect.
func PrintList(w io.Writer, asJSON bool) error {
	sessions, err := registry.Enumerate()
	if err != nil {
		return err
	}
	sort.Slice(sessions, func(i, j int) bool { return sessions[i].Name < sessions[j].Name })

	if asJSON {
		type entry struct {
			Name    string `json:"name"`
			Clients int    `json:"clients"`
			Created int64  `json:"created"`
			Command string `json:"command"`
			Pid     int    `json:"pid"`
		}
		out := struct {
			Sessions []entry `json:"sessions"`
		}{Sessions: make([]entry, 0, len(sessions))}
		for _, s := range sessions {
			out.Sessions = append(out.Sessions, entry{
				Name: s.Name, Clients: s.Clients, Created: s.Created,
				Command: s.Command, Pid: s.Pid,
			})
		}
		enc := json.NewEncoder(w)
		return enc.Encode(out)
	}

	if len(sessions) == 0 {
		fmt.Fprintln(w, "No active sessions.")
		return nil
	}
	fmt.Fprintln(w, "Active sessions:")
	for _, s := range sessions {
		fmt.Fprintf(w, "  %-20s  pid=%-6d  clients=%d  cmd=%s\n", s.Name, s.Pid, s.Clients, s.Command)
	}
	return nil
}
