// Package sysinfo gathers the small amount of host and cluster
// telemetry the info command reports: the invoking user, active conda
// environment, one-minute load average, home-directory disk usage, and
// SLURM queue depth, alongside the daemon's own live-session count.
package sysinfo

import (
	"bufio"
	"fmt"
	"os"
	"os/exec"
	"strconv"
	"strings"

	"golang.org/x/sys/unix"

	"github.com/genomewalker/ghostly/internal/registry"
)

// Backend is the fixed identifier reported alongside host telemetry.
const Backend = "ghostly"

// Snapshot is one point-in-time reading of host and cluster state.
type Snapshot struct {
	User     string `json:"user"`
	Conda    string `json:"conda"`
	Load     string `json:"load"`
	Disk     string `json:"disk"`
	SlurmJob string `json:"slurm_jobs"`
	Sessions int    `json:"sessions"`
	Backend  string `json:"backend"`
}

// Collect builds a Snapshot from the current environment. No failed
// reading fails the whole snapshot: load, disk and SLURM degrade to
// "N/A", an unset USER to "unknown", an unset conda env to "none", and
// a failed registry enumeration counts as 0 sessions.
func Collect() Snapshot {
	user := os.Getenv("USER")
	if user == "" {
		user = "unknown"
	}
	conda := os.Getenv("CONDA_DEFAULT_ENV")
	if conda == "" {
		conda = "none"
	}

	sessions, err := registry.Enumerate()
	count := 0
	if err == nil {
		count = len(sessions)
	}

	return Snapshot{
		User:     user,
		Conda:    conda,
		Load:     loadAverage(),
		Disk:     diskUsage(os.Getenv("HOME")),
		SlurmJob: slurmJobCount(user),
		Sessions: count,
		Backend:  Backend,
	}
}

// loadAverage reads the one-minute load average from /proc/loadavg.
// Returns "N/A" when unavailable, e.g. on a non-Linux kernel.
func loadAverage() string {
	f, err := os.Open("/proc/loadavg")
	if err != nil {
		return "N/A"
	}
	defer f.Close()

	scanner := bufio.NewScanner(f)
	if !scanner.Scan() {
		return "N/A"
	}
	fields := strings.Fields(scanner.Text())
	if len(fields) == 0 {
		return "N/A"
	}
	if _, err := strconv.ParseFloat(fields[0], 64); err != nil {
		return "N/A"
	}
	return fields[0]
}

// diskUsage reports the percentage of dir's filesystem currently in
// use, via statvfs. Returns "N/A" when dir is empty or unreadable.
func diskUsage(dir string) string {
	if dir == "" {
		return "N/A"
	}
	var st unix.Statfs_t
	if err := unix.Statfs(dir, &st); err != nil {
		return "N/A"
	}
	if st.Blocks == 0 {
		return "N/A"
	}
	used := st.Blocks - st.Bavail
	pct := int(100 * used / st.Blocks)
	return fmt.Sprintf("%d%%", pct)
}

// slurmUserSafe applies the session-name character whitelist: SLURM
// usernames are passed as a literal argv element to exec.Command (not
// through a shell), so this check is belt-and-braces rather than an
// injection guard, but it still rejects surprising input before it
// reaches squeue.
func slurmUserSafe(user string) bool {
	if user == "" {
		return false
	}
	for i := 0; i < len(user); i++ {
		c := user[i]
		switch {
		case c >= 'a' && c <= 'z':
		case c >= 'A' && c <= 'Z':
		case c >= '0' && c <= '9':
		case c == '_' || c == '-' || c == '.':
		default:
			return false
		}
	}
	return true
}

// slurmJobCount reports how many queued/running SLURM jobs belong to
// user, by invoking squeue directly as argv (never through a shell).
// Returns "N/A" if squeue is not on PATH, the user string looks
// unsafe, or the query fails.
func slurmJobCount(user string) string {
	if !slurmUserSafe(user) {
		return "N/A"
	}
	squeue, err := exec.LookPath("squeue")
	if err != nil {
		return "N/A"
	}
	out, err := exec.Command(squeue, "-u", user, "-h").Output()
	if err != nil {
		return "N/A"
	}
	lines := 0
	for _, line := range strings.Split(string(out), "\n") {
		if strings.TrimSpace(line) != "" {
			lines++
		}
	}
	return strconv.Itoa(lines)
}
