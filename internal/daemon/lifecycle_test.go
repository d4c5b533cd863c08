package daemon

import (
	"testing"

	"github.com/genomewalker/ghostly/internal/registry"
)

func TestCreate_RejectsInvalidName(t *testing.T) {
	t.Setenv("GHOSTLY_HOME", t.TempDir())
	err := Create("../escape", "")
	if err != registry.ErrInvalidName {
		t.Fatalf("err = %v, want ErrInvalidName", err)
	}
}

func TestRunServerArg_IsStable(t *testing.T) {
	if RunServerArg() != runServerArg {
		t.Fatalf("RunServerArg() = %q, want %q", RunServerArg(), runServerArg)
	}
}
