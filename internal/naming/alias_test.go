package naming_test

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/dantte-lp/pimesh/internal/naming"
)

func TestEnsureAliasCreatesAndRepoints(t *testing.T) {
	t.Parallel()

	dir := t.TempDir()
	if err := os.WriteFile(filepath.Join(dir, "s1.sock"), nil, 0o600); err != nil {
		t.Fatalf("seed s1.sock: %v", err)
	}
	if err := os.WriteFile(filepath.Join(dir, "s2.sock"), nil, 0o600); err != nil {
		t.Fatalf("seed s2.sock: %v", err)
	}

	if err := naming.EnsureAlias(dir, "amber-fox", "s1"); err != nil {
		t.Fatalf("EnsureAlias: %v", err)
	}

	got, err := naming.ResolveAlias(dir, "amber-fox")
	if err != nil {
		t.Fatalf("ResolveAlias: %v", err)
	}
	if got != "s1" {
		t.Errorf("ResolveAlias = %q, want s1", got)
	}

	// Idempotent re-assertion.
	if err := naming.EnsureAlias(dir, "amber-fox", "s1"); err != nil {
		t.Fatalf("EnsureAlias (idempotent): %v", err)
	}

	// Repointing to a different session replaces the link.
	if err := naming.EnsureAlias(dir, "amber-fox", "s2"); err != nil {
		t.Fatalf("EnsureAlias (repoint): %v", err)
	}
	got, err = naming.ResolveAlias(dir, "amber-fox")
	if err != nil {
		t.Fatalf("ResolveAlias after repoint: %v", err)
	}
	if got != "s2" {
		t.Errorf("ResolveAlias after repoint = %q, want s2", got)
	}
}

func TestRemoveAliasMissingIsNotError(t *testing.T) {
	t.Parallel()

	dir := t.TempDir()
	if err := naming.RemoveAlias(dir, "never-existed"); err != nil {
		t.Errorf("RemoveAlias on missing link: %v, want nil", err)
	}
}

func TestAliasesFor(t *testing.T) {
	t.Parallel()

	dir := t.TempDir()
	if err := os.WriteFile(filepath.Join(dir, "s1.sock"), nil, 0o600); err != nil {
		t.Fatalf("seed s1.sock: %v", err)
	}

	if err := naming.EnsureAlias(dir, "amber-fox", "s1"); err != nil {
		t.Fatalf("EnsureAlias amber-fox: %v", err)
	}
	if err := naming.EnsureAlias(dir, "second-name", "s1"); err != nil {
		t.Fatalf("EnsureAlias second-name: %v", err)
	}

	aliases, err := naming.AliasesFor(dir, "s1")
	if err != nil {
		t.Fatalf("AliasesFor: %v", err)
	}
	if len(aliases) != 2 {
		t.Fatalf("AliasesFor returned %d aliases, want 2: %v", len(aliases), aliases)
	}
}

func TestPersistAndLoadName(t *testing.T) {
	t.Parallel()

	dir := t.TempDir()

	if _, ok, err := naming.LoadPersistedName(dir, "s1"); err != nil || ok {
		t.Fatalf("LoadPersistedName before write: ok=%v err=%v, want ok=false err=nil", ok, err)
	}

	if err := naming.PersistName(dir, "s1", "amber-fox"); err != nil {
		t.Fatalf("PersistName: %v", err)
	}

	name, ok, err := naming.LoadPersistedName(dir, "s1")
	if err != nil {
		t.Fatalf("LoadPersistedName: %v", err)
	}
	if !ok || name != "amber-fox" {
		t.Errorf("LoadPersistedName = (%q, %v), want (amber-fox, true)", name, ok)
	}
}
