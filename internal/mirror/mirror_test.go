package mirror

import (
	"os"
	"path/filepath"
	"testing"
)

type fragment struct {
	ID   int64  `json:"id"`
	Name string `json:"name"`
}

func TestDirectoryMirrorRoundTrip(t *testing.T) {
	m := NewDirectoryMirror(t.TempDir())
	if err := m.Save("workspace", fragment{ID: 1, Name: "Acme"}); err != nil {
		t.Fatalf("save failed: %v", err)
	}
	var out fragment
	if !m.Load("workspace", &out) {
		t.Fatalf("expected saved fragment to load")
	}
	if out.ID != 1 || out.Name != "Acme" {
		t.Fatalf("unexpected fragment %+v", out)
	}
}

func TestDirectoryMirrorAbsentKeyLoadsFalse(t *testing.T) {
	m := NewDirectoryMirror(t.TempDir())
	var out fragment
	if m.Load("never-written", &out) {
		t.Fatalf("expected absent key to load false")
	}
}

func TestDirectoryMirrorCorruptFragmentReadsAsAbsent(t *testing.T) {
	dir := t.TempDir()
	m := NewDirectoryMirror(dir)
	if err := os.WriteFile(filepath.Join(dir, "workspace.json"), []byte("{not json"), 0o644); err != nil {
		t.Fatalf("failed to plant corrupt fragment: %v", err)
	}
	var out fragment
	if m.Load("workspace", &out) {
		t.Fatalf("expected corrupt fragment to read as absent")
	}
}

func TestDirectoryMirrorClear(t *testing.T) {
	m := NewDirectoryMirror(t.TempDir())
	if err := m.Save("a", fragment{ID: 1}); err != nil {
		t.Fatalf("save failed: %v", err)
	}
	if err := m.Save("b", fragment{ID: 2}); err != nil {
		t.Fatalf("save failed: %v", err)
	}
	if err := m.Clear("a", "b", "never-written"); err != nil {
		t.Fatalf("clear failed: %v", err)
	}
	var out fragment
	if m.Load("a", &out) || m.Load("b", &out) {
		t.Fatalf("expected cleared fragments to be absent")
	}
}

func TestMemoryMirrorRoundTrip(t *testing.T) {
	m := NewMemoryMirror()
	if err := m.Save("workspace", fragment{ID: 3, Name: "Globex"}); err != nil {
		t.Fatalf("save failed: %v", err)
	}
	var out fragment
	if !m.Load("workspace", &out) || out.Name != "Globex" {
		t.Fatalf("unexpected fragment %+v", out)
	}
	if err := m.Clear("workspace"); err != nil {
		t.Fatalf("clear failed: %v", err)
	}
	if m.Load("workspace", &out) {
		t.Fatalf("expected cleared fragment to be absent")
	}
}

func TestBuildMirrorFromDSN(t *testing.T) {
	if m, err := BuildMirrorFromDSN(""); err != nil {
		t.Fatalf("empty dsn: %v", err)
	} else if _, ok := m.(*MemoryMirror); !ok {
		t.Fatalf("expected memory mirror for empty dsn, got %T", m)
	}
	if m, err := BuildMirrorFromDSN("mem://"); err != nil {
		t.Fatalf("mem dsn: %v", err)
	} else if _, ok := m.(*MemoryMirror); !ok {
		t.Fatalf("expected memory mirror, got %T", m)
	}
	dir := t.TempDir()
	if m, err := BuildMirrorFromDSN(dir); err != nil {
		t.Fatalf("bare path dsn: %v", err)
	} else if dm, ok := m.(*DirectoryMirror); !ok || dm.Dir != filepath.Clean(dir) {
		t.Fatalf("expected directory mirror at %s, got %#v", dir, m)
	}
	if m, err := BuildMirrorFromDSN("file://" + dir); err != nil {
		t.Fatalf("file dsn: %v", err)
	} else if _, ok := m.(*DirectoryMirror); !ok {
		t.Fatalf("expected directory mirror, got %T", m)
	}
	if _, err := BuildMirrorFromDSN("sqlite:///tmp/x.db"); err == nil {
		t.Fatalf("expected not-implemented error for sqlite")
	}
	if _, err := BuildMirrorFromDSN("carrierpigeon://coop"); err == nil {
		t.Fatalf("expected unsupported scheme error")
	}
}
