package mirror

import (
	"os"
	"strings"
	"testing"
)

func TestNewPostgresMirrorRequiresDSN(t *testing.T) {
	if _, err := NewPostgresMirror("   "); err == nil {
		t.Fatalf("expected error for blank dsn")
	}
}

// Exercises a real database; set CHATSYNC_TEST_POSTGRES_DSN to run.
func TestPostgresMirrorIntegration(t *testing.T) {
	dsn := strings.TrimSpace(os.Getenv("CHATSYNC_TEST_POSTGRES_DSN"))
	if dsn == "" {
		t.Skip("CHATSYNC_TEST_POSTGRES_DSN not set")
	}
	m, err := NewPostgresMirror(dsn)
	if err != nil {
		t.Fatalf("failed to build postgres mirror: %v", err)
	}
	defer func() { _ = m.Close() }()

	if err := m.Save("workspace", fragment{ID: 1, Name: "Acme"}); err != nil {
		t.Fatalf("save failed: %v", err)
	}
	var out fragment
	if !m.Load("workspace", &out) || out.Name != "Acme" {
		t.Fatalf("unexpected fragment %+v", out)
	}

	if err := m.Save("workspace", fragment{ID: 1, Name: "Acme Renamed"}); err != nil {
		t.Fatalf("upsert failed: %v", err)
	}
	if !m.Load("workspace", &out) || out.Name != "Acme Renamed" {
		t.Fatalf("expected upserted fragment, got %+v", out)
	}

	if err := m.Clear("workspace"); err != nil {
		t.Fatalf("clear failed: %v", err)
	}
	if m.Load("workspace", &out) {
		t.Fatalf("expected cleared fragment to be absent")
	}
}
