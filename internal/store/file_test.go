package store

import (
	"bufio"
	"context"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/rs/zerolog"
)

func openTestStore(t *testing.T, dir string) Store {
	t.Helper()
	s, err := Open(Config{Driver: "file", Path: filepath.Join(dir, "audit")}, zerolog.Nop())
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	t.Cleanup(func() { s.Close() })
	return s
}

func TestAuditAppendsJSONLines(t *testing.T) {
	t.Parallel()
	dir := t.TempDir()
	s := openTestStore(t, dir)
	ctx := context.Background()

	for i := 0; i < 3; i++ {
		e := AuditEntry{At: time.Now(), ActorID: int64(i), Command: "/status", Outcome: "ok"}
		if err := s.AppendAudit(ctx, e); err != nil {
			t.Fatalf("AppendAudit: %v", err)
		}
	}

	f, err := os.Open(filepath.Join(dir, "audit.audit.jsonl"))
	if err != nil {
		t.Fatalf("open audit log: %v", err)
	}
	defer f.Close()
	lines := 0
	sc := bufio.NewScanner(f)
	for sc.Scan() {
		var e AuditEntry
		if err := json.Unmarshal(sc.Bytes(), &e); err != nil {
			t.Fatalf("line %d not valid JSON: %v", lines, err)
		}
		lines++
	}
	if lines != 3 {
		t.Fatalf("audit lines = %d, want 3", lines)
	}
}

func TestErrorTailIsBounded(t *testing.T) {
	t.Parallel()
	dir := t.TempDir()
	s := openTestStore(t, dir)
	ctx := context.Background()

	for i := 0; i < ErrorTailSize+10; i++ {
		e := ErrorEntry{At: time.Now(), Context: "/bc", Message: fmt.Sprintf("boom %d", i)}
		if err := s.AppendError(ctx, e); err != nil {
			t.Fatalf("AppendError: %v", err)
		}
	}

	got, err := s.RecentErrors(ctx, 0)
	if err != nil {
		t.Fatalf("RecentErrors: %v", err)
	}
	if len(got) != ErrorTailSize {
		t.Fatalf("tail = %d entries, want %d", len(got), ErrorTailSize)
	}
	// The oldest entries rolled off.
	if got[0].Message != "boom 10" {
		t.Fatalf("oldest retained = %q, want \"boom 10\"", got[0].Message)
	}
}

func TestErrorTailSurvivesReopen(t *testing.T) {
	t.Parallel()
	dir := t.TempDir()
	s := openTestStore(t, dir)
	ctx := context.Background()

	if err := s.AppendError(ctx, ErrorEntry{Message: "first"}); err != nil {
		t.Fatalf("AppendError: %v", err)
	}
	s.Close()

	s2 := openTestStore(t, dir)
	got, err := s2.RecentErrors(ctx, 10)
	if err != nil {
		t.Fatalf("RecentErrors: %v", err)
	}
	if len(got) != 1 || got[0].Message != "first" {
		t.Fatalf("reloaded tail = %+v", got)
	}
}

func TestDisabledDriver(t *testing.T) {
	t.Parallel()
	s, err := Open(Config{Driver: "none"}, zerolog.Nop())
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	if s != nil {
		t.Fatal("disabled driver returned a store")
	}
}

func TestUnknownDriver(t *testing.T) {
	t.Parallel()
	if _, err := Open(Config{Driver: "etcd"}, zerolog.Nop()); err == nil {
		t.Fatal("unknown driver accepted")
	}
}
