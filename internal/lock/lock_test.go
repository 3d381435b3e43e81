package lock

import (
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"
)

func TestAcquireAndRelease(t *testing.T) {
	path := filepath.Join(t.TempDir(), "profiles", "main", "LOCK")

	l, err := Acquire(path, "main")
	if err != nil {
		t.Fatalf("Acquire() error = %v", err)
	}
	if l.Path() != path {
		t.Errorf("Path() = %q, want %q", l.Path(), path)
	}

	h, err := Inspect(path)
	if err != nil {
		t.Fatalf("Inspect() error = %v", err)
	}
	if h.PID != os.Getpid() || h.Profile != "main" {
		t.Errorf("holder = %+v, want own pid and profile main", h)
	}
	if time.Since(h.Since) > time.Minute {
		t.Errorf("holder since = %v, want recent", h.Since)
	}

	if err := l.Release(); err != nil {
		t.Errorf("Release() error = %v", err)
	}
	if _, err := os.Stat(path); !os.IsNotExist(err) {
		t.Errorf("lock file should be removed, stat err = %v", err)
	}
}

func TestDoubleAcquireFails(t *testing.T) {
	path := filepath.Join(t.TempDir(), "LOCK")

	l1, err := Acquire(path, "shop")
	if err != nil {
		t.Fatalf("first Acquire() error = %v", err)
	}
	defer func() { _ = l1.Release() }()

	_, err = Acquire(path, "shop")
	if err == nil {
		t.Fatal("second Acquire() should fail")
	}

	var lockErr *LockHeldError
	if !errors.As(err, &lockErr) {
		t.Fatalf("expected LockHeldError, got %T: %v", err, err)
	}
	if lockErr.Holder.PID != os.Getpid() {
		t.Errorf("holder pid = %d, want %d", lockErr.Holder.PID, os.Getpid())
	}
	if !strings.Contains(lockErr.Error(), `"shop"`) {
		t.Errorf("error %q should name the profile", lockErr.Error())
	}
}

func TestInspectMissing(t *testing.T) {
	h, err := Inspect(filepath.Join(t.TempDir(), "LOCK"))
	if err != nil || h != (Holder{}) {
		t.Errorf("Inspect(missing) = %+v, %v", h, err)
	}
}

func TestParseHolder(t *testing.T) {
	h := parseHolder("pid=42\nprofile=main\ntime=2026-01-02T03:04:05Z\njunk\n")
	if h.PID != 42 || h.Profile != "main" || h.Since.Year() != 2026 {
		t.Errorf("parseHolder = %+v", h)
	}
	if h := parseHolder("pid=abc"); h.PID != 0 {
		t.Errorf("bad pid should parse as 0, got %d", h.PID)
	}
}

func TestReleaseNil(t *testing.T) {
	var l *Lock
	if err := l.Release(); err != nil {
		t.Errorf("nil Release() error = %v", err)
	}
}

func TestReleaseIdempotent(t *testing.T) {
	l, err := Acquire(filepath.Join(t.TempDir(), "LOCK"), "main")
	if err != nil {
		t.Fatalf("Acquire() error = %v", err)
	}

	if err := l.Release(); err != nil {
		t.Errorf("first Release() error = %v", err)
	}
	if err := l.Release(); err != nil {
		t.Errorf("second Release() error = %v", err)
	}
}
