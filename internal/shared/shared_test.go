package shared

import (
	"bytes"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"testing"
)

func TestMaskToken(t *testing.T) {
	tc := []struct {
		name  string
		token string
		want  string
	}{
		{name: "empty", token: "", want: ""},
		{name: "short", token: "abc", want: "****"},
		{name: "long", token: "0123456789abcdef", want: "********cdef"},
	}

	for _, tt := range tc {
		t.Run(tt.name, func(t *testing.T) {
			if got := MaskToken(tt.token); got != tt.want {
				t.Errorf("MaskToken(%q) = %q, want %q", tt.token, got, tt.want)
			}
		})
	}
}

func TestWriteFileAtomic(t *testing.T) {
	t.Run("creates and replaces", func(t *testing.T) {
		path := filepath.Join(t.TempDir(), "out.csv")

		if err := WriteFileAtomic(path, []byte("first"), 0600); err != nil {
			t.Fatalf("first write failed: %v", err)
		}
		if err := WriteFileAtomic(path, []byte("second"), 0600); err != nil {
			t.Fatalf("second write failed: %v", err)
		}

		data, err := os.ReadFile(path)
		if err != nil {
			t.Fatalf("failed to read file: %v", err)
		}
		if string(data) != "second" {
			t.Errorf("expected replaced content, got %q", data)
		}

		entries, _ := os.ReadDir(filepath.Dir(path))
		if len(entries) != 1 {
			t.Errorf("expected temp files to be cleaned up, found %d entries", len(entries))
		}
	})

	t.Run("missing directory", func(t *testing.T) {
		path := filepath.Join(t.TempDir(), "missing", "out.csv")
		if err := WriteFileAtomic(path, []byte("x"), 0600); err == nil {
			t.Error("expected error for missing directory")
		}
	})
}

func TestNewFileLogger(t *testing.T) {
	t.Run("mirrors entries to file", func(t *testing.T) {
		var console bytes.Buffer
		path := filepath.Join(t.TempDir(), "logs", "run.log")

		logger, closer, err := NewFileLogger(&console, path)
		if err != nil {
			t.Fatalf("NewFileLogger() error = %v", err)
		}
		logger.Info("hello", "account", "a@example.com")
		if err := closer.Close(); err != nil {
			t.Fatalf("close failed: %v", err)
		}

		data, err := os.ReadFile(path)
		if err != nil {
			t.Fatalf("failed to read log file: %v", err)
		}
		if !strings.Contains(string(data), "a@example.com") {
			t.Errorf("log file missing entry: %q", data)
		}
		if !strings.Contains(console.String(), "hello") {
			t.Errorf("console missing entry: %q", console.String())
		}
	})

	t.Run("empty path", func(t *testing.T) {
		var console bytes.Buffer
		logger, closer, err := NewFileLogger(&console, "")
		if err != nil {
			t.Fatalf("NewFileLogger() error = %v", err)
		}
		defer closer.Close()
		logger.Info("only console")
		if !strings.Contains(console.String(), "only console") {
			t.Errorf("console missing entry: %q", console.String())
		}
	})
}

func TestTypedErrors(t *testing.T) {
	cause := fmt.Errorf("boom")

	tests := []struct {
		name     string
		err      error
		sentinel error
		contains string
	}{
		{name: "auth", err: &AuthError{Identifier: "a@b.c", Cause: cause}, sentinel: ErrAuthFailed, contains: "a@b.c"},
		{name: "fetch", err: &FetchError{URL: "https://x/manifest.json", Cause: cause}, sentinel: ErrFetchFailed, contains: "https://x/manifest.json"},
		{name: "addon op", err: &AddonOperationError{Op: "install", Addon: "org.x", Cause: cause}, sentinel: ErrAddonOperation, contains: "install org.x"},
		{name: "persistence", err: &PersistenceError{Path: "logins.csv", Cause: cause}, sentinel: ErrPersistence, contains: "logins.csv"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if !errors.Is(tt.err, tt.sentinel) {
				t.Errorf("expected %v to match sentinel %v", tt.err, tt.sentinel)
			}
			if !errors.Is(tt.err, cause) {
				t.Errorf("expected %v to wrap cause", tt.err)
			}
			if !strings.Contains(tt.err.Error(), tt.contains) {
				t.Errorf("expected %q in %q", tt.contains, tt.err.Error())
			}
		})
	}
}
