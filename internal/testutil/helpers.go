package testutil

import (
	"os"
	"path/filepath"
	"testing"
)

// TestHelper provides common test utilities
type TestHelper struct {
	t testing.TB
}

// NewTestHelper creates a new test helper
func NewTestHelper(t testing.TB) *TestHelper {
	return &TestHelper{t: t}
}

// TempDir creates a temporary directory removed when the test ends
func (h *TestHelper) TempDir() string {
	return h.t.TempDir()
}

// WriteFile writes content to a file in the given directory
func (h *TestHelper) WriteFile(dir, filename, content string) string {
	h.t.Helper()
	path := filepath.Join(dir, filename)

	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		h.t.Fatalf("Failed to create directories: %v", err)
	}
	if err := os.WriteFile(path, []byte(content), 0o600); err != nil {
		h.t.Fatalf("Failed to write file %s: %v", path, err)
	}
	return path
}

// ReadFile returns the content of path or fails the test
func (h *TestHelper) ReadFile(path string) string {
	h.t.Helper()
	data, err := os.ReadFile(path) // #nosec G304 - test path
	if err != nil {
		h.t.Fatalf("Failed to read file %s: %v", path, err)
	}
	return string(data)
}
