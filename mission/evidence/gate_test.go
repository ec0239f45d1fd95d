package evidence

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCheck_FileExists(t *testing.T) {
	dir := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(dir, "go.mod"), []byte("module x\n"), 0o644))

	c := New(nil)
	passed, report := c.Check(context.Background(), dir, []string{"file_exists:go.mod"})
	assert.True(t, passed)
	assert.Contains(t, report, "PASS")
}

func TestCheck_FileExists_Missing(t *testing.T) {
	dir := t.TempDir()
	c := New(nil)
	passed, report := c.Check(context.Background(), dir, []string{"file_exists:missing.go"})
	assert.False(t, passed)
	assert.Contains(t, report, "FAIL")
}

func TestCheck_NoFakeFiles(t *testing.T) {
	dir := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(dir, "main.go"), []byte("// TODO: implement\npackage main\n"), 0o644))

	c := New(nil)
	passed, _ := c.Check(context.Background(), dir, []string{"no_fake_files"})
	assert.False(t, passed)
}

func TestCheck_FileCountMin(t *testing.T) {
	dir := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(dir, "a.go"), []byte("package a"), 0o644))
	require.NoError(t, os.WriteFile(filepath.Join(dir, "b.go"), []byte("package a"), 0o644))

	c := New(nil)
	passed, _ := c.Check(context.Background(), dir, []string{"file_count_min:2:*.go"})
	assert.True(t, passed)

	passed, _ = c.Check(context.Background(), dir, []string{"file_count_min:3:*.go"})
	assert.False(t, passed)
}
