// Package testutil provides fixtures and assertions shared by tests.
package testutil

import (
	"os"
	"path/filepath"

	"github.com/stretchr/testify/require"
)

// WriteDump stores the dump built by b as dir/name and returns the path.
func WriteDump(t require.TestingT, dir, name string, b *HprofBuilder) string {
	if h, ok := t.(tHelper); ok {
		h.Helper()
	}
	path := filepath.Join(dir, name)
	require.NoError(t, os.MkdirAll(filepath.Dir(path), 0755))
	require.NoError(t, os.WriteFile(path, b.Bytes(), 0644))
	return path
}

// WriteConfig stores a YAML config as dir/reachscan.yaml and returns the path.
func WriteConfig(t require.TestingT, dir, content string) string {
	if h, ok := t.(tHelper); ok {
		h.Helper()
	}
	path := filepath.Join(dir, "reachscan.yaml")
	require.NoError(t, os.WriteFile(path, []byte(content), 0644))
	return path
}
