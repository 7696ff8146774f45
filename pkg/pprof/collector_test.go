package pprof

import (
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseProfileTypes(t *testing.T) {
	got, err := ParseProfileTypes("")
	require.NoError(t, err)
	assert.Equal(t, DefaultProfileTypes(), got)

	got, err = ParseProfileTypes(" Heap,goroutine,heap ")
	require.NoError(t, err)
	assert.Equal(t, []ProfileType{ProfileHeap, ProfileGoroutine}, got)

	_, err = ParseProfileTypes("cpu,trace")
	assert.EqualError(t, err, `unknown profile type: "trace"`)
}

func TestConfig_Validate(t *testing.T) {
	assert.Error(t, (&Config{}).Validate())
	assert.Error(t, (&Config{OutputDir: "x", CPURate: -1}).Validate())
	assert.NoError(t, (&Config{OutputDir: "x"}).Validate())

	_, err := NewCollector(nil)
	assert.Error(t, err)
}

func TestCollector_SnapshotProfiles(t *testing.T) {
	dir := filepath.Join(t.TempDir(), "pprof")
	c, err := NewCollector(&Config{OutputDir: dir, Profiles: []ProfileType{ProfileHeap, ProfileGoroutine, ProfileMutex}})
	require.NoError(t, err)

	require.NoError(t, c.Start())
	assert.Error(t, c.Start(), "second start")
	require.NoError(t, c.Stop())
	require.NoError(t, c.Stop(), "stop is idempotent")

	assert.Equal(t, []string{
		filepath.Join(dir, "heap.pprof"),
		filepath.Join(dir, "goroutine.pprof"),
		filepath.Join(dir, "mutex.pprof"),
	}, c.Files())
	for _, f := range c.Files() {
		assert.FileExists(t, f)
	}
	assert.Equal(t, dir, c.OutputDir())
}

func TestCollector_CPU(t *testing.T) {
	dir := t.TempDir()
	c, err := NewCollector(&Config{OutputDir: dir})
	require.NoError(t, err)

	require.NoError(t, c.Start())
	require.NoError(t, c.Stop())
	assert.FileExists(t, filepath.Join(dir, "cpu.pprof"))
	assert.FileExists(t, filepath.Join(dir, "heap.pprof"))
}
