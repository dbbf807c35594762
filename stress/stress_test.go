package stress

import (
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/mindfs/mindfs/disk"
	"github.com/mindfs/mindfs/fs"
)

func mountFS(t *testing.T) *fs.Filesystem {
	t.Helper()
	path := filepath.Join(t.TempDir(), "img.bin")
	d := disk.NewDevice()
	require.NoError(t, d.Create(path, 8))
	require.NoError(t, d.Open(path))
	require.NoError(t, d.Format())
	require.NoError(t, d.Close())
	fsys := fs.New()
	require.NoError(t, fsys.Mount(path))
	t.Cleanup(func() { fsys.Unmount() })
	return fsys
}

func TestParseArgs(t *testing.T) {
	cfg, err := ParseArgs([]string{
		"--files", "10", "--threads", "3", "--duration", "5",
		"--write-size", "512", "--monitor", "2",
		"--workspace", "/w", "--buckets", "2", "--cleanup",
	})
	require.NoError(t, err)
	assert.Equal(t, 10, cfg.FileCount)
	assert.Equal(t, 3, cfg.ThreadCount)
	assert.Equal(t, 5*time.Second, cfg.Duration)
	assert.Equal(t, 512, cfg.WriteSize)
	assert.Equal(t, 2*time.Second, cfg.MonitorInterval)
	assert.Equal(t, "/w", cfg.WorkspacePath)
	assert.Equal(t, 2, cfg.BucketCount)
	assert.True(t, cfg.CleanupAfter)
}

func TestParseArgsDefaults(t *testing.T) {
	cfg, err := ParseArgs(nil)
	require.NoError(t, err)
	assert.Equal(t, DefaultConfig(), cfg)
}

func TestParseArgsRejections(t *testing.T) {
	_, err := ParseArgs([]string{"--files"})
	assert.Error(t, err, "missing value")
	_, err = ParseArgs([]string{"--files", "zero"})
	assert.Error(t, err)
	_, err = ParseArgs([]string{"--threads", "-2"})
	assert.Error(t, err)
	_, err = ParseArgs([]string{"--bogus"})
	assert.Error(t, err)
}

func TestShortRun(t *testing.T) {
	fsys := mountFS(t)
	cfg := Config{
		Duration:        500 * time.Millisecond,
		FileCount:       4,
		ThreadCount:     2,
		WriteSize:       1024,
		MonitorInterval: 0,
		WorkspacePath:   "/stress_suite",
	}
	require.NoError(t, Run(fsys, cfg))

	entries, err := fsys.ListDirectory("/stress_suite")
	require.NoError(t, err)
	assert.NotEmpty(t, entries)
}

func TestShortRunWithCleanup(t *testing.T) {
	fsys := mountFS(t)
	preInodes, preBlocks := fsys.FreeCounts()
	cfg := Config{
		Duration:        200 * time.Millisecond,
		FileCount:       3,
		ThreadCount:     2,
		WriteSize:       512,
		MonitorInterval: 0,
		WorkspacePath:   "/cleanup_suite",
		CleanupAfter:    true,
	}
	require.NoError(t, Run(fsys, cfg))

	assert.False(t, fsys.FileExists("/cleanup_suite"))
	postInodes, postBlocks := fsys.FreeCounts()
	assert.Equal(t, preInodes, postInodes)
	assert.Equal(t, preBlocks, postBlocks)
}

func TestRejectsBadConfig(t *testing.T) {
	fsys := mountFS(t)
	cfg := DefaultConfig()
	cfg.FileCount = 0
	assert.Error(t, Run(fsys, cfg))
}
