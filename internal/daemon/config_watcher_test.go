package daemon

import (
	"context"
	"os"
	"path/filepath"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestConfigWatcherDebouncesWrites(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "pillarsite.yaml")
	require.NoError(t, os.WriteFile(path, []byte("version: \"1.0\"\n"), 0o600))

	var calls atomic.Int32
	w, err := NewConfigWatcher(path, 100*time.Millisecond, func(context.Context) error {
		calls.Add(1)
		return nil
	})
	require.NoError(t, err)
	require.NoError(t, w.Start(context.Background()))
	t.Cleanup(func() { _ = w.Stop() })

	for i := 0; i < 5; i++ {
		require.NoError(t, os.WriteFile(path, []byte("version: \"1.0\"\n# edit\n"), 0o600))
		time.Sleep(10 * time.Millisecond)
	}

	require.Eventually(t, func() bool { return calls.Load() == 1 }, 3*time.Second, 10*time.Millisecond)
	time.Sleep(300 * time.Millisecond)
	assert.Equal(t, int32(1), calls.Load())
}

func TestConfigWatcherIgnoresOtherFiles(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "pillarsite.yaml")
	require.NoError(t, os.WriteFile(path, []byte("x"), 0o600))

	var calls atomic.Int32
	w, err := NewConfigWatcher(path, 20*time.Millisecond, func(context.Context) error {
		calls.Add(1)
		return nil
	})
	require.NoError(t, err)
	require.NoError(t, w.Start(context.Background()))

	require.NoError(t, os.WriteFile(filepath.Join(dir, "other.yaml"), []byte("y"), 0o600))
	time.Sleep(200 * time.Millisecond)
	assert.Zero(t, calls.Load())

	require.NoError(t, w.Stop())
	require.NoError(t, w.Stop(), "stop is idempotent")
}
