package filewatcher

import (
	"os"
	"path/filepath"
	"sync/atomic"
	"testing"
	"time"

	"vidnote/app/config"
	"vidnote/app/logger"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestWatcherTriggersOnArtifactChange(t *testing.T) {
	dir := t.TempDir()
	log := logger.New(config.LogConfig{Level: "error", Output: "stdout"})

	var fired atomic.Int32
	w, err := New(dir, func() { fired.Add(1) }, log)
	require.NoError(t, err)
	require.NoError(t, w.Start())
	defer w.Stop()

	require.NoError(t, os.WriteFile(filepath.Join(dir, "task-1.status.json"), []byte("{}"), 0644))

	assert.Eventually(t, func() bool {
		return fired.Load() > 0
	}, 3*time.Second, 50*time.Millisecond)
}

func TestWatcherIgnoresTempFiles(t *testing.T) {
	dir := t.TempDir()
	log := logger.New(config.LogConfig{Level: "error", Output: "stdout"})

	var fired atomic.Int32
	w, err := New(dir, func() { fired.Add(1) }, log)
	require.NoError(t, err)
	require.NoError(t, w.Start())
	defer w.Stop()

	// 临时文件和非 JSON 文件都不触发回调
	require.NoError(t, os.WriteFile(filepath.Join(dir, ".tmp-123.json"), []byte("{}"), 0644))
	require.NoError(t, os.WriteFile(filepath.Join(dir, "task-1.cover.jpg"), []byte("x"), 0644))

	time.Sleep(time.Second)
	assert.EqualValues(t, 0, fired.Load())
}

func TestWatcherStopIdempotent(t *testing.T) {
	dir := t.TempDir()
	log := logger.New(config.LogConfig{Level: "error", Output: "stdout"})

	w, err := New(dir, func() {}, log)
	require.NoError(t, err)
	require.NoError(t, w.Start())

	require.NoError(t, w.Stop())
	require.NoError(t, w.Stop())
}
