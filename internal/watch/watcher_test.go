package watch

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func writeFile(t *testing.T, path, content string) {
	t.Helper()
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))
}

func startWatcher(t *testing.T, path string, reload ReloadFunc) context.CancelFunc {
	t.Helper()
	ctx, cancel := context.WithCancel(context.Background())
	w := New(path, reload, nil)
	w.SetDebounce(50 * time.Millisecond)
	done := make(chan struct{})
	go func() {
		defer close(done)
		_ = w.Run(ctx)
	}()
	t.Cleanup(func() {
		cancel()
		<-done
	})
	// Give the fs watch a moment to attach before the test writes.
	time.Sleep(50 * time.Millisecond)
	return cancel
}

func TestWatcherReloadsAfterQuietPeriod(t *testing.T) {
	path := filepath.Join(t.TempDir(), "rules.yaml")
	writeFile(t, path, "keywords: []\n")

	var reloads atomic.Int32
	startWatcher(t, path, func() error {
		reloads.Add(1)
		return nil
	})

	writeFile(t, path, "keywords: [耳机]\n")

	require.Eventually(t, func() bool { return reloads.Load() == 1 },
		2*time.Second, 10*time.Millisecond)
}

func TestWatcherDebouncesEventBursts(t *testing.T) {
	path := filepath.Join(t.TempDir(), "rules.yaml")
	writeFile(t, path, "keywords: []\n")

	var reloads atomic.Int32
	startWatcher(t, path, func() error {
		reloads.Add(1)
		return nil
	})

	// A burst of writes inside the debounce window collapses to one reload.
	for i := 0; i < 5; i++ {
		writeFile(t, path, "keywords: [耳机]\n")
		time.Sleep(5 * time.Millisecond)
	}

	require.Eventually(t, func() bool { return reloads.Load() >= 1 },
		2*time.Second, 10*time.Millisecond)
	time.Sleep(200 * time.Millisecond)
	require.EqualValues(t, 1, reloads.Load())
}

func TestWatcherIgnoresSiblingFiles(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "rules.yaml")
	writeFile(t, path, "keywords: []\n")

	var reloads atomic.Int32
	startWatcher(t, path, func() error {
		reloads.Add(1)
		return nil
	})

	writeFile(t, filepath.Join(dir, "history.json"), "{}")

	time.Sleep(200 * time.Millisecond)
	require.Zero(t, reloads.Load())
}

func TestWatcherSurvivesFailedReload(t *testing.T) {
	path := filepath.Join(t.TempDir(), "rules.yaml")
	writeFile(t, path, "keywords: []\n")

	var reloads atomic.Int32
	startWatcher(t, path, func() error {
		reloads.Add(1)
		if reloads.Load() == 1 {
			return errors.New("unparsable rules")
		}
		return nil
	})

	writeFile(t, path, "keywords: [broken\n")
	require.Eventually(t, func() bool { return reloads.Load() == 1 },
		2*time.Second, 10*time.Millisecond)

	// The watcher keeps going after a failed reload.
	writeFile(t, path, "keywords: [耳机]\n")
	require.Eventually(t, func() bool { return reloads.Load() == 2 },
		2*time.Second, 10*time.Millisecond)
}
