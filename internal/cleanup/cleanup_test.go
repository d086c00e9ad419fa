package cleanup

import (
	"context"
	"os"
	"path/filepath"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/kjstillabower/apiverse/internal/cache"
)

type countingSweeper struct {
	calls atomic.Int32
	n     int
}

func (s *countingSweeper) RemoveExpired() int {
	s.calls.Add(1)
	return s.n
}

func writeFile(t *testing.T, dir, name string, age time.Duration) string {
	t.Helper()
	path := filepath.Join(dir, name)
	require.NoError(t, os.WriteFile(path, []byte("<html></html>"), 0o644))
	mod := time.Now().Add(-age)
	require.NoError(t, os.Chtimes(path, mod, mod))
	return path
}

// TestRunOnce_RemovesExpiredDownloads verifies only expired .html files are deleted.
func TestRunOnce_RemovesExpiredDownloads(t *testing.T) {
	dir := t.TempDir()
	old := writeFile(t, dir, "3f0c1b9e-5a55-4b5e-8d0e-2a7c0f4d9b11.html", 2*time.Hour)
	fresh := writeFile(t, dir, "9b2e6f7a-0c3d-4e1f-a2b3-c4d5e6f7a8b9.html", time.Minute)
	other := writeFile(t, dir, "notes.txt", 5*time.Hour)

	j := New(dir, time.Hour, time.Minute, nil, nil)
	rep, err := j.RunOnce(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 1, rep.Files)

	assert.NoFileExists(t, old)
	assert.FileExists(t, fresh)
	assert.FileExists(t, other)
}

// TestRunOnce_SweepsCache verifies expired in-memory entries are dropped.
func TestRunOnce_SweepsCache(t *testing.T) {
	ctx := context.Background()
	now := time.Now()
	c := cache.NewInMemoryCache().WithClock(func() time.Time { return now })
	require.NoError(t, c.Set(ctx, "a", []byte("1"), time.Second))
	require.NoError(t, c.Set(ctx, "b", []byte("2"), time.Hour))
	now = now.Add(time.Minute)

	j := New(t.TempDir(), time.Hour, time.Minute, c, nil)
	rep, err := j.RunOnce(ctx)
	require.NoError(t, err)
	assert.Equal(t, 1, rep.CacheEntries)
	assert.Equal(t, 1, c.Len())
}

// TestRunOnce_MissingDir verifies a download dir that was never created is not an error.
func TestRunOnce_MissingDir(t *testing.T) {
	j := New(filepath.Join(t.TempDir(), "absent"), time.Hour, time.Minute, nil, nil)
	rep, err := j.RunOnce(context.Background())
	require.NoError(t, err)
	assert.Zero(t, rep.Files)
}

// TestStartStop verifies the schedule runs a pass and stops cleanly.
func TestStartStop(t *testing.T) {
	sweeper := &countingSweeper{}
	j := New(t.TempDir(), time.Hour, 50*time.Millisecond, sweeper, nil)

	require.NoError(t, j.Start())
	assert.Error(t, j.Start(), "second Start should fail")
	assert.Eventually(t, func() bool { return sweeper.calls.Load() >= 1 }, 2*time.Second, 10*time.Millisecond)
	assert.True(t, j.Running())

	j.Stop()
	assert.False(t, j.Running())
	calls := sweeper.calls.Load()
	time.Sleep(150 * time.Millisecond)
	assert.Equal(t, calls, sweeper.calls.Load(), "no passes after Stop")
	j.Stop()
}
