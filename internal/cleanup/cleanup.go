// Package cleanup runs the background janitor that removes expired download
// files and sweeps expired in-memory cache entries.
package cleanup

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/go-co-op/gocron"
	"go.uber.org/zap"

	"github.com/kjstillabower/apiverse/internal/observability"
)

// Sweeper drops expired cache entries and reports how many were removed.
type Sweeper interface {
	RemoveExpired() int
}

// Report summarizes one janitor pass.
type Report struct {
	Files        int
	CacheEntries int
}

// Janitor deletes download files older than maxAge on a fixed interval.
type Janitor struct {
	dir      string
	maxAge   time.Duration
	interval time.Duration
	sweeper  Sweeper
	logger   *zap.Logger
	now      func() time.Time

	mu        sync.Mutex
	scheduler *gocron.Scheduler
}

// New creates a Janitor. sweeper may be nil when the cache expires entries itself.
func New(dir string, maxAge, interval time.Duration, sweeper Sweeper, logger *zap.Logger) *Janitor {
	if interval <= 0 {
		interval = time.Hour
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Janitor{
		dir:      dir,
		maxAge:   maxAge,
		interval: interval,
		sweeper:  sweeper,
		logger:   logger,
		now:      time.Now,
	}
}

// Start schedules RunOnce every interval, starting immediately. Runs never overlap.
func (j *Janitor) Start() error {
	j.mu.Lock()
	defer j.mu.Unlock()
	if j.scheduler != nil {
		return errors.New("janitor already started")
	}
	s := gocron.NewScheduler(time.UTC)
	s.SingletonModeAll()
	_, err := s.Every(j.interval).Do(func() {
		if _, err := j.RunOnce(context.Background()); err != nil {
			j.logger.Warn("cleanup pass failed", zap.Error(err))
		}
	})
	if err != nil {
		return fmt.Errorf("schedule cleanup: %w", err)
	}
	s.StartAsync()
	j.scheduler = s
	j.logger.Info("cleanup janitor started",
		zap.String("dir", j.dir), zap.Duration("interval", j.interval), zap.Duration("max_age", j.maxAge))
	return nil
}

// Stop halts the schedule and waits for a running pass to finish.
func (j *Janitor) Stop() {
	j.mu.Lock()
	s := j.scheduler
	j.scheduler = nil
	j.mu.Unlock()
	if s != nil {
		s.Stop()
		j.logger.Info("cleanup janitor stopped")
	}
}

// Running reports whether the schedule is active.
func (j *Janitor) Running() bool {
	j.mu.Lock()
	defer j.mu.Unlock()
	return j.scheduler != nil && j.scheduler.IsRunning()
}

// RunOnce performs one pass. Files that fail to delete are logged and skipped.
func (j *Janitor) RunOnce(ctx context.Context) (Report, error) {
	var rep Report
	if j.sweeper != nil {
		rep.CacheEntries = j.sweeper.RemoveExpired()
		observability.CleanupRemovedTotal.WithLabelValues("cache").Add(float64(rep.CacheEntries))
	}

	files, err := j.removeExpiredFiles(ctx)
	rep.Files = files
	observability.CleanupRemovedTotal.WithLabelValues("downloads").Add(float64(files))
	if rep.Files > 0 || rep.CacheEntries > 0 {
		j.logger.Info("cleanup pass complete",
			zap.Int("files", rep.Files), zap.Int("cache_entries", rep.CacheEntries))
	}
	return rep, err
}

func (j *Janitor) removeExpiredFiles(ctx context.Context) (int, error) {
	if j.dir == "" || j.maxAge <= 0 {
		return 0, nil
	}
	entries, err := os.ReadDir(j.dir)
	if err != nil {
		if os.IsNotExist(err) {
			return 0, nil
		}
		return 0, fmt.Errorf("read download dir: %w", err)
	}
	cutoff := j.now().Add(-j.maxAge)
	removed := 0
	for _, e := range entries {
		if err := ctx.Err(); err != nil {
			return removed, err
		}
		if e.IsDir() || !strings.HasSuffix(e.Name(), ".html") {
			continue
		}
		info, err := e.Info()
		if err != nil || !info.ModTime().Before(cutoff) {
			continue
		}
		path := filepath.Join(j.dir, e.Name())
		if err := os.Remove(path); err != nil && !os.IsNotExist(err) {
			j.logger.Warn("remove expired download failed", zap.String("path", path), zap.Error(err))
			continue
		}
		removed++
	}
	return removed, nil
}
