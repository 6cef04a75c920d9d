package cleanup

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/robfig/cron/v3"
	"github.com/rs/zerolog"
)

// JobPruner forgets finished jobs. *queue.Store implements it.
type JobPruner interface {
	Prune(cutoff time.Time) int
}

// Scheduler periodically removes stale files from the temp directory:
// uploads that were never processed and segment directories left behind by a
// crashed process. With a job store attached it also drops finished jobs of
// the same age.
type Scheduler struct {
	tempDir  string
	interval time.Duration
	maxAge   time.Duration
	jobs     JobPruner
	cron     *cron.Cron
	now      func() time.Time
	log      zerolog.Logger
}

// Stats summarizes one sweep.
type Stats struct {
	Files int
	Dirs  int
	Jobs  int
	Bytes int64
}

// NewScheduler creates a new cleanup scheduler
func NewScheduler(tempDir string, intervalMinutes, maxAgeHours int, log zerolog.Logger) *Scheduler {
	return &Scheduler{
		tempDir:  tempDir,
		interval: time.Duration(intervalMinutes) * time.Minute,
		maxAge:   time.Duration(maxAgeHours) * time.Hour,
		cron:     cron.New(),
		now:      time.Now,
		log:      log.With().Str("component", "cleanup").Logger(),
	}
}

// PruneJobs makes every sweep also evict finished jobs older than the max age.
// Call it before Start.
func (s *Scheduler) PruneJobs(p JobPruner) {
	s.jobs = p
}

// Start runs one sweep immediately and then every interval.
func (s *Scheduler) Start() error {
	s.log.Info().Msg("running initial temp file cleanup")
	s.Sweep()

	if _, err := s.cron.AddFunc(fmt.Sprintf("@every %s", s.interval), func() { s.Sweep() }); err != nil {
		return fmt.Errorf("schedule cleanup: %w", err)
	}
	s.cron.Start()
	s.log.Info().Dur("interval", s.interval).Dur("max_age", s.maxAge).Msg("cleanup scheduler started")
	return nil
}

// Stop stops the schedule and waits for a running sweep.
func (s *Scheduler) Stop() {
	<-s.cron.Stop().Done()
	s.log.Info().Msg("cleanup scheduler stopped")
}

// Sweep deletes top-level files and segments-* directories older than the
// max age, then prunes finished jobs.
func (s *Scheduler) Sweep() Stats {
	var stats Stats
	now := s.now()

	s.sweepDir(now, &stats)
	if s.jobs != nil {
		stats.Jobs = s.jobs.Prune(now.Add(-s.maxAge))
	}

	if stats.Files+stats.Dirs+stats.Jobs > 0 {
		s.log.Info().Int("files", stats.Files).Int("dirs", stats.Dirs).Int("jobs", stats.Jobs).
			Float64("freed_mb", float64(stats.Bytes)/(1024*1024)).Msg("cleanup complete")
	}
	return stats
}

func (s *Scheduler) sweepDir(now time.Time, stats *Stats) {
	entries, err := os.ReadDir(s.tempDir)
	if err != nil {
		s.log.Error().Err(err).Msg("error during cleanup")
		return
	}

	for _, e := range entries {
		path := filepath.Join(s.tempDir, e.Name())
		info, err := e.Info()
		if err != nil {
			continue
		}
		age := now.Sub(info.ModTime())
		if age <= s.maxAge {
			continue
		}

		if e.IsDir() {
			if !strings.HasPrefix(e.Name(), "segments-") {
				continue
			}
			size := dirSize(path)
			if err := os.RemoveAll(path); err != nil {
				s.log.Warn().Err(err).Str("path", path).Msg("failed to delete orphaned segment dir")
				continue
			}
			stats.Dirs++
			stats.Bytes += size
			s.log.Info().Str("dir", e.Name()).Dur("age", age.Round(time.Minute)).Msg("deleted orphaned segment dir")
			continue
		}

		if err := os.Remove(path); err != nil {
			s.log.Warn().Err(err).Str("path", path).Msg("failed to delete old file")
			continue
		}
		stats.Files++
		stats.Bytes += info.Size()
		s.log.Info().Str("file", e.Name()).Dur("age", age.Round(time.Hour)).Int64("size_kb", info.Size()/1024).
			Msg("deleted old temp file")
	}
}

func dirSize(dir string) int64 {
	var size int64
	_ = filepath.WalkDir(dir, func(_ string, d os.DirEntry, err error) error {
		if err != nil || d.IsDir() {
			return nil
		}
		if info, err := d.Info(); err == nil {
			size += info.Size()
		}
		return nil
	})
	return size
}

// EnsureTempDirExists creates the temp directory if it doesn't exist
func EnsureTempDirExists(tempDir string) error {
	return os.MkdirAll(tempDir, 0755)
}
