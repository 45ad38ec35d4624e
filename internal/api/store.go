package api

import (
	"sort"
	"sync"
	"time"
)

const defaultMaxRuns = 100

// Store provides thread-safe in-memory storage for analysis runs. It is
// bounded: once full, the oldest finished runs are evicted first.
type Store struct {
	mu      sync.RWMutex
	runs    map[string]*AnalysisRun
	maxRuns int
}

// NewStore creates a Store. maxRuns <= 0 uses the default bound.
func NewStore(maxRuns int) *Store {
	if maxRuns <= 0 {
		maxRuns = defaultMaxRuns
	}
	return &Store{
		runs:    make(map[string]*AnalysisRun),
		maxRuns: maxRuns,
	}
}

// CreateRun adds a new run to the store.
func (s *Store) CreateRun(run *AnalysisRun) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.runs[run.ID] = run
	s.evictOldRuns()
}

// GetRun retrieves a run by ID.
func (s *Store) GetRun(id string) (*AnalysisRun, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	run, ok := s.runs[id]
	return run, ok
}

// ListRuns returns all runs sorted by StartedAt descending.
func (s *Store) ListRuns() []*AnalysisRun {
	s.mu.RLock()
	defer s.mu.RUnlock()

	runs := make([]*AnalysisRun, 0, len(s.runs))
	for _, run := range s.runs {
		runs = append(runs, run)
	}
	sort.Slice(runs, func(i, j int) bool {
		if !runs[i].StartedAt.Equal(runs[j].StartedAt) {
			return runs[i].StartedAt.After(runs[j].StartedAt)
		}
		return runs[i].ID < runs[j].ID
	})
	return runs
}

// UpdateRun performs a thread-safe update on a run.
func (s *Store) UpdateRun(id string, fn func(*AnalysisRun)) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if run, ok := s.runs[id]; ok {
		fn(run)
	}
}

// GetStats computes aggregate statistics over the run history.
func (s *Store) GetStats() *Stats {
	s.mu.RLock()
	defer s.mu.RUnlock()

	stats := &Stats{TotalRuns: len(s.runs)}

	var totalDuration time.Duration
	var completedCount int
	var lastAnalyzed time.Time

	for _, run := range s.runs {
		switch run.Status {
		case StatusRunning, StatusPending:
			stats.ActiveRuns++
		case StatusCompleted:
			stats.CompletedRuns++
			stats.TotalModules += run.Modules
			completedCount++
			if run.CompletedAt != nil {
				totalDuration += run.CompletedAt.Sub(run.StartedAt)
				if run.CompletedAt.After(lastAnalyzed) {
					lastAnalyzed = *run.CompletedAt
				}
			}
		case StatusFailed:
			stats.FailedRuns++
		}
	}

	if completedCount > 0 {
		stats.AvgDuration = totalDuration.Seconds() / float64(completedCount)
	}
	if stats.TotalRuns > 0 {
		stats.SuccessRate = float64(stats.CompletedRuns) / float64(stats.TotalRuns)
	}
	if !lastAnalyzed.IsZero() {
		stats.LastAnalyzedAt = lastAnalyzed.Format(time.RFC3339)
	}
	return stats
}

// evictOldRuns removes the oldest finished runs when over the bound.
// Must be called with the lock held.
func (s *Store) evictOldRuns() {
	if len(s.runs) <= s.maxRuns {
		return
	}

	type runTime struct {
		id   string
		time time.Time
	}
	var finished []runTime
	for id, run := range s.runs {
		if run.Status == StatusCompleted || run.Status == StatusFailed {
			t := run.StartedAt
			if run.CompletedAt != nil {
				t = *run.CompletedAt
			}
			finished = append(finished, runTime{id: id, time: t})
		}
	}
	if len(finished) == 0 {
		return
	}

	sort.Slice(finished, func(i, j int) bool {
		return finished[i].time.Before(finished[j].time)
	})

	toDelete := len(s.runs) - s.maxRuns
	for i := 0; i < toDelete && i < len(finished); i++ {
		delete(s.runs, finished[i].id)
	}
}
