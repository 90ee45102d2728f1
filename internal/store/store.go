package store

import (
	"context"
	"errors"
	"sync"
	"time"

	"teachcal/internal/clock"
	"teachcal/internal/fetch"
	appLog "teachcal/internal/log"
	"teachcal/internal/model"
	"teachcal/internal/schedule"
)

// ErrLoadInFlight is returned by Load when another load has not finished.
var ErrLoadInFlight = errors.New("schedule load already in progress")

type Status string

const (
	StatusLoading Status = "loading"
	StatusReady   Status = "ready"
	StatusFailed  Status = "failed"
)

// Snapshot is an immutable view of the last load.
type Snapshot struct {
	Status   Status
	Lessons  []model.Lesson
	Rejected []*schedule.RecordError
	Err      error
	LoadedAt time.Time
}

// Store holds the single lesson snapshot shared by every view. Loads
// replace it atomically; readers never observe a half-built list.
type Store struct {
	loader fetch.Loader
	clock  clock.Clock
	slots  schedule.SlotTable

	loadMu sync.Mutex

	mu   sync.RWMutex
	snap Snapshot
}

// New creates a Store in the loading state. Nothing is fetched until Load.
func New(loader fetch.Loader, clk clock.Clock, slots schedule.SlotTable) *Store {
	return &Store{
		loader: loader,
		clock:  clk,
		slots:  slots,
		snap:   Snapshot{Status: StatusLoading},
	}
}

// Load runs one schedule load. A failed load is not retried; the store
// moves to StatusFailed and keeps the error until the next Load.
func (s *Store) Load(ctx context.Context) error {
	if !s.loadMu.TryLock() {
		return ErrLoadInFlight
	}
	defer s.loadMu.Unlock()

	started := time.Now()
	records, err := s.loader.Load(ctx)
	if err != nil {
		appLog.Error("schedule load failed", err, "elapsed", time.Since(started))
		s.set(Snapshot{Status: StatusFailed, Err: err, LoadedAt: s.clock.Now()})
		return err
	}

	now := s.clock.Now()
	res := schedule.Normalize(records, now)
	lessons := schedule.AssignSlots(res.Lessons, s.slots)

	s.set(Snapshot{
		Status:   StatusReady,
		Lessons:  lessons,
		Rejected: res.Rejected,
		LoadedAt: now,
	})

	appLog.Info("schedule load completed",
		"records", len(records),
		"lessons", len(lessons),
		"rejected", len(res.Rejected),
		"elapsed", time.Since(started),
	)
	return nil
}

// Snapshot returns the current state.
func (s *Store) Snapshot() Snapshot {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.snap
}

// Now reads the store's time source.
func (s *Store) Now() time.Time {
	return s.clock.Now()
}

// Slots returns the grid slot table lessons were assigned against.
func (s *Store) Slots() schedule.SlotTable {
	return s.slots
}

func (s *Store) set(snap Snapshot) {
	s.mu.Lock()
	s.snap = snap
	s.mu.Unlock()
}
