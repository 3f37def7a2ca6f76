// Copyright 2025 Oliver Andrich
// Licensed under the EUPL-1.2

package claims

import (
	"sync"
	"time"

	"codeberg.org/oliverandrich/foodmaps/internal/clock"
)

type scheduledRelease struct {
	timer *time.Timer
}

// Scheduler runs one-shot actions per listing. Cancellation is advisory: an
// action that has already started runs to completion, so actions must check
// current state themselves.
type Scheduler struct {
	clock   clock.Clock
	pending map[int64]*scheduledRelease
	wg      sync.WaitGroup
	mu      sync.Mutex
	stopped bool
}

// NewScheduler creates a Scheduler measuring delays against clk.
func NewScheduler(clk clock.Clock) *Scheduler {
	return &Scheduler{
		clock:   clk,
		pending: make(map[int64]*scheduledRelease),
	}
}

// Schedule arms fn to run at at, replacing any action armed for listingID.
// After Stop it does nothing.
func (s *Scheduler) Schedule(listingID int64, at time.Time, fn func()) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.stopped {
		return
	}
	if prev, ok := s.pending[listingID]; ok {
		prev.timer.Stop()
	}

	entry := &scheduledRelease{}
	delay := max(at.Sub(s.clock.Now()), 0)
	entry.timer = time.AfterFunc(delay, func() {
		s.mu.Lock()
		if s.pending[listingID] != entry {
			// replaced or cancelled after the timer fired
			s.mu.Unlock()
			return
		}
		delete(s.pending, listingID)
		s.wg.Add(1)
		s.mu.Unlock()

		defer s.wg.Done()
		fn()
	})
	s.pending[listingID] = entry
}

// Cancel disarms the action of listingID, if it has not started yet.
func (s *Scheduler) Cancel(listingID int64) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if entry, ok := s.pending[listingID]; ok {
		entry.timer.Stop()
		delete(s.pending, listingID)
	}
}

// Pending returns the number of armed actions.
func (s *Scheduler) Pending() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.pending)
}

// Stop disarms every action and waits for running ones to finish.
func (s *Scheduler) Stop() {
	s.mu.Lock()
	s.stopped = true
	for id, entry := range s.pending {
		entry.timer.Stop()
		delete(s.pending, id)
	}
	s.mu.Unlock()

	s.wg.Wait()
}
