// Copyright 2025 Oliver Andrich
// Licensed under the EUPL-1.2

package claims

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"codeberg.org/oliverandrich/foodmaps/internal/models"
)

// Sweep releases pending listings whose hold has run out. Listings with an
// expired registry entry are released like AutoRelease does. Listings with
// no entry at all, left behind by a restart or a failed release, are
// reverted once the sweep grace has passed as well. It returns the number of
// released listings and is safe to run repeatedly.
func (c *Coordinator) Sweep(ctx context.Context) (int, error) {
	pending, err := c.store.ListListings(ctx, models.StatusPendingConfirmation)
	if err != nil {
		return 0, fmt.Errorf("listing pending claims: %w", err)
	}

	now := c.clock.Now()
	released := 0
	var errs []error
	for i := range pending {
		listing := &pending[i]
		if listing.ClaimedAt == nil || listing.RecipientID == nil {
			continue
		}
		deadline := listing.ClaimedAt.Add(c.hold)
		if now.Before(deadline) {
			continue
		}

		ok, err := c.sweepListing(ctx, listing, now, deadline)
		if err != nil {
			errs = append(errs, err)
			continue
		}
		if ok {
			released++
		}
	}

	if released > 0 {
		c.logger.Info("claim_sweep", "released", released, "pending", len(pending))
	}
	return released, errors.Join(errs...)
}

func (c *Coordinator) sweepListing(ctx context.Context, listing *models.Listing, now, deadline time.Time) (bool, error) {
	entry, err := c.registry.Get(ctx, listing.ID)
	switch {
	case err == nil:
		if entry.RecipientID != *listing.RecipientID || !entry.Expired(now) {
			return false, nil
		}
		return c.release(ctx, entry, ReasonSweep)
	case errors.Is(err, ErrNotFound):
		if now.Before(deadline.Add(c.grace)) {
			return false, nil
		}
		return c.revert(ctx, listing.ID, *listing.RecipientID, ReasonOrphaned)
	default:
		return false, err
	}
}

// Sweeper runs Coordinator.Sweep periodically.
type Sweeper struct {
	coordinator *Coordinator
	logger      *slog.Logger
	interval    time.Duration
}

// NewSweeper creates a Sweeper. A non-positive interval defaults to one minute.
func NewSweeper(coordinator *Coordinator, interval time.Duration, logger *slog.Logger) *Sweeper {
	if interval <= 0 {
		interval = time.Minute
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Sweeper{coordinator: coordinator, interval: interval, logger: logger}
}

// Run sweeps once immediately and then on every tick until ctx is done.
func (s *Sweeper) Run(ctx context.Context) error {
	ticker := time.NewTicker(s.interval)
	defer ticker.Stop()

	for {
		if _, err := s.coordinator.Sweep(ctx); err != nil && ctx.Err() == nil {
			s.logger.Error("claim_sweep_failed", "error", err)
		}

		select {
		case <-ctx.Done():
			return nil
		case <-ticker.C:
		}
	}
}
