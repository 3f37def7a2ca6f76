// Copyright 2025 Oliver Andrich
// Licensed under the EUPL-1.2

// Package claims implements the claim reservation workflow: an available
// listing is held for one recipient until they confirm it with a one-time
// code, or released automatically when the hold runs out.
package claims

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"codeberg.org/oliverandrich/foodmaps/internal/clock"
	"codeberg.org/oliverandrich/foodmaps/internal/models"
	"codeberg.org/oliverandrich/foodmaps/internal/repository"
	"codeberg.org/oliverandrich/foodmaps/internal/services/notify"
	"github.com/google/uuid"
)

const (
	defaultHold        = 5 * time.Minute
	defaultGrace       = time.Minute
	defaultMaxAttempts = 5
	releaseTimeout     = 30 * time.Second
)

// Release reasons.
const (
	ReasonTimeout  = "timeout"
	ReasonExpired  = "expired"
	ReasonAttempts = "attempts"
	ReasonSweep    = "sweep"
	ReasonOrphaned = "orphaned"
)

// ListingStore is the persistence the coordinator needs.
// *repository.Repository implements it.
type ListingStore interface {
	GetListing(ctx context.Context, id int64) (*models.Listing, error)
	ListListings(ctx context.Context, status models.ListingStatus) ([]models.Listing, error)
	GetUserByID(ctx context.Context, id int64) (*models.User, error)
	CompareAndSetStatus(ctx context.Context, id int64, expected, next models.ListingStatus, fields repository.ListingFields) (bool, error)
}

// Notifier delivers messages without blocking. *notify.Gateway implements it.
type Notifier interface {
	Notify(ctx context.Context, to notify.Recipient, msg notify.Message)
}

// Recorder observes workflow outcomes.
type Recorder interface {
	Outcome(operation, outcome string)
	Released(reason string)
}

type nopRecorder struct{}

func (nopRecorder) Outcome(string, string) {}
func (nopRecorder) Released(string)        {}

// Claim is the result of a successful InitiateClaim.
type Claim struct {
	ExpiresAt   time.Time `json:"expires_at"`
	Code        string    `json:"-"`
	ListingID   int64     `json:"listing_id"`
	RecipientID int64     `json:"recipient_id"`
}

// Coordinator drives listings through available, pending_confirmation and
// claimed.
type Coordinator struct {
	store       ListingStore
	registry    Registry
	scheduler   *Scheduler
	notifier    Notifier
	clock       clock.Clock
	recorder    Recorder
	logger      *slog.Logger
	hold        time.Duration
	grace       time.Duration
	codeLength  int
	maxAttempts int
}

// Option configures a Coordinator.
type Option func(*Coordinator)

// WithHoldDuration overrides how long a claim waits for confirmation.
func WithHoldDuration(d time.Duration) Option {
	return func(c *Coordinator) {
		if d > 0 {
			c.hold = d
		}
	}
}

// WithSweepGrace sets how long past expiry the sweep waits before it
// releases a pending listing that has no registry entry.
func WithSweepGrace(d time.Duration) Option {
	return func(c *Coordinator) {
		if d >= 0 {
			c.grace = d
		}
	}
}

// WithCodeLength sets the number of digits in a confirmation code.
func WithCodeLength(n int) Option {
	return func(c *Coordinator) {
		if n > 0 && n <= maxCodeLength {
			c.codeLength = n
		}
	}
}

// WithMaxAttempts sets how many wrong codes release a hold.
func WithMaxAttempts(n int) Option {
	return func(c *Coordinator) {
		if n > 0 {
			c.maxAttempts = n
		}
	}
}

// WithRecorder registers a Recorder for metrics.
func WithRecorder(r Recorder) Option {
	return func(c *Coordinator) {
		if r != nil {
			c.recorder = r
		}
	}
}

// WithLogger sets the logger.
func WithLogger(logger *slog.Logger) Option {
	return func(c *Coordinator) {
		if logger != nil {
			c.logger = logger
		}
	}
}

// NewCoordinator creates a Coordinator.
func NewCoordinator(store ListingStore, registry Registry, scheduler *Scheduler, notifier Notifier, clk clock.Clock, opts ...Option) *Coordinator {
	c := &Coordinator{
		store:       store,
		registry:    registry,
		scheduler:   scheduler,
		notifier:    notifier,
		clock:       clk,
		recorder:    nopRecorder{},
		logger:      slog.Default(),
		hold:        defaultHold,
		grace:       defaultGrace,
		codeLength:  defaultCodeLength,
		maxAttempts: defaultMaxAttempts,
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// HoldDuration returns how long a claim waits for confirmation.
func (c *Coordinator) HoldDuration() time.Duration {
	return c.hold
}

// InitiateClaim holds an available listing for recipientID and sends them a
// confirmation code. On failure nothing is written and nobody is notified.
func (c *Coordinator) InitiateClaim(ctx context.Context, listingID, recipientID int64) (Claim, error) {
	claim, err := c.initiate(ctx, listingID, recipientID)
	c.recorder.Outcome("claim", OutcomeLabel(err))
	return claim, err
}

func (c *Coordinator) initiate(ctx context.Context, listingID, recipientID int64) (Claim, error) {
	listing, err := c.store.GetListing(ctx, listingID)
	if errors.Is(err, repository.ErrNotFound) {
		return Claim{}, fmt.Errorf("listing %d: %w", listingID, ErrNotFound)
	}
	if err != nil {
		return Claim{}, fmt.Errorf("loading listing %d: %w", listingID, err)
	}
	if listing.Status != models.StatusAvailable {
		return Claim{}, fmt.Errorf("listing %d is %s: %w", listingID, listing.Status, ErrInvalidState)
	}

	recipient, err := c.store.GetUserByID(ctx, recipientID)
	if errors.Is(err, repository.ErrNotFound) {
		return Claim{}, fmt.Errorf("recipient %d unknown: %w", recipientID, ErrPreconditionFailed)
	}
	if err != nil {
		return Claim{}, fmt.Errorf("loading recipient %d: %w", recipientID, err)
	}
	if !recipient.HasPhone() {
		return Claim{}, fmt.Errorf("recipient %d: %w", recipientID, ErrPreconditionFailed)
	}

	code, err := GenerateCode(c.codeLength)
	if err != nil {
		return Claim{}, err
	}

	now := c.clock.Now()
	entry := Entry{
		ListingID:   listingID,
		RecipientID: recipientID,
		Code:        code,
		Token:       uuid.NewString(),
		ExpiresAt:   now.Add(c.hold),
	}

	if err := c.registry.Insert(ctx, entry, now); err != nil {
		if errors.Is(err, ErrEntryExists) {
			return Claim{}, fmt.Errorf("listing %d already held: %w", listingID, ErrInvalidState)
		}
		return Claim{}, err
	}

	ok, err := c.store.CompareAndSetStatus(ctx, listingID, models.StatusAvailable, models.StatusPendingConfirmation,
		repository.ListingFields{UpdatedAt: now, RecipientID: &recipientID, ClaimedAt: &now})
	if err != nil || !ok {
		if _, delErr := c.registry.CompareAndDelete(ctx, listingID, entry.Token); delErr != nil {
			c.logger.Error("claim_rollback_failed", "listing_id", listingID, "error", delErr)
		}
		if err != nil {
			return Claim{}, fmt.Errorf("holding listing %d: %w", listingID, err)
		}
		return Claim{}, fmt.Errorf("listing %d changed concurrently: %w", listingID, ErrInvalidState)
	}

	c.scheduler.Schedule(listingID, entry.ExpiresAt, func() {
		ctx, cancel := context.WithTimeout(context.Background(), releaseTimeout)
		defer cancel()
		if _, err := c.autoRelease(ctx, listingID, ReasonTimeout); err != nil {
			c.logger.Error("claim_release_failed", "listing_id", listingID, "error", err)
		}
	})

	c.logger.Info("claim_initiated",
		"listing_id", listingID,
		"recipient_id", recipientID,
		"expires_at", entry.ExpiresAt,
	)

	data := listingData(listing)
	data["Code"] = code
	data["Minutes"] = int(c.hold.Round(time.Minute) / time.Minute)
	c.notifier.Notify(ctx, recipientOf(recipient), render(ctx, recipient, EventClaimCode, listingID, data))

	if donor, err := c.store.GetUserByID(ctx, listing.DonorID); err != nil {
		c.logger.Warn("donor_lookup_failed", "listing_id", listingID, "donor_id", listing.DonorID, "error", err)
	} else {
		data := listingData(listing)
		data["Recipient"] = recipient.Name
		c.notifier.Notify(ctx, recipientOf(donor), render(ctx, donor, EventClaimPending, listingID, data))
	}

	return Claim{
		ListingID:   listingID,
		RecipientID: recipientID,
		Code:        code,
		ExpiresAt:   entry.ExpiresAt,
	}, nil
}

// ConfirmClaim finalizes the hold of listingID when callerID is the
// recipient who initiated it and code matches. A second confirmation fails
// with ErrNotFound.
func (c *Coordinator) ConfirmClaim(ctx context.Context, listingID, callerID int64, code string) error {
	err := c.confirm(ctx, listingID, callerID, code)
	c.recorder.Outcome("confirm", OutcomeLabel(err))
	return err
}

func (c *Coordinator) confirm(ctx context.Context, listingID, callerID int64, code string) error {
	entry, err := c.registry.Get(ctx, listingID)
	if errors.Is(err, ErrNotFound) {
		return fmt.Errorf("no pending confirmation for listing %d: %w", listingID, ErrNotFound)
	}
	if err != nil {
		return err
	}

	if entry.Expired(c.clock.Now()) {
		if _, err := c.release(ctx, entry, ReasonExpired); err != nil {
			c.logger.Error("claim_release_failed", "listing_id", listingID, "error", err)
		}
		return fmt.Errorf("listing %d: %w", listingID, ErrExpired)
	}

	if entry.RecipientID != callerID {
		c.logger.Warn("claim_confirm_forbidden", "listing_id", listingID, "caller_id", callerID)
		return fmt.Errorf("listing %d: %w", listingID, ErrForbidden)
	}

	if !codesEqual(entry.Code, code) {
		return c.mismatch(ctx, entry)
	}

	won, err := c.registry.CompareAndDelete(ctx, listingID, entry.Token)
	if err != nil {
		return err
	}
	if !won {
		return fmt.Errorf("pending confirmation for listing %d already resolved: %w", listingID, ErrNotFound)
	}
	c.scheduler.Cancel(listingID)

	// The entry is gone from here on. A failed update leaves the listing
	// pending without an entry until the sweep reverts it.
	ok, err := c.store.CompareAndSetStatus(ctx, listingID, models.StatusPendingConfirmation, models.StatusClaimed,
		repository.ListingFields{UpdatedAt: c.clock.Now(), HeldBy: &entry.RecipientID})
	if err != nil || !ok {
		c.logger.Error("claim_confirm_failed",
			"listing_id", listingID,
			"recipient_id", entry.RecipientID,
			"error", err,
		)
		if err != nil {
			return fmt.Errorf("confirming listing %d: %w", listingID, err)
		}
		return fmt.Errorf("listing %d left pending_confirmation: %w", listingID, ErrInvalidState)
	}

	c.logger.Info("claim_confirmed", "listing_id", listingID, "recipient_id", entry.RecipientID)
	c.notifyConfirmed(ctx, listingID, entry.RecipientID)
	return nil
}

func (c *Coordinator) mismatch(ctx context.Context, entry Entry) error {
	attempts, err := c.registry.RecordMismatch(ctx, entry.ListingID, entry.Token)
	if errors.Is(err, ErrNotFound) {
		return fmt.Errorf("pending confirmation for listing %d already resolved: %w", entry.ListingID, ErrNotFound)
	}
	if err != nil {
		return err
	}

	if attempts >= c.maxAttempts {
		if _, err := c.release(ctx, entry, ReasonAttempts); err != nil {
			return fmt.Errorf("releasing listing %d: %w", entry.ListingID, err)
		}
		return fmt.Errorf("listing %d after %d attempts: %w", entry.ListingID, attempts, ErrTooManyAttempts)
	}
	return fmt.Errorf("listing %d attempt %d: %w", entry.ListingID, attempts, ErrCodeMismatch)
}

func (c *Coordinator) notifyConfirmed(ctx context.Context, listingID, recipientID int64) {
	listing, err := c.store.GetListing(ctx, listingID)
	if err != nil {
		c.logger.Warn("confirm_notify_skipped", "listing_id", listingID, "error", err)
		return
	}
	recipient, err := c.store.GetUserByID(ctx, recipientID)
	if err != nil {
		c.logger.Warn("confirm_notify_skipped", "listing_id", listingID, "error", err)
		return
	}
	donor, err := c.store.GetUserByID(ctx, listing.DonorID)
	if err != nil {
		c.logger.Warn("confirm_notify_skipped", "listing_id", listingID, "error", err)
		return
	}

	c.notifier.Notify(ctx, recipientOf(recipient),
		render(ctx, recipient, EventConfirmedReceiver, listingID, contactData(listing, donor)))
	c.notifier.Notify(ctx, recipientOf(donor),
		render(ctx, donor, EventConfirmedDonor, listingID, contactData(listing, recipient)))
}

// AutoRelease returns an expired hold to available. It does nothing when the
// listing has no pending confirmation or when the current one has not
// expired, so it is safe to run late or more than once.
func (c *Coordinator) AutoRelease(ctx context.Context, listingID int64) (bool, error) {
	return c.autoRelease(ctx, listingID, ReasonTimeout)
}

func (c *Coordinator) autoRelease(ctx context.Context, listingID int64, reason string) (bool, error) {
	entry, err := c.registry.Get(ctx, listingID)
	if errors.Is(err, ErrNotFound) {
		return false, nil
	}
	if err != nil {
		return false, err
	}
	if !entry.Expired(c.clock.Now()) {
		return false, nil
	}
	return c.release(ctx, entry, reason)
}

// release removes entry and reverts its listing. Only the caller that wins
// the registry delete touches the listing.
func (c *Coordinator) release(ctx context.Context, entry Entry, reason string) (bool, error) {
	won, err := c.registry.CompareAndDelete(ctx, entry.ListingID, entry.Token)
	if err != nil || !won {
		return false, err
	}
	c.scheduler.Cancel(entry.ListingID)

	released, err := c.revert(ctx, entry.ListingID, entry.RecipientID, reason)
	if err != nil || !released {
		return released, err
	}

	c.notifyReleased(ctx, entry.ListingID, entry.RecipientID)
	return true, nil
}

func (c *Coordinator) revert(ctx context.Context, listingID, recipientID int64, reason string) (bool, error) {
	ok, err := c.store.CompareAndSetStatus(ctx, listingID, models.StatusPendingConfirmation, models.StatusAvailable,
		repository.ListingFields{UpdatedAt: c.clock.Now(), HeldBy: &recipientID, ClearClaim: true})
	if err != nil {
		return false, fmt.Errorf("releasing listing %d: %w", listingID, err)
	}
	if !ok {
		c.logger.Debug("claim_release_skipped", "listing_id", listingID, "reason", reason)
		return false, nil
	}

	c.logger.Info("claim_released", "listing_id", listingID, "recipient_id", recipientID, "reason", reason)
	c.recorder.Released(reason)
	return true, nil
}

func (c *Coordinator) notifyReleased(ctx context.Context, listingID, recipientID int64) {
	listing, err := c.store.GetListing(ctx, listingID)
	if err != nil {
		return
	}
	recipient, err := c.store.GetUserByID(ctx, recipientID)
	if err != nil {
		return
	}
	c.notifier.Notify(ctx, recipientOf(recipient),
		render(ctx, recipient, EventReleased, listingID, listingData(listing)))
}

// OutcomeLabel maps a workflow error to a short label for metrics and logs.
func OutcomeLabel(err error) string {
	switch {
	case err == nil:
		return "ok"
	case errors.Is(err, ErrNotFound):
		return "not_found"
	case errors.Is(err, ErrInvalidState):
		return "invalid_state"
	case errors.Is(err, ErrPreconditionFailed):
		return "precondition_failed"
	case errors.Is(err, ErrExpired):
		return "expired"
	case errors.Is(err, ErrCodeMismatch):
		return "code_mismatch"
	case errors.Is(err, ErrTooManyAttempts):
		return "too_many_attempts"
	case errors.Is(err, ErrForbidden):
		return "forbidden"
	default:
		return "error"
	}
}
