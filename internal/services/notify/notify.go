// Copyright 2025 Oliver Andrich
// Licensed under the EUPL-1.2

// Package notify delivers best-effort messages to users over every
// configured channel. Delivery never blocks or fails the caller.
package notify

import (
	"context"
	"errors"
	"log/slog"
	"sync"
	"time"

	"golang.org/x/sync/errgroup"
)

// ErrNoAddress is returned by a Sender when the recipient has no address on
// its channel. The gateway treats it as a skip, not a failure.
var ErrNoAddress = errors.New("recipient has no address for this channel")

// Recipient is the addressing information of a notified user.
type Recipient struct {
	Name   string
	Phone  string
	Email  string
	Locale string
	UserID int64
}

// Message is a rendered notification.
type Message struct {
	Event     string
	Subject   string
	Body      string
	ListingID int64
}

// Sender delivers a message over one channel.
type Sender interface {
	Name() string
	Send(ctx context.Context, to Recipient, msg Message) error
}

// Gateway fans a message out to all senders in the background.
type Gateway struct {
	logger    *slog.Logger
	onFailure func(channel string)
	senders   []Sender
	wg        sync.WaitGroup
	timeout   time.Duration
}

// Option configures a Gateway.
type Option func(*Gateway)

// WithLogger sets the logger used for delivery failures.
func WithLogger(logger *slog.Logger) Option {
	return func(g *Gateway) {
		if logger != nil {
			g.logger = logger
		}
	}
}

// WithTimeout bounds a single delivery across all channels.
func WithTimeout(d time.Duration) Option {
	return func(g *Gateway) {
		if d > 0 {
			g.timeout = d
		}
	}
}

// WithFailureHook registers fn to be called with the channel name of every
// failed delivery.
func WithFailureHook(fn func(channel string)) Option {
	return func(g *Gateway) {
		g.onFailure = fn
	}
}

// NewGateway creates a gateway over senders.
func NewGateway(senders []Sender, opts ...Option) *Gateway {
	g := &Gateway{
		senders: senders,
		logger:  slog.Default(),
		timeout: 30 * time.Second,
	}
	for _, opt := range opts {
		opt(g)
	}
	return g
}

// Notify schedules delivery of msg to to and returns immediately. The
// delivery outlives cancellation of ctx.
func (g *Gateway) Notify(ctx context.Context, to Recipient, msg Message) {
	ctx = context.WithoutCancel(ctx)
	g.wg.Add(1)
	go func() {
		defer g.wg.Done()
		_ = g.Deliver(ctx, to, msg)
	}()
}

// Deliver sends msg over every channel concurrently and waits for all of
// them. It returns the first channel error; every error is logged.
func (g *Gateway) Deliver(ctx context.Context, to Recipient, msg Message) error {
	ctx, cancel := context.WithTimeout(ctx, g.timeout)
	defer cancel()

	var eg errgroup.Group
	for _, sender := range g.senders {
		eg.Go(func() error {
			err := sender.Send(ctx, to, msg)
			if err == nil || errors.Is(err, ErrNoAddress) {
				return nil
			}
			g.logger.Warn("notify_failed",
				"channel", sender.Name(),
				"event", msg.Event,
				"listing_id", msg.ListingID,
				"user_id", to.UserID,
				"error", err,
			)
			if g.onFailure != nil {
				g.onFailure(sender.Name())
			}
			return err
		})
	}
	return eg.Wait()
}

// Wait blocks until every scheduled delivery has finished.
func (g *Gateway) Wait() {
	g.wg.Wait()
}

// LogSender writes messages to the log. It stands in for real channels in
// development.
type LogSender struct {
	logger *slog.Logger
}

// NewLogSender creates a LogSender. A nil logger uses slog.Default.
func NewLogSender(logger *slog.Logger) *LogSender {
	if logger == nil {
		logger = slog.Default()
	}
	return &LogSender{logger: logger}
}

func (s *LogSender) Name() string { return "log" }

func (s *LogSender) Send(_ context.Context, to Recipient, msg Message) error {
	s.logger.Info("notification",
		"event", msg.Event,
		"user_id", to.UserID,
		"listing_id", msg.ListingID,
		"subject", msg.Subject,
		"body", msg.Body,
	)
	return nil
}
