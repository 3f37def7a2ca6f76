// Copyright 2025 Oliver Andrich
// Licensed under the EUPL-1.2

// Package sms is the Twilio notification channel.
package sms

import (
	"context"
	"fmt"
	"strings"

	"codeberg.org/oliverandrich/foodmaps/internal/config"
	"codeberg.org/oliverandrich/foodmaps/internal/services/notify"
	"github.com/twilio/twilio-go"
	twilioapi "github.com/twilio/twilio-go/rest/api/v2010"
)

// API creates messages. The Api service of *twilio.RestClient implements it.
type API interface {
	CreateMessage(params *twilioapi.CreateMessageParams) (*twilioapi.ApiV2010Message, error)
}

// Service sends notifications as text messages.
type Service struct {
	api  API
	from string
}

// Option configures a Service.
type Option func(*Service)

// WithAPI replaces the Twilio client built from the configuration.
func WithAPI(api API) Option {
	return func(s *Service) {
		s.api = api
	}
}

// NewService creates a new SMS service.
func NewService(cfg *config.SMSConfig, opts ...Option) (*Service, error) {
	if cfg.From == "" {
		return nil, fmt.Errorf("SMS from number is required")
	}

	s := &Service{from: Normalize(cfg.From)}
	for _, opt := range opts {
		opt(s)
	}

	if s.api == nil {
		if cfg.AccountSID == "" || cfg.AuthToken == "" {
			return nil, fmt.Errorf("twilio account SID and auth token are required")
		}
		client := twilio.NewRestClientWithParams(twilio.ClientParams{
			Username: cfg.AccountSID,
			Password: cfg.AuthToken,
		})
		s.api = client.Api
	}

	return s, nil
}

func (s *Service) Name() string { return "sms" }

// Send texts msg.Body to the recipient's phone. The Twilio client does not
// take a context, so a cancelled ctx only stops messages not yet started.
func (s *Service) Send(ctx context.Context, to notify.Recipient, msg notify.Message) error {
	if to.Phone == "" {
		return notify.ErrNoAddress
	}
	if err := ctx.Err(); err != nil {
		return err
	}

	params := &twilioapi.CreateMessageParams{}
	params.SetTo(Normalize(to.Phone))
	params.SetFrom(s.from)
	params.SetBody(msg.Body)

	if _, err := s.api.CreateMessage(params); err != nil {
		return fmt.Errorf("sending sms: %w", err)
	}
	return nil
}

// Normalize strips formatting from a phone number and assumes the North
// American country code when none is given.
func Normalize(phone string) string {
	cleaned := strings.Map(func(r rune) rune {
		switch r {
		case '-', '(', ')', ' ':
			return -1
		}
		return r
	}, phone)
	if cleaned == "" || strings.HasPrefix(cleaned, "+") {
		return cleaned
	}
	return "+1" + cleaned
}

// Valid reports whether a normalized number has the E.164 shape: a leading
// plus followed by 8 to 15 digits.
func Valid(phone string) bool {
	digits, ok := strings.CutPrefix(phone, "+")
	if !ok || len(digits) < 8 || len(digits) > 15 {
		return false
	}
	return strings.IndexFunc(digits, func(r rune) bool { return r < '0' || r > '9' }) < 0
}
