// Copyright 2025 Oliver Andrich
// Licensed under the EUPL-1.2

// Package email is the SMTP notification channel.
package email

import (
	"context"
	"fmt"

	"codeberg.org/oliverandrich/foodmaps/internal/config"
	"codeberg.org/oliverandrich/foodmaps/internal/services/notify"
	"github.com/wneessen/go-mail"
)

// Transport hands a message to a mail server. *mail.Client implements it.
type Transport interface {
	DialAndSendWithContext(ctx context.Context, messages ...*mail.Msg) error
}

// Service sends notifications by email.
type Service struct {
	cfg       *config.SMTPConfig
	transport Transport
}

// Option configures a Service.
type Option func(*Service)

// WithTransport replaces the SMTP client built from the configuration.
func WithTransport(t Transport) Option {
	return func(s *Service) {
		s.transport = t
	}
}

// NewService creates a new email service.
func NewService(cfg *config.SMTPConfig, opts ...Option) (*Service, error) {
	if cfg.Host == "" {
		return nil, fmt.Errorf("SMTP host is required")
	}
	if cfg.From == "" {
		return nil, fmt.Errorf("SMTP from address is required")
	}

	s := &Service{cfg: cfg}
	for _, opt := range opts {
		opt(s)
	}

	if s.transport == nil {
		client, err := newClient(cfg)
		if err != nil {
			return nil, err
		}
		s.transport = client
	}

	return s, nil
}

func (s *Service) Name() string { return "email" }

// Send delivers msg to the recipient's email address.
func (s *Service) Send(ctx context.Context, to notify.Recipient, msg notify.Message) error {
	if to.Email == "" {
		return notify.ErrNoAddress
	}

	m, err := s.build(to.Email, msg.Subject, msg.Body)
	if err != nil {
		return err
	}

	if err := s.transport.DialAndSendWithContext(ctx, m); err != nil {
		return fmt.Errorf("sending email: %w", err)
	}
	return nil
}

func (s *Service) build(to, subject, body string) (*mail.Msg, error) {
	msg := mail.NewMsg()

	if s.cfg.FromName != "" {
		if err := msg.FromFormat(s.cfg.FromName, s.cfg.From); err != nil {
			return nil, fmt.Errorf("setting from address: %w", err)
		}
	} else {
		if err := msg.From(s.cfg.From); err != nil {
			return nil, fmt.Errorf("setting from address: %w", err)
		}
	}

	if err := msg.To(to); err != nil {
		return nil, fmt.Errorf("setting to address: %w", err)
	}

	msg.Subject(subject)
	msg.SetBodyString(mail.TypeTextPlain, body)
	return msg, nil
}

func newClient(cfg *config.SMTPConfig) (*mail.Client, error) {
	opts := []mail.Option{
		mail.WithPort(cfg.Port),
	}

	// Use implicit TLS (SSL) for port 465, STARTTLS for others
	if cfg.TLS {
		opts = append(opts, mail.WithTLSPolicy(mail.TLSMandatory))
		if cfg.Port == 465 {
			opts = append(opts, mail.WithSSL())
		}
	} else {
		opts = append(opts, mail.WithTLSPolicy(mail.NoTLS))
	}

	if cfg.Username != "" && cfg.Password != "" {
		opts = append(opts,
			mail.WithSMTPAuth(mail.SMTPAuthPlain),
			mail.WithUsername(cfg.Username),
			mail.WithPassword(cfg.Password),
		)
	}

	client, err := mail.NewClient(cfg.Host, opts...)
	if err != nil {
		return nil, fmt.Errorf("creating mail client: %w", err)
	}
	return client, nil
}
