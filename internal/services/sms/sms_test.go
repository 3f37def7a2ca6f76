// Copyright 2025 Oliver Andrich
// Licensed under the EUPL-1.2

package sms_test

import (
	"context"
	"errors"
	"testing"

	"codeberg.org/oliverandrich/foodmaps/internal/config"
	"codeberg.org/oliverandrich/foodmaps/internal/services/notify"
	"codeberg.org/oliverandrich/foodmaps/internal/services/sms"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	twilioapi "github.com/twilio/twilio-go/rest/api/v2010"
)

type fakeAPI struct {
	err  error
	sent []*twilioapi.CreateMessageParams
}

func (f *fakeAPI) CreateMessage(params *twilioapi.CreateMessageParams) (*twilioapi.ApiV2010Message, error) {
	f.sent = append(f.sent, params)
	if f.err != nil {
		return nil, f.err
	}
	sid := "SM123"
	return &twilioapi.ApiV2010Message{Sid: &sid}, nil
}

func validSMSConfig() *config.SMSConfig {
	return &config.SMSConfig{
		AccountSID: "AC123",
		AuthToken:  "secret",
		From:       "+15550100",
	}
}

func TestNewService(t *testing.T) {
	svc, err := sms.NewService(validSMSConfig())

	require.NoError(t, err)
	assert.Equal(t, "sms", svc.Name())
}

func TestNewService_MissingFrom(t *testing.T) {
	cfg := validSMSConfig()
	cfg.From = ""

	_, err := sms.NewService(cfg)

	require.Error(t, err)
	assert.Contains(t, err.Error(), "from number is required")
}

func TestNewService_MissingCredentials(t *testing.T) {
	cfg := validSMSConfig()
	cfg.AuthToken = ""

	_, err := sms.NewService(cfg)

	require.Error(t, err)
}

func TestSend(t *testing.T) {
	api := &fakeAPI{}
	svc, err := sms.NewService(validSMSConfig(), sms.WithAPI(api))
	require.NoError(t, err)

	err = svc.Send(context.Background(),
		notify.Recipient{Phone: "(555) 010-2000"},
		notify.Message{Body: "Your code is 4821"})

	require.NoError(t, err)
	require.Len(t, api.sent, 1)
	assert.Equal(t, "+15550102000", *api.sent[0].To)
	assert.Equal(t, "+15550100", *api.sent[0].From)
	assert.Equal(t, "Your code is 4821", *api.sent[0].Body)
}

func TestSend_NoPhone(t *testing.T) {
	api := &fakeAPI{}
	svc, err := sms.NewService(validSMSConfig(), sms.WithAPI(api))
	require.NoError(t, err)

	err = svc.Send(context.Background(), notify.Recipient{Email: "a@example.org"}, notify.Message{Body: "x"})

	require.ErrorIs(t, err, notify.ErrNoAddress)
	assert.Empty(t, api.sent)
}

func TestSend_APIError(t *testing.T) {
	api := &fakeAPI{err: errors.New("status 401")}
	svc, err := sms.NewService(validSMSConfig(), sms.WithAPI(api))
	require.NoError(t, err)

	err = svc.Send(context.Background(), notify.Recipient{Phone: "+15550102000"}, notify.Message{Body: "x"})

	require.Error(t, err)
	assert.Contains(t, err.Error(), "sending sms")
}

func TestSend_CancelledContext(t *testing.T) {
	api := &fakeAPI{}
	svc, err := sms.NewService(validSMSConfig(), sms.WithAPI(api))
	require.NoError(t, err)
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	err = svc.Send(ctx, notify.Recipient{Phone: "+15550102000"}, notify.Message{Body: "x"})

	require.ErrorIs(t, err, context.Canceled)
	assert.Empty(t, api.sent)
}

func TestNormalize(t *testing.T) {
	tests := []struct {
		in   string
		want string
	}{
		{"+44 20 7946 0958", "+442079460958"},
		{"555-010-2000", "+15550102000"},
		{"(555) 010 2000", "+15550102000"},
		{"+15550102000", "+15550102000"},
		{"", ""},
	}
	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			assert.Equal(t, tt.want, sms.Normalize(tt.in))
		})
	}
}

func TestValid(t *testing.T) {
	tests := []struct {
		in   string
		want bool
	}{
		{"+15550102000", true},
		{"+442079460958", true},
		{"+15550111", true},
		{"+1555011", false},
		{"+1234567890123456", false},
		{"15550102000", false},
		{"+1abc", false},
		{"+1555O102000", false},
		{"+", false},
		{"", false},
	}
	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			assert.Equal(t, tt.want, sms.Valid(tt.in))
		})
	}
}
