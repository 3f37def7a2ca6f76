// Copyright 2025 Oliver Andrich
// Licensed under the EUPL-1.2

package sse

import (
	"context"

	"codeberg.org/oliverandrich/foodmaps/internal/services/notify"
)

// Payload is the JSON body of a notification event.
type Payload struct {
	Event     string `json:"event"`
	Subject   string `json:"subject"`
	Body      string `json:"body"`
	ListingID int64  `json:"listing_id"`
}

// Sender is the in-app notification channel.
type Sender struct {
	hub *Hub
}

// NewSender creates a Sender that pushes to hub.
func NewSender(hub *Hub) *Sender {
	return &Sender{hub: hub}
}

func (s *Sender) Name() string { return "inapp" }

// Send pushes msg to every open stream of the recipient. A recipient without
// an open stream is skipped.
func (s *Sender) Send(_ context.Context, to notify.Recipient, msg notify.Message) error {
	if !s.hub.Connected(to.UserID) {
		return notify.ErrNoAddress
	}
	event, err := FormatJSON(msg.Event, Payload{
		Event:     msg.Event,
		Subject:   msg.Subject,
		Body:      msg.Body,
		ListingID: msg.ListingID,
	})
	if err != nil {
		return err
	}
	s.hub.SendToUser(to.UserID, event)
	return nil
}
