// Copyright 2025 Oliver Andrich
// Licensed under the EUPL-1.2

// Package sse pushes notifications to connected browsers as server-sent
// events.
package sse

import (
	"sync"

	"github.com/google/uuid"
	"github.com/samber/lo"
)

const bufferSize = 16

// Client is one open event stream.
type Client struct {
	ch     chan string
	id     string
	userID int64
}

// ID identifies the connection.
func (c *Client) ID() string { return c.id }

// Events returns the channel the stream reads from. It is closed on
// Unregister.
func (c *Client) Events() <-chan string { return c.ch }

// Hub tracks open streams per user. A user may hold several connections
// (tabs, devices).
type Hub struct {
	users map[int64][]*Client
	mu    sync.RWMutex
}

// NewHub creates a new SSE hub.
func NewHub() *Hub {
	return &Hub{users: make(map[int64][]*Client)}
}

// Register opens a connection for userID.
func (h *Hub) Register(userID int64) *Client {
	c := &Client{
		id:     uuid.NewString(),
		userID: userID,
		ch:     make(chan string, bufferSize),
	}

	h.mu.Lock()
	defer h.mu.Unlock()
	h.users[userID] = append(h.users[userID], c)
	return c
}

// Unregister closes c. Calling it twice is harmless.
func (h *Hub) Unregister(c *Client) {
	h.mu.Lock()
	defer h.mu.Unlock()

	clients, ok := h.users[c.userID]
	if !ok || !lo.Contains(clients, c) {
		return
	}
	rest := lo.Without(clients, c)
	if len(rest) == 0 {
		delete(h.users, c.userID)
	} else {
		h.users[c.userID] = rest
	}
	close(c.ch)
}

// SendToUser queues message on every connection of userID and returns how
// many accepted it. Full buffers drop the message.
func (h *Hub) SendToUser(userID int64, message string) int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return deliver(h.users[userID], message)
}

// Broadcast queues message on every connection.
func (h *Hub) Broadcast(message string) int {
	h.mu.RLock()
	defer h.mu.RUnlock()

	n := 0
	for _, clients := range h.users {
		n += deliver(clients, message)
	}
	return n
}

// deliver must run under the read lock so that Unregister cannot close a
// channel mid-send.
func deliver(clients []*Client, message string) int {
	n := 0
	for _, c := range clients {
		select {
		case c.ch <- message:
			n++
		default:
		}
	}
	return n
}

// Connected reports whether userID has an open stream.
func (h *Hub) Connected(userID int64) bool {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.users[userID]) > 0
}

// ClientCount returns the total number of connected clients.
func (h *Hub) ClientCount() int {
	h.mu.RLock()
	defer h.mu.RUnlock()

	return lo.SumBy(lo.Values(h.users), func(clients []*Client) int {
		return len(clients)
	})
}

// UserCount returns the number of unique users with active connections.
func (h *Hub) UserCount() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.users)
}
