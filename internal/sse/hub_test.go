// Copyright 2025 Oliver Andrich
// Licensed under the EUPL-1.2

package sse

import (
	"context"
	"strings"
	"sync"
	"testing"
	"time"

	"codeberg.org/oliverandrich/foodmaps/internal/services/notify"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func receive(t *testing.T, c *Client) string {
	t.Helper()
	select {
	case msg := <-c.Events():
		return msg
	case <-time.After(100 * time.Millisecond):
		t.Fatalf("client %s received nothing", c.ID())
		return ""
	}
}

func TestHub_RegisterAndUnregister(t *testing.T) {
	hub := NewHub()

	tab1 := hub.Register(42)
	tab2 := hub.Register(42)
	other := hub.Register(7)

	assert.NotEqual(t, tab1.ID(), tab2.ID())
	assert.Equal(t, 3, hub.ClientCount())
	assert.Equal(t, 2, hub.UserCount())
	assert.True(t, hub.Connected(42))

	hub.Unregister(tab1)
	hub.Unregister(tab1)
	assert.Equal(t, 2, hub.ClientCount())
	assert.True(t, hub.Connected(42))

	hub.Unregister(tab2)
	hub.Unregister(other)
	assert.Zero(t, hub.ClientCount())
	assert.Zero(t, hub.UserCount())
	assert.False(t, hub.Connected(42))

	_, open := <-tab1.Events()
	assert.False(t, open)
}

func TestHub_SendToUser(t *testing.T) {
	hub := NewHub()
	tab1 := hub.Register(42)
	tab2 := hub.Register(42)
	other := hub.Register(7)

	n := hub.SendToUser(42, "hello")

	assert.Equal(t, 2, n)
	assert.Equal(t, "hello", receive(t, tab1))
	assert.Equal(t, "hello", receive(t, tab2))
	select {
	case msg := <-other.Events():
		t.Fatalf("user 7 received %q", msg)
	default:
	}

	assert.Zero(t, hub.SendToUser(404, "nobody"))
}

func TestHub_Broadcast(t *testing.T) {
	hub := NewHub()
	a := hub.Register(1)
	b := hub.Register(2)

	assert.Equal(t, 2, hub.Broadcast("maintenance"))
	assert.Equal(t, "maintenance", receive(t, a))
	assert.Equal(t, "maintenance", receive(t, b))
}

func TestHub_FullBufferDrops(t *testing.T) {
	hub := NewHub()
	hub.Register(1)

	for range bufferSize {
		require.Equal(t, 1, hub.SendToUser(1, "x"))
	}

	assert.Zero(t, hub.SendToUser(1, "dropped"))
}

func TestHub_ConcurrentSendAndUnregister(t *testing.T) {
	hub := NewHub()
	var wg sync.WaitGroup

	for i := range 20 {
		wg.Add(2)
		c := hub.Register(int64(i % 3))
		go func() {
			defer wg.Done()
			hub.SendToUser(c.userID, "ping")
			hub.Broadcast("all")
		}()
		go func() {
			defer wg.Done()
			hub.Unregister(c)
		}()
	}
	wg.Wait()

	assert.Zero(t, hub.ClientCount())
}

func TestSender(t *testing.T) {
	hub := NewHub()
	sender := NewSender(hub)
	c := hub.Register(42)
	assert.Equal(t, "inapp", sender.Name())

	err := sender.Send(context.Background(),
		notify.Recipient{UserID: 42},
		notify.Message{Event: "claim_code", Body: "Your code is 4821", ListingID: 101})

	require.NoError(t, err)
	msg := receive(t, c)
	assert.True(t, strings.HasPrefix(msg, "event: claim_code\n"))
	assert.Contains(t, msg, `"listing_id":101`)
}

func TestSender_Offline(t *testing.T) {
	sender := NewSender(NewHub())

	err := sender.Send(context.Background(), notify.Recipient{UserID: 42}, notify.Message{Event: "claim_code"})

	assert.ErrorIs(t, err, notify.ErrNoAddress)
}
