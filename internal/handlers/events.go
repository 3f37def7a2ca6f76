// Copyright 2025 Oliver Andrich
// Licensed under the EUPL-1.2

package handlers

import (
	"log/slog"
	"net/http"
	"time"

	"codeberg.org/oliverandrich/foodmaps/internal/sse"
	"github.com/labstack/echo/v4"
)

const heartbeatInterval = 30 * time.Second

// Events streams the caller's notifications as server-sent events.
func (h *Handlers) Events(c echo.Context) error {
	user, err := caller(c)
	if err != nil {
		return err
	}
	if h.hub == nil {
		return echo.NewHTTPError(http.StatusNotFound, "event stream is disabled")
	}

	w := c.Response()
	w.Header().Set(echo.HeaderContentType, "text/event-stream")
	w.Header().Set("Cache-Control", "no-cache")
	w.Header().Set("Connection", "keep-alive")
	w.Header().Set("X-Accel-Buffering", "no") // disable nginx buffering
	w.WriteHeader(http.StatusOK)

	client := h.hub.Register(user.ID)
	defer h.hub.Unregister(client)
	slog.Debug("sse_connected", "user_id", user.ID, "connection", client.ID())

	if _, err := w.Write([]byte(sse.FormatEvent("connected", client.ID()))); err != nil {
		return nil
	}
	w.Flush()

	ticker := time.NewTicker(heartbeatInterval)
	defer ticker.Stop()

	ctx := c.Request().Context()
	for {
		select {
		case <-ctx.Done():
			return nil
		case <-ticker.C:
			if _, err := w.Write([]byte(sse.Heartbeat)); err != nil {
				return nil
			}
			w.Flush()
		case msg, ok := <-client.Events():
			if !ok {
				return nil
			}
			if _, err := w.Write([]byte(msg)); err != nil {
				return nil
			}
			w.Flush()
		}
	}
}
