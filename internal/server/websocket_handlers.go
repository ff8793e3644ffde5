package server

import (
	"encoding/json"
	"log/slog"

	"warden/internal/observability"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/websocket/v2"
)

// StatusFeedHandler streams session transitions to the dashboard. The
// optional "tenant" query parameter narrows the feed to one tenant. The first
// message is a snapshot of every tracked session.
func (s *Server) StatusFeedHandler() fiber.Handler {
	return websocket.New(func(conn *websocket.Conn) {
		observability.ActiveStatusFeeds.Inc()
		defer observability.ActiveStatusFeeds.Dec()

		if s.hub == nil {
			_ = conn.Close()
			return
		}

		client, err := s.hub.Register(conn, conn.Query("tenant"))
		if err != nil {
			observability.Logger.Warn("status feed rejected", slog.String("error", err.Error()))
			_ = conn.WriteMessage(websocket.TextMessage, []byte(`{"error":"`+err.Error()+`"}`))
			_ = conn.Close()
			return
		}

		snapshot, err := json.Marshal(fiber.Map{
			"type":     "snapshot",
			"sessions": s.supervisor.Snapshot(),
		})
		if err == nil {
			client.TrySend(snapshot)
		}

		go client.WritePump()
		client.ReadPump()
	})
}
