package handlers

import (
	"encoding/json"
	"errors"
	"io"
	"log/slog"

	"github.com/livepoll/livepoll/internal/hub"
	"golang.org/x/net/websocket"
)

// wsFrame is an inbound client frame: joinPoll or leavePoll.
type wsFrame struct {
	Type   string `json:"type"`
	PollID string `json:"poll_id"`
}

const (
	frameJoinPoll  = "joinPoll"
	frameLeavePoll = "leavePoll"
)

type WSHandler struct {
	log *slog.Logger
	hub *hub.Hub
}

func NewWSHandler(log *slog.Logger, h *hub.Hub) *WSHandler {
	return &WSHandler{log: log, hub: h}
}

// Handler serves one websocket connection: a writer goroutine drains the
// subscriber queue (events for a poll reach the client in publish order) and
// the read loop scopes the subscription. Drop on teardown is idempotent, so a
// publish racing the disconnect is harmless.
func (h *WSHandler) Handler() websocket.Handler {
	return func(conn *websocket.Conn) {
		defer conn.Close()

		sub := h.hub.Register()
		defer h.hub.Drop(sub)

		go func() {
			encoder := json.NewEncoder(conn)
			for event := range sub.Events() {
				if err := encoder.Encode(event); err != nil {
					return
				}
			}
		}()

		decoder := json.NewDecoder(conn)
		for {
			var frame wsFrame
			if err := decoder.Decode(&frame); err != nil {
				if !errors.Is(err, io.EOF) {
					h.log.Debug("websocket read failed", slog.String("error", err.Error()))
				}
				return
			}

			switch frame.Type {
			case frameJoinPoll:
				if frame.PollID != "" {
					h.hub.Subscribe(sub, frame.PollID)
				}
			case frameLeavePoll:
				if frame.PollID != "" {
					h.hub.Unsubscribe(sub, frame.PollID)
				}
			}
		}
	}
}
