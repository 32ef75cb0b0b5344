package server

import (
	"context"
	"net/http"
	"time"

	"github.com/gorilla/websocket"

	"github.com/jkimaro/pesaflow/backend/internal/domain"
)

const (
	feedWriteTimeout = 10 * time.Second
	feedPongTimeout  = 60 * time.Second
)

type feedMessage struct {
	Recipient    string               `json:"recipient"`
	Transactions []domain.Transaction `json:"transactions"`
	SentAt       time.Time            `json:"sent_at"`
}

// serveFeed upgrades the connection and streams recipient-view snapshots
// until the client disconnects. Each message carries the full ordered list;
// transactions only ever appear, never disappear or reorder.
func (h *APIHandlers) serveFeed(w http.ResponseWriter, r *http.Request, recipientID string) {
	upgrader := websocket.Upgrader{
		ReadBufferSize:  1024,
		WriteBufferSize: 4096,
		CheckOrigin:     h.checkWSOrigin,
	}

	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		// Upgrade already wrote the HTTP error response.
		h.logger.Warn("websocket upgrade failed", "recipient", recipientID, "error", err)
		return
	}
	defer conn.Close()

	ctx, cancel := context.WithCancel(r.Context())
	defer cancel()

	// The read loop only consumes control frames; its exit means the client
	// went away and the view loop should stop.
	go func() {
		defer cancel()
		conn.SetReadLimit(512)
		_ = conn.SetReadDeadline(time.Now().Add(feedPongTimeout))
		conn.SetPongHandler(func(string) error {
			return conn.SetReadDeadline(time.Now().Add(feedPongTimeout))
		})
		for {
			if _, _, err := conn.ReadMessage(); err != nil {
				return
			}
		}
	}()

	emit := func(_ context.Context, txs []domain.Transaction) error {
		if txs == nil {
			txs = []domain.Transaction{}
		}
		if err := conn.SetWriteDeadline(time.Now().Add(feedWriteTimeout)); err != nil {
			return err
		}
		return conn.WriteJSON(feedMessage{
			Recipient:    recipientID,
			Transactions: txs,
			SentAt:       time.Now().UTC(),
		})
	}

	if err := h.view.Run(ctx, recipientID, emit); err != nil {
		h.logger.Info("feed session ended", "recipient", recipientID, "error", err)
	}

	_ = conn.WriteControl(websocket.CloseMessage,
		websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""),
		time.Now().Add(time.Second))
}

func (h *APIHandlers) checkWSOrigin(r *http.Request) bool {
	if h.wsAllowed == nil {
		return true
	}
	origin := r.Header.Get("Origin")
	if origin == "" {
		return true
	}
	if _, ok := h.wsAllowed["*"]; ok {
		return true
	}
	_, ok := h.wsAllowed[origin]
	return ok
}
