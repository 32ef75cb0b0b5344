package store

import (
	"sync"

	"github.com/jkimaro/pesaflow/backend/internal/domain"
)

// Hub is a process-local fan-out of newly created transactions keyed by
// recipient. Store implementations publish after a successful Create; a slow
// subscriber misses the notification rather than blocking the writer, and
// falls back to its next poll.
type Hub struct {
	mu   sync.Mutex
	next int
	subs map[string]map[int]chan domain.Transaction
}

// NewHub constructs an empty Hub.
func NewHub() *Hub {
	return &Hub{subs: make(map[string]map[int]chan domain.Transaction)}
}

// Subscribe implements Notifier.
func (h *Hub) Subscribe(recipientID string) (<-chan domain.Transaction, func()) {
	h.mu.Lock()
	defer h.mu.Unlock()

	id := h.next
	h.next++

	ch := make(chan domain.Transaction, 16)
	if h.subs[recipientID] == nil {
		h.subs[recipientID] = make(map[int]chan domain.Transaction)
	}
	h.subs[recipientID][id] = ch

	cancel := func() {
		h.mu.Lock()
		defer h.mu.Unlock()
		if set, ok := h.subs[recipientID]; ok {
			if _, ok := set[id]; ok {
				delete(set, id)
				close(ch)
				if len(set) == 0 {
					delete(h.subs, recipientID)
				}
			}
		}
	}
	return ch, cancel
}

// Publish delivers a transaction to the recipient's subscribers. Only
// recipient-visible statuses are published; a blocked transfer never reaches
// the recipient side.
func (h *Hub) Publish(tx domain.Transaction) {
	if !tx.Status.VisibleToRecipient() {
		return
	}

	h.mu.Lock()
	defer h.mu.Unlock()
	for _, ch := range h.subs[tx.Recipient] {
		select {
		case ch <- tx:
		default:
		}
	}
}
