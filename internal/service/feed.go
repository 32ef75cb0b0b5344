package service

import (
	"context"
	"log/slog"
	"time"

	"github.com/jkimaro/pesaflow/backend/internal/domain"
	"github.com/jkimaro/pesaflow/backend/internal/store"
)

// FeedQuerier is the read-only store surface the view loop needs.
type FeedQuerier interface {
	QueryByRecipient(ctx context.Context, recipientID string) ([]domain.Transaction, error)
}

// EmitFunc receives each new ordered snapshot of the recipient's visible
// transactions. Returning an error stops the loop.
type EmitFunc func(ctx context.Context, txs []domain.Transaction) error

// RecipientView keeps a recipient session's transaction list current. It
// re-queries on push notification from the store and on a fixed-interval
// tick as fallback, emitting only when the snapshot changed. The loop never
// mutates store state and stops when its context is cancelled.
type RecipientView struct {
	querier  FeedQuerier
	notifier store.Notifier
	interval time.Duration
	logger   *slog.Logger
}

// NewRecipientView constructs a view loop. notifier may be nil, leaving
// polling as the only transport. A non-positive interval defaults to 2s.
func NewRecipientView(querier FeedQuerier, notifier store.Notifier, interval time.Duration, logger *slog.Logger) *RecipientView {
	if interval <= 0 {
		interval = 2 * time.Second
	}
	return &RecipientView{
		querier:  querier,
		notifier: notifier,
		interval: interval,
		logger:   logger,
	}
}

// Run serves one recipient session until ctx is cancelled or emit fails.
// Cancellation is normal teardown and returns nil.
func (v *RecipientView) Run(ctx context.Context, recipientID string, emit EmitFunc) error {
	var (
		notifyCh <-chan domain.Transaction
		cancel   func()
	)
	if v.notifier != nil {
		notifyCh, cancel = v.notifier.Subscribe(recipientID)
		defer cancel()
	}

	ticker := time.NewTicker(v.interval)
	defer ticker.Stop()

	var last []domain.Transaction
	first := true

	refresh := func() error {
		txs, err := v.querier.QueryByRecipient(ctx, recipientID)
		if err != nil {
			// Transient query failures wait for the next tick; records can
			// only appear, never disappear, so a stale view stays valid.
			v.logger.Warn("recipient view query failed", "recipient", recipientID, "error", err)
			return nil
		}
		if !first && sameSnapshot(last, txs) {
			return nil
		}
		if err := emit(ctx, txs); err != nil {
			return err
		}
		last = txs
		first = false
		return nil
	}

	if err := refresh(); err != nil {
		return err
	}

	for {
		select {
		case <-ctx.Done():
			return nil
		case <-ticker.C:
			if err := refresh(); err != nil {
				return err
			}
		case _, ok := <-notifyCh:
			if !ok {
				notifyCh = nil
				continue
			}
			if err := refresh(); err != nil {
				return err
			}
		}
	}
}

// sameSnapshot compares ordered id sequences. Transactions are immutable
// after creation, so identical id order means an identical view.
func sameSnapshot(a, b []domain.Transaction) bool {
	if len(a) != len(b) {
		return false
	}
	for i := range a {
		if a[i].ID != b[i].ID {
			return false
		}
	}
	return true
}
