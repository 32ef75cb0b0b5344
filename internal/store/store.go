// Package store owns persisted Transaction and ReviewRecord data. All other
// components operate on transient copies; a transaction becomes queryable
// only after Create has durably succeeded.
package store

import (
	"context"
	"errors"

	"github.com/jkimaro/pesaflow/backend/internal/domain"
)

// ErrDuplicateID indicates a Create call reused an existing transaction id.
var ErrDuplicateID = errors.New("transaction id already exists")

// Store is the persistence contract for screened transactions. Create must
// be called exactly once per transaction id; RecordReview appends an audit
// entry and is never rolled back.
type Store interface {
	Create(ctx context.Context, tx domain.Transaction) error
	RecordReview(ctx context.Context, review domain.ReviewRecord) error
	// QueryByRecipient returns the recipient-visible transactions (legit and
	// flagged) for the given identity, newest first.
	QueryByRecipient(ctx context.Context, recipientID string) ([]domain.Transaction, error)
	VerifyConnectivity(ctx context.Context) error
	Close(ctx context.Context) error
}

// Notifier lets a recipient session receive push notification of newly
// visible transactions, as an alternative to polling QueryByRecipient.
type Notifier interface {
	// Subscribe returns a channel delivering transactions that become visible
	// to the recipient, and a cancel function releasing the subscription.
	Subscribe(recipientID string) (<-chan domain.Transaction, func())
}
