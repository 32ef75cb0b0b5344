package store

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/shopspring/decimal"

	"github.com/jkimaro/pesaflow/backend/internal/domain"
)

// ErrMissingURL indicates the datastore URL is not provided.
var ErrMissingURL = errors.New("database URL is required")

// Options configures the Postgres store.
type Options struct {
	URL            string
	MaxConnections int
}

const schemaDDL = `
CREATE TABLE IF NOT EXISTS transactions (
	id                    TEXT PRIMARY KEY,
	initiator             TEXT NOT NULL,
	recipient             TEXT NOT NULL,
	amount                NUMERIC(20,2) NOT NULL,
	old_balance_initiator NUMERIC(20,2) NOT NULL,
	new_balance_initiator NUMERIC(20,2) NOT NULL,
	old_balance_recipient NUMERIC(20,2) NOT NULL,
	new_balance_recipient NUMERIC(20,2) NOT NULL,
	fraud_probability     DOUBLE PRECISION NOT NULL,
	status                TEXT NOT NULL,
	notes                 TEXT NOT NULL DEFAULT '',
	created_at            TIMESTAMPTZ NOT NULL
);

CREATE INDEX IF NOT EXISTS idx_transactions_recipient_created
	ON transactions (recipient, created_at DESC);

CREATE TABLE IF NOT EXISTS transaction_reviews (
	id              TEXT PRIMARY KEY,
	transaction_id  TEXT NOT NULL REFERENCES transactions (id),
	reviewed_by     TEXT NOT NULL,
	reviewed_at     TIMESTAMPTZ NOT NULL,
	previous_status TEXT NOT NULL,
	new_status      TEXT NOT NULL,
	notes           TEXT NOT NULL DEFAULT ''
);
`

// PostgresStore persists transactions and review records in Postgres. The
// datastore's own constraints provide concurrency control for concurrent
// Create calls.
type PostgresStore struct {
	pool *pgxpool.Pool
	hub  *Hub
}

// NewPostgresStore connects to Postgres and bootstraps the schema.
func NewPostgresStore(ctx context.Context, opts Options) (*PostgresStore, error) {
	if opts.URL == "" {
		return nil, ErrMissingURL
	}

	poolCfg, err := pgxpool.ParseConfig(opts.URL)
	if err != nil {
		return nil, fmt.Errorf("parse database URL: %w", err)
	}
	if opts.MaxConnections > 0 {
		poolCfg.MaxConns = int32(opts.MaxConnections)
	}

	pool, err := pgxpool.NewWithConfig(ctx, poolCfg)
	if err != nil {
		return nil, fmt.Errorf("connect to database: %w", err)
	}

	if _, err := pool.Exec(ctx, schemaDDL); err != nil {
		pool.Close()
		return nil, fmt.Errorf("bootstrap schema: %w", err)
	}

	return &PostgresStore{pool: pool, hub: NewHub()}, nil
}

const insertTransactionSQL = `
INSERT INTO transactions (
	id, initiator, recipient, amount,
	old_balance_initiator, new_balance_initiator,
	old_balance_recipient, new_balance_recipient,
	fraud_probability, status, notes, created_at
) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12)`

// Create persists the transaction, mapping a primary-key violation onto
// ErrDuplicateID.
func (s *PostgresStore) Create(ctx context.Context, tx domain.Transaction) error {
	_, err := s.pool.Exec(ctx, insertTransactionSQL,
		tx.ID, tx.Initiator, tx.Recipient, tx.Amount.String(),
		tx.OldBalanceInitiator.String(), tx.NewBalanceInitiator.String(),
		tx.OldBalanceRecipient.String(), tx.NewBalanceRecipient.String(),
		tx.FraudProbability, string(tx.Status), tx.Notes, tx.CreatedAt.UTC(),
	)
	if err != nil {
		var pgErr *pgconn.PgError
		if errors.As(err, &pgErr) && pgErr.Code == "23505" {
			return fmt.Errorf("create transaction %s: %w", tx.ID, ErrDuplicateID)
		}
		return fmt.Errorf("create transaction %s: %w", tx.ID, err)
	}

	s.hub.Publish(tx)
	return nil
}

const insertReviewSQL = `
INSERT INTO transaction_reviews (
	id, transaction_id, reviewed_by, reviewed_at,
	previous_status, new_status, notes
) VALUES ($1, $2, $3, $4, $5, $6, $7)`

// RecordReview appends an audit entry for a non-legit classification.
func (s *PostgresStore) RecordReview(ctx context.Context, review domain.ReviewRecord) error {
	_, err := s.pool.Exec(ctx, insertReviewSQL,
		review.ID, review.TransactionID, review.ReviewedBy, review.ReviewedAt.UTC(),
		string(review.PreviousStatus), string(review.NewStatus), review.Notes,
	)
	if err != nil {
		return fmt.Errorf("record review for %s: %w", review.TransactionID, err)
	}
	return nil
}

const queryByRecipientSQL = `
SELECT id, initiator, recipient, amount::text,
	old_balance_initiator::text, new_balance_initiator::text,
	old_balance_recipient::text, new_balance_recipient::text,
	fraud_probability, status, notes, created_at
FROM transactions
WHERE recipient = $1 AND status IN ('legit', 'flagged')
ORDER BY created_at DESC, id DESC`

// QueryByRecipient returns the recipient-visible transactions, newest first.
func (s *PostgresStore) QueryByRecipient(ctx context.Context, recipientID string) ([]domain.Transaction, error) {
	rows, err := s.pool.Query(ctx, queryByRecipientSQL, recipientID)
	if err != nil {
		return nil, fmt.Errorf("query transactions for %s: %w", recipientID, err)
	}
	defer rows.Close()

	var result []domain.Transaction
	for rows.Next() {
		var (
			tx      domain.Transaction
			amounts [5]string
			status  string
			created time.Time
		)
		if err := rows.Scan(
			&tx.ID, &tx.Initiator, &tx.Recipient, &amounts[0],
			&amounts[1], &amounts[2], &amounts[3], &amounts[4],
			&tx.FraudProbability, &status, &tx.Notes, &created,
		); err != nil {
			return nil, fmt.Errorf("scan transaction row: %w", err)
		}

		for i, dest := range []*decimal.Decimal{
			&tx.Amount, &tx.OldBalanceInitiator, &tx.NewBalanceInitiator,
			&tx.OldBalanceRecipient, &tx.NewBalanceRecipient,
		} {
			d, err := decimal.NewFromString(amounts[i])
			if err != nil {
				return nil, fmt.Errorf("parse stored amount %q: %w", amounts[i], err)
			}
			*dest = d
		}
		tx.Status = domain.Status(status)
		tx.CreatedAt = created
		result = append(result, tx)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate transaction rows: %w", err)
	}
	return result, nil
}

// Subscribe implements Notifier.
func (s *PostgresStore) Subscribe(recipientID string) (<-chan domain.Transaction, func()) {
	return s.hub.Subscribe(recipientID)
}

// VerifyConnectivity implements the health probe contract.
func (s *PostgresStore) VerifyConnectivity(ctx context.Context) error {
	return s.pool.Ping(ctx)
}

// Close releases the connection pool.
func (s *PostgresStore) Close(context.Context) error {
	s.pool.Close()
	return nil
}
