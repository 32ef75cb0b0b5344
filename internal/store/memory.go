package store

import (
	"context"
	"fmt"
	"sort"
	"sync"

	"github.com/jkimaro/pesaflow/backend/internal/domain"
)

// MemoryStore is an in-memory implementation of the Store interface. It backs
// unit tests and serves as a zero-dependency backend for local runs.
type MemoryStore struct {
	hub *Hub

	mu           sync.Mutex
	transactions map[string]domain.Transaction
	reviews      []domain.ReviewRecord
	createErr    error
	reviewErr    error
	connectivity error
}

// NewMemoryStore instantiates an empty in-memory store.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		hub:          NewHub(),
		transactions: make(map[string]domain.Transaction),
	}
}

// WithCreateError forces subsequent Create calls to fail with err.
func (m *MemoryStore) WithCreateError(err error) *MemoryStore {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.createErr = err
	return m
}

// WithReviewError forces subsequent RecordReview calls to fail with err.
func (m *MemoryStore) WithReviewError(err error) *MemoryStore {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.reviewErr = err
	return m
}

// WithConnectivityError forces VerifyConnectivity to return the supplied error.
func (m *MemoryStore) WithConnectivityError(err error) *MemoryStore {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.connectivity = err
	return m
}

// Create persists the transaction, rejecting duplicate ids.
func (m *MemoryStore) Create(_ context.Context, tx domain.Transaction) error {
	m.mu.Lock()
	if m.createErr != nil {
		err := m.createErr
		m.mu.Unlock()
		return err
	}
	if _, exists := m.transactions[tx.ID]; exists {
		m.mu.Unlock()
		return fmt.Errorf("create transaction %s: %w", tx.ID, ErrDuplicateID)
	}
	m.transactions[tx.ID] = tx
	m.mu.Unlock()

	m.hub.Publish(tx)
	return nil
}

// RecordReview appends an audit entry for a non-legit classification.
func (m *MemoryStore) RecordReview(_ context.Context, review domain.ReviewRecord) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.reviewErr != nil {
		return m.reviewErr
	}
	if _, exists := m.transactions[review.TransactionID]; !exists {
		return fmt.Errorf("record review: transaction %s not found", review.TransactionID)
	}
	m.reviews = append(m.reviews, review)
	return nil
}

// QueryByRecipient returns the recipient-visible transactions, newest first.
func (m *MemoryStore) QueryByRecipient(_ context.Context, recipientID string) ([]domain.Transaction, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	var result []domain.Transaction
	for _, tx := range m.transactions {
		if tx.Recipient == recipientID && tx.Status.VisibleToRecipient() {
			result = append(result, tx)
		}
	}
	sort.Slice(result, func(i, j int) bool {
		if result[i].CreatedAt.Equal(result[j].CreatedAt) {
			return result[i].ID > result[j].ID
		}
		return result[i].CreatedAt.After(result[j].CreatedAt)
	})
	return result, nil
}

// Subscribe implements Notifier.
func (m *MemoryStore) Subscribe(recipientID string) (<-chan domain.Transaction, func()) {
	return m.hub.Subscribe(recipientID)
}

// VerifyConnectivity implements the health probe contract.
func (m *MemoryStore) VerifyConnectivity(context.Context) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.connectivity
}

// Close implements Store.
func (m *MemoryStore) Close(context.Context) error { return nil }

// Get returns the stored transaction, if any.
func (m *MemoryStore) Get(id string) (domain.Transaction, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	tx, ok := m.transactions[id]
	return tx, ok
}

// Reviews returns a snapshot of recorded review entries.
func (m *MemoryStore) Reviews() []domain.ReviewRecord {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]domain.ReviewRecord(nil), m.reviews...)
}
