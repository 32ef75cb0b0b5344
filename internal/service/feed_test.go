package service

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/shopspring/decimal"

	"github.com/jkimaro/pesaflow/backend/internal/domain"
	"github.com/jkimaro/pesaflow/backend/internal/store"
)

func seedTransaction(t *testing.T, mem *store.MemoryStore, id, recipient string, status domain.Status, createdAt time.Time) {
	t.Helper()
	err := mem.Create(context.Background(), domain.Transaction{
		ID:        id,
		Initiator: "initiator",
		Recipient: recipient,
		Amount:    decimal.NewFromInt(100),
		Status:    status,
		CreatedAt: createdAt,
	})
	if err != nil {
		t.Fatalf("seed transaction %s: %v", id, err)
	}
}

func TestRunEmitsInitialSnapshot(t *testing.T) {
	mem := store.NewMemoryStore()
	base := time.Date(2025, 3, 14, 9, 0, 0, 0, time.UTC)
	seedTransaction(t, mem, "tx-1", "recipient-1", domain.StatusLegit, base)

	view := NewRecipientView(mem, mem, time.Hour, testLogger())

	snapshots := make(chan []domain.Transaction, 1)
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	done := make(chan error, 1)
	go func() {
		done <- view.Run(ctx, "recipient-1", func(_ context.Context, txs []domain.Transaction) error {
			snapshots <- txs
			return nil
		})
	}()

	select {
	case txs := <-snapshots:
		if len(txs) != 1 || txs[0].ID != "tx-1" {
			t.Fatalf("unexpected initial snapshot: %+v", txs)
		}
	case <-time.After(time.Second):
		t.Fatal("timed out waiting for initial snapshot")
	}

	cancel()
	if err := <-done; err != nil {
		t.Fatalf("expected nil on cancellation, got %v", err)
	}
}

func TestRunEmitsOnStoreNotification(t *testing.T) {
	mem := store.NewMemoryStore()
	base := time.Date(2025, 3, 14, 9, 0, 0, 0, time.UTC)

	// Interval far beyond the test deadline so only the push path can deliver.
	view := NewRecipientView(mem, mem, time.Hour, testLogger())

	snapshots := make(chan []domain.Transaction, 4)
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	done := make(chan error, 1)
	go func() {
		done <- view.Run(ctx, "recipient-1", func(_ context.Context, txs []domain.Transaction) error {
			snapshots <- txs
			return nil
		})
	}()

	select {
	case txs := <-snapshots:
		if len(txs) != 0 {
			t.Fatalf("expected empty initial snapshot, got %+v", txs)
		}
	case <-time.After(time.Second):
		t.Fatal("timed out waiting for initial snapshot")
	}

	seedTransaction(t, mem, "tx-2", "recipient-1", domain.StatusFlagged, base)

	select {
	case txs := <-snapshots:
		if len(txs) != 1 || txs[0].ID != "tx-2" {
			t.Fatalf("unexpected pushed snapshot: %+v", txs)
		}
	case <-time.After(time.Second):
		t.Fatal("timed out waiting for pushed snapshot")
	}

	cancel()
	if err := <-done; err != nil {
		t.Fatalf("expected nil on cancellation, got %v", err)
	}
}

func TestRunSkipsUnchangedSnapshots(t *testing.T) {
	mem := store.NewMemoryStore()
	base := time.Date(2025, 3, 14, 9, 0, 0, 0, time.UTC)
	seedTransaction(t, mem, "tx-3", "recipient-1", domain.StatusLegit, base)

	view := NewRecipientView(mem, nil, 5*time.Millisecond, testLogger())

	emits := make(chan struct{}, 64)
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	done := make(chan error, 1)
	go func() {
		done <- view.Run(ctx, "recipient-1", func(context.Context, []domain.Transaction) error {
			emits <- struct{}{}
			return nil
		})
	}()

	<-emits
	// Let several ticks pass with an unchanged store.
	time.Sleep(50 * time.Millisecond)
	cancel()
	if err := <-done; err != nil {
		t.Fatalf("expected nil on cancellation, got %v", err)
	}

	select {
	case <-emits:
		t.Fatal("expected no further emits for an unchanged snapshot")
	default:
	}
}

func TestRunStopsWhenEmitFails(t *testing.T) {
	mem := store.NewMemoryStore()
	view := NewRecipientView(mem, nil, time.Hour, testLogger())

	emitErr := errors.New("session gone")
	err := view.Run(context.Background(), "recipient-1", func(context.Context, []domain.Transaction) error {
		return emitErr
	})
	if !errors.Is(err, emitErr) {
		t.Fatalf("expected emit error, got %v", err)
	}
}
