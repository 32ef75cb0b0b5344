package service

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"strings"
	"testing"
	"time"

	"github.com/shopspring/decimal"

	"github.com/jkimaro/pesaflow/backend/internal/domain"
	"github.com/jkimaro/pesaflow/backend/internal/store"
)

type stubScorer struct {
	probability  float64
	err          error
	calls        int
	lastDocument []byte
}

func (s *stubScorer) Score(_ context.Context, document []byte) (float64, error) {
	s.calls++
	s.lastDocument = append([]byte(nil), document...)
	if s.err != nil {
		return 0, s.err
	}
	return s.probability, nil
}

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func testPipeline(st store.Store, scorer Scorer, failOpen bool) *Pipeline {
	return NewPipeline(st, scorer, PipelineConfig{
		Thresholds: DefaultThresholds(),
		Currency:   "TZS",
		FailOpen:   failOpen,
	}, testLogger(), func() time.Time {
		return time.Date(2025, 3, 14, 9, 26, 53, 0, time.UTC)
	})
}

func TestSubmitEndToEndBlocked(t *testing.T) {
	mem := store.NewMemoryStore()
	scorer := &stubScorer{probability: 0.95}
	pipeline := testPipeline(mem, scorer, true)

	tx, err := pipeline.Submit(context.Background(), domain.TransactionRequest{
		Initiator: "255713000001",
		Recipient: "4928304117905205",
		Amount:    decimal.NewFromInt(50000),
		Balance:   decimal.NewFromInt(100000),
	})
	if err != nil {
		t.Fatalf("expected no error, got %v", err)
	}

	if tx.Status != domain.StatusBlocked {
		t.Fatalf("expected status blocked, got %s", tx.Status)
	}
	if tx.Notes != NoteBlocked {
		t.Fatalf("expected note %q, got %q", NoteBlocked, tx.Notes)
	}
	if tx.FraudProbability != 0.95 {
		t.Fatalf("expected fraud probability 0.95, got %v", tx.FraudProbability)
	}
	if !tx.NewBalanceInitiator.Equal(decimal.NewFromInt(50000)) {
		t.Fatalf("expected initiator balance 50000, got %s", tx.NewBalanceInitiator)
	}
	if !tx.NewBalanceRecipient.Equal(decimal.NewFromInt(50000)) {
		t.Fatalf("expected recipient balance 50000, got %s", tx.NewBalanceRecipient)
	}

	stored, ok := mem.Get(tx.ID)
	if !ok {
		t.Fatal("expected transaction to be persisted")
	}
	if stored.Status != domain.StatusBlocked {
		t.Fatalf("expected persisted status blocked, got %s", stored.Status)
	}

	reviews := mem.Reviews()
	if len(reviews) != 1 {
		t.Fatalf("expected 1 review record, got %d", len(reviews))
	}
	review := reviews[0]
	if review.TransactionID != tx.ID {
		t.Fatalf("expected review for %s, got %s", tx.ID, review.TransactionID)
	}
	if review.PreviousStatus != domain.StatusPending {
		t.Fatalf("expected previous status pending, got %s", review.PreviousStatus)
	}
	if review.NewStatus != domain.StatusBlocked {
		t.Fatalf("expected new status blocked, got %s", review.NewStatus)
	}
	if review.ReviewedBy != "system" {
		t.Fatalf("expected reviewer system, got %s", review.ReviewedBy)
	}
	if review.Notes != NoteBlocked {
		t.Fatalf("expected review note %q, got %q", NoteBlocked, review.Notes)
	}
}

func TestSubmitLegitCreatesNoReview(t *testing.T) {
	mem := store.NewMemoryStore()
	pipeline := testPipeline(mem, &stubScorer{probability: 0.3}, true)

	tx, err := pipeline.Submit(context.Background(), domain.TransactionRequest{
		Initiator: "a",
		Recipient: "b",
		Amount:    decimal.NewFromInt(100),
		Balance:   decimal.NewFromInt(1000),
	})
	if err != nil {
		t.Fatalf("expected no error, got %v", err)
	}
	if tx.Status != domain.StatusLegit {
		t.Fatalf("expected status legit, got %s", tx.Status)
	}
	if tx.Notes != "" {
		t.Fatalf("expected empty note, got %q", tx.Notes)
	}
	if reviews := mem.Reviews(); len(reviews) != 0 {
		t.Fatalf("expected no review records, got %d", len(reviews))
	}
}

func TestSubmitFlaggedCreatesReview(t *testing.T) {
	mem := store.NewMemoryStore()
	pipeline := testPipeline(mem, &stubScorer{probability: 0.5}, true)

	tx, err := pipeline.Submit(context.Background(), domain.TransactionRequest{
		Initiator: "a",
		Recipient: "b",
		Amount:    decimal.NewFromInt(100),
		Balance:   decimal.NewFromInt(1000),
	})
	if err != nil {
		t.Fatalf("expected no error, got %v", err)
	}
	if tx.Status != domain.StatusFlagged {
		t.Fatalf("expected status flagged at boundary 0.5, got %s", tx.Status)
	}

	reviews := mem.Reviews()
	if len(reviews) != 1 {
		t.Fatalf("expected 1 review record, got %d", len(reviews))
	}
	if reviews[0].NewStatus != domain.StatusFlagged {
		t.Fatalf("expected review status flagged, got %s", reviews[0].NewStatus)
	}
}

func TestSubmitValidationStopsBeforeScoringAndPersistence(t *testing.T) {
	mem := store.NewMemoryStore()
	scorer := &stubScorer{probability: 0.1}
	pipeline := testPipeline(mem, scorer, true)

	_, err := pipeline.Submit(context.Background(), domain.TransactionRequest{
		Initiator: "a",
		Recipient: "b",
		Amount:    decimal.NewFromInt(2000),
		Balance:   decimal.NewFromInt(1000),
	})

	var validationErr *ValidationError
	if !errors.As(err, &validationErr) {
		t.Fatalf("expected *ValidationError, got %v", err)
	}
	if scorer.calls != 0 {
		t.Fatalf("expected no scoring call, got %d", scorer.calls)
	}
	if txs, _ := mem.QueryByRecipient(context.Background(), "b"); len(txs) != 0 {
		t.Fatalf("expected nothing persisted, got %d transactions", len(txs))
	}
}

func TestSubmitFailOpenDefaultsToLegit(t *testing.T) {
	mem := store.NewMemoryStore()
	scorer := &stubScorer{err: errors.New("connection refused")}
	pipeline := testPipeline(mem, scorer, true)

	tx, err := pipeline.Submit(context.Background(), domain.TransactionRequest{
		Initiator: "a",
		Recipient: "b",
		Amount:    decimal.NewFromInt(100),
		Balance:   decimal.NewFromInt(1000),
	})
	if err != nil {
		t.Fatalf("expected fail-open submission to succeed, got %v", err)
	}
	if tx.FraudProbability != 0.0 {
		t.Fatalf("expected probability 0.0, got %v", tx.FraudProbability)
	}
	if tx.Status != domain.StatusLegit {
		t.Fatalf("expected status legit, got %s", tx.Status)
	}
	if _, ok := mem.Get(tx.ID); !ok {
		t.Fatal("expected transaction to be persisted")
	}
}

func TestSubmitFailClosedReturnsScoringError(t *testing.T) {
	mem := store.NewMemoryStore()
	scoringErr := errors.New("oracle down")
	pipeline := testPipeline(mem, &stubScorer{err: scoringErr}, false)

	_, err := pipeline.Submit(context.Background(), domain.TransactionRequest{
		Initiator: "a",
		Recipient: "b",
		Amount:    decimal.NewFromInt(100),
		Balance:   decimal.NewFromInt(1000),
	})
	if !errors.Is(err, scoringErr) {
		t.Fatalf("expected scoring error, got %v", err)
	}
	if txs, _ := mem.QueryByRecipient(context.Background(), "b"); len(txs) != 0 {
		t.Fatalf("expected nothing persisted, got %d transactions", len(txs))
	}
}

func TestSubmitPersistenceFailureSurfaces(t *testing.T) {
	mem := store.NewMemoryStore().WithCreateError(errors.New("backend unavailable"))
	pipeline := testPipeline(mem, &stubScorer{probability: 0.95}, true)

	_, err := pipeline.Submit(context.Background(), domain.TransactionRequest{
		Initiator: "a",
		Recipient: "b",
		Amount:    decimal.NewFromInt(100),
		Balance:   decimal.NewFromInt(1000),
	})
	if err == nil {
		t.Fatal("expected persistence error, got none")
	}
	if reviews := mem.Reviews(); len(reviews) != 0 {
		t.Fatalf("expected no review after failed create, got %d", len(reviews))
	}
}

func TestSubmitReviewFailureIsNonFatal(t *testing.T) {
	mem := store.NewMemoryStore().WithReviewError(errors.New("audit table locked"))
	pipeline := testPipeline(mem, &stubScorer{probability: 0.95}, true)

	tx, err := pipeline.Submit(context.Background(), domain.TransactionRequest{
		Initiator: "a",
		Recipient: "b",
		Amount:    decimal.NewFromInt(100),
		Balance:   decimal.NewFromInt(1000),
	})
	if err != nil {
		t.Fatalf("expected submission to survive review failure, got %v", err)
	}
	if _, ok := mem.Get(tx.ID); !ok {
		t.Fatal("expected transaction to remain persisted")
	}
	if reviews := mem.Reviews(); len(reviews) != 0 {
		t.Fatalf("expected no review records, got %d", len(reviews))
	}
}

func TestSubmitAppliesTransferFee(t *testing.T) {
	mem := store.NewMemoryStore()
	pipeline := NewPipeline(mem, &stubScorer{probability: 0.1}, PipelineConfig{
		Thresholds:  DefaultThresholds(),
		TransferFee: decimal.NewFromInt(1000),
		Currency:    "TZS",
		FailOpen:    true,
	}, testLogger(), nil)

	tx, err := pipeline.Submit(context.Background(), domain.TransactionRequest{
		Initiator: "a",
		Recipient: "b",
		Amount:    decimal.NewFromInt(5000),
		Balance:   decimal.NewFromInt(10000),
	})
	if err != nil {
		t.Fatalf("expected no error, got %v", err)
	}
	// Fee comes out of the initiator; the recipient receives the amount only.
	if !tx.NewBalanceInitiator.Equal(decimal.NewFromInt(4000)) {
		t.Fatalf("expected initiator balance 4000, got %s", tx.NewBalanceInitiator)
	}
	if !tx.NewBalanceRecipient.Equal(decimal.NewFromInt(5000)) {
		t.Fatalf("expected recipient balance 5000, got %s", tx.NewBalanceRecipient)
	}
}

func TestSubmitSendsEncodedDocumentToScorer(t *testing.T) {
	mem := store.NewMemoryStore()
	scorer := &stubScorer{probability: 0.1}
	pipeline := testPipeline(mem, scorer, true)

	if _, err := pipeline.Submit(context.Background(), domain.TransactionRequest{
		Initiator: "255713000001",
		Recipient: "4928304117905205",
		Amount:    decimal.NewFromInt(50000),
		Balance:   decimal.NewFromInt(100000),
	}); err != nil {
		t.Fatalf("expected no error, got %v", err)
	}

	document := string(scorer.lastDocument)
	if !strings.Contains(document, "<Document") {
		t.Fatalf("expected payment document, got %q", document)
	}
	if !strings.Contains(document, `<InstdAmt Ccy="TZS">50000.00</InstdAmt>`) {
		t.Fatalf("expected instructed amount in document, got %q", document)
	}
}

func TestHighValue(t *testing.T) {
	advisory := decimal.NewFromInt(1_000_000)

	if HighValue(decimal.NewFromInt(1_000_000), advisory) {
		t.Fatal("expected amount at threshold to not be high value")
	}
	if !HighValue(decimal.NewFromInt(1_000_001), advisory) {
		t.Fatal("expected amount above threshold to be high value")
	}
	if HighValue(decimal.NewFromInt(5_000_000), decimal.Zero) {
		t.Fatal("expected disabled advisory to never trigger")
	}
}
