// Package service implements the transaction fraud-screening and settlement
// pipeline and the recipient view loop.
package service

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/jkimaro/pesaflow/backend/internal/domain"
	"github.com/jkimaro/pesaflow/backend/internal/iso20022"
	"github.com/jkimaro/pesaflow/backend/internal/store"
)

// reviewedBySystem marks audit entries written by the classifier rather than
// a human reviewer.
const reviewedBySystem = "system"

// Scorer is the fraud-scoring contract required by the pipeline.
type Scorer interface {
	Score(ctx context.Context, document []byte) (float64, error)
}

// PipelineConfig parameterizes one pipeline instance.
type PipelineConfig struct {
	Thresholds  Thresholds
	TransferFee decimal.Decimal
	Currency    string
	// FailOpen controls what happens when scoring fails: when true the
	// probability defaults to 0.0 and processing continues; when false the
	// scoring error is returned to the submitter and nothing is persisted.
	FailOpen bool
}

// Pipeline runs a submitted transfer through validation, encoding, scoring,
// classification and persistence. Each invocation is an independent
// sequential pass; concurrent submissions only share the injected store.
type Pipeline struct {
	store  store.Store
	scorer Scorer
	cfg    PipelineConfig
	logger *slog.Logger
	nowFn  func() time.Time
	idFn   func() string
}

// NewPipeline constructs a Pipeline. nowFn may be nil to use time.Now.
func NewPipeline(st store.Store, scorer Scorer, cfg PipelineConfig, logger *slog.Logger, nowFn func() time.Time) *Pipeline {
	if nowFn == nil {
		nowFn = time.Now
	}
	if cfg.Currency == "" {
		cfg.Currency = "TZS"
	}
	return &Pipeline{
		store:  st,
		scorer: scorer,
		cfg:    cfg,
		logger: logger,
		nowFn:  nowFn,
		idFn:   uuid.NewString,
	}
}

// Submit screens and settles one proposed transfer. It returns the finalized
// transaction, a *ValidationError for a malformed or unaffordable request, a
// scoring error when scoring fails and the policy is fail-closed, or a
// persistence error when the record could not be written.
func (p *Pipeline) Submit(ctx context.Context, req domain.TransactionRequest) (domain.Transaction, error) {
	if err := ValidateRequest(req, p.cfg.TransferFee); err != nil {
		return domain.Transaction{}, err
	}

	now := p.nowFn().UTC()
	tx := domain.Transaction{
		ID:                  p.idFn(),
		Initiator:           req.Initiator,
		Recipient:           req.Recipient,
		Amount:              req.Amount,
		OldBalanceInitiator: req.Balance,
		NewBalanceInitiator: req.Balance.Sub(req.Amount).Sub(p.cfg.TransferFee),
		OldBalanceRecipient: req.RecipientBalance,
		NewBalanceRecipient: req.RecipientBalance.Add(req.Amount),
		Status:              domain.StatusPending,
		CreatedAt:           now,
	}

	document, err := iso20022.Encode(tx, p.cfg.Currency)
	if err != nil {
		// The validator admits only encodable requests; reaching this is a
		// broken invariant, not a user error.
		return domain.Transaction{}, fmt.Errorf("encode transaction %s: %w", tx.ID, err)
	}

	probability, err := p.scorer.Score(ctx, document)
	if err != nil {
		if !p.cfg.FailOpen {
			return domain.Transaction{}, fmt.Errorf("score transaction %s: %w", tx.ID, err)
		}
		// Fail open: an unscoreable transfer proceeds with probability 0.0,
		// which classifies it legit. Kept loud so the policy stays visible.
		p.logger.Warn("scoring failed, failing open with probability 0.0",
			"transaction_id", tx.ID,
			"error", err,
		)
		probability = 0.0
	}

	status, note := Classify(probability, p.cfg.Thresholds)
	tx.FraudProbability = probability
	tx.Status = status
	tx.Notes = note

	if err := p.store.Create(ctx, tx); err != nil {
		return domain.Transaction{}, fmt.Errorf("persist transaction %s: %w", tx.ID, err)
	}

	if status != domain.StatusLegit {
		review := domain.ReviewRecord{
			ID:             p.idFn(),
			TransactionID:  tx.ID,
			ReviewedBy:     reviewedBySystem,
			ReviewedAt:     now,
			PreviousStatus: domain.StatusPending,
			NewStatus:      status,
			Notes:          note,
		}
		if err := p.store.RecordReview(ctx, review); err != nil {
			// The transaction already happened; the missing audit entry is an
			// observable gap, not grounds for rollback.
			p.logger.Error("review record write failed, audit gap",
				"transaction_id", tx.ID,
				"new_status", string(status),
				"error", err,
			)
		}
	}

	p.logger.Info("transaction screened",
		"transaction_id", tx.ID,
		"recipient", tx.Recipient,
		"status", string(status),
		"fraud_probability", probability,
	)
	return tx, nil
}

// HighValue reports whether the amount crosses the advisory threshold shown
// to the sender before confirmation. Informational only; classification
// depends solely on the fraud score.
func HighValue(amount, advisory decimal.Decimal) bool {
	return advisory.IsPositive() && amount.GreaterThan(advisory)
}
