package domain

import (
	"time"

	"github.com/shopspring/decimal"
)

// Status is the screening outcome attached to a transaction.
type Status string

const (
	StatusPending Status = "pending"
	StatusLegit   Status = "legit"
	StatusFlagged Status = "flagged"
	StatusBlocked Status = "blocked"
)

// Terminal reports whether the status is a final classification outcome.
func (s Status) Terminal() bool {
	return s == StatusLegit || s == StatusFlagged || s == StatusBlocked
}

// VisibleToRecipient reports whether a transaction with this status may be
// shown on the recipient side. A blocked transfer never reached the
// recipient, so it is never displayed there.
func (s Status) VisibleToRecipient() bool {
	return s == StatusLegit || s == StatusFlagged
}

// TransactionRequest is a caller-supplied proposal for a transfer. Balances
// are the current balances of both parties as known at submission time; the
// recipient balance may be zero when the caller does not track it.
type TransactionRequest struct {
	Initiator        string
	Recipient        string
	Amount           decimal.Decimal
	Balance          decimal.Decimal
	RecipientBalance decimal.Decimal
}

// Transaction is the persisted unit of truth for a screened transfer.
// Records are immutable once created: the status is set exactly once by the
// classifier before first persistence and the fraud probability is never
// recomputed.
type Transaction struct {
	ID                  string          `json:"id"`
	Initiator           string          `json:"initiator"`
	Recipient           string          `json:"recipient"`
	Amount              decimal.Decimal `json:"amount"`
	OldBalanceInitiator decimal.Decimal `json:"old_balance_initiator"`
	NewBalanceInitiator decimal.Decimal `json:"new_balance_initiator"`
	OldBalanceRecipient decimal.Decimal `json:"old_balance_recipient"`
	NewBalanceRecipient decimal.Decimal `json:"new_balance_recipient"`
	FraudProbability    float64         `json:"fraud_probability"`
	Status              Status          `json:"status"`
	Notes               string          `json:"notes,omitempty"`
	CreatedAt           time.Time       `json:"created_at"`
}

// ReviewRecord is an append-only audit entry created whenever the classifier
// assigns a non-legit status. It is never mutated or deleted.
type ReviewRecord struct {
	ID             string    `json:"id"`
	TransactionID  string    `json:"transaction_id"`
	ReviewedBy     string    `json:"reviewed_by"`
	ReviewedAt     time.Time `json:"reviewed_at"`
	PreviousStatus Status    `json:"previous_status"`
	NewStatus      Status    `json:"new_status"`
	Notes          string    `json:"notes,omitempty"`
}
