package service

import (
	"fmt"

	"github.com/shopspring/decimal"

	"github.com/jkimaro/pesaflow/backend/internal/domain"
)

// Validation rule names, reported in the order the rules are checked.
const (
	RuleAmount  = "amount"
	RuleBalance = "balance"
)

// ValidationError names the first rule a transfer request violated. It is
// reported to the submitter and stops the pipeline before any network or
// persistence step.
type ValidationError struct {
	Rule    string
	Message string
}

func (e *ValidationError) Error() string {
	return "validation: " + e.Message
}

// ValidateRequest checks that a proposed transfer is well-formed and
// affordable. Rules are evaluated in order: the amount must be positive, and
// the amount plus the transfer fee must not exceed the initiator's balance.
// Pure function, no side effects.
func ValidateRequest(req domain.TransactionRequest, fee decimal.Decimal) error {
	if !req.Amount.IsPositive() {
		return &ValidationError{
			Rule:    RuleAmount,
			Message: fmt.Sprintf("amount %s must be greater than zero", req.Amount),
		}
	}
	if req.Amount.Add(fee).GreaterThan(req.Balance) {
		return &ValidationError{
			Rule:    RuleBalance,
			Message: fmt.Sprintf("amount %s plus fee %s exceeds balance %s", req.Amount, fee, req.Balance),
		}
	}
	return nil
}
