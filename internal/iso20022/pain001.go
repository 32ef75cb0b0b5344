// Package iso20022 encodes screened transfers into a payment-initiation
// document modeled on the pain.001 customer credit transfer initiation
// message. The encoding is deterministic: the same logical transaction always
// marshals to byte-identical output, with monetary values fixed to two
// decimal places.
package iso20022

import (
	"encoding/xml"
	"fmt"
	"time"

	"github.com/jkimaro/pesaflow/backend/internal/domain"
)

const namespace = "urn:iso:std:iso:20022:tech:xsd:pain.001.001.03"

// EncodingError reports a required document field that was absent. It
// indicates a broken invariant upstream (the validator should have rejected
// the request), not a user-facing condition.
type EncodingError struct {
	Field string
}

func (e *EncodingError) Error() string {
	return fmt.Sprintf("payment encoding: required field %s is absent", e.Field)
}

// Document is the root of the credit transfer initiation message.
type Document struct {
	XMLName    xml.Name   `xml:"Document"`
	Namespace  string     `xml:"xmlns,attr"`
	Initiation Initiation `xml:"CstmrCdtTrfInitn"`
}

// Initiation groups the header and the single payment instruction.
type Initiation struct {
	GroupHeader GroupHeader        `xml:"GrpHdr"`
	Payment     PaymentInstruction `xml:"PmtInf"`
	Balances    BalanceEnvelope    `xml:"SplmtryData>Envlp>BalRpt"`
}

// GroupHeader identifies the message and carries the control sum.
type GroupHeader struct {
	MessageID            string `xml:"MsgId"`
	CreationDateTime     string `xml:"CreDtTm"`
	NumberOfTransactions string `xml:"NbOfTxs"`
	ControlSum           string `xml:"CtrlSum"`
}

// PaymentInstruction carries the debtor side and the credit transfer detail.
type PaymentInstruction struct {
	PaymentInfoID string         `xml:"PmtInfId"`
	Method        string         `xml:"PmtMtd"`
	Debtor        Party          `xml:"Dbtr"`
	DebtorAccount Account        `xml:"DbtrAcct"`
	Credit        CreditTransfer `xml:"CdtTrfTxInf"`
}

// CreditTransfer is the single transfer within the instruction.
type CreditTransfer struct {
	EndToEndID      string         `xml:"PmtId>EndToEndId"`
	Amount          CurrencyAmount `xml:"Amt>InstdAmt"`
	Creditor        Party          `xml:"Cdtr"`
	CreditorAccount Account        `xml:"CdtrAcct"`
}

// Party names a transaction participant.
type Party struct {
	Name string `xml:"Nm"`
}

// Account references a participant account by opaque identifier.
type Account struct {
	ID string `xml:"Id>Othr>Id"`
}

// CurrencyAmount renders an amount with its currency code attribute.
type CurrencyAmount struct {
	Currency string `xml:"Ccy,attr"`
	Value    string `xml:",chardata"`
}

// BalanceEnvelope carries both parties' balance deltas as supplementary data
// for the scoring oracle.
type BalanceEnvelope struct {
	DebtorOldBalance    string `xml:"DbtrBal>Prvs"`
	DebtorNewBalance    string `xml:"DbtrBal>New"`
	CreditorOldBalance  string `xml:"CdtrBal>Prvs"`
	CreditorNewBalance  string `xml:"CdtrBal>New"`
}

// Encode serializes the transaction into the payment-initiation document.
// All identifying fields must be present; the amount must be positive.
func Encode(tx domain.Transaction, currency string) ([]byte, error) {
	switch {
	case tx.ID == "":
		return nil, &EncodingError{Field: "id"}
	case tx.Initiator == "":
		return nil, &EncodingError{Field: "initiator"}
	case tx.Recipient == "":
		return nil, &EncodingError{Field: "recipient"}
	case !tx.Amount.IsPositive():
		return nil, &EncodingError{Field: "amount"}
	case tx.CreatedAt.IsZero():
		return nil, &EncodingError{Field: "created_at"}
	case currency == "":
		return nil, &EncodingError{Field: "currency"}
	}

	amount := tx.Amount.StringFixed(2)
	doc := Document{
		Namespace: namespace,
		Initiation: Initiation{
			GroupHeader: GroupHeader{
				MessageID:            tx.ID,
				CreationDateTime:     tx.CreatedAt.UTC().Format(time.RFC3339),
				NumberOfTransactions: "1",
				ControlSum:           amount,
			},
			Payment: PaymentInstruction{
				PaymentInfoID: tx.ID,
				Method:        "TRF",
				Debtor:        Party{Name: tx.Initiator},
				DebtorAccount: Account{ID: tx.Initiator},
				Credit: CreditTransfer{
					EndToEndID:      tx.ID,
					Amount:          CurrencyAmount{Currency: currency, Value: amount},
					Creditor:        Party{Name: tx.Recipient},
					CreditorAccount: Account{ID: tx.Recipient},
				},
			},
			Balances: BalanceEnvelope{
				DebtorOldBalance:   tx.OldBalanceInitiator.StringFixed(2),
				DebtorNewBalance:   tx.NewBalanceInitiator.StringFixed(2),
				CreditorOldBalance: tx.OldBalanceRecipient.StringFixed(2),
				CreditorNewBalance: tx.NewBalanceRecipient.StringFixed(2),
			},
		},
	}

	body, err := xml.Marshal(doc)
	if err != nil {
		return nil, fmt.Errorf("marshal payment document: %w", err)
	}
	return append([]byte(xml.Header), body...), nil
}
