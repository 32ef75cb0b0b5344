package server

import (
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"strings"

	"github.com/shopspring/decimal"

	"github.com/jkimaro/pesaflow/backend/internal/domain"
	"github.com/jkimaro/pesaflow/backend/internal/scoring"
	"github.com/jkimaro/pesaflow/backend/internal/service"
	"github.com/jkimaro/pesaflow/backend/internal/store"
)

// APIHandlers exposes HTTP handlers for the REST API.
type APIHandlers struct {
	logger    *slog.Logger
	pipeline  *service.Pipeline
	querier   service.FeedQuerier
	view      *service.RecipientView
	advisory  decimal.Decimal
	wsAllowed map[string]struct{}
}

// NewAPIHandlers constructs an APIHandlers instance. allowedOrigins governs
// websocket upgrades; empty means any origin is accepted.
func NewAPIHandlers(
	logger *slog.Logger,
	pipeline *service.Pipeline,
	querier service.FeedQuerier,
	view *service.RecipientView,
	advisory decimal.Decimal,
	allowedOrigins []string,
) *APIHandlers {
	var allowed map[string]struct{}
	if len(allowedOrigins) > 0 {
		allowed = make(map[string]struct{}, len(allowedOrigins))
		for _, origin := range allowedOrigins {
			allowed[strings.TrimSpace(origin)] = struct{}{}
		}
	}
	return &APIHandlers{
		logger:    logger,
		pipeline:  pipeline,
		querier:   querier,
		view:      view,
		advisory:  advisory,
		wsAllowed: allowed,
	}
}

type submitRequest struct {
	Initiator        string          `json:"initiator"`
	Recipient        string          `json:"recipient"`
	Amount           decimal.Decimal `json:"amount"`
	Balance          decimal.Decimal `json:"balance"`
	RecipientBalance decimal.Decimal `json:"recipient_balance"`
}

type submitResponse struct {
	Transaction domain.Transaction `json:"transaction"`
	HighValue   bool               `json:"high_value"`
}

func (h *APIHandlers) handleTransfers(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		methodNotAllowed(w, http.MethodPost)
		return
	}

	var req submitRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	if req.Initiator == "" || req.Recipient == "" {
		writeError(w, http.StatusBadRequest, "initiator and recipient are required")
		return
	}

	tx, err := h.pipeline.Submit(r.Context(), domain.TransactionRequest{
		Initiator:        req.Initiator,
		Recipient:        req.Recipient,
		Amount:           req.Amount,
		Balance:          req.Balance,
		RecipientBalance: req.RecipientBalance,
	})
	if err != nil {
		h.writeSubmitError(w, err)
		return
	}

	respondJSON(w, http.StatusCreated, submitResponse{
		Transaction: tx,
		HighValue:   service.HighValue(tx.Amount, h.advisory),
	})
}

func (h *APIHandlers) writeSubmitError(w http.ResponseWriter, err error) {
	var validationErr *service.ValidationError
	if errors.As(err, &validationErr) {
		respondJSON(w, http.StatusBadRequest, map[string]string{
			"error": validationErr.Message,
			"rule":  validationErr.Rule,
		})
		return
	}

	var scoringErr *scoring.Error
	if errors.As(err, &scoringErr) {
		h.logger.Error("submission rejected, scoring unavailable", "error", err)
		writeError(w, http.StatusBadGateway, "fraud scoring is unavailable")
		return
	}

	if errors.Is(err, store.ErrDuplicateID) {
		h.logger.Error("submission rejected, duplicate transaction id", "error", err)
		writeError(w, http.StatusConflict, "transaction already exists")
		return
	}

	h.logger.Error("submission failed", "error", err)
	writeError(w, http.StatusInternalServerError, "failed to process transfer")
}

// handleRecipients serves /recipients/{id}/transactions (pull) and
// /recipients/{id}/feed (websocket push).
func (h *APIHandlers) handleRecipients(w http.ResponseWriter, r *http.Request) {
	rest := strings.TrimPrefix(r.URL.Path, "/recipients/")
	parts := strings.Split(strings.Trim(rest, "/"), "/")
	if len(parts) != 2 || parts[0] == "" {
		writeError(w, http.StatusNotFound, "not found")
		return
	}
	recipientID := parts[0]

	switch parts[1] {
	case "transactions":
		if r.Method != http.MethodGet {
			methodNotAllowed(w, http.MethodGet)
			return
		}
		h.listRecipientTransactions(w, r, recipientID)
	case "feed":
		if r.Method != http.MethodGet {
			methodNotAllowed(w, http.MethodGet)
			return
		}
		h.serveFeed(w, r, recipientID)
	default:
		writeError(w, http.StatusNotFound, "not found")
	}
}

type transactionsResponse struct {
	Recipient    string               `json:"recipient"`
	Transactions []domain.Transaction `json:"transactions"`
}

func (h *APIHandlers) listRecipientTransactions(w http.ResponseWriter, r *http.Request, recipientID string) {
	txs, err := h.querier.QueryByRecipient(r.Context(), recipientID)
	if err != nil {
		h.logger.Error("failed to fetch recipient transactions", "error", err, "recipient", recipientID)
		writeError(w, http.StatusInternalServerError, "failed to fetch transactions")
		return
	}
	if txs == nil {
		txs = []domain.Transaction{}
	}

	respondJSON(w, http.StatusOK, transactionsResponse{
		Recipient:    recipientID,
		Transactions: txs,
	})
}

func methodNotAllowed(w http.ResponseWriter, allowed ...string) {
	w.Header().Set("Allow", strings.Join(allowed, ", "))
	writeError(w, http.StatusMethodNotAllowed, "method not allowed")
}

func writeError(w http.ResponseWriter, status int, message string) {
	respondJSON(w, status, map[string]string{"error": message})
}
