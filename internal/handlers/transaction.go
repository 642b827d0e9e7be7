package handlers

import (
	"encoding/json"
	"errors"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/money-manager/apiserver/internal/services"
	"github.com/money-manager/apiserver/internal/store"
	"github.com/money-manager/apiserver/types"
)

// TransactionHandler provides HTTP handlers for owner-scoped transactions.
type TransactionHandler struct {
	transactionService *services.TransactionService
}

// NewTransactionHandler constructs a handler with the provided service.
func NewTransactionHandler(transactionService *services.TransactionService) *TransactionHandler {
	return &TransactionHandler{transactionService: transactionService}
}

// TransactionRouter registers transaction routes on the given router.
// Every route requires authentication.
func TransactionRouter(
	r chi.Router,
	transactionService *services.TransactionService,
	authMiddleware func(http.Handler) http.Handler,
) {
	handler := NewTransactionHandler(transactionService)

	r.Use(authMiddleware)
	r.Get("/", handler.ListTransactions)
	r.Post("/", handler.AddTransaction)
	r.Delete("/", handler.DeleteAllTransactions)
	r.Route("/{transactionID}", func(r chi.Router) {
		r.Get("/", handler.GetTransaction)
		r.Put("/", handler.UpdateTransaction)
		r.Delete("/", handler.DeleteTransaction)
	})
}

func (h *TransactionHandler) ListTransactions(w http.ResponseWriter, r *http.Request) {
	ownerID, err := userIDFromContext(r.Context())
	if err != nil {
		writeError(w, http.StatusUnauthorized, "token is not valid")
		return
	}

	transactions, summary, err := h.transactionService.List(r.Context(), ownerID)
	if err != nil {
		writeError(w, http.StatusInternalServerError, "Server Error")
		return
	}

	writeJSON(w, http.StatusOK, TransactionListResponse{
		Success: true,
		Count:   len(transactions),
		Data:    transactions,
		Summary: summary,
	})
}

func (h *TransactionHandler) GetTransaction(w http.ResponseWriter, r *http.Request) {
	ownerID, err := userIDFromContext(r.Context())
	if err != nil {
		writeError(w, http.StatusUnauthorized, "token is not valid")
		return
	}

	transaction, err := h.transactionService.Get(r.Context(), ownerID, transactionID(r))
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			writeError(w, http.StatusNotFound, "Transaction not found")
			return
		}
		writeError(w, http.StatusInternalServerError, "Server Error")
		return
	}

	writeJSON(w, http.StatusOK, TransactionResponse{Success: true, Data: transaction})
}

func (h *TransactionHandler) AddTransaction(w http.ResponseWriter, r *http.Request) {
	ownerID, err := userIDFromContext(r.Context())
	if err != nil {
		writeError(w, http.StatusUnauthorized, "token is not valid")
		return
	}

	var req TransactionUpsertRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request")
		return
	}

	created, err := h.transactionService.Create(r.Context(), ownerID, req.Title, req.Amount, req.Type)
	if err != nil {
		var validationErr *services.ValidationError
		if errors.As(err, &validationErr) {
			writeError(w, http.StatusBadRequest, validationErr.Message)
			return
		}
		writeError(w, http.StatusInternalServerError, "Server Error")
		return
	}

	writeJSON(w, http.StatusCreated, TransactionResponse{Success: true, Data: created})
}

func (h *TransactionHandler) UpdateTransaction(w http.ResponseWriter, r *http.Request) {
	ownerID, err := userIDFromContext(r.Context())
	if err != nil {
		writeError(w, http.StatusUnauthorized, "token is not valid")
		return
	}

	var req TransactionUpsertRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request")
		return
	}

	updated, err := h.transactionService.Update(r.Context(), ownerID, transactionID(r), req.Title, req.Amount, req.Type)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			writeError(w, http.StatusNotFound, "Transaction not found")
			return
		}
		var validationErr *services.ValidationError
		if errors.As(err, &validationErr) {
			writeError(w, http.StatusBadRequest, validationErr.Message)
			return
		}
		writeError(w, http.StatusInternalServerError, "Server Error")
		return
	}

	writeJSON(w, http.StatusOK, TransactionResponse{Success: true, Data: updated})
}

func (h *TransactionHandler) DeleteTransaction(w http.ResponseWriter, r *http.Request) {
	ownerID, err := userIDFromContext(r.Context())
	if err != nil {
		writeError(w, http.StatusUnauthorized, "token is not valid")
		return
	}

	if err := h.transactionService.Delete(r.Context(), ownerID, transactionID(r)); err != nil {
		if errors.Is(err, store.ErrNotFound) {
			writeError(w, http.StatusNotFound, "No transaction found")
			return
		}
		writeError(w, http.StatusInternalServerError, "Server Error")
		return
	}

	writeJSON(w, http.StatusOK, TransactionDeletedResponse{
		Success: true,
		Data:    struct{}{},
	})
}

func (h *TransactionHandler) DeleteAllTransactions(w http.ResponseWriter, r *http.Request) {
	ownerID, err := userIDFromContext(r.Context())
	if err != nil {
		writeError(w, http.StatusUnauthorized, "token is not valid")
		return
	}

	count, err := h.transactionService.DeleteAll(r.Context(), ownerID)
	if err != nil {
		writeError(w, http.StatusInternalServerError, "Server Error")
		return
	}

	writeJSON(w, http.StatusOK, TransactionsClearedResponse{
		Success: true,
		Data:    struct{}{},
		Message: "All transactions deleted",
		Count:   count,
	})
}

// TransactionUpsertRequest is the create/update payload.
type TransactionUpsertRequest struct {
	Title  string  `json:"title"`
	Amount float64 `json:"amount"`
	Type   string  `json:"type"`
}

// TransactionListResponse carries the full owned set plus its summary.
type TransactionListResponse struct {
	Success bool                `json:"success"`
	Count   int                 `json:"count"`
	Data    []types.Transaction `json:"data"`
	Summary types.Summary       `json:"summary"`
}

type TransactionResponse struct {
	Success bool              `json:"success"`
	Data    types.Transaction `json:"data"`
}

type TransactionDeletedResponse struct {
	Success bool     `json:"success"`
	Data    struct{} `json:"data"`
}

type TransactionsClearedResponse struct {
	Success bool     `json:"success"`
	Data    struct{} `json:"data"`
	Message string   `json:"message"`
	Count   int64    `json:"count"`
}

func transactionID(r *http.Request) string {
	return chi.URLParam(r, "transactionID")
}
