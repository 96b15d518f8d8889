package handlers

import (
	"net/http"

	"github.com/dvloznov/spendbook/internal/api/middleware"
	"github.com/dvloznov/spendbook/internal/domain"
	"github.com/dvloznov/spendbook/internal/transactions"
)

// TransactionsHandler handles single-transaction endpoints.
type TransactionsHandler struct {
	transactions *transactions.Service
}

func NewTransactionsHandler(t *transactions.Service) *TransactionsHandler {
	return &TransactionsHandler{transactions: t}
}

// Get handles GET /api/transactions/{id}
func (h *TransactionsHandler) Get(w http.ResponseWriter, r *http.Request) {
	tx, err := h.transactions.Get(r.Context(), r.PathValue("id"))
	if err != nil {
		middleware.WriteServiceError(w, r, "Failed to get transaction", err)
		return
	}
	middleware.WriteJSON(w, http.StatusOK, tx)
}

// Patch handles PATCH /api/transactions/{id}. Keys absent from the body are
// left untouched; an explicit null clears the field.
func (h *TransactionsHandler) Patch(w http.ResponseWriter, r *http.Request) {
	var patch domain.TransactionPatch
	if err := decodeJSON(r, &patch); err != nil {
		middleware.WriteServiceError(w, r, "Invalid request body", err)
		return
	}
	tx, err := h.transactions.Update(r.Context(), r.PathValue("id"), patch)
	if err != nil {
		middleware.WriteServiceError(w, r, "Failed to update transaction", err)
		return
	}
	middleware.WriteJSON(w, http.StatusOK, tx)
}
