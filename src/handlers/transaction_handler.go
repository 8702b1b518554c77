package handlers

import (
	"encoding/json"
	"errors"
	"net/http"

	"github.com/username/coinfolio/backend/src/config"
	"github.com/username/coinfolio/backend/src/logger"
	"github.com/username/coinfolio/backend/src/models"
	"github.com/username/coinfolio/backend/src/security/validation"
	"github.com/username/coinfolio/backend/src/services"
	"github.com/username/coinfolio/backend/src/utils"
)

type TransactionHandler struct {
	txService services.TransactionService
}

func NewTransactionHandler(txService services.TransactionService) *TransactionHandler {
	return &TransactionHandler{txService: txService}
}

// HandleImportTransactions accepts a JSON array of transactions and stores
// them for the authenticated user, skipping duplicates.
func (h *TransactionHandler) HandleImportTransactions(w http.ResponseWriter, r *http.Request) {
	userID, ok := GetUserIDFromContext(r.Context())
	if !ok {
		utils.SendJSONError(w, "authentication required or user ID not found in context", http.StatusUnauthorized)
		return
	}

	if err := validation.ValidateImportContentType(r.Header.Get("Content-Type")); err != nil {
		utils.SendJSONError(w, err.Error(), http.StatusUnsupportedMediaType)
		return
	}

	r.Body = http.MaxBytesReader(w, r.Body, config.Cfg.MaxImportBodyBytes)

	var txs []models.UnifiedTransaction
	if err := json.NewDecoder(r.Body).Decode(&txs); err != nil {
		var maxErr *http.MaxBytesError
		if errors.As(err, &maxErr) {
			utils.SendJSONError(w, "Request body too large", http.StatusRequestEntityTooLarge)
			return
		}
		utils.SendJSONError(w, "Invalid request body: expected a JSON array of transactions", http.StatusBadRequest)
		return
	}

	if len(txs) == 0 {
		utils.SendJSONError(w, "No transactions in request", http.StatusBadRequest)
		return
	}

	for i := range txs {
		if err := validation.ValidateImportedTransaction(&txs[i]); err != nil {
			utils.SendJSONError(w, err.Error(), http.StatusBadRequest)
			return
		}
	}

	result, err := h.txService.ImportTransactions(userID, txs)
	if err != nil {
		logger.L.Error("Transaction import failed", "userID", userID, "error", err)
		utils.SendJSONError(w, "An internal error occurred while importing transactions", http.StatusInternalServerError)
		return
	}

	logger.L.Info("Transactions imported",
		"userID", userID,
		"inserted", result.Inserted,
		"duplicates", result.Duplicates)

	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(result)
}

func (h *TransactionHandler) HandleGetTransactions(w http.ResponseWriter, r *http.Request) {
	userID, ok := GetUserIDFromContext(r.Context())
	if !ok {
		utils.SendJSONError(w, "authentication required or user ID not found in context", http.StatusUnauthorized)
		return
	}

	txs, err := h.txService.GetTransactions(userID)
	if err != nil {
		logger.L.Error("Failed to fetch transactions", "userID", userID, "error", err)
		utils.SendJSONError(w, "Failed to retrieve transactions", http.StatusInternalServerError)
		return
	}
	if txs == nil {
		txs = []models.UnifiedTransaction{}
	}

	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(txs)
}

func (h *TransactionHandler) HandleDeleteAllTransactions(w http.ResponseWriter, r *http.Request) {
	userID, ok := GetUserIDFromContext(r.Context())
	if !ok {
		utils.SendJSONError(w, "authentication required or user ID not found in context", http.StatusUnauthorized)
		return
	}

	deleted, err := h.txService.DeleteAllTransactions(userID)
	if err != nil {
		logger.L.Error("Failed to delete transactions", "userID", userID, "error", err)
		utils.SendJSONError(w, "Failed to delete transactions", http.StatusInternalServerError)
		return
	}

	logger.L.Info("All transactions deleted", "userID", userID, "count", deleted)

	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(map[string]int64{"deleted": deleted})
}
