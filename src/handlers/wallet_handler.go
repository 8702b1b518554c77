package handlers

import (
	"encoding/json"
	"net/http"
	"strings"

	"github.com/username/coinfolio/backend/src/database"
	"github.com/username/coinfolio/backend/src/logger"
	"github.com/username/coinfolio/backend/src/model"
	"github.com/username/coinfolio/backend/src/security/validation"
	"github.com/username/coinfolio/backend/src/services"
	"github.com/username/coinfolio/backend/src/utils"
)

// Linking or removing a wallet changes which transactions count as owned, so
// both operations invalidate the user's cached reports.
type WalletHandler struct {
	reportService services.ReportService
}

func NewWalletHandler(reportService services.ReportService) *WalletHandler {
	return &WalletHandler{reportService: reportService}
}

func (h *WalletHandler) HandleCreateWallet(w http.ResponseWriter, r *http.Request) {
	userID, ok := GetUserIDFromContext(r.Context())
	if !ok {
		utils.SendJSONError(w, "authentication required or user ID not found in context", http.StatusUnauthorized)
		return
	}

	var payload struct {
		Address string `json:"address"`
		Label   string `json:"label"`
	}
	if err := json.NewDecoder(r.Body).Decode(&payload); err != nil {
		utils.SendJSONError(w, "Invalid request body", http.StatusBadRequest)
		return
	}

	payload.Address = strings.TrimSpace(validation.StripUnprintable(payload.Address))
	if payload.Address == "" {
		utils.SendJSONError(w, "Wallet address is required", http.StatusBadRequest)
		return
	}
	if len(payload.Address) > 128 {
		utils.SendJSONError(w, "Wallet address exceeds 128 characters", http.StatusBadRequest)
		return
	}

	wallet := &model.Wallet{
		UserID:  userID,
		Address: payload.Address,
		Label:   validation.StripUnprintable(payload.Label),
	}
	if err := wallet.CreateWallet(database.DB); err != nil {
		if strings.Contains(err.Error(), "UNIQUE constraint failed") {
			utils.SendJSONError(w, "Wallet address already linked", http.StatusConflict)
			return
		}
		logger.L.Error("Failed to create wallet", "userID", userID, "error", err)
		utils.SendJSONError(w, "Failed to link wallet", http.StatusInternalServerError)
		return
	}

	h.reportService.InvalidateUserCache(userID)
	logger.L.Info("Wallet linked", "userID", userID, "walletID", wallet.ID)

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusCreated)
	json.NewEncoder(w).Encode(wallet)
}

func (h *WalletHandler) HandleGetWallets(w http.ResponseWriter, r *http.Request) {
	userID, ok := GetUserIDFromContext(r.Context())
	if !ok {
		utils.SendJSONError(w, "authentication required or user ID not found in context", http.StatusUnauthorized)
		return
	}

	wallets, err := model.GetWalletsByUser(database.DB, userID)
	if err != nil {
		logger.L.Error("Failed to fetch wallets", "userID", userID, "error", err)
		utils.SendJSONError(w, "Failed to retrieve wallets", http.StatusInternalServerError)
		return
	}
	if wallets == nil {
		wallets = []model.Wallet{}
	}

	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(wallets)
}
