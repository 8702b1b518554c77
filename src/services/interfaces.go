package services

import (
	"context"

	"github.com/username/coinfolio/backend/src/models"
)

// ImportResult summarizes one batch import of unified transactions.
type ImportResult struct {
	Inserted   int `json:"inserted"`
	Duplicates int `json:"duplicates"`
}

// TransactionService owns persistence of a user's unified transactions.
type TransactionService interface {
	ImportTransactions(userID int64, txs []models.UnifiedTransaction) (*ImportResult, error)
	GetTransactions(userID int64) ([]models.UnifiedTransaction, error)
	DeleteAllTransactions(userID int64) (int64, error)
}

// ReportService computes (and caches) tax reports from the stored
// transaction history.
type ReportService interface {
	GetTaxReport(ctx context.Context, userID int64, year int, method string) (*models.TaxReport, error)
	GetHoldings(ctx context.Context, userID int64, year int) ([]models.AcquisitionLot, error)
	InvalidateUserCache(userID int64)
}
