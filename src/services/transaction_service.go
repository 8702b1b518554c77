package services

import (
	"crypto/sha256"
	"database/sql"
	"encoding/hex"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/shopspring/decimal"
	"github.com/username/coinfolio/backend/src/database"
	"github.com/username/coinfolio/backend/src/logger"
	"github.com/username/coinfolio/backend/src/models"
)

var ErrNoTransactions = errors.New("no transactions provided")

type transactionServiceImpl struct {
	reportService ReportService
}

// NewTransactionService wires the transaction store to the report service so
// imports and deletions invalidate cached reports.
func NewTransactionService(reportService ReportService) TransactionService {
	return &transactionServiceImpl{reportService: reportService}
}

// ImportTransactions inserts a batch of normalized transactions for a user.
// Rows whose hash ID already exists for the user are skipped silently and
// counted, so re-uploading an export is harmless.
func (s *transactionServiceImpl) ImportTransactions(userID int64, txs []models.UnifiedTransaction) (*ImportResult, error) {
	if len(txs) == 0 {
		return nil, ErrNoTransactions
	}
	started := time.Now()
	logger.L.Info("ImportTransactions START", "userID", userID, "count", len(txs))

	dbTx, err := database.DB.Begin()
	if err != nil {
		return nil, fmt.Errorf("error beginning database transaction: %w", err)
	}
	defer dbTx.Rollback()

	stmt, err := dbTx.Prepare(`INSERT INTO unified_transactions
		(user_id, hash_id, asset_symbol, tx_type, amount, value_usd, fee_usd, timestamp,
		 incoming_asset_symbol, incoming_amount, incoming_value_usd, annotation, provenance,
		 owner_wallet_address, override_cost_basis_usd, override_acquired_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`)
	if err != nil {
		return nil, fmt.Errorf("error preparing insert statement: %w", err)
	}
	defer stmt.Close()

	result := &ImportResult{}
	for i := range txs {
		tx := &txs[i]
		tx.UserID = userID
		if tx.HashID == "" {
			tx.HashID = GenerateTransactionHash(tx)
		}

		var overrideBasis, overrideAcquired interface{}
		if tx.BasisOverride != nil {
			overrideBasis = tx.BasisOverride.CostBasisUSD.String()
			overrideAcquired = tx.BasisOverride.AcquiredAt.Format(time.RFC3339Nano)
		}

		_, err := stmt.Exec(
			userID, tx.HashID, tx.AssetSymbol, tx.Type,
			tx.Amount.String(), tx.ValueUSD.String(), tx.FeeUSD.String(),
			tx.Timestamp.UTC().Format(time.RFC3339Nano),
			tx.IncomingAssetSymbol, tx.IncomingAmount.String(), tx.IncomingValueUSD.String(),
			tx.Annotation, string(tx.Provenance), tx.OwnerWalletAddress,
			overrideBasis, overrideAcquired,
		)
		if err != nil {
			if strings.Contains(strings.ToLower(err.Error()), "unique constraint failed") {
				logger.L.Debug("Skipping duplicate transaction on import", "userID", userID, "hashID", tx.HashID)
				result.Duplicates++
				continue
			}
			return nil, fmt.Errorf("error inserting transaction (hash %s): %w", tx.HashID, err)
		}
		result.Inserted++
	}

	if err := dbTx.Commit(); err != nil {
		return nil, fmt.Errorf("error committing transactions: %w", err)
	}

	s.reportService.InvalidateUserCache(userID)

	logger.L.Info("ImportTransactions END", "userID", userID,
		"inserted", result.Inserted, "duplicates", result.Duplicates,
		"duration", time.Since(started))
	return result, nil
}

// GetTransactions returns all stored transactions for a user, oldest first.
func (s *transactionServiceImpl) GetTransactions(userID int64) ([]models.UnifiedTransaction, error) {
	return fetchUserTransactions(userID)
}

// DeleteAllTransactions removes every stored transaction for a user and
// invalidates cached reports.
func (s *transactionServiceImpl) DeleteAllTransactions(userID int64) (int64, error) {
	res, err := database.DB.Exec(`DELETE FROM unified_transactions WHERE user_id = ?`, userID)
	if err != nil {
		return 0, fmt.Errorf("error deleting transactions for user %d: %w", userID, err)
	}
	deleted, err := res.RowsAffected()
	if err != nil {
		return 0, err
	}
	s.reportService.InvalidateUserCache(userID)
	logger.L.Info("Deleted all transactions for user", "userID", userID, "count", deleted)
	return deleted, nil
}

// GenerateTransactionHash creates a stable hash identifying a transaction so
// repeated imports of the same export file deduplicate on insert.
func GenerateTransactionHash(tx *models.UnifiedTransaction) string {
	input := fmt.Sprintf("%s|%s|%s|%s|%s|%s",
		tx.Timestamp.UTC().Format(time.RFC3339Nano),
		tx.AssetSymbol, tx.Type,
		tx.Amount.String(), tx.ValueUSD.String(),
		tx.Provenance)
	hash := sha256.Sum256([]byte(input))
	return hex.EncodeToString(hash[:])
}

// fetchUserTransactions loads a user's full transaction history from sqlite.
// Decimal columns are stored as TEXT and parsed back losslessly.
func fetchUserTransactions(userID int64) ([]models.UnifiedTransaction, error) {
	rows, err := database.DB.Query(`
		SELECT id, hash_id, asset_symbol, tx_type, amount, value_usd, fee_usd, timestamp,
		       incoming_asset_symbol, incoming_amount, incoming_value_usd, annotation,
		       provenance, owner_wallet_address, override_cost_basis_usd, override_acquired_at
		FROM unified_transactions
		WHERE user_id = ?
		ORDER BY timestamp ASC, id ASC`, userID)
	if err != nil {
		return nil, fmt.Errorf("error querying transactions for user %d: %w", userID, err)
	}
	defer rows.Close()

	var txs []models.UnifiedTransaction
	for rows.Next() {
		tx, err := scanTransaction(rows, userID)
		if err != nil {
			return nil, err
		}
		txs = append(txs, tx)
	}
	return txs, rows.Err()
}

func scanTransaction(rows *sql.Rows, userID int64) (models.UnifiedTransaction, error) {
	var (
		tx                            models.UnifiedTransaction
		amount, valueUSD              string
		feeUSD, inAmount, inValueUSD  sql.NullString
		timestampStr                  string
		inAsset, annotation, wallet   sql.NullString
		provenance                    string
		overrideBasis, overrideAcqStr sql.NullString
	)
	err := rows.Scan(&tx.ID, &tx.HashID, &tx.AssetSymbol, &tx.Type,
		&amount, &valueUSD, &feeUSD, &timestampStr,
		&inAsset, &inAmount, &inValueUSD, &annotation,
		&provenance, &wallet, &overrideBasis, &overrideAcqStr)
	if err != nil {
		return tx, fmt.Errorf("error scanning transaction for user %d: %w", userID, err)
	}

	tx.UserID = userID
	tx.Amount = parseStoredDecimal(amount)
	tx.ValueUSD = parseStoredDecimal(valueUSD)
	tx.FeeUSD = parseStoredDecimal(feeUSD.String)
	tx.IncomingAssetSymbol = inAsset.String
	tx.IncomingAmount = parseStoredDecimal(inAmount.String)
	tx.IncomingValueUSD = parseStoredDecimal(inValueUSD.String)
	tx.Annotation = annotation.String
	tx.Provenance = models.Provenance(provenance)
	tx.OwnerWalletAddress = wallet.String

	if ts, err := time.Parse(time.RFC3339Nano, timestampStr); err == nil {
		tx.Timestamp = ts
	} else {
		logger.L.Warn("unparseable stored timestamp, leaving zero", "hashID", tx.HashID, "value", timestampStr)
	}

	if overrideBasis.Valid {
		override := &models.BasisOverride{CostBasisUSD: parseStoredDecimal(overrideBasis.String)}
		if overrideAcqStr.Valid {
			if at, err := time.Parse(time.RFC3339Nano, overrideAcqStr.String); err == nil {
				override.AcquiredAt = at
			}
		}
		tx.BasisOverride = override
	}
	return tx, nil
}

func parseStoredDecimal(s string) decimal.Decimal {
	if s == "" {
		return decimal.Zero
	}
	d, err := decimal.NewFromString(s)
	if err != nil {
		logger.L.Warn("unparseable stored decimal, defaulting to zero", "value", s)
		return decimal.Zero
	}
	return d
}
