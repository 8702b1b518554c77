package processors

import (
	"fmt"
	"sort"
	"time"

	"github.com/username/coinfolio/backend/src/logger"
	"github.com/username/coinfolio/backend/src/models"
)

// AggregateStats reports what the aggregation pass removed.
type AggregateStats struct {
	DuplicatesDropped int
}

// FilterOwnership selects the transactions belonging to a user under the
// union-of-ownership rule: wallet-linked transactions whose address is in the
// user's wallet set, CSV imports not tied to any wallet, and everything that
// arrived through an exchange API connection.
func FilterOwnership(txs []models.UnifiedTransaction, wallets map[string]bool) []models.UnifiedTransaction {
	owned := make([]models.UnifiedTransaction, 0, len(txs))
	for _, tx := range txs {
		switch {
		case tx.OwnerWalletAddress != "" && wallets[tx.OwnerWalletAddress]:
			owned = append(owned, tx)
		case tx.Provenance == models.ProvenanceCSVImport && tx.OwnerWalletAddress == "":
			owned = append(owned, tx)
		case tx.Provenance == models.ProvenanceExchangeAPI:
			owned = append(owned, tx)
		}
	}
	return owned
}

// Aggregate produces the canonical transaction stream for a tax year: every
// transaction up to and including the year end (prior years are needed to
// seed lots), exact duplicates removed, ordered by ascending timestamp with
// original order preserved on ties.
func Aggregate(txs []models.UnifiedTransaction, year int) ([]models.UnifiedTransaction, AggregateStats) {
	var stats AggregateStats
	cutoff := YearEnd(year)

	seen := make(map[string]bool, len(txs))
	stream := make([]models.UnifiedTransaction, 0, len(txs))
	for _, tx := range txs {
		if tx.Timestamp.After(cutoff) {
			continue
		}
		key := dedupKey(&tx)
		if seen[key] {
			stats.DuplicatesDropped++
			logger.L.Debug("dropping duplicate transaction",
				"asset", tx.AssetSymbol, "timestamp", tx.Timestamp, "provenance", tx.Provenance)
			continue
		}
		seen[key] = true
		stream = append(stream, tx)
	}

	sort.SliceStable(stream, func(i, j int) bool {
		return stream[i].Timestamp.Before(stream[j].Timestamp)
	})

	if stats.DuplicatesDropped > 0 {
		logger.L.Info("aggregation dropped duplicates", "count", stats.DuplicatesDropped)
	}
	return stream, stats
}

// dedupKey identifies exact duplicates: a shared non-empty hash ID, or a
// matching (timestamp, asset, amount, provenance) tuple for rows that never
// got one.
func dedupKey(tx *models.UnifiedTransaction) string {
	if tx.HashID != "" {
		return "h:" + tx.HashID
	}
	return fmt.Sprintf("t:%d|%s|%s|%s",
		tx.Timestamp.UnixNano(), tx.AssetSymbol, tx.Amount.String(), tx.Provenance)
}

// YearEnd returns the last instant of a tax year in UTC.
func YearEnd(year int) time.Time {
	return time.Date(year, time.December, 31, 23, 59, 59, 999999999, time.UTC)
}

// YearStart returns the first instant of a tax year in UTC.
func YearStart(year int) time.Time {
	return time.Date(year, time.January, 1, 0, 0, 0, 0, time.UTC)
}
