package services

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/patrickmn/go-cache"
	"github.com/username/coinfolio/backend/src/database"
	"github.com/username/coinfolio/backend/src/logger"
	"github.com/username/coinfolio/backend/src/model"
	"github.com/username/coinfolio/backend/src/models"
	"github.com/username/coinfolio/backend/src/processors"
)

const (
	// Long-lived cache for full report computations, invalidated on writes.
	ckTaxReport = "res_tax_report_user_%d_year_%d"

	DefaultCacheExpiration = 15 * time.Minute
	CacheCleanupInterval   = 30 * time.Minute
)

type reportServiceImpl struct {
	engine      processors.TaxReportEngine
	reportCache *cache.Cache

	// Years a user has cached reports for, so invalidation does not have to
	// guess key names. Guarded by mu; go-cache handles its own locking.
	mu          sync.Mutex
	cachedYears map[int64]map[int]bool
}

func NewReportService(engine processors.TaxReportEngine, reportCache *cache.Cache) ReportService {
	return &reportServiceImpl{
		engine:      engine,
		reportCache: reportCache,
		cachedYears: make(map[int64]map[int]bool),
	}
}

// GetTaxReport returns the user's tax report for a year, recomputed from the
// stored transaction history on cache miss. The computation is a full
// replay; no running balance is ever persisted between calls.
func (s *reportServiceImpl) GetTaxReport(ctx context.Context, userID int64, year int, method string) (*models.TaxReport, error) {
	cacheKey := fmt.Sprintf(ckTaxReport, userID, year)
	if cached, found := s.reportCache.Get(cacheKey); found {
		logger.L.Debug("Cache hit for tax report", "userID", userID, "year", year)
		return cached.(*models.TaxReport), nil
	}

	logger.L.Info("Cache miss for tax report, recomputing from DB", "userID", userID, "year", year)
	report, err := s.computeReport(ctx, userID, year, method)
	if err != nil {
		return nil, err
	}

	s.reportCache.Set(cacheKey, report, cache.NoExpiration)
	s.mu.Lock()
	years, ok := s.cachedYears[userID]
	if !ok {
		years = make(map[int]bool)
		s.cachedYears[userID] = years
	}
	years[year] = true
	s.mu.Unlock()
	return report, nil
}

// GetHoldings returns the open acquisition lots remaining after replaying the
// user's history through the requested year end.
func (s *reportServiceImpl) GetHoldings(ctx context.Context, userID int64, year int) ([]models.AcquisitionLot, error) {
	report, err := s.GetTaxReport(ctx, userID, year, processors.MethodFIFO)
	if err != nil {
		return nil, err
	}
	return report.OpenLots, nil
}

// InvalidateUserCache clears all cached reports for a user, forcing a full
// recomputation on the next request.
func (s *reportServiceImpl) InvalidateUserCache(userID int64) {
	s.mu.Lock()
	for year := range s.cachedYears[userID] {
		s.reportCache.Delete(fmt.Sprintf(ckTaxReport, userID, year))
	}
	delete(s.cachedYears, userID)
	s.mu.Unlock()
	logger.L.Info("Invalidated report caches for user", "userID", userID)
}

func (s *reportServiceImpl) computeReport(ctx context.Context, userID int64, year int, method string) (*models.TaxReport, error) {
	txs, err := fetchUserTransactions(userID)
	if err != nil {
		return nil, err
	}

	wallets, err := model.GetWalletAddressSet(database.DB, userID)
	if err != nil {
		return nil, fmt.Errorf("error loading wallet set for user %d: %w", userID, err)
	}

	owned := processors.FilterOwnership(txs, wallets)
	return s.engine.ComputeTaxReport(ctx, owned, year, method)
}
