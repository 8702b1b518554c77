package processors

import (
	"context"

	"github.com/username/coinfolio/backend/src/models"
)

// TaxReportEngine is the single logical operation the core exposes to the
// transport layer.
type TaxReportEngine interface {
	ComputeTaxReport(ctx context.Context, txs []models.UnifiedTransaction, year int, method string) (*models.TaxReport, error)
}

var _ TaxReportEngine = (*Engine)(nil)
