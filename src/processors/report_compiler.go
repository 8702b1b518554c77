package processors

import (
	"sort"

	"github.com/shopspring/decimal"
	"github.com/username/coinfolio/backend/src/models"
)

// ReportCompiler reduces the year's event stream into totals and
// Form-8949-style disposal buckets. Pure aggregation, no side effects.
type ReportCompiler struct{}

func NewReportCompiler() *ReportCompiler { return &ReportCompiler{} }

type bucketKey struct {
	asset  string
	period models.HoldingPeriod
}

// Compile fills the summary fields of a report from its event lists. Detail
// lists are passed through untouched for audit and UI display.
func (c *ReportCompiler) Compile(report *models.TaxReport, events []models.TaxableEvent, incomes []models.IncomeEvent) {
	report.ShortTermGainsUSD = decimal.Zero
	report.LongTermGainsUSD = decimal.Zero
	report.TotalIncomeUSD = decimal.Zero

	buckets := make(map[bucketKey]*models.DisposalBucket)
	for _, ev := range events {
		switch ev.HoldingPeriod {
		case models.LongTerm:
			report.LongTermGainsUSD = report.LongTermGainsUSD.Add(ev.GainLossUSD)
		default:
			report.ShortTermGainsUSD = report.ShortTermGainsUSD.Add(ev.GainLossUSD)
		}

		key := bucketKey{asset: ev.AssetSymbol, period: ev.HoldingPeriod}
		b, ok := buckets[key]
		if !ok {
			b = &models.DisposalBucket{
				AssetSymbol:   ev.AssetSymbol,
				HoldingPeriod: ev.HoldingPeriod,
				Amount:        decimal.Zero,
				ProceedsUSD:   decimal.Zero,
				CostBasisUSD:  decimal.Zero,
				GainLossUSD:   decimal.Zero,
			}
			buckets[key] = b
		}
		b.Amount = b.Amount.Add(ev.Amount)
		b.ProceedsUSD = b.ProceedsUSD.Add(ev.ProceedsUSD)
		b.CostBasisUSD = b.CostBasisUSD.Add(ev.CostBasisUSD)
		b.GainLossUSD = b.GainLossUSD.Add(ev.GainLossUSD)
		b.EventCount++
	}

	for _, inc := range incomes {
		report.TotalIncomeUSD = report.TotalIncomeUSD.Add(inc.ValueUSD)
	}

	report.TaxableEventCount = len(events)
	report.TaxableEvents = events
	report.IncomeEvents = incomes
	report.DisposalBuckets = sortBuckets(buckets)
}

// sortBuckets flattens the bucket map into a deterministic order: asset
// ascending, short-term before long-term.
func sortBuckets(buckets map[bucketKey]*models.DisposalBucket) []models.DisposalBucket {
	out := make([]models.DisposalBucket, 0, len(buckets))
	for _, b := range buckets {
		out = append(out, *b)
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].AssetSymbol != out[j].AssetSymbol {
			return out[i].AssetSymbol < out[j].AssetSymbol
		}
		return out[i].HoldingPeriod == models.ShortTerm && out[j].HoldingPeriod == models.LongTerm
	})
	return out
}
