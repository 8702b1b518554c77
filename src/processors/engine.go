package processors

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/username/coinfolio/backend/src/logger"
	"github.com/username/coinfolio/backend/src/models"
)

// MethodFIFO is the only cost-basis method the engine implements. The
// surrounding product exposes a method selector, so the value is validated
// here rather than assumed.
const MethodFIFO = "FIFO"

var (
	ErrUnsupportedMethod = errors.New("unsupported cost-basis method")
	ErrInvalidYear       = errors.New("invalid tax year")
)

// Engine runs one full report computation: aggregate, classify, track lots,
// compile. It holds no state between runs; every report is rebuilt from the
// raw transaction stream.
type Engine struct {
	classifier *Classifier
	compiler   *ReportCompiler
}

func NewEngine() *Engine {
	return &Engine{
		classifier: NewClassifier(),
		compiler:   NewReportCompiler(),
	}
}

// ComputeTaxReport computes the taxable events, income events and yearly
// totals for one user's transaction history. The input must contain the full
// relevant history up to and including the requested year (earlier years seed
// the lots); it need not be pre-sorted. Contract violations fail before any
// lot processing; data-quality problems are clamped, counted and surfaced on
// the report instead.
func (e *Engine) ComputeTaxReport(ctx context.Context, txs []models.UnifiedTransaction, year int, method string) (*models.TaxReport, error) {
	if !strings.EqualFold(method, MethodFIFO) {
		return nil, fmt.Errorf("%w: %q", ErrUnsupportedMethod, method)
	}
	if year <= 0 {
		return nil, fmt.Errorf("%w: %d", ErrInvalidYear, year)
	}

	started := time.Now()

	stream, aggStats := Aggregate(txs, year)
	actions, anomalies, clsStats := e.classifier.Classify(stream)

	tracker := NewLotTracker()
	for _, action := range actions {
		// Lots are only ever mutated between transactions, so aborting here
		// never tears a half-consumed lot.
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		tracker.Apply(action)
	}

	events, incomes, trackerAnomalies := tracker.Results()
	anomalies = append(anomalies, trackerAnomalies...)
	oversold, neutral := tracker.Counters()

	report := &models.TaxReport{
		Year:      year,
		Method:    MethodFIFO,
		Anomalies: anomalies,
		Counters: models.ReportCounters{
			DuplicatesDropped: aggStats.DuplicatesDropped,
			MalformedSkipped:  clsStats.MalformedSkipped,
			NeutralTransfers:  neutral,
			OversoldClamps:    oversold,
		},
		OpenLots: tracker.OpenLots(),
	}

	e.compiler.Compile(report, filterEventsToYear(events, year), filterIncomeToYear(incomes, year))

	logger.L.Info("tax report computed",
		"year", year,
		"transactions", len(stream),
		"taxableEvents", report.TaxableEventCount,
		"incomeEvents", len(report.IncomeEvents),
		"anomalies", len(report.Anomalies),
		"duration", time.Since(started))
	return report, nil
}

// filterEventsToYear keeps only disposals dated within the reporting year.
// Earlier events exist because the whole history replays to seed lots.
func filterEventsToYear(events []models.TaxableEvent, year int) []models.TaxableEvent {
	start, end := YearStart(year), YearEnd(year)
	kept := make([]models.TaxableEvent, 0, len(events))
	for _, ev := range events {
		if !ev.DisposalDate.Before(start) && !ev.DisposalDate.After(end) {
			kept = append(kept, ev)
		}
	}
	return kept
}

func filterIncomeToYear(incomes []models.IncomeEvent, year int) []models.IncomeEvent {
	start, end := YearStart(year), YearEnd(year)
	kept := make([]models.IncomeEvent, 0, len(incomes))
	for _, inc := range incomes {
		if !inc.Date.Before(start) && !inc.Date.After(end) {
			kept = append(kept, inc)
		}
	}
	return kept
}
