package processors

import (
	"sort"
	"time"

	"github.com/shopspring/decimal"
	"github.com/username/coinfolio/backend/src/logger"
	"github.com/username/coinfolio/backend/src/models"
)

// longTermHoldingDays is the boundary between short- and long-term gains.
// Fixed, not configurable.
const longTermHoldingDays = 365

// LotTracker maintains per-asset FIFO queues of open acquisition lots and
// consumes them on disposals. One tracker serves exactly one report
// computation; it is never shared between runs.
type LotTracker struct {
	ledger    map[string][]*models.AcquisitionLot
	events    []models.TaxableEvent
	incomes   []models.IncomeEvent
	anomalies []models.Anomaly

	oversoldClamps   int
	neutralTransfers int
}

func NewLotTracker() *LotTracker {
	return &LotTracker{
		ledger: make(map[string][]*models.AcquisitionLot),
	}
}

// Apply processes one classified action. Actions must arrive in ascending
// timestamp order; the tracker does not re-sort.
func (t *LotTracker) Apply(a ClassifiedAction) {
	switch a.Kind {
	case ActionAcquisition:
		if a.Income {
			t.incomes = append(t.incomes, models.IncomeEvent{
				AssetSymbol: a.Asset,
				Date:        a.Timestamp,
				Amount:      a.Amount,
				ValueUSD:    a.ValueUSD,
				IncomeType:  a.IncomeType,
				SourceRef:   a.SourceRef,
			})
		}
		t.acquire(a.Asset, a.Amount, a.AcquisitionCostBasis(), a.Timestamp, a.SourceRef, a.Override)

	case ActionDisposal:
		t.dispose(a.Asset, a.Amount, a.DisposalProceeds(), a.Timestamp, a.SourceRef, a.Override)

	case ActionSwap:
		// Outgoing leg first, then the acquisition of the incoming asset at
		// the same instant.
		t.dispose(a.Asset, a.Amount, a.DisposalProceeds(), a.Timestamp, a.SourceRef, a.Override)
		t.acquire(a.InAsset, a.InAmount, a.SwapInCostBasis(), a.Timestamp, a.SourceRef, nil)

	case ActionNeutral:
		t.neutralTransfers++
	}
}

// acquire pushes a new lot onto the tail of the asset's queue. A zero-amount
// acquisition is a degenerate no-op.
func (t *LotTracker) acquire(asset string, amount, costBasis decimal.Decimal, at time.Time, sourceRef string, override *models.BasisOverride) {
	if !amount.IsPositive() {
		logger.L.Debug("ignoring zero-amount acquisition", "asset", asset, "timestamp", at)
		return
	}
	if override != nil {
		costBasis = override.CostBasisUSD
		if !override.AcquiredAt.IsZero() {
			at = override.AcquiredAt
		}
	}
	t.ledger[asset] = append(t.ledger[asset], &models.AcquisitionLot{
		AssetSymbol:       asset,
		AcquiredAt:        at,
		OriginalAmount:    amount,
		RemainingAmount:   amount,
		TotalCostBasisUSD: costBasis,
		RemainingBasisUSD: costBasis,
		SourceRef:         sourceRef,
	})
}

// dispose consumes lots from the head of the asset's queue until the disposed
// amount is covered, emitting one taxable event per consumed lot portion so
// each portion keeps its own acquisition date and holding period.
func (t *LotTracker) dispose(asset string, amount, proceeds decimal.Decimal, at time.Time, sourceRef string, override *models.BasisOverride) {
	if !amount.IsPositive() {
		logger.L.Debug("ignoring zero-amount disposal", "asset", asset, "timestamp", at)
		return
	}

	// Proceeds are attributed per unit of the requested disposal amount, so
	// partial matches carry their proportional share.
	perUnitProceeds := proceeds.Div(amount)

	remaining := amount
	matched := decimal.Zero
	basisConsumed := decimal.Zero
	queue := t.ledger[asset]

	var portions []models.TaxableEvent
	for len(queue) > 0 && remaining.IsPositive() {
		lot := queue[0]
		take := decimal.Min(remaining, lot.RemainingAmount)
		if !take.IsPositive() {
			// Exhausted lot still at the head; evict and move on.
			queue = queue[1:]
			continue
		}

		basis := lot.PerUnitCostBasis().Mul(take)
		if basis.GreaterThan(lot.RemainingBasisUSD) {
			basis = lot.RemainingBasisUSD
		}
		portionProceeds := perUnitProceeds.Mul(take)

		portions = append(portions, models.TaxableEvent{
			AssetSymbol:   asset,
			DisposalDate:  at,
			AcquiredAt:    lot.AcquiredAt,
			Amount:        take,
			ProceedsUSD:   portionProceeds,
			CostBasisUSD:  basis,
			GainLossUSD:   portionProceeds.Sub(basis),
			HoldingPeriod: classifyHoldingPeriod(lot.AcquiredAt, at),
			SourceRef:     sourceRef,
		})

		lot.RemainingAmount = lot.RemainingAmount.Sub(take)
		lot.RemainingBasisUSD = lot.RemainingBasisUSD.Sub(basis)
		remaining = remaining.Sub(take)
		matched = matched.Add(take)
		basisConsumed = basisConsumed.Add(basis)

		if !lot.RemainingAmount.IsPositive() {
			queue = queue[1:]
		}
	}
	t.ledger[asset] = queue

	if override != nil {
		// The transaction carries its own basis and purchase date, which take
		// precedence over the FIFO computation. Lots were still consumed above
		// so the running inventory stays conserved, but the reported event
		// covers the full disposal with the supplied basis.
		t.events = append(t.events, models.TaxableEvent{
			AssetSymbol:   asset,
			DisposalDate:  at,
			AcquiredAt:    override.AcquiredAt,
			Amount:        amount,
			ProceedsUSD:   proceeds,
			CostBasisUSD:  override.CostBasisUSD,
			GainLossUSD:   proceeds.Sub(override.CostBasisUSD),
			HoldingPeriod: classifyHoldingPeriod(override.AcquiredAt, at),
			SourceRef:     sourceRef,
		})
		return
	}

	t.events = append(t.events, portions...)

	if remaining.IsPositive() {
		// Disposed of more than was ever acquired. The effective disposal is
		// clamped to what the lots could cover; the shortfall is surfaced as
		// an anomaly instead of driving holdings negative.
		t.oversoldClamps++
		t.anomalies = append(t.anomalies, models.Anomaly{
			Kind:        models.AnomalyOversold,
			AssetSymbol: asset,
			Timestamp:   at,
			Amount:      remaining,
			SourceRef:   sourceRef,
			Detail:      "disposal exceeds acquired amount, clamped to available lots",
		})
		logger.L.Warn("oversold disposal clamped",
			"asset", asset, "requested", amount.String(),
			"matched", matched.String(), "timestamp", at)
	}
}

// classifyHoldingPeriod applies the 365-day boundary: held exactly 365 days
// or longer is long-term.
func classifyHoldingPeriod(acquiredAt, disposedAt time.Time) models.HoldingPeriod {
	if disposedAt.Sub(acquiredAt) >= longTermHoldingDays*24*time.Hour {
		return models.LongTerm
	}
	return models.ShortTerm
}

// OpenLots returns the unconsumed lots across all assets, ordered by asset
// then acquisition date for deterministic output.
func (t *LotTracker) OpenLots() []models.AcquisitionLot {
	assets := make([]string, 0, len(t.ledger))
	for asset := range t.ledger {
		assets = append(assets, asset)
	}
	sort.Strings(assets)

	var open []models.AcquisitionLot
	for _, asset := range assets {
		for _, lot := range t.ledger[asset] {
			if lot.RemainingAmount.IsPositive() {
				open = append(open, *lot)
			}
		}
	}
	return open
}

// TotalRemaining reports the summed remaining amount for an asset.
func (t *LotTracker) TotalRemaining(asset string) decimal.Decimal {
	total := decimal.Zero
	for _, lot := range t.ledger[asset] {
		total = total.Add(lot.RemainingAmount)
	}
	return total
}

// Results hands back everything the tracker produced during the run.
func (t *LotTracker) Results() ([]models.TaxableEvent, []models.IncomeEvent, []models.Anomaly) {
	return t.events, t.incomes, t.anomalies
}

// Counters reports the tracker's share of the run counters.
func (t *LotTracker) Counters() (oversoldClamps, neutralTransfers int) {
	return t.oversoldClamps, t.neutralTransfers
}
