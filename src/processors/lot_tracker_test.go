package processors

import (
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/username/coinfolio/backend/src/models"
)

func day(n int) time.Time {
	return time.Date(2022, time.January, 1, 0, 0, 0, 0, time.UTC).AddDate(0, 0, n)
}

func dec(s string) decimal.Decimal {
	d, err := decimal.NewFromString(s)
	if err != nil {
		panic(err)
	}
	return d
}

func acquisition(asset, amount, value string, at time.Time) ClassifiedAction {
	return ClassifiedAction{
		Kind:      ActionAcquisition,
		Asset:     asset,
		Amount:    dec(amount),
		ValueUSD:  dec(value),
		Timestamp: at,
	}
}

func disposal(asset, amount, value string, at time.Time) ClassifiedAction {
	return ClassifiedAction{
		Kind:      ActionDisposal,
		Asset:     asset,
		Amount:    dec(amount),
		ValueUSD:  dec(value),
		Timestamp: at,
	}
}

func TestDisposalConsumesOldestLotFirst(t *testing.T) {
	tracker := NewLotTracker()
	tracker.Apply(acquisition("BTC", "10", "1000", day(1)))
	tracker.Apply(acquisition("BTC", "10", "3000", day(2)))
	tracker.Apply(disposal("BTC", "15", "6000", day(100)))

	events, _, anomalies := tracker.Results()
	if len(anomalies) != 0 {
		t.Fatalf("expected no anomalies, got %d", len(anomalies))
	}
	if len(events) != 2 {
		t.Fatalf("expected 2 events (one per consumed lot portion), got %d", len(events))
	}

	// All of lot A (10 units @ $100/unit), then 5 of lot B (@ $300/unit).
	if !events[0].AcquiredAt.Equal(day(1)) {
		t.Errorf("first portion acquired at %v, want %v", events[0].AcquiredAt, day(1))
	}
	if !events[0].Amount.Equal(dec("10")) {
		t.Errorf("first portion amount = %s, want 10", events[0].Amount)
	}
	if !events[0].CostBasisUSD.Equal(dec("1000")) {
		t.Errorf("first portion basis = %s, want 1000", events[0].CostBasisUSD)
	}
	if !events[1].AcquiredAt.Equal(day(2)) {
		t.Errorf("second portion acquired at %v, want %v", events[1].AcquiredAt, day(2))
	}
	if !events[1].Amount.Equal(dec("5")) {
		t.Errorf("second portion amount = %s, want 5", events[1].Amount)
	}
	if !events[1].CostBasisUSD.Equal(dec("1500")) {
		t.Errorf("second portion basis = %s, want 1500", events[1].CostBasisUSD)
	}

	// 5 units of lot B remain.
	if got := tracker.TotalRemaining("BTC"); !got.Equal(dec("5")) {
		t.Errorf("remaining = %s, want 5", got)
	}
}

func TestConservationAcrossStream(t *testing.T) {
	tracker := NewLotTracker()
	acquired := decimal.Zero
	disposed := decimal.Zero

	steps := []ClassifiedAction{
		acquisition("ETH", "3", "3000", day(0)),
		disposal("ETH", "1", "1500", day(10)),
		acquisition("ETH", "2.5", "5000", day(20)),
		disposal("ETH", "0.75", "2000", day(30)),
		disposal("ETH", "2", "6000", day(40)),
	}
	for _, step := range steps {
		tracker.Apply(step)
		switch step.Kind {
		case ActionAcquisition:
			acquired = acquired.Add(step.Amount)
		case ActionDisposal:
			disposed = disposed.Add(step.Amount)
		}
		if got := tracker.TotalRemaining("ETH"); !got.Equal(acquired.Sub(disposed)) {
			t.Fatalf("after %s at %v: remaining = %s, want %s",
				step.Kind, step.Timestamp, got, acquired.Sub(disposed))
		}
	}
}

func TestZeroAmountLotIsNotCreated(t *testing.T) {
	tracker := NewLotTracker()
	tracker.Apply(acquisition("DOGE", "0", "100", day(0)))

	if lots := tracker.OpenLots(); len(lots) != 0 {
		t.Fatalf("expected no lots for zero-amount acquisition, got %d", len(lots))
	}
}

func TestExhaustedLotNeverDividesByZero(t *testing.T) {
	tracker := NewLotTracker()
	tracker.Apply(acquisition("SOL", "10", "100", day(0)))
	tracker.Apply(disposal("SOL", "10", "200", day(1)))
	// Queue is now empty; another disposal must clamp, not fault.
	tracker.Apply(disposal("SOL", "5", "50", day(2)))

	events, _, anomalies := tracker.Results()
	if len(events) != 1 {
		t.Fatalf("expected 1 event, got %d", len(events))
	}
	if len(anomalies) != 1 || anomalies[0].Kind != models.AnomalyOversold {
		t.Fatalf("expected one oversold anomaly, got %+v", anomalies)
	}
	lot := models.AcquisitionLot{RemainingAmount: decimal.Zero, RemainingBasisUSD: dec("5")}
	if got := lot.PerUnitCostBasis(); !got.IsZero() {
		t.Errorf("exhausted lot per-unit basis = %s, want 0", got)
	}
}

func TestOversoldDisposalClamps(t *testing.T) {
	tracker := NewLotTracker()
	tracker.Apply(acquisition("ADA", "100", "50", day(0)))
	tracker.Apply(disposal("ADA", "150", "300", day(5)))

	events, _, anomalies := tracker.Results()
	if len(events) != 1 {
		t.Fatalf("expected 1 clamped event, got %d", len(events))
	}
	if !events[0].Amount.Equal(dec("100")) {
		t.Errorf("clamped amount = %s, want 100", events[0].Amount)
	}
	// Proceeds prorated: 300 * (100/150) = 200.
	if !events[0].ProceedsUSD.Equal(dec("200")) {
		t.Errorf("clamped proceeds = %s, want 200", events[0].ProceedsUSD)
	}
	if !events[0].CostBasisUSD.Equal(dec("50")) {
		t.Errorf("basis = %s, want 50 (never more than total available)", events[0].CostBasisUSD)
	}
	if len(anomalies) != 1 || anomalies[0].Kind != models.AnomalyOversold {
		t.Fatalf("expected oversold anomaly, got %+v", anomalies)
	}
	if !anomalies[0].Amount.Equal(dec("50")) {
		t.Errorf("anomaly unmatched amount = %s, want 50", anomalies[0].Amount)
	}
	if got := tracker.TotalRemaining("ADA"); !got.IsZero() {
		t.Errorf("remaining after oversell = %s, want 0 (never negative)", got)
	}

	oversold, _ := tracker.Counters()
	if oversold != 1 {
		t.Errorf("oversold clamp counter = %d, want 1", oversold)
	}
}

func TestHoldingPeriodBoundary(t *testing.T) {
	acquiredAt := day(0)
	tests := []struct {
		name       string
		disposedAt time.Time
		want       models.HoldingPeriod
	}{
		{"day 364 is short term", acquiredAt.AddDate(0, 0, 364), models.ShortTerm},
		{"day 365 is long term", acquiredAt.AddDate(0, 0, 365), models.LongTerm},
		{"same day is short term", acquiredAt, models.ShortTerm},
		{"two years is long term", acquiredAt.AddDate(2, 0, 0), models.LongTerm},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := classifyHoldingPeriod(acquiredAt, tt.disposedAt); got != tt.want {
				t.Errorf("classifyHoldingPeriod(%v, %v) = %s, want %s",
					acquiredAt, tt.disposedAt, got, tt.want)
			}
		})
	}
}

func TestZeroProceedsSaleStillRealizesLoss(t *testing.T) {
	tracker := NewLotTracker()
	tracker.Apply(acquisition("XMR", "2", "500", day(0)))
	tracker.Apply(disposal("XMR", "2", "0", day(30)))

	events, _, _ := tracker.Results()
	if len(events) != 1 {
		t.Fatalf("expected 1 event for zero-proceeds sale, got %d", len(events))
	}
	if !events[0].GainLossUSD.Equal(dec("-500")) {
		t.Errorf("gain/loss = %s, want -500", events[0].GainLossUSD)
	}
}

func TestSwapDecomposition(t *testing.T) {
	tracker := NewLotTracker()
	tracker.Apply(acquisition("ETH", "1", "1200", day(0)))
	tracker.Apply(ClassifiedAction{
		Kind:       ActionSwap,
		Asset:      "ETH",
		Amount:     dec("1"),
		ValueUSD:   dec("2000"),
		Timestamp:  day(50),
		InAsset:    "USDC",
		InAmount:   dec("2000"),
		InValueUSD: dec("2000"),
	})

	events, _, _ := tracker.Results()
	if len(events) != 1 {
		t.Fatalf("expected exactly 1 disposal event for ETH, got %d", len(events))
	}
	if events[0].AssetSymbol != "ETH" || !events[0].ProceedsUSD.Equal(dec("2000")) {
		t.Errorf("swap-out event = %+v, want ETH disposal with proceeds 2000", events[0])
	}

	lots := tracker.OpenLots()
	if len(lots) != 1 {
		t.Fatalf("expected 1 open USDC lot, got %d", len(lots))
	}
	if lots[0].AssetSymbol != "USDC" || !lots[0].TotalCostBasisUSD.Equal(dec("2000")) {
		t.Errorf("swap-in lot = %+v, want USDC with basis 2000", lots[0])
	}
	if !lots[0].AcquiredAt.Equal(day(50)) {
		t.Errorf("swap-in lot acquired at %v, want the swap timestamp %v", lots[0].AcquiredAt, day(50))
	}
}

func TestIncomeActionEstablishesBasisAndIncomeEvent(t *testing.T) {
	tracker := NewLotTracker()
	tracker.Apply(ClassifiedAction{
		Kind:       ActionAcquisition,
		Asset:      "ATOM",
		Amount:     dec("4"),
		ValueUSD:   dec("40"),
		Timestamp:  day(0),
		Income:     true,
		IncomeType: models.IncomeTypeStaking,
	})
	tracker.Apply(disposal("ATOM", "4", "60", day(400)))

	events, incomes, _ := tracker.Results()
	if len(incomes) != 1 {
		t.Fatalf("expected 1 income event, got %d", len(incomes))
	}
	if incomes[0].IncomeType != models.IncomeTypeStaking || !incomes[0].ValueUSD.Equal(dec("40")) {
		t.Errorf("income event = %+v, want staking income of 40", incomes[0])
	}
	// Income-recognized units still carry their recognition value as basis.
	if len(events) != 1 {
		t.Fatalf("expected 1 disposal event, got %d", len(events))
	}
	if !events[0].CostBasisUSD.Equal(dec("40")) {
		t.Errorf("disposal basis = %s, want the income recognition value 40", events[0].CostBasisUSD)
	}
	if !events[0].GainLossUSD.Equal(dec("20")) {
		t.Errorf("gain = %s, want 20", events[0].GainLossUSD)
	}
	if events[0].HoldingPeriod != models.LongTerm {
		t.Errorf("holding period = %s, want long_term after 400 days", events[0].HoldingPeriod)
	}
}

func TestBasisOverrideTakesPrecedence(t *testing.T) {
	override := &models.BasisOverride{
		CostBasisUSD: dec("750"),
		AcquiredAt:   day(-400),
	}
	tracker := NewLotTracker()
	tracker.Apply(acquisition("BTC", "1", "1000", day(0)))

	a := disposal("BTC", "1", "900", day(10))
	a.Override = override
	tracker.Apply(a)

	events, _, anomalies := tracker.Results()
	if len(events) != 1 {
		t.Fatalf("expected 1 event, got %d", len(events))
	}
	if !events[0].CostBasisUSD.Equal(dec("750")) {
		t.Errorf("basis = %s, want the override value 750", events[0].CostBasisUSD)
	}
	if events[0].HoldingPeriod != models.LongTerm {
		t.Errorf("holding period = %s, want long_term from the override date", events[0].HoldingPeriod)
	}
	if len(anomalies) != 0 {
		t.Errorf("expected no anomalies, got %+v", anomalies)
	}
	// The FIFO lot was still consumed, so the inventory stays conserved.
	if got := tracker.TotalRemaining("BTC"); !got.IsZero() {
		t.Errorf("remaining = %s, want 0", got)
	}
}

func TestFeeIncludedInAcquisitionBasis(t *testing.T) {
	tracker := NewLotTracker()
	a := acquisition("BTC", "1", "1000", day(0))
	a.FeeUSD = dec("25")
	tracker.Apply(a)

	lots := tracker.OpenLots()
	if len(lots) != 1 {
		t.Fatalf("expected 1 lot, got %d", len(lots))
	}
	if !lots[0].TotalCostBasisUSD.Equal(dec("1025")) {
		t.Errorf("basis = %s, want 1025 (value + fee)", lots[0].TotalCostBasisUSD)
	}
}
