package processors

import (
	"context"
	"encoding/json"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
	"github.com/username/coinfolio/backend/src/models"
)

func ts(year, month, dayOfMonth int) time.Time {
	return time.Date(year, time.Month(month), dayOfMonth, 12, 0, 0, 0, time.UTC)
}

func TestComputeTaxReportRejectsContractViolations(t *testing.T) {
	engine := NewEngine()

	_, err := engine.ComputeTaxReport(context.Background(), nil, 2022, "LIFO")
	require.ErrorIs(t, err, ErrUnsupportedMethod)

	_, err = engine.ComputeTaxReport(context.Background(), nil, -1, MethodFIFO)
	require.ErrorIs(t, err, ErrInvalidYear)

	_, err = engine.ComputeTaxReport(context.Background(), nil, 0, MethodFIFO)
	require.ErrorIs(t, err, ErrInvalidYear)
}

func TestComputeTaxReportEmptyInputYieldsEmptyReport(t *testing.T) {
	report, err := NewEngine().ComputeTaxReport(context.Background(), nil, 2022, MethodFIFO)
	require.NoError(t, err)
	require.Equal(t, 0, report.TaxableEventCount)
	require.True(t, report.ShortTermGainsUSD.IsZero())
	require.True(t, report.LongTermGainsUSD.IsZero())
	require.True(t, report.TotalIncomeUSD.IsZero())
	require.Empty(t, report.Anomalies)
}

// Two purchases in 2022, one 12 BTC sale in 2023: 10 BTC ride the first lot
// long-term, 2 BTC ride the second short-term.
func TestComputeTaxReportMultiLotScenario(t *testing.T) {
	txs := []models.UnifiedTransaction{
		{
			HashID: "buy-1", AssetSymbol: "BTC", Type: "buy",
			Amount: dec("10"), ValueUSD: dec("100000"),
			Timestamp: ts(2022, 1, 1), Provenance: models.ProvenanceExchangeAPI,
		},
		{
			HashID: "buy-2", AssetSymbol: "BTC", Type: "buy",
			Amount: dec("5"), ValueUSD: dec("60000"),
			Timestamp: ts(2022, 6, 1), Provenance: models.ProvenanceExchangeAPI,
		},
		{
			HashID: "sell-1", AssetSymbol: "BTC", Type: "sell",
			Amount: dec("12"), ValueUSD: dec("180000"),
			Timestamp: ts(2023, 2, 1), Provenance: models.ProvenanceExchangeAPI,
		},
	}

	report, err := NewEngine().ComputeTaxReport(context.Background(), txs, 2023, MethodFIFO)
	require.NoError(t, err)
	require.Len(t, report.TaxableEvents, 2)

	first := report.TaxableEvents[0]
	require.True(t, first.Amount.Equal(dec("10")), "amount = %s", first.Amount)
	require.True(t, first.CostBasisUSD.Equal(dec("100000")), "basis = %s", first.CostBasisUSD)
	require.True(t, first.ProceedsUSD.Equal(dec("150000")), "proceeds = %s", first.ProceedsUSD)
	require.True(t, first.GainLossUSD.Equal(dec("50000")), "gain = %s", first.GainLossUSD)
	require.Equal(t, models.LongTerm, first.HoldingPeriod)

	second := report.TaxableEvents[1]
	require.True(t, second.Amount.Equal(dec("2")), "amount = %s", second.Amount)
	require.True(t, second.CostBasisUSD.Equal(dec("24000")), "basis = %s", second.CostBasisUSD)
	require.True(t, second.ProceedsUSD.Equal(dec("30000")), "proceeds = %s", second.ProceedsUSD)
	require.True(t, second.GainLossUSD.Equal(dec("6000")), "gain = %s", second.GainLossUSD)
	require.Equal(t, models.ShortTerm, second.HoldingPeriod)

	require.True(t, report.LongTermGainsUSD.Equal(dec("50000")))
	require.True(t, report.ShortTermGainsUSD.Equal(dec("6000")))

	// 3 BTC of the second lot remain open.
	require.Len(t, report.OpenLots, 1)
	require.True(t, report.OpenLots[0].RemainingAmount.Equal(dec("3")))
}

func TestComputeTaxReportOnlyReportsRequestedYear(t *testing.T) {
	txs := []models.UnifiedTransaction{
		{
			HashID: "buy", AssetSymbol: "ETH", Type: "buy",
			Amount: dec("10"), ValueUSD: dec("10000"),
			Timestamp: ts(2021, 3, 1), Provenance: models.ProvenanceExchangeAPI,
		},
		{
			HashID: "sell-2021", AssetSymbol: "ETH", Type: "sell",
			Amount: dec("2"), ValueUSD: dec("5000"),
			Timestamp: ts(2021, 11, 1), Provenance: models.ProvenanceExchangeAPI,
		},
		{
			HashID: "sell-2022", AssetSymbol: "ETH", Type: "sell",
			Amount: dec("3"), ValueUSD: dec("6000"),
			Timestamp: ts(2022, 5, 1), Provenance: models.ProvenanceExchangeAPI,
		},
		{
			HashID: "reward-2022", AssetSymbol: "ETH", Type: "reward",
			Amount: dec("1"), ValueUSD: dec("1800"),
			Timestamp: ts(2022, 6, 1), Provenance: models.ProvenanceExchangeAPI,
		},
		{
			HashID: "reward-2021", AssetSymbol: "ETH", Type: "reward",
			Amount: dec("1"), ValueUSD: dec("4000"),
			Timestamp: ts(2021, 6, 1), Provenance: models.ProvenanceExchangeAPI,
		},
	}

	report, err := NewEngine().ComputeTaxReport(context.Background(), txs, 2022, MethodFIFO)
	require.NoError(t, err)

	// Only the 2022 sale is reported, but its basis comes from lots seeded in
	// 2021 (partially consumed by the 2021 sale).
	require.Len(t, report.TaxableEvents, 1)
	require.Equal(t, "sell-2022", report.TaxableEvents[0].SourceRef)
	require.True(t, report.TaxableEvents[0].CostBasisUSD.Equal(dec("3000")))

	require.Len(t, report.IncomeEvents, 1)
	require.Equal(t, "reward-2022", report.IncomeEvents[0].SourceRef)
	require.True(t, report.TotalIncomeUSD.Equal(dec("1800")))
}

func TestComputeTaxReportIsIdempotent(t *testing.T) {
	txs := []models.UnifiedTransaction{
		{HashID: "a", AssetSymbol: "BTC", Type: "buy", Amount: dec("2"), ValueUSD: dec("20000"), Timestamp: ts(2021, 1, 1), Provenance: models.ProvenanceExchangeAPI},
		{HashID: "b", AssetSymbol: "BTC", Type: "reward", Amount: dec("0.1"), ValueUSD: dec("1500"), Timestamp: ts(2022, 2, 1), Provenance: models.ProvenanceCSVImport},
		{HashID: "c", AssetSymbol: "BTC", Type: "sell", Amount: dec("1.5"), ValueUSD: dec("45000"), Timestamp: ts(2022, 3, 1), Provenance: models.ProvenanceExchangeAPI},
		{HashID: "d", AssetSymbol: "BTC", Type: "sell", Amount: dec("5"), ValueUSD: dec("9000"), Timestamp: ts(2022, 4, 1), Provenance: models.ProvenanceExchangeAPI},
	}

	engine := NewEngine()
	first, err := engine.ComputeTaxReport(context.Background(), txs, 2022, MethodFIFO)
	require.NoError(t, err)
	second, err := engine.ComputeTaxReport(context.Background(), txs, 2022, MethodFIFO)
	require.NoError(t, err)

	firstJSON, err := json.Marshal(first)
	require.NoError(t, err)
	secondJSON, err := json.Marshal(second)
	require.NoError(t, err)
	require.Equal(t, string(firstJSON), string(secondJSON))
}

func TestComputeTaxReportSurfacesAnomalies(t *testing.T) {
	txs := []models.UnifiedTransaction{
		{HashID: "oversell", AssetSymbol: "DOGE", Type: "sell", Amount: dec("100"), ValueUSD: dec("50"), Timestamp: ts(2022, 1, 1), Provenance: models.ProvenanceCSVImport},
		{HashID: "", AssetSymbol: "", Type: "buy", Amount: dec("1"), ValueUSD: dec("10"), Timestamp: ts(2022, 1, 2), Provenance: models.ProvenanceCSVImport},
		{HashID: "mystery", AssetSymbol: "BTC", Type: "rebase", Amount: dec("1"), ValueUSD: dec("10"), Timestamp: ts(2022, 1, 3), Provenance: models.ProvenanceCSVImport},
	}

	report, err := NewEngine().ComputeTaxReport(context.Background(), txs, 2022, MethodFIFO)
	require.NoError(t, err)

	require.Equal(t, 1, report.Counters.OversoldClamps)
	require.Equal(t, 1, report.Counters.MalformedSkipped)
	require.Equal(t, 1, report.Counters.NeutralTransfers)

	kinds := map[models.AnomalyKind]int{}
	for _, a := range report.Anomalies {
		kinds[a.Kind]++
	}
	require.Equal(t, 1, kinds[models.AnomalyOversold])
	require.Equal(t, 1, kinds[models.AnomalyMalformedInput])
}

func TestComputeTaxReportDropsDuplicates(t *testing.T) {
	buy := models.UnifiedTransaction{
		HashID: "same", AssetSymbol: "BTC", Type: "buy",
		Amount: dec("1"), ValueUSD: dec("10000"),
		Timestamp: ts(2022, 1, 1), Provenance: models.ProvenanceExchangeAPI,
	}
	report, err := NewEngine().ComputeTaxReport(context.Background(),
		[]models.UnifiedTransaction{buy, buy}, 2022, MethodFIFO)
	require.NoError(t, err)

	require.Equal(t, 1, report.Counters.DuplicatesDropped)
	require.Len(t, report.OpenLots, 1)
	require.True(t, report.OpenLots[0].RemainingAmount.Equal(dec("1")))
}

func TestComputeTaxReportHonorsCancellation(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	txs := []models.UnifiedTransaction{
		{HashID: "a", AssetSymbol: "BTC", Type: "buy", Amount: dec("1"), ValueUSD: dec("10"), Timestamp: ts(2022, 1, 1), Provenance: models.ProvenanceExchangeAPI},
	}
	_, err := NewEngine().ComputeTaxReport(ctx, txs, 2022, MethodFIFO)
	require.ErrorIs(t, err, context.Canceled)
}
