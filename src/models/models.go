package models

import (
	"time"

	"github.com/shopspring/decimal"
)

// Provenance identifies which import path produced a transaction.
type Provenance string

const (
	ProvenanceWallet      Provenance = "wallet"
	ProvenanceCSVImport   Provenance = "csv_import"
	ProvenanceExchangeAPI Provenance = "exchange_api"
)

// HoldingPeriod classifies a disposal for capital-gains purposes.
type HoldingPeriod string

const (
	ShortTerm HoldingPeriod = "short_term"
	LongTerm  HoldingPeriod = "long_term"
)

// IncomeType labels recognized ordinary income.
type IncomeType string

const (
	IncomeTypeReward   IncomeType = "reward"
	IncomeTypeStaking  IncomeType = "staking"
	IncomeTypeAirdrop  IncomeType = "airdrop"
	IncomeTypeInterest IncomeType = "interest"
	IncomeTypeOther    IncomeType = "other"
)

// BasisOverride is an optional structured override of the computed cost basis
// for a single transaction. Upstream normalizers populate it when a lossy
// import carried purchase date/basis information out of band.
type BasisOverride struct {
	CostBasisUSD decimal.Decimal `json:"cost_basis_usd"`
	AcquiredAt   time.Time       `json:"acquired_at"`
}

// UnifiedTransaction is the normalized representation every import path
// (wallet sync, CSV upload, exchange API) reduces to. It is immutable once
// constructed; the engine never writes back to it.
type UnifiedTransaction struct {
	ID     int64  `json:"id,omitempty"`
	UserID int64  `json:"-"`
	HashID string `json:"hash_id,omitempty"`

	AssetSymbol string          `json:"asset_symbol"`
	Type        string          `json:"type"` // free-form source label, e.g. "Buy", "sell", "DCA"
	Amount      decimal.Decimal `json:"amount"`
	ValueUSD    decimal.Decimal `json:"value_usd"`
	FeeUSD      decimal.Decimal `json:"fee_usd"`
	Timestamp   time.Time       `json:"timestamp"`

	// Populated only for swap-shaped transactions.
	IncomingAssetSymbol string          `json:"incoming_asset_symbol,omitempty"`
	IncomingAmount      decimal.Decimal `json:"incoming_amount"`
	IncomingValueUSD    decimal.Decimal `json:"incoming_value_usd"`

	Annotation         string         `json:"annotation,omitempty"`
	Provenance         Provenance     `json:"provenance"`
	OwnerWalletAddress string         `json:"owner_wallet_address,omitempty"`
	BasisOverride      *BasisOverride `json:"basis_override,omitempty"`
}

// AcquisitionLot is one discrete acquisition of an asset, consumable by later
// disposals. Owned exclusively by a single lot-tracker run.
type AcquisitionLot struct {
	AssetSymbol       string          `json:"asset_symbol"`
	AcquiredAt        time.Time       `json:"acquired_at"`
	OriginalAmount    decimal.Decimal `json:"original_amount"`
	RemainingAmount   decimal.Decimal `json:"remaining_amount"`
	TotalCostBasisUSD decimal.Decimal `json:"total_cost_basis_usd"`
	RemainingBasisUSD decimal.Decimal `json:"remaining_basis_usd"`
	SourceRef         string          `json:"source_ref,omitempty"`
}

// PerUnitCostBasis returns the remaining basis per remaining unit. A lot
// reduced to zero remaining amount contributes zero basis per unit instead of
// dividing by zero.
func (l *AcquisitionLot) PerUnitCostBasis() decimal.Decimal {
	if !l.RemainingAmount.IsPositive() {
		return decimal.Zero
	}
	return l.RemainingBasisUSD.Div(l.RemainingAmount)
}

// TaxableEvent is one realized disposal, or the portion of a disposal matched
// against a single acquisition lot.
type TaxableEvent struct {
	AssetSymbol   string          `json:"asset_symbol"`
	DisposalDate  time.Time       `json:"disposal_date"`
	AcquiredAt    time.Time       `json:"acquired_at"`
	Amount        decimal.Decimal `json:"amount"`
	ProceedsUSD   decimal.Decimal `json:"proceeds_usd"`
	CostBasisUSD  decimal.Decimal `json:"cost_basis_usd"`
	GainLossUSD   decimal.Decimal `json:"gain_loss_usd"`
	HoldingPeriod HoldingPeriod   `json:"holding_period"`
	SourceRef     string          `json:"source_ref,omitempty"`
}

// IncomeEvent is a recognition of asset value as ordinary income,
// independent of any later disposal of the same units.
type IncomeEvent struct {
	AssetSymbol string          `json:"asset_symbol"`
	Date        time.Time       `json:"date"`
	Amount      decimal.Decimal `json:"amount"`
	ValueUSD    decimal.Decimal `json:"value_usd"`
	IncomeType  IncomeType      `json:"income_type"`
	SourceRef   string          `json:"source_ref,omitempty"`
}

// AnomalyKind enumerates the data-quality conditions the engine absorbs
// instead of failing on.
type AnomalyKind string

const (
	AnomalyOversold       AnomalyKind = "oversold"
	AnomalyMalformedInput AnomalyKind = "malformed_input"
	AnomalyMissingSwapLeg AnomalyKind = "missing_swap_leg"
)

// Anomaly is a non-fatal data-quality finding surfaced on the report for user
// review, rather than being lost in server logs.
type Anomaly struct {
	Kind        AnomalyKind     `json:"kind"`
	AssetSymbol string          `json:"asset_symbol,omitempty"`
	Timestamp   time.Time       `json:"timestamp,omitempty"`
	Amount      decimal.Decimal `json:"amount"`
	SourceRef   string          `json:"source_ref,omitempty"`
	Detail      string          `json:"detail"`
}

// DisposalBucket groups realized disposals by asset and holding period, the
// granularity a Form-8949-style export needs.
type DisposalBucket struct {
	AssetSymbol   string          `json:"asset_symbol"`
	HoldingPeriod HoldingPeriod   `json:"holding_period"`
	Amount        decimal.Decimal `json:"amount"`
	ProceedsUSD   decimal.Decimal `json:"proceeds_usd"`
	CostBasisUSD  decimal.Decimal `json:"cost_basis_usd"`
	GainLossUSD   decimal.Decimal `json:"gain_loss_usd"`
	EventCount    int             `json:"event_count"`
}

// ReportCounters summarizes how many rows were dropped or degraded while
// computing a report.
type ReportCounters struct {
	DuplicatesDropped int `json:"duplicates_dropped"`
	MalformedSkipped  int `json:"malformed_skipped"`
	NeutralTransfers  int `json:"neutral_transfers"`
	OversoldClamps    int `json:"oversold_clamps"`
}

// TaxReport is the full output of one report computation. It is a pure
// function of the input transaction set, so recomputing it for the same
// inputs yields identical content.
type TaxReport struct {
	Year   int    `json:"year"`
	Method string `json:"method"`

	ShortTermGainsUSD decimal.Decimal `json:"short_term_gains_usd"`
	LongTermGainsUSD  decimal.Decimal `json:"long_term_gains_usd"`
	TotalIncomeUSD    decimal.Decimal `json:"total_income_usd"`
	TaxableEventCount int             `json:"taxable_event_count"`

	DisposalBuckets []DisposalBucket `json:"disposal_buckets"`
	TaxableEvents   []TaxableEvent   `json:"taxable_events"`
	IncomeEvents    []IncomeEvent    `json:"income_events"`

	Anomalies []Anomaly      `json:"anomalies"`
	Counters  ReportCounters `json:"counters"`

	// Open lots remaining after replaying history through year end.
	OpenLots []AcquisitionLot `json:"open_lots"`
}
