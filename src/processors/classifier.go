package processors

import (
	"strings"
	"time"

	"github.com/shopspring/decimal"
	"github.com/username/coinfolio/backend/src/logger"
	"github.com/username/coinfolio/backend/src/models"
)

// ActionKind is the closed set of canonical actions the lot tracker
// understands. The tracker never sees raw type strings.
type ActionKind int

const (
	ActionNeutral ActionKind = iota
	ActionAcquisition
	ActionDisposal
	ActionSwap
)

func (k ActionKind) String() string {
	switch k {
	case ActionAcquisition:
		return "acquisition"
	case ActionDisposal:
		return "disposal"
	case ActionSwap:
		return "swap"
	default:
		return "neutral_transfer"
	}
}

// ClassifiedAction is one normalized action: sign conventions resolved,
// swap legs split out, income recognition flagged.
type ClassifiedAction struct {
	Kind      ActionKind
	Asset     string
	Amount    decimal.Decimal
	ValueUSD  decimal.Decimal // normalized to a non-negative magnitude
	FeeUSD    decimal.Decimal
	Timestamp time.Time

	// Incoming leg, populated only for Kind == ActionSwap.
	InAsset    string
	InAmount   decimal.Decimal
	InValueUSD decimal.Decimal

	// Income recognition, set alongside ActionAcquisition for reward-like
	// transactions. The asset still enters cost-basis tracking.
	Income     bool
	IncomeType models.IncomeType

	SourceRef string
	Override  *models.BasisOverride
}

// ClassifierStats counts rows the classifier dropped, for observability on
// the compiled report. Neutral passthroughs are counted where they land, in
// the lot tracker.
type ClassifierStats struct {
	MalformedSkipped int
}

var acquisitionTypes = map[string]bool{
	"buy":      true,
	"dca":      true,
	"receive":  true,
	"reward":   true,
	"staking":  true,
	"airdrop":  true,
	"interest": true,
	"income":   true,
	"deposit":  true,
}

var disposalTypes = map[string]bool{
	"sell":     true,
	"send":     true,
	"swap":     true,
	"withdraw": true,
}

var incomeTypeByLabel = map[string]models.IncomeType{
	"reward":   models.IncomeTypeReward,
	"staking":  models.IncomeTypeStaking,
	"airdrop":  models.IncomeTypeAirdrop,
	"interest": models.IncomeTypeInterest,
	"income":   models.IncomeTypeOther,
}

type Classifier struct{}

func NewClassifier() *Classifier { return &Classifier{} }

// Classify maps each transaction onto exactly one canonical action.
// Classification never fails: malformed rows are skipped and counted,
// unrecognized type strings fall through as neutral transfers.
func (c *Classifier) Classify(txs []models.UnifiedTransaction) ([]ClassifiedAction, []models.Anomaly, ClassifierStats) {
	actions := make([]ClassifiedAction, 0, len(txs))
	var anomalies []models.Anomaly
	var stats ClassifierStats

	for i := range txs {
		tx := &txs[i]
		if tx.AssetSymbol == "" || tx.Timestamp.IsZero() {
			stats.MalformedSkipped++
			anomalies = append(anomalies, models.Anomaly{
				Kind:        models.AnomalyMalformedInput,
				AssetSymbol: tx.AssetSymbol,
				Timestamp:   tx.Timestamp,
				Amount:      tx.Amount,
				SourceRef:   tx.HashID,
				Detail:      "transaction missing asset symbol or timestamp, skipped",
			})
			logger.L.Warn("skipping malformed transaction",
				"asset", tx.AssetSymbol, "type", tx.Type, "hashID", tx.HashID)
			continue
		}

		action, ok := c.classifyOne(tx, &anomalies)
		if !ok {
			logger.L.Debug("unrecognized transaction type, passing through as neutral transfer",
				"type", tx.Type, "asset", tx.AssetSymbol)
		}
		actions = append(actions, action)
	}
	return actions, anomalies, stats
}

// classifyOne returns the action for a single well-formed transaction and
// whether its type string was recognized.
func (c *Classifier) classifyOne(tx *models.UnifiedTransaction, anomalies *[]models.Anomaly) (ClassifiedAction, bool) {
	action := ClassifiedAction{
		Kind:      ActionNeutral,
		Asset:     tx.AssetSymbol,
		Amount:    tx.Amount.Abs(),
		ValueUSD:  tx.ValueUSD.Abs(),
		FeeUSD:    tx.FeeUSD,
		Timestamp: tx.Timestamp,
		SourceRef: tx.HashID,
		Override:  tx.BasisOverride,
	}

	typeLabel := strings.ToLower(strings.TrimSpace(tx.Type))
	switch {
	case acquisitionTypes[typeLabel]:
		action.Kind = ActionAcquisition
		if incomeType, isIncome := incomeTypeByLabel[typeLabel]; isIncome {
			action.Income = true
			action.IncomeType = incomeType
		}
		return action, true

	case disposalTypes[typeLabel]:
		action.Kind = ActionDisposal
		if tx.IncomingAssetSymbol != "" {
			if tx.IncomingAmount.IsPositive() {
				action.Kind = ActionSwap
				action.InAsset = tx.IncomingAssetSymbol
				action.InAmount = tx.IncomingAmount
				action.InValueUSD = tx.IncomingValueUSD.Abs()
			} else {
				// Incoming symbol without an amount: the acquisition leg is
				// unusable, so only the disposal leg is processed.
				*anomalies = append(*anomalies, models.Anomaly{
					Kind:        models.AnomalyMissingSwapLeg,
					AssetSymbol: tx.IncomingAssetSymbol,
					Timestamp:   tx.Timestamp,
					Amount:      tx.IncomingAmount,
					SourceRef:   tx.HashID,
					Detail:      "swap incoming leg missing amount, processed as plain disposal",
				})
			}
		}
		return action, true

	default:
		return action, false
	}
}

// AcquisitionCostBasis is the basis a recognized acquisition enters lot
// tracking at: absolute USD value plus any fee paid to acquire.
func (a *ClassifiedAction) AcquisitionCostBasis() decimal.Decimal {
	return a.ValueUSD.Add(a.FeeUSD)
}

// DisposalProceeds is the net USD proceeds of a plain disposal. For swaps the
// fee is attributed to the incoming leg instead, so the outgoing proceeds
// stay at the full exchanged value.
func (a *ClassifiedAction) DisposalProceeds() decimal.Decimal {
	if a.Kind == ActionSwap {
		return a.ValueUSD
	}
	return a.ValueUSD.Sub(a.FeeUSD)
}

// SwapInCostBasis is the basis the incoming leg of a swap enters lot
// tracking at.
func (a *ClassifiedAction) SwapInCostBasis() decimal.Decimal {
	return a.InValueUSD.Add(a.FeeUSD)
}
