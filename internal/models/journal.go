package models

import (
	"fmt"
	"time"

	"github.com/fund-ledger/internal/types"
	"github.com/shopspring/decimal"
)

// BalanceTolerance absorbs rounding drift from unit conversion when checking
// the debit/credit balance invariant.
var BalanceTolerance = decimal.NewFromFloat(1e-8)

// JournalEntryLine is one side of a double-entry posting.
type JournalEntryLine struct {
	Account   string          `json:"account"`
	Direction types.Direction `json:"direction"`
	Amount    decimal.Decimal `json:"amount"`
	Asset     string          `json:"asset"`
}

// CostBasisEnrichment carries the cost-basis annotations the integrator
// attaches to a journal entry after driving the tracker.
type CostBasisEnrichment struct {
	LotID       string          `json:"lotId,omitempty"`
	CostPerUnit decimal.Decimal `json:"costPerUnit,omitempty"`

	DisposalID  string             `json:"disposalId,omitempty"`
	CostBasis   decimal.Decimal    `json:"costBasis,omitempty"`
	Proceeds    decimal.Decimal    `json:"proceeds,omitempty"`
	GainLoss    decimal.Decimal    `json:"gainLoss,omitempty"`
	HoldingDays int                `json:"holdingDays,omitempty"`
	IsLongTerm  bool               `json:"isLongTerm,omitempty"`
	Treatment   types.TaxTreatment `json:"taxTreatment,omitempty"`
}

// JournalEntry is a balanced double-entry record produced by a decoder.
type JournalEntry struct {
	EntryID       string              `json:"entryId"`
	Date          time.Time           `json:"date"`
	Description   string              `json:"description"`
	TxHash        string              `json:"txHash"`
	Category      types.TxCategory    `json:"category"`
	Platform      types.Platform      `json:"platform"`
	WalletAddress string              `json:"walletAddress"`
	FundID        string              `json:"fundId"`
	Lines         []JournalEntryLine  `json:"lines"`
	PostingStatus types.PostingStatus `json:"postingStatus"`

	// Enrichment is set by the integrator when a clearing-account flow was
	// matched to a cost-basis event. IntegrationError records a per-entry
	// failure without discarding the entry.
	Enrichment       *CostBasisEnrichment `json:"enrichment,omitempty"`
	IntegrationError string               `json:"integrationError,omitempty"`
}

// Validate checks the balance invariant: total normalized debits must equal
// total normalized credits. Within an equivalence class raw quantities cancel
// directly; residual quantities are converted to the unit of account via the
// reference price, so two non-equivalent assets can only balance on value.
func (e *JournalEntry) Validate(eq *AssetEquivalence, referencePrice decimal.Decimal) error {
	if len(e.Lines) == 0 {
		return fmt.Errorf("entry %s: no lines", e.EntryID)
	}

	// Net quantity per equivalence class, debits positive.
	perClass := make(map[string]decimal.Decimal)
	classAsset := make(map[string]string)
	for _, line := range e.Lines {
		if line.Amount.IsNegative() {
			return fmt.Errorf("entry %s: negative amount on account %s", e.EntryID, line.Account)
		}
		class := eq.ClassOf(line.Asset)
		classAsset[class] = line.Asset
		switch line.Direction {
		case types.Debit:
			perClass[class] = perClass[class].Add(line.Amount)
		case types.Credit:
			perClass[class] = perClass[class].Sub(line.Amount)
		default:
			return fmt.Errorf("entry %s: invalid direction %q", e.EntryID, line.Direction)
		}
	}

	// Residuals across classes must cancel in unit-of-account terms.
	residual := decimal.Zero
	for class, net := range perClass {
		if net.Abs().LessThanOrEqual(BalanceTolerance) {
			continue
		}
		value, ok := eq.UnitValue(classAsset[class], net, referencePrice)
		if !ok {
			return fmt.Errorf("entry %s: unbalanced quantity %s of %s has no unit-of-account conversion",
				e.EntryID, net.String(), classAsset[class])
		}
		residual = residual.Add(value)
	}
	if residual.Abs().GreaterThan(BalanceTolerance) {
		return fmt.Errorf("entry %s: debits and credits differ by %s in unit-of-account value",
			e.EntryID, residual.String())
	}
	return nil
}

// LinesFor returns the lines posted in the given direction.
func (e *JournalEntry) LinesFor(dir types.Direction) []JournalEntryLine {
	var out []JournalEntryLine
	for _, line := range e.Lines {
		if line.Direction == dir {
			out = append(out, line)
		}
	}
	return out
}
