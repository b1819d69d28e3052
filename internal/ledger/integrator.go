// Package ledger binds decoded journal entries to cost-basis events.
// The integrator reads the direction of flow through clearing accounts
// to decide whether an entry acquires or disposes an asset, drives the
// cost-basis tracker accordingly, and writes the resulting lot or
// disposal details back onto the entry as enrichment.
package ledger

import (
	"fmt"
	"strings"

	"github.com/shopspring/decimal"

	"github.com/fund-ledger/internal/costbasis"
	"github.com/fund-ledger/internal/logging"
	"github.com/fund-ledger/internal/models"
	"github.com/fund-ledger/internal/types"
)

// Integrator enriches decoded transactions with cost-basis results.
// Failures are recorded per entry; one bad entry never aborts its
// siblings in the same transaction.
type Integrator struct {
	tracker         *costbasis.Tracker
	equivalence     *models.AssetEquivalence
	clearingPattern string
	logger          *logging.Logger
}

// NewIntegrator creates an integrator. clearingPattern is the substring
// that identifies a clearing account in a journal line's account name.
func NewIntegrator(tracker *costbasis.Tracker, eq *models.AssetEquivalence, clearingPattern string) *Integrator {
	if clearingPattern == "" {
		clearingPattern = "clearing"
	}
	return &Integrator{
		tracker:         tracker,
		equivalence:     eq,
		clearingPattern: clearingPattern,
		logger:          logging.GetGlobalLogger().WithField("component", "integrator"),
	}
}

// EnrichTransaction processes every journal entry of a decoded
// transaction through the cost-basis tracker.
func (i *Integrator) EnrichTransaction(dt *models.DecodedTransaction) {
	for _, entry := range dt.JournalEntries {
		i.enrichEntry(entry, dt.ReferencePrice)
	}
}

// enrichEntry applies one entry to the tracker. Wrap and unwrap entries
// carry basis across without recognizing gain; everything else is driven
// by clearing-account flow direction.
func (i *Integrator) enrichEntry(entry *models.JournalEntry, referencePrice decimal.Decimal) {
	if len(entry.Lines) == 0 {
		return
	}

	if err := entry.Validate(i.equivalence, referencePrice); err != nil {
		entry.IntegrationError = err.Error()
		i.logger.WithFields(map[string]interface{}{
			"entryId": entry.EntryID,
			"error":   err.Error(),
		}).Warn("Entry failed balance validation, left unenriched")
		return
	}

	switch entry.Category {
	case types.CategoryWrap, types.CategoryUnwrap:
		i.carryBasis(entry, referencePrice)
		return
	}

	for _, line := range entry.Lines {
		if !i.isClearing(line.Account) {
			continue
		}
		if !line.Amount.IsPositive() {
			continue
		}

		counterpart, ok := i.counterpart(entry, line)
		if !ok {
			entry.IntegrationError = fmt.Sprintf("no counterpart leg for clearing line %s", line.Account)
			i.logger.WithField("entryId", entry.EntryID).Warn("Clearing line has no counterpart leg")
			continue
		}

		value, ok := i.equivalence.UnitValue(line.Asset, line.Amount, referencePrice)
		if !ok {
			entry.IntegrationError = fmt.Sprintf("clearing asset %s has no unit-of-account conversion", line.Asset)
			continue
		}

		wallet := entry.WalletAddress
		switch line.Direction {
		case types.Credit:
			// Value left the clearing account: the debited counterpart
			// asset was acquired.
			lot := i.tracker.AddAcquisition(counterpart.Asset, counterpart.Amount, value,
				entry.Date, entry.TxHash, wallet, entry.FundID)
			entry.Enrichment = &models.CostBasisEnrichment{
				LotID:       lot.LotID,
				CostPerUnit: lot.CostPerUnit,
			}

		case types.Debit:
			// Value entered the clearing account: the credited counterpart
			// asset was disposed.
			event := i.tracker.ProcessDisposal(counterpart.Asset, counterpart.Amount, value,
				entry.Date, entry.TxHash, wallet, entry.FundID)
			entry.Enrichment = &models.CostBasisEnrichment{
				DisposalID:  event.DisposalID,
				CostBasis:   event.CostBasis,
				Proceeds:    event.Proceeds,
				GainLoss:    event.GainLoss,
				HoldingDays: event.HoldingDays,
				IsLongTerm:  event.IsLongTerm,
				Treatment:   event.Treatment,
			}
		}
	}
}

// carryBasis handles wrap and unwrap entries: dispose the credited asset,
// acquire the debited asset with the disposed basis carried over.
func (i *Integrator) carryBasis(entry *models.JournalEntry, referencePrice decimal.Decimal) {
	debits := entry.LinesFor(types.Debit)
	credits := entry.LinesFor(types.Credit)
	if len(debits) != 1 || len(credits) != 1 {
		entry.IntegrationError = "basis carry-over needs exactly one debit and one credit line"
		return
	}
	from, to := credits[0], debits[0]
	if !from.Amount.IsPositive() || !to.Amount.IsPositive() {
		return
	}

	event, lot := i.tracker.ProcessSwap(from.Asset, from.Amount, to.Asset, to.Amount,
		referencePrice, entry.Date, entry.TxHash, entry.WalletAddress, entry.FundID)
	entry.Enrichment = &models.CostBasisEnrichment{
		LotID:       lot.LotID,
		CostPerUnit: lot.CostPerUnit,
		DisposalID:  event.DisposalID,
		CostBasis:   event.CostBasis,
		Proceeds:    event.Proceeds,
		GainLoss:    event.GainLoss,
		HoldingDays: event.HoldingDays,
		IsLongTerm:  event.IsLongTerm,
		Treatment:   event.Treatment,
	}
}

// counterpart finds the non-clearing line with the opposite direction.
func (i *Integrator) counterpart(entry *models.JournalEntry, clearing models.JournalEntryLine) (models.JournalEntryLine, bool) {
	opposite := types.Credit
	if clearing.Direction == types.Credit {
		opposite = types.Debit
	}
	for _, line := range entry.Lines {
		if i.isClearing(line.Account) {
			continue
		}
		if line.Direction == opposite && line.Amount.IsPositive() {
			return line, true
		}
	}
	return models.JournalEntryLine{}, false
}

func (i *Integrator) isClearing(account string) bool {
	return strings.Contains(account, i.clearingPattern)
}
