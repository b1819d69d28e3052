package decoder

import (
	"context"
	"fmt"
	"strings"

	"github.com/fund-ledger/internal/chain"
	"github.com/fund-ledger/internal/models"
	"github.com/fund-ledger/internal/types"
)

// GenericDecoder is the mandatory fallback. It produces a native-asset
// transfer entry when the transaction carries value and a contract-call
// placeholder with no journal lines otherwise.
type GenericDecoder struct {
	dctx  *Context
	price chain.PriceOracle
}

// NewGenericDecoder creates the fallback decoder.
func NewGenericDecoder(dctx *Context, price chain.PriceOracle) *GenericDecoder {
	return &GenericDecoder{dctx: dctx, price: price}
}

// Platform identifies the decoder source.
func (d *GenericDecoder) Platform() types.Platform {
	return types.PlatformGeneric
}

// Matches always returns true; the registry keeps this decoder last.
func (d *GenericDecoder) Matches(_ *chain.RawTransaction) bool {
	return true
}

// Decode produces a native transfer entry for value-bearing transactions
// and a placeholder for bare contract calls.
func (d *GenericDecoder) Decode(ctx context.Context, tx *chain.RawTransaction, _ []chain.RawLog) (*models.DecodedTransaction, error) {
	refPrice, err := d.price.PriceAt(ctx, tx.Timestamp)
	if err != nil {
		return nil, fmt.Errorf("reference price lookup: %w", err)
	}

	category := types.CategoryETHTransfer
	if tx.Value == nil || tx.Value.Sign() == 0 {
		if len(tx.Input) > 0 {
			category = types.CategoryContractCall
		} else {
			category = types.CategoryUnknown
		}
	}

	dt := newDecodedTransaction(tx, types.PlatformGeneric, category, refPrice)
	if method := tx.MethodID(); method != "" {
		dt.FunctionName = method
	}

	if category != types.CategoryETHTransfer {
		// Placeholder entry: no lines, routed to review.
		entry := newJournalEntry(tx, d.dctx, category, types.PlatformGeneric, tx.From,
			fmt.Sprintf("Contract call %s", tx.Hash))
		dt.JournalEntries = append(dt.JournalEntries, entry)
		return dt, nil
	}

	native := d.dctx.NativeAsset
	amount := weiToDecimal(tx.Value, 18)

	if d.dctx.IsMonitored(tx.From) {
		wallet := strings.ToLower(tx.From)
		entry := newJournalEntry(tx, d.dctx, category, types.PlatformGeneric, wallet,
			fmt.Sprintf("%s transfer out of %s", native, wallet))
		entry.Lines = []models.JournalEntryLine{
			{Account: d.dctx.ClearingAccount(native), Direction: types.Debit, Amount: amount, Asset: native},
			{Account: AssetAccount(native), Direction: types.Credit, Amount: amount, Asset: native},
		}
		annotateRole(dt, d.dctx, wallet)
		dt.JournalEntries = append(dt.JournalEntries, entry)
	}

	if tx.To != "" && d.dctx.IsMonitored(tx.To) {
		wallet := strings.ToLower(tx.To)
		entry := newJournalEntry(tx, d.dctx, category, types.PlatformGeneric, wallet,
			fmt.Sprintf("%s transfer into %s", native, wallet))
		entry.Lines = []models.JournalEntryLine{
			{Account: AssetAccount(native), Direction: types.Debit, Amount: amount, Asset: native},
			{Account: d.dctx.ClearingAccount(native), Direction: types.Credit, Amount: amount, Asset: native},
		}
		annotateRole(dt, d.dctx, wallet)
		dt.JournalEntries = append(dt.JournalEntries, entry)
	}

	return dt, nil
}
