package decoder

import (
	"context"
	"fmt"
	"math/big"
	"strings"

	"github.com/fund-ledger/internal/chain"
	"github.com/fund-ledger/internal/models"
	"github.com/fund-ledger/internal/types"
)

// weth method selectors
const (
	selectorDeposit  = "0xd0e30db0" // deposit()
	selectorWithdraw = "0x2e1a7d4d" // withdraw(uint256)
)

// WETHDecoder handles wrapping and unwrapping of the native asset.
// Wrap entries balance on raw quantity because the wrapped symbol shares
// the native equivalence class; no clearing account is involved, so the
// integrator carries cost basis across instead of recognizing gain.
type WETHDecoder struct {
	dctx         *Context
	price        chain.PriceOracle
	contract     string
	wrappedAsset string
}

// NewWETHDecoder creates the wrap/unwrap decoder for the given wrapped
// native contract.
func NewWETHDecoder(dctx *Context, price chain.PriceOracle, contract, wrappedAsset string) *WETHDecoder {
	return &WETHDecoder{
		dctx:         dctx,
		price:        price,
		contract:     strings.ToLower(contract),
		wrappedAsset: wrappedAsset,
	}
}

// Platform identifies the decoder source.
func (d *WETHDecoder) Platform() types.Platform {
	return types.PlatformWETH
}

// Matches claims deposit and withdraw calls to the wrapped native contract.
func (d *WETHDecoder) Matches(tx *chain.RawTransaction) bool {
	if strings.ToLower(tx.To) != d.contract {
		return false
	}
	switch tx.MethodID() {
	case selectorDeposit, selectorWithdraw:
		return true
	}
	return false
}

// Decode produces a wrap or unwrap entry for the calling wallet.
func (d *WETHDecoder) Decode(ctx context.Context, tx *chain.RawTransaction, _ []chain.RawLog) (*models.DecodedTransaction, error) {
	refPrice, err := d.price.PriceAt(ctx, tx.Timestamp)
	if err != nil {
		return nil, fmt.Errorf("reference price lookup: %w", err)
	}

	native := d.dctx.NativeAsset
	wallet := strings.ToLower(tx.From)

	switch tx.MethodID() {
	case selectorDeposit:
		amount := weiToDecimal(tx.Value, 18)
		dt := newDecodedTransaction(tx, types.PlatformWETH, types.CategoryWrap, refPrice)
		dt.FunctionName = "deposit"

		if d.dctx.IsMonitored(tx.From) && amount.IsPositive() {
			entry := newJournalEntry(tx, d.dctx, types.CategoryWrap, types.PlatformWETH, wallet,
				fmt.Sprintf("Wrap %s %s to %s", amount.String(), native, d.wrappedAsset))
			entry.Lines = []models.JournalEntryLine{
				{Account: AssetAccount(d.wrappedAsset), Direction: types.Debit, Amount: amount, Asset: d.wrappedAsset},
				{Account: AssetAccount(native), Direction: types.Credit, Amount: amount, Asset: native},
			}
			dt.JournalEntries = append(dt.JournalEntries, entry)
		}
		return dt, nil

	case selectorWithdraw:
		if len(tx.Input) < 36 {
			return nil, fmt.Errorf("withdraw call data too short in %s", tx.Hash)
		}
		amount := weiToDecimal(new(big.Int).SetBytes(tx.Input[4:36]), 18)
		dt := newDecodedTransaction(tx, types.PlatformWETH, types.CategoryUnwrap, refPrice)
		dt.FunctionName = "withdraw"
		dt.FunctionParams = models.Params{}.With("wad", models.DecimalValue(amount))

		if d.dctx.IsMonitored(tx.From) && amount.IsPositive() {
			entry := newJournalEntry(tx, d.dctx, types.CategoryUnwrap, types.PlatformWETH, wallet,
				fmt.Sprintf("Unwrap %s %s to %s", amount.String(), d.wrappedAsset, native))
			entry.Lines = []models.JournalEntryLine{
				{Account: AssetAccount(native), Direction: types.Debit, Amount: amount, Asset: native},
				{Account: AssetAccount(d.wrappedAsset), Direction: types.Credit, Amount: amount, Asset: d.wrappedAsset},
			}
			dt.JournalEntries = append(dt.JournalEntries, entry)
		}
		return dt, nil
	}

	return nil, fmt.Errorf("unexpected selector %s in %s", tx.MethodID(), tx.Hash)
}
