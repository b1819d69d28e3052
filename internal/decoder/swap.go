package decoder

import (
	"context"
	"fmt"
	"math/big"
	"strings"

	"github.com/ethereum/go-ethereum/common"
	"github.com/shopspring/decimal"

	"github.com/fund-ledger/internal/chain"
	"github.com/fund-ledger/internal/models"
	"github.com/fund-ledger/internal/types"
)

// SwapDecoder handles Uniswap-V2-style router trades. A trade is a
// taxable exchange, so it produces two clearing-balanced entries: a
// disposal of the outgoing asset and an acquisition of the incoming one.
type SwapDecoder struct {
	dctx   *Context
	price  chain.PriceOracle
	router string
}

// NewSwapDecoder creates the router trade decoder for the given router
// contract address.
func NewSwapDecoder(dctx *Context, price chain.PriceOracle, router string) *SwapDecoder {
	return &SwapDecoder{dctx: dctx, price: price, router: strings.ToLower(router)}
}

// Platform identifies the decoder source.
func (d *SwapDecoder) Platform() types.Platform {
	return types.PlatformUniswapV2
}

// Matches claims transactions sent to the router contract.
func (d *SwapDecoder) Matches(tx *chain.RawTransaction) bool {
	return d.router != "" && strings.ToLower(tx.To) == d.router
}

// Decode determines the wallet's outgoing and incoming legs from the
// trade's Transfer logs. Native value sent with the call is the outgoing
// leg when no token left the wallet.
func (d *SwapDecoder) Decode(ctx context.Context, tx *chain.RawTransaction, logs []chain.RawLog) (*models.DecodedTransaction, error) {
	refPrice, err := d.price.PriceAt(ctx, tx.Timestamp)
	if err != nil {
		return nil, fmt.Errorf("reference price lookup: %w", err)
	}

	wallet := strings.ToLower(tx.From)
	if !d.dctx.IsMonitored(tx.From) {
		dt := newDecodedTransaction(tx, types.PlatformUniswapV2, types.CategorySwap, refPrice)
		return dt, nil
	}

	var outAsset, inAsset string
	var outAmount, inAmount decimal.Decimal

	dt := newDecodedTransaction(tx, types.PlatformUniswapV2, types.CategorySwap, refPrice)

	for _, l := range logs {
		if len(l.Topics) < 3 || l.Topics[0] != transferTopic {
			continue
		}
		from := strings.ToLower(common.BytesToAddress(l.Topics[1].Bytes()).Hex())
		to := strings.ToLower(common.BytesToAddress(l.Topics[2].Bytes()).Hex())
		token := d.dctx.Token(l.Address.Hex())
		amount := weiToDecimal(new(big.Int).SetBytes(l.Data), token.Decimals)

		dt.Events = append(dt.Events, models.DecodedEvent{
			Name: "Transfer",
			Args: models.Params{}.
				With("token", models.AddressValue(l.Address.Hex())).
				With("from", models.AddressValue(from)).
				With("to", models.AddressValue(to)).
				With("amount", models.DecimalValue(amount)),
		})

		switch {
		case from == wallet:
			outAsset, outAmount = token.Symbol, amount
		case to == wallet:
			inAsset, inAmount = token.Symbol, amount
		}
	}

	// Value sent with the call is the outgoing leg for native-in trades.
	if outAsset == "" && tx.Value != nil && tx.Value.Sign() > 0 {
		outAsset = d.dctx.NativeAsset
		outAmount = weiToDecimal(tx.Value, 18)
	}

	if outAsset == "" || inAsset == "" {
		return nil, fmt.Errorf("could not resolve both trade legs in %s", tx.Hash)
	}

	dt.WalletRoles[wallet] = types.RoleTrader

	disposal := newJournalEntry(tx, d.dctx, types.CategorySwap, types.PlatformUniswapV2, wallet,
		fmt.Sprintf("Swap out %s %s", outAmount.String(), outAsset))
	disposal.Lines = []models.JournalEntryLine{
		{Account: d.dctx.ClearingAccount(outAsset), Direction: types.Debit, Amount: outAmount, Asset: outAsset},
		{Account: AssetAccount(outAsset), Direction: types.Credit, Amount: outAmount, Asset: outAsset},
	}

	acquisition := newJournalEntry(tx, d.dctx, types.CategorySwap, types.PlatformUniswapV2, wallet,
		fmt.Sprintf("Swap in %s %s", inAmount.String(), inAsset))
	acquisition.Lines = []models.JournalEntryLine{
		{Account: AssetAccount(inAsset), Direction: types.Debit, Amount: inAmount, Asset: inAsset},
		{Account: d.dctx.ClearingAccount(inAsset), Direction: types.Credit, Amount: inAmount, Asset: inAsset},
	}

	dt.JournalEntries = append(dt.JournalEntries, disposal, acquisition)
	return dt, nil
}
