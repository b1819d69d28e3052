package decoder

import (
	"context"
	"fmt"
	"math/big"
	"strings"

	"github.com/ethereum/go-ethereum/common"

	"github.com/fund-ledger/internal/chain"
	"github.com/fund-ledger/internal/models"
	"github.com/fund-ledger/internal/types"
)

// ERC20 Transfer event signature: Transfer(address,address,uint256)
var transferTopic = common.HexToHash("0xddf252ad1be2c89b69c2b068fc378daa952ba7f163c4a11628f55a4df523b3ef")

// erc20 method selectors
const (
	selectorTransfer     = "0xa9059cbb"
	selectorTransferFrom = "0x23b872dd"
)

// ERC20Decoder handles plain token transfers touching a monitored wallet.
type ERC20Decoder struct {
	dctx  *Context
	price chain.PriceOracle
}

// NewERC20Decoder creates the token transfer decoder.
func NewERC20Decoder(dctx *Context, price chain.PriceOracle) *ERC20Decoder {
	return &ERC20Decoder{dctx: dctx, price: price}
}

// Platform identifies the decoder source.
func (d *ERC20Decoder) Platform() types.Platform {
	return types.PlatformERC20
}

// Matches claims transactions whose call data is a transfer or
// transferFrom selector.
func (d *ERC20Decoder) Matches(tx *chain.RawTransaction) bool {
	switch tx.MethodID() {
	case selectorTransfer, selectorTransferFrom:
		return true
	}
	return false
}

// Decode walks the receipt's Transfer logs and produces one balanced
// entry per monitored-wallet leg. Token-in debits the asset account
// against the token's clearing account; token-out is the mirror image.
func (d *ERC20Decoder) Decode(ctx context.Context, tx *chain.RawTransaction, logs []chain.RawLog) (*models.DecodedTransaction, error) {
	refPrice, err := d.price.PriceAt(ctx, tx.Timestamp)
	if err != nil {
		return nil, fmt.Errorf("reference price lookup: %w", err)
	}

	dt := newDecodedTransaction(tx, types.PlatformERC20, types.CategoryTokenTransfer, refPrice)
	dt.FunctionName = "transfer"
	if tx.MethodID() == selectorTransferFrom {
		dt.FunctionName = "transferFrom"
	}

	matched := 0
	for _, l := range logs {
		if len(l.Topics) < 3 || l.Topics[0] != transferTopic {
			continue
		}

		from := common.BytesToAddress(l.Topics[1].Bytes()).Hex()
		to := common.BytesToAddress(l.Topics[2].Bytes()).Hex()
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

		if d.dctx.IsMonitored(from) {
			wallet := strings.ToLower(from)
			entry := newJournalEntry(tx, d.dctx, types.CategoryTokenTransfer, types.PlatformERC20, wallet,
				fmt.Sprintf("%s transfer out of %s", token.Symbol, wallet))
			entry.Lines = []models.JournalEntryLine{
				{Account: d.dctx.ClearingAccount(token.Symbol), Direction: types.Debit, Amount: amount, Asset: token.Symbol},
				{Account: AssetAccount(token.Symbol), Direction: types.Credit, Amount: amount, Asset: token.Symbol},
			}
			annotateRole(dt, d.dctx, wallet)
			dt.JournalEntries = append(dt.JournalEntries, entry)
			matched++
		}

		if d.dctx.IsMonitored(to) {
			wallet := strings.ToLower(to)
			entry := newJournalEntry(tx, d.dctx, types.CategoryTokenTransfer, types.PlatformERC20, wallet,
				fmt.Sprintf("%s transfer into %s", token.Symbol, wallet))
			entry.Lines = []models.JournalEntryLine{
				{Account: AssetAccount(token.Symbol), Direction: types.Debit, Amount: amount, Asset: token.Symbol},
				{Account: d.dctx.ClearingAccount(token.Symbol), Direction: types.Credit, Amount: amount, Asset: token.Symbol},
			}
			annotateRole(dt, d.dctx, wallet)
			dt.JournalEntries = append(dt.JournalEntries, entry)
			matched++
		}
	}

	if matched == 0 && len(dt.Events) == 0 {
		return nil, fmt.Errorf("no Transfer event found in %s", tx.Hash)
	}

	return dt, nil
}
