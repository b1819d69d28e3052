package decoder

import (
	"context"
	"fmt"
	"math/big"
	"strings"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/crypto"
	"github.com/shopspring/decimal"

	"github.com/fund-ledger/internal/chain"
	"github.com/fund-ledger/internal/models"
	"github.com/fund-ledger/internal/types"
)

// Aave-v3 pool event topics, derived from the canonical signatures.
var (
	supplyTopic   = crypto.Keccak256Hash([]byte("Supply(address,address,address,uint256,uint16)"))
	withdrawTopic = crypto.Keccak256Hash([]byte("Withdraw(address,address,address,uint256)"))
	borrowTopic   = crypto.Keccak256Hash([]byte("Borrow(address,address,address,uint256,uint8,uint256,uint16)"))
	repayTopic    = crypto.Keccak256Hash([]byte("Repay(address,address,address,uint256,bool)"))
)

// LendingDecoder handles Aave-style pool interactions: supplying and
// withdrawing collateral, drawing and repaying debt. A transaction that
// both repays and re-borrows in one call is classified as a refinance.
type LendingDecoder struct {
	dctx     *Context
	price    chain.PriceOracle
	contract string
}

// NewLendingDecoder creates the lending pool decoder for the given pool
// contract address.
func NewLendingDecoder(dctx *Context, price chain.PriceOracle, contract string) *LendingDecoder {
	return &LendingDecoder{dctx: dctx, price: price, contract: strings.ToLower(contract)}
}

// Platform identifies the decoder source.
func (d *LendingDecoder) Platform() types.Platform {
	return types.PlatformAaveV3
}

// Matches claims transactions sent to the lending pool contract.
func (d *LendingDecoder) Matches(tx *chain.RawTransaction) bool {
	return d.contract != "" && strings.ToLower(tx.To) == d.contract
}

// Decode walks the pool events and produces one entry per leg. Pool legs
// move value between the fund's asset accounts and platform/liability
// accounts, so they carry no clearing flow and no cost-basis activity.
func (d *LendingDecoder) Decode(ctx context.Context, tx *chain.RawTransaction, logs []chain.RawLog) (*models.DecodedTransaction, error) {
	refPrice, err := d.price.PriceAt(ctx, tx.Timestamp)
	if err != nil {
		return nil, fmt.Errorf("reference price lookup: %w", err)
	}

	dt := newDecodedTransaction(tx, types.PlatformAaveV3, types.CategoryContractCall, refPrice)
	wallet := strings.ToLower(tx.From)

	var sawBorrow, sawRepay bool

	for _, l := range logs {
		if len(l.Topics) < 2 {
			continue
		}

		switch l.Topics[0] {
		case supplyTopic:
			asset, amount := d.reserveAmount(l, 32)
			dt.Category = types.CategoryDeposit
			dt.Events = append(dt.Events, lendingEvent("Supply", l, asset, amount))
			if d.dctx.IsMonitored(tx.From) {
				entry := newJournalEntry(tx, d.dctx, types.CategoryDeposit, types.PlatformAaveV3, wallet,
					fmt.Sprintf("Supply %s %s to pool", amount.String(), asset))
				entry.Lines = []models.JournalEntryLine{
					{Account: PlatformAccount(types.PlatformAaveV3, asset), Direction: types.Debit, Amount: amount, Asset: asset},
					{Account: AssetAccount(asset), Direction: types.Credit, Amount: amount, Asset: asset},
				}
				dt.JournalEntries = append(dt.JournalEntries, entry)
				dt.WalletRoles[wallet] = types.RoleLender
			}

		case withdrawTopic:
			asset, amount := d.reserveAmount(l, 0)
			dt.Category = types.CategoryWithdrawal
			dt.Events = append(dt.Events, lendingEvent("Withdraw", l, asset, amount))
			if d.dctx.IsMonitored(tx.From) {
				entry := newJournalEntry(tx, d.dctx, types.CategoryWithdrawal, types.PlatformAaveV3, wallet,
					fmt.Sprintf("Withdraw %s %s from pool", amount.String(), asset))
				entry.Lines = []models.JournalEntryLine{
					{Account: AssetAccount(asset), Direction: types.Debit, Amount: amount, Asset: asset},
					{Account: PlatformAccount(types.PlatformAaveV3, asset), Direction: types.Credit, Amount: amount, Asset: asset},
				}
				dt.JournalEntries = append(dt.JournalEntries, entry)
				dt.WalletRoles[wallet] = types.RoleLender
			}

		case borrowTopic:
			asset, amount := d.reserveAmount(l, 32)
			sawBorrow = true
			dt.Category = types.CategoryLoanOrigination
			dt.Events = append(dt.Events, lendingEvent("Borrow", l, asset, amount))
			if d.dctx.IsMonitored(tx.From) {
				entry := newJournalEntry(tx, d.dctx, types.CategoryLoanOrigination, types.PlatformAaveV3, wallet,
					fmt.Sprintf("Borrow %s %s from pool", amount.String(), asset))
				entry.Lines = []models.JournalEntryLine{
					{Account: AssetAccount(asset), Direction: types.Debit, Amount: amount, Asset: asset},
					{Account: LiabilityAccount(types.PlatformAaveV3, asset), Direction: types.Credit, Amount: amount, Asset: asset},
				}
				dt.JournalEntries = append(dt.JournalEntries, entry)
				dt.WalletRoles[wallet] = types.RoleBorrower
				dt.Positions[positionID(tx.Hash, asset)] = models.LoanPosition{
					PositionID: positionID(tx.Hash, asset),
					Platform:   types.PlatformAaveV3,
					DebtAsset:  asset,
					DebtAmount: amount,
					Status:     "open",
				}
			}

		case repayTopic:
			asset, amount := d.reserveAmount(l, 0)
			sawRepay = true
			dt.Category = types.CategoryLoanRepayment
			dt.Events = append(dt.Events, lendingEvent("Repay", l, asset, amount))
			if d.dctx.IsMonitored(tx.From) {
				entry := newJournalEntry(tx, d.dctx, types.CategoryLoanRepayment, types.PlatformAaveV3, wallet,
					fmt.Sprintf("Repay %s %s to pool", amount.String(), asset))
				entry.Lines = []models.JournalEntryLine{
					{Account: LiabilityAccount(types.PlatformAaveV3, asset), Direction: types.Debit, Amount: amount, Asset: asset},
					{Account: AssetAccount(asset), Direction: types.Credit, Amount: amount, Asset: asset},
				}
				dt.JournalEntries = append(dt.JournalEntries, entry)
				dt.WalletRoles[wallet] = types.RoleBorrower
				dt.Positions[positionID(tx.Hash, asset)] = models.LoanPosition{
					PositionID: positionID(tx.Hash, asset),
					Platform:   types.PlatformAaveV3,
					DebtAsset:  asset,
					DebtAmount: amount,
					Status:     "repaid",
				}
			}
		}
	}

	// Repay immediately followed by a new borrow in the same call rolls
	// the position over.
	if sawBorrow && sawRepay {
		dt.Category = types.CategoryRefinance
		for _, entry := range dt.JournalEntries {
			entry.Category = types.CategoryRefinance
		}
	}

	if len(dt.Events) == 0 {
		return nil, fmt.Errorf("no pool events found in %s", tx.Hash)
	}

	return dt, nil
}

// reserveAmount extracts the reserve asset symbol from topic 1 and the
// raw amount at the given offset into the log data.
func (d *LendingDecoder) reserveAmount(l chain.RawLog, dataOffset int) (string, decimal.Decimal) {
	reserve := common.BytesToAddress(l.Topics[1].Bytes()).Hex()
	token := d.dctx.Token(reserve)
	if len(l.Data) < dataOffset+32 {
		return token.Symbol, decimal.Zero
	}
	raw := new(big.Int).SetBytes(l.Data[dataOffset : dataOffset+32])
	return token.Symbol, weiToDecimal(raw, token.Decimals)
}

func lendingEvent(name string, l chain.RawLog, asset string, amount decimal.Decimal) models.DecodedEvent {
	return models.DecodedEvent{
		Name: name,
		Args: models.Params{}.
			With("reserve", models.AddressValue(common.BytesToAddress(l.Topics[1].Bytes()).Hex())).
			With("asset", models.StringValue(asset)).
			With("amount", models.DecimalValue(amount)),
	}
}

func positionID(txHash, asset string) string {
	return txHash + ":" + asset
}
