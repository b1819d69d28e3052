package costbasis

import (
	"reflect"
	"testing"
	"time"

	"github.com/leanovate/gopter"
	"github.com/leanovate/gopter/gen"
	"github.com/leanovate/gopter/prop"
	"github.com/shopspring/decimal"

	"github.com/fund-ledger/internal/types"
)

// acquisition is a generated (amount, costPerUnit) pair in whole units to
// keep the arithmetic exact.
type acquisition struct {
	Amount int64
	Cost   int64
}

func genAcquisitions() gopter.Gen {
	// amounts 1..50, cost per unit 1..1000
	genOne := gen.Struct(reflect.TypeOf(acquisition{}), map[string]gopter.Gen{
		"Amount": gen.Int64Range(1, 50),
		"Cost":   gen.Int64Range(1, 1000),
	})
	return gen.SliceOfN(8, genOne)
}

func TestTrackerProperties(t *testing.T) {
	properties := gopter.NewProperties(nil)
	base := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)

	properties.Property("position amount equals acquired minus disposed", prop.ForAll(
		func(acqs []acquisition, disposeFraction int64) bool {
			tracker := NewTracker(types.MethodFIFO)
			total := decimal.Zero
			for i, a := range acqs {
				amount := decimal.NewFromInt(a.Amount)
				cost := amount.Mul(decimal.NewFromInt(a.Cost))
				tracker.AddAcquisition("ETH", amount, cost, base.AddDate(0, 0, i), testTx, testWallet, testFund)
				total = total.Add(amount)
			}

			disposed := total.Mul(decimal.NewFromInt(disposeFraction)).Div(decimal.NewFromInt(100))
			if disposed.IsPositive() {
				tracker.ProcessDisposal("ETH", disposed, disposed, base.AddDate(1, 0, 0), testTx, testWallet, testFund)
			}

			pos := tracker.GetPosition(testFund, testWallet, "ETH")
			return pos.Amount.Equal(total.Sub(disposed))
		},
		genAcquisitions(),
		gen.Int64Range(0, 100),
	))

	properties.Property("disposal cost basis equals sum of consumed lot costs", prop.ForAll(
		func(acqs []acquisition) bool {
			tracker := NewTracker(types.MethodFIFO)
			total := decimal.Zero
			for i, a := range acqs {
				amount := decimal.NewFromInt(a.Amount)
				cost := amount.Mul(decimal.NewFromInt(a.Cost))
				tracker.AddAcquisition("ETH", amount, cost, base.AddDate(0, 0, i), testTx, testWallet, testFund)
				total = total.Add(amount)
			}

			event := tracker.ProcessDisposal("ETH", total, total, base.AddDate(1, 0, 0), testTx, testWallet, testFund)

			sum := decimal.Zero
			for _, used := range event.LotsUsed {
				sum = sum.Add(used.CostBasis)
			}
			return event.CostBasis.Equal(sum)
		},
		genAcquisitions(),
	))

	properties.Property("FIFO consumes lots in acquisition order", prop.ForAll(
		func(acqs []acquisition) bool {
			tracker := NewTracker(types.MethodFIFO)
			var lotIDs []string
			total := decimal.Zero
			for i, a := range acqs {
				amount := decimal.NewFromInt(a.Amount)
				cost := amount.Mul(decimal.NewFromInt(a.Cost))
				lot := tracker.AddAcquisition("ETH", amount, cost, base.AddDate(0, 0, i), testTx, testWallet, testFund)
				lotIDs = append(lotIDs, lot.LotID)
				total = total.Add(amount)
			}

			event := tracker.ProcessDisposal("ETH", total, total, base.AddDate(1, 0, 0), testTx, testWallet, testFund)
			if len(event.LotsUsed) != len(lotIDs) {
				return false
			}
			for i, used := range event.LotsUsed {
				if used.LotID != lotIDs[i] {
					return false
				}
			}
			return true
		},
		genAcquisitions(),
	))

	properties.TestingRun(t)
}
