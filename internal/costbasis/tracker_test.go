package costbasis

import (
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/fund-ledger/internal/types"
)

const (
	testFund   = "fund-test"
	testWallet = "0x1111111111111111111111111111111111111111"
	testTx     = "0xaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaa"
)

func d(s string) decimal.Decimal {
	v, err := decimal.NewFromString(s)
	if err != nil {
		panic(err)
	}
	return v
}

func TestAddAcquisitionCreatesLot(t *testing.T) {
	tracker := NewTracker(types.MethodFIFO)
	date := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)

	lot := tracker.AddAcquisition("ETH", d("10"), d("100"), date, testTx, testWallet, testFund)

	require.NotNil(t, lot)
	assert.Equal(t, "ETH", lot.Asset)
	assert.True(t, lot.Remaining.Equal(d("10")))
	assert.True(t, lot.CostPerUnit.Equal(d("10")))

	pos := tracker.GetPosition(testFund, testWallet, "ETH")
	assert.True(t, pos.Amount.Equal(d("10")))
	assert.True(t, pos.CostBasis.Equal(d("100")))
	assert.Equal(t, 1, pos.LotCount)
}

func TestFIFODisposalSpansLots(t *testing.T) {
	tracker := NewTracker(types.MethodFIFO)
	t0 := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
	t1 := t0.AddDate(0, 1, 0)

	tracker.AddAcquisition("ETH", d("10"), d("100"), t0, testTx, testWallet, testFund)
	tracker.AddAcquisition("ETH", d("5"), d("100"), t1, testTx, testWallet, testFund)

	disposeDate := t0.Add(400 * 24 * time.Hour)
	event := tracker.ProcessDisposal("ETH", d("12"), d("300"), disposeDate, testTx, testWallet, testFund)

	require.NotNil(t, event)
	// 10 units at 10/unit from the first lot, 2 units at 20/unit from the second.
	assert.True(t, event.CostBasis.Equal(d("140")), "cost basis = %s", event.CostBasis)
	assert.True(t, event.GainLoss.Equal(d("160")), "gain = %s", event.GainLoss)
	require.Len(t, event.LotsUsed, 2)
	assert.True(t, event.LotsUsed[0].Amount.Equal(d("10")))
	assert.True(t, event.LotsUsed[1].Amount.Equal(d("2")))

	// Holding period reports the earliest consumed lot.
	assert.Equal(t, 400, event.HoldingDays)
	assert.True(t, event.IsLongTerm)
	assert.Equal(t, types.TreatmentLongTerm, event.Treatment)

	pos := tracker.GetPosition(testFund, testWallet, "ETH")
	assert.True(t, pos.Amount.Equal(d("3")))
	assert.True(t, pos.CostBasis.Equal(d("60")))
}

func TestLIFODisposalConsumesNewestFirst(t *testing.T) {
	tracker := NewTracker(types.MethodLIFO)
	t0 := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)

	tracker.AddAcquisition("ETH", d("10"), d("100"), t0, testTx, testWallet, testFund)
	tracker.AddAcquisition("ETH", d("5"), d("100"), t0.AddDate(0, 1, 0), testTx, testWallet, testFund)

	event := tracker.ProcessDisposal("ETH", d("12"), d("300"), t0.AddDate(0, 2, 0), testTx, testWallet, testFund)

	// 5 units at 20/unit, then 7 units at 10/unit.
	assert.True(t, event.CostBasis.Equal(d("170")), "cost basis = %s", event.CostBasis)
	assert.True(t, event.GainLoss.Equal(d("130")))
	assert.False(t, event.IsLongTerm)
	assert.Equal(t, types.TreatmentShortTerm, event.Treatment)
}

func TestHIFODisposalConsumesCostliestFirst(t *testing.T) {
	tracker := NewTracker(types.MethodHIFO)
	t0 := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)

	// Costliest lot is in the middle of the queue.
	tracker.AddAcquisition("ETH", d("4"), d("40"), t0, testTx, testWallet, testFund)
	tracker.AddAcquisition("ETH", d("4"), d("120"), t0.AddDate(0, 1, 0), testTx, testWallet, testFund)
	tracker.AddAcquisition("ETH", d("4"), d("80"), t0.AddDate(0, 2, 0), testTx, testWallet, testFund)

	event := tracker.ProcessDisposal("ETH", d("6"), d("240"), t0.AddDate(0, 3, 0), testTx, testWallet, testFund)

	// 4 units at 30/unit, then 2 units at 20/unit.
	assert.True(t, event.CostBasis.Equal(d("160")), "cost basis = %s", event.CostBasis)
	require.Len(t, event.LotsUsed, 2)
	assert.True(t, event.LotsUsed[0].Amount.Equal(d("4")))
	assert.True(t, event.LotsUsed[1].Amount.Equal(d("2")))
}

func TestDisposalWithoutLotsOpensShort(t *testing.T) {
	tracker := NewTracker(types.MethodFIFO)
	date := time.Date(2024, 3, 1, 0, 0, 0, 0, time.UTC)

	event := tracker.ProcessDisposal("ETH", d("5"), d("100"), date, testTx, testWallet, testFund)

	// Shorting recognizes no gain: basis is booked at the disposal price.
	assert.True(t, event.GainLoss.IsZero(), "gain = %s", event.GainLoss)
	assert.True(t, event.CostBasis.Equal(d("100")))
	assert.Empty(t, event.LotsUsed)
	assert.Equal(t, 0, event.HoldingDays)

	pos := tracker.GetPosition(testFund, testWallet, "ETH")
	assert.True(t, pos.Amount.Equal(d("-5")))
}

func TestAcquisitionCoversShortAndRecognizesDeferredGain(t *testing.T) {
	tracker := NewTracker(types.MethodFIFO)
	date := time.Date(2024, 3, 1, 0, 0, 0, 0, time.UTC)

	// Short 5 units at 20/unit.
	tracker.ProcessDisposal("ETH", d("5"), d("100"), date, testTx, testWallet, testFund)

	// Cover with 5 units bought at 15/unit: deferred gain is 5 * (20 - 15).
	lot := tracker.AddAcquisition("ETH", d("5"), d("75"), date.AddDate(0, 1, 0), testTx, testWallet, testFund)
	assert.True(t, lot.Remaining.IsZero(), "covering lot should be fully consumed")

	disposals := tracker.Disposals()
	require.Len(t, disposals, 2)
	cover := disposals[1]
	assert.True(t, cover.GainLoss.Equal(d("25")), "gain = %s", cover.GainLoss)
	assert.True(t, cover.Proceeds.Equal(d("100")))
	assert.True(t, cover.CostBasis.Equal(d("75")))

	pos := tracker.GetPosition(testFund, testWallet, "ETH")
	assert.True(t, pos.Amount.IsZero())
	assert.Equal(t, 0, pos.LotCount)
}

func TestPartialShortCover(t *testing.T) {
	tracker := NewTracker(types.MethodFIFO)
	date := time.Date(2024, 3, 1, 0, 0, 0, 0, time.UTC)

	tracker.ProcessDisposal("ETH", d("10"), d("200"), date, testTx, testWallet, testFund)
	tracker.AddAcquisition("ETH", d("4"), d("60"), date.AddDate(0, 1, 0), testTx, testWallet, testFund)

	pos := tracker.GetPosition(testFund, testWallet, "ETH")
	assert.True(t, pos.Amount.Equal(d("-6")), "position = %s", pos.Amount)

	disposals := tracker.Disposals()
	require.Len(t, disposals, 2)
	// 4 covered at short price 20 against cost 15.
	assert.True(t, disposals[1].GainLoss.Equal(d("20")))
}

func TestProcessSwapCarriesBasisWithZeroGain(t *testing.T) {
	tracker := NewTracker(types.MethodFIFO)
	t0 := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)

	tracker.AddAcquisition("ETH", d("2"), d("4000"), t0, testTx, testWallet, testFund)

	event, lot := tracker.ProcessSwap("ETH", d("2"), "WETH", d("2"), d("3000"), t0.AddDate(0, 6, 0), testTx, testWallet, testFund)

	require.NotNil(t, event)
	require.NotNil(t, lot)
	// Proceeds record market value for audit, gain recognition is deferred.
	assert.True(t, event.Proceeds.Equal(d("6000")))
	assert.True(t, event.GainLoss.IsZero())
	assert.True(t, event.CostBasis.Equal(d("4000")))

	assert.Equal(t, "WETH", lot.Asset)
	assert.True(t, lot.CostBasis.Equal(d("4000")))
	assert.True(t, lot.CostPerUnit.Equal(d("2000")))

	ethPos := tracker.GetPosition(testFund, testWallet, "ETH")
	assert.True(t, ethPos.Amount.IsZero())
	wethPos := tracker.GetPosition(testFund, testWallet, "WETH")
	assert.True(t, wethPos.Amount.Equal(d("2")))
	assert.True(t, wethPos.CostBasis.Equal(d("4000")))
}

func TestSwapRoundTripPreservesBasis(t *testing.T) {
	tracker := NewTracker(types.MethodFIFO)
	t0 := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)

	tracker.AddAcquisition("ETH", d("1"), d("2500"), t0, testTx, testWallet, testFund)
	tracker.ProcessSwap("ETH", d("1"), "WETH", d("1"), d("3000"), t0.AddDate(0, 1, 0), testTx, testWallet, testFund)
	tracker.ProcessSwap("WETH", d("1"), "ETH", d("1"), d("3500"), t0.AddDate(0, 2, 0), testTx, testWallet, testFund)

	pos := tracker.GetPosition(testFund, testWallet, "ETH")
	assert.True(t, pos.Amount.Equal(d("1")))
	assert.True(t, pos.CostBasis.Equal(d("2500")), "basis = %s", pos.CostBasis)

	for _, disp := range tracker.Disposals() {
		assert.True(t, disp.GainLoss.IsZero(), "swap disposal %s recognized gain", disp.DisposalID)
	}
}

func TestBooksAreIsolatedPerWallet(t *testing.T) {
	tracker := NewTracker(types.MethodFIFO)
	date := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
	otherWallet := "0x2222222222222222222222222222222222222222"

	tracker.AddAcquisition("ETH", d("5"), d("50"), date, testTx, testWallet, testFund)
	tracker.AddAcquisition("ETH", d("3"), d("90"), date, testTx, otherWallet, testFund)

	assert.True(t, tracker.GetPosition(testFund, testWallet, "ETH").Amount.Equal(d("5")))
	assert.True(t, tracker.GetPosition(testFund, otherWallet, "ETH").Amount.Equal(d("3")))

	positions := tracker.GetAllPositions()
	require.Len(t, positions, 2)
	// Snapshot is ordered by (fund, wallet, asset).
	assert.Equal(t, testWallet, positions[0].WalletID)
	assert.Equal(t, otherWallet, positions[1].WalletID)
}

func TestUnknownLotMethodPanics(t *testing.T) {
	assert.Panics(t, func() {
		NewTracker(types.LotMethod("avco"))
	})
}

func TestDisposalValidationPanics(t *testing.T) {
	tracker := NewTracker(types.MethodFIFO)
	date := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)

	assert.Panics(t, func() {
		tracker.ProcessDisposal("ETH", decimal.Zero, d("10"), date, testTx, testWallet, testFund)
	})
	assert.Panics(t, func() {
		tracker.AddAcquisition("ETH", d("1"), d("-1"), date, testTx, testWallet, testFund)
	})
}
