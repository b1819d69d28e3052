package ledger

import (
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/fund-ledger/internal/costbasis"
	"github.com/fund-ledger/internal/models"
	"github.com/fund-ledger/internal/types"
)

const (
	testFund   = "fund-test"
	testWallet = "0x1111111111111111111111111111111111111111"
	testTx     = "0xbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbb"
)

func d(s string) decimal.Decimal {
	v, err := decimal.NewFromString(s)
	if err != nil {
		panic(err)
	}
	return v
}

func newTestIntegrator(t *testing.T) (*Integrator, *costbasis.Tracker) {
	t.Helper()
	tracker := costbasis.NewTracker(types.MethodFIFO)
	eq := models.DefaultAssetEquivalence()
	return NewIntegrator(tracker, eq, "clearing"), tracker
}

func entry(category types.TxCategory, lines ...models.JournalEntryLine) *models.JournalEntry {
	return &models.JournalEntry{
		EntryID:       "entry-1",
		Date:          time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC),
		TxHash:        testTx,
		Category:      category,
		WalletAddress: testWallet,
		FundID:        testFund,
		Lines:         lines,
	}
}

func line(account string, dir types.Direction, amount, asset string) models.JournalEntryLine {
	return models.JournalEntryLine{Account: account, Direction: dir, Amount: d(amount), Asset: asset}
}

func wrapTx(entries ...*models.JournalEntry) *models.DecodedTransaction {
	return &models.DecodedTransaction{
		TxHash:         testTx,
		ReferencePrice: d("3000"),
		JournalEntries: entries,
	}
}

func TestClearingCreditRecordsAcquisition(t *testing.T) {
	integrator, tracker := newTestIntegrator(t)

	// Incoming transfer: the asset account is debited, clearing credited.
	e := entry(types.CategoryETHTransfer,
		line("assets:ETH", types.Debit, "2", "ETH"),
		line("clearing:ETH", types.Credit, "2", "ETH"),
	)
	integrator.EnrichTransaction(wrapTx(e))

	require.NotNil(t, e.Enrichment)
	assert.Empty(t, e.IntegrationError)
	assert.NotEmpty(t, e.Enrichment.LotID)
	// 2 ETH at reference price 3000.
	assert.True(t, e.Enrichment.CostPerUnit.Equal(d("3000")))

	pos := tracker.GetPosition(testFund, testWallet, "ETH")
	assert.True(t, pos.Amount.Equal(d("2")))
	assert.True(t, pos.CostBasis.Equal(d("6000")))
}

func TestClearingDebitRecordsDisposal(t *testing.T) {
	integrator, tracker := newTestIntegrator(t)

	tracker.AddAcquisition("ETH", d("2"), d("4000"), time.Date(2023, 1, 1, 0, 0, 0, 0, time.UTC),
		testTx, testWallet, testFund)

	// Outgoing transfer: clearing debited, asset account credited.
	e := entry(types.CategoryETHTransfer,
		line("clearing:ETH", types.Debit, "1", "ETH"),
		line("assets:ETH", types.Credit, "1", "ETH"),
	)
	integrator.EnrichTransaction(wrapTx(e))

	require.NotNil(t, e.Enrichment)
	assert.NotEmpty(t, e.Enrichment.DisposalID)
	assert.True(t, e.Enrichment.CostBasis.Equal(d("2000")))
	assert.True(t, e.Enrichment.Proceeds.Equal(d("3000")))
	assert.True(t, e.Enrichment.GainLoss.Equal(d("1000")))
	assert.Equal(t, types.TreatmentShortTerm, e.Enrichment.Treatment)

	pos := tracker.GetPosition(testFund, testWallet, "ETH")
	assert.True(t, pos.Amount.Equal(d("1")))
}

func TestStableAssetDisposalConvertsOneToOne(t *testing.T) {
	integrator, tracker := newTestIntegrator(t)

	tracker.AddAcquisition("USDC", d("1000"), d("1000"), time.Date(2023, 1, 1, 0, 0, 0, 0, time.UTC),
		testTx, testWallet, testFund)

	e := entry(types.CategoryTokenTransfer,
		line("clearing:USDC", types.Debit, "500", "USDC"),
		line("assets:USDC", types.Credit, "500", "USDC"),
	)
	integrator.EnrichTransaction(wrapTx(e))

	require.NotNil(t, e.Enrichment)
	assert.True(t, e.Enrichment.Proceeds.Equal(d("500")))
	assert.True(t, e.Enrichment.GainLoss.IsZero())
}

func TestUnbalancedEntryLeftUnenriched(t *testing.T) {
	integrator, tracker := newTestIntegrator(t)

	e := entry(types.CategoryETHTransfer,
		line("assets:ETH", types.Debit, "2", "ETH"),
		line("clearing:ETH", types.Credit, "1", "ETH"),
	)
	integrator.EnrichTransaction(wrapTx(e))

	assert.Nil(t, e.Enrichment)
	assert.NotEmpty(t, e.IntegrationError)
	assert.Empty(t, tracker.Disposals())
	assert.True(t, tracker.GetPosition(testFund, testWallet, "ETH").Amount.IsZero())
}

func TestClearingLineWithoutCounterpartFails(t *testing.T) {
	integrator, _ := newTestIntegrator(t)

	// Both lines hit clearing accounts, so no counterpart leg exists.
	e := entry(types.CategoryTokenTransfer,
		line("clearing:in:ETH", types.Debit, "1", "ETH"),
		line("clearing:out:ETH", types.Credit, "1", "ETH"),
	)
	integrator.EnrichTransaction(wrapTx(e))

	assert.Nil(t, e.Enrichment)
	assert.Contains(t, e.IntegrationError, "no counterpart leg")
}

func TestUnknownClearingAssetFails(t *testing.T) {
	integrator, _ := newTestIntegrator(t)

	e := entry(types.CategoryTokenTransfer,
		line("assets:XYZ", types.Debit, "10", "XYZ"),
		line("clearing:XYZ", types.Credit, "10", "XYZ"),
	)
	integrator.EnrichTransaction(wrapTx(e))

	assert.Nil(t, e.Enrichment)
	assert.Contains(t, e.IntegrationError, "no unit-of-account conversion")
}

func TestWrapCarriesBasisWithoutGain(t *testing.T) {
	integrator, tracker := newTestIntegrator(t)

	tracker.AddAcquisition("ETH", d("1"), d("2000"), time.Date(2023, 1, 1, 0, 0, 0, 0, time.UTC),
		testTx, testWallet, testFund)

	e := entry(types.CategoryWrap,
		line("assets:WETH", types.Debit, "1", "WETH"),
		line("assets:ETH", types.Credit, "1", "ETH"),
	)
	integrator.EnrichTransaction(wrapTx(e))

	require.NotNil(t, e.Enrichment)
	assert.Empty(t, e.IntegrationError)
	assert.True(t, e.Enrichment.GainLoss.IsZero())
	assert.True(t, e.Enrichment.CostBasis.Equal(d("2000")))
	assert.True(t, e.Enrichment.CostPerUnit.Equal(d("2000")))

	wethPos := tracker.GetPosition(testFund, testWallet, "WETH")
	assert.True(t, wethPos.Amount.Equal(d("1")))
	assert.True(t, wethPos.CostBasis.Equal(d("2000")))
	assert.True(t, tracker.GetPosition(testFund, testWallet, "ETH").Amount.IsZero())
}

func TestWrapWithExtraLinesFails(t *testing.T) {
	integrator, _ := newTestIntegrator(t)

	e := entry(types.CategoryWrap,
		line("assets:WETH", types.Debit, "1", "WETH"),
		line("assets:ETH", types.Credit, "0.5", "ETH"),
		line("assets:STETH", types.Credit, "0.5", "STETH"),
	)
	integrator.EnrichTransaction(wrapTx(e))

	assert.Nil(t, e.Enrichment)
	assert.Contains(t, e.IntegrationError, "exactly one debit and one credit")
}

func TestOneBadEntryDoesNotAbortSiblings(t *testing.T) {
	integrator, _ := newTestIntegrator(t)

	bad := entry(types.CategoryTokenTransfer,
		line("assets:XYZ", types.Debit, "10", "XYZ"),
		line("assets:ETH", types.Credit, "1", "ETH"),
	)
	good := entry(types.CategoryETHTransfer,
		line("assets:ETH", types.Debit, "1", "ETH"),
		line("clearing:ETH", types.Credit, "1", "ETH"),
	)
	good.EntryID = "entry-2"

	integrator.EnrichTransaction(wrapTx(bad, good))

	assert.NotEmpty(t, bad.IntegrationError)
	assert.Nil(t, bad.Enrichment)
	require.NotNil(t, good.Enrichment)
	assert.Empty(t, good.IntegrationError)
}

func TestEntryWithoutLinesIgnored(t *testing.T) {
	integrator, tracker := newTestIntegrator(t)

	e := entry(types.CategoryContractCall)
	integrator.EnrichTransaction(wrapTx(e))

	assert.Nil(t, e.Enrichment)
	assert.Empty(t, e.IntegrationError)
	assert.Empty(t, tracker.Disposals())
}
