// Package costbasis tracks acquisition lots and computes realized gain/loss
// on disposals per (fund, wallet, asset) book.
package costbasis

import (
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/fund-ledger/internal/logging"
	"github.com/fund-ledger/internal/models"
	"github.com/fund-ledger/internal/types"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// longTermThresholdDays is the holding period above which a disposal is
// classified as long-term.
const longTermThresholdDays = 365

// bookKey identifies one lot queue.
type bookKey struct {
	FundID   string
	WalletID string
	Asset    string
}

// book is an ordered lot queue, oldest acquisition first. Negative lots
// (short positions) sit at the front until covered.
type book struct {
	lots []*models.TaxLot
}

// Tracker owns all lot queues and the append-only disposal history. All
// mutation is serialized behind a single lock so concurrent disposals against
// one book never interleave lot consumption.
type Tracker struct {
	mu        sync.Mutex
	method    types.LotMethod
	books     map[bookKey]*book
	disposals []*models.DisposalEvent
	logger    *logging.Logger
}

// NewTracker creates a tracker using the given lot-selection method.
func NewTracker(method types.LotMethod) *Tracker {
	switch method {
	case types.MethodFIFO, types.MethodLIFO, types.MethodHIFO:
	default:
		panic(fmt.Sprintf("costbasis: unknown lot method %q", method))
	}
	return &Tracker{
		method: method,
		books:  make(map[bookKey]*book),
		logger: logging.GetGlobalLogger().WithField("component", "costbasis"),
	}
}

// Method returns the configured lot-selection method.
func (t *Tracker) Method() types.LotMethod {
	return t.method
}

// AddAcquisition appends a new lot to the back of the (fund, wallet, asset)
// queue and returns a copy of it. If the book carries an uncovered short
// position, the acquisition first nets against the negative lots; the
// realized gain/loss from covering is recorded as a disposal event.
//
// amount must be positive and costValue non-negative; violations are
// programmer errors and panic.
func (t *Tracker) AddAcquisition(asset string, amount, costValue decimal.Decimal, date time.Time, txHash, walletID, fundID string) *models.TaxLot {
	if !amount.IsPositive() {
		panic(fmt.Sprintf("costbasis: acquisition amount must be positive, got %s", amount))
	}
	if costValue.IsNegative() {
		panic(fmt.Sprintf("costbasis: acquisition cost must not be negative, got %s", costValue))
	}

	t.mu.Lock()
	defer t.mu.Unlock()

	b := t.book(fundID, walletID, asset)
	lot := &models.TaxLot{
		LotID:       uuid.NewString(),
		Asset:       asset,
		Amount:      amount,
		Remaining:   amount,
		CostBasis:   costValue,
		CostPerUnit: costValue.Div(amount),
		AcquiredAt:  date,
		TxHash:      txHash,
		WalletID:    walletID,
		FundID:      fundID,
	}

	t.coverShorts(b, lot, date, txHash, walletID, fundID)

	if lot.Remaining.IsPositive() {
		b.lots = append(b.lots, lot)
	}
	t.logger.WithFields(map[string]interface{}{
		"asset":  asset,
		"amount": amount.String(),
		"cost":   costValue.String(),
		"lotId":  lot.LotID,
	}).Debug("Acquisition recorded")

	return copyLot(lot)
}

// coverShorts nets an incoming acquisition against open negative lots.
// Gain/loss deferred at shorting time is recognized here: the short lot's
// cost-per-unit is the price at which the short was opened, the covering
// cost is the acquisition's cost-per-unit.
func (t *Tracker) coverShorts(b *book, lot *models.TaxLot, date time.Time, txHash, walletID, fundID string) {
	for len(b.lots) > 0 && b.lots[0].Remaining.IsNegative() && lot.Remaining.IsPositive() {
		short := b.lots[0]
		covered := decimal.Min(lot.Remaining, short.Remaining.Neg())

		proceeds := covered.Mul(short.CostPerUnit)
		cost := covered.Mul(lot.CostPerUnit)
		event := &models.DisposalEvent{
			DisposalID: uuid.NewString(),
			Asset:      lot.Asset,
			Amount:     covered,
			Proceeds:   proceeds,
			CostBasis:  cost,
			GainLoss:   proceeds.Sub(cost),
			DisposedAt: date,
			Treatment:  types.TreatmentShortTerm,
			LotsUsed: []models.LotConsumption{
				{LotID: short.LotID, Amount: covered, CostBasis: cost},
			},
			TxHash:   txHash,
			WalletID: walletID,
			FundID:   fundID,
		}
		t.disposals = append(t.disposals, event)
		t.logger.WithFields(map[string]interface{}{
			"asset":    lot.Asset,
			"covered":  covered.String(),
			"gainLoss": event.GainLoss.String(),
		}).Info("Short position covered")

		short.Remaining = short.Remaining.Add(covered)
		lot.Remaining = lot.Remaining.Sub(covered)
		if short.Remaining.IsZero() {
			b.lots = b.lots[1:]
		}
	}
}

// ProcessDisposal consumes lots in method order and returns the resulting
// disposal event. Disposing more than the book holds opens (or deepens) a
// short position: the uncovered portion is booked at the disposal price with
// zero recognized gain, deferred until a later acquisition covers it.
//
// amount must be positive and proceeds non-negative; violations are
// programmer errors and panic.
func (t *Tracker) ProcessDisposal(asset string, amount, proceeds decimal.Decimal, date time.Time, txHash, walletID, fundID string) *models.DisposalEvent {
	if !amount.IsPositive() {
		panic(fmt.Sprintf("costbasis: disposal amount must be positive, got %s", amount))
	}
	if proceeds.IsNegative() {
		panic(fmt.Sprintf("costbasis: disposal proceeds must not be negative, got %s", proceeds))
	}

	t.mu.Lock()
	defer t.mu.Unlock()

	event := t.disposeLocked(asset, amount, proceeds, date, txHash, walletID, fundID)
	event.GainLoss = event.Proceeds.Sub(event.CostBasis)
	t.disposals = append(t.disposals, event)
	return copyDisposal(event)
}

// disposeLocked performs the consumption without the gain computation so
// ProcessSwap can override gain recognition. Caller holds the lock.
func (t *Tracker) disposeLocked(asset string, amount, proceeds decimal.Decimal, date time.Time, txHash, walletID, fundID string) *models.DisposalEvent {
	b := t.book(fundID, walletID, asset)
	unitProceeds := proceeds.Div(amount)

	event := &models.DisposalEvent{
		DisposalID: uuid.NewString(),
		Asset:      asset,
		Amount:     amount,
		Proceeds:   proceeds,
		DisposedAt: date,
		TxHash:     txHash,
		WalletID:   walletID,
		FundID:     fundID,
	}

	remaining := amount
	var earliest time.Time
	for _, lot := range t.consumptionOrder(b) {
		if !remaining.IsPositive() {
			break
		}
		consumed := decimal.Min(lot.Remaining, remaining)
		cost := consumed.Mul(lot.CostPerUnit)
		event.CostBasis = event.CostBasis.Add(cost)
		event.LotsUsed = append(event.LotsUsed, models.LotConsumption{
			LotID:     lot.LotID,
			Amount:    consumed,
			CostBasis: cost,
		})
		if earliest.IsZero() || lot.AcquiredAt.Before(earliest) {
			earliest = lot.AcquiredAt
		}
		lot.Remaining = lot.Remaining.Sub(consumed)
		remaining = remaining.Sub(consumed)
	}
	b.compact()

	if remaining.IsPositive() {
		// Insufficient lots: open a short for the uncovered remainder at
		// the disposal price. Zero gain is recognized now; the deferred
		// gain/loss surfaces when a later acquisition covers the short.
		shortCost := remaining.Mul(unitProceeds)
		short := &models.TaxLot{
			LotID:       uuid.NewString(),
			Asset:       asset,
			Amount:      remaining.Neg(),
			Remaining:   remaining.Neg(),
			CostBasis:   shortCost.Neg(),
			CostPerUnit: unitProceeds,
			AcquiredAt:  date,
			TxHash:      txHash,
			WalletID:    walletID,
			FundID:      fundID,
		}
		b.lots = append([]*models.TaxLot{short}, b.lots...)
		event.CostBasis = event.CostBasis.Add(shortCost)
		t.logger.WithFields(map[string]interface{}{
			"asset":     asset,
			"uncovered": remaining.String(),
			"wallet":    walletID,
		}).Warn("Disposal exceeds held amount, short position opened")
	}

	// Holding period reports the earliest lot consumed; a pure short
	// disposal has no consumed lot and no holding period.
	if !earliest.IsZero() {
		event.HoldingDays = int(date.Sub(earliest).Hours() / 24)
	}
	event.IsLongTerm = event.HoldingDays > longTermThresholdDays
	if event.IsLongTerm {
		event.Treatment = types.TreatmentLongTerm
	} else {
		event.Treatment = types.TreatmentShortTerm
	}
	return event
}

// ProcessSwap disposes fromAsset and immediately acquires toAsset with the
// disposed cost basis carried over, so no gain/loss is recognized at the
// swap boundary. The disposal's proceeds record the market value of the
// received side (toAmount converted via referencePrice) for audit; its
// gain/loss is explicitly zero because recognition is deferred into the
// carried basis.
func (t *Tracker) ProcessSwap(fromAsset string, fromAmount decimal.Decimal, toAsset string, toAmount, referencePrice decimal.Decimal, date time.Time, txHash, walletID, fundID string) (*models.DisposalEvent, *models.TaxLot) {
	if !fromAmount.IsPositive() || !toAmount.IsPositive() {
		panic(fmt.Sprintf("costbasis: swap amounts must be positive, got %s -> %s", fromAmount, toAmount))
	}

	t.mu.Lock()
	defer t.mu.Unlock()

	proceeds := toAmount.Mul(referencePrice)
	event := t.disposeLocked(fromAsset, fromAmount, proceeds, date, txHash, walletID, fundID)
	event.GainLoss = decimal.Zero
	t.disposals = append(t.disposals, event)

	b := t.book(fundID, walletID, toAsset)
	lot := &models.TaxLot{
		LotID:       uuid.NewString(),
		Asset:       toAsset,
		Amount:      toAmount,
		Remaining:   toAmount,
		CostBasis:   event.CostBasis,
		CostPerUnit: event.CostBasis.Div(toAmount),
		AcquiredAt:  date,
		TxHash:      txHash,
		WalletID:    walletID,
		FundID:      fundID,
	}
	t.coverShorts(b, lot, date, txHash, walletID, fundID)
	if lot.Remaining.IsPositive() {
		b.lots = append(b.lots, lot)
	}

	t.logger.WithFields(map[string]interface{}{
		"from":      fromAsset,
		"to":        toAsset,
		"carried":   event.CostBasis.String(),
		"reference": referencePrice.String(),
	}).Info("Swap processed with basis carry-over")

	return copyDisposal(event), copyLot(lot)
}

// GetPosition summarizes one (fund, wallet, asset) book.
func (t *Tracker) GetPosition(fundID, walletID, asset string) *models.Position {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.positionLocked(bookKey{FundID: fundID, WalletID: walletID, Asset: asset})
}

// GetAllPositions returns a consistent snapshot of every book, ordered by
// (fund, wallet, asset) for stable reporting.
func (t *Tracker) GetAllPositions() []*models.Position {
	t.mu.Lock()
	defer t.mu.Unlock()

	keys := make([]bookKey, 0, len(t.books))
	for k := range t.books {
		keys = append(keys, k)
	}
	sort.Slice(keys, func(i, j int) bool {
		if keys[i].FundID != keys[j].FundID {
			return keys[i].FundID < keys[j].FundID
		}
		if keys[i].WalletID != keys[j].WalletID {
			return keys[i].WalletID < keys[j].WalletID
		}
		return keys[i].Asset < keys[j].Asset
	})

	positions := make([]*models.Position, 0, len(keys))
	for _, k := range keys {
		positions = append(positions, t.positionLocked(k))
	}
	return positions
}

// Lots returns copies of the remaining lots for one book, front first.
func (t *Tracker) Lots(fundID, walletID, asset string) []*models.TaxLot {
	t.mu.Lock()
	defer t.mu.Unlock()

	b, ok := t.books[bookKey{FundID: fundID, WalletID: walletID, Asset: asset}]
	if !ok {
		return nil
	}
	out := make([]*models.TaxLot, 0, len(b.lots))
	for _, lot := range b.lots {
		out = append(out, copyLot(lot))
	}
	return out
}

// Disposals returns a copy of the append-only disposal history in the order
// events were recorded.
func (t *Tracker) Disposals() []*models.DisposalEvent {
	t.mu.Lock()
	defer t.mu.Unlock()

	out := make([]*models.DisposalEvent, 0, len(t.disposals))
	for _, d := range t.disposals {
		out = append(out, copyDisposal(d))
	}
	return out
}

func (t *Tracker) positionLocked(k bookKey) *models.Position {
	pos := &models.Position{
		FundID:   k.FundID,
		WalletID: k.WalletID,
		Asset:    k.Asset,
	}
	b, ok := t.books[k]
	if !ok {
		pos.Amount = decimal.Zero
		pos.CostBasis = decimal.Zero
		pos.AvgCostPerUnit = decimal.Zero
		return pos
	}
	amount := decimal.Zero
	cost := decimal.Zero
	for _, lot := range b.lots {
		amount = amount.Add(lot.Remaining)
		cost = cost.Add(lot.Remaining.Mul(lot.CostPerUnit))
	}
	pos.Amount = amount
	pos.CostBasis = cost
	pos.LotCount = len(b.lots)
	if !amount.IsZero() {
		pos.AvgCostPerUnit = cost.Div(amount)
	} else {
		pos.AvgCostPerUnit = decimal.Zero
	}
	return pos
}

// consumptionOrder returns the positive lots of a book in the order the
// configured method consumes them. Negative (short) lots never satisfy a
// disposal.
func (t *Tracker) consumptionOrder(b *book) []*models.TaxLot {
	var positive []*models.TaxLot
	for _, lot := range b.lots {
		if lot.Remaining.IsPositive() {
			positive = append(positive, lot)
		}
	}
	switch t.method {
	case types.MethodLIFO:
		reversed := make([]*models.TaxLot, len(positive))
		for i, lot := range positive {
			reversed[len(positive)-1-i] = lot
		}
		return reversed
	case types.MethodHIFO:
		ordered := make([]*models.TaxLot, len(positive))
		copy(ordered, positive)
		sort.SliceStable(ordered, func(i, j int) bool {
			return ordered[i].CostPerUnit.GreaterThan(ordered[j].CostPerUnit)
		})
		return ordered
	default:
		return positive
	}
}

func (t *Tracker) book(fundID, walletID, asset string) *book {
	k := bookKey{FundID: fundID, WalletID: walletID, Asset: asset}
	b, ok := t.books[k]
	if !ok {
		b = &book{}
		t.books[k] = b
	}
	return b
}

// compact drops fully consumed lots while preserving order.
func (b *book) compact() {
	kept := b.lots[:0]
	for _, lot := range b.lots {
		if !lot.Remaining.IsZero() {
			kept = append(kept, lot)
		}
	}
	b.lots = kept
}

func copyLot(lot *models.TaxLot) *models.TaxLot {
	c := *lot
	return &c
}

func copyDisposal(d *models.DisposalEvent) *models.DisposalEvent {
	c := *d
	c.LotsUsed = make([]models.LotConsumption, len(d.LotsUsed))
	copy(c.LotsUsed, d.LotsUsed)
	return &c
}
