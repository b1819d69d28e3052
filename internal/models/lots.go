package models

import (
	"time"

	"github.com/fund-ledger/internal/types"
	"github.com/shopspring/decimal"
)

// TaxLot is a discrete acquisition record. Lots are immutable once created
// except for Remaining, which the tracker decrements as disposals consume it.
// A negative Amount marks a synthetic short-position lot.
type TaxLot struct {
	LotID       string          `json:"lotId"`
	Asset       string          `json:"asset"`
	Amount      decimal.Decimal `json:"amount"`
	Remaining   decimal.Decimal `json:"remaining"`
	CostBasis   decimal.Decimal `json:"costBasisValue"`
	CostPerUnit decimal.Decimal `json:"costPerUnit"`
	AcquiredAt  time.Time       `json:"acquiredAt"`
	TxHash      string          `json:"txHash"`
	WalletID    string          `json:"walletId"`
	FundID      string          `json:"fundId"`
}

// LotConsumption records how much of one lot a disposal consumed.
type LotConsumption struct {
	LotID     string          `json:"lotId"`
	Amount    decimal.Decimal `json:"amount"`
	CostBasis decimal.Decimal `json:"costBasis"`
}

// DisposalEvent is the result of consuming one or more lots.
type DisposalEvent struct {
	DisposalID  string             `json:"disposalId"`
	Asset       string             `json:"asset"`
	Amount      decimal.Decimal    `json:"amount"`
	Proceeds    decimal.Decimal    `json:"proceedsValue"`
	CostBasis   decimal.Decimal    `json:"costBasisValue"`
	GainLoss    decimal.Decimal    `json:"gainLossValue"`
	DisposedAt  time.Time          `json:"disposedAt"`
	HoldingDays int                `json:"holdingDays"`
	IsLongTerm  bool               `json:"isLongTerm"`
	Treatment   types.TaxTreatment `json:"taxTreatment"`
	LotsUsed    []LotConsumption   `json:"lotsUsed"`
	TxHash      string             `json:"txHash"`
	WalletID    string             `json:"walletId"`
	FundID      string             `json:"fundId"`
}

// Position is a point-in-time summary of one (fund, wallet, asset) book.
type Position struct {
	FundID         string          `json:"fundId"`
	WalletID       string          `json:"walletId"`
	Asset          string          `json:"asset"`
	Amount         decimal.Decimal `json:"amount"`
	CostBasis      decimal.Decimal `json:"costBasisValue"`
	AvgCostPerUnit decimal.Decimal `json:"avgCostPerUnit"`
	LotCount       int             `json:"lotCount"`
}
