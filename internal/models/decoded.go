package models

import (
	"time"

	"github.com/fund-ledger/internal/types"
	"github.com/shopspring/decimal"
)

// DecodedEvent is a single decoded log entry: the event name plus its
// arguments in log order.
type DecodedEvent struct {
	Name string `json:"name"`
	Args Params `json:"args"`
}

// LoanPosition is a point-in-time snapshot of a lending-platform position
// referenced by a decoded transaction.
type LoanPosition struct {
	PositionID       string          `json:"positionId"`
	Platform         types.Platform  `json:"platform"`
	CollateralAsset  string          `json:"collateralAsset,omitempty"`
	CollateralAmount decimal.Decimal `json:"collateralAmount,omitempty"`
	DebtAsset        string          `json:"debtAsset,omitempty"`
	DebtAmount       decimal.Decimal `json:"debtAmount,omitempty"`
	Status           string          `json:"status"`
}

// DecodedTransaction is the normalized representation every decoder produces.
// It is created once per raw transaction and is immutable afterwards except
// for the enrichment fields the integrator attaches to its journal entries.
type DecodedTransaction struct {
	TxHash         string                          `json:"txHash"`
	Platform       types.Platform                  `json:"platform"`
	Category       types.TxCategory                `json:"category"`
	Block          uint64                          `json:"block"`
	Timestamp      time.Time                       `json:"timestamp"`
	ReferencePrice decimal.Decimal                 `json:"referencePrice"`
	GasUsed        uint64                          `json:"gasUsed"`
	GasFee         decimal.Decimal                 `json:"gasFee"`
	FromAddress    string                          `json:"fromAddress"`
	ToAddress      string                          `json:"toAddress"`
	NativeValue    decimal.Decimal                 `json:"nativeValue"`
	FunctionName   string                          `json:"functionName,omitempty"`
	FunctionParams Params                          `json:"functionParams,omitempty"`
	Events         []DecodedEvent                  `json:"events,omitempty"`
	JournalEntries []*JournalEntry                 `json:"journalEntries,omitempty"`
	WalletRoles    map[string]types.WalletRole     `json:"walletRoles,omitempty"`
	Positions      map[string]LoanPosition         `json:"positions,omitempty"`
	Status         types.TxStatus                  `json:"status"`
	Error          string                          `json:"error,omitempty"`
}
