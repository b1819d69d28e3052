// Package chain provides access to on-chain transaction data for the
// fund ledger. It fetches transactions, receipts, and event logs from an
// EVM node and normalizes them into decoder-friendly structures.
package chain

import (
	"context"
	"math/big"
	"regexp"
	"time"

	"github.com/ethereum/go-ethereum/common"
)

// RawTransaction is a confirmed transaction together with the receipt
// fields the decoders need.
type RawTransaction struct {
	Hash              string
	BlockNumber       uint64
	Timestamp         time.Time
	From              string
	To                string // empty for contract creation
	Value             *big.Int
	Input             []byte
	GasUsed           uint64
	EffectiveGasPrice *big.Int
	Success           bool
}

// RawLog is a single event log emitted during transaction execution.
type RawLog struct {
	Address common.Address
	Topics  []common.Hash
	Data    []byte
	Index   uint
}

// MethodID returns the 4-byte function selector of the call input,
// or an empty string for plain transfers.
func (t *RawTransaction) MethodID() string {
	if len(t.Input) < 4 {
		return ""
	}
	return "0x" + common.Bytes2Hex(t.Input[:4])
}

// Source fetches confirmed transactions and their logs.
type Source interface {
	// GetTransaction returns the normalized transaction for a hash.
	GetTransaction(ctx context.Context, txHash string) (*RawTransaction, error)

	// GetLogs returns the event logs emitted by the transaction.
	GetLogs(ctx context.Context, txHash string) ([]RawLog, error)

	// Close releases the underlying connection.
	Close()
}

var txHashPattern = regexp.MustCompile("^0x[a-fA-F0-9]{64}$")

// ValidateTxHash checks if a string is a well-formed transaction hash.
func ValidateTxHash(txHash string) bool {
	return txHashPattern.MatchString(txHash)
}

var addressPattern = regexp.MustCompile("^0x[a-fA-F0-9]{40}$")

// ValidateAddress checks if a string is a well-formed EVM address.
func ValidateAddress(address string) bool {
	return addressPattern.MatchString(address)
}
