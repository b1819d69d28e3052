// Package decoder turns raw on-chain transactions into normalized
// DecodedTransactions with balanced journal entries. One decoder exists
// per supported protocol; a registry routes each transaction to the
// most specific decoder and falls back to a generic one.
package decoder

import (
	"context"
	"fmt"
	"math/big"
	"strings"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/fund-ledger/internal/chain"
	"github.com/fund-ledger/internal/models"
	"github.com/fund-ledger/internal/types"
)

// Decoder is the uniform contract every platform decoder implements.
// Decoders are pure transformations: they must not mutate shared state
// or touch the cost-basis tracker.
type Decoder interface {
	// Platform identifies the protocol this decoder handles.
	Platform() types.Platform

	// Matches reports whether this decoder should handle the transaction.
	Matches(tx *chain.RawTransaction) bool

	// Decode produces the normalized transaction with journal entries.
	Decode(ctx context.Context, tx *chain.RawTransaction, logs []chain.RawLog) (*models.DecodedTransaction, error)
}

// RoleResolver maps a wallet address to its role label, if known.
type RoleResolver interface {
	RoleOf(address string) (types.WalletRole, bool)
}

// StaticRoleResolver resolves roles from a fixed address-to-role map.
type StaticRoleResolver struct {
	roles map[string]types.WalletRole
}

// NewStaticRoleResolver builds a resolver from a map of address to role
// label. Addresses are matched case-insensitively.
func NewStaticRoleResolver(roles map[string]string) *StaticRoleResolver {
	m := make(map[string]types.WalletRole, len(roles))
	for addr, role := range roles {
		m[strings.ToLower(addr)] = types.WalletRole(strings.ToUpper(role))
	}
	return &StaticRoleResolver{roles: m}
}

// RoleOf returns the role for an address.
func (r *StaticRoleResolver) RoleOf(address string) (types.WalletRole, bool) {
	role, ok := r.roles[strings.ToLower(address)]
	return role, ok
}

// TokenInfo describes an ERC-20 token the decoders can name.
type TokenInfo struct {
	Symbol   string
	Decimals int32
}

// Context carries the per-fund configuration every decoder needs:
// the monitored wallet set, token metadata, the asset-equivalence
// relation, and the clearing-account naming convention. It is built
// once by the caller and shared read-only across decoders.
type Context struct {
	FundID          string
	NativeAsset     string
	ClearingPrefix  string
	Equivalence     *models.AssetEquivalence
	Roles           RoleResolver
	wallets         map[string]bool
	tokens          map[string]TokenInfo
}

// NewContext builds a decode context. Wallet and token addresses are
// normalized to lowercase for matching.
func NewContext(fundID, nativeAsset, clearingPrefix string, wallets []string, tokens map[string]TokenInfo, eq *models.AssetEquivalence, roles RoleResolver) *Context {
	walletSet := make(map[string]bool, len(wallets))
	for _, w := range wallets {
		walletSet[strings.ToLower(w)] = true
	}
	tokenMap := make(map[string]TokenInfo, len(tokens))
	for addr, info := range tokens {
		tokenMap[strings.ToLower(addr)] = info
	}
	if clearingPrefix == "" {
		clearingPrefix = "clearing"
	}
	return &Context{
		FundID:         fundID,
		NativeAsset:    nativeAsset,
		ClearingPrefix: clearingPrefix,
		Equivalence:    eq,
		Roles:          roles,
		wallets:        walletSet,
		tokens:         tokenMap,
	}
}

// IsMonitored reports whether an address belongs to the fund's wallet set.
func (c *Context) IsMonitored(address string) bool {
	return c.wallets[strings.ToLower(address)]
}

// Token returns metadata for a token contract. Unknown tokens get a
// truncated-address symbol and 18 decimals so decoding never fails on
// an unlisted token; their entries land in the review queue instead.
func (c *Context) Token(address string) TokenInfo {
	if info, ok := c.tokens[strings.ToLower(address)]; ok {
		return info
	}
	symbol := strings.ToUpper(strings.TrimPrefix(address, "0x"))
	if len(symbol) > 8 {
		symbol = symbol[:8]
	}
	return TokenInfo{Symbol: "TOKEN-" + symbol, Decimals: 18}
}

// ClearingAccount returns the clearing account name for an asset.
func (c *Context) ClearingAccount(asset string) string {
	return c.ClearingPrefix + ":" + asset
}

// AssetAccount returns the fund's asset account name for a symbol.
func AssetAccount(asset string) string {
	return "assets:" + asset
}

// PlatformAccount returns the receivable account for assets held inside
// a protocol (supplied collateral, staked positions).
func PlatformAccount(platform types.Platform, asset string) string {
	return fmt.Sprintf("platform:%s:%s", platform, asset)
}

// LiabilityAccount returns the liability account for borrowed assets.
func LiabilityAccount(platform types.Platform, asset string) string {
	return fmt.Sprintf("liabilities:%s:%s", platform, asset)
}

// weiToDecimal converts a raw token amount to a decimal quantity using
// the token's decimals.
func weiToDecimal(v *big.Int, decimals int32) decimal.Decimal {
	if v == nil {
		return decimal.Zero
	}
	return decimal.NewFromBigInt(v, -decimals)
}

// newDecodedTransaction fills the transaction-level fields every decoder
// shares: hash, block, timing, gas, and addresses.
func newDecodedTransaction(tx *chain.RawTransaction, platform types.Platform, category types.TxCategory, referencePrice decimal.Decimal) *models.DecodedTransaction {
	gasFee := decimal.Zero
	if tx.EffectiveGasPrice != nil {
		fee := new(big.Int).Mul(tx.EffectiveGasPrice, new(big.Int).SetUint64(tx.GasUsed))
		gasFee = weiToDecimal(fee, 18)
	}

	status := types.StatusSuccess
	if !tx.Success {
		status = types.StatusError
	}

	return &models.DecodedTransaction{
		TxHash:         tx.Hash,
		Platform:       platform,
		Category:       category,
		Block:          tx.BlockNumber,
		Timestamp:      tx.Timestamp,
		ReferencePrice: referencePrice,
		GasUsed:        tx.GasUsed,
		GasFee:         gasFee,
		FromAddress:    tx.From,
		ToAddress:      tx.To,
		NativeValue:    weiToDecimal(tx.Value, 18),
		WalletRoles:    make(map[string]types.WalletRole),
		Positions:      make(map[string]models.LoanPosition),
		Status:         status,
	}
}

// newJournalEntry fills the entry-level boilerplate shared by decoders.
// EntryID is left unset; the registry assigns stable entry identifiers
// once the full entry list for the transaction is known.
func newJournalEntry(tx *chain.RawTransaction, dctx *Context, category types.TxCategory, platform types.Platform, wallet, description string) *models.JournalEntry {
	return &models.JournalEntry{
		Date:          tx.Timestamp,
		Description:   description,
		TxHash:        tx.Hash,
		Category:      category,
		Platform:      platform,
		WalletAddress: wallet,
		FundID:        dctx.FundID,
		PostingStatus: types.PostingReviewQueue,
	}
}

// assignEntryIDs derives entry identifiers from the transaction hash,
// wallet, category, and entry ordinal. Name-based UUIDs keep decoding
// idempotent: re-decoding a transaction yields the same IDs, so replays
// deduplicate instead of producing new journal entries.
func assignEntryIDs(dt *models.DecodedTransaction) {
	for i, entry := range dt.JournalEntries {
		name := fmt.Sprintf("%s:%s:%s:%d", dt.TxHash, strings.ToLower(entry.WalletAddress), entry.Category, i)
		entry.EntryID = uuid.NewSHA1(uuid.NameSpaceOID, []byte(name)).String()
	}
}

// annotateRole records the wallet's role on the decoded transaction when
// the resolver knows it.
func annotateRole(dt *models.DecodedTransaction, dctx *Context, address string) {
	if dctx.Roles == nil {
		return
	}
	if role, ok := dctx.Roles.RoleOf(address); ok {
		dt.WalletRoles[strings.ToLower(address)] = role
	}
}
