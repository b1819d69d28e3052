// Package types provides common type definitions for the fund ledger system.
package types

// Platform identifies the decoder that produced a decoded transaction.
type Platform string

const (
	// PlatformGeneric represents the fallback decoder for unmatched transactions
	PlatformGeneric Platform = "generic"
	// PlatformERC20 represents the plain ERC-20 token transfer decoder
	PlatformERC20 Platform = "erc20"
	// PlatformWETH represents the wrapped-native deposit/withdraw decoder
	PlatformWETH Platform = "weth"
	// PlatformAaveV3 represents the Aave-style lending pool decoder
	PlatformAaveV3 Platform = "aave_v3"
	// PlatformUniswapV2 represents the Uniswap-V2-style router swap decoder
	PlatformUniswapV2 Platform = "uniswap_v2"
)

// TxCategory classifies a decoded transaction or journal entry.
type TxCategory string

const (
	// CategoryLoanOrigination represents opening a new borrow position
	CategoryLoanOrigination TxCategory = "loan_origination"
	// CategoryLoanRepayment represents repaying an open borrow position
	CategoryLoanRepayment TxCategory = "loan_repayment"
	// CategoryRefinance represents rolling a borrow position into a new one
	CategoryRefinance TxCategory = "refinance"
	// CategoryETHTransfer represents a plain native-asset transfer
	CategoryETHTransfer TxCategory = "eth_transfer"
	// CategoryTokenTransfer represents an ERC-20 token transfer
	CategoryTokenTransfer TxCategory = "token_transfer"
	// CategoryWrap represents wrapping the native asset
	CategoryWrap TxCategory = "wrap"
	// CategoryUnwrap represents unwrapping back to the native asset
	CategoryUnwrap TxCategory = "unwrap"
	// CategorySwap represents a token swap through a trading venue
	CategorySwap TxCategory = "swap"
	// CategoryDeposit represents supplying collateral to a lending pool
	CategoryDeposit TxCategory = "deposit"
	// CategoryWithdrawal represents withdrawing collateral from a lending pool
	CategoryWithdrawal TxCategory = "withdrawal"
	// CategoryContractCall represents an unclassified contract interaction
	CategoryContractCall TxCategory = "contract_call"
	// CategoryUnknown represents a transaction no decoder could classify
	CategoryUnknown TxCategory = "unknown"
)

// Direction represents the side of a double-entry posting.
type Direction string

const (
	// Debit represents the debit side of a posting
	Debit Direction = "DEBIT"
	// Credit represents the credit side of a posting
	Credit Direction = "CREDIT"
)

// PostingStatus classifies whether a journal entry may be committed unattended.
type PostingStatus string

const (
	// PostingAutoReady marks an entry safe for unattended posting
	PostingAutoReady PostingStatus = "auto_post_ready"
	// PostingReviewQueue marks an entry that needs human review before posting
	PostingReviewQueue PostingStatus = "review_queue"
	// PostingPosted marks an entry committed to the ledger
	PostingPosted PostingStatus = "posted"
)

// TxStatus represents the outcome of decoding a transaction.
type TxStatus string

const (
	// StatusSuccess represents a successfully decoded transaction
	StatusSuccess TxStatus = "success"
	// StatusError represents a transaction that could not be decoded
	StatusError TxStatus = "error"
)

// WalletRole labels a wallet's role within a decoded transaction.
type WalletRole string

const (
	// RoleLender marks a wallet supplying assets to a lending pool
	RoleLender WalletRole = "LENDER"
	// RoleBorrower marks a wallet drawing debt from a lending pool
	RoleBorrower WalletRole = "BORROWER"
	// RoleTrader marks a wallet on either side of a swap
	RoleTrader WalletRole = "TRADER"
)

// LotMethod selects the lot consumption order on disposal.
type LotMethod string

const (
	// MethodFIFO consumes the oldest lot first
	MethodFIFO LotMethod = "fifo"
	// MethodLIFO consumes the newest lot first
	MethodLIFO LotMethod = "lifo"
	// MethodHIFO consumes the highest-cost lot first
	MethodHIFO LotMethod = "hifo"
)

// TaxTreatment labels a disposal's holding-period classification.
type TaxTreatment string

const (
	// TreatmentShortTerm marks a disposal held 365 days or less
	TreatmentShortTerm TaxTreatment = "short_term"
	// TreatmentLongTerm marks a disposal held more than 365 days
	TreatmentLongTerm TaxTreatment = "long_term"
)

// ServiceError represents a structured error response
type ServiceError struct {
	Code    string                 `json:"code"`
	Message string                 `json:"message"`
	Details map[string]interface{} `json:"details,omitempty"`
}

func (e *ServiceError) Error() string {
	return e.Message
}
