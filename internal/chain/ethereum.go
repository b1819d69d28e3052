package chain

import (
	"context"
	"fmt"
	"log"
	"math/big"
	"strings"
	"sync"
	"time"

	"github.com/ethereum/go-ethereum/common"
	ethtypes "github.com/ethereum/go-ethereum/core/types"
	"github.com/ethereum/go-ethereum/ethclient"
	"golang.org/x/time/rate"

	"github.com/fund-ledger/internal/config"
	"github.com/fund-ledger/internal/errors"
	"github.com/fund-ledger/internal/retry"
)

// EthereumSource implements Source against an Ethereum JSON-RPC endpoint.
// All RPC calls go through a token-bucket limiter so a batch decode cannot
// exhaust the provider quota, and transient failures are retried with
// exponential backoff. A secondary endpoint is dialed on provider errors.
// The source is shared by concurrent worker goroutines; mu guards the
// endpoint-rotation state.
type EthereumSource struct {
	limiter     *rate.Limiter
	retryConfig *retry.RetryConfig

	mu           sync.RWMutex
	client       *ethclient.Client
	secondaryURL string
	retired      *ethclient.Client
}

// NewEthereumSource dials the primary RPC endpoint and returns a source.
func NewEthereumSource(cfg config.ChainConfig) (*EthereumSource, error) {
	if cfg.RPCPrimary == "" {
		return nil, fmt.Errorf("primary RPC URL is required")
	}

	client, err := ethclient.Dial(cfg.RPCPrimary)
	if err != nil {
		return nil, errors.NewProviderError("dial", err)
	}

	rps := cfg.RequestsPerSecond
	if rps <= 0 {
		rps = 10
	}

	log.Printf("[Chain:ethereum] Connected to primary endpoint, rps=%d", rps)

	return &EthereumSource{
		client:       client,
		limiter:      rate.NewLimiter(rate.Limit(rps), rps),
		retryConfig:  retry.DefaultRetryConfig(),
		secondaryURL: cfg.RPCSecondary,
	}, nil
}

// GetTransaction fetches a confirmed transaction, its receipt, and the
// containing block header, then normalizes the pieces into a RawTransaction.
func (s *EthereumSource) GetTransaction(ctx context.Context, txHash string) (*RawTransaction, error) {
	if !ValidateTxHash(txHash) {
		return nil, errors.NewInvalidTxHashError(txHash)
	}

	hash := common.HexToHash(txHash)

	var tx *ethtypes.Transaction
	var receipt *ethtypes.Receipt
	var header *ethtypes.Header

	err := s.call(ctx, "GetTransaction", func(ctx context.Context, client *ethclient.Client) error {
		var isPending bool
		var err error
		tx, isPending, err = client.TransactionByHash(ctx, hash)
		if err != nil {
			return err
		}
		if isPending {
			return fmt.Errorf("transaction %s is pending", txHash)
		}

		receipt, err = client.TransactionReceipt(ctx, hash)
		if err != nil {
			return err
		}

		header, err = client.HeaderByNumber(ctx, receipt.BlockNumber)
		return err
	})
	if err != nil {
		return nil, err
	}

	return normalize(tx, receipt, header)
}

// GetLogs returns the event logs from the transaction receipt.
func (s *EthereumSource) GetLogs(ctx context.Context, txHash string) ([]RawLog, error) {
	if !ValidateTxHash(txHash) {
		return nil, errors.NewInvalidTxHashError(txHash)
	}

	var receipt *ethtypes.Receipt
	err := s.call(ctx, "GetLogs", func(ctx context.Context, client *ethclient.Client) error {
		var err error
		receipt, err = client.TransactionReceipt(ctx, common.HexToHash(txHash))
		return err
	})
	if err != nil {
		return nil, err
	}

	logs := make([]RawLog, 0, len(receipt.Logs))
	for _, l := range receipt.Logs {
		logs = append(logs, RawLog{
			Address: l.Address,
			Topics:  l.Topics,
			Data:    l.Data,
			Index:   l.Index,
		})
	}
	return logs, nil
}

// Close closes the client connections, including any primary retired
// by a failover.
func (s *EthereumSource) Close() {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.retired != nil {
		s.retired.Close()
		s.retired = nil
	}
	if s.client != nil {
		s.client.Close()
		s.client = nil
	}
}

// activeClient returns the client calls should currently use.
func (s *EthereumSource) activeClient() *ethclient.Client {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.client
}

// call runs an RPC operation through the rate limiter with retry and
// secondary-endpoint failover. Each attempt pins the client it uses, so
// a failover in another goroutine never swaps a connection out from
// under an in-flight call.
func (s *EthereumSource) call(ctx context.Context, op string, fn func(ctx context.Context, client *ethclient.Client) error) error {
	result := retry.WithExponentialBackoff(ctx, s.retryConfig, func(ctx context.Context, attempt int) error {
		if err := s.limiter.Wait(ctx); err != nil {
			return err
		}

		client := s.activeClient()
		err := fn(ctx, client)
		if err != nil && s.shouldFailover(err) {
			if next := s.failover(op, client, err); next != nil && next != client {
				return fn(ctx, next)
			}
		}
		return err
	})

	if !result.Success {
		return errors.NewProviderError(op, result.LastError)
	}
	return nil
}

// failover swaps in the secondary endpoint. Only the first goroutine to
// report the failed client performs the rotation; later callers get the
// already-rotated client. The failed primary is retired rather than
// closed so goroutines still mid-call on it fail normally and retry.
func (s *EthereumSource) failover(op string, failed *ethclient.Client, cause error) *ethclient.Client {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.client != failed {
		return s.client
	}
	if s.secondaryURL == "" {
		return nil
	}

	client, err := ethclient.Dial(s.secondaryURL)
	if err != nil {
		log.Printf("[Chain:ethereum] %s: secondary endpoint dial failed: %v", op, err)
		return nil
	}

	log.Printf("[Chain:ethereum] %s failed on primary, failing over: %v", op, cause)
	s.retired = s.client
	s.client = client
	s.secondaryURL = ""
	return client
}

// shouldFailover determines if an error warrants switching to the secondary endpoint
func (s *EthereumSource) shouldFailover(err error) bool {
	if err == nil {
		return false
	}

	errStr := strings.ToLower(err.Error())

	if strings.Contains(errStr, "rate limit") ||
		strings.Contains(errStr, "too many requests") ||
		strings.Contains(errStr, "429") {
		return true
	}

	if strings.Contains(errStr, "connection refused") ||
		strings.Contains(errStr, "connection reset") ||
		strings.Contains(errStr, "no such host") {
		return true
	}

	return false
}

var big1 = big.NewInt(1)

func headerTime(header *ethtypes.Header) time.Time {
	return time.Unix(int64(header.Time), 0).UTC()
}

// normalize converts go-ethereum types into a RawTransaction
func normalize(tx *ethtypes.Transaction, receipt *ethtypes.Receipt, header *ethtypes.Header) (*RawTransaction, error) {
	chainID := tx.ChainId()
	if chainID == nil || chainID.Sign() == 0 {
		chainID = big1
	}
	sender, err := ethtypes.Sender(ethtypes.LatestSignerForChainID(chainID), tx)
	if err != nil {
		return nil, fmt.Errorf("failed to extract sender for %s: %w", tx.Hash().Hex(), err)
	}

	raw := &RawTransaction{
		Hash:              tx.Hash().Hex(),
		BlockNumber:       receipt.BlockNumber.Uint64(),
		Timestamp:         headerTime(header),
		From:              sender.Hex(),
		Value:             tx.Value(),
		Input:             tx.Data(),
		GasUsed:           receipt.GasUsed,
		EffectiveGasPrice: receipt.EffectiveGasPrice,
		Success:           receipt.Status == ethtypes.ReceiptStatusSuccessful,
	}

	if tx.To() != nil {
		raw.To = tx.To().Hex()
	}

	if raw.EffectiveGasPrice == nil {
		raw.EffectiveGasPrice = tx.GasPrice()
	}

	return raw, nil
}
