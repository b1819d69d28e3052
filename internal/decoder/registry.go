package decoder

import (
	"context"
	"sync"

	"github.com/fund-ledger/internal/chain"
	"github.com/fund-ledger/internal/errors"
	"github.com/fund-ledger/internal/logging"
	"github.com/fund-ledger/internal/models"
	"github.com/fund-ledger/internal/types"
)

// Enricher passes decoded journal entries through cost-basis processing.
// Satisfied by ledger.Integrator; nil disables enrichment.
type Enricher interface {
	EnrichTransaction(dt *models.DecodedTransaction)
}

// Stats tracks running decode counters.
type Stats struct {
	TotalDecoded  int64                    `json:"totalDecoded"`
	SuccessCount  int64                    `json:"successCount"`
	ErrorCount    int64                    `json:"errorCount"`
	AutoPostReady int64                    `json:"autoPostReady"`
	ReviewQueue   int64                    `json:"reviewQueue"`
	PerPlatform   map[types.Platform]int64 `json:"perPlatform"`
}

// Registry owns the ordered decoder list and dispatches raw transactions
// to the first decoder that matches. Decode failures never propagate:
// they become status=error transactions and are counted.
type Registry struct {
	source   chain.Source
	dctx     *Context
	decoders []Decoder
	enricher Enricher
	autoPost map[types.TxCategory]bool
	logger   *logging.Logger

	mu    sync.Mutex
	stats Stats
}

// NewRegistry creates a registry. Decoders are consulted in the given
// order; callers register the most specific first. A generic fallback
// must be last so every transaction finds a decoder.
func NewRegistry(source chain.Source, dctx *Context, autoPostCategories []string, enricher Enricher, decoders ...Decoder) *Registry {
	autoPost := make(map[types.TxCategory]bool, len(autoPostCategories))
	for _, c := range autoPostCategories {
		autoPost[types.TxCategory(c)] = true
	}
	return &Registry{
		source:   source,
		dctx:     dctx,
		decoders: decoders,
		enricher: enricher,
		autoPost: autoPost,
		logger:   logging.GetGlobalLogger().WithField("component", "registry"),
		stats:    Stats{PerPlatform: make(map[types.Platform]int64)},
	}
}

// DecodeTransaction fetches the raw transaction and its logs, routes them
// to the matching decoder, applies posting-status policy, and runs the
// enricher. Only a malformed hash is returned as an error; everything
// else yields a DecodedTransaction, possibly with status=error.
func (r *Registry) DecodeTransaction(ctx context.Context, txHash string) (*models.DecodedTransaction, error) {
	if !chain.ValidateTxHash(txHash) {
		return nil, errors.NewInvalidTxHashError(txHash)
	}

	tx, err := r.source.GetTransaction(ctx, txHash)
	if err != nil {
		return r.errorTransaction(txHash, nil, err), nil
	}

	logs, err := r.source.GetLogs(ctx, txHash)
	if err != nil {
		return r.errorTransaction(txHash, tx, err), nil
	}

	var decoder Decoder
	for _, d := range r.decoders {
		if d.Matches(tx) {
			decoder = d
			break
		}
	}
	if decoder == nil {
		return r.errorTransaction(txHash, tx, errors.NewDecodeError(txHash, nil)), nil
	}

	dt, err := decoder.Decode(ctx, tx, logs)
	if err != nil {
		r.logger.WithFields(map[string]interface{}{
			"txHash":   txHash,
			"platform": decoder.Platform(),
			"error":    err.Error(),
		}).Warn("Decoder failed, transaction marked as error")
		return r.errorTransaction(txHash, tx, err), nil
	}

	assignEntryIDs(dt)
	r.applyPostingStatus(dt)

	if r.enricher != nil {
		r.enricher.EnrichTransaction(dt)
		// Enrichment failures demote entries back to review.
		for _, entry := range dt.JournalEntries {
			if entry.IntegrationError != "" {
				entry.PostingStatus = types.PostingReviewQueue
			}
		}
	}

	r.record(dt)
	return dt, nil
}

// applyPostingStatus marks an entry auto-postable only when it passes the
// balance invariant and its category is in the configured whitelist.
func (r *Registry) applyPostingStatus(dt *models.DecodedTransaction) {
	for _, entry := range dt.JournalEntries {
		if r.autoPost[entry.Category] && entry.Validate(r.dctx.Equivalence, dt.ReferencePrice) == nil {
			entry.PostingStatus = types.PostingAutoReady
		} else {
			entry.PostingStatus = types.PostingReviewQueue
		}
	}
}

// errorTransaction converts a failure into a status=error transaction.
func (r *Registry) errorTransaction(txHash string, tx *chain.RawTransaction, err error) *models.DecodedTransaction {
	dt := &models.DecodedTransaction{
		TxHash:   txHash,
		Platform: types.PlatformGeneric,
		Category: types.CategoryUnknown,
		Status:   types.StatusError,
		Error:    err.Error(),
	}
	if tx != nil {
		dt.Block = tx.BlockNumber
		dt.Timestamp = tx.Timestamp
		dt.FromAddress = tx.From
		dt.ToAddress = tx.To
	}
	r.record(dt)
	return dt
}

// record updates the running counters.
func (r *Registry) record(dt *models.DecodedTransaction) {
	r.mu.Lock()
	defer r.mu.Unlock()

	r.stats.TotalDecoded++
	r.stats.PerPlatform[dt.Platform]++
	if dt.Status == types.StatusError {
		r.stats.ErrorCount++
		return
	}
	r.stats.SuccessCount++
	for _, entry := range dt.JournalEntries {
		switch entry.PostingStatus {
		case types.PostingAutoReady:
			r.stats.AutoPostReady++
		case types.PostingReviewQueue:
			r.stats.ReviewQueue++
		}
	}
}

// GetStats returns a copy of the running counters.
func (r *Registry) GetStats() Stats {
	r.mu.Lock()
	defer r.mu.Unlock()

	out := r.stats
	out.PerPlatform = make(map[types.Platform]int64, len(r.stats.PerPlatform))
	for k, v := range r.stats.PerPlatform {
		out.PerPlatform[k] = v
	}
	return out
}
