// Package worker runs batch decoding of transaction hashes through the
// decoder registry and persists the results.
package worker

import (
	"context"
	"sync"

	"github.com/fund-ledger/internal/logging"
	"github.com/fund-ledger/internal/models"
	"github.com/fund-ledger/internal/storage"
	"github.com/fund-ledger/internal/types"
)

// DecodeService is the slice of the registry the worker needs.
type DecodeService interface {
	DecodeTransaction(ctx context.Context, txHash string) (*models.DecodedTransaction, error)
}

// DecodeWorker decodes batches of transaction hashes with bounded
// concurrency. Decoding is stateless and parallel across hashes; the
// cost-basis tracker serializes its own mutations internally.
type DecodeWorker struct {
	decodeSvc   DecodeService
	journalRepo *storage.JournalRepository
	archiveRepo *storage.DecodedTxRepository
	concurrency int
	logger      *logging.Logger
}

// BatchResult summarizes one batch run.
type BatchResult struct {
	Total     int `json:"total"`
	Succeeded int `json:"succeeded"`
	Failed    int `json:"failed"`
	Persisted int `json:"persisted"`
}

// NewDecodeWorker creates a decode worker. Repositories may be nil when
// the corresponding store is not configured; results are then only
// returned, not persisted.
func NewDecodeWorker(decodeSvc DecodeService, journalRepo *storage.JournalRepository, archiveRepo *storage.DecodedTxRepository, concurrency int) *DecodeWorker {
	if concurrency < 1 {
		concurrency = 1
	}
	return &DecodeWorker{
		decodeSvc:   decodeSvc,
		journalRepo: journalRepo,
		archiveRepo: archiveRepo,
		concurrency: concurrency,
		logger:      logging.GetGlobalLogger().WithField("component", "decode_worker"),
	}
}

// ProcessBatch decodes all hashes and persists the results. Order of
// persistence follows the input order so replays are deterministic even
// though decoding itself runs concurrently.
func (w *DecodeWorker) ProcessBatch(ctx context.Context, txHashes []string) (*BatchResult, []*models.DecodedTransaction) {
	result := &BatchResult{Total: len(txHashes)}
	if len(txHashes) == 0 {
		return result, nil
	}

	decoded := make([]*models.DecodedTransaction, len(txHashes))

	sem := make(chan struct{}, w.concurrency)
	var wg sync.WaitGroup
	for i, hash := range txHashes {
		wg.Add(1)
		sem <- struct{}{}
		go func(i int, hash string) {
			defer wg.Done()
			defer func() { <-sem }()

			dt, err := w.decodeSvc.DecodeTransaction(ctx, hash)
			if err != nil {
				w.logger.WithFields(map[string]interface{}{
					"txHash": hash,
					"error":  err.Error(),
				}).Error("Decode failed")
				return
			}
			decoded[i] = dt
		}(i, hash)
	}
	wg.Wait()

	var toArchive []*models.DecodedTransaction
	for _, dt := range decoded {
		if dt == nil {
			result.Failed++
			continue
		}
		if dt.Status == types.StatusError {
			result.Failed++
		} else {
			result.Succeeded++
		}
		toArchive = append(toArchive, dt)

		if w.journalRepo != nil {
			for _, entry := range dt.JournalEntries {
				if err := w.journalRepo.Insert(ctx, entry); err != nil {
					w.logger.WithFields(map[string]interface{}{
						"entryId": entry.EntryID,
						"error":   err.Error(),
					}).Error("Failed to persist journal entry")
					continue
				}
				result.Persisted++
			}
		}
	}

	if w.archiveRepo != nil && len(toArchive) > 0 {
		if err := w.archiveRepo.BatchInsert(ctx, toArchive); err != nil {
			w.logger.WithError(err).Error("Failed to archive decoded transactions")
		}
	}

	w.logger.WithFields(map[string]interface{}{
		"total":     result.Total,
		"succeeded": result.Succeeded,
		"failed":    result.Failed,
		"persisted": result.Persisted,
	}).Info("Batch decode complete")

	return result, toArchive
}
