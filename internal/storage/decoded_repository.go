package storage

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/fund-ledger/internal/models"
)

// DecodedTxRepository archives decoded transactions in ClickHouse for
// analytics and replay. Journal entries and events are stored as JSON
// columns; the authoritative journal lives in Postgres.
type DecodedTxRepository struct {
	db *ClickHouseDB
}

// NewDecodedTxRepository creates a new decoded transaction repository
func NewDecodedTxRepository(db *ClickHouseDB) *DecodedTxRepository {
	return &DecodedTxRepository{db: db}
}

// Insert archives a single decoded transaction
func (r *DecodedTxRepository) Insert(ctx context.Context, dt *models.DecodedTransaction) error {
	entriesJSON, eventsJSON, err := marshalDecoded(dt)
	if err != nil {
		return err
	}

	query := `
		INSERT INTO decoded_transactions (
			tx_hash, platform, category, block, timestamp, reference_price,
			gas_used, gas_fee, from_address, to_address, native_value,
			function_name, events, journal_entries, status, error
		) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
	`

	err = r.db.Conn().Exec(ctx, query,
		dt.TxHash,
		string(dt.Platform),
		string(dt.Category),
		dt.Block,
		dt.Timestamp,
		dt.ReferencePrice.String(),
		dt.GasUsed,
		dt.GasFee.String(),
		dt.FromAddress,
		dt.ToAddress,
		dt.NativeValue.String(),
		dt.FunctionName,
		string(eventsJSON),
		string(entriesJSON),
		string(dt.Status),
		dt.Error,
	)
	if err != nil {
		return fmt.Errorf("failed to insert decoded transaction: %w", err)
	}
	return nil
}

// BatchInsert archives multiple decoded transactions in one batch
func (r *DecodedTxRepository) BatchInsert(ctx context.Context, transactions []*models.DecodedTransaction) error {
	if len(transactions) == 0 {
		return nil
	}

	batch, err := r.db.Conn().PrepareBatch(ctx, `
		INSERT INTO decoded_transactions (
			tx_hash, platform, category, block, timestamp, reference_price,
			gas_used, gas_fee, from_address, to_address, native_value,
			function_name, events, journal_entries, status, error
		)
	`)
	if err != nil {
		return fmt.Errorf("failed to prepare batch: %w", err)
	}

	for _, dt := range transactions {
		entriesJSON, eventsJSON, err := marshalDecoded(dt)
		if err != nil {
			return err
		}
		err = batch.Append(
			dt.TxHash,
			string(dt.Platform),
			string(dt.Category),
			dt.Block,
			dt.Timestamp,
			dt.ReferencePrice.String(),
			dt.GasUsed,
			dt.GasFee.String(),
			dt.FromAddress,
			dt.ToAddress,
			dt.NativeValue.String(),
			dt.FunctionName,
			string(eventsJSON),
			string(entriesJSON),
			string(dt.Status),
			dt.Error,
		)
		if err != nil {
			return fmt.Errorf("failed to append transaction %s to batch: %w", dt.TxHash, err)
		}
	}

	if err := batch.Send(); err != nil {
		return fmt.Errorf("failed to send batch: %w", err)
	}
	return nil
}

// CountByPlatform returns archived transaction counts per platform since
// a point in time
func (r *DecodedTxRepository) CountByPlatform(ctx context.Context, since time.Time) (map[string]uint64, error) {
	query := `
		SELECT platform, count() AS cnt
		FROM decoded_transactions
		WHERE timestamp >= ?
		GROUP BY platform
	`

	rows, err := r.db.Conn().Query(ctx, query, since)
	if err != nil {
		return nil, fmt.Errorf("failed to query platform counts: %w", err)
	}
	defer rows.Close()

	counts := make(map[string]uint64)
	for rows.Next() {
		var platform string
		var cnt uint64
		if err := rows.Scan(&platform, &cnt); err != nil {
			return nil, fmt.Errorf("failed to scan platform count: %w", err)
		}
		counts[platform] = cnt
	}
	return counts, rows.Err()
}

func marshalDecoded(dt *models.DecodedTransaction) (entriesJSON, eventsJSON []byte, err error) {
	entriesJSON, err = json.Marshal(dt.JournalEntries)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to marshal journal entries for %s: %w", dt.TxHash, err)
	}
	eventsJSON, err = json.Marshal(dt.Events)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to marshal events for %s: %w", dt.TxHash, err)
	}
	return entriesJSON, eventsJSON, nil
}
