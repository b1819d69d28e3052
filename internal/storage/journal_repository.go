package storage

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/fund-ledger/internal/models"
	"github.com/fund-ledger/internal/types"
)

// JournalRepository persists journal entries in Postgres. Lines and
// enrichment are stored as JSONB so the decimal amounts round-trip
// without precision loss.
type JournalRepository struct {
	db *PostgresDB
}

// NewJournalRepository creates a new journal repository
func NewJournalRepository(db *PostgresDB) *JournalRepository {
	return &JournalRepository{db: db}
}

// Insert persists a journal entry
func (r *JournalRepository) Insert(ctx context.Context, entry *models.JournalEntry) error {
	linesJSON, err := json.Marshal(entry.Lines)
	if err != nil {
		return fmt.Errorf("failed to marshal lines: %w", err)
	}

	var enrichmentJSON []byte
	if entry.Enrichment != nil {
		enrichmentJSON, err = json.Marshal(entry.Enrichment)
		if err != nil {
			return fmt.Errorf("failed to marshal enrichment: %w", err)
		}
	}

	query := `
		INSERT INTO journal_entries (
			entry_id, entry_date, description, tx_hash, category, platform,
			wallet_address, fund_id, lines, posting_status, enrichment, integration_error
		) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12)
	`

	_, err = r.db.Pool().Exec(ctx, query,
		entry.EntryID,
		entry.Date,
		entry.Description,
		entry.TxHash,
		string(entry.Category),
		string(entry.Platform),
		entry.WalletAddress,
		entry.FundID,
		linesJSON,
		string(entry.PostingStatus),
		enrichmentJSON,
		entry.IntegrationError,
	)
	if err != nil {
		return fmt.Errorf("failed to insert journal entry: %w", err)
	}

	return nil
}

// GetByTxHash returns all entries produced by one transaction
func (r *JournalRepository) GetByTxHash(ctx context.Context, txHash string) ([]*models.JournalEntry, error) {
	query := `
		SELECT entry_id, entry_date, description, tx_hash, category, platform,
		       wallet_address, fund_id, lines, posting_status, enrichment, integration_error
		FROM journal_entries
		WHERE tx_hash = $1
		ORDER BY entry_date, entry_id
	`

	rows, err := r.db.Pool().Query(ctx, query, txHash)
	if err != nil {
		return nil, fmt.Errorf("failed to query journal entries: %w", err)
	}
	defer rows.Close()

	return scanEntries(rows)
}

// ListByStatus returns entries in a posting status, oldest first
func (r *JournalRepository) ListByStatus(ctx context.Context, status types.PostingStatus, limit int) ([]*models.JournalEntry, error) {
	query := `
		SELECT entry_id, entry_date, description, tx_hash, category, platform,
		       wallet_address, fund_id, lines, posting_status, enrichment, integration_error
		FROM journal_entries
		WHERE posting_status = $1
		ORDER BY entry_date, entry_id
		LIMIT $2
	`

	rows, err := r.db.Pool().Query(ctx, query, string(status), limit)
	if err != nil {
		return nil, fmt.Errorf("failed to query journal entries: %w", err)
	}
	defer rows.Close()

	return scanEntries(rows)
}

// UpdatePostingStatus transitions an entry to a new posting status
func (r *JournalRepository) UpdatePostingStatus(ctx context.Context, entryID string, status types.PostingStatus) error {
	tag, err := r.db.Pool().Exec(ctx,
		`UPDATE journal_entries SET posting_status = $1 WHERE entry_id = $2`,
		string(status), entryID)
	if err != nil {
		return fmt.Errorf("failed to update posting status: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return fmt.Errorf("journal entry %s not found", entryID)
	}
	return nil
}

type entryRows interface {
	Next() bool
	Scan(dest ...interface{}) error
	Err() error
}

func scanEntries(rows entryRows) ([]*models.JournalEntry, error) {
	var entries []*models.JournalEntry
	for rows.Next() {
		entry := &models.JournalEntry{}
		var category, platform, status string
		var linesJSON, enrichmentJSON []byte

		err := rows.Scan(
			&entry.EntryID,
			&entry.Date,
			&entry.Description,
			&entry.TxHash,
			&category,
			&platform,
			&entry.WalletAddress,
			&entry.FundID,
			&linesJSON,
			&status,
			&enrichmentJSON,
			&entry.IntegrationError,
		)
		if err != nil {
			return nil, fmt.Errorf("failed to scan journal entry: %w", err)
		}

		entry.Category = types.TxCategory(category)
		entry.Platform = types.Platform(platform)
		entry.PostingStatus = types.PostingStatus(status)

		if err := json.Unmarshal(linesJSON, &entry.Lines); err != nil {
			return nil, fmt.Errorf("failed to unmarshal lines for %s: %w", entry.EntryID, err)
		}
		if len(enrichmentJSON) > 0 {
			entry.Enrichment = &models.CostBasisEnrichment{}
			if err := json.Unmarshal(enrichmentJSON, entry.Enrichment); err != nil {
				return nil, fmt.Errorf("failed to unmarshal enrichment for %s: %w", entry.EntryID, err)
			}
		}

		entries = append(entries, entry)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("row iteration failed: %w", err)
	}
	return entries, nil
}
