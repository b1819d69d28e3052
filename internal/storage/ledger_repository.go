package storage

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/shopspring/decimal"

	"github.com/fund-ledger/internal/models"
	"github.com/fund-ledger/internal/types"
)

// LedgerRepository persists the append-only lot and disposal history in
// Postgres for audit. The tracker's in-memory state stays authoritative
// for position queries; this store is the durable record.
type LedgerRepository struct {
	db *PostgresDB
}

// NewLedgerRepository creates a new ledger repository
func NewLedgerRepository(db *PostgresDB) *LedgerRepository {
	return &LedgerRepository{db: db}
}

// InsertLot records a created tax lot
func (r *LedgerRepository) InsertLot(ctx context.Context, lot *models.TaxLot) error {
	query := `
		INSERT INTO tax_lots (
			lot_id, asset, amount, remaining, cost_basis, cost_per_unit,
			acquired_at, tx_hash, wallet_id, fund_id
		) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)
	`

	_, err := r.db.Pool().Exec(ctx, query,
		lot.LotID,
		lot.Asset,
		lot.Amount.String(),
		lot.Remaining.String(),
		lot.CostBasis.String(),
		lot.CostPerUnit.String(),
		lot.AcquiredAt,
		lot.TxHash,
		lot.WalletID,
		lot.FundID,
	)
	if err != nil {
		return fmt.Errorf("failed to insert tax lot: %w", err)
	}
	return nil
}

// InsertDisposal records a disposal event
func (r *LedgerRepository) InsertDisposal(ctx context.Context, d *models.DisposalEvent) error {
	lotsUsedJSON, err := json.Marshal(d.LotsUsed)
	if err != nil {
		return fmt.Errorf("failed to marshal lots used: %w", err)
	}

	query := `
		INSERT INTO disposal_events (
			disposal_id, asset, amount, proceeds, cost_basis, gain_loss,
			disposed_at, holding_days, is_long_term, tax_treatment,
			lots_used, tx_hash, wallet_id, fund_id
		) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14)
	`

	_, err = r.db.Pool().Exec(ctx, query,
		d.DisposalID,
		d.Asset,
		d.Amount.String(),
		d.Proceeds.String(),
		d.CostBasis.String(),
		d.GainLoss.String(),
		d.DisposedAt,
		d.HoldingDays,
		d.IsLongTerm,
		string(d.Treatment),
		lotsUsedJSON,
		d.TxHash,
		d.WalletID,
		d.FundID,
	)
	if err != nil {
		return fmt.Errorf("failed to insert disposal event: %w", err)
	}
	return nil
}

// ListDisposals returns the disposal history for a fund, oldest first
func (r *LedgerRepository) ListDisposals(ctx context.Context, fundID string, limit int) ([]*models.DisposalEvent, error) {
	query := `
		SELECT disposal_id, asset, amount::text, proceeds::text, cost_basis::text,
		       gain_loss::text, disposed_at, holding_days, is_long_term,
		       tax_treatment, lots_used, tx_hash, wallet_id, fund_id
		FROM disposal_events
		WHERE fund_id = $1
		ORDER BY disposed_at, disposal_id
		LIMIT $2
	`

	rows, err := r.db.Pool().Query(ctx, query, fundID, limit)
	if err != nil {
		return nil, fmt.Errorf("failed to query disposal events: %w", err)
	}
	defer rows.Close()

	var disposals []*models.DisposalEvent
	for rows.Next() {
		d := &models.DisposalEvent{}
		var amount, proceeds, costBasis, gainLoss, treatment string
		var lotsUsedJSON []byte

		err := rows.Scan(
			&d.DisposalID,
			&d.Asset,
			&amount,
			&proceeds,
			&costBasis,
			&gainLoss,
			&d.DisposedAt,
			&d.HoldingDays,
			&d.IsLongTerm,
			&treatment,
			&lotsUsedJSON,
			&d.TxHash,
			&d.WalletID,
			&d.FundID,
		)
		if err != nil {
			return nil, fmt.Errorf("failed to scan disposal event: %w", err)
		}

		if d.Amount, err = decimal.NewFromString(amount); err != nil {
			return nil, fmt.Errorf("invalid amount for %s: %w", d.DisposalID, err)
		}
		if d.Proceeds, err = decimal.NewFromString(proceeds); err != nil {
			return nil, fmt.Errorf("invalid proceeds for %s: %w", d.DisposalID, err)
		}
		if d.CostBasis, err = decimal.NewFromString(costBasis); err != nil {
			return nil, fmt.Errorf("invalid cost basis for %s: %w", d.DisposalID, err)
		}
		if d.GainLoss, err = decimal.NewFromString(gainLoss); err != nil {
			return nil, fmt.Errorf("invalid gain/loss for %s: %w", d.DisposalID, err)
		}
		d.Treatment = types.TaxTreatment(treatment)

		if err := json.Unmarshal(lotsUsedJSON, &d.LotsUsed); err != nil {
			return nil, fmt.Errorf("failed to unmarshal lots used for %s: %w", d.DisposalID, err)
		}

		disposals = append(disposals, d)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("row iteration failed: %w", err)
	}
	return disposals, nil
}

// ListLots returns the lot history for one (fund, wallet, asset) book,
// oldest acquisition first
func (r *LedgerRepository) ListLots(ctx context.Context, fundID, walletID, asset string) ([]*models.TaxLot, error) {
	query := `
		SELECT lot_id, asset, amount::text, remaining::text, cost_basis::text,
		       cost_per_unit::text, acquired_at, tx_hash, wallet_id, fund_id
		FROM tax_lots
		WHERE fund_id = $1 AND wallet_id = $2 AND asset = $3
		ORDER BY acquired_at, lot_id
	`

	rows, err := r.db.Pool().Query(ctx, query, fundID, walletID, asset)
	if err != nil {
		return nil, fmt.Errorf("failed to query tax lots: %w", err)
	}
	defer rows.Close()

	var lots []*models.TaxLot
	for rows.Next() {
		lot := &models.TaxLot{}
		var amount, remaining, costBasis, costPerUnit string

		err := rows.Scan(
			&lot.LotID,
			&lot.Asset,
			&amount,
			&remaining,
			&costBasis,
			&costPerUnit,
			&lot.AcquiredAt,
			&lot.TxHash,
			&lot.WalletID,
			&lot.FundID,
		)
		if err != nil {
			return nil, fmt.Errorf("failed to scan tax lot: %w", err)
		}

		if lot.Amount, err = decimal.NewFromString(amount); err != nil {
			return nil, fmt.Errorf("invalid amount for %s: %w", lot.LotID, err)
		}
		if lot.Remaining, err = decimal.NewFromString(remaining); err != nil {
			return nil, fmt.Errorf("invalid remaining for %s: %w", lot.LotID, err)
		}
		if lot.CostBasis, err = decimal.NewFromString(costBasis); err != nil {
			return nil, fmt.Errorf("invalid cost basis for %s: %w", lot.LotID, err)
		}
		if lot.CostPerUnit, err = decimal.NewFromString(costPerUnit); err != nil {
			return nil, fmt.Errorf("invalid cost per unit for %s: %w", lot.LotID, err)
		}

		lots = append(lots, lot)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("row iteration failed: %w", err)
	}
	return lots, nil
}
