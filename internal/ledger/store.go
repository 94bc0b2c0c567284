package ledger

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"
)

// Begin records a new run for the token in status resolving.
func (s *Store) Begin(ctx context.Context, contractID, tokenID, correlationID string) (*Record, error) {
	contractID = strings.TrimSpace(contractID)
	tokenID = strings.TrimSpace(tokenID)
	if contractID == "" || tokenID == "" {
		return nil, errors.New("contract id and token id are required")
	}
	timestamp := time.Now().UTC().Format(time.RFC3339Nano)

	res, err := s.execWithRetry(
		ctx,
		`INSERT INTO runs (contract_id, token_id, status, correlation_id, created_at, updated_at)
         VALUES (?, ?, ?, ?, ?, ?)`,
		contractID,
		tokenID,
		StatusResolving,
		nullableString(correlationID),
		timestamp,
		timestamp,
	)
	if err != nil {
		return nil, fmt.Errorf("insert run: %w", err)
	}
	id, err := res.LastInsertId()
	if err != nil {
		return nil, fmt.Errorf("last insert id: %w", err)
	}
	return s.GetByID(ctx, id)
}

// Update persists changes to an existing record. Terminal statuses stamp
// completed_at.
func (s *Store) Update(ctx context.Context, record *Record) error {
	if record == nil {
		return errors.New("record is nil")
	}
	if _, ok := knownStatuses[record.Status]; !ok {
		return fmt.Errorf("unknown status %q", record.Status)
	}
	record.UpdatedAt = time.Now().UTC()
	if record.Status.IsTerminal() && record.CompletedAt == nil {
		completed := record.UpdatedAt
		record.CompletedAt = &completed
	}
	res, err := s.execWithRetry(
		ctx,
		`UPDATE runs
         SET asset_id = ?, status = ?, gltf_url = ?, glb_url = ?, mml_url = ?,
             error_kind = ?, error_message = ?, updated_at = ?, completed_at = ?
         WHERE id = ?`,
		nullableString(record.AssetID),
		record.Status,
		nullableString(record.GLTFURL),
		nullableString(record.GLBURL),
		nullableString(record.MMLURL),
		nullableString(record.ErrorKind),
		nullableString(record.ErrorMessage),
		record.UpdatedAt.Format(time.RFC3339Nano),
		nullableTime(record.CompletedAt),
		record.ID,
	)
	if err != nil {
		return fmt.Errorf("update run: %w", err)
	}
	if affected, err := res.RowsAffected(); err == nil && affected == 0 {
		return fmt.Errorf("update run: id %d not found", record.ID)
	}
	return nil
}

// GetByID fetches a record; a missing id yields (nil, nil).
func (s *Store) GetByID(ctx context.Context, id int64) (*Record, error) {
	row := s.db.QueryRowContext(ctx, `SELECT `+recordColumns+` FROM runs WHERE id = ?`, id)
	record, err := scanRecord(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("get run: %w", err)
	}
	return record, nil
}

// LatestForAsset returns the most recent run that resolved to assetID.
func (s *Store) LatestForAsset(ctx context.Context, assetID string) (*Record, error) {
	row := s.db.QueryRowContext(ctx,
		`SELECT `+recordColumns+` FROM runs WHERE asset_id = ? ORDER BY id DESC LIMIT 1`, assetID)
	record, err := scanRecord(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("latest for asset: %w", err)
	}
	return record, nil
}

// List returns records filtered by status (all when none given), newest first.
func (s *Store) List(ctx context.Context, statuses ...Status) ([]*Record, error) {
	query := `SELECT ` + recordColumns + ` FROM runs`
	args := make([]any, 0, len(statuses))
	if len(statuses) > 0 {
		query += ` WHERE status IN (` + makePlaceholders(len(statuses)) + `)`
		for _, status := range statuses {
			args = append(args, status)
		}
	}
	query += ` ORDER BY id DESC`

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("list runs: %w", err)
	}
	defer rows.Close()

	var records []*Record
	for rows.Next() {
		record, err := scanRecord(rows)
		if err != nil {
			return nil, err
		}
		records = append(records, record)
	}
	return records, rows.Err()
}

// Stats returns a count of records grouped by status.
func (s *Store) Stats(ctx context.Context) (map[Status]int, error) {
	rows, err := s.db.QueryContext(ctx, `SELECT status, COUNT(1) FROM runs GROUP BY status`)
	if err != nil {
		return nil, fmt.Errorf("ledger stats: %w", err)
	}
	defer rows.Close()

	stats := make(map[Status]int)
	for rows.Next() {
		var status Status
		var count int
		if err := rows.Scan(&status, &count); err != nil {
			return nil, err
		}
		stats[status] = count
	}
	return stats, rows.Err()
}

// ClearFailed removes failed runs.
func (s *Store) ClearFailed(ctx context.Context) (int64, error) {
	res, err := s.execWithRetry(ctx, `DELETE FROM runs WHERE status = ?`, StatusFailed)
	if err != nil {
		return 0, fmt.Errorf("clear failed: %w", err)
	}
	return res.RowsAffected()
}

// Clear removes every run.
func (s *Store) Clear(ctx context.Context) (int64, error) {
	res, err := s.execWithRetry(ctx, `DELETE FROM runs`)
	if err != nil {
		return 0, fmt.Errorf("clear ledger: %w", err)
	}
	return res.RowsAffected()
}

// ResetInFlight fails runs left in a non-terminal status by a previous
// process.
func (s *Store) ResetInFlight(ctx context.Context) (int64, error) {
	now := time.Now().UTC().Format(time.RFC3339Nano)
	res, err := s.execWithRetry(
		ctx,
		`UPDATE runs
         SET status = ?, error_kind = 'internal', error_message = 'interrupted by restart',
             updated_at = ?, completed_at = ?
         WHERE status IN (?, ?, ?)`,
		StatusFailed,
		now,
		now,
		StatusResolving,
		StatusFetching,
		StatusConverting,
	)
	if err != nil {
		return 0, fmt.Errorf("reset in-flight runs: %w", err)
	}
	return res.RowsAffected()
}
