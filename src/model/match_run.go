package model

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/username/lotfolio/src/models"
)

// InsertMatchRun records the outcome of one match run.
func InsertMatchRun(ctx context.Context, q Querier, run *models.MatchRun) error {
	var accountID any
	if run.AccountID != nil {
		accountID = *run.AccountID
	}
	r := run.Result
	_, err := q.ExecContext(ctx, `
	INSERT INTO match_runs (id, account_id, mode, created, processed, options_processed, stocks_processed,
		orphan_options, orphan_stocks, orphaned_closes, deleted, started_at, finished_at)
	VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		run.ID, accountID, string(run.Mode), r.Created, r.Processed, r.OptionsProcessed, r.StocksProcessed,
		r.OrphanOptions, r.OrphanStocks, r.OrphanedCloses, r.Deleted,
		run.StartedAt.UTC().Format(timestampFormat), run.FinishedAt.UTC().Format(timestampFormat))
	if err != nil {
		return fmt.Errorf("insert match run %s: %w", run.ID, err)
	}
	return nil
}

// RecentMatchRuns returns the latest runs, newest first.
func RecentMatchRuns(ctx context.Context, q Querier, limit int) ([]*models.MatchRun, error) {
	rows, err := q.QueryContext(ctx, `
	SELECT id, account_id, mode, created, processed, options_processed, stocks_processed,
		orphan_options, orphan_stocks, orphaned_closes, deleted, started_at, finished_at
	FROM match_runs ORDER BY started_at DESC, rowid DESC LIMIT ?`, limit)
	if err != nil {
		return nil, fmt.Errorf("list match runs: %w", err)
	}
	defer rows.Close()

	var runs []*models.MatchRun
	for rows.Next() {
		var run models.MatchRun
		var accountID sql.NullInt64
		var mode string
		var started, finished sql.NullString
		r := &run.Result
		if err := rows.Scan(&run.ID, &accountID, &mode, &r.Created, &r.Processed, &r.OptionsProcessed,
			&r.StocksProcessed, &r.OrphanOptions, &r.OrphanStocks, &r.OrphanedCloses, &r.Deleted,
			&started, &finished); err != nil {
			return nil, err
		}
		if accountID.Valid {
			id := accountID.Int64
			run.AccountID = &id
		}
		run.Mode = models.MatchMode(mode)
		r.RunID = run.ID
		run.StartedAt = parseTimestamp(started)
		run.FinishedAt = parseTimestamp(finished)
		runs = append(runs, &run)
	}
	return runs, rows.Err()
}
