package journal

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"
)

// ErrRunNotFound is returned when no run has the requested id.
var ErrRunNotFound = errors.New("journal: run not found")

// Run is one harness run.
type Run struct {
	ID         string     `json:"id"`
	Scenario   string     `json:"scenario"`
	Fixture    string     `json:"fixture"`
	StartedAt  time.Time  `json:"started_at"`
	FinishedAt *time.Time `json:"finished_at,omitempty"`

	// Pass is nil while the run is unfinished.
	Pass   *bool  `json:"pass,omitempty"`
	Digest string `json:"digest,omitempty"`
}

// WorkItem is one loop work item executed during a run.
type WorkItem struct {
	RunID     string        `json:"run_id"`
	Seq       int64         `json:"seq"`
	Label     string        `json:"label"`
	Duration  time.Duration `json:"duration_ns"`
	Error     string        `json:"error,omitempty"`
	ErrorCode string        `json:"error_code,omitempty"`
}

const runColumns = `id, scenario, fixture, started_at, finished_at, pass, digest`

// ListRuns returns runs oldest first. A positive limit keeps only the most
// recent limit runs.
func (j *Journal) ListRuns(ctx context.Context, limit int) ([]Run, error) {
	query := `SELECT ` + runColumns + ` FROM runs ORDER BY started_at ASC, id COLLATE BINARY ASC`
	args := []any{}
	if limit > 0 {
		query = `SELECT * FROM (
			SELECT ` + runColumns + ` FROM runs
			ORDER BY started_at DESC, id COLLATE BINARY DESC
			LIMIT ?
		) ORDER BY started_at ASC, id COLLATE BINARY ASC`
		args = append(args, limit)
	}

	rows, err := j.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("query runs: %w", err)
	}
	defer rows.Close()

	runs := []Run{}
	for rows.Next() {
		run, err := scanRun(rows)
		if err != nil {
			return nil, err
		}
		runs = append(runs, run)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate runs: %w", err)
	}
	return runs, nil
}

// ReadRun returns the run with id, or ErrRunNotFound.
func (j *Journal) ReadRun(ctx context.Context, id string) (Run, error) {
	row := j.db.QueryRowContext(ctx, `SELECT `+runColumns+` FROM runs WHERE id = ?`, id)
	run, err := scanRun(row)
	if errors.Is(err, sql.ErrNoRows) {
		return Run{}, fmt.Errorf("%w: %s", ErrRunNotFound, id)
	}
	return run, err
}

// ReadWorkItems returns the work items of a run ordered by seq. Returns an
// empty slice (not nil) for a run with no items.
func (j *Journal) ReadWorkItems(ctx context.Context, runID string) ([]WorkItem, error) {
	rows, err := j.db.QueryContext(ctx, `
		SELECT run_id, seq, label, duration_ns, error, error_code
		FROM work_items
		WHERE run_id = ?
		ORDER BY seq ASC
	`, runID)
	if err != nil {
		return nil, fmt.Errorf("query work items: %w", err)
	}
	defer rows.Close()

	items := []WorkItem{}
	for rows.Next() {
		var (
			it        WorkItem
			durNanos  int64
			errText   sql.NullString
			errorCode sql.NullString
		)
		if err := rows.Scan(&it.RunID, &it.Seq, &it.Label, &durNanos, &errText, &errorCode); err != nil {
			return nil, fmt.Errorf("scan work item: %w", err)
		}
		it.Duration = time.Duration(durNanos)
		it.Error = errText.String
		it.ErrorCode = errorCode.String
		items = append(items, it)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate work items: %w", err)
	}
	return items, nil
}

type scanner interface {
	Scan(dest ...any) error
}

func scanRun(s scanner) (Run, error) {
	var (
		run        Run
		startedAt  string
		finishedAt sql.NullString
		pass       sql.NullBool
		digest     sql.NullString
	)
	if err := s.Scan(&run.ID, &run.Scenario, &run.Fixture, &startedAt, &finishedAt, &pass, &digest); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return Run{}, err
		}
		return Run{}, fmt.Errorf("scan run: %w", err)
	}

	var err error
	if run.StartedAt, err = parseTime(startedAt); err != nil {
		return Run{}, fmt.Errorf("run %s: started_at: %w", run.ID, err)
	}
	if finishedAt.Valid {
		t, err := parseTime(finishedAt.String)
		if err != nil {
			return Run{}, fmt.Errorf("run %s: finished_at: %w", run.ID, err)
		}
		run.FinishedAt = &t
	}
	if pass.Valid {
		p := pass.Bool
		run.Pass = &p
	}
	run.Digest = digest.String
	return run, nil
}
