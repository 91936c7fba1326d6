package journal

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/roach88/affinity/internal/failure"
	"github.com/roach88/affinity/internal/loop"
)

// ErrRunFinished is returned by Finish when the run was already written.
var ErrRunFinished = errors.New("journal: run already finished")

// Recorder collects the work items of one run. It implements
// loop.Observer; attach it to the harness loop with
// harness.WithObserver or harness.WithRunObserver.
//
// WorkFinished is called on the loop goroutine and only appends to memory.
// Nothing reaches the database until Finish.
type Recorder struct {
	j     *Journal
	runID string

	mu       sync.Mutex
	items    []WorkItem
	finished bool
}

var _ loop.Observer = (*Recorder)(nil)

// BeginRun inserts a run row and returns a recorder for it.
func (j *Journal) BeginRun(ctx context.Context, scenario, fixture string) (*Recorder, error) {
	id := j.ids.Generate()
	_, err := j.db.ExecContext(ctx, `
		INSERT INTO runs (id, scenario, fixture, started_at)
		VALUES (?, ?, ?, ?)
	`, id, scenario, fixture, formatTime(j.now()))
	if err != nil {
		return nil, fmt.Errorf("begin run: %w", err)
	}

	j.logger.Debug("journal run started", "run", id, "scenario", scenario)
	return &Recorder{j: j, runID: id}, nil
}

// RunID returns the id of the run being recorded.
func (r *Recorder) RunID() string {
	return r.runID
}

// WorkStarted implements loop.Observer.
func (r *Recorder) WorkStarted(loop.Work) {}

// WorkFinished implements loop.Observer.
func (r *Recorder) WorkFinished(w loop.Work, elapsed time.Duration, err error) {
	item := WorkItem{
		RunID:    r.runID,
		Seq:      w.Seq,
		Label:    w.Label,
		Duration: elapsed,
	}
	if err != nil {
		item.Error = err.Error()
		item.ErrorCode = string(failure.CodeOf(err))
	}

	r.mu.Lock()
	defer r.mu.Unlock()
	if r.finished {
		return
	}
	r.items = append(r.items, item)
}

// Pending returns how many work items are buffered.
func (r *Recorder) Pending() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.items)
}

// Finish writes the buffered work items and the run outcome in one
// transaction. Work items observed afterwards are dropped.
func (r *Recorder) Finish(ctx context.Context, pass bool, digest string) error {
	r.mu.Lock()
	if r.finished {
		r.mu.Unlock()
		return ErrRunFinished
	}
	r.finished = true
	items := r.items
	r.items = nil
	r.mu.Unlock()

	tx, err := r.j.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("finish run: begin tx: %w", err)
	}
	defer tx.Rollback() // no-op once committed

	stmt, err := tx.PrepareContext(ctx, `
		INSERT INTO work_items (run_id, seq, label, duration_ns, error, error_code)
		VALUES (?, ?, ?, ?, ?, ?)
		ON CONFLICT(run_id, seq) DO NOTHING
	`)
	if err != nil {
		return fmt.Errorf("finish run: prepare: %w", err)
	}
	defer stmt.Close()

	for _, it := range items {
		if _, err := stmt.ExecContext(ctx,
			it.RunID, it.Seq, it.Label, it.Duration.Nanoseconds(),
			nullString(it.Error), nullString(it.ErrorCode),
		); err != nil {
			return fmt.Errorf("finish run: insert work item %d: %w", it.Seq, err)
		}
	}

	res, err := tx.ExecContext(ctx, `
		UPDATE runs SET finished_at = ?, pass = ?, digest = ?
		WHERE id = ?
	`, formatTime(r.j.now()), pass, nullString(digest), r.runID)
	if err != nil {
		return fmt.Errorf("finish run: update: %w", err)
	}
	if n, err := res.RowsAffected(); err == nil && n == 0 {
		return fmt.Errorf("finish run %s: %w", r.runID, ErrRunNotFound)
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("finish run: commit: %w", err)
	}

	r.j.logger.Debug("journal run finished", "run", r.runID, "pass", pass, "work_items", len(items))
	return nil
}

func nullString(s string) any {
	if s == "" {
		return nil
	}
	return s
}
