// Package journal keeps a SQLite log of harness runs.
//
// Each run is one row in runs; every loop work item the run executed is a
// row in work_items, keyed by (run_id, seq). A Recorder is attached to the
// harness loop as an observer, buffers what it sees, and writes the run in
// one transaction when it finishes. The loop never waits on the database.
//
// Tables:
//
//	runs        id, scenario, fixture, started_at, finished_at, pass, digest
//	work_items  run_id, seq, label, duration_ns, error, error_code
//
// Reads are ordered deterministically: runs by started_at then id, work
// items by seq.
package journal
