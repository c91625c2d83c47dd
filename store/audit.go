package store

import (
	"database/sql"
	"fmt"
	"time"

	"github.com/adlio/schema"
	_ "github.com/lib/pq"

	"github.com/Eleven711/ledgersync/crypto"
)

// auditMigrations describes the audit log's one table. adlio/schema
// applies whichever of these haven't run yet, in order, and is safe to
// call every time the daemon starts.
var auditMigrations = []*schema.Migration{
	{
		ID: "2024-01-01-00 create acquisitions",
		Script: `CREATE TABLE IF NOT EXISTS ledger_acquisitions (
			ledger_hash TEXT PRIMARY KEY,
			succeeded   BOOLEAN NOT NULL,
			finished_at TIMESTAMPTZ NOT NULL
		)`,
	},
}

// AuditLog records, in Postgres, the outcome of every ledger acquisition
// this node has ever run to completion — separate from NodeStore, which
// only ever holds the latest content and has no notion of history.
type AuditLog struct {
	db *sql.DB
}

// OpenAuditLog connects to the Postgres instance at dsn and ensures the
// audit table exists.
func OpenAuditLog(dsn string) (*AuditLog, error) {
	db, err := sql.Open("postgres", dsn)
	if err != nil {
		return nil, err
	}
	migrator := schema.NewMigrator()
	if err := migrator.Apply(db, auditMigrations); err != nil {
		db.Close()
		return nil, fmt.Errorf("applying audit log migrations: %w", err)
	}
	return &AuditLog{db: db}, nil
}

// RecordCompletion appends (or overwrites, if this hash finished before)
// the outcome of an acquisition.
func (a *AuditLog) RecordCompletion(hash crypto.Hash, succeeded bool, finishedAt time.Time) error {
	_, err := a.db.Exec(
		`INSERT INTO ledger_acquisitions (ledger_hash, succeeded, finished_at)
		 VALUES ($1, $2, $3)
		 ON CONFLICT (ledger_hash) DO UPDATE SET succeeded = $2, finished_at = $3`,
		hash.String(), succeeded, finishedAt,
	)
	return err
}

// SucceededCount returns how many recorded acquisitions succeeded.
func (a *AuditLog) SucceededCount() (int, error) {
	var count int
	err := a.db.QueryRow(`SELECT count(*) FROM ledger_acquisitions WHERE succeeded`).Scan(&count)
	return count, err
}

// Close releases the underlying connection pool.
func (a *AuditLog) Close() error {
	return a.db.Close()
}
