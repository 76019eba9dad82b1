// Package storage keeps a SQLite journal of committed batches. The
// spreadsheet stays the source of truth; the journal exists for audit
// queries and duplicate detection after client retries.
package storage

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strings"

	_ "modernc.org/sqlite"
)

// ErrDuplicateBatch reports a batch ID already journaled. Retried batches
// land under a fresh ID, so a duplicate means the same message was delivered
// twice.
var ErrDuplicateBatch = errors.New("batch already journaled")

// JournalRecord is one mirrored purchase row.
type JournalRecord struct {
	Date        string
	Description string
	Payer       string
	Debtors     []string
	AmountCents int64
}

// BatchEntry is a committed batch as the worker received it.
type BatchEntry struct {
	ID      string
	Month   string
	Row     int
	Records []JournalRecord
}

type Journal struct {
	db *sql.DB
}

func NewJournal(dbPath string) (*Journal, error) {
	if err := os.MkdirAll(filepath.Dir(dbPath), 0755); err != nil {
		return nil, fmt.Errorf("create db directory: %w", err)
	}

	db, err := sql.Open("sqlite", dbPath)
	if err != nil {
		return nil, fmt.Errorf("open sqlite database: %w", err)
	}
	if err := db.Ping(); err != nil {
		db.Close()
		return nil, fmt.Errorf("ping database: %w", err)
	}
	if err := RunMigrations(dbPath); err != nil {
		db.Close()
		return nil, fmt.Errorf("run migrations: %w", err)
	}
	return &Journal{db: db}, nil
}

func (j *Journal) Close() error {
	if j.db != nil {
		return j.db.Close()
	}
	return nil
}

// AppendBatch journals a batch and its records in one transaction.
func (j *Journal) AppendBatch(ctx context.Context, entry BatchEntry) error {
	exists, err := j.BatchExists(ctx, entry.ID)
	if err != nil {
		return err
	}
	if exists {
		return fmt.Errorf("%w: %s", ErrDuplicateBatch, entry.ID)
	}

	tx, err := j.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin transaction: %w", err)
	}
	defer tx.Rollback()

	if _, err := tx.ExecContext(ctx,
		`INSERT INTO batches (id, month, start_row) VALUES (?, ?, ?)`,
		entry.ID, entry.Month, entry.Row,
	); err != nil {
		return fmt.Errorf("insert batch: %w", err)
	}

	for _, rec := range entry.Records {
		if _, err := tx.ExecContext(ctx,
			`INSERT INTO records (batch_id, purchase_date, description, payer, debtors, amount_cents)
			 VALUES (?, ?, ?, ?, ?, ?)`,
			entry.ID, rec.Date, rec.Description, rec.Payer,
			strings.Join(rec.Debtors, ","), rec.AmountCents,
		); err != nil {
			return fmt.Errorf("insert record: %w", err)
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit transaction: %w", err)
	}

	slog.InfoContext(ctx, "Batch journaled",
		"batch_id", entry.ID,
		"month", entry.Month,
		"count", len(entry.Records))
	return nil
}

// BatchExists reports whether a batch ID is already journaled.
func (j *Journal) BatchExists(ctx context.Context, id string) (bool, error) {
	var n int
	err := j.db.QueryRowContext(ctx,
		`SELECT COUNT(1) FROM batches WHERE id = ?`, id).Scan(&n)
	if err != nil {
		return false, fmt.Errorf("query batch: %w", err)
	}
	return n > 0, nil
}

// RecordsByMonth returns the journaled rows for a partition, oldest first.
func (j *Journal) RecordsByMonth(ctx context.Context, month string) ([]JournalRecord, error) {
	rows, err := j.db.QueryContext(ctx,
		`SELECT r.purchase_date, r.description, r.payer, r.debtors, r.amount_cents
		 FROM records r JOIN batches b ON b.id = r.batch_id
		 WHERE b.month = ? ORDER BY r.id`, month)
	if err != nil {
		return nil, fmt.Errorf("query records: %w", err)
	}
	defer rows.Close()

	var out []JournalRecord
	for rows.Next() {
		var rec JournalRecord
		var debtors string
		if err := rows.Scan(&rec.Date, &rec.Description, &rec.Payer, &debtors, &rec.AmountCents); err != nil {
			return nil, fmt.Errorf("scan record: %w", err)
		}
		if debtors != "" {
			rec.Debtors = strings.Split(debtors, ",")
		}
		out = append(out, rec)
	}
	return out, rows.Err()
}

// MonthTotalCents sums the journaled amounts for a partition.
func (j *Journal) MonthTotalCents(ctx context.Context, month string) (int64, error) {
	var total sql.NullInt64
	err := j.db.QueryRowContext(ctx,
		`SELECT SUM(r.amount_cents)
		 FROM records r JOIN batches b ON b.id = r.batch_id
		 WHERE b.month = ?`, month).Scan(&total)
	if err != nil {
		return 0, fmt.Errorf("query month total: %w", err)
	}
	return total.Int64, nil
}
