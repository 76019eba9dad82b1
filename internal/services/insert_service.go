package services

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"

	"racha/internal/core"
	"racha/internal/sheets"
)

// writeState tracks one record through the two-phase commit.
type writeState int

const (
	statePending   writeState = iota // fields written, placeholder amount
	stateMarked                      // debtor flags and count written
	stateCommitted                   // true amount written, row immutable
)

func (s writeState) String() string {
	switch s {
	case statePending:
		return "pending"
	case stateMarked:
		return "marked"
	default:
		return "committed"
	}
}

// InconsistentWriteError reports a batch interrupted between phases: rows
// exist in the partition but some still hold the placeholder amount or lack
// flags. This is detectable, reportable state, never silent data loss.
type InconsistentWriteError struct {
	Month core.Month
	Row   int
	State writeState
	Err   error
}

func (e *InconsistentWriteError) Error() string {
	return fmt.Sprintf("batch left %s at %s row %d: %v", e.State, e.Month.Code(), e.Row, e.Err)
}

func (e *InconsistentWriteError) Unwrap() error { return e.Err }

// BatchNotifier publishes a committed batch for downstream mirroring.
type BatchNotifier interface {
	PublishBatchInserted(ctx context.Context, batchID string, month core.Month, row int, records []core.PurchaseRecord) error
}

// InsertStore is the slice of the ledger store the insert path needs.
type InsertStore interface {
	sheets.SentinelReader
	sheets.RecordWriter
}

// InsertResult echoes what landed where.
type InsertResult struct {
	BatchID string
	Month   core.Month
	Row     int
	Records []core.PurchaseRecord
}

// InsertService runs the allocate-then-write sequence for a normalized
// batch. The reference time for the active partition is injected per call.
type InsertService struct {
	roster    core.Roster
	store     InsertStore
	allocator *Allocator
	notifier  BatchNotifier // optional
}

func NewInsertService(roster core.Roster, store InsertStore, notifier BatchNotifier) *InsertService {
	return &InsertService{
		roster:    roster,
		store:     store,
		allocator: NewAllocator(store),
		notifier:  notifier,
	}
}

// InsertBatch writes the batch contiguously starting at the first free row.
// Phases run strictly in order across the whole batch: placeholders, then
// debtor flags and counts, then true amounts. Once started the sequence runs
// to completion or fails outright; a phase failure surfaces as
// *InconsistentWriteError.
func (s *InsertService) InsertBatch(ctx context.Context, now time.Time, records []core.PurchaseRecord) (InsertResult, error) {
	if len(records) == 0 {
		return InsertResult{}, errors.New("empty batch")
	}
	for i, rec := range records {
		if err := rec.Validate(); err != nil {
			return InsertResult{}, fmt.Errorf("record %d: %w", i+1, err)
		}
	}

	active := core.MonthOf(now)
	// The active tab must exist even if allocation later advances past it.
	if _, err := s.store.ReadSentinels(ctx, active); err != nil {
		return InsertResult{}, err
	}

	month, row, err := s.allocator.Allocate(ctx, active)
	if err != nil {
		return InsertResult{}, err
	}
	if row+len(records)-1 > core.DataEndRow {
		return InsertResult{}, fmt.Errorf("%w: batch of %d does not fit in %s from row %d",
			ErrLedgerFull, len(records), month.Code(), row)
	}

	if err := s.store.WritePending(ctx, month, row, records); err != nil {
		return InsertResult{}, fmt.Errorf("write placeholders at %s row %d: %w", month.Code(), row, err)
	}

	marks := make([]core.DebtorMarks, len(records))
	for i, rec := range records {
		marks[i] = s.roster.MarkDebtors(rec.Debtors)
	}
	if err := s.store.MarkDebtors(ctx, month, row, marks); err != nil {
		return InsertResult{}, &InconsistentWriteError{Month: month, Row: row, State: statePending, Err: err}
	}

	amounts := make([]core.Money, len(records))
	for i, rec := range records {
		amounts[i] = rec.Amount
	}
	if err := s.store.CommitAmounts(ctx, month, row, amounts); err != nil {
		return InsertResult{}, &InconsistentWriteError{Month: month, Row: row, State: stateMarked, Err: err}
	}

	batchID := uuid.NewString()
	slog.InfoContext(ctx, "Batch committed",
		"batch_id", batchID,
		"month", month.Code(),
		"row", row,
		"count", len(records))

	if s.notifier != nil {
		// Mirroring is best-effort; the committed write is already durable.
		if err := s.notifier.PublishBatchInserted(ctx, batchID, month, row, records); err != nil {
			slog.WarnContext(ctx, "Failed to publish batch notification", "error", err, "batch_id", batchID)
		}
	}

	return InsertResult{BatchID: batchID, Month: month, Row: row, Records: records}, nil
}
