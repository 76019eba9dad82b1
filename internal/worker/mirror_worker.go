// Package worker mirrors committed batches from the message queue into the
// SQLite journal.
package worker

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"racha/internal/amqp"
	"racha/internal/core"
	"racha/internal/storage"
)

// BatchJournal is the slice of the journal the worker needs.
type BatchJournal interface {
	AppendBatch(ctx context.Context, entry storage.BatchEntry) error
	RecordsByMonth(ctx context.Context, month string) ([]storage.JournalRecord, error)
	MonthTotalCents(ctx context.Context, month string) (int64, error)
}

// MirrorWorker journals every batch the API commits to the spreadsheet.
type MirrorWorker struct {
	journal BatchJournal
}

func NewMirrorWorker(journal BatchJournal) *MirrorWorker {
	return &MirrorWorker{journal: journal}
}

// HandleBatchMessage journals one batch. A duplicate batch ID means the
// message was redelivered; it is logged and acked, not retried.
func (w *MirrorWorker) HandleBatchMessage(ctx context.Context, msg *amqp.BatchInsertedMessage) error {
	entry := storage.BatchEntry{
		ID:      msg.BatchID,
		Month:   msg.Month,
		Row:     msg.Row,
		Records: make([]storage.JournalRecord, len(msg.Records)),
	}
	for i, rec := range msg.Records {
		entry.Records[i] = storage.JournalRecord{
			Date:        rec.Data,
			Description: rec.Descricao,
			Payer:       rec.Comprador,
			Debtors:     rec.Deve,
			AmountCents: rec.ValorCents,
		}
	}

	if err := w.journal.AppendBatch(ctx, entry); err != nil {
		if errors.Is(err, storage.ErrDuplicateBatch) {
			slog.WarnContext(ctx, "Batch redelivered, already journaled", "batch_id", msg.BatchID)
			return nil
		}
		return fmt.Errorf("journal batch %s: %w", msg.BatchID, err)
	}
	return nil
}

// StatsLoop logs the journaled record count and running total for the
// current month on every tick. It returns when the context is canceled.
func (w *MirrorWorker) StatsLoop(ctx context.Context, interval time.Duration) error {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case now := <-ticker.C:
			w.logMonthStats(ctx, core.MonthOf(now).Code())
		}
	}
}

func (w *MirrorWorker) logMonthStats(ctx context.Context, month string) {
	records, err := w.journal.RecordsByMonth(ctx, month)
	if err != nil {
		slog.WarnContext(ctx, "Journal stats query failed", "month", month, "error", err)
		return
	}
	total, err := w.journal.MonthTotalCents(ctx, month)
	if err != nil {
		slog.WarnContext(ctx, "Journal total query failed", "month", month, "error", err)
		return
	}
	slog.InfoContext(ctx, "Journal month stats",
		"month", month,
		"records", len(records),
		"total", core.FormatCents(total),
	)
}
