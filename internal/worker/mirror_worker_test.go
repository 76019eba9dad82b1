package worker

import (
	"context"
	"errors"
	"testing"
	"time"

	"racha/internal/amqp"
	"racha/internal/core"
	"racha/internal/storage"
)

type fakeJournal struct {
	entries    []storage.BatchEntry
	err        error
	statsCalls []string
}

func (f *fakeJournal) AppendBatch(_ context.Context, entry storage.BatchEntry) error {
	if f.err != nil {
		return f.err
	}
	f.entries = append(f.entries, entry)
	return nil
}

func (f *fakeJournal) RecordsByMonth(_ context.Context, month string) ([]storage.JournalRecord, error) {
	if f.err != nil {
		return nil, f.err
	}
	f.statsCalls = append(f.statsCalls, month)
	var out []storage.JournalRecord
	for _, e := range f.entries {
		if e.Month == month {
			out = append(out, e.Records...)
		}
	}
	return out, nil
}

func (f *fakeJournal) MonthTotalCents(_ context.Context, month string) (int64, error) {
	if f.err != nil {
		return 0, f.err
	}
	var total int64
	for _, e := range f.entries {
		if e.Month == month {
			for _, r := range e.Records {
				total += r.AmountCents
			}
		}
	}
	return total, nil
}

func sampleMessage() *amqp.BatchInsertedMessage {
	jun, _ := core.ParseMonth("JUN")
	return amqp.NewBatchInsertedMessage("lote-1", jun, 4, []core.PurchaseRecord{
		{
			Date:        core.NewDate(2025, 6, 14),
			Description: "Mercado",
			Payer:       "T",
			Debtors:     []string{"E", "J"},
			Amount:      core.Money{Cents: 9000},
		},
	})
}

func TestHandleBatchMessage(t *testing.T) {
	journal := &fakeJournal{}
	w := NewMirrorWorker(journal)

	if err := w.HandleBatchMessage(context.Background(), sampleMessage()); err != nil {
		t.Fatalf("handle: %v", err)
	}
	if len(journal.entries) != 1 {
		t.Fatalf("expected 1 journaled entry, got %d", len(journal.entries))
	}
	entry := journal.entries[0]
	if entry.ID != "lote-1" || entry.Month != "JUN" || entry.Row != 4 {
		t.Fatalf("unexpected entry header: %+v", entry)
	}
	if entry.Records[0].Date != "14/06/2025" || entry.Records[0].AmountCents != 9000 {
		t.Fatalf("unexpected journaled record: %+v", entry.Records[0])
	}
}

func TestHandleBatchMessageDuplicateIsAcked(t *testing.T) {
	journal := &fakeJournal{err: storage.ErrDuplicateBatch}
	w := NewMirrorWorker(journal)
	if err := w.HandleBatchMessage(context.Background(), sampleMessage()); err != nil {
		t.Fatalf("duplicates must not surface as handler errors: %v", err)
	}
}

func TestMonthStatsQueryJournal(t *testing.T) {
	journal := &fakeJournal{}
	w := NewMirrorWorker(journal)
	if err := w.HandleBatchMessage(context.Background(), sampleMessage()); err != nil {
		t.Fatalf("handle: %v", err)
	}

	w.logMonthStats(context.Background(), "JUN")
	if len(journal.statsCalls) != 1 || journal.statsCalls[0] != "JUN" {
		t.Fatalf("expected one stats query for JUN, got %v", journal.statsCalls)
	}
}

func TestStatsLoopStopsOnCancel(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	w := NewMirrorWorker(&fakeJournal{})
	if err := w.StatsLoop(ctx, time.Hour); !errors.Is(err, context.Canceled) {
		t.Fatalf("expected context.Canceled, got %v", err)
	}
}

func TestHandleBatchMessageJournalFailure(t *testing.T) {
	journal := &fakeJournal{err: errors.New("disk full")}
	w := NewMirrorWorker(journal)
	if err := w.HandleBatchMessage(context.Background(), sampleMessage()); err == nil {
		t.Fatal("expected journal failure to propagate for requeue")
	}
}
