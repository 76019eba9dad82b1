package sheets

import (
	"context"
	"errors"

	"racha/internal/core"
)

// ErrPartitionMissing reports that a monthly tab does not exist in the store.
// The allocator skips missing partitions; read endpoints surface the error.
var ErrPartitionMissing = errors.New("partition not found")

// ErrSnapshotMissing reports that a partition exists but its balances row
// was never written. Callers fall back to the computed totals.
var ErrSnapshotMissing = errors.New("balances snapshot missing")

// Ports for outbound ledger-store adapters.
type (
	// SentinelReader reports occupancy of a partition's bounded data rows.
	// The slice has one entry per data row (core.PartitionCapacity, in row
	// order); an empty string means the row is free. Occupancy is contiguous
	// from the first data row under normal writes.
	SentinelReader interface {
		ReadSentinels(ctx context.Context, month core.Month) ([]string, error)
	}

	// RecordWriter performs the write phases on rows the allocator picked.
	// row is the absolute grid row of the first record; subsequent records
	// land on consecutive rows.
	RecordWriter interface {
		// WritePending fills date, description and payer with a zero
		// placeholder amount.
		WritePending(ctx context.Context, month core.Month, row int, records []core.PurchaseRecord) error
		// MarkDebtors clears and re-writes the flag columns and sets the
		// per-row debtor count.
		MarkDebtors(ctx context.Context, month core.Month, row int, marks []core.DebtorMarks) error
		// CommitAmounts overwrites the placeholder with the true amounts.
		CommitAmounts(ctx context.Context, month core.Month, row int, amounts []core.Money) error
	}

	// RecordLister returns the occupied rows of one partition in row order.
	RecordLister interface {
		ListRecords(ctx context.Context, month core.Month) ([]core.PurchaseRecord, error)
	}

	// SnapshotReader reads the fixed snapshot rows, one value per roster
	// participant in roster order.
	SnapshotReader interface {
		// ReadBalances reads the balances row of the given partition.
		ReadBalances(ctx context.Context, month core.Month) (map[string]core.Money, error)
		// ReadConsolidated reads the final-totals row of the designated
		// consolidation partition.
		ReadConsolidated(ctx context.Context) (map[string]core.Money, error)
	}

	// PartitionWiper clears a partition's data rows, keeping headers.
	// It returns the number of rows that held data.
	PartitionWiper interface {
		ClearPartition(ctx context.Context, month core.Month) (int, error)
	}
)

// Store bundles every port a full ledger backend provides.
type Store interface {
	SentinelReader
	RecordWriter
	RecordLister
	SnapshotReader
	PartitionWiper
}
