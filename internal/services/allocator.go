// Package services holds the ledger engine: row allocation across the
// partition ring and the two-phase batch insert.
package services

import (
	"context"
	"errors"
	"strings"

	"racha/internal/core"
	"racha/internal/sheets"
)

// ErrLedgerFull reports that every partition in the ring is either full or
// missing. Fatal for the request; remediation is provisioning a new tab.
var ErrLedgerFull = errors.New("all partitions full, no writable row")

// Allocator finds the next writable row. It only reads; the caller owns the
// write. The scan-then-write sequence is not atomic against concurrent
// allocators (single-writer discipline is assumed, see DESIGN.md).
type Allocator struct {
	store sheets.SentinelReader
}

func NewAllocator(store sheets.SentinelReader) *Allocator {
	return &Allocator{store: store}
}

// Allocate returns the first partition at or after start (in ring order,
// wrapping DEZ to JAN) that has a free data row, and the absolute grid row
// of the lowest free slot. Missing partitions are skipped. The scan is
// bounded: at most 12 partitions of core.PartitionCapacity rows each.
func (a *Allocator) Allocate(ctx context.Context, start core.Month) (core.Month, int, error) {
	month := start
	for i := 0; i < 12; i++ {
		sentinels, err := a.store.ReadSentinels(ctx, month)
		if err != nil {
			if errors.Is(err, sheets.ErrPartitionMissing) {
				month = month.Next()
				continue
			}
			return 0, 0, err
		}
		for idx, cell := range sentinels {
			if strings.TrimSpace(cell) == "" {
				return month, core.DataStartRow + idx, nil
			}
		}
		month = month.Next()
	}
	return 0, 0, ErrLedgerFull
}
