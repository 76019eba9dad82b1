// Package memory implements the ledger store as an in-process grid of
// monthly partitions. It is the default backend and the test double for the
// Google Sheets adapter; a mutex serializes access, so the allocator race
// documented for remote stores cannot occur here.
package memory

import (
	"context"
	"sync"

	"racha/internal/core"
	"racha/internal/sheets"
)

type rowState int

const (
	rowFree rowState = iota
	rowPending
	rowCommitted
)

type row struct {
	state  rowState
	record core.PurchaseRecord
	marks  core.DebtorMarks
}

type partition struct {
	rows [core.PartitionCapacity]row
}

// Store holds the ring of monthly partitions. A nil entry models a tab that
// was never provisioned.
type Store struct {
	mu           sync.Mutex
	roster       core.Roster
	partitions   [12]*partition
	balances     map[core.Month]map[string]core.Money
	consolidated map[string]core.Money
}

var _ sheets.Store = (*Store)(nil)

// New creates a store with the given partitions provisioned. With no
// arguments every month exists.
func New(roster core.Roster, months ...core.Month) *Store {
	s := &Store{
		roster:   roster,
		balances: make(map[core.Month]map[string]core.Money),
	}
	if len(months) == 0 {
		for i := range s.partitions {
			s.partitions[i] = &partition{}
		}
		return s
	}
	for _, m := range months {
		s.partitions[int(m)%12] = &partition{}
	}
	return s
}

func (s *Store) part(m core.Month) (*partition, error) {
	p := s.partitions[int(m)%12]
	if p == nil {
		return nil, sheets.ErrPartitionMissing
	}
	return p, nil
}

// ReadSentinels implements sheets.SentinelReader.
func (s *Store) ReadSentinels(_ context.Context, month core.Month) ([]string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	p, err := s.part(month)
	if err != nil {
		return nil, err
	}
	out := make([]string, core.PartitionCapacity)
	for i, r := range p.rows {
		if r.state != rowFree {
			out[i] = r.record.Date.Format()
		}
	}
	return out, nil
}

// WritePending implements the first phase: record fields with a zero
// placeholder amount.
func (s *Store) WritePending(_ context.Context, month core.Month, rowNum int, records []core.PurchaseRecord) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	p, err := s.part(month)
	if err != nil {
		return err
	}
	for i, rec := range records {
		idx := rowNum - core.DataStartRow + i
		if idx < 0 || idx >= core.PartitionCapacity {
			return sheets.ErrPartitionMissing
		}
		pending := rec
		pending.Amount = core.Money{}
		p.rows[idx] = row{state: rowPending, record: pending}
	}
	return nil
}

// MarkDebtors implements the flag-write phase.
func (s *Store) MarkDebtors(_ context.Context, month core.Month, rowNum int, marks []core.DebtorMarks) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	p, err := s.part(month)
	if err != nil {
		return err
	}
	for i, m := range marks {
		idx := rowNum - core.DataStartRow + i
		if idx < 0 || idx >= core.PartitionCapacity {
			return sheets.ErrPartitionMissing
		}
		p.rows[idx].marks = m
	}
	return nil
}

// CommitAmounts implements the final phase: the true amounts replace the
// placeholders and the rows become immutable.
func (s *Store) CommitAmounts(_ context.Context, month core.Month, rowNum int, amounts []core.Money) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	p, err := s.part(month)
	if err != nil {
		return err
	}
	for i, a := range amounts {
		idx := rowNum - core.DataStartRow + i
		if idx < 0 || idx >= core.PartitionCapacity {
			return sheets.ErrPartitionMissing
		}
		p.rows[idx].record.Amount = a
		p.rows[idx].state = rowCommitted
	}
	return nil
}

// ListRecords implements sheets.RecordLister.
func (s *Store) ListRecords(_ context.Context, month core.Month) ([]core.PurchaseRecord, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	p, err := s.part(month)
	if err != nil {
		return nil, err
	}
	var out []core.PurchaseRecord
	for _, r := range p.rows {
		if r.state == rowFree {
			continue
		}
		out = append(out, r.record)
	}
	return out, nil
}

// ReadBalances implements sheets.SnapshotReader.
func (s *Store) ReadBalances(_ context.Context, month core.Month) (map[string]core.Money, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, err := s.part(month); err != nil {
		return nil, err
	}
	seeded, ok := s.balances[month]
	if !ok {
		return nil, sheets.ErrSnapshotMissing
	}
	out := make(map[string]core.Money, len(s.roster))
	for _, p := range s.roster {
		out[p.Code] = seeded[p.Code]
	}
	return out, nil
}

// ReadConsolidated implements sheets.SnapshotReader.
func (s *Store) ReadConsolidated(_ context.Context) (map[string]core.Money, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, err := s.part(core.ConsolidatedMonth); err != nil {
		return nil, err
	}
	out := make(map[string]core.Money, len(s.roster))
	for _, p := range s.roster {
		out[p.Code] = s.consolidated[p.Code]
	}
	return out, nil
}

// ClearPartition implements sheets.PartitionWiper.
func (s *Store) ClearPartition(_ context.Context, month core.Month) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	p, err := s.part(month)
	if err != nil {
		return 0, err
	}
	cleared := 0
	for i, r := range p.rows {
		if r.state != rowFree {
			cleared++
		}
		p.rows[i] = row{}
	}
	return cleared, nil
}

// SetBalances seeds the balances snapshot row of a partition.
func (s *Store) SetBalances(month core.Month, values map[string]core.Money) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.balances[month] = values
}

// SetConsolidated seeds the consolidated snapshot row.
func (s *Store) SetConsolidated(values map[string]core.Money) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.consolidated = values
}

// Marks reports the flag cells written for a data row; used by tests.
func (s *Store) Marks(month core.Month, rowNum int) (core.DebtorMarks, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	p := s.partitions[int(month)%12]
	if p == nil {
		return core.DebtorMarks{}, false
	}
	idx := rowNum - core.DataStartRow
	if idx < 0 || idx >= core.PartitionCapacity || p.rows[idx].state == rowFree {
		return core.DebtorMarks{}, false
	}
	return p.rows[idx].marks, true
}
