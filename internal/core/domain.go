package core

import (
	"errors"
	"fmt"
	"strings"
	"time"
)

// Participant is one member of the fixed roster, identified by a
// single-letter code. Roster order defines the debtor flag column layout.
type Participant struct {
	Code string
	Name string
}

type Roster []Participant

// DefaultRoster returns the seven participants in grid order.
// The roster is immutable and defined at process start.
func DefaultRoster() Roster {
	return Roster{
		{Code: "T", Name: "Tauchen"},
		{Code: "E", Name: "Emanuel"},
		{Code: "C", Name: "Carla"},
		{Code: "M", Name: "Marina"},
		{Code: "V", Name: "Vitor"},
		{Code: "J", Name: "Julia"},
		{Code: "S", Name: "Sandro"},
	}
}

// Codes returns the roster codes in grid order.
func (r Roster) Codes() []string {
	out := make([]string, len(r))
	for i, p := range r {
		out[i] = p.Code
	}
	return out
}

// Contains reports whether code is a roster code.
func (r Roster) Contains(code string) bool {
	return r.Index(code) >= 0
}

// Index returns the position of code in the roster, or -1.
func (r Roster) Index(code string) int {
	for i, p := range r {
		if p.Code == code {
			return i
		}
	}
	return -1
}

// Month is a 0-based index into the ring of twelve monthly partitions.
type Month int

var monthCodes = [12]string{"JAN", "FEV", "MAR", "ABR", "MAI", "JUN", "JUL", "AGO", "SET", "OUT", "NOV", "DEZ"}

var ErrUnknownMonth = errors.New("unknown month code")

// MonthOf returns the partition for the calendar month of t. Callers thread
// the reference time in so the active-partition choice stays a pure function
// of it.
func MonthOf(t time.Time) Month {
	return Month(int(t.Month()) - 1)
}

// ParseMonth resolves a 3-letter tab code (case-insensitive) to a Month.
func ParseMonth(code string) (Month, error) {
	c := strings.ToUpper(strings.TrimSpace(code))
	for i, mc := range monthCodes {
		if mc == c {
			return Month(i), nil
		}
	}
	return 0, fmt.Errorf("%w: %q", ErrUnknownMonth, code)
}

// Code returns the 3-letter tab name for the partition.
func (m Month) Code() string {
	return monthCodes[((int(m)%12)+12)%12]
}

// Next returns the partition immediately after m in ring order,
// wrapping DEZ back to JAN.
func (m Month) Next() Month {
	return Month((int(m) + 1) % 12)
}

// ConsolidatedMonth is the partition whose fixed row holds the
// consolidated snapshot.
const ConsolidatedMonth = Month(11) // DEZ

// Grid layout: one tab per month, a fixed header row, a bounded data-row
// range, flag columns between Comprador and Valor in roster order.
const (
	HeaderRow    = 1
	DataStartRow = 4
	DataEndRow   = 28

	// PartitionCapacity is the number of usable data rows per monthly tab.
	PartitionCapacity = DataEndRow - DataStartRow + 1

	ColData        = 1 // occupancy sentinel: empty date cell = next writable row
	ColDescricao   = 2
	ColComprador   = 3
	ColDebtorFirst = 4 // seven flag columns follow, one per roster participant
	ColValor       = 11
	ColCount       = 12 // per-row debtor count

	BalancesRow      = 61
	BalancesStartCol = 14

	ConsolidatedRow      = 50
	ConsolidatedStartCol = 13
)

// FlagSentinel marks a debtor column as owing on a row.
const FlagSentinel = "x"

// Date is a calendar day anchored at noon UTC so that timezone conversion
// can never roll it to an adjacent day.
type Date struct {
	time.Time
}

var (
	ErrInvalidDate   = errors.New("invalid date")
	ErrInvalidDay    = errors.New("invalid day")
	ErrInvalidMonth  = errors.New("invalid month")
	ErrInvalidAmount = errors.New("invalid amount")
)

// NewDate builds a noon-anchored Date from calendar parts.
func NewDate(year, month, day int) Date {
	return Date{Time: time.Date(year, time.Month(month), day, 12, 0, 0, 0, time.UTC)}
}

// ParseDate parses "DD/MM/YYYY". Day and month ranges are checked here as a
// defensive boundary even though the form pre-validates them.
func ParseDate(s string) (Date, error) {
	parts := strings.Split(strings.TrimSpace(s), "/")
	if len(parts) != 3 || len(parts[2]) != 4 {
		return Date{}, fmt.Errorf("%w: %q", ErrInvalidDate, s)
	}
	day, err := atoiStrict(parts[0])
	if err != nil {
		return Date{}, fmt.Errorf("%w: %q", ErrInvalidDate, s)
	}
	month, err := atoiStrict(parts[1])
	if err != nil {
		return Date{}, fmt.Errorf("%w: %q", ErrInvalidDate, s)
	}
	year, err := atoiStrict(parts[2])
	if err != nil {
		return Date{}, fmt.Errorf("%w: %q", ErrInvalidDate, s)
	}
	if day < 1 || day > 31 {
		return Date{}, fmt.Errorf("%w: %d", ErrInvalidDay, day)
	}
	if month < 1 || month > 12 {
		return Date{}, fmt.Errorf("%w: %d", ErrInvalidMonth, month)
	}
	return NewDate(year, month, day), nil
}

func atoiStrict(s string) (int, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return 0, errors.New("empty number")
	}
	n := 0
	for _, r := range s {
		if r < '0' || r > '9' {
			return 0, fmt.Errorf("non-digit %q", r)
		}
		n = n*10 + int(r-'0')
	}
	return n, nil
}

// Format renders the wire format "DD/MM/YYYY".
func (d Date) Format() string {
	return d.Time.Format("02/01/2006")
}

// Money is a currency value in integer cents. Summing cents keeps
// aggregation exact and independent of record order.
type Money struct {
	Cents int64
}

func (m Money) Validate() error {
	if m.Cents < 0 {
		return ErrInvalidAmount
	}
	return nil
}

// PurchaseRecord is a normalized shared purchase. Debtors are deduplicated
// roster codes; the payer need not be among them. Records are written in two
// phases (placeholder amount, then the true amount) and never mutated after
// the second phase.
type PurchaseRecord struct {
	Date        Date
	Description string
	Payer       string
	Debtors     []string
	Amount      Money
}

var (
	ErrEmptyDescription = errors.New("empty description")
	ErrEmptyPayer       = errors.New("empty payer")
	ErrEmptyDebtors     = errors.New("empty debtor set")
)

func (r PurchaseRecord) Validate() error {
	if r.Date.IsZero() {
		return ErrInvalidDate
	}
	if strings.TrimSpace(r.Description) == "" {
		return ErrEmptyDescription
	}
	if strings.TrimSpace(r.Payer) == "" {
		return ErrEmptyPayer
	}
	if len(r.Debtors) == 0 {
		return ErrEmptyDebtors
	}
	return r.Amount.Validate()
}
