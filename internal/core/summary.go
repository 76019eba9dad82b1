package core

// LedgerSummary holds per-participant totals keyed by roster code.
// Balance is positive for net receivers and negative for net payers.
type LedgerSummary struct {
	Spent   map[string]Money
	Owed    map[string]Money
	Balance map[string]Money
}

// Aggregate folds purchase records into spent/owed/balance totals. Every
// roster participant is present in all three maps, zero-valued when untouched.
// Payers and debtors outside the roster are silently ignored. Cents-integer
// summation makes the result independent of record order; the equal split
// truncates sub-cent residue instead of redistributing it.
func Aggregate(roster Roster, records []PurchaseRecord) LedgerSummary {
	sum := LedgerSummary{
		Spent:   make(map[string]Money, len(roster)),
		Owed:    make(map[string]Money, len(roster)),
		Balance: make(map[string]Money, len(roster)),
	}
	for _, p := range roster {
		sum.Spent[p.Code] = Money{}
		sum.Owed[p.Code] = Money{}
		sum.Balance[p.Code] = Money{}
	}

	for _, rec := range records {
		if roster.Contains(rec.Payer) {
			sum.Spent[rec.Payer] = Money{Cents: sum.Spent[rec.Payer].Cents + rec.Amount.Cents}
		}
		if len(rec.Debtors) == 0 {
			continue
		}
		share := rec.Amount.Cents / int64(len(rec.Debtors))
		for _, d := range rec.Debtors {
			if !roster.Contains(d) {
				continue
			}
			sum.Owed[d] = Money{Cents: sum.Owed[d].Cents + share}
		}
	}

	for _, p := range roster {
		sum.Balance[p.Code] = Money{Cents: sum.Spent[p.Code].Cents - sum.Owed[p.Code].Cents}
	}
	return sum
}
