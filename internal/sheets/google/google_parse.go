package google

import (
	"fmt"

	"racha/internal/core"
)

// A1-notation helpers derived from the grid constants. Columns here never
// pass Z, so single letters suffice.
func colLetter(col int) string {
	return string(rune('A' + col - 1))
}

func sentinelRange(m core.Month) string {
	return fmt.Sprintf("%s!%s%d:%s%d", m.Code(),
		colLetter(core.ColData), core.DataStartRow,
		colLetter(core.ColData), core.DataEndRow)
}

func dataRange(m core.Month) string {
	return fmt.Sprintf("%s!%s%d:%s%d", m.Code(),
		colLetter(core.ColData), core.DataStartRow,
		colLetter(core.ColCount), core.DataEndRow)
}

func fieldsRange(m core.Month, row int) string {
	return fmt.Sprintf("%s!%s%d:%s%d", m.Code(),
		colLetter(core.ColData), row, colLetter(core.ColComprador), row)
}

func flagsRange(m core.Month, row int) string {
	last := core.ColDebtorFirst + len(core.DefaultRoster()) - 1
	return fmt.Sprintf("%s!%s%d:%s%d", m.Code(),
		colLetter(core.ColDebtorFirst), row, colLetter(last), row)
}

func amountRange(m core.Month, row int) string {
	return fmt.Sprintf("%s!%s%d", m.Code(), colLetter(core.ColValor), row)
}

func countRange(m core.Month, row int) string {
	return fmt.Sprintf("%s!%s%d", m.Code(), colLetter(core.ColCount), row)
}

func balancesRange(m core.Month) string {
	last := core.BalancesStartCol + len(core.DefaultRoster()) - 1
	return fmt.Sprintf("%s!%s%d:%s%d", m.Code(),
		colLetter(core.BalancesStartCol), core.BalancesRow,
		colLetter(last), core.BalancesRow)
}

func consolidatedRange() string {
	last := core.ConsolidatedStartCol + len(core.DefaultRoster()) - 1
	return fmt.Sprintf("%s!%s%d:%s%d", core.ConsolidatedMonth.Code(),
		colLetter(core.ConsolidatedStartCol), core.ConsolidatedRow,
		colLetter(last), core.ConsolidatedRow)
}

// countFormula builds the per-row debtor count over the flag block,
// e.g. =COUNTIF(D7:J7,"x") for row 7.
func countFormula(row int) string {
	last := core.ColDebtorFirst + len(core.DefaultRoster()) - 1
	return fmt.Sprintf(`=COUNTIF(%s%d:%s%d,"%s")`,
		colLetter(core.ColDebtorFirst), row, colLetter(last), row, core.FlagSentinel)
}

// parseRow turns one raw grid row into a record. Rows with an empty
// sentinel cell or an unparsable date are skipped; amounts go through the
// lenient parser (this is the trusted recompute boundary, unparsable = 0).
func parseRow(roster core.Roster, cells []string) (core.PurchaseRecord, bool) {
	if len(cells) == 0 || cells[0] == "" {
		return core.PurchaseRecord{}, false
	}
	date, err := core.ParseDate(cells[0])
	if err != nil {
		return core.PurchaseRecord{}, false
	}
	rec := core.PurchaseRecord{Date: date}
	if len(cells) >= core.ColDescricao {
		rec.Description = cells[core.ColDescricao-1]
	}
	if len(cells) >= core.ColComprador {
		rec.Payer = cells[core.ColComprador-1]
	}
	for i, p := range roster {
		idx := core.ColDebtorFirst - 1 + i
		if idx < len(cells) && cells[idx] == core.FlagSentinel {
			rec.Debtors = append(rec.Debtors, p.Code)
		}
	}
	if len(cells) >= core.ColValor {
		rec.Amount = core.Money{Cents: core.ParseCurrencyLenient(cells[core.ColValor-1])}
	}
	return rec, true
}
