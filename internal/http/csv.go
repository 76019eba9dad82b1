package http

import (
	"strings"

	"racha/internal/core"
)

var csvHeader = []string{"Data", "Descricao", "Comprador", "Deve", "Valor"}

// buildCSV renders records as comma-separated text: header row plus one row
// per record. Values containing commas, quotes or newlines are wrapped in
// quotes with internal quotes doubled.
func buildCSV(records []core.PurchaseRecord) string {
	var b strings.Builder
	b.WriteString(strings.Join(csvHeader, ","))
	b.WriteByte('\n')
	for _, rec := range records {
		fields := []string{
			rec.Date.Format(),
			rec.Description,
			rec.Payer,
			strings.Join(rec.Debtors, ", "),
			core.FormatCents(rec.Amount.Cents),
		}
		for i, f := range fields {
			if i > 0 {
				b.WriteByte(',')
			}
			b.WriteString(escapeCSV(f))
		}
		b.WriteByte('\n')
	}
	return b.String()
}

func escapeCSV(s string) string {
	if !strings.ContainsAny(s, ",\"\n") {
		return s
	}
	return `"` + strings.ReplaceAll(s, `"`, `""`) + `"`
}
