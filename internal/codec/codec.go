// Package codec normalizes the heterogeneous wire shapes of submitted
// purchase items into canonical core.PurchaseRecord values. It is the
// untrusted-input boundary: anything malformed is rejected here with a
// per-item message, before any partition is touched.
package codec

import (
	"encoding/json"
	"fmt"
	"strconv"
	"strings"

	"racha/internal/core"
)

// RawRecord mirrors the client payload. Field names stay in Portuguese on
// the wire.
type RawRecord struct {
	Data      string      `json:"Data"`
	Descricao string      `json:"Descricao"`
	Comprador string      `json:"Comprador"`
	Deve      FlexDebtors `json:"Deve"`
	Valor     FlexAmount  `json:"Valor"`
}

// FlexDebtors accepts a JSON array of strings, a comma-joined string, or a
// run of concatenated uppercase letter codes, and always holds raw tokens.
type FlexDebtors []string

func (d *FlexDebtors) UnmarshalJSON(data []byte) error {
	var list []string
	if err := json.Unmarshal(data, &list); err == nil {
		out := make([]string, 0, len(list))
		for _, v := range list {
			if s := strings.TrimSpace(v); s != "" {
				out = append(out, s)
			}
		}
		*d = out
		return nil
	}
	var s string
	if err := json.Unmarshal(data, &s); err != nil {
		return fmt.Errorf("campo Deve deve ser lista ou texto")
	}
	*d = core.SplitDebtors(s)
	return nil
}

// FlexAmount accepts a JSON number or a currency-formatted string and keeps
// the textual form; parsing to cents happens in Normalize.
type FlexAmount string

func (a *FlexAmount) UnmarshalJSON(data []byte) error {
	var n json.Number
	if err := json.Unmarshal(data, &n); err == nil {
		*a = FlexAmount(n.String())
		return nil
	}
	var s string
	if err := json.Unmarshal(data, &s); err != nil {
		return fmt.Errorf("campo Valor deve ser número ou texto")
	}
	*a = FlexAmount(strings.TrimSpace(s))
	return nil
}

// Normalize converts one raw item into a canonical record. The payer is
// mapped with the same exact-or-first-letter heuristic as debtors; a debtor
// set that collapses to nothing after roster mapping is a hard error.
func Normalize(roster core.Roster, raw RawRecord) (core.PurchaseRecord, error) {
	date, err := core.ParseDate(raw.Data)
	if err != nil {
		return core.PurchaseRecord{}, fmt.Errorf("data inválida %q (use DD/MM/AAAA)", raw.Data)
	}

	desc := strings.TrimSpace(raw.Descricao)
	if desc == "" {
		return core.PurchaseRecord{}, fmt.Errorf("descrição vazia")
	}

	payer := roster.MatchDebtor(raw.Comprador).Code
	if payer == "" {
		return core.PurchaseRecord{}, fmt.Errorf("comprador vazio")
	}

	codes, _ := roster.DecodeDebtors(raw.Deve)
	if len(codes) == 0 {
		return core.PurchaseRecord{}, fmt.Errorf("nenhum devedor reconhecido em %v", []string(raw.Deve))
	}

	// Accept plain numbers as-is; currency-formatted strings go through the
	// strict parser. Missing or malformed amounts are hard errors on the
	// write side.
	amountStr := string(raw.Valor)
	var cents int64
	if f, ferr := strconv.ParseFloat(amountStr, 64); ferr == nil {
		if f < 0 {
			return core.PurchaseRecord{}, fmt.Errorf("valor negativo %q", amountStr)
		}
		cents = int64(f*100.0 + 0.5)
	} else {
		cents, err = core.ParseCurrencyStrict(amountStr)
		if err != nil {
			return core.PurchaseRecord{}, fmt.Errorf("valor inválido %q", amountStr)
		}
	}

	rec := core.PurchaseRecord{
		Date:        date,
		Description: desc,
		Payer:       payer,
		Debtors:     codes,
		Amount:      core.Money{Cents: cents},
	}
	if err := rec.Validate(); err != nil {
		return core.PurchaseRecord{}, err
	}
	return rec, nil
}

// BatchError aggregates per-item validation messages. The whole batch is
// rejected; no partial write occurs.
type BatchError struct {
	Items []string
}

func (e *BatchError) Error() string {
	return strings.Join(e.Items, "; ")
}

// NormalizeBatch validates every item and returns either the full list of
// canonical records or a BatchError listing every offending item.
func NormalizeBatch(roster core.Roster, raws []RawRecord) ([]core.PurchaseRecord, error) {
	if len(raws) == 0 {
		return nil, &BatchError{Items: []string{"o corpo da requisição deve ser um array de objetos não vazio"}}
	}
	records := make([]core.PurchaseRecord, 0, len(raws))
	var bad []string
	for i, raw := range raws {
		rec, err := Normalize(roster, raw)
		if err != nil {
			bad = append(bad, fmt.Sprintf("item %d: %v", i+1, err))
			continue
		}
		records = append(records, rec)
	}
	if len(bad) > 0 {
		return nil, &BatchError{Items: bad}
	}
	return records, nil
}
