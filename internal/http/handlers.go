package http

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"time"

	"racha/internal/codec"
	"racha/internal/core"
	"racha/internal/services"
	"racha/internal/sheets"
)

const maxBodyBytes = 1 << 20

// recordDTO is the wire shape of a stored record.
type recordDTO struct {
	Data      string   `json:"Data"`
	Descricao string   `json:"Descricao"`
	Comprador string   `json:"Comprador"`
	Deve      []string `json:"Deve"`
	Valor     float64  `json:"Valor"`
}

func toDTO(rec core.PurchaseRecord) recordDTO {
	return recordDTO{
		Data:      rec.Date.Format(),
		Descricao: rec.Description,
		Comprador: rec.Payer,
		Deve:      rec.Debtors,
		Valor:     rec.Amount.Reais(),
	}
}

func toDTOs(recs []core.PurchaseRecord) []recordDTO {
	out := make([]recordDTO, len(recs))
	for i, rec := range recs {
		out[i] = toDTO(rec)
	}
	return out
}

func (s *Server) handleAPI(w http.ResponseWriter, r *http.Request) {
	switch r.Method {
	case http.MethodPost:
		s.handleInsert(w, r)
	case http.MethodGet:
		s.handleAction(w, r)
	default:
		w.Header().Set("Allow", "GET, POST")
		writeErro(w, http.StatusMethodNotAllowed, "método não suportado")
	}
}

func (s *Server) handleAction(w http.ResponseWriter, r *http.Request) {
	action := r.URL.Query().Get("action")
	switch action {
	case "getData":
		s.handleGetData(w, r)
	case "getSaldos":
		s.handleGetSaldos(w, r)
	case "getResumo":
		s.handleGetResumo(w, r)
	case "getDataByPeriod":
		s.handleGetDataByPeriod(w, r)
	case "clearData":
		s.handleClearData(w, r)
	case "exportCsv":
		s.handleExportCsv(w, r)
	case "health":
		writeSucesso(w, map[string]string{"servico": "ativo"})
	default:
		writeErro(w, http.StatusBadRequest, fmt.Sprintf("ação desconhecida: %s", action))
	}
}

func (s *Server) handleInsert(w http.ResponseWriter, r *http.Request) {
	body, err := io.ReadAll(http.MaxBytesReader(w, r.Body, maxBodyBytes))
	if err != nil {
		writeErro(w, http.StatusBadRequest, "falha ao ler o corpo da requisição")
		return
	}

	var raws []codec.RawRecord
	if err := json.Unmarshal(body, &raws); err != nil {
		// Single-object bodies are accepted on the lenient read side.
		var one codec.RawRecord
		if err := json.Unmarshal(body, &one); err != nil {
			writeErro(w, http.StatusBadRequest, "JSON inválido: esperado um array de registros")
			return
		}
		raws = []codec.RawRecord{one}
	}

	records, err := codec.NormalizeBatch(s.roster, raws)
	if err != nil {
		writeErro(w, http.StatusBadRequest, err.Error())
		return
	}

	result, err := s.inserter.InsertBatch(r.Context(), s.clock(), records)
	if err != nil {
		s.writeInsertError(w, r, err)
		return
	}

	// The partition changed; cached listings and snapshots are stale.
	s.recordsCache.DeletePrefix("records:" + result.Month.Code())
	s.snapshotCache.DeletePrefix("saldos:" + result.Month.Code())

	writeSucesso(w, map[string]any{
		"linhasInseridas": len(result.Records),
		"mes":             result.Month.Code(),
		"proximaLinha":    result.Row,
		"loteId":          result.BatchID,
		"registros":       toDTOs(result.Records),
	})
}

func (s *Server) writeInsertError(w http.ResponseWriter, r *http.Request, err error) {
	ctx := r.Context()
	var inconsistent *services.InconsistentWriteError
	switch {
	case errors.Is(err, sheets.ErrPartitionMissing):
		writeErro(w, http.StatusNotFound, "aba do mês ativo não encontrada na planilha")
	case errors.Is(err, services.ErrLedgerFull):
		writeErro(w, http.StatusConflict, "todas as abas estão cheias, não há linha disponível")
	case errors.As(err, &inconsistent):
		slog.ErrorContext(ctx, "Batch left in inconsistent state", "error", err)
		writeErro(w, http.StatusInternalServerError, fmt.Sprintf("gravação interrompida: %v", err))
	default:
		slog.ErrorContext(ctx, "Insert failed", "error", err)
		writeErro(w, http.StatusBadRequest, err.Error())
	}
}

func (s *Server) activeRecords(r *http.Request) (core.Month, []core.PurchaseRecord, error) {
	month := core.MonthOf(s.clock())
	key := "records:" + month.Code()
	if recs, ok := s.recordsCache.Get(key); ok {
		return month, recs, nil
	}
	recs, err := s.store.ListRecords(r.Context(), month)
	if err != nil {
		return month, nil, err
	}
	s.recordsCache.Set(key, recs)
	return month, recs, nil
}

func (s *Server) handleGetData(w http.ResponseWriter, r *http.Request) {
	month, recs, err := s.activeRecords(r)
	if err != nil {
		s.writeReadError(w, r, month, err)
		return
	}
	writeSucesso(w, map[string]any{
		"mes":       month.Code(),
		"registros": toDTOs(recs),
	})
}

func (s *Server) handleGetDataByPeriod(w http.ResponseWriter, r *http.Request) {
	ini, err := core.ParseDate(r.URL.Query().Get("dataIni"))
	if err != nil {
		writeErro(w, http.StatusBadRequest, "dataIni inválida: use DD/MM/YYYY")
		return
	}
	fim, err := core.ParseDate(r.URL.Query().Get("dataFim"))
	if err != nil {
		writeErro(w, http.StatusBadRequest, "dataFim inválida: use DD/MM/YYYY")
		return
	}
	// Records are anchored at noon; the window runs from the first second of
	// dataIni to the last second of dataFim.
	start := ini.Add(-12 * time.Hour)
	end := fim.Add(12*time.Hour - time.Second)

	month, recs, err := s.activeRecords(r)
	if err != nil {
		s.writeReadError(w, r, month, err)
		return
	}
	var filtered []core.PurchaseRecord
	for _, rec := range recs {
		if rec.Date.Before(start) || rec.Date.After(end) {
			continue
		}
		filtered = append(filtered, rec)
	}
	writeSucesso(w, map[string]any{
		"mes":       month.Code(),
		"dataIni":   ini.Format(),
		"dataFim":   fim.Format(),
		"registros": toDTOs(filtered),
	})
}

// participantTotals is one row of the saldos response, roster order preserved.
type participantTotals struct {
	Codigo string  `json:"codigo"`
	Nome   string  `json:"nome"`
	Gasto  float64 `json:"gasto"`
	Devido float64 `json:"devido"`
	Saldo  float64 `json:"saldo"`
}

func (s *Server) handleGetSaldos(w http.ResponseWriter, r *http.Request) {
	month, recs, err := s.activeRecords(r)
	if err != nil {
		s.writeReadError(w, r, month, err)
		return
	}
	summary := core.Aggregate(s.roster, recs)

	// The spreadsheet's own balances row takes precedence over the computed
	// balance when it is readable; spent/owed are always recomputed.
	fonte := "calculado"
	balance := summary.Balance
	if snapshot, err := s.readBalancesCached(r, month); err == nil {
		balance = snapshot
		fonte = "planilha"
	} else if !errors.Is(err, sheets.ErrPartitionMissing) && !errors.Is(err, sheets.ErrSnapshotMissing) {
		slog.WarnContext(r.Context(), "Balances snapshot unavailable, using computed totals", "error", err)
	}

	totals := make([]participantTotals, len(s.roster))
	for i, p := range s.roster {
		totals[i] = participantTotals{
			Codigo: p.Code,
			Nome:   p.Name,
			Gasto:  summary.Spent[p.Code].Reais(),
			Devido: summary.Owed[p.Code].Reais(),
			Saldo:  balance[p.Code].Reais(),
		}
	}
	writeSucesso(w, map[string]any{
		"mes":           month.Code(),
		"fonte":         fonte,
		"participantes": totals,
	})
}

func (s *Server) readBalancesCached(r *http.Request, month core.Month) (map[string]core.Money, error) {
	key := "saldos:" + month.Code()
	if snap, ok := s.snapshotCache.Get(key); ok {
		return snap, nil
	}
	snap, err := s.store.ReadBalances(r.Context(), month)
	if err != nil {
		return nil, err
	}
	s.snapshotCache.Set(key, snap)
	return snap, nil
}

func (s *Server) handleGetResumo(w http.ResponseWriter, r *http.Request) {
	key := "resumo:" + core.ConsolidatedMonth.Code()
	snap, ok := s.snapshotCache.Get(key)
	if !ok {
		var err error
		snap, err = s.store.ReadConsolidated(r.Context())
		if err != nil {
			s.writeReadError(w, r, core.ConsolidatedMonth, err)
			return
		}
		s.snapshotCache.Set(key, snap)
	}

	type consolidated struct {
		Codigo string  `json:"codigo"`
		Nome   string  `json:"nome"`
		Valor  float64 `json:"valor"`
	}
	totals := make([]consolidated, len(s.roster))
	for i, p := range s.roster {
		totals[i] = consolidated{Codigo: p.Code, Nome: p.Name, Valor: snap[p.Code].Reais()}
	}
	writeSucesso(w, map[string]any{
		"mes":           core.ConsolidatedMonth.Code(),
		"participantes": totals,
	})
}

func (s *Server) handleClearData(w http.ResponseWriter, r *http.Request) {
	month := core.MonthOf(s.clock())
	cleared, err := s.store.ClearPartition(r.Context(), month)
	if err != nil {
		s.writeReadError(w, r, month, err)
		return
	}
	s.recordsCache.DeletePrefix("records:" + month.Code())
	s.snapshotCache.DeletePrefix("saldos:" + month.Code())
	slog.InfoContext(r.Context(), "Partition cleared", "month", month.Code(), "rows", cleared)
	writeSucesso(w, map[string]any{
		"mes":             month.Code(),
		"linhasRemovidas": cleared,
	})
}

func (s *Server) handleExportCsv(w http.ResponseWriter, r *http.Request) {
	month, recs, err := s.activeRecords(r)
	if err != nil {
		s.writeReadError(w, r, month, err)
		return
	}
	w.Header().Set("Content-Type", "text/csv; charset=utf-8")
	w.Header().Set("Content-Disposition", fmt.Sprintf("attachment; filename=%s.csv", month.Code()))
	_, _ = w.Write([]byte(buildCSV(recs)))
}

func (s *Server) writeReadError(w http.ResponseWriter, r *http.Request, month core.Month, err error) {
	if errors.Is(err, sheets.ErrPartitionMissing) {
		writeErro(w, http.StatusNotFound, fmt.Sprintf("aba %s não encontrada na planilha", month.Code()))
		return
	}
	slog.ErrorContext(r.Context(), "Read failed", "month", month.Code(), "error", err)
	writeErro(w, http.StatusInternalServerError, "falha ao consultar a planilha")
}
