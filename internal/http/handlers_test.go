package http

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"racha/internal/core"
	"racha/internal/services"
	"racha/internal/sheets/memory"
)

var fixedNow = time.Date(2025, time.June, 15, 10, 0, 0, 0, time.UTC)

type wireEnvelope struct {
	Status    string          `json:"status"`
	Dados     json.RawMessage `json:"dados"`
	Mensagem  string          `json:"mensagem"`
	Timestamp string          `json:"timestamp"`
}

func newTestServer(t *testing.T, store *memory.Store) *Server {
	t.Helper()
	roster := core.DefaultRoster()
	svc := services.NewInsertService(roster, store, nil)
	s := NewServer(":0", roster, store, svc, 16, time.Minute)
	s.clock = func() time.Time { return fixedNow }
	t.Cleanup(func() { _ = s.Shutdown(context.Background()) })
	return s
}

func do(t *testing.T, s *Server, method, target, body string) *httptest.ResponseRecorder {
	t.Helper()
	var req *http.Request
	if body == "" {
		req = httptest.NewRequest(method, target, nil)
	} else {
		req = httptest.NewRequest(method, target, strings.NewReader(body))
	}
	rec := httptest.NewRecorder()
	s.Server.Handler.ServeHTTP(rec, req)
	return rec
}

func decodeEnvelope(t *testing.T, rec *httptest.ResponseRecorder) wireEnvelope {
	t.Helper()
	var env wireEnvelope
	if err := json.Unmarshal(rec.Body.Bytes(), &env); err != nil {
		t.Fatalf("decode envelope: %v (body %q)", err, rec.Body.String())
	}
	if env.Timestamp == "" {
		t.Fatal("envelope missing timestamp")
	}
	return env
}

func decodeDados(t *testing.T, env wireEnvelope, out any) {
	t.Helper()
	if err := json.Unmarshal(env.Dados, out); err != nil {
		t.Fatalf("decode dados: %v", err)
	}
}

const insertBody = `[
	{"Data":"14/06/2025","Descricao":"Mercado","Comprador":"T","Deve":"EJS","Valor":"R$ 90,00"},
	{"Data":"15/06/2025","Descricao":"Farmácia","Comprador":"Carla","Deve":["C","M"],"Valor":35.5}
]`

func TestInsertBatchEndpoint(t *testing.T) {
	s := newTestServer(t, memory.New(core.DefaultRoster()))

	rec := do(t, s, http.MethodPost, "/api", insertBody)
	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d (%s)", rec.Code, rec.Body.String())
	}
	env := decodeEnvelope(t, rec)
	if env.Status != "sucesso" {
		t.Fatalf("expected sucesso, got %q (%s)", env.Status, env.Mensagem)
	}

	var dados struct {
		LinhasInseridas int         `json:"linhasInseridas"`
		Mes             string      `json:"mes"`
		ProximaLinha    int         `json:"proximaLinha"`
		LoteID          string      `json:"loteId"`
		Registros       []recordDTO `json:"registros"`
	}
	decodeDados(t, env, &dados)
	if dados.LinhasInseridas != 2 || dados.Mes != "JUN" || dados.ProximaLinha != core.DataStartRow {
		t.Fatalf("unexpected dados: %+v", dados)
	}
	if dados.LoteID == "" {
		t.Fatal("expected a batch id")
	}
	if dados.Registros[0].Valor != 90.0 || dados.Registros[1].Valor != 35.5 {
		t.Fatalf("unexpected normalized amounts: %+v", dados.Registros)
	}
	if len(dados.Registros[0].Deve) != 3 {
		t.Fatalf("expected decoded debtors [E J S], got %v", dados.Registros[0].Deve)
	}
}

func TestInsertRejectsMalformedJSON(t *testing.T) {
	s := newTestServer(t, memory.New(core.DefaultRoster()))
	rec := do(t, s, http.MethodPost, "/api", "{not json")
	if rec.Code != http.StatusBadRequest {
		t.Fatalf("expected 400, got %d", rec.Code)
	}
	env := decodeEnvelope(t, rec)
	if env.Status != "erro" || env.Mensagem == "" {
		t.Fatalf("expected erro envelope, got %+v", env)
	}
}

func TestInsertAcceptsSingleObject(t *testing.T) {
	s := newTestServer(t, memory.New(core.DefaultRoster()))
	rec := do(t, s, http.MethodPost, "/api",
		`{"Data":"14/06/2025","Descricao":"Pão","Comprador":"T","Deve":"EJ","Valor":10}`)
	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d (%s)", rec.Code, rec.Body.String())
	}
}

func TestInsertCollectsValidationErrors(t *testing.T) {
	s := newTestServer(t, memory.New(core.DefaultRoster()))
	body := `[
		{"Data":"14/06/2025","Descricao":"OK","Comprador":"T","Deve":"EJ","Valor":10},
		{"Data":"14/06/2025","Descricao":"","Comprador":"T","Deve":"EJ","Valor":10}
	]`
	rec := do(t, s, http.MethodPost, "/api", body)
	if rec.Code != http.StatusBadRequest {
		t.Fatalf("expected 400, got %d", rec.Code)
	}
	env := decodeEnvelope(t, rec)
	if !strings.Contains(env.Mensagem, "item 2") {
		t.Fatalf("expected per-item message, got %q", env.Mensagem)
	}
}

func TestInsertActivePartitionMissing(t *testing.T) {
	jan, _ := core.ParseMonth("JAN")
	s := newTestServer(t, memory.New(core.DefaultRoster(), jan))
	rec := do(t, s, http.MethodPost, "/api", insertBody)
	if rec.Code != http.StatusNotFound {
		t.Fatalf("expected 404, got %d (%s)", rec.Code, rec.Body.String())
	}
}

func TestUnknownAction(t *testing.T) {
	s := newTestServer(t, memory.New(core.DefaultRoster()))
	rec := do(t, s, http.MethodGet, "/api?action=dropTables", "")
	if rec.Code != http.StatusBadRequest {
		t.Fatalf("expected 400, got %d", rec.Code)
	}
	env := decodeEnvelope(t, rec)
	if !strings.Contains(env.Mensagem, "dropTables") {
		t.Fatalf("expected the action echoed, got %q", env.Mensagem)
	}
}

func TestGetDataRoundTrip(t *testing.T) {
	s := newTestServer(t, memory.New(core.DefaultRoster()))
	if rec := do(t, s, http.MethodPost, "/api", insertBody); rec.Code != http.StatusOK {
		t.Fatalf("insert failed: %d", rec.Code)
	}

	rec := do(t, s, http.MethodGet, "/api?action=getData", "")
	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", rec.Code)
	}
	var dados struct {
		Mes       string      `json:"mes"`
		Registros []recordDTO `json:"registros"`
	}
	decodeDados(t, decodeEnvelope(t, rec), &dados)
	if dados.Mes != "JUN" || len(dados.Registros) != 2 {
		t.Fatalf("unexpected dados: %+v", dados)
	}
	// Committed amounts, never the placeholder.
	if dados.Registros[0].Valor != 90.0 {
		t.Fatalf("expected 90.0, got %v", dados.Registros[0].Valor)
	}
	if dados.Registros[0].Data != "14/06/2025" {
		t.Fatalf("expected DD/MM/YYYY date, got %q", dados.Registros[0].Data)
	}
}

func TestGetDataByPeriod(t *testing.T) {
	s := newTestServer(t, memory.New(core.DefaultRoster()))
	if rec := do(t, s, http.MethodPost, "/api", insertBody); rec.Code != http.StatusOK {
		t.Fatalf("insert failed: %d", rec.Code)
	}

	rec := do(t, s, http.MethodGet, "/api?action=getDataByPeriod&dataIni=15/06/2025&dataFim=30/06/2025", "")
	var dados struct {
		Registros []recordDTO `json:"registros"`
	}
	decodeDados(t, decodeEnvelope(t, rec), &dados)
	if len(dados.Registros) != 1 || dados.Registros[0].Descricao != "Farmácia" {
		t.Fatalf("expected only the record on 15/06, got %+v", dados.Registros)
	}

	rec = do(t, s, http.MethodGet, "/api?action=getDataByPeriod&dataIni=14/06/2025&dataFim=15/06/2025", "")
	decodeDados(t, decodeEnvelope(t, rec), &dados)
	if len(dados.Registros) != 2 {
		t.Fatalf("bounds are inclusive, expected 2 records, got %d", len(dados.Registros))
	}

	rec = do(t, s, http.MethodGet, "/api?action=getDataByPeriod&dataIni=bogus&dataFim=15/06/2025", "")
	if rec.Code != http.StatusBadRequest {
		t.Fatalf("expected 400 for a bad bound, got %d", rec.Code)
	}
}

func TestGetSaldos(t *testing.T) {
	store := memory.New(core.DefaultRoster())
	s := newTestServer(t, store)
	if rec := do(t, s, http.MethodPost, "/api",
		`[{"Data":"14/06/2025","Descricao":"Jantar","Comprador":"T","Deve":"EJ","Valor":100}]`,
	); rec.Code != http.StatusOK {
		t.Fatalf("insert failed: %d", rec.Code)
	}
	jun, _ := core.ParseMonth("JUN")
	store.SetBalances(jun, map[string]core.Money{"T": {Cents: 10000}, "E": {Cents: -5000}, "J": {Cents: -5000}})

	rec := do(t, s, http.MethodGet, "/api?action=getSaldos", "")
	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d (%s)", rec.Code, rec.Body.String())
	}
	var dados struct {
		Mes           string              `json:"mes"`
		Fonte         string              `json:"fonte"`
		Participantes []participantTotals `json:"participantes"`
	}
	decodeDados(t, decodeEnvelope(t, rec), &dados)
	if dados.Fonte != "planilha" {
		t.Fatalf("expected snapshot precedence, got fonte %q", dados.Fonte)
	}
	if len(dados.Participantes) != 7 {
		t.Fatalf("expected the full roster, got %d entries", len(dados.Participantes))
	}
	byCode := make(map[string]participantTotals)
	for _, p := range dados.Participantes {
		byCode[p.Codigo] = p
	}
	if byCode["T"].Gasto != 100.0 || byCode["T"].Saldo != 100.0 {
		t.Fatalf("unexpected totals for T: %+v", byCode["T"])
	}
	if byCode["E"].Devido != 50.0 || byCode["E"].Saldo != -50.0 {
		t.Fatalf("unexpected totals for E: %+v", byCode["E"])
	}
	if byCode["S"].Gasto != 0 || byCode["S"].Devido != 0 {
		t.Fatalf("untouched participants must be zero, got %+v", byCode["S"])
	}
}

func TestGetSaldosComputedFallback(t *testing.T) {
	store := memory.New(core.DefaultRoster())
	s := newTestServer(t, store)
	if rec := do(t, s, http.MethodPost, "/api",
		`[{"Data":"14/06/2025","Descricao":"Jantar","Comprador":"T","Deve":"EJ","Valor":100}]`,
	); rec.Code != http.StatusOK {
		t.Fatalf("insert failed: %d", rec.Code)
	}

	// No balances row was ever written, so the computed totals must show
	// through instead of an all-zeros snapshot.
	rec := do(t, s, http.MethodGet, "/api?action=getSaldos", "")
	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d (%s)", rec.Code, rec.Body.String())
	}
	var dados struct {
		Fonte         string              `json:"fonte"`
		Participantes []participantTotals `json:"participantes"`
	}
	decodeDados(t, decodeEnvelope(t, rec), &dados)
	if dados.Fonte != "calculado" {
		t.Fatalf("expected computed fallback, got fonte %q", dados.Fonte)
	}
	byCode := make(map[string]participantTotals)
	for _, p := range dados.Participantes {
		byCode[p.Codigo] = p
	}
	if byCode["T"].Saldo != 100.0 {
		t.Fatalf("expected computed saldo 100 for T, got %+v", byCode["T"])
	}
	if byCode["E"].Saldo != -50.0 || byCode["J"].Saldo != -50.0 {
		t.Fatalf("expected computed saldo -50 for debtors, got E=%+v J=%+v", byCode["E"], byCode["J"])
	}
}

func TestGetResumo(t *testing.T) {
	store := memory.New(core.DefaultRoster())
	store.SetConsolidated(map[string]core.Money{"T": {Cents: 123456}})
	s := newTestServer(t, store)

	rec := do(t, s, http.MethodGet, "/api?action=getResumo", "")
	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", rec.Code)
	}
	var dados struct {
		Mes           string `json:"mes"`
		Participantes []struct {
			Codigo string  `json:"codigo"`
			Valor  float64 `json:"valor"`
		} `json:"participantes"`
	}
	decodeDados(t, decodeEnvelope(t, rec), &dados)
	if dados.Mes != "DEZ" {
		t.Fatalf("consolidated snapshot lives in DEZ, got %q", dados.Mes)
	}
	if dados.Participantes[0].Codigo != "T" || dados.Participantes[0].Valor != 1234.56 {
		t.Fatalf("unexpected consolidated totals: %+v", dados.Participantes[0])
	}
}

func TestClearData(t *testing.T) {
	s := newTestServer(t, memory.New(core.DefaultRoster()))
	if rec := do(t, s, http.MethodPost, "/api", insertBody); rec.Code != http.StatusOK {
		t.Fatalf("insert failed: %d", rec.Code)
	}

	rec := do(t, s, http.MethodGet, "/api?action=clearData", "")
	var dados struct {
		LinhasRemovidas int `json:"linhasRemovidas"`
	}
	decodeDados(t, decodeEnvelope(t, rec), &dados)
	if dados.LinhasRemovidas != 2 {
		t.Fatalf("expected 2 rows cleared, got %d", dados.LinhasRemovidas)
	}

	// The listing cache must not serve the wiped rows.
	rec = do(t, s, http.MethodGet, "/api?action=getData", "")
	var after struct {
		Registros []recordDTO `json:"registros"`
	}
	decodeDados(t, decodeEnvelope(t, rec), &after)
	if len(after.Registros) != 0 {
		t.Fatalf("expected empty partition after clear, got %d records", len(after.Registros))
	}
}

func TestExportCsvEscaping(t *testing.T) {
	s := newTestServer(t, memory.New(core.DefaultRoster()))
	body := `[{"Data":"14/06/2025","Descricao":"Pão, leite e \"café\"","Comprador":"T","Deve":"EJ","Valor":12.5}]`
	if rec := do(t, s, http.MethodPost, "/api", body); rec.Code != http.StatusOK {
		t.Fatalf("insert failed: %d", rec.Code)
	}

	rec := do(t, s, http.MethodGet, "/api?action=exportCsv", "")
	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", rec.Code)
	}
	if ct := rec.Header().Get("Content-Type"); !strings.HasPrefix(ct, "text/csv") {
		t.Fatalf("expected text/csv, got %q", ct)
	}
	lines := strings.Split(strings.TrimSpace(rec.Body.String()), "\n")
	if lines[0] != "Data,Descricao,Comprador,Deve,Valor" {
		t.Fatalf("unexpected header: %q", lines[0])
	}
	if len(lines) != 2 {
		t.Fatalf("expected header + 1 row, got %d lines", len(lines))
	}
	if !strings.Contains(lines[1], `"Pão, leite e ""café"""`) {
		t.Fatalf("description not escaped: %q", lines[1])
	}
}

func TestHealthAction(t *testing.T) {
	s := newTestServer(t, memory.New(core.DefaultRoster()))
	rec := do(t, s, http.MethodGet, "/api?action=health", "")
	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", rec.Code)
	}
	if env := decodeEnvelope(t, rec); env.Status != "sucesso" {
		t.Fatalf("health must always succeed, got %q", env.Status)
	}
}

func TestProbes(t *testing.T) {
	s := newTestServer(t, memory.New(core.DefaultRoster()))
	if rec := do(t, s, http.MethodGet, "/healthz", ""); rec.Code != http.StatusOK {
		t.Fatalf("healthz: expected 200, got %d", rec.Code)
	}
	if rec := do(t, s, http.MethodGet, "/readyz", ""); rec.Code != http.StatusOK {
		t.Fatalf("readyz: expected 200, got %d", rec.Code)
	}

	jan, _ := core.ParseMonth("JAN")
	broken := newTestServer(t, memory.New(core.DefaultRoster(), jan))
	if rec := do(t, broken, http.MethodGet, "/readyz", ""); rec.Code != http.StatusServiceUnavailable {
		t.Fatalf("readyz without the active partition: expected 503, got %d", rec.Code)
	}
}

func TestMethodNotAllowed(t *testing.T) {
	s := newTestServer(t, memory.New(core.DefaultRoster()))
	rec := do(t, s, http.MethodDelete, "/api", "")
	if rec.Code != http.StatusMethodNotAllowed {
		t.Fatalf("expected 405, got %d", rec.Code)
	}
}
