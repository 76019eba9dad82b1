package http

import (
	"encoding/json"
	"log/slog"
	"net/http"
	"time"
)

// envelope is the uniform response body. Success carries dados, failure
// carries mensagem; the wire vocabulary stays in Portuguese.
type envelope struct {
	Status    string `json:"status"`
	Dados     any    `json:"dados,omitempty"`
	Mensagem  string `json:"mensagem,omitempty"`
	Timestamp string `json:"timestamp"`
}

const (
	statusSucesso = "sucesso"
	statusErro    = "erro"
)

func writeSucesso(w http.ResponseWriter, dados any) {
	writeEnvelope(w, http.StatusOK, envelope{Status: statusSucesso, Dados: dados})
}

func writeErro(w http.ResponseWriter, code int, mensagem string) {
	writeEnvelope(w, code, envelope{Status: statusErro, Mensagem: mensagem})
}

func writeEnvelope(w http.ResponseWriter, code int, env envelope) {
	env.Timestamp = time.Now().Format(time.RFC3339)
	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.WriteHeader(code)
	if err := json.NewEncoder(w).Encode(env); err != nil {
		slog.Error("Failed to encode response envelope", "error", err)
	}
}
