package amqp

import (
	"encoding/json"
	"time"

	"racha/internal/core"
)

// RecordPayload is the wire form of one committed purchase row. Amounts
// travel as integer cents so the journal never re-parses currency strings.
type RecordPayload struct {
	Data       string   `json:"data"`
	Descricao  string   `json:"descricao"`
	Comprador  string   `json:"comprador"`
	Deve       []string `json:"deve"`
	ValorCents int64    `json:"valorCents"`
}

// BatchInsertedMessage announces a batch committed to the ledger so the
// mirror worker can journal it.
type BatchInsertedMessage struct {
	BatchID   string          `json:"batchId"`
	Month     string          `json:"mes"`
	Row       int             `json:"linha"`
	Records   []RecordPayload `json:"registros"`
	Timestamp time.Time       `json:"timestamp"`
}

// NewBatchInsertedMessage converts committed records into the wire message.
func NewBatchInsertedMessage(batchID string, month core.Month, row int, records []core.PurchaseRecord) *BatchInsertedMessage {
	payloads := make([]RecordPayload, len(records))
	for i, rec := range records {
		payloads[i] = RecordPayload{
			Data:       rec.Date.Format(),
			Descricao:  rec.Description,
			Comprador:  rec.Payer,
			Deve:       rec.Debtors,
			ValorCents: rec.Amount.Cents,
		}
	}
	return &BatchInsertedMessage{
		BatchID:   batchID,
		Month:     month.Code(),
		Row:       row,
		Records:   payloads,
		Timestamp: time.Now(),
	}
}

func (m *BatchInsertedMessage) ToJSON() ([]byte, error) {
	return json.Marshal(m)
}

func BatchInsertedMessageFromJSON(data []byte) (*BatchInsertedMessage, error) {
	var msg BatchInsertedMessage
	if err := json.Unmarshal(data, &msg); err != nil {
		return nil, err
	}
	return &msg, nil
}
