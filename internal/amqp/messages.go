package amqp

import (
	"encoding/json"
	"time"
)

// ReceiptSavedMessage tells the export worker that a receipt was saved
// or updated. It carries only the ID, the worker fetches the full
// receipt from the database.
type ReceiptSavedMessage struct {
	ID        int64     `json:"id"`
	Timestamp time.Time `json:"timestamp"`
}

func NewReceiptSavedMessage(id int64) *ReceiptSavedMessage {
	return &ReceiptSavedMessage{
		ID:        id,
		Timestamp: time.Now(),
	}
}

func (m *ReceiptSavedMessage) ToJSON() ([]byte, error) {
	return json.Marshal(m)
}

func ReceiptSavedMessageFromJSON(data []byte) (*ReceiptSavedMessage, error) {
	var msg ReceiptSavedMessage
	if err := json.Unmarshal(data, &msg); err != nil {
		return nil, err
	}
	return &msg, nil
}
