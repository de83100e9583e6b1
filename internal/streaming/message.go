package streaming

import (
	"encoding/json"
	"errors"
	"time"

	"devconsole/internal/domain"
)

type MessageType string

const (
	MessageTypeCommand     MessageType = "command.executed"
	MessageTypeTransaction MessageType = "transaction.updated"
)

// Message is the audit record written to the event topic.
type Message struct {
	Type        MessageType                `json:"type"`
	ProjectID   int64                      `json:"project_id"`
	TraceID     string                     `json:"trace_id,omitempty"`
	OccurredAt  time.Time                  `json:"occurred_at"`
	History     *domain.HistoryEntry       `json:"history,omitempty"`
	Transaction *domain.TransactionRequest `json:"transaction,omitempty"`
}

func Encode(msg Message) ([]byte, error) {
	if err := validate(msg); err != nil {
		return nil, err
	}
	return json.Marshal(msg)
}

func Decode(payload []byte) (Message, error) {
	var msg Message
	if err := json.Unmarshal(payload, &msg); err != nil {
		return Message{}, err
	}
	if err := validate(msg); err != nil {
		return Message{}, err
	}
	return msg, nil
}

func validate(msg Message) error {
	switch msg.Type {
	case MessageTypeCommand:
		if msg.History == nil {
			return errors.New("history payload is missing")
		}
	case MessageTypeTransaction:
		if msg.Transaction == nil {
			return errors.New("transaction payload is missing")
		}
	case "":
		return errors.New("message type is missing")
	default:
		return errors.New("unknown message type " + string(msg.Type))
	}
	if msg.ProjectID == 0 {
		return errors.New("project_id is missing")
	}
	return nil
}
