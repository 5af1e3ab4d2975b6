package queue

import "encoding/json"

const (
	KindRequest  = "request"
	KindReminder = "reminder"

	// MessageVersion is bumped when the payload shape changes.
	MessageVersion = 1
)

// Message asks a worker to deliver the notification for one consent record.
type Message struct {
	RecordID   string `json:"recordId"`
	Kind       string `json:"kind"`
	RequestID  string `json:"requestId,omitempty"`
	EnqueuedAt string `json:"enqueuedAt"`
	Version    int    `json:"version"`
}

// EncodeMessage returns the JSON representation of a message.
func EncodeMessage(msg Message) ([]byte, error) {
	return json.Marshal(msg)
}

// DecodeMessage parses a JSON payload into a Message.
func DecodeMessage(payload []byte) (Message, error) {
	var msg Message
	if err := json.Unmarshal(payload, &msg); err != nil {
		return Message{}, err
	}
	return msg, nil
}
