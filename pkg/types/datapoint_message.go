package types

import (
	"encoding/json"
	"time"

	"github.com/NotCoffee418/teleinfo/pkg/publisher"
)

// DatapointMessage is the JSON form of a published event, shared by the API
// websocket, the MQTT bridge and the collector.
type DatapointMessage struct {
	Event      string     `json:"event"`
	Key        string     `json:"key"`
	Value      string     `json:"value"`
	Timestamp  *time.Time `json:"timestamp,omitempty"`
	ReceivedAt time.Time  `json:"received_at"`
}

func NewDatapointMessage(ev publisher.Event) *DatapointMessage {
	return &DatapointMessage{
		Event:      publisher.EventName(ev.Key),
		Key:        ev.Key,
		Value:      ev.Value,
		Timestamp:  ev.Timestamp,
		ReceivedAt: time.Now(),
	}
}

func (m *DatapointMessage) ToJsonBytes() []byte {
	data, err := json.Marshal(m)
	if err != nil {
		// Only plain fields, cannot fail
		return nil
	}
	return data
}

// Returns nil on invalid input or a message without key
func DatapointMessageFromJsonBytes(data []byte) *DatapointMessage {
	var msg DatapointMessage
	if err := json.Unmarshal(data, &msg); err != nil {
		return nil
	}
	if msg.Key == "" {
		return nil
	}
	return &msg
}
