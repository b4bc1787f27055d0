package meterdb

import (
	"github.com/NotCoffee418/teleinfo/pkg/types"
)

// Times are unix seconds. Horodate is nil when the datagram had none.
type MeterDbDatapoint struct {
	Key        string `db:"key"`
	Value      string `db:"value"`
	Horodate   *int64 `db:"horodate"`
	ReceivedAt int64  `db:"received_at"`
}

func NewMeterDbDatapoint(msg *types.DatapointMessage) *MeterDbDatapoint {
	dp := &MeterDbDatapoint{
		Key:        msg.Key,
		Value:      msg.Value,
		ReceivedAt: msg.ReceivedAt.Unix(),
	}
	if msg.Timestamp != nil {
		ts := msg.Timestamp.Unix()
		dp.Horodate = &ts
	}
	return dp
}
