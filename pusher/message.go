package pusher

import (
	"evcp/internal"
	"time"
)

type Event string

const (
	Registration       Event = "registration"
	StatusNotification Event = "status_notification"
	TransactionStart   Event = "transaction_start"
	TransactionStop    Event = "transaction_stop"
)

// Message is the payload published to the channel of a charge point
type Message struct {
	ChargePointId string    `json:"charge_point_id"`
	ConnectorId   int       `json:"connector_id"`
	Time          time.Time `json:"time"`
	IdTag         string    `json:"id_tag,omitempty"`
	TransactionId int       `json:"transaction_id,omitempty"`
	Status        string    `json:"status,omitempty"`
	Info          string    `json:"info,omitempty"`
}

func newMessage(event *internal.EventMessage) Message {
	return Message{
		ChargePointId: event.ChargePointId,
		ConnectorId:   event.ConnectorId,
		Time:          event.Time,
		IdTag:         event.IdTag,
		TransactionId: event.TransactionId,
		Status:        event.Status,
		Info:          event.Info,
	}
}

// ChannelName the channel events of a charge point are published on
func ChannelName(prefix, chargePointId string) string {
	if prefix == "" {
		return chargePointId
	}
	return prefix + "-" + chargePointId
}
