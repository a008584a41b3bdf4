package models

import (
	"encoding/json"
	"time"
)

type QueueStatus string

const (
	QueueStatusNew        QueueStatus = "New"
	QueueStatusProcessing QueueStatus = "Processing"
	QueueStatusFinished   QueueStatus = "Finished"
)

// EnqueuedRequest is the stored form of a queued outbound request
type EnqueuedRequest struct {
	Id          string          `json:"id" bson:"id"`
	Sequence    uint64          `json:"sequence" bson:"sequence"`
	Command     string          `json:"command" bson:"command"`
	Payload     json.RawMessage `json:"payload" bson:"payload"`
	EnqueuedAt  time.Time       `json:"enqueued_at" bson:"enqueued_at"`
	Status      QueueStatus     `json:"status" bson:"status"`
	Attempts    int             `json:"attempts" bson:"attempts"`
	LastAttempt time.Time       `json:"last_attempt" bson:"last_attempt"`
	LastError   string          `json:"last_error,omitempty" bson:"last_error,omitempty"`
	Abandoned   bool            `json:"abandoned" bson:"abandoned"`
}

func (r *EnqueuedRequest) DataType() string {
	return "enqueued_request"
}
