package jobs

import (
	"encoding/json"
	"time"

	"github.com/hibiken/asynq"

	"github.com/odyssey-erp/supplyops/internal/stock"
)

const (
	// QueueDefault is the default queue name for background jobs.
	QueueDefault = "default"
	// TaskFulfillmentPosted follows up on a committed fulfillment.
	TaskFulfillmentPosted = "workflow:fulfillment-posted"
	// TaskReadyToCloseDigest summarises orders and requests awaiting close.
	TaskReadyToCloseDigest = "workflow:ready-to-close-digest"
)

// DigestPayload parameterises the ready-to-close digest.
type DigestPayload struct {
	RequestedAt time.Time `json:"requestedAt"`
}

// NewFulfillmentPostedTask wraps a fulfillment event as an Asynq task.
func NewFulfillmentPostedTask(event stock.FulfillmentPostedEvent) (*asynq.Task, error) {
	data, err := json.Marshal(event)
	if err != nil {
		return nil, err
	}
	return asynq.NewTask(TaskFulfillmentPosted, data), nil
}

// NewReadyToCloseDigestTask constructs the digest task.
func NewReadyToCloseDigestTask(at time.Time) (*asynq.Task, error) {
	data, err := json.Marshal(DigestPayload{RequestedAt: at.UTC()})
	if err != nil {
		return nil, err
	}
	return asynq.NewTask(TaskReadyToCloseDigest, data), nil
}
