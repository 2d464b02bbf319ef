package stock

import (
	"context"
	"time"
)

// FulfillmentPostedEvent is published once a fulfillment has committed.
type FulfillmentPostedEvent struct {
	TransactionID       int64     `json:"transactionId"`
	RequestID           int64     `json:"requestId"`
	RequestItemID       int64     `json:"requestItemId"`
	OrderID             int64     `json:"orderId"`
	ProductID           int64     `json:"productId"`
	Quantity            int64     `json:"quantity"`
	StaffID             int64     `json:"staffId"`
	RequestReadyToClose bool      `json:"requestReadyToClose"`
	OrderReadyToClose   bool      `json:"orderReadyToClose"`
	PostedAt            time.Time `json:"postedAt"`
}

// Publisher delivers committed fulfillment events to background workers.
type Publisher interface {
	PublishFulfillment(ctx context.Context, event FulfillmentPostedEvent) error
}

// MetricsPort receives fulfillment outcomes.
type MetricsPort interface {
	ObserveFulfillment(outcome string, units int64)
}
