package jobs

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"

	"github.com/hibiken/asynq"

	"github.com/odyssey-erp/supplyops/internal/orders"
	"github.com/odyssey-erp/supplyops/internal/requests"
	"github.com/odyssey-erp/supplyops/internal/stock"

	jobmetrics "github.com/odyssey-erp/supplyops/internal/jobs"
)

// ReadinessSource reads the current state of orders and requests.
type ReadinessSource interface {
	GetRequest(ctx context.Context, id int64) (requests.Request, error)
	GetOrder(ctx context.Context, id int64) (orders.Order, error)
	ListReadyRequests(ctx context.Context) ([]requests.Request, error)
	ListReadyOrders(ctx context.Context) ([]orders.Order, error)
}

// Source adapts the order and request repositories to ReadinessSource.
type Source struct {
	Orders   orders.RepositoryPort
	Requests requests.RepositoryPort
}

func (s Source) GetRequest(ctx context.Context, id int64) (requests.Request, error) {
	return s.Requests.GetRequest(ctx, id)
}

func (s Source) GetOrder(ctx context.Context, id int64) (orders.Order, error) {
	return s.Orders.GetOrder(ctx, id)
}

func (s Source) ListReadyRequests(ctx context.Context) ([]requests.Request, error) {
	return s.Requests.ListReadyToClose(ctx)
}

func (s Source) ListReadyOrders(ctx context.Context) ([]orders.Order, error) {
	return s.Orders.ListReadyToClose(ctx)
}

// WorkflowJobs handles the workflow follow-up tasks.
type WorkflowJobs struct {
	source  ReadinessSource
	logger  *slog.Logger
	metrics *jobmetrics.Metrics
}

// NewWorkflowJobs wires dependencies for the workflow handlers.
func NewWorkflowJobs(source ReadinessSource, logger *slog.Logger, metrics *jobmetrics.Metrics) *WorkflowJobs {
	if logger == nil {
		logger = slog.Default()
	}
	return &WorkflowJobs{source: source, logger: logger, metrics: metrics}
}

// Handlers lists the task handlers to register on a Worker.
func (j *WorkflowJobs) Handlers() []TaskHandler {
	return []TaskHandler{
		{Type: TaskFulfillmentPosted, Handler: j.HandleFulfillmentPosted},
		{Type: TaskReadyToCloseDigest, Handler: j.HandleDigest},
	}
}

// HandleFulfillmentPosted re-reads the request and order touched by a fulfillment
// and reports the ones that are now ready to close. The event flags were computed
// inside the fulfillment transaction; a later close may already have consumed them.
func (j *WorkflowJobs) HandleFulfillmentPosted(ctx context.Context, t *asynq.Task) (err error) {
	var event stock.FulfillmentPostedEvent
	if err := json.Unmarshal(t.Payload(), &event); err != nil {
		return fmt.Errorf("decode fulfillment event: %v: %w", err, asynq.SkipRetry)
	}
	tracker := j.metrics.Track(TaskFulfillmentPosted)
	defer func() { err = tracker.End(err) }()

	logger := j.logger.With(
		slog.Int64("transaction_id", event.TransactionID),
		slog.Int64("request_id", event.RequestID),
		slog.Int64("order_id", event.OrderID),
	)
	if event.RequestReadyToClose {
		req, err := j.source.GetRequest(ctx, event.RequestID)
		if err != nil {
			return fmt.Errorf("load request %d: %w", event.RequestID, err)
		}
		if req.Status == requests.StatusApproved && requests.ReadyToClose(req, req.Items) {
			j.metrics.ObserveReadiness("request")
			logger.Info("request ready to close")
		}
	}
	if event.OrderReadyToClose {
		order, err := j.source.GetOrder(ctx, event.OrderID)
		if err != nil {
			return fmt.Errorf("load order %d: %w", event.OrderID, err)
		}
		if orders.ReadyToClose(order, order.Items) {
			j.metrics.ObserveReadiness("order")
			logger.Info("order ready to close")
		}
	}
	return nil
}

// HandleDigest logs and publishes the number of orders and requests ready to close.
func (j *WorkflowJobs) HandleDigest(ctx context.Context, t *asynq.Task) (err error) {
	if j == nil || j.source == nil {
		return errors.New("ready-to-close digest: handler not configured")
	}
	tracker := j.metrics.Track(TaskReadyToCloseDigest)
	defer func() { err = tracker.End(err) }()

	reqs, err := j.source.ListReadyRequests(ctx)
	if err != nil {
		return fmt.Errorf("list ready requests: %w", err)
	}
	ords, err := j.source.ListReadyOrders(ctx)
	if err != nil {
		return fmt.Errorf("list ready orders: %w", err)
	}
	j.metrics.SetReadyToClose("request", len(reqs))
	j.metrics.SetReadyToClose("order", len(ords))

	ids := make([]int64, 0, len(ords))
	for _, o := range ords {
		ids = append(ids, o.ID)
	}
	j.logger.Info("ready-to-close digest",
		slog.Int("requests", len(reqs)),
		slog.Int("orders", len(ords)),
		slog.Any("order_ids", ids),
	)
	return nil
}
