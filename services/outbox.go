package services

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/kendall-kelly/production-planner-api/models"
	"github.com/sirupsen/logrus"
	"gorm.io/gorm"
)

// OutboxHandler runs the side effect attached to an event type. Handlers must
// be safe to run more than once for the same event.
type OutboxHandler func(ctx context.Context, event *models.OutboxEvent) error

// Outbox records events inside business transactions and handles them after
// commit. Every handled event is also published to the sink.
type Outbox struct {
	db          *gorm.DB
	sink        EventSink
	logger      *logrus.Logger
	handlers    map[string]OutboxHandler
	WorkerID    string
	BatchSize   int
	Interval    time.Duration
	LockTTL     time.Duration
	MaxAttempts int
	BaseBackoff time.Duration
	now         func() time.Time
}

func NewOutbox(db *gorm.DB, sink EventSink, logger *logrus.Logger) *Outbox {
	return &Outbox{
		db:          db,
		sink:        sink,
		logger:      logger,
		handlers:    make(map[string]OutboxHandler),
		WorkerID:    "outbox-" + uuid.NewString()[:8],
		BatchSize:   50,
		Interval:    5 * time.Second,
		LockTTL:     time.Minute,
		MaxAttempts: 5,
		BaseBackoff: 2 * time.Second,
		now:         time.Now,
	}
}

// Handle registers the handler for an event type
func (o *Outbox) Handle(eventType string, handler OutboxHandler) {
	o.handlers[eventType] = handler
}

// Enqueue writes an event using tx so it commits or rolls back with the change
func (o *Outbox) Enqueue(tx *gorm.DB, companyID uint, eventType, aggregateType string, aggregateID uint, payload any) (*models.OutboxEvent, error) {
	data, err := json.Marshal(payload)
	if err != nil {
		return nil, fmt.Errorf("failed to encode %s payload: %w", eventType, err)
	}

	event := &models.OutboxEvent{
		CompanyID:     companyID,
		EventType:     eventType,
		AggregateType: aggregateType,
		AggregateID:   aggregateID,
		Payload:       data,
		Status:        models.OutboxStatusPending,
		CorrelationID: uuid.NewString(),
	}
	if err := tx.Create(event).Error; err != nil {
		return nil, fmt.Errorf("failed to write outbox event: %w", err)
	}
	return event, nil
}

// Dispatch handles one event now. It returns nil without doing anything when
// another worker holds the event or it has already been handled.
func (o *Outbox) Dispatch(ctx context.Context, event *models.OutboxEvent) error {
	claimed, err := o.claim(ctx, event)
	if err != nil || !claimed {
		return err
	}

	handleErr := o.handle(ctx, event)
	if err := o.finish(ctx, event, handleErr); err != nil {
		return err
	}
	return handleErr
}

// ProcessDue dispatches pending and retryable events, oldest first
func (o *Outbox) ProcessDue(ctx context.Context, limit int) (int, error) {
	now := o.now()
	var events []models.OutboxEvent
	err := o.db.WithContext(ctx).
		Where("(status IN ? AND (next_attempt_at IS NULL OR next_attempt_at <= ?)) OR (status = ? AND updated_at < ?)",
			[]string{models.OutboxStatusPending, models.OutboxStatusFailed}, now,
			models.OutboxStatusProcessing, now.Add(-o.LockTTL)).
		Order("id ASC").
		Limit(limit).
		Find(&events).Error
	if err != nil {
		return 0, fmt.Errorf("failed to load due outbox events: %w", err)
	}

	handled := 0
	for i := range events {
		if err := o.Dispatch(ctx, &events[i]); err != nil {
			o.logger.WithError(err).WithFields(logrus.Fields{
				"outbox_id":  events[i].ID,
				"event_type": events[i].EventType,
			}).Warn("outbox event failed")
			continue
		}
		handled++
	}
	return handled, nil
}

// Run polls for due events until ctx is cancelled
func (o *Outbox) Run(ctx context.Context) {
	o.logger.WithField("worker_id", o.WorkerID).Info("outbox worker started")
	for {
		if _, err := o.ProcessDue(ctx, o.BatchSize); err != nil {
			o.logger.WithError(err).Error("outbox poll failed")
		}
		select {
		case <-ctx.Done():
			o.logger.WithField("worker_id", o.WorkerID).Info("outbox worker stopped")
			return
		case <-time.After(o.Interval):
		}
	}
}

func (o *Outbox) claim(ctx context.Context, event *models.OutboxEvent) (bool, error) {
	now := o.now()
	res := o.db.WithContext(ctx).Model(&models.OutboxEvent{}).
		Where("id = ? AND (status IN ? OR (status = ? AND updated_at < ?))",
			event.ID,
			[]string{models.OutboxStatusPending, models.OutboxStatusFailed},
			models.OutboxStatusProcessing, now.Add(-o.LockTTL)).
		Updates(map[string]interface{}{
			"status":     models.OutboxStatusProcessing,
			"locked_by":  o.WorkerID,
			"attempts":   gorm.Expr("attempts + 1"),
			"updated_at": now,
		})
	if res.Error != nil {
		return false, fmt.Errorf("failed to claim outbox event %d: %w", event.ID, res.Error)
	}
	if res.RowsAffected == 0 {
		return false, nil
	}
	event.Attempts++
	event.Status = models.OutboxStatusProcessing
	return true, nil
}

func (o *Outbox) handle(ctx context.Context, event *models.OutboxEvent) error {
	if handler, ok := o.handlers[event.EventType]; ok {
		if err := handler(ctx, event); err != nil {
			return err
		}
	}

	domainEvent := DomainEvent{
		ID:            event.CorrelationID,
		Type:          event.EventType,
		CompanyID:     event.CompanyID,
		AggregateType: event.AggregateType,
		AggregateID:   event.AggregateID,
		OccurredAt:    event.CreatedAt.UTC(),
		Payload:       json.RawMessage(event.Payload),
	}
	if err := o.sink.Publish(ctx, domainEvent); err != nil {
		return fmt.Errorf("failed to publish event: %w", err)
	}
	return nil
}

func (o *Outbox) finish(ctx context.Context, event *models.OutboxEvent, handleErr error) error {
	now := o.now()
	updates := map[string]interface{}{
		"locked_by":  nil,
		"updated_at": now,
	}

	if handleErr == nil {
		updates["status"] = models.OutboxStatusSucceeded
		updates["processed_at"] = now
		updates["last_error"] = nil
		updates["next_attempt_at"] = nil
	} else {
		msg := handleErr.Error()
		updates["last_error"] = msg
		if event.Attempts >= o.MaxAttempts {
			updates["status"] = models.OutboxStatusDead
			updates["next_attempt_at"] = nil
		} else {
			updates["status"] = models.OutboxStatusFailed
			updates["next_attempt_at"] = now.Add(o.backoff(event.Attempts))
		}
	}

	err := o.db.WithContext(ctx).Model(&models.OutboxEvent{}).Where("id = ?", event.ID).Updates(updates).Error
	if err != nil {
		return fmt.Errorf("failed to record outbox result for %d: %w", event.ID, errors.Join(err, handleErr))
	}
	if status, ok := updates["status"].(string); ok {
		event.Status = status
	}
	return nil
}

func (o *Outbox) backoff(attempts int) time.Duration {
	if attempts < 1 {
		attempts = 1
	}
	d := o.BaseBackoff << (attempts - 1)
	if d > 10*time.Minute {
		d = 10 * time.Minute
	}
	return d
}

// DispatchAfterCommit dispatches a freshly committed event, logging failures
// instead of returning them; the worker retries what is left behind.
func (o *Outbox) DispatchAfterCommit(ctx context.Context, event *models.OutboxEvent) {
	if event == nil {
		return
	}
	if err := o.Dispatch(context.WithoutCancel(ctx), event); err != nil {
		o.logger.WithError(err).WithFields(logrus.Fields{
			"outbox_id":    event.ID,
			"event_type":   event.EventType,
			"aggregate_id": event.AggregateID,
		}).Warn("post-commit handling failed, left for retry")
	}
}
