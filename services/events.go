package services

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/kendall-kelly/production-planner-api/config"
	"github.com/sirupsen/logrus"
)

// DomainEvent is what leaves the service once a change has committed
type DomainEvent struct {
	ID            string          `json:"id"`
	Type          string          `json:"type"`
	CompanyID     uint            `json:"company_id"`
	AggregateType string          `json:"aggregate_type"`
	AggregateID   uint            `json:"aggregate_id"`
	OccurredAt    time.Time       `json:"occurred_at"`
	Payload       json.RawMessage `json:"payload,omitempty"`
}

// EventSink delivers domain events to the rest of the system
type EventSink interface {
	Publish(ctx context.Context, event DomainEvent) error
}

// NewDomainEvent builds an event with a fresh id
func NewDomainEvent(eventType string, companyID uint, aggregateType string, aggregateID uint, payload any) (DomainEvent, error) {
	var raw json.RawMessage
	if payload != nil {
		data, err := json.Marshal(payload)
		if err != nil {
			return DomainEvent{}, fmt.Errorf("failed to encode %s payload: %w", eventType, err)
		}
		raw = data
	}
	return DomainEvent{
		ID:            uuid.NewString(),
		Type:          eventType,
		CompanyID:     companyID,
		AggregateType: aggregateType,
		AggregateID:   aggregateID,
		OccurredAt:    time.Now().UTC(),
		Payload:       raw,
	}, nil
}

// LogEventSink writes events to the structured log
type LogEventSink struct {
	logger *logrus.Logger
}

func NewLogEventSink(logger *logrus.Logger) *LogEventSink {
	return &LogEventSink{logger: logger}
}

func (s *LogEventSink) Publish(ctx context.Context, event DomainEvent) error {
	s.logger.WithFields(logrus.Fields{
		"event_id":       event.ID,
		"event_type":     event.Type,
		"company_id":     event.CompanyID,
		"aggregate_type": event.AggregateType,
		"aggregate_id":   event.AggregateID,
	}).Info("domain event")
	return nil
}

// InitEventSink builds the sink selected by EVENT_SINK
func InitEventSink(ctx context.Context, cfg *config.Config, logger *logrus.Logger) (EventSink, error) {
	switch cfg.EventSink {
	case config.EventSinkS3:
		s3Service, err := InitS3Service(ctx, cfg)
		if err != nil {
			return nil, err
		}
		return NewS3EventSink(s3Service, "events"), nil
	case config.EventSinkPubSub:
		return NewPubSubEventSink(ctx, cfg.PubSubProjectID, cfg.PubSubTopic)
	default:
		return NewLogEventSink(logger), nil
	}
}
