package models

import "time"

// Outbox processing statuses for OutboxEvent.Status
const (
	OutboxStatusPending    = "PENDING"
	OutboxStatusProcessing = "PROCESSING"
	OutboxStatusSucceeded  = "SUCCEEDED"
	OutboxStatusFailed     = "FAILED"
	OutboxStatusDead       = "DEAD"
)

// Event types written to the outbox or published to the event sink
const (
	EventPlanSaved      = "production_plan.saved"
	EventPlanDeleted    = "production_plan.deleted"
	EventOrderPromoted  = "wholesale_order.promoted"
	EventOrderGenerated = "wholesale_order.generated"
)

// OutboxEvent is written in the same transaction as the change it describes
// and handled after commit.
type OutboxEvent struct {
	ID            uint       `gorm:"primaryKey" json:"id"`
	CompanyID     uint       `gorm:"not null;index" json:"company_id"`
	EventType     string     `gorm:"size:64;not null;index" json:"event_type"`
	AggregateType string     `gorm:"size:64;not null" json:"aggregate_type"`
	AggregateID   uint       `gorm:"not null;index" json:"aggregate_id"`
	Payload       []byte     `json:"payload"`
	Status        string     `gorm:"size:20;not null;default:'PENDING';index:idx_outbox_due,priority:1" json:"status"`
	Attempts      int        `gorm:"not null;default:0" json:"attempts"`
	NextAttemptAt *time.Time `gorm:"index:idx_outbox_due,priority:2" json:"next_attempt_at"`
	LockedBy      *string    `gorm:"size:100" json:"locked_by"`
	LastError     *string    `gorm:"type:text" json:"last_error"`
	ProcessedAt   *time.Time `json:"processed_at"`
	CorrelationID string     `gorm:"size:64;index" json:"correlation_id"`
	CreatedAt     time.Time  `json:"created_at"`
	UpdatedAt     time.Time  `json:"updated_at"`
}

// TableName specifies the table name for the OutboxEvent model
func (OutboxEvent) TableName() string {
	return "outbox_events"
}
