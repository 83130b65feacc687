package services

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/kendall-kelly/production-planner-api/models"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"
)

type outboxClock struct {
	now time.Time
}

func (c *outboxClock) Now() time.Time {
	return c.now
}

func newTestOutbox(t *testing.T) (*Outbox, *gorm.DB, *recordingSink, *outboxClock) {
	db := setupTestDB(t)
	sink := &recordingSink{}
	clock := &outboxClock{now: time.Date(2024, 1, 1, 8, 0, 0, 0, time.UTC)}
	outbox := NewOutbox(db, sink, testLogger())
	outbox.now = clock.Now
	outbox.BaseBackoff = time.Second
	outbox.MaxAttempts = 3
	return outbox, db, sink, clock
}

func enqueue(t *testing.T, outbox *Outbox, db *gorm.DB, eventType string) *models.OutboxEvent {
	t.Helper()
	event, err := outbox.Enqueue(db, 1, eventType, "production_plan", 42, map[string]uint{"plan_id": 42})
	require.NoError(t, err)
	return event
}

func reloadEvent(t *testing.T, db *gorm.DB, id uint) models.OutboxEvent {
	t.Helper()
	var event models.OutboxEvent
	require.NoError(t, db.First(&event, id).Error)
	return event
}

func TestOutboxDispatchSucceeds(t *testing.T) {
	outbox, db, sink, _ := newTestOutbox(t)

	var handled []uint
	outbox.Handle("test.event", func(ctx context.Context, event *models.OutboxEvent) error {
		handled = append(handled, event.AggregateID)
		return nil
	})

	event := enqueue(t, outbox, db, "test.event")
	assert.Equal(t, models.OutboxStatusPending, event.Status)
	assert.NotEmpty(t, event.CorrelationID)

	require.NoError(t, outbox.Dispatch(context.Background(), event))
	assert.Equal(t, []uint{42}, handled)

	stored := reloadEvent(t, db, event.ID)
	assert.Equal(t, models.OutboxStatusSucceeded, stored.Status)
	assert.Equal(t, 1, stored.Attempts)
	assert.NotNil(t, stored.ProcessedAt)
	assert.Nil(t, stored.LockedBy)

	require.Len(t, sink.events, 1)
	assert.Equal(t, event.CorrelationID, sink.events[0].ID)
	assert.Equal(t, "test.event", sink.events[0].Type)
	assert.JSONEq(t, `{"plan_id":42}`, string(sink.events[0].Payload))

	// a handled event is never claimed again
	require.NoError(t, outbox.Dispatch(context.Background(), event))
	assert.Len(t, handled, 1)
	assert.Len(t, sink.events, 1)
}

func TestOutboxRetriesThenDies(t *testing.T) {
	outbox, db, sink, clock := newTestOutbox(t)

	calls := 0
	outbox.Handle("test.event", func(ctx context.Context, event *models.OutboxEvent) error {
		calls++
		return errors.New("downstream unavailable")
	})
	event := enqueue(t, outbox, db, "test.event")

	err := outbox.Dispatch(context.Background(), event)
	require.Error(t, err)

	stored := reloadEvent(t, db, event.ID)
	assert.Equal(t, models.OutboxStatusFailed, stored.Status)
	assert.Equal(t, 1, stored.Attempts)
	require.NotNil(t, stored.LastError)
	assert.Contains(t, *stored.LastError, "downstream unavailable")
	require.NotNil(t, stored.NextAttemptAt)
	assert.Equal(t, clock.now.Add(time.Second), stored.NextAttemptAt.UTC())

	// not due yet
	n, err := outbox.ProcessDue(context.Background(), 10)
	require.NoError(t, err)
	assert.Zero(t, n)
	assert.Equal(t, 1, calls)

	clock.now = clock.now.Add(time.Second)
	_, err = outbox.ProcessDue(context.Background(), 10)
	require.NoError(t, err)
	assert.Equal(t, 2, calls)
	stored = reloadEvent(t, db, event.ID)
	assert.Equal(t, models.OutboxStatusFailed, stored.Status)
	assert.Equal(t, clock.now.Add(2*time.Second), stored.NextAttemptAt.UTC(), "backoff doubles")

	clock.now = clock.now.Add(2 * time.Second)
	_, err = outbox.ProcessDue(context.Background(), 10)
	require.NoError(t, err)
	assert.Equal(t, 3, calls)

	stored = reloadEvent(t, db, event.ID)
	assert.Equal(t, models.OutboxStatusDead, stored.Status)
	assert.Equal(t, 3, stored.Attempts)
	assert.Nil(t, stored.NextAttemptAt)

	clock.now = clock.now.Add(time.Hour)
	_, err = outbox.ProcessDue(context.Background(), 10)
	require.NoError(t, err)
	assert.Equal(t, 3, calls, "dead events are not retried")
	assert.Empty(t, sink.events)
}

func TestOutboxSinkFailureIsRetried(t *testing.T) {
	outbox, db, sink, clock := newTestOutbox(t)
	sink.err = errors.New("topic not found")

	event := enqueue(t, outbox, db, "test.event")
	require.Error(t, outbox.Dispatch(context.Background(), event))
	assert.Equal(t, models.OutboxStatusFailed, reloadEvent(t, db, event.ID).Status)

	sink.err = nil
	clock.now = clock.now.Add(time.Minute)
	n, err := outbox.ProcessDue(context.Background(), 10)
	require.NoError(t, err)
	assert.Equal(t, 1, n)
	assert.Equal(t, models.OutboxStatusSucceeded, reloadEvent(t, db, event.ID).Status)
	assert.Len(t, sink.events, 1)
}

func TestOutboxReclaimsStaleProcessing(t *testing.T) {
	outbox, db, sink, clock := newTestOutbox(t)
	event := enqueue(t, outbox, db, "test.event")

	// a worker claimed the event and died
	require.NoError(t, db.Model(&models.OutboxEvent{}).Where("id = ?", event.ID).Updates(map[string]interface{}{
		"status":     models.OutboxStatusProcessing,
		"locked_by":  "outbox-gone",
		"attempts":   1,
		"updated_at": clock.now,
	}).Error)

	n, err := outbox.ProcessDue(context.Background(), 10)
	require.NoError(t, err)
	assert.Zero(t, n, "a fresh claim is respected")

	clock.now = clock.now.Add(outbox.LockTTL + time.Second)
	n, err = outbox.ProcessDue(context.Background(), 10)
	require.NoError(t, err)
	assert.Equal(t, 1, n)

	stored := reloadEvent(t, db, event.ID)
	assert.Equal(t, models.OutboxStatusSucceeded, stored.Status)
	assert.Equal(t, 2, stored.Attempts)
	assert.Len(t, sink.events, 1)
}

func TestOutboxEnqueueRollsBackWithTransaction(t *testing.T) {
	outbox, db, _, _ := newTestOutbox(t)

	err := db.Transaction(func(tx *gorm.DB) error {
		enqueue(t, outbox, tx, "test.event")
		return errors.New("abort")
	})
	require.Error(t, err)

	var count int64
	db.Model(&models.OutboxEvent{}).Count(&count)
	assert.Zero(t, count)
}

func TestOutboxBackoffCap(t *testing.T) {
	outbox := NewOutbox(nil, nil, testLogger())
	outbox.BaseBackoff = 2 * time.Second

	assert.Equal(t, 2*time.Second, outbox.backoff(0))
	assert.Equal(t, 2*time.Second, outbox.backoff(1))
	assert.Equal(t, 8*time.Second, outbox.backoff(3))
	assert.Equal(t, 10*time.Minute, outbox.backoff(20))
}

func TestOutboxRunStopsOnCancel(t *testing.T) {
	outbox, db, sink, _ := newTestOutbox(t)
	outbox.Interval = 10 * time.Millisecond
	enqueue(t, outbox, db, "test.event")

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	go func() {
		outbox.Run(ctx)
		close(done)
	}()

	require.Eventually(t, func() bool {
		return len(sink.types()) == 1
	}, time.Second, 10*time.Millisecond)

	cancel()
	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("outbox worker did not stop")
	}
}
