package models

import (
	"fmt"
	"time"
)

// DateLayout is the wire format for calendar dates
const DateLayout = "2006-01-02"

// All returns every model, in migration order
func All() []interface{} {
	return []interface{}{
		&Company{},
		&User{},
		&Membership{},
		&Recipe{},
		&WholesaleCustomer{},
		&ProductionPlan{},
		&ProductionItem{},
		&ProductionAllocation{},
		&ProductionJobAssignment{},
		&WholesaleOrder{},
		&WholesaleOrderItem{},
		&OutboxEvent{},
	}
}

// ParseDate parses a YYYY-MM-DD string into midnight UTC
func ParseDate(value string) (time.Time, error) {
	t, err := time.Parse(DateLayout, value)
	if err != nil {
		return time.Time{}, fmt.Errorf("invalid date %q, expected YYYY-MM-DD", value)
	}
	return t, nil
}

// TruncateDate drops the time of day, keeping the UTC calendar date as
// midnight UTC. Drivers may hand back stored dates in time.Local.
func TruncateDate(t time.Time) time.Time {
	y, m, d := t.UTC().Date()
	return time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
}

func formatDate(t time.Time) string {
	return t.UTC().Format(DateLayout)
}

func formatDatePtr(t *time.Time) *string {
	if t == nil {
		return nil
	}
	s := formatDate(*t)
	return &s
}
