package models

import (
	"encoding/json"
	"time"

	"github.com/shopspring/decimal"
	"gorm.io/gorm"
)

// Wholesale order statuses, in lifecycle order
const (
	OrderStatusPending      = "pending"
	OrderStatusConfirmed    = "confirmed"
	OrderStatusInProduction = "in_production"
	OrderStatusFulfilled    = "fulfilled"
	OrderStatusCancelled    = "cancelled"
)

// Recurrence intervals; any other value falls back to RecurringIntervalDays
const (
	RecurringWeekly   = "weekly"
	RecurringBiweekly = "biweekly"
	RecurringMonthly  = "monthly"
	RecurringCustom   = "custom"
)

var orderTransitions = map[string][]string{
	OrderStatusPending:      {OrderStatusConfirmed, OrderStatusCancelled},
	OrderStatusConfirmed:    {OrderStatusInProduction, OrderStatusCancelled},
	OrderStatusInProduction: {OrderStatusFulfilled, OrderStatusCancelled},
}

// IsValidOrderStatus reports whether status is part of the order lifecycle
func IsValidOrderStatus(status string) bool {
	switch status {
	case OrderStatusPending, OrderStatusConfirmed, OrderStatusInProduction, OrderStatusFulfilled, OrderStatusCancelled:
		return true
	}
	return false
}

// CanTransitionOrder reports whether an order may move from one status to another
func CanTransitionOrder(from, to string) bool {
	for _, next := range orderTransitions[from] {
		if next == to {
			return true
		}
	}
	return false
}

// WholesaleOrder is a customer's wholesale order. Generated orders point at
// the recurring root through ParentOrderID, never at each other.
type WholesaleOrder struct {
	ID                    uint                 `gorm:"primaryKey" json:"id"`
	CompanyID             uint                 `gorm:"not null;index" json:"company_id"`
	CustomerID            uint                 `gorm:"not null;index" json:"customer_id"`
	Customer              *CustomerSummary     `gorm:"-" json:"customer,omitempty"`
	Status                string               `gorm:"not null;default:'pending';index" json:"status"`
	DeliveryDate          *time.Time           `gorm:"index" json:"delivery_date"`
	Notes                 string               `gorm:"type:text" json:"notes"`
	IsRecurring           bool                 `gorm:"not null;default:false" json:"is_recurring"`
	RecurringInterval     *string              `json:"recurring_interval"`
	RecurringIntervalDays *int                 `json:"recurring_interval_days"`
	NextRecurrenceDate    *time.Time           `json:"next_recurrence_date"`
	ParentOrderID         *uint                `gorm:"index" json:"parent_order_id,omitempty"`
	Items                 []WholesaleOrderItem `gorm:"foreignKey:OrderID" json:"items"`
	CreatedAt             time.Time            `json:"created_at"`
	UpdatedAt             time.Time            `json:"updated_at"`
	DeletedAt             gorm.DeletedAt       `gorm:"index" json:"-"`
}

// TableName specifies the table name for the WholesaleOrder model
func (WholesaleOrder) TableName() string {
	return "wholesale_orders"
}

// WholesaleOrderItem is one line of a wholesale order
type WholesaleOrderItem struct {
	ID       uint            `gorm:"primaryKey" json:"id"`
	OrderID  uint            `gorm:"not null;index" json:"order_id"`
	RecipeID uint            `gorm:"not null;index" json:"recipe_id"` // weak reference
	Recipe   *RecipeSummary  `gorm:"-" json:"recipe,omitempty"`
	Quantity decimal.Decimal `gorm:"type:decimal(12,3);not null" json:"quantity"`
	Price    decimal.Decimal `gorm:"type:decimal(12,2);not null;default:0" json:"price"`
	Notes    *string         `json:"notes"`
}

// TableName specifies the table name for the WholesaleOrderItem model
func (WholesaleOrderItem) TableName() string {
	return "wholesale_order_items"
}

// MarshalJSON writes the order's calendar dates as YYYY-MM-DD
func (o WholesaleOrder) MarshalJSON() ([]byte, error) {
	type order WholesaleOrder
	return json.Marshal(struct {
		order
		DeliveryDate       *string `json:"delivery_date"`
		NextRecurrenceDate *string `json:"next_recurrence_date"`
	}{
		order:              order(o),
		DeliveryDate:       formatDatePtr(o.DeliveryDate),
		NextRecurrenceDate: formatDatePtr(o.NextRecurrenceDate),
	})
}
