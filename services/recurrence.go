package services

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/kendall-kelly/production-planner-api/models"
	"github.com/sirupsen/logrus"
	"gorm.io/gorm"
)

// NextRecurrenceDate advances base by one recurrence interval. Monthly
// steps keep the day of month, clamped to the last day of a shorter month.
func NextRecurrenceDate(base time.Time, interval *string, intervalDays *int) (time.Time, error) {
	base = models.TruncateDate(base)

	var name string
	if interval != nil {
		name = *interval
	}

	switch name {
	case models.RecurringWeekly:
		return base.AddDate(0, 0, 7), nil
	case models.RecurringBiweekly:
		return base.AddDate(0, 0, 14), nil
	case models.RecurringMonthly:
		return addMonthsClamped(base, 1), nil
	}

	if intervalDays != nil && *intervalDays > 0 {
		return base.AddDate(0, 0, *intervalDays), nil
	}
	return time.Time{}, InvalidState("UNKNOWN_RECURRENCE_INTERVAL",
		fmt.Sprintf("Recurring interval %q has no day count to advance by", name))
}

func addMonthsClamped(t time.Time, months int) time.Time {
	y, m, d := t.Date()
	first := time.Date(y, m+time.Month(months), 1, 0, 0, 0, 0, t.Location())
	lastDay := first.AddDate(0, 1, -1).Day()
	if d > lastDay {
		d = lastDay
	}
	return time.Date(first.Year(), first.Month(), d, 0, 0, 0, 0, t.Location())
}

type orderGeneratedPayload struct {
	ParentOrderID uint   `json:"parent_order_id"`
	DeliveryDate  string `json:"delivery_date"`
}

// RecurringOrderGenerator spawns the next order of a recurring wholesale order
type RecurringOrderGenerator struct {
	db     *gorm.DB
	orders *OrderService
	outbox *Outbox
	locker Locker
	logger *logrus.Logger
	now    func() time.Time
}

func NewRecurringOrderGenerator(db *gorm.DB, orders *OrderService, outbox *Outbox, locker Locker, logger *logrus.Logger) *RecurringOrderGenerator {
	if locker == nil {
		locker = NoopLocker{}
	}
	return &RecurringOrderGenerator{
		db:     db,
		orders: orders,
		outbox: outbox,
		locker: locker,
		logger: logger,
		now:    time.Now,
	}
}

// GenerateNextOrder creates the child order one interval after the parent's
// delivery date and moves the parent's next_recurrence_date one further
// interval ahead, in a single transaction. A child with the same delivery
// date already generated from this parent is a conflict.
func (g *RecurringOrderGenerator) GenerateNextOrder(ctx context.Context, companyID uint, parentOrderID uint) (*models.WholesaleOrder, error) {
	release, err := g.locker.Obtain(ctx, fmt.Sprintf("planner:recurring-order:%d", parentOrderID), 30*time.Second)
	if err != nil {
		return nil, err
	}
	defer release()

	var (
		child models.WholesaleOrder
		event *models.OutboxEvent
	)
	err = g.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var parent models.WholesaleOrder
		err := tx.Preload("Items", func(db *gorm.DB) *gorm.DB {
			return db.Order("id ASC")
		}).First(&parent, parentOrderID).Error
		if errors.Is(err, gorm.ErrRecordNotFound) || (err == nil && parent.CompanyID != companyID) {
			return NotFound("ORDER_NOT_FOUND", "Wholesale order not found")
		}
		if err != nil {
			return fmt.Errorf("failed to load order: %w", err)
		}
		if !parent.IsRecurring {
			return InvalidState("ORDER_NOT_RECURRING", "Only recurring orders can generate a next order")
		}

		base := g.now()
		if parent.DeliveryDate != nil {
			base = *parent.DeliveryDate
		}
		next, err := NextRecurrenceDate(base, parent.RecurringInterval, parent.RecurringIntervalDays)
		if err != nil {
			return err
		}
		following, err := NextRecurrenceDate(next, parent.RecurringInterval, parent.RecurringIntervalDays)
		if err != nil {
			return err
		}

		rootID := parent.ID
		if parent.ParentOrderID != nil {
			rootID = *parent.ParentOrderID
		}

		var existing int64
		err = tx.Model(&models.WholesaleOrder{}).
			Where("parent_order_id = ? AND delivery_date = ?", rootID, next).
			Count(&existing).Error
		if err != nil {
			return fmt.Errorf("failed to check existing recurrences: %w", err)
		}
		if existing > 0 {
			return Conflict("RECURRENCE_ALREADY_GENERATED",
				fmt.Sprintf("An order for %s has already been generated from this order", next.Format(models.DateLayout)))
		}

		child = models.WholesaleOrder{
			CompanyID:     parent.CompanyID,
			CustomerID:    parent.CustomerID,
			Status:        models.OrderStatusPending,
			DeliveryDate:  &next,
			IsRecurring:   false,
			ParentOrderID: &rootID,
		}
		for _, item := range parent.Items {
			child.Items = append(child.Items, models.WholesaleOrderItem{
				RecipeID: item.RecipeID,
				Quantity: item.Quantity,
				Price:    item.Price,
				Notes:    item.Notes,
			})
		}
		if err := tx.Create(&child).Error; err != nil {
			return fmt.Errorf("failed to create recurring order: %w", err)
		}

		if err := tx.Model(&parent).Update("next_recurrence_date", following).Error; err != nil {
			return fmt.Errorf("failed to advance recurrence: %w", err)
		}

		event, err = g.outbox.Enqueue(tx, companyID, models.EventOrderGenerated, "wholesale_order", child.ID, orderGeneratedPayload{
			ParentOrderID: rootID,
			DeliveryDate:  next.Format(models.DateLayout),
		})
		return err
	})
	if err != nil {
		return nil, err
	}

	g.logger.WithFields(logrus.Fields{
		"parent_order_id": parentOrderID,
		"order_id":        child.ID,
		"delivery_date":   child.DeliveryDate.Format(models.DateLayout),
	}).Info("generated recurring order")

	g.outbox.DispatchAfterCommit(ctx, event)

	return g.orders.GetOrder(ctx, companyID, child.ID)
}
