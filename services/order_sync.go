package services

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sort"

	"github.com/kendall-kelly/production-planner-api/models"
	"github.com/sirupsen/logrus"
	"gorm.io/gorm"
)

// SyncResult reports what one synchronizer pass did
type SyncResult struct {
	PromotedOrderIDs []uint `json:"promoted_order_ids"`
	FailedOrderIDs   []uint `json:"failed_order_ids"`
}

// OrderSynchronizer promotes confirmed wholesale orders to in_production once
// a saved plan covers them. Promotion is one-way and only ever touches
// confirmed orders.
type OrderSynchronizer struct {
	db     *gorm.DB
	sink   EventSink
	logger *logrus.Logger
}

func NewOrderSynchronizer(db *gorm.DB, sink EventSink, logger *logrus.Logger) *OrderSynchronizer {
	return &OrderSynchronizer{db: db, sink: sink, logger: logger}
}

// SyncPlan promotes every confirmed order of an allocated customer that is
// due inside the plan window and shares at least one recipe with the plan.
// The customer match is plan-wide, not per item. A failed promotion is logged
// and skipped; the returned error then lists how many failed.
func (s *OrderSynchronizer) SyncPlan(ctx context.Context, companyID uint, planID uint) (*SyncResult, error) {
	result := &SyncResult{}

	var plan models.ProductionPlan
	err := s.db.WithContext(ctx).
		Preload("Items.Allocations").
		Where("id = ? AND company_id = ?", planID, companyID).
		First(&plan).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, NotFound("PLAN_NOT_FOUND", "Production plan not found")
	}
	if err != nil {
		return nil, fmt.Errorf("failed to load plan: %w", err)
	}

	customers := plan.AllocatedCustomerIDs()
	if len(customers) == 0 {
		return result, nil
	}
	recipes := plan.RecipeIDs()

	customerIDs := idList(customers)
	sort.Slice(customerIDs, func(i, j int) bool { return customerIDs[i] < customerIDs[j] })

	var candidates []models.WholesaleOrder
	err = s.db.WithContext(ctx).
		Preload("Items").
		Where("company_id = ? AND status = ? AND customer_id IN ?", companyID, models.OrderStatusConfirmed, customerIDs).
		Where("delivery_date >= ? AND delivery_date < ?", plan.StartDate, plan.EndDate.AddDate(0, 0, 1)).
		Order("id ASC").
		Find(&candidates).Error
	if err != nil {
		return nil, fmt.Errorf("failed to load candidate orders: %w", err)
	}

	for i := range candidates {
		order := &candidates[i]
		if !qualifiesForPromotion(order, recipes, customers) {
			continue
		}

		promoted, err := s.promote(ctx, order)
		if err != nil {
			s.logger.WithError(err).WithFields(logrus.Fields{
				"plan_id":  plan.ID,
				"order_id": order.ID,
			}).Error("failed to promote order")
			result.FailedOrderIDs = append(result.FailedOrderIDs, order.ID)
			continue
		}
		if promoted {
			result.PromotedOrderIDs = append(result.PromotedOrderIDs, order.ID)
			s.publishPromotion(ctx, plan.ID, order)
		}
	}

	s.logger.WithFields(logrus.Fields{
		"plan_id":  plan.ID,
		"promoted": len(result.PromotedOrderIDs),
		"failed":   len(result.FailedOrderIDs),
	}).Info("order status sync finished")

	if len(result.FailedOrderIDs) > 0 {
		return result, fmt.Errorf("%d of %d order promotions failed", len(result.FailedOrderIDs), len(result.FailedOrderIDs)+len(result.PromotedOrderIDs))
	}
	return result, nil
}

// HandlePlanSaved is the outbox handler for production_plan.saved. A plan
// deleted before the event is handled has nothing left to sync.
func (s *OrderSynchronizer) HandlePlanSaved(ctx context.Context, event *models.OutboxEvent) error {
	var payload planEventPayload
	if err := json.Unmarshal(event.Payload, &payload); err != nil {
		return fmt.Errorf("invalid %s payload: %w", event.EventType, err)
	}

	_, err := s.SyncPlan(ctx, event.CompanyID, payload.PlanID)
	if IsKind(err, KindNotFound) {
		return nil
	}
	return err
}

func qualifiesForPromotion(order *models.WholesaleOrder, planRecipes, allocatedCustomers map[uint]struct{}) bool {
	if _, ok := allocatedCustomers[order.CustomerID]; !ok {
		return false
	}
	for _, item := range order.Items {
		if _, ok := planRecipes[item.RecipeID]; ok {
			return true
		}
	}
	return false
}

// promote reports false when the order left confirmed since it was read
func (s *OrderSynchronizer) promote(ctx context.Context, order *models.WholesaleOrder) (bool, error) {
	res := s.db.WithContext(ctx).Model(&models.WholesaleOrder{}).
		Where("id = ? AND status = ?", order.ID, models.OrderStatusConfirmed).
		Update("status", models.OrderStatusInProduction)
	if res.Error != nil {
		return false, res.Error
	}
	if res.RowsAffected == 0 {
		return false, nil
	}
	order.Status = models.OrderStatusInProduction
	return true, nil
}

func (s *OrderSynchronizer) publishPromotion(ctx context.Context, planID uint, order *models.WholesaleOrder) {
	event, err := NewDomainEvent(models.EventOrderPromoted, order.CompanyID, "wholesale_order", order.ID, map[string]interface{}{
		"plan_id":     planID,
		"customer_id": order.CustomerID,
		"status":      order.Status,
	})
	if err == nil {
		err = s.sink.Publish(ctx, event)
	}
	if err != nil {
		s.logger.WithError(err).WithField("order_id", order.ID).Warn("failed to publish order promotion")
	}
}
