package services

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/kendall-kelly/production-planner-api/models"
	"github.com/shopspring/decimal"
	"github.com/sirupsen/logrus"
	"gorm.io/gorm"
)

// OrderInput describes a new wholesale order
type OrderInput struct {
	CustomerID            uint
	Status                string // pending (default) or confirmed
	DeliveryDate          string
	Notes                 string
	IsRecurring           bool
	RecurringInterval     *string
	RecurringIntervalDays *int
	Items                 []OrderItemInput
}

// OrderItemInput is one line of a new order
type OrderItemInput struct {
	RecipeID uint
	Quantity decimal.Decimal
	Price    decimal.Decimal
	Notes    *string
}

// OrderFilter narrows ListOrders
type OrderFilter struct {
	Status        string
	CustomerID    *uint
	ParentOrderID *uint
}

// OrderService is the wholesale order store
type OrderService struct {
	db        *gorm.DB
	directory Directory
	logger    *logrus.Logger
	now       func() time.Time
}

func NewOrderService(db *gorm.DB, directory Directory, logger *logrus.Logger) *OrderService {
	return &OrderService{db: db, directory: directory, logger: logger, now: time.Now}
}

// CreateOrder stores a new order. Recurring orders get their first
// next_recurrence_date from the delivery date (or today).
func (s *OrderService) CreateOrder(ctx context.Context, companyID uint, input OrderInput) (*models.WholesaleOrder, error) {
	if input.CustomerID == 0 {
		return nil, InvalidInput("VALIDATION_ERROR", "customer_id is required")
	}
	status := input.Status
	if status == "" {
		status = models.OrderStatusPending
	}
	if status != models.OrderStatusPending && status != models.OrderStatusConfirmed {
		return nil, InvalidInput("VALIDATION_ERROR", "New orders must be pending or confirmed")
	}
	if len(input.Items) == 0 {
		return nil, InvalidInput("VALIDATION_ERROR", "Order must contain at least one item")
	}
	for i, item := range input.Items {
		if item.RecipeID == 0 {
			return nil, InvalidInput("VALIDATION_ERROR", fmt.Sprintf("Item %d: recipe_id is required", i))
		}
		if !item.Quantity.IsPositive() {
			return nil, InvalidInput("VALIDATION_ERROR", fmt.Sprintf("Item %d: quantity must be greater than 0", i))
		}
		if item.Price.IsNegative() {
			return nil, InvalidInput("VALIDATION_ERROR", fmt.Sprintf("Item %d: price must not be negative", i))
		}
	}

	order := models.WholesaleOrder{
		CompanyID:             companyID,
		CustomerID:            input.CustomerID,
		Status:                status,
		Notes:                 input.Notes,
		IsRecurring:           input.IsRecurring,
		RecurringInterval:     input.RecurringInterval,
		RecurringIntervalDays: input.RecurringIntervalDays,
	}
	if input.DeliveryDate != "" {
		d, err := models.ParseDate(input.DeliveryDate)
		if err != nil {
			return nil, InvalidInput("INVALID_DATE", err.Error())
		}
		order.DeliveryDate = &d
	}
	if order.IsRecurring {
		base := s.now()
		if order.DeliveryDate != nil {
			base = *order.DeliveryDate
		}
		next, err := NextRecurrenceDate(base, order.RecurringInterval, order.RecurringIntervalDays)
		if err != nil {
			return nil, InvalidInput("INVALID_RECURRENCE", "Recurring orders need weekly, biweekly, monthly or a positive recurring_interval_days")
		}
		order.NextRecurrenceDate = &next
	}

	customers, err := s.directory.CustomerSummaries(ctx, companyID, []uint{input.CustomerID})
	if err != nil {
		return nil, err
	}
	if _, ok := customers[input.CustomerID]; !ok {
		return nil, NotFound("CUSTOMER_NOT_FOUND", "Wholesale customer not found")
	}

	for _, item := range input.Items {
		order.Items = append(order.Items, models.WholesaleOrderItem{
			RecipeID: item.RecipeID,
			Quantity: item.Quantity,
			Price:    item.Price,
			Notes:    item.Notes,
		})
	}
	if err := s.db.WithContext(ctx).Create(&order).Error; err != nil {
		return nil, fmt.Errorf("failed to create order: %w", err)
	}

	return s.GetOrder(ctx, companyID, order.ID)
}

// GetOrder returns a hydrated order of the caller's company
func (s *OrderService) GetOrder(ctx context.Context, companyID uint, orderID uint) (*models.WholesaleOrder, error) {
	var order models.WholesaleOrder
	err := preloadOrderItems(s.db.WithContext(ctx)).
		Where("company_id = ?", companyID).
		First(&order, orderID).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, NotFound("ORDER_NOT_FOUND", "Wholesale order not found")
	}
	if err != nil {
		return nil, fmt.Errorf("failed to load order: %w", err)
	}

	s.hydrate(ctx, companyID, []*models.WholesaleOrder{&order})
	return &order, nil
}

// ListOrders returns the company's orders by delivery date
func (s *OrderService) ListOrders(ctx context.Context, companyID uint, filter OrderFilter) ([]models.WholesaleOrder, error) {
	query := preloadOrderItems(s.db.WithContext(ctx)).Where("company_id = ?", companyID)
	if filter.Status != "" {
		query = query.Where("status = ?", filter.Status)
	}
	if filter.CustomerID != nil {
		query = query.Where("customer_id = ?", *filter.CustomerID)
	}
	if filter.ParentOrderID != nil {
		query = query.Where("parent_order_id = ?", *filter.ParentOrderID)
	}

	var orders []models.WholesaleOrder
	if err := query.Order("delivery_date ASC, id ASC").Find(&orders).Error; err != nil {
		return nil, fmt.Errorf("failed to list orders: %w", err)
	}

	ptrs := make([]*models.WholesaleOrder, len(orders))
	for i := range orders {
		ptrs[i] = &orders[i]
	}
	s.hydrate(ctx, companyID, ptrs)
	return orders, nil
}

// UpdateStatus moves an order along its lifecycle
func (s *OrderService) UpdateStatus(ctx context.Context, companyID uint, orderID uint, status string) (*models.WholesaleOrder, error) {
	if !models.IsValidOrderStatus(status) {
		return nil, InvalidInput("VALIDATION_ERROR", fmt.Sprintf("Unknown order status %q", status))
	}

	var order models.WholesaleOrder
	err := s.db.WithContext(ctx).Where("company_id = ?", companyID).First(&order, orderID).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, NotFound("ORDER_NOT_FOUND", "Wholesale order not found")
	}
	if err != nil {
		return nil, fmt.Errorf("failed to load order: %w", err)
	}

	if !models.CanTransitionOrder(order.Status, status) {
		return nil, InvalidState("INVALID_STATUS_TRANSITION",
			fmt.Sprintf("Cannot change order status from %s to %s", order.Status, status))
	}

	res := s.db.WithContext(ctx).Model(&models.WholesaleOrder{}).
		Where("id = ? AND status = ?", order.ID, order.Status).
		Update("status", status)
	if res.Error != nil {
		return nil, fmt.Errorf("failed to update order status: %w", res.Error)
	}
	if res.RowsAffected == 0 {
		return nil, Conflict("ORDER_STATUS_CHANGED", "Order status changed while updating, reload and retry")
	}

	return s.GetOrder(ctx, companyID, order.ID)
}

func (s *OrderService) hydrate(ctx context.Context, companyID uint, orders []*models.WholesaleOrder) {
	recipeSet := make(map[uint]struct{})
	customerSet := make(map[uint]struct{})
	for _, order := range orders {
		customerSet[order.CustomerID] = struct{}{}
		for _, item := range order.Items {
			recipeSet[item.RecipeID] = struct{}{}
		}
	}

	recipes, customers, err := lookupSummaries(ctx, s.directory, companyID, idList(recipeSet), idList(customerSet))
	if err != nil {
		s.logger.WithError(err).WithField("company_id", companyID).Warn("summaries unavailable")
	}

	for _, order := range orders {
		if c, ok := customers[order.CustomerID]; ok {
			order.Customer = &c
		}
		for i := range order.Items {
			if r, ok := recipes[order.Items[i].RecipeID]; ok {
				order.Items[i].Recipe = &r
			}
		}
	}
}

func preloadOrderItems(db *gorm.DB) *gorm.DB {
	return db.Preload("Items", func(db *gorm.DB) *gorm.DB {
		return db.Order("id ASC")
	})
}
