package controllers

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/kendall-kelly/production-planner-api/services"
	"github.com/shopspring/decimal"
)

// CreateOrderRequest represents the request body for creating a wholesale order
type CreateOrderRequest struct {
	CustomerID            uint               `json:"customer_id" binding:"required"`
	Status                string             `json:"status" binding:"omitempty,oneof=pending confirmed"`
	DeliveryDate          string             `json:"delivery_date"`
	Notes                 string             `json:"notes"`
	IsRecurring           bool               `json:"is_recurring"`
	RecurringInterval     *string            `json:"recurring_interval"`
	RecurringIntervalDays *int               `json:"recurring_interval_days"`
	Items                 []OrderItemRequest `json:"items" binding:"required,min=1,dive"`
}

// OrderItemRequest is one line of a new order
type OrderItemRequest struct {
	RecipeID uint            `json:"recipe_id" binding:"required"`
	Quantity decimal.Decimal `json:"quantity"`
	Price    decimal.Decimal `json:"price"`
	Notes    *string         `json:"notes"`
}

// UpdateOrderStatusRequest represents the request body for a status change
type UpdateOrderStatusRequest struct {
	Status string `json:"status" binding:"required"`
}

// CreateOrder handles POST /api/v1/wholesale-orders
func CreateOrder(c *gin.Context) {
	companyID, ok := requireCompany(c)
	if !ok {
		return
	}

	var req CreateOrderRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		respondValidationError(c, err)
		return
	}

	input := services.OrderInput{
		CustomerID:            req.CustomerID,
		Status:                req.Status,
		DeliveryDate:          req.DeliveryDate,
		Notes:                 req.Notes,
		IsRecurring:           req.IsRecurring,
		RecurringInterval:     req.RecurringInterval,
		RecurringIntervalDays: req.RecurringIntervalDays,
	}
	for _, item := range req.Items {
		input.Items = append(input.Items, services.OrderItemInput{
			RecipeID: item.RecipeID,
			Quantity: item.Quantity,
			Price:    item.Price,
			Notes:    item.Notes,
		})
	}

	order, err := services.GetServices().Orders.CreateOrder(c.Request.Context(), companyID, input)
	if err != nil {
		respondError(c, "CreateOrder", err)
		return
	}

	respondSuccess(c, http.StatusCreated, order)
}

// ListOrders handles GET /api/v1/wholesale-orders?status=&customer_id=&parent_order_id=
func ListOrders(c *gin.Context) {
	companyID, ok := requireCompany(c)
	if !ok {
		return
	}
	customerID, ok := queryID(c, "customer_id")
	if !ok {
		return
	}
	parentID, ok := queryID(c, "parent_order_id")
	if !ok {
		return
	}

	orders, err := services.GetServices().Orders.ListOrders(c.Request.Context(), companyID, services.OrderFilter{
		Status:        c.Query("status"),
		CustomerID:    customerID,
		ParentOrderID: parentID,
	})
	if err != nil {
		respondError(c, "ListOrders", err)
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"success": true,
		"data":    orders,
		"count":   len(orders),
	})
}

// GetOrder handles GET /api/v1/wholesale-orders/:id
func GetOrder(c *gin.Context) {
	companyID, ok := requireCompany(c)
	if !ok {
		return
	}
	orderID, ok := pathID(c, "id")
	if !ok {
		return
	}

	order, err := services.GetServices().Orders.GetOrder(c.Request.Context(), companyID, orderID)
	if err != nil {
		respondError(c, "GetOrder", err)
		return
	}

	respondSuccess(c, http.StatusOK, order)
}

// UpdateOrderStatus handles PATCH /api/v1/wholesale-orders/:id/status
func UpdateOrderStatus(c *gin.Context) {
	companyID, ok := requireCompany(c)
	if !ok {
		return
	}
	orderID, ok := pathID(c, "id")
	if !ok {
		return
	}

	var req UpdateOrderStatusRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		respondValidationError(c, err)
		return
	}

	order, err := services.GetServices().Orders.UpdateStatus(c.Request.Context(), companyID, orderID, req.Status)
	if err != nil {
		respondError(c, "UpdateOrderStatus", err)
		return
	}

	respondSuccess(c, http.StatusOK, order)
}

// GenerateNextOrder handles POST /api/v1/wholesale-orders/:id/generate-next
func GenerateNextOrder(c *gin.Context) {
	companyID, ok := requireCompany(c)
	if !ok {
		return
	}
	orderID, ok := pathID(c, "id")
	if !ok {
		return
	}

	order, err := services.GetServices().Recurrence.GenerateNextOrder(c.Request.Context(), companyID, orderID)
	if err != nil {
		respondError(c, "GenerateNextOrder", err)
		return
	}

	respondSuccess(c, http.StatusCreated, order)
}
