package controllers

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/kendall-kelly/production-planner-api/services"
	"github.com/shopspring/decimal"
)

// SavePlanRequest represents the request body for creating or replacing a plan
type SavePlanRequest struct {
	Name      string            `json:"name" binding:"required"`
	StartDate string            `json:"start_date" binding:"required"`
	EndDate   string            `json:"end_date" binding:"required"`
	Notes     string            `json:"notes"`
	Items     []PlanItemRequest `json:"items" binding:"dive"`
}

// PlanItemRequest is one item of a plan; order in the array sets its priority
type PlanItemRequest struct {
	RecipeID    uint                `json:"recipe_id" binding:"required"`
	Quantity    decimal.Decimal     `json:"quantity"`
	Allocations []AllocationRequest `json:"allocations" binding:"dive"`
}

// AllocationRequest earmarks part of an item for a destination
type AllocationRequest struct {
	Destination string          `json:"destination" binding:"required"`
	CustomerID  *uint           `json:"customer_id"`
	Quantity    decimal.Decimal `json:"quantity"`
}

func (r SavePlanRequest) toInput() services.PlanInput {
	input := services.PlanInput{
		Name:      r.Name,
		StartDate: r.StartDate,
		EndDate:   r.EndDate,
		Notes:     r.Notes,
	}
	for _, item := range r.Items {
		in := services.PlanItemInput{RecipeID: item.RecipeID, Quantity: item.Quantity}
		for _, alloc := range item.Allocations {
			in.Allocations = append(in.Allocations, services.AllocationInput{
				Destination: alloc.Destination,
				CustomerID:  alloc.CustomerID,
				Quantity:    alloc.Quantity,
			})
		}
		input.Items = append(input.Items, in)
	}
	return input
}

// ListPlans handles GET /api/v1/production-plans?from=&to=
func ListPlans(c *gin.Context) {
	companyID, ok := requireCompany(c)
	if !ok {
		return
	}
	from, ok := queryDate(c, "from")
	if !ok {
		return
	}
	to, ok := queryDate(c, "to")
	if !ok {
		return
	}

	plans, err := services.GetServices().Plans.ListPlans(c.Request.Context(), companyID, services.PlanFilter{From: from, To: to})
	if err != nil {
		respondError(c, "ListPlans", err)
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"success": true,
		"data":    plans,
		"count":   len(plans),
	})
}

// CreatePlan handles POST /api/v1/production-plans
func CreatePlan(c *gin.Context) {
	companyID, ok := requireCompany(c)
	if !ok {
		return
	}

	var req SavePlanRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		respondValidationError(c, err)
		return
	}

	plan, err := services.GetServices().Plans.SavePlan(c.Request.Context(), companyID, currentUserID(c), nil, req.toInput())
	if err != nil {
		respondError(c, "CreatePlan", err)
		return
	}

	respondSuccess(c, http.StatusCreated, plan)
}

// GetPlan handles GET /api/v1/production-plans/:id
func GetPlan(c *gin.Context) {
	companyID, ok := requireCompany(c)
	if !ok {
		return
	}
	planID, ok := pathID(c, "id")
	if !ok {
		return
	}

	plan, err := services.GetServices().Plans.GetPlan(c.Request.Context(), companyID, planID)
	if err != nil {
		respondError(c, "GetPlan", err)
		return
	}

	respondSuccess(c, http.StatusOK, plan)
}

// UpdatePlan handles PUT /api/v1/production-plans/:id. The body replaces the
// whole plan, including its items and allocations.
func UpdatePlan(c *gin.Context) {
	companyID, ok := requireCompany(c)
	if !ok {
		return
	}
	planID, ok := pathID(c, "id")
	if !ok {
		return
	}

	var req SavePlanRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		respondValidationError(c, err)
		return
	}

	plan, err := services.GetServices().Plans.SavePlan(c.Request.Context(), companyID, nil, &planID, req.toInput())
	if err != nil {
		respondError(c, "UpdatePlan", err)
		return
	}

	respondSuccess(c, http.StatusOK, plan)
}

// DeletePlan handles DELETE /api/v1/production-plans/:id
func DeletePlan(c *gin.Context) {
	companyID, ok := requireCompany(c)
	if !ok {
		return
	}
	planID, ok := pathID(c, "id")
	if !ok {
		return
	}

	if err := services.GetServices().Plans.DeletePlan(c.Request.Context(), companyID, planID); err != nil {
		respondError(c, "DeletePlan", err)
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"success": true,
		"message": "Production plan deleted",
	})
}
