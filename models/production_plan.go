package models

import (
	"encoding/json"
	"time"

	"github.com/shopspring/decimal"
)

// ProductionPlan is a scheduled batch of recipe production over a date window
type ProductionPlan struct {
	ID          uint             `gorm:"primaryKey" json:"id"`
	CompanyID   uint             `gorm:"not null;index" json:"company_id"`
	Name        string           `gorm:"not null" json:"name"`
	StartDate   time.Time        `gorm:"not null;index" json:"start_date"`
	EndDate     time.Time        `gorm:"not null;index" json:"end_date"`
	Notes       string           `gorm:"type:text" json:"notes"`
	CreatedByID *uint            `json:"created_by_id,omitempty"` // user who first created the plan
	Items       []ProductionItem `gorm:"foreignKey:PlanID" json:"items"`
	CreatedAt   time.Time        `json:"created_at"`
	UpdatedAt   time.Time        `json:"updated_at"`
}

// TableName specifies the table name for the ProductionPlan model
func (ProductionPlan) TableName() string {
	return "production_plans"
}

// ProductionItem is one recipe to produce within a plan
type ProductionItem struct {
	ID          uint                   `gorm:"primaryKey" json:"id"`
	PlanID      uint                   `gorm:"not null;index" json:"plan_id"`
	RecipeID    uint                   `gorm:"not null;index" json:"recipe_id"` // weak reference, may dangle
	Recipe      *RecipeSummary         `gorm:"-" json:"recipe,omitempty"`
	Quantity    decimal.Decimal        `gorm:"type:decimal(12,3);not null" json:"quantity"`
	Priority    int                    `gorm:"not null;default:0" json:"priority"` // position in the plan
	Allocations []ProductionAllocation `gorm:"foreignKey:ProductionItemID" json:"allocations"`
}

// TableName specifies the table name for the ProductionItem model
func (ProductionItem) TableName() string {
	return "production_items"
}

// ProductionAllocation earmarks part of an item's output for a destination
type ProductionAllocation struct {
	ID               uint             `gorm:"primaryKey" json:"id"`
	ProductionItemID uint             `gorm:"not null;index" json:"production_item_id"`
	Destination      string           `gorm:"not null" json:"destination"` // wholesale, retail, waste, ...
	CustomerID       *uint            `gorm:"index" json:"customer_id"`    // weak reference
	Customer         *CustomerSummary `gorm:"-" json:"customer,omitempty"`
	Quantity         decimal.Decimal  `gorm:"type:decimal(12,3);not null" json:"quantity"`
}

// TableName specifies the table name for the ProductionAllocation model
func (ProductionAllocation) TableName() string {
	return "production_allocations"
}

// RecipeIDs returns the distinct recipes referenced by the plan's items
func (p *ProductionPlan) RecipeIDs() map[uint]struct{} {
	ids := make(map[uint]struct{}, len(p.Items))
	for _, item := range p.Items {
		ids[item.RecipeID] = struct{}{}
	}
	return ids
}

// AllocatedCustomerIDs returns the distinct customers named by any allocation in the plan
func (p *ProductionPlan) AllocatedCustomerIDs() map[uint]struct{} {
	ids := make(map[uint]struct{})
	for _, item := range p.Items {
		for _, alloc := range item.Allocations {
			if alloc.CustomerID != nil {
				ids[*alloc.CustomerID] = struct{}{}
			}
		}
	}
	return ids
}

// MarshalJSON writes the plan window as YYYY-MM-DD
func (p ProductionPlan) MarshalJSON() ([]byte, error) {
	type plan ProductionPlan
	return json.Marshal(struct {
		plan
		StartDate string `json:"start_date"`
		EndDate   string `json:"end_date"`
	}{
		plan:      plan(p),
		StartDate: formatDate(p.StartDate),
		EndDate:   formatDate(p.EndDate),
	})
}
