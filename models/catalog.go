package models

import (
	"time"

	"github.com/shopspring/decimal"
)

// Recipe is owned by the recipe module; planning only reads its summary
type Recipe struct {
	ID            uint            `gorm:"primaryKey" json:"id"`
	CompanyID     uint            `gorm:"not null;index" json:"company_id"`
	Name          string          `gorm:"not null" json:"name"`
	YieldQuantity decimal.Decimal `gorm:"type:decimal(12,3);not null;default:0" json:"yield_quantity"`
	YieldUnit     string          `json:"yield_unit"`
	CreatedAt     time.Time       `json:"created_at"`
	UpdatedAt     time.Time       `json:"updated_at"`
}

// TableName specifies the table name for the Recipe model
func (Recipe) TableName() string {
	return "recipes"
}

// WholesaleCustomer is a business buying wholesale from a company
type WholesaleCustomer struct {
	ID        uint      `gorm:"primaryKey" json:"id"`
	CompanyID uint      `gorm:"not null;index" json:"company_id"`
	Name      string    `gorm:"not null" json:"name"`
	Email     string    `json:"email"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

// TableName specifies the table name for the WholesaleCustomer model
func (WholesaleCustomer) TableName() string {
	return "wholesale_customers"
}

// RecipeSummary is the display hydration for a referenced recipe
type RecipeSummary struct {
	ID            uint            `json:"id"`
	Name          string          `json:"name"`
	YieldQuantity decimal.Decimal `json:"yield_quantity"`
	YieldUnit     string          `json:"yield_unit"`
}

// CustomerSummary is the display hydration for a referenced customer
type CustomerSummary struct {
	ID   uint   `json:"id"`
	Name string `json:"name"`
}

// MemberSummary is the staff directory view of a membership
type MemberSummary struct {
	ID        uint       `json:"id"`
	CompanyID uint       `json:"company_id"`
	User      MemberUser `json:"user"`
}

// MemberUser holds the contact details shown for a member
type MemberUser struct {
	Name  string `json:"name"`
	Email string `json:"email"`
}
