package models

import "time"

// Company is the tenant every planning and order record is scoped to
type Company struct {
	ID        uint      `gorm:"primaryKey" json:"id"`
	Name      string    `gorm:"not null" json:"name"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

// TableName specifies the table name for the Company model
func (Company) TableName() string {
	return "companies"
}

// Membership links a user to a company; staff are rostered by membership
type Membership struct {
	ID        uint      `gorm:"primaryKey" json:"id"`
	CompanyID uint      `gorm:"not null;uniqueIndex:idx_membership_company_user,priority:1" json:"company_id"`
	UserID    uint      `gorm:"not null;uniqueIndex:idx_membership_company_user,priority:2" json:"user_id"`
	User      User      `gorm:"foreignKey:UserID" json:"user"`
	Role      string    `gorm:"not null;default:'staff'" json:"role"` // owner, manager, staff
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

// TableName specifies the table name for the Membership model
func (Membership) TableName() string {
	return "memberships"
}
