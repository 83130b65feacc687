package models

import (
	"encoding/json"
	"time"
)

// ProductionJobAssignment rosters a member onto a production item for one day.
// (production_item_id, membership_id, assigned_date) is unique.
type ProductionJobAssignment struct {
	ID               uint           `gorm:"primaryKey" json:"id"`
	CompanyID        uint           `gorm:"not null;index" json:"company_id"`
	ProductionItemID uint           `gorm:"not null;uniqueIndex:idx_job_assignment_item_member_date,priority:1" json:"production_item_id"`
	MembershipID     uint           `gorm:"not null;index;uniqueIndex:idx_job_assignment_item_member_date,priority:2" json:"membership_id"`
	AssignedDate     time.Time      `gorm:"not null;index;uniqueIndex:idx_job_assignment_item_member_date,priority:3" json:"assigned_date"`
	Notes            *string        `gorm:"type:text" json:"notes"`
	Member           *MemberSummary `gorm:"-" json:"membership,omitempty"`
	CreatedAt        time.Time      `json:"created_at"`
}

// TableName specifies the table name for the ProductionJobAssignment model
func (ProductionJobAssignment) TableName() string {
	return "production_job_assignments"
}

// MarshalJSON writes the assigned date as YYYY-MM-DD
func (a ProductionJobAssignment) MarshalJSON() ([]byte, error) {
	type assignment ProductionJobAssignment
	return json.Marshal(struct {
		assignment
		AssignedDate string `json:"assigned_date"`
	}{
		assignment:   assignment(a),
		AssignedDate: formatDate(a.AssignedDate),
	})
}
