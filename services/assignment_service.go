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

// AssignInput rosters a member onto a production item for a day
type AssignInput struct {
	ProductionItemID uint
	MembershipID     uint
	AssignedDate     string
	Notes            *string
}

// AssignmentFilter narrows ListAssignments; nil fields are ignored
type AssignmentFilter struct {
	MembershipID     *uint
	ProductionItemID *uint
	AssignedDate     *time.Time
}

// AssignmentService is the job assignment ledger
type AssignmentService struct {
	db        *gorm.DB
	directory Directory
	logger    *logrus.Logger
}

func NewAssignmentService(db *gorm.DB, directory Directory, logger *logrus.Logger) *AssignmentService {
	return &AssignmentService{db: db, directory: directory, logger: logger}
}

// Assign records one assignment per (item, membership, date); a repeat is a
// Conflict, never an overwrite.
func (s *AssignmentService) Assign(ctx context.Context, companyID uint, input AssignInput) (*models.ProductionJobAssignment, error) {
	if input.ProductionItemID == 0 || input.MembershipID == 0 {
		return nil, InvalidInput("VALIDATION_ERROR", "production_item_id and membership_id are required")
	}
	if input.AssignedDate == "" {
		return nil, InvalidInput("VALIDATION_ERROR", "assigned_date is required")
	}
	assignedDate, err := models.ParseDate(input.AssignedDate)
	if err != nil {
		return nil, InvalidInput("INVALID_DATE", err.Error())
	}

	member, err := s.directory.Membership(ctx, input.MembershipID)
	if err != nil {
		return nil, err
	}
	if member.CompanyID != companyID {
		return nil, Forbidden("Membership belongs to a different company")
	}

	assignment := models.ProductionJobAssignment{
		CompanyID:        companyID,
		ProductionItemID: input.ProductionItemID,
		MembershipID:     input.MembershipID,
		AssignedDate:     assignedDate,
		Notes:            input.Notes,
	}
	// Item check and insert are atomic against a plan edit deleting the item
	err = s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := checkItemCompany(tx, companyID, input.ProductionItemID); err != nil {
			return err
		}
		if err := tx.Create(&assignment).Error; err != nil {
			if isDuplicateKey(err) {
				return Conflict("ALREADY_ASSIGNED", "This staff member is already assigned to this item on that date")
			}
			return fmt.Errorf("failed to create assignment: %w", err)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	s.logger.WithFields(logrus.Fields{
		"assignment_id":      assignment.ID,
		"production_item_id": assignment.ProductionItemID,
		"membership_id":      assignment.MembershipID,
	}).Debug("job assigned")

	assignment.Member = member
	return &assignment, nil
}

// ListAssignments returns the company's assignments by date
func (s *AssignmentService) ListAssignments(ctx context.Context, companyID uint, filter AssignmentFilter) ([]models.ProductionJobAssignment, error) {
	query := s.db.WithContext(ctx).Where("company_id = ?", companyID)
	if filter.MembershipID != nil {
		query = query.Where("membership_id = ?", *filter.MembershipID)
	}
	if filter.ProductionItemID != nil {
		query = query.Where("production_item_id = ?", *filter.ProductionItemID)
	}
	if filter.AssignedDate != nil {
		query = query.Where("assigned_date = ?", models.TruncateDate(*filter.AssignedDate))
	}

	var assignments []models.ProductionJobAssignment
	if err := query.Order("assigned_date ASC, id ASC").Find(&assignments).Error; err != nil {
		return nil, fmt.Errorf("failed to list assignments: %w", err)
	}

	memberSet := make(map[uint]struct{})
	for _, a := range assignments {
		memberSet[a.MembershipID] = struct{}{}
	}
	members, err := s.directory.MemberSummaries(ctx, idList(memberSet))
	if err != nil {
		s.logger.WithError(err).WithField("company_id", companyID).Warn("member summaries unavailable")
	}
	for i := range assignments {
		if m, ok := members[assignments[i].MembershipID]; ok {
			assignments[i].Member = &m
		}
	}
	return assignments, nil
}

// Unassign deletes one assignment of the caller's company
func (s *AssignmentService) Unassign(ctx context.Context, companyID uint, assignmentID uint) error {
	var assignment models.ProductionJobAssignment
	err := s.db.WithContext(ctx).First(&assignment, assignmentID).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return NotFound("ASSIGNMENT_NOT_FOUND", "Job assignment not found")
	}
	if err != nil {
		return fmt.Errorf("failed to load assignment: %w", err)
	}
	if assignment.CompanyID != companyID {
		return Forbidden("You do not have access to this job assignment")
	}

	if err := s.db.WithContext(ctx).Delete(&assignment).Error; err != nil {
		return fmt.Errorf("failed to delete assignment: %w", err)
	}
	return nil
}

func checkItemCompany(tx *gorm.DB, companyID uint, itemID uint) error {
	var plan models.ProductionPlan
	err := tx.
		Select("production_plans.id, production_plans.company_id").
		Joins("JOIN production_items ON production_items.plan_id = production_plans.id").
		Where("production_items.id = ?", itemID).
		First(&plan).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return NotFound("PRODUCTION_ITEM_NOT_FOUND", "Production item not found")
	}
	if err != nil {
		return fmt.Errorf("failed to load production item: %w", err)
	}
	if plan.CompanyID != companyID {
		return Forbidden("Production item belongs to a different company")
	}
	return nil
}
