package services

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/kendall-kelly/production-planner-api/models"
	"github.com/shopspring/decimal"
	"github.com/sirupsen/logrus"
	"gorm.io/gorm"
)

// PlanInput is the full content of a plan; saving replaces every item
type PlanInput struct {
	Name      string
	StartDate string
	EndDate   string
	Notes     string
	Items     []PlanItemInput
}

// PlanItemInput is one item of a plan; its position becomes its priority
type PlanItemInput struct {
	RecipeID    uint
	Quantity    decimal.Decimal
	Allocations []AllocationInput
}

// AllocationInput earmarks part of an item for a destination
type AllocationInput struct {
	Destination string
	CustomerID  *uint
	Quantity    decimal.Decimal
}

// PlanFilter narrows ListPlans to plans overlapping [From, To]
type PlanFilter struct {
	From *time.Time
	To   *time.Time
}

type planEventPayload struct {
	PlanID uint `json:"plan_id"`
}

// PlanService stores production plans and their allocations
type PlanService struct {
	db        *gorm.DB
	directory Directory
	outbox    *Outbox
	logger    *logrus.Logger
}

func NewPlanService(db *gorm.DB, directory Directory, outbox *Outbox, logger *logrus.Logger) *PlanService {
	return &PlanService{db: db, directory: directory, outbox: outbox, logger: logger}
}

// SavePlan creates a plan (planID nil) or fully replaces an existing one.
// Prior items, allocations and job assignments of an edited plan are deleted.
// Order promotion runs after commit and never fails the save.
func (s *PlanService) SavePlan(ctx context.Context, companyID uint, createdByID *uint, planID *uint, input PlanInput) (*models.ProductionPlan, error) {
	start, end, err := input.validate()
	if err != nil {
		return nil, err
	}

	var (
		saved models.ProductionPlan
		event *models.OutboxEvent
	)
	err = s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if planID != nil {
			plan, err := loadOwnedPlan(tx, companyID, *planID)
			if err != nil {
				return err
			}
			err = tx.Model(plan).Updates(map[string]interface{}{
				"name":       strings.TrimSpace(input.Name),
				"start_date": start,
				"end_date":   end,
				"notes":      input.Notes,
			}).Error
			if err != nil {
				return fmt.Errorf("failed to update plan: %w", err)
			}

			removed, err := clearPlanItems(tx, plan.ID)
			if err != nil {
				return err
			}
			if removed > 0 {
				s.logger.WithFields(logrus.Fields{
					"plan_id":     plan.ID,
					"assignments": removed,
				}).Warn("plan edit removed job assignments of replaced items")
			}
			saved = *plan
		} else {
			saved = models.ProductionPlan{
				CompanyID:   companyID,
				Name:        strings.TrimSpace(input.Name),
				StartDate:   start,
				EndDate:     end,
				Notes:       input.Notes,
				CreatedByID: createdByID,
			}
			if err := tx.Create(&saved).Error; err != nil {
				return fmt.Errorf("failed to create plan: %w", err)
			}
		}

		for i, in := range input.Items {
			item := models.ProductionItem{
				PlanID:   saved.ID,
				RecipeID: in.RecipeID,
				Quantity: in.Quantity,
				Priority: i,
			}
			for _, a := range in.Allocations {
				item.Allocations = append(item.Allocations, models.ProductionAllocation{
					Destination: strings.TrimSpace(a.Destination),
					CustomerID:  a.CustomerID,
					Quantity:    a.Quantity,
				})
			}
			if err := tx.Create(&item).Error; err != nil {
				return fmt.Errorf("failed to create plan item %d: %w", i, err)
			}
		}

		enqueued, err := s.outbox.Enqueue(tx, companyID, models.EventPlanSaved, "production_plan", saved.ID, planEventPayload{PlanID: saved.ID})
		event = enqueued
		return err
	})
	if err != nil {
		return nil, err
	}

	s.outbox.DispatchAfterCommit(ctx, event)

	return s.GetPlan(ctx, companyID, saved.ID)
}

// DeletePlan removes a plan with its items, allocations and job assignments
func (s *PlanService) DeletePlan(ctx context.Context, companyID uint, planID uint) error {
	var event *models.OutboxEvent
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		plan, err := loadOwnedPlan(tx, companyID, planID)
		if err != nil {
			return err
		}
		if _, err := clearPlanItems(tx, plan.ID); err != nil {
			return err
		}
		if err := tx.Delete(plan).Error; err != nil {
			return fmt.Errorf("failed to delete plan: %w", err)
		}
		event, err = s.outbox.Enqueue(tx, companyID, models.EventPlanDeleted, "production_plan", plan.ID, planEventPayload{PlanID: plan.ID})
		return err
	})
	if err != nil {
		return err
	}

	s.outbox.DispatchAfterCommit(ctx, event)
	return nil
}

// GetPlan returns a hydrated plan with items in priority order
func (s *PlanService) GetPlan(ctx context.Context, companyID uint, planID uint) (*models.ProductionPlan, error) {
	plan, err := loadOwnedPlan(s.db.WithContext(ctx), companyID, planID)
	if err != nil {
		return nil, err
	}
	if err := preloadPlanItems(s.db.WithContext(ctx)).First(plan, plan.ID).Error; err != nil {
		return nil, fmt.Errorf("failed to load plan items: %w", err)
	}

	s.hydrate(ctx, companyID, []*models.ProductionPlan{plan})
	return plan, nil
}

// ListPlans returns the company's plans, most recent window first
func (s *PlanService) ListPlans(ctx context.Context, companyID uint, filter PlanFilter) ([]models.ProductionPlan, error) {
	query := preloadPlanItems(s.db.WithContext(ctx)).Where("company_id = ?", companyID)
	if filter.From != nil {
		query = query.Where("end_date >= ?", models.TruncateDate(*filter.From))
	}
	if filter.To != nil {
		query = query.Where("start_date <= ?", models.TruncateDate(*filter.To))
	}

	var plans []models.ProductionPlan
	if err := query.Order("start_date DESC, id DESC").Find(&plans).Error; err != nil {
		return nil, fmt.Errorf("failed to list plans: %w", err)
	}

	ptrs := make([]*models.ProductionPlan, len(plans))
	for i := range plans {
		ptrs[i] = &plans[i]
	}
	s.hydrate(ctx, companyID, ptrs)
	return plans, nil
}

// hydrate attaches recipe and customer summaries. Summaries are display
// only, so lookup failures are logged and the plan is returned without them.
func (s *PlanService) hydrate(ctx context.Context, companyID uint, plans []*models.ProductionPlan) {
	recipeSet := make(map[uint]struct{})
	customerSet := make(map[uint]struct{})
	for _, plan := range plans {
		for id := range plan.RecipeIDs() {
			recipeSet[id] = struct{}{}
		}
		for id := range plan.AllocatedCustomerIDs() {
			customerSet[id] = struct{}{}
		}
	}

	recipes, customers, err := lookupSummaries(ctx, s.directory, companyID, idList(recipeSet), idList(customerSet))
	if err != nil {
		s.logger.WithError(err).WithField("company_id", companyID).Warn("summaries unavailable")
	}

	for _, plan := range plans {
		for i := range plan.Items {
			item := &plan.Items[i]
			if r, ok := recipes[item.RecipeID]; ok {
				item.Recipe = &r
			}
			for j := range item.Allocations {
				alloc := &item.Allocations[j]
				if alloc.CustomerID == nil {
					continue
				}
				if c, ok := customers[*alloc.CustomerID]; ok {
					alloc.Customer = &c
				}
			}
		}
	}
}

func (in PlanInput) validate() (time.Time, time.Time, error) {
	if strings.TrimSpace(in.Name) == "" {
		return time.Time{}, time.Time{}, InvalidInput("VALIDATION_ERROR", "Plan name is required")
	}
	if in.StartDate == "" || in.EndDate == "" {
		return time.Time{}, time.Time{}, InvalidInput("VALIDATION_ERROR", "Plan start_date and end_date are required")
	}
	start, err := models.ParseDate(in.StartDate)
	if err != nil {
		return time.Time{}, time.Time{}, InvalidInput("INVALID_DATE", err.Error())
	}
	end, err := models.ParseDate(in.EndDate)
	if err != nil {
		return time.Time{}, time.Time{}, InvalidInput("INVALID_DATE", err.Error())
	}
	if start.After(end) {
		return time.Time{}, time.Time{}, InvalidInput("INVALID_DATE_RANGE", "Plan start_date must not be after end_date")
	}
	if len(in.Items) == 0 {
		return time.Time{}, time.Time{}, InvalidInput("VALIDATION_ERROR", "Plan must contain at least one item")
	}

	for i, item := range in.Items {
		if item.RecipeID == 0 {
			return time.Time{}, time.Time{}, InvalidInput("VALIDATION_ERROR", fmt.Sprintf("Item %d: recipe_id is required", i))
		}
		if !item.Quantity.IsPositive() {
			return time.Time{}, time.Time{}, InvalidInput("VALIDATION_ERROR", fmt.Sprintf("Item %d: quantity must be greater than 0", i))
		}
		for j, a := range item.Allocations {
			if strings.TrimSpace(a.Destination) == "" {
				return time.Time{}, time.Time{}, InvalidInput("VALIDATION_ERROR", fmt.Sprintf("Item %d allocation %d: destination is required", i, j))
			}
			if a.Quantity.IsNegative() {
				return time.Time{}, time.Time{}, InvalidInput("VALIDATION_ERROR", fmt.Sprintf("Item %d allocation %d: quantity must not be negative", i, j))
			}
		}
	}
	return start, end, nil
}

func loadOwnedPlan(db *gorm.DB, companyID uint, planID uint) (*models.ProductionPlan, error) {
	var plan models.ProductionPlan
	err := db.First(&plan, planID).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, NotFound("PLAN_NOT_FOUND", "Production plan not found")
	}
	if err != nil {
		return nil, fmt.Errorf("failed to load plan: %w", err)
	}
	if plan.CompanyID != companyID {
		return nil, Forbidden("You do not have access to this production plan")
	}
	return &plan, nil
}

func preloadPlanItems(db *gorm.DB) *gorm.DB {
	return db.
		Preload("Items", func(db *gorm.DB) *gorm.DB {
			return db.Order("priority ASC, id ASC")
		}).
		Preload("Items.Allocations", func(db *gorm.DB) *gorm.DB {
			return db.Order("id ASC")
		})
}

// clearPlanItems deletes a plan's items with their allocations and job
// assignments, returning how many assignments were removed.
func clearPlanItems(tx *gorm.DB, planID uint) (int64, error) {
	var itemIDs []uint
	if err := tx.Model(&models.ProductionItem{}).Where("plan_id = ?", planID).Pluck("id", &itemIDs).Error; err != nil {
		return 0, fmt.Errorf("failed to load plan items: %w", err)
	}
	if len(itemIDs) == 0 {
		return 0, nil
	}

	res := tx.Where("production_item_id IN ?", itemIDs).Delete(&models.ProductionJobAssignment{})
	if res.Error != nil {
		return 0, fmt.Errorf("failed to delete job assignments: %w", res.Error)
	}
	if err := tx.Where("production_item_id IN ?", itemIDs).Delete(&models.ProductionAllocation{}).Error; err != nil {
		return 0, fmt.Errorf("failed to delete allocations: %w", err)
	}
	if err := tx.Where("plan_id = ?", planID).Delete(&models.ProductionItem{}).Error; err != nil {
		return 0, fmt.Errorf("failed to delete plan items: %w", err)
	}
	return res.RowsAffected, nil
}

func idList(set map[uint]struct{}) []uint {
	ids := make([]uint, 0, len(set))
	for id := range set {
		ids = append(ids, id)
	}
	return ids
}
