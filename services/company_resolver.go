package services

import (
	"context"
	"errors"
	"fmt"

	"github.com/kendall-kelly/production-planner-api/models"
	"gorm.io/gorm"
)

// CompanyResolver maps an authenticated user onto the company they act for
type CompanyResolver interface {
	CompanyIDForUser(ctx context.Context, auth0ID string) (uint, error)
	HasAccess(ctx context.Context, auth0ID string, companyID uint) (bool, error)
	Memberships(ctx context.Context, auth0ID string) ([]models.Membership, error)
}

// MembershipResolver resolves companies through the memberships table
type MembershipResolver struct {
	db *gorm.DB
}

func NewMembershipResolver(db *gorm.DB) *MembershipResolver {
	return &MembershipResolver{db: db}
}

// CompanyIDForUser returns the company of the user's oldest membership
func (r *MembershipResolver) CompanyIDForUser(ctx context.Context, auth0ID string) (uint, error) {
	var membership models.Membership
	err := r.db.WithContext(ctx).
		Select("memberships.*").
		Joins("JOIN users ON users.id = memberships.user_id").
		Where("users.auth0_id = ? AND users.deleted_at IS NULL", auth0ID).
		Order("memberships.id ASC").
		First(&membership).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return 0, NotFound("MEMBERSHIP_NOT_FOUND", "User is not a member of any company")
	}
	if err != nil {
		return 0, fmt.Errorf("failed to resolve company: %w", err)
	}
	return membership.CompanyID, nil
}

func (r *MembershipResolver) HasAccess(ctx context.Context, auth0ID string, companyID uint) (bool, error) {
	var count int64
	err := r.db.WithContext(ctx).Model(&models.Membership{}).
		Joins("JOIN users ON users.id = memberships.user_id").
		Where("users.auth0_id = ? AND users.deleted_at IS NULL AND memberships.company_id = ?", auth0ID, companyID).
		Count(&count).Error
	if err != nil {
		return false, fmt.Errorf("failed to check company access: %w", err)
	}
	return count > 0, nil
}

func (r *MembershipResolver) Memberships(ctx context.Context, auth0ID string) ([]models.Membership, error) {
	var memberships []models.Membership
	err := r.db.WithContext(ctx).
		Select("memberships.*").
		Preload("User").
		Joins("JOIN users ON users.id = memberships.user_id").
		Where("users.auth0_id = ? AND users.deleted_at IS NULL", auth0ID).
		Order("memberships.id ASC").
		Find(&memberships).Error
	if err != nil {
		return nil, fmt.Errorf("failed to load memberships: %w", err)
	}
	return memberships, nil
}
