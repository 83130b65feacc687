package services

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/kendall-kelly/production-planner-api/models"
	"github.com/redis/go-redis/v9"
	"github.com/sirupsen/logrus"
	"golang.org/x/sync/errgroup"
	"gorm.io/gorm"
)

// Directory resolves the recipe, customer and staff summaries used for hydration
// and assignment validation. Missing recipe or customer ids are simply absent
// from the returned maps.
type Directory interface {
	RecipeSummaries(ctx context.Context, companyID uint, ids []uint) (map[uint]models.RecipeSummary, error)
	CustomerSummaries(ctx context.Context, companyID uint, ids []uint) (map[uint]models.CustomerSummary, error)
	Membership(ctx context.Context, membershipID uint) (*models.MemberSummary, error)
	MemberSummaries(ctx context.Context, ids []uint) (map[uint]models.MemberSummary, error)
}

// GormDirectory reads summaries from the shared database
type GormDirectory struct {
	db *gorm.DB
}

func NewGormDirectory(db *gorm.DB) *GormDirectory {
	return &GormDirectory{db: db}
}

func (d *GormDirectory) RecipeSummaries(ctx context.Context, companyID uint, ids []uint) (map[uint]models.RecipeSummary, error) {
	out := make(map[uint]models.RecipeSummary, len(ids))
	if len(ids) == 0 {
		return out, nil
	}

	var recipes []models.Recipe
	if err := d.db.WithContext(ctx).Where("company_id = ? AND id IN ?", companyID, ids).Find(&recipes).Error; err != nil {
		return nil, fmt.Errorf("failed to load recipes: %w", err)
	}
	for _, r := range recipes {
		out[r.ID] = models.RecipeSummary{ID: r.ID, Name: r.Name, YieldQuantity: r.YieldQuantity, YieldUnit: r.YieldUnit}
	}
	return out, nil
}

func (d *GormDirectory) CustomerSummaries(ctx context.Context, companyID uint, ids []uint) (map[uint]models.CustomerSummary, error) {
	out := make(map[uint]models.CustomerSummary, len(ids))
	if len(ids) == 0 {
		return out, nil
	}

	var customers []models.WholesaleCustomer
	if err := d.db.WithContext(ctx).Where("company_id = ? AND id IN ?", companyID, ids).Find(&customers).Error; err != nil {
		return nil, fmt.Errorf("failed to load customers: %w", err)
	}
	for _, c := range customers {
		out[c.ID] = models.CustomerSummary{ID: c.ID, Name: c.Name}
	}
	return out, nil
}

func (d *GormDirectory) Membership(ctx context.Context, membershipID uint) (*models.MemberSummary, error) {
	var membership models.Membership
	err := d.db.WithContext(ctx).Preload("User").First(&membership, membershipID).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, NotFound("MEMBERSHIP_NOT_FOUND", "Membership not found")
	}
	if err != nil {
		return nil, fmt.Errorf("failed to load membership: %w", err)
	}
	summary := memberSummary(membership)
	return &summary, nil
}

func (d *GormDirectory) MemberSummaries(ctx context.Context, ids []uint) (map[uint]models.MemberSummary, error) {
	out := make(map[uint]models.MemberSummary, len(ids))
	if len(ids) == 0 {
		return out, nil
	}

	var memberships []models.Membership
	if err := d.db.WithContext(ctx).Preload("User").Where("id IN ?", ids).Find(&memberships).Error; err != nil {
		return nil, fmt.Errorf("failed to load memberships: %w", err)
	}
	for _, m := range memberships {
		out[m.ID] = memberSummary(m)
	}
	return out, nil
}

func memberSummary(m models.Membership) models.MemberSummary {
	return models.MemberSummary{
		ID:        m.ID,
		CompanyID: m.CompanyID,
		User:      models.MemberUser{Name: m.User.Name, Email: m.User.Email},
	}
}

// lookupSummaries fetches recipe and customer summaries concurrently. A
// failed lookup leaves its map nil and is reported in the error.
func lookupSummaries(ctx context.Context, directory Directory, companyID uint, recipeIDs, customerIDs []uint) (map[uint]models.RecipeSummary, map[uint]models.CustomerSummary, error) {
	var (
		g         errgroup.Group
		recipes   map[uint]models.RecipeSummary
		customers map[uint]models.CustomerSummary
	)
	g.Go(func() error {
		var err error
		recipes, err = directory.RecipeSummaries(ctx, companyID, recipeIDs)
		if err != nil {
			return fmt.Errorf("recipe summaries: %w", err)
		}
		return nil
	})
	g.Go(func() error {
		var err error
		customers, err = directory.CustomerSummaries(ctx, companyID, customerIDs)
		if err != nil {
			return fmt.Errorf("customer summaries: %w", err)
		}
		return nil
	})
	err := g.Wait()
	return recipes, customers, err
}

// CachedDirectory keeps recipe and customer summaries in redis.
// Membership lookups always go to the wrapped directory.
type CachedDirectory struct {
	next   Directory
	rdb    *redis.Client
	ttl    time.Duration
	logger *logrus.Logger
}

func NewCachedDirectory(next Directory, rdb *redis.Client, ttl time.Duration, logger *logrus.Logger) *CachedDirectory {
	return &CachedDirectory{next: next, rdb: rdb, ttl: ttl, logger: logger}
}

func (d *CachedDirectory) RecipeSummaries(ctx context.Context, companyID uint, ids []uint) (map[uint]models.RecipeSummary, error) {
	return cachedLookup(ctx, d, fmt.Sprintf("planner:recipe:%d:", companyID), ids, func(missing []uint) (map[uint]models.RecipeSummary, error) {
		return d.next.RecipeSummaries(ctx, companyID, missing)
	})
}

func (d *CachedDirectory) CustomerSummaries(ctx context.Context, companyID uint, ids []uint) (map[uint]models.CustomerSummary, error) {
	return cachedLookup(ctx, d, fmt.Sprintf("planner:customer:%d:", companyID), ids, func(missing []uint) (map[uint]models.CustomerSummary, error) {
		return d.next.CustomerSummaries(ctx, companyID, missing)
	})
}

func (d *CachedDirectory) Membership(ctx context.Context, membershipID uint) (*models.MemberSummary, error) {
	return d.next.Membership(ctx, membershipID)
}

func (d *CachedDirectory) MemberSummaries(ctx context.Context, ids []uint) (map[uint]models.MemberSummary, error) {
	return d.next.MemberSummaries(ctx, ids)
}

// cachedLookup serves hits from redis and fills misses from load.
// Redis failures degrade to a direct load.
func cachedLookup[T any](ctx context.Context, d *CachedDirectory, prefix string, ids []uint, load func([]uint) (map[uint]T, error)) (map[uint]T, error) {
	out := make(map[uint]T, len(ids))
	if len(ids) == 0 {
		return out, nil
	}

	keys := make([]string, len(ids))
	for i, id := range ids {
		keys[i] = fmt.Sprintf("%s%d", prefix, id)
	}

	missing := ids
	values, err := d.rdb.MGet(ctx, keys...).Result()
	if err != nil {
		d.logger.WithError(err).WithField("prefix", prefix).Warn("directory cache read failed")
	} else {
		missing = missing[:0:0]
		for i, raw := range values {
			s, ok := raw.(string)
			var v T
			if !ok || json.Unmarshal([]byte(s), &v) != nil {
				missing = append(missing, ids[i])
				continue
			}
			out[ids[i]] = v
		}
	}

	if len(missing) == 0 {
		return out, nil
	}

	loaded, err := load(missing)
	if err != nil {
		return nil, err
	}

	pipe := d.rdb.Pipeline()
	for id, v := range loaded {
		out[id] = v
		if data, err := json.Marshal(v); err == nil {
			pipe.Set(ctx, fmt.Sprintf("%s%d", prefix, id), data, d.ttl)
		}
	}
	if _, err := pipe.Exec(ctx); err != nil {
		d.logger.WithError(err).WithField("prefix", prefix).Warn("directory cache write failed")
	}
	return out, nil
}
