package pricing

import (
	"errors"
	"fmt"
	"time"

	"certipanel/hierarchy"
	"certipanel/models"

	"gorm.io/gorm"
)

// ErrPricingMissing means a reseller was never price-enabled for the plan:
// no incoming edge exists (or no platform base price, for root).
var ErrPricingMissing = errors.New("pricing missing")

// ErrFloorViolation rejects a non-override edge priced below the seller's
// own acquisition cost.
var ErrFloorViolation = errors.New("price below parent cost")

var ErrEdgeLocked = errors.New("edge is overridden by root and cannot be edited")

// ErrForbidden rejects pricing writes the actor has no authority over.
var ErrForbidden = errors.New("pricing operation forbidden for actor")

type CostSource string

const (
	SourceBase CostSource = "base"
	SourceEdge CostSource = "edge"
)

type Cost struct {
	Cents    int64
	Currency string
	Source   CostSource
}

// Resolver answers "what does this user pay per unit of this plan".
type Resolver struct {
	db *gorm.DB
}

func NewResolver(db *gorm.DB) *Resolver {
	return &Resolver{db: db}
}

// ResolveCost returns the user's own acquisition cost for a plan: the
// platform base price for root, otherwise the incoming edge from the user's
// parent. Pass an open transaction to resolve inside it.
func (r *Resolver) ResolveCost(tx *gorm.DB, user models.User, planID uint) (Cost, error) {
	if tx == nil {
		tx = r.db
	}

	if user.IsRoot() {
		var base models.PlatformBasePrice
		if err := tx.Where("plan_id = ?", planID).First(&base).Error; err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return Cost{}, fmt.Errorf("%w: no base price for plan %d", ErrPricingMissing, planID)
			}
			return Cost{}, err
		}
		return Cost{Cents: base.BasePriceCents, Currency: base.Currency, Source: SourceBase}, nil
	}

	if user.ParentID == nil {
		return Cost{}, fmt.Errorf("%w: non-root user %d has no parent", hierarchy.ErrBrokenHierarchy, user.ID)
	}

	var edge models.PricingEdge
	err := tx.Where("parent_user_id = ? AND child_user_id = ? AND plan_id = ?",
		*user.ParentID, user.ID, planID).First(&edge).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return Cost{}, fmt.Errorf("%w: no edge (%d -> %d) for plan %d",
				ErrPricingMissing, *user.ParentID, user.ID, planID)
		}
		return Cost{}, err
	}
	return Cost{Cents: edge.PriceCents, Currency: edge.Currency, Source: SourceEdge}, nil
}

// UpsertBasePrice sets the root's acquisition cost for a plan.
func (r *Resolver) UpsertBasePrice(actor models.User, planID uint, cents int64, currency string) (models.PlatformBasePrice, error) {
	if !actor.IsRoot() {
		return models.PlatformBasePrice{}, fmt.Errorf("%w: only root can set base prices", ErrForbidden)
	}
	if cents < 0 {
		return models.PlatformBasePrice{}, fmt.Errorf("%w: base price cannot be negative", ErrFloorViolation)
	}
	if currency == "" {
		currency = "USD"
	}

	row := models.PlatformBasePrice{
		PlanID:          planID,
		BasePriceCents:  cents,
		Currency:        currency,
		UpdatedByUserID: actor.ID,
		UpdatedAt:       time.Now().UTC(),
	}

	var existing models.PlatformBasePrice
	err := r.db.Where("plan_id = ?", planID).First(&existing).Error
	switch {
	case err == nil:
		err = r.db.Model(&models.PlatformBasePrice{}).Where("plan_id = ?", planID).
			Updates(map[string]interface{}{
				"base_price_cents":   cents,
				"currency":           currency,
				"updated_by_user_id": actor.ID,
				"updated_at":         row.UpdatedAt,
			}).Error
	case errors.Is(err, gorm.ErrRecordNotFound):
		err = r.db.Create(&row).Error
	}
	if err != nil {
		return models.PlatformBasePrice{}, err
	}
	return row, nil
}

// UpsertEdge creates or updates the contracted price a parent charges one
// direct child for a plan. Non-root actors must own the edge (actor ==
// parent), must themselves be enabled for the plan, and must respect the
// margin floor: price >= their own cost. Root may set any real edge at any
// price; doing so flags the edge as an override that sellers can no longer
// edit.
func (r *Resolver) UpsertEdge(actor models.User, parentUserID, childUserID, planID uint, cents int64, currency string) (models.PricingEdge, error) {
	if cents < 0 {
		return models.PricingEdge{}, fmt.Errorf("%w: price cannot be negative", ErrFloorViolation)
	}
	if currency == "" {
		currency = "USD"
	}

	var child models.User
	if err := r.db.First(&child, childUserID).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return models.PricingEdge{}, fmt.Errorf("child %d: %w", childUserID, gorm.ErrRecordNotFound)
		}
		return models.PricingEdge{}, err
	}
	// Edges only exist between real direct tree links.
	if child.ParentID == nil || *child.ParentID != parentUserID {
		return models.PricingEdge{}, fmt.Errorf("%w: %d is not the direct parent of %d",
			hierarchy.ErrBrokenHierarchy, parentUserID, childUserID)
	}

	isOverride := actor.IsRoot()
	if !isOverride {
		if actor.ID != parentUserID {
			return models.PricingEdge{}, fmt.Errorf("%w: only the parent may price its own edge", ErrForbidden)
		}

		var parent models.User
		if err := r.db.First(&parent, parentUserID).Error; err != nil {
			return models.PricingEdge{}, err
		}

		// A seller can only pass down plans it was itself enabled for, and
		// never below its own acquisition cost.
		cost, err := r.ResolveCost(nil, parent, planID)
		if err != nil {
			return models.PricingEdge{}, err
		}
		if currency != cost.Currency {
			return models.PricingEdge{}, fmt.Errorf("%w: currency %s, parent cost currency %s",
				ErrFloorViolation, currency, cost.Currency)
		}
		if cents < cost.Cents {
			return models.PricingEdge{}, fmt.Errorf("%w: %d < parent cost %d", ErrFloorViolation, cents, cost.Cents)
		}
	}

	var existing models.PricingEdge
	err := r.db.Where("parent_user_id = ? AND child_user_id = ? AND plan_id = ?",
		parentUserID, childUserID, planID).First(&existing).Error

	row := models.PricingEdge{
		ParentUserID:    parentUserID,
		ChildUserID:     childUserID,
		PlanID:          planID,
		PriceCents:      cents,
		Currency:        currency,
		IsOverride:      isOverride,
		UpdatedByUserID: actor.ID,
		UpdatedAt:       time.Now().UTC(),
	}

	switch {
	case err == nil:
		if existing.IsOverride && !actor.IsRoot() {
			return models.PricingEdge{}, ErrEdgeLocked
		}
		err = r.db.Model(&models.PricingEdge{}).
			Where("parent_user_id = ? AND child_user_id = ? AND plan_id = ?",
				parentUserID, childUserID, planID).
			Updates(map[string]interface{}{
				"price_cents":        cents,
				"currency":           currency,
				"is_override":        isOverride || existing.IsOverride,
				"updated_by_user_id": actor.ID,
				"updated_at":         row.UpdatedAt,
			}).Error
		row.IsOverride = isOverride || existing.IsOverride
	case errors.Is(err, gorm.ErrRecordNotFound):
		err = r.db.Create(&row).Error
	}
	if err != nil {
		return models.PricingEdge{}, err
	}
	return row, nil
}

// ListEdgesForParent lists the prices a parent has set, optionally narrowed
// to one plan.
func (r *Resolver) ListEdgesForParent(parentUserID uint, planID *uint) ([]models.PricingEdge, error) {
	q := r.db.Where("parent_user_id = ?", parentUserID)
	if planID != nil {
		q = q.Where("plan_id = ?", *planID)
	}
	var edges []models.PricingEdge
	err := q.Order("child_user_id asc, plan_id asc").Find(&edges).Error
	return edges, err
}
