package coupons

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"certipanel/hierarchy"
	"certipanel/models"

	"github.com/google/uuid"
	"gorm.io/datatypes"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

const codePrefix = "Certify-"

// maxCodeAttempts bounds collision retries when generating a code.
const maxCodeAttempts = 20

var ErrCouponNotFound = errors.New("coupon not found")

var ErrBadTransition = errors.New("invalid coupon status transition")

// ErrCodeSpace means code generation kept colliding until the retry budget
// ran out. Treated as fatal for the surrounding transaction.
var ErrCodeSpace = errors.New("failed to generate unique coupon code")

var ErrForbidden = errors.New("coupon operation forbidden for actor")

// NewCode returns a candidate coupon code: Certify-<8 hex>. Uniqueness is
// the caller's problem (Issue checks against the table).
func NewCode() string {
	return codePrefix + strings.ReplaceAll(uuid.New().String(), "-", "")[:8]
}

type Service struct {
	db *gorm.DB
}

func NewService(db *gorm.DB) *Service {
	return &Service{db: db}
}

// Issue creates qty fresh coupons inside the caller's transaction, assigns
// them to ownerID and appends one generated event each. Codes are
// collision-checked against existing rows with a bounded retry budget;
// exhausting it fails the whole transaction.
func Issue(tx *gorm.DB, actorID, ownerID, planID uint, qty int, note string, meta datatypes.JSONMap) ([]models.Coupon, error) {
	if qty < 1 {
		return nil, fmt.Errorf("coupon quantity must be >= 1, got %d", qty)
	}
	if meta == nil {
		meta = datatypes.JSONMap{}
	}

	issued := make([]models.Coupon, 0, qty)
	for i := 0; i < qty; i++ {
		var code string
		for attempt := 0; attempt < maxCodeAttempts; attempt++ {
			candidate := NewCode()
			var count int64
			if err := tx.Model(&models.Coupon{}).Where("coupon_code = ?", candidate).Count(&count).Error; err != nil {
				return nil, err
			}
			if count == 0 {
				code = candidate
				break
			}
		}
		if code == "" {
			return nil, ErrCodeSpace
		}

		actor := actorID
		owner := ownerID
		coupon := models.Coupon{
			CouponCode:      code,
			PlanID:          planID,
			Status:          models.CouponUnused,
			CreatedByUserID: &actor,
			OwnerUserID:     &owner,
			Notes:           note,
		}
		if err := tx.Create(&coupon).Error; err != nil {
			return nil, err
		}

		event := models.CouponEvent{
			CouponCode:  code,
			ActorUserID: &actor,
			EventType:   models.CouponEventGenerated,
			Meta:        meta,
		}
		if err := tx.Create(&event).Error; err != nil {
			return nil, err
		}

		issued = append(issued, coupon)
	}
	return issued, nil
}

// GenerateForOwner issues coupons outside a purchase: root for anyone in the
// tree, a seller for itself or one of its direct children.
func (s *Service) GenerateForOwner(actor models.User, ownerUserID, planID uint, qty int, note string) ([]models.Coupon, error) {
	if !actor.IsRoot() && ownerUserID != actor.ID {
		var owner models.User
		if err := s.db.First(&owner, ownerUserID).Error; err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return nil, fmt.Errorf("%w: owner %d", ErrCouponNotFound, ownerUserID)
			}
			return nil, err
		}
		if owner.ParentID == nil || *owner.ParentID != actor.ID {
			return nil, fmt.Errorf("%w: owner must be yourself or a direct child", ErrForbidden)
		}
	}

	tx := s.db.Begin()
	if tx.Error != nil {
		return nil, tx.Error
	}
	defer func() {
		if r := recover(); r != nil {
			tx.Rollback()
		}
	}()

	issued, err := Issue(tx, actor.ID, ownerUserID, planID, qty, note,
		datatypes.JSONMap{"source": "manual", "by_user_id": actor.ID})
	if err != nil {
		tx.Rollback()
		return nil, err
	}
	if err := tx.Commit().Error; err != nil {
		return nil, err
	}
	return issued, nil
}

func (s *Service) lockCoupon(tx *gorm.DB, code string) (models.Coupon, error) {
	var coupon models.Coupon
	err := tx.Clauses(clause.Locking{Strength: "UPDATE"}).
		Where("coupon_code = ?", code).First(&coupon).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return models.Coupon{}, fmt.Errorf("%w: %s", ErrCouponNotFound, code)
		}
		return models.Coupon{}, err
	}
	return coupon, nil
}

type transition struct {
	to      string
	event   string
	allowed []string
	apply   func(*models.Coupon, map[string]interface{})
}

func (s *Service) transition(actor models.User, code string, tr transition, extraMeta datatypes.JSONMap) (models.Coupon, error) {
	tx := s.db.Begin()
	if tx.Error != nil {
		return models.Coupon{}, tx.Error
	}
	defer func() {
		if r := recover(); r != nil {
			tx.Rollback()
		}
	}()

	coupon, err := s.lockCoupon(tx, code)
	if err != nil {
		tx.Rollback()
		return models.Coupon{}, err
	}

	ok := false
	for _, from := range tr.allowed {
		if coupon.Status == from {
			ok = true
			break
		}
	}
	if !ok {
		tx.Rollback()
		return models.Coupon{}, fmt.Errorf("%w: %s -> %s", ErrBadTransition, coupon.Status, tr.to)
	}

	updates := map[string]interface{}{"status": tr.to}
	if tr.apply != nil {
		tr.apply(&coupon, updates)
	}
	if err := tx.Model(&models.Coupon{}).Where("coupon_code = ?", code).Updates(updates).Error; err != nil {
		tx.Rollback()
		return models.Coupon{}, err
	}

	meta := datatypes.JSONMap{"from_status": coupon.Status, "to_status": tr.to}
	for k, v := range extraMeta {
		meta[k] = v
	}
	actorID := actor.ID
	event := models.CouponEvent{
		CouponCode:  code,
		ActorUserID: &actorID,
		EventType:   tr.event,
		Meta:        meta,
	}
	if err := tx.Create(&event).Error; err != nil {
		tx.Rollback()
		return models.Coupon{}, err
	}

	if err := tx.Commit().Error; err != nil {
		return models.Coupon{}, err
	}
	coupon.Status = tr.to
	return coupon, nil
}

// Reserve moves an unused coupon to reserved for a device.
func (s *Service) Reserve(actor models.User, code, udid string) (models.Coupon, error) {
	now := time.Now().UTC()
	actorID := actor.ID
	return s.transition(actor, code, transition{
		to:      models.CouponReserved,
		event:   models.CouponEventReserved,
		allowed: []string{models.CouponUnused},
		apply: func(c *models.Coupon, updates map[string]interface{}) {
			updates["reserved_by_user_id"] = actorID
			updates["reserved_udid"] = udid
			updates["reserved_at"] = now
		},
	}, datatypes.JSONMap{"udid": udid})
}

// Unreserve releases a reserved coupon back to unused.
func (s *Service) Unreserve(actor models.User, code string) (models.Coupon, error) {
	return s.transition(actor, code, transition{
		to:      models.CouponUnused,
		event:   models.CouponEventUnreserved,
		allowed: []string{models.CouponReserved},
		apply: func(c *models.Coupon, updates map[string]interface{}) {
			updates["reserved_by_user_id"] = nil
			updates["reserved_udid"] = ""
			updates["reserved_at"] = nil
		},
	}, nil)
}

// MarkUsed finalizes a reserved coupon. Used is terminal.
func (s *Service) MarkUsed(actor models.User, code, udid string) (models.Coupon, error) {
	now := time.Now().UTC()
	actorID := actor.ID
	return s.transition(actor, code, transition{
		to:      models.CouponUsed,
		event:   models.CouponEventUsed,
		allowed: []string{models.CouponReserved},
		apply: func(c *models.Coupon, updates map[string]interface{}) {
			updates["used_by_user_id"] = actorID
			updates["used_udid"] = udid
			updates["used_at"] = now
		},
	}, datatypes.JSONMap{"udid": udid})
}

// Void cancels an unused or reserved coupon. Used coupons cannot be voided.
func (s *Service) Void(actor models.User, code string) (models.Coupon, error) {
	return s.transition(actor, code, transition{
		to:      models.CouponVoid,
		event:   models.CouponEventVoided,
		allowed: []string{models.CouponUnused, models.CouponReserved},
	}, nil)
}

// MarkFailed annotates a coupon with its last provisioning failure without
// touching the status machine.
func (s *Service) MarkFailed(actor models.User, code, step, reason string) (models.Coupon, error) {
	tx := s.db.Begin()
	if tx.Error != nil {
		return models.Coupon{}, tx.Error
	}
	defer func() {
		if r := recover(); r != nil {
			tx.Rollback()
		}
	}()

	coupon, err := s.lockCoupon(tx, code)
	if err != nil {
		tx.Rollback()
		return models.Coupon{}, err
	}

	now := time.Now().UTC()
	if err := tx.Model(&models.Coupon{}).Where("coupon_code = ?", code).Updates(map[string]interface{}{
		"last_failure_reason": reason,
		"last_failure_step":   step,
		"last_failed_at":      now,
	}).Error; err != nil {
		tx.Rollback()
		return models.Coupon{}, err
	}

	actorID := actor.ID
	event := models.CouponEvent{
		CouponCode:  code,
		ActorUserID: &actorID,
		EventType:   models.CouponEventFailed,
		Meta:        datatypes.JSONMap{"step": step, "reason": reason},
	}
	if err := tx.Create(&event).Error; err != nil {
		tx.Rollback()
		return models.Coupon{}, err
	}
	if err := tx.Commit().Error; err != nil {
		return models.Coupon{}, err
	}
	return coupon, nil
}

// ListScoped returns coupons owned inside the viewer's subtree.
func (s *Service) ListScoped(viewer models.User, status string, limit, offset int) ([]models.Coupon, error) {
	if limit <= 0 {
		limit = 50
	}
	dir := hierarchy.NewDirectory(s.db)
	ids, err := dir.SubtreeIDs(viewer)
	if err != nil {
		return nil, err
	}

	q := s.db.Where("owner_user_id IN ?", ids)
	if status != "" {
		q = q.Where("status = ?", status)
	}
	var rows []models.Coupon
	err = q.Order("created_at desc, id desc").Limit(limit).Offset(offset).Find(&rows).Error
	return rows, err
}

// BucketedEvent is a coupon event with its actor collapsed to the viewer's
// direct-child bucket, so timelines never name users below one hop.
type BucketedEvent struct {
	ID           uint              `json:"id"`
	CreatedAt    time.Time         `json:"created_at"`
	CouponCode   string            `json:"coupon_code"`
	EventType    string            `json:"event_type"`
	BucketUserID *uint             `json:"bucket_user_id"`
	Meta         datatypes.JSONMap `json:"meta"`
}

// EventsForCode returns a coupon's timeline for a viewer, bucketing every
// actor to the viewer's direct child that roots the actor's subtree. Actors
// outside the viewer's subtree appear with no bucket.
func (s *Service) EventsForCode(viewer models.User, code string) ([]BucketedEvent, error) {
	var events []models.CouponEvent
	if err := s.db.Where("coupon_code = ?", code).
		Order("created_at asc, id asc").Find(&events).Error; err != nil {
		return nil, err
	}

	actorIDs := make([]uint, 0, len(events))
	for _, e := range events {
		if e.ActorUserID != nil {
			actorIDs = append(actorIDs, *e.ActorUserID)
		}
	}
	actors := make(map[uint]models.User)
	if len(actorIDs) > 0 {
		var users []models.User
		if err := s.db.Where("id IN ?", actorIDs).Find(&users).Error; err != nil {
			return nil, err
		}
		for _, u := range users {
			actors[u.ID] = u
		}
	}

	out := make([]BucketedEvent, 0, len(events))
	for _, e := range events {
		be := BucketedEvent{
			ID:         e.ID,
			CreatedAt:  e.CreatedAt,
			CouponCode: e.CouponCode,
			EventType:  e.EventType,
			Meta:       e.Meta,
		}
		if e.ActorUserID != nil {
			if actor, ok := actors[*e.ActorUserID]; ok {
				bucket, err := hierarchy.DirectChildBucket(viewer.ID, viewer.Path, actor.ID, actor.Path)
				if err == nil {
					be.BucketUserID = &bucket
				}
			}
		}
		out = append(out, be)
	}
	return out, nil
}
