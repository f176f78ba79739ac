package models

import (
	"time"

	"gorm.io/datatypes"
	"gorm.io/gorm"
)

const (
	CouponUnused   = "unused"
	CouponReserved = "reserved"
	CouponUsed     = "used"
	CouponVoid     = "void"
)

const (
	CouponEventGenerated  = "generated"
	CouponEventReserved   = "reserved"
	CouponEventUnreserved = "unreserved"
	CouponEventUsed       = "used"
	CouponEventVoided     = "voided"
	CouponEventFailed     = "failed"
)

type Coupon struct {
	gorm.Model

	CouponCode string `gorm:"uniqueIndex;size:64;not null" json:"coupon_code"`
	PlanID     uint   `gorm:"index;not null" json:"plan_id"`
	Status     string `gorm:"size:16;index;not null" json:"status"`

	CreatedByUserID *uint `gorm:"index" json:"created_by_user_id"`
	OwnerUserID     *uint `gorm:"index" json:"owner_user_id"`

	ReservedByUserID *uint      `json:"reserved_by_user_id"`
	ReservedUDID     string     `gorm:"size:64" json:"reserved_udid"`
	ReservedAt       *time.Time `json:"reserved_at"`

	UsedByUserID *uint      `json:"used_by_user_id"`
	UsedUDID     string     `gorm:"size:64" json:"used_udid"`
	UsedAt       *time.Time `json:"used_at"`

	LastFailureReason string     `gorm:"size:255" json:"last_failure_reason"`
	LastFailureStep   string     `gorm:"size:64" json:"last_failure_step"`
	LastFailedAt      *time.Time `json:"last_failed_at"`

	Notes string `gorm:"size:255" json:"notes"`
}

// CouponEvent rows form the immutable lifecycle timeline of one coupon.
type CouponEvent struct {
	ID        uint      `gorm:"primaryKey" json:"id"`
	CreatedAt time.Time `json:"created_at"`

	CouponCode  string `gorm:"size:64;index;not null" json:"coupon_code"`
	ActorUserID *uint  `gorm:"index" json:"actor_user_id"`

	EventType string            `gorm:"size:32;not null" json:"event_type"`
	Meta      datatypes.JSONMap `gorm:"type:jsonb" json:"meta"`
}
