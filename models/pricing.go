package models

import "time"

// PricingEdge is the contracted unit price a parent charges one direct child
// for one plan. IsOverride marks an edge force-set by root; the margin floor
// was bypassed and sellers may no longer edit it.
type PricingEdge struct {
	ParentUserID uint `gorm:"primaryKey;autoIncrement:false" json:"parent_user_id"`
	ChildUserID  uint `gorm:"primaryKey;autoIncrement:false" json:"child_user_id"`
	PlanID       uint `gorm:"primaryKey;autoIncrement:false" json:"plan_id"`

	PriceCents int64  `gorm:"not null" json:"price_cents"`
	Currency   string `gorm:"size:8;not null;default:USD" json:"currency"`

	IsOverride bool `gorm:"not null;default:false" json:"is_override"`

	UpdatedByUserID uint      `gorm:"not null" json:"updated_by_user_id"`
	UpdatedAt       time.Time `json:"updated_at"`
}

// PlatformBasePrice is the root's own acquisition cost for a plan.
type PlatformBasePrice struct {
	PlanID uint `gorm:"primaryKey;autoIncrement:false" json:"plan_id"`

	BasePriceCents int64  `gorm:"not null" json:"base_price_cents"`
	Currency       string `gorm:"size:8;not null;default:USD" json:"currency"`

	UpdatedByUserID uint      `gorm:"not null" json:"updated_by_user_id"`
	UpdatedAt       time.Time `json:"updated_at"`
}
