package models

import "gorm.io/gorm"

const (
	OrderStatusPaid = "paid"
)

// Order records the commercial facts of one purchase transaction. Its TxID
// matches the ledger rows the purchase produced.
type Order struct {
	gorm.Model

	TxID        string `gorm:"size:36;uniqueIndex;not null" json:"tx_id"`
	BuyerUserID uint   `gorm:"index;not null" json:"buyer_user_id"`
	PlanID      uint   `gorm:"index;not null" json:"plan_id"`

	Quantity       int   `gorm:"not null" json:"quantity"`
	UnitPriceCents int64 `gorm:"not null" json:"unit_price_cents"`
	TotalPaidCents int64 `gorm:"not null" json:"total_paid_cents"`

	Currency string `gorm:"size:8;not null;default:USD" json:"currency"`
	Status   string `gorm:"size:16;not null;default:paid" json:"status"`
}

type OrderItem struct {
	gorm.Model

	OrderID    uint   `gorm:"index;not null" json:"order_id"`
	CouponCode string `gorm:"size:64;uniqueIndex;not null" json:"coupon_code"`
	Serial     string `gorm:"size:64" json:"serial"`
}
