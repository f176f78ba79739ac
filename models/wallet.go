package models

import (
	"time"

	"gorm.io/datatypes"
	"gorm.io/gorm"
)

const (
	EntryPurchaseDebit   = "purchase_debit"
	EntryAdminBaseCredit = "admin_base_credit"
	EntryProfitCredit    = "profit_credit"
	EntryTransferOut     = "transfer_out"
	EntryTransferIn      = "transfer_in"
	EntryTopup           = "topup"
)

// WalletAccount caches the signed sum of a user's ledger rows. It is only
// ever updated inside the same transaction as the ledger insert it reflects.
type WalletAccount struct {
	UserID       uint      `gorm:"primaryKey" json:"user_id"`
	BalanceCents int64     `gorm:"not null;default:0" json:"balance_cents"`
	Currency     string    `gorm:"size:8;not null;default:USD" json:"currency"`
	UpdatedAt    time.Time `json:"updated_at"`
}

// WalletLedger rows are append-only and immutable. Rows sharing a TxID form
// one logical operation; their amounts sum to zero except for topup mints.
type WalletLedger struct {
	ID        uint      `gorm:"primaryKey" json:"id"`
	CreatedAt time.Time `gorm:"index:idx_ledger_user_created" json:"created_at"`

	TxID   string `gorm:"size:36;index;not null" json:"tx_id"`
	UserID uint   `gorm:"index:idx_ledger_user_created;not null" json:"user_id"`

	EntryKind   string `gorm:"size:32;index;not null" json:"entry_kind"`
	AmountCents int64  `gorm:"not null" json:"amount_cents"`
	Currency    string `gorm:"size:8;not null;default:USD" json:"currency"`

	RelatedUserID *uint `gorm:"index" json:"related_user_id"`
	PlanID        *uint `gorm:"index" json:"plan_id"`

	Note string            `gorm:"size:255" json:"note"`
	Meta datatypes.JSONMap `gorm:"type:jsonb" json:"meta"`
}

// Ledger rows must never be updated or deleted through the ORM.
func (l *WalletLedger) BeforeUpdate(tx *gorm.DB) error {
	return gorm.ErrInvalidData
}

func (l *WalletLedger) BeforeDelete(tx *gorm.DB) error {
	return gorm.ErrInvalidData
}
