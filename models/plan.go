package models

import (
	"gorm.io/datatypes"
	"gorm.io/gorm"
)

type Plan struct {
	gorm.Model

	Code     string `gorm:"uniqueIndex;size:64" json:"code"`
	Title    string `gorm:"size:255" json:"title"`
	Category string `gorm:"size:32" json:"category"`

	WarrantyDays int  `gorm:"not null;default:0" json:"warranty_days"`
	IsInstant    bool `gorm:"default:true" json:"is_instant"`
	IsActive     bool `gorm:"default:true" json:"is_active"`

	// Opaque parameters forwarded to the provisioning provider.
	ProviderParams datatypes.JSONMap `gorm:"type:jsonb" json:"provider_params"`
}
