package models

import (
	"strings"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

const (
	RoleRoot        = "root"
	RoleReseller    = "reseller"
	RoleSubReseller = "sub_reseller"
)

type User struct {
	gorm.Model

	Username     string `gorm:"uniqueIndex;size:255" json:"username"`
	PasswordHash string `gorm:"size:255" json:"-"`
	Role         string `gorm:"size:32;index" json:"role"`

	ParentID *uint `gorm:"index" json:"parent_id"`

	// Materialized path of u<id> labels, root to self, dot separated.
	// Assigned once at creation, never mutated afterwards.
	Path  string `gorm:"size:1024;index" json:"path"`
	Depth int    `gorm:"not null;default:0" json:"depth"`

	FullName string `gorm:"size:255" json:"full_name"`
	Email    string `gorm:"size:255" json:"email"`
	Phone    string `gorm:"size:32" json:"phone"`
	Country  string `gorm:"size:8" json:"country"`

	IsActive bool `gorm:"default:true" json:"is_active"`
}

func (u *User) IsRoot() bool {
	return u.Role == RoleRoot
}

type Session struct {
	gorm.Model

	SID       string    `gorm:"column:sid;size:36;uniqueIndex;not null"`
	UserID    uint      `gorm:"index"`
	User      User      `gorm:"constraint:OnUpdate:CASCADE,OnDelete:CASCADE"`
	ExpiresAt time.Time `gorm:"index"`
}

func (s *Session) BeforeCreate(tx *gorm.DB) (err error) {
	s.SID = strings.ToLower(uuid.New().String())
	return nil
}
