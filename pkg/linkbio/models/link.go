package models

import (
	"time"

	"gorm.io/gorm"
)

// LinkType tags what a link points at
type LinkType string

const (
	LinkTypeLink    LinkType = "link"
	LinkTypeTip     LinkType = "tip"
	LinkTypeProduct LinkType = "product"
	LinkTypeContact LinkType = "contact"
	LinkTypeSocial  LinkType = "social"
)

// Link is an ordered item shown on a profile page.
// Position is zero-based and dense within a profile.
type Link struct {
	ID          uint           `gorm:"primarykey" json:"id"`
	CreatedAt   time.Time      `json:"created_at"`
	UpdatedAt   time.Time      `json:"updated_at"`
	DeletedAt   gorm.DeletedAt `gorm:"index" json:"-"`
	ProfileID   uint           `gorm:"not null;index" json:"profile_id"`
	Title       string         `gorm:"not null" json:"title"`
	URL         string         `gorm:"not null" json:"url"`
	Icon        string         `json:"icon"`
	Description string         `json:"description"`
	Position    int            `gorm:"not null;default:0;index" json:"position"`
	IsActive    bool           `json:"is_active"`
	ClickCount  uint           `gorm:"default:0" json:"click_count"`
	Type        LinkType       `gorm:"type:varchar(20);default:'link'" json:"type"`
}

// Key returns the primary key
func (l Link) Key() uint { return l.ID }

// OwnerProfile returns the profile id the record belongs to
func (l Link) OwnerProfile() uint { return l.ProfileID }
