package models

import (
	"time"
)

// Profile is a user's public identity: the handle, the bio and the owner of links
type Profile struct {
	ID          uint              `gorm:"primarykey" json:"id"`
	CreatedAt   time.Time         `json:"created_at"`
	UpdatedAt   time.Time         `json:"updated_at"`
	UserID      uint              `gorm:"uniqueIndex;not null" json:"user_id"`
	Username    string            `gorm:"uniqueIndex;not null;size:30" json:"username"`
	DisplayName string            `json:"display_name"`
	Bio         string            `json:"bio"`
	AvatarURL   string            `json:"avatar_url"`
	Theme       string            `gorm:"size:32" json:"theme"`
	Template    string            `gorm:"size:32" json:"template"`
	Plan        Plan              `gorm:"type:varchar(20);default:'free'" json:"plan"`
	IsVerified  bool              `json:"is_verified"`
	SocialLinks map[string]string `gorm:"serializer:json;type:text" json:"social_links"`
}

// Key returns the primary key
func (p Profile) Key() uint { return p.ID }

// OwnerProfile returns the profile id the record belongs to
func (p Profile) OwnerProfile() uint { return p.ID }

const (
	DefaultTheme    = "default"
	DefaultTemplate = "classic"
)
