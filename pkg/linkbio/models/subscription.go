package models

import "time"

// Plan is a subscription tier
type Plan string

const (
	PlanFree    Plan = "free"
	PlanBasic   Plan = "basic"
	PlanPro     Plan = "pro"
	PlanPremium Plan = "premium"
)

// PlanPrices lists the monthly price of each plan in Pi
var PlanPrices = map[Plan]float64{
	PlanFree:    0,
	PlanBasic:   10,
	PlanPro:     20,
	PlanPremium: 30,
}

// SubscriptionPeriod is the validity window of a newly created subscription
const SubscriptionPeriod = 30 * 24 * time.Hour

// Valid reports whether p is a known plan
func (p Plan) Valid() bool {
	_, ok := PlanPrices[p]
	return ok
}

// Subscription is a profile's plan purchase.
// At most one row per profile is active at a time.
type Subscription struct {
	ID        uint      `gorm:"primarykey" json:"id"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
	ProfileID uint      `gorm:"not null;index" json:"profile_id"`
	PlanName  Plan      `gorm:"type:varchar(20);not null" json:"plan_name"`
	Price     float64   `json:"price"`
	IsActive  bool      `gorm:"index" json:"is_active"`
	StartsAt  time.Time `json:"starts_at"`
	ExpiresAt time.Time `json:"expires_at"`
}

// Key returns the primary key
func (s Subscription) Key() uint { return s.ID }

// OwnerProfile returns the profile id the record belongs to
func (s Subscription) OwnerProfile() uint { return s.ProfileID }

// Current reports whether the subscription is active and inside its validity window
func (s Subscription) Current(now time.Time) bool {
	return s.IsActive && !now.Before(s.StartsAt) && now.Before(s.ExpiresAt)
}
