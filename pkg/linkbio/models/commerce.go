package models

import "time"

// PaymentStatus tracks a Pi payment through approval and completion
type PaymentStatus string

const (
	PaymentPending   PaymentStatus = "pending"
	PaymentApproved  PaymentStatus = "approved"
	PaymentCompleted PaymentStatus = "completed"
	PaymentCancelled PaymentStatus = "cancelled"
)

// CanAdvanceTo reports whether the status may move to next.
// pending -> approved -> completed, and pending|approved -> cancelled.
func (s PaymentStatus) CanAdvanceTo(next PaymentStatus) bool {
	switch s {
	case PaymentPending:
		return next == PaymentApproved || next == PaymentCancelled
	case PaymentApproved:
		return next == PaymentCompleted || next == PaymentCancelled
	default:
		return false
	}
}

// Product is something a profile sells for Pi
type Product struct {
	ID          uint      `gorm:"primarykey" json:"id"`
	CreatedAt   time.Time `json:"created_at"`
	UpdatedAt   time.Time `json:"updated_at"`
	ProfileID   uint      `gorm:"not null;index" json:"profile_id"`
	Name        string    `gorm:"not null" json:"name"`
	Description string    `json:"description"`
	Price       float64   `gorm:"not null" json:"price"`
	ImageURL    string    `json:"image_url"`
	IsActive    bool      `json:"is_active"`
}

// Key returns the primary key
func (p Product) Key() uint { return p.ID }

// OwnerProfile returns the profile id the record belongs to
func (p Product) OwnerProfile() uint { return p.ProfileID }

// Tip is a Pi payment sent to a profile
type Tip struct {
	ID           uint          `gorm:"primarykey" json:"id"`
	CreatedAt    time.Time     `json:"created_at"`
	UpdatedAt    time.Time     `json:"updated_at"`
	ProfileID    uint          `gorm:"not null;index" json:"profile_id"`
	Amount       float64       `gorm:"not null" json:"amount"`
	Message      string        `json:"message"`
	FromUsername string        `json:"from_username"`
	Status       PaymentStatus `gorm:"type:varchar(20);not null;default:'pending'" json:"status"`
	PaymentID    string        `gorm:"index" json:"payment_id"`
	TxID         string        `json:"txid"`
}

// Key returns the primary key
func (t Tip) Key() uint { return t.ID }

// OwnerProfile returns the profile id the record belongs to
func (t Tip) OwnerProfile() uint { return t.ProfileID }

// Order is a purchase of a product
type Order struct {
	ID            uint          `gorm:"primarykey" json:"id"`
	CreatedAt     time.Time     `json:"created_at"`
	UpdatedAt     time.Time     `json:"updated_at"`
	ProfileID     uint          `gorm:"not null;index" json:"profile_id"`
	ProductID     uint          `gorm:"not null;index" json:"product_id"`
	BuyerUsername string        `json:"buyer_username"`
	Amount        float64       `gorm:"not null" json:"amount"`
	Status        PaymentStatus `gorm:"type:varchar(20);not null;default:'pending'" json:"status"`
	PaymentID     string        `gorm:"index" json:"payment_id"`
	TxID          string        `json:"txid"`
}

// Key returns the primary key
func (o Order) Key() uint { return o.ID }

// OwnerProfile returns the profile id the record belongs to
func (o Order) OwnerProfile() uint { return o.ProfileID }
