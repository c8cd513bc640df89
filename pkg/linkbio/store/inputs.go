package store

import (
	"net/url"
	"regexp"
	"strings"

	"github.com/go-playground/validator/v10"

	"github.com/linkbio/linkbio/pkg/linkbio/models"
)

var usernameRegex = regexp.MustCompile(`^[a-z0-9_]{3,30}$`)

// ReservedUsernames collide with top-level routes
var ReservedUsernames = []string{
	"api", "go", "profile", "health", "assets", "static", "events",
	"admin", "login", "logout", "register", "auth", "dashboard",
}

// ValidUsername reports whether name is a well-formed, unreserved handle
func ValidUsername(name string) bool {
	if !usernameRegex.MatchString(name) {
		return false
	}
	for _, r := range ReservedUsernames {
		if strings.EqualFold(name, r) {
			return false
		}
	}
	return true
}

// ValidHTTPURL reports whether raw is an absolute http or https URL.
// Visitors are redirected to link targets, so other schemes are refused.
func ValidHTTPURL(raw string) bool {
	u, err := url.Parse(raw)
	if err != nil || u.Host == "" {
		return false
	}
	return u.Scheme == "http" || u.Scheme == "https"
}

func newValidator() *validator.Validate {
	v := validator.New(validator.WithRequiredStructEnabled())
	v.RegisterValidation("username", func(fl validator.FieldLevel) bool {
		return ValidUsername(fl.Field().String())
	})
	v.RegisterValidation("httpurl", func(fl validator.FieldLevel) bool {
		return ValidHTTPURL(fl.Field().String())
	})
	return v
}

// Metadata describes the request that produced an analytics event
type Metadata struct {
	Referrer  string
	UserAgent string
	IPAddress string
}

// AccountInput creates an owner account together with its profile
type AccountInput struct {
	Email        string `validate:"required,email"`
	PasswordHash string `validate:"required"`
	Name         string `validate:"required,max=100"`
	Username     string `validate:"required,username"`
}

// ProfileInput creates a profile for an existing user
type ProfileInput struct {
	UserID      uint   `validate:"required"`
	Username    string `validate:"required,username"`
	DisplayName string `validate:"max=100"`
}

// ProfilePatch updates the owner-editable profile fields. Nil fields are left alone.
type ProfilePatch struct {
	DisplayName *string           `json:"display_name" validate:"omitnil,max=100"`
	Bio         *string           `json:"bio" validate:"omitnil,max=500"`
	AvatarURL   *string           `json:"avatar_url" validate:"omitnil,omitempty,httpurl"`
	Theme       *string           `json:"theme" validate:"omitnil,max=32"`
	Template    *string           `json:"template" validate:"omitnil,max=32"`
	SocialLinks map[string]string `json:"social_links" validate:"omitempty,max=20,dive,keys,min=1,max=32,endkeys,httpurl"`
}

// LinkInput creates a link
type LinkInput struct {
	Title       string          `json:"title" validate:"required,max=100"`
	URL         string          `json:"url" validate:"required,httpurl"`
	Icon        string          `json:"icon" validate:"max=64"`
	Description string          `json:"description" validate:"max=500"`
	Type        models.LinkType `json:"type" validate:"omitempty,oneof=link tip product contact social"`
	IsActive    *bool           `json:"is_active"`
}

// LinkPatch updates a link. Nil fields are left alone.
type LinkPatch struct {
	Title       *string          `json:"title" validate:"omitnil,min=1,max=100"`
	URL         *string          `json:"url" validate:"omitnil,httpurl"`
	Icon        *string          `json:"icon" validate:"omitnil,max=64"`
	Description *string          `json:"description" validate:"omitnil,max=500"`
	Type        *models.LinkType `json:"type" validate:"omitnil,oneof=link tip product contact social"`
	IsActive    *bool            `json:"is_active"`
}

// ProductInput creates a product
type ProductInput struct {
	Name        string  `json:"name" validate:"required,max=100"`
	Description string  `json:"description" validate:"max=1000"`
	Price       float64 `json:"price" validate:"gt=0"`
	ImageURL    string  `json:"image_url" validate:"omitempty,httpurl"`
	IsActive    *bool   `json:"is_active"`
}

// ProductPatch updates a product. Nil fields are left alone.
type ProductPatch struct {
	Name        *string  `json:"name" validate:"omitnil,min=1,max=100"`
	Description *string  `json:"description" validate:"omitnil,max=1000"`
	Price       *float64 `json:"price" validate:"omitnil,gt=0"`
	ImageURL    *string  `json:"image_url" validate:"omitnil,omitempty,httpurl"`
	IsActive    *bool    `json:"is_active"`
}

// TipInput sends a tip to a profile
type TipInput struct {
	Amount       float64 `json:"amount" validate:"gt=0"`
	Message      string  `json:"message" validate:"max=280"`
	FromUsername string  `json:"from_username" validate:"max=30"`
}

// OrderInput buys a product
type OrderInput struct {
	BuyerUsername string `json:"buyer_username" validate:"max=30"`
}

// PaymentUpdate advances a tip or order. PaymentID is required when
// approving, TxID when completing.
type PaymentUpdate struct {
	Status    models.PaymentStatus `json:"status" validate:"required,oneof=approved completed cancelled"`
	PaymentID string               `json:"payment_id" validate:"required_if=Status approved,max=128"`
	TxID      string               `json:"txid" validate:"required_if=Status completed,max=128"`
}

func boolOr(p *bool, def bool) bool {
	if p == nil {
		return def
	}
	return *p
}
