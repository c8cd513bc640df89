package store

import (
	"context"
	"fmt"
	"strings"

	"github.com/linkbio/linkbio/pkg/linkbio/models"
)

// GetUserByEmail is used by login
func (s *Store) GetUserByEmail(ctx context.Context, email string) (models.User, error) {
	var u models.User
	err := s.db.WithContext(ctx).Where("email = ?", strings.ToLower(strings.TrimSpace(email))).First(&u).Error
	if err != nil {
		return models.User{}, classify("get user", err)
	}
	return u, nil
}

// GetUserByID loads a user with its profile
func (s *Store) GetUserByID(ctx context.Context, id uint) (models.User, error) {
	var u models.User
	if err := s.db.WithContext(ctx).Preload("Profile").First(&u, id).Error; err != nil {
		return models.User{}, classify("get user", err)
	}
	return u, nil
}

// SetSystemRole changes a user's system-wide role
func (s *Store) SetSystemRole(ctx context.Context, id uint, role models.SystemRole) error {
	const op = "set system role"
	if role != models.SystemRoleAdmin && role != models.SystemRoleUser {
		return newError(KindInvalid, op, fmt.Errorf("unknown role %q", role))
	}
	res := s.db.WithContext(ctx).Model(&models.User{}).Where("id = ?", id).Update("system_role", role)
	if res.Error != nil {
		return classify(op, res.Error)
	}
	if res.RowsAffected == 0 {
		return newError(KindNotFound, op, nil)
	}
	return nil
}
