package store

import (
	"context"
	"strings"

	"gorm.io/gorm"

	"github.com/linkbio/linkbio/pkg/linkbio/changefeed"
	"github.com/linkbio/linkbio/pkg/linkbio/models"
)

// GetProfile looks a profile up by its handle
func (s *Store) GetProfile(ctx context.Context, username string) (models.Profile, error) {
	var p models.Profile
	err := s.db.WithContext(ctx).Where("username = ?", strings.ToLower(username)).First(&p).Error
	if err != nil {
		return models.Profile{}, classify("get profile", err)
	}
	return p, nil
}

// GetProfileByID looks a profile up by id
func (s *Store) GetProfileByID(ctx context.Context, id uint) (models.Profile, error) {
	var p models.Profile
	if err := s.db.WithContext(ctx).First(&p, id).Error; err != nil {
		return models.Profile{}, classify("get profile", err)
	}
	return p, nil
}

// GetProfileByUserID returns the profile owned by a user
func (s *Store) GetProfileByUserID(ctx context.Context, userID uint) (models.Profile, error) {
	var p models.Profile
	if err := s.db.WithContext(ctx).Where("user_id = ?", userID).First(&p).Error; err != nil {
		return models.Profile{}, classify("get profile", err)
	}
	return p, nil
}

func newProfile(userID uint, username, displayName string) models.Profile {
	if displayName == "" {
		displayName = username
	}
	return models.Profile{
		UserID:      userID,
		Username:    username,
		DisplayName: displayName,
		Theme:       models.DefaultTheme,
		Template:    models.DefaultTemplate,
		Plan:        models.PlanFree,
		SocialLinks: map[string]string{},
	}
}

// CreateProfile creates the profile of an existing user
func (s *Store) CreateProfile(ctx context.Context, in ProfileInput) (models.Profile, error) {
	const op = "create profile"
	in.Username = strings.ToLower(in.Username)
	if err := s.check(op, in); err != nil {
		return models.Profile{}, err
	}
	p := newProfile(in.UserID, in.Username, in.DisplayName)
	if err := s.db.WithContext(ctx).Create(&p).Error; err != nil {
		return models.Profile{}, classify(op, err)
	}
	s.publish(ctx, change{changefeed.TableProfiles, changefeed.ActionInsert, p.ID, p, nil})
	return p, nil
}

// CreateAccount registers a user and its profile in one transaction
func (s *Store) CreateAccount(ctx context.Context, in AccountInput) (models.User, models.Profile, error) {
	const op = "create account"
	in.Email = strings.ToLower(strings.TrimSpace(in.Email))
	in.Username = strings.ToLower(in.Username)
	if err := s.check(op, in); err != nil {
		return models.User{}, models.Profile{}, err
	}

	user := models.User{
		Email:        in.Email,
		PasswordHash: in.PasswordHash,
		Name:         in.Name,
		SystemRole:   models.SystemRoleUser,
	}
	var profile models.Profile
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Create(&user).Error; err != nil {
			return err
		}
		profile = newProfile(user.ID, in.Username, in.Name)
		return tx.Create(&profile).Error
	})
	if err != nil {
		return models.User{}, models.Profile{}, classify(op, err)
	}
	s.publish(ctx, change{changefeed.TableProfiles, changefeed.ActionInsert, profile.ID, profile, nil})
	return user, profile, nil
}

// UpdateProfile applies an owner patch
func (s *Store) UpdateProfile(ctx context.Context, id uint, patch ProfilePatch) (models.Profile, error) {
	const op = "update profile"
	if err := s.check(op, patch); err != nil {
		return models.Profile{}, err
	}
	var p models.Profile
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.First(&p, id).Error; err != nil {
			return err
		}
		if patch.DisplayName != nil {
			p.DisplayName = *patch.DisplayName
		}
		if patch.Bio != nil {
			p.Bio = *patch.Bio
		}
		if patch.AvatarURL != nil {
			p.AvatarURL = *patch.AvatarURL
		}
		if patch.Theme != nil {
			p.Theme = *patch.Theme
		}
		if patch.Template != nil {
			p.Template = *patch.Template
		}
		if patch.SocialLinks != nil {
			p.SocialLinks = patch.SocialLinks
		}
		return tx.Save(&p).Error
	})
	if err != nil {
		return models.Profile{}, classify(op, err)
	}
	s.publish(ctx, change{changefeed.TableProfiles, changefeed.ActionUpdate, p.ID, p, nil})
	return p, nil
}

// ListProfiles returns a page of profiles, newest first, and the total count
func (s *Store) ListProfiles(ctx context.Context, limit, offset int) ([]models.Profile, int64, error) {
	const op = "list profiles"
	var total int64
	if err := s.db.WithContext(ctx).Model(&models.Profile{}).Count(&total).Error; err != nil {
		return nil, 0, classify(op, err)
	}
	var profiles []models.Profile
	err := s.db.WithContext(ctx).Order("created_at DESC").Limit(limit).Offset(offset).Find(&profiles).Error
	if err != nil {
		return nil, 0, classify(op, err)
	}
	return profiles, total, nil
}

// SetVerified toggles the verification badge
func (s *Store) SetVerified(ctx context.Context, id uint, verified bool) (models.Profile, error) {
	const op = "set verified"
	var p models.Profile
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.First(&p, id).Error; err != nil {
			return err
		}
		p.IsVerified = verified
		return tx.Model(&p).Update("is_verified", verified).Error
	})
	if err != nil {
		return models.Profile{}, classify(op, err)
	}
	s.publish(ctx, change{changefeed.TableProfiles, changefeed.ActionUpdate, p.ID, p, nil})
	return p, nil
}
