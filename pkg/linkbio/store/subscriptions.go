package store

import (
	"context"
	"fmt"

	"gorm.io/gorm"

	"github.com/linkbio/linkbio/pkg/linkbio/changefeed"
	"github.com/linkbio/linkbio/pkg/linkbio/models"
)

// GetActiveSubscription returns the profile's current subscription
func (s *Store) GetActiveSubscription(ctx context.Context, profileID uint) (models.Subscription, error) {
	var sub models.Subscription
	err := s.db.WithContext(ctx).
		Where("profile_id = ? AND is_active = ? AND expires_at > ?", profileID, true, s.now()).
		Order("created_at DESC").
		First(&sub).Error
	if err != nil {
		return models.Subscription{}, classify("get active subscription", err)
	}
	return sub, nil
}

// CreateSubscription switches the profile to plan. In one transaction it
// deactivates the active rows, inserts the new one and updates the profile's
// plan, so at most one subscription is active per profile.
func (s *Store) CreateSubscription(ctx context.Context, profileID uint, plan models.Plan) (models.Subscription, error) {
	const op = "create subscription"
	if !plan.Valid() {
		return models.Subscription{}, newError(KindInvalid, op, fmt.Errorf("unknown plan %q", plan))
	}

	now := s.now()
	sub := models.Subscription{
		ProfileID: profileID,
		PlanName:  plan,
		Price:     models.PlanPrices[plan],
		IsActive:  true,
		StartsAt:  now,
		ExpiresAt: now.Add(models.SubscriptionPeriod),
	}
	var profile models.Profile
	var previous []models.Subscription
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.First(&profile, profileID).Error; err != nil {
			return err
		}
		if err := tx.Where("profile_id = ? AND is_active = ?", profileID, true).Find(&previous).Error; err != nil {
			return err
		}
		if len(previous) > 0 {
			err := tx.Model(&models.Subscription{}).
				Where("profile_id = ? AND is_active = ?", profileID, true).
				Update("is_active", false).Error
			if err != nil {
				return err
			}
		}
		if err := tx.Create(&sub).Error; err != nil {
			return err
		}
		profile.Plan = plan
		return tx.Model(&profile).Update("plan", plan).Error
	})
	if err != nil {
		return models.Subscription{}, classify(op, err)
	}

	changes := make([]change, 0, len(previous)+2)
	for _, p := range previous {
		p.IsActive = false
		changes = append(changes, change{changefeed.TableSubscriptions, changefeed.ActionUpdate, profileID, p, nil})
	}
	changes = append(changes,
		change{changefeed.TableSubscriptions, changefeed.ActionInsert, profileID, sub, nil},
		change{changefeed.TableProfiles, changefeed.ActionUpdate, profileID, profile, nil},
	)
	s.publish(ctx, changes...)
	return sub, nil
}
