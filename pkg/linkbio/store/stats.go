package store

import (
	"context"

	"github.com/linkbio/linkbio/pkg/linkbio/models"
)

// Stats are platform-wide totals for administrators
type Stats struct {
	TotalUsers          int64 `json:"total_users"`
	TotalProfiles       int64 `json:"total_profiles"`
	VerifiedProfiles    int64 `json:"verified_profiles"`
	TotalLinks          int64 `json:"total_links"`
	ActiveLinks         int64 `json:"active_links"`
	TotalClicks         int64 `json:"total_clicks"`
	PageViews           int64 `json:"page_views"`
	ActiveSubscriptions int64 `json:"active_subscriptions"`
	CompletedTips       int64 `json:"completed_tips"`
	CompletedOrders     int64 `json:"completed_orders"`
}

// Stats counts rows across every table
func (s *Store) Stats(ctx context.Context) (Stats, error) {
	var st Stats
	db := s.db.WithContext(ctx)
	now := s.now()

	queries := []func() error{
		func() error { return db.Model(&models.User{}).Count(&st.TotalUsers).Error },
		func() error { return db.Model(&models.Profile{}).Count(&st.TotalProfiles).Error },
		func() error {
			return db.Model(&models.Profile{}).Where("is_verified = ?", true).Count(&st.VerifiedProfiles).Error
		},
		func() error { return db.Model(&models.Link{}).Count(&st.TotalLinks).Error },
		func() error {
			return db.Model(&models.Link{}).Where("is_active = ?", true).Count(&st.ActiveLinks).Error
		},
		func() error {
			return db.Model(&models.Link{}).Select("COALESCE(SUM(click_count), 0)").Scan(&st.TotalClicks).Error
		},
		func() error {
			return db.Model(&models.AnalyticsEvent{}).Where("type = ?", models.EventPageView).Count(&st.PageViews).Error
		},
		func() error {
			return db.Model(&models.Subscription{}).
				Where("is_active = ? AND expires_at > ?", true, now).
				Count(&st.ActiveSubscriptions).Error
		},
		func() error {
			return db.Model(&models.Tip{}).Where("status = ?", models.PaymentCompleted).Count(&st.CompletedTips).Error
		},
		func() error {
			return db.Model(&models.Order{}).Where("status = ?", models.PaymentCompleted).Count(&st.CompletedOrders).Error
		},
	}
	for _, q := range queries {
		if err := q(); err != nil {
			return Stats{}, classify("stats", err)
		}
	}
	return st, nil
}
