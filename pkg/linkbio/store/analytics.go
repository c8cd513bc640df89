package store

import (
	"context"
	"time"

	"gorm.io/gorm"

	"github.com/linkbio/linkbio/pkg/linkbio/changefeed"
	"github.com/linkbio/linkbio/pkg/linkbio/models"
)

const topReferrerLimit = 5

// TrackPageView records a visit to a profile page
func (s *Store) TrackPageView(ctx context.Context, profileID uint, md Metadata) error {
	const op = "track page view"
	ev := models.AnalyticsEvent{
		ProfileID: profileID,
		Type:      models.EventPageView,
		Referrer:  md.Referrer,
		UserAgent: md.UserAgent,
		IPAddress: md.IPAddress,
	}
	if err := s.db.WithContext(ctx).Create(&ev).Error; err != nil {
		return classify(op, err)
	}
	s.publish(ctx, change{changefeed.TableAnalytics, changefeed.ActionInsert, profileID, ev, nil})
	return nil
}

// TrackLinkClick records a click and bumps the link's counter. It returns
// the link so the caller can redirect to it.
func (s *Store) TrackLinkClick(ctx context.Context, linkID uint, md Metadata) (models.Link, error) {
	const op = "track link click"
	var link models.Link
	var ev models.AnalyticsEvent
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.First(&link, linkID).Error; err != nil {
			return err
		}
		ev = models.AnalyticsEvent{
			ProfileID: link.ProfileID,
			LinkID:    &link.ID,
			Type:      models.EventLinkClick,
			Referrer:  md.Referrer,
			UserAgent: md.UserAgent,
			IPAddress: md.IPAddress,
		}
		if err := tx.Create(&ev).Error; err != nil {
			return err
		}
		if err := tx.Model(&link).UpdateColumn("click_count", gorm.Expr("click_count + 1")).Error; err != nil {
			return err
		}
		return tx.First(&link, linkID).Error
	})
	if err != nil {
		return models.Link{}, classify(op, err)
	}
	s.publish(ctx,
		change{changefeed.TableAnalytics, changefeed.ActionInsert, link.ProfileID, ev, nil},
		change{changefeed.TableLinks, changefeed.ActionUpdate, link.ProfileID, link, nil},
	)
	return link, nil
}

// GetAnalytics aggregates a profile's events at query time
func (s *Store) GetAnalytics(ctx context.Context, profileID uint) (models.AnalyticsSummary, error) {
	const op = "get analytics"
	db := s.db.WithContext(ctx)
	summary := models.AnalyticsSummary{ClicksByLink: map[uint]int64{}}

	var byType []struct {
		Type  models.EventType
		Count int64
	}
	err := db.Model(&models.AnalyticsEvent{}).
		Select("type, COUNT(*) AS count").
		Where("profile_id = ?", profileID).
		Group("type").
		Scan(&byType).Error
	if err != nil {
		return models.AnalyticsSummary{}, classify(op, err)
	}
	for _, row := range byType {
		switch row.Type {
		case models.EventPageView:
			summary.PageViews = row.Count
		case models.EventLinkClick:
			summary.LinkClicks = row.Count
		}
	}

	var byLink []struct {
		LinkID uint
		Count  int64
	}
	err = db.Model(&models.AnalyticsEvent{}).
		Select("link_id, COUNT(*) AS count").
		Where("profile_id = ? AND type = ? AND link_id IS NOT NULL", profileID, models.EventLinkClick).
		Group("link_id").
		Scan(&byLink).Error
	if err != nil {
		return models.AnalyticsSummary{}, classify(op, err)
	}
	for _, row := range byLink {
		summary.ClicksByLink[row.LinkID] = row.Count
	}

	err = db.Model(&models.AnalyticsEvent{}).
		Select("referrer, COUNT(*) AS count").
		Where("profile_id = ? AND referrer <> ''", profileID).
		Group("referrer").
		Order("count DESC, referrer ASC").
		Limit(topReferrerLimit).
		Scan(&summary.TopReferrers).Error
	if err != nil {
		return models.AnalyticsSummary{}, classify(op, err)
	}
	return summary, nil
}

// PurgeAnalytics deletes events created before the cutoff and returns how many
func (s *Store) PurgeAnalytics(ctx context.Context, before time.Time) (int64, error) {
	res := s.db.WithContext(ctx).Where("created_at < ?", before).Delete(&models.AnalyticsEvent{})
	if res.Error != nil {
		return 0, classify("purge analytics", res.Error)
	}
	return res.RowsAffected, nil
}
