package models

import "time"

// EventType distinguishes page views from link clicks
type EventType string

const (
	EventPageView  EventType = "page_view"
	EventLinkClick EventType = "link_click"
)

// AnalyticsEvent is an append-only fact row. Counts are aggregated at query time.
type AnalyticsEvent struct {
	ID        uint      `gorm:"primarykey" json:"id"`
	CreatedAt time.Time `gorm:"index" json:"created_at"`
	ProfileID uint      `gorm:"not null;index" json:"profile_id"`
	LinkID    *uint     `gorm:"index" json:"link_id,omitempty"`
	Type      EventType `gorm:"type:varchar(20);not null" json:"type"`
	Referrer  string    `json:"referrer"`
	UserAgent string    `json:"user_agent"`
	IPAddress string    `gorm:"size:64" json:"ip_address"`
}

// Key returns the primary key
func (e AnalyticsEvent) Key() uint { return e.ID }

// OwnerProfile returns the profile id the record belongs to
func (e AnalyticsEvent) OwnerProfile() uint { return e.ProfileID }

// ReferrerCount is the number of events sharing a referrer
type ReferrerCount struct {
	Referrer string `json:"referrer"`
	Count    int64  `json:"count"`
}

// AnalyticsSummary is the query-time aggregation of a profile's events
type AnalyticsSummary struct {
	PageViews    int64           `json:"page_views"`
	LinkClicks   int64           `json:"link_clicks"`
	ClicksByLink map[uint]int64  `json:"clicks_by_link"`
	TopReferrers []ReferrerCount `json:"top_referrers"`
}

// Record folds a newly inserted event into the summary.
// Referrer rankings are only refreshed by a reload.
func (s *AnalyticsSummary) Record(e AnalyticsEvent) {
	switch e.Type {
	case EventPageView:
		s.PageViews++
	case EventLinkClick:
		s.LinkClicks++
		if e.LinkID != nil {
			if s.ClicksByLink == nil {
				s.ClicksByLink = make(map[uint]int64)
			}
			s.ClicksByLink[*e.LinkID]++
		}
	}
}

// Clone returns a deep copy
func (s AnalyticsSummary) Clone() AnalyticsSummary {
	out := s
	if s.ClicksByLink != nil {
		out.ClicksByLink = make(map[uint]int64, len(s.ClicksByLink))
		for k, v := range s.ClicksByLink {
			out.ClicksByLink[k] = v
		}
	}
	out.TopReferrers = append([]ReferrerCount(nil), s.TopReferrers...)
	return out
}
