// Package analytics records page views and link clicks without making the
// caller wait, and purges events older than the retention window.
package analytics

import (
	"context"
	"sync"

	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog"

	"github.com/linkbio/linkbio/pkg/linkbio/models"
	"github.com/linkbio/linkbio/pkg/linkbio/store"
)

// Recorder persists analytics events
type Recorder interface {
	TrackPageView(ctx context.Context, profileID uint, md store.Metadata) error
	TrackLinkClick(ctx context.Context, linkID uint, md store.Metadata) (models.Link, error)
}

// Tracker records events in the background. Failures are logged at warn
// level and never reach the caller.
type Tracker struct {
	rec    Recorder
	logger zerolog.Logger
	wg     sync.WaitGroup
}

// NewTracker creates a tracker writing through rec
func NewTracker(rec Recorder, logger zerolog.Logger) *Tracker {
	return &Tracker{
		rec:    rec,
		logger: logger.With().Str("component", "analytics").Logger(),
	}
}

// PageView records a view of the profile
func (t *Tracker) PageView(ctx context.Context, profileID uint, md store.Metadata) {
	ctx = context.WithoutCancel(ctx)
	t.wg.Add(1)
	go func() {
		defer t.wg.Done()
		if err := t.rec.TrackPageView(ctx, profileID, md); err != nil {
			t.logger.Warn().Err(err).Uint("profile_id", profileID).Msg("failed to track page view")
		}
	}()
}

// LinkClick records a click on the link
func (t *Tracker) LinkClick(ctx context.Context, linkID uint, md store.Metadata) {
	ctx = context.WithoutCancel(ctx)
	t.wg.Add(1)
	go func() {
		defer t.wg.Done()
		if _, err := t.rec.TrackLinkClick(ctx, linkID, md); err != nil {
			t.logger.Warn().Err(err).Uint("link_id", linkID).Msg("failed to track link click")
		}
	}()
}

// Wait blocks until every pending event has been written or has failed
func (t *Tracker) Wait() {
	t.wg.Wait()
}

// MetadataFrom describes the request for an analytics event
func MetadataFrom(c *gin.Context) store.Metadata {
	return store.Metadata{
		Referrer:  c.Request.Referer(),
		UserAgent: c.Request.UserAgent(),
		IPAddress: c.ClientIP(),
	}
}
