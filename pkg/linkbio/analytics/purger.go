package analytics

import (
	"context"
	"time"

	"github.com/rs/zerolog"
)

// Purgeable deletes events recorded before a cutoff
type Purgeable interface {
	PurgeAnalytics(ctx context.Context, before time.Time) (int64, error)
}

// Purger periodically deletes events older than the retention window
type Purger struct {
	store     Purgeable
	retention time.Duration
	interval  time.Duration
	logger    zerolog.Logger
	now       func() time.Time
}

// NewPurger creates a purger. It does nothing until Run is called.
func NewPurger(s Purgeable, retention, interval time.Duration, logger zerolog.Logger) *Purger {
	return &Purger{
		store:     s,
		retention: retention,
		interval:  interval,
		logger:    logger.With().Str("component", "analytics_purger").Logger(),
		now:       time.Now,
	}
}

// PurgeOnce deletes events older than the retention window
func (p *Purger) PurgeOnce(ctx context.Context) (int64, error) {
	cutoff := p.now().Add(-p.retention)
	n, err := p.store.PurgeAnalytics(ctx, cutoff)
	if err != nil {
		p.logger.Error().Err(err).Time("cutoff", cutoff).Msg("analytics purge failed")
		return 0, err
	}
	if n > 0 {
		p.logger.Info().Int64("deleted", n).Time("cutoff", cutoff).Msg("purged analytics events")
	}
	return n, nil
}

// Run purges once immediately and then on every tick until ctx is done
func (p *Purger) Run(ctx context.Context) {
	p.logger.Info().Dur("retention", p.retention).Dur("interval", p.interval).Msg("analytics purger started")
	p.PurgeOnce(ctx)

	ticker := time.NewTicker(p.interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			p.logger.Info().Msg("analytics purger stopped")
			return
		case <-ticker.C:
			p.PurgeOnce(ctx)
		}
	}
}
