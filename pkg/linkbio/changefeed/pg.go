package changefeed

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/rs/zerolog"
	"gorm.io/gorm"
)

// maxNotifyPayload is the Postgres NOTIFY payload limit
const maxNotifyPayload = 8000

// PGPublisher publishes changes with pg_notify so every server instance
// listening on the channel receives them.
type PGPublisher struct {
	db      *gorm.DB
	channel string
}

// NewPGPublisher creates a publisher writing to channel
func NewPGPublisher(db *gorm.DB, channel string) *PGPublisher {
	return &PGPublisher{db: db, channel: channel}
}

// Publish sends c as a NOTIFY payload
func (p *PGPublisher) Publish(ctx context.Context, c Change) error {
	payload, err := json.Marshal(c)
	if err != nil {
		return fmt.Errorf("encode change: %w", err)
	}
	if len(payload) > maxNotifyPayload {
		return fmt.Errorf("change payload of %d bytes exceeds notify limit", len(payload))
	}
	if err := p.db.WithContext(ctx).Exec("SELECT pg_notify(?, ?)", p.channel, string(payload)).Error; err != nil {
		return fmt.Errorf("pg_notify: %w", err)
	}
	return nil
}

// Listener holds a LISTEN connection and republishes notifications into a Hub.
// A lost connection disconnects the hub subscribers and is re-established after
// a fixed delay.
type Listener struct {
	dsn        string
	channel    string
	hub        *Hub
	retryDelay time.Duration
	logger     zerolog.Logger
}

// NewListener creates a listener for channel
func NewListener(dsn, channel string, hub *Hub, retryDelay time.Duration, logger zerolog.Logger) *Listener {
	return &Listener{
		dsn:        dsn,
		channel:    channel,
		hub:        hub,
		retryDelay: retryDelay,
		logger:     logger.With().Str("component", "changefeed_listener").Logger(),
	}
}

// Run listens until ctx is cancelled
func (l *Listener) Run(ctx context.Context) error {
	for {
		err := l.listen(ctx)
		if ctx.Err() != nil {
			return nil
		}
		l.logger.Warn().Err(err).Dur("retry_in", l.retryDelay).Msg("change listener disconnected")
		l.hub.Disconnect()

		timer := time.NewTimer(l.retryDelay)
		select {
		case <-ctx.Done():
			timer.Stop()
			return nil
		case <-timer.C:
		}
	}
}

func (l *Listener) listen(ctx context.Context) error {
	conn, err := pgx.Connect(ctx, l.dsn)
	if err != nil {
		return fmt.Errorf("connect: %w", err)
	}
	defer conn.Close(context.Background())

	if _, err := conn.Exec(ctx, "LISTEN "+pgx.Identifier{l.channel}.Sanitize()); err != nil {
		return fmt.Errorf("listen: %w", err)
	}
	l.logger.Info().Str("channel", l.channel).Msg("listening for changes")

	for {
		n, err := conn.WaitForNotification(ctx)
		if err != nil {
			return fmt.Errorf("wait for notification: %w", err)
		}
		c, err := Decode([]byte(n.Payload))
		if err != nil {
			l.logger.Warn().Err(err).Msg("skipping malformed notification")
			continue
		}
		if err := l.hub.Publish(ctx, c); err != nil {
			return err
		}
	}
}
