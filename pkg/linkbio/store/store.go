// Package store maps profiles, links, analytics, subscriptions and payments
// onto gorm. Every error it returns is a *Error with a closed Kind, and every
// committed write is published to the change stream.
package store

import (
	"context"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/rs/zerolog"
	"gorm.io/gorm"

	"github.com/linkbio/linkbio/pkg/linkbio/changefeed"
)

// Store is the data access layer. Construct one per process with New.
type Store struct {
	db       *gorm.DB
	pub      changefeed.Publisher
	validate *validator.Validate
	logger   zerolog.Logger
	now      func() time.Time
}

// New creates a store. pub may be nil when no one listens for changes.
func New(db *gorm.DB, pub changefeed.Publisher, logger zerolog.Logger) *Store {
	return &Store{
		db:       db,
		pub:      pub,
		validate: newValidator(),
		logger:   logger.With().Str("component", "store").Logger(),
		now:      time.Now,
	}
}

// Ping checks that the database is reachable
func (s *Store) Ping(ctx context.Context) error {
	sqlDB, err := s.db.DB()
	if err != nil {
		return newError(KindUnavailable, "ping", err)
	}
	if err := sqlDB.PingContext(ctx); err != nil {
		return newError(KindUnavailable, "ping", err)
	}
	return nil
}

func (s *Store) check(op string, v any) error {
	if err := s.validate.Struct(v); err != nil {
		return newError(KindInvalid, op, err)
	}
	return nil
}

type change struct {
	table     string
	action    changefeed.Action
	profileID uint
	newRow    any
	oldRow    any
}

// publish announces committed changes. Failures are logged: the write
// already happened and subscribers have no replay anyway.
func (s *Store) publish(ctx context.Context, changes ...change) {
	if s.pub == nil {
		return
	}
	ctx = context.WithoutCancel(ctx)
	for _, ch := range changes {
		c, err := changefeed.NewChange(ch.table, ch.action, ch.profileID, ch.newRow, ch.oldRow)
		if err == nil {
			err = s.pub.Publish(ctx, c)
		}
		if err != nil {
			s.logger.Warn().Err(err).
				Str("table", ch.table).
				Str("action", string(ch.action)).
				Uint("profile_id", ch.profileID).
				Msg("failed to publish change")
		}
	}
}
