// Package changefeed carries row-level change records from the store to
// in-process subscribers, optionally bridged across instances by Postgres
// LISTEN/NOTIFY.
package changefeed

import (
	"context"
	"encoding/json"
	"fmt"
	"time"
)

// Action is the kind of row change
type Action string

const (
	ActionInsert Action = "insert"
	ActionUpdate Action = "update"
	ActionDelete Action = "delete"
)

// Table names carried in change records
const (
	TableProfiles      = "profiles"
	TableLinks         = "links"
	TableAnalytics     = "analytics_events"
	TableSubscriptions = "subscriptions"
	TableProducts      = "products"
	TableTips          = "tips"
	TableOrders        = "orders"
)

// Change is one committed row change. New holds the row after insert/update,
// Old the row before delete.
type Change struct {
	Table     string          `json:"table"`
	Action    Action          `json:"action"`
	ProfileID uint            `json:"profile_id"`
	New       json.RawMessage `json:"new,omitempty"`
	Old       json.RawMessage `json:"old,omitempty"`
	At        time.Time       `json:"at"`
}

// NewChange encodes the given rows into a change record. Either row may be nil.
func NewChange(table string, action Action, profileID uint, newRow, oldRow any) (Change, error) {
	c := Change{Table: table, Action: action, ProfileID: profileID, At: time.Now().UTC()}
	if newRow != nil {
		b, err := json.Marshal(newRow)
		if err != nil {
			return Change{}, fmt.Errorf("encode new row: %w", err)
		}
		c.New = b
	}
	if oldRow != nil {
		b, err := json.Marshal(oldRow)
		if err != nil {
			return Change{}, fmt.Errorf("encode old row: %w", err)
		}
		c.Old = b
	}
	return c, nil
}

// Decode parses a change record from its wire form
func Decode(payload []byte) (Change, error) {
	var c Change
	if err := json.Unmarshal(payload, &c); err != nil {
		return Change{}, fmt.Errorf("decode change: %w", err)
	}
	if c.Table == "" || c.Action == "" {
		return Change{}, fmt.Errorf("decode change: missing table or action")
	}
	return c, nil
}

// Publisher delivers committed changes to subscribers
type Publisher interface {
	Publish(ctx context.Context, c Change) error
}

// Topic selects changes by table and owning profile. Zero values match anything.
type Topic struct {
	Table     string
	ProfileID uint
}

// Matches reports whether c belongs to the topic
func (t Topic) Matches(c Change) bool {
	if t.Table != "" && t.Table != c.Table {
		return false
	}
	if t.ProfileID != 0 && t.ProfileID != c.ProfileID {
		return false
	}
	return true
}

func (t Topic) String() string {
	return fmt.Sprintf("%s:%d", t.Table, t.ProfileID)
}
