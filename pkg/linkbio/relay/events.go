package relay

import (
	"encoding/json"
	"fmt"

	"github.com/linkbio/linkbio/pkg/linkbio/changefeed"
	"github.com/linkbio/linkbio/pkg/linkbio/models"
)

// Kind is the entity type a channel carries
type Kind string

const (
	KindProfile      Kind = "profile"
	KindLink         Kind = "link"
	KindAnalytics    Kind = "analytics"
	KindSubscription Kind = "subscription"
	KindProduct      Kind = "product"
	KindTip          Kind = "tip"
	KindOrder        Kind = "order"
)

var kindTables = map[Kind]string{
	KindProfile:      changefeed.TableProfiles,
	KindLink:         changefeed.TableLinks,
	KindAnalytics:    changefeed.TableAnalytics,
	KindSubscription: changefeed.TableSubscriptions,
	KindProduct:      changefeed.TableProducts,
	KindTip:          changefeed.TableTips,
	KindOrder:        changefeed.TableOrders,
}

// Table returns the store table the kind is read from
func (k Kind) Table() string {
	return kindTables[k]
}

// Valid reports whether k is a known kind
func (k Kind) Valid() bool {
	_, ok := kindTables[k]
	return ok
}

// Event is one typed change. The concrete types are ProfileEvent, LinkEvent,
// AnalyticsEvent, SubscriptionEvent, ProductEvent, TipEvent and OrderEvent.
type Event interface {
	Kind() Kind
	ChangeAction() changefeed.Action
	isEvent()
}

type ProfileEvent struct {
	Action changefeed.Action `json:"action"`
	New    models.Profile    `json:"data"`
	Old    models.Profile    `json:"old_data"`
}

type LinkEvent struct {
	Action changefeed.Action `json:"action"`
	New    models.Link       `json:"data"`
	Old    models.Link       `json:"old_data"`
}

type AnalyticsEvent struct {
	Action changefeed.Action     `json:"action"`
	New    models.AnalyticsEvent `json:"data"`
	Old    models.AnalyticsEvent `json:"old_data"`
}

type SubscriptionEvent struct {
	Action changefeed.Action   `json:"action"`
	New    models.Subscription `json:"data"`
	Old    models.Subscription `json:"old_data"`
}

type ProductEvent struct {
	Action changefeed.Action `json:"action"`
	New    models.Product    `json:"data"`
	Old    models.Product    `json:"old_data"`
}

type TipEvent struct {
	Action changefeed.Action `json:"action"`
	New    models.Tip        `json:"data"`
	Old    models.Tip        `json:"old_data"`
}

type OrderEvent struct {
	Action changefeed.Action `json:"action"`
	New    models.Order      `json:"data"`
	Old    models.Order      `json:"old_data"`
}

func (ProfileEvent) Kind() Kind      { return KindProfile }
func (LinkEvent) Kind() Kind         { return KindLink }
func (AnalyticsEvent) Kind() Kind    { return KindAnalytics }
func (SubscriptionEvent) Kind() Kind { return KindSubscription }
func (ProductEvent) Kind() Kind      { return KindProduct }
func (TipEvent) Kind() Kind          { return KindTip }
func (OrderEvent) Kind() Kind        { return KindOrder }

func (e ProfileEvent) ChangeAction() changefeed.Action      { return e.Action }
func (e LinkEvent) ChangeAction() changefeed.Action         { return e.Action }
func (e AnalyticsEvent) ChangeAction() changefeed.Action    { return e.Action }
func (e SubscriptionEvent) ChangeAction() changefeed.Action { return e.Action }
func (e ProductEvent) ChangeAction() changefeed.Action      { return e.Action }
func (e TipEvent) ChangeAction() changefeed.Action          { return e.Action }
func (e OrderEvent) ChangeAction() changefeed.Action        { return e.Action }

func (ProfileEvent) isEvent()      {}
func (LinkEvent) isEvent()         {}
func (AnalyticsEvent) isEvent()    {}
func (SubscriptionEvent) isEvent() {}
func (ProductEvent) isEvent()      {}
func (TipEvent) isEvent()          {}
func (OrderEvent) isEvent()        {}

func rows[T any](c changefeed.Change) (newRow, oldRow T, err error) {
	if len(c.New) > 0 {
		if err = json.Unmarshal(c.New, &newRow); err != nil {
			return newRow, oldRow, fmt.Errorf("decode %s row: %w", c.Table, err)
		}
	}
	if len(c.Old) > 0 {
		if err = json.Unmarshal(c.Old, &oldRow); err != nil {
			return newRow, oldRow, fmt.Errorf("decode old %s row: %w", c.Table, err)
		}
	}
	return newRow, oldRow, nil
}

// Decode turns a raw change into its typed event
func Decode(c changefeed.Change) (Event, error) {
	switch c.Action {
	case changefeed.ActionInsert, changefeed.ActionUpdate, changefeed.ActionDelete:
	default:
		return nil, fmt.Errorf("unknown action %q", c.Action)
	}

	switch c.Table {
	case changefeed.TableProfiles:
		n, o, err := rows[models.Profile](c)
		return ProfileEvent{c.Action, n, o}, err
	case changefeed.TableLinks:
		n, o, err := rows[models.Link](c)
		return LinkEvent{c.Action, n, o}, err
	case changefeed.TableAnalytics:
		n, o, err := rows[models.AnalyticsEvent](c)
		return AnalyticsEvent{c.Action, n, o}, err
	case changefeed.TableSubscriptions:
		n, o, err := rows[models.Subscription](c)
		return SubscriptionEvent{c.Action, n, o}, err
	case changefeed.TableProducts:
		n, o, err := rows[models.Product](c)
		return ProductEvent{c.Action, n, o}, err
	case changefeed.TableTips:
		n, o, err := rows[models.Tip](c)
		return TipEvent{c.Action, n, o}, err
	case changefeed.TableOrders:
		n, o, err := rows[models.Order](c)
		return OrderEvent{c.Action, n, o}, err
	default:
		return nil, fmt.Errorf("unknown table %q", c.Table)
	}
}
