// Package dashboard owns the signed-in owner's merged view of their profile,
// links, analytics, subscription, products and tips, kept current by direct
// mutations and relay events.
package dashboard

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/rs/zerolog"
	"golang.org/x/sync/errgroup"

	"github.com/linkbio/linkbio/pkg/linkbio/changefeed"
	"github.com/linkbio/linkbio/pkg/linkbio/merge"
	"github.com/linkbio/linkbio/pkg/linkbio/models"
	"github.com/linkbio/linkbio/pkg/linkbio/relay"
	"github.com/linkbio/linkbio/pkg/linkbio/store"
)

// State of an aggregator
type State string

const (
	StateUninitialized State = "uninitialized"
	StateInitializing  State = "initializing"
	StateReady         State = "ready"
	StateError         State = "error"
)

var (
	// ErrNotReady is returned by mutations before a successful Init
	ErrNotReady = &store.Error{Kind: store.KindUnavailable, Op: "dashboard", Err: errors.New("dashboard is not ready")}
	// ErrClosed is returned after Close
	ErrClosed = &store.Error{Kind: store.KindUnavailable, Op: "dashboard", Err: errors.New("dashboard closed")}
)

// Kinds the dashboard listens to
var watchedKinds = []relay.Kind{
	relay.KindProfile,
	relay.KindLink,
	relay.KindAnalytics,
	relay.KindSubscription,
	relay.KindProduct,
	relay.KindTip,
}

// Store is the part of the data access layer the dashboard uses
type Store interface {
	Ping(ctx context.Context) error
	GetProfileByID(ctx context.Context, id uint) (models.Profile, error)
	UpdateProfile(ctx context.Context, id uint, patch store.ProfilePatch) (models.Profile, error)
	ListLinks(ctx context.Context, profileID uint, activeOnly bool) ([]models.Link, error)
	GetLink(ctx context.Context, id uint) (models.Link, error)
	CreateLink(ctx context.Context, profileID uint, in store.LinkInput) (models.Link, error)
	UpdateLink(ctx context.Context, id uint, patch store.LinkPatch) (models.Link, error)
	DeleteLink(ctx context.Context, id uint) (models.Link, error)
	ReorderLinks(ctx context.Context, profileID uint, orderedIDs []uint) error
	GetAnalytics(ctx context.Context, profileID uint) (models.AnalyticsSummary, error)
	GetActiveSubscription(ctx context.Context, profileID uint) (models.Subscription, error)
	CreateSubscription(ctx context.Context, profileID uint, plan models.Plan) (models.Subscription, error)
	ListProducts(ctx context.Context, profileID uint, activeOnly bool) ([]models.Product, error)
	GetProduct(ctx context.Context, id uint) (models.Product, error)
	CreateProduct(ctx context.Context, profileID uint, in store.ProductInput) (models.Product, error)
	UpdateProduct(ctx context.Context, id uint, patch store.ProductPatch) (models.Product, error)
	ListTips(ctx context.Context, profileID uint) ([]models.Tip, error)
}

// Subscriber is the part of the relay the dashboard uses
type Subscriber interface {
	Subscribe(profileID uint, kinds []relay.Kind, l relay.Listener) (*relay.Handle, error)
}

// View is the owner's merged state
type View struct {
	Profile      models.Profile          `json:"profile"`
	Links        []models.Link           `json:"links"`
	Analytics    models.AnalyticsSummary `json:"analytics"`
	Subscription *models.Subscription    `json:"subscription"`
	Products     []models.Product        `json:"products"`
	Tips         []models.Tip            `json:"tips"`
}

func (v View) clone() View {
	out := v
	out.Links = merge.Clone(v.Links)
	out.Products = merge.Clone(v.Products)
	out.Tips = merge.Clone(v.Tips)
	out.Analytics = v.Analytics.Clone()
	if v.Subscription != nil {
		sub := *v.Subscription
		out.Subscription = &sub
	}
	return out
}

// Snapshot is a copy of the aggregator's state at one point in time
type Snapshot struct {
	State State  `json:"state"`
	Error string `json:"error,omitempty"`
	View  View   `json:"view"`
}

type echoKey struct {
	kind relay.Kind
	id   uint
}

// Aggregator is safe for concurrent use. Construct with New.
type Aggregator struct {
	profileID uint
	store     Store
	relay     Subscriber
	notifier  Notifier
	logger    zerolog.Logger

	loadMu sync.Mutex // serializes Init and Refresh

	mu     sync.Mutex
	state  State
	errMsg string
	view   View
	handle *relay.Handle
	echoes map[echoKey]int
	closed bool
}

// New creates an uninitialized aggregator for the owner's profile
func New(profileID uint, s Store, r Subscriber, n Notifier, logger zerolog.Logger) *Aggregator {
	return &Aggregator{
		profileID: profileID,
		store:     s,
		relay:     r,
		notifier:  n,
		logger:    logger.With().Str("component", "dashboard").Uint("profile_id", profileID).Logger(),
		state:     StateUninitialized,
		echoes:    make(map[echoKey]int),
	}
}

// ProfileID returns the owner's profile id
func (a *Aggregator) ProfileID() uint {
	return a.profileID
}

// State returns the current state
func (a *Aggregator) State() State {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.state
}

// Snapshot returns a copy of the state and view
func (a *Aggregator) Snapshot() Snapshot {
	a.mu.Lock()
	defer a.mu.Unlock()
	return Snapshot{State: a.state, Error: a.errMsg, View: a.view.clone()}
}

// Init pings the store, loads everything in parallel and starts listening
// for relay events. On failure the state is StateError and Refresh retries.
func (a *Aggregator) Init(ctx context.Context) error {
	a.loadMu.Lock()
	defer a.loadMu.Unlock()
	return a.initLocked(ctx)
}

// Ensure waits for any Init or Refresh in flight and initializes the
// aggregator if nothing has loaded it yet. It returns with the state at
// ready or error. A failed load is reported to every waiter.
func (a *Aggregator) Ensure(ctx context.Context) error {
	a.loadMu.Lock()
	defer a.loadMu.Unlock()

	a.mu.Lock()
	state, errMsg, closed := a.state, a.errMsg, a.closed
	a.mu.Unlock()
	switch {
	case closed:
		return ErrClosed
	case state == StateUninitialized:
		return a.initLocked(ctx)
	case state == StateError:
		return &store.Error{Kind: store.KindUnavailable, Op: "load dashboard", Err: errors.New(errMsg)}
	}
	return nil
}

func (a *Aggregator) initLocked(ctx context.Context) error {
	a.mu.Lock()
	if a.closed {
		a.mu.Unlock()
		return ErrClosed
	}
	a.state = StateInitializing
	a.errMsg = ""
	a.mu.Unlock()

	view, err := a.load(ctx)

	a.mu.Lock()
	subscribed := a.handle != nil
	a.mu.Unlock()

	var h *relay.Handle
	if err == nil && !subscribed {
		h, err = a.relay.Subscribe(a.profileID, watchedKinds, a.onEvent)
		if err != nil {
			err = &store.Error{Kind: store.KindUnavailable, Op: "subscribe", Err: err}
		}
	}

	a.mu.Lock()
	defer a.mu.Unlock()
	if a.closed {
		if h != nil {
			h.Unsubscribe()
		}
		return ErrClosed
	}
	if h != nil {
		a.handle = h
	}
	if err != nil {
		a.state = StateError
		a.errMsg = err.Error()
		a.logger.Warn().Err(err).Msg("dashboard load failed")
		return err
	}
	a.view = view
	a.state = StateReady
	a.echoes = make(map[echoKey]int)
	return nil
}

// Refresh reloads the view. It is the manual retry after a failed Init.
func (a *Aggregator) Refresh(ctx context.Context) error {
	return a.Init(ctx)
}

// Close stops listening. Later relay events and mutation results are discarded.
func (a *Aggregator) Close() {
	a.mu.Lock()
	a.closed = true
	h := a.handle
	a.handle = nil
	a.mu.Unlock()
	if h != nil {
		h.Unsubscribe()
	}
}

func (a *Aggregator) load(ctx context.Context) (View, error) {
	if err := a.store.Ping(ctx); err != nil {
		return View{}, err
	}

	var v View
	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		p, err := a.store.GetProfileByID(gctx, a.profileID)
		v.Profile = p
		return err
	})
	g.Go(func() error {
		links, err := a.store.ListLinks(gctx, a.profileID, false)
		v.Links = links
		return err
	})
	g.Go(func() error {
		summary, err := a.store.GetAnalytics(gctx, a.profileID)
		v.Analytics = summary
		return err
	})
	g.Go(func() error {
		sub, err := a.store.GetActiveSubscription(gctx, a.profileID)
		if store.IsNotFound(err) {
			return nil
		}
		if err == nil {
			v.Subscription = &sub
		}
		return err
	})
	g.Go(func() error {
		products, err := a.store.ListProducts(gctx, a.profileID, false)
		v.Products = products
		return err
	})
	g.Go(func() error {
		tips, err := a.store.ListTips(gctx, a.profileID)
		v.Tips = tips
		return err
	})
	if err := g.Wait(); err != nil {
		return View{}, err
	}
	return v, nil
}

// onEvent merges a relay event into the view
func (a *Aggregator) onEvent(ev relay.Event) {
	a.mu.Lock()
	defer a.mu.Unlock()
	if a.closed || a.state != StateReady {
		return
	}

	switch e := ev.(type) {
	case relay.ProfileEvent:
		if e.Action == changefeed.ActionUpdate && e.New.ID == a.view.Profile.ID {
			a.view.Profile = e.New
		}
	case relay.LinkEvent:
		if e.Action == changefeed.ActionInsert && a.consumeEcho(relay.KindLink, e.New.ID) {
			return
		}
		a.view.Links = merge.Apply(a.view.Links, e.Action, e.New, e.Old)
		merge.SortLinks(a.view.Links)
	case relay.AnalyticsEvent:
		if e.Action == changefeed.ActionInsert {
			a.view.Analytics.Record(e.New)
		}
	case relay.SubscriptionEvent:
		a.mergeSubscription(e)
	case relay.ProductEvent:
		if e.Action == changefeed.ActionInsert && a.consumeEcho(relay.KindProduct, e.New.ID) {
			return
		}
		a.view.Products = merge.Apply(a.view.Products, e.Action, e.New, e.Old)
	case relay.TipEvent:
		a.view.Tips = merge.Apply(a.view.Tips, e.Action, e.New, e.Old)
	case relay.OrderEvent:
		// orders are not part of the view
	default:
		a.logger.Warn().Str("kind", string(ev.Kind())).Msg("unhandled relay event")
	}
}

func (a *Aggregator) mergeSubscription(e relay.SubscriptionEvent) {
	current := a.view.Subscription
	switch e.Action {
	case changefeed.ActionInsert:
		if e.New.IsActive {
			sub := e.New
			a.view.Subscription = &sub
		}
	case changefeed.ActionUpdate:
		if current == nil || current.ID != e.New.ID {
			return
		}
		if !e.New.IsActive {
			a.view.Subscription = nil
			return
		}
		sub := e.New
		a.view.Subscription = &sub
	case changefeed.ActionDelete:
		if current != nil && current.ID == e.Old.ID {
			a.view.Subscription = nil
		}
	}
}

// consumeEcho reports whether an insert is the relay echo of our own
// mutation. Must hold a.mu.
func (a *Aggregator) consumeEcho(kind relay.Kind, id uint) bool {
	key := echoKey{kind, id}
	n := a.echoes[key]
	if n == 0 {
		return false
	}
	if n == 1 {
		delete(a.echoes, key)
	} else {
		a.echoes[key] = n - 1
	}
	return true
}

// apply runs fn on the view if the aggregator is still live
func (a *Aggregator) apply(fn func(v *View)) {
	a.mu.Lock()
	defer a.mu.Unlock()
	if a.closed || a.state != StateReady {
		return
	}
	fn(&a.view)
}

func (a *Aggregator) ready() error {
	a.mu.Lock()
	defer a.mu.Unlock()
	if a.closed {
		return ErrClosed
	}
	if a.state != StateReady {
		return ErrNotReady
	}
	return nil
}

func (a *Aggregator) notify(level Level, msg string) {
	if a.notifier == nil {
		return
	}
	a.notifier.Notify(Notification{ProfileID: a.profileID, Level: level, Message: msg, At: time.Now()})
}

func (a *Aggregator) fail(action string, err error) error {
	a.notify(LevelError, fmt.Sprintf("Failed to %s: %v", action, err))
	return err
}

// notOwned is returned when a record belongs to another profile. It reads
// as not found so ids of other profiles are not disclosed.
func notOwned(op string, id uint) error {
	return &store.Error{Kind: store.KindNotFound, Op: op, Err: fmt.Errorf("record %d not found", id)}
}

// UpdateProfile patches the owner's profile
func (a *Aggregator) UpdateProfile(ctx context.Context, patch store.ProfilePatch) (models.Profile, error) {
	if err := a.ready(); err != nil {
		return models.Profile{}, err
	}
	p, err := a.store.UpdateProfile(ctx, a.profileID, patch)
	if err != nil {
		return models.Profile{}, a.fail("update profile", err)
	}
	a.apply(func(v *View) { v.Profile = p })
	a.notify(LevelSuccess, "Profile updated")
	return p, nil
}

// SetAvatar points the profile at a newly uploaded avatar
func (a *Aggregator) SetAvatar(ctx context.Context, url string) (models.Profile, error) {
	return a.UpdateProfile(ctx, store.ProfilePatch{AvatarURL: &url})
}

// CreateLink adds a link at the end of the list
func (a *Aggregator) CreateLink(ctx context.Context, in store.LinkInput) (models.Link, error) {
	if err := a.ready(); err != nil {
		return models.Link{}, err
	}
	link, err := a.store.CreateLink(ctx, a.profileID, in)
	if err != nil {
		return models.Link{}, a.fail("create link", err)
	}
	a.apply(func(v *View) {
		// The relay insert may already have been merged
		if out, ok := merge.Update(v.Links, link); ok {
			v.Links = out
			return
		}
		v.Links = merge.Insert(v.Links, link)
		a.echoes[echoKey{relay.KindLink, link.ID}]++
		merge.SortLinks(v.Links)
	})
	a.notify(LevelSuccess, "Link created")
	return link, nil
}

func (a *Aggregator) ownedLink(ctx context.Context, op string, id uint) error {
	link, err := a.store.GetLink(ctx, id)
	if err != nil {
		return err
	}
	if link.ProfileID != a.profileID {
		return notOwned(op, id)
	}
	return nil
}

// UpdateLink patches one of the owner's links
func (a *Aggregator) UpdateLink(ctx context.Context, id uint, patch store.LinkPatch) (models.Link, error) {
	if err := a.ready(); err != nil {
		return models.Link{}, err
	}
	if err := a.ownedLink(ctx, "update link", id); err != nil {
		return models.Link{}, a.fail("update link", err)
	}
	link, err := a.store.UpdateLink(ctx, id, patch)
	if err != nil {
		return models.Link{}, a.fail("update link", err)
	}
	a.apply(func(v *View) {
		v.Links, _ = merge.Update(v.Links, link)
	})
	a.notify(LevelSuccess, "Link updated")
	return link, nil
}

// DeleteLink removes one of the owner's links
func (a *Aggregator) DeleteLink(ctx context.Context, id uint) error {
	if err := a.ready(); err != nil {
		return err
	}
	if err := a.ownedLink(ctx, "delete link", id); err != nil {
		return a.fail("delete link", err)
	}
	link, err := a.store.DeleteLink(ctx, id)
	if err != nil {
		return a.fail("delete link", err)
	}
	a.apply(func(v *View) {
		v.Links, _ = merge.Delete(v.Links, link.ID)
		// Positions of the remaining links were compacted by the store
		for i := range v.Links {
			v.Links[i].Position = i
		}
	})
	a.notify(LevelSuccess, "Link deleted")
	return nil
}

// ReorderLinks stores the new order, then reloads the links
func (a *Aggregator) ReorderLinks(ctx context.Context, orderedIDs []uint) error {
	if err := a.ready(); err != nil {
		return err
	}
	if err := a.store.ReorderLinks(ctx, a.profileID, orderedIDs); err != nil {
		return a.fail("reorder links", err)
	}
	links, err := a.store.ListLinks(ctx, a.profileID, false)
	if err != nil {
		return a.fail("reload links", err)
	}
	a.apply(func(v *View) { v.Links = links })
	a.notify(LevelSuccess, "Links reordered")
	return nil
}

// CreateSubscription switches plan, then reloads the subscription and profile
func (a *Aggregator) CreateSubscription(ctx context.Context, plan models.Plan) (models.Subscription, error) {
	if err := a.ready(); err != nil {
		return models.Subscription{}, err
	}
	sub, err := a.store.CreateSubscription(ctx, a.profileID, plan)
	if err != nil {
		return models.Subscription{}, a.fail("create subscription", err)
	}

	var current *models.Subscription
	active, err := a.store.GetActiveSubscription(ctx, a.profileID)
	switch {
	case err == nil:
		current = &active
	case !store.IsNotFound(err):
		return sub, a.fail("reload subscription", err)
	}
	profile, err := a.store.GetProfileByID(ctx, a.profileID)
	if err != nil {
		return sub, a.fail("reload profile", err)
	}
	a.apply(func(v *View) {
		v.Subscription = current
		v.Profile = profile
	})
	a.notify(LevelSuccess, fmt.Sprintf("Subscribed to the %s plan", plan))
	return sub, nil
}

// CreateProduct adds a product
func (a *Aggregator) CreateProduct(ctx context.Context, in store.ProductInput) (models.Product, error) {
	if err := a.ready(); err != nil {
		return models.Product{}, err
	}
	product, err := a.store.CreateProduct(ctx, a.profileID, in)
	if err != nil {
		return models.Product{}, a.fail("create product", err)
	}
	a.apply(func(v *View) {
		if out, ok := merge.Update(v.Products, product); ok {
			v.Products = out
			return
		}
		v.Products = merge.Insert(v.Products, product)
		a.echoes[echoKey{relay.KindProduct, product.ID}]++
	})
	a.notify(LevelSuccess, "Product created")
	return product, nil
}

// UpdateProduct patches one of the owner's products
func (a *Aggregator) UpdateProduct(ctx context.Context, id uint, patch store.ProductPatch) (models.Product, error) {
	if err := a.ready(); err != nil {
		return models.Product{}, err
	}
	existing, err := a.store.GetProduct(ctx, id)
	if err == nil && existing.ProfileID != a.profileID {
		err = notOwned("update product", id)
	}
	if err != nil {
		return models.Product{}, a.fail("update product", err)
	}
	product, err := a.store.UpdateProduct(ctx, id, patch)
	if err != nil {
		return models.Product{}, a.fail("update product", err)
	}
	a.apply(func(v *View) {
		v.Products, _ = merge.Update(v.Products, product)
	})
	a.notify(LevelSuccess, "Product updated")
	return product, nil
}
