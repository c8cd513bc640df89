// Package public renders a profile's visitor-facing page and keeps mounted
// pages current with relay events.
package public

import (
	"context"
	"sync"

	"github.com/rs/zerolog"
	"golang.org/x/sync/errgroup"

	"github.com/linkbio/linkbio/pkg/linkbio/changefeed"
	"github.com/linkbio/linkbio/pkg/linkbio/merge"
	"github.com/linkbio/linkbio/pkg/linkbio/models"
	"github.com/linkbio/linkbio/pkg/linkbio/relay"
	"github.com/linkbio/linkbio/pkg/linkbio/store"
)

// State of a mounted page. not_found and error are terminal.
type State string

const (
	StateLoading  State = "loading"
	StateReady    State = "ready"
	StateNotFound State = "not_found"
	StateError    State = "error"
)

var watchedKinds = []relay.Kind{relay.KindProfile, relay.KindLink, relay.KindProduct}

// Store is the read side of the data access layer
type Store interface {
	GetProfile(ctx context.Context, username string) (models.Profile, error)
	ListLinks(ctx context.Context, profileID uint, activeOnly bool) ([]models.Link, error)
	ListProducts(ctx context.Context, profileID uint, activeOnly bool) ([]models.Product, error)
}

// Subscriber is the part of the relay the renderer uses
type Subscriber interface {
	Subscribe(profileID uint, kinds []relay.Kind, l relay.Listener) (*relay.Handle, error)
}

// Tracker records page views without blocking
type Tracker interface {
	PageView(ctx context.Context, profileID uint, md store.Metadata)
}

// Renderer mounts public pages
type Renderer struct {
	store   Store
	relay   Subscriber
	tracker Tracker
	logger  zerolog.Logger
}

// NewRenderer creates a renderer
func NewRenderer(s Store, r Subscriber, t Tracker, logger zerolog.Logger) *Renderer {
	return &Renderer{
		store:   s,
		relay:   r,
		tracker: t,
		logger:  logger.With().Str("component", "public").Logger(),
	}
}

// Mount loads the page for username and records one page view when the
// profile is found. The caller must Close the page.
func (r *Renderer) Mount(ctx context.Context, username string, md store.Metadata) *Page {
	p := r.mount(ctx, username)
	if p.State() == StateReady && r.tracker != nil {
		r.tracker.PageView(ctx, p.profileID(), md)
	}
	return p
}

// Watch loads the page like Mount but records no page view. It backs live
// streams opened by a page that has already been counted.
func (r *Renderer) Watch(ctx context.Context, username string) *Page {
	return r.mount(ctx, username)
}

func (r *Renderer) mount(ctx context.Context, username string) *Page {
	p := &Page{state: StateLoading, updates: make(chan struct{}, 1)}

	profile, err := r.store.GetProfile(ctx, username)
	if err != nil {
		p.fail(err)
		if !store.IsNotFound(err) {
			r.logger.Warn().Err(err).Str("username", username).Msg("failed to load profile")
		}
		return p
	}

	var links []models.Link
	var products []models.Product
	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		var err error
		links, err = r.store.ListLinks(gctx, profile.ID, false)
		return err
	})
	g.Go(func() error {
		var err error
		products, err = r.store.ListProducts(gctx, profile.ID, false)
		return err
	})
	if err := g.Wait(); err != nil {
		r.logger.Warn().Err(err).Str("username", username).Msg("failed to load page")
		p.fail(err)
		return p
	}

	p.mu.Lock()
	p.profile = profile
	p.links = links
	p.products = products
	p.state = StateReady
	p.mu.Unlock()

	h, err := r.relay.Subscribe(profile.ID, watchedKinds, p.onEvent)
	if err != nil {
		// The page still renders, it just will not update live
		r.logger.Warn().Err(err).Uint("profile_id", profile.ID).Msg("failed to subscribe page")
		return p
	}
	p.mu.Lock()
	p.handle = h
	p.mu.Unlock()
	return p
}

// Page is one mounted public page. Safe for concurrent use.
type Page struct {
	mu       sync.Mutex
	state    State
	errMsg   string
	profile  models.Profile
	links    []models.Link
	products []models.Product
	handle   *relay.Handle
	closed   bool
	updates  chan struct{}
}

// View is what a visitor sees: only active links and products
type View struct {
	State    State            `json:"state"`
	Error    string           `json:"error,omitempty"`
	Profile  *models.Profile  `json:"profile,omitempty"`
	Links    []models.Link    `json:"links"`
	Products []models.Product `json:"products"`
}

// State returns the page state
func (p *Page) State() State {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.state
}

func (p *Page) profileID() uint {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.profile.ID
}

// Snapshot returns the visitor view
func (p *Page) Snapshot() View {
	p.mu.Lock()
	defer p.mu.Unlock()
	v := View{State: p.state, Error: p.errMsg, Links: []models.Link{}, Products: []models.Product{}}
	if p.state != StateReady {
		return v
	}
	profile := p.profile
	v.Profile = &profile
	v.Links = merge.ActiveLinks(p.links)
	v.Products = merge.ActiveProducts(p.products)
	return v
}

// Updates signals after each merged relay event. Signals coalesce.
func (p *Page) Updates() <-chan struct{} {
	return p.updates
}

// Close stops listening for relay events
func (p *Page) Close() {
	p.mu.Lock()
	p.closed = true
	h := p.handle
	p.handle = nil
	p.mu.Unlock()
	if h != nil {
		h.Unsubscribe()
	}
}

func (p *Page) fail(err error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if store.IsNotFound(err) {
		p.state = StateNotFound
		return
	}
	p.state = StateError
	p.errMsg = err.Error()
}

func (p *Page) onEvent(ev relay.Event) {
	p.mu.Lock()
	if p.closed || p.state != StateReady {
		p.mu.Unlock()
		return
	}
	switch e := ev.(type) {
	case relay.ProfileEvent:
		if e.Action == changefeed.ActionUpdate && e.New.ID == p.profile.ID {
			p.profile = e.New
		}
	case relay.LinkEvent:
		p.links = merge.Apply(p.links, e.Action, e.New, e.Old)
	case relay.ProductEvent:
		p.products = merge.Apply(p.products, e.Action, e.New, e.Old)
	default:
		p.mu.Unlock()
		return
	}
	p.mu.Unlock()

	select {
	case p.updates <- struct{}{}:
	default:
	}
}
