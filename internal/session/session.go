// Package session wires the viewport engine together: URL hydration,
// filter and viewport stores, geolocation, the fetch coordinator and
// the share-link builder, for one map session.
package session

import (
	"context"
	"log/slog"
	"net/url"

	"github.com/dive-atlas/viewport/internal/core/config"
	"github.com/dive-atlas/viewport/internal/core/model"
	"github.com/dive-atlas/viewport/internal/fetch"
	"github.com/dive-atlas/viewport/internal/filters"
	"github.com/dive-atlas/viewport/internal/geoloc"
	"github.com/dive-atlas/viewport/internal/share"
	"github.com/dive-atlas/viewport/internal/source"
	"github.com/dive-atlas/viewport/internal/urlcodec"
	"github.com/dive-atlas/viewport/internal/viewport"
)

// Surface is the external map renderer. It receives whatever the
// fetch coordinator outputs; pan/zoom events flow back in through
// OnMapMove/OnMapBounds.
type Surface interface {
	Render(vp model.Viewport, st fetch.State)
}

type Deps struct {
	Source    source.Interface
	Geo       geoloc.Provider
	Clipboard share.Clipboard
	Surface   Surface
	LiveView  share.LiveView
	Logger    *slog.Logger
}

type Session struct {
	log     *slog.Logger
	cfg     config.Config
	fs      *filters.Store
	vps     *viewport.Store
	geo     *geoloc.Controller
	coord   *fetch.Coordinator
	shr     *share.Builder
	surface Surface

	ctx context.Context
}

func New(cfg config.Config, deps Deps) *Session {
	log := deps.Logger
	if log == nil {
		log = slog.Default()
	}

	s := &Session{
		log:     log,
		cfg:     cfg,
		fs:      filters.NewStore(model.DefaultEntityType),
		vps:     viewport.NewStore(),
		surface: deps.Surface,
		ctx:     context.Background(),
	}
	s.geo = geoloc.New(deps.Geo, s.vps, log)
	s.coord = fetch.New(deps.Source, log,
		fetch.WithDebounce(cfg.DebounceWindow),
		fetch.WithRetry(cfg.RetryMax, cfg.RetryFallback),
		fetch.WithCache(cfg.CacheSize, cfg.CacheTTL),
		fetch.WithOnUpdate(func(st fetch.State) {
			if s.surface != nil {
				s.surface.Render(s.vps.Viewport(), st)
			}
		}),
	)
	s.shr = share.New(cfg.ShareBaseURL, s.vps, s.fs, log)
	if deps.LiveView != nil {
		s.shr.SetLiveView(deps.LiveView)
	}
	if deps.Clipboard != nil {
		s.shr.SetClipboard(deps.Clipboard)
	}
	return s
}

// Start hydrates the session from a query string and issues the
// initial fetch. When the URL carries no explicit viewport, the
// automatic geolocation attempt runs in the background and triggers a
// refetch only if it actually moved the viewport.
func (s *Session) Start(ctx context.Context, rawQuery string) {
	s.ctx = ctx

	q, err := url.ParseQuery(rawQuery)
	if err != nil {
		// malformed URLs degrade to defaults, never fail the session
		s.log.Warn("malformed query string", "err", err)
		q = url.Values{}
	}

	entity := urlcodec.ParseEntity(q)
	s.fs.SwitchEntity(entity)
	s.fs.Replace(urlcodec.ParseFilters(q, entity))

	vp := urlcodec.ParseViewport(q)
	if vp != nil {
		s.vps.Hydrate(*vp)
	}

	s.requestNow()

	if vp == nil && s.cfg.GeoAutoRequest {
		go s.locateAndRefetch(ctx, true)
	}
}

func (s *Session) locateAndRefetch(ctx context.Context, auto bool) {
	before := s.vps.Viewport()
	if auto {
		if !s.geo.MaybeAutoRequest(ctx) {
			return
		}
	} else {
		s.geo.Request(ctx)
	}
	after := s.vps.Viewport()
	if after.Longitude != before.Longitude || after.Latitude != before.Latitude {
		s.requestNow()
	}
}

func (s *Session) params() fetch.Params {
	return fetch.Params{
		Entity:   s.fs.Entity(),
		Viewport: s.vps.Viewport(),
		Filters:  s.fs.Snapshot(),
	}
}

func (s *Session) requestNow() {
	s.coord.Request(s.ctx, s.params())
}

// SetEntityType switches the browsed category, trimming filters that
// are invalid for the new type.
func (s *Session) SetEntityType(t model.EntityType) {
	if removed := s.fs.SwitchEntity(t); len(removed) > 0 {
		s.log.Debug("filters dropped on entity switch", "keys", removed)
	}
	s.requestNow()
}

// SetFilter stores a scalar filter and refetches.
func (s *Session) SetFilter(key, value string) {
	if s.fs.Set(key, value) {
		s.requestNow()
	}
}

// SetSearch stores the free-text search filter. Fetches are debounced
// so rapid keystrokes coalesce into one request.
func (s *Session) SetSearch(text string) {
	if s.fs.Set(filters.KeySearch, text) {
		s.coord.RequestDebounced(s.ctx, s.params())
	}
}

// SetTagIDs stores the tag-id set filter and refetches.
func (s *Session) SetTagIDs(ids []int) {
	if s.fs.SetList(filters.KeyTagIDs, ids) {
		s.requestNow()
	}
}

func (s *Session) ClearFilter(key string) {
	s.fs.Clear(key)
	s.requestNow()
}

// OnMapMove is the map surface's pan/zoom settled callback.
func (s *Session) OnMapMove(lng, lat, zoom float64) {
	s.vps.Set(lng, lat, zoom)
	s.requestNow()
}

// OnMapBounds records exact rendering bounds; the next fetch uses them
// instead of the derived bounding box.
func (s *Session) OnMapBounds(b model.BBox) {
	s.vps.SetBounds(b)
}

// RequestLocation is the explicit user geolocation action, allowed at
// any time.
func (s *Session) RequestLocation() {
	go s.locateAndRefetch(s.ctx, false)
}

// Refetch is the manual retry affordance.
func (s *Session) Refetch() {
	s.coord.Refetch(s.ctx)
}

func (s *Session) ShareURL() string { return s.shr.URL() }

func (s *Session) CopyShareLink() { s.shr.Copy(s.ctx) }

func (s *Session) ShareCopied() bool { return s.shr.Copied() }

func (s *Session) GeoStatus() geoloc.Status { return s.geo.Status() }

func (s *Session) State() fetch.State { return s.coord.State() }

func (s *Session) Entity() model.EntityType { return s.fs.Entity() }

func (s *Session) Viewport() model.Viewport { return s.vps.Viewport() }

func (s *Session) Filters() model.FilterSet { return s.fs.Snapshot() }

func (s *Session) Close() { s.coord.Close() }
