// Package fetch coordinates viewport data fetches: it derives the
// query from (viewport, filters, entity type), tracks loading/error
// state, retries transparently on rate limits, discards stale
// responses, and records performance counters.
package fetch

import (
	"context"
	"log/slog"
	"runtime"
	"sync"
	"time"

	"github.com/hashicorp/golang-lru/v2/expirable"

	"github.com/dive-atlas/viewport/internal/core/model"
	"github.com/dive-atlas/viewport/internal/fetch/cellkey"
	"github.com/dive-atlas/viewport/internal/observability"
	"github.com/dive-atlas/viewport/internal/source"
)

// Params is the triple a fetch is keyed on. A response is applied only
// if the params that produced it are still current (last-request-wins).
type Params struct {
	Entity   model.EntityType
	Viewport model.Viewport
	Filters  model.FilterSet
}

func (p Params) equal(o Params) bool {
	if p.Entity != o.Entity {
		return false
	}
	if p.Viewport.Longitude != o.Viewport.Longitude ||
		p.Viewport.Latitude != o.Viewport.Latitude ||
		p.Viewport.Zoom != o.Viewport.Zoom {
		return false
	}
	return p.Filters.Equal(o.Filters)
}

// State is what the caller renders from.
type State struct {
	Data    model.Page
	Loading bool
	Err     error
	Metrics model.PerformanceSnapshot
}

type Option func(*Coordinator)

func WithDebounce(d time.Duration) Option {
	return func(c *Coordinator) { c.debounce = d }
}

// WithRetry bounds automatic rate-limit retries. The cap exists to
// bound worst-case request storms against a struggling backend.
func WithRetry(maxAttempts int, fallback time.Duration) Option {
	return func(c *Coordinator) {
		c.retryMax = maxAttempts
		c.fallback = fallback
	}
}

// WithCache enables the client-side result cache.
func WithCache(size int, ttl time.Duration) Option {
	return func(c *Coordinator) {
		if size > 0 {
			c.cache = expirable.NewLRU[string, model.Page](size, nil, ttl)
		}
	}
}

// WithOnUpdate registers the render callback invoked on every state
// change. Called outside the coordinator lock.
func WithOnUpdate(fn func(State)) Option {
	return func(c *Coordinator) { c.onUpdate = fn }
}

type Coordinator struct {
	src source.Interface
	log *slog.Logger

	debounce time.Duration
	retryMax int
	fallback time.Duration
	cache    *expirable.LRU[string, model.Page]
	onUpdate func(State)

	mu         sync.Mutex
	gen        uint64 // increments on every parameter change
	params     Params
	hasParams  bool
	attempts   int // automatic rate-limit retries since last reset
	state      State
	closed     bool
	debTimer   *time.Timer
	retryTimer *time.Timer

	now     func() time.Time // for tests
	readMem func() uint64
}

func New(src source.Interface, log *slog.Logger, opts ...Option) *Coordinator {
	c := &Coordinator{
		src:      src,
		log:      log,
		debounce: 400 * time.Millisecond,
		retryMax: 3,
		fallback: 5 * time.Second,
		now:      time.Now,
		readMem:  heapAlloc,
	}
	for _, o := range opts {
		o(c)
	}
	return c
}

func heapAlloc() uint64 {
	var ms runtime.MemStats
	runtime.ReadMemStats(&ms)
	return ms.Alloc
}

// State returns a copy of the current fetch state.
func (c *Coordinator) State() State {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.state
}

// Request starts a fetch immediately, superseding anything in flight.
func (c *Coordinator) Request(ctx context.Context, p Params) {
	c.mu.Lock()
	c.stopDebounceLocked()
	st, publish := c.startLocked(ctx, p, false)
	c.mu.Unlock()
	if publish {
		c.publish(st)
	}
}

// RequestDebounced coalesces rapid successive calls (free-text search
// edits) into one fetch after the debounce window elapses.
func (c *Coordinator) RequestDebounced(ctx context.Context, p Params) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.stopDebounceLocked()
	c.debTimer = time.AfterFunc(c.debounce, func() {
		c.Request(ctx, p)
	})
}

// Refetch re-runs the current parameters against the backend. A manual
// retry resets the automatic rate-limit attempt counter and bypasses
// the result cache.
func (c *Coordinator) Refetch(ctx context.Context) {
	c.mu.Lock()
	if !c.hasParams {
		c.mu.Unlock()
		return
	}
	c.attempts = 0
	st, publish := c.startLocked(ctx, c.params, true)
	c.mu.Unlock()
	if publish {
		c.publish(st)
	}
}

// Close stops any pending timers. A response still in flight cannot
// schedule new work afterwards.
func (c *Coordinator) Close() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.closed = true
	c.stopDebounceLocked()
	if c.retryTimer != nil {
		c.retryTimer.Stop()
		c.retryTimer = nil
	}
}

func (c *Coordinator) stopDebounceLocked() {
	if c.debTimer != nil {
		c.debTimer.Stop()
		c.debTimer = nil
	}
}

// startLocked supersedes the in-flight request and begins a new one.
// Returns the state to publish, if any.
func (c *Coordinator) startLocked(ctx context.Context, p Params, manual bool) (State, bool) {
	if !manual && (!c.hasParams || !p.equal(c.params)) {
		// a new parameter set starts a fresh retry budget
		c.attempts = 0
	}
	if c.retryTimer != nil {
		c.retryTimer.Stop()
		c.retryTimer = nil
	}
	c.gen++
	g := c.gen
	c.params = p
	c.hasParams = true

	bb := p.Viewport.BBox()
	key := cellkey.Key(p.Entity, bb, p.Viewport.Zoom, p.Filters)

	if c.cache != nil && !manual {
		if page, ok := c.cache.Get(key); ok {
			observability.IncCacheHit()
			c.state = State{
				Data: page,
				Metrics: model.PerformanceSnapshot{
					DataPoints:  len(page.Features),
					MemoryUsage: c.readMem(),
				},
			}
			return c.state, true
		}
		observability.IncCacheMiss()
	}

	c.state.Loading = true
	c.state.Err = nil
	go c.run(ctx, g, p, bb, key)
	return c.state, true
}

func (c *Coordinator) run(ctx context.Context, g uint64, p Params, bb model.BBox, key string) {
	start := c.now()
	page, err := c.src.Fetch(ctx, source.Query{Entity: p.Entity, BBox: bb, Filters: p.Filters})
	dur := c.now().Sub(start)

	c.mu.Lock()
	if g != c.gen {
		c.mu.Unlock()
		// parameters changed while in flight: discard, never apply
		observability.IncStaleResponse(string(p.Entity))
		c.log.Debug("stale response discarded", "entity", string(p.Entity))
		return
	}

	if err != nil {
		if hint, ok := source.RetryHint(err); ok {
			observability.ObserveFetch(string(p.Entity), "rate_limited", dur.Seconds())
			if c.closed {
				c.mu.Unlock()
				return
			}
			if c.attempts < c.retryMax {
				c.attempts++
				attempt := c.attempts
				delay := hint
				if delay <= 0 {
					delay = c.fallback
				}
				observability.IncFetchRetry(string(p.Entity))
				// stay in loading state through the backoff
				c.retryTimer = time.AfterFunc(delay, func() {
					c.mu.Lock()
					stale := g != c.gen
					c.mu.Unlock()
					if stale {
						return
					}
					c.run(ctx, g, p, bb, key)
				})
				c.mu.Unlock()
				c.log.Warn("rate limited, retrying",
					"entity", string(p.Entity),
					"attempt", attempt,
					"delay", delay.String())
				return
			}
			// retry cap reached: surface to the caller
			c.state.Loading = false
			c.state.Err = err
			st := c.state
			c.mu.Unlock()
			c.log.Error("rate limited, retry cap reached", "entity", string(p.Entity))
			c.publish(st)
			return
		}

		// non-rate-limit errors surface immediately, no automatic
		// retry, and reset the attempt counter
		c.attempts = 0
		c.state.Loading = false
		c.state.Err = err
		st := c.state
		c.mu.Unlock()
		observability.ObserveFetch(string(p.Entity), "error", dur.Seconds())
		c.log.Error("viewport fetch failed", "entity", string(p.Entity), "err", err)
		c.publish(st)
		return
	}

	c.attempts = 0
	c.state = State{
		Data: page,
		Metrics: model.PerformanceSnapshot{
			DataPoints:  len(page.Features),
			LoadTime:    dur,
			MemoryUsage: c.readMem(),
		},
	}
	if c.cache != nil {
		c.cache.Add(key, page)
	}
	st := c.state
	c.mu.Unlock()

	observability.ObserveFetch(string(p.Entity), "success", dur.Seconds())
	c.log.Debug("viewport fetch done",
		"entity", string(p.Entity),
		"items", len(page.Features),
		"duration", dur.String())
	c.publish(st)
}

func (c *Coordinator) publish(st State) {
	if c.onUpdate != nil {
		c.onUpdate(st)
	}
}
