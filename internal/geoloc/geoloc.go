// Package geoloc requests the user's position on demand or
// opportunistically and gates viewport updates to avoid redundant
// re-centers.
package geoloc

import (
	"context"
	"errors"
	"log/slog"
	"sync"

	"github.com/dive-atlas/viewport/internal/observability"
	"github.com/dive-atlas/viewport/internal/viewport"
)

// ErrPermissionDenied is returned by providers when the user refused
// the position request.
var ErrPermissionDenied = errors.New("geolocation permission denied")

type Position struct {
	Latitude  float64
	Longitude float64
}

// Provider is the platform geolocation capability.
type Provider interface {
	// Available reports whether the platform supports geolocation.
	Available() bool
	// Enabled reports whether the capability is currently permitted.
	Enabled() bool
	RequestPosition(ctx context.Context) (Position, error)
}

type Status string

const (
	StatusIdle       Status = "idle"
	StatusRequesting Status = "requesting"
	StatusGranted    Status = "granted"
	StatusDenied     Status = "denied"
	StatusError      Status = "error"
)

// DeriveStatus computes the visible status from its primitive inputs.
// The status is never stored: recomputing it on every read avoids the
// class of bugs where flags disagree with a cached status.
func DeriveStatus(requesting, available, enabled bool, lastErr error, lastPos *Position) Status {
	switch {
	case requesting:
		return StatusRequesting
	case errors.Is(lastErr, ErrPermissionDenied), !available, !enabled:
		return StatusDenied
	case lastErr != nil:
		return StatusError
	case lastPos != nil:
		return StatusGranted
	default:
		return StatusIdle
	}
}

// Controller runs the idle -> requesting -> {granted,denied,error}
// state machine for one session.
type Controller struct {
	provider Provider
	store    *viewport.Store
	log      *slog.Logger

	mu         sync.Mutex
	requesting bool
	autoTried  bool // one-shot guard for the automatic mount request
	lastErr    error
	lastPos    *Position
}

func New(provider Provider, store *viewport.Store, log *slog.Logger) *Controller {
	return &Controller{provider: provider, store: store, log: log}
}

// Status derives the current state machine position.
func (c *Controller) Status() Status {
	c.mu.Lock()
	defer c.mu.Unlock()
	available := c.provider != nil && c.provider.Available()
	enabled := c.provider != nil && c.provider.Enabled()
	return DeriveStatus(c.requesting, available, enabled, c.lastErr, c.lastPos)
}

// LastPosition returns the most recent granted position, if any.
func (c *Controller) LastPosition() *Position {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.lastPos == nil {
		return nil
	}
	p := *c.lastPos
	return &p
}

// MaybeAutoRequest performs the automatic once-per-session position
// request. It runs only when no explicit viewport exists, the platform
// reports the capability available and enabled, and no automatic
// attempt has been made yet. The guard flag is independent of the
// state machine: idle alone cannot distinguish "never tried
// automatically" from "tried and settled".
func (c *Controller) MaybeAutoRequest(ctx context.Context) bool {
	if c.provider == nil || !c.provider.Available() || !c.provider.Enabled() {
		return false
	}
	if c.store.Explicit() {
		return false
	}
	c.mu.Lock()
	if c.autoTried {
		c.mu.Unlock()
		return false
	}
	c.autoTried = true
	c.mu.Unlock()

	c.Request(ctx)
	return true
}

// Request performs an explicit position request. Allowed from any
// state; a retry simply re-enters requesting.
func (c *Controller) Request(ctx context.Context) {
	if c.provider == nil {
		return
	}
	c.mu.Lock()
	if c.requesting {
		c.mu.Unlock()
		return
	}
	c.requesting = true
	c.mu.Unlock()

	pos, err := c.provider.RequestPosition(ctx)

	c.mu.Lock()
	c.requesting = false
	if err != nil {
		c.lastErr = err
		c.mu.Unlock()
		if errors.Is(err, ErrPermissionDenied) {
			observability.IncGeolocation("denied")
		} else {
			observability.IncGeolocation("error")
		}
		c.log.Warn("geolocation request failed", "err", err)
		return
	}
	c.lastErr = nil
	c.lastPos = &pos
	c.mu.Unlock()

	observability.IncGeolocation("granted")
	if c.store.ApplyGeolocation(pos.Longitude, pos.Latitude) {
		c.log.Debug("viewport recentered on geolocation",
			"lat", pos.Latitude, "lng", pos.Longitude)
	}
}
