package geoloc

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"sync/atomic"
	"testing"

	"github.com/dive-atlas/viewport/internal/core/model"
	"github.com/dive-atlas/viewport/internal/viewport"
)

type fakeProvider struct {
	available bool
	enabled   bool
	pos       Position
	err       error
	calls     atomic.Int64
}

func (p *fakeProvider) Available() bool { return p.available }
func (p *fakeProvider) Enabled() bool   { return p.enabled }
func (p *fakeProvider) RequestPosition(context.Context) (Position, error) {
	p.calls.Add(1)
	if p.err != nil {
		return Position{}, p.err
	}
	return p.pos, nil
}

func discard() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func TestDeriveStatus(t *testing.T) {
	pos := &Position{Latitude: 37.5, Longitude: 24.0}
	cases := []struct {
		name       string
		requesting bool
		available  bool
		enabled    bool
		lastErr    error
		lastPos    *Position
		want       Status
	}{
		{"idle", false, true, true, nil, nil, StatusIdle},
		{"requesting", true, true, true, nil, nil, StatusRequesting},
		{"requesting wins over position", true, true, true, nil, pos, StatusRequesting},
		{"granted", false, true, true, nil, pos, StatusGranted},
		{"denied by permission error", false, true, true, ErrPermissionDenied, nil, StatusDenied},
		{"denied by capability", false, false, true, nil, nil, StatusDenied},
		{"denied by disabled", false, true, false, nil, nil, StatusDenied},
		{"error", false, true, true, errors.New("gps timeout"), nil, StatusError},
	}
	for _, tc := range cases {
		got := DeriveStatus(tc.requesting, tc.available, tc.enabled, tc.lastErr, tc.lastPos)
		if got != tc.want {
			t.Fatalf("%s: DeriveStatus = %v, want %v", tc.name, got, tc.want)
		}
	}
}

func TestRequest_GrantedUpdatesViewport(t *testing.T) {
	store := viewport.NewStore()
	p := &fakeProvider{available: true, enabled: true, pos: Position{Latitude: 37.5, Longitude: 24.0}}
	c := New(p, store, discard())

	c.Request(context.Background())

	if got := c.Status(); got != StatusGranted {
		t.Fatalf("status = %v", got)
	}
	vp := store.Viewport()
	if vp.Latitude != 37.5 || vp.Longitude != 24.0 {
		t.Fatalf("viewport = %+v", vp)
	}
}

func TestRequest_NonOverrideOfExplicitViewport(t *testing.T) {
	store := viewport.NewStore()
	store.Hydrate(model.Viewport{Longitude: 24.0, Latitude: 37.5, Zoom: 8})
	p := &fakeProvider{available: true, enabled: true, pos: Position{Latitude: 27.2, Longitude: 33.8}}
	c := New(p, store, discard())

	c.Request(context.Background())

	if got := c.Status(); got != StatusGranted {
		t.Fatalf("status = %v", got)
	}
	vp := store.Viewport()
	if vp.Longitude != 24.0 || vp.Latitude != 37.5 {
		t.Fatalf("explicit viewport overridden: %+v", vp)
	}
}

func TestRequest_DeniedLeavesViewportAlone(t *testing.T) {
	store := viewport.NewStore()
	p := &fakeProvider{available: true, enabled: true, err: ErrPermissionDenied}
	c := New(p, store, discard())

	c.Request(context.Background())

	if got := c.Status(); got != StatusDenied {
		t.Fatalf("status = %v", got)
	}
	if !store.Viewport().IsDefault() {
		t.Fatalf("viewport mutated on denial: %+v", store.Viewport())
	}
}

func TestRequest_RetryAfterErrorAllowed(t *testing.T) {
	store := viewport.NewStore()
	p := &fakeProvider{available: true, enabled: true, err: errors.New("gps timeout")}
	c := New(p, store, discard())

	c.Request(context.Background())
	if got := c.Status(); got != StatusError {
		t.Fatalf("status = %v", got)
	}

	p.err = nil
	p.pos = Position{Latitude: 37.5, Longitude: 24.0}
	c.Request(context.Background())
	if got := c.Status(); got != StatusGranted {
		t.Fatalf("status after retry = %v", got)
	}
}

func TestMaybeAutoRequest_OneShot(t *testing.T) {
	store := viewport.NewStore()
	p := &fakeProvider{available: true, enabled: true, pos: Position{Latitude: 37.5, Longitude: 24.0}}
	c := New(p, store, discard())

	if !c.MaybeAutoRequest(context.Background()) {
		t.Fatal("first automatic attempt must run")
	}
	if c.MaybeAutoRequest(context.Background()) {
		t.Fatal("automatic attempt must be one-shot per session")
	}
	if got := p.calls.Load(); got != 1 {
		t.Fatalf("provider called %d times", got)
	}
}

func TestMaybeAutoRequest_SkippedWithExplicitViewport(t *testing.T) {
	store := viewport.NewStore()
	store.Hydrate(model.Viewport{Longitude: 24.0, Latitude: 37.5, Zoom: 8})
	p := &fakeProvider{available: true, enabled: true}
	c := New(p, store, discard())

	if c.MaybeAutoRequest(context.Background()) {
		t.Fatal("auto request must not run with an explicit viewport")
	}
	if p.calls.Load() != 0 {
		t.Fatal("provider must not be called")
	}
}

func TestMaybeAutoRequest_SkippedWhenUnavailable(t *testing.T) {
	store := viewport.NewStore()
	p := &fakeProvider{available: false, enabled: true}
	c := New(p, store, discard())
	if c.MaybeAutoRequest(context.Background()) {
		t.Fatal("auto request must not run without the capability")
	}
}
