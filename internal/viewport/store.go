// Package viewport holds the current map viewport for one session and
// arbitrates between its writers: URL hydration, map-surface pan/zoom
// callbacks, and geolocation.
package viewport

import (
	"math"
	"sync"

	"github.com/dive-atlas/viewport/internal/core/model"
)

// GeoThreshold is the minimum movement, in degrees on either axis,
// for a geolocation result to update the stored viewport. Suppresses
// update loops when the platform delivers near-identical positions.
const GeoThreshold = 0.01

// Store is the single source of truth for the session's viewport.
// Once any explicit viewport exists (from the URL or a user pan),
// geolocation can never silently override it again.
type Store struct {
	mu       sync.Mutex
	vp       model.Viewport
	explicit bool
}

func NewStore() *Store {
	return &Store{vp: model.DefaultViewport()}
}

func (s *Store) Viewport() model.Viewport {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.vp
}

// Explicit reports whether the viewport was set by the URL or the user.
func (s *Store) Explicit() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.explicit
}

// Hydrate installs a viewport parsed from the URL and marks it explicit.
func (s *Store) Hydrate(vp model.Viewport) {
	s.mu.Lock()
	defer s.mu.Unlock()
	vp.Zoom = model.ClampZoom(vp.Zoom)
	s.vp = vp
	s.explicit = true
}

// Set records a pan/zoom reported by the map surface. Previously
// reported bounds are dropped; the surface re-reports them after the
// move settles.
func (s *Store) Set(lng, lat, zoom float64) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.vp = model.Viewport{Longitude: lng, Latitude: lat, Zoom: model.ClampZoom(zoom)}
	s.explicit = true
}

// SetBounds records the exact rendering bounds reported by the surface.
func (s *Store) SetBounds(b model.BBox) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.vp.Bounds = &b
}

// ApplyGeolocation recenters on a granted position, keeping the
// current zoom. It refuses when an explicit viewport already exists,
// or when the movement is within GeoThreshold on both axes.
func (s *Store) ApplyGeolocation(lng, lat float64) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.explicit {
		return false
	}
	if math.Abs(lng-s.vp.Longitude) <= GeoThreshold &&
		math.Abs(lat-s.vp.Latitude) <= GeoThreshold {
		return false
	}
	s.vp = model.Viewport{Longitude: lng, Latitude: lat, Zoom: s.vp.Zoom}
	return true
}
