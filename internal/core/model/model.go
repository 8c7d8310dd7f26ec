// Package model defines core domain types shared across the engine.
package model

import (
	"encoding/json"
	"fmt"
	"math"
	"time"
)

// EntityType selects which content category the map is browsing. It
// governs both the valid filter keys and the fetch endpoint.
type EntityType string

const (
	EntityDiveSites     EntityType = "dive-sites"
	EntityDivingCenters EntityType = "diving-centers"
	EntityDives         EntityType = "dives"
	EntityDiveTrips     EntityType = "dive-trips"
)

// DefaultEntityType is used when the URL carries no type, or an
// unrecognized one.
const DefaultEntityType = EntityDiveSites

func (t EntityType) Valid() bool {
	switch t {
	case EntityDiveSites, EntityDivingCenters, EntityDives, EntityDiveTrips:
		return true
	}
	return false
}

// ParseEntityType returns the parsed type and whether s was recognized.
// Unrecognized input falls back to DefaultEntityType.
func ParseEntityType(s string) (EntityType, bool) {
	t := EntityType(s)
	if t.Valid() {
		return t, true
	}
	return DefaultEntityType, false
}

// BBox is a rectangular geographic region in EPSG:4326 degrees.
type BBox struct {
	MinLng, MinLat float64
	MaxLng, MaxLat float64
}

// String representation matching the catalog bbox query format
func (b BBox) String() string {
	return fmt.Sprintf("%.6f,%.6f,%.6f,%.6f", b.MinLng, b.MinLat, b.MaxLng, b.MaxLat)
}

func (b BBox) Contains(lng, lat float64) bool {
	return lng >= b.MinLng && lng <= b.MaxLng && lat >= b.MinLat && lat <= b.MaxLat
}

// Supported zoom range.
const (
	ZoomMin = 0.0
	ZoomMax = 20.0
)

// DefaultZoom is the world-view zoom used before any location is known.
const DefaultZoom = 2.0

// Viewport is the map's current center coordinate, zoom level and,
// when the map surface has reported them, explicit rendering bounds.
type Viewport struct {
	Longitude float64
	Latitude  float64
	Zoom      float64
	Bounds    *BBox
}

// DefaultViewport returns the world-view sentinel (0,0, zoom 2).
func DefaultViewport() Viewport {
	return Viewport{Longitude: 0, Latitude: 0, Zoom: DefaultZoom}
}

func (v Viewport) IsDefault() bool {
	return v.Longitude == 0 && v.Latitude == 0 && v.Zoom == DefaultZoom && v.Bounds == nil
}

// ClampZoom forces the zoom into the supported range.
func ClampZoom(z float64) float64 {
	return math.Min(ZoomMax, math.Max(ZoomMin, z))
}

// BBox returns the region to query for this viewport: the explicit
// bounds when the map surface supplied them, otherwise a span derived
// from center and zoom (the visible world halves per zoom level).
func (v Viewport) BBox() BBox {
	if v.Bounds != nil {
		return *v.Bounds
	}
	lngSpan := 360.0 / math.Exp2(ClampZoom(v.Zoom))
	latSpan := lngSpan / 2
	return BBox{
		MinLng: math.Max(-180, v.Longitude-lngSpan/2),
		MinLat: math.Max(-90, v.Latitude-latSpan/2),
		MaxLng: math.Min(180, v.Longitude+lngSpan/2),
		MaxLat: math.Min(90, v.Latitude+latSpan/2),
	}
}

// Feature is one renderable map item returned by the data source.
// Raw carries the full entity payload for popups and detail views.
type Feature struct {
	ID        int64           `json:"id"`
	Name      string          `json:"name"`
	Longitude float64         `json:"longitude"`
	Latitude  float64         `json:"latitude"`
	Raw       json.RawMessage `json:"-"`
}

// Page is one fetch result for a (viewport, filters, entity) triple.
type Page struct {
	Features []Feature
	Total    int
}

// PerformanceSnapshot is observational telemetry recomputed on every
// successful fetch. It never drives behavior.
type PerformanceSnapshot struct {
	DataPoints  int
	LoadTime    time.Duration
	MemoryUsage uint64
}
