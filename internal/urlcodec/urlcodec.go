// Package urlcodec maps (entity type, viewport, filter state) to and
// from the query-string representation used both to hydrate a session
// on load and to build shareable links.
package urlcodec

import (
	"fmt"
	"math"
	"net/url"
	"strconv"
	"strings"

	"github.com/dive-atlas/viewport/internal/core/model"
	"github.com/dive-atlas/viewport/internal/filters"
)

// Reserved (non-filter) query keys.
const (
	ParamType = "type"
	ParamLat  = "lat"
	ParamLng  = "lng"
	ParamZoom = "zoom"
)

// ParseEntity reads the entity type, falling back to the default for
// missing or unrecognized values.
func ParseEntity(q url.Values) model.EntityType {
	t, _ := model.ParseEntityType(strings.TrimSpace(q.Get(ParamType)))
	return t
}

// ParseViewport returns nil, not a default object, when any of
// lat/lng/zoom is absent or fails to parse. Callers must treat nil as
// "no explicit viewport requested", which is what triggers automatic
// geolocation. Do not collapse this into default substitution.
func ParseViewport(q url.Values) *model.Viewport {
	lat, ok1 := parseCoord(q.Get(ParamLat), 90)
	lng, ok2 := parseCoord(q.Get(ParamLng), 180)
	zoom, ok3 := parseFloat(q.Get(ParamZoom))
	if !ok1 || !ok2 || !ok3 {
		return nil
	}
	return &model.Viewport{
		Longitude: lng,
		Latitude:  lat,
		Zoom:      model.ClampZoom(zoom),
	}
}

// ParseFilters reads every recognized filter key for the entity type.
// Parsing is permissive: list values are comma-split with non-numeric
// tokens silently dropped, boolean flags accept "true"/"1", and
// anything that ends up empty is omitted entirely.
func ParseFilters(q url.Values, t model.EntityType) model.FilterSet {
	set := model.NewFilterSet()
	for _, key := range filters.KeysFor(t) {
		raw := strings.TrimSpace(q.Get(key))
		if raw == "" {
			continue
		}
		switch {
		case filters.IsListKey(key):
			set.SetList(key, parseIntList(raw))
		case filters.IsBoolKey(key):
			if raw == "true" || raw == "1" {
				set.Set(key, "true")
			}
		default:
			set.Set(key, raw)
		}
	}
	return set
}

// Encode serializes the full session state. Keys with empty values are
// never emitted; lon/lat round to 6 decimal places and zoom to 1.
func Encode(t model.EntityType, vp model.Viewport, set model.FilterSet) url.Values {
	q := EncodeFilters(set)
	q.Set(ParamType, string(t))
	q.Set(ParamLat, fmt.Sprintf("%.6f", vp.Latitude))
	q.Set(ParamLng, fmt.Sprintf("%.6f", vp.Longitude))
	q.Set(ParamZoom, fmt.Sprintf("%.1f", vp.Zoom))
	return q
}

// EncodeFilters serializes only the non-empty filters.
func EncodeFilters(set model.FilterSet) url.Values {
	q := url.Values{}
	for _, key := range set.Keys() {
		if filters.IsListKey(key) {
			ids := set.List(key)
			if len(ids) == 0 {
				continue
			}
			parts := make([]string, len(ids))
			for i, id := range ids {
				parts[i] = strconv.Itoa(id)
			}
			q.Set(key, strings.Join(parts, ","))
			continue
		}
		if v := set.Get(key); v != "" {
			q.Set(key, v)
		}
	}
	return q
}

func parseCoord(s string, limit float64) (float64, bool) {
	f, ok := parseFloat(s)
	if !ok || f < -limit || f > limit {
		return 0, false
	}
	return f, true
}

func parseFloat(s string) (float64, bool) {
	s = strings.TrimSpace(s)
	if s == "" {
		return 0, false
	}
	f, err := strconv.ParseFloat(s, 64)
	if err != nil || math.IsNaN(f) || math.IsInf(f, 0) {
		// ParseFloat accepts "NaN" and "Inf", which are not coordinates
		return 0, false
	}
	return f, true
}

func parseIntList(raw string) []int {
	var out []int
	for tok := range strings.SplitSeq(raw, ",") {
		tok = strings.TrimSpace(tok)
		if tok == "" {
			continue
		}
		if n, err := strconv.Atoi(tok); err == nil {
			out = append(out, n)
		}
	}
	return out
}
