// Package cellkey builds result-cache keys from a viewport query.
// The bounding box is mapped to its covering H3 cells at a
// zoom-derived resolution, so near-identical viewports resolve to the
// same key; filters contribute a hash suffix.
package cellkey

import (
	"fmt"
	"sort"
	"strings"

	"github.com/cespare/xxhash/v2"
	h3 "github.com/uber/h3-go/v4"

	"github.com/dive-atlas/viewport/internal/core/model"
	"github.com/dive-atlas/viewport/internal/urlcodec"
)

const (
	resMin = 0
	resMax = 10
)

// ResForZoom maps a map zoom level to an H3 resolution coarse enough
// to keep the covering set small at low zooms.
func ResForZoom(zoom float64) int {
	res := int(model.ClampZoom(zoom))/2 - 1
	if res < resMin {
		return resMin
	}
	if res > resMax {
		return resMax
	}
	return res
}

// Cells returns the sorted unique H3 cells covering a bounding box.
func Cells(bb model.BBox, res int) ([]string, error) {
	outer := h3.GeoLoop{
		{Lat: bb.MinLat, Lng: bb.MinLng},
		{Lat: bb.MinLat, Lng: bb.MaxLng},
		{Lat: bb.MaxLat, Lng: bb.MaxLng},
		{Lat: bb.MaxLat, Lng: bb.MinLng},
	}
	indexes, err := h3.PolygonToCells(h3.GeoPolygon{GeoLoop: outer}, res)
	if err != nil {
		return nil, fmt.Errorf("h3 polyfill: %w", err)
	}
	seen := make(map[string]struct{}, len(indexes))
	out := make([]string, 0, len(indexes))
	for _, idx := range indexes {
		s := idx.String()
		if _, ok := seen[s]; ok {
			continue
		}
		seen[s] = struct{}{}
		out = append(out, s)
	}
	sort.Strings(out)
	return out, nil
}

// Key builds the cache key for a query. Falls back to hashing the raw
// bbox string when the polyfill fails (degenerate boxes at the poles).
func Key(entity model.EntityType, bb model.BBox, zoom float64, set model.FilterSet) string {
	res := ResForZoom(zoom)
	region := bb.String()
	if cells, err := Cells(bb, res); err == nil && len(cells) > 0 {
		region = strings.Join(cells, ",")
	}
	fhash := xxhash.Sum64String(urlcodec.EncodeFilters(set).Encode())
	return fmt.Sprintf("%s:%d:%016x:f=%016x", entity, res, xxhash.Sum64String(region), fhash)
}
