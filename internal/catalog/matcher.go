package catalog

import (
	"strconv"
	"strings"

	"github.com/dive-atlas/viewport/internal/catalog/geostore"
	"github.com/dive-atlas/viewport/internal/core/model"
	"github.com/dive-atlas/viewport/internal/filters"
)

// applyFilters keeps the records matching every active filter.
// Unknown keys are ignored rather than rejected.
func applyFilters(recs []geostore.Record, set model.FilterSet) []geostore.Record {
	if set.Len() == 0 {
		return recs
	}
	out := recs[:0:0]
	for _, r := range recs {
		if matches(r, set) {
			out = append(out, r)
		}
	}
	return out
}

func matches(r geostore.Record, set model.FilterSet) bool {
	if v := set.Get(filters.KeySearch); v != "" {
		if !strings.Contains(strings.ToLower(r.Name), strings.ToLower(v)) {
			return false
		}
	}
	if !inRange(r.Rating, set.Get(filters.KeyMinRating), set.Get(filters.KeyMaxRating)) {
		return false
	}
	if !inRange(r.MaxDepth, set.Get(filters.KeyDepthMin), set.Get(filters.KeyDepthMax)) {
		return false
	}
	if !inRange(r.Price, set.Get(filters.KeyMinPrice), set.Get(filters.KeyMaxPrice)) {
		return false
	}
	if v := set.Get(filters.KeyCountry); v != "" && !strings.EqualFold(r.Country, v) {
		return false
	}
	if v := set.Get(filters.KeyRegion); v != "" && !strings.EqualFold(r.Region, v) {
		return false
	}
	if v := set.Get(filters.KeyTripStatus); v != "" && !strings.EqualFold(r.TripStatus, v) {
		return false
	}
	if v := set.Get(filters.KeyDivingCenterID); v != "" {
		if id, err := strconv.ParseInt(v, 10, 64); err == nil && r.DivingCenterID != id {
			return false
		}
	}
	// ISO dates compare lexicographically
	if v := set.Get(filters.KeyDateFrom); v != "" && r.Date != "" && r.Date < v {
		return false
	}
	if v := set.Get(filters.KeyDateTo); v != "" && r.Date != "" && r.Date > v {
		return false
	}
	if !tripWindowOverlaps(r, set.Get(filters.KeyStartDate), set.Get(filters.KeyEndDate)) {
		return false
	}
	if ids := set.List(filters.KeyTagIDs); len(ids) > 0 && !intersects(r.TagIDs, ids) {
		return false
	}
	return true
}

func inRange(v float64, minRaw, maxRaw string) bool {
	if minRaw != "" {
		if f, err := strconv.ParseFloat(minRaw, 64); err == nil && v < f {
			return false
		}
	}
	if maxRaw != "" {
		if f, err := strconv.ParseFloat(maxRaw, 64); err == nil && v > f {
			return false
		}
	}
	return true
}

// tripWindowOverlaps keeps trips whose [StartDate,EndDate] range
// overlaps the requested window.
func tripWindowOverlaps(r geostore.Record, from, to string) bool {
	if from == "" && to == "" {
		return true
	}
	start, end := r.StartDate, r.EndDate
	if start == "" {
		return true
	}
	if end == "" {
		end = start
	}
	if from != "" && end < from {
		return false
	}
	if to != "" && start > to {
		return false
	}
	return true
}

func intersects(have, want []int) bool {
	for _, w := range want {
		for _, h := range have {
			if h == w {
				return true
			}
		}
	}
	return false
}
