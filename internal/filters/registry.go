// Package filters holds the active query criteria for the selected
// entity type: which keys are valid per type, type-specific defaults,
// and the live store mutated by the UI.
package filters

import (
	"github.com/dive-atlas/viewport/internal/core/model"
)

// Query-string filter keys.
const (
	KeySearch         = "search"
	KeyMinRating      = "min_rating"
	KeyMaxRating      = "max_rating"
	KeyCountry        = "country"
	KeyRegion         = "region"
	KeyDateFrom       = "date_from"
	KeyDateTo         = "date_to"
	KeyDepthMin       = "depth_min"
	KeyDepthMax       = "depth_max"
	KeyTagIDs         = "tag_ids"
	KeyMyDives        = "my_dives"
	KeyDivingCenterID = "diving_center_id"
	KeyTripStatus     = "trip_status"
	KeyMinPrice       = "min_price"
	KeyMaxPrice       = "max_price"
	KeyStartDate      = "start_date"
	KeyEndDate        = "end_date"
)

var keysByEntity = map[model.EntityType][]string{
	model.EntityDiveSites: {
		KeySearch, KeyMinRating, KeyMaxRating, KeyCountry, KeyRegion,
		KeyDepthMin, KeyDepthMax, KeyTagIDs,
	},
	model.EntityDivingCenters: {
		KeySearch, KeyMinRating, KeyMaxRating, KeyCountry, KeyRegion,
	},
	model.EntityDives: {
		KeySearch, KeyDateFrom, KeyDateTo, KeyDepthMin, KeyDepthMax,
		KeyTagIDs, KeyMyDives,
	},
	model.EntityDiveTrips: {
		KeySearch, KeyDivingCenterID, KeyTripStatus, KeyMinPrice,
		KeyMaxPrice, KeyStartDate, KeyEndDate,
	},
}

var listKeys = map[string]bool{
	KeyTagIDs: true,
}

var boolKeys = map[string]bool{
	KeyMyDives: true,
}

// KeysFor returns the filter keys valid for an entity type.
func KeysFor(t model.EntityType) []string {
	return keysByEntity[t]
}

// ValidKey reports whether key is accepted for entity type t.
func ValidKey(t model.EntityType, key string) bool {
	for _, k := range keysByEntity[t] {
		if k == key {
			return true
		}
	}
	return false
}

// IsListKey reports whether key carries a comma-joined integer list.
func IsListKey(key string) bool { return listKeys[key] }

// IsBoolKey reports whether key is a boolean flag, emitted only when true.
func IsBoolKey(key string) bool { return boolKeys[key] }
