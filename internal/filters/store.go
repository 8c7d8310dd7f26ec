package filters

import (
	"sync"
	"time"

	"github.com/dive-atlas/viewport/internal/core/model"
)

// Trip date-window defaults applied when the user selects dive-trips
// without explicit dates: a rolling window from 14 days back to one
// year forward.
const (
	tripDefaultBack    = 14 * 24 * time.Hour
	tripDefaultForward = 365 * 24 * time.Hour
	dateLayout         = "2006-01-02"
)

// Store is the live filter state for one map session.
type Store struct {
	mu     sync.Mutex
	entity model.EntityType
	set    model.FilterSet

	now func() time.Time // for tests
}

func NewStore(entity model.EntityType) *Store {
	if !entity.Valid() {
		entity = model.DefaultEntityType
	}
	s := &Store{
		entity: entity,
		set:    model.NewFilterSet(),
		now:    time.Now,
	}
	s.applyDefaultsLocked()
	return s
}

// Entity returns the currently selected entity type.
func (s *Store) Entity() model.EntityType {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.entity
}

// Snapshot returns a copy of the active filter set.
func (s *Store) Snapshot() model.FilterSet {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.set.Clone()
}

// Set stores a scalar filter value. Keys invalid for the current
// entity type are rejected.
func (s *Store) Set(key, value string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	if !ValidKey(s.entity, key) {
		return false
	}
	s.set.Set(key, value)
	return true
}

// SetList stores an integer-list filter value.
func (s *Store) SetList(key string, ids []int) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	if !ValidKey(s.entity, key) || !IsListKey(key) {
		return false
	}
	s.set.SetList(key, ids)
	return true
}

func (s *Store) Clear(key string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.set.Delete(key)
}

// Replace swaps in a parsed filter set wholesale (URL hydration).
// Keys invalid for the current entity type are dropped.
func (s *Store) Replace(set model.FilterSet) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.set = set.Clone()
	s.set.Retain(func(k string) bool { return ValidKey(s.entity, k) })
	s.applyDefaultsLocked()
}

// SwitchEntity changes the entity type, destructively trimming keys
// that are not valid for the new type and applying the new type's
// defaults. Returns the keys that were removed.
func (s *Store) SwitchEntity(t model.EntityType) []string {
	s.mu.Lock()
	defer s.mu.Unlock()
	if !t.Valid() || t == s.entity {
		return nil
	}
	s.entity = t
	removed := s.set.Retain(func(k string) bool { return ValidKey(t, k) })
	s.applyDefaultsLocked()
	return removed
}

// applyDefaultsLocked fills type-specific defaults, never overriding
// explicit values.
func (s *Store) applyDefaultsLocked() {
	if s.entity != model.EntityDiveTrips {
		return
	}
	if s.set.Has(KeyStartDate) || s.set.Has(KeyEndDate) {
		return
	}
	now := s.now()
	s.set.Set(KeyStartDate, now.Add(-tripDefaultBack).Format(dateLayout))
	s.set.Set(KeyEndDate, now.Add(tripDefaultForward).Format(dateLayout))
}
