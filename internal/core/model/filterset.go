package model

import "sort"

// FilterSet maps filter keys to their active values. Scalar values are
// kept as strings (the query-string representation); list values are
// sets of integer ids. An absent key means "no constraint" — setting a
// key to an empty value removes it, which is the single rule that
// keeps URL round-trips stable.
type FilterSet struct {
	values map[string]string
	lists  map[string][]int
}

func NewFilterSet() FilterSet {
	return FilterSet{
		values: make(map[string]string),
		lists:  make(map[string][]int),
	}
}

func (f *FilterSet) ensure() {
	if f.values == nil {
		f.values = make(map[string]string)
	}
	if f.lists == nil {
		f.lists = make(map[string][]int)
	}
}

// Set stores a scalar value. An empty value clears the key.
func (f *FilterSet) Set(key, value string) {
	f.ensure()
	if value == "" {
		delete(f.values, key)
		return
	}
	f.values[key] = value
}

func (f FilterSet) Get(key string) string {
	return f.values[key]
}

func (f *FilterSet) Has(key string) bool {
	if _, ok := f.values[key]; ok {
		return true
	}
	_, ok := f.lists[key]
	return ok
}

// SetList stores an integer-list value. An empty list clears the key.
func (f *FilterSet) SetList(key string, ids []int) {
	f.ensure()
	if len(ids) == 0 {
		delete(f.lists, key)
		return
	}
	cp := make([]int, len(ids))
	copy(cp, ids)
	sort.Ints(cp)
	f.lists[key] = cp
}

func (f *FilterSet) List(key string) []int {
	return f.lists[key]
}

func (f *FilterSet) Delete(key string) {
	delete(f.values, key)
	delete(f.lists, key)
}

func (f *FilterSet) Len() int {
	return len(f.values) + len(f.lists)
}

// Keys returns all active keys, sorted.
func (f *FilterSet) Keys() []string {
	out := make([]string, 0, f.Len())
	for k := range f.values {
		out = append(out, k)
	}
	for k := range f.lists {
		out = append(out, k)
	}
	sort.Strings(out)
	return out
}

func (f FilterSet) Clone() FilterSet {
	out := NewFilterSet()
	for k, v := range f.values {
		out.values[k] = v
	}
	for k, v := range f.lists {
		cp := make([]int, len(v))
		copy(cp, v)
		out.lists[k] = cp
	}
	return out
}

// Retain drops every key not accepted by valid and reports what was
// removed. Used when the entity type changes so stale constraints
// cannot affect a later fetch under a different type.
func (f *FilterSet) Retain(valid func(key string) bool) []string {
	var removed []string
	for k := range f.values {
		if !valid(k) {
			delete(f.values, k)
			removed = append(removed, k)
		}
	}
	for k := range f.lists {
		if !valid(k) {
			delete(f.lists, k)
			removed = append(removed, k)
		}
	}
	sort.Strings(removed)
	return removed
}

// Equal compares values, not representation.
func (f FilterSet) Equal(other FilterSet) bool {
	if len(f.values) != len(other.values) || len(f.lists) != len(other.lists) {
		return false
	}
	for k, v := range f.values {
		if other.values[k] != v {
			return false
		}
	}
	for k, v := range f.lists {
		ov, ok := other.lists[k]
		if !ok || len(ov) != len(v) {
			return false
		}
		for i := range v {
			if v[i] != ov[i] {
				return false
			}
		}
	}
	return true
}
