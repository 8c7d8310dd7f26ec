package geostore

import (
	"context"
	"testing"

	"github.com/alicebob/miniredis/v2"

	"github.com/dive-atlas/viewport/internal/core/model"
)

func newStore(t *testing.T) *Store {
	t.Helper()
	mr := miniredis.RunT(t)
	s, err := New(context.Background(), mr.Addr())
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	t.Cleanup(func() { _ = s.Close() })
	return s
}

func TestNew_RequiresAddress(t *testing.T) {
	if _, err := New(context.Background(), ""); err == nil {
		t.Fatal("expected an error for an empty address")
	}
}

func TestSearch_ExactBoxMembership(t *testing.T) {
	s := newStore(t)
	ctx := context.Background()

	err := s.Add(ctx, model.EntityDiveSites,
		Record{ID: 1, Name: "Anemone City", Longitude: 34.92, Latitude: 27.72},
		Record{ID: 2, Name: "Chrisoula K", Longitude: 34.07, Latitude: 27.34},
		Record{ID: 3, Name: "Nea Kameni", Longitude: 25.40, Latitude: 36.40},
	)
	if err != nil {
		t.Fatalf("Add: %v", err)
	}

	// Red Sea box: covers 1 and 2, excludes the Aegean record even
	// though the covering radius query may return it
	bb := model.BBox{MinLng: 33.5, MinLat: 27.0, MaxLng: 35.5, MaxLat: 28.0}
	recs, err := s.Search(ctx, model.EntityDiveSites, bb, 0)
	if err != nil {
		t.Fatalf("Search: %v", err)
	}
	if len(recs) != 2 {
		t.Fatalf("got %d records, want 2: %+v", len(recs), recs)
	}
	for _, r := range recs {
		if !bb.Contains(r.Longitude, r.Latitude) {
			t.Errorf("record %d (%s) outside the box", r.ID, r.Name)
		}
	}
}

func TestSearch_EntityTypesIsolated(t *testing.T) {
	s := newStore(t)
	ctx := context.Background()

	if err := s.Add(ctx, model.EntityDiveSites, Record{ID: 1, Name: "site", Longitude: 25.0, Latitude: 36.0}); err != nil {
		t.Fatalf("Add: %v", err)
	}
	if err := s.Add(ctx, model.EntityDivingCenters, Record{ID: 1, Name: "center", Longitude: 25.0, Latitude: 36.0}); err != nil {
		t.Fatalf("Add: %v", err)
	}

	bb := model.BBox{MinLng: 24.0, MinLat: 35.0, MaxLng: 26.0, MaxLat: 37.0}
	recs, err := s.Search(ctx, model.EntityDivingCenters, bb, 0)
	if err != nil {
		t.Fatalf("Search: %v", err)
	}
	if len(recs) != 1 || recs[0].Name != "center" {
		t.Fatalf("got %+v, want only the diving center", recs)
	}
}

func TestSearch_Limit(t *testing.T) {
	s := newStore(t)
	ctx := context.Background()

	for i := int64(1); i <= 5; i++ {
		err := s.Add(ctx, model.EntityDives, Record{
			ID:        i,
			Name:      "dive",
			Longitude: 25.0 + float64(i)*0.01,
			Latitude:  36.0,
		})
		if err != nil {
			t.Fatalf("Add %d: %v", i, err)
		}
	}

	bb := model.BBox{MinLng: 24.0, MinLat: 35.0, MaxLng: 26.0, MaxLat: 37.0}
	recs, err := s.Search(ctx, model.EntityDives, bb, 3)
	if err != nil {
		t.Fatalf("Search: %v", err)
	}
	if len(recs) != 3 {
		t.Fatalf("got %d records, want 3", len(recs))
	}
}

func TestSearch_EmptyBoxReturnsNil(t *testing.T) {
	s := newStore(t)
	ctx := context.Background()

	if err := s.Add(ctx, model.EntityDiveSites, Record{ID: 1, Name: "site", Longitude: 25.0, Latitude: 36.0}); err != nil {
		t.Fatalf("Add: %v", err)
	}

	bb := model.BBox{MinLng: -160.0, MinLat: 10.0, MaxLng: -158.0, MaxLat: 12.0}
	recs, err := s.Search(ctx, model.EntityDiveSites, bb, 0)
	if err != nil {
		t.Fatalf("Search: %v", err)
	}
	if recs != nil {
		t.Fatalf("got %+v, want nil", recs)
	}
}

func TestAdd_UpsertsPayload(t *testing.T) {
	s := newStore(t)
	ctx := context.Background()

	r := Record{ID: 7, Name: "old", Longitude: 25.0, Latitude: 36.0}
	if err := s.Add(ctx, model.EntityDiveSites, r); err != nil {
		t.Fatalf("Add: %v", err)
	}
	r.Name = "new"
	r.Rating = 4.5
	if err := s.Add(ctx, model.EntityDiveSites, r); err != nil {
		t.Fatalf("Add again: %v", err)
	}

	n, err := s.Count(ctx, model.EntityDiveSites)
	if err != nil {
		t.Fatalf("Count: %v", err)
	}
	if n != 1 {
		t.Fatalf("count = %d, want 1", n)
	}

	bb := model.BBox{MinLng: 24.0, MinLat: 35.0, MaxLng: 26.0, MaxLat: 37.0}
	recs, err := s.Search(ctx, model.EntityDiveSites, bb, 0)
	if err != nil {
		t.Fatalf("Search: %v", err)
	}
	if len(recs) != 1 || recs[0].Name != "new" || recs[0].Rating != 4.5 {
		t.Fatalf("got %+v, want the updated record", recs)
	}
}
