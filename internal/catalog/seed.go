package catalog

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"os"

	"github.com/dive-atlas/viewport/internal/catalog/geostore"
	"github.com/dive-atlas/viewport/internal/core/model"
)

// seedFile maps entity type to its records.
type seedFile map[model.EntityType][]geostore.Record

// Seed loads catalog records from a JSON fixture, or a small built-in
// sample when no file is configured.
func Seed(ctx context.Context, store *geostore.Store, path string, logger *slog.Logger) error {
	var data seedFile
	if path == "" {
		data = builtinSeed()
	} else {
		b, err := os.ReadFile(path)
		if err != nil {
			return fmt.Errorf("read seed file: %w", err)
		}
		if err := json.Unmarshal(b, &data); err != nil {
			return fmt.Errorf("parse seed file: %w", err)
		}
	}

	total := 0
	for entity, recs := range data {
		if !entity.Valid() {
			logger.Warn("seed: skipping unknown entity type", "type", string(entity))
			continue
		}
		if err := store.Add(ctx, entity, recs...); err != nil {
			return fmt.Errorf("seed %s: %w", entity, err)
		}
		total += len(recs)
	}
	logger.Info("catalog seeded", "records", total)
	return nil
}

func builtinSeed() seedFile {
	return seedFile{
		model.EntityDiveSites: {
			{ID: 1, Name: "Chrisoula K Wreck", Longitude: 34.017, Latitude: 27.348, Country: "Egypt", Region: "Red Sea", Rating: 8.7, MaxDepth: 26, TagIDs: []int{1, 4}},
			{ID: 2, Name: "Anemone City", Longitude: 34.955, Latitude: 27.789, Country: "Egypt", Region: "Red Sea", Rating: 7.9, MaxDepth: 18, TagIDs: []int{2}},
			{ID: 3, Name: "Blue Hole Kalymnos", Longitude: 26.983, Latitude: 36.952, Country: "Greece", Region: "Dodecanese", Rating: 8.1, MaxDepth: 32, TagIDs: []int{3}},
			{ID: 4, Name: "Nea Kameni Reef", Longitude: 25.396, Latitude: 36.404, Country: "Greece", Region: "Cyclades", Rating: 7.2, MaxDepth: 21, TagIDs: []int{2, 3}},
		},
		model.EntityDivingCenters: {
			{ID: 11, Name: "Santorini Dive Center", Longitude: 25.431, Latitude: 36.393, Country: "Greece", Region: "Cyclades", Rating: 9.0},
			{ID: 12, Name: "Hurghada Divers", Longitude: 33.812, Latitude: 27.257, Country: "Egypt", Region: "Red Sea", Rating: 8.4},
		},
		model.EntityDives: {
			{ID: 21, Name: "Morning dive, Chrisoula K", Longitude: 34.017, Latitude: 27.348, Date: "2025-07-14", MaxDepth: 24.5, TagIDs: []int{1}},
			{ID: 22, Name: "Night dive, Anemone City", Longitude: 34.955, Latitude: 27.789, Date: "2025-08-02", MaxDepth: 16.0, TagIDs: []int{2}},
		},
		model.EntityDiveTrips: {
			{ID: 31, Name: "Red Sea liveaboard", Longitude: 33.812, Latitude: 27.257, DivingCenterID: 12, TripStatus: "scheduled", Price: 1250, StartDate: "2025-09-20", EndDate: "2025-09-27"},
			{ID: 32, Name: "Cyclades weekend", Longitude: 25.431, Latitude: 36.393, DivingCenterID: 11, TripStatus: "scheduled", Price: 380, StartDate: "2025-09-06", EndDate: "2025-09-07"},
		},
	}
}
