// Package geostore persists catalog entities in Redis: a geo set per
// entity type for bounding-box lookups plus a hash holding the full
// record payloads.
package geostore

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"math"
	"strconv"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/dive-atlas/viewport/internal/core/model"
)

// Record is one catalog entity. Entity-specific fields stay zero for
// types they do not apply to and are omitted from the wire format.
type Record struct {
	ID        int64   `json:"id"`
	Name      string  `json:"name"`
	Longitude float64 `json:"longitude"`
	Latitude  float64 `json:"latitude"`

	Country  string  `json:"country,omitempty"`
	Region   string  `json:"region,omitempty"`
	Rating   float64 `json:"rating,omitempty"`
	MaxDepth float64 `json:"max_depth,omitempty"`
	TagIDs   []int   `json:"tag_ids,omitempty"`
	Date     string  `json:"date,omitempty"`

	DivingCenterID int64   `json:"diving_center_id,omitempty"`
	TripStatus     string  `json:"trip_status,omitempty"`
	Price          float64 `json:"price,omitempty"`
	StartDate      string  `json:"start_date,omitempty"`
	EndDate        string  `json:"end_date,omitempty"`
}

type Option func(*redis.Options)

func WithDialTimeout(d time.Duration) Option {
	return func(o *redis.Options) { o.DialTimeout = d }
}

type Store struct {
	rdb *redis.Client
}

func New(ctx context.Context, addr string, opts ...Option) (*Store, error) {
	if addr == "" {
		return nil, errors.New("redis address is required")
	}
	ro := &redis.Options{
		Addr:         addr,
		PoolSize:     32,
		MinIdleConns: 2,
		DialTimeout:  2 * time.Second,
		ReadTimeout:  time.Second,
		WriteTimeout: time.Second,
	}
	for _, f := range opts {
		f(ro)
	}
	rdb := redis.NewClient(ro)
	if err := rdb.Ping(ctx).Err(); err != nil {
		_ = rdb.Close()
		return nil, fmt.Errorf("redis ping: %w", err)
	}
	return &Store{rdb: rdb}, nil
}

func geoKey(t model.EntityType) string { return "catalog:geo:" + string(t) }
func recKey(t model.EntityType) string { return "catalog:rec:" + string(t) }

// Add upserts records for one entity type.
func (s *Store) Add(ctx context.Context, t model.EntityType, recs ...Record) error {
	if len(recs) == 0 {
		return nil
	}
	_, err := s.rdb.Pipelined(ctx, func(p redis.Pipeliner) error {
		for _, r := range recs {
			b, err := json.Marshal(r)
			if err != nil {
				return fmt.Errorf("marshal record %d: %w", r.ID, err)
			}
			member := strconv.FormatInt(r.ID, 10)
			if err := p.GeoAdd(ctx, geoKey(t), &redis.GeoLocation{
				Name:      member,
				Longitude: r.Longitude,
				Latitude:  r.Latitude,
			}).Err(); err != nil {
				return fmt.Errorf("geoadd %d: %w", r.ID, err)
			}
			if err := p.HSet(ctx, recKey(t), member, b).Err(); err != nil {
				return fmt.Errorf("hset %d: %w", r.ID, err)
			}
		}
		return nil
	})
	if err != nil {
		return fmt.Errorf("store %d records: %w", len(recs), err)
	}
	return nil
}

// Search returns the records inside a bounding box. Redis answers a
// covering radius query around the box center; exact box membership
// is enforced here.
func (s *Store) Search(ctx context.Context, t model.EntityType, bb model.BBox, limit int) ([]Record, error) {
	clng := (bb.MinLng + bb.MaxLng) / 2
	clat := (bb.MinLat + bb.MaxLat) / 2
	radius := haversineKM(clat, clng, bb.MaxLat, bb.MaxLng) * 1.05
	if radius <= 0 {
		radius = 0.1
	}

	locs, err := s.rdb.GeoRadius(ctx, geoKey(t), clng, clat, &redis.GeoRadiusQuery{
		Radius:    radius,
		Unit:      "km",
		WithCoord: true,
		Sort:      "ASC",
	}).Result()
	if err != nil {
		return nil, fmt.Errorf("georadius %s: %w", t, err)
	}
	if len(locs) == 0 {
		return nil, nil
	}

	members := make([]string, 0, len(locs))
	for _, l := range locs {
		if bb.Contains(l.Longitude, l.Latitude) {
			members = append(members, l.Name)
		}
	}
	if limit > 0 && len(members) > limit {
		members = members[:limit]
	}
	if len(members) == 0 {
		return nil, nil
	}

	vals, err := s.rdb.HMGet(ctx, recKey(t), members...).Result()
	if err != nil {
		return nil, fmt.Errorf("hmget %s (%d members): %w", t, len(members), err)
	}

	out := make([]Record, 0, len(vals))
	for _, v := range vals {
		if v == nil {
			continue // index entry without payload
		}
		var raw []byte
		switch b := v.(type) {
		case string:
			raw = []byte(b)
		case []byte:
			raw = b
		default:
			continue
		}
		var rec Record
		if err := json.Unmarshal(raw, &rec); err != nil {
			continue
		}
		out = append(out, rec)
	}
	return out, nil
}

// Count returns the number of stored records for one entity type.
func (s *Store) Count(ctx context.Context, t model.EntityType) (int64, error) {
	n, err := s.rdb.HLen(ctx, recKey(t)).Result()
	if err != nil {
		return 0, fmt.Errorf("hlen %s: %w", t, err)
	}
	return n, nil
}

func (s *Store) Close() error {
	if err := s.rdb.Close(); err != nil {
		return fmt.Errorf("redis close: %w", err)
	}
	return nil
}

const earthRadiusKM = 6371.0

func haversineKM(lat1, lng1, lat2, lng2 float64) float64 {
	toRad := func(d float64) float64 { return d * math.Pi / 180 }
	dLat := toRad(lat2 - lat1)
	dLng := toRad(lng2 - lng1)
	a := math.Sin(dLat/2)*math.Sin(dLat/2) +
		math.Cos(toRad(lat1))*math.Cos(toRad(lat2))*math.Sin(dLng/2)*math.Sin(dLng/2)
	return 2 * earthRadiusKM * math.Asin(math.Sqrt(a))
}
