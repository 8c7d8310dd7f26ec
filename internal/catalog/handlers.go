// Package catalog is the development catalog API server: the concrete
// implementation of the data-source contract the viewport engine
// consumes.
package catalog

import (
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/dive-atlas/viewport/internal/catalog/geostore"
	"github.com/dive-atlas/viewport/internal/core/model"
	"github.com/dive-atlas/viewport/internal/observability"
	"github.com/dive-atlas/viewport/internal/urlcodec"
)

type API struct {
	log   *slog.Logger
	store *geostore.Store
	limit int
}

func NewAPI(log *slog.Logger, store *geostore.Store, limit int) *API {
	if limit <= 0 {
		limit = 500
	}
	return &API{log: log, store: store, limit: limit}
}

type listResponse struct {
	Items []geostore.Record `json:"items"`
	Total int               `json:"total"`
}

type errorResponse struct {
	Error string `json:"error"`
}

// HandleList serves GET /api/v1/{entity}.
func (a *API) HandleList(entity model.EntityType) http.HandlerFunc {
	route := "/api/v1/" + string(entity)
	return func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		sw := &statusWriter{ResponseWriter: w, code: http.StatusOK}

		bb, err := parseBBox(r.URL.Query().Get("bbox"))
		if err != nil {
			writeJSON(sw, http.StatusBadRequest, errorResponse{Error: err.Error()})
			observability.ObserveHTTP(r.Method, route, sw.code, time.Since(start).Seconds())
			return
		}

		set := urlcodec.ParseFilters(r.URL.Query(), entity)

		recs, err := a.store.Search(r.Context(), entity, bb, a.limit)
		if err != nil {
			a.log.Error("catalog search failed", "entity", string(entity), "err", err)
			writeJSON(sw, http.StatusInternalServerError, errorResponse{Error: "search failed"})
			observability.ObserveHTTP(r.Method, route, sw.code, time.Since(start).Seconds())
			return
		}

		recs = applyFilters(recs, set)
		if recs == nil {
			recs = []geostore.Record{}
		}
		writeJSON(sw, http.StatusOK, listResponse{Items: recs, Total: len(recs)})
		observability.ObserveHTTP(r.Method, route, sw.code, time.Since(start).Seconds())
	}
}

type statusWriter struct {
	http.ResponseWriter
	code int
}

func (w *statusWriter) WriteHeader(code int) {
	w.code = code
	w.ResponseWriter.WriteHeader(code)
}

func writeJSON(w http.ResponseWriter, code int, body any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	_ = json.NewEncoder(w).Encode(body)
}

// parseBBox reads "minLng,minLat,maxLng,maxLat". An absent bbox means
// the whole world.
func parseBBox(raw string) (model.BBox, error) {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return model.BBox{MinLng: -180, MinLat: -90, MaxLng: 180, MaxLat: 90}, nil
	}
	parts := strings.Split(raw, ",")
	if len(parts) != 4 {
		return model.BBox{}, errors.New("bbox: expected 4 comma-separated values: minLng,minLat,maxLng,maxLat")
	}
	vals := make([]float64, 4)
	for i, p := range parts {
		f, err := strconv.ParseFloat(strings.TrimSpace(p), 64)
		if err != nil {
			return model.BBox{}, fmt.Errorf("bbox value %d: %w", i+1, err)
		}
		vals[i] = f
	}
	bb := model.BBox{MinLng: vals[0], MinLat: vals[1], MaxLng: vals[2], MaxLat: vals[3]}
	if bb.MinLng < -180 || bb.MaxLng > 180 || bb.MinLat < -90 || bb.MaxLat > 90 {
		return model.BBox{}, errors.New("bbox: coordinates out of range")
	}
	if bb.MaxLng <= bb.MinLng || bb.MaxLat <= bb.MinLat {
		return model.BBox{}, errors.New("bbox: max must exceed min on both axes")
	}
	return bb, nil
}
