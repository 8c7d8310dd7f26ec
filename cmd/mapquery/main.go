package main

import (
	"context"
	"flag"
	"fmt"
	"net/url"
	"os"
	"strings"

	"github.com/dive-atlas/viewport/internal/core/config"
	"github.com/dive-atlas/viewport/internal/core/model"
	"github.com/dive-atlas/viewport/internal/fetch"
	"github.com/dive-atlas/viewport/internal/geoloc"
	"github.com/dive-atlas/viewport/internal/httpclient"
	"github.com/dive-atlas/viewport/internal/logger"
	"github.com/dive-atlas/viewport/internal/session"
	"github.com/dive-atlas/viewport/internal/source/httpsource"
)

// mapquery hydrates one map session from a share URL, runs the fetch
// against a catalog server, and prints the results plus the
// regenerated share link.
func main() {
	os.Exit(run())
}

// printSurface stands in for the map renderer: it forwards settled
// fetch states to the terminal.
type printSurface struct {
	done chan fetch.State
}

func (s *printSurface) Render(_ model.Viewport, st fetch.State) {
	if st.Loading {
		return
	}
	select {
	case s.done <- st:
	default:
	}
}

// noGeolocation is the headless-platform provider: capability absent.
type noGeolocation struct{}

func (noGeolocation) Available() bool { return false }
func (noGeolocation) Enabled() bool   { return false }
func (noGeolocation) RequestPosition(context.Context) (geoloc.Position, error) {
	return geoloc.Position{}, geoloc.ErrPermissionDenied
}

func run() int {
	shareURL := flag.String("url", "", "share URL (or bare query string) to hydrate from")
	catalogURL := flag.String("catalog", "", "catalog base URL (defaults to CATALOG_URL)")
	flag.Parse()

	cfg := config.FromEnv()
	if *catalogURL != "" {
		cfg.CatalogURL = *catalogURL
	}

	zl := logger.Build(logger.Config{
		Level:     cfg.LogLevel,
		Console:   true,
		Component: "mapquery",
	}, os.Stderr)
	appLog := logger.NewSlog(&zl)

	rawQuery, err := extractQuery(*shareURL)
	if err != nil {
		appLog.Error("bad -url value", "err", err)
		return 2
	}

	src, err := httpsource.New(appLog, httpclient.NewOutbound(cfg.FetchTimeout), cfg.CatalogURL)
	if err != nil {
		appLog.Error("catalog source setup failed", "err", err)
		return 1
	}

	surface := &printSurface{done: make(chan fetch.State, 1)}
	s := session.New(cfg, session.Deps{
		Source:  src,
		Geo:     noGeolocation{},
		Surface: surface,
		Logger:  appLog,
	})
	defer s.Close()

	ctx, cancel := context.WithTimeout(context.Background(), cfg.FetchTimeout)
	defer cancel()
	s.Start(ctx, rawQuery)

	select {
	case st := <-surface.done:
		if st.Err != nil {
			appLog.Error("fetch failed", "err", st.Err)
			return 1
		}
		vp := s.Viewport()
		fmt.Printf("%s @ (%.4f, %.4f) zoom %.1f: %d results\n",
			s.Entity(), vp.Latitude, vp.Longitude, vp.Zoom, st.Data.Total)
		for _, f := range st.Data.Features {
			fmt.Printf("  %6d  %-32s  (%.4f, %.4f)\n", f.ID, f.Name, f.Latitude, f.Longitude)
		}
		fmt.Printf("loaded %d items in %s\n", st.Metrics.DataPoints, st.Metrics.LoadTime)
		fmt.Printf("share: %s\n", s.ShareURL())
		return 0
	case <-ctx.Done():
		appLog.Error("timed out waiting for fetch")
		return 1
	}
}

// extractQuery accepts either a full URL or a bare query string.
func extractQuery(raw string) (string, error) {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return "", nil
	}
	if strings.Contains(raw, "?") || strings.Contains(raw, "://") {
		u, err := url.Parse(raw)
		if err != nil {
			return "", fmt.Errorf("parse url: %w", err)
		}
		return u.RawQuery, nil
	}
	return raw, nil
}
