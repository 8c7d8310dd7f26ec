package config

import (
	"os"
	"strconv"
	"strings"
	"time"
)

type Config struct {
	Addr            string
	LogLevel        string
	RedisAddr       string
	CatalogURL      string
	ShareBaseURL    string
	SeedFile        string
	DebounceWindow  time.Duration
	RetryMax        int
	RetryFallback   time.Duration
	CacheSize       int
	CacheTTL        time.Duration
	RateLimitReqs   int
	RateLimitWindow time.Duration
	GeoAutoRequest  bool
	FetchTimeout    time.Duration
	PageLimit       int
}

func FromEnv() Config {
	return Config{
		Addr:            getenv("ADDR", ":8080"),
		LogLevel:        getenv("LOG_LEVEL", "info"),
		RedisAddr:       getenv("REDIS_ADDR", "localhost:6379"),
		CatalogURL:      getenv("CATALOG_URL", "http://localhost:8080"),
		ShareBaseURL:    getenv("SHARE_BASE_URL", "https://dive-atlas.example/map"),
		SeedFile:        getenv("SEED_FILE", ""),
		DebounceWindow:  getduration("DEBOUNCE_WINDOW", 400*time.Millisecond),
		RetryMax:        getint("FETCH_RETRY_MAX", 3),
		RetryFallback:   getduration("FETCH_RETRY_FALLBACK", 5*time.Second),
		CacheSize:       getint("RESULT_CACHE_SIZE", 256),
		CacheTTL:        getduration("RESULT_CACHE_TTL", 60*time.Second),
		RateLimitReqs:   getint("RATE_LIMIT_REQS", 30),
		RateLimitWindow: getduration("RATE_LIMIT_WINDOW", time.Second),
		GeoAutoRequest:  getbool("GEO_AUTO_REQUEST", true),
		FetchTimeout:    getduration("FETCH_TIMEOUT", 30*time.Second),
		PageLimit:       getint("PAGE_LIMIT", 500),
	}
}

func getenv(k, def string) string {
	if v := os.Getenv(k); v != "" {
		return v
	}
	return def
}

func getint(k string, def int) int {
	if v := os.Getenv(k); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			return n
		}
	}
	return def
}

func getbool(k string, def bool) bool {
	if v := os.Getenv(k); v != "" {
		switch strings.ToLower(strings.TrimSpace(v)) {
		case "1", "t", "true", "y", "yes":
			return true
		case "0", "f", "false", "n", "no":
			return false
		}
	}
	return def
}

func getduration(k string, def time.Duration) time.Duration {
	if v := os.Getenv(k); v != "" {
		if d, err := time.ParseDuration(v); err == nil {
			return d
		}
	}
	return def
}
