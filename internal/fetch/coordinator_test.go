package fetch

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"sync"
	"testing"
	"time"

	"github.com/dive-atlas/viewport/internal/core/model"
	"github.com/dive-atlas/viewport/internal/filters"
	"github.com/dive-atlas/viewport/internal/source"
)

type scriptedSource struct {
	mu    sync.Mutex
	calls int
	last  source.Query
	fn    func(call int, q source.Query) (model.Page, error)
}

func (s *scriptedSource) Fetch(_ context.Context, q source.Query) (model.Page, error) {
	s.mu.Lock()
	s.calls++
	s.last = q
	call := s.calls
	fn := s.fn
	s.mu.Unlock()
	return fn(call, q)
}

func (s *scriptedSource) callCount() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.calls
}

func (s *scriptedSource) lastQuery() source.Query {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.last
}

func discard() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func waitFor(t *testing.T, what string, cond func() bool) {
	t.Helper()
	deadline := time.Now().Add(2 * time.Second)
	for time.Now().Before(deadline) {
		if cond() {
			return
		}
		time.Sleep(5 * time.Millisecond)
	}
	t.Fatalf("timed out waiting for %s", what)
}

func testParams(search string) Params {
	set := model.NewFilterSet()
	set.Set(filters.KeySearch, search)
	return Params{
		Entity:   model.EntityDiveSites,
		Viewport: model.Viewport{Longitude: 24.0, Latitude: 37.5, Zoom: 8},
		Filters:  set,
	}
}

func pageOf(names ...string) model.Page {
	p := model.Page{Total: len(names)}
	for i, n := range names {
		p.Features = append(p.Features, model.Feature{ID: int64(i + 1), Name: n})
	}
	return p
}

func TestRequest_SuccessUpdatesStateAndMetrics(t *testing.T) {
	src := &scriptedSource{fn: func(int, source.Query) (model.Page, error) {
		return pageOf("Chrisoula K", "Anemone City"), nil
	}}
	c := New(src, discard())
	defer c.Close()

	c.Request(context.Background(), testParams("a"))

	waitFor(t, "fetch to settle", func() bool {
		st := c.State()
		return !st.Loading && st.Err == nil && len(st.Data.Features) == 2
	})
	st := c.State()
	if st.Metrics.DataPoints != 2 {
		t.Fatalf("metrics.DataPoints = %d", st.Metrics.DataPoints)
	}
	if st.Metrics.MemoryUsage == 0 {
		t.Fatal("metrics.MemoryUsage not recorded")
	}
}

func TestRequest_DerivesBBoxFromViewport(t *testing.T) {
	src := &scriptedSource{fn: func(int, source.Query) (model.Page, error) {
		return model.Page{}, nil
	}}
	c := New(src, discard())
	defer c.Close()

	p := testParams("a")
	c.Request(context.Background(), p)
	waitFor(t, "fetch", func() bool { return src.callCount() == 1 })

	q := src.lastQuery()
	if !q.BBox.Contains(p.Viewport.Longitude, p.Viewport.Latitude) {
		t.Fatalf("query bbox %+v does not cover the viewport center", q.BBox)
	}
	if q.Entity != model.EntityDiveSites {
		t.Fatalf("query entity = %v", q.Entity)
	}
}

func TestRateLimit_RetryCapThenSurface(t *testing.T) {
	src := &scriptedSource{fn: func(int, source.Query) (model.Page, error) {
		return model.Page{}, &source.RateLimitedError{}
	}}
	c := New(src, discard(), WithRetry(3, 5*time.Millisecond))
	defer c.Close()

	c.Request(context.Background(), testParams("a"))

	// initial attempt plus at most 3 automatic retries
	waitFor(t, "error to surface", func() bool { return c.State().Err != nil })
	if got := src.callCount(); got != 4 {
		t.Fatalf("source called %d times, want 4", got)
	}

	// the manual retry resets the counter: a full new budget runs
	c.Refetch(context.Background())
	waitFor(t, "second surface", func() bool {
		return src.callCount() == 8 && c.State().Err != nil
	})
}

func TestRateLimit_HonorsRetryAfterHintThenSucceeds(t *testing.T) {
	src := &scriptedSource{fn: func(call int, _ source.Query) (model.Page, error) {
		if call == 1 {
			return model.Page{}, &source.RateLimitedError{RetryAfter: 10 * time.Millisecond}
		}
		return pageOf("Blue Hole"), nil
	}}
	c := New(src, discard(), WithRetry(3, 5*time.Second))
	defer c.Close()

	start := time.Now()
	c.Request(context.Background(), testParams("a"))

	waitFor(t, "retry to succeed", func() bool {
		st := c.State()
		return !st.Loading && st.Err == nil && len(st.Data.Features) == 1
	})
	// the 5s fallback was not used; the hint was
	if elapsed := time.Since(start); elapsed > time.Second {
		t.Fatalf("retry took %s, hint ignored", elapsed)
	}
	if got := src.callCount(); got != 2 {
		t.Fatalf("source called %d times, want 2", got)
	}
}

func TestNonRateLimitError_NoAutomaticRetry(t *testing.T) {
	src := &scriptedSource{fn: func(int, source.Query) (model.Page, error) {
		return model.Page{}, errors.New("backend down")
	}}
	c := New(src, discard(), WithRetry(3, 5*time.Millisecond))
	defer c.Close()

	c.Request(context.Background(), testParams("a"))
	waitFor(t, "error", func() bool { return c.State().Err != nil })

	time.Sleep(50 * time.Millisecond)
	if got := src.callCount(); got != 1 {
		t.Fatalf("source called %d times, want 1 (no automatic retry)", got)
	}
}

func TestStaleResponse_Discarded(t *testing.T) {
	release := make(chan struct{})
	src := &scriptedSource{fn: func(call int, _ source.Query) (model.Page, error) {
		if call == 1 {
			<-release
			return pageOf("stale A"), nil
		}
		return pageOf("fresh B"), nil
	}}
	c := New(src, discard())
	defer c.Close()

	c.Request(context.Background(), testParams("A"))
	waitFor(t, "first fetch in flight", func() bool { return src.callCount() == 1 })

	c.Request(context.Background(), testParams("B"))
	waitFor(t, "second fetch to settle", func() bool {
		st := c.State()
		return !st.Loading && len(st.Data.Features) == 1 && st.Data.Features[0].Name == "fresh B"
	})

	close(release)
	time.Sleep(50 * time.Millisecond)
	if got := c.State().Data.Features[0].Name; got != "fresh B" {
		t.Fatalf("stale response applied: %q", got)
	}
}

func TestRequestDebounced_CoalescesRapidEdits(t *testing.T) {
	src := &scriptedSource{fn: func(int, source.Query) (model.Page, error) {
		return model.Page{}, nil
	}}
	c := New(src, discard(), WithDebounce(50*time.Millisecond))
	defer c.Close()

	ctx := context.Background()
	c.RequestDebounced(ctx, testParams("w"))
	c.RequestDebounced(ctx, testParams("wr"))
	c.RequestDebounced(ctx, testParams("wreck"))

	waitFor(t, "debounced fetch", func() bool { return src.callCount() == 1 })
	time.Sleep(100 * time.Millisecond)
	if got := src.callCount(); got != 1 {
		t.Fatalf("source called %d times, want 1", got)
	}
	if got := src.lastQuery().Filters.Get(filters.KeySearch); got != "wreck" {
		t.Fatalf("fetched search = %q, want the final edit", got)
	}
}

func TestResultCache_ServesRepeatQueryWithoutFetch(t *testing.T) {
	src := &scriptedSource{fn: func(int, source.Query) (model.Page, error) {
		return pageOf("Nea Kameni Reef"), nil
	}}
	c := New(src, discard(), WithCache(8, time.Minute))
	defer c.Close()

	ctx := context.Background()
	c.Request(ctx, testParams("reef"))
	waitFor(t, "first fetch", func() bool {
		st := c.State()
		return !st.Loading && len(st.Data.Features) == 1
	})

	c.Request(ctx, testParams("reef"))
	st := c.State()
	if st.Loading || len(st.Data.Features) != 1 {
		t.Fatalf("cache hit not served synchronously: %+v", st)
	}
	time.Sleep(50 * time.Millisecond)
	if got := src.callCount(); got != 1 {
		t.Fatalf("source called %d times, want 1 (second query cached)", got)
	}
}

func TestRefetch_BypassesResultCache(t *testing.T) {
	src := &scriptedSource{fn: func(int, source.Query) (model.Page, error) {
		return pageOf("Nea Kameni Reef"), nil
	}}
	c := New(src, discard(), WithCache(8, time.Minute))
	defer c.Close()

	ctx := context.Background()
	c.Request(ctx, testParams("reef"))
	waitFor(t, "first fetch", func() bool {
		st := c.State()
		return !st.Loading && len(st.Data.Features) == 1
	})

	// the manual retry must reach the backend even though the page is
	// cached under the same key
	c.Refetch(ctx)
	waitFor(t, "refetch to hit the source", func() bool { return src.callCount() == 2 })
	waitFor(t, "refetch to settle", func() bool { return !c.State().Loading })
}

func TestClose_StopsRetryFromInFlightResponse(t *testing.T) {
	release := make(chan struct{})
	src := &scriptedSource{fn: func(call int, _ source.Query) (model.Page, error) {
		if call == 1 {
			<-release
		}
		return model.Page{}, &source.RateLimitedError{}
	}}
	c := New(src, discard(), WithRetry(3, 5*time.Millisecond))

	c.Request(context.Background(), testParams("a"))
	waitFor(t, "fetch in flight", func() bool { return src.callCount() == 1 })

	c.Close()
	close(release)

	time.Sleep(100 * time.Millisecond)
	if got := src.callCount(); got != 1 {
		t.Fatalf("source called %d times after Close, want 1", got)
	}
}

func TestRefetch_WithoutParamsIsNoop(t *testing.T) {
	src := &scriptedSource{fn: func(int, source.Query) (model.Page, error) {
		return model.Page{}, nil
	}}
	c := New(src, discard())
	defer c.Close()

	c.Refetch(context.Background())
	time.Sleep(20 * time.Millisecond)
	if src.callCount() != 0 {
		t.Fatal("refetch before any request must not fetch")
	}
}
