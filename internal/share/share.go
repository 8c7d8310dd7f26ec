// Package share snapshots live session state into a canonical,
// shareable URL and manages clipboard-copy feedback.
package share

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"github.com/dive-atlas/viewport/internal/core/model"
	"github.com/dive-atlas/viewport/internal/filters"
	"github.com/dive-atlas/viewport/internal/urlcodec"
	"github.com/dive-atlas/viewport/internal/viewport"
)

// LiveView is the optional handle into the map surface. Panning may
// not have been flushed into the viewport store at the moment of
// sharing, so the live position is authoritative when available.
type LiveView interface {
	LiveViewport() (model.Viewport, bool)
}

// Clipboard is the platform write-text primitive. It may fail; the
// failure is reported but never fatal.
type Clipboard interface {
	WriteText(ctx context.Context, text string) error
}

// copiedResetDelay is how long the transient "copied" feedback stays up.
const copiedResetDelay = 2 * time.Second

type Builder struct {
	baseURL string
	vps     *viewport.Store
	fs      *filters.Store
	log     *slog.Logger

	mu         sync.Mutex
	live       LiveView
	clip       Clipboard
	copied     bool
	resetTimer *time.Timer
	resetDelay time.Duration
}

func New(baseURL string, vps *viewport.Store, fs *filters.Store, log *slog.Logger) *Builder {
	return &Builder{
		baseURL:    baseURL,
		vps:        vps,
		fs:         fs,
		log:        log,
		resetDelay: copiedResetDelay,
	}
}

// SetLiveView attaches the map surface handle.
func (b *Builder) SetLiveView(lv LiveView) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.live = lv
}

// SetClipboard attaches the platform clipboard.
func (b *Builder) SetClipboard(c Clipboard) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.clip = c
}

// URL snapshots the current state into a shareable link, preferring
// the live map position over the stored viewport.
func (b *Builder) URL() string {
	b.mu.Lock()
	live := b.live
	b.mu.Unlock()

	vp := b.vps.Viewport()
	if live != nil {
		if lvp, ok := live.LiveViewport(); ok {
			vp = lvp
		}
	}
	q := urlcodec.Encode(b.fs.Entity(), vp, b.fs.Snapshot())
	return b.baseURL + "?" + q.Encode()
}

// Copy writes the share URL to the clipboard. Failures are logged and
// swallowed; a rejected clipboard write must never crash the session.
func (b *Builder) Copy(ctx context.Context) {
	b.mu.Lock()
	clip := b.clip
	b.mu.Unlock()
	if clip == nil {
		return
	}
	u := b.URL()
	if err := clip.WriteText(ctx, u); err != nil {
		b.log.Warn("clipboard write failed", "err", err)
		return
	}

	b.mu.Lock()
	defer b.mu.Unlock()
	b.copied = true
	if b.resetTimer != nil {
		b.resetTimer.Stop()
	}
	b.resetTimer = time.AfterFunc(b.resetDelay, func() {
		b.mu.Lock()
		b.copied = false
		b.mu.Unlock()
	})
}

// Copied reports the transient copy feedback state.
func (b *Builder) Copied() bool {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.copied
}
