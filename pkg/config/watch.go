package config

import (
	"context"
	"fmt"
	"log/slog"
	"path/filepath"
	"sync/atomic"
	"time"

	"github.com/fsnotify/fsnotify"
)

// Runtime holds the hot-reloadable gateway toggles. Handlers read these
// per request instead of caching the Config, so a config file edit takes
// effect without a restart.
type Runtime struct {
	streamCheck       atomic.Bool
	finishReasonChunk atomic.Bool
	allowUnlisted     atomic.Bool
}

// NewRuntime creates a Runtime seeded from the given gateway config.
func NewRuntime(gw GatewayConfig) *Runtime {
	r := &Runtime{}
	r.Apply(gw)
	return r
}

// Apply replaces the runtime toggles with the given gateway config.
func (r *Runtime) Apply(gw GatewayConfig) {
	r.streamCheck.Store(gw.StreamCheck)
	r.finishReasonChunk.Store(gw.FinishReasonChunk)
	r.allowUnlisted.Store(gw.AllowUnlisted)
}

// StreamCheck reports whether the first upstream chunk is inspected
// before committing to a streamed reply.
func (r *Runtime) StreamCheck() bool { return r.streamCheck.Load() }

// FinishReasonChunk reports whether a terminal finish_reason chunk is
// emitted before the [DONE] sentinel.
func (r *Runtime) FinishReasonChunk() bool { return r.finishReasonChunk.Load() }

// AllowUnlisted reports whether unlisted claude-prefixed models are
// admitted.
func (r *Runtime) AllowUnlisted() bool { return r.allowUnlisted.Load() }

// Watcher re-reads the config file when it changes and applies the
// gateway section to a Runtime. Only the gateway toggles are
// hot-reloadable; all other sections require a restart.
type Watcher struct {
	path     string
	runtime  *Runtime
	debounce time.Duration
	logger   *slog.Logger
}

// NewWatcher creates a config watcher for the given file and runtime.
func NewWatcher(path string, runtime *Runtime, logger *slog.Logger) *Watcher {
	if logger == nil {
		logger = slog.Default()
	}
	return &Watcher{
		path:     path,
		runtime:  runtime,
		debounce: 100 * time.Millisecond,
		logger:   logger.With("component", "config.watcher"),
	}
}

// Watch blocks, applying gateway toggle changes until the context is
// cancelled. Editors replace files rather than writing in place, so the
// parent directory is watched and events are filtered by name.
func (w *Watcher) Watch(ctx context.Context) error {
	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return fmt.Errorf("failed to create fsnotify watcher: %w", err)
	}
	defer watcher.Close()

	dir := filepath.Dir(w.path)
	if err := watcher.Add(dir); err != nil {
		return fmt.Errorf("failed to watch %q: %w", dir, err)
	}

	w.logger.Info("config watcher started", "path", w.path)

	var timer *time.Timer
	var timerCh <-chan time.Time

	for {
		select {
		case <-ctx.Done():
			w.logger.Info("config watcher stopped")
			return nil

		case event, ok := <-watcher.Events:
			if !ok {
				return fmt.Errorf("watcher events channel closed")
			}
			if filepath.Clean(event.Name) != filepath.Clean(w.path) {
				continue
			}
			if !event.Has(fsnotify.Write) && !event.Has(fsnotify.Create) && !event.Has(fsnotify.Rename) {
				continue
			}
			// Debounce bursts of events from a single save.
			if timer == nil {
				timer = time.NewTimer(w.debounce)
			} else {
				timer.Reset(w.debounce)
			}
			timerCh = timer.C

		case <-timerCh:
			timerCh = nil
			w.reload()

		case err, ok := <-watcher.Errors:
			if !ok {
				return fmt.Errorf("watcher errors channel closed")
			}
			w.logger.Warn("config watcher error", "error", err)
		}
	}
}

func (w *Watcher) reload() {
	cfg, err := LoadConfig(w.path)
	if err != nil {
		w.logger.Error("config reload failed, keeping previous toggles", "error", err)
		return
	}
	w.runtime.Apply(cfg.Gateway)
	w.logger.Info("gateway toggles reloaded",
		"stream_check", cfg.Gateway.StreamCheck,
		"finish_reason_chunk", cfg.Gateway.FinishReasonChunk,
		"allow_unlisted", cfg.Gateway.AllowUnlisted,
	)
}
