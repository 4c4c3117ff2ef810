package config

import (
	"bytes"
	"context"
	"crypto/sha256"
	"fmt"
	"log/slog"
	"os"
	"sync"
	"time"
)

// ReloadFunc receives a newly loaded config together with what changed
// relative to the previous one. It is only called for non-empty diffs.
type ReloadFunc func(cfg *Config, d ConfigDiff)

// Watcher re-reads a config file on a timer or on demand. A broken edit is
// logged and ignored so the running config always stays valid.
type Watcher struct {
	path   string
	every  time.Duration
	reload ReloadFunc

	mu   sync.Mutex
	cfg  *Config
	seen fileStamp
	sum  [sha256.Size]byte
}

// fileStamp lets a poll skip reading a file that has not been touched.
type fileStamp struct {
	mod  time.Time
	size int64
}

// WatcherOption configures a [Watcher].
type WatcherOption func(*Watcher)

// WithInterval sets how often [Watcher.Run] looks at the file. Default 5s.
func WithInterval(d time.Duration) WatcherOption {
	return func(w *Watcher) {
		if d > 0 {
			w.every = d
		}
	}
}

// NewWatcher loads path and fails if that first load fails.
func NewWatcher(path string, reload ReloadFunc, opts ...WatcherOption) (*Watcher, error) {
	w := &Watcher{path: path, every: 5 * time.Second, reload: reload}
	for _, opt := range opts {
		opt(w)
	}
	cfg, sum, stamp, err := w.read()
	if err != nil {
		return nil, fmt.Errorf("config: watch %q: %w", path, err)
	}
	w.cfg, w.sum, w.seen = cfg, sum, stamp
	return w, nil
}

// Current returns the last valid config.
func (w *Watcher) Current() *Config {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.cfg
}

// Run calls [Watcher.Check] every interval until ctx ends. It returns nil.
func (w *Watcher) Run(ctx context.Context) error {
	t := time.NewTicker(w.every)
	defer t.Stop()
	for {
		select {
		case <-ctx.Done():
			return nil
		case <-t.C:
			if _, err := w.Check(false); err != nil {
				slog.Warn("config reload skipped", "path", w.path, "err", err)
			}
		}
	}
}

// Check reloads the file if it changed, or unconditionally when force is
// set. It reports whether the reload callback ran. On error the previous
// config stays current.
func (w *Watcher) Check(force bool) (bool, error) {
	info, err := os.Stat(w.path)
	if err != nil {
		return false, err
	}
	w.mu.Lock()
	touched := force || w.seen != (fileStamp{info.ModTime(), info.Size()})
	w.mu.Unlock()
	if !touched {
		return false, nil
	}

	cfg, sum, stamp, err := w.read()
	if err != nil {
		return false, err
	}

	w.mu.Lock()
	w.seen = stamp
	if sum == w.sum {
		w.mu.Unlock()
		return false, nil
	}
	prev := w.cfg
	w.cfg, w.sum = cfg, sum
	w.mu.Unlock()

	d := Diff(prev, cfg)
	if d.Empty() {
		return false, nil
	}
	slog.Info("config reloaded", "path", w.path, "restart_required", d.RestartRequired)
	if w.reload != nil {
		w.reload(cfg, d)
	}
	return true, nil
}

func (w *Watcher) read() (*Config, [sha256.Size]byte, fileStamp, error) {
	info, err := os.Stat(w.path)
	if err != nil {
		return nil, [sha256.Size]byte{}, fileStamp{}, err
	}
	raw, err := os.ReadFile(w.path)
	if err != nil {
		return nil, [sha256.Size]byte{}, fileStamp{}, err
	}
	cfg, err := LoadFromReader(bytes.NewReader(raw))
	if err != nil {
		return nil, [sha256.Size]byte{}, fileStamp{}, err
	}
	return cfg, sha256.Sum256(raw), fileStamp{info.ModTime(), info.Size()}, nil
}
