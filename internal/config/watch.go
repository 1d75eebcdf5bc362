package config

import (
	"context"
	"fmt"
	"path/filepath"
	"time"

	"github.com/fsnotify/fsnotify"
)

// DefaultDebounce is how long a burst of file events is coalesced before a
// change is reported.
const DefaultDebounce = 100 * time.Millisecond

// WatchOption configures WatchFile and Watch.
type WatchOption func(*watchOptions)

type watchOptions struct {
	debounce time.Duration
	onError  func(error)
}

// WithDebounce sets the debounce duration for rapid changes.
func WithDebounce(d time.Duration) WatchOption {
	return func(o *watchOptions) {
		if d >= 0 {
			o.debounce = d
		}
	}
}

// WithErrorHandler receives watcher errors. By default they are dropped.
func WithErrorHandler(fn func(error)) WatchOption {
	return func(o *watchOptions) {
		o.onError = fn
	}
}

// WatchFile calls onChange after the file at path is written, created,
// renamed or removed. The parent directory is watched so that editors which
// replace the file are noticed. WatchFile blocks until ctx is done and then
// returns nil.
func WatchFile(ctx context.Context, path string, onChange func(), opts ...WatchOption) error {
	o := watchOptions{debounce: DefaultDebounce}
	for _, opt := range opts {
		opt(&o)
	}

	absPath, err := filepath.Abs(path)
	if err != nil {
		return err
	}

	fsw, err := fsnotify.NewWatcher()
	if err != nil {
		return fmt.Errorf("creating watcher: %w", err)
	}
	defer fsw.Close()

	if err := fsw.Add(filepath.Dir(absPath)); err != nil {
		return fmt.Errorf("watching %s: %w", path, err)
	}

	const relevant = fsnotify.Write | fsnotify.Create | fsnotify.Rename | fsnotify.Remove

	var (
		timer *time.Timer
		fire  <-chan time.Time
	)
	defer func() {
		if timer != nil {
			timer.Stop()
		}
	}()

	for {
		select {
		case <-ctx.Done():
			return nil

		case ev, ok := <-fsw.Events:
			if !ok {
				return nil
			}
			if filepath.Clean(ev.Name) != absPath || ev.Op&relevant == 0 {
				continue
			}
			if timer == nil {
				timer = time.NewTimer(o.debounce)
			} else {
				timer.Reset(o.debounce)
			}
			fire = timer.C

		case <-fire:
			fire = nil
			onChange()

		case err, ok := <-fsw.Errors:
			if !ok {
				return nil
			}
			if o.onError != nil {
				o.onError(err)
			}
		}
	}
}

// Watch reloads the configuration at path whenever the file changes and
// passes the result to fn. A reload that fails to parse or validate is
// reported with a nil Config. Watch blocks until ctx is done.
func Watch(ctx context.Context, path string, fn func(*Config, error), opts ...WatchOption) error {
	return WatchFile(ctx, path, func() {
		fn(Load(path))
	}, opts...)
}
