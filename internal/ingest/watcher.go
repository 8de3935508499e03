package ingest

import (
	"context"
	"errors"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/fsnotify/fsnotify"
)

// WatchConfig configures an inbox watch. Each direct subdirectory of Root is
// one record; it is emitted once no event has touched it for Debounce.
type WatchConfig struct {
	Root        string
	InitialScan bool          // emit subdirectories already present at start
	Debounce    time.Duration // quiet period before a record directory is emitted
	SkipHidden  bool
	Buffer      int // capacity of the emitted-directory channel; default 64
}

// WatchInbox watches cfg.Root and emits record directories as they settle.
// A directory is emitted at most once per watch. Both channels close when ctx
// ends.
func WatchInbox(ctx context.Context, cfg WatchConfig, logger *slog.Logger) (<-chan string, <-chan error, error) {
	if cfg.Root == "" {
		return nil, nil, errors.New("no inbox root provided")
	}
	if logger == nil {
		logger = slog.Default()
	}
	if cfg.Debounce <= 0 {
		cfg.Debounce = 2 * time.Second
	}
	root := filepath.Clean(cfg.Root)

	w, err := fsnotify.NewWatcher()
	if err != nil {
		logger.Error("ingest.watch.create_failed", "error", err)
		return nil, nil, err
	}
	if err := w.Add(root); err != nil {
		_ = w.Close()
		logger.Error("ingest.watch.add_failed", "root", root, "error", err)
		return nil, nil, err
	}

	if cfg.Buffer <= 0 {
		cfg.Buffer = 64
	}
	evCh := make(chan string, cfg.Buffer)
	errCh := make(chan error, 1)

	var (
		mu      sync.Mutex
		timers  = map[string]*time.Timer{}
		emitted = map[string]bool{}
		closed  bool
	)
	var emit func(dir string)
	emit = func(dir string) {
		if fi, err := os.Stat(dir); err != nil || !fi.IsDir() {
			mu.Lock()
			delete(timers, dir)
			mu.Unlock()
			return
		}
		mu.Lock()
		defer mu.Unlock()
		delete(timers, dir)
		if closed || emitted[dir] {
			return
		}
		emitted[dir] = true
		select {
		case evCh <- dir:
			logger.Info("ingest.watch.ready", "dir", dir)
		default:
			// Consumer is behind; try again after another quiet period.
			emitted[dir] = false
			timers[dir] = time.AfterFunc(cfg.Debounce, func() { emit(dir) })
			logger.Warn("ingest.watch.deferred", "dir", dir)
		}
	}
	touch := func(dir string) {
		mu.Lock()
		defer mu.Unlock()
		if closed || emitted[dir] {
			return
		}
		if t, ok := timers[dir]; ok {
			t.Reset(cfg.Debounce)
			return
		}
		timers[dir] = time.AfterFunc(cfg.Debounce, func() { emit(dir) })
	}

	entries, err := os.ReadDir(root)
	if err != nil {
		_ = w.Close()
		return nil, nil, err
	}
	for _, e := range entries {
		if !e.IsDir() || (cfg.SkipHidden && IsHidden(e.Name())) {
			continue
		}
		dir := filepath.Join(root, e.Name())
		if err := w.Add(dir); err != nil {
			logger.Warn("ingest.watch.add_failed", "dir", dir, "error", err)
		}
		if cfg.InitialScan {
			touch(dir)
		}
	}

	go func() {
		defer func() {
			mu.Lock()
			closed = true
			for _, t := range timers {
				t.Stop()
			}
			mu.Unlock()
			_ = w.Close()
			close(evCh)
			close(errCh)
		}()

		for {
			select {
			case <-ctx.Done():
				return
			case e, ok := <-w.Events:
				if !ok {
					return
				}
				dir := recordDir(root, e.Name)
				if dir == "" || (cfg.SkipHidden && IsHidden(dir)) {
					continue
				}
				if e.Name == dir && e.Op&fsnotify.Create != 0 {
					if err := w.Add(dir); err != nil {
						logger.Debug("ingest.watch.add_skipped", "path", dir, "error", err)
						continue
					}
				}
				touch(dir)
			case err, ok := <-w.Errors:
				if !ok {
					return
				}
				logger.Error("ingest.watch.error", "error", err)
				select {
				case errCh <- err:
				default:
				}
			}
		}
	}()

	return evCh, errCh, nil
}

// recordDir maps an event path to the record directory it belongs to, or ""
// for events on the inbox root itself.
func recordDir(root, path string) string {
	rel, err := filepath.Rel(root, path)
	if err != nil {
		return ""
	}
	rel = filepath.ToSlash(rel)
	if rel == "." || rel == ".." || strings.HasPrefix(rel, "../") {
		return ""
	}
	first, _, _ := strings.Cut(rel, "/")
	return filepath.Join(root, first)
}
