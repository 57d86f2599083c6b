package main

import (
	"context"
	"path/filepath"
	"sort"
	"sync"
	"time"

	"github.com/fsnotify/fsnotify"

	"promptduel/internal/logging"
)

// promptWatcher watches a fixed set of files and calls onChange once per
// burst of edits. Parent directories are watched so editors that replace a
// file on save are still seen.
type promptWatcher struct {
	mu          sync.Mutex
	watcher     *fsnotify.Watcher
	files       map[string]bool
	pending     map[string]time.Time
	debounceDur time.Duration
	onChange    func(ctx context.Context, changed []string)
	doneCh      chan struct{}
}

func newPromptWatcher(files []string, debounce time.Duration, onChange func(context.Context, []string)) (*promptWatcher, error) {
	if debounce <= 0 {
		debounce = 500 * time.Millisecond
	}
	w, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, err
	}
	pw := &promptWatcher{
		watcher:     w,
		files:       make(map[string]bool),
		pending:     make(map[string]time.Time),
		debounceDur: debounce,
		onChange:    onChange,
		doneCh:      make(chan struct{}),
	}
	dirs := make(map[string]bool)
	for _, f := range files {
		abs, err := filepath.Abs(f)
		if err != nil {
			w.Close()
			return nil, err
		}
		pw.files[abs] = true
		dirs[filepath.Dir(abs)] = true
	}
	for dir := range dirs {
		if err := w.Add(dir); err != nil {
			w.Close()
			return nil, err
		}
		logging.BootDebug("watching %s", dir)
	}
	return pw, nil
}

// Run blocks until ctx is done, then closes the watcher.
func (pw *promptWatcher) Run(ctx context.Context) {
	defer close(pw.doneCh)
	defer pw.watcher.Close()

	ticker := time.NewTicker(pw.debounceDur / 4)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case event, ok := <-pw.watcher.Events:
			if !ok {
				return
			}
			pw.handleEvent(event)
		case err, ok := <-pw.watcher.Errors:
			if !ok {
				return
			}
			logging.Get(logging.CategoryBoot).Warn("watcher error: %v", err)
		case <-ticker.C:
			if changed := pw.due(time.Now()); len(changed) > 0 {
				pw.onChange(ctx, changed)
			}
		}
	}
}

// Done is closed when Run returns.
func (pw *promptWatcher) Done() <-chan struct{} { return pw.doneCh }

func (pw *promptWatcher) handleEvent(event fsnotify.Event) {
	if event.Op&(fsnotify.Create|fsnotify.Write|fsnotify.Rename) == 0 {
		return
	}
	name, err := filepath.Abs(event.Name)
	if err != nil || !pw.files[name] {
		return
	}
	pw.mu.Lock()
	pw.pending[name] = time.Now()
	pw.mu.Unlock()
}

// due returns files whose last event is older than the debounce window.
func (pw *promptWatcher) due(now time.Time) []string {
	pw.mu.Lock()
	defer pw.mu.Unlock()

	var changed []string
	for name, at := range pw.pending {
		if now.Sub(at) >= pw.debounceDur {
			changed = append(changed, name)
			delete(pw.pending, name)
		}
	}
	sort.Strings(changed)
	return changed
}
