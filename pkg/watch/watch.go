package watch

import (
	"context"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"time"

	"github.com/fsnotify/fsnotify"
	"go.uber.org/zap"

	"github.com/marek-kar/codeaudit/pkg/batch"
	"github.com/marek-kar/codeaudit/pkg/collector"
	"github.com/marek-kar/codeaudit/pkg/logging"
	"github.com/marek-kar/codeaudit/pkg/model"
)

const DefaultDebounce = 300 * time.Millisecond

// Watcher re-audits files under a directory whenever their content changes.
type Watcher struct {
	Dir      string
	Options  collector.Options
	Runner   *batch.Runner
	Cache    *ContentCache
	Debounce time.Duration
	Log      *zap.SugaredLogger
	// Emit receives every audited outcome. It is called from the watch loop
	// only, never concurrently.
	Emit func(model.FileOutcome)
}

// Run audits everything once, then watches until ctx is done.
func (w *Watcher) Run(ctx context.Context) error {
	if w.Log == nil {
		w.Log = logging.Nop()
	}
	if w.Cache == nil {
		cache, err := NewContentCache(defaultCacheSize)
		if err != nil {
			return err
		}
		w.Cache = cache
	}

	fw, err := fsnotify.NewWatcher()
	if err != nil {
		return fmt.Errorf("watch init: %w", err)
	}
	defer fw.Close()

	if err := addRecursive(fw, w.Dir); err != nil {
		return fmt.Errorf("watch %s: %w", w.Dir, err)
	}

	targets, err := collector.Targets([]string{w.Dir}, w.Options)
	if err != nil {
		return err
	}
	initial := make([]string, 0, len(targets))
	for _, t := range targets {
		initial = append(initial, t.Path)
	}
	w.flush(ctx, initial)

	debounce := w.Debounce
	if debounce <= 0 {
		debounce = DefaultDebounce
	}
	pending := make(map[string]bool)
	fire := make(chan struct{}, 1)
	var timer *time.Timer

	for {
		select {
		case <-ctx.Done():
			if timer != nil {
				timer.Stop()
			}
			return nil
		case ev, ok := <-fw.Events:
			if !ok {
				return nil
			}
			if w.handle(fw, ev) {
				pending[ev.Name] = true
				if timer != nil {
					timer.Stop()
				}
				timer = time.AfterFunc(debounce, func() {
					select {
					case fire <- struct{}{}:
					default:
					}
				})
			}
		case <-fire:
			paths := make([]string, 0, len(pending))
			for p := range pending {
				paths = append(paths, p)
			}
			clear(pending)
			sort.Strings(paths)
			w.flush(ctx, paths)
		case err, ok := <-fw.Errors:
			if !ok {
				return nil
			}
			w.Log.Warnw("watch error", "error", err)
		}
	}
}

// handle reacts to one event and reports whether a file needs auditing.
func (w *Watcher) handle(fw *fsnotify.Watcher, ev fsnotify.Event) bool {
	if ev.Has(fsnotify.Remove) || ev.Has(fsnotify.Rename) {
		w.Cache.Forget(ev.Name)
		return false
	}
	if !ev.Has(fsnotify.Write) && !ev.Has(fsnotify.Create) {
		return false
	}
	info, err := os.Stat(ev.Name)
	if err != nil {
		return false
	}
	if info.IsDir() {
		if ev.Has(fsnotify.Create) && !hidden(info.Name()) {
			if err := addRecursive(fw, ev.Name); err != nil {
				w.Log.Warnw("watch new directory", "dir", ev.Name, "error", err)
			}
		}
		return false
	}
	return w.included(ev.Name)
}

func (w *Watcher) included(path string) bool {
	if dir := filepath.Dir(path); dir != w.Dir {
		rel, err := filepath.Rel(w.Dir, dir)
		if err == nil {
			for _, part := range strings.Split(filepath.ToSlash(rel), "/") {
				if hidden(part) {
					return false
				}
			}
		}
	}
	ok, _ := filepath.Match(w.Options.Include, filepath.Base(path))
	return ok
}

// flush audits the paths whose content changed since they were last seen.
func (w *Watcher) flush(ctx context.Context, paths []string) {
	for _, p := range paths {
		if ctx.Err() != nil {
			return
		}
		content, err := os.ReadFile(p)
		if err != nil {
			w.Cache.Forget(p)
			w.Log.Debugw("skip unreadable file", "file", p, "error", err)
			continue
		}
		if !w.Cache.Changed(p, content) {
			w.Log.Debugw("content unchanged", "file", p)
			continue
		}
		o := w.Runner.ScanOne(ctx, collector.NewTarget(w.Options.Root, p))
		if w.Emit != nil {
			w.Emit(o)
		}
	}
}

func addRecursive(fw *fsnotify.Watcher, root string) error {
	return filepath.WalkDir(root, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return nil
		}
		if !d.IsDir() {
			return nil
		}
		if path != root && hidden(d.Name()) {
			return filepath.SkipDir
		}
		return fw.Add(path)
	})
}

func hidden(name string) bool {
	return strings.HasPrefix(name, ".") && name != "." && name != ".."
}
