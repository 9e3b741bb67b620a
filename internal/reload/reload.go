// Package reload watches the template and output-format directories for
// on-disk changes and invalidates the matching cache entry, so an operator
// editing a .bft or .bfo file sees it picked up without a process restart.
// Adapted from the teacher's internal/watcher package, which tails log
// files discovered the same way (fsnotify over a base directory, filtered
// by extension) but drives a tailer instead of a cache invalidation.
package reload

import (
	"context"
	"fmt"
	"log"
	"strings"

	"github.com/fsnotify/fsnotify"
)

// Invalidator drops a single cached entry by its filename key. Both
// loader.Loader and outputformat.Loader satisfy this.
type Invalidator interface {
	Invalidate(filename string)
}

// Watch watches dir for create/write/remove/rename events on files whose
// name ends in one of extensions, invalidating the matching cache entry
// via inv on each event. It returns once the watch is set up; the event
// loop runs in its own goroutine until ctx is done or the watcher's
// channels close.
func Watch(ctx context.Context, dir string, extensions []string, inv Invalidator) error {
	w, err := fsnotify.NewWatcher()
	if err != nil {
		return fmt.Errorf("reload: failed to create watcher: %w", err)
	}

	if err := w.Add(dir); err != nil {
		w.Close()
		return fmt.Errorf("reload: failed to watch %s: %w", dir, err)
	}

	go run(ctx, w, extensions, inv)
	return nil
}

func run(ctx context.Context, w *fsnotify.Watcher, extensions []string, inv Invalidator) {
	defer w.Close()
	for {
		select {
		case <-ctx.Done():
			return
		case event, ok := <-w.Events:
			if !ok {
				return
			}
			if !matchesAnyExtension(event.Name, extensions) {
				continue
			}
			if event.Op&(fsnotify.Write|fsnotify.Create|fsnotify.Remove|fsnotify.Rename) == 0 {
				continue
			}
			inv.Invalidate(baseName(event.Name))
		case err, ok := <-w.Errors:
			if !ok {
				return
			}
			log.Printf("reload: watcher error: %v", err)
		}
	}
}

func matchesAnyExtension(filename string, extensions []string) bool {
	for _, ext := range extensions {
		if strings.HasSuffix(filename, ext) {
			return true
		}
	}
	return false
}

func baseName(path string) string {
	if idx := strings.LastIndexAny(path, "/\\"); idx >= 0 {
		return path[idx+1:]
	}
	return path
}
