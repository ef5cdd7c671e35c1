// Package watch regenerates on source changes. The fsnotify plumbing lives
// in Run; burst folding is separated into Coalesce so the timing behavior
// is testable without a real watcher.
package watch

import (
	"context"
	"fmt"
	"io/fs"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/fsnotify/fsnotify"
)

// Relevant reports whether a changed file should trigger regeneration.
// Generated bridge files are ignored so a run never retriggers itself.
func Relevant(name string) bool {
	base := filepath.Base(name)
	if strings.HasPrefix(base, ".") {
		return false
	}
	if !strings.HasSuffix(base, ".go") {
		return false
	}
	return !strings.HasSuffix(base, ".gen.go")
}

// Coalesce folds bursts of events into single ticks. A tick fires once no
// new event has arrived for the quiet window; the output closes when the
// input does. Tick delivery never blocks: the output carries one pending
// tick and further fires fold into it, so a slow consumer can keep sending
// events without deadlocking against the timer.
func Coalesce(events <-chan string, quiet time.Duration) <-chan struct{} {
	out := make(chan struct{}, 1)
	go func() {
		defer close(out)
		var fire <-chan time.Time
		for {
			select {
			case _, ok := <-events:
				if !ok {
					return
				}
				fire = time.After(quiet)
			case <-fire:
				fire = nil
				select {
				case out <- struct{}{}:
				default:
				}
			}
		}
	}()
	return out
}

// Run watches the project tree and calls fn after each quiet period
// following a relevant change. It blocks until the context is canceled.
func Run(ctx context.Context, dir string, exclude []string, quiet time.Duration, fn func()) error {
	w, err := fsnotify.NewWatcher()
	if err != nil {
		return fmt.Errorf("watch: %w", err)
	}
	defer w.Close()
	if err := addTree(w, dir, exclude); err != nil {
		return err
	}

	events := make(chan string)
	defer close(events)
	ticks := Coalesce(events, quiet)

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()

		case ev, ok := <-w.Events:
			if !ok {
				return nil
			}
			if ev.Op.Has(fsnotify.Create) {
				if fi, err := os.Stat(ev.Name); err == nil && fi.IsDir() && !excluded(ev.Name, exclude) {
					if err := addTree(w, ev.Name, exclude); err != nil {
						slog.Warn("watch new directory", "path", ev.Name, "err", err)
					}
				}
			}
			if Relevant(ev.Name) && ev.Op.Has(fsnotify.Write|fsnotify.Create|fsnotify.Remove|fsnotify.Rename) {
				events <- ev.Name
			}

		case err, ok := <-w.Errors:
			if !ok {
				return nil
			}
			slog.Warn("watch error", "err", err)

		case <-ticks:
			slog.Info("source changed, regenerating")
			fn()
		}
	}
}

// addTree registers dir and every non-excluded subdirectory.
func addTree(w *fsnotify.Watcher, dir string, exclude []string) error {
	return filepath.WalkDir(dir, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if !d.IsDir() {
			return nil
		}
		name := d.Name()
		if path != dir && (strings.HasPrefix(name, ".") || excluded(path, exclude)) {
			return filepath.SkipDir
		}
		if err := w.Add(path); err != nil {
			return fmt.Errorf("watch: add %s: %w", path, err)
		}
		return nil
	})
}

func excluded(path string, exclude []string) bool {
	for _, e := range exclude {
		if e != "" && strings.Contains(path, e) {
			return true
		}
	}
	return false
}
