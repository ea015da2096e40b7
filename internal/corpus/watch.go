// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package corpus

import (
	"context"
	"fmt"
	"io"
	"io/fs"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/fsnotify/fsnotify"
)

// defaultDebounce coalesces bursts of filesystem events (editors write,
// rename, and chmod in quick succession) into one handler invocation.
const defaultDebounce = 2 * time.Second

// Watch monitors sourceDir and its subdirectories and calls onChange
// after filesystem activity settles for the debounce interval. New
// subdirectories are picked up as they appear. Handler errors are logged
// to w and the watch continues; Watch itself returns when ctx is done.
func Watch(ctx context.Context, sourceDir string, debounce time.Duration, w io.Writer, onChange func(context.Context) error) error {
	if debounce <= 0 {
		debounce = defaultDebounce
	}

	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return fmt.Errorf("creating watcher: %w", err)
	}
	defer watcher.Close()

	if err := addRecursive(watcher, sourceDir); err != nil {
		return err
	}
	fmt.Fprintf(w, "watching %s (debounce %s)\n", sourceDir, debounce)

	// The timer is armed by events and fires once activity settles.
	timer := time.NewTimer(debounce)
	if !timer.Stop() {
		<-timer.C
	}

	for {
		select {
		case <-ctx.Done():
			return nil

		case event, ok := <-watcher.Events:
			if !ok {
				return nil
			}
			if strings.HasPrefix(filepath.Base(event.Name), ".") {
				continue
			}
			if event.Op&fsnotify.Create != 0 {
				// New directories need their own watch.
				if err := addIfDir(watcher, event.Name); err != nil {
					fmt.Fprintf(w, "watch error: %v\n", err)
				}
			}
			if event.Op&(fsnotify.Create|fsnotify.Write|fsnotify.Remove|fsnotify.Rename) != 0 {
				timer.Reset(debounce)
			}

		case err, ok := <-watcher.Errors:
			if !ok {
				return nil
			}
			fmt.Fprintf(w, "watch error: %v\n", err)

		case <-timer.C:
			fmt.Fprintln(w, "change detected, refreshing corpus")
			if err := onChange(ctx); err != nil {
				if ctx.Err() != nil {
					return nil
				}
				fmt.Fprintf(w, "refresh failed: %v\n", err)
			}
		}
	}
}

// addRecursive watches dir and every non-hidden subdirectory under it.
func addRecursive(watcher *fsnotify.Watcher, dir string) error {
	return filepath.WalkDir(dir, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if !d.IsDir() {
			return nil
		}
		if strings.HasPrefix(d.Name(), ".") && path != dir {
			return filepath.SkipDir
		}
		if err := watcher.Add(path); err != nil {
			return fmt.Errorf("watching %s: %w", path, err)
		}
		return nil
	})
}

// addIfDir starts watching path when it is a directory, recursively.
func addIfDir(watcher *fsnotify.Watcher, path string) error {
	info, err := os.Stat(path)
	if err != nil || !info.IsDir() {
		return nil
	}
	return addRecursive(watcher, path)
}
