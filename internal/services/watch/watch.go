// Package watch regenerates output when files under a root change.
package watch

import (
	"context"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"time"

	"github.com/fsnotify/fsnotify"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/temirov/flatten/internal/utils"
)

// DefaultDebounce is the quiet period after the last event before a change is reported.
const DefaultDebounce = 300 * time.Millisecond

const (
	errorCreateWatcherFormat = "creating file watcher: %w"
	errorWatchRootFormat     = "watching %s: %w"

	warningWatchDirectoryMessage = "unable to watch directory"
	warningWatcherErrorMessage   = "file watcher error"
	warningRegenerateMessage     = "regeneration failed"
)

// SkipFunc reports whether a root-relative slash path must be ignored.
type SkipFunc func(relativePath string, isDirectory bool) bool

// Config configures a Watcher.
type Config struct {
	Root     string
	Debounce time.Duration
	Skip     SkipFunc
	Logger   *zap.Logger
}

// Watcher observes every non-skipped directory beneath a root.
type Watcher struct {
	watcher  *fsnotify.Watcher
	root     string
	debounce time.Duration
	skip     SkipFunc
	logger   *zap.Logger
}

// New creates a Watcher and registers every non-skipped directory under the
// root. The caller must call Run or Close to release the underlying fsnotify
// watcher.
func New(config Config) (*Watcher, error) {
	absoluteRoot, absoluteError := filepath.Abs(config.Root)
	if absoluteError != nil {
		return nil, fmt.Errorf(errorWatchRootFormat, config.Root, absoluteError)
	}
	fsWatcher, watcherError := fsnotify.NewWatcher()
	if watcherError != nil {
		return nil, fmt.Errorf(errorCreateWatcherFormat, watcherError)
	}
	debounce := config.Debounce
	if debounce <= 0 {
		debounce = DefaultDebounce
	}
	skip := config.Skip
	if skip == nil {
		skip = func(string, bool) bool { return false }
	}
	logger := config.Logger
	if logger == nil {
		logger = zap.NewNop()
	}
	watcher := &Watcher{
		watcher:  fsWatcher,
		root:     absoluteRoot,
		debounce: debounce,
		skip:     skip,
		logger:   logger,
	}
	if err := watcher.addTree(absoluteRoot, true); err != nil {
		_ = fsWatcher.Close()
		return nil, fmt.Errorf(errorWatchRootFormat, absoluteRoot, err)
	}
	return watcher, nil
}

// Close releases the underlying fsnotify watcher without running.
func (watcher *Watcher) Close() error {
	return watcher.watcher.Close()
}

// Run watches until ctx is cancelled and calls onChange once per burst of
// relevant events. Changes arriving while onChange runs are coalesced into a
// single follow-up call. A failing onChange is logged and watching continues.
// Run returns nil when ctx is cancelled.
func (watcher *Watcher) Run(ctx context.Context, onChange func(context.Context) error) error {
	defer watcher.watcher.Close()

	group, groupCtx := errgroup.WithContext(ctx)
	changes := make(chan struct{}, 1)

	group.Go(func() error {
		return watcher.collectEvents(groupCtx, changes)
	})

	group.Go(func() error {
		for {
			select {
			case <-groupCtx.Done():
				return nil
			case <-changes:
				if err := onChange(groupCtx); err != nil {
					if groupCtx.Err() != nil {
						return nil
					}
					watcher.logger.Warn(warningRegenerateMessage, zap.Error(err))
				}
			}
		}
	})

	return group.Wait()
}

func (watcher *Watcher) collectEvents(ctx context.Context, changes chan<- struct{}) error {
	debounceTimer := time.NewTimer(watcher.debounce)
	if !debounceTimer.Stop() {
		<-debounceTimer.C
	}
	defer debounceTimer.Stop()

	for {
		select {
		case <-ctx.Done():
			return nil
		case event, ok := <-watcher.watcher.Events:
			if !ok {
				return nil
			}
			if !watcher.handleEvent(event) {
				continue
			}
			debounceTimer.Reset(watcher.debounce)
		case watchError, ok := <-watcher.watcher.Errors:
			if !ok {
				return nil
			}
			watcher.logger.Warn(warningWatcherErrorMessage, zap.Error(watchError))
		case <-debounceTimer.C:
			select {
			case changes <- struct{}{}:
			default:
			}
		}
	}
}

// handleEvent reports whether event should trigger a regeneration and starts
// watching directories created under the root.
func (watcher *Watcher) handleEvent(event fsnotify.Event) bool {
	if event.Op == fsnotify.Chmod {
		return false
	}
	relativePath := utils.RelativePathOrSelf(event.Name, watcher.root)
	if !utils.IsWithinRoot(relativePath) {
		return false
	}

	isDirectory := false
	if event.Has(fsnotify.Create) {
		if info, statError := os.Stat(event.Name); statError == nil && info.IsDir() {
			isDirectory = true
		}
	}
	if watcher.skip(relativePath, isDirectory) {
		return false
	}
	if isDirectory {
		if err := watcher.addTree(event.Name, false); err != nil {
			watcher.logger.Warn(warningWatchDirectoryMessage, zap.String("path", event.Name), zap.Error(err))
		}
	}
	return true
}

// addTree watches directory and every non-skipped directory below it. Errors
// below the starting directory are logged; strict makes a failure on the
// starting directory itself fatal.
func (watcher *Watcher) addTree(directory string, strict bool) error {
	return filepath.WalkDir(directory, func(path string, entry fs.DirEntry, walkError error) error {
		if walkError != nil {
			if strict && path == directory {
				return walkError
			}
			watcher.logger.Warn(warningWatchDirectoryMessage, zap.String("path", path), zap.Error(walkError))
			if entry != nil && entry.IsDir() {
				return filepath.SkipDir
			}
			return nil
		}
		if !entry.IsDir() {
			return nil
		}
		if path != watcher.root {
			relativePath := utils.RelativePathOrSelf(path, watcher.root)
			if watcher.skip(relativePath, true) {
				return filepath.SkipDir
			}
		}
		if addError := watcher.watcher.Add(path); addError != nil {
			if strict && path == directory {
				return addError
			}
			watcher.logger.Warn(warningWatchDirectoryMessage, zap.String("path", path), zap.Error(addError))
		}
		return nil
	})
}
