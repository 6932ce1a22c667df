// internal/watch/observer.go
package watch

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync"

	"github.com/fsnotify/fsnotify"
	"go.uber.org/zap"

	"turntrack/internal/gitroot"
	"turntrack/internal/track"
)

// Observer drives a Tracker from filesystem notifications. Events
// arrive after the mutation happened, so a brand-new file's baseline
// is its first observed content and later edits in the same turn diff
// against that. Callers wanting exact before-images should observe
// through Tracker.OnPatchBegin directly.
type Observer struct {
	root       string
	watcher    *fsnotify.Watcher
	ignoreDirs map[string]bool
	logger     *zap.Logger

	mu      sync.Mutex
	tracker *track.Tracker
	roots   *gitroot.Resolver

	done chan struct{}
}

func New(root string, logger *zap.Logger) (*Observer, error) {
	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, fmt.Errorf("creating file watcher: %w", err)
	}

	if logger == nil {
		logger = zap.NewNop()
	}

	roots := gitroot.NewResolver()
	o := &Observer{
		root:    root,
		watcher: watcher,
		ignoreDirs: map[string]bool{
			".git":         true,
			"node_modules": true,
			"vendor":       true,
			"dist":         true,
			"build":        true,
		},
		logger:  logger,
		tracker: track.New(track.WithLogger(logger), track.WithRootResolver(roots)),
		roots:   roots,
		done:    make(chan struct{}),
	}

	if err := o.addWatchDirs(); err != nil {
		watcher.Close()
		return nil, fmt.Errorf("watching %s: %w", root, err)
	}

	go o.watchLoop()
	return o, nil
}

func (o *Observer) addWatchDirs() error {
	return filepath.Walk(o.root, func(path string, info os.FileInfo, err error) error {
		if err != nil {
			return err
		}
		if !info.IsDir() {
			return nil
		}
		if o.shouldIgnore(path) {
			return filepath.SkipDir
		}
		return o.watcher.Add(path)
	})
}

func (o *Observer) watchLoop() {
	defer close(o.done)
	for {
		select {
		case event, ok := <-o.watcher.Events:
			if !ok {
				return
			}
			o.handleEvent(event)
		case err, ok := <-o.watcher.Errors:
			if !ok {
				return
			}
			o.logger.Error("watcher error", zap.Error(err))
		}
	}
}

func (o *Observer) handleEvent(event fsnotify.Event) {
	if o.shouldIgnore(event.Name) {
		return
	}

	if event.Op&fsnotify.Create != 0 {
		if info, err := os.Stat(event.Name); err == nil && info.IsDir() {
			if err := o.watcher.Add(event.Name); err != nil {
				o.logger.Error("adding new directory to watcher", zap.Error(err))
			}
			return
		}
	}

	var change track.FileChange
	switch {
	case event.Op&fsnotify.Create != 0:
		change = track.Add{}
	case event.Op&(fsnotify.Write|fsnotify.Chmod) != 0:
		change = track.Update{}
	case event.Op&(fsnotify.Remove|fsnotify.Rename) != 0:
		change = track.Delete{}
	default:
		return
	}

	o.mu.Lock()
	err := o.tracker.OnPatchBegin([]track.PathChange{{Path: event.Name, Change: change}})
	o.mu.Unlock()
	if err != nil {
		o.logger.Error("observing change",
			zap.String("path", event.Name),
			zap.Error(err))
	}
}

func (o *Observer) shouldIgnore(path string) bool {
	rel, err := filepath.Rel(o.root, path)
	if err != nil {
		return true
	}
	for _, part := range strings.Split(rel, string(filepath.Separator)) {
		if o.ignoreDirs[part] {
			return true
		}
	}
	return false
}

// tracked reports whether the current turn has an identity for path.
func (o *Observer) tracked(path string) bool {
	o.mu.Lock()
	defer o.mu.Unlock()
	_, ok := o.tracker.IdentityOf(path)
	return ok
}

// Diff synthesizes the current turn's aggregate diff without ending
// the turn.
func (o *Observer) Diff() (string, error) {
	o.mu.Lock()
	defer o.mu.Unlock()
	return o.tracker.UnifiedDiff()
}

// EndTurn synthesizes the aggregate diff and starts a fresh turn. The
// repository-root cache carries over across turns.
func (o *Observer) EndTurn() (string, error) {
	o.mu.Lock()
	defer o.mu.Unlock()

	out, err := o.tracker.UnifiedDiff()
	if err != nil {
		return "", err
	}
	o.tracker = track.New(track.WithLogger(o.logger), track.WithRootResolver(o.roots))
	return out, nil
}

func (o *Observer) Close() error {
	err := o.watcher.Close()
	<-o.done
	return err
}
