// Package watch reduces images as they appear in a directory.
package watch

import (
	"context"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/fsnotify/fsnotify"
	"github.com/rs/zerolog"

	"wio/internal/processor"
	"wio/pkg/imgutil"
)

const (
	DefaultDebounce = 500 * time.Millisecond
	// DefaultQuiet is how long events for a file this process just wrote are ignored.
	DefaultQuiet = 2 * time.Second
)

// Watcher feeds new and modified images under a directory to a Runner.
type Watcher struct {
	root      string
	recursive bool
	runner    *processor.Runner
	tmpl      processor.ImageTask
	log       zerolog.Logger

	Debounce time.Duration
	Quiet    time.Duration

	fsw    *fsnotify.Watcher
	ready  chan string
	mu     sync.Mutex
	timers map[string]*time.Timer
	wrote  map[string]time.Time
}

// New prepares a watcher on root. Run starts it.
func New(root string, recursive bool, runner *processor.Runner, tmpl processor.ImageTask, log zerolog.Logger) (*Watcher, error) {
	fsw, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, fmt.Errorf("watch: create watcher: %w", err)
	}
	return &Watcher{
		root:      root,
		recursive: recursive,
		runner:    runner,
		tmpl:      tmpl,
		log:       log,
		Debounce:  DefaultDebounce,
		Quiet:     DefaultQuiet,
		fsw:       fsw,
		ready:     make(chan string, 64),
		timers:    make(map[string]*time.Timer),
		wrote:     make(map[string]time.Time),
	}, nil
}

// Run blocks until ctx is done, reducing each settled image one at a time.
// The returned summary covers every file handled during the session.
func (w *Watcher) Run(ctx context.Context, updates chan<- processor.ProgressUpdate) (processor.Summary, error) {
	var total processor.Summary
	defer w.close()

	if err := w.addTree(w.root); err != nil {
		return total, err
	}
	w.log.Info().Str("root", w.root).Bool("recursive", w.recursive).Msg("watching")

	for {
		select {
		case <-ctx.Done():
			return total, nil

		case event, ok := <-w.fsw.Events:
			if !ok {
				return total, nil
			}
			w.handleEvent(event)

		case err, ok := <-w.fsw.Errors:
			if !ok {
				return total, nil
			}
			w.log.Warn().Err(err).Msg("watcher error")

		case path := <-w.ready:
			if w.recentlyWritten(path) {
				continue
			}
			task := w.tmpl
			task.Path = path
			summary, err := w.runner.Run(ctx, []processor.ImageTask{task}, false, updates)
			if err != nil {
				w.log.Warn().Err(err).Str("path", path).Msg("reduce failed")
				continue
			}
			for _, res := range summary.Results {
				w.markWritten(res.Source, res.Output, processor.PNGTempPath(res.Source))
				if res.BackupPath != "" {
					w.markWritten(res.BackupPath)
				}
			}
			total.Merge(summary)
		}
	}
}

func (w *Watcher) handleEvent(event fsnotify.Event) {
	if event.Op&(fsnotify.Create|fsnotify.Write) == 0 {
		return
	}

	if event.Op&fsnotify.Create != 0 && w.recursive {
		if info, err := os.Stat(event.Name); err == nil && info.IsDir() {
			if err := w.addTree(event.Name); err != nil {
				w.log.Warn().Err(err).Str("dir", event.Name).Msg("cannot watch new directory")
			}
			return
		}
	}

	if !ShouldHandle(event.Name) {
		return
	}

	w.mu.Lock()
	defer w.mu.Unlock()
	if timer, exists := w.timers[event.Name]; exists {
		timer.Stop()
	}
	name := event.Name
	w.timers[name] = time.AfterFunc(w.Debounce, func() {
		w.mu.Lock()
		delete(w.timers, name)
		w.mu.Unlock()
		select {
		case w.ready <- name:
		default:
			w.log.Warn().Str("path", name).Msg("watch queue full, dropping event")
		}
	})
}

func (w *Watcher) addTree(root string) error {
	if !w.recursive {
		if err := w.fsw.Add(root); err != nil {
			return fmt.Errorf("watch %s: %w", root, err)
		}
		return nil
	}
	return filepath.WalkDir(root, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if !d.IsDir() {
			return nil
		}
		if err := w.fsw.Add(path); err != nil {
			return fmt.Errorf("watch %s: %w", path, err)
		}
		return nil
	})
}

func (w *Watcher) markWritten(paths ...string) {
	now := time.Now()
	w.mu.Lock()
	defer w.mu.Unlock()
	for _, p := range paths {
		w.wrote[p] = now
	}
}

func (w *Watcher) recentlyWritten(path string) bool {
	w.mu.Lock()
	defer w.mu.Unlock()
	at, ok := w.wrote[path]
	if !ok {
		return false
	}
	if time.Since(at) < w.Quiet {
		return true
	}
	delete(w.wrote, path)
	return false
}

func (w *Watcher) close() {
	w.mu.Lock()
	for _, t := range w.timers {
		t.Stop()
	}
	w.mu.Unlock()
	_ = w.fsw.Close()
}

// ShouldHandle reports whether a changed file is an image worth reducing.
// Backups, dotfiles and the tool's own temporaries are skipped.
func ShouldHandle(path string) bool {
	base := filepath.Base(path)
	if strings.HasPrefix(base, ".") {
		return false
	}
	if strings.HasSuffix(strings.ToLower(base), processor.TempSuffix) {
		return false
	}
	return imgutil.Supported(base)
}
