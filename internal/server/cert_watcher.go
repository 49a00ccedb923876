package server

import (
	"fmt"
	"os"
	"path/filepath"
	"slices"
	"sync"
	"time"

	"github.com/fsnotify/fsnotify"

	"vocatio/internal/errors"
)

// CertWatcher watches PEM files and calls onChange, debounced, when any of
// them is written, created or renamed over.
type CertWatcher struct {
	mu sync.Mutex

	files    []string
	modTimes map[string]time.Time

	fsWatcher     *fsnotify.Watcher
	debounceDelay time.Duration
	debounceTimer *time.Timer

	stop    chan struct{}
	fire    chan struct{}
	done    chan struct{}
	running bool

	onChange func()
	logger   *errors.Logger
}

// NewCertWatcher creates a watcher for the non-empty paths in files.
func NewCertWatcher(files []string, debounceDelay time.Duration, onChange func(), logger *errors.Logger) *CertWatcher {
	if debounceDelay <= 0 {
		debounceDelay = time.Second
	}
	files = slices.DeleteFunc(slices.Clone(files), func(f string) bool { return f == "" })

	return &CertWatcher{
		files:         files,
		modTimes:      make(map[string]time.Time),
		debounceDelay: debounceDelay,
		fire:          make(chan struct{}, 1),
		onChange:      onChange,
		logger:        logger,
	}
}

// Start watches the directories holding the files, which also catches
// files replaced by rename.
func (cw *CertWatcher) Start() error {
	cw.mu.Lock()
	defer cw.mu.Unlock()

	if cw.running {
		return fmt.Errorf("certificate watcher is already running")
	}

	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return fmt.Errorf("failed to create file watcher: %w", err)
	}

	dirs := map[string]bool{}
	for _, file := range cw.files {
		cw.changed(file)
		dirs[filepath.Dir(file)] = true
	}
	for dir := range dirs {
		if err := watcher.Add(dir); err != nil {
			_ = watcher.Close()
			return fmt.Errorf("failed to watch directory %s: %w", dir, err)
		}
	}

	cw.fsWatcher = watcher
	cw.stop = make(chan struct{})
	cw.done = make(chan struct{})
	cw.running = true
	go cw.watchLoop(watcher, cw.stop, cw.done)

	cw.logger.Info("Certificate file watcher started",
		"files", cw.files,
		"debounce_delay", cw.debounceDelay)
	return nil
}

// Stop stops the watcher and waits for its loop to exit.
func (cw *CertWatcher) Stop() error {
	cw.mu.Lock()
	if !cw.running {
		cw.mu.Unlock()
		return nil
	}
	cw.running = false
	close(cw.stop)
	if cw.debounceTimer != nil {
		cw.debounceTimer.Stop()
	}
	done := cw.done
	err := cw.fsWatcher.Close()
	cw.mu.Unlock()

	<-done
	cw.logger.Info("Certificate file watcher stopped")
	return err
}

// IsRunning returns whether the watcher is currently running.
func (cw *CertWatcher) IsRunning() bool {
	cw.mu.Lock()
	defer cw.mu.Unlock()
	return cw.running
}

// Files returns the watched paths.
func (cw *CertWatcher) Files() []string {
	return slices.Clone(cw.files)
}

func (cw *CertWatcher) watchLoop(watcher *fsnotify.Watcher, stop, done chan struct{}) {
	defer close(done)
	for {
		select {
		case event, ok := <-watcher.Events:
			if !ok {
				return
			}
			if cw.isRelevant(event) {
				cw.scheduleReload()
			}

		case err, ok := <-watcher.Errors:
			if !ok {
				return
			}
			cw.logger.LogError(err, "File watcher error")

		case <-cw.fire:
			if cw.anyChanged() {
				cw.logger.Info("Certificate files changed, triggering reload")
				cw.onChange()
			}

		case <-stop:
			return
		}
	}
}

func (cw *CertWatcher) isRelevant(event fsnotify.Event) bool {
	if event.Op&(fsnotify.Write|fsnotify.Create|fsnotify.Rename) == 0 {
		return false
	}
	return slices.ContainsFunc(cw.files, func(f string) bool {
		return filepath.Clean(event.Name) == filepath.Clean(f)
	})
}

func (cw *CertWatcher) scheduleReload() {
	cw.mu.Lock()
	defer cw.mu.Unlock()

	if cw.debounceTimer != nil {
		cw.debounceTimer.Stop()
	}
	cw.debounceTimer = time.AfterFunc(cw.debounceDelay, func() {
		select {
		case cw.fire <- struct{}{}:
		default:
		}
	})
}

func (cw *CertWatcher) anyChanged() bool {
	cw.mu.Lock()
	defer cw.mu.Unlock()

	changed := false
	for _, file := range cw.files {
		if cw.changed(file) {
			changed = true
		}
	}
	return changed
}

// changed records the current mod time of file and reports whether it moved.
// Callers hold cw.mu.
func (cw *CertWatcher) changed(file string) bool {
	stat, err := os.Stat(file)
	if err != nil {
		_, known := cw.modTimes[file]
		delete(cw.modTimes, file)
		return known
	}

	last, known := cw.modTimes[file]
	cw.modTimes[file] = stat.ModTime()
	return !known || !stat.ModTime().Equal(last)
}
