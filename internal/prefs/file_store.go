package prefs

import (
	"errors"
	"os"
	"path/filepath"
	"sync"

	"github.com/fsnotify/fsnotify"
	"github.com/launchdarkly/go-sdk-common/v3/ldlog"
	"gopkg.in/ghodss/yaml.v1"
)

// FileStore is a Store persisted to a single YAML file. The file is the
// source of truth: every write rewrites it atomically, and a file watcher
// reloads the in-memory snapshot when another process (for instance a
// notification service extension sharing the same preference file) modifies
// it.
//
// YAML is a superset of JSON here, so a preference file written as JSON by an
// earlier SDK version loads unchanged.
type FileStore struct {
	path    string
	loggers ldlog.Loggers

	mu     sync.RWMutex
	values map[string]string

	watcher   *fsnotify.Watcher
	closeCh   chan struct{}
	closeOnce sync.Once
}

// NewFileStore opens (creating if necessary) the preference file at path and
// starts watching it for external modifications.
func NewFileStore(path string, loggers ldlog.Loggers) (*FileStore, error) {
	if err := os.MkdirAll(filepath.Dir(path), 0o700); err != nil {
		return nil, err
	}
	s := &FileStore{
		path:    path,
		loggers: loggers,
		values:  make(map[string]string),
		closeCh: make(chan struct{}),
	}
	if err := s.reload(); err != nil {
		return nil, err
	}
	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, err
	}
	// Watch the directory rather than the file itself: atomic writes replace
	// the file, which would otherwise invalidate the watch.
	if err := watcher.Add(filepath.Dir(path)); err != nil {
		_ = watcher.Close()
		return nil, err
	}
	s.watcher = watcher
	go s.watchForChanges()
	return s, nil
}

// Get implements Store.
func (s *FileStore) Get(key string) (string, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	v, ok := s.values[key]
	return v, ok
}

// Set implements Store.
func (s *FileStore) Set(key, value string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.values[key] = value
	return s.saveLocked()
}

// Delete implements Store.
func (s *FileStore) Delete(key string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.values, key)
	return s.saveLocked()
}

// Close stops the file watcher. The file itself is left in place.
func (s *FileStore) Close() error {
	var err error
	s.closeOnce.Do(func() {
		close(s.closeCh)
		if s.watcher != nil {
			err = s.watcher.Close()
		}
	})
	return err
}

func (s *FileStore) reload() error {
	data, err := os.ReadFile(s.path)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return nil
		}
		return err
	}
	values := make(map[string]string)
	if len(data) > 0 {
		if err := yaml.Unmarshal(data, &values); err != nil {
			return err
		}
	}
	s.mu.Lock()
	s.values = values
	s.mu.Unlock()
	return nil
}

// saveLocked writes the current snapshot via a temp file and rename, so a
// concurrent reader never observes a partially written preference file.
func (s *FileStore) saveLocked() error {
	data, err := yaml.Marshal(s.values)
	if err != nil {
		return err
	}
	tmp := s.path + ".tmp"
	if err := os.WriteFile(tmp, data, 0o600); err != nil {
		return err
	}
	return os.Rename(tmp, s.path)
}

func (s *FileStore) watchForChanges() {
	for {
		select {
		case <-s.closeCh:
			return
		case event, ok := <-s.watcher.Events:
			if !ok {
				return
			}
			if filepath.Clean(event.Name) != filepath.Clean(s.path) {
				continue
			}
			if event.Op&(fsnotify.Write|fsnotify.Create|fsnotify.Rename) == 0 {
				continue
			}
			if err := s.reload(); err != nil {
				s.loggers.Warnf("Failed to reload preference file %s: %s", s.path, err)
			}
		case err, ok := <-s.watcher.Errors:
			if !ok {
				return
			}
			s.loggers.Warnf("Preference file watcher error: %s", err)
		}
	}
}
