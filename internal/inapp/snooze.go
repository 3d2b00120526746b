package inapp

import (
	"time"

	"github.com/launchdarkly/go-jsonstream/v3/jreader"
	"github.com/launchdarkly/go-jsonstream/v3/jwriter"
	"github.com/launchdarkly/go-sdk-common/v3/ldlog"
	gocache "github.com/patrickmn/go-cache"

	"github.com/zaikorea/blux-go-client-sdk/internal/prefs"
)

const snoozeCleanupInterval = 10 * time.Minute

// snoozeStateKey is the preference key holding the serialized snooze map
// when the store-backed constructor is used. It lives in the same store as
// the device identity.
const snoozeStateKey = "bluxInappHideUntil"

// SnoozeStore persists per-message "hide until" suppression windows, keyed by
// inapp id. Entries are RFC 3339 timestamps; the TTL cache evicts them once
// the window has passed, and either a file or a preference store carries them
// across restarts.
type SnoozeStore struct {
	cache   *gocache.Cache
	path    string
	store   prefs.Store
	loggers ldlog.Loggers
	now     func() time.Time
}

// NewSnoozeStore opens the snooze store backed by the file at path. An empty
// path disables persistence (used by tests). A corrupt or missing file is
// treated as an empty store.
func NewSnoozeStore(path string, loggers ldlog.Loggers) *SnoozeStore {
	c := gocache.New(gocache.NoExpiration, snoozeCleanupInterval)
	if path != "" {
		if err := c.LoadFile(path); err != nil {
			loggers.Debugf("No snooze state loaded from %s: %s", path, err)
		}
	}
	return &SnoozeStore{cache: c, path: path, loggers: loggers, now: time.Now}
}

// NewStoreBackedSnoozeStore opens a snooze store that persists through the
// given preference store, under a single key alongside the device identity.
// A missing or corrupt stored value is treated as an empty store.
func NewStoreBackedSnoozeStore(store prefs.Store, loggers ldlog.Loggers) *SnoozeStore {
	c := gocache.New(gocache.NoExpiration, snoozeCleanupInterval)
	s := &SnoozeStore{cache: c, store: store, loggers: loggers, now: time.Now}
	if raw, ok := store.Get(snoozeStateKey); ok {
		entries, err := parseSnoozeEntries([]byte(raw))
		if err != nil {
			loggers.Warnf("Discarding unreadable snooze state: %s", err)
			return s
		}
		for id, stamp := range entries {
			hideUntil, err := time.Parse(time.RFC3339, stamp)
			if err != nil || !hideUntil.After(s.now()) {
				continue
			}
			c.Set(id, stamp, time.Until(hideUntil))
		}
	}
	return s
}

// Snooze records that the message should stay hidden for the given number of
// days. Non-positive day counts are ignored.
func (s *SnoozeStore) Snooze(inappID string, days int) {
	if days <= 0 {
		return
	}
	hideUntil := s.now().AddDate(0, 0, days)
	s.cache.Set(inappID, hideUntil.UTC().Format(time.RFC3339), time.Until(hideUntil))
	s.persist()
}

// IsHidden reports whether the message's suppression window is still open.
// It is evaluated at dequeue time, not at enqueue time.
func (s *SnoozeStore) IsHidden(inappID string) bool {
	v, found := s.cache.Get(inappID)
	if !found {
		return false
	}
	stamp, ok := v.(string)
	if !ok {
		return false
	}
	hideUntil, err := time.Parse(time.RFC3339, stamp)
	if err != nil {
		return false
	}
	return hideUntil.After(s.now())
}

func (s *SnoozeStore) persist() {
	switch {
	case s.store != nil:
		if err := s.store.Set(snoozeStateKey, string(encodeSnoozeEntries(s.entries()))); err != nil {
			s.loggers.Warnf("Failed to persist snooze state: %s", err)
		}
	case s.path != "":
		if err := s.cache.SaveFile(s.path); err != nil {
			s.loggers.Warnf("Failed to persist snooze state to %s: %s", s.path, err)
		}
	}
}

func (s *SnoozeStore) entries() map[string]string {
	out := make(map[string]string)
	for id, item := range s.cache.Items() {
		if stamp, ok := item.Object.(string); ok {
			out[id] = stamp
		}
	}
	return out
}

func encodeSnoozeEntries(entries map[string]string) []byte {
	w := jwriter.NewWriter()
	obj := w.Object()
	for id, stamp := range entries {
		obj.Name(id).String(stamp)
	}
	obj.End()
	return w.Bytes()
}

func parseSnoozeEntries(data []byte) (map[string]string, error) {
	entries := make(map[string]string)
	r := jreader.NewReader(data)
	for obj := r.Object(); obj.Next(); {
		entries[string(obj.Name())] = r.String()
	}
	return entries, r.Error()
}
