// Package history persists chat turns per user and serves recent windows of them.
package history

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"sync"
	"time"

	"skychat/internal/models"
)

// ErrStoreUnavailable is returned by backends that cannot reach their store.
var ErrStoreUnavailable = errors.New("history store unavailable")

// Store is a per-user append-only message log.
type Store interface {
	// Put writes one message. Timestamp is already assigned.
	Put(ctx context.Context, msg models.Message) error
	// Query returns up to limit messages for userID, newest first.
	Query(ctx context.Context, userID string, limit int) ([]models.Message, error)
	Close() error
}

// Recorder assigns timestamps on write and re-sorts reads chronologically.
type Recorder struct {
	store   Store
	enabled bool
	now     func() time.Time

	mu   sync.Mutex
	last time.Time
}

// NewRecorder wraps store. A nil store behaves like Disabled().
func NewRecorder(store Store) *Recorder {
	if store == nil {
		store = Disabled()
	}
	_, disabled := store.(disabledStore)
	return &Recorder{store: store, enabled: !disabled, now: time.Now}
}

// Enabled reports whether messages are persisted at all.
func (r *Recorder) Enabled() bool {
	return r.enabled
}

// Append stores text for userID under a fresh, strictly increasing UTC timestamp.
func (r *Recorder) Append(ctx context.Context, userID string, sender models.Sender, text string) (models.Message, error) {
	msg := models.Message{
		UserID:    userID,
		Timestamp: models.FormatTimestamp(r.nextTimestamp()),
		Sender:    sender,
		Text:      text,
	}
	if !r.enabled {
		return msg, nil
	}
	if err := r.store.Put(ctx, msg); err != nil {
		return msg, fmt.Errorf("append %s message: %w", sender, err)
	}
	return msg, nil
}

// Recent returns at most limit of the newest messages for userID, oldest first.
func (r *Recorder) Recent(ctx context.Context, userID string, limit int) ([]models.Message, error) {
	if !r.enabled || limit <= 0 {
		return []models.Message{}, nil
	}
	items, err := r.store.Query(ctx, userID, limit)
	if err != nil {
		return nil, fmt.Errorf("load history: %w", err)
	}
	out := make([]models.Message, len(items))
	copy(out, items)
	sort.SliceStable(out, func(i, j int) bool {
		return out[i].Timestamp < out[j].Timestamp
	})
	if len(out) > limit {
		out = out[len(out)-limit:]
	}
	return out, nil
}

// Close releases the underlying store.
func (r *Recorder) Close() error {
	return r.store.Close()
}

func (r *Recorder) nextTimestamp() time.Time {
	r.mu.Lock()
	defer r.mu.Unlock()
	ts := r.now().UTC().Truncate(time.Microsecond)
	if !ts.After(r.last) {
		ts = r.last.Add(time.Microsecond)
	}
	r.last = ts
	return ts
}

type disabledStore struct{}

// Disabled returns the degraded-mode store: writes vanish, reads are empty.
func Disabled() Store {
	return disabledStore{}
}

func (disabledStore) Put(context.Context, models.Message) error { return nil }

func (disabledStore) Query(context.Context, string, int) ([]models.Message, error) {
	return nil, nil
}

func (disabledStore) Close() error { return nil }
