// Package queue is the durable offline mutation queue: writes attempted
// while disconnected are appended here and replayed against the store when
// connectivity returns. Entries are replayed oldest-first; a failing entry
// is retried on later drains until it hits the attempt cap, then moves to a
// quarantined dead-letter list instead of blocking forever.
package queue

import (
	"encoding/json"
	"errors"
	"fmt"
	"math/rand"
	"os"
	"path/filepath"
	"sync"
	"time"

	logrus "github.com/sirupsen/logrus"

	"fleet_tracker/internal/store"
)

// Entry is one deferred write. The id is client-generated from the clock
// plus a random suffix; the collision risk is accepted as negligible.
type Entry struct {
	ID         string          `json:"id"`
	Method     string          `json:"method"`
	Path       string          `json:"path"`
	Body       json.RawMessage `json:"body,omitempty"`
	EnqueuedAt time.Time       `json:"enqueued_at"`
	Attempts   int             `json:"attempts"`
	LastError  string          `json:"last_error,omitempty"`
}

// queueFile is the serialized whole-list layout persisted on every change.
type queueFile struct {
	Pending []Entry `json:"pending"`
	Dead    []Entry `json:"dead"`
}

var ErrEntryNotFound = errors.New("queue entry not found")

type Queue struct {
	mu          sync.Mutex
	path        string
	st          *store.Store
	maxAttempts int

	pending []Entry
	dead    []Entry

	stopCh chan struct{}
	wg     sync.WaitGroup
}

// New loads the persisted queue (an absent file means an empty queue).
func New(st *store.Store, path string, maxAttempts int) (*Queue, error) {
	q := &Queue{path: path, st: st, maxAttempts: maxAttempts}
	raw, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return q, nil
		}
		return nil, fmt.Errorf("read queue file: %w", err)
	}
	var f queueFile
	if err := json.Unmarshal(raw, &f); err != nil {
		return nil, fmt.Errorf("decode queue file: %w", err)
	}
	q.pending = f.Pending
	q.dead = f.Dead
	return q, nil
}

// save writes the whole list atomically (temp file + rename). Callers hold
// the mutex.
func (q *Queue) save() error {
	raw, err := json.MarshalIndent(queueFile{Pending: q.pending, Dead: q.dead}, "", "  ")
	if err != nil {
		return err
	}
	tmp := q.path + ".tmp"
	if err := os.MkdirAll(filepath.Dir(q.path), 0o755); err != nil {
		return err
	}
	if err := os.WriteFile(tmp, raw, 0o644); err != nil {
		return err
	}
	return os.Rename(tmp, q.path)
}

func genID() string {
	return fmt.Sprintf("%d-%06x", time.Now().UnixMilli(), rand.Intn(1<<24))
}

// Enqueue appends a deferred write and persists the queue.
func (q *Queue) Enqueue(method, path string, body []byte) (Entry, error) {
	q.mu.Lock()
	defer q.mu.Unlock()

	e := Entry{
		ID:         genID(),
		Method:     method,
		Path:       path,
		Body:       body,
		EnqueuedAt: time.Now(),
	}
	q.pending = append(q.pending, e)
	if err := q.save(); err != nil {
		return Entry{}, err
	}
	logrus.WithFields(logrus.Fields{"id": e.ID, "method": method, "path": path}).Info("queued offline mutation")
	return e, nil
}

// Drain replays up to limit of the oldest entries in enqueue order.
// Successes are dropped; failures are requeued after the untouched
// remainder unless they exhausted their attempts (or are unsupported), in
// which case they move to the dead-letter list.
func (q *Queue) Drain(limit int) (applied int, err error) {
	q.mu.Lock()
	defer q.mu.Unlock()

	if limit <= 0 || len(q.pending) == 0 {
		return 0, nil
	}
	if limit > len(q.pending) {
		limit = len(q.pending)
	}

	batch := q.pending[:limit]
	remainder := append([]Entry{}, q.pending[limit:]...)

	for _, e := range batch {
		replayErr := q.replay(e)
		if replayErr == nil {
			applied++
			continue
		}

		e.Attempts++
		e.LastError = replayErr.Error()
		if errors.Is(replayErr, ErrUnsupportedReplay) || e.Attempts >= q.maxAttempts {
			logrus.WithFields(logrus.Fields{"id": e.ID, "attempts": e.Attempts}).
				WithError(replayErr).Warn("quarantining queue entry")
			q.dead = append(q.dead, e)
		} else {
			remainder = append(remainder, e)
		}
	}

	q.pending = remainder
	if err := q.save(); err != nil {
		return applied, err
	}
	return applied, nil
}

// ReplayOne replays a single named entry outside the drain cycle. It is
// removed on success and left untouched on failure.
func (q *Queue) ReplayOne(id string) error {
	q.mu.Lock()
	defer q.mu.Unlock()

	for i, e := range q.pending {
		if e.ID != id {
			continue
		}
		if err := q.replay(e); err != nil {
			return err
		}
		q.pending = append(q.pending[:i], q.pending[i+1:]...)
		return q.save()
	}
	return ErrEntryNotFound
}

// Clear unconditionally empties the pending queue (logout, explicit user
// action).
func (q *Queue) Clear() error {
	q.mu.Lock()
	defer q.mu.Unlock()
	q.pending = nil
	return q.save()
}

// Pending returns a snapshot of the deferred entries.
func (q *Queue) Pending() []Entry {
	q.mu.Lock()
	defer q.mu.Unlock()
	return append([]Entry{}, q.pending...)
}

// DeadLetters returns a snapshot of the quarantined entries.
func (q *Queue) DeadLetters() []Entry {
	q.mu.Lock()
	defer q.mu.Unlock()
	return append([]Entry{}, q.dead...)
}

// RequeueDead moves a quarantined entry back to the pending list with its
// attempt counter reset.
func (q *Queue) RequeueDead(id string) error {
	q.mu.Lock()
	defer q.mu.Unlock()

	for i, e := range q.dead {
		if e.ID != id {
			continue
		}
		e.Attempts = 0
		e.LastError = ""
		q.dead = append(q.dead[:i], q.dead[i+1:]...)
		q.pending = append(q.pending, e)
		return q.save()
	}
	return ErrEntryNotFound
}

// ClearDead empties the dead-letter list.
func (q *Queue) ClearDead() error {
	q.mu.Lock()
	defer q.mu.Unlock()
	q.dead = nil
	return q.save()
}

// Start runs the background drain ticker. Timer drains and explicit drains
// share the queue mutex, so overlapping passes cannot resurrect entries.
func (q *Queue) Start(interval time.Duration, limit int) {
	if q.stopCh != nil {
		return
	}
	q.stopCh = make(chan struct{})
	q.wg.Add(1)
	go func() {
		defer q.wg.Done()
		ticker := time.NewTicker(interval)
		defer ticker.Stop()
		for {
			select {
			case <-ticker.C:
				if n, err := q.Drain(limit); err != nil {
					logrus.WithError(err).Error("background drain failed")
				} else if n > 0 {
					logrus.WithField("applied", n).Info("background drain applied entries")
				}
			case <-q.stopCh:
				return
			}
		}
	}()
}

// Stop halts the background drain and waits for it to exit.
func (q *Queue) Stop() {
	if q.stopCh == nil {
		return
	}
	close(q.stopCh)
	q.wg.Wait()
	q.stopCh = nil
}
