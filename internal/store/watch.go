package store

import (
	"context"
	"fmt"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/fsnotify/fsnotify"
	"github.com/lib/pq"

	"github.com/sadopc/prodhub/internal/model"
)

const notifyChannel = "prodhub_changes"

type watch struct {
	owner      string
	collection model.Collection
	ch         chan struct{}
}

// notifier fans change signals out to watchers. Signals coalesce: a watcher
// that has not consumed the previous signal does not receive another.
type notifier struct {
	mu     sync.Mutex
	next   int
	subs   map[int]*watch
	closed bool
}

func newNotifier() *notifier {
	return &notifier{subs: make(map[int]*watch)}
}

func (n *notifier) subscribe(owner string, c model.Collection) (int, <-chan struct{}, bool) {
	n.mu.Lock()
	defer n.mu.Unlock()
	if n.closed {
		return 0, nil, false
	}
	n.next++
	w := &watch{owner: owner, collection: c, ch: make(chan struct{}, 1)}
	n.subs[n.next] = w
	return n.next, w.ch, true
}

func (n *notifier) unsubscribe(id int) {
	n.mu.Lock()
	defer n.mu.Unlock()
	if w, ok := n.subs[id]; ok {
		delete(n.subs, id)
		close(w.ch)
	}
}

// publish signals every watcher of (owner, collection). An empty owner or
// collection matches all.
func (n *notifier) publish(owner string, c model.Collection) {
	n.mu.Lock()
	defer n.mu.Unlock()
	for _, w := range n.subs {
		if owner != "" && w.owner != owner {
			continue
		}
		if c != "" && w.collection != c {
			continue
		}
		select {
		case w.ch <- struct{}{}:
		default:
		}
	}
}

func (n *notifier) close() {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.closed = true
	for id, w := range n.subs {
		delete(n.subs, id)
		close(w.ch)
	}
}

// Watch returns a channel that receives a signal whenever the owner's
// collection may have changed. The channel is closed when ctx ends or the
// store is closed. Signals carry no data; callers re-read a Snapshot.
func (s *Store) Watch(ctx context.Context, owner string, c model.Collection) (<-chan struct{}, error) {
	if strings.TrimSpace(owner) == "" || !c.Valid() {
		return nil, fmt.Errorf("watch %s for %q: %w", c, owner, ErrInvalidInput)
	}
	id, ch, ok := s.notify.subscribe(owner, c)
	if !ok {
		return nil, ErrClosed
	}
	go func() {
		select {
		case <-ctx.Done():
		case <-s.done:
		}
		s.notify.unsubscribe(id)
	}()
	return ch, nil
}

// watchFile signals all watchers when another process writes the database.
func (s *Store) watchFile(dbPath string) error {
	w, err := fsnotify.NewWatcher()
	if err != nil {
		return err
	}
	if err := w.Add(filepath.Dir(dbPath)); err != nil {
		w.Close()
		return err
	}
	s.watcher = w
	base := filepath.Base(dbPath)

	go func() {
		for {
			select {
			case ev, ok := <-w.Events:
				if !ok {
					return
				}
				name := filepath.Base(ev.Name)
				if name != base && name != base+"-wal" {
					continue
				}
				if ev.Has(fsnotify.Write) || ev.Has(fsnotify.Create) {
					s.notify.publish("", "")
				}
			case err, ok := <-w.Errors:
				if !ok {
					return
				}
				s.log.Warn().Err(err).Msg("database file watcher error")
			case <-s.done:
				return
			}
		}
	}()
	return nil
}

// listen subscribes to pg_notify payloads written by writeOps.
func (s *Store) listen(dsn string) error {
	l := pq.NewListener(dsn, 10*time.Second, time.Minute, func(ev pq.ListenerEventType, err error) {
		if err != nil {
			s.log.Warn().Err(err).Int("event", int(ev)).Msg("postgres listener event")
		}
	})
	if err := l.Listen(notifyChannel); err != nil {
		l.Close()
		return err
	}
	s.listener = l

	go func() {
		for {
			select {
			case n, ok := <-l.Notify:
				if !ok {
					return
				}
				if n == nil {
					// Reconnected; changes may have been missed.
					s.notify.publish("", "")
					continue
				}
				owner, c := parseNotifyPayload(n.Extra)
				s.notify.publish(owner, c)
			case <-s.done:
				return
			}
		}
	}()
	return nil
}

func notifyPayload(owner string, c model.Collection) string {
	return owner + "/" + string(c)
}

func parseNotifyPayload(payload string) (string, model.Collection) {
	i := strings.LastIndex(payload, "/")
	if i < 0 {
		return "", ""
	}
	c := model.Collection(payload[i+1:])
	if !c.Valid() {
		return payload[:i], ""
	}
	return payload[:i], c
}
