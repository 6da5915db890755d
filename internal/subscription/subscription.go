// Package subscription turns the backing store's change signals into a
// stream of complete collection snapshots for one owner.
package subscription

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"github.com/rs/zerolog"

	"github.com/sadopc/prodhub/internal/metrics"
	"github.com/sadopc/prodhub/internal/model"
)

var (
	ErrClosed     = errors.New("subscription manager closed")
	ErrFeedClosed = errors.New("feed closed by store")
	ErrActive     = errors.New("subscription already active")
)

// Feed is the part of the backing store a subscription needs.
type Feed interface {
	Watch(ctx context.Context, owner string, c model.Collection) (<-chan struct{}, error)
	Snapshot(ctx context.Context, owner string, c model.Collection) (model.Snapshot, error)
}

type State int

const (
	Disconnected State = iota
	Connecting
	Active
)

func (s State) String() string {
	switch s {
	case Connecting:
		return "connecting"
	case Active:
		return "active"
	}
	return "disconnected"
}

// Message carries either a full snapshot of one collection or the error
// that ended its subscription.
type Message struct {
	Collection model.Collection
	Snapshot   model.Snapshot
	Err        error
	Generation uint64
}

type Options struct {
	Logger *zerolog.Logger
}

type sub struct {
	state  State
	cancel context.CancelFunc
}

// Manager owns one subscription per collection. Snapshots of a collection
// are delivered in the order they were read; messages of different
// collections interleave arbitrarily.
type Manager struct {
	feed  Feed
	owner string
	log   zerolog.Logger

	out chan Message
	wg  sync.WaitGroup

	mu     sync.Mutex
	gen    uint64
	subs   map[model.Collection]*sub
	closed bool
}

func NewManager(feed Feed, owner string, opts Options) *Manager {
	log := zerolog.Nop()
	if opts.Logger != nil {
		log = *opts.Logger
	}
	return &Manager{
		feed:  feed,
		owner: owner,
		log:   log.With().Str("component", "subscription").Str("owner", owner).Logger(),
		out:   make(chan Message),
		gen:   1,
		subs:  make(map[model.Collection]*sub),
	}
}

// Messages is closed by Close once every feed has stopped.
func (m *Manager) Messages() <-chan Message {
	return m.out
}

// Start subscribes to every collection.
func (m *Manager) Start(ctx context.Context) error {
	for _, c := range model.Collections {
		if err := m.Subscribe(ctx, c); err != nil {
			return &StartError{Collection: c, Err: err}
		}
	}
	return nil
}

// StartError names the collection whose feed Start could not establish.
type StartError struct {
	Collection model.Collection
	Err        error
}

func (e *StartError) Error() string { return e.Err.Error() }
func (e *StartError) Unwrap() error { return e.Err }

// Subscribe establishes the live feed for c. The first snapshot is read
// immediately; later snapshots follow each change signal. Failures are not
// retried: the subscription moves to Disconnected and an error Message is
// delivered.
func (m *Manager) Subscribe(ctx context.Context, c model.Collection) error {
	if !c.Valid() {
		return fmt.Errorf("subscribe: unknown collection %q", c)
	}

	m.mu.Lock()
	if m.closed {
		m.mu.Unlock()
		return ErrClosed
	}
	if s, ok := m.subs[c]; ok && s.state != Disconnected {
		m.mu.Unlock()
		return fmt.Errorf("subscribe %s: %w", c, ErrActive)
	}
	fctx, cancel := context.WithCancel(ctx)
	s := &sub{state: Connecting, cancel: cancel}
	m.subs[c] = s
	gen := m.gen
	// Counted before unlocking so that Close waits for this feed.
	m.wg.Add(1)
	m.mu.Unlock()

	signals, err := m.feed.Watch(fctx, m.owner, c)
	if err != nil {
		cancel()
		m.setState(s, Disconnected)
		m.wg.Done()
		metrics.SubscriptionFailures.WithLabelValues(string(c)).Inc()
		return fmt.Errorf("subscribe %s: %w", c, err)
	}

	go m.run(fctx, c, s, gen, signals)
	m.log.Debug().Str("collection", string(c)).Msg("subscribed")
	return nil
}

// Resubscribe re-establishes a subscription that ended with an error.
func (m *Manager) Resubscribe(ctx context.Context, c model.Collection) error {
	return m.Subscribe(ctx, c)
}

func (m *Manager) State(c model.Collection) State {
	m.mu.Lock()
	defer m.mu.Unlock()
	if s, ok := m.subs[c]; ok {
		return s.state
	}
	return Disconnected
}

// Generation returns the current teardown generation.
func (m *Manager) Generation() uint64 {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.gen
}

// Current reports whether msg belongs to the live generation. Messages
// read after Close are never current.
func (m *Manager) Current(msg Message) bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	return !m.closed && msg.Generation == m.gen
}

// Close tears down every subscription, waits for the feeds to stop and
// closes the Messages channel.
func (m *Manager) Close() {
	m.mu.Lock()
	if m.closed {
		m.mu.Unlock()
		return
	}
	m.closed = true
	m.gen++
	for _, s := range m.subs {
		s.cancel()
		s.state = Disconnected
	}
	m.mu.Unlock()

	m.wg.Wait()
	close(m.out)
	m.log.Debug().Msg("subscriptions closed")
}

func (m *Manager) setState(s *sub, st State) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if !m.closed {
		s.state = st
	}
}

func (m *Manager) run(ctx context.Context, c model.Collection, s *sub, gen uint64, signals <-chan struct{}) {
	defer m.wg.Done()
	defer s.cancel()

	if !m.deliver(ctx, c, s, gen) {
		return
	}
	for {
		select {
		case <-ctx.Done():
			return
		case _, ok := <-signals:
			if !ok {
				if ctx.Err() == nil {
					m.fail(ctx, c, s, gen, ErrFeedClosed)
				}
				return
			}
			if !m.deliver(ctx, c, s, gen) {
				return
			}
		}
	}
}

// deliver reads a fresh snapshot and sends it. It reports whether the feed
// should keep running.
func (m *Manager) deliver(ctx context.Context, c model.Collection, s *sub, gen uint64) bool {
	snap, err := m.feed.Snapshot(ctx, m.owner, c)
	if ctx.Err() != nil {
		return false
	}
	if err != nil {
		m.fail(ctx, c, s, gen, err)
		return false
	}
	m.setState(s, Active)
	metrics.SnapshotRecords.WithLabelValues(string(c)).Set(float64(snap.Len()))
	return m.send(ctx, Message{Collection: c, Snapshot: snap, Generation: gen})
}

func (m *Manager) fail(ctx context.Context, c model.Collection, s *sub, gen uint64, err error) {
	m.setState(s, Disconnected)
	metrics.SubscriptionFailures.WithLabelValues(string(c)).Inc()
	m.log.Warn().Err(err).Str("collection", string(c)).Msg("subscription failed")
	m.send(ctx, Message{Collection: c, Err: err, Generation: gen})
}

func (m *Manager) send(ctx context.Context, msg Message) bool {
	select {
	case m.out <- msg:
		return true
	case <-ctx.Done():
		return false
	}
}
