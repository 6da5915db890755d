package subscription

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sadopc/prodhub/internal/model"
)

// fakeFeed serves snapshots from memory and exposes the watch channels so
// tests can signal changes.
type fakeFeed struct {
	mu       sync.Mutex
	projects []model.Project
	signals  map[model.Collection]chan struct{}
	snapErr  map[model.Collection]error
	watchErr error
	reads    map[model.Collection]int
}

func newFakeFeed() *fakeFeed {
	return &fakeFeed{
		signals: make(map[model.Collection]chan struct{}),
		snapErr: make(map[model.Collection]error),
		reads:   make(map[model.Collection]int),
	}
}

func (f *fakeFeed) Watch(ctx context.Context, owner string, c model.Collection) (<-chan struct{}, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.watchErr != nil {
		return nil, f.watchErr
	}
	ch := make(chan struct{}, 1)
	f.signals[c] = ch
	return ch, nil
}

func (f *fakeFeed) Snapshot(ctx context.Context, owner string, c model.Collection) (model.Snapshot, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.reads[c]++
	if err := f.snapErr[c]; err != nil {
		return model.Snapshot{}, err
	}
	snap := model.Snapshot{Collection: c}
	if c == model.Projects {
		snap.Projects = append([]model.Project(nil), f.projects...)
	}
	return snap, nil
}

func (f *fakeFeed) setProjects(p ...model.Project) {
	f.mu.Lock()
	f.projects = p
	f.mu.Unlock()
}

func (f *fakeFeed) signal(c model.Collection) {
	f.mu.Lock()
	ch := f.signals[c]
	f.mu.Unlock()
	select {
	case ch <- struct{}{}:
	default:
	}
}

func (f *fakeFeed) closeSignals(c model.Collection) {
	f.mu.Lock()
	defer f.mu.Unlock()
	close(f.signals[c])
}

func (f *fakeFeed) setSnapErr(c model.Collection, err error) {
	f.mu.Lock()
	f.snapErr[c] = err
	f.mu.Unlock()
}

func receive(t *testing.T, m *Manager) Message {
	t.Helper()
	select {
	case msg, ok := <-m.Messages():
		require.True(t, ok, "messages channel closed")
		return msg
	case <-time.After(2 * time.Second):
		t.Fatal("timed out waiting for message")
	}
	return Message{}
}

func TestInitialSnapshotAndActiveState(t *testing.T) {
	feed := newFakeFeed()
	feed.setProjects(model.Project{ID: "p1"})
	m := NewManager(feed, "owner", Options{})
	defer m.Close()

	assert.Equal(t, Disconnected, m.State(model.Projects))
	require.NoError(t, m.Subscribe(context.Background(), model.Projects))

	msg := receive(t, m)
	require.NoError(t, msg.Err)
	assert.Equal(t, model.Projects, msg.Collection)
	require.Len(t, msg.Snapshot.Projects, 1)
	assert.True(t, m.Current(msg))
	assert.Equal(t, Active, m.State(model.Projects))
}

func TestSignalDeliversFullReplacement(t *testing.T) {
	feed := newFakeFeed()
	feed.setProjects(model.Project{ID: "p1"})
	m := NewManager(feed, "owner", Options{})
	defer m.Close()
	require.NoError(t, m.Subscribe(context.Background(), model.Projects))
	receive(t, m)

	feed.setProjects(model.Project{ID: "p2"}, model.Project{ID: "p3"})
	feed.signal(model.Projects)

	msg := receive(t, m)
	require.NoError(t, msg.Err)
	require.Len(t, msg.Snapshot.Projects, 2)
	assert.Equal(t, "p2", msg.Snapshot.Projects[0].ID)
}

func TestStartSubscribesEveryCollection(t *testing.T) {
	feed := newFakeFeed()
	m := NewManager(feed, "owner", Options{})
	defer m.Close()
	require.NoError(t, m.Start(context.Background()))

	seen := make(map[model.Collection]bool)
	for range model.Collections {
		seen[receive(t, m).Collection] = true
	}
	assert.Len(t, seen, len(model.Collections))
}

func TestDoubleSubscribeRejected(t *testing.T) {
	feed := newFakeFeed()
	m := NewManager(feed, "owner", Options{})
	defer m.Close()
	require.NoError(t, m.Subscribe(context.Background(), model.Tasks))
	receive(t, m)
	assert.ErrorIs(t, m.Subscribe(context.Background(), model.Tasks), ErrActive)
}

func TestSnapshotErrorDisconnectsWithoutRetry(t *testing.T) {
	feed := newFakeFeed()
	m := NewManager(feed, "owner", Options{})
	defer m.Close()
	require.NoError(t, m.Subscribe(context.Background(), model.Tasks))
	receive(t, m)

	boom := errors.New("permission denied")
	feed.setSnapErr(model.Tasks, boom)
	feed.signal(model.Tasks)

	msg := receive(t, m)
	assert.ErrorIs(t, msg.Err, boom)
	assert.Equal(t, Disconnected, m.State(model.Tasks))

	// No retry: further signals produce no reads.
	feed.mu.Lock()
	reads := feed.reads[model.Tasks]
	feed.mu.Unlock()
	feed.signal(model.Tasks)
	time.Sleep(50 * time.Millisecond)
	feed.mu.Lock()
	assert.Equal(t, reads, feed.reads[model.Tasks])
	feed.mu.Unlock()

	// Explicit resubscribe restores the feed.
	feed.setSnapErr(model.Tasks, nil)
	require.NoError(t, m.Resubscribe(context.Background(), model.Tasks))
	msg = receive(t, m)
	require.NoError(t, msg.Err)
	assert.Equal(t, Active, m.State(model.Tasks))
}

func TestFeedClosedByStore(t *testing.T) {
	feed := newFakeFeed()
	m := NewManager(feed, "owner", Options{})
	defer m.Close()
	require.NoError(t, m.Subscribe(context.Background(), model.Habits))
	receive(t, m)

	feed.closeSignals(model.Habits)
	msg := receive(t, m)
	assert.ErrorIs(t, msg.Err, ErrFeedClosed)
	assert.Equal(t, Disconnected, m.State(model.Habits))
}

func TestWatchErrorReturned(t *testing.T) {
	feed := newFakeFeed()
	feed.watchErr = errors.New("store closed")
	m := NewManager(feed, "owner", Options{})
	defer m.Close()
	assert.Error(t, m.Subscribe(context.Background(), model.Habits))
	assert.Equal(t, Disconnected, m.State(model.Habits))
}

func TestCloseStopsDeliveryAndInvalidatesGeneration(t *testing.T) {
	feed := newFakeFeed()
	m := NewManager(feed, "owner", Options{})
	require.NoError(t, m.Subscribe(context.Background(), model.Projects))
	msg := receive(t, m)
	gen := m.Generation()

	// Leave a signal pending that nobody consumes.
	feed.signal(model.Projects)
	m.Close()

	assert.False(t, m.Current(msg))
	assert.Greater(t, m.Generation(), gen)
	assert.Equal(t, Disconnected, m.State(model.Projects))
	for range m.Messages() {
		// drain: any message left must be stale
	}
	assert.ErrorIs(t, m.Subscribe(context.Background(), model.Projects), ErrClosed)
	m.Close()
}
