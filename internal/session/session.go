// Package session owns everything tied to one signed-in owner: the
// subscriptions, the local mirror, the write gateway and the coordinator
// loop that recomputes derived values after every snapshot.
package session

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/rs/zerolog"

	"github.com/sadopc/prodhub/internal/analytics"
	"github.com/sadopc/prodhub/internal/gateway"
	"github.com/sadopc/prodhub/internal/metrics"
	"github.com/sadopc/prodhub/internal/mirror"
	"github.com/sadopc/prodhub/internal/model"
	"github.com/sadopc/prodhub/internal/schedule"
	"github.com/sadopc/prodhub/internal/subscription"
	"github.com/sadopc/prodhub/internal/suggest"
)

var (
	ErrUnknownProject = errors.New("unknown project")
	ErrUnknownHabit   = errors.New("unknown habit")
	ErrNoCalendar     = errors.New("calendar sync is not configured")
	ErrNoSuggester    = errors.New("task suggestions are not configured")
	ErrStopped        = errors.New("session stopped before it was ready")
)

// Backend is the backing store as seen by a session.
type Backend interface {
	subscription.Feed
	gateway.Store
}

type CalendarSource interface {
	Upcoming(ctx context.Context, token string, from time.Time) ([]schedule.Event, error)
}

type Suggester interface {
	Generate(ctx context.Context, project model.Project, instruction string, events []schedule.Event) ([]suggest.Suggestion, error)
}

type Options struct {
	Logger    *zerolog.Logger
	Location  *time.Location
	Calendar  CalendarSource
	Suggester Suggester
	Now       func() time.Time
	// EventBuffer sizes the Events channel. Routine events are dropped when
	// the presentation layer falls behind; a quarter of the buffer is kept
	// for NavigationReset and SubscriptionFailed, which are never dropped.
	EventBuffer int
}

type EventKind int

const (
	SnapshotApplied EventKind = iota
	NavigationReset
	SubscriptionFailed
	ProgressPersisted
)

func (k EventKind) String() string {
	switch k {
	case SnapshotApplied:
		return "snapshot"
	case NavigationReset:
		return "navigation-reset"
	case SubscriptionFailed:
		return "subscription-failed"
	case ProgressPersisted:
		return "progress"
	}
	return fmt.Sprintf("event(%d)", int(k))
}

// control reports whether consumers must see the event to stay correct.
func (k EventKind) control() bool {
	return k == NavigationReset || k == SubscriptionFailed
}

// Event is handed to the presentation layer after the coordinator has
// applied a message.
type Event struct {
	Kind       EventKind
	Collection model.Collection
	ProjectID  string
	Progress   int
	Records    int
	Err        error
}

type Session struct {
	owner     string
	mirror    *mirror.Store
	subs      *subscription.Manager
	gw        *gateway.Gateway
	log       zerolog.Logger
	loc       *time.Location
	now       func() time.Time
	calendar  CalendarSource
	suggester Suggester

	events  chan Event
	reserve int
	ready   chan struct{}
	closing chan struct{}
	stopped chan struct{}
	runErr  error

	mu       sync.Mutex
	selected string
	external []schedule.Event
	// written holds the progress values this session persisted that have
	// not yet come back in a Projects snapshot.
	written map[string]int

	readyOnce sync.Once
	closeOnce sync.Once
	stopOnce  sync.Once
}

func New(owner string, backend Backend, opts Options) *Session {
	log := zerolog.Nop()
	if opts.Logger != nil {
		log = *opts.Logger
	}
	loc := opts.Location
	if loc == nil {
		loc = time.Local
	}
	now := opts.Now
	if now == nil {
		now = time.Now
	}
	buf := opts.EventBuffer
	if buf <= 0 {
		buf = 64
	}
	return &Session{
		owner:     owner,
		mirror:    mirror.New(),
		subs:      subscription.NewManager(backend, owner, subscription.Options{Logger: &log}),
		gw:        gateway.New(backend, owner, gateway.Options{Logger: &log, Now: now}),
		log:       log.With().Str("component", "session").Str("owner", owner).Logger(),
		loc:       loc,
		now:       now,
		calendar:  opts.Calendar,
		suggester: opts.Suggester,
		events:    make(chan Event, buf),
		reserve:   buf / 4,
		ready:     make(chan struct{}),
		closing:   make(chan struct{}),
		stopped:   make(chan struct{}),
		written:   make(map[string]int),
	}
}

func (s *Session) Owner() string             { return s.owner }
func (s *Session) Gateway() *gateway.Gateway { return s.gw }
func (s *Session) Mirror() *mirror.Store     { return s.mirror }
func (s *Session) Events() <-chan Event      { return s.events }
func (s *Session) Location() *time.Location  { return s.loc }
func (s *Session) today() time.Time          { return s.now().In(s.loc) }

// Run subscribes to every collection and applies messages until ctx ends or
// Close is called. It is the only writer of the mirror. A collection that
// cannot be subscribed is reported as SubscriptionFailed and ends Run.
func (s *Session) Run(ctx context.Context) (err error) {
	defer func() {
		s.stopOnce.Do(func() {
			s.runErr = err
			close(s.stopped)
		})
	}()
	if err := s.subs.Start(ctx); err != nil {
		var se *subscription.StartError
		if errors.As(err, &se) {
			s.emit(ctx, Event{Kind: SubscriptionFailed, Collection: se.Collection, Err: se.Err})
		}
		s.Close()
		return fmt.Errorf("start subscriptions: %w", err)
	}
	msgs := s.subs.Messages()
	for {
		select {
		case <-ctx.Done():
			s.Close()
			return nil
		case msg, ok := <-msgs:
			if !ok {
				return nil
			}
			if !s.subs.Current(msg) {
				continue
			}
			s.apply(ctx, msg)
		}
	}
}

// WaitReady blocks until every collection has delivered a snapshot. It
// returns Run's error, or ErrStopped, when Run ends first.
func (s *Session) WaitReady(ctx context.Context) error {
	select {
	case <-s.ready:
		return nil
	case <-s.stopped:
		select {
		case <-s.ready:
			return nil
		default:
		}
		if s.runErr != nil {
			return s.runErr
		}
		return ErrStopped
	case <-ctx.Done():
		return ctx.Err()
	}
}

// Ready is closed once every collection has delivered a snapshot.
func (s *Session) Ready() <-chan struct{} { return s.ready }

// Stopped is closed when Run returns.
func (s *Session) Stopped() <-chan struct{} { return s.stopped }

// Close tears down the subscriptions. Pending messages are discarded.
func (s *Session) Close() {
	s.closeOnce.Do(func() {
		close(s.closing)
		s.subs.Close()
	})
}

// emit is called only from the Run goroutine. Routine events leave the
// reserved tail of the buffer to control events, which wait for room until
// the session closes.
func (s *Session) emit(ctx context.Context, ev Event) {
	if !ev.Kind.control() {
		if len(s.events) >= cap(s.events)-s.reserve {
			s.log.Debug().Stringer("event", ev.Kind).Msg("event dropped, buffer full")
			return
		}
		s.events <- ev
		return
	}
	select {
	case s.events <- ev:
	case <-ctx.Done():
	case <-s.closing:
	}
}

func (s *Session) apply(ctx context.Context, msg subscription.Message) {
	if msg.Err != nil {
		// The mirror keeps the last snapshot of the collection.
		s.emit(ctx, Event{Kind: SubscriptionFailed, Collection: msg.Collection, Err: msg.Err})
		return
	}
	if err := s.mirror.Replace(msg.Snapshot); err != nil {
		s.log.Error().Err(err).Msg("apply snapshot")
		return
	}
	metrics.SnapshotsApplied.WithLabelValues(string(msg.Collection)).Inc()
	s.emit(ctx, Event{Kind: SnapshotApplied, Collection: msg.Collection, Records: msg.Snapshot.Len()})

	if msg.Collection == model.Projects {
		s.checkSelection(ctx)
	}
	if msg.Collection == model.Projects || msg.Collection == model.Tasks {
		s.reconcileProgress(ctx)
	}
	if s.mirror.Loaded() {
		s.readyOnce.Do(func() { close(s.ready) })
	}
}

func (s *Session) checkSelection(ctx context.Context) {
	s.mu.Lock()
	selected := s.selected
	gone := selected != "" && !s.mirror.Has(model.Projects, selected)
	if gone {
		s.selected = ""
	}
	s.mu.Unlock()
	if gone {
		s.emit(ctx, Event{Kind: NavigationReset, ProjectID: selected})
	}
}

// reconcileProgress persists project progress values that no longer match
// their tasks. A value is written at most once until the store reflects it.
func (s *Session) reconcileProgress(ctx context.Context) {
	if s.mirror.Version(model.Projects) == 0 || s.mirror.Version(model.Tasks) == 0 {
		return
	}
	projects := s.mirror.Projects()
	updates := analytics.ProgressUpdates(projects, s.mirror.Tasks())

	pending := make(map[string]bool, len(updates))
	for _, u := range updates {
		pending[u.ProjectID] = true
	}

	s.mu.Lock()
	for id := range s.written {
		if !pending[id] {
			delete(s.written, id)
		}
	}
	var todo []analytics.ProgressUpdate
	for _, u := range updates {
		if v, ok := s.written[u.ProjectID]; ok && v == u.Progress {
			continue
		}
		todo = append(todo, u)
	}
	s.mu.Unlock()

	for _, u := range todo {
		if err := s.gw.PersistProgress(ctx, u.ProjectID, u.Progress); err != nil {
			if ctx.Err() != nil {
				return
			}
			s.log.Warn().Err(err).Str("project", u.ProjectID).Int("progress", u.Progress).Msg("persist progress")
			continue
		}
		s.mu.Lock()
		s.written[u.ProjectID] = u.Progress
		s.mu.Unlock()
		s.emit(ctx, Event{Kind: ProgressPersisted, Collection: model.Projects, ProjectID: u.ProjectID, Progress: u.Progress})
	}
}

// Resubscribe restarts the subscription of c after a failure.
func (s *Session) Resubscribe(ctx context.Context, c model.Collection) error {
	return s.subs.Resubscribe(ctx, c)
}

// Select marks projectID as the project being viewed. An empty id clears
// the selection.
func (s *Session) Select(projectID string) error {
	if projectID != "" && !s.mirror.Has(model.Projects, projectID) {
		return fmt.Errorf("select %s: %w", projectID, ErrUnknownProject)
	}
	s.mu.Lock()
	s.selected = projectID
	s.mu.Unlock()
	return nil
}

func (s *Session) Selected() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.selected
}

// SyncCalendar replaces the externally-synced events. On failure the
// schedule continues with no external events and the error is returned.
func (s *Session) SyncCalendar(ctx context.Context, token string) (int, error) {
	if s.calendar == nil {
		return 0, ErrNoCalendar
	}
	events, err := s.calendar.Upcoming(ctx, token, s.now())
	s.mu.Lock()
	defer s.mu.Unlock()
	if err != nil {
		s.external = nil
		return 0, fmt.Errorf("sync calendar: %w", err)
	}
	s.external = events
	return len(events), nil
}

// SetExternal replaces the externally-synced events directly.
func (s *Session) SetExternal(events []schedule.Event) {
	s.mu.Lock()
	s.external = append([]schedule.Event(nil), events...)
	s.mu.Unlock()
}

func (s *Session) externalEvents() []schedule.Event {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]schedule.Event(nil), s.external...)
}

// Suggest generates tasks for projectID and creates them with no due date.
// On failure no task is created.
func (s *Session) Suggest(ctx context.Context, projectID, instruction string) ([]string, error) {
	if s.suggester == nil {
		return nil, ErrNoSuggester
	}
	p, ok := s.mirror.Project(projectID)
	if !ok {
		return nil, fmt.Errorf("suggest for %s: %w", projectID, ErrUnknownProject)
	}
	suggestions, err := s.suggester.Generate(ctx, p, instruction, s.externalEvents())
	if err != nil {
		return nil, err
	}
	tasks := make([]gateway.NewTask, 0, len(suggestions))
	for _, sg := range suggestions {
		tasks = append(tasks, gateway.NewTask{ProjectID: p.ID, Title: sg.Title, Priority: sg.Priority})
	}
	return s.gw.CreateTasks(ctx, tasks)
}

// ToggleHabitToday flips today's entry of habitID, updating the canonical
// entry when one exists.
func (s *Session) ToggleHabitToday(ctx context.Context, habitID string) error {
	return s.ToggleHabit(ctx, habitID, model.DayKeyOf(s.today()))
}

func (s *Session) ToggleHabit(ctx context.Context, habitID string, day model.DayKey) error {
	if _, ok := s.mirror.Habit(habitID); !ok {
		return fmt.Errorf("toggle %s: %w", habitID, ErrUnknownHabit)
	}
	var current *model.HabitEntry
	if e, ok := analytics.Canonical(s.mirror.Entries())[habitID][day]; ok {
		current = &e
	}
	_, err := s.gw.ToggleHabitEntry(ctx, habitID, day, current)
	return err
}
