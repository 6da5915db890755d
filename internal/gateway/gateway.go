// Package gateway is the write path to the backing store. It applies
// typed mutations for one owner, runs cascading deletes and never touches
// the local mirror: effects become visible through the next snapshot.
package gateway

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/rs/zerolog"

	"github.com/sadopc/prodhub/internal/metrics"
	"github.com/sadopc/prodhub/internal/model"
)

// Store is the part of the backing store the gateway writes through.
type Store interface {
	Apply(ctx context.Context, owner string, op model.Op) (string, error)
	ChildIDs(ctx context.Context, owner string, c model.Collection, field, parentID string) ([]string, error)
	ParentID(ctx context.Context, owner string, c model.Collection, field, id string) (string, error)
}

// Batcher is implemented by stores that can apply several ops atomically.
type Batcher interface {
	ApplyBatch(ctx context.Context, owner string, ops []model.Op) ([]string, error)
}

type Options struct {
	Logger *zerolog.Logger
	// Now overrides the clock used for completion timestamps.
	Now func() time.Time
}

type Gateway struct {
	store Store
	owner string
	log   zerolog.Logger
	now   func() time.Time
	locks *keyedMutex
}

func New(store Store, owner string, opts Options) *Gateway {
	log := zerolog.Nop()
	if opts.Logger != nil {
		log = *opts.Logger
	}
	now := opts.Now
	if now == nil {
		now = time.Now
	}
	return &Gateway{
		store: store,
		owner: owner,
		log:   log.With().Str("component", "gateway").Str("owner", owner).Logger(),
		now:   now,
		locks: newKeyedMutex(),
	}
}

func (g *Gateway) Owner() string { return g.owner }

func (g *Gateway) apply(ctx context.Context, op model.Op) (string, error) {
	id, err := g.store.Apply(ctx, g.owner, op)
	metrics.Mutations.WithLabelValues(string(op.Collection), string(op.Kind), metrics.Status(err)).Inc()
	if err != nil {
		if op.ID != "" {
			return "", fmt.Errorf("%s %s %s: %w", op.Kind, op.Collection, op.ID, err)
		}
		return "", fmt.Errorf("%s %s: %w", op.Kind, op.Collection, err)
	}
	return id, nil
}

func (g *Gateway) applyBatch(ctx context.Context, ops []model.Op) ([]string, bool, error) {
	b, ok := g.store.(Batcher)
	if !ok {
		return nil, false, nil
	}
	ids, err := b.ApplyBatch(ctx, g.owner, ops)
	status := metrics.Status(err)
	for _, op := range ops {
		metrics.Mutations.WithLabelValues(string(op.Collection), string(op.Kind), status).Inc()
	}
	return ids, true, err
}

func requireText(field, v string) (string, error) {
	v = strings.TrimSpace(v)
	if v == "" {
		return "", fmt.Errorf("%s is required: %w", field, ErrInvalidInput)
	}
	return v, nil
}

// validDate accepts an empty value or any layout model.ParseDate understands.
func validDate(field, v string) (string, error) {
	v = strings.TrimSpace(v)
	if v == "" {
		return "", nil
	}
	if _, err := model.ParseDate(v, time.UTC); err != nil {
		return "", fmt.Errorf("%s: %v: %w", field, err, ErrInvalidInput)
	}
	return v, nil
}

// ============================================================
// Projects
// ============================================================

type NewProject struct {
	Name     string
	Category model.Category
	Deadline string
}

func (p NewProject) fields() (model.Fields, error) {
	name, err := requireText("name", p.Name)
	if err != nil {
		return nil, err
	}
	category := p.Category
	if category == "" {
		category = model.CategoryPersonal
	}
	if _, err := model.ParseCategory(string(category)); err != nil {
		return nil, fmt.Errorf("%v: %w", err, ErrInvalidInput)
	}
	deadline, err := validDate("deadline", p.Deadline)
	if err != nil {
		return nil, err
	}
	return model.Fields{
		model.FieldName:     name,
		model.FieldCategory: category,
		model.FieldStatus:   model.StatusInProgress,
		model.FieldProgress: 0,
		model.FieldDeadline: deadline,
	}, nil
}

func (g *Gateway) CreateProject(ctx context.Context, p NewProject) (string, error) {
	f, err := p.fields()
	if err != nil {
		return "", err
	}
	return g.apply(ctx, model.Create(model.Projects, f))
}

// ProjectPatch updates the non-nil fields. Progress is derived and only
// written by PersistProgress.
type ProjectPatch struct {
	Name     *string
	Category *model.Category
	Status   *string
	Deadline *string
}

func (g *Gateway) UpdateProject(ctx context.Context, id string, patch ProjectPatch) error {
	f := model.Fields{}
	if patch.Name != nil {
		name, err := requireText("name", *patch.Name)
		if err != nil {
			return err
		}
		f[model.FieldName] = name
	}
	if patch.Category != nil {
		c, err := model.ParseCategory(string(*patch.Category))
		if err != nil {
			return fmt.Errorf("%v: %w", err, ErrInvalidInput)
		}
		f[model.FieldCategory] = c
	}
	if patch.Status != nil {
		f[model.FieldStatus] = strings.TrimSpace(*patch.Status)
	}
	if patch.Deadline != nil {
		d, err := validDate("deadline", *patch.Deadline)
		if err != nil {
			return err
		}
		f[model.FieldDeadline] = d
	}
	if len(f) == 0 {
		return fmt.Errorf("empty project patch: %w", ErrInvalidInput)
	}

	unlock := g.locks.lock(model.Projects, id)
	defer unlock()
	_, err := g.apply(ctx, model.Update(model.Projects, id, f))
	return err
}

// PersistProgress writes a derived progress value onto the project.
func (g *Gateway) PersistProgress(ctx context.Context, id string, progress int) error {
	if progress < 0 || progress > 100 {
		return fmt.Errorf("progress %d out of range: %w", progress, ErrInvalidInput)
	}
	unlock := g.locks.lock(model.Projects, id)
	defer unlock()
	if _, err := g.apply(ctx, model.Update(model.Projects, id, model.Fields{model.FieldProgress: progress})); err != nil {
		return err
	}
	metrics.ProgressWrites.Inc()
	return nil
}

// DeleteProject deletes the project's tasks and then the project.
func (g *Gateway) DeleteProject(ctx context.Context, id string) error {
	return g.cascade(ctx, model.Projects, id, model.Tasks, model.FieldProjectID)
}

// ============================================================
// Tasks
// ============================================================

type NewTask struct {
	ProjectID string
	Title     string
	DueDate   string
	Priority  model.Priority
}

func (t NewTask) fields() (model.Fields, error) {
	title, err := requireText("title", t.Title)
	if err != nil {
		return nil, err
	}
	priority := t.Priority
	if priority == "" {
		priority = model.PriorityMedium
	}
	if !priority.Valid() {
		return nil, fmt.Errorf("invalid priority %q: %w", priority, ErrInvalidInput)
	}
	due, err := validDate("due date", t.DueDate)
	if err != nil {
		return nil, err
	}
	return model.Fields{
		model.FieldProjectID:   strings.TrimSpace(t.ProjectID),
		model.FieldTitle:       title,
		model.FieldDueDate:     due,
		model.FieldPriority:    priority,
		model.FieldCompleted:   false,
		model.FieldCompletedAt: nil,
	}, nil
}

func (g *Gateway) CreateTask(ctx context.Context, t NewTask) (string, error) {
	f, err := t.fields()
	if err != nil {
		return "", err
	}
	unlock := g.locks.lockAll(model.Projects, f[model.FieldProjectID].(string))
	defer unlock()
	return g.apply(ctx, model.Create(model.Tasks, f))
}

// CreateTasks creates several tasks, atomically when the store supports
// batches. Without batches the tasks are created in order and the ids of
// the ones created before a failure are returned with the error.
func (g *Gateway) CreateTasks(ctx context.Context, tasks []NewTask) ([]string, error) {
	ops := make([]model.Op, 0, len(tasks))
	parents := make([]string, 0, len(tasks))
	for _, t := range tasks {
		f, err := t.fields()
		if err != nil {
			return nil, err
		}
		ops = append(ops, model.Create(model.Tasks, f))
		parents = append(parents, f[model.FieldProjectID].(string))
	}
	if len(ops) == 0 {
		return nil, nil
	}
	unlock := g.locks.lockAll(model.Projects, parents...)
	defer unlock()

	if ids, ok, err := g.applyBatch(ctx, ops); ok {
		if err != nil {
			return nil, fmt.Errorf("create tasks: %w", err)
		}
		return ids, nil
	}
	ids := make([]string, 0, len(ops))
	for _, op := range ops {
		id, err := g.apply(ctx, op)
		if err != nil {
			return ids, err
		}
		ids = append(ids, id)
	}
	return ids, nil
}

type TaskPatch struct {
	ProjectID *string
	Title     *string
	DueDate   *string
	Priority  *model.Priority
}

func (g *Gateway) UpdateTask(ctx context.Context, id string, patch TaskPatch) error {
	f := model.Fields{}
	if patch.Title != nil {
		title, err := requireText("title", *patch.Title)
		if err != nil {
			return err
		}
		f[model.FieldTitle] = title
	}
	if patch.DueDate != nil {
		d, err := validDate("due date", *patch.DueDate)
		if err != nil {
			return err
		}
		f[model.FieldDueDate] = d
	}
	if patch.Priority != nil {
		if !patch.Priority.Valid() {
			return fmt.Errorf("invalid priority %q: %w", *patch.Priority, ErrInvalidInput)
		}
		f[model.FieldPriority] = *patch.Priority
	}
	pid := ""
	if patch.ProjectID != nil {
		pid = strings.TrimSpace(*patch.ProjectID)
		f[model.FieldProjectID] = pid
	}
	if len(f) == 0 {
		return fmt.Errorf("empty task patch: %w", ErrInvalidInput)
	}

	unlock := g.locks.lock(model.Tasks, id)
	defer unlock()
	if patch.ProjectID != nil {
		// Moving a task conflicts with cascades on both its old and new
		// project.
		old, err := g.store.ParentID(ctx, g.owner, model.Tasks, model.FieldProjectID, id)
		if err != nil {
			return fmt.Errorf("update %s %s: %w", model.Tasks, id, err)
		}
		unlockProjects := g.locks.lockAll(model.Projects, old, pid)
		defer unlockProjects()
	}
	_, err := g.apply(ctx, model.Update(model.Tasks, id, f))
	return err
}

// SetTaskCompleted sets the completed flag and its timestamp in one update:
// completed_at is now when completing and cleared otherwise.
func (g *Gateway) SetTaskCompleted(ctx context.Context, id string, completed bool) error {
	f := model.Fields{model.FieldCompleted: completed, model.FieldCompletedAt: nil}
	if completed {
		f[model.FieldCompletedAt] = g.now().UTC()
	}
	unlock := g.locks.lock(model.Tasks, id)
	defer unlock()
	_, err := g.apply(ctx, model.Update(model.Tasks, id, f))
	return err
}

// ToggleTask flips the completion state of t as last seen by the caller.
func (g *Gateway) ToggleTask(ctx context.Context, t model.Task) error {
	return g.SetTaskCompleted(ctx, t.ID, !t.Completed)
}

func (g *Gateway) DeleteTask(ctx context.Context, id string) error {
	unlock := g.locks.lock(model.Tasks, id)
	defer unlock()
	_, err := g.apply(ctx, model.Delete(model.Tasks, id))
	return err
}

// ============================================================
// Habits
// ============================================================

func (g *Gateway) CreateHabit(ctx context.Context, name string) (string, error) {
	name, err := requireText("name", name)
	if err != nil {
		return "", err
	}
	return g.apply(ctx, model.Create(model.Habits, model.Fields{model.FieldName: name}))
}

func (g *Gateway) RenameHabit(ctx context.Context, id, name string) error {
	name, err := requireText("name", name)
	if err != nil {
		return err
	}
	unlock := g.locks.lock(model.Habits, id)
	defer unlock()
	_, err = g.apply(ctx, model.Update(model.Habits, id, model.Fields{model.FieldName: name}))
	return err
}

// DeleteHabit deletes the habit's entries and then the habit.
func (g *Gateway) DeleteHabit(ctx context.Context, id string) error {
	return g.cascade(ctx, model.Habits, id, model.HabitEntries, model.FieldHabitID)
}

// SetHabitEntry records the completion state of habitID on day. current is
// the canonical entry for that day as last seen by the caller, or nil when
// none exists; it is updated in place rather than duplicated.
func (g *Gateway) SetHabitEntry(ctx context.Context, habitID string, day model.DayKey, completed bool, current *model.HabitEntry) (string, error) {
	if strings.TrimSpace(habitID) == "" {
		return "", fmt.Errorf("habit id is required: %w", ErrInvalidInput)
	}
	if !day.Valid() {
		return "", fmt.Errorf("invalid day %q: %w", day, ErrInvalidInput)
	}
	unlock := g.locks.lock(model.Habits, habitID)
	defer unlock()

	if current != nil && current.ID != "" {
		return g.apply(ctx, model.Update(model.HabitEntries, current.ID, model.Fields{model.FieldCompleted: completed}))
	}
	return g.apply(ctx, model.Create(model.HabitEntries, model.Fields{
		model.FieldHabitID:   habitID,
		model.FieldDay:       day,
		model.FieldCompleted: completed,
	}))
}

// ToggleHabitEntry flips the state of the day: a missing entry becomes a
// completed one.
func (g *Gateway) ToggleHabitEntry(ctx context.Context, habitID string, day model.DayKey, current *model.HabitEntry) (string, error) {
	completed := true
	if current != nil && current.ID != "" {
		completed = !current.Completed
	}
	return g.SetHabitEntry(ctx, habitID, day, completed, current)
}

// ============================================================
// Cascades
// ============================================================

// cascade deletes every child of parent and then parent. With a Batcher
// the whole cascade is one atomic batch. Otherwise children are deleted in
// order before the parent and a failure returns a *CascadeError describing
// what is left behind.
func (g *Gateway) cascade(ctx context.Context, parent model.Collection, id string, child model.Collection, field string) error {
	if strings.TrimSpace(id) == "" {
		return fmt.Errorf("%s id is required: %w", parent, ErrInvalidInput)
	}
	unlock := g.locks.lock(parent, id)
	defer unlock()

	children, err := g.store.ChildIDs(ctx, g.owner, child, field, id)
	if err != nil {
		return fmt.Errorf("list %s of %s %s: %w", child, parent, id, err)
	}

	// Child deletes are guarded by the parent so a record moved away by a
	// writer outside this gateway survives. The batch sweep then removes
	// children added since the listing.
	ops := make([]model.Op, 0, len(children)+2)
	for _, cid := range children {
		ops = append(ops, model.DeleteChild(child, cid, field, id))
	}
	batch := append(ops[:len(ops):len(ops)], model.DeleteChildren(child, field, id), model.Delete(parent, id))

	if _, ok, err := g.applyBatch(ctx, batch); ok {
		if err != nil {
			metrics.CascadeFailures.WithLabelValues(string(parent)).Inc()
			return fmt.Errorf("delete %s %s: %w", parent, id, err)
		}
		g.log.Debug().Str("collection", string(parent)).Str("id", id).Int("children", len(children)).Msg("cascade deleted")
		return nil
	}

	for i, op := range ops {
		if _, err := g.apply(ctx, op); err != nil {
			if i == 0 {
				return err
			}
			return g.cascadeFailed(&CascadeError{
				Collection: parent,
				ParentID:   id,
				Deleted:    children[:i],
				Remaining:  children[i:],
				Err:        err,
			})
		}
	}
	if _, err := g.apply(ctx, model.Delete(parent, id)); err != nil {
		if len(children) == 0 {
			return err
		}
		return g.cascadeFailed(&CascadeError{
			Collection: parent,
			ParentID:   id,
			Deleted:    children,
			Err:        err,
		})
	}
	g.log.Debug().Str("collection", string(parent)).Str("id", id).Int("children", len(children)).Msg("cascade deleted")
	return nil
}

func (g *Gateway) cascadeFailed(e *CascadeError) error {
	metrics.CascadeFailures.WithLabelValues(string(e.Collection)).Inc()
	g.log.Warn().Err(e.Err).
		Str("collection", string(e.Collection)).
		Str("id", e.ParentID).
		Strs("deleted", e.Deleted).
		Strs("remaining", e.Remaining).
		Msg("cascade delete incomplete")
	return e
}
