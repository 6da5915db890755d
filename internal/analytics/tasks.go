package analytics

import (
	"sort"
	"strings"
	"time"

	"github.com/sadopc/prodhub/internal/model"
)

// DefaultUpcomingLimit bounds Upcoming when no limit is given.
const DefaultUpcomingLimit = 5

type dated struct {
	task model.Task
	due  time.Time
}

// openDated returns incomplete tasks with a parseable due date. Dates
// without an offset resolve in loc.
func openDated(tasks []model.Task, loc *time.Location) []dated {
	var out []dated
	for _, t := range tasks {
		if t.Completed || t.DueDate == "" {
			continue
		}
		due, err := model.ParseDate(t.DueDate, loc)
		if err != nil {
			continue
		}
		out = append(out, dated{task: t, due: due})
	}
	sort.SliceStable(out, func(i, j int) bool { return out[i].due.Before(out[j].due) })
	return out
}

// Overdue returns incomplete tasks due before the start of today, oldest
// first.
func Overdue(tasks []model.Task, today time.Time) []model.Task {
	start := model.StartOfDay(today)
	var out []model.Task
	for _, d := range openDated(tasks, today.Location()) {
		if d.due.Before(start) {
			out = append(out, d.task)
		}
	}
	return out
}

// Upcoming returns up to limit incomplete tasks due today or later, soonest
// first.
func Upcoming(tasks []model.Task, today time.Time, limit int) []model.Task {
	if limit <= 0 {
		limit = DefaultUpcomingLimit
	}
	start := model.StartOfDay(today)
	var out []model.Task
	for _, d := range openDated(tasks, today.Location()) {
		if d.due.Before(start) {
			continue
		}
		out = append(out, d.task)
		if len(out) == limit {
			break
		}
	}
	return out
}

// CompletedSince returns tasks completed at or after since, most recent
// first.
func CompletedSince(tasks []model.Task, since time.Time) []model.Task {
	var out []model.Task
	for _, t := range tasks {
		if t.Completed && t.CompletedAt != nil && !t.CompletedAt.Before(since) {
			out = append(out, t)
		}
	}
	sort.SliceStable(out, func(i, j int) bool { return out[i].CompletedAt.After(*out[j].CompletedAt) })
	return out
}

type TaskFilter string

const (
	FilterAll       TaskFilter = "all"
	FilterActive    TaskFilter = "active"
	FilterCompleted TaskFilter = "completed"
)

type SortKey string

const (
	SortDueDate  SortKey = "due"
	SortPriority SortKey = "priority"
	SortProject  SortKey = "project"
)

// SortTasks filters and orders a copy of tasks. Tasks without a valid due
// date sort last by due date; tasks without a project sort last by project.
func SortTasks(tasks []model.Task, projects []model.Project, filter TaskFilter, by SortKey) []model.Task {
	out := make([]model.Task, 0, len(tasks))
	for _, t := range tasks {
		switch filter {
		case FilterActive:
			if t.Completed {
				continue
			}
		case FilterCompleted:
			if !t.Completed {
				continue
			}
		}
		out = append(out, t)
	}

	switch by {
	case SortPriority:
		sort.SliceStable(out, func(i, j int) bool { return out[i].Priority.Rank() < out[j].Priority.Rank() })
	case SortProject:
		names := make(map[string]string, len(projects))
		for _, p := range projects {
			names[p.ID] = strings.ToLower(p.Name)
		}
		sort.SliceStable(out, func(i, j int) bool {
			a, aok := names[out[i].ProjectID]
			b, bok := names[out[j].ProjectID]
			if aok != bok {
				return aok
			}
			return a < b
		})
	case SortDueDate:
		due := make([]time.Time, len(out))
		for i, t := range out {
			due[i], _ = model.ParseDate(t.DueDate, time.UTC)
		}
		idx := make([]int, len(out))
		for i := range idx {
			idx[i] = i
		}
		sort.SliceStable(idx, func(i, j int) bool {
			a, b := due[idx[i]], due[idx[j]]
			if a.IsZero() != b.IsZero() {
				return !a.IsZero()
			}
			return a.Before(b)
		})
		sorted := make([]model.Task, len(out))
		for i, k := range idx {
			sorted[i] = out[k]
		}
		out = sorted
	}
	return out
}
