// Package schedule merges project deadlines, task deadlines and external
// calendar events into one chronological timeline.
package schedule

import (
	"sort"
	"time"

	"github.com/sadopc/prodhub/internal/model"
)

// Origin discriminates the source of an Event.
type Origin string

const (
	OriginProjectDeadline Origin = "project"
	OriginTaskDeadline    Origin = "task"
	OriginExternal        Origin = "external"
)

// Id prefixes per origin.
const (
	ProjectPrefix  = "proj-"
	TaskPrefix     = "task-"
	ExternalPrefix = "gcal-"
)

type Event struct {
	ID      string    `json:"id"`
	Title   string    `json:"title"`
	Date    time.Time `json:"date"`
	Origin  Origin    `json:"origin"`
	Overdue bool      `json:"overdue,omitempty"`
	AllDay  bool      `json:"all_day,omitempty"`
	// RefID is the id of the project or task the event was derived from.
	RefID string `json:"ref_id,omitempty"`
}

// Merge builds the timeline as of today. Completed tasks never appear,
// events with a missing or invalid date are dropped, and events on the same
// instant keep their input order: projects, then tasks, then external.
// Date-only values resolve to midnight in today's location.
func Merge(projects []model.Project, tasks []model.Task, external []Event, today time.Time) []Event {
	loc := today.Location()
	start := model.StartOfDay(today)

	events := make([]Event, 0, len(projects)+len(tasks)+len(external))
	for _, p := range projects {
		if p.Deadline == "" {
			continue
		}
		d, err := model.ParseDate(p.Deadline, loc)
		if err != nil {
			continue
		}
		events = append(events, Event{
			ID:     ProjectPrefix + p.ID,
			Title:  p.Name,
			Date:   d,
			Origin: OriginProjectDeadline,
			RefID:  p.ID,
		})
	}
	for _, t := range tasks {
		if t.Completed || t.DueDate == "" {
			continue
		}
		d, err := model.ParseDate(t.DueDate, loc)
		if err != nil {
			continue
		}
		events = append(events, Event{
			ID:      TaskPrefix + t.ID,
			Title:   t.Title,
			Date:    d,
			Origin:  OriginTaskDeadline,
			Overdue: d.Before(start),
			RefID:   t.ID,
		})
	}
	for _, e := range external {
		if e.Date.IsZero() {
			continue
		}
		events = append(events, e)
	}

	sort.SliceStable(events, func(i, j int) bool { return events[i].Date.Before(events[j].Date) })
	return events
}

// Between returns the events dated within [from, to).
func Between(events []Event, from, to time.Time) []Event {
	var out []Event
	for _, e := range events {
		if !e.Date.Before(from) && e.Date.Before(to) {
			out = append(out, e)
		}
	}
	return out
}
