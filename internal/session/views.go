package session

import (
	"time"

	"github.com/sadopc/prodhub/internal/analytics"
	"github.com/sadopc/prodhub/internal/model"
	"github.com/sadopc/prodhub/internal/schedule"
)

// ReviewDays is the length of the weekly review period.
const ReviewDays = 7

type HabitStatus struct {
	Habit     model.Habit
	Streak    int
	DoneToday bool
}

type Dashboard struct {
	Projects          []model.Project
	Overdue           []model.Task
	Upcoming          []model.Task
	Habits            []HabitStatus
	WeeklyConsistency int
}

type Review struct {
	Since             time.Time
	Completed         []model.Task
	Overdue           []model.Task
	Projects          []model.Project
	Habits            []HabitStatus
	WeeklyConsistency int
}

// Dashboard summarizes the mirror as of now.
func (s *Session) Dashboard(now time.Time) Dashboard {
	today := now.In(s.loc)
	tasks := s.mirror.Tasks()
	habits := s.mirror.Habits()
	entries := s.mirror.Entries()
	return Dashboard{
		Projects:          s.mirror.Projects(),
		Overdue:           analytics.Overdue(tasks, today),
		Upcoming:          analytics.Upcoming(tasks, today, analytics.DefaultUpcomingLimit),
		Habits:            habitStatuses(habits, entries, today),
		WeeklyConsistency: analytics.WeeklyConsistency(habits, entries, today),
	}
}

// Schedule merges project and task deadlines with the synced calendar.
func (s *Session) Schedule(now time.Time) []schedule.Event {
	return schedule.Merge(s.mirror.Projects(), s.mirror.Tasks(), s.externalEvents(), now.In(s.loc))
}

func (s *Session) HabitReport(now time.Time) []HabitStatus {
	return habitStatuses(s.mirror.Habits(), s.mirror.Entries(), now.In(s.loc))
}

func (s *Session) WeeklyReview(now time.Time) Review {
	today := now.In(s.loc)
	since := model.StartOfDay(today).AddDate(0, 0, -(ReviewDays - 1))
	tasks := s.mirror.Tasks()
	habits := s.mirror.Habits()
	entries := s.mirror.Entries()
	return Review{
		Since:             since,
		Completed:         analytics.CompletedSince(tasks, since),
		Overdue:           analytics.Overdue(tasks, today),
		Projects:          s.mirror.Projects(),
		Habits:            habitStatuses(habits, entries, today),
		WeeklyConsistency: analytics.WeeklyConsistency(habits, entries, today),
	}
}

// ProjectTasks returns the tasks of projectID in snapshot order.
func (s *Session) ProjectTasks(projectID string) []model.Task {
	var out []model.Task
	for _, t := range s.mirror.Tasks() {
		if t.ProjectID == projectID {
			out = append(out, t)
		}
	}
	return out
}

func habitStatuses(habits []model.Habit, entries []model.HabitEntry, today time.Time) []HabitStatus {
	streaks := analytics.Streaks(habits, entries, today)
	canon := analytics.Canonical(entries)
	day := model.DayKeyOf(today)
	out := make([]HabitStatus, 0, len(habits))
	for _, h := range habits {
		e, ok := canon[h.ID][day]
		out = append(out, HabitStatus{Habit: h, Streak: streaks[h.ID], DoneToday: ok && e.Completed})
	}
	return out
}
