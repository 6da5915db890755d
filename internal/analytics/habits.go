package analytics

import (
	"sort"
	"time"

	"github.com/sadopc/prodhub/internal/model"
)

// WindowDays is the length of the trailing consistency window.
const WindowDays = 7

type entryKey struct {
	habitID string
	day     model.DayKey
}

// Canonical reduces entries to one per (habit, day): the most recently
// written one, with ties going to the later position in entries. Entries
// with an invalid day key are dropped.
func Canonical(entries []model.HabitEntry) map[string]map[model.DayKey]model.HabitEntry {
	latest := make(map[entryKey]model.HabitEntry, len(entries))
	for _, e := range entries {
		if !e.Day.Valid() {
			continue
		}
		k := entryKey{e.HabitID, e.Day}
		if cur, ok := latest[k]; ok && e.UpdatedAt.Before(cur.UpdatedAt) {
			continue
		}
		latest[k] = e
	}

	out := make(map[string]map[model.DayKey]model.HabitEntry)
	for k, e := range latest {
		days, ok := out[k.habitID]
		if !ok {
			days = make(map[model.DayKey]model.HabitEntry)
			out[k.habitID] = days
		}
		days[k.day] = e
	}
	return out
}

// completedDays returns the distinct completed day keys, most recent first.
func completedDays(days map[model.DayKey]model.HabitEntry) []model.DayKey {
	keys := make([]model.DayKey, 0, len(days))
	for d, e := range days {
		if e.Completed {
			keys = append(keys, d)
		}
	}
	// Day keys are zero-padded, so lexical order is calendar order.
	sort.Slice(keys, func(i, j int) bool { return keys[i] > keys[j] })
	return keys
}

func streakOf(days map[model.DayKey]model.HabitEntry, today model.DayKey) int {
	keys := completedDays(days)
	if len(keys) == 0 {
		return 0
	}
	if keys[0] != today && keys[0] != today.AddDays(-1) {
		return 0
	}
	streak := 1
	for i := 1; i < len(keys); i++ {
		gap, err := model.DaysBetween(keys[i], keys[i-1])
		if err != nil || gap != 1 {
			break
		}
		streak++
	}
	return streak
}

// Streak counts consecutive completed days ending today or yesterday, in
// the calendar of today's location. entries are expected to belong to one
// habit; duplicates for a day collapse to the latest write.
func Streak(entries []model.HabitEntry, today time.Time) int {
	days := make(map[model.DayKey]model.HabitEntry)
	for _, byDay := range Canonical(entries) {
		for d, e := range byDay {
			if cur, ok := days[d]; !ok || (e.Completed && !cur.Completed) {
				days[d] = e
			}
		}
	}
	return streakOf(days, model.DayKeyOf(today))
}

// Streaks returns the streak of every habit keyed by habit id.
func Streaks(habits []model.Habit, entries []model.HabitEntry, today time.Time) map[string]int {
	canon := Canonical(entries)
	day := model.DayKeyOf(today)
	out := make(map[string]int, len(habits))
	for _, h := range habits {
		out[h.ID] = streakOf(canon[h.ID], day)
	}
	return out
}

// WeeklyConsistency is the percentage of (habit, day) pairs completed over
// today and the six preceding days. Entries of unknown habits are ignored.
func WeeklyConsistency(habits []model.Habit, entries []model.HabitEntry, today time.Time) int {
	if len(habits) == 0 {
		return 0
	}
	canon := Canonical(entries)
	end := model.DayKeyOf(today)

	completed := 0
	for _, h := range habits {
		days := canon[h.ID]
		for i := 0; i < WindowDays; i++ {
			if e, ok := days[end.AddDays(-i)]; ok && e.Completed {
				completed++
			}
		}
	}
	return percent(completed, len(habits)*WindowDays)
}

// CompletedOn reports whether the canonical entry of habitID on day is
// completed.
func CompletedOn(entries []model.HabitEntry, habitID string, day model.DayKey) bool {
	e, ok := Canonical(entries)[habitID][day]
	return ok && e.Completed
}

// MonthDays returns the days of month (1-31) on which habitID was
// completed, ascending. month may be any instant within the month.
func MonthDays(entries []model.HabitEntry, habitID string, month time.Time) []int {
	prefix := month.Format("2006-01-")
	var days []int
	for d, e := range Canonical(entries)[habitID] {
		if !e.Completed || len(d) != len(prefix)+2 || string(d[:len(prefix)]) != prefix {
			continue
		}
		t, err := d.Time(time.UTC)
		if err != nil {
			continue
		}
		days = append(days, t.Day())
	}
	sort.Ints(days)
	return days
}
