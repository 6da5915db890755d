// Package model holds the record types shared by the backing store, the local
// mirror and the derived-analytics code.
package model

import (
	"fmt"
	"strings"
	"time"
)

// Collection names one of the four partitioned record collections.
type Collection string

const (
	Projects     Collection = "projects"
	Tasks        Collection = "tasks"
	Habits       Collection = "habits"
	HabitEntries Collection = "habit_entries"
)

// Collections lists every collection in subscription order.
var Collections = []Collection{Projects, Tasks, Habits, HabitEntries}

func (c Collection) Valid() bool {
	switch c {
	case Projects, Tasks, Habits, HabitEntries:
		return true
	}
	return false
}

type Category string

const (
	CategoryCourse     Category = "Course"
	CategoryConference Category = "Conference"
	CategorySeminar    Category = "Seminar"
	CategoryBootcamp   Category = "Bootcamp"
	CategoryPersonal   Category = "Personal"
)

var Categories = []Category{CategoryCourse, CategoryConference, CategorySeminar, CategoryBootcamp, CategoryPersonal}

// ParseCategory matches case-insensitively against the fixed category set.
func ParseCategory(s string) (Category, error) {
	for _, c := range Categories {
		if strings.EqualFold(strings.TrimSpace(s), string(c)) {
			return c, nil
		}
	}
	return "", fmt.Errorf("invalid category: %q", s)
}

type Priority string

const (
	PriorityHigh   Priority = "High"
	PriorityMedium Priority = "Medium"
	PriorityLow    Priority = "Low"
)

func (p Priority) Valid() bool {
	switch p {
	case PriorityHigh, PriorityMedium, PriorityLow:
		return true
	}
	return false
}

// Rank orders priorities High < Medium < Low; unknown values sort last.
func (p Priority) Rank() int {
	switch p {
	case PriorityHigh:
		return 1
	case PriorityMedium:
		return 2
	case PriorityLow:
		return 3
	}
	return 4
}

func ParsePriority(s string) (Priority, error) {
	for _, p := range []Priority{PriorityHigh, PriorityMedium, PriorityLow} {
		if strings.EqualFold(strings.TrimSpace(s), string(p)) {
			return p, nil
		}
	}
	return "", fmt.Errorf("invalid priority: %q", s)
}

const StatusInProgress = "In Progress"

type Project struct {
	ID        string
	Name      string
	Category  Category
	Status    string
	Progress  int
	Deadline  string // raw date as stored; may be empty or malformed
	CreatedAt time.Time
	UpdatedAt time.Time
}

type Task struct {
	ID          string
	ProjectID   string
	Title       string
	DueDate     string // raw date as stored; may be empty or malformed
	Priority    Priority
	Completed   bool
	CompletedAt *time.Time
	CreatedAt   time.Time
	UpdatedAt   time.Time
}

type Habit struct {
	ID        string
	Name      string
	CreatedAt time.Time
	UpdatedAt time.Time
}

type HabitEntry struct {
	ID        string
	HabitID   string
	Day       DayKey
	Completed bool
	UpdatedAt time.Time
}

// Snapshot is the complete contents of one collection for one owner. Only the
// slice matching Collection is populated.
type Snapshot struct {
	Collection Collection
	Projects   []Project
	Tasks      []Task
	Habits     []Habit
	Entries    []HabitEntry
}

// Len reports the number of records in the populated slice.
func (s Snapshot) Len() int {
	switch s.Collection {
	case Projects:
		return len(s.Projects)
	case Tasks:
		return len(s.Tasks)
	case Habits:
		return len(s.Habits)
	case HabitEntries:
		return len(s.Entries)
	}
	return 0
}
