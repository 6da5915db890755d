// Package export writes the schedule and task lists as CSV or JSON.
package export

import (
	"encoding/csv"
	"fmt"
	"io"
	"os"
	"strconv"
	"time"

	"github.com/sadopc/prodhub/internal/model"
	"github.com/sadopc/prodhub/internal/schedule"
)

// WriteFile creates path and hands it to write.
func WriteFile(path string, write func(io.Writer) error) error {
	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("create export file: %w", err)
	}
	if err := write(f); err != nil {
		f.Close()
		return err
	}
	return f.Close()
}

func ScheduleCSV(out io.Writer, events []schedule.Event, loc *time.Location) error {
	w := csv.NewWriter(out)

	if err := w.Write([]string{"ID", "Title", "Date", "Origin", "All Day", "Overdue"}); err != nil {
		return err
	}
	for _, e := range events {
		row := []string{
			e.ID,
			e.Title,
			formatEventDate(e, loc),
			string(e.Origin),
			strconv.FormatBool(e.AllDay),
			strconv.FormatBool(e.Overdue),
		}
		if err := w.Write(row); err != nil {
			return err
		}
	}

	w.Flush()
	return w.Error()
}

func TasksCSV(out io.Writer, tasks []model.Task, projects map[string]model.Project) error {
	w := csv.NewWriter(out)

	if err := w.Write([]string{"ID", "Project", "Title", "Due", "Priority", "Completed", "Completed At"}); err != nil {
		return err
	}
	for _, t := range tasks {
		completedAt := ""
		if t.CompletedAt != nil {
			completedAt = t.CompletedAt.UTC().Format(time.RFC3339)
		}
		row := []string{
			t.ID,
			projectName(projects, t.ProjectID),
			t.Title,
			t.DueDate,
			string(t.Priority),
			strconv.FormatBool(t.Completed),
			completedAt,
		}
		if err := w.Write(row); err != nil {
			return err
		}
	}

	w.Flush()
	return w.Error()
}

// formatEventDate renders all-day events as a bare date and timed events as
// RFC 3339 in loc.
func formatEventDate(e schedule.Event, loc *time.Location) string {
	if e.AllDay {
		return e.Date.Format(time.DateOnly)
	}
	if loc == nil {
		loc = time.Local
	}
	return e.Date.In(loc).Format(time.RFC3339)
}

func projectName(projects map[string]model.Project, id string) string {
	if id == "" {
		return "Unassigned"
	}
	if p, ok := projects[id]; ok {
		return p.Name
	}
	return "Unknown"
}
