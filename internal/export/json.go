package export

import (
	"encoding/json"
	"fmt"
	"io"
	"time"

	"github.com/sadopc/prodhub/internal/model"
	"github.com/sadopc/prodhub/internal/schedule"
)

type scheduleExport struct {
	ExportedAt string      `json:"exported_at"`
	Count      int         `json:"count"`
	Events     []jsonEvent `json:"events"`
}

type jsonEvent struct {
	ID      string `json:"id"`
	Title   string `json:"title"`
	Date    string `json:"date"`
	Origin  string `json:"origin"`
	AllDay  bool   `json:"all_day"`
	Overdue bool   `json:"overdue"`
	RefID   string `json:"ref_id,omitempty"`
}

type taskExport struct {
	ExportedAt string     `json:"exported_at"`
	Count      int        `json:"count"`
	Tasks      []jsonTask `json:"tasks"`
}

type jsonTask struct {
	ID          string `json:"id"`
	ProjectID   string `json:"project_id,omitempty"`
	Project     string `json:"project"`
	Title       string `json:"title"`
	DueDate     string `json:"due_date,omitempty"`
	Priority    string `json:"priority"`
	Completed   bool   `json:"completed"`
	CompletedAt string `json:"completed_at,omitempty"`
}

func ScheduleJSON(w io.Writer, events []schedule.Event, loc *time.Location, exportedAt time.Time) error {
	export := scheduleExport{
		ExportedAt: exportedAt.UTC().Format(time.RFC3339),
		Count:      len(events),
	}
	for _, e := range events {
		export.Events = append(export.Events, jsonEvent{
			ID:      e.ID,
			Title:   e.Title,
			Date:    formatEventDate(e, loc),
			Origin:  string(e.Origin),
			AllDay:  e.AllDay,
			Overdue: e.Overdue,
			RefID:   e.RefID,
		})
	}
	return writeJSON(w, export)
}

func TasksJSON(w io.Writer, tasks []model.Task, projects map[string]model.Project, exportedAt time.Time) error {
	export := taskExport{
		ExportedAt: exportedAt.UTC().Format(time.RFC3339),
		Count:      len(tasks),
	}
	for _, t := range tasks {
		completedAt := ""
		if t.CompletedAt != nil {
			completedAt = t.CompletedAt.UTC().Format(time.RFC3339)
		}
		export.Tasks = append(export.Tasks, jsonTask{
			ID:          t.ID,
			ProjectID:   t.ProjectID,
			Project:     projectName(projects, t.ProjectID),
			Title:       t.Title,
			DueDate:     t.DueDate,
			Priority:    string(t.Priority),
			Completed:   t.Completed,
			CompletedAt: completedAt,
		})
	}
	return writeJSON(w, export)
}

func writeJSON(w io.Writer, v any) error {
	data, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return fmt.Errorf("marshal json: %w", err)
	}
	data = append(data, '\n')
	if _, err := w.Write(data); err != nil {
		return fmt.Errorf("write json: %w", err)
	}
	return nil
}
