// Package analytics computes read-only aggregates over mirror snapshots.
// Every function is pure: inputs are never modified and nothing is written.
package analytics

import (
	"math"

	"github.com/sadopc/prodhub/internal/model"
)

// percent returns round(100 * part / whole), or 0 when whole is zero.
func percent(part, whole int) int {
	if whole <= 0 {
		return 0
	}
	return int(math.Round(100 * float64(part) / float64(whole)))
}

// Progress is the share of completed tasks among the tasks referencing
// projectID, rounded to the nearest integer. A project without tasks is at 0.
func Progress(tasks []model.Task, projectID string) int {
	var total, done int
	for _, t := range tasks {
		if t.ProjectID != projectID {
			continue
		}
		total++
		if t.Completed {
			done++
		}
	}
	return percent(done, total)
}

// ProgressUpdate is a computed progress value that differs from the one
// stored on the project.
type ProgressUpdate struct {
	ProjectID string
	Progress  int
}

// ProgressUpdates returns, in project order, the projects whose stored
// progress no longer matches their tasks.
func ProgressUpdates(projects []model.Project, tasks []model.Task) []ProgressUpdate {
	if len(projects) == 0 {
		return nil
	}
	total := make(map[string]int, len(projects))
	done := make(map[string]int, len(projects))
	for _, t := range tasks {
		if t.ProjectID == "" {
			continue
		}
		total[t.ProjectID]++
		if t.Completed {
			done[t.ProjectID]++
		}
	}

	var updates []ProgressUpdate
	for _, p := range projects {
		v := percent(done[p.ID], total[p.ID])
		if v != p.Progress {
			updates = append(updates, ProgressUpdate{ProjectID: p.ID, Progress: v})
		}
	}
	return updates
}
