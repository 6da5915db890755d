package schedule

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sadopc/prodhub/internal/model"
)

func dayN(n int) time.Time {
	return time.Date(2026, 5, n, 0, 0, 0, 0, time.UTC)
}

func TestMergeThreeSources(t *testing.T) {
	today := dayN(4).Add(10 * time.Hour)
	projects := []model.Project{{ID: "p", Name: "Launch", Deadline: "2026-05-05"}}
	tasks := []model.Task{
		{ID: "done", Title: "Finished", DueDate: "2026-05-03", Completed: true},
		{ID: "open", Title: "Draft", DueDate: "2026-05-02"},
	}
	external := []Event{{ID: ExternalPrefix + "x", Title: "Meetup", Date: dayN(6), Origin: OriginExternal}}

	got := Merge(projects, tasks, external, today)
	require.Len(t, got, 3)

	assert.Equal(t, "task-open", got[0].ID)
	assert.Equal(t, OriginTaskDeadline, got[0].Origin)
	assert.True(t, got[0].Overdue)
	assert.True(t, got[0].Date.Equal(dayN(2)))

	assert.Equal(t, "proj-p", got[1].ID)
	assert.Equal(t, OriginProjectDeadline, got[1].Origin)
	assert.False(t, got[1].Overdue)

	assert.Equal(t, "gcal-x", got[2].ID)
	assert.Equal(t, OriginExternal, got[2].Origin)
}

func TestMergeDropsInvalidDates(t *testing.T) {
	today := dayN(4)
	projects := []model.Project{{ID: "a", Deadline: ""}, {ID: "b", Deadline: "next week"}}
	tasks := []model.Task{{ID: "t", DueDate: "2026-13-40"}}
	external := []Event{{ID: "gcal-z", Origin: OriginExternal}}
	assert.Empty(t, Merge(projects, tasks, external, today))
}

func TestMergeStableOnTies(t *testing.T) {
	today := dayN(1)
	projects := []model.Project{{ID: "p", Deadline: "2026-05-03"}}
	tasks := []model.Task{{ID: "t1", DueDate: "2026-05-03"}, {ID: "t2", DueDate: "2026-05-03"}}
	external := []Event{{ID: "gcal-e", Date: dayN(3), Origin: OriginExternal}}

	got := Merge(projects, tasks, external, today)
	ids := make([]string, len(got))
	for i, e := range got {
		ids[i] = e.ID
	}
	assert.Equal(t, []string{"proj-p", "task-t1", "task-t2", "gcal-e"}, ids)
}

func TestMergeTaskDueTodayIsNotOverdue(t *testing.T) {
	today := dayN(4).Add(23 * time.Hour)
	got := Merge(nil, []model.Task{{ID: "t", DueDate: "2026-05-04"}}, nil, today)
	require.Len(t, got, 1)
	assert.False(t, got[0].Overdue)
}

func TestMergeRFC3339Dates(t *testing.T) {
	today := dayN(1)
	tasks := []model.Task{
		{ID: "late", DueDate: "2026-05-02T18:00:00Z"},
		{ID: "early", DueDate: "2026-05-02T09:00:00+02:00"},
	}
	got := Merge(nil, tasks, nil, today)
	require.Len(t, got, 2)
	assert.Equal(t, "task-early", got[0].ID)
}

func TestMergeIsPure(t *testing.T) {
	today := dayN(4)
	tasks := []model.Task{{ID: "b", DueDate: "2026-05-09"}, {ID: "a", DueDate: "2026-05-02"}}
	external := []Event{{ID: "gcal-2", Date: dayN(8)}, {ID: "gcal-1", Date: dayN(1)}}

	first := Merge(nil, tasks, external, today)
	second := Merge(nil, tasks, external, today)
	assert.Equal(t, first, second)
	assert.Equal(t, "b", tasks[0].ID)
	assert.Equal(t, "gcal-2", external[0].ID)
}

func TestBetween(t *testing.T) {
	events := []Event{{ID: "1", Date: dayN(1)}, {ID: "2", Date: dayN(3)}, {ID: "3", Date: dayN(5)}}
	got := Between(events, dayN(3), dayN(5))
	require.Len(t, got, 1)
	assert.Equal(t, "2", got[0].ID)
}
