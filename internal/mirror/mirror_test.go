package mirror

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sadopc/prodhub/internal/model"
)

func TestReplaceSwapsWholeCollection(t *testing.T) {
	m := New()
	require.False(t, m.Loaded())

	require.NoError(t, m.Replace(model.Snapshot{
		Collection: model.Projects,
		Projects:   []model.Project{{ID: "a", Name: "A"}, {ID: "b", Name: "B"}},
	}))
	require.NoError(t, m.Replace(model.Snapshot{
		Collection: model.Projects,
		Projects:   []model.Project{{ID: "c", Name: "C"}},
	}))

	projects := m.Projects()
	require.Len(t, projects, 1)
	assert.Equal(t, "c", projects[0].ID)
	assert.False(t, m.Has(model.Projects, "a"))
	assert.True(t, m.Has(model.Projects, "c"))
	assert.Equal(t, uint64(2), m.Version(model.Projects))
	assert.Equal(t, uint64(0), m.Version(model.Tasks))
}

func TestReplaceKeepsSnapshotOrder(t *testing.T) {
	m := New()
	require.NoError(t, m.Replace(model.Snapshot{
		Collection: model.HabitEntries,
		Entries: []model.HabitEntry{
			{ID: "z", HabitID: "h", Day: "2026-01-02"},
			{ID: "a", HabitID: "h", Day: "2026-01-01"},
		},
	}))
	entries := m.Entries()
	require.Len(t, entries, 2)
	assert.Equal(t, "z", entries[0].ID)
	assert.Equal(t, "a", entries[1].ID)
}

func TestEmptySnapshotClearsCollection(t *testing.T) {
	m := New()
	require.NoError(t, m.Replace(model.Snapshot{Collection: model.Habits, Habits: []model.Habit{{ID: "h"}}}))
	require.NoError(t, m.Replace(model.Snapshot{Collection: model.Habits}))
	assert.Empty(t, m.Habits())
	_, ok := m.Habit("h")
	assert.False(t, ok)
}

func TestReadersGetCopies(t *testing.T) {
	m := New()
	at := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)
	require.NoError(t, m.Replace(model.Snapshot{
		Collection: model.Tasks,
		Tasks:      []model.Task{{ID: "t", Title: "x", Completed: true, CompletedAt: &at}},
	}))

	tasks := m.Tasks()
	tasks[0].Title = "mutated"
	*tasks[0].CompletedAt = at.Add(time.Hour)

	again := m.Tasks()
	assert.Equal(t, "x", again[0].Title)
	assert.True(t, again[0].CompletedAt.Equal(at))
}

func TestLoadedAfterAllCollections(t *testing.T) {
	m := New()
	for _, c := range model.Collections {
		require.False(t, m.Loaded())
		require.NoError(t, m.Replace(model.Snapshot{Collection: c}))
	}
	assert.True(t, m.Loaded())
}

func TestReplaceUnknownCollection(t *testing.T) {
	assert.Error(t, New().Replace(model.Snapshot{Collection: "notes"}))
}
