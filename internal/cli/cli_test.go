package cli

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"regexp"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sadopc/prodhub/internal/store"
)

const testOwner = "tester"

var idPattern = regexp.MustCompile(`[0-9a-f]{8}-[0-9a-f]{4}-[0-9a-f]{4}-[0-9a-f]{4}-[0-9a-f]{12}`)

type harness struct {
	t   *testing.T
	dir string
	db  string
}

func newHarness(t *testing.T) *harness {
	t.Helper()
	for _, name := range []string{"DRIVER", "DSN", "OWNER", "TIMEZONE", "LOG_LEVEL", "CALENDAR_TOKEN", "SUGGEST_API_KEY", "SUGGEST_BASE_URL"} {
		t.Setenv("PRODHUB_"+name, "")
	}
	dir := t.TempDir()
	return &harness{t: t, dir: dir, db: filepath.Join(dir, "prodhub.db")}
}

func (h *harness) run(args ...string) (string, error) {
	h.t.Helper()
	cmd := newRootCmd()
	var out, errOut bytes.Buffer
	cmd.SetOut(&out)
	cmd.SetErr(&errOut)
	cmd.SetArgs(append([]string{
		"--config", filepath.Join(h.dir, "config.yaml"),
		"--db", h.db,
		"--owner", testOwner,
		"--log-level", "error",
	}, args...))
	err := cmd.Execute()
	return out.String(), err
}

func (h *harness) mustRun(args ...string) string {
	h.t.Helper()
	out, err := h.run(args...)
	require.NoError(h.t, err, "prodhub %s", strings.Join(args, " "))
	return out
}

// create runs a command that prints a new id and returns it.
func (h *harness) create(args ...string) string {
	h.t.Helper()
	id := idPattern.FindString(h.mustRun(args...))
	require.NotEmpty(h.t, id, "no id in output of %v", args)
	return id
}

type taskJSON struct {
	Count int `json:"count"`
	Tasks []struct {
		ID        string `json:"id"`
		Project   string `json:"project"`
		Title     string `json:"title"`
		Completed bool   `json:"completed"`
	} `json:"tasks"`
}

func (h *harness) tasks(args ...string) taskJSON {
	h.t.Helper()
	out := h.mustRun(append([]string{"task", "list", "--format", "json"}, args...)...)
	var result taskJSON
	require.NoError(h.t, json.Unmarshal([]byte(out), &result))
	return result
}

// ============================================================
// Projects and tasks
// ============================================================

func TestProjectAndTaskFlow(t *testing.T) {
	h := newHarness(t)
	pid := h.create("project", "add", "Thesis", "--category", "course", "--deadline", "2030-01-15")
	assert.Contains(t, h.mustRun("project", "list"), "Thesis")

	tid := h.create("task", "add", "Outline", "--project", pid, "--due", "2030-01-01", "--priority", "high")
	h.create("task", "add", "Draft", "--project", pid)

	h.mustRun("task", "done", tid)
	result := h.tasks("--filter", "completed")
	require.Equal(t, 1, result.Count)
	assert.Equal(t, tid, result.Tasks[0].ID)
	assert.Equal(t, "Thesis", result.Tasks[0].Project)
	assert.True(t, result.Tasks[0].Completed)

	h.mustRun("task", "done", "--undo", tid)
	assert.Equal(t, 0, h.tasks("--filter", "completed").Count)

	h.mustRun("task", "edit", tid, "--title", "Detailed outline")
	assert.Contains(t, h.mustRun("task", "list", "--project", pid), "Detailed outline")
}

func TestProgressPersistedByNextSession(t *testing.T) {
	h := newHarness(t)
	pid := h.create("project", "add", "Launch")
	tid := h.create("task", "add", "Ship", "--project", pid)
	h.create("task", "add", "Announce", "--project", pid)
	h.mustRun("task", "done", tid)

	assert.Contains(t, h.mustRun("project", "list"), "50%")

	st, err := store.New(h.db)
	require.NoError(t, err)
	defer st.Close()
	p, err := st.GetProject(context.Background(), testOwner, pid)
	require.NoError(t, err)
	assert.Equal(t, 50, p.Progress)
}

func TestProjectDeleteCascades(t *testing.T) {
	h := newHarness(t)
	pid := h.create("project", "add", "Old")
	h.create("task", "add", "a", "--project", pid)
	h.create("task", "add", "b", "--project", pid)
	h.create("task", "add", "inbox")

	h.mustRun("project", "delete", pid)

	result := h.tasks()
	require.Equal(t, 1, result.Count)
	assert.Equal(t, "inbox", result.Tasks[0].Title)
	assert.NotContains(t, h.mustRun("project", "list"), "Old")
}

func TestTaskValidation(t *testing.T) {
	h := newHarness(t)

	_, err := h.run("task", "add")
	assert.EqualError(t, err, "title is required")

	_, err = h.run("task", "add", "x", "--priority", "urgent")
	assert.Error(t, err)

	_, err = h.run("task", "add", "x", "--due", "someday")
	assert.Error(t, err)

	_, err = h.run("task", "list", "--filter", "later")
	assert.Error(t, err)

	_, err = h.run("task", "done", "missing")
	assert.ErrorIs(t, err, store.ErrNotFound)
}

// ============================================================
// Habits
// ============================================================

func TestHabitCheckToggles(t *testing.T) {
	h := newHarness(t)
	hid := h.create("habit", "add", "Read")

	assert.True(t, strings.HasPrefix(h.mustRun("habit", "check", hid), "checked"))
	assert.Contains(t, h.mustRun("habit", "list"), "1 day streak")

	assert.True(t, strings.HasPrefix(h.mustRun("habit", "check", hid), "unchecked"))
	assert.Contains(t, h.mustRun("habit", "list"), "0 day streak")

	st, err := store.New(h.db)
	require.NoError(t, err)
	defer st.Close()
	entries, err := st.ListEntries(context.Background(), testOwner, store.EntryFilter{HabitID: hid})
	require.NoError(t, err)
	assert.Len(t, entries, 1)
}

func TestHabitDeleteRemovesEntries(t *testing.T) {
	h := newHarness(t)
	hid := h.create("habit", "add", "Run")
	h.mustRun("habit", "check", hid, "--date", "2024-03-01")
	h.mustRun("habit", "delete", hid)

	st, err := store.New(h.db)
	require.NoError(t, err)
	defer st.Close()
	entries, err := st.ListEntries(context.Background(), testOwner, store.EntryFilter{})
	require.NoError(t, err)
	assert.Empty(t, entries)
}

// ============================================================
// Views
// ============================================================

func TestScheduleFormats(t *testing.T) {
	h := newHarness(t)
	pid := h.create("project", "add", "Conf", "--category", "conference", "--deadline", "2030-05-01")
	tid := h.create("task", "add", "Submit talk", "--project", pid, "--due", "2030-04-01")

	csvOut := h.mustRun("schedule", "--format", "csv")
	lines := strings.Split(strings.TrimSpace(csvOut), "\n")
	require.Len(t, lines, 3)
	assert.True(t, strings.HasPrefix(lines[1], "task-"+tid+","))
	assert.True(t, strings.HasPrefix(lines[2], "proj-"+pid+","))

	var result struct {
		Count int `json:"count"`
	}
	require.NoError(t, json.Unmarshal([]byte(h.mustRun("schedule", "--format", "json")), &result))
	assert.Equal(t, 2, result.Count)

	out := filepath.Join(h.dir, "schedule.csv")
	assert.Contains(t, h.mustRun("schedule", "--format", "csv", "--out", out), "2 events")

	_, err := h.run("schedule", "--format", "xml")
	assert.Error(t, err)
}

func TestDashboardAndReview(t *testing.T) {
	h := newHarness(t)
	pid := h.create("project", "add", "Garden")
	h.create("task", "add", "Plant seeds", "--project", pid, "--due", "2000-01-01")
	h.create("habit", "add", "Water")

	dash := h.mustRun("dashboard")
	assert.Contains(t, dash, "Overdue")
	assert.Contains(t, dash, "Plant seeds")
	assert.Contains(t, dash, "Water")

	review := h.mustRun("review")
	assert.Contains(t, review, "Still overdue (1)")
	assert.Contains(t, review, "Completed (0)")
}

// ============================================================
// Suggestions and settings
// ============================================================

func TestSuggestCreatesTasks(t *testing.T) {
	h := newHarness(t)
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		text := `{"tasks":[{"title":"Pick venue","priority":"High"},{"title":"Send invites","priority":"Low"}]}`
		json.NewEncoder(w).Encode(map[string]any{
			"candidates": []any{map[string]any{
				"content": map[string]any{"parts": []any{map[string]any{"text": text}}},
			}},
		})
	}))
	defer srv.Close()
	t.Setenv("PRODHUB_SUGGEST_BASE_URL", srv.URL)
	t.Setenv("PRODHUB_SUGGEST_API_KEY", "test-key")

	pid := h.create("project", "add", "Party")
	assert.Contains(t, h.mustRun("suggest", pid), "created 2 tasks")

	result := h.tasks("--project", pid)
	assert.Equal(t, 2, result.Count)
}

func TestSettings(t *testing.T) {
	h := newHarness(t)
	h.mustRun("settings", "set", "theme", "dark")
	assert.Equal(t, "dark\n", h.mustRun("settings", "get", "theme"))
	assert.Contains(t, h.mustRun("settings", "list"), "theme")

	_, err := h.run("settings", "get", "missing")
	assert.ErrorIs(t, err, store.ErrNotFound)

	_, err = h.run("settings", "set", "timezone", "Mars/Olympus")
	assert.Error(t, err)
	h.mustRun("settings", "set", "timezone", "UTC")
	h.mustRun("project", "list")
}

func TestInvalidLogLevel(t *testing.T) {
	h := newHarness(t)
	_, err := h.run("--log-level", "loud", "project", "list")
	assert.Error(t, err)
}
