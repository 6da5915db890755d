package store

import (
	"context"
	"fmt"

	"github.com/sadopc/prodhub/internal/model"
)

// EntryFilter is used to filter habit entries in queries.
type EntryFilter struct {
	HabitID string
	From    model.DayKey // inclusive
	To      model.DayKey // inclusive
}

// ListEntries returns habit entries ordered by write time, oldest first, so
// that the last entry for a (habit, day) pair is the canonical one.
func (s *Store) ListEntries(ctx context.Context, owner string, f EntryFilter) ([]model.HabitEntry, error) {
	query := `SELECT id, habit_id, day, completed, updated_at FROM habit_entries WHERE owner_id = ?`
	args := []any{owner}

	if f.HabitID != "" {
		query += ` AND habit_id = ?`
		args = append(args, f.HabitID)
	}
	if f.From != "" {
		query += ` AND day >= ?`
		args = append(args, string(f.From))
	}
	if f.To != "" {
		query += ` AND day <= ?`
		args = append(args, string(f.To))
	}
	query += ` ORDER BY updated_at, id`

	rows, err := s.db.QueryContext(ctx, s.dialect.rebind(query), args...)
	if err != nil {
		return nil, fmt.Errorf("list entries: %w", err)
	}
	defer rows.Close()

	var entries []model.HabitEntry
	for rows.Next() {
		var e model.HabitEntry
		var day, updatedAt string
		var completed int
		if err := rows.Scan(&e.ID, &e.HabitID, &day, &completed, &updatedAt); err != nil {
			return nil, err
		}
		e.Day = model.DayKey(day)
		e.Completed = completed == 1
		e.UpdatedAt = parseTime(updatedAt)
		entries = append(entries, e)
	}
	return entries, rows.Err()
}
