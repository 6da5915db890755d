package store

import (
	"context"
	"fmt"

	"github.com/sadopc/prodhub/internal/model"
)

func (s *Store) ListHabits(ctx context.Context, owner string) ([]model.Habit, error) {
	rows, err := s.db.QueryContext(ctx, s.dialect.rebind(
		`SELECT id, name, created_at, updated_at FROM habits WHERE owner_id = ? ORDER BY created_at, id`), owner)
	if err != nil {
		return nil, fmt.Errorf("list habits: %w", err)
	}
	defer rows.Close()

	var habits []model.Habit
	for rows.Next() {
		var h model.Habit
		var createdAt, updatedAt string
		if err := rows.Scan(&h.ID, &h.Name, &createdAt, &updatedAt); err != nil {
			return nil, err
		}
		h.CreatedAt = parseTime(createdAt)
		h.UpdatedAt = parseTime(updatedAt)
		habits = append(habits, h)
	}
	return habits, rows.Err()
}
