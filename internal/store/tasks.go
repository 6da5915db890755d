package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/sadopc/prodhub/internal/model"
)

const taskColumns = `id, project_id, title, due_date, priority, completed, completed_at, created_at, updated_at`

type rowScanner interface {
	Scan(dest ...any) error
}

func scanTask(r rowScanner) (model.Task, error) {
	var t model.Task
	var priority, createdAt, updatedAt string
	var completed int
	var completedAt sql.NullString
	if err := r.Scan(&t.ID, &t.ProjectID, &t.Title, &t.DueDate, &priority, &completed, &completedAt, &createdAt, &updatedAt); err != nil {
		return t, err
	}
	t.Priority = model.Priority(priority)
	t.Completed = completed == 1
	if completedAt.Valid {
		ts := parseTime(completedAt.String)
		t.CompletedAt = &ts
	}
	t.CreatedAt = parseTime(createdAt)
	t.UpdatedAt = parseTime(updatedAt)
	return t, nil
}

func (s *Store) GetTask(ctx context.Context, owner, id string) (*model.Task, error) {
	row := s.db.QueryRowContext(ctx, s.dialect.rebind(
		`SELECT `+taskColumns+` FROM tasks WHERE owner_id = ? AND id = ?`), owner, id)
	t, err := scanTask(row)
	if err != nil {
		return nil, fmt.Errorf("get task %s: %w", id, notFound(err))
	}
	return &t, nil
}

func (s *Store) ListTasks(ctx context.Context, owner string) ([]model.Task, error) {
	rows, err := s.db.QueryContext(ctx, s.dialect.rebind(
		`SELECT `+taskColumns+` FROM tasks WHERE owner_id = ? ORDER BY created_at, id`), owner)
	if err != nil {
		return nil, fmt.Errorf("list tasks: %w", err)
	}
	defer rows.Close()

	var tasks []model.Task
	for rows.Next() {
		t, err := scanTask(rows)
		if err != nil {
			return nil, err
		}
		tasks = append(tasks, t)
	}
	return tasks, rows.Err()
}

func notFound(err error) error {
	if errors.Is(err, sql.ErrNoRows) {
		return ErrNotFound
	}
	return err
}
