package store

import (
	"context"
	"fmt"

	"github.com/sadopc/prodhub/internal/model"
)

const projectColumns = `id, name, category, status, progress, deadline, created_at, updated_at`

func (s *Store) GetProject(ctx context.Context, owner, id string) (*model.Project, error) {
	p := &model.Project{}
	var category, createdAt, updatedAt string
	err := s.db.QueryRowContext(ctx, s.dialect.rebind(
		`SELECT `+projectColumns+` FROM projects WHERE owner_id = ? AND id = ?`), owner, id,
	).Scan(&p.ID, &p.Name, &category, &p.Status, &p.Progress, &p.Deadline, &createdAt, &updatedAt)
	if err != nil {
		return nil, fmt.Errorf("get project %s: %w", id, notFound(err))
	}
	p.Category = model.Category(category)
	p.CreatedAt = parseTime(createdAt)
	p.UpdatedAt = parseTime(updatedAt)
	return p, nil
}

func (s *Store) ListProjects(ctx context.Context, owner string) ([]model.Project, error) {
	rows, err := s.db.QueryContext(ctx, s.dialect.rebind(
		`SELECT `+projectColumns+` FROM projects WHERE owner_id = ? ORDER BY created_at, id`), owner)
	if err != nil {
		return nil, fmt.Errorf("list projects: %w", err)
	}
	defer rows.Close()

	var projects []model.Project
	for rows.Next() {
		var p model.Project
		var category, createdAt, updatedAt string
		if err := rows.Scan(&p.ID, &p.Name, &category, &p.Status, &p.Progress, &p.Deadline, &createdAt, &updatedAt); err != nil {
			return nil, err
		}
		p.Category = model.Category(category)
		p.CreatedAt = parseTime(createdAt)
		p.UpdatedAt = parseTime(updatedAt)
		projects = append(projects, p)
	}
	return projects, rows.Err()
}
