package store

import (
	"context"
	"fmt"
)

// Setting is a per-owner preference.
type Setting struct {
	Key   string
	Value string
}

func (s *Store) GetSetting(ctx context.Context, owner, key string) (string, error) {
	var value string
	err := s.db.QueryRowContext(ctx, s.dialect.rebind(
		`SELECT value FROM settings WHERE owner_id = ? AND key = ?`), owner, key).Scan(&value)
	if err != nil {
		return "", fmt.Errorf("get setting %q: %w", key, notFound(err))
	}
	return value, nil
}

func (s *Store) SetSetting(ctx context.Context, owner, key, value string) error {
	_, err := s.db.ExecContext(ctx, s.dialect.rebind(
		`INSERT INTO settings (owner_id, key, value) VALUES (?, ?, ?) ON CONFLICT(owner_id, key) DO UPDATE SET value = excluded.value`),
		owner, key, value,
	)
	return err
}

func (s *Store) GetAllSettings(ctx context.Context, owner string) ([]Setting, error) {
	rows, err := s.db.QueryContext(ctx, s.dialect.rebind(
		`SELECT key, value FROM settings WHERE owner_id = ? ORDER BY key`), owner)
	if err != nil {
		return nil, fmt.Errorf("list settings: %w", err)
	}
	defer rows.Close()

	var settings []Setting
	for rows.Next() {
		var st Setting
		if err := rows.Scan(&st.Key, &st.Value); err != nil {
			return nil, err
		}
		settings = append(settings, st)
	}
	return settings, rows.Err()
}
