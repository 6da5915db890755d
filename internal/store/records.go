package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"sort"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/sadopc/prodhub/internal/model"
)

// Apply executes a single write in the owner's partition and returns the id
// of the affected record.
func (s *Store) Apply(ctx context.Context, owner string, op model.Op) (string, error) {
	ids, err := s.ApplyBatch(ctx, owner, []model.Op{op})
	if err != nil {
		return "", err
	}
	return ids[0], nil
}

// ApplyBatch executes ops in order inside one transaction: either all of them
// take effect or none do.
func (s *Store) ApplyBatch(ctx context.Context, owner string, ops []model.Op) ([]string, error) {
	if strings.TrimSpace(owner) == "" {
		return nil, fmt.Errorf("owner is required: %w", ErrInvalidInput)
	}
	if len(ops) == 0 {
		return nil, nil
	}

	ids := make([]string, len(ops))
	touched := make(map[model.Collection]bool)
	now := time.Now().UTC()

	err := s.withTx(ctx, func(tx *sql.Tx) error {
		for i, op := range ops {
			id, err := s.applyOp(ctx, tx, owner, op, now)
			if err != nil {
				return err
			}
			ids[i] = id
			touched[op.Collection] = true
		}
		if s.dialect.driver == DriverPostgres {
			for c := range touched {
				if _, err := tx.ExecContext(ctx, s.dialect.rebind(`SELECT pg_notify(?, ?)`), notifyChannel, notifyPayload(owner, c)); err != nil {
					return fmt.Errorf("notify: %w", err)
				}
			}
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	for c := range touched {
		s.notify.publish(owner, c)
	}
	return ids, nil
}

func (s *Store) applyOp(ctx context.Context, tx *sql.Tx, owner string, op model.Op, now time.Time) (string, error) {
	t, err := tableFor(op.Collection)
	if err != nil {
		return "", err
	}

	// Deterministic column order keeps statements stable across calls.
	fields := make([]string, 0, len(op.Fields))
	for f := range op.Fields {
		if _, ok := t.columns[f]; !ok {
			return "", fmt.Errorf("%s: unknown field %q: %w", t.name, f, ErrInvalidInput)
		}
		fields = append(fields, f)
	}
	sort.Strings(fields)

	values := make([]any, 0, len(fields)+4)
	for _, f := range fields {
		v, err := encode(t.columns[f], f, op.Fields[f])
		if err != nil {
			return "", err
		}
		values = append(values, v)
	}
	stamp := now.Format(timeLayout)

	switch op.Kind {
	case model.OpCreate:
		id := op.ID
		if id == "" {
			id = uuid.NewString()
		}
		cols := append([]string{"id", "owner_id"}, fields...)
		args := append([]any{id, owner}, values...)
		if _, ok := op.Fields[model.FieldCreatedAt]; !ok {
			cols = append(cols, model.FieldCreatedAt)
			args = append(args, stamp)
		}
		cols = append(cols, "updated_at")
		args = append(args, stamp)

		query := fmt.Sprintf(`INSERT INTO %s (%s) VALUES (%s)`,
			t.name, strings.Join(cols, ", "), strings.TrimSuffix(strings.Repeat("?, ", len(cols)), ", "))
		if _, err := tx.ExecContext(ctx, s.dialect.rebind(query), args...); err != nil {
			return "", fmt.Errorf("insert %s: %w", t.name, err)
		}
		return id, nil

	case model.OpUpdate:
		if op.ID == "" {
			return "", fmt.Errorf("update %s: id is required: %w", t.name, ErrInvalidInput)
		}
		sets := make([]string, 0, len(fields)+1)
		for _, f := range fields {
			sets = append(sets, f+" = ?")
		}
		sets = append(sets, "updated_at = ?")
		args := append(values, stamp, owner, op.ID)

		query := fmt.Sprintf(`UPDATE %s SET %s WHERE owner_id = ? AND id = ?`, t.name, strings.Join(sets, ", "))
		res, err := tx.ExecContext(ctx, s.dialect.rebind(query), args...)
		if err != nil {
			return "", fmt.Errorf("update %s %s: %w", t.name, op.ID, err)
		}
		if err := requireRow(res, t.name, op.ID); err != nil {
			return "", err
		}
		return op.ID, nil

	case model.OpDelete:
		if op.ID == "" {
			return "", fmt.Errorf("delete %s: id is required: %w", t.name, ErrInvalidInput)
		}
		conds, err := parentConds(t, fields)
		if err != nil {
			return "", err
		}
		args := append([]any{owner, op.ID}, values...)
		query := fmt.Sprintf(`DELETE FROM %s WHERE owner_id = ? AND id = ?%s`, t.name, conds)
		res, err := tx.ExecContext(ctx, s.dialect.rebind(query), args...)
		if err != nil {
			return "", fmt.Errorf("delete %s %s: %w", t.name, op.ID, err)
		}
		// A guarded delete skips a record that moved to another parent.
		if len(fields) > 0 {
			return op.ID, nil
		}
		if err := requireRow(res, t.name, op.ID); err != nil {
			return "", err
		}
		return op.ID, nil

	case model.OpDeleteChildren:
		if len(fields) != 1 {
			return "", fmt.Errorf("delete %s children: exactly one parent field is required: %w", t.name, ErrInvalidInput)
		}
		conds, err := parentConds(t, fields)
		if err != nil {
			return "", err
		}
		args := append([]any{owner}, values...)
		query := fmt.Sprintf(`DELETE FROM %s WHERE owner_id = ?%s`, t.name, conds)
		if _, err := tx.ExecContext(ctx, s.dialect.rebind(query), args...); err != nil {
			return "", fmt.Errorf("delete %s children: %w", t.name, err)
		}
		return "", nil
	}
	return "", fmt.Errorf("unknown op %q: %w", op.Kind, ErrInvalidInput)
}

// parentConds renders " AND field = ?" for each field, which must all be
// parent references.
func parentConds(t table, fields []string) (string, error) {
	var b strings.Builder
	for _, f := range fields {
		if !t.parents[f] {
			return "", fmt.Errorf("%s: %q is not a parent field: %w", t.name, f, ErrInvalidInput)
		}
		b.WriteString(" AND " + f + " = ?")
	}
	return b.String(), nil
}

func requireRow(res sql.Result, tableName, id string) error {
	n, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if n == 0 {
		return fmt.Errorf("%s %s: %w", tableName, id, ErrNotFound)
	}
	return nil
}

// ChildIDs lists the ids of records in c whose parent column field equals
// parentID, within the owner's partition.
func (s *Store) ChildIDs(ctx context.Context, owner string, c model.Collection, field, parentID string) ([]string, error) {
	t, err := tableFor(c)
	if err != nil {
		return nil, err
	}
	if !t.parents[field] {
		return nil, fmt.Errorf("%s: %q is not a parent field: %w", t.name, field, ErrInvalidInput)
	}

	query := fmt.Sprintf(`SELECT id FROM %s WHERE owner_id = ? AND %s = ? ORDER BY id`, t.name, field)
	rows, err := s.db.QueryContext(ctx, s.dialect.rebind(query), owner, parentID)
	if err != nil {
		return nil, fmt.Errorf("list %s children: %w", t.name, err)
	}
	defer rows.Close()

	var ids []string
	for rows.Next() {
		var id string
		if err := rows.Scan(&id); err != nil {
			return nil, err
		}
		ids = append(ids, id)
	}
	return ids, rows.Err()
}

// ParentID returns the value of the parent column field of record id.
func (s *Store) ParentID(ctx context.Context, owner string, c model.Collection, field, id string) (string, error) {
	t, err := tableFor(c)
	if err != nil {
		return "", err
	}
	if !t.parents[field] {
		return "", fmt.Errorf("%s: %q is not a parent field: %w", t.name, field, ErrInvalidInput)
	}

	query := fmt.Sprintf(`SELECT %s FROM %s WHERE owner_id = ? AND id = ?`, field, t.name)
	var parent string
	err = s.db.QueryRowContext(ctx, s.dialect.rebind(query), owner, id).Scan(&parent)
	if errors.Is(err, sql.ErrNoRows) {
		return "", fmt.Errorf("%s %s: %w", t.name, id, ErrNotFound)
	}
	if err != nil {
		return "", fmt.Errorf("read %s %s: %w", t.name, id, err)
	}
	return parent, nil
}
