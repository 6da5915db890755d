package store

import (
	"fmt"
	"time"

	"github.com/sadopc/prodhub/internal/model"
)

// timeLayout is fixed-width so that stored timestamps sort lexically.
const timeLayout = "2006-01-02T15:04:05.000000000Z07:00"

type fieldKind int

const (
	kindText fieldKind = iota
	kindInt
	kindBool
	kindTime     // NOT NULL timestamp
	kindNullTime // nullable timestamp
)

type table struct {
	name    string
	columns map[string]fieldKind
	// parents lists the columns that reference a parent record.
	parents map[string]bool
}

var tables = map[model.Collection]table{
	model.Projects: {
		name: "projects",
		columns: map[string]fieldKind{
			model.FieldName:      kindText,
			model.FieldCategory:  kindText,
			model.FieldStatus:    kindText,
			model.FieldProgress:  kindInt,
			model.FieldDeadline:  kindText,
			model.FieldCreatedAt: kindTime,
		},
	},
	model.Tasks: {
		name: "tasks",
		columns: map[string]fieldKind{
			model.FieldProjectID:   kindText,
			model.FieldTitle:       kindText,
			model.FieldDueDate:     kindText,
			model.FieldPriority:    kindText,
			model.FieldCompleted:   kindBool,
			model.FieldCompletedAt: kindNullTime,
			model.FieldCreatedAt:   kindTime,
		},
		parents: map[string]bool{model.FieldProjectID: true},
	},
	model.Habits: {
		name: "habits",
		columns: map[string]fieldKind{
			model.FieldName:      kindText,
			model.FieldCreatedAt: kindTime,
		},
	},
	model.HabitEntries: {
		name: "habit_entries",
		columns: map[string]fieldKind{
			model.FieldHabitID:   kindText,
			model.FieldDay:       kindText,
			model.FieldCompleted: kindBool,
			model.FieldCreatedAt: kindTime,
		},
		parents: map[string]bool{model.FieldHabitID: true},
	},
}

func tableFor(c model.Collection) (table, error) {
	t, ok := tables[c]
	if !ok {
		return table{}, fmt.Errorf("unknown collection %q: %w", c, ErrInvalidInput)
	}
	return t, nil
}

// encode converts a field value into its column representation.
func encode(kind fieldKind, field string, v any) (any, error) {
	switch kind {
	case kindText:
		switch x := v.(type) {
		case string:
			return x, nil
		case model.Category:
			return string(x), nil
		case model.Priority:
			return string(x), nil
		case model.DayKey:
			return string(x), nil
		}
	case kindInt:
		switch x := v.(type) {
		case int:
			return int64(x), nil
		case int64:
			return x, nil
		}
	case kindBool:
		if b, ok := v.(bool); ok {
			if b {
				return int64(1), nil
			}
			return int64(0), nil
		}
	case kindTime, kindNullTime:
		switch x := v.(type) {
		case time.Time:
			return x.UTC().Format(timeLayout), nil
		case *time.Time:
			if x != nil {
				return x.UTC().Format(timeLayout), nil
			}
			if kind == kindNullTime {
				return nil, nil
			}
		case nil:
			if kind == kindNullTime {
				return nil, nil
			}
		}
	}
	return nil, fmt.Errorf("field %q: unsupported value %T: %w", field, v, ErrInvalidInput)
}

func parseTime(s string) time.Time {
	t, err := time.Parse(timeLayout, s)
	if err != nil {
		t, _ = time.Parse(time.RFC3339Nano, s)
	}
	return t
}
