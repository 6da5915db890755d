package store

import (
	"context"
	"fmt"
	"strings"

	"github.com/sadopc/prodhub/internal/model"
)

// Snapshot reads the complete contents of one collection for owner.
func (s *Store) Snapshot(ctx context.Context, owner string, c model.Collection) (model.Snapshot, error) {
	if strings.TrimSpace(owner) == "" {
		return model.Snapshot{}, fmt.Errorf("owner is required: %w", ErrInvalidInput)
	}
	snap := model.Snapshot{Collection: c}
	var err error
	switch c {
	case model.Projects:
		snap.Projects, err = s.ListProjects(ctx, owner)
	case model.Tasks:
		snap.Tasks, err = s.ListTasks(ctx, owner)
	case model.Habits:
		snap.Habits, err = s.ListHabits(ctx, owner)
	case model.HabitEntries:
		snap.Entries, err = s.ListEntries(ctx, owner, EntryFilter{})
	default:
		return model.Snapshot{}, fmt.Errorf("unknown collection %q: %w", c, ErrInvalidInput)
	}
	if err != nil {
		return model.Snapshot{}, err
	}
	return snap, nil
}
