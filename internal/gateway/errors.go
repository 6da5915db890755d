package gateway

import (
	"errors"
	"fmt"

	"github.com/sadopc/prodhub/internal/model"
)

var (
	ErrInvalidInput = errors.New("invalid input")
	ErrCascade      = errors.New("cascade incomplete")
)

// CascadeError reports a cascading delete that stopped part way through a
// non-atomic sequence after at least one child was deleted. Deleted
// children are gone while Remaining children and the parent are still
// stored.
type CascadeError struct {
	Collection model.Collection
	ParentID   string
	Deleted    []string
	Remaining  []string
	Err        error
}

func (e *CascadeError) Error() string {
	return fmt.Sprintf("cascade delete %s %s: %d children deleted, %d remaining: %v",
		e.Collection, e.ParentID, len(e.Deleted), len(e.Remaining), e.Err)
}

func (e *CascadeError) Is(target error) bool {
	return target == ErrCascade
}

func (e *CascadeError) Unwrap() error {
	return e.Err
}
