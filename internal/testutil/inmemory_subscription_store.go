package testutil

import (
	"context"
	"sort"
	"sync"

	"github.com/psiflow/psiflow/internal/domain/subscription"
	ierr "github.com/psiflow/psiflow/internal/errors"
	"github.com/psiflow/psiflow/internal/types"
)

// InMemorySubscriptionStore implements subscription.Repository. UpsertActive
// holds a single mutex across cancel-and-insert, matching the transactional
// guarantee of the real repository.
type InMemorySubscriptionStore struct {
	mu   sync.Mutex
	rows []*subscription.Assignment
}

// NewInMemorySubscriptionStore creates a new in-memory subscription store
func NewInMemorySubscriptionStore() *InMemorySubscriptionStore {
	return &InMemorySubscriptionStore{}
}

func copyAssignment(a *subscription.Assignment) *subscription.Assignment {
	if a == nil {
		return nil
	}
	copied := *a
	return &copied
}

func (s *InMemorySubscriptionStore) UpsertActive(ctx context.Context, assignment *subscription.Assignment) (*subscription.Assignment, error) {
	if assignment == nil {
		return nil, ierr.NewError("assignment cannot be nil").Mark(ierr.ErrValidation)
	}
	if err := assignment.Validate(); err != nil {
		return nil, err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	for _, row := range s.rows {
		if row.UserID == assignment.UserID && row.Active() {
			row.AssignmentStatus = types.AssignmentStatusCancelled
		}
	}

	stored := copyAssignment(assignment)
	if stored.ID == "" {
		stored.ID = types.GenerateUUIDWithPrefix(types.UUID_PREFIX_ASSIGNMENT)
	}
	stored.AssignmentStatus = types.AssignmentStatusActive
	stored.BaseModel = types.GetDefaultBaseModel(ctx)
	s.rows = append(s.rows, stored)

	return copyAssignment(stored), nil
}

func (s *InMemorySubscriptionStore) GetActiveByUser(ctx context.Context, userID string) (*subscription.Assignment, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	for _, row := range s.rows {
		if row.UserID == userID && row.Active() {
			return copyAssignment(row), nil
		}
	}
	return nil, ierr.NewErrorf("no active assignment for user %s", userID).
		Mark(ierr.ErrNotFound)
}

func (s *InMemorySubscriptionStore) ListByUser(ctx context.Context, userID string) ([]*subscription.Assignment, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	var out []*subscription.Assignment
	for _, row := range s.rows {
		if row.UserID == userID {
			out = append(out, copyAssignment(row))
		}
	}
	sort.Slice(out, func(i, j int) bool {
		return out[i].CreatedAt.After(out[j].CreatedAt)
	})
	return out, nil
}

// ActiveCount reports how many assignments are active for the user. Tests use
// it to assert the at-most-one-active invariant.
func (s *InMemorySubscriptionStore) ActiveCount(userID string) int {
	s.mu.Lock()
	defer s.mu.Unlock()

	count := 0
	for _, row := range s.rows {
		if row.UserID == userID && row.Active() {
			count++
		}
	}
	return count
}

// Clear removes all assignments.
func (s *InMemorySubscriptionStore) Clear() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.rows = nil
}
