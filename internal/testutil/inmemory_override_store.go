package testutil

import (
	"context"
	"sync"

	"github.com/psiflow/psiflow/internal/domain/override"
	ierr "github.com/psiflow/psiflow/internal/errors"
	"github.com/psiflow/psiflow/internal/types"
)

// InMemoryOverrideStore implements override.Repository, enforcing the
// one-active-override-per-user constraint the real schema carries.
type InMemoryOverrideStore struct {
	mu   sync.Mutex
	rows map[string]*override.Override
}

// NewInMemoryOverrideStore creates a new in-memory override store
func NewInMemoryOverrideStore() *InMemoryOverrideStore {
	return &InMemoryOverrideStore{
		rows: make(map[string]*override.Override),
	}
}

func copyOverride(o *override.Override) *override.Override {
	if o == nil {
		return nil
	}
	copied := *o
	return &copied
}

func (s *InMemoryOverrideStore) Create(ctx context.Context, o *override.Override) error {
	if o == nil {
		return ierr.NewError("override cannot be nil").Mark(ierr.ErrValidation)
	}
	if err := o.Validate(); err != nil {
		return err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	for _, row := range s.rows {
		if row.UserID == o.UserID && row.Active {
			return ierr.NewErrorf("user %s already has an active override", o.UserID).
				Mark(ierr.ErrAlreadyExists)
		}
	}

	if o.ID == "" {
		o.ID = types.GenerateUUIDWithPrefix(types.UUID_PREFIX_OVERRIDE)
	}
	o.Active = true
	o.BaseModel = types.GetDefaultBaseModel(ctx)
	s.rows[o.ID] = copyOverride(o)
	return nil
}

func (s *InMemoryOverrideStore) GetActiveByUser(ctx context.Context, userID string) (*override.Override, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	for _, row := range s.rows {
		if row.UserID == userID && row.Active {
			return copyOverride(row), nil
		}
	}
	return nil, ierr.NewErrorf("no active override for user %s", userID).
		Mark(ierr.ErrNotFound)
}

func (s *InMemoryOverrideStore) Get(ctx context.Context, id string) (*override.Override, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	row, ok := s.rows[id]
	if !ok {
		return nil, ierr.NewErrorf("override %s not found", id).
			Mark(ierr.ErrNotFound)
	}
	return copyOverride(row), nil
}

func (s *InMemoryOverrideStore) Deactivate(ctx context.Context, id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	row, ok := s.rows[id]
	if !ok {
		return ierr.NewErrorf("override %s not found", id).
			Mark(ierr.ErrNotFound)
	}
	row.Active = false
	return nil
}

// Clear removes all overrides.
func (s *InMemoryOverrideStore) Clear() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.rows = make(map[string]*override.Override)
}
