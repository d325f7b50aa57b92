package testutil

import (
	"context"
	"strings"

	"github.com/psiflow/psiflow/internal/domain/user"
	ierr "github.com/psiflow/psiflow/internal/errors"
)

// InMemoryUserStore implements user.Repository
type InMemoryUserStore struct {
	*InMemoryStore[*user.User]
}

// NewInMemoryUserStore creates a new in-memory user store
func NewInMemoryUserStore() *InMemoryUserStore {
	return &InMemoryUserStore{
		InMemoryStore: NewInMemoryStore[*user.User](),
	}
}

// Add seeds a user for tests.
func (s *InMemoryUserStore) Add(ctx context.Context, u *user.User) error {
	return s.InMemoryStore.Create(ctx, u.ID, u)
}

func (s *InMemoryUserStore) Get(ctx context.Context, id string) (*user.User, error) {
	u, err := s.InMemoryStore.Get(ctx, id)
	if err != nil {
		return nil, ierr.NewErrorf("user %s not found", id).
			Mark(ierr.ErrNotFound)
	}
	copied := *u
	return &copied, nil
}

func (s *InMemoryUserStore) GetByEmail(ctx context.Context, email string) (*user.User, error) {
	matches := s.InMemoryStore.List(ctx, func(u *user.User) bool {
		return strings.EqualFold(u.Email, email)
	})
	if len(matches) == 0 {
		return nil, ierr.NewErrorf("no user with email %s", email).
			Mark(ierr.ErrNotFound)
	}
	copied := *matches[0]
	return &copied, nil
}
