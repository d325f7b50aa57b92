package testutil

import (
	"context"
	"sync"
	"time"

	"github.com/psiflow/psiflow/internal/domain/webhookevent"
	ierr "github.com/psiflow/psiflow/internal/errors"
	"github.com/psiflow/psiflow/internal/types"
)

// InMemoryWebhookEventStore implements webhookevent.Repository with the same
// unique-event-id semantics as the real ledger.
type InMemoryWebhookEventStore struct {
	mu     sync.Mutex
	byID   map[string]*webhookevent.ProcessedEvent
	events map[string]struct{}
}

// NewInMemoryWebhookEventStore creates a new in-memory ledger
func NewInMemoryWebhookEventStore() *InMemoryWebhookEventStore {
	return &InMemoryWebhookEventStore{
		byID:   make(map[string]*webhookevent.ProcessedEvent),
		events: make(map[string]struct{}),
	}
}

func (s *InMemoryWebhookEventStore) Create(ctx context.Context, event *webhookevent.ProcessedEvent) error {
	if event == nil {
		return ierr.NewError("event cannot be nil").Mark(ierr.ErrValidation)
	}
	if err := event.Validate(); err != nil {
		return err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.events[event.EventID]; ok {
		return ierr.NewErrorf("event %s already processed", event.EventID).
			Mark(ierr.ErrAlreadyExists)
	}

	if event.ID == "" {
		event.ID = types.GenerateUUIDWithPrefix(types.UUID_PREFIX_WEBHOOK_EVENT)
	}
	event.ProcessedAt = time.Now().UTC()
	stored := *event
	s.byID[event.ID] = &stored
	s.events[event.EventID] = struct{}{}
	return nil
}

func (s *InMemoryWebhookEventStore) Exists(ctx context.Context, eventID string) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	_, ok := s.events[eventID]
	return ok, nil
}

// Count returns the number of ledger entries.
func (s *InMemoryWebhookEventStore) Count() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.byID)
}

// Clear removes all ledger entries.
func (s *InMemoryWebhookEventStore) Clear() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.byID = make(map[string]*webhookevent.ProcessedEvent)
	s.events = make(map[string]struct{})
}
