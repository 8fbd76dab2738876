package store

import (
	"context"
	"fmt"
	"sort"
	"strings"
	"sync"

	"prelaunch/internal/registration/models"
	"prelaunch/pkg/platform/sentinel"
)

// InMemory is a process-local registration store for tests and demo runs.
// Email uniqueness is case-insensitive, matching the SQL stores.
type InMemory struct {
	mu      sync.RWMutex
	byEmail map[string]*models.Registration
}

// NewInMemory creates an empty store.
func NewInMemory() *InMemory {
	return &InMemory{byEmail: make(map[string]*models.Registration)}
}

func (s *InMemory) Insert(_ context.Context, reg *models.Registration) error {
	key := emailKey(reg.Email)

	s.mu.Lock()
	defer s.mu.Unlock()
	if _, exists := s.byEmail[key]; exists {
		return fmt.Errorf("insert registration: %w", sentinel.ErrAlreadyUsed)
	}
	copied := *reg
	s.byEmail[key] = &copied
	return nil
}

func (s *InMemory) FindByEmail(_ context.Context, email string) (*models.Registration, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	reg, ok := s.byEmail[emailKey(email)]
	if !ok {
		return nil, sentinel.ErrNotFound
	}
	copied := *reg
	return &copied, nil
}

func (s *InMemory) List(_ context.Context, opts models.ListOptions) ([]*models.Registration, error) {
	opts.Normalize()

	s.mu.RLock()
	all := make([]*models.Registration, 0, len(s.byEmail))
	for _, reg := range s.byEmail {
		copied := *reg
		all = append(all, &copied)
	}
	s.mu.RUnlock()

	sort.Slice(all, func(i, j int) bool {
		if all[i].CreatedAt.Equal(all[j].CreatedAt) {
			return all[i].ID.String() < all[j].ID.String()
		}
		return all[i].CreatedAt.After(all[j].CreatedAt)
	})
	if opts.Offset >= len(all) {
		return []*models.Registration{}, nil
	}
	end := min(opts.Offset+opts.Limit, len(all))
	return all[opts.Offset:end], nil
}

func (s *InMemory) Count(_ context.Context) (int, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.byEmail), nil
}

func emailKey(email string) string {
	return strings.ToLower(strings.TrimSpace(email))
}
