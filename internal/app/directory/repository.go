package directory

import (
	"context"
	"sync"

	"lanshare/internal/app/user"
)

// Repository stores the complete user collection.
// Save always receives every user and overwrites whatever was stored before.
type Repository interface {
	Load(ctx context.Context) ([]user.User, error)
	Save(ctx context.Context, users []user.User) error
}

// MemoryRepository keeps the collection in process memory only.
type MemoryRepository struct {
	mu    sync.Mutex
	users []user.User
	saves int
}

// NewMemoryRepository returns an empty MemoryRepository.
func NewMemoryRepository(seed ...user.User) *MemoryRepository {
	return &MemoryRepository{users: append([]user.User(nil), seed...)}
}

// Load returns a copy of the stored users.
func (m *MemoryRepository) Load(_ context.Context) ([]user.User, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]user.User(nil), m.users...), nil
}

// Save replaces the stored users.
func (m *MemoryRepository) Save(_ context.Context, users []user.User) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.users = append(m.users[:0:0], users...)
	m.saves++
	return nil
}

// Saves returns how many times Save was called.
func (m *MemoryRepository) Saves() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.saves
}
