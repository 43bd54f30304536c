package gate

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"gorm.io/gorm"

	"github.com/mentorlink/consult/internal/domain"
)

var ErrUserNotFound = errors.New("user not found")

// User is the slice of the account record the gate cares about.
type User struct {
	ID      domain.UserID
	Blocked bool
}

// UserStore is the contract to the external account store.
type UserStore interface {
	Get(ctx context.Context, id domain.UserID) (*User, error)
}

type userRow struct {
	ID      string `gorm:"primaryKey;column:id"`
	Blocked bool   `gorm:"column:blocked"`
}

func (userRow) TableName() string { return "users" }

type gormUserStore struct {
	db *gorm.DB
}

func NewGormUserStore(db *gorm.DB) UserStore {
	return &gormUserStore{db: db}
}

func (s *gormUserStore) Get(ctx context.Context, id domain.UserID) (*User, error) {
	var row userRow
	err := s.db.WithContext(ctx).First(&row, "id = ?", string(id)).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, ErrUserNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to load user: %w", err)
	}
	return &User{ID: domain.UserID(row.ID), Blocked: row.Blocked}, nil
}

// MemoryUsers is the test double for the account store.
type MemoryUsers struct {
	mu    sync.RWMutex
	users map[domain.UserID]User
}

func NewMemoryUsers() *MemoryUsers {
	return &MemoryUsers{users: make(map[domain.UserID]User)}
}

func (m *MemoryUsers) Put(u User) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.users[u.ID] = u
}

func (m *MemoryUsers) Get(_ context.Context, id domain.UserID) (*User, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	u, ok := m.users[id]
	if !ok {
		return nil, ErrUserNotFound
	}
	return &u, nil
}
