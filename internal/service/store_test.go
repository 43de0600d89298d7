package service

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/sumire/recipebox/internal/domain"
)

// memStore is an in-memory UserStore and UserDirectory with the same
// uniqueness rules as the users table.
type memStore struct {
	mu     sync.Mutex
	users  map[string]domain.User
	nextID int64
	// fail makes the named method return the error.
	fail map[string]error
	// probes records every FindByUsername lookup.
	probes []string
}

func newMemStore() *memStore {
	return &memStore{users: map[string]domain.User{}, fail: map[string]error{}}
}

func (m *memStore) failing(method string) error {
	return m.fail[method]
}

func (m *memStore) FindByUsername(_ context.Context, username string) (*domain.User, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.probes = append(m.probes, username)
	if err := m.failing("FindByUsername"); err != nil {
		return nil, err
	}
	u, ok := m.users[username]
	if !ok {
		return nil, domain.ErrNotFound
	}
	return &u, nil
}

func (m *memStore) FindByEmail(_ context.Context, email string) (*domain.User, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if err := m.failing("FindByEmail"); err != nil {
		return nil, err
	}
	for _, u := range m.users {
		if u.Email == email {
			return &u, nil
		}
	}
	return nil, domain.ErrNotFound
}

func (m *memStore) FindByUsernameOrEmail(_ context.Context, username, email string) (*domain.User, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if err := m.failing("FindByUsernameOrEmail"); err != nil {
		return nil, err
	}
	if u, ok := m.users[username]; ok {
		return &u, nil
	}
	for _, u := range m.users {
		if u.Email == email {
			return &u, nil
		}
	}
	return nil, domain.ErrNotFound
}

func (m *memStore) FindByProviderID(_ context.Context, provider domain.AuthProvider, providerID string) (*domain.User, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if err := m.failing("FindByProviderID"); err != nil {
		return nil, err
	}
	for _, u := range m.users {
		if u.Provider == provider && u.ProviderID != nil && *u.ProviderID == providerID {
			return &u, nil
		}
	}
	return nil, domain.ErrNotFound
}

func (m *memStore) Create(_ context.Context, user domain.User) (*domain.User, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if err := m.failing("Create"); err != nil {
		return nil, err
	}
	if _, ok := m.users[user.Username]; ok {
		return nil, domain.Errorf(domain.ErrConflict, "username already exists")
	}
	for _, u := range m.users {
		if u.Email == user.Email {
			return nil, domain.Errorf(domain.ErrConflict, "email already exists")
		}
		if user.ProviderID != nil && u.Provider == user.Provider && u.ProviderID != nil && *u.ProviderID == *user.ProviderID {
			return nil, domain.Errorf(domain.ErrConflict, "provider account already exists")
		}
	}
	m.nextID++
	now := time.Now()
	user.ID = m.nextID
	user.CreatedAt = now
	user.UpdatedAt = now
	m.users[user.Username] = user
	return &user, nil
}

func (m *memStore) LinkProvider(_ context.Context, username string, provider domain.AuthProvider, providerID string, image *string) (*domain.User, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if err := m.failing("LinkProvider"); err != nil {
		return nil, err
	}
	u, ok := m.users[username]
	if !ok {
		return nil, domain.ErrNotFound
	}
	u.Provider = provider
	u.ProviderID = &providerID
	if image != nil {
		u.Image = image
	}
	u.UpdatedAt = time.Now()
	m.users[username] = u
	return &u, nil
}

func (m *memStore) SetRefreshTokenHash(_ context.Context, username string, hash *string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if err := m.failing("SetRefreshTokenHash"); err != nil {
		return err
	}
	u, ok := m.users[username]
	if !ok {
		return domain.ErrNotFound
	}
	u.HashedRefreshToken = hash
	m.users[username] = u
	return nil
}

func (m *memStore) SwapRefreshTokenHash(_ context.Context, username, oldHash, newHash string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if err := m.failing("SwapRefreshTokenHash"); err != nil {
		return err
	}
	u, ok := m.users[username]
	if !ok || u.HashedRefreshToken == nil || *u.HashedRefreshToken != oldHash {
		return domain.ErrNotFound
	}
	u.HashedRefreshToken = &newHash
	m.users[username] = u
	return nil
}

func (m *memStore) List(_ context.Context) ([]domain.User, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if err := m.failing("List"); err != nil {
		return nil, err
	}
	users := make([]domain.User, 0, len(m.users))
	for _, u := range m.users {
		users = append(users, u)
	}
	sort.Slice(users, func(i, j int) bool { return users[i].Username < users[j].Username })
	return users, nil
}

func (m *memStore) UpdateProfile(_ context.Context, username string, update domain.ProfileUpdate) (*domain.User, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if err := m.failing("UpdateProfile"); err != nil {
		return nil, err
	}
	u, ok := m.users[username]
	if !ok {
		return nil, domain.ErrNotFound
	}
	if update.Name != nil {
		u.Name = update.Name
	}
	if update.Image != nil {
		u.Image = update.Image
	}
	m.users[username] = u
	return &u, nil
}

func (m *memStore) Delete(_ context.Context, username string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if err := m.failing("Delete"); err != nil {
		return err
	}
	if _, ok := m.users[username]; !ok {
		return domain.ErrNotFound
	}
	delete(m.users, username)
	return nil
}

func (m *memStore) get(username string) (domain.User, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	u, ok := m.users[username]
	return u, ok
}

func (m *memStore) count() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.users)
}
