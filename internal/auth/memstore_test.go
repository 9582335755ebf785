package auth

import (
	"context"
	"sync"
	"time"
)

// memStore is an in-memory stand-in for Repository used across the
// package tests. It implements Store, LockoutStore and SessionStore.
type memStore struct {
	mu       sync.Mutex
	nextID   int64
	users    map[int64]User
	lockouts map[string]LockoutRecord
	sessions map[string]Session
}

func newMemStore() *memStore {
	return &memStore{
		users:    make(map[int64]User),
		lockouts: make(map[string]LockoutRecord),
		sessions: make(map[string]Session),
	}
}

func (m *memStore) GetByEmail(_ context.Context, email string) (User, bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, user := range m.users {
		if user.Email == email {
			return user, true, nil
		}
	}
	return User{}, false, nil
}

func (m *memStore) GetByID(_ context.Context, id int64) (User, bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	user, ok := m.users[id]
	return user, ok, nil
}

func (m *memStore) EmailExists(_ context.Context, email string) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, user := range m.users {
		if user.Email == email {
			return true, nil
		}
	}
	return false, nil
}

func (m *memStore) UsernameExists(_ context.Context, username string) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, user := range m.users {
		if user.Username == username {
			return true, nil
		}
	}
	return false, nil
}

func (m *memStore) CreateUser(_ context.Context, username, email, passwordHash string, now time.Time) (int64, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.nextID++
	m.users[m.nextID] = User{
		ID:           m.nextID,
		Username:     username,
		Email:        email,
		PasswordHash: passwordHash,
		CreatedAt:    now,
		UpdatedAt:    now,
	}
	return m.nextID, nil
}

func (m *memStore) UpdateUser(_ context.Context, id int64, fields map[string]string, now time.Time) (int64, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	user, ok := m.users[id]
	if !ok {
		return 0, nil
	}
	if v, ok := fields["username"]; ok {
		user.Username = v
	}
	if v, ok := fields["email"]; ok {
		user.Email = v
	}
	if v, ok := fields["password_hash"]; ok {
		user.PasswordHash = v
	}
	user.UpdatedAt = now
	m.users[id] = user
	return 1, nil
}

func (m *memStore) GetLockout(_ context.Context, key string) (LockoutRecord, bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	record, ok := m.lockouts[key]
	return record, ok, nil
}

func (m *memStore) PutLockout(_ context.Context, record LockoutRecord) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.lockouts[record.Key] = record
	return nil
}

func (m *memStore) DeleteLockout(_ context.Context, key string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.lockouts, key)
	return nil
}

func (m *memStore) GetSession(_ context.Context, id string) (Session, bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	session, ok := m.sessions[id]
	return session, ok, nil
}

func (m *memStore) PutSession(_ context.Context, session Session) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.sessions[session.ID] = session
	return nil
}

func (m *memStore) TouchSession(_ context.Context, id string, at time.Time) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	session, ok := m.sessions[id]
	if !ok || session.LoginAt.After(at) {
		return nil
	}
	session.LoginAt = at
	m.sessions[id] = session
	return nil
}

func (m *memStore) DeleteSession(_ context.Context, id string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.sessions, id)
	return nil
}

// fakeClock is a settable clock shared between a test and the code
// under test.
type fakeClock struct {
	mu sync.Mutex
	at time.Time
}

func newFakeClock(at time.Time) *fakeClock {
	return &fakeClock{at: at}
}

func (c *fakeClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.at
}

func (c *fakeClock) Advance(d time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.at = c.at.Add(d)
}
