package auth

import (
	"context"
	"sync"
	"time"
)

type fakeUsers struct {
	mu     sync.Mutex
	byName map[string]*User
	nextID int64
	err    error
}

func newFakeUsers() *fakeUsers {
	return &fakeUsers{byName: make(map[string]*User)}
}

func (f *fakeUsers) FindByUsername(ctx context.Context, username string) (*User, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.err != nil {
		return nil, f.err
	}
	u, ok := f.byName[username]
	if !ok {
		return nil, ErrNotFound
	}
	cp := *u
	return &cp, nil
}

func (f *fakeUsers) FindByEmail(ctx context.Context, email string) (*User, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.err != nil {
		return nil, f.err
	}
	for _, u := range f.byName {
		if u.Email == email {
			cp := *u
			return &cp, nil
		}
	}
	return nil, ErrNotFound
}

func (f *fakeUsers) Create(ctx context.Context, u *User) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.err != nil {
		return f.err
	}
	if _, ok := f.byName[u.Username]; ok {
		return ErrUsernameTaken
	}
	for _, existing := range f.byName {
		if existing.Email == u.Email {
			return ErrEmailTaken
		}
	}
	f.nextID++
	u.ID = f.nextID
	u.CreatedAt = time.Now().UTC()
	cp := *u
	f.byName[u.Username] = &cp
	return nil
}

func (f *fakeUsers) delete(username string) {
	f.mu.Lock()
	defer f.mu.Unlock()
	delete(f.byName, username)
}
