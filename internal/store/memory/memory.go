// Package memory keeps users, books and shelves in process memory. It backs
// the service when no database is configured and serves as the test store.
package memory

import (
	"context"
	"sort"
	"sync"
	"time"

	"bookshelf.org/internal/auth"
	"bookshelf.org/internal/library"
)

// Store implements auth.UserStore and library.Store with in-process
// concurrency safety. Uniqueness checks and inserts happen under one lock.
type Store struct {
	mu sync.RWMutex

	users       map[int64]*auth.User
	byUsername  map[string]int64
	byEmail     map[string]int64
	books       map[int64]*library.Book
	entries     map[int64]*library.UserBook
	nextUserID  int64
	nextBookID  int64
	nextEntryID int64
}

var (
	_ auth.UserStore = (*Store)(nil)
	_ library.Store  = (*Store)(nil)
)

func New() *Store {
	return &Store{
		users:      make(map[int64]*auth.User),
		byUsername: make(map[string]int64),
		byEmail:    make(map[string]int64),
		books:      make(map[int64]*library.Book),
		entries:    make(map[int64]*library.UserBook),
	}
}

// Users -------------------------------------------------------------------

func (s *Store) FindByUsername(ctx context.Context, username string) (*auth.User, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	id, ok := s.byUsername[username]
	if !ok {
		return nil, auth.ErrNotFound
	}
	u := *s.users[id]
	return &u, nil
}

func (s *Store) FindByEmail(ctx context.Context, email string) (*auth.User, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	id, ok := s.byEmail[email]
	if !ok {
		return nil, auth.ErrNotFound
	}
	u := *s.users[id]
	return &u, nil
}

func (s *Store) Create(ctx context.Context, u *auth.User) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.byUsername[u.Username]; ok {
		return auth.ErrUsernameTaken
	}
	if _, ok := s.byEmail[u.Email]; ok {
		return auth.ErrEmailTaken
	}
	s.nextUserID++
	u.ID = s.nextUserID
	u.CreatedAt = time.Now().UTC()
	stored := *u
	s.users[u.ID] = &stored
	s.byUsername[u.Username] = u.ID
	s.byEmail[u.Email] = u.ID
	return nil
}

// DeleteUser removes a user and its shelf. There is no API for it; it exists
// for administrative tooling and tests.
func (s *Store) DeleteUser(ctx context.Context, username string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	id, ok := s.byUsername[username]
	if !ok {
		return auth.ErrNotFound
	}
	u := s.users[id]
	delete(s.users, id)
	delete(s.byUsername, u.Username)
	delete(s.byEmail, u.Email)
	for eid, e := range s.entries {
		if e.UserID == id {
			delete(s.entries, eid)
		}
	}
	return nil
}

// Books -------------------------------------------------------------------

func (s *Store) ListBooks(ctx context.Context, skip, limit int) ([]library.Book, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	ids := make([]int64, 0, len(s.books))
	for id := range s.books {
		ids = append(ids, id)
	}
	sort.Slice(ids, func(i, j int) bool { return ids[i] < ids[j] })

	if skip >= len(ids) {
		return []library.Book{}, nil
	}
	ids = ids[skip:]
	if limit < len(ids) {
		ids = ids[:limit]
	}
	out := make([]library.Book, 0, len(ids))
	for _, id := range ids {
		out = append(out, s.bookLocked(id))
	}
	return out, nil
}

func (s *Store) CreateBook(ctx context.Context, in library.BookInput) (library.Book, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.nextBookID++
	b := &library.Book{
		ID:          s.nextBookID,
		Title:       in.Title,
		Author:      in.Author,
		Year:        in.Year,
		Description: in.Description,
	}
	s.books[b.ID] = b
	return *b, nil
}

func (s *Store) GetBook(ctx context.Context, id int64) (library.Book, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if _, ok := s.books[id]; !ok {
		return library.Book{}, library.ErrNotFound
	}
	return s.bookLocked(id), nil
}

func (s *Store) CountBooks(ctx context.Context) (int, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.books), nil
}

// bookLocked returns a copy of the book with its average rating filled in.
func (s *Store) bookLocked(id int64) library.Book {
	b := *s.books[id]
	var ratings []*int
	for _, e := range s.entries {
		if e.BookID == id {
			ratings = append(ratings, e.Rating)
		}
	}
	b.AverageRating = library.AverageRating(ratings)
	return b
}

// Shelves -----------------------------------------------------------------

func (s *Store) ListShelf(ctx context.Context, userID int64) ([]library.UserBook, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := []library.UserBook{}
	for _, e := range s.entries {
		if e.UserID == userID {
			out = append(out, copyEntry(e))
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out, nil
}

func (s *Store) AddToShelf(ctx context.Context, userID int64, in library.ShelfInput) (library.UserBook, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.users[userID]; !ok {
		return library.UserBook{}, library.ErrNotFound
	}
	if _, ok := s.books[in.BookID]; !ok {
		return library.UserBook{}, library.ErrNotFound
	}
	for _, e := range s.entries {
		if e.UserID == userID && e.BookID == in.BookID {
			return library.UserBook{}, library.ErrAlreadyListed
		}
	}
	s.nextEntryID++
	e := &library.UserBook{
		ID:     s.nextEntryID,
		UserID: userID,
		BookID: in.BookID,
		Status: in.Status,
		Rating: copyInt(in.Rating),
	}
	s.entries[e.ID] = e
	return copyEntry(e), nil
}

func (s *Store) UpdateShelf(ctx context.Context, userID, entryID int64, upd library.ShelfUpdate) (library.UserBook, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	e, ok := s.entries[entryID]
	if !ok || e.UserID != userID {
		return library.UserBook{}, library.ErrNotFound
	}
	e.Status = upd.Status
	e.Rating = copyInt(upd.Rating)
	return copyEntry(e), nil
}

func (s *Store) RemoveFromShelf(ctx context.Context, userID, entryID int64) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	e, ok := s.entries[entryID]
	if !ok || e.UserID != userID {
		return library.ErrNotFound
	}
	delete(s.entries, entryID)
	return nil
}

func copyEntry(e *library.UserBook) library.UserBook {
	out := *e
	out.Rating = copyInt(e.Rating)
	return out
}

func copyInt(v *int) *int {
	if v == nil {
		return nil
	}
	c := *v
	return &c
}
