package library

import (
	"context"
	"fmt"
	"strings"
)

const (
	DefaultLimit = 100
	MaxLimit     = 1000
)

// Store persists the catalog and per-user shelves.
//
// Shelf operations are always scoped to userID: an entry owned by another
// user is reported as ErrNotFound.
type Store interface {
	ListBooks(ctx context.Context, skip, limit int) ([]Book, error)
	CreateBook(ctx context.Context, in BookInput) (Book, error)
	GetBook(ctx context.Context, id int64) (Book, error)
	CountBooks(ctx context.Context) (int, error)

	ListShelf(ctx context.Context, userID int64) ([]UserBook, error)
	AddToShelf(ctx context.Context, userID int64, in ShelfInput) (UserBook, error)
	UpdateShelf(ctx context.Context, userID, entryID int64, upd ShelfUpdate) (UserBook, error)
	RemoveFromShelf(ctx context.Context, userID, entryID int64) error
}

// Service validates requests and delegates to a Store.
type Service struct {
	store Store
}

func NewService(store Store) *Service {
	return &Service{store: store}
}

func (s *Service) ListBooks(ctx context.Context, skip, limit int) ([]Book, error) {
	if skip < 0 {
		return nil, fmt.Errorf("%w: skip must be >= 0", ErrInvalidInput)
	}
	if limit < 1 || limit > MaxLimit {
		return nil, fmt.Errorf("%w: limit must be between 1 and %d", ErrInvalidInput, MaxLimit)
	}
	return s.store.ListBooks(ctx, skip, limit)
}

func (s *Service) CreateBook(ctx context.Context, in BookInput) (Book, error) {
	in.Title = strings.TrimSpace(in.Title)
	in.Author = strings.TrimSpace(in.Author)
	if in.Title == "" || in.Author == "" {
		return Book{}, fmt.Errorf("%w: title and author are required", ErrInvalidInput)
	}
	return s.store.CreateBook(ctx, in)
}

func (s *Service) GetBook(ctx context.Context, id int64) (Book, error) {
	if id <= 0 {
		return Book{}, ErrNotFound
	}
	return s.store.GetBook(ctx, id)
}

func (s *Service) Shelf(ctx context.Context, userID int64) ([]UserBook, error) {
	return s.store.ListShelf(ctx, userID)
}

func (s *Service) AddToShelf(ctx context.Context, userID int64, in ShelfInput) (UserBook, error) {
	if in.BookID <= 0 {
		return UserBook{}, fmt.Errorf("%w: book_id must be positive", ErrInvalidInput)
	}
	if err := validateEntry(in.Status, in.Rating); err != nil {
		return UserBook{}, err
	}
	return s.store.AddToShelf(ctx, userID, in)
}

func (s *Service) UpdateShelf(ctx context.Context, userID, entryID int64, upd ShelfUpdate) (UserBook, error) {
	if entryID <= 0 {
		return UserBook{}, ErrNotFound
	}
	if err := validateEntry(upd.Status, upd.Rating); err != nil {
		return UserBook{}, err
	}
	return s.store.UpdateShelf(ctx, userID, entryID, upd)
}

func (s *Service) RemoveFromShelf(ctx context.Context, userID, entryID int64) error {
	if entryID <= 0 {
		return ErrNotFound
	}
	return s.store.RemoveFromShelf(ctx, userID, entryID)
}

func validateEntry(status string, rating *int) error {
	switch status {
	case StatusRead, StatusPlanned:
	default:
		return fmt.Errorf("%w: status must be %q or %q", ErrInvalidInput, StatusRead, StatusPlanned)
	}
	if rating != nil && (*rating < MinRating || *rating > MaxRating) {
		return fmt.Errorf("%w: rating must be between %d and %d", ErrInvalidInput, MinRating, MaxRating)
	}
	return nil
}

// AverageRating returns the mean of the non-nil ratings, or nil when there are none.
func AverageRating(ratings []*int) *float64 {
	var sum, n int
	for _, r := range ratings {
		if r == nil {
			continue
		}
		sum += *r
		n++
	}
	if n == 0 {
		return nil
	}
	avg := float64(sum) / float64(n)
	return &avg
}
