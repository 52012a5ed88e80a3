package library

import (
	"context"
	"errors"
	"testing"
)

type recordingStore struct {
	Store
	calls int
}

func (r *recordingStore) ListBooks(ctx context.Context, skip, limit int) ([]Book, error) {
	r.calls++
	return []Book{}, nil
}

func (r *recordingStore) CreateBook(ctx context.Context, in BookInput) (Book, error) {
	r.calls++
	return Book{ID: 1, Title: in.Title, Author: in.Author}, nil
}

func (r *recordingStore) AddToShelf(ctx context.Context, userID int64, in ShelfInput) (UserBook, error) {
	r.calls++
	return UserBook{ID: 1, UserID: userID, BookID: in.BookID, Status: in.Status, Rating: in.Rating}, nil
}

func (r *recordingStore) UpdateShelf(ctx context.Context, userID, entryID int64, upd ShelfUpdate) (UserBook, error) {
	r.calls++
	return UserBook{ID: entryID, UserID: userID, Status: upd.Status, Rating: upd.Rating}, nil
}

func intPtr(v int) *int { return &v }

func TestListBooksBounds(t *testing.T) {
	store := &recordingStore{}
	svc := NewService(store)
	ctx := context.Background()

	for _, tc := range []struct{ skip, limit int }{{-1, 10}, {0, 0}, {0, MaxLimit + 1}} {
		if _, err := svc.ListBooks(ctx, tc.skip, tc.limit); !errors.Is(err, ErrInvalidInput) {
			t.Fatalf("skip=%d limit=%d: expected ErrInvalidInput, got %v", tc.skip, tc.limit, err)
		}
	}
	if store.calls != 0 {
		t.Fatalf("invalid requests must not reach the store")
	}
	if _, err := svc.ListBooks(ctx, 0, MaxLimit); err != nil {
		t.Fatalf("ListBooks: %v", err)
	}
}

func TestCreateBookTrimsAndRequiresFields(t *testing.T) {
	svc := NewService(&recordingStore{})
	ctx := context.Background()

	if _, err := svc.CreateBook(ctx, BookInput{Title: "  ", Author: "X"}); !errors.Is(err, ErrInvalidInput) {
		t.Fatalf("expected ErrInvalidInput, got %v", err)
	}
	b, err := svc.CreateBook(ctx, BookInput{Title: " Dune ", Author: " Herbert "})
	if err != nil {
		t.Fatalf("CreateBook: %v", err)
	}
	if b.Title != "Dune" || b.Author != "Herbert" {
		t.Fatalf("expected trimmed fields, got %+v", b)
	}
}

func TestShelfEntryValidation(t *testing.T) {
	svc := NewService(&recordingStore{})
	ctx := context.Background()

	bad := []ShelfInput{
		{BookID: 0, Status: StatusRead},
		{BookID: 1, Status: "reading"},
		{BookID: 1, Status: StatusRead, Rating: intPtr(0)},
		{BookID: 1, Status: StatusRead, Rating: intPtr(6)},
	}
	for _, in := range bad {
		if _, err := svc.AddToShelf(ctx, 1, in); !errors.Is(err, ErrInvalidInput) {
			t.Fatalf("%+v: expected ErrInvalidInput, got %v", in, err)
		}
	}
	if _, err := svc.AddToShelf(ctx, 1, ShelfInput{BookID: 1, Status: StatusPlanned}); err != nil {
		t.Fatalf("AddToShelf: %v", err)
	}
	if _, err := svc.UpdateShelf(ctx, 1, 0, ShelfUpdate{Status: StatusRead}); !errors.Is(err, ErrNotFound) {
		t.Fatalf("expected ErrNotFound for non-positive id, got %v", err)
	}
	if _, err := svc.UpdateShelf(ctx, 1, 3, ShelfUpdate{Status: StatusRead, Rating: intPtr(5)}); err != nil {
		t.Fatalf("UpdateShelf: %v", err)
	}
}

func TestAverageRating(t *testing.T) {
	if got := AverageRating(nil); got != nil {
		t.Fatalf("expected nil, got %v", *got)
	}
	if got := AverageRating([]*int{nil, nil}); got != nil {
		t.Fatalf("expected nil for unrated entries, got %v", *got)
	}
	got := AverageRating([]*int{intPtr(3), nil, intPtr(4)})
	if got == nil || *got != 3.5 {
		t.Fatalf("unexpected average: %v", got)
	}
}
