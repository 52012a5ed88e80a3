package initdb

import (
	"context"
	"errors"
	"fmt"

	"bookshelf.org/internal/auth"
	"bookshelf.org/internal/library"
)

type seedUser struct {
	username, email, password string
}

type seedEntry struct {
	user   int // index into defaultUsers
	book   int // index into defaultBooks
	status string
	rating int // 0 means unrated
}

var defaultUsers = []seedUser{
	{"user", "user@example.com", "password"},
	{"admin", "admin@example.com", "password123"},
}

var defaultBooks = []library.BookInput{
	book("The Great Gatsby", "F. Scott Fitzgerald", 1925, "Book 1"),
	book("To Kill a Mockingbird", "Harper Lee", 1960, "Book 2"),
	book("1984", "George Orwell", 1949, "A long description of book 3"),
	book("Pride and Prejudice", "Jane Austen", 1813, "Book 4"),
	book("The Hobbit", "J. R. R. Tolkien", 1937, "Book 5"),
}

var defaultEntries = []seedEntry{
	{0, 0, library.StatusRead, 3},
	{0, 1, library.StatusRead, 4},
	{0, 2, library.StatusPlanned, 0},
	{0, 4, library.StatusRead, 5},
	{1, 0, library.StatusRead, 4},
	{1, 3, library.StatusRead, 2},
	{1, 1, library.StatusPlanned, 0},
	{1, 4, library.StatusRead, 5},
}

func book(title, author string, year int, desc string) library.BookInput {
	return library.BookInput{Title: title, Author: author, Year: &year, Description: &desc}
}

// Result reports what Seed inserted.
type Result struct {
	Skipped bool
	Users   int
	Books   int
	Entries int
}

// Transactor is implemented by stores that can apply a group of writes
// atomically.
type Transactor interface {
	WithinTx(ctx context.Context, fn func(auth.UserStore, library.Store) error) error
}

// Seed loads the default users, books and shelf entries when the catalog is
// empty. A non-empty catalog means seeding already happened and nothing is
// written. When books implements Transactor every insert happens in one
// transaction, so a failed run leaves the catalog empty and can be retried.
func Seed(ctx context.Context, users auth.UserStore, books library.Store, hasher *auth.Hasher) (Result, error) {
	n, err := books.CountBooks(ctx)
	if err != nil {
		return Result{}, err
	}
	if n > 0 {
		return Result{Skipped: true}, nil
	}

	tx, ok := books.(Transactor)
	if !ok {
		return seed(ctx, users, books, hasher)
	}
	var res Result
	err = tx.WithinTx(ctx, func(u auth.UserStore, b library.Store) error {
		var err error
		res, err = seed(ctx, u, b, hasher)
		return err
	})
	if err != nil {
		return Result{}, err
	}
	return res, nil
}

func seed(ctx context.Context, users auth.UserStore, books library.Store, hasher *auth.Hasher) (Result, error) {
	var res Result
	userIDs := make([]int64, len(defaultUsers))
	for i, su := range defaultUsers {
		id, created, err := ensureUser(ctx, users, hasher, su)
		if err != nil {
			return res, err
		}
		userIDs[i] = id
		if created {
			res.Users++
		}
	}

	bookIDs := make([]int64, len(defaultBooks))
	for i, in := range defaultBooks {
		b, err := books.CreateBook(ctx, in)
		if err != nil {
			return res, fmt.Errorf("seed book %q: %w", in.Title, err)
		}
		bookIDs[i] = b.ID
		res.Books++
	}

	for _, se := range defaultEntries {
		in := library.ShelfInput{BookID: bookIDs[se.book], Status: se.status}
		if se.rating > 0 {
			r := se.rating
			in.Rating = &r
		}
		if _, err := books.AddToShelf(ctx, userIDs[se.user], in); err != nil {
			if errors.Is(err, library.ErrAlreadyListed) {
				continue
			}
			return res, fmt.Errorf("seed shelf entry: %w", err)
		}
		res.Entries++
	}
	return res, nil
}

func ensureUser(ctx context.Context, users auth.UserStore, hasher *auth.Hasher, su seedUser) (int64, bool, error) {
	if existing, err := users.FindByUsername(ctx, su.username); err == nil {
		return existing.ID, false, nil
	} else if !errors.Is(err, auth.ErrNotFound) {
		return 0, false, err
	}

	hash, err := hasher.Hash(su.password)
	if err != nil {
		return 0, false, err
	}
	u := &auth.User{Username: su.username, Email: su.email, PasswordHash: hash}
	if err := users.Create(ctx, u); err != nil {
		if errors.Is(err, auth.ErrUsernameTaken) {
			existing, ferr := users.FindByUsername(ctx, su.username)
			if ferr != nil {
				return 0, false, ferr
			}
			return existing.ID, false, nil
		}
		return 0, false, fmt.Errorf("seed user %q: %w", su.username, err)
	}
	return u.ID, true, nil
}
