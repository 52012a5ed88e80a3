package library

import "errors"

// Reading status of a book on a user's shelf.
const (
	StatusRead    = "read"
	StatusPlanned = "planned"
)

const (
	MinRating = 1
	MaxRating = 5
)

// Book is an entry of the shared catalog.
type Book struct {
	ID            int64    `json:"id"`
	Title         string   `json:"title"`
	Author        string   `json:"author"`
	Year          *int     `json:"year"`
	Description   *string  `json:"description"`
	AverageRating *float64 `json:"average_rating"`
}

// BookInput carries the fields of a new catalog entry.
type BookInput struct {
	Title       string
	Author      string
	Year        *int
	Description *string
}

// UserBook places a catalog book on one user's shelf.
type UserBook struct {
	ID     int64  `json:"id"`
	UserID int64  `json:"user_id"`
	BookID int64  `json:"book_id"`
	Status string `json:"status"`
	Rating *int   `json:"rating"`
}

// ShelfInput adds a book to a shelf.
type ShelfInput struct {
	BookID int64
	Status string
	Rating *int
}

// ShelfUpdate replaces status and rating of a shelf entry.
type ShelfUpdate struct {
	Status string
	Rating *int
}

var (
	ErrNotFound      = errors.New("not found")
	ErrAlreadyListed = errors.New("book is already on the list")
	ErrInvalidInput  = errors.New("invalid input")
)
