package httpapi

import (
	"errors"
	"math"
	"net/http"
	"strings"

	"bookshelf.org/internal/audit"
	"bookshelf.org/internal/library"
)

type createBookRequest struct {
	Title       string  `json:"title" validate:"required,max=500"`
	Author      string  `json:"author" validate:"required,max=200"`
	Year        *int    `json:"year" validate:"omitempty,gte=-3000,lte=3000"`
	Description *string `json:"description"`
}

func (a *API) handleBooksCollection(w http.ResponseWriter, r *http.Request) {
	switch r.Method {
	case http.MethodGet:
		a.listBooks(w, r)
	case http.MethodPost:
		a.createBook(w, r)
	default:
		methodNotAllowed(w, r, http.MethodGet, http.MethodPost)
	}
}

func (a *API) handleBookResource(w http.ResponseWriter, r *http.Request) {
	raw := strings.TrimPrefix(r.URL.Path, "/books/")
	if raw == "" {
		a.handleBooksCollection(w, r)
		return
	}
	id, ok := parseID(raw)
	if !ok {
		writeError(w, r, http.StatusNotFound, "book not found")
		return
	}
	if r.Method != http.MethodGet {
		methodNotAllowed(w, r, http.MethodGet)
		return
	}

	book, err := a.library.GetBook(r.Context(), id)
	if err != nil {
		handleLibraryError(w, r, err, "book not found")
		return
	}
	writeJSON(w, http.StatusOK, book)
}

func (a *API) listBooks(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	skip, err := parseIntParam(q.Get("skip"), "skip", 0, 0, math.MaxInt32)
	if err != nil {
		writeError(w, r, http.StatusBadRequest, err.Error())
		return
	}
	limit, err := parseIntParam(q.Get("limit"), "limit", library.DefaultLimit, 1, library.MaxLimit)
	if err != nil {
		writeError(w, r, http.StatusBadRequest, err.Error())
		return
	}

	books, err := a.library.ListBooks(r.Context(), skip, limit)
	if err != nil {
		handleLibraryError(w, r, err, "book not found")
		return
	}
	writeJSON(w, http.StatusOK, books)
}

func (a *API) createBook(w http.ResponseWriter, r *http.Request) {
	var req createBookRequest
	if err := decodeJSON(w, r, &req); err != nil {
		writeError(w, r, http.StatusBadRequest, err.Error())
		return
	}
	if err := validateRequest(req); err != nil {
		writeError(w, r, http.StatusBadRequest, err.Error())
		return
	}

	book, err := a.library.CreateBook(r.Context(), library.BookInput{
		Title:       req.Title,
		Author:      req.Author,
		Year:        req.Year,
		Description: req.Description,
	})
	if err != nil {
		handleLibraryError(w, r, err, "book not found")
		return
	}
	_ = audit.LogEvent(r.Context(), audit.CatalogBookAdded, map[string]any{"book_id": book.ID})
	writeJSON(w, http.StatusOK, book)
}

// handleLibraryError maps library errors to responses. notFound is the
// message used for ErrNotFound.
func handleLibraryError(w http.ResponseWriter, r *http.Request, err error, notFound string) {
	switch {
	case errors.Is(err, library.ErrInvalidInput):
		writeError(w, r, http.StatusBadRequest, err.Error())
	case errors.Is(err, library.ErrNotFound):
		writeError(w, r, http.StatusNotFound, notFound)
	case errors.Is(err, library.ErrAlreadyListed):
		writeError(w, r, http.StatusConflict, err.Error())
	default:
		internalError(w, r, "library operation failed", err)
	}
}
