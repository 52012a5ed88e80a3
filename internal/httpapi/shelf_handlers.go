package httpapi

import (
	"net/http"
	"strings"

	"bookshelf.org/internal/audit"
	"bookshelf.org/internal/library"
)

type addShelfRequest struct {
	BookID int64  `json:"book_id" validate:"required,gt=0"`
	Status string `json:"status" validate:"required,oneof=read planned"`
	Rating *int   `json:"rating" validate:"omitempty,gte=1,lte=5"`
}

type updateShelfRequest struct {
	Status string `json:"status" validate:"required,oneof=read planned"`
	Rating *int   `json:"rating" validate:"omitempty,gte=1,lte=5"`
}

func (a *API) handleShelfCollection(w http.ResponseWriter, r *http.Request) {
	user, ok := currentUser(r)
	if !ok {
		unauthorized(w, r)
		return
	}

	switch r.Method {
	case http.MethodGet:
		entries, err := a.library.Shelf(r.Context(), user.ID)
		if err != nil {
			handleLibraryError(w, r, err, "entry not found")
			return
		}
		writeJSON(w, http.StatusOK, entries)
	case http.MethodPost:
		a.addToShelf(w, r, user.ID)
	default:
		methodNotAllowed(w, r, http.MethodGet, http.MethodPost)
	}
}

func (a *API) handleShelfResource(w http.ResponseWriter, r *http.Request) {
	user, ok := currentUser(r)
	if !ok {
		unauthorized(w, r)
		return
	}

	raw := strings.TrimPrefix(r.URL.Path, "/account/books/")
	if raw == "" {
		a.handleShelfCollection(w, r)
		return
	}
	entryID, ok := parseID(raw)
	if !ok {
		writeError(w, r, http.StatusNotFound, "entry not found")
		return
	}

	switch r.Method {
	case http.MethodPut, http.MethodPatch:
		a.updateShelf(w, r, user.ID, entryID)
	case http.MethodDelete:
		if err := a.library.RemoveFromShelf(r.Context(), user.ID, entryID); err != nil {
			handleLibraryError(w, r, err, "entry not found")
			return
		}
		_ = audit.LogEvent(r.Context(), audit.ShelfBookRemoved, map[string]any{"entry_id": entryID})
		w.WriteHeader(http.StatusNoContent)
	default:
		methodNotAllowed(w, r, http.MethodPut, http.MethodPatch, http.MethodDelete)
	}
}

func (a *API) addToShelf(w http.ResponseWriter, r *http.Request, userID int64) {
	var req addShelfRequest
	if err := decodeJSON(w, r, &req); err != nil {
		writeError(w, r, http.StatusBadRequest, err.Error())
		return
	}
	if err := validateRequest(req); err != nil {
		writeError(w, r, http.StatusBadRequest, err.Error())
		return
	}

	entry, err := a.library.AddToShelf(r.Context(), userID, library.ShelfInput{
		BookID: req.BookID,
		Status: req.Status,
		Rating: req.Rating,
	})
	if err != nil {
		handleLibraryError(w, r, err, "book not found")
		return
	}
	_ = audit.LogEvent(r.Context(), audit.ShelfBookAdded, map[string]any{
		"entry_id": entry.ID,
		"book_id":  entry.BookID,
		"status":   entry.Status,
	})
	writeJSON(w, http.StatusOK, entry)
}

func (a *API) updateShelf(w http.ResponseWriter, r *http.Request, userID, entryID int64) {
	var req updateShelfRequest
	if err := decodeJSON(w, r, &req); err != nil {
		writeError(w, r, http.StatusBadRequest, err.Error())
		return
	}
	if err := validateRequest(req); err != nil {
		writeError(w, r, http.StatusBadRequest, err.Error())
		return
	}

	entry, err := a.library.UpdateShelf(r.Context(), userID, entryID, library.ShelfUpdate{
		Status: req.Status,
		Rating: req.Rating,
	})
	if err != nil {
		handleLibraryError(w, r, err, "entry not found")
		return
	}
	_ = audit.LogEvent(r.Context(), audit.ShelfBookUpdated, map[string]any{
		"entry_id": entry.ID,
		"status":   entry.Status,
	})
	writeJSON(w, http.StatusOK, entry)
}
