package pg

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"bookshelf.org/internal/library"
)

const shelfColumns = `id, user_id, book_id, status, rating`

func (s *Store) ListShelf(ctx context.Context, userID int64) ([]library.UserBook, error) {
	rows, err := s.q.QueryContext(ctx,
		`select `+shelfColumns+` from user_books where user_id = $1 order by id`, userID)
	if err != nil {
		return nil, fmt.Errorf("list shelf: %w", err)
	}
	defer rows.Close()

	entries := []library.UserBook{}
	for rows.Next() {
		e, err := scanEntry(rows)
		if err != nil {
			return nil, err
		}
		entries = append(entries, e)
	}
	return entries, rows.Err()
}

func (s *Store) AddToShelf(ctx context.Context, userID int64, in library.ShelfInput) (library.UserBook, error) {
	row := s.q.QueryRowContext(ctx,
		`insert into user_books (user_id, book_id, status, rating) values ($1, $2, $3, $4) returning `+shelfColumns,
		userID, in.BookID, in.Status, nullableInt(in.Rating),
	)
	e, err := scanEntry(row)
	if err != nil {
		if pgErr, ok := maybePgError(err); ok {
			switch pgErr.Code {
			case pgErrForeignKeyViolation:
				return library.UserBook{}, library.ErrNotFound
			case pgErrUniqueViolation:
				return library.UserBook{}, library.ErrAlreadyListed
			}
		}
		return library.UserBook{}, fmt.Errorf("insert shelf entry: %w", err)
	}
	return e, nil
}

func (s *Store) UpdateShelf(ctx context.Context, userID, entryID int64, upd library.ShelfUpdate) (library.UserBook, error) {
	row := s.q.QueryRowContext(ctx,
		`update user_books set status = $1, rating = $2 where id = $3 and user_id = $4 returning `+shelfColumns,
		upd.Status, nullableInt(upd.Rating), entryID, userID,
	)
	e, err := scanEntry(row)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return library.UserBook{}, library.ErrNotFound
		}
		return library.UserBook{}, fmt.Errorf("update shelf entry: %w", err)
	}
	return e, nil
}

func (s *Store) RemoveFromShelf(ctx context.Context, userID, entryID int64) error {
	res, err := s.q.ExecContext(ctx, `delete from user_books where id = $1 and user_id = $2`, entryID, userID)
	if err != nil {
		return fmt.Errorf("delete shelf entry: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if n == 0 {
		return library.ErrNotFound
	}
	return nil
}

func scanEntry(row scanner) (library.UserBook, error) {
	var (
		e      library.UserBook
		rating sql.NullInt64
	)
	if err := row.Scan(&e.ID, &e.UserID, &e.BookID, &e.Status, &rating); err != nil {
		return library.UserBook{}, err
	}
	e.Rating = intFromNull(rating)
	return e, nil
}
