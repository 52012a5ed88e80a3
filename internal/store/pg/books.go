package pg

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"bookshelf.org/internal/library"
)

const bookSelect = `
	select b.id, b.title, b.author, b.year, b.description, avg(ub.rating)::float8
	from books b
	left join user_books ub on ub.book_id = b.id`

func (s *Store) ListBooks(ctx context.Context, skip, limit int) ([]library.Book, error) {
	rows, err := s.q.QueryContext(ctx, bookSelect+`
		group by b.id
		order by b.id
		offset $1 limit $2`, skip, limit)
	if err != nil {
		return nil, fmt.Errorf("list books: %w", err)
	}
	defer rows.Close()

	books := []library.Book{}
	for rows.Next() {
		b, err := scanBook(rows)
		if err != nil {
			return nil, err
		}
		books = append(books, b)
	}
	return books, rows.Err()
}

func (s *Store) GetBook(ctx context.Context, id int64) (library.Book, error) {
	row := s.q.QueryRowContext(ctx, bookSelect+`
		where b.id = $1
		group by b.id`, id)
	b, err := scanBook(row)
	if errors.Is(err, sql.ErrNoRows) {
		return library.Book{}, library.ErrNotFound
	}
	return b, err
}

func (s *Store) CreateBook(ctx context.Context, in library.BookInput) (library.Book, error) {
	b := library.Book{
		Title:       in.Title,
		Author:      in.Author,
		Year:        in.Year,
		Description: in.Description,
	}
	err := s.q.QueryRowContext(ctx,
		`insert into books (title, author, year, description) values ($1, $2, $3, $4) returning id`,
		in.Title, in.Author, nullableInt(in.Year), nullableString(in.Description),
	).Scan(&b.ID)
	if err != nil {
		return library.Book{}, fmt.Errorf("insert book: %w", err)
	}
	return b, nil
}

func (s *Store) CountBooks(ctx context.Context) (int, error) {
	var n int
	if err := s.q.QueryRowContext(ctx, `select count(*) from books`).Scan(&n); err != nil {
		return 0, fmt.Errorf("count books: %w", err)
	}
	return n, nil
}

type scanner interface {
	Scan(dest ...any) error
}

func scanBook(row scanner) (library.Book, error) {
	var (
		b    library.Book
		year sql.NullInt64
		desc sql.NullString
		avg  sql.NullFloat64
	)
	if err := row.Scan(&b.ID, &b.Title, &b.Author, &year, &desc, &avg); err != nil {
		return library.Book{}, err
	}
	b.Year = intFromNull(year)
	b.Description = stringFromNull(desc)
	b.AverageRating = floatFromNull(avg)
	return b, nil
}
