package store

import (
	"context"
	"errors"
	"time"

	"github.com/Harshil230205/e-book-backend/pkg/domain"
)

// ErrDuplicateEmail is returned by SaveUser when the email is already taken.
var ErrDuplicateEmail = errors.New("email already registered")

// BookSort selects the listing order.
type BookSort int

const (
	// SortNewest orders by creation time, newest first.
	SortNewest BookSort = iota
	// SortYearDesc orders by publish year, latest first.
	SortYearDesc
	// SortYearAsc orders by publish year, oldest first.
	SortYearAsc
)

// BookQuery narrows and pages a book listing. Zero-valued fields match all.
type BookQuery struct {
	OwnerID     string
	Status      domain.ApprovalStatus
	Text        string // case-insensitive substring of title or uploader name
	Category    string // case-insensitive substring
	PublishYear int
	Sort        BookSort
	Offset      int
	Limit       int // 0 disables paging
}

// Store defines persistence operations for users and books.
type Store interface {
	// users
	SaveUser(ctx context.Context, u domain.User) error
	GetUserByEmail(ctx context.Context, email string) (domain.User, bool, error)
	GetUserByID(ctx context.Context, id string) (domain.User, bool, error)
	ListUsers(ctx context.Context, offset, limit int) ([]domain.User, int64, error)
	ListUsersByIDs(ctx context.Context, ids []string) ([]domain.User, error)

	// books
	SaveBook(ctx context.Context, b domain.Book) error
	GetBook(ctx context.Context, id string) (domain.Book, bool, error)
	ListBooks(ctx context.Context, q BookQuery) ([]domain.Book, int64, error)
	ApproveBook(ctx context.Context, id string, at time.Time) (bool, error)
	DeleteBook(ctx context.Context, id string) (bool, error)

	Ping(ctx context.Context) error
	Close(ctx context.Context) error
}
