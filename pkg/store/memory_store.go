package store

import (
	"context"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/Harshil230205/e-book-backend/pkg/domain"
)

// MemoryStore keeps users and books in-process. It backs tests and local runs.
type MemoryStore struct {
	mu     sync.RWMutex
	users  map[string]domain.User // key: user ID
	email  map[string]string      // email -> user ID
	books  map[string]domain.Book
	orders []string
}

// NewMemoryStore initializes an empty in-memory store.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		users: make(map[string]domain.User),
		email: make(map[string]string),
		books: make(map[string]domain.Book),
	}
}

// SaveUser registers a user.
func (m *MemoryStore) SaveUser(_ context.Context, u domain.User) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, taken := m.email[u.Email]; taken {
		return ErrDuplicateEmail
	}
	m.users[u.ID] = u
	m.email[u.Email] = u.ID
	return nil
}

// GetUserByEmail looks up a user by email.
func (m *MemoryStore) GetUserByEmail(_ context.Context, email string) (domain.User, bool, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	if id, ok := m.email[email]; ok {
		u, exists := m.users[id]
		return u, exists, nil
	}
	return domain.User{}, false, nil
}

// GetUserByID returns a user by ID.
func (m *MemoryStore) GetUserByID(_ context.Context, id string) (domain.User, bool, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	u, ok := m.users[id]
	return u, ok, nil
}

// ListUsers returns a page of users ordered by creation time.
func (m *MemoryStore) ListUsers(_ context.Context, offset, limit int) ([]domain.User, int64, error) {
	m.mu.RLock()
	all := make([]domain.User, 0, len(m.users))
	for _, u := range m.users {
		u.PasswordHash = ""
		all = append(all, u)
	}
	m.mu.RUnlock()
	sort.Slice(all, func(i, j int) bool {
		if all[i].CreatedAt.Equal(all[j].CreatedAt) {
			return all[i].ID < all[j].ID
		}
		return all[i].CreatedAt.Before(all[j].CreatedAt)
	})
	return paginate(all, offset, limit), int64(len(all)), nil
}

// ListUsersByIDs returns the users matching ids.
func (m *MemoryStore) ListUsersByIDs(_ context.Context, ids []string) ([]domain.User, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	res := make([]domain.User, 0, len(ids))
	for _, id := range ids {
		if u, ok := m.users[id]; ok {
			res = append(res, u)
		}
	}
	return res, nil
}

// SaveBook stores a book record and tracks insertion order.
func (m *MemoryStore) SaveBook(_ context.Context, b domain.Book) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, exists := m.books[b.ID]; !exists {
		m.orders = append(m.orders, b.ID)
	}
	m.books[b.ID] = b
	return nil
}

// GetBook retrieves a book by ID.
func (m *MemoryStore) GetBook(_ context.Context, id string) (domain.Book, bool, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	b, ok := m.books[id]
	return b, ok, nil
}

// ListBooks filters, sorts and pages books the same way the database stores do.
func (m *MemoryStore) ListBooks(_ context.Context, q BookQuery) ([]domain.Book, int64, error) {
	m.mu.RLock()
	matched := make([]domain.Book, 0, len(m.orders))
	for _, id := range m.orders {
		if b, ok := m.books[id]; ok && matchesQuery(b, q) {
			matched = append(matched, b)
		}
	}
	m.mu.RUnlock()
	sort.SliceStable(matched, func(i, j int) bool {
		return lessBook(matched[i], matched[j], q.Sort)
	})
	return paginate(matched, q.Offset, q.Limit), int64(len(matched)), nil
}

// ApproveBook sets the approval flag.
func (m *MemoryStore) ApproveBook(_ context.Context, id string, at time.Time) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	b, ok := m.books[id]
	if !ok {
		return false, nil
	}
	b.IsApproved = true
	b.UpdatedAt = at.UTC()
	m.books[id] = b
	return true, nil
}

// DeleteBook removes a book.
func (m *MemoryStore) DeleteBook(_ context.Context, id string) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.books[id]; !ok {
		return false, nil
	}
	delete(m.books, id)
	filtered := m.orders[:0]
	for _, item := range m.orders {
		if item != id {
			filtered = append(filtered, item)
		}
	}
	m.orders = filtered
	return true, nil
}

// Ping always succeeds.
func (m *MemoryStore) Ping(context.Context) error { return nil }

// Close is a no-op.
func (m *MemoryStore) Close(context.Context) error { return nil }

func matchesQuery(b domain.Book, q BookQuery) bool {
	if q.OwnerID != "" && b.UploadedBy != q.OwnerID {
		return false
	}
	switch q.Status {
	case domain.StatusApproved:
		if !b.IsApproved {
			return false
		}
	case domain.StatusPending:
		if b.IsApproved {
			return false
		}
	}
	if text := strings.ToLower(strings.TrimSpace(q.Text)); text != "" {
		if !strings.Contains(strings.ToLower(b.Title), text) &&
			!strings.Contains(strings.ToLower(b.UploadedByName), text) {
			return false
		}
	}
	if category := strings.ToLower(strings.TrimSpace(q.Category)); category != "" {
		if !strings.Contains(strings.ToLower(b.Category), category) {
			return false
		}
	}
	if q.PublishYear != 0 && b.PublishYear != q.PublishYear {
		return false
	}
	return true
}

func lessBook(a, b domain.Book, order BookSort) bool {
	switch order {
	case SortYearAsc:
		if a.PublishYear != b.PublishYear {
			return a.PublishYear < b.PublishYear
		}
	case SortYearDesc:
		if a.PublishYear != b.PublishYear {
			return a.PublishYear > b.PublishYear
		}
	}
	if !a.CreatedAt.Equal(b.CreatedAt) {
		return a.CreatedAt.After(b.CreatedAt)
	}
	return a.ID < b.ID
}

func paginate[T any](items []T, offset, limit int) []T {
	if limit <= 0 {
		return items
	}
	if offset < 0 {
		offset = 0
	}
	if offset >= len(items) {
		return []T{}
	}
	end := offset + limit
	if end > len(items) {
		end = len(items)
	}
	return items[offset:end]
}
