package domain

import "time"

type UserRole string

const (
	RoleUser  UserRole = "user"
	RoleAdmin UserRole = "admin"
)

// ApprovalStatus narrows book listings by approval state. The zero value
// matches every book.
type ApprovalStatus string

const (
	StatusAny      ApprovalStatus = ""
	StatusApproved ApprovalStatus = "approved"
	StatusPending  ApprovalStatus = "pending"
)

// ParseApprovalStatus maps a query value onto a status filter. Unknown values
// fall back to StatusAny.
func ParseApprovalStatus(raw string) ApprovalStatus {
	switch ApprovalStatus(raw) {
	case StatusApproved:
		return StatusApproved
	case StatusPending:
		return StatusPending
	default:
		return StatusAny
	}
}

type User struct {
	ID           string    `json:"id"`
	Name         string    `json:"name"`
	Email        string    `json:"email"`
	PasswordHash string    `json:"-"`
	Role         UserRole  `json:"role"`
	CreatedAt    time.Time `json:"createdAt"`
	UpdatedAt    time.Time `json:"updatedAt"`
}

// IsAdmin reports whether the user carries the admin role.
func (u User) IsAdmin() bool {
	return u.Role == RoleAdmin
}

// UserSummary is the owner projection attached to admin book listings.
type UserSummary struct {
	ID    string `json:"id"`
	Name  string `json:"name"`
	Email string `json:"email"`
}

type Book struct {
	ID             string       `json:"id"`
	Title          string       `json:"title"`
	Description    string       `json:"description"`
	Category       string       `json:"category"`
	PublishYear    int          `json:"publishYear"`
	CoverImage     string       `json:"coverImage"`
	CoverImageID   string       `json:"-"`
	PDF            string       `json:"pdf"`
	PDFID          string       `json:"-"`
	PageCount      int          `json:"pageCount,omitempty"`
	UploadedBy     string       `json:"uploadedBy"`
	UploadedByName string       `json:"uploadedByName"`
	Owner          *UserSummary `json:"owner,omitempty"`
	IsApproved     bool         `json:"isApproved"`
	CreatedAt      time.Time    `json:"createdAt"`
	UpdatedAt      time.Time    `json:"updatedAt"`
}

// VisibleTo reports whether a caller may read the book. Approved books are
// public; pending ones are limited to the owner and admins.
func (b Book) VisibleTo(userID string, role UserRole) bool {
	if b.IsApproved {
		return true
	}
	if role == RoleAdmin {
		return true
	}
	return userID != "" && b.UploadedBy == userID
}
