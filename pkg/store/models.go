package store

import "time"

// GORM models used for persistence.
type UserModel struct {
	ID           string    `gorm:"primaryKey"`
	Name         string    `gorm:"not null"`
	Email        string    `gorm:"uniqueIndex;not null"`
	PasswordHash string    `gorm:"not null"`
	Role         string    `gorm:"not null;index"`
	CreatedAt    time.Time `gorm:"not null"`
	UpdatedAt    time.Time
}

func (UserModel) TableName() string { return "users" }

type BookModel struct {
	ID             string `gorm:"primaryKey"`
	Title          string `gorm:"not null"`
	Description    string `gorm:"type:text;not null"`
	Category       string `gorm:"not null"`
	PublishYear    int    `gorm:"not null;index"`
	CoverImage     string `gorm:"column:cover_image;not null"`
	CoverImageID   string `gorm:"column:cover_image_id;not null"`
	PDF            string `gorm:"column:pdf;not null"`
	PDFID          string `gorm:"column:pdf_id;not null"`
	PageCount      int
	UploadedBy     string    `gorm:"not null;index"`
	UploadedByName string    `gorm:"not null"`
	IsApproved     bool      `gorm:"not null;index"`
	CreatedAt      time.Time `gorm:"not null;index"`
	UpdatedAt      time.Time `gorm:"not null"`
}

func (BookModel) TableName() string { return "books" }
