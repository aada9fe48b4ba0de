package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log"
	"os"
	"strings"
	"time"

	"gorm.io/driver/postgres"
	"gorm.io/gorm"
	gormlogger "gorm.io/gorm/logger"

	"github.com/Harshil230205/e-book-backend/pkg/domain"
)

const migrateLockID int64 = 51820417

// GormStore implements Store using GORM. Postgres in production, any GORM
// dialect in tests.
type GormStore struct {
	db *gorm.DB
}

// NewGormStore opens a Postgres database and runs auto-migrations.
func NewGormStore(dsn string) (*GormStore, error) {
	return NewGormStoreWithDialector(postgres.Open(dsn))
}

// NewGormStoreWithDialector opens the DB with the given dialector and runs
// auto-migrations. Postgres migrations are serialized with an advisory lock.
func NewGormStoreWithDialector(dialector gorm.Dialector) (*GormStore, error) {
	gormLog := gormlogger.New(
		log.New(os.Stdout, "\r\n", log.LstdFlags),
		gormlogger.Config{
			SlowThreshold:             time.Second,
			LogLevel:                  gormlogger.Warn,
			IgnoreRecordNotFoundError: true,
			Colorful:                  false,
		},
	)
	db, err := gorm.Open(dialector, &gorm.Config{Logger: gormLog, TranslateError: true})
	if err != nil {
		return nil, fmt.Errorf("open db: %w", err)
	}
	migrate := func(tx *gorm.DB) error {
		if err := tx.AutoMigrate(&UserModel{}, &BookModel{}); err != nil {
			return fmt.Errorf("auto migrate: %w", err)
		}
		return nil
	}
	if db.Dialector.Name() == "postgres" {
		err = withMigrationLock(db, migrate)
	} else {
		err = migrate(db)
	}
	if err != nil {
		return nil, err
	}
	return &GormStore{db: db}, nil
}

func withMigrationLock(db *gorm.DB, fn func(*gorm.DB) error) error {
	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()
	sqlDB, err := db.DB()
	if err != nil {
		return fmt.Errorf("get sql db: %w", err)
	}
	conn, err := sqlDB.Conn(ctx)
	if err != nil {
		return fmt.Errorf("open sql conn: %w", err)
	}
	defer conn.Close()
	if err := execAdvisory(ctx, conn, "SELECT pg_advisory_lock($1)", migrateLockID); err != nil {
		return fmt.Errorf("acquire migrate lock: %w", err)
	}
	defer func() {
		_ = execAdvisory(ctx, conn, "SELECT pg_advisory_unlock($1)", migrateLockID)
	}()
	return fn(db)
}

func execAdvisory(ctx context.Context, conn *sql.Conn, query string, lockID int64) error {
	_, err := conn.ExecContext(ctx, query, lockID)
	return err
}

// SaveUser inserts a new user.
func (s *GormStore) SaveUser(ctx context.Context, u domain.User) error {
	model := userToModel(u)
	if err := s.db.WithContext(ctx).Create(&model).Error; err != nil {
		if errors.Is(err, gorm.ErrDuplicatedKey) {
			return ErrDuplicateEmail
		}
		return err
	}
	return nil
}

// GetUserByEmail looks up a user by email.
func (s *GormStore) GetUserByEmail(ctx context.Context, email string) (domain.User, bool, error) {
	var model UserModel
	if err := s.db.WithContext(ctx).Where("email = ?", email).First(&model).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return domain.User{}, false, nil
		}
		return domain.User{}, false, err
	}
	return userFromModel(model), true, nil
}

// GetUserByID returns a user by ID.
func (s *GormStore) GetUserByID(ctx context.Context, id string) (domain.User, bool, error) {
	var model UserModel
	if err := s.db.WithContext(ctx).First(&model, "id = ?", id).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return domain.User{}, false, nil
		}
		return domain.User{}, false, err
	}
	return userFromModel(model), true, nil
}

// ListUsers returns a page of users ordered by created_at, without password hashes.
func (s *GormStore) ListUsers(ctx context.Context, offset, limit int) ([]domain.User, int64, error) {
	var total int64
	if err := s.db.WithContext(ctx).Model(&UserModel{}).Count(&total).Error; err != nil {
		return nil, 0, err
	}
	var models []UserModel
	tx := s.db.WithContext(ctx).Omit("password_hash").Order("created_at ASC").Order("id ASC")
	if limit > 0 {
		tx = tx.Offset(offset).Limit(limit)
	}
	if err := tx.Find(&models).Error; err != nil {
		return nil, 0, err
	}
	res := make([]domain.User, 0, len(models))
	for _, m := range models {
		u := userFromModel(m)
		u.PasswordHash = ""
		res = append(res, u)
	}
	return res, total, nil
}

// ListUsersByIDs returns the users matching ids, in no particular order.
func (s *GormStore) ListUsersByIDs(ctx context.Context, ids []string) ([]domain.User, error) {
	if len(ids) == 0 {
		return nil, nil
	}
	var models []UserModel
	if err := s.db.WithContext(ctx).Where("id IN ?", ids).Find(&models).Error; err != nil {
		return nil, err
	}
	res := make([]domain.User, 0, len(models))
	for _, m := range models {
		res = append(res, userFromModel(m))
	}
	return res, nil
}

// SaveBook inserts a new book.
func (s *GormStore) SaveBook(ctx context.Context, b domain.Book) error {
	model := bookToModel(b)
	return s.db.WithContext(ctx).Create(&model).Error
}

// GetBook retrieves a book.
func (s *GormStore) GetBook(ctx context.Context, id string) (domain.Book, bool, error) {
	var model BookModel
	if err := s.db.WithContext(ctx).First(&model, "id = ?", id).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return domain.Book{}, false, nil
		}
		return domain.Book{}, false, err
	}
	return bookFromModel(model), true, nil
}

// ListBooks returns one page of books matching q plus the total match count.
func (s *GormStore) ListBooks(ctx context.Context, q BookQuery) ([]domain.Book, int64, error) {
	base := func() *gorm.DB {
		return applyBookQuery(s.db.WithContext(ctx).Model(&BookModel{}), q)
	}
	var total int64
	if err := base().Count(&total).Error; err != nil {
		return nil, 0, err
	}
	tx := base()
	for _, order := range bookOrder(q.Sort) {
		tx = tx.Order(order)
	}
	if q.Limit > 0 {
		tx = tx.Offset(q.Offset).Limit(q.Limit)
	}
	var models []BookModel
	if err := tx.Find(&models).Error; err != nil {
		return nil, 0, err
	}
	res := make([]domain.Book, 0, len(models))
	for _, m := range models {
		res = append(res, bookFromModel(m))
	}
	return res, total, nil
}

func applyBookQuery(tx *gorm.DB, q BookQuery) *gorm.DB {
	if q.OwnerID != "" {
		tx = tx.Where("uploaded_by = ?", q.OwnerID)
	}
	switch q.Status {
	case domain.StatusApproved:
		tx = tx.Where("is_approved = ?", true)
	case domain.StatusPending:
		tx = tx.Where("is_approved = ?", false)
	}
	if text := strings.TrimSpace(q.Text); text != "" {
		pattern := likePattern(text)
		tx = tx.Where(`(LOWER(title) LIKE ? ESCAPE '\' OR LOWER(uploaded_by_name) LIKE ? ESCAPE '\')`, pattern, pattern)
	}
	if category := strings.TrimSpace(q.Category); category != "" {
		tx = tx.Where(`LOWER(category) LIKE ? ESCAPE '\'`, likePattern(category))
	}
	if q.PublishYear != 0 {
		tx = tx.Where("publish_year = ?", q.PublishYear)
	}
	return tx
}

func bookOrder(sort BookSort) []string {
	switch sort {
	case SortYearAsc:
		return []string{"publish_year ASC", "created_at DESC", "id ASC"}
	case SortYearDesc:
		return []string{"publish_year DESC", "created_at DESC", "id ASC"}
	default:
		return []string{"created_at DESC", "id ASC"}
	}
}

// likePattern lower-cases value, escapes LIKE metacharacters and wraps it for
// substring matching.
func likePattern(value string) string {
	value = strings.ToLower(value)
	value = strings.NewReplacer(`\`, `\\`, `%`, `\%`, `_`, `\_`).Replace(value)
	return "%" + value + "%"
}

// ApproveBook sets the approval flag. Approving twice is not an error.
func (s *GormStore) ApproveBook(ctx context.Context, id string, at time.Time) (bool, error) {
	res := s.db.WithContext(ctx).Model(&BookModel{}).
		Where("id = ?", id).
		Updates(map[string]any{
			"is_approved": true,
			"updated_at":  at.UTC(),
		})
	if res.Error != nil {
		return false, res.Error
	}
	return res.RowsAffected > 0, nil
}

// DeleteBook removes a book record.
func (s *GormStore) DeleteBook(ctx context.Context, id string) (bool, error) {
	res := s.db.WithContext(ctx).Delete(&BookModel{}, "id = ?", id)
	if res.Error != nil {
		return false, res.Error
	}
	return res.RowsAffected > 0, nil
}

// Ping checks database connectivity.
func (s *GormStore) Ping(ctx context.Context) error {
	sqlDB, err := s.db.DB()
	if err != nil {
		return err
	}
	return sqlDB.PingContext(ctx)
}

// Close releases the connection pool.
func (s *GormStore) Close(context.Context) error {
	sqlDB, err := s.db.DB()
	if err != nil {
		return err
	}
	return sqlDB.Close()
}

func userToModel(u domain.User) UserModel {
	return UserModel{
		ID:           u.ID,
		Name:         u.Name,
		Email:        u.Email,
		PasswordHash: u.PasswordHash,
		Role:         string(u.Role),
		CreatedAt:    u.CreatedAt,
		UpdatedAt:    u.UpdatedAt,
	}
}

func userFromModel(m UserModel) domain.User {
	return domain.User{
		ID:           m.ID,
		Name:         m.Name,
		Email:        m.Email,
		PasswordHash: m.PasswordHash,
		Role:         domain.UserRole(m.Role),
		CreatedAt:    m.CreatedAt,
		UpdatedAt:    m.UpdatedAt,
	}
}

func bookToModel(b domain.Book) BookModel {
	return BookModel{
		ID:             b.ID,
		Title:          b.Title,
		Description:    b.Description,
		Category:       b.Category,
		PublishYear:    b.PublishYear,
		CoverImage:     b.CoverImage,
		CoverImageID:   b.CoverImageID,
		PDF:            b.PDF,
		PDFID:          b.PDFID,
		PageCount:      b.PageCount,
		UploadedBy:     b.UploadedBy,
		UploadedByName: b.UploadedByName,
		IsApproved:     b.IsApproved,
		CreatedAt:      b.CreatedAt,
		UpdatedAt:      b.UpdatedAt,
	}
}

func bookFromModel(m BookModel) domain.Book {
	return domain.Book{
		ID:             m.ID,
		Title:          m.Title,
		Description:    m.Description,
		Category:       m.Category,
		PublishYear:    m.PublishYear,
		CoverImage:     m.CoverImage,
		CoverImageID:   m.CoverImageID,
		PDF:            m.PDF,
		PDFID:          m.PDFID,
		PageCount:      m.PageCount,
		UploadedBy:     m.UploadedBy,
		UploadedByName: m.UploadedByName,
		IsApproved:     m.IsApproved,
		CreatedAt:      m.CreatedAt,
		UpdatedAt:      m.UpdatedAt,
	}
}
