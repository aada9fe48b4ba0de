package app

import (
	"context"
	"errors"
	"strconv"
	"strings"

	"golang.org/x/sync/errgroup"

	"github.com/Harshil230205/e-book-backend/internal/util"
	"github.com/Harshil230205/e-book-backend/pkg/domain"
	"github.com/Harshil230205/e-book-backend/pkg/storage"
	"github.com/Harshil230205/e-book-backend/pkg/store"
)

// Caller identifies who is asking. The zero value is an anonymous caller.
type Caller struct {
	UserID string
	Role   domain.UserRole
}

// BookFilter holds the public listing filters.
type BookFilter struct {
	Query    string
	Category string
	Year     int
	Oldest   bool
}

// BookInput is the metadata submitted with an upload. PublishYear is kept
// as received so validation can report malformed values.
type BookInput struct {
	Title       string
	Description string
	Category    string
	PublishYear string
}

// BookPage is one page of a book listing.
type BookPage struct {
	Books       []domain.Book `json:"books"`
	TotalPages  int           `json:"totalPages"`
	CurrentPage int           `json:"currentPage"`
	TotalBooks  int64         `json:"totalBooks"`
}

// ListApproved returns every approved book, newest first.
func (a *App) ListApproved(ctx context.Context) ([]domain.Book, error) {
	books, _, err := a.store.ListBooks(ctx, store.BookQuery{Status: domain.StatusApproved, Sort: store.SortNewest})
	if err != nil {
		return nil, internal("list books", err)
	}
	if books == nil {
		books = []domain.Book{}
	}
	return books, nil
}

// ListPublic returns a filtered page of approved books ordered by publish year.
func (a *App) ListPublic(ctx context.Context, f BookFilter, page Page) (BookPage, error) {
	order := store.SortYearDesc
	if f.Oldest {
		order = store.SortYearAsc
	}
	return a.listBooks(ctx, store.BookQuery{
		Status:      domain.StatusApproved,
		Text:        f.Query,
		Category:    f.Category,
		PublishYear: f.Year,
		Sort:        order,
	}, page)
}

// ListOwned returns the owner's books in any approval state unless status
// narrows it.
func (a *App) ListOwned(ctx context.Context, ownerID string, status domain.ApprovalStatus, page Page) (BookPage, error) {
	return a.listBooks(ctx, store.BookQuery{OwnerID: ownerID, Status: status, Sort: store.SortNewest}, page)
}

// ListAll returns every book with owner summaries attached.
func (a *App) ListAll(ctx context.Context, status domain.ApprovalStatus, page Page) (BookPage, error) {
	res, err := a.listBooks(ctx, store.BookQuery{Status: status, Sort: store.SortNewest}, page)
	if err != nil {
		return BookPage{}, err
	}
	if err := a.attachOwners(ctx, res.Books); err != nil {
		return BookPage{}, err
	}
	return res, nil
}

func (a *App) listBooks(ctx context.Context, q store.BookQuery, page Page) (BookPage, error) {
	q.Offset = page.offset()
	q.Limit = page.Size
	books, total, err := a.store.ListBooks(ctx, q)
	if err != nil {
		return BookPage{}, internal("list books", err)
	}
	if books == nil {
		books = []domain.Book{}
	}
	return BookPage{
		Books:       books,
		TotalPages:  totalPages(total, page.Size),
		CurrentPage: page.Number,
		TotalBooks:  total,
	}, nil
}

func (a *App) attachOwners(ctx context.Context, books []domain.Book) error {
	if len(books) == 0 {
		return nil
	}
	seen := make(map[string]struct{}, len(books))
	ids := make([]string, 0, len(books))
	for _, b := range books {
		if _, ok := seen[b.UploadedBy]; ok {
			continue
		}
		seen[b.UploadedBy] = struct{}{}
		ids = append(ids, b.UploadedBy)
	}
	users, err := a.store.ListUsersByIDs(ctx, ids)
	if err != nil {
		return internal("load owners", err)
	}
	owners := make(map[string]*domain.UserSummary, len(users))
	for _, u := range users {
		owners[u.ID] = &domain.UserSummary{ID: u.ID, Name: u.Name, Email: u.Email}
	}
	for i := range books {
		books[i].Owner = owners[books[i].UploadedBy]
	}
	return nil
}

// GetBook returns a book the caller may see.
func (a *App) GetBook(ctx context.Context, id string, caller Caller) (domain.Book, error) {
	book, ok, err := a.store.GetBook(ctx, id)
	if err != nil {
		return domain.Book{}, internal("fetch book", err)
	}
	if !ok {
		return domain.Book{}, ErrBookNotFound
	}
	if !book.VisibleTo(caller.UserID, caller.Role) {
		return domain.Book{}, ErrAccessDenied
	}
	return book, nil
}

// CreateBook stores both attachments and records a pending book owned by ownerID.
func (a *App) CreateBook(ctx context.Context, ownerID string, in BookInput, cover, document *storage.Upload) (domain.Book, error) {
	if cover == nil || document == nil {
		return domain.Book{}, ErrFilesRequired
	}
	book, err := a.validateBookInput(in)
	if err != nil {
		return domain.Book{}, err
	}
	owner, ok, err := a.store.GetUserByID(ctx, ownerID)
	if err != nil {
		return domain.Book{}, internal("fetch uploader", err)
	}
	if !ok {
		return domain.Book{}, ErrUploaderNotFound
	}

	book.ID = util.NewID()
	coverLoc, docLoc, err := a.storeAttachments(ctx, book.ID, *cover, *document)
	if err != nil {
		return domain.Book{}, err
	}

	now := a.now()
	book.CoverImage = coverLoc.URL
	book.CoverImageID = coverLoc.StorageID
	book.PDF = docLoc.URL
	book.PDFID = docLoc.StorageID
	book.PageCount = docLoc.PageCount
	book.UploadedBy = owner.ID
	book.UploadedByName = owner.Name
	book.IsApproved = false
	book.CreatedAt = now
	book.UpdatedAt = now
	if err := a.store.SaveBook(ctx, book); err != nil {
		a.destroyAttachments(ctx, book)
		return domain.Book{}, internal("save book", err)
	}
	a.logger.InfoContext(ctx, "book_created", "book_id", book.ID, "owner_id", owner.ID, "page_count", book.PageCount)
	return book, nil
}

func (a *App) validateBookInput(in BookInput) (domain.Book, error) {
	book := domain.Book{
		Title:       strings.TrimSpace(in.Title),
		Description: strings.TrimSpace(in.Description),
		Category:    strings.TrimSpace(in.Category),
	}
	if book.Title == "" || book.Description == "" || book.Category == "" {
		return domain.Book{}, ErrBookFieldsRequired
	}
	year, err := strconv.Atoi(strings.TrimSpace(in.PublishYear))
	if err != nil || year < 0 || year > a.now().Year()+1 {
		return domain.Book{}, ErrInvalidPublishYear
	}
	book.PublishYear = year
	return book, nil
}

// storeAttachments uploads cover and document concurrently. When either
// fails, whatever was stored is destroyed before returning.
func (a *App) storeAttachments(ctx context.Context, bookID string, cover, document storage.Upload) (storage.Locator, storage.Locator, error) {
	var coverLoc, docLoc storage.Locator
	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		loc, err := a.ingester.Store(gctx, bookID, cover, storage.KindImage)
		if err != nil {
			return err
		}
		coverLoc = loc
		return nil
	})
	g.Go(func() error {
		loc, err := a.ingester.Store(gctx, bookID, document, storage.KindRaw)
		if err != nil {
			return err
		}
		docLoc = loc
		return nil
	})
	if err := g.Wait(); err != nil {
		a.destroyAttachments(ctx, domain.Book{ID: bookID, CoverImageID: coverLoc.StorageID, PDFID: docLoc.StorageID})
		if errors.Is(err, storage.ErrUnsupportedContentType) {
			return storage.Locator{}, storage.Locator{}, ErrCoverNotImage
		}
		return storage.Locator{}, storage.Locator{}, newError(KindUploadFailed, ErrUploadFailed.Message, err)
	}
	return coverLoc, docLoc, nil
}

// destroyAttachments removes a book's stored files. Failures are logged only.
func (a *App) destroyAttachments(ctx context.Context, book domain.Book) {
	ctx = context.WithoutCancel(ctx)
	for _, item := range []struct {
		id   string
		kind storage.Kind
	}{
		{book.CoverImageID, storage.KindImage},
		{book.PDFID, storage.KindRaw},
	} {
		if item.id == "" {
			continue
		}
		if err := a.ingester.Destroy(ctx, item.id, item.kind); err != nil {
			a.logger.WarnContext(ctx, "storage_destroy_failed",
				"book_id", book.ID,
				"storage_id", item.id,
				"kind", string(item.kind),
				"err", err,
			)
		}
	}
}

// ApproveBook marks a book approved. Approving an approved book succeeds.
func (a *App) ApproveBook(ctx context.Context, id string) (domain.Book, error) {
	found, err := a.store.ApproveBook(ctx, id, a.now())
	if err != nil {
		return domain.Book{}, internal("approve book", err)
	}
	if !found {
		return domain.Book{}, ErrBookNotFound
	}
	book, ok, err := a.store.GetBook(ctx, id)
	if err != nil {
		return domain.Book{}, internal("fetch book", err)
	}
	if !ok {
		return domain.Book{}, ErrBookNotFound
	}
	return book, nil
}

// DeleteBook removes the stored files and the record.
func (a *App) DeleteBook(ctx context.Context, id string) error {
	book, ok, err := a.store.GetBook(ctx, id)
	if err != nil {
		return internal("fetch book", err)
	}
	if !ok {
		return ErrBookNotFound
	}
	a.destroyAttachments(ctx, book)
	found, err := a.store.DeleteBook(ctx, id)
	if err != nil {
		return internal("delete book", err)
	}
	if !found {
		return ErrBookNotFound
	}
	return nil
}
