package server

import (
	"errors"
	"mime/multipart"
	"net/http"
	"strconv"
	"strings"

	"github.com/Harshil230205/e-book-backend/internal/app"
	"github.com/Harshil230205/e-book-backend/pkg/domain"
	"github.com/Harshil230205/e-book-backend/pkg/storage"
)

const multipartMemory = 8 << 20

type bookResponse struct {
	Message string      `json:"message"`
	Book    domain.Book `json:"book"`
}

// queryInt parses an optional integer query parameter. Absent values yield
// zero.
func queryInt(r *http.Request, name string) (int, error) {
	raw := strings.TrimSpace(r.URL.Query().Get(name))
	if raw == "" {
		return 0, nil
	}
	return strconv.Atoi(raw)
}

func pageFromQuery(w http.ResponseWriter, r *http.Request) (app.Page, bool) {
	number, err := queryInt(r, "page")
	if err != nil {
		writeError(w, http.StatusBadRequest, "page must be an integer", "")
		return app.Page{}, false
	}
	size, err := queryInt(r, "limit")
	if err != nil {
		writeError(w, http.StatusBadRequest, "limit must be an integer", "")
		return app.Page{}, false
	}
	return app.NewPage(number, size), true
}

func (s *Server) handleListApproved(w http.ResponseWriter, r *http.Request) {
	books, err := s.app.ListApproved(r.Context())
	if err != nil {
		writeAppError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, books)
}

func (s *Server) handleListPublic(w http.ResponseWriter, r *http.Request) {
	page, ok := pageFromQuery(w, r)
	if !ok {
		return
	}
	year, err := queryInt(r, "year")
	if err != nil {
		writeError(w, http.StatusBadRequest, "year must be an integer", "")
		return
	}
	q := r.URL.Query()
	filter := app.BookFilter{
		Query:    strings.TrimSpace(q.Get("query")),
		Category: strings.TrimSpace(q.Get("category")),
		Year:     year,
		Oldest:   q.Get("sort") == "oldest",
	}
	books, err := s.app.ListPublic(r.Context(), filter, page)
	if err != nil {
		writeAppError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, books)
}

func (s *Server) handleGetBook(w http.ResponseWriter, r *http.Request) {
	book, err := s.app.GetBook(r.Context(), r.PathValue("id"), callerFrom(r))
	if err != nil {
		writeAppError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, book)
}

func (s *Server) handleMyBooks(w http.ResponseWriter, r *http.Request) {
	page, ok := pageFromQuery(w, r)
	if !ok {
		return
	}
	caller := callerFrom(r)
	status := domain.ParseApprovalStatus(r.URL.Query().Get("status"))
	books, err := s.app.ListOwned(r.Context(), caller.UserID, status, page)
	if err != nil {
		writeAppError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, books)
}

func (s *Server) handleUpload(w http.ResponseWriter, r *http.Request) {
	if r.ContentLength > s.maxUploadBytes {
		writeError(w, http.StatusRequestEntityTooLarge, "upload too large", "")
		return
	}
	r.Body = http.MaxBytesReader(w, r.Body, s.maxUploadBytes)
	if err := r.ParseMultipartForm(multipartMemory); err != nil {
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) {
			writeError(w, http.StatusRequestEntityTooLarge, "upload too large", "")
			return
		}
		writeError(w, http.StatusBadRequest, "invalid form data", "")
		return
	}
	defer r.MultipartForm.RemoveAll()

	cover, closeCover, err := formUpload(r, "coverImage")
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid form data", "")
		return
	}
	defer closeCover()
	document, closeDocument, err := formUpload(r, "pdf")
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid form data", "")
		return
	}
	defer closeDocument()

	in := app.BookInput{
		Title:       r.FormValue("title"),
		Description: r.FormValue("description"),
		Category:    r.FormValue("category"),
		PublishYear: r.FormValue("publishYear"),
	}
	caller := callerFrom(r)
	book, err := s.app.CreateBook(r.Context(), caller.UserID, in, cover, document)
	if err != nil {
		s.audit(r, "book.upload", "fail", "user_id", caller.UserID, "reason", app.KindOf(err).String())
		writeAppError(w, r, err)
		return
	}
	s.audit(r, "book.upload", "success", "user_id", caller.UserID, "book_id", book.ID)
	s.bookEvent("uploaded")
	writeJSON(w, http.StatusCreated, bookResponse{Message: "Book uploaded, pending approval", Book: book})
}

// formUpload opens the named multipart file. A missing field yields a nil
// upload so the catalog can report which files are required.
func formUpload(r *http.Request, field string) (*storage.Upload, func(), error) {
	file, header, err := r.FormFile(field)
	if errors.Is(err, http.ErrMissingFile) {
		return nil, func() {}, nil
	}
	if err != nil {
		return nil, func() {}, err
	}
	return &storage.Upload{
		Filename:    header.Filename,
		ContentType: header.Header.Get("Content-Type"),
		Size:        header.Size,
		Body:        file,
	}, func() { closeFile(file) }, nil
}

func closeFile(f multipart.File) {
	_ = f.Close()
}

func (s *Server) handleAdminListBooks(w http.ResponseWriter, r *http.Request) {
	page, ok := pageFromQuery(w, r)
	if !ok {
		return
	}
	status := domain.ParseApprovalStatus(r.URL.Query().Get("status"))
	books, err := s.app.ListAll(r.Context(), status, page)
	if err != nil {
		writeAppError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, books)
}

func (s *Server) handleApprove(w http.ResponseWriter, r *http.Request) {
	id := r.PathValue("id")
	book, err := s.app.ApproveBook(r.Context(), id)
	if err != nil {
		s.audit(r, "book.approve", "fail", "book_id", id, "reason", app.KindOf(err).String())
		writeAppError(w, r, err)
		return
	}
	s.audit(r, "book.approve", "success", "book_id", id, "user_id", callerFrom(r).UserID)
	s.bookEvent("approved")
	writeJSON(w, http.StatusOK, bookResponse{Message: "Book approved", Book: book})
}

func (s *Server) handleDelete(w http.ResponseWriter, r *http.Request) {
	id := r.PathValue("id")
	if err := s.app.DeleteBook(r.Context(), id); err != nil {
		s.audit(r, "book.delete", "fail", "book_id", id, "reason", app.KindOf(err).String())
		writeAppError(w, r, err)
		return
	}
	s.audit(r, "book.delete", "success", "book_id", id, "user_id", callerFrom(r).UserID)
	s.bookEvent("deleted")
	writeJSON(w, http.StatusOK, messageResponse{Message: "Book and associated files deleted"})
}
