package server

import (
	"bytes"
	"encoding/json"
	"fmt"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"net/textproto"
	"strings"
	"testing"
	"time"

	"github.com/Harshil230205/e-book-backend/internal/app"
	"github.com/Harshil230205/e-book-backend/internal/metrics"
	"github.com/Harshil230205/e-book-backend/internal/usertoken"
	"github.com/Harshil230205/e-book-backend/pkg/domain"
	"github.com/Harshil230205/e-book-backend/pkg/storage"
	"github.com/Harshil230205/e-book-backend/pkg/store"
)

const (
	testTokenSecret = "server-test-secret"
	testAdminSecret = "admin-secret"
)

type testServer struct {
	handler http.Handler
	store   *store.MemoryStore
	objects *storage.MemoryObjectStore
	tokens  *usertoken.Issuer
}

func newTestServer(t *testing.T, mutate func(*Config)) *testServer {
	t.Helper()
	tokens, err := usertoken.NewIssuer(usertoken.Config{Secret: testTokenSecret})
	if err != nil {
		t.Fatalf("new issuer: %v", err)
	}
	memStore := store.NewMemoryStore()
	objects := storage.NewMemoryObjectStore("books")
	a, err := app.New(app.Config{
		Store:       memStore,
		Ingester:    storage.NewIngester(objects, "https://cdn.example.com"),
		Tokens:      tokens,
		AdminSecret: testAdminSecret,
	})
	if err != nil {
		t.Fatalf("new app: %v", err)
	}
	cfg := Config{App: a, Tokens: tokens, Metrics: metrics.New()}
	if mutate != nil {
		mutate(&cfg)
	}
	srv, err := New(cfg)
	if err != nil {
		t.Fatalf("new server: %v", err)
	}
	return &testServer{handler: srv.Router(), store: memStore, objects: objects, tokens: tokens}
}

func (ts *testServer) do(t *testing.T, method, path, token string, body any) *httptest.ResponseRecorder {
	t.Helper()
	var reader *bytes.Reader
	if body != nil {
		raw, err := json.Marshal(body)
		if err != nil {
			t.Fatalf("marshal body: %v", err)
		}
		reader = bytes.NewReader(raw)
	} else {
		reader = bytes.NewReader(nil)
	}
	req := httptest.NewRequest(method, path, reader)
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	rec := httptest.NewRecorder()
	ts.handler.ServeHTTP(rec, req)
	return rec
}

func decode[T any](t *testing.T, rec *httptest.ResponseRecorder) T {
	t.Helper()
	var out T
	if err := json.Unmarshal(rec.Body.Bytes(), &out); err != nil {
		t.Fatalf("decode %q: %v", rec.Body.String(), err)
	}
	return out
}

func (ts *testServer) signupAndLogin(t *testing.T, name, email string) string {
	t.Helper()
	rec := ts.do(t, http.MethodPost, "/api/user/signup", "", map[string]string{
		"name": name, "email": email, "password": "secret123",
	})
	if rec.Code != http.StatusCreated {
		t.Fatalf("signup status=%d body=%s", rec.Code, rec.Body.String())
	}
	rec = ts.do(t, http.MethodPost, "/api/user/login", "", map[string]string{
		"email": email, "password": "secret123",
	})
	if rec.Code != http.StatusOK {
		t.Fatalf("login status=%d body=%s", rec.Code, rec.Body.String())
	}
	resp := decode[loginResponse](t, rec)
	if resp.Token == "" {
		t.Fatalf("expected token in login response")
	}
	return resp.Token
}

func (ts *testServer) adminToken(t *testing.T) string {
	t.Helper()
	rec := ts.do(t, http.MethodPost, "/api/admin/signup", "", map[string]string{
		"name": "Root", "email": "root@example.com", "password": "secret123", "adminSecret": testAdminSecret,
	})
	if rec.Code != http.StatusCreated {
		t.Fatalf("admin signup status=%d body=%s", rec.Code, rec.Body.String())
	}
	return decode[signupResponse](t, rec).Token
}

type uploadFile struct {
	field, filename, contentType, content string
}

func multipartBody(t *testing.T, fields map[string]string, files ...uploadFile) (*bytes.Buffer, string) {
	t.Helper()
	body := &bytes.Buffer{}
	mw := multipart.NewWriter(body)
	for k, v := range fields {
		if err := mw.WriteField(k, v); err != nil {
			t.Fatalf("write field: %v", err)
		}
	}
	for _, f := range files {
		h := make(textproto.MIMEHeader)
		h.Set("Content-Disposition", fmt.Sprintf(`form-data; name=%q; filename=%q`, f.field, f.filename))
		h.Set("Content-Type", f.contentType)
		part, err := mw.CreatePart(h)
		if err != nil {
			t.Fatalf("create part: %v", err)
		}
		if _, err := part.Write([]byte(f.content)); err != nil {
			t.Fatalf("write part: %v", err)
		}
	}
	if err := mw.Close(); err != nil {
		t.Fatalf("close multipart: %v", err)
	}
	return body, mw.FormDataContentType()
}

func bookFields(title string) map[string]string {
	return map[string]string{
		"title":       title,
		"description": "A story",
		"category":    "Fiction",
		"publishYear": "2020",
		// ignored: new books always start pending
		"isApproved": "true",
	}
}

var (
	coverFile    = uploadFile{"coverImage", "cover.png", "image/png", "png-bytes"}
	documentFile = uploadFile{"pdf", "book.pdf", "application/pdf", "pdf-bytes"}
)

func (ts *testServer) upload(t *testing.T, token string, fields map[string]string, files ...uploadFile) *httptest.ResponseRecorder {
	t.Helper()
	body, contentType := multipartBody(t, fields, files...)
	req := httptest.NewRequest(http.MethodPost, "/api/books/upload", body)
	req.Header.Set("Content-Type", contentType)
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	rec := httptest.NewRecorder()
	ts.handler.ServeHTTP(rec, req)
	return rec
}

func (ts *testServer) uploadBook(t *testing.T, token, title string) domain.Book {
	t.Helper()
	rec := ts.upload(t, token, bookFields(title), coverFile, documentFile)
	if rec.Code != http.StatusCreated {
		t.Fatalf("upload status=%d body=%s", rec.Code, rec.Body.String())
	}
	resp := decode[bookResponse](t, rec)
	if resp.Message != "Book uploaded, pending approval" {
		t.Fatalf("unexpected upload message %q", resp.Message)
	}
	return resp.Book
}

func TestNewRequiresAppAndTokens(t *testing.T) {
	if _, err := New(Config{}); err == nil {
		t.Fatalf("expected error without app")
	}
}

func TestHealthz(t *testing.T) {
	ts := newTestServer(t, nil)
	rec := ts.do(t, http.MethodGet, "/healthz", "", nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", rec.Code)
	}
	if rec.Header().Get("X-Request-Id") == "" {
		t.Fatalf("expected request id header")
	}
}

func TestMetricsEndpointExposesRouteLabels(t *testing.T) {
	ts := newTestServer(t, nil)
	ts.do(t, http.MethodGet, "/api/books/getAll", "", nil)
	rec := ts.do(t, http.MethodGet, "/metrics", "", nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", rec.Code)
	}
	if !strings.Contains(rec.Body.String(), `route="GET /api/books/getAll"`) {
		t.Fatalf("expected route label in metrics output")
	}
}

func TestSignupLoginUploadMissingDocumentAndApproveForbidden(t *testing.T) {
	ts := newTestServer(t, nil)
	token := ts.signupAndLogin(t, "Ann", "a@x.com")

	rec := ts.upload(t, token, bookFields("Dune"), coverFile)
	if rec.Code != http.StatusBadRequest {
		t.Fatalf("expected 400, got %d body=%s", rec.Code, rec.Body.String())
	}
	errResp := decode[errorResponse](t, rec)
	if errResp.Message != "Cover image and PDF are required" || errResp.Code != "BOOK_FILE_REQUIRED" {
		t.Fatalf("unexpected error response %+v", errResp)
	}
	if errResp.RequestID == "" {
		t.Fatalf("expected request id in error body")
	}
	if len(ts.objects.Keys()) != 0 {
		t.Fatalf("rejected upload must not store objects")
	}

	rec = ts.do(t, http.MethodPost, "/api/admin/books/approve/anything", token, nil)
	if rec.Code != http.StatusForbidden {
		t.Fatalf("expected 403, got %d", rec.Code)
	}
	if msg := decode[errorResponse](t, rec).Message; msg != "admin access required" {
		t.Fatalf("unexpected message %q", msg)
	}
}

func TestUploadApproveAppearsInPublicList(t *testing.T) {
	ts := newTestServer(t, nil)
	userToken := ts.signupAndLogin(t, "Ann", "ann@example.com")
	admin := ts.adminToken(t)

	book := ts.uploadBook(t, userToken, "Dune")
	if book.IsApproved {
		t.Fatalf("new book must be pending")
	}
	if book.UploadedByName != "Ann" {
		t.Fatalf("expected uploader name, got %q", book.UploadedByName)
	}
	if !strings.HasPrefix(book.CoverImage, "https://cdn.example.com/covers/") {
		t.Fatalf("unexpected cover url %q", book.CoverImage)
	}

	rec := ts.do(t, http.MethodGet, "/api/books/getAll", "", nil)
	if got := decode[app.BookPage](t, rec); len(got.Books) != 0 {
		t.Fatalf("pending book must not be public")
	}

	rec = ts.do(t, http.MethodGet, "/api/admin/books/getAll?status=pending", admin, nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("admin list status=%d", rec.Code)
	}
	pending := decode[app.BookPage](t, rec)
	if len(pending.Books) != 1 || pending.Books[0].ID != book.ID {
		t.Fatalf("expected the pending book, got %+v", pending.Books)
	}
	if pending.Books[0].Owner == nil || pending.Books[0].Owner.Email != "ann@example.com" {
		t.Fatalf("expected owner projection, got %+v", pending.Books[0].Owner)
	}

	for i := 0; i < 2; i++ {
		rec = ts.do(t, http.MethodPost, "/api/admin/books/approve/"+book.ID, admin, nil)
		if rec.Code != http.StatusOK {
			t.Fatalf("approve #%d status=%d body=%s", i+1, rec.Code, rec.Body.String())
		}
		resp := decode[bookResponse](t, rec)
		if resp.Message != "Book approved" || !resp.Book.IsApproved {
			t.Fatalf("unexpected approve response %+v", resp)
		}
	}

	rec = ts.do(t, http.MethodGet, "/api/books/getAll?query=dun", "", nil)
	public := decode[app.BookPage](t, rec)
	if len(public.Books) != 1 || public.Books[0].ID != book.ID {
		t.Fatalf("approved book missing from public list: %+v", public)
	}

	rec = ts.do(t, http.MethodGet, "/api/books/", "", nil)
	all := decode[[]domain.Book](t, rec)
	if len(all) != 1 {
		t.Fatalf("expected bare array with one book, got %d", len(all))
	}
}

func TestPendingBookVisibility(t *testing.T) {
	ts := newTestServer(t, nil)
	owner := ts.signupAndLogin(t, "Ann", "ann@example.com")
	other := ts.signupAndLogin(t, "Bob", "bob@example.com")
	admin := ts.adminToken(t)
	book := ts.uploadBook(t, owner, "Dune")

	cases := []struct {
		name   string
		path   string
		token  string
		status int
	}{
		{"owner", "/api/books/getById/" + book.ID, owner, http.StatusOK},
		{"other user", "/api/books/getById/" + book.ID, other, http.StatusForbidden},
		{"anonymous", "/api/books/getById/" + book.ID, "", http.StatusForbidden},
		{"admin on public route", "/api/books/getById/" + book.ID, admin, http.StatusOK},
		{"admin route", "/api/admin/books/getById/" + book.ID, admin, http.StatusOK},
		{"missing", "/api/books/getById/nope", owner, http.StatusNotFound},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			rec := ts.do(t, http.MethodGet, tc.path, tc.token, nil)
			if rec.Code != tc.status {
				t.Fatalf("expected %d, got %d body=%s", tc.status, rec.Code, rec.Body.String())
			}
		})
	}
}

func TestMyBooksStatusFilter(t *testing.T) {
	ts := newTestServer(t, nil)
	owner := ts.signupAndLogin(t, "Ann", "ann@example.com")
	admin := ts.adminToken(t)
	first := ts.uploadBook(t, owner, "First")
	ts.uploadBook(t, owner, "Second")
	ts.do(t, http.MethodPost, "/api/admin/books/approve/"+first.ID, admin, nil)

	rec := ts.do(t, http.MethodGet, "/api/books/my-books", owner, nil)
	if got := decode[app.BookPage](t, rec); got.TotalBooks != 2 {
		t.Fatalf("expected 2 owned books, got %d", got.TotalBooks)
	}
	rec = ts.do(t, http.MethodGet, "/api/books/my-books?status=approved", owner, nil)
	got := decode[app.BookPage](t, rec)
	if got.TotalBooks != 1 || got.Books[0].ID != first.ID {
		t.Fatalf("expected only the approved book, got %+v", got.Books)
	}
}

func TestDeleteBook(t *testing.T) {
	ts := newTestServer(t, nil)
	owner := ts.signupAndLogin(t, "Ann", "ann@example.com")
	admin := ts.adminToken(t)
	book := ts.uploadBook(t, owner, "Dune")

	rec := ts.do(t, http.MethodDelete, "/api/admin/books/delete/missing", admin, nil)
	if rec.Code != http.StatusNotFound {
		t.Fatalf("expected 404, got %d", rec.Code)
	}
	rec = ts.do(t, http.MethodGet, "/api/admin/books/getAll", admin, nil)
	if got := decode[app.BookPage](t, rec); got.TotalBooks != 1 {
		t.Fatalf("failed delete must not change the collection, total=%d", got.TotalBooks)
	}

	rec = ts.do(t, http.MethodDelete, "/api/admin/books/delete/"+book.ID, admin, nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d body=%s", rec.Code, rec.Body.String())
	}
	if msg := decode[messageResponse](t, rec).Message; msg != "Book and associated files deleted" {
		t.Fatalf("unexpected message %q", msg)
	}
	if keys := ts.objects.Keys(); len(keys) != 0 {
		t.Fatalf("expected attachments removed, got %v", keys)
	}
}

func TestPaginationBeyondRange(t *testing.T) {
	ts := newTestServer(t, nil)
	owner := ts.signupAndLogin(t, "Ann", "ann@example.com")
	admin := ts.adminToken(t)
	for i := 0; i < 3; i++ {
		book := ts.uploadBook(t, owner, fmt.Sprintf("Book %d", i))
		ts.do(t, http.MethodPost, "/api/admin/books/approve/"+book.ID, admin, nil)
	}

	rec := ts.do(t, http.MethodGet, "/api/books/getAll?limit=2", "", nil)
	first := decode[app.BookPage](t, rec)
	if first.TotalPages != 2 || first.TotalBooks != 3 || len(first.Books) != 2 {
		t.Fatalf("unexpected first page %+v", first)
	}
	rec = ts.do(t, http.MethodGet, "/api/books/getAll?limit=2&page=5", "", nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("page beyond range should succeed, got %d", rec.Code)
	}
	beyond := decode[app.BookPage](t, rec)
	if len(beyond.Books) != 0 || beyond.CurrentPage != 5 {
		t.Fatalf("expected empty page 5, got %+v", beyond)
	}

	rec = ts.do(t, http.MethodGet, "/api/books/getAll?limit=10&page=1000000000000000001", "", nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("huge page should succeed, got %d", rec.Code)
	}
	if huge := decode[app.BookPage](t, rec); len(huge.Books) != 0 || huge.TotalBooks != 3 {
		t.Fatalf("expected empty page for huge page number, got %+v", huge)
	}

	rec = ts.do(t, http.MethodGet, "/api/books/getAll?limit=abc", "", nil)
	if rec.Code != http.StatusBadRequest {
		t.Fatalf("expected 400 for non-numeric limit, got %d", rec.Code)
	}
}

func TestAdminListUsersHidesPasswords(t *testing.T) {
	ts := newTestServer(t, nil)
	ts.signupAndLogin(t, "Ann", "ann@example.com")
	admin := ts.adminToken(t)

	rec := ts.do(t, http.MethodGet, "/api/admin/users/getAll?limit=1", admin, nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", rec.Code)
	}
	if strings.Contains(strings.ToLower(rec.Body.String()), "password") {
		t.Fatalf("password leaked: %s", rec.Body.String())
	}
	page := decode[app.UserPage](t, rec)
	if page.TotalPages != 2 || len(page.Users) != 1 {
		t.Fatalf("unexpected user page %+v", page)
	}
}

func TestUploadTooLarge(t *testing.T) {
	ts := newTestServer(t, func(cfg *Config) { cfg.MaxUploadBytes = 1024 })
	token := ts.signupAndLogin(t, "Ann", "ann@example.com")
	big := documentFile
	big.content = strings.Repeat("x", 4096)
	rec := ts.upload(t, token, bookFields("Big"), coverFile, big)
	if rec.Code != http.StatusRequestEntityTooLarge {
		t.Fatalf("expected 413, got %d body=%s", rec.Code, rec.Body.String())
	}
}

func TestUploadRejectsNonImageCover(t *testing.T) {
	ts := newTestServer(t, nil)
	token := ts.signupAndLogin(t, "Ann", "ann@example.com")
	notImage := uploadFile{"coverImage", "cover.txt", "text/plain", "hello"}
	rec := ts.upload(t, token, bookFields("Dune"), notImage, documentFile)
	if rec.Code != http.StatusBadRequest {
		t.Fatalf("expected 400, got %d body=%s", rec.Code, rec.Body.String())
	}
	if code := decode[errorResponse](t, rec).Code; code != "BOOK_UNSUPPORTED_FILE_TYPE" {
		t.Fatalf("unexpected code %q", code)
	}
}

func TestAccountErrors(t *testing.T) {
	ts := newTestServer(t, nil)
	ts.signupAndLogin(t, "Ann", "ann@example.com")

	cases := []struct {
		name   string
		path   string
		body   map[string]string
		status int
		code   string
	}{
		{"duplicate signup", "/api/user/signup", map[string]string{"name": "Ann", "email": "ANN@example.com", "password": "secret123"}, http.StatusConflict, "AUTH_USER_EXISTS"},
		{"short password", "/api/user/signup", map[string]string{"name": "Bo", "email": "bo@example.com", "password": "123"}, http.StatusBadRequest, "AUTH_PASSWORD_TOO_SHORT"},
		{"password over bcrypt limit", "/api/user/signup", map[string]string{"name": "Bo", "email": "bo@example.com", "password": strings.Repeat("p", 80)}, http.StatusBadRequest, "AUTH_PASSWORD_TOO_LONG"},
		{"wrong password", "/api/user/login", map[string]string{"email": "ann@example.com", "password": "nope"}, http.StatusUnauthorized, "AUTH_INVALID_CREDENTIALS"},
		{"user on admin login", "/api/admin/login", map[string]string{"email": "ann@example.com", "password": "secret123"}, http.StatusUnauthorized, "AUTH_INVALID_CREDENTIALS"},
		{"bad admin secret", "/api/admin/signup", map[string]string{"name": "Eve", "email": "eve@example.com", "password": "secret123", "adminSecret": "guess"}, http.StatusForbidden, "AUTH_ADMIN_SIGNUP_FORBIDDEN"},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			rec := ts.do(t, http.MethodPost, tc.path, "", tc.body)
			if rec.Code != tc.status {
				t.Fatalf("expected %d, got %d body=%s", tc.status, rec.Code, rec.Body.String())
			}
			if code := decode[errorResponse](t, rec).Code; code != tc.code {
				t.Fatalf("expected code %s, got %s", tc.code, code)
			}
		})
	}
}

func TestAdminLoginReportsRole(t *testing.T) {
	ts := newTestServer(t, nil)
	ts.adminToken(t)
	rec := ts.do(t, http.MethodPost, "/api/admin/login", "", map[string]string{
		"email": "root@example.com", "password": "secret123",
	})
	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", rec.Code)
	}
	resp := decode[loginResponse](t, rec)
	if !resp.IsAdmin || resp.Role != domain.RoleAdmin || resp.ExpiresAt.Before(time.Now()) {
		t.Fatalf("unexpected admin login response %+v", resp)
	}
}

func TestInvalidJSONBody(t *testing.T) {
	ts := newTestServer(t, nil)
	req := httptest.NewRequest(http.MethodPost, "/api/user/login", strings.NewReader("{"))
	rec := httptest.NewRecorder()
	ts.handler.ServeHTTP(rec, req)
	if rec.Code != http.StatusBadRequest {
		t.Fatalf("expected 400, got %d", rec.Code)
	}
}
