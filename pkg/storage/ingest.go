package storage

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"mime"
	"path"
	"path/filepath"
	"strings"
)

// Kind is the resource class of an attachment.
type Kind string

const (
	KindImage Kind = "image"
	KindRaw   Kind = "raw"
)

var (
	ErrUnsupportedContentType = errors.New("unsupported content type")
	ErrUnknownKind            = errors.New("unknown resource kind")
	ErrEmptyUpload            = errors.New("upload body required")
)

// Upload is one attachment received from a client.
type Upload struct {
	Filename    string
	ContentType string
	Size        int64
	Body        io.Reader
}

// Locator points at a stored attachment.
type Locator struct {
	URL       string
	StorageID string
	PageCount int
}

// Ingester stores book attachments in an ObjectStore.
type Ingester struct {
	objects       ObjectStore
	publicBaseURL string
}

// NewIngester wraps objects. When publicBaseURL is set, locators are built
// from it instead of the object store's own URLs.
func NewIngester(objects ObjectStore, publicBaseURL string) *Ingester {
	return &Ingester{
		objects:       objects,
		publicBaseURL: strings.TrimRight(strings.TrimSpace(publicBaseURL), "/"),
	}
}

// Store uploads an attachment under <prefix>/<bookID>/<filename>.
func (i *Ingester) Store(ctx context.Context, bookID string, up Upload, kind Kind) (Locator, error) {
	prefix, err := kindPrefix(kind)
	if err != nil {
		return Locator{}, err
	}
	if up.Body == nil {
		return Locator{}, ErrEmptyUpload
	}
	contentType := detectContentType(up)
	if kind == KindImage && contentType != "application/octet-stream" && !strings.HasPrefix(contentType, "image/") {
		return Locator{}, fmt.Errorf("%w: %s", ErrUnsupportedContentType, contentType)
	}
	key := buildStorageKey(prefix, bookID, up.Filename, kind)

	loc := Locator{StorageID: key}
	if kind == KindRaw && contentType == "application/pdf" {
		loc.PageCount = pageCount(ctx, up)
	}
	if err := i.objects.Put(ctx, key, up.Body, up.Size, contentType); err != nil {
		return Locator{}, fmt.Errorf("store %s: %w", kind, err)
	}
	loc.URL = i.url(key)
	return loc, nil
}

// Destroy removes a stored attachment. Empty ids are ignored.
func (i *Ingester) Destroy(ctx context.Context, storageID string, kind Kind) error {
	if strings.TrimSpace(storageID) == "" {
		return nil
	}
	prefix, err := kindPrefix(kind)
	if err != nil {
		return err
	}
	if !strings.HasPrefix(storageID, prefix+"/") {
		return fmt.Errorf("storage id %q is not a %s resource", storageID, kind)
	}
	if err := i.objects.Delete(ctx, storageID); err != nil {
		return fmt.Errorf("destroy %s: %w", kind, err)
	}
	return nil
}

func (i *Ingester) url(key string) string {
	if i.publicBaseURL != "" {
		return i.publicBaseURL + "/" + key
	}
	return i.objects.URL(key)
}

func kindPrefix(kind Kind) (string, error) {
	switch kind {
	case KindImage:
		return "covers", nil
	case KindRaw:
		return "documents", nil
	default:
		return "", fmt.Errorf("%w: %q", ErrUnknownKind, kind)
	}
}

func detectContentType(up Upload) string {
	if ct := strings.TrimSpace(up.ContentType); ct != "" {
		if mediaType, _, err := mime.ParseMediaType(ct); err == nil {
			return mediaType
		}
	}
	if ct := mime.TypeByExtension(strings.ToLower(filepath.Ext(up.Filename))); ct != "" {
		if mediaType, _, err := mime.ParseMediaType(ct); err == nil {
			return mediaType
		}
	}
	return "application/octet-stream"
}

func pageCount(ctx context.Context, up Upload) int {
	ra, ok := up.Body.(io.ReaderAt)
	if !ok || up.Size <= 0 {
		return 0
	}
	pages, err := CountPDFPages(ra, up.Size)
	if err != nil {
		slog.DebugContext(ctx, "pdf_page_count_failed", "filename", up.Filename, "err", err)
		return 0
	}
	return pages
}

func buildStorageKey(prefix, bookID, filename string, kind Kind) string {
	name := sanitizeFilename(filepath.Base(filename))
	if name == "" {
		if kind == KindImage {
			name = "cover"
		} else {
			name = "document"
		}
	}
	return path.Join(prefix, bookID, name)
}

func sanitizeFilename(name string) string {
	name = strings.TrimSpace(name)
	if name == "" {
		return ""
	}
	var b strings.Builder
	b.Grow(len(name))
	lastUnderscore := false
	for _, r := range name {
		if r <= 0x7f {
			if (r >= 'a' && r <= 'z') || (r >= 'A' && r <= 'Z') || (r >= '0' && r <= '9') || r == '.' || r == '-' || r == '_' {
				b.WriteRune(r)
				lastUnderscore = false
				continue
			}
		}
		if !lastUnderscore {
			b.WriteByte('_')
			lastUnderscore = true
		}
	}
	return strings.Trim(b.String(), "_.")
}
