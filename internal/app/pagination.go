package app

import "math"

const (
	DefaultPageSize = 10
	MaxPageSize     = 100
)

// Page is a normalized 1-based page request.
type Page struct {
	Number int
	Size   int
}

// NewPage clamps raw values: number below 1 becomes 1, size defaults to
// DefaultPageSize and is capped at MaxPageSize. Numbers whose offset would
// overflow are capped to the last representable page, which is always empty.
func NewPage(number, size int) Page {
	if number < 1 {
		number = 1
	}
	if size <= 0 {
		size = DefaultPageSize
	}
	if size > MaxPageSize {
		size = MaxPageSize
	}
	if limit := math.MaxInt / size; number > limit {
		number = limit
	}
	return Page{Number: number, Size: size}
}

func (p Page) offset() int {
	return (p.Number - 1) * p.Size
}

func totalPages(total int64, size int) int {
	if size <= 0 || total <= 0 {
		return 0
	}
	return int((total + int64(size) - 1) / int64(size))
}
