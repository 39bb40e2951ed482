package courses

const (
	DefaultPageSize = 10
	MaxPageSize     = 100
)

// Page is a 1-based page request.
type Page struct {
	Number int
	Size   int
}

func NewPage(number, size int) Page {
	if number < 1 {
		number = 1
	}
	if size < 1 {
		size = DefaultPageSize
	}
	if size > MaxPageSize {
		size = MaxPageSize
	}
	return Page{Number: number, Size: size}
}

func (p Page) Offset() int { return (p.Number - 1) * p.Size }

type PageResult[T any] struct {
	Content     []T   `json:"content"`
	CurrentPage int   `json:"current_page"`
	TotalPages  int   `json:"total_pages"`
	TotalItems  int64 `json:"total_items"`
	HasNext     bool  `json:"has_next"`
	HasPrevious bool  `json:"has_previous"`
}

func NewPageResult[T any](content []T, p Page, total int64) PageResult[T] {
	if content == nil {
		content = []T{}
	}
	pages := int((total + int64(p.Size) - 1) / int64(p.Size))
	return PageResult[T]{
		Content:     content,
		CurrentPage: p.Number,
		TotalPages:  pages,
		TotalItems:  total,
		HasNext:     p.Number < pages,
		HasPrevious: p.Number > 1,
	}
}
