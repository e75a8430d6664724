package models

const (
	DefaultPageSize = 50
	MaxPageSize     = 100
)

// Paginacion normalizes page/page_size query params.
type Paginacion struct {
	Page     int `json:"page"`
	PageSize int `json:"page_size"`
}

func NewPaginacion(page int, pageSize int) Paginacion {
	if page < 1 {
		page = 1
	}
	if pageSize <= 0 {
		pageSize = DefaultPageSize
	}
	if pageSize > MaxPageSize {
		pageSize = MaxPageSize
	}
	return Paginacion{Page: page, PageSize: pageSize}
}

func (p Paginacion) Offset() int {
	return (p.Page - 1) * p.PageSize
}

// PageResult is the envelope every paginated listing returns.
type PageResult[T any] struct {
	Items    []*T  `json:"items"`
	Total    int64 `json:"total"`
	Page     int   `json:"page"`
	PageSize int   `json:"page_size"`
}
