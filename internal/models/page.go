package models

const (
	DefaultPageSize = 10
	MaxPageSize     = 100
)

// PageRequest selects one page of a list
type PageRequest struct {
	PageNo   int
	PageSize int
}

// Normalize applies defaults and clamps the page size
func (p PageRequest) Normalize() PageRequest {
	if p.PageNo < 1 {
		p.PageNo = 1
	}
	if p.PageSize < 1 {
		p.PageSize = DefaultPageSize
	}
	if p.PageSize > MaxPageSize {
		p.PageSize = MaxPageSize
	}
	return p
}

// Offset returns the number of rows before the page
func (p PageRequest) Offset() int {
	n := p.Normalize()
	return (n.PageNo - 1) * n.PageSize
}

// Page is one page of list results
type Page[T any] struct {
	PageNo   int  `json:"page_no"`
	PageSize int  `json:"page_size"`
	Total    int  `json:"total"`
	HasNext  bool `json:"has_next"`
	Items    []T  `json:"items"`
}

// NewPage builds a page from the rows found and the total match count
func NewPage[T any](req PageRequest, total int, items []T) Page[T] {
	req = req.Normalize()
	if items == nil {
		items = []T{}
	}
	return Page[T]{
		PageNo:   req.PageNo,
		PageSize: req.PageSize,
		Total:    total,
		HasNext:  req.Offset()+len(items) < total,
		Items:    items,
	}
}
