package dto

// Pagination describes the page returned by a list request.
type Pagination struct {
	ItemCount   int64 `json:"itemCount"`
	Offset      int   `json:"offset"`
	PerPage     int   `json:"perPage"`
	Page        int   `json:"page"`
	Next        *int  `json:"next"`
	Prev        *int  `json:"prev"`
	HasNextPage bool  `json:"hasNextPage"`
	HasPrevPage bool  `json:"hasPrevPage"`
	PageCount   int   `json:"pageCount"`
}

// NewPagination builds the page descriptor for itemCount rows split into pages of perPage.
// A non-positive perPage describes a single page holding every row.
func NewPagination(itemCount int64, page, perPage int) Pagination {
	if perPage <= 0 || page <= 0 {
		pageCount := 0
		if itemCount > 0 {
			pageCount = 1
		}
		return Pagination{ItemCount: itemCount, PerPage: int(itemCount), Page: 1, PageCount: pageCount}
	}

	pageCount := int((itemCount + int64(perPage) - 1) / int64(perPage))
	p := Pagination{
		ItemCount:   itemCount,
		Offset:      (page - 1) * perPage,
		PerPage:     perPage,
		Page:        page,
		HasNextPage: page < pageCount,
		HasPrevPage: page > 1,
		PageCount:   pageCount,
	}
	if p.HasNextPage {
		next := page + 1
		p.Next = &next
	}
	if p.HasPrevPage {
		prev := page - 1
		p.Prev = &prev
	}
	return p
}

// ListResult is the body of GET /data-profile.
type ListResult[T any] struct {
	Data       []T        `json:"data"`
	Pagination Pagination `json:"pagination"`
}
