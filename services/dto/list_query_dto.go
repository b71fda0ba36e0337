package dto

import (
	"encoding/json"
	"fmt"
	"slices"
	"strings"
)

// Sort orders accepted in sort_by.
const (
	SortAsc  = "asc"
	SortDesc = "desc"
)

// Default ordering of the profile list.
const (
	DefaultSortColumn = "last_sync_time"
	DefaultSortOrder  = SortDesc
)

// SortableColumns lists the data_profile columns a client may order by.
var SortableColumns = []string{
	"profile_name",
	"table_name",
	"created_by",
	"updated_by",
	"created_at",
	"updated_at",
	"last_sync_time",
}

// ListProfilesQuery is the query string of GET /data-profile.
type ListProfilesQuery struct {
	SearchTerm string `form:"search_term" json:"search_term,omitempty"`
	Limit      *int   `form:"limit" json:"limit,omitempty" validate:"omitempty,min=1"`
	Page       *int   `form:"page" json:"page,omitempty" validate:"omitempty,min=1"`
	SortBy     string `form:"sort_by" json:"sort_by,omitempty" validate:"omitempty,sort_by"`
}

// CacheKey renders the query in a stable form for result caching.
func (q ListProfilesQuery) CacheKey() string {
	b, err := json.Marshal(q)
	if err != nil {
		return ""
	}
	return string(b)
}

// SortSpec is the decoded sort_by parameter, e.g. {"column":"profile_name","order":"asc"}.
type SortSpec struct {
	Column string `json:"column"`
	Order  string `json:"order"`
}

// ParseSortBy decodes a sort_by value. It does not check the column against SortableColumns.
func ParseSortBy(raw string) (SortSpec, error) {
	var spec SortSpec
	if err := json.Unmarshal([]byte(raw), &spec); err != nil {
		return SortSpec{}, fmt.Errorf("invalid sort_by: %w", err)
	}
	spec.Order = strings.ToLower(spec.Order)
	if spec.Column == "" || (spec.Order != SortAsc && spec.Order != SortDesc) {
		return SortSpec{}, fmt.Errorf("invalid sort_by: %q", raw)
	}
	return spec, nil
}

// IsSortable reports whether column may appear in ORDER BY.
func IsSortable(column string) bool {
	return slices.Contains(SortableColumns, column)
}

// ListFilter is the repository-facing form of a list request.
type ListFilter struct {
	SearchTerm string
	Limit      int
	Page       int
	SortColumn string
	SortOrder  string
}

// Paginated reports whether both limit and page were supplied.
func (f ListFilter) Paginated() bool {
	return f.Limit > 0 && f.Page > 0
}

// Offset is the number of rows skipped for the requested page.
func (f ListFilter) Offset() int {
	if !f.Paginated() {
		return 0
	}
	return (f.Page - 1) * f.Limit
}

// ListFilterBuilder provides a builder pattern for constructing ListFilter instances.
type ListFilterBuilder struct {
	filter *ListFilter
}

// NewListFilterBuilder creates a builder preset with the default ordering.
func NewListFilterBuilder() *ListFilterBuilder {
	return &ListFilterBuilder{
		filter: &ListFilter{SortColumn: DefaultSortColumn, SortOrder: DefaultSortOrder},
	}
}

// SetSearchTerm sets the case-insensitive substring filter.
func (b *ListFilterBuilder) SetSearchTerm(term string) *ListFilterBuilder {
	b.filter.SearchTerm = strings.TrimSpace(term)
	return b
}

// SetPagination sets limit and page. Either being nil disables pagination.
func (b *ListFilterBuilder) SetPagination(limit, page *int) *ListFilterBuilder {
	if limit == nil || page == nil {
		b.filter.Limit, b.filter.Page = 0, 0
		return b
	}
	b.filter.Limit, b.filter.Page = *limit, *page
	return b
}

// SetSort overrides the default ordering.
func (b *ListFilterBuilder) SetSort(spec SortSpec) *ListFilterBuilder {
	if spec.Column == "" {
		return b
	}
	b.filter.SortColumn = spec.Column
	b.filter.SortOrder = spec.Order
	return b
}

// Build constructs and returns the final ListFilter instance.
func (b *ListFilterBuilder) Build() ListFilter {
	return *b.filter
}
