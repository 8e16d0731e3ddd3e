package dataverse

import (
	"net/url"
	"strconv"
	"strings"
)

// QueryOptions shapes an OData collection query. The zero value lists every
// row with all columns.
type QueryOptions struct {
	// Select limits the columns returned.
	Select []string

	// Filter is an OData $filter expression.
	Filter string

	// OrderBy lists sort clauses, e.g. "name asc" or "createdon desc".
	OrderBy []string

	// Expand is an OData $expand expression for related rows.
	Expand string

	// Top caps the total number of rows yielded across all pages.
	// Zero means unbounded.
	Top int

	// PageSize requests a server page size via Prefer: odata.maxpagesize.
	// Zero uses the client default.
	PageSize int
}

// NewQueryOptions creates empty query options.
func NewQueryOptions() *QueryOptions {
	return &QueryOptions{}
}

// WithSelect sets the columns to return.
func (o *QueryOptions) WithSelect(columns ...string) *QueryOptions {
	o.Select = append(o.Select, columns...)

	return o
}

// WithFilter sets the $filter expression.
func (o *QueryOptions) WithFilter(filter string) *QueryOptions {
	o.Filter = filter

	return o
}

// WithOrderBy appends sort clauses.
func (o *QueryOptions) WithOrderBy(clauses ...string) *QueryOptions {
	o.OrderBy = append(o.OrderBy, clauses...)

	return o
}

// WithExpand sets the $expand expression.
func (o *QueryOptions) WithExpand(expand string) *QueryOptions {
	o.Expand = expand

	return o
}

// WithTop caps the total rows yielded.
func (o *QueryOptions) WithTop(top int) *QueryOptions {
	o.Top = top

	return o
}

// WithPageSize requests a server page size.
func (o *QueryOptions) WithPageSize(size int) *QueryOptions {
	o.PageSize = size

	return o
}

// ToValues converts the options to OData query parameters. $top is only sent
// on the first request of a paged query; continuation links already carry the
// server's own state and must not be amended.
func (o *QueryOptions) ToValues() url.Values {
	values := url.Values{}

	if o == nil {
		return values
	}

	if len(o.Select) > 0 {
		values.Set("$select", strings.Join(o.Select, ","))
	}

	if o.Filter != "" {
		values.Set("$filter", o.Filter)
	}

	if len(o.OrderBy) > 0 {
		values.Set("$orderby", strings.Join(o.OrderBy, ","))
	}

	if o.Expand != "" {
		values.Set("$expand", o.Expand)
	}

	if o.Top > 0 {
		values.Set("$top", strconv.Itoa(o.Top))
	}

	return values
}
