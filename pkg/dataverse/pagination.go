package dataverse

import (
	"context"
	"errors"
	"fmt"
)

// PageRequest describes one page fetch. The first request of a query carries
// the table and options; follow-up requests carry the opaque NextLink.
type PageRequest struct {
	// Table is the logical table name for the first request.
	Table string

	// Options shape the first request. Ignored once NextLink is set.
	Options *QueryOptions

	// NextLink is the continuation URL from the previous page.
	NextLink string

	// PageSize is the Prefer: odata.maxpagesize hint for every request.
	PageSize int
}

// PageFetcher fetches a single page of rows.
type PageFetcher interface {
	FetchPage(ctx context.Context, req *PageRequest) (*Page, error)
}

// RowIterator lazily walks a collection query one page at a time. Pages are
// requested on demand, at most one page is buffered, and empty pages are
// skipped transparently. Iterators are not restartable and not safe for
// concurrent use.
type RowIterator struct {
	ctx      context.Context
	fetcher  PageFetcher
	table    string
	options  *QueryOptions
	pageSize int

	buffer   []Record
	position int
	nextLink string
	started  bool
	done     bool
	yielded  int
	top      int
}

// NewRowIterator creates an iterator over the given table query.
func NewRowIterator(ctx context.Context, fetcher PageFetcher, table string, options *QueryOptions, pageSize int) *RowIterator {
	top := 0
	if options != nil {
		top = options.Top

		if options.PageSize > 0 {
			pageSize = options.PageSize
		}
	}

	// No point asking for pages larger than the row budget.
	if top > 0 && (pageSize == 0 || pageSize > top) {
		pageSize = top
	}

	return &RowIterator{
		ctx:      ctx,
		fetcher:  fetcher,
		table:    table,
		options:  options,
		pageSize: pageSize,
		top:      top,
	}
}

// HasNext reports whether another row may be available. It does not perform
// network requests; a true result can still be followed by an empty fetch.
func (it *RowIterator) HasNext() bool {
	if it.done {
		return false
	}

	if it.top > 0 && it.yielded >= it.top {
		return false
	}

	return it.position < len(it.buffer) || it.nextLink != "" || !it.started
}

// Next returns the next row, fetching pages as needed. It returns
// ErrNoMoreRows once the query is exhausted.
func (it *RowIterator) Next() (Record, error) {
	if it.position >= len(it.buffer) {
		err := it.fetchPage()
		if err != nil {
			return nil, err
		}
	}

	if it.done && it.position >= len(it.buffer) {
		return nil, ErrNoMoreRows
	}

	row := it.buffer[it.position]
	it.position++
	it.yielded++

	if it.top > 0 && it.yielded >= it.top {
		it.stop()
	}

	return row, nil
}

// NextPage returns the remaining buffered rows, fetching a page first when
// the buffer is exhausted. It returns ErrNoMoreRows once the query ends.
func (it *RowIterator) NextPage() ([]Record, error) {
	if it.position >= len(it.buffer) {
		err := it.fetchPage()
		if err != nil {
			return nil, err
		}
	}

	if it.done && it.position >= len(it.buffer) {
		return nil, ErrNoMoreRows
	}

	rows := it.buffer[it.position:]
	it.position = len(it.buffer)
	it.yielded += len(rows)

	if it.top > 0 && it.yielded >= it.top {
		it.stop()
	}

	return rows, nil
}

// All drains the iterator and returns every remaining row.
func (it *RowIterator) All() ([]Record, error) {
	var all []Record

	for it.HasNext() {
		rows, err := it.NextPage()
		if err != nil {
			if errors.Is(err, ErrNoMoreRows) {
				break
			}

			return nil, err
		}

		all = append(all, rows...)
	}

	return all, nil
}

// ForEach applies fn to every remaining row, stopping at the first error.
func (it *RowIterator) ForEach(fn func(Record) error) error {
	for it.HasNext() {
		rows, err := it.NextPage()
		if err != nil {
			if errors.Is(err, ErrNoMoreRows) {
				return nil
			}

			return err
		}

		for _, row := range rows {
			err := fn(row)
			if err != nil {
				return err
			}
		}
	}

	return nil
}

// fetchPage pulls pages until one yields rows or the query ends. Rows beyond
// the remaining budget are trimmed so a partial final page never overshoots.
func (it *RowIterator) fetchPage() error {
	for {
		if it.done {
			return nil
		}

		var req *PageRequest

		switch {
		case !it.started:
			req = &PageRequest{Table: it.table, Options: it.options, PageSize: it.pageSize}
		case it.nextLink != "":
			req = &PageRequest{NextLink: it.nextLink, PageSize: it.pageSize}
		default:
			it.stop()

			return nil
		}

		page, err := it.fetcher.FetchPage(it.ctx, req)
		if err != nil {
			it.stop()

			return fmt.Errorf("fetching page: %w", err)
		}

		it.started = true
		it.nextLink = page.NextLink

		rows := page.Rows
		if it.top > 0 {
			remaining := it.top - it.yielded
			if len(rows) > remaining {
				rows = rows[:remaining]
			}
		}

		if len(rows) > 0 {
			it.buffer = rows
			it.position = 0

			return nil
		}

		if it.nextLink == "" {
			it.stop()

			return nil
		}
	}
}

// stop ends iteration and drops the continuation so no further requests are
// issued.
func (it *RowIterator) stop() {
	it.done = true
	it.nextLink = ""
}
