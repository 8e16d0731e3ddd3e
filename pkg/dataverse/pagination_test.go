package dataverse_test

import (
	"context"
	"errors"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/powerplatform-go/dataverse/pkg/dataverse"
)

var errFetchFailed = errors.New("fetch failed")

// fakeFetcher replays a scripted sequence of pages and records every request
// it receives.
type fakeFetcher struct {
	pages    []*dataverse.Page
	requests []*dataverse.PageRequest
	err      error
}

func (f *fakeFetcher) FetchPage(_ context.Context, req *dataverse.PageRequest) (*dataverse.Page, error) {
	f.requests = append(f.requests, req)

	if f.err != nil {
		return nil, f.err
	}

	index := len(f.requests) - 1
	if index >= len(f.pages) {
		return &dataverse.Page{}, nil
	}

	return f.pages[index], nil
}

// makePages builds a chain of pages with the given row counts, linked by
// synthetic continuation URLs.
func makePages(counts ...int) []*dataverse.Page {
	pages := make([]*dataverse.Page, 0, len(counts))
	row := 0

	for i, count := range counts {
		page := &dataverse.Page{}
		for range count {
			page.Rows = append(page.Rows, dataverse.Record{"accountid": fmt.Sprintf("id-%d", row)})
			row++
		}

		if i < len(counts)-1 {
			page.NextLink = fmt.Sprintf("https://org.example.com/api/data/v9.2/accounts?page=%d", i+2)
		}

		pages = append(pages, page)
	}

	return pages
}

func TestRowIterator_Next(t *testing.T) {
	t.Parallel()

	fetcher := &fakeFetcher{pages: makePages(2, 2, 1)}
	iterator := dataverse.NewRowIterator(context.Background(), fetcher, "account", nil, 0)

	var ids []string

	for iterator.HasNext() {
		row, err := iterator.Next()
		if errors.Is(err, dataverse.ErrNoMoreRows) {
			break
		}

		require.NoError(t, err)
		ids = append(ids, row.ID("account"))
	}

	assert.Equal(t, []string{"id-0", "id-1", "id-2", "id-3", "id-4"}, ids)

	// Exhausted iterators keep returning ErrNoMoreRows.
	_, err := iterator.Next()
	assert.ErrorIs(t, err, dataverse.ErrNoMoreRows)
}

func TestRowIterator_FetchesLazily(t *testing.T) {
	t.Parallel()

	fetcher := &fakeFetcher{pages: makePages(2, 2)}
	iterator := dataverse.NewRowIterator(context.Background(), fetcher, "account", nil, 0)

	// Construction performs no requests.
	assert.Empty(t, fetcher.requests)

	_, err := iterator.Next()
	require.NoError(t, err)
	assert.Len(t, fetcher.requests, 1)

	// The second row comes from the buffered page.
	_, err = iterator.Next()
	require.NoError(t, err)
	assert.Len(t, fetcher.requests, 1)

	// The third row needs the next page.
	_, err = iterator.Next()
	require.NoError(t, err)
	assert.Len(t, fetcher.requests, 2)
}

func TestRowIterator_ContinuationRequests(t *testing.T) {
	t.Parallel()

	fetcher := &fakeFetcher{pages: makePages(1, 1)}
	iterator := dataverse.NewRowIterator(context.Background(), fetcher, "account",
		dataverse.NewQueryOptions().WithFilter("statecode eq 0"), 100)

	_, err := iterator.All()
	require.NoError(t, err)
	require.Len(t, fetcher.requests, 2)

	first := fetcher.requests[0]
	assert.Equal(t, "account", first.Table)
	assert.Equal(t, "statecode eq 0", first.Options.Filter)
	assert.Empty(t, first.NextLink)
	assert.Equal(t, 100, first.PageSize)

	second := fetcher.requests[1]
	assert.Empty(t, second.Table)
	assert.Contains(t, second.NextLink, "page=2")
	assert.Equal(t, 100, second.PageSize)
}

func TestRowIterator_TopStopsEarly(t *testing.T) {
	t.Parallel()

	fetcher := &fakeFetcher{pages: makePages(2, 2, 2, 2)}
	iterator := dataverse.NewRowIterator(context.Background(), fetcher, "account",
		dataverse.NewQueryOptions().WithTop(5), 2)

	all, err := iterator.All()
	require.NoError(t, err)
	require.Len(t, all, 5)
	assert.Equal(t, "id-4", all[4].ID("account"))

	// The budget filled on the third page, so the fourth is never fetched.
	assert.Len(t, fetcher.requests, 3)
	assert.False(t, iterator.HasNext())
}

func TestRowIterator_TopClampsPageSize(t *testing.T) {
	t.Parallel()

	fetcher := &fakeFetcher{pages: makePages(3)}
	iterator := dataverse.NewRowIterator(context.Background(), fetcher, "account",
		dataverse.NewQueryOptions().WithTop(3), 5000)

	_, err := iterator.All()
	require.NoError(t, err)
	require.Len(t, fetcher.requests, 1)
	assert.Equal(t, 3, fetcher.requests[0].PageSize)
}

func TestRowIterator_SkipsEmptyPages(t *testing.T) {
	t.Parallel()

	fetcher := &fakeFetcher{pages: makePages(2, 0, 0, 1)}
	iterator := dataverse.NewRowIterator(context.Background(), fetcher, "account", nil, 0)

	all, err := iterator.All()
	require.NoError(t, err)
	assert.Len(t, all, 3)
	assert.Len(t, fetcher.requests, 4)
}

func TestRowIterator_EmptyResult(t *testing.T) {
	t.Parallel()

	fetcher := &fakeFetcher{pages: makePages(0)}
	iterator := dataverse.NewRowIterator(context.Background(), fetcher, "account", nil, 0)

	all, err := iterator.All()
	require.NoError(t, err)
	assert.Empty(t, all)

	_, err = iterator.Next()
	assert.ErrorIs(t, err, dataverse.ErrNoMoreRows)
}

func TestRowIterator_NextPage(t *testing.T) {
	t.Parallel()

	fetcher := &fakeFetcher{pages: makePages(2, 1)}
	iterator := dataverse.NewRowIterator(context.Background(), fetcher, "account", nil, 0)

	first, err := iterator.NextPage()
	require.NoError(t, err)
	assert.Len(t, first, 2)

	second, err := iterator.NextPage()
	require.NoError(t, err)
	assert.Len(t, second, 1)

	_, err = iterator.NextPage()
	assert.ErrorIs(t, err, dataverse.ErrNoMoreRows)
}

func TestRowIterator_ForEach(t *testing.T) {
	t.Parallel()

	t.Run("visits every row", func(t *testing.T) {
		t.Parallel()

		fetcher := &fakeFetcher{pages: makePages(2, 2)}
		iterator := dataverse.NewRowIterator(context.Background(), fetcher, "account", nil, 0)

		var visited int

		err := iterator.ForEach(func(dataverse.Record) error {
			visited++

			return nil
		})
		require.NoError(t, err)
		assert.Equal(t, 4, visited)
	})

	t.Run("stops at the first callback error", func(t *testing.T) {
		t.Parallel()

		fetcher := &fakeFetcher{pages: makePages(2, 2)}
		iterator := dataverse.NewRowIterator(context.Background(), fetcher, "account", nil, 0)

		var visited int

		err := iterator.ForEach(func(dataverse.Record) error {
			visited++
			if visited == 2 {
				return errFetchFailed
			}

			return nil
		})
		require.Error(t, err)
		assert.ErrorIs(t, err, errFetchFailed)
		assert.Equal(t, 2, visited)
	})
}

func TestRowIterator_FetchErrorStopsIteration(t *testing.T) {
	t.Parallel()

	fetcher := &fakeFetcher{err: errFetchFailed}
	iterator := dataverse.NewRowIterator(context.Background(), fetcher, "account", nil, 0)

	_, err := iterator.Next()
	require.Error(t, err)
	assert.ErrorIs(t, err, errFetchFailed)
	assert.False(t, iterator.HasNext())
}
