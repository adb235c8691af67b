package graph

import (
	"context"
	"encoding/json"
)

// PageFetcher retrieves the page behind a continuation URL.
type PageFetcher func(ctx context.Context, pageURL string) (*RawPage, error)

// Cursor walks a paginated collection item by item, fetching the next page
// only once the current one is used up. Iterate like sql.Rows:
//
//	for cursor.Next(ctx) {
//	    item := cursor.Item()
//	    ...
//	}
//	err := cursor.Err()
//
// A cursor is finite and non-restartable: once exhausted it stays exhausted,
// and once a page fetch fails it stays failed.
type Cursor struct {
	fetch   PageFetcher
	items   []json.RawMessage
	index   int
	nextURL string
	current json.RawMessage
	done    bool
	err     error
}

func NewCursor(first *RawPage, fetch PageFetcher) *Cursor {
	return &Cursor{
		fetch:   fetch,
		items:   first.Data,
		nextURL: first.Next,
	}
}

// Next advances the cursor, fetching further pages as needed. It returns
// false when the collection is exhausted or a fetch failed; check Err to
// tell the two apart. An empty page mid-stream does not end the walk as long
// as a continuation URL remains.
func (c *Cursor) Next(ctx context.Context) bool {
	if c.done || c.err != nil {
		return false
	}
	for c.index == len(c.items) {
		if c.nextURL == "" {
			c.done = true
			return false
		}
		page, err := c.fetch(ctx, c.nextURL)
		if err != nil {
			c.err = err
			return false
		}
		c.items = page.Data
		c.index = 0
		c.nextURL = page.Next
	}
	c.current = c.items[c.index]
	c.index++
	return true
}

// Item returns the item the last successful Next call advanced to.
func (c *Cursor) Item() json.RawMessage {
	return c.current
}

func (c *Cursor) Err() error {
	return c.err
}
