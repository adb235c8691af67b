package graph

import (
	"errors"
	"net/url"
	"strconv"
	"strings"
	"time"
)

// SchemaCutoff is the historical boundary before which the source API
// rejects the full field list, so requests for older content must use the
// reduced schema. Crawl windows never straddle it.
var SchemaCutoff = time.Date(2015, time.July, 1, 0, 0, 0, 0, time.UTC)

type Schema int

const (
	SchemaFull Schema = iota
	SchemaReduced
)

// PostFields returns the field list requested for feed items.
func (s Schema) PostFields() []string {
	if s == SchemaReduced {
		return []string{"id", "from", "message", "created_time", "updated_time"}
	}
	return []string{"id", "type", "from", "message", "link", "created_time", "updated_time", "attachments"}
}

// CommentFields returns the field list requested for comment items.
func (s Schema) CommentFields() []string {
	if s == SchemaReduced {
		return []string{"id", "from", "message", "created_time", "updated_time", "comment_count"}
	}
	return []string{"id", "from", "message", "created_time", "updated_time", "attachment", "comment_count"}
}

type Mode int

const (
	// ModeInitial is the full first crawl: everything the source has,
	// skipping ids already captured.
	ModeInitial Mode = iota
	// ModeSync picks up items newer than the last sync point.
	ModeSync
	// ModeResync is ModeSync but purges already-captured ids inside the
	// window before refetching, so edits are picked up.
	ModeResync
)

// Overwrite reports whether already-present ids inside the window should be
// purged and refetched.
func (m Mode) Overwrite() bool {
	return m == ModeResync
}

// Window bounds a crawl request in time. A zero bound means unbounded on
// that side.
type Window struct {
	Since time.Time
	Until time.Time
}

// FetchRequest asks for one sweep over a collection's feed: a single schema
// over a window that lies entirely on one side of the schema cutoff.
type FetchRequest struct {
	Collection string
	Schema     Schema
	Window     Window
}

// Params renders the request's query parameters, fields plus the window
// bounds as unix timestamps.
func (r FetchRequest) Params() url.Values {
	params := url.Values{}
	params.Set("fields", strings.Join(r.Schema.PostFields(), ","))
	if !r.Window.Since.IsZero() {
		params.Set("since", strconv.FormatInt(r.Window.Since.Unix(), 10))
	}
	if !r.Window.Until.IsZero() {
		params.Set("until", strconv.FormatInt(r.Window.Until.Unix(), 10))
	}
	return params
}

var ErrNoSyncPoint = errors.New("no prior sync point for collection")

// Planner decides which schema and window to request for a crawl. The zero
// value uses SchemaCutoff.
type Planner struct {
	Cutoff time.Time
}

func (p Planner) cutoff() time.Time {
	if p.Cutoff.IsZero() {
		return SchemaCutoff
	}
	return p.Cutoff
}

// Plan produces the fetch requests that cover the collection for the given
// mode without gaps. lastSync is required for ModeSync and ModeResync and
// ignored for ModeInitial. Requests whose window would cross the schema
// cutoff are split at the cutoff instead.
func (p Planner) Plan(collection string, mode Mode, lastSync time.Time) ([]FetchRequest, error) {
	cutoff := p.cutoff()
	switch mode {
	case ModeInitial:
		return []FetchRequest{
			{Collection: collection, Schema: SchemaFull, Window: Window{Since: cutoff}},
			{Collection: collection, Schema: SchemaReduced, Window: Window{Until: cutoff}},
		}, nil
	case ModeSync, ModeResync:
		if lastSync.IsZero() {
			return nil, ErrNoSyncPoint
		}
		if lastSync.Before(cutoff) {
			return []FetchRequest{
				{Collection: collection, Schema: SchemaFull, Window: Window{Since: cutoff}},
				{Collection: collection, Schema: SchemaReduced, Window: Window{Since: lastSync, Until: cutoff}},
			}, nil
		}
		return []FetchRequest{
			{Collection: collection, Schema: SchemaFull, Window: Window{Since: lastSync}},
		}, nil
	}
	return nil, errors.New("unknown crawl mode")
}
