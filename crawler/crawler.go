package crawler

import (
	"context"
	"encoding/json"
	"fmt"
	"log"
	"sync"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/zvonler/groupmig/database"
	"github.com/zvonler/groupmig/graph"
)

// Crawler stitches the planner, the tree fetcher and the sync store into one
// run over a source collection.
type Crawler struct {
	Fetcher     *graph.TreeFetcher
	Planner     graph.Planner
	Store       *database.SyncStore
	Media       database.BlobFetcher
	Parallelism int
}

func New(client *graph.Client, store *database.SyncStore, media database.BlobFetcher) *Crawler {
	return &Crawler{
		Fetcher:     graph.NewTreeFetcher(client),
		Store:       store,
		Media:       media,
		Parallelism: 1,
	}
}

// Run executes one crawl of the collection in the given mode. Failures of
// individual root subtrees are reported with their ids and do not stop the
// remaining roots; the sync point advances only when every root succeeded.
func (c *Crawler) Run(ctx context.Context, collection string, mode graph.Mode) error {
	var lastSync time.Time
	if mode != graph.ModeInitial {
		var err error
		if lastSync, err = c.Store.SyncPoint(collection); err != nil {
			return err
		}
	}
	requests, err := c.Planner.Plan(collection, mode, lastSync)
	if err != nil {
		return err
	}

	started := time.Now()
	var mu sync.Mutex
	var failed []string

	for _, req := range requests {
		fmt.Printf("Crawling %s (%v..%v)\n", req.Collection, req.Window.Since, req.Window.Until)
		cursor, err := c.Fetcher.Roots(ctx, req)
		if err != nil {
			return fmt.Errorf("feed of %s: %w", req.Collection, err)
		}

		g := new(errgroup.Group)
		g.SetLimit(max(1, c.Parallelism))
		for cursor.Next(ctx) {
			raw := cursor.Item()
			schema := req.Schema
			g.Go(func() error {
				if id, ok := c.processRoot(ctx, raw, schema, mode); !ok {
					mu.Lock()
					failed = append(failed, id)
					mu.Unlock()
				}
				return nil
			})
		}
		if err := g.Wait(); err != nil {
			return err
		}
		if err := cursor.Err(); err != nil {
			return fmt.Errorf("feed of %s: %w", req.Collection, err)
		}
	}

	if len(failed) > 0 {
		return fmt.Errorf("failed roots (re-run with these ids): %v", failed)
	}
	c.Store.SetSyncPoint(collection, started)
	return nil
}

// RunOne crawls a single root id, admitting it under the mode's overwrite
// policy. Used to retry roots a previous run reported as failed.
func (c *Crawler) RunOne(ctx context.Context, id string, schema graph.Schema, mode graph.Mode) error {
	unlock := c.Store.LockID(id)
	defer unlock()

	admission, err := c.Store.Admit(id, mode.Overwrite())
	if err != nil {
		return err
	}
	if admission == database.SkipAlreadyPresent {
		return nil
	}
	node, err := c.Fetcher.FetchTree(ctx, id, schema)
	if err != nil {
		return err
	}
	return c.Store.Materialize(node, c.Media)
}

// processRoot handles one raw feed item end to end. It returns the root id
// and whether the root was handled without error.
func (c *Crawler) processRoot(ctx context.Context, raw json.RawMessage, schema graph.Schema, mode graph.Mode) (string, bool) {
	var ident struct {
		ID string `json:"id"`
	}
	if err := json.Unmarshal(raw, &ident); err != nil || ident.ID == "" {
		log.Printf("Skipping feed item without id: %v", err)
		return "?", false
	}

	unlock := c.Store.LockID(ident.ID)
	defer unlock()

	admission, err := c.Store.Admit(ident.ID, mode.Overwrite())
	if err != nil {
		log.Printf("Failed root %s: %v", ident.ID, err)
		return ident.ID, false
	}
	if admission == database.SkipAlreadyPresent {
		return ident.ID, true
	}

	node, err := c.Fetcher.BuildTree(ctx, raw, schema)
	if err != nil {
		log.Printf("Failed root %s: %v", ident.ID, err)
		return ident.ID, false
	}
	if err := c.Store.Materialize(node, c.Media); err != nil {
		log.Printf("Failed root %s: %v", ident.ID, err)
		return ident.ID, false
	}
	return ident.ID, true
}
