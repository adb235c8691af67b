package database

import (
	"database/sql"
	"encoding/json"
	"fmt"
	"log"
	"os"
	"path/filepath"
	"sync"
	"time"

	_ "github.com/mattn/go-sqlite3"
	"github.com/zvonler/groupmig/model"
	"github.com/zvonler/groupmig/utils"
)

// Admission is the store's verdict on a node id about to be crawled.
type Admission int

const (
	// Proceed means the id is not captured yet (or was just purged) and
	// the caller should fetch and materialize it.
	Proceed Admission = iota
	// SkipAlreadyPresent means the id's tree is already materialized and
	// the caller should not refetch it.
	SkipAlreadyPresent
)

// BlobFetcher materializes a remote binary into destDir and returns the
// local path.
type BlobFetcher interface {
	Fetch(url, destDir string) (string, error)
}

// SyncStore is the idempotent persistence layer for crawled trees. The node
// table keyed by root id is the sole durable idempotency signal; each row
// holds the fully materialized tree as JSON, with attachment files living
// under ResourcesDir/<id>/.
type SyncStore struct {
	Filename     string
	ResourcesDir string
	DB           *sql.DB

	insertNodeStmt     string
	nodePresentStmt    string
	setSyncPointStmt   string
	setDestinationStmt string

	mu      sync.Mutex
	idLocks map[string]*sync.Mutex
}

func OpenSyncStore(path, resourcesDir string) (ss *SyncStore, err error) {
	if err = os.MkdirAll(resourcesDir, 0755); err != nil {
		return
	}
	existing, err := utils.PathExists(path)
	if err != nil {
		return
	}
	db, err := sql.Open("sqlite3", path)
	if err != nil {
		return
	}
	ss = new(SyncStore)
	ss.Filename = path
	ss.ResourcesDir = resourcesDir
	ss.DB = db
	ss.idLocks = make(map[string]*sync.Mutex)
	if !existing {
		ss.initTables()
	}
	ss.initSQLStatements()
	return
}

func (ss *SyncStore) Close() {
	ss.DB.Close()
}

// LockID serializes admit/purge/materialize for one id across goroutines.
// The returned func releases the lock.
func (ss *SyncStore) LockID(id string) func() {
	ss.mu.Lock()
	lock, ok := ss.idLocks[id]
	if !ok {
		lock = new(sync.Mutex)
		ss.idLocks[id] = lock
	}
	ss.mu.Unlock()
	lock.Lock()
	return lock.Unlock
}

type RowsReceiver func(*sql.Rows) bool

func (ss *SyncStore) ForEachRowOrPanic(receiver RowsReceiver, stmt string, params ...any) {
	if rows, err := ss.DB.Query(stmt, params...); err == nil {
		defer rows.Close()
		for rows.Next() {
			if !receiver(rows) {
				break
			}
		}
	} else {
		panic(err)
	}
}

func (ss *SyncStore) ExecOrPanic(stmt string, params ...any) {
	if _, err := ss.DB.Exec(stmt, params...); err != nil {
		panic(err)
	}
}

// Contains reports whether the id's tree has been materialized.
func (ss *SyncStore) Contains(id string) (present bool, err error) {
	rows, err := ss.DB.Query(ss.nodePresentStmt, id)
	if err != nil {
		return
	}
	defer rows.Close()
	present = rows.Next()
	return
}

// Admit decides whether the caller should crawl the id. With overwrite set,
// an already-present id is purged first and the caller proceeds, so the
// freshest copy replaces the old one; without it, present ids are skipped.
func (ss *SyncStore) Admit(id string, overwrite bool) (Admission, error) {
	present, err := ss.Contains(id)
	if err != nil {
		return SkipAlreadyPresent, err
	}
	if !present {
		return Proceed, nil
	}
	if !overwrite {
		return SkipAlreadyPresent, nil
	}
	if err := ss.Purge(id); err != nil {
		return SkipAlreadyPresent, err
	}
	return Proceed, nil
}

// Purge removes the id's row before its resource files, so a crash
// mid-replacement reads as "absent" rather than as a stale copy.
func (ss *SyncStore) Purge(id string) error {
	if _, err := ss.DB.Exec("DELETE FROM node WHERE id = ?", id); err != nil {
		return err
	}
	return os.RemoveAll(ss.nodeDir(id))
}

// Materialize resolves every remote attachment in the tree to a local file
// and durably records the completed tree keyed by its root id. A failing
// download does not abort the rest of the node: the ref keeps its remote URL
// and the row records how many refs are unresolved.
func (ss *SyncStore) Materialize(node *model.ContentNode, fetcher BlobFetcher) error {
	dir := ss.nodeDir(node.ID)
	if err := os.MkdirAll(dir, 0755); err != nil {
		return err
	}

	node.Walk(func(n *model.ContentNode) {
		for i := range n.Attachments {
			ref := &n.Attachments[i]
			if ref.Resolved() {
				continue
			}
			local, err := fetcher.Fetch(ref.RemoteURL, dir)
			if err != nil {
				log.Printf("Failed to fetch attachment %s of %s: %v", ref.RemoteURL, node.ID, err)
				continue
			}
			ref.LocalPath = local
		}
	})

	tree, err := json.Marshal(node)
	if err != nil {
		return err
	}
	_, err = ss.DB.Exec(ss.insertNodeStmt,
		node.ID, node.Author.Name, node.CreatedAt.Unix(), node.UpdatedAt.Unix(),
		string(tree), node.UnresolvedAttachments(), time.Now().Unix())
	return err
}

// Tree reconstructs the materialized tree recorded for the id.
func (ss *SyncStore) Tree(id string) (node *model.ContentNode, err error) {
	rows, err := ss.DB.Query("SELECT tree FROM node WHERE id = ?", id)
	if err != nil {
		return
	}
	defer rows.Close()
	if !rows.Next() {
		return nil, fmt.Errorf("node %q not found", id)
	}
	var tree string
	if err = rows.Scan(&tree); err != nil {
		return
	}
	node = new(model.ContentNode)
	err = json.Unmarshal([]byte(tree), node)
	return
}

// NodeSummary is one row of the node index, enough for listings.
type NodeSummary struct {
	ID         string
	Author     string
	CreatedAt  time.Time
	Unresolved int
}

func (ss *SyncStore) Summaries() (summaries []NodeSummary, err error) {
	ss.ForEachRowOrPanic(
		func(rows *sql.Rows) bool {
			var s NodeSummary
			var created int64
			if err = rows.Scan(&s.ID, &s.Author, &created, &s.Unresolved); err != nil {
				return false
			}
			s.CreatedAt = time.Unix(created, 0)
			summaries = append(summaries, s)
			return true
		},
		"SELECT id, author, created, unresolved FROM node ORDER BY created")
	return
}

// SyncPoint returns the recorded end of the last successful sweep over the
// collection, or a zero time when the collection was never crawled.
func (ss *SyncStore) SyncPoint(collection string) (at time.Time, err error) {
	rows, err := ss.DB.Query("SELECT synced_until FROM sync_point WHERE collection = ?", collection)
	if err != nil {
		return
	}
	defer rows.Close()
	if rows.Next() {
		var until int64
		if err = rows.Scan(&until); err == nil {
			at = time.Unix(until, 0)
		}
	}
	return
}

func (ss *SyncStore) SetSyncPoint(collection string, at time.Time) {
	ss.ExecOrPanic(ss.setSyncPointStmt, collection, at.Unix())
}

// DestinationID returns the destination-side id a root node was published
// under, or "" when it has not been published.
func (ss *SyncStore) DestinationID(nodeID string) (destID string, err error) {
	rows, err := ss.DB.Query("SELECT dest_id FROM destination WHERE node_id = ?", nodeID)
	if err != nil {
		return
	}
	defer rows.Close()
	if rows.Next() {
		err = rows.Scan(&destID)
	}
	return
}

func (ss *SyncStore) SetDestinationID(nodeID, destID string) {
	ss.ExecOrPanic(ss.setDestinationStmt, nodeID, destID, time.Now().Unix())
}

func (ss *SyncStore) nodeDir(id string) string {
	return filepath.Join(ss.ResourcesDir, id)
}

func (ss *SyncStore) initTables() {
	schema := `
CREATE TABLE node (
	id TEXT NOT NULL PRIMARY KEY,
	author TEXT,
	created INTEGER,
	updated INTEGER,
	tree TEXT NOT NULL,
	unresolved INTEGER NOT NULL DEFAULT 0,
	synced_at INTEGER
);

CREATE TABLE sync_point (
	collection TEXT NOT NULL PRIMARY KEY,
	synced_until INTEGER NOT NULL
);

CREATE TABLE destination (
	node_id TEXT NOT NULL PRIMARY KEY,
	dest_id TEXT NOT NULL,
	published_at INTEGER
);
`
	_, err := ss.DB.Exec(schema)
	if err != nil {
		log.Printf("Error loading schema: %q\n", err)
		return
	}
}

func (ss *SyncStore) initSQLStatements() {
	ss.insertNodeStmt = `
		INSERT INTO node
			(id, author, created, updated, tree, unresolved, synced_at)
		VALUES
			(?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(id) DO UPDATE SET
			author = excluded.author,
			created = excluded.created,
			updated = excluded.updated,
			tree = excluded.tree,
			unresolved = excluded.unresolved,
			synced_at = excluded.synced_at`

	ss.nodePresentStmt = `
		SELECT 1 FROM node WHERE id = ?`

	ss.setSyncPointStmt = `
		INSERT INTO sync_point
			(collection, synced_until)
		VALUES
			(?, ?)
		ON CONFLICT(collection) DO UPDATE SET
			synced_until = excluded.synced_until`

	ss.setDestinationStmt = `
		INSERT INTO destination
			(node_id, dest_id, published_at)
		VALUES
			(?, ?, ?)
		ON CONFLICT(node_id) DO UPDATE SET
			dest_id = excluded.dest_id,
			published_at = excluded.published_at`
}
