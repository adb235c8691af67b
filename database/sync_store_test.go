package database

import (
	"errors"
	"os"
	"path"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
	"github.com/zvonler/groupmig/model"
)

type fakeFetcher struct {
	fail  map[string]bool
	calls []string
}

func (f *fakeFetcher) Fetch(url, destDir string) (string, error) {
	f.calls = append(f.calls, url)
	if f.fail[url] {
		return "", errors.New("download refused")
	}
	local := filepath.Join(destDir, path.Base(url))
	if err := os.WriteFile(local, []byte("blob"), 0644); err != nil {
		return "", err
	}
	return local, nil
}

func openTestStore(t *testing.T) *SyncStore {
	tmpDir := t.TempDir()
	store, err := OpenSyncStore(filepath.Join(tmpDir, "test.db"), filepath.Join(tmpDir, "resources"))
	require.Equal(t, nil, err)
	return store
}

func testTree(id, message string) *model.ContentNode {
	return &model.ContentNode{
		ID:        id,
		Author:    model.Author{ID: "u1", Name: "Alice"},
		CreatedAt: time.Unix(1500000000, 0).UTC(),
		UpdatedAt: time.Unix(1500003600, 0).UTC(),
		Message:   message,
		Attachments: []model.Attachment{
			{Kind: model.Picture, RemoteURL: "https://cdn.test/pic.jpg"},
		},
		Children: []model.ContentNode{
			{
				ID:        id + "_c1",
				Author:    model.Author{ID: "u2", Name: "Bob"},
				CreatedAt: time.Unix(1500007200, 0).UTC(),
				UpdatedAt: time.Unix(1500007200, 0).UTC(),
				Message:   "a comment",
				Children:  []model.ContentNode{},
			},
		},
	}
}

func TestAdmitSkipsAlreadyPresent(t *testing.T) {
	store := openTestStore(t)
	defer store.Close()

	admission, err := store.Admit("post1", false)
	require.Equal(t, nil, err)
	require.Equal(t, Proceed, admission)

	require.Equal(t, nil, store.Materialize(testTree("post1", "hello"), &fakeFetcher{}))

	admission, err = store.Admit("post1", false)
	require.Equal(t, nil, err)
	require.Equal(t, SkipAlreadyPresent, admission)
}

func TestAdmitWithOverwritePurgesFirst(t *testing.T) {
	store := openTestStore(t)
	defer store.Close()

	require.Equal(t, nil, store.Materialize(testTree("post1", "old text"), &fakeFetcher{}))

	admission, err := store.Admit("post1", true)
	require.Equal(t, nil, err)
	require.Equal(t, Proceed, admission)

	// The old copy is gone before the new one arrives.
	present, err := store.Contains("post1")
	require.Equal(t, nil, err)
	require.Equal(t, false, present)

	require.Equal(t, nil, store.Materialize(testTree("post1", "new text"), &fakeFetcher{}))
	tree, err := store.Tree("post1")
	require.Equal(t, nil, err)
	require.Equal(t, "new text", tree.Message)
}

func TestMaterializeRoundTripsTree(t *testing.T) {
	store := openTestStore(t)
	defer store.Close()

	original := testTree("post1", "hello")
	require.Equal(t, nil, store.Materialize(original, &fakeFetcher{}))

	restored, err := store.Tree("post1")
	require.Equal(t, nil, err)
	require.Equal(t, original, restored)
	require.Equal(t, 0, restored.UnresolvedAttachments())

	// The attachment file landed under the node's resource directory.
	local := restored.Attachments[0].LocalPath
	require.Equal(t, filepath.Join(store.ResourcesDir, "post1"), filepath.Dir(local))
	_, err = os.Stat(local)
	require.Equal(t, nil, err)
}

func TestMaterializeResolvesAttachmentsAtEveryDepth(t *testing.T) {
	store := openTestStore(t)
	defer store.Close()

	// Three levels, a picture on the post and a file upload on the deepest
	// reply, all of which must come back with local handles.
	tree := testTree("post1", "hello")
	tree.Children[0].Children = []model.ContentNode{
		{
			ID:        "post1_r1",
			Author:    model.Author{ID: "u1", Name: "Alice"},
			CreatedAt: time.Unix(1500010800, 0).UTC(),
			UpdatedAt: time.Unix(1500010800, 0).UTC(),
			Message:   "a reply",
			Attachments: []model.Attachment{
				{Kind: model.FileUpload, Title: "notes.pdf", RemoteURL: "https://cdn.test/notes.pdf"},
			},
			Children: []model.ContentNode{},
		},
	}

	fetcher := &fakeFetcher{}
	require.Equal(t, nil, store.Materialize(tree, fetcher))
	require.Equal(t, []string{"https://cdn.test/pic.jpg", "https://cdn.test/notes.pdf"}, fetcher.calls)

	restored, err := store.Tree("post1")
	require.Equal(t, nil, err)
	require.Equal(t, 0, restored.UnresolvedAttachments())

	for _, local := range []string{
		restored.Attachments[0].LocalPath,
		restored.Children[0].Children[0].Attachments[0].LocalPath,
	} {
		require.NotEqual(t, "", local)
		require.Equal(t, filepath.Join(store.ResourcesDir, "post1"), filepath.Dir(local))
		_, err = os.Stat(local)
		require.Equal(t, nil, err)
	}
}

func TestMaterializeFetchesEachAttachmentOnce(t *testing.T) {
	store := openTestStore(t)
	defer store.Close()

	fetcher := &fakeFetcher{}
	tree := testTree("post1", "hello")
	require.Equal(t, nil, store.Materialize(tree, fetcher))
	require.Equal(t, []string{"https://cdn.test/pic.jpg"}, fetcher.calls)

	// Re-materializing an already resolved tree downloads nothing.
	require.Equal(t, nil, store.Materialize(tree, fetcher))
	require.Equal(t, 1, len(fetcher.calls))
}

func TestMaterializeKeepsGoingPastFailedDownload(t *testing.T) {
	store := openTestStore(t)
	defer store.Close()

	tree := testTree("post1", "hello")
	tree.Attachments = append(tree.Attachments,
		model.Attachment{Kind: model.Picture, RemoteURL: "https://cdn.test/broken.jpg"})

	fetcher := &fakeFetcher{fail: map[string]bool{"https://cdn.test/broken.jpg": true}}
	require.Equal(t, nil, store.Materialize(tree, fetcher))

	restored, err := store.Tree("post1")
	require.Equal(t, nil, err)
	require.Equal(t, 1, restored.UnresolvedAttachments())
	require.Equal(t, true, restored.Attachments[0].Resolved())
	require.Equal(t, false, restored.Attachments[1].Resolved())

	summaries, err := store.Summaries()
	require.Equal(t, nil, err)
	require.Equal(t, 1, len(summaries))
	require.Equal(t, 1, summaries[0].Unresolved)
}

func TestPurgeRemovesRowAndResources(t *testing.T) {
	store := openTestStore(t)
	defer store.Close()

	require.Equal(t, nil, store.Materialize(testTree("post1", "hello"), &fakeFetcher{}))
	require.Equal(t, nil, store.Purge("post1"))

	present, err := store.Contains("post1")
	require.Equal(t, nil, err)
	require.Equal(t, false, present)

	_, err = os.Stat(filepath.Join(store.ResourcesDir, "post1"))
	require.Equal(t, true, os.IsNotExist(err))
}

func TestSyncPointRoundTrip(t *testing.T) {
	store := openTestStore(t)
	defer store.Close()

	at, err := store.SyncPoint("g1")
	require.Equal(t, nil, err)
	require.Equal(t, true, at.IsZero())

	point := time.Unix(1600000000, 0)
	store.SetSyncPoint("g1", point)
	at, err = store.SyncPoint("g1")
	require.Equal(t, nil, err)
	require.Equal(t, point.Unix(), at.Unix())

	// Advancing overwrites, not duplicates.
	store.SetSyncPoint("g1", point.Add(time.Hour))
	at, err = store.SyncPoint("g1")
	require.Equal(t, nil, err)
	require.Equal(t, point.Add(time.Hour).Unix(), at.Unix())
}

func TestDestinationIDRoundTrip(t *testing.T) {
	store := openTestStore(t)
	defer store.Close()

	destID, err := store.DestinationID("post1")
	require.Equal(t, nil, err)
	require.Equal(t, "", destID)

	store.SetDestinationID("post1", "42")
	destID, err = store.DestinationID("post1")
	require.Equal(t, nil, err)
	require.Equal(t, "42", destID)
}

func TestLockIDSerializesPerID(t *testing.T) {
	store := openTestStore(t)
	defer store.Close()

	unlock := store.LockID("post1")
	acquired := make(chan struct{})
	go func() {
		second := store.LockID("post1")
		close(acquired)
		second()
	}()

	select {
	case <-acquired:
		t.Fatal("second lock acquired while first still held")
	case <-time.After(50 * time.Millisecond):
	}
	unlock()
	<-acquired
}
