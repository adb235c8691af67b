package wordpress

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"net/url"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func newTestCaller(t *testing.T, handler http.Handler) (*RESTCaller, *httptest.Server) {
	server := httptest.NewServer(handler)
	blogURL, err := url.Parse(server.URL + "/")
	require.Equal(t, nil, err)
	return NewRESTCaller(blogURL, "admin", "app-password"), server
}

func TestRESTCallerMapsConflict(t *testing.T) {
	caller, server := newTestCaller(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusConflict)
		w.Write([]byte(`{"code": "comment_duplicate", "message": "Duplicate comment detected"}`))
	}))
	defer server.Close()

	_, err := caller.NewComment(context.Background(), "1", "1", Comment{Content: "again"})
	require.ErrorIs(t, err, ErrConflict)
}

func TestRESTCallerReportsRemoteMessage(t *testing.T) {
	caller, server := newTestCaller(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusForbidden)
		w.Write([]byte(`{"message": "Sorry, you are not allowed to do that."}`))
	}))
	defer server.Close()

	_, err := caller.NewPost(context.Background(), Post{Title: "t", Content: "c", Date: time.Now()})
	require.NotEqual(t, nil, err)
	require.Contains(t, err.Error(), "not allowed")
}

func TestRESTCallerCollectsAuthorCounts(t *testing.T) {
	caller, server := newTestCaller(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		require.Equal(t, "/wp-json/wp/v2/tags", r.URL.Path)
		require.Equal(t, "1", r.URL.Query().Get("page"))
		w.Write([]byte(`[
			{"id": 3, "name": "Alice", "count": 12},
			{"id": 4, "name": "Bob", "count": 3}
		]`))
	}))
	defer server.Close()

	counts, err := caller.AuthorCounts(context.Background())
	require.Equal(t, nil, err)
	require.Equal(t, []AuthorCount{{Name: "Alice", Posts: 12}, {Name: "Bob", Posts: 3}}, counts)
}

func TestRESTCallerEditsExistingPage(t *testing.T) {
	var editPath string
	caller, server := newTestCaller(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Method == http.MethodGet {
			require.Equal(t, "/wp-json/wp/v2/pages", r.URL.Path)
			require.Equal(t, "Authors", r.URL.Query().Get("search"))
			w.Write([]byte(`[{"id": 7, "title": {"rendered": "Authors"}}]`))
			return
		}
		editPath = r.URL.Path
		var body map[string]any
		json.NewDecoder(r.Body).Decode(&body)
		require.Equal(t, "<div>counts</div>", body["content"])
		w.Write([]byte(`{"id": 7}`))
	}))
	defer server.Close()

	require.Equal(t, nil, caller.EditPage(context.Background(), "Authors", "<div>counts</div>"))
	require.Equal(t, "/wp-json/wp/v2/pages/7", editPath)
}

func TestRESTCallerCreatesMissingPage(t *testing.T) {
	var createPath string
	caller, server := newTestCaller(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Method == http.MethodGet {
			w.Write([]byte(`[]`))
			return
		}
		createPath = r.URL.Path
		w.WriteHeader(http.StatusCreated)
		w.Write([]byte(`{"id": 8}`))
	}))
	defer server.Close()

	require.Equal(t, nil, caller.EditPage(context.Background(), "Authors", "<div>counts</div>"))
	require.Equal(t, "/wp-json/wp/v2/pages", createPath)
}

func TestRESTCallerCreatesPost(t *testing.T) {
	var got map[string]any
	caller, server := newTestCaller(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		user, pass, ok := r.BasicAuth()
		require.Equal(t, true, ok)
		require.Equal(t, "admin", user)
		require.Equal(t, "app-password", pass)
		require.Equal(t, "/wp-json/wp/v2/posts", r.URL.Path)
		json.NewDecoder(r.Body).Decode(&got)
		w.WriteHeader(http.StatusCreated)
		w.Write([]byte(`{"id": 17}`))
	}))
	defer server.Close()

	date := time.Date(2020, 1, 2, 10, 30, 0, 0, time.UTC)
	postID, err := caller.NewPost(context.Background(), Post{Title: "hello", Content: "<div>x</div>", Date: date})
	require.Equal(t, nil, err)
	require.Equal(t, "17", postID)
	require.Equal(t, "hello", got["title"])
	require.Equal(t, "2020-01-02T10:30:00", got["date"])
	require.Equal(t, "publish", got["status"])
}
