package wordpress

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"mime"
	"net/http"
	"net/url"
	"os"
	"path/filepath"
	"strconv"
	"time"

	"github.com/zvonler/groupmig/utils"
)

// restDateFormat is the local-time layout the destination expects.
const restDateFormat = "2006-01-02T15:04:05"

// RESTCaller implements Caller against a WordPress-style JSON API using an
// application password.
type RESTCaller struct {
	baseURL    string
	username   string
	password   string
	HTTPClient *http.Client
}

func NewRESTCaller(blogURL *url.URL, username, password string) *RESTCaller {
	return &RESTCaller{
		baseURL:    utils.TrimmedURL(blogURL).String(),
		username:   username,
		password:   password,
		HTTPClient: &http.Client{Timeout: 60 * time.Second},
	}
}

func (c *RESTCaller) NewPost(ctx context.Context, post Post) (string, error) {
	body := map[string]any{
		"title":          post.Title,
		"content":        post.Content,
		"date":           post.Date.Format(restDateFormat),
		"status":         "publish",
		"comment_status": "open",
	}
	if !post.Modified.IsZero() {
		body["modified"] = post.Modified.Format(restDateFormat)
	}
	if len(post.Tags) > 0 {
		var tagIDs []int
		for _, tag := range post.Tags {
			id, err := c.ensureTag(ctx, tag)
			if err != nil {
				return "", err
			}
			tagIDs = append(tagIDs, id)
		}
		body["tags"] = tagIDs
	}

	var created struct {
		ID int `json:"id"`
	}
	if err := c.call(ctx, http.MethodPost, "/wp-json/wp/v2/posts", body, &created); err != nil {
		return "", err
	}
	return strconv.Itoa(created.ID), nil
}

func (c *RESTCaller) NewComment(ctx context.Context, postID, parentID string, comment Comment) (string, error) {
	body := map[string]any{
		"post":    postID,
		"content": comment.Content,
		"date":    comment.Date.Format(restDateFormat),
		"status":  "approved",
	}
	if parentID != postID {
		body["parent"] = parentID
	}
	var created struct {
		ID int `json:"id"`
	}
	if err := c.call(ctx, http.MethodPost, "/wp-json/wp/v2/comments", body, &created); err != nil {
		return "", err
	}
	return strconv.Itoa(created.ID), nil
}

func (c *RESTCaller) EditCommentAuthor(ctx context.Context, commentID, author string) error {
	body := map[string]any{"author_name": author}
	return c.call(ctx, http.MethodPost, "/wp-json/wp/v2/comments/"+commentID, body, nil)
}

func (c *RESTCaller) UploadFile(ctx context.Context, localPath string) (string, error) {
	data, err := os.ReadFile(localPath)
	if err != nil {
		return "", err
	}
	name := filepath.Base(localPath)
	contentType := mime.TypeByExtension(filepath.Ext(name))
	if contentType == "" {
		contentType = "application/octet-stream"
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost,
		c.baseURL+"/wp-json/wp/v2/media", bytes.NewReader(data))
	if err != nil {
		return "", err
	}
	req.SetBasicAuth(c.username, c.password)
	req.Header.Set("Content-Type", contentType)
	req.Header.Set("Content-Disposition", fmt.Sprintf("attachment; filename=%q", name))

	var uploaded struct {
		SourceURL string `json:"source_url"`
	}
	if err := c.do(req, &uploaded); err != nil {
		return "", err
	}
	return uploaded.SourceURL, nil
}

// AuthorCounts lists every author tag with its post count. The destination
// reports per-term post counts directly on the term objects.
func (c *RESTCaller) AuthorCounts(ctx context.Context) ([]AuthorCount, error) {
	var counts []AuthorCount
	for page := 1; ; page++ {
		var found []struct {
			Name  string `json:"name"`
			Count int    `json:"count"`
		}
		path := fmt.Sprintf("/wp-json/wp/v2/tags?per_page=100&page=%d", page)
		if err := c.call(ctx, http.MethodGet, path, nil, &found); err != nil {
			return nil, err
		}
		for _, term := range found {
			counts = append(counts, AuthorCount{Name: term.Name, Posts: term.Count})
		}
		if len(found) < 100 {
			return counts, nil
		}
	}
}

// EditPage replaces the content of the page with the given title, creating
// the page when the destination does not have it yet.
func (c *RESTCaller) EditPage(ctx context.Context, title, content string) error {
	var found []struct {
		ID int `json:"id"`
	}
	query := "/wp-json/wp/v2/pages?search=" + url.QueryEscape(title)
	if err := c.call(ctx, http.MethodGet, query, nil, &found); err != nil {
		return err
	}
	path := "/wp-json/wp/v2/pages"
	if len(found) > 0 {
		path += "/" + strconv.Itoa(found[0].ID)
	}
	body := map[string]any{
		"title":   title,
		"content": content,
		"status":  "publish",
	}
	return c.call(ctx, http.MethodPost, path, body, nil)
}

// ensureTag finds the term id for the tag name, creating the term when the
// destination does not have it yet.
func (c *RESTCaller) ensureTag(ctx context.Context, name string) (int, error) {
	var found []struct {
		ID   int    `json:"id"`
		Name string `json:"name"`
	}
	query := "/wp-json/wp/v2/tags?search=" + url.QueryEscape(name)
	if err := c.call(ctx, http.MethodGet, query, nil, &found); err != nil {
		return 0, err
	}
	for _, term := range found {
		if term.Name == name {
			return term.ID, nil
		}
	}
	var created struct {
		ID int `json:"id"`
	}
	if err := c.call(ctx, http.MethodPost, "/wp-json/wp/v2/tags", map[string]any{"name": name}, &created); err != nil {
		return 0, err
	}
	return created.ID, nil
}

func (c *RESTCaller) call(ctx context.Context, method, path string, body, out any) error {
	var reader io.Reader
	if body != nil {
		encoded, err := json.Marshal(body)
		if err != nil {
			return err
		}
		reader = bytes.NewReader(encoded)
	}
	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, reader)
	if err != nil {
		return err
	}
	req.SetBasicAuth(c.username, c.password)
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	return c.do(req, out)
}

func (c *RESTCaller) do(req *http.Request, out any) error {
	resp, err := c.HTTPClient.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return err
	}
	if resp.StatusCode == http.StatusConflict {
		return ErrConflict
	}
	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return fmt.Errorf("destination returned %d: %s", resp.StatusCode, restMessage(data))
	}
	if out != nil {
		return json.Unmarshal(data, out)
	}
	return nil
}

func restMessage(body []byte) string {
	var envelope struct {
		Message string `json:"message"`
	}
	if err := json.Unmarshal(body, &envelope); err == nil && envelope.Message != "" {
		return envelope.Message
	}
	return string(body)
}
