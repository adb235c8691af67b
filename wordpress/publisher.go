package wordpress

import (
	"context"
	"errors"
	"fmt"
	"log"
	"time"

	"github.com/zvonler/groupmig/model"
)

// ErrConflict means the destination reported that the item already exists.
// Publishing treats it as success by idempotence, never as a failure.
var ErrConflict = errors.New("destination reports an existing duplicate")

// Post is the destination-side rendering of a root node.
type Post struct {
	Title    string
	Content  string
	Date     time.Time
	Modified time.Time
	Tags     []string
}

// Comment is the destination-side rendering of a child node.
type Comment struct {
	Content string
	Author  string
	Date    time.Time
}

// AuthorCount is one author tag with the number of posts carrying it.
type AuthorCount struct {
	Name  string
	Posts int
}

// Caller abstracts the destination transport. Implementations return
// ErrConflict (possibly wrapped) when the destination rejects an item as a
// duplicate.
type Caller interface {
	NewPost(ctx context.Context, post Post) (string, error)
	NewComment(ctx context.Context, postID, parentID string, comment Comment) (string, error)
	EditCommentAuthor(ctx context.Context, commentID, author string) error
	UploadFile(ctx context.Context, localPath string) (string, error)
	AuthorCounts(ctx context.Context) ([]AuthorCount, error)
	EditPage(ctx context.Context, title, content string) error
}

// Publisher writes a materialized tree to the destination: the root as a
// post, every descendant as a comment under its parent.
type Publisher struct {
	caller          Caller
	uploadResources bool
}

// NewPublisher wraps a transport. With uploadResources set, locally
// materialized attachments are uploaded to the destination and referenced by
// their new URLs; otherwise the source URLs are used as-is.
func NewPublisher(caller Caller, uploadResources bool) *Publisher {
	return &Publisher{caller: caller, uploadResources: uploadResources}
}

// Publish writes the tree and returns the destination post id. A duplicate
// root is a non-fatal skip and returns "".
func (p *Publisher) Publish(ctx context.Context, node *model.ContentNode) (string, error) {
	pictures, files, err := p.resolveRefs(ctx, node.Attachments)
	if err != nil {
		return "", err
	}

	post := Post{
		Title:   ExtractTitle(node.Message),
		Content: FormatPostContent(node.Message, pictures, files),
		Date:    node.CreatedAt.In(GroupTimezone),
	}
	if !node.UpdatedAt.Equal(node.CreatedAt) {
		post.Modified = node.UpdatedAt.In(GroupTimezone)
	}
	if node.Author.Name != "" {
		post.Tags = []string{node.Author.Name}
	}

	postID, err := p.caller.NewPost(ctx, post)
	if errors.Is(err, ErrConflict) {
		log.Printf("Post %s already exists on destination, skipping", node.ID)
		return "", nil
	}
	if err != nil {
		return "", fmt.Errorf("post %s: %w", node.ID, err)
	}

	if err := p.addComments(ctx, postID, postID, node.Children); err != nil {
		return "", fmt.Errorf("comments of %s: %w", node.ID, err)
	}
	return postID, nil
}

// AuthorsPageTitle is the destination page listing who wrote how much.
const AuthorsPageTitle = "Authors"

// UpdateAuthorsPage rebuilds the authors page from the per-author post
// counts the destination reports. Posts are tagged with their author's name
// on publish, so the tag counts are the per-author totals.
func (p *Publisher) UpdateAuthorsPage(ctx context.Context) error {
	counts, err := p.caller.AuthorCounts(ctx)
	if err != nil {
		return fmt.Errorf("author counts: %w", err)
	}
	return p.caller.EditPage(ctx, AuthorsPageTitle, FormatAuthorsPage(counts))
}

// addComments writes the nodes as comments under parentID, recursing into
// their children. A duplicate comment is skipped along with its subtree;
// siblings continue.
func (p *Publisher) addComments(ctx context.Context, postID, parentID string, nodes []model.ContentNode) error {
	for i := range nodes {
		node := &nodes[i]

		content := node.Message
		pictures, files, err := p.resolveRefs(ctx, node.Attachments)
		if err != nil {
			return err
		}
		for _, u := range pictures {
			content += "\n\n" + u
		}
		for _, f := range files {
			content += "\n\n" + f.URL
		}

		comment := Comment{
			Content: content,
			Author:  node.Author.Name,
			Date:    node.CreatedAt.In(GroupTimezone),
		}
		commentID, err := p.caller.NewComment(ctx, postID, parentID, comment)
		if errors.Is(err, ErrConflict) {
			continue
		}
		if err != nil {
			return fmt.Errorf("comment %s: %w", node.ID, err)
		}
		// The author name can only be set on an existing comment.
		if node.Author.Name != "" {
			if err := p.caller.EditCommentAuthor(ctx, commentID, node.Author.Name); err != nil {
				return fmt.Errorf("comment %s author: %w", node.ID, err)
			}
		}
		if err := p.addComments(ctx, postID, commentID, node.Children); err != nil {
			return err
		}
	}
	return nil
}

// resolveRefs maps attachment refs to the URLs the destination markup should
// use, uploading materialized files when configured to.
func (p *Publisher) resolveRefs(ctx context.Context, refs []model.Attachment) (pictures []string, files []FileLink, err error) {
	for _, ref := range refs {
		target := ref.RemoteURL
		if p.uploadResources && ref.Resolved() {
			if target, err = p.caller.UploadFile(ctx, ref.LocalPath); err != nil {
				return nil, nil, err
			}
		}
		switch ref.Kind {
		case model.Picture:
			pictures = append(pictures, target)
		case model.FileUpload:
			files = append(files, FileLink{Title: ref.Title, URL: target})
		}
	}
	return
}
