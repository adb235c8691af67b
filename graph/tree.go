package graph

import (
	"context"
	"encoding/json"
	"fmt"
	"net/url"
	"strings"
	"time"

	"github.com/zvonler/groupmig/model"
)

// timeFormat is the timestamp layout the source API uses.
const timeFormat = "2006-01-02T15:04:05-0700"

type rawNode struct {
	ID           string          `json:"id"`
	Type         string          `json:"type"`
	From         *model.Author   `json:"from"`
	Message      string          `json:"message"`
	Link         string          `json:"link"`
	CreatedTime  string          `json:"created_time"`
	UpdatedTime  string          `json:"updated_time"`
	Attachments  json.RawMessage `json:"attachments"`
	Attachment   json.RawMessage `json:"attachment"`
	CommentCount *int            `json:"comment_count"`
}

// TreeFetcher reconstructs the full recursive comment tree under a content
// node, walking however many pages each level of the tree needs.
type TreeFetcher struct {
	client *Client
}

func NewTreeFetcher(client *Client) *TreeFetcher {
	return &TreeFetcher{client: client}
}

// Roots returns a cursor over the raw feed items of one planned sweep.
func (tf *TreeFetcher) Roots(ctx context.Context, req FetchRequest) (*Cursor, error) {
	page, err := tf.client.GetPage(ctx, []string{req.Collection, "feed"}, req.Params())
	if err != nil {
		return nil, err
	}
	return NewCursor(page, tf.client.GetPageURL), nil
}

// FetchTree fetches the node with the given id and its entire comment
// subtree. Any failure below the root propagates up; no partial tree is
// returned as complete.
func (tf *TreeFetcher) FetchTree(ctx context.Context, id string, schema Schema) (*model.ContentNode, error) {
	params := url.Values{}
	params.Set("fields", strings.Join(schema.PostFields(), ","))
	raw, err := tf.client.GetObject(ctx, []string{id}, params)
	if err != nil {
		return nil, err
	}
	return tf.BuildTree(ctx, raw, schema)
}

// BuildTree turns one raw feed item into a ContentNode with resolved
// attachment references and a fully populated comment subtree.
func (tf *TreeFetcher) BuildTree(ctx context.Context, raw json.RawMessage, schema Schema) (*model.ContentNode, error) {
	node, rn, err := tf.decodeNode(ctx, raw)
	if err != nil {
		return nil, err
	}
	// Posts carry no comment_count hint, so always look for comments.
	// Comments inside the recursion are gated on the hint instead.
	children, err := tf.fetchChildren(ctx, rn.ID, schema)
	if err != nil {
		return nil, fmt.Errorf("comments of %s: %w", rn.ID, err)
	}
	node.Children = children
	return node, nil
}

// fetchChildren pulls the ordered comments under the node with the given id,
// recursing into each comment that reports a nonzero sub-comment count. A
// zero count hint means no request is made for that comment at all.
func (tf *TreeFetcher) fetchChildren(ctx context.Context, id string, schema Schema) ([]model.ContentNode, error) {
	params := url.Values{}
	params.Set("fields", strings.Join(schema.CommentFields(), ","))
	page, err := tf.client.GetPage(ctx, []string{id, "comments"}, params)
	if err != nil {
		return nil, err
	}

	children := make([]model.ContentNode, 0)
	cursor := NewCursor(page, tf.client.GetPageURL)
	for cursor.Next(ctx) {
		child, rn, err := tf.decodeNode(ctx, cursor.Item())
		if err != nil {
			return nil, err
		}
		if rn.CommentCount != nil && *rn.CommentCount > 0 {
			grandchildren, err := tf.fetchChildren(ctx, rn.ID, schema)
			if err != nil {
				return nil, fmt.Errorf("comments of %s: %w", rn.ID, err)
			}
			child.Children = grandchildren
		} else {
			child.Children = []model.ContentNode{}
		}
		children = append(children, *child)
	}
	if err := cursor.Err(); err != nil {
		return nil, err
	}
	return children, nil
}

func (tf *TreeFetcher) decodeNode(ctx context.Context, raw json.RawMessage) (*model.ContentNode, *rawNode, error) {
	var rn rawNode
	if err := json.Unmarshal(raw, &rn); err != nil {
		return nil, nil, fmt.Errorf("%w: node: %v", ErrMalformedItem, err)
	}
	if rn.ID == "" {
		return nil, nil, fmt.Errorf("%w: node without id", ErrMalformedItem)
	}

	node := &model.ContentNode{
		ID:      rn.ID,
		Message: normalizeMessage(rn),
	}
	if rn.From != nil {
		node.Author = *rn.From
	}
	var err error
	if node.CreatedAt, err = parseNodeTime(rn.CreatedTime); err != nil {
		return nil, nil, fmt.Errorf("%w: node %s: %v", ErrMalformedItem, rn.ID, err)
	}
	if rn.UpdatedTime != "" {
		if node.UpdatedAt, err = parseNodeTime(rn.UpdatedTime); err != nil {
			return nil, nil, fmt.Errorf("%w: node %s: %v", ErrMalformedItem, rn.ID, err)
		}
	} else {
		node.UpdatedAt = node.CreatedAt
	}

	if len(rn.Attachments) > 0 {
		if node.Attachments, err = tf.client.ResolveAttachments(ctx, rn.Attachments); err != nil {
			return nil, nil, fmt.Errorf("attachments of %s: %w", rn.ID, err)
		}
	} else if len(rn.Attachment) > 0 {
		if node.Attachments, err = tf.resolveSingle(ctx, rn.Attachment); err != nil {
			return nil, nil, fmt.Errorf("attachment of %s: %w", rn.ID, err)
		}
	}
	return node, &rn, nil
}

// resolveSingle handles the comment-style payload where a node carries one
// attachment object instead of a paginated group.
func (tf *TreeFetcher) resolveSingle(ctx context.Context, raw json.RawMessage) ([]model.Attachment, error) {
	var item rawAttachment
	if err := json.Unmarshal(raw, &item); err != nil {
		return nil, fmt.Errorf("%w: attachment: %v", ErrMalformedItem, err)
	}
	refs := make([]model.Attachment, 0, 1)
	if ref, ok := classifyAttachment(item); ok {
		refs = append(refs, ref)
	}
	if len(item.Subattachments) > 0 {
		if err := tf.client.appendAttachments(ctx, item.Subattachments, &refs); err != nil {
			return nil, err
		}
	}
	return refs, nil
}

// normalizeMessage recovers link text the author typed and later deleted
// from the visible message while the platform kept the link metadata.
func normalizeMessage(rn rawNode) string {
	message := rn.Message
	if rn.Type == "link" && rn.Link != "" && !strings.Contains(message, rn.Link) {
		message = rn.Link + "\n\n" + message
	}
	return message
}

func parseNodeTime(value string) (time.Time, error) {
	if value == "" {
		return time.Time{}, fmt.Errorf("missing timestamp")
	}
	return time.Parse(timeFormat, value)
}
