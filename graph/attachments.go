package graph

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/zvonler/groupmig/model"
)

type rawAttachment struct {
	Type  string `json:"type"`
	Title string `json:"title"`
	URL   string `json:"url"`
	Media *struct {
		Image *struct {
			Src string `json:"src"`
		} `json:"image"`
	} `json:"media"`
	Subattachments json.RawMessage `json:"subattachments"`
}

// ResolveAttachments flattens a raw attachment group into an ordered list of
// attachment references. The group may be paginated, and each item may carry
// its own nested subattachments group; output order is depth first, an item
// before its subattachments before the next sibling. Items with tags the
// migration does not care about (link-share cards and the like) are dropped
// silently.
func (c *Client) ResolveAttachments(ctx context.Context, group json.RawMessage) ([]model.Attachment, error) {
	refs := make([]model.Attachment, 0)
	if err := c.appendAttachments(ctx, group, &refs); err != nil {
		return nil, err
	}
	return refs, nil
}

func (c *Client) appendAttachments(ctx context.Context, group json.RawMessage, refs *[]model.Attachment) error {
	page, err := decodePage(group)
	if err != nil {
		return err
	}
	cursor := NewCursor(page, c.GetPageURL)
	for cursor.Next(ctx) {
		var item rawAttachment
		if err := json.Unmarshal(cursor.Item(), &item); err != nil {
			return fmt.Errorf("%w: attachment: %v", ErrMalformedItem, err)
		}
		if ref, ok := classifyAttachment(item); ok {
			*refs = append(*refs, ref)
		}
		if len(item.Subattachments) > 0 {
			if err := c.appendAttachments(ctx, item.Subattachments, refs); err != nil {
				return err
			}
		}
	}
	return cursor.Err()
}

func classifyAttachment(item rawAttachment) (ref model.Attachment, ok bool) {
	switch item.Type {
	case "photo":
		if item.Media != nil && item.Media.Image != nil {
			ref = model.Attachment{Kind: model.Picture, RemoteURL: item.Media.Image.Src}
			ok = true
		}
	case "file_upload":
		ref = model.Attachment{Kind: model.FileUpload, Title: item.Title, RemoteURL: item.URL}
		ok = true
	}
	return
}
