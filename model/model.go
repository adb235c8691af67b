package model

import "time"

// Author identifies who created a node on the source service.
type Author struct {
	ID   string `json:"id"`
	Name string `json:"name"`
}

type AttachmentKind string

const (
	Picture    AttachmentKind = "picture"
	FileUpload AttachmentKind = "file_upload"
)

// Attachment references a binary resource attached to a node. RemoteURL
// always holds the source URL; LocalPath is empty until the file has been
// fetched into the resources directory.
type Attachment struct {
	Kind      AttachmentKind `json:"kind"`
	Title     string         `json:"title,omitempty"`
	RemoteURL string         `json:"remote_url"`
	LocalPath string         `json:"local_path,omitempty"`
}

func (a Attachment) Resolved() bool {
	return a.LocalPath != ""
}

// ContentNode is a post or a comment; comments nest recursively through
// Children. A nil Children means the subtree was never fetched, while an
// empty non-nil slice means it was fetched and the node has none.
type ContentNode struct {
	ID          string        `json:"id"`
	Author      Author        `json:"author"`
	CreatedAt   time.Time     `json:"created_at"`
	UpdatedAt   time.Time     `json:"updated_at"`
	Message     string        `json:"message"`
	Attachments []Attachment  `json:"attachments,omitempty"`
	Children    []ContentNode `json:"children"`
}

// Walk calls visit on n and every descendant, depth first.
func (n *ContentNode) Walk(visit func(*ContentNode)) {
	visit(n)
	for i := range n.Children {
		n.Children[i].Walk(visit)
	}
}

// UnresolvedAttachments counts attachments anywhere in the tree that still
// point only at their remote URL.
func (n *ContentNode) UnresolvedAttachments() (count int) {
	n.Walk(func(node *ContentNode) {
		for _, a := range node.Attachments {
			if !a.Resolved() {
				count++
			}
		}
	})
	return
}
