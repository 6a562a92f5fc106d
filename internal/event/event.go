// Package event defines the domain event kinds carried through the outbox
// and the per-kind payload shapes. Payloads are validated at the
// outbox/drainer boundary instead of being trusted as free-form JSON.
package event

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
)

// Known event kinds.
const (
	KindChapterPublished = "chapter.published"
	KindPostCreated      = "post.created"
	KindCommentCreated   = "comment.created"
)

var ErrUnknownKind = errors.New("unknown event kind")

// Target identifies the entity an event refers to.
type Target struct {
	Type string `json:"type"`
	ID   string `json:"id"`
}

// Envelope is the stable event shape persisted in the outbox: the unit the
// drainer consumes and the unit business code enqueues.
type Envelope struct {
	Kind       string          `json:"kind"`
	ActorID    string          `json:"actor_id,omitempty"`
	Target     Target          `json:"target"`
	Recipients []string        `json:"recipients"`
	Payload    json.RawMessage `json:"payload"`
}

// ChapterPublishedPayload accompanies KindChapterPublished.
type ChapterPublishedPayload struct {
	BookID       string `json:"book_id"`
	ChapterID    string `json:"chapter_id"`
	ChapterTitle string `json:"chapter_title"`
}

func (p ChapterPublishedPayload) validate() error {
	if p.BookID == "" || p.ChapterID == "" {
		return errors.New("chapter.published: book_id and chapter_id are required")
	}
	return nil
}

// PostCreatedPayload accompanies KindPostCreated.
type PostCreatedPayload struct {
	ThreadID string `json:"thread_id"`
	PostID   string `json:"post_id"`
	Excerpt  string `json:"excerpt,omitempty"`
}

func (p PostCreatedPayload) validate() error {
	if p.ThreadID == "" || p.PostID == "" {
		return errors.New("post.created: thread_id and post_id are required")
	}
	return nil
}

// CommentCreatedPayload accompanies KindCommentCreated.
type CommentCreatedPayload struct {
	ParentType string `json:"parent_type"`
	ParentID   string `json:"parent_id"`
	CommentID  string `json:"comment_id"`
}

func (p CommentCreatedPayload) validate() error {
	if p.ParentID == "" || p.CommentID == "" {
		return errors.New("comment.created: parent_id and comment_id are required")
	}
	return nil
}

type validator interface{ validate() error }

var decoders = map[string]func() validator{
	KindChapterPublished: func() validator { return &ChapterPublishedPayload{} },
	KindPostCreated:      func() validator { return &PostCreatedPayload{} },
	KindCommentCreated:   func() validator { return &CommentCreatedPayload{} },
}

// ValidatePayload decodes raw payload bytes against the shape registered for
// kind. Unknown kinds and malformed payloads are rejected so a bad producer
// surfaces at drain time, not in the client.
func ValidatePayload(kind string, raw json.RawMessage) error {
	newPayload, ok := decoders[kind]
	if !ok {
		return fmt.Errorf("%w: %q", ErrUnknownKind, kind)
	}
	p := newPayload()
	dec := json.NewDecoder(bytes.NewReader(raw))
	dec.DisallowUnknownFields()
	if err := dec.Decode(p); err != nil {
		return fmt.Errorf("payload for %q: %w", kind, err)
	}
	return p.validate()
}
