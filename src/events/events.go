package events

import (
	"context"
	"time"
)

type Type string

const (
	PostCreated   Type = "post.created"
	PostCommented Type = "post.commented"
	PostLiked     Type = "post.liked"
	PostUnliked   Type = "post.unliked"
	PostDeleted   Type = "post.deleted"
)

const (
	subjectPrefix = "feed."
	// SubjectAll matches every feed event.
	SubjectAll = subjectPrefix + ">"
)

// Event describes something that happened to a post. Recipient is the post
// owner, Actor the user who caused it.
type Event struct {
	Type      Type      `json:"type"`
	PostID    string    `json:"postId"`
	Actor     string    `json:"actor"`
	Recipient string    `json:"recipient,omitempty"`
	CommentID string    `json:"commentId,omitempty"`
	Cascade   bool      `json:"cascade,omitempty"`
	At        time.Time `json:"at"`
}

// Subject is the NATS subject an event of type t is published on.
func Subject(t Type) string {
	return subjectPrefix + string(t)
}

type Handler func(ctx context.Context, e Event) error

type Publisher interface {
	Publish(ctx context.Context, e Event) error
}
