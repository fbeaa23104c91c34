package store

import (
	"context"
	"errors"
	"fmt"
	"io"

	"github.com/theleywin/Backend-Social-Feed/src/models"
)

var (
	ErrNotFound  = errors.New("document not found")
	ErrDuplicate = errors.New("duplicate document")
)

// OpError wraps a backend failure with the backend's native error code.
type OpError struct {
	Op   string
	Code string
	Err  error
}

func (e *OpError) Error() string {
	return fmt.Sprintf("%s: %s: %v", e.Op, e.Code, e.Err)
}

func (e *OpError) Unwrap() error { return e.Err }

// ErrorCode returns the native code carried by err, or "internal".
func ErrorCode(err error) string {
	var opErr *OpError
	if errors.As(err, &opErr) && opErr.Code != "" {
		return opErr.Code
	}
	return "internal"
}

type PostStore interface {
	InsertPost(ctx context.Context, post *models.Post) error
	GetPost(ctx context.Context, id string) (*models.Post, error)
	ListPosts(ctx context.Context) ([]models.Post, error)
	ListPostIDs(ctx context.Context) ([]string, error)
	// IncrementPostCounter adds delta to field atomically and returns the post
	// as it is after the update.
	IncrementPostCounter(ctx context.Context, id string, field models.CounterField, delta int64) (*models.Post, error)
	SetPostCounters(ctx context.Context, id string, likes, comments int64) error
	SetPostImage(ctx context.Context, id, url string) error
	DeletePost(ctx context.Context, id string) error
}

type CommentStore interface {
	InsertComment(ctx context.Context, comment *models.Comment) error
	ListComments(ctx context.Context, postID string) ([]models.Comment, error)
	CountComments(ctx context.Context, postID string) (int64, error)
	DeleteCommentsByPost(ctx context.Context, postID string) (int64, error)
	// ListCommentedPostIDs returns every distinct postId referenced by a comment.
	ListCommentedPostIDs(ctx context.Context) ([]string, error)
}

type LikeStore interface {
	// InsertLike fails with ErrDuplicate when the (post, user) pair exists.
	InsertLike(ctx context.Context, like *models.Like) error
	FindLike(ctx context.Context, postID, userHandle string) (*models.Like, error)
	DeleteLike(ctx context.Context, id string) error
	CountLikes(ctx context.Context, postID string) (int64, error)
	DeleteLikesByPost(ctx context.Context, postID string) (int64, error)
	ListLikedPostIDs(ctx context.Context) ([]string, error)
}

type NotificationStore interface {
	InsertNotification(ctx context.Context, n *models.Notification) error
	ListNotifications(ctx context.Context, recipient string) ([]models.Notification, error)
	MarkNotificationRead(ctx context.Context, id, recipient string) (*models.Notification, error)
	DeleteNotification(ctx context.Context, id, recipient string) error
	DeleteLikeNotification(ctx context.Context, sender, postID string) error
	DeleteNotificationsByPost(ctx context.Context, postID string) (int64, error)
}

type Store interface {
	PostStore
	CommentStore
	LikeStore
	NotificationStore

	Ping(ctx context.Context) error
	Close(ctx context.Context) error
}

// BlobStore keeps uploaded images.
type BlobStore interface {
	Put(ctx context.Context, name, contentType string, r io.Reader) error
	Open(ctx context.Context, name string) (io.ReadCloser, string, error)
	// Delete removes name. A missing name is not an error.
	Delete(ctx context.Context, name string) error
}
