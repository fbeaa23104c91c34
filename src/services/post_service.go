package services

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"strings"
	"time"

	"github.com/google/uuid"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"github.com/theleywin/Backend-Social-Feed/src/cache"
	"github.com/theleywin/Backend-Social-Feed/src/events"
	"github.com/theleywin/Backend-Social-Feed/src/models"
	"github.com/theleywin/Backend-Social-Feed/src/store"
)

const (
	msgPostNotFound   = "Post not found"
	msgAlreadyLiked   = "Post already liked"
	msgNotLiked       = "Post not liked"
	msgWrongFiletype  = "Wrong filetype submitted"
	msgFileTooLarge   = "File too large"
	msgBodyEmpty      = "Body must not be empty"
	msgCommentEmpty   = "Must not be empty"
	defaultUploadSize = 5 << 20
)

var imageExtensions = map[string]string{
	"image/jpeg": ".jpg",
	"image/png":  ".png",
}

// FeedCache holds the ListPosts result between writes. SetFeed must refuse
// a fill whose generation was superseded by an Invalidate.
type FeedCache interface {
	GetFeed(ctx context.Context) ([]models.Post, error)
	Generation(ctx context.Context) (int64, error)
	SetFeed(ctx context.Context, gen int64, posts []models.Post) error
	Invalidate(ctx context.Context) error
}

type PostServiceOptions struct {
	Cache     FeedCache
	Publisher events.Publisher
	// CascadeDelete removes a post's comments and likes together with the
	// post. Otherwise they are left for the reaper.
	CascadeDelete  bool
	PublicBaseURL  string
	MaxUploadBytes int64
}

// PostService applies the counter protocol: every change to a post's
// comments or likes is paired with one atomic increment of the matching
// counter on the post.
type PostService struct {
	store  store.Store
	blobs  store.BlobStore
	opts   PostServiceOptions
	tracer trace.Tracer
	now    func() time.Time
}

func NewPostService(st store.Store, blobs store.BlobStore, opts PostServiceOptions) *PostService {
	if opts.MaxUploadBytes <= 0 {
		opts.MaxUploadBytes = defaultUploadSize
	}
	opts.PublicBaseURL = strings.TrimRight(opts.PublicBaseURL, "/")
	return &PostService{
		store:  st,
		blobs:  blobs,
		opts:   opts,
		tracer: otel.Tracer("social-feed/services"),
		now:    time.Now,
	}
}

// ImageUpload is a file received for a post.
type ImageUpload struct {
	ContentType string
	Size        int64
	Reader      io.Reader
}

func (s *PostService) ListPosts(ctx context.Context) (posts []models.Post, err error) {
	ctx, span := s.tracer.Start(ctx, "PostService.ListPosts")
	defer func() { endSpan(span, err) }()

	fill := false
	var gen int64
	if s.opts.Cache != nil {
		cached, cerr := s.opts.Cache.GetFeed(ctx)
		if cerr == nil {
			span.SetAttributes(attribute.Bool("cache.hit", true))
			return cached, nil
		}
		if !errors.Is(cerr, cache.ErrMiss) {
			slog.Warn("Feed cache read failed", "error", cerr)
		}
		// The generation is read before the store so a write landing in
		// between voids the fill.
		if gen, cerr = s.opts.Cache.Generation(ctx); cerr == nil {
			fill = true
		} else {
			slog.Warn("Feed cache generation read failed", "error", cerr)
		}
	}

	posts, err = s.store.ListPosts(ctx)
	if err != nil {
		slog.Error("Error listing posts", "error", err)
		return nil, storeError(err)
	}
	if posts == nil {
		posts = []models.Post{}
	}

	if fill {
		cerr := s.opts.Cache.SetFeed(ctx, gen, posts)
		switch {
		case errors.Is(cerr, cache.ErrStale):
			slog.Debug("Feed changed during read, cache fill skipped")
		case cerr != nil:
			slog.Warn("Feed cache write failed", "error", cerr)
		}
	}
	return posts, nil
}

func (s *PostService) CreatePost(ctx context.Context, user models.User, body string) (post *models.Post, err error) {
	ctx, span := s.tracer.Start(ctx, "PostService.CreatePost", trace.WithAttributes(attribute.String("user.handle", user.Handle)))
	defer func() { endSpan(span, err) }()

	if strings.TrimSpace(body) == "" {
		return nil, &ValidationError{Field: "body", Message: msgBodyEmpty}
	}

	post = &models.Post{
		Body:       body,
		UserHandle: user.Handle,
		UserImage:  user.ImageURL,
		CreatedAt:  s.now().UTC(),
	}
	if err := s.store.InsertPost(ctx, post); err != nil {
		slog.Error("Error creating post", "error", err)
		return nil, storeError(err)
	}

	s.invalidateFeed(ctx)
	s.publish(ctx, events.Event{Type: events.PostCreated, PostID: post.ID, Actor: user.Handle, Recipient: user.Handle})
	return post, nil
}

// GetPost returns the post with its comments, newest first.
func (s *PostService) GetPost(ctx context.Context, id string) (detail *models.PostDetail, err error) {
	ctx, span := s.tracer.Start(ctx, "PostService.GetPost", trace.WithAttributes(attribute.String("post.id", id)))
	defer func() { endSpan(span, err) }()

	post, err := s.store.GetPost(ctx, id)
	if err != nil {
		return nil, notFoundOr(err, msgPostNotFound)
	}

	comments, err := s.store.ListComments(ctx, id)
	if err != nil {
		slog.Error("Error listing comments", "post_id", id, "error", err)
		return nil, storeError(err)
	}
	if comments == nil {
		comments = []models.Comment{}
	}
	return &models.PostDetail{Post: *post, Comments: comments}, nil
}

// CommentOnPost counts the comment first and then stores it. If the insert
// fails the count is taken back.
func (s *PostService) CommentOnPost(ctx context.Context, user models.User, id, body string) (comment *models.Comment, err error) {
	ctx, span := s.tracer.Start(ctx, "PostService.CommentOnPost", trace.WithAttributes(
		attribute.String("post.id", id),
		attribute.String("user.handle", user.Handle),
	))
	defer func() { endSpan(span, err) }()

	if strings.TrimSpace(body) == "" {
		return nil, &ValidationError{Field: "comment", Message: msgCommentEmpty}
	}

	if _, err := s.store.GetPost(ctx, id); err != nil {
		return nil, notFoundOr(err, msgPostNotFound)
	}

	post, err := s.store.IncrementPostCounter(ctx, id, models.CommentCount, 1)
	if err != nil {
		// Deleted since the read above.
		return nil, notFoundOr(err, msgPostNotFound)
	}

	comment = &models.Comment{
		PostID:     id,
		Body:       body,
		UserHandle: user.Handle,
		UserImage:  user.ImageURL,
		CreatedAt:  s.now().UTC(),
	}
	if err := s.store.InsertComment(ctx, comment); err != nil {
		slog.Error("Error creating comment", "post_id", id, "error", err)
		if _, cerr := s.store.IncrementPostCounter(ctx, id, models.CommentCount, -1); cerr != nil {
			slog.Error("Could not take back comment count", "post_id", id, "error", cerr)
		}
		return nil, storeError(err)
	}

	s.invalidateFeed(ctx)
	s.publish(ctx, events.Event{
		Type:      events.PostCommented,
		PostID:    id,
		Actor:     user.Handle,
		Recipient: post.UserHandle,
		CommentID: comment.ID,
	})
	return comment, nil
}

func (s *PostService) LikePost(ctx context.Context, user models.User, id string) (post *models.Post, err error) {
	ctx, span := s.tracer.Start(ctx, "PostService.LikePost", trace.WithAttributes(
		attribute.String("post.id", id),
		attribute.String("user.handle", user.Handle),
	))
	defer func() { endSpan(span, err) }()

	if _, err := s.store.GetPost(ctx, id); err != nil {
		return nil, notFoundOr(err, msgPostNotFound)
	}

	_, err = s.store.FindLike(ctx, id, user.Handle)
	switch {
	case err == nil:
		return nil, &ConflictError{Message: msgAlreadyLiked}
	case !errors.Is(err, store.ErrNotFound):
		slog.Error("Error looking up like", "post_id", id, "error", err)
		return nil, storeError(err)
	}

	like := &models.Like{PostID: id, UserHandle: user.Handle, CreatedAt: s.now().UTC()}
	if err := s.store.InsertLike(ctx, like); err != nil {
		if errors.Is(err, store.ErrDuplicate) {
			// A concurrent like from the same user won.
			return nil, &ConflictError{Message: msgAlreadyLiked}
		}
		slog.Error("Error creating like", "post_id", id, "error", err)
		return nil, storeError(err)
	}

	post, err = s.store.IncrementPostCounter(ctx, id, models.LikeCount, 1)
	if err != nil {
		if derr := s.store.DeleteLike(ctx, like.ID); derr != nil && !errors.Is(derr, store.ErrNotFound) {
			slog.Error("Could not remove uncounted like", "post_id", id, "error", derr)
		}
		return nil, notFoundOr(err, msgPostNotFound)
	}

	s.invalidateFeed(ctx)
	s.publish(ctx, events.Event{Type: events.PostLiked, PostID: id, Actor: user.Handle, Recipient: post.UserHandle})
	return post, nil
}

func (s *PostService) UnlikePost(ctx context.Context, user models.User, id string) (post *models.Post, err error) {
	ctx, span := s.tracer.Start(ctx, "PostService.UnlikePost", trace.WithAttributes(
		attribute.String("post.id", id),
		attribute.String("user.handle", user.Handle),
	))
	defer func() { endSpan(span, err) }()

	if _, err := s.store.GetPost(ctx, id); err != nil {
		return nil, notFoundOr(err, msgPostNotFound)
	}

	like, err := s.store.FindLike(ctx, id, user.Handle)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return nil, &ConflictError{Message: msgNotLiked}
		}
		slog.Error("Error looking up like", "post_id", id, "error", err)
		return nil, storeError(err)
	}

	// Only the request whose delete removed the like may decrement, so the
	// counter never drops below the number of likes.
	if err := s.store.DeleteLike(ctx, like.ID); err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return nil, &ConflictError{Message: msgNotLiked}
		}
		slog.Error("Error deleting like", "post_id", id, "error", err)
		return nil, storeError(err)
	}

	post, err = s.store.IncrementPostCounter(ctx, id, models.LikeCount, -1)
	if err != nil {
		return nil, notFoundOr(err, msgPostNotFound)
	}

	s.invalidateFeed(ctx)
	s.publish(ctx, events.Event{Type: events.PostUnliked, PostID: id, Actor: user.Handle, Recipient: post.UserHandle})
	return post, nil
}

// DeletePost removes a post owned by user. Its comments and likes go with it
// only under the cascade policy.
func (s *PostService) DeletePost(ctx context.Context, user models.User, id string) (err error) {
	ctx, span := s.tracer.Start(ctx, "PostService.DeletePost", trace.WithAttributes(
		attribute.String("post.id", id),
		attribute.String("user.handle", user.Handle),
		attribute.Bool("delete.cascade", s.opts.CascadeDelete),
	))
	defer func() { endSpan(span, err) }()

	post, err := s.store.GetPost(ctx, id)
	if err != nil {
		return notFoundOr(err, msgPostNotFound)
	}
	if post.UserHandle != user.Handle {
		return &AuthorizationError{}
	}

	if err := s.store.DeletePost(ctx, id); err != nil {
		if !errors.Is(err, store.ErrNotFound) {
			slog.Error("Error deleting post", "post_id", id, "error", err)
		}
		return notFoundOr(err, msgPostNotFound)
	}

	if s.opts.CascadeDelete {
		s.deleteChildren(ctx, id)
	}

	s.invalidateFeed(ctx)
	s.publish(ctx, events.Event{
		Type:      events.PostDeleted,
		PostID:    id,
		Actor:     user.Handle,
		Recipient: post.UserHandle,
		Cascade:   s.opts.CascadeDelete,
	})
	return nil
}

// deleteChildren is best effort; whatever it misses the reaper removes.
func (s *PostService) deleteChildren(ctx context.Context, id string) {
	comments, err := s.store.DeleteCommentsByPost(ctx, id)
	if err != nil {
		slog.Error("Error deleting comments of post", "post_id", id, "error", err)
	}
	likes, err := s.store.DeleteLikesByPost(ctx, id)
	if err != nil {
		slog.Error("Error deleting likes of post", "post_id", id, "error", err)
	}
	slog.Debug("Deleted post children", "post_id", id, "comments", comments, "likes", likes)
}

// SetPostImage stores a jpeg or png upload and points the post's image at it.
// It returns the public URL of the stored file.
func (s *PostService) SetPostImage(ctx context.Context, user models.User, id string, upload ImageUpload) (url string, err error) {
	ctx, span := s.tracer.Start(ctx, "PostService.SetPostImage", trace.WithAttributes(
		attribute.String("post.id", id),
		attribute.String("image.content_type", upload.ContentType),
		attribute.Int64("image.size", upload.Size),
	))
	defer func() { endSpan(span, err) }()

	ext, ok := imageExtensions[upload.ContentType]
	if !ok {
		return "", &ValidationError{Field: "error", Message: msgWrongFiletype}
	}
	if upload.Size > s.opts.MaxUploadBytes {
		return "", &ValidationError{Field: "error", Message: msgFileTooLarge}
	}

	post, err := s.store.GetPost(ctx, id)
	if err != nil {
		return "", notFoundOr(err, msgPostNotFound)
	}
	if post.UserHandle != user.Handle {
		return "", &AuthorizationError{}
	}

	name := uuid.NewString() + ext
	if err := s.blobs.Put(ctx, name, upload.ContentType, io.LimitReader(upload.Reader, s.opts.MaxUploadBytes)); err != nil {
		slog.Error("Error storing image", "post_id", id, "error", err)
		return "", storeError(err)
	}

	url = s.opts.PublicBaseURL + "/images/" + name
	if err := s.store.SetPostImage(ctx, id, url); err != nil {
		if derr := s.blobs.Delete(ctx, name); derr != nil {
			slog.Warn("Failed to remove unreferenced image", "name", name, "error", derr)
		}
		return "", notFoundOr(err, msgPostNotFound)
	}

	s.invalidateFeed(ctx)
	return url, nil
}

// OpenImage streams a stored image back.
func (s *PostService) OpenImage(ctx context.Context, name string) (io.ReadCloser, string, error) {
	rc, contentType, err := s.blobs.Open(ctx, name)
	if err != nil {
		return nil, "", notFoundOr(err, "Image not found")
	}
	return rc, contentType, nil
}

func (s *PostService) invalidateFeed(ctx context.Context) {
	if s.opts.Cache == nil {
		return
	}
	if err := s.opts.Cache.Invalidate(ctx); err != nil {
		slog.Warn("Feed cache invalidation failed", "error", err)
	}
}

// publish never fails the request; a lost event only costs a notification.
func (s *PostService) publish(ctx context.Context, e events.Event) {
	if s.opts.Publisher == nil {
		return
	}
	e.At = s.now().UTC()
	if err := s.opts.Publisher.Publish(ctx, e); err != nil {
		slog.Warn("Failed to publish event", "type", e.Type, "post_id", e.PostID, "error", err)
	}
}

func endSpan(span trace.Span, err error) {
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
	}
	span.End()
}
