package services

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"strings"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"

	"github.com/theleywin/Backend-Social-Feed/src/cache"
	"github.com/theleywin/Backend-Social-Feed/src/events"
	"github.com/theleywin/Backend-Social-Feed/src/models"
	"github.com/theleywin/Backend-Social-Feed/src/store"
)

var (
	alice = models.User{Handle: "alice", ImageURL: "http://img/alice.png"}
	bob   = models.User{Handle: "bob", ImageURL: "http://img/bob.png"}
)

type recordingPublisher struct {
	mu     sync.Mutex
	events []events.Event
}

func (p *recordingPublisher) Publish(ctx context.Context, e events.Event) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.events = append(p.events, e)
	return nil
}

func (p *recordingPublisher) types() []events.Type {
	p.mu.Lock()
	defer p.mu.Unlock()
	var out []events.Type
	for _, e := range p.events {
		out = append(out, e.Type)
	}
	return out
}

type memoryBlobs struct {
	mu    sync.Mutex
	files map[string][]byte
	types map[string]string
}

func newMemoryBlobs() *memoryBlobs {
	return &memoryBlobs{files: map[string][]byte{}, types: map[string]string{}}
}

func (b *memoryBlobs) Put(ctx context.Context, name, contentType string, r io.Reader) error {
	data, err := io.ReadAll(r)
	if err != nil {
		return err
	}
	b.mu.Lock()
	defer b.mu.Unlock()
	b.files[name] = data
	b.types[name] = contentType
	return nil
}

func (b *memoryBlobs) Delete(ctx context.Context, name string) error {
	b.mu.Lock()
	defer b.mu.Unlock()
	delete(b.files, name)
	delete(b.types, name)
	return nil
}

func (b *memoryBlobs) count() int {
	b.mu.Lock()
	defer b.mu.Unlock()
	return len(b.files)
}

func (b *memoryBlobs) Open(ctx context.Context, name string) (io.ReadCloser, string, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	data, ok := b.files[name]
	if !ok {
		return nil, "", store.ErrNotFound
	}
	return io.NopCloser(bytes.NewReader(data)), b.types[name], nil
}

type fakeCache struct {
	posts         []models.Post
	cached        bool
	gen           int64
	sets          int
	invalidations int
}

func (c *fakeCache) GetFeed(ctx context.Context) ([]models.Post, error) {
	if !c.cached {
		return nil, cache.ErrMiss
	}
	return c.posts, nil
}

func (c *fakeCache) Generation(ctx context.Context) (int64, error) {
	return c.gen, nil
}

func (c *fakeCache) SetFeed(ctx context.Context, gen int64, posts []models.Post) error {
	if gen != c.gen {
		return cache.ErrStale
	}
	c.posts, c.cached = posts, true
	c.sets++
	return nil
}

func (c *fakeCache) Invalidate(ctx context.Context) error {
	c.posts, c.cached = nil, false
	c.gen++
	c.invalidations++
	return nil
}

// failingCommentStore loses every comment insert.
type failingCommentStore struct {
	*store.MemoryStore
}

func (s failingCommentStore) InsertComment(ctx context.Context, c *models.Comment) error {
	return &store.OpError{Op: "InsertComment", Code: "sqlite:error", Err: errors.New("disk I/O error")}
}

// failingImageStore cannot point a post at its image.
type failingImageStore struct {
	*store.MemoryStore
}

func (s failingImageStore) SetPostImage(ctx context.Context, id, url string) error {
	return &store.OpError{Op: "set image", Code: "sqlite:error", Err: errors.New("database is locked")}
}

func newTestService(t *testing.T, st store.Store, opts PostServiceOptions) *PostService {
	t.Helper()
	svc := NewPostService(st, newMemoryBlobs(), opts)
	svc.now = steppingClock()
	return svc
}

// steppingClock returns a clock that moves one second per call so
// createdAt ordering is deterministic.
func steppingClock() func() time.Time {
	base := time.Date(2024, 3, 1, 12, 0, 0, 0, time.UTC)
	var ticks atomic.Int64
	return func() time.Time {
		return base.Add(time.Duration(ticks.Add(1)) * time.Second)
	}
}

func mustCreatePost(t *testing.T, svc *PostService, user models.User, body string) *models.Post {
	t.Helper()
	post, err := svc.CreatePost(context.Background(), user, body)
	if err != nil {
		t.Fatalf("CreatePost: %v", err)
	}
	return post
}

func TestCreatePostRejectsEmptyBody(t *testing.T) {
	st := store.NewMemoryStore()
	svc := newTestService(t, st, PostServiceOptions{})

	for _, body := range []string{"", "   ", "\n\t"} {
		_, err := svc.CreatePost(context.Background(), alice, body)
		var verr *ValidationError
		if !errors.As(err, &verr) {
			t.Fatalf("CreatePost(%q): err = %v, want ValidationError", body, err)
		}
		if verr.Field != "body" || verr.Message != "Body must not be empty" {
			t.Fatalf("CreatePost(%q): got %+v", body, verr)
		}
	}

	posts, _ := st.ListPosts(context.Background())
	if len(posts) != 0 {
		t.Fatalf("rejected posts were stored: %+v", posts)
	}
}

func TestCreateThenGetPost(t *testing.T) {
	svc := newTestService(t, store.NewMemoryStore(), PostServiceOptions{})
	post := mustCreatePost(t, svc, alice, "hello")

	detail, err := svc.GetPost(context.Background(), post.ID)
	if err != nil {
		t.Fatalf("GetPost: %v", err)
	}
	if detail.Body != "hello" || detail.UserHandle != "alice" || detail.UserImage != alice.ImageURL {
		t.Fatalf("unexpected post %+v", detail.Post)
	}
	if detail.Comments == nil || len(detail.Comments) != 0 {
		t.Fatalf("Comments = %#v, want empty non-nil slice", detail.Comments)
	}
	if detail.LikeCount != 0 || detail.CommentCount != 0 {
		t.Fatalf("counters = %d/%d, want 0/0", detail.LikeCount, detail.CommentCount)
	}
}

func TestGetMissingPost(t *testing.T) {
	svc := newTestService(t, store.NewMemoryStore(), PostServiceOptions{})

	_, err := svc.GetPost(context.Background(), "nope")
	var nf *NotFoundError
	if !errors.As(err, &nf) || nf.Message != "Post not found" {
		t.Fatalf("err = %v, want NotFoundError", err)
	}
}

func TestListPostsNewestFirst(t *testing.T) {
	svc := newTestService(t, store.NewMemoryStore(), PostServiceOptions{})
	first := mustCreatePost(t, svc, alice, "first")
	second := mustCreatePost(t, svc, bob, "second")

	posts, err := svc.ListPosts(context.Background())
	if err != nil {
		t.Fatalf("ListPosts: %v", err)
	}
	if len(posts) != 2 || posts[0].ID != second.ID || posts[1].ID != first.ID {
		t.Fatalf("ListPosts order wrong: %+v", posts)
	}
}

func TestListPostsEmpty(t *testing.T) {
	svc := newTestService(t, store.NewMemoryStore(), PostServiceOptions{})

	posts, err := svc.ListPosts(context.Background())
	if err != nil {
		t.Fatalf("ListPosts: %v", err)
	}
	if posts == nil || len(posts) != 0 {
		t.Fatalf("ListPosts = %#v, want empty slice", posts)
	}
}

func TestListPostsUsesFeedCache(t *testing.T) {
	fc := &fakeCache{}
	svc := newTestService(t, store.NewMemoryStore(), PostServiceOptions{Cache: fc})
	post := mustCreatePost(t, svc, alice, "cached")

	if _, err := svc.ListPosts(context.Background()); err != nil {
		t.Fatalf("ListPosts: %v", err)
	}
	if fc.sets != 1 || !fc.cached {
		t.Fatalf("cache not filled on miss: sets=%d", fc.sets)
	}

	// Served from cache on the second read.
	fc.posts = []models.Post{{ID: "from-cache"}}
	posts, _ := svc.ListPosts(context.Background())
	if len(posts) != 1 || posts[0].ID != "from-cache" {
		t.Fatalf("ListPosts did not use cache: %+v", posts)
	}

	invalidations := fc.invalidations
	if _, err := svc.LikePost(context.Background(), bob, post.ID); err != nil {
		t.Fatalf("LikePost: %v", err)
	}
	if fc.invalidations != invalidations+1 {
		t.Fatalf("LikePost did not invalidate the feed cache")
	}
}

// writeDuringListStore runs write once, after ListPosts has read the posts
// and before the caller gets them back.
type writeDuringListStore struct {
	*store.MemoryStore
	once  sync.Once
	write func()
}

func (s *writeDuringListStore) ListPosts(ctx context.Context) ([]models.Post, error) {
	posts, err := s.MemoryStore.ListPosts(ctx)
	if s.write != nil {
		s.once.Do(s.write)
	}
	return posts, err
}

func TestListPostsDoesNotCacheFeedOlderThanAWrite(t *testing.T) {
	ctx := context.Background()
	mr := miniredis.RunT(t)
	rdb := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = rdb.Close() })

	st := &writeDuringListStore{MemoryStore: store.NewMemoryStore()}
	svc := newTestService(t, st, PostServiceOptions{Cache: cache.NewRedisFeedCache(rdb, time.Minute)})
	post := mustCreatePost(t, svc, alice, "racy")

	st.write = func() {
		if _, err := svc.LikePost(ctx, bob, post.ID); err != nil {
			t.Errorf("LikePost: %v", err)
		}
	}

	stale, err := svc.ListPosts(ctx)
	if err != nil {
		t.Fatalf("ListPosts: %v", err)
	}
	if len(stale) != 1 || stale[0].LikeCount != 0 {
		t.Fatalf("first ListPosts = %+v, want the pre-like snapshot", stale)
	}

	posts, err := svc.ListPosts(ctx)
	if err != nil {
		t.Fatalf("ListPosts: %v", err)
	}
	if len(posts) != 1 || posts[0].LikeCount != 1 {
		t.Fatalf("ListPosts after acknowledged like = %+v, want likeCount 1", posts)
	}
}

func TestLikeUnlikeSequence(t *testing.T) {
	ctx := context.Background()
	st := store.NewMemoryStore()
	svc := newTestService(t, st, PostServiceOptions{})
	post := mustCreatePost(t, svc, alice, "like me")

	got, err := svc.LikePost(ctx, alice, post.ID)
	if err != nil || got.LikeCount != 1 {
		t.Fatalf("LikePost(alice) = %+v, %v", got, err)
	}
	got, err = svc.LikePost(ctx, bob, post.ID)
	if err != nil || got.LikeCount != 2 {
		t.Fatalf("LikePost(bob) = %+v, %v", got, err)
	}
	got, err = svc.UnlikePost(ctx, alice, post.ID)
	if err != nil || got.LikeCount != 1 {
		t.Fatalf("UnlikePost(alice) = %+v, %v", got, err)
	}

	_, err = svc.UnlikePost(ctx, alice, post.ID)
	var conflict *ConflictError
	if !errors.As(err, &conflict) || conflict.Message != "Post not liked" {
		t.Fatalf("second UnlikePost: err = %v, want ConflictError", err)
	}

	got, err = svc.UnlikePost(ctx, bob, post.ID)
	if err != nil || got.LikeCount != 0 {
		t.Fatalf("UnlikePost(bob) = %+v, %v", got, err)
	}
	_, err = svc.UnlikePost(ctx, bob, post.ID)
	if !errors.As(err, &conflict) {
		t.Fatalf("UnlikePost at zero: err = %v, want ConflictError", err)
	}

	stored, _ := st.GetPost(ctx, post.ID)
	likes, _ := st.CountLikes(ctx, post.ID)
	if stored.LikeCount != 0 || likes != 0 {
		t.Fatalf("likeCount = %d, likes = %d; want 0, 0", stored.LikeCount, likes)
	}
}

func TestLikeTwiceCountsOnce(t *testing.T) {
	ctx := context.Background()
	st := store.NewMemoryStore()
	svc := newTestService(t, st, PostServiceOptions{})
	post := mustCreatePost(t, svc, alice, "once")

	if _, err := svc.LikePost(ctx, bob, post.ID); err != nil {
		t.Fatalf("LikePost: %v", err)
	}
	_, err := svc.LikePost(ctx, bob, post.ID)
	var conflict *ConflictError
	if !errors.As(err, &conflict) || conflict.Message != "Post already liked" {
		t.Fatalf("second LikePost: err = %v, want ConflictError", err)
	}

	stored, _ := st.GetPost(ctx, post.ID)
	if stored.LikeCount != 1 {
		t.Fatalf("likeCount = %d, want 1", stored.LikeCount)
	}
}

func TestLikeMissingPost(t *testing.T) {
	svc := newTestService(t, store.NewMemoryStore(), PostServiceOptions{})

	var nf *NotFoundError
	if _, err := svc.LikePost(context.Background(), bob, "missing"); !errors.As(err, &nf) {
		t.Fatalf("LikePost: err = %v, want NotFoundError", err)
	}
	if _, err := svc.UnlikePost(context.Background(), bob, "missing"); !errors.As(err, &nf) {
		t.Fatalf("UnlikePost: err = %v, want NotFoundError", err)
	}
}

func TestCommentOnMissingPostWritesNothing(t *testing.T) {
	ctx := context.Background()
	st := store.NewMemoryStore()
	svc := newTestService(t, st, PostServiceOptions{})

	_, err := svc.CommentOnPost(ctx, bob, "missing", "hi")
	var nf *NotFoundError
	if !errors.As(err, &nf) {
		t.Fatalf("err = %v, want NotFoundError", err)
	}
	if n, _ := st.CountComments(ctx, "missing"); n != 0 {
		t.Fatalf("comments stored for missing post: %d", n)
	}
}

func TestCommentRejectsEmptyBody(t *testing.T) {
	svc := newTestService(t, store.NewMemoryStore(), PostServiceOptions{})
	post := mustCreatePost(t, svc, alice, "post")

	_, err := svc.CommentOnPost(context.Background(), bob, post.ID, "  ")
	var verr *ValidationError
	if !errors.As(err, &verr) || verr.Field != "comment" || verr.Message != "Must not be empty" {
		t.Fatalf("err = %v, want comment ValidationError", err)
	}
}

func TestCommentOnPost(t *testing.T) {
	ctx := context.Background()
	svc := newTestService(t, store.NewMemoryStore(), PostServiceOptions{})
	post := mustCreatePost(t, svc, alice, "post")

	first, err := svc.CommentOnPost(ctx, bob, post.ID, "first")
	if err != nil {
		t.Fatalf("CommentOnPost: %v", err)
	}
	if first.ID == "" || first.PostID != post.ID || first.UserHandle != "bob" || first.UserImage != bob.ImageURL {
		t.Fatalf("unexpected comment %+v", first)
	}
	second, err := svc.CommentOnPost(ctx, alice, post.ID, "second")
	if err != nil {
		t.Fatalf("CommentOnPost: %v", err)
	}

	detail, err := svc.GetPost(ctx, post.ID)
	if err != nil {
		t.Fatalf("GetPost: %v", err)
	}
	if detail.CommentCount != 2 {
		t.Fatalf("commentCount = %d, want 2", detail.CommentCount)
	}
	if len(detail.Comments) != 2 || detail.Comments[0].ID != second.ID || detail.Comments[1].ID != first.ID {
		t.Fatalf("comments not newest first: %+v", detail.Comments)
	}
}

func TestCommentInsertFailureRestoresCount(t *testing.T) {
	ctx := context.Background()
	mem := store.NewMemoryStore()
	svc := newTestService(t, failingCommentStore{mem}, PostServiceOptions{})
	post := mustCreatePost(t, svc, alice, "post")

	_, err := svc.CommentOnPost(ctx, bob, post.ID, "lost")
	var serr *StoreError
	if !errors.As(err, &serr) || serr.Code != "sqlite:error" {
		t.Fatalf("err = %v, want StoreError with native code", err)
	}

	stored, _ := mem.GetPost(ctx, post.ID)
	if stored.CommentCount != 0 {
		t.Fatalf("commentCount = %d after failed insert, want 0", stored.CommentCount)
	}
}

func TestDeletePostByNonOwner(t *testing.T) {
	ctx := context.Background()
	st := store.NewMemoryStore()
	svc := newTestService(t, st, PostServiceOptions{})
	post := mustCreatePost(t, svc, alice, "mine")

	err := svc.DeletePost(ctx, bob, post.ID)
	var aerr *AuthorizationError
	if !errors.As(err, &aerr) {
		t.Fatalf("err = %v, want AuthorizationError", err)
	}
	if _, err := st.GetPost(ctx, post.ID); err != nil {
		t.Fatalf("post was deleted by non-owner: %v", err)
	}
}

func TestDeleteMissingPost(t *testing.T) {
	svc := newTestService(t, store.NewMemoryStore(), PostServiceOptions{})

	var nf *NotFoundError
	if err := svc.DeletePost(context.Background(), alice, "missing"); !errors.As(err, &nf) {
		t.Fatalf("err = %v, want NotFoundError", err)
	}
}

func TestDeletePostPolicies(t *testing.T) {
	tests := []struct {
		name         string
		cascade      bool
		wantChildren int64
	}{
		{name: "orphan", cascade: false, wantChildren: 1},
		{name: "cascade", cascade: true, wantChildren: 0},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			ctx := context.Background()
			st := store.NewMemoryStore()
			pub := &recordingPublisher{}
			svc := newTestService(t, st, PostServiceOptions{CascadeDelete: tt.cascade, Publisher: pub})
			post := mustCreatePost(t, svc, alice, "short lived")

			if _, err := svc.CommentOnPost(ctx, bob, post.ID, "hi"); err != nil {
				t.Fatalf("CommentOnPost: %v", err)
			}
			if _, err := svc.LikePost(ctx, bob, post.ID); err != nil {
				t.Fatalf("LikePost: %v", err)
			}

			if err := svc.DeletePost(ctx, alice, post.ID); err != nil {
				t.Fatalf("DeletePost: %v", err)
			}
			if _, err := st.GetPost(ctx, post.ID); !errors.Is(err, store.ErrNotFound) {
				t.Fatalf("post still present: %v", err)
			}

			comments, _ := st.CountComments(ctx, post.ID)
			likes, _ := st.CountLikes(ctx, post.ID)
			if comments != tt.wantChildren || likes != tt.wantChildren {
				t.Fatalf("comments=%d likes=%d, want %d each", comments, likes, tt.wantChildren)
			}

			last := pub.events[len(pub.events)-1]
			if last.Type != events.PostDeleted || last.Cascade != tt.cascade {
				t.Fatalf("last event = %+v", last)
			}
		})
	}
}

func TestConcurrentLikesAreAllCounted(t *testing.T) {
	ctx := context.Background()
	st := store.NewMemoryStore()
	svc := newTestService(t, st, PostServiceOptions{})
	post := mustCreatePost(t, svc, alice, "popular")

	const actors = 25
	var wg sync.WaitGroup
	errs := make(chan error, actors)
	for i := 0; i < actors; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			_, err := svc.LikePost(ctx, models.User{Handle: fmt.Sprintf("user-%d", i)}, post.ID)
			errs <- err
		}(i)
	}
	wg.Wait()
	close(errs)

	for err := range errs {
		if err != nil {
			t.Fatalf("LikePost: %v", err)
		}
	}

	stored, _ := st.GetPost(ctx, post.ID)
	likes, _ := st.CountLikes(ctx, post.ID)
	if likes != actors {
		t.Fatalf("likes = %d, want %d", likes, actors)
	}
	// Atomic increments leave no lost-update window.
	if stored.LikeCount != actors {
		t.Fatalf("likeCount = %d, want %d", stored.LikeCount, actors)
	}
}

func TestConcurrentDoubleLikeBySameUser(t *testing.T) {
	ctx := context.Background()
	st := store.NewMemoryStore()
	svc := newTestService(t, st, PostServiceOptions{})
	post := mustCreatePost(t, svc, alice, "post")

	const attempts = 10
	var wg sync.WaitGroup
	var ok, conflicts atomic.Int64
	for i := 0; i < attempts; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, err := svc.LikePost(ctx, bob, post.ID)
			var conflict *ConflictError
			switch {
			case err == nil:
				ok.Add(1)
			case errors.As(err, &conflict):
				conflicts.Add(1)
			default:
				t.Errorf("LikePost: %v", err)
			}
		}()
	}
	wg.Wait()

	if ok.Load() != 1 || conflicts.Load() != attempts-1 {
		t.Fatalf("ok=%d conflicts=%d, want 1 and %d", ok.Load(), conflicts.Load(), attempts-1)
	}
	stored, _ := st.GetPost(ctx, post.ID)
	if stored.LikeCount != 1 {
		t.Fatalf("likeCount = %d, want 1", stored.LikeCount)
	}
}

func TestConcurrentCommentsAreAllCounted(t *testing.T) {
	ctx := context.Background()
	st := store.NewMemoryStore()
	svc := newTestService(t, st, PostServiceOptions{})
	post := mustCreatePost(t, svc, alice, "thread")

	const writers = 20
	var wg sync.WaitGroup
	for i := 0; i < writers; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			if _, err := svc.CommentOnPost(ctx, bob, post.ID, fmt.Sprintf("comment %d", i)); err != nil {
				t.Errorf("CommentOnPost: %v", err)
			}
		}(i)
	}
	wg.Wait()

	stored, _ := st.GetPost(ctx, post.ID)
	comments, _ := st.CountComments(ctx, post.ID)
	if stored.CommentCount != writers || comments != writers {
		t.Fatalf("commentCount=%d comments=%d, want %d", stored.CommentCount, comments, writers)
	}
}

func TestPublishesEvents(t *testing.T) {
	ctx := context.Background()
	pub := &recordingPublisher{}
	svc := newTestService(t, store.NewMemoryStore(), PostServiceOptions{Publisher: pub})
	post := mustCreatePost(t, svc, alice, "evented")

	if _, err := svc.LikePost(ctx, bob, post.ID); err != nil {
		t.Fatalf("LikePost: %v", err)
	}
	comment, err := svc.CommentOnPost(ctx, bob, post.ID, "nice")
	if err != nil {
		t.Fatalf("CommentOnPost: %v", err)
	}
	if _, err := svc.UnlikePost(ctx, bob, post.ID); err != nil {
		t.Fatalf("UnlikePost: %v", err)
	}

	want := []events.Type{events.PostCreated, events.PostLiked, events.PostCommented, events.PostUnliked}
	got := pub.types()
	if fmt.Sprint(got) != fmt.Sprint(want) {
		t.Fatalf("events = %v, want %v", got, want)
	}

	commented := pub.events[2]
	if commented.Actor != "bob" || commented.Recipient != "alice" || commented.CommentID != comment.ID || commented.At.IsZero() {
		t.Fatalf("unexpected comment event %+v", commented)
	}
}

func TestSetPostImage(t *testing.T) {
	ctx := context.Background()
	st := store.NewMemoryStore()
	blobs := newMemoryBlobs()
	svc := NewPostService(st, blobs, PostServiceOptions{PublicBaseURL: "http://feed.test/", MaxUploadBytes: 16})
	post := mustCreatePost(t, svc, alice, "with image")

	upload := func(contentType, data string) ImageUpload {
		return ImageUpload{ContentType: contentType, Size: int64(len(data)), Reader: strings.NewReader(data)}
	}

	_, err := svc.SetPostImage(ctx, alice, post.ID, upload("image/gif", "GIF89a"))
	var verr *ValidationError
	if !errors.As(err, &verr) || verr.Message != "Wrong filetype submitted" {
		t.Fatalf("gif upload: err = %v, want wrong filetype", err)
	}

	_, err = svc.SetPostImage(ctx, alice, post.ID, upload("image/png", strings.Repeat("x", 17)))
	if !errors.As(err, &verr) || verr.Message != "File too large" {
		t.Fatalf("large upload: err = %v, want file too large", err)
	}

	var aerr *AuthorizationError
	if _, err := svc.SetPostImage(ctx, bob, post.ID, upload("image/png", "png")); !errors.As(err, &aerr) {
		t.Fatalf("non-owner upload: err = %v, want AuthorizationError", err)
	}

	var nf *NotFoundError
	if _, err := svc.SetPostImage(ctx, alice, "missing", upload("image/png", "png")); !errors.As(err, &nf) {
		t.Fatalf("missing post: err = %v, want NotFoundError", err)
	}

	url, err := svc.SetPostImage(ctx, alice, post.ID, upload("image/jpeg", "jpegdata"))
	if err != nil {
		t.Fatalf("SetPostImage: %v", err)
	}
	if !strings.HasPrefix(url, "http://feed.test/images/") || !strings.HasSuffix(url, ".jpg") {
		t.Fatalf("url = %q", url)
	}

	stored, _ := st.GetPost(ctx, post.ID)
	if stored.Image != url {
		t.Fatalf("post image = %q, want %q", stored.Image, url)
	}

	name := strings.TrimPrefix(url, "http://feed.test/images/")
	rc, contentType, err := svc.OpenImage(ctx, name)
	if err != nil {
		t.Fatalf("OpenImage: %v", err)
	}
	defer rc.Close()
	data, _ := io.ReadAll(rc)
	if string(data) != "jpegdata" || contentType != "image/jpeg" {
		t.Fatalf("OpenImage = %q, %q", data, contentType)
	}

	if _, _, err := svc.OpenImage(ctx, "missing.png"); !errors.As(err, &nf) {
		t.Fatalf("OpenImage(missing): err = %v, want NotFoundError", err)
	}
}

func TestSetPostImageRemovesBlobWhenPostUpdateFails(t *testing.T) {
	ctx := context.Background()
	blobs := newMemoryBlobs()
	svc := NewPostService(failingImageStore{store.NewMemoryStore()}, blobs, PostServiceOptions{})
	post := mustCreatePost(t, svc, alice, "with image")

	_, err := svc.SetPostImage(ctx, alice, post.ID, ImageUpload{ContentType: "image/png", Size: 3, Reader: strings.NewReader("png")})
	var serr *StoreError
	if !errors.As(err, &serr) || serr.Code != "sqlite:error" {
		t.Fatalf("err = %v, want StoreError with native code", err)
	}
	if n := blobs.count(); n != 0 {
		t.Fatalf("%d image(s) left behind", n)
	}
}
