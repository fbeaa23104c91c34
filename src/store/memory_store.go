package store

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/theleywin/Backend-Social-Feed/src/models"
)

// MemoryStore keeps everything in process. Used by tests and STORE_DRIVER=memory.
type MemoryStore struct {
	mu            sync.RWMutex
	posts         map[string]models.Post
	comments      map[string]models.Comment
	likes         map[string]models.Like
	notifications map[string]models.Notification

	// seq records insertion order so equal createdAt values sort the same
	// way on every call.
	seq     map[string]uint64
	nextSeq uint64
}

func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		posts:         make(map[string]models.Post),
		comments:      make(map[string]models.Comment),
		likes:         make(map[string]models.Like),
		notifications: make(map[string]models.Notification),
		seq:           make(map[string]uint64),
	}
}

// newID assigns an id and its insertion sequence. Callers hold s.mu.
func (s *MemoryStore) newID() string {
	id := uuid.NewString()
	s.nextSeq++
	s.seq[id] = s.nextSeq
	return id
}

// newestFirst orders by createdAt descending, then by latest insertion.
func (s *MemoryStore) newestFirst(a, b time.Time, idA, idB string) bool {
	if !a.Equal(b) {
		return a.After(b)
	}
	return s.seq[idA] > s.seq[idB]
}

func (s *MemoryStore) InsertPost(ctx context.Context, post *models.Post) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	post.ID = s.newID()
	s.posts[post.ID] = *post
	return nil
}

func (s *MemoryStore) GetPost(ctx context.Context, id string) (*models.Post, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	p, ok := s.posts[id]
	if !ok {
		return nil, ErrNotFound
	}
	return &p, nil
}

func (s *MemoryStore) ListPosts(ctx context.Context) ([]models.Post, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	posts := make([]models.Post, 0, len(s.posts))
	for _, p := range s.posts {
		posts = append(posts, p)
	}
	sort.Slice(posts, func(i, j int) bool {
		return s.newestFirst(posts[i].CreatedAt, posts[j].CreatedAt, posts[i].ID, posts[j].ID)
	})
	return posts, nil
}

func (s *MemoryStore) ListPostIDs(ctx context.Context) ([]string, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	ids := make([]string, 0, len(s.posts))
	for id := range s.posts {
		ids = append(ids, id)
	}
	return ids, nil
}

func (s *MemoryStore) IncrementPostCounter(ctx context.Context, id string, field models.CounterField, delta int64) (*models.Post, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	p, ok := s.posts[id]
	if !ok {
		return nil, ErrNotFound
	}
	switch field {
	case models.LikeCount:
		p.LikeCount += delta
	case models.CommentCount:
		p.CommentCount += delta
	}
	s.posts[id] = p
	return &p, nil
}

func (s *MemoryStore) SetPostCounters(ctx context.Context, id string, likes, comments int64) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	p, ok := s.posts[id]
	if !ok {
		return ErrNotFound
	}
	p.LikeCount, p.CommentCount = likes, comments
	s.posts[id] = p
	return nil
}

func (s *MemoryStore) SetPostImage(ctx context.Context, id, url string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	p, ok := s.posts[id]
	if !ok {
		return ErrNotFound
	}
	p.Image = url
	s.posts[id] = p
	return nil
}

func (s *MemoryStore) DeletePost(ctx context.Context, id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.posts[id]; !ok {
		return ErrNotFound
	}
	delete(s.posts, id)
	delete(s.seq, id)
	return nil
}

func (s *MemoryStore) InsertComment(ctx context.Context, comment *models.Comment) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	comment.ID = s.newID()
	s.comments[comment.ID] = *comment
	return nil
}

func (s *MemoryStore) ListComments(ctx context.Context, postID string) ([]models.Comment, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	comments := []models.Comment{}
	for _, c := range s.comments {
		if c.PostID == postID {
			comments = append(comments, c)
		}
	}
	sort.Slice(comments, func(i, j int) bool {
		return s.newestFirst(comments[i].CreatedAt, comments[j].CreatedAt, comments[i].ID, comments[j].ID)
	})
	return comments, nil
}

func (s *MemoryStore) CountComments(ctx context.Context, postID string) (int64, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	var n int64
	for _, c := range s.comments {
		if c.PostID == postID {
			n++
		}
	}
	return n, nil
}

func (s *MemoryStore) DeleteCommentsByPost(ctx context.Context, postID string) (int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var n int64
	for id, c := range s.comments {
		if c.PostID == postID {
			delete(s.comments, id)
			delete(s.seq, id)
			n++
		}
	}
	return n, nil
}

func (s *MemoryStore) ListCommentedPostIDs(ctx context.Context) ([]string, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	seen := make(map[string]struct{})
	for _, c := range s.comments {
		seen[c.PostID] = struct{}{}
	}
	return keys(seen), nil
}

func (s *MemoryStore) InsertLike(ctx context.Context, like *models.Like) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, l := range s.likes {
		if l.PostID == like.PostID && l.UserHandle == like.UserHandle {
			return ErrDuplicate
		}
	}
	like.ID = s.newID()
	s.likes[like.ID] = *like
	return nil
}

func (s *MemoryStore) FindLike(ctx context.Context, postID, userHandle string) (*models.Like, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	for _, l := range s.likes {
		if l.PostID == postID && l.UserHandle == userHandle {
			return &l, nil
		}
	}
	return nil, ErrNotFound
}

func (s *MemoryStore) DeleteLike(ctx context.Context, id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.likes[id]; !ok {
		return ErrNotFound
	}
	delete(s.likes, id)
	delete(s.seq, id)
	return nil
}

func (s *MemoryStore) CountLikes(ctx context.Context, postID string) (int64, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	var n int64
	for _, l := range s.likes {
		if l.PostID == postID {
			n++
		}
	}
	return n, nil
}

func (s *MemoryStore) DeleteLikesByPost(ctx context.Context, postID string) (int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var n int64
	for id, l := range s.likes {
		if l.PostID == postID {
			delete(s.likes, id)
			delete(s.seq, id)
			n++
		}
	}
	return n, nil
}

func (s *MemoryStore) ListLikedPostIDs(ctx context.Context) ([]string, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	seen := make(map[string]struct{})
	for _, l := range s.likes {
		seen[l.PostID] = struct{}{}
	}
	return keys(seen), nil
}

func (s *MemoryStore) InsertNotification(ctx context.Context, n *models.Notification) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	n.ID = s.newID()
	s.notifications[n.ID] = *n
	return nil
}

func (s *MemoryStore) ListNotifications(ctx context.Context, recipient string) ([]models.Notification, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	list := []models.Notification{}
	for _, n := range s.notifications {
		if n.Recipient == recipient {
			list = append(list, n)
		}
	}
	sort.Slice(list, func(i, j int) bool {
		return s.newestFirst(list[i].CreatedAt, list[j].CreatedAt, list[i].ID, list[j].ID)
	})
	return list, nil
}

func (s *MemoryStore) MarkNotificationRead(ctx context.Context, id, recipient string) (*models.Notification, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	n, ok := s.notifications[id]
	if !ok || n.Recipient != recipient {
		return nil, ErrNotFound
	}
	n.Read = true
	n.UpdatedAt = time.Now().UTC()
	s.notifications[id] = n
	return &n, nil
}

func (s *MemoryStore) DeleteNotification(ctx context.Context, id, recipient string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	n, ok := s.notifications[id]
	if !ok || n.Recipient != recipient {
		return ErrNotFound
	}
	delete(s.notifications, id)
	delete(s.seq, id)
	return nil
}

func (s *MemoryStore) DeleteLikeNotification(ctx context.Context, sender, postID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	for id, n := range s.notifications {
		if n.Sender == sender && n.PostID == postID && n.Type == models.NotificationTypeLike {
			delete(s.notifications, id)
			delete(s.seq, id)
		}
	}
	return nil
}

func (s *MemoryStore) DeleteNotificationsByPost(ctx context.Context, postID string) (int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var count int64
	for id, n := range s.notifications {
		if n.PostID == postID {
			delete(s.notifications, id)
			delete(s.seq, id)
			count++
		}
	}
	return count, nil
}

func (s *MemoryStore) Ping(ctx context.Context) error  { return nil }
func (s *MemoryStore) Close(ctx context.Context) error { return nil }

func keys(set map[string]struct{}) []string {
	out := make([]string, 0, len(set))
	for k := range set {
		out = append(out, k)
	}
	return out
}
