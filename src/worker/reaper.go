package worker

import (
	"context"
	"errors"
	"log/slog"
	"sync"
	"time"

	"github.com/theleywin/Backend-Social-Feed/src/store"
)

// Report summarises one reaper pass.
type Report struct {
	OrphanComments int64
	OrphanLikes    int64
	Reconciled     int
}

// Reaper removes comments and likes whose post is gone and resets post
// counters that drifted from the real number of children.
type Reaper struct {
	store    store.Store
	interval time.Duration

	stop chan struct{}
	wg   sync.WaitGroup
}

func NewReaper(st store.Store, interval time.Duration) *Reaper {
	return &Reaper{store: st, interval: interval, stop: make(chan struct{})}
}

// Start runs a pass every interval until Stop. A zero interval disables it.
func (r *Reaper) Start(ctx context.Context) {
	if r.interval <= 0 {
		slog.Info("Reaper disabled")
		return
	}

	ticker := time.NewTicker(r.interval)
	r.wg.Add(1)
	go func() {
		defer r.wg.Done()
		defer ticker.Stop()
		for {
			select {
			case <-ticker.C:
				report, err := r.RunOnce(ctx)
				if err != nil {
					slog.Error("Reaper pass failed", "error", err)
					continue
				}
				slog.Info("Reaper pass done",
					"orphan_comments", report.OrphanComments,
					"orphan_likes", report.OrphanLikes,
					"reconciled", report.Reconciled)
			case <-r.stop:
				return
			case <-ctx.Done():
				return
			}
		}
	}()
}

func (r *Reaper) Stop() {
	select {
	case <-r.stop:
	default:
		close(r.stop)
	}
	r.wg.Wait()
}

// RunOnce removes the children of posts that no longer exist, then
// reconciles the counters of every live post. A child is only removed after
// its own post lookup says the post is gone; post ids are never reused, so a
// post created while the pass runs keeps its children.
func (r *Reaper) RunOnce(ctx context.Context) (Report, error) {
	var report Report

	commented, err := r.store.ListCommentedPostIDs(ctx)
	if err != nil {
		return report, err
	}
	liked, err := r.store.ListLikedPostIDs(ctx)
	if err != nil {
		return report, err
	}

	for _, id := range union(commented, liked) {
		_, err := r.store.GetPost(ctx, id)
		if err == nil {
			continue
		}
		if !errors.Is(err, store.ErrNotFound) {
			return report, err
		}
		comments, err := r.store.DeleteCommentsByPost(ctx, id)
		if err != nil {
			return report, err
		}
		likes, err := r.store.DeleteLikesByPost(ctx, id)
		if err != nil {
			return report, err
		}
		report.OrphanComments += comments
		report.OrphanLikes += likes
	}

	ids, err := r.store.ListPostIDs(ctx)
	if err != nil {
		return report, err
	}
	for _, id := range ids {
		fixed, err := r.reconcile(ctx, id)
		if err != nil {
			if errors.Is(err, store.ErrNotFound) {
				continue // deleted during the pass
			}
			return report, err
		}
		if fixed {
			report.Reconciled++
		}
	}
	return report, nil
}

func union(a, b []string) []string {
	seen := make(map[string]struct{}, len(a)+len(b))
	out := make([]string, 0, len(a)+len(b))
	for _, list := range [][]string{a, b} {
		for _, id := range list {
			if _, ok := seen[id]; ok {
				continue
			}
			seen[id] = struct{}{}
			out = append(out, id)
		}
	}
	return out
}

func (r *Reaper) reconcile(ctx context.Context, id string) (bool, error) {
	likes, err := r.store.CountLikes(ctx, id)
	if err != nil {
		return false, err
	}
	comments, err := r.store.CountComments(ctx, id)
	if err != nil {
		return false, err
	}
	post, err := r.store.GetPost(ctx, id)
	if err != nil {
		return false, err
	}
	if post.LikeCount == likes && post.CommentCount == comments {
		return false, nil
	}

	slog.Warn("Post counters drifted",
		"post_id", id,
		"like_count", post.LikeCount, "likes", likes,
		"comment_count", post.CommentCount, "comments", comments)
	return true, r.store.SetPostCounters(ctx, id, likes, comments)
}
