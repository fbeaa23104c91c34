package store

import (
	"context"
	"errors"
	"strings"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/theleywin/Backend-Social-Feed/src/models"
)

var counterColumns = map[models.CounterField]string{
	models.LikeCount:    "like_count",
	models.CommentCount: "comment_count",
}

// SQLStore keeps the feed in a relational database through gorm. The sqlite
// driver is the one wired in lib.ConnectSQLite.
type SQLStore struct {
	db *gorm.DB
}

func NewSQLStore(db *gorm.DB) *SQLStore {
	return &SQLStore{db: db}
}

// AutoMigrate creates or updates the tables, including the unique likes index.
func (s *SQLStore) AutoMigrate() error {
	return s.db.AutoMigrate(
		&models.Post{},
		&models.Comment{},
		&models.Like{},
		&models.Notification{},
	)
}

func (s *SQLStore) InsertPost(ctx context.Context, post *models.Post) error {
	post.ID = uuid.NewString()
	return sqlError("insert post", s.db.WithContext(ctx).Create(post).Error)
}

func (s *SQLStore) GetPost(ctx context.Context, id string) (*models.Post, error) {
	var post models.Post
	if err := s.db.WithContext(ctx).Take(&post, "id = ?", id).Error; err != nil {
		return nil, sqlError("get post", err)
	}
	return &post, nil
}

func (s *SQLStore) ListPosts(ctx context.Context) ([]models.Post, error) {
	posts := []models.Post{}
	err := s.db.WithContext(ctx).Order("created_at DESC").Find(&posts).Error
	return posts, sqlError("list posts", err)
}

func (s *SQLStore) ListPostIDs(ctx context.Context) ([]string, error) {
	ids := []string{}
	err := s.db.WithContext(ctx).Model(&models.Post{}).Pluck("id", &ids).Error
	return ids, sqlError("list post ids", err)
}

func (s *SQLStore) IncrementPostCounter(ctx context.Context, id string, field models.CounterField, delta int64) (*models.Post, error) {
	column := counterColumns[field]
	var post models.Post
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		res := tx.Model(&models.Post{}).Where("id = ?", id).
			UpdateColumn(column, gorm.Expr(column+" + ?", delta))
		if res.Error != nil {
			return res.Error
		}
		if res.RowsAffected == 0 {
			return gorm.ErrRecordNotFound
		}
		return tx.Take(&post, "id = ?", id).Error
	})
	if err != nil {
		return nil, sqlError("increment "+string(field), err)
	}
	return &post, nil
}

func (s *SQLStore) SetPostCounters(ctx context.Context, id string, likes, comments int64) error {
	return s.updatePost(ctx, "set counters", id, map[string]interface{}{
		"like_count":    likes,
		"comment_count": comments,
	})
}

func (s *SQLStore) SetPostImage(ctx context.Context, id, url string) error {
	return s.updatePost(ctx, "set image", id, map[string]interface{}{"image": url})
}

func (s *SQLStore) updatePost(ctx context.Context, op, id string, fields map[string]interface{}) error {
	res := s.db.WithContext(ctx).Model(&models.Post{}).Where("id = ?", id).UpdateColumns(fields)
	if res.Error != nil {
		return sqlError(op, res.Error)
	}
	if res.RowsAffected == 0 {
		return ErrNotFound
	}
	return nil
}

func (s *SQLStore) DeletePost(ctx context.Context, id string) error {
	return s.deleteOne(ctx, "delete post", &models.Post{}, "id = ?", id)
}

func (s *SQLStore) InsertComment(ctx context.Context, comment *models.Comment) error {
	comment.ID = uuid.NewString()
	return sqlError("insert comment", s.db.WithContext(ctx).Create(comment).Error)
}

func (s *SQLStore) ListComments(ctx context.Context, postID string) ([]models.Comment, error) {
	comments := []models.Comment{}
	err := s.db.WithContext(ctx).Where("post_id = ?", postID).Order("created_at DESC").Find(&comments).Error
	return comments, sqlError("list comments", err)
}

func (s *SQLStore) CountComments(ctx context.Context, postID string) (int64, error) {
	var n int64
	err := s.db.WithContext(ctx).Model(&models.Comment{}).Where("post_id = ?", postID).Count(&n).Error
	return n, sqlError("count comments", err)
}

func (s *SQLStore) DeleteCommentsByPost(ctx context.Context, postID string) (int64, error) {
	return s.deleteMany(ctx, "delete comments", &models.Comment{}, "post_id = ?", postID)
}

func (s *SQLStore) ListCommentedPostIDs(ctx context.Context) ([]string, error) {
	ids := []string{}
	err := s.db.WithContext(ctx).Model(&models.Comment{}).Distinct("post_id").Pluck("post_id", &ids).Error
	return ids, sqlError("list commented posts", err)
}

func (s *SQLStore) InsertLike(ctx context.Context, like *models.Like) error {
	like.ID = uuid.NewString()
	return sqlError("insert like", s.db.WithContext(ctx).Create(like).Error)
}

func (s *SQLStore) FindLike(ctx context.Context, postID, userHandle string) (*models.Like, error) {
	var like models.Like
	err := s.db.WithContext(ctx).
		Where("post_id = ? AND user_handle = ?", postID, userHandle).
		Limit(1).Take(&like).Error
	if err != nil {
		return nil, sqlError("find like", err)
	}
	return &like, nil
}

func (s *SQLStore) DeleteLike(ctx context.Context, id string) error {
	return s.deleteOne(ctx, "delete like", &models.Like{}, "id = ?", id)
}

func (s *SQLStore) CountLikes(ctx context.Context, postID string) (int64, error) {
	var n int64
	err := s.db.WithContext(ctx).Model(&models.Like{}).Where("post_id = ?", postID).Count(&n).Error
	return n, sqlError("count likes", err)
}

func (s *SQLStore) DeleteLikesByPost(ctx context.Context, postID string) (int64, error) {
	return s.deleteMany(ctx, "delete likes", &models.Like{}, "post_id = ?", postID)
}

func (s *SQLStore) ListLikedPostIDs(ctx context.Context) ([]string, error) {
	ids := []string{}
	err := s.db.WithContext(ctx).Model(&models.Like{}).Distinct("post_id").Pluck("post_id", &ids).Error
	return ids, sqlError("list liked posts", err)
}

func (s *SQLStore) InsertNotification(ctx context.Context, n *models.Notification) error {
	n.ID = uuid.NewString()
	return sqlError("insert notification", s.db.WithContext(ctx).Create(n).Error)
}

func (s *SQLStore) ListNotifications(ctx context.Context, recipient string) ([]models.Notification, error) {
	list := []models.Notification{}
	err := s.db.WithContext(ctx).Where("recipient = ?", recipient).Order("created_at DESC").Find(&list).Error
	return list, sqlError("list notifications", err)
}

func (s *SQLStore) MarkNotificationRead(ctx context.Context, id, recipient string) (*models.Notification, error) {
	res := s.db.WithContext(ctx).Model(&models.Notification{}).
		Where("id = ? AND recipient = ?", id, recipient).
		UpdateColumns(map[string]interface{}{"read": true, "updated_at": time.Now().UTC()})
	if res.Error != nil {
		return nil, sqlError("mark notification read", res.Error)
	}
	if res.RowsAffected == 0 {
		return nil, ErrNotFound
	}
	var n models.Notification
	if err := s.db.WithContext(ctx).Take(&n, "id = ?", id).Error; err != nil {
		return nil, sqlError("mark notification read", err)
	}
	return &n, nil
}

func (s *SQLStore) DeleteNotification(ctx context.Context, id, recipient string) error {
	return s.deleteOne(ctx, "delete notification", &models.Notification{}, "id = ? AND recipient = ?", id, recipient)
}

func (s *SQLStore) DeleteLikeNotification(ctx context.Context, sender, postID string) error {
	_, err := s.deleteMany(ctx, "delete like notification", &models.Notification{},
		"sender = ? AND post_id = ? AND type = ?", sender, postID, models.NotificationTypeLike)
	return err
}

func (s *SQLStore) DeleteNotificationsByPost(ctx context.Context, postID string) (int64, error) {
	return s.deleteMany(ctx, "delete notifications", &models.Notification{}, "post_id = ?", postID)
}

func (s *SQLStore) Ping(ctx context.Context) error {
	sqlDB, err := s.db.DB()
	if err != nil {
		return sqlError("ping", err)
	}
	return sqlError("ping", sqlDB.PingContext(ctx))
}

func (s *SQLStore) Close(ctx context.Context) error {
	sqlDB, err := s.db.DB()
	if err != nil {
		return err
	}
	return sqlDB.Close()
}

func (s *SQLStore) deleteOne(ctx context.Context, op string, model interface{}, query string, args ...interface{}) error {
	n, err := s.deleteMany(ctx, op, model, query, args...)
	if err != nil {
		return err
	}
	if n == 0 {
		return ErrNotFound
	}
	return nil
}

func (s *SQLStore) deleteMany(ctx context.Context, op string, model interface{}, query string, args ...interface{}) (int64, error) {
	res := s.db.WithContext(ctx).Where(query, args...).Delete(model)
	if res.Error != nil {
		return 0, sqlError(op, res.Error)
	}
	return res.RowsAffected, nil
}

func sqlError(op string, err error) error {
	if err == nil {
		return nil
	}
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return ErrNotFound
	}
	if errors.Is(err, gorm.ErrDuplicatedKey) || strings.Contains(err.Error(), "UNIQUE constraint failed") {
		return &OpError{Op: op, Code: "sqlite:constraint", Err: ErrDuplicate}
	}
	return &OpError{Op: op, Code: "sqlite:error", Err: err}
}
