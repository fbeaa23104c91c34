package models

import (
	"time"
)

// CounterField names a denormalized counter stored on a Post.
type CounterField string

const (
	LikeCount    CounterField = "likeCount"
	CommentCount CounterField = "commentCount"
)

type Post struct {
	ID           string    `json:"postId" bson:"-" gorm:"primaryKey;size:64"`
	Body         string    `json:"body" bson:"body" gorm:"type:text;not null"`
	UserHandle   string    `json:"userHandle" bson:"userHandle" gorm:"index;not null"`
	UserImage    string    `json:"userImage" bson:"userImage"`
	CreatedAt    time.Time `json:"createdAt" bson:"createdAt" gorm:"index"`
	LikeCount    int64     `json:"likeCount" bson:"likeCount" gorm:"column:like_count;not null;default:0"`
	CommentCount int64     `json:"commentCount" bson:"commentCount" gorm:"column:comment_count;not null;default:0"`
	Image        string    `json:"image,omitempty" bson:"image,omitempty"`
}

// PostDetail is a post together with its comments, newest first.
type PostDetail struct {
	Post
	Comments []Comment `json:"comments"`
}

type Comment struct {
	ID         string    `json:"commentId" bson:"-" gorm:"primaryKey;size:64"`
	PostID     string    `json:"postId" bson:"postId" gorm:"index:idx_comments_post_created,priority:1;size:64;not null"`
	Body       string    `json:"body" bson:"body" gorm:"type:text;not null"`
	UserHandle string    `json:"userHandle" bson:"userHandle" gorm:"not null"`
	UserImage  string    `json:"userImage" bson:"userImage"`
	CreatedAt  time.Time `json:"createdAt" bson:"createdAt" gorm:"index:idx_comments_post_created,priority:2"`
}

// Like marks that UserHandle liked PostID. At most one exists per pair.
type Like struct {
	ID         string    `json:"likeId" bson:"-" gorm:"primaryKey;size:64"`
	PostID     string    `json:"postId" bson:"postId" gorm:"uniqueIndex:idx_likes_post_user,priority:1;size:64;not null"`
	UserHandle string    `json:"userHandle" bson:"userHandle" gorm:"uniqueIndex:idx_likes_post_user,priority:2;not null"`
	CreatedAt  time.Time `json:"createdAt" bson:"createdAt"`
}

// Counter returns the current value of the named counter.
func (p *Post) Counter(field CounterField) int64 {
	if field == LikeCount {
		return p.LikeCount
	}
	return p.CommentCount
}
