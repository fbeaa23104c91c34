package models

import (
	"time"
)

type Notification struct {
	ID        string           `json:"notificationId" bson:"-" gorm:"primaryKey;size:64"`
	Recipient string           `json:"recipient" bson:"recipient" gorm:"index;not null"`
	Sender    string           `json:"sender" bson:"sender" gorm:"not null"`
	Type      NotificationType `json:"type" bson:"type" gorm:"size:20;not null"`
	PostID    string           `json:"postId" bson:"postId" gorm:"index;size:64"`
	Read      bool             `json:"read" bson:"read"`
	CreatedAt time.Time        `json:"createdAt" bson:"createdAt"`
	UpdatedAt time.Time        `json:"updatedAt" bson:"updatedAt"`
}

type NotificationType string

const (
	NotificationTypeLike    NotificationType = "like"
	NotificationTypeComment NotificationType = "comment"
)
