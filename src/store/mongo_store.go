package store

import (
	"context"
	"errors"
	"fmt"
	"time"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
	"go.mongodb.org/mongo-driver/mongo/readpref"

	"github.com/theleywin/Backend-Social-Feed/src/models"
)

const (
	postsCollection         = "posts"
	commentsCollection      = "comments"
	likesCollection         = "likes"
	notificationsCollection = "notifications"
)

// Documents as stored in MongoDB: the model plus its ObjectID.
type postDoc struct {
	ID          primitive.ObjectID `bson:"_id,omitempty"`
	models.Post `bson:",inline"`
}

type commentDoc struct {
	ID             primitive.ObjectID `bson:"_id,omitempty"`
	models.Comment `bson:",inline"`
}

type likeDoc struct {
	ID          primitive.ObjectID `bson:"_id,omitempty"`
	models.Like `bson:",inline"`
}

type notificationDoc struct {
	ID                  primitive.ObjectID `bson:"_id,omitempty"`
	models.Notification `bson:",inline"`
}

type MongoStore struct {
	client *mongo.Client
	db     *mongo.Database
}

func NewMongoStore(client *mongo.Client, database string) *MongoStore {
	return &MongoStore{client: client, db: client.Database(database)}
}

// Database exposes the underlying database, e.g. for GridFS.
func (s *MongoStore) Database() *mongo.Database { return s.db }

// EnsureIndexes creates the indexes the protocol relies on. The unique likes
// index is what keeps a (post, user) pair to a single like.
func (s *MongoStore) EnsureIndexes(ctx context.Context) error {
	indexes := map[string][]mongo.IndexModel{
		postsCollection: {
			{Keys: bson.D{{Key: "createdAt", Value: -1}}},
		},
		commentsCollection: {
			{Keys: bson.D{{Key: "postId", Value: 1}, {Key: "createdAt", Value: -1}}},
		},
		likesCollection: {
			{
				Keys:    bson.D{{Key: "postId", Value: 1}, {Key: "userHandle", Value: 1}},
				Options: options.Index().SetUnique(true),
			},
		},
		notificationsCollection: {
			{Keys: bson.D{{Key: "recipient", Value: 1}, {Key: "createdAt", Value: -1}}},
			{Keys: bson.D{{Key: "postId", Value: 1}}},
		},
	}
	for coll, specs := range indexes {
		if _, err := s.db.Collection(coll).Indexes().CreateMany(ctx, specs); err != nil {
			return mongoError("ensure indexes "+coll, err)
		}
	}
	return nil
}

func (s *MongoStore) InsertPost(ctx context.Context, post *models.Post) error {
	res, err := s.db.Collection(postsCollection).InsertOne(ctx, postDoc{Post: *post})
	if err != nil {
		return mongoError("insert post", err)
	}
	post.ID = res.InsertedID.(primitive.ObjectID).Hex()
	return nil
}

func (s *MongoStore) GetPost(ctx context.Context, id string) (*models.Post, error) {
	oid, err := primitive.ObjectIDFromHex(id)
	if err != nil {
		return nil, ErrNotFound
	}
	var doc postDoc
	err = s.db.Collection(postsCollection).FindOne(ctx, bson.M{"_id": oid}).Decode(&doc)
	if err != nil {
		return nil, mongoError("get post", err)
	}
	return doc.model(), nil
}

func (s *MongoStore) ListPosts(ctx context.Context) ([]models.Post, error) {
	opts := options.Find().SetSort(bson.D{{Key: "createdAt", Value: -1}})
	cursor, err := s.db.Collection(postsCollection).Find(ctx, bson.M{}, opts)
	if err != nil {
		return nil, mongoError("list posts", err)
	}
	defer cursor.Close(ctx)

	var docs []postDoc
	if err := cursor.All(ctx, &docs); err != nil {
		return nil, mongoError("decode posts", err)
	}
	posts := make([]models.Post, 0, len(docs))
	for i := range docs {
		posts = append(posts, *docs[i].model())
	}
	return posts, nil
}

func (s *MongoStore) ListPostIDs(ctx context.Context) ([]string, error) {
	opts := options.Find().SetProjection(bson.M{"_id": 1})
	cursor, err := s.db.Collection(postsCollection).Find(ctx, bson.M{}, opts)
	if err != nil {
		return nil, mongoError("list post ids", err)
	}
	defer cursor.Close(ctx)

	ids := []string{}
	for cursor.Next(ctx) {
		var doc struct {
			ID primitive.ObjectID `bson:"_id"`
		}
		if err := cursor.Decode(&doc); err != nil {
			return nil, mongoError("decode post id", err)
		}
		ids = append(ids, doc.ID.Hex())
	}
	return ids, mongoError("list post ids", cursor.Err())
}

func (s *MongoStore) IncrementPostCounter(ctx context.Context, id string, field models.CounterField, delta int64) (*models.Post, error) {
	oid, err := primitive.ObjectIDFromHex(id)
	if err != nil {
		return nil, ErrNotFound
	}
	update := bson.M{"$inc": bson.M{string(field): delta}}
	opts := options.FindOneAndUpdate().SetReturnDocument(options.After)

	var doc postDoc
	err = s.db.Collection(postsCollection).FindOneAndUpdate(ctx, bson.M{"_id": oid}, update, opts).Decode(&doc)
	if err != nil {
		return nil, mongoError("increment "+string(field), err)
	}
	return doc.model(), nil
}

func (s *MongoStore) SetPostCounters(ctx context.Context, id string, likes, comments int64) error {
	return s.updatePost(ctx, "set counters", id, bson.M{
		string(models.LikeCount):    likes,
		string(models.CommentCount): comments,
	})
}

func (s *MongoStore) SetPostImage(ctx context.Context, id, url string) error {
	return s.updatePost(ctx, "set image", id, bson.M{"image": url})
}

func (s *MongoStore) updatePost(ctx context.Context, op, id string, set bson.M) error {
	oid, err := primitive.ObjectIDFromHex(id)
	if err != nil {
		return ErrNotFound
	}
	res, err := s.db.Collection(postsCollection).UpdateOne(ctx, bson.M{"_id": oid}, bson.M{"$set": set})
	if err != nil {
		return mongoError(op, err)
	}
	if res.MatchedCount == 0 {
		return ErrNotFound
	}
	return nil
}

func (s *MongoStore) DeletePost(ctx context.Context, id string) error {
	return s.deleteOne(ctx, postsCollection, "delete post", id, nil)
}

func (s *MongoStore) InsertComment(ctx context.Context, comment *models.Comment) error {
	res, err := s.db.Collection(commentsCollection).InsertOne(ctx, commentDoc{Comment: *comment})
	if err != nil {
		return mongoError("insert comment", err)
	}
	comment.ID = res.InsertedID.(primitive.ObjectID).Hex()
	return nil
}

func (s *MongoStore) ListComments(ctx context.Context, postID string) ([]models.Comment, error) {
	opts := options.Find().SetSort(bson.D{{Key: "createdAt", Value: -1}})
	cursor, err := s.db.Collection(commentsCollection).Find(ctx, bson.M{"postId": postID}, opts)
	if err != nil {
		return nil, mongoError("list comments", err)
	}
	defer cursor.Close(ctx)

	var docs []commentDoc
	if err := cursor.All(ctx, &docs); err != nil {
		return nil, mongoError("decode comments", err)
	}
	comments := make([]models.Comment, 0, len(docs))
	for _, d := range docs {
		c := d.Comment
		c.ID = d.ID.Hex()
		comments = append(comments, c)
	}
	return comments, nil
}

func (s *MongoStore) CountComments(ctx context.Context, postID string) (int64, error) {
	n, err := s.db.Collection(commentsCollection).CountDocuments(ctx, bson.M{"postId": postID})
	return n, mongoError("count comments", err)
}

func (s *MongoStore) DeleteCommentsByPost(ctx context.Context, postID string) (int64, error) {
	return s.deleteMany(ctx, commentsCollection, "delete comments", bson.M{"postId": postID})
}

func (s *MongoStore) ListCommentedPostIDs(ctx context.Context) ([]string, error) {
	return s.distinctPostIDs(ctx, commentsCollection, "list commented posts")
}

func (s *MongoStore) InsertLike(ctx context.Context, like *models.Like) error {
	res, err := s.db.Collection(likesCollection).InsertOne(ctx, likeDoc{Like: *like})
	if err != nil {
		return mongoError("insert like", err)
	}
	like.ID = res.InsertedID.(primitive.ObjectID).Hex()
	return nil
}

func (s *MongoStore) FindLike(ctx context.Context, postID, userHandle string) (*models.Like, error) {
	var doc likeDoc
	filter := bson.M{"postId": postID, "userHandle": userHandle}
	if err := s.db.Collection(likesCollection).FindOne(ctx, filter).Decode(&doc); err != nil {
		return nil, mongoError("find like", err)
	}
	like := doc.Like
	like.ID = doc.ID.Hex()
	return &like, nil
}

func (s *MongoStore) DeleteLike(ctx context.Context, id string) error {
	return s.deleteOne(ctx, likesCollection, "delete like", id, nil)
}

func (s *MongoStore) CountLikes(ctx context.Context, postID string) (int64, error) {
	n, err := s.db.Collection(likesCollection).CountDocuments(ctx, bson.M{"postId": postID})
	return n, mongoError("count likes", err)
}

func (s *MongoStore) DeleteLikesByPost(ctx context.Context, postID string) (int64, error) {
	return s.deleteMany(ctx, likesCollection, "delete likes", bson.M{"postId": postID})
}

func (s *MongoStore) ListLikedPostIDs(ctx context.Context) ([]string, error) {
	return s.distinctPostIDs(ctx, likesCollection, "list liked posts")
}

// distinctPostIDs groups through an aggregation cursor rather than Distinct so
// the result is not bound by the single-document reply limit.
func (s *MongoStore) distinctPostIDs(ctx context.Context, coll, op string) ([]string, error) {
	pipeline := mongo.Pipeline{{{Key: "$group", Value: bson.D{{Key: "_id", Value: "$postId"}}}}}
	cursor, err := s.db.Collection(coll).Aggregate(ctx, pipeline)
	if err != nil {
		return nil, mongoError(op, err)
	}
	defer cursor.Close(ctx)

	ids := []string{}
	for cursor.Next(ctx) {
		var doc struct {
			ID string `bson:"_id"`
		}
		if err := cursor.Decode(&doc); err != nil {
			return nil, mongoError(op, err)
		}
		ids = append(ids, doc.ID)
	}
	return ids, mongoError(op, cursor.Err())
}

func (s *MongoStore) InsertNotification(ctx context.Context, n *models.Notification) error {
	res, err := s.db.Collection(notificationsCollection).InsertOne(ctx, notificationDoc{Notification: *n})
	if err != nil {
		return mongoError("insert notification", err)
	}
	n.ID = res.InsertedID.(primitive.ObjectID).Hex()
	return nil
}

func (s *MongoStore) ListNotifications(ctx context.Context, recipient string) ([]models.Notification, error) {
	opts := options.Find().SetSort(bson.D{{Key: "createdAt", Value: -1}})
	cursor, err := s.db.Collection(notificationsCollection).Find(ctx, bson.M{"recipient": recipient}, opts)
	if err != nil {
		return nil, mongoError("list notifications", err)
	}
	defer cursor.Close(ctx)

	var docs []notificationDoc
	if err := cursor.All(ctx, &docs); err != nil {
		return nil, mongoError("decode notifications", err)
	}
	list := make([]models.Notification, 0, len(docs))
	for _, d := range docs {
		n := d.Notification
		n.ID = d.ID.Hex()
		list = append(list, n)
	}
	return list, nil
}

func (s *MongoStore) MarkNotificationRead(ctx context.Context, id, recipient string) (*models.Notification, error) {
	oid, err := primitive.ObjectIDFromHex(id)
	if err != nil {
		return nil, ErrNotFound
	}
	filter := bson.M{"_id": oid, "recipient": recipient}
	update := bson.M{"$set": bson.M{"read": true, "updatedAt": time.Now().UTC()}}
	opts := options.FindOneAndUpdate().SetReturnDocument(options.After)

	var doc notificationDoc
	err = s.db.Collection(notificationsCollection).FindOneAndUpdate(ctx, filter, update, opts).Decode(&doc)
	if err != nil {
		return nil, mongoError("mark notification read", err)
	}
	n := doc.Notification
	n.ID = doc.ID.Hex()
	return &n, nil
}

func (s *MongoStore) DeleteNotification(ctx context.Context, id, recipient string) error {
	return s.deleteOne(ctx, notificationsCollection, "delete notification", id, bson.M{"recipient": recipient})
}

func (s *MongoStore) DeleteLikeNotification(ctx context.Context, sender, postID string) error {
	filter := bson.M{"sender": sender, "postId": postID, "type": models.NotificationTypeLike}
	_, err := s.db.Collection(notificationsCollection).DeleteMany(ctx, filter)
	return mongoError("delete like notification", err)
}

func (s *MongoStore) DeleteNotificationsByPost(ctx context.Context, postID string) (int64, error) {
	return s.deleteMany(ctx, notificationsCollection, "delete notifications", bson.M{"postId": postID})
}

func (s *MongoStore) Ping(ctx context.Context) error {
	return mongoError("ping", s.client.Ping(ctx, readpref.Primary()))
}

func (s *MongoStore) Close(ctx context.Context) error {
	return s.client.Disconnect(ctx)
}

func (s *MongoStore) deleteOne(ctx context.Context, coll, op, id string, extra bson.M) error {
	oid, err := primitive.ObjectIDFromHex(id)
	if err != nil {
		return ErrNotFound
	}
	filter := bson.M{"_id": oid}
	for k, v := range extra {
		filter[k] = v
	}
	res, err := s.db.Collection(coll).DeleteOne(ctx, filter)
	if err != nil {
		return mongoError(op, err)
	}
	if res.DeletedCount == 0 {
		return ErrNotFound
	}
	return nil
}

func (s *MongoStore) deleteMany(ctx context.Context, coll, op string, filter bson.M) (int64, error) {
	res, err := s.db.Collection(coll).DeleteMany(ctx, filter)
	if err != nil {
		return 0, mongoError(op, err)
	}
	return res.DeletedCount, nil
}

func (d *postDoc) model() *models.Post {
	p := d.Post
	p.ID = d.ID.Hex()
	return &p
}

// mongoError maps driver errors onto the store sentinels, keeping the server
// code for everything else.
func mongoError(op string, err error) error {
	if err == nil {
		return nil
	}
	if errors.Is(err, mongo.ErrNoDocuments) {
		return ErrNotFound
	}
	if mongo.IsDuplicateKeyError(err) {
		return &OpError{Op: op, Code: "mongo:11000", Err: ErrDuplicate}
	}

	code := "mongo:unknown"
	var cmdErr mongo.CommandError
	var writeErr mongo.WriteException
	switch {
	case mongo.IsTimeout(err):
		code = "mongo:timeout"
	case mongo.IsNetworkError(err):
		code = "mongo:network"
	case errors.As(err, &cmdErr):
		code = fmt.Sprintf("mongo:%d", cmdErr.Code)
	case errors.As(err, &writeErr) && len(writeErr.WriteErrors) > 0:
		code = fmt.Sprintf("mongo:%d", writeErr.WriteErrors[0].Code)
	}
	return &OpError{Op: op, Code: code, Err: err}
}
