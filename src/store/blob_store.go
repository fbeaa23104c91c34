package store

import (
	"context"
	"errors"
	"io"
	"mime"
	"os"
	"path/filepath"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/gridfs"
	"go.mongodb.org/mongo-driver/mongo/options"
)

// GridFSBlobs stores images in the "images" GridFS bucket of the feed database.
type GridFSBlobs struct {
	bucket *gridfs.Bucket
}

func NewGridFSBlobs(db *mongo.Database) (*GridFSBlobs, error) {
	bucket, err := gridfs.NewBucket(db, options.GridFSBucket().SetName("images"))
	if err != nil {
		return nil, mongoError("open gridfs bucket", err)
	}
	return &GridFSBlobs{bucket: bucket}, nil
}

func (b *GridFSBlobs) Put(ctx context.Context, name, contentType string, r io.Reader) error {
	opts := options.GridFSUpload().SetMetadata(bson.M{"contentType": contentType})
	if _, err := b.bucket.UploadFromStream(name, r, opts); err != nil {
		return mongoError("upload image", err)
	}
	return nil
}

func (b *GridFSBlobs) Delete(ctx context.Context, name string) error {
	cursor, err := b.bucket.Find(bson.M{"filename": name})
	if err != nil {
		return mongoError("find image", err)
	}
	defer cursor.Close(ctx)

	for cursor.Next(ctx) {
		var file struct {
			ID interface{} `bson:"_id"`
		}
		if err := cursor.Decode(&file); err != nil {
			return mongoError("decode image", err)
		}
		if err := b.bucket.Delete(file.ID); err != nil && !errors.Is(err, gridfs.ErrFileNotFound) {
			return mongoError("delete image", err)
		}
	}
	return mongoError("find image", cursor.Err())
}

func (b *GridFSBlobs) Open(ctx context.Context, name string) (io.ReadCloser, string, error) {
	stream, err := b.bucket.OpenDownloadStreamByName(name)
	if err != nil {
		if errors.Is(err, gridfs.ErrFileNotFound) {
			return nil, "", ErrNotFound
		}
		return nil, "", mongoError("open image", err)
	}
	contentType := "application/octet-stream"
	if file := stream.GetFile(); file != nil && file.Metadata != nil {
		if v, ok := file.Metadata.Lookup("contentType").StringValueOK(); ok {
			contentType = v
		}
	}
	return stream, contentType, nil
}

// DiskBlobs stores images as files under dir.
type DiskBlobs struct {
	dir string
}

func NewDiskBlobs(dir string) (*DiskBlobs, error) {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, err
	}
	return &DiskBlobs{dir: dir}, nil
}

// Put writes the file whole or not at all: a failed copy or close removes
// the partial file.
func (b *DiskBlobs) Put(ctx context.Context, name, contentType string, r io.Reader) error {
	path := b.path(name)
	f, err := os.Create(path)
	if err != nil {
		return &OpError{Op: "upload image", Code: "disk:create", Err: err}
	}
	if _, err := io.Copy(f, r); err != nil {
		_ = f.Close()
		_ = os.Remove(path)
		return &OpError{Op: "upload image", Code: "disk:write", Err: err}
	}
	if err := f.Close(); err != nil {
		_ = os.Remove(path)
		return &OpError{Op: "upload image", Code: "disk:close", Err: err}
	}
	return nil
}

func (b *DiskBlobs) Delete(ctx context.Context, name string) error {
	if err := os.Remove(b.path(name)); err != nil && !errors.Is(err, os.ErrNotExist) {
		return &OpError{Op: "delete image", Code: "disk:remove", Err: err}
	}
	return nil
}

func (b *DiskBlobs) path(name string) string {
	return filepath.Join(b.dir, filepath.Base(name))
}

func (b *DiskBlobs) Open(ctx context.Context, name string) (io.ReadCloser, string, error) {
	f, err := os.Open(b.path(name))
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return nil, "", ErrNotFound
		}
		return nil, "", &OpError{Op: "open image", Code: "disk:open", Err: err}
	}
	contentType := mime.TypeByExtension(filepath.Ext(name))
	if contentType == "" {
		contentType = "application/octet-stream"
	}
	return f, contentType, nil
}
