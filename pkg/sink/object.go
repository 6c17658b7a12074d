package sink

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"path"
	"sync"

	"github.com/agleyzer/hlsfetch/pkg/pipeline"
	"github.com/hashicorp/go-hclog"
	"github.com/minio/minio-go/v7"
	"github.com/minio/minio-go/v7/pkg/credentials"
)

// ObjectConfig addresses an S3 compatible bucket.
type ObjectConfig struct {
	Endpoint        string
	AccessKeyID     string
	SecretAccessKey string
	UseSSL          bool
	Region          string
	Bucket          string
	Prefix          string
}

// objectPutter is the part of *minio.Client the sink uses.
type objectPutter interface {
	PutObject(ctx context.Context, bucketName, objectName string, reader io.Reader, objectSize int64, opts minio.PutObjectOptions) (minio.UploadInfo, error)
}

// Object uploads each delivered buffer to a bucket. Close uploads a playlist
// referencing the objects.
type Object struct {
	ctx    context.Context
	client objectPutter
	bucket string
	prefix string
	logger hclog.Logger

	mu     sync.Mutex
	vod    vodPlaylist
	closed bool
}

// NewMinioClient connects to the endpoint and creates the bucket if it does
// not exist.
func NewMinioClient(ctx context.Context, cfg ObjectConfig) (*minio.Client, error) {
	client, err := minio.New(cfg.Endpoint, &minio.Options{
		Creds:  credentials.NewStaticV4(cfg.AccessKeyID, cfg.SecretAccessKey, ""),
		Secure: cfg.UseSSL,
		Region: cfg.Region,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create storage client: %w", err)
	}

	exists, err := client.BucketExists(ctx, cfg.Bucket)
	if err != nil {
		return nil, fmt.Errorf("failed to check bucket existence: %w", err)
	}
	if !exists {
		err = client.MakeBucket(ctx, cfg.Bucket, minio.MakeBucketOptions{Region: cfg.Region})
		if err != nil {
			return nil, fmt.Errorf("failed to create bucket: %w", err)
		}
	}
	return client, nil
}

// NewObject creates a sink uploading under prefix in bucket. Uploads use ctx.
func NewObject(ctx context.Context, client objectPutter, bucket, prefix string, logger hclog.Logger) *Object {
	if logger == nil {
		logger = hclog.NewNullLogger()
	}
	return &Object{
		ctx:    ctx,
		client: client,
		bucket: bucket,
		prefix: prefix,
		logger: logger.Named("object"),
	}
}

// Deliver uploads a buffer with no segment information as the next media object.
func (o *Object) Deliver(data []byte) error {
	o.mu.Lock()
	index := len(o.vod.entries)
	o.mu.Unlock()
	return o.DeliverSegment(pipeline.Delivery{Kind: pipeline.KindMedia, Index: index, Data: data})
}

// DeliverSegment uploads d as one object.
func (o *Object) DeliverSegment(d pipeline.Delivery) error {
	o.mu.Lock()
	defer o.mu.Unlock()

	if o.closed {
		return fmt.Errorf("object sink for %s is closed", o.bucket)
	}

	name := fileName(d)
	if err := o.put(name, d.Data); err != nil {
		return err
	}
	o.vod.add(d, name)
	return nil
}

// Close uploads the playlist.
func (o *Object) Close() error {
	o.mu.Lock()
	defer o.mu.Unlock()

	if o.closed {
		return nil
	}
	o.closed = true

	data, err := o.vod.encode()
	if err != nil {
		return fmt.Errorf("encode playlist: %w", err)
	}
	return o.put(PlaylistName, data)
}

func (o *Object) key(name string) string {
	if o.prefix == "" {
		return name
	}
	return path.Join(o.prefix, name)
}

func (o *Object) put(name string, data []byte) error {
	key := o.key(name)
	_, err := o.client.PutObject(o.ctx, o.bucket, key, bytes.NewReader(data), int64(len(data)), minio.PutObjectOptions{
		ContentType: contentType(name),
	})
	if err != nil {
		return fmt.Errorf("failed to upload object %s: %w", key, err)
	}
	o.logger.Debug("uploaded", "bucket", o.bucket, "key", key, "bytes", len(data))
	return nil
}
