// Package s3 provides an S3-compatible storage backend. Objects are keyed
// "<project>/<path>"; folders are empty marker objects whose key ends in
// "/", and folders that only exist as key prefixes are listed as well.
package s3

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"net/url"
	"sort"
	"strings"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/credentials"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/aws/aws-sdk-go-v2/service/s3/types"
	"go.uber.org/zap"

	"github.com/staticforge/console/internal/logging"
	"github.com/staticforge/console/internal/metrics"
	"github.com/staticforge/console/internal/storage"
)

// Config holds S3 connection settings.
type Config struct {
	Endpoint  string
	Bucket    string
	AccessKey string
	SecretKey string
	Region    string
	UseSSL    bool
}

// Backend implements storage.Backend using S3/MinIO.
type Backend struct {
	client *s3.Client
	bucket string
}

var _ storage.Backend = (*Backend)(nil)

// New creates a new S3 backend and makes sure the bucket exists.
func New(ctx context.Context, cfg Config) (*Backend, error) {
	if cfg.Bucket == "" {
		return nil, fmt.Errorf("bucket is required")
	}
	if cfg.Region == "" {
		cfg.Region = "us-east-1"
	}

	awsCfg, err := config.LoadDefaultConfig(ctx,
		config.WithRegion(cfg.Region),
		config.WithCredentialsProvider(
			credentials.NewStaticCredentialsProvider(cfg.AccessKey, cfg.SecretKey, ""),
		),
	)
	if err != nil {
		return nil, fmt.Errorf("load aws config: %w", err)
	}

	endpoint := endpointURL(cfg.Endpoint, cfg.UseSSL)
	client := s3.NewFromConfig(awsCfg, func(o *s3.Options) {
		o.UsePathStyle = true // Required for MinIO
		if endpoint != "" {
			o.BaseEndpoint = aws.String(endpoint)
		}
	})

	b := &Backend{client: client, bucket: cfg.Bucket}
	if err := b.ensureBucket(ctx); err != nil {
		logging.Error("bucket check failed", zap.Error(err))
	}
	return b, nil
}

// endpointURL adds a scheme to bare host:port endpoints.
func endpointURL(endpoint string, useSSL bool) string {
	if endpoint == "" || strings.Contains(endpoint, "://") {
		return endpoint
	}
	if useSSL {
		return "https://" + endpoint
	}
	return "http://" + endpoint
}

func observe(op string, start time.Time, err error) {
	metrics.RecordStorageOperation("s3", op, time.Since(start), err == nil)
}

func (b *Backend) ensureBucket(ctx context.Context) (err error) {
	start := time.Now()
	defer func() { observe("ensure_bucket", start, err) }()

	if _, err := b.client.HeadBucket(ctx, &s3.HeadBucketInput{Bucket: aws.String(b.bucket)}); err == nil {
		return nil
	}
	if _, err := b.client.CreateBucket(ctx, &s3.CreateBucketInput{Bucket: aws.String(b.bucket)}); err != nil {
		return fmt.Errorf("bucket %s does not exist and cannot create: %w", b.bucket, err)
	}
	logging.Info("created S3 bucket", zap.String("bucket", b.bucket))
	return nil
}

// objectKey returns the key of the file at p; folderKey the marker of the
// folder at p. The project root is the folder "".
func objectKey(project, p string) string {
	return project + "/" + p
}

func folderKey(project, p string) string {
	if p == "" {
		return project + "/"
	}
	return project + "/" + p + "/"
}

func isNotFound(err error) bool {
	var nsk *types.NoSuchKey
	var nf *types.NotFound
	return errors.As(err, &nsk) || errors.As(err, &nf)
}

type object struct {
	key     string
	size    int64
	modTime time.Time
}

// listPrefix returns every object under prefix.
func (b *Backend) listPrefix(ctx context.Context, prefix string) ([]object, error) {
	var out []object
	p := s3.NewListObjectsV2Paginator(b.client, &s3.ListObjectsV2Input{
		Bucket: aws.String(b.bucket),
		Prefix: aws.String(prefix),
	})
	for p.HasMorePages() {
		page, err := p.NextPage(ctx)
		if err != nil {
			return nil, fmt.Errorf("list %s: %w", prefix, err)
		}
		for _, o := range page.Contents {
			obj := object{key: aws.ToString(o.Key), size: aws.ToInt64(o.Size)}
			if o.LastModified != nil {
				obj.modTime = *o.LastModified
			}
			out = append(out, obj)
		}
	}
	return out, nil
}

// hasPrefix reports whether any object exists under prefix.
func (b *Backend) hasPrefix(ctx context.Context, prefix string) (bool, error) {
	out, err := b.client.ListObjectsV2(ctx, &s3.ListObjectsV2Input{
		Bucket:  aws.String(b.bucket),
		Prefix:  aws.String(prefix),
		MaxKeys: aws.Int32(1),
	})
	if err != nil {
		return false, fmt.Errorf("list %s: %w", prefix, err)
	}
	return len(out.Contents) > 0, nil
}

// collectEntries turns the objects below a project prefix into entries,
// adding the folders implied by each key.
func collectEntries(prefix string, objects []object) []storage.Entry {
	byPath := make(map[string]storage.Entry)
	addFolder := func(p string, mod time.Time) {
		if _, ok := byPath[p]; !ok {
			byPath[p] = storage.Entry{Path: p, Name: baseName(p), IsFolder: true, ModTime: mod}
		}
	}

	for _, o := range objects {
		rel := strings.TrimPrefix(o.key, prefix)
		if rel == "" {
			continue
		}
		if strings.HasSuffix(rel, "/") {
			rel = strings.TrimSuffix(rel, "/")
			addFolder(rel, o.modTime)
		} else {
			byPath[rel] = storage.Entry{Path: rel, Name: baseName(rel), Size: o.size, ModTime: o.modTime}
		}
		for dir := parentOf(rel); dir != ""; dir = parentOf(dir) {
			addFolder(dir, o.modTime)
		}
	}

	entries := make([]storage.Entry, 0, len(byPath))
	for _, e := range byPath {
		entries = append(entries, e)
	}
	sort.Slice(entries, func(i, j int) bool { return entries[i].Path < entries[j].Path })
	return entries
}

func baseName(p string) string {
	if i := strings.LastIndexByte(p, '/'); i >= 0 {
		return p[i+1:]
	}
	return p
}

func parentOf(p string) string {
	if i := strings.LastIndexByte(p, '/'); i >= 0 {
		return p[:i]
	}
	return ""
}

// CreateProject writes the project marker.
func (b *Backend) CreateProject(ctx context.Context, project string) (err error) {
	start := time.Now()
	defer func() { observe("create_project", start, err) }()

	exists, err := b.ProjectExists(ctx, project)
	if err != nil {
		return err
	}
	if exists {
		return fmt.Errorf("create project %s: %w", project, storage.ErrExists)
	}
	return b.putMarker(ctx, folderKey(project, ""))
}

// ProjectExists reports whether any object exists under the project prefix.
func (b *Backend) ProjectExists(ctx context.Context, project string) (bool, error) {
	return b.hasPrefix(ctx, folderKey(project, ""))
}

// List returns every file and folder of the project.
func (b *Backend) List(ctx context.Context, project string) (entries []storage.Entry, err error) {
	start := time.Now()
	defer func() { observe("list", start, err) }()

	prefix := folderKey(project, "")
	objects, err := b.listPrefix(ctx, prefix)
	if err != nil {
		return nil, err
	}
	return collectEntries(prefix, objects), nil
}

// Stat resolves p as a file first, then as a folder.
func (b *Backend) Stat(ctx context.Context, project, p string) (*storage.Entry, error) {
	head, err := b.client.HeadObject(ctx, &s3.HeadObjectInput{
		Bucket: aws.String(b.bucket),
		Key:    aws.String(objectKey(project, p)),
	})
	if err == nil {
		e := &storage.Entry{Path: p, Name: baseName(p), Size: aws.ToInt64(head.ContentLength)}
		if head.LastModified != nil {
			e.ModTime = *head.LastModified
		}
		return e, nil
	}
	if !isNotFound(err) {
		return nil, fmt.Errorf("stat %s: %w", p, err)
	}

	folder, err := b.hasPrefix(ctx, folderKey(project, p))
	if err != nil {
		return nil, err
	}
	if !folder {
		return nil, fmt.Errorf("stat %s: %w", p, storage.ErrNotFound)
	}
	return &storage.Entry{Path: p, Name: baseName(p), IsFolder: true}, nil
}

// ReadFile downloads the object at p.
func (b *Backend) ReadFile(ctx context.Context, project, p string) (data []byte, err error) {
	start := time.Now()
	defer func() { observe("get_object", start, err) }()

	out, err := b.client.GetObject(ctx, &s3.GetObjectInput{
		Bucket: aws.String(b.bucket),
		Key:    aws.String(objectKey(project, p)),
	})
	if err != nil {
		if !isNotFound(err) {
			return nil, fmt.Errorf("get object %s: %w", p, err)
		}
		if folder, _ := b.hasPrefix(ctx, folderKey(project, p)); folder {
			return nil, fmt.Errorf("read %s: %w", p, storage.ErrIsFolder)
		}
		return nil, fmt.Errorf("read %s: %w", p, storage.ErrNotFound)
	}
	defer out.Body.Close()

	data, err = io.ReadAll(out.Body)
	if err != nil {
		return nil, fmt.Errorf("read object %s: %w", p, err)
	}
	return data, nil
}

// WriteFile uploads content to p.
func (b *Backend) WriteFile(ctx context.Context, project, p string, body io.Reader, size int64) (err error) {
	start := time.Now()
	defer func() { observe("put_object", start, err) }()

	_, err = b.client.PutObject(ctx, &s3.PutObjectInput{
		Bucket:        aws.String(b.bucket),
		Key:           aws.String(objectKey(project, p)),
		Body:          body,
		ContentLength: aws.Int64(size),
		ContentType:   aws.String(storage.MimeType(p, nil)),
	})
	if err != nil {
		return fmt.Errorf("put object %s: %w", p, err)
	}

	logging.Debug("S3 put object", zap.String("project", project), zap.String("path", p), zap.Int64("size", size))
	return nil
}

// Mkdir writes the folder marker for p.
func (b *Backend) Mkdir(ctx context.Context, project, p string) (err error) {
	start := time.Now()
	defer func() { observe("mkdir", start, err) }()

	return b.putMarker(ctx, folderKey(project, p))
}

func (b *Backend) putMarker(ctx context.Context, key string) error {
	_, err := b.client.PutObject(ctx, &s3.PutObjectInput{
		Bucket:        aws.String(b.bucket),
		Key:           aws.String(key),
		Body:          bytes.NewReader(nil),
		ContentLength: aws.Int64(0),
	})
	if err != nil {
		return fmt.Errorf("put marker %s: %w", key, err)
	}
	return nil
}

func (b *Backend) copyObject(ctx context.Context, srcKey, dstKey string) error {
	_, err := b.client.CopyObject(ctx, &s3.CopyObjectInput{
		Bucket:     aws.String(b.bucket),
		Key:        aws.String(dstKey),
		CopySource: aws.String(copySource(b.bucket, srcKey)),
	})
	if err != nil {
		return fmt.Errorf("copy %s -> %s: %w", srcKey, dstKey, err)
	}
	return nil
}

// copySource URL-encodes each key segment; S3 decodes "+" as a space.
func copySource(bucket, key string) string {
	segments := strings.Split(key, "/")
	for i, seg := range segments {
		segments[i] = strings.ReplaceAll(url.PathEscape(seg), "+", "%2B")
	}
	return bucket + "/" + strings.Join(segments, "/")
}

func (b *Backend) deleteObject(ctx context.Context, key string) error {
	_, err := b.client.DeleteObject(ctx, &s3.DeleteObjectInput{
		Bucket: aws.String(b.bucket),
		Key:    aws.String(key),
	})
	if err != nil {
		return fmt.Errorf("delete %s: %w", key, err)
	}
	return nil
}

// Rename copies every object under from to to, then deletes the originals.
func (b *Backend) Rename(ctx context.Context, project, from, to string) (err error) {
	start := time.Now()
	defer func() { observe("rename", start, err) }()

	if _, err := b.Stat(ctx, project, to); err == nil {
		return fmt.Errorf("rename %s -> %s: %w", from, to, storage.ErrExists)
	} else if !errors.Is(err, storage.ErrNotFound) {
		return err
	}

	src, err := b.Stat(ctx, project, from)
	if err != nil {
		return err
	}
	if !src.IsFolder {
		if err := b.copyObject(ctx, objectKey(project, from), objectKey(project, to)); err != nil {
			return err
		}
		return b.deleteObject(ctx, objectKey(project, from))
	}

	srcPrefix := folderKey(project, from)
	dstPrefix := folderKey(project, to)
	objects, err := b.listPrefix(ctx, srcPrefix)
	if err != nil {
		return err
	}
	for _, o := range objects {
		if err := b.copyObject(ctx, o.key, dstPrefix+strings.TrimPrefix(o.key, srcPrefix)); err != nil {
			return err
		}
	}
	// Keep the destination visible even when the source folder was implicit.
	if err := b.putMarker(ctx, dstPrefix); err != nil {
		return err
	}
	for _, o := range objects {
		if err := b.deleteObject(ctx, o.key); err != nil {
			return err
		}
	}
	logging.Debug("S3 rename", zap.String("from", from), zap.String("to", to), zap.Int("objects", len(objects)))
	return nil
}

// Remove deletes the object at p, or every object under the folder p.
func (b *Backend) Remove(ctx context.Context, project, p string) (err error) {
	start := time.Now()
	defer func() { observe("remove", start, err) }()

	e, err := b.Stat(ctx, project, p)
	if err != nil {
		return err
	}
	if !e.IsFolder {
		return b.deleteObject(ctx, objectKey(project, p))
	}

	objects, err := b.listPrefix(ctx, folderKey(project, p))
	if err != nil {
		return err
	}
	for _, o := range objects {
		if err := b.deleteObject(ctx, o.key); err != nil {
			return err
		}
	}
	return nil
}

// Type returns "s3".
func (b *Backend) Type() string { return "s3" }

// Close is a no-op for S3 backends.
func (b *Backend) Close() error { return nil }
