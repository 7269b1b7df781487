// Uploads the generated trees to an S3-compatible
// bucket (AWS S3 or MinIO), so that the website can serve them.
package publish

import (
	"bytes"
	"context"
	"fmt"
	"mime"
	"os"
	"path"
	"path/filepath"
	"strings"

	aws "github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/go-git/go-billy/v5"
	"github.com/go-git/go-billy/v5/util"

	"github.com/benoitkugler/svgvariants/logging"
)

// Config holds the bucket settings.
type Config struct {
	Bucket    string
	Region    string // default us-east-1
	Endpoint  string // optional; if set enables custom endpoint (e.g. MinIO)
	Prefix    string // prepended to every key
	PathStyle bool
}

// Uploader writes files to a single bucket.
type Uploader struct {
	client *s3.Client
	bucket string
	prefix string
}

// New creates an uploader from Config, using the default
// credentials chain (environment, shared files, instance role).
func New(ctx context.Context, cfg Config) (*Uploader, error) {
	if cfg.Bucket == "" {
		return nil, fmt.Errorf("s3 bucket required")
	}
	region := cfg.Region
	if region == "" {
		region = "us-east-1"
	}
	awsCfg, err := config.LoadDefaultConfig(ctx, config.WithRegion(region))
	if err != nil {
		return nil, err
	}
	client := s3.NewFromConfig(awsCfg, func(o *s3.Options) {
		o.UsePathStyle = cfg.PathStyle
		if cfg.Endpoint != "" {
			o.BaseEndpoint = aws.String(cfg.Endpoint)
		}
		o.RequestChecksumCalculation = aws.RequestChecksumCalculationWhenRequired
	})
	return NewWithClient(client, cfg.Bucket, cfg.Prefix), nil
}

// NewWithClient wraps an existing client.
func NewWithClient(client *s3.Client, bucket, prefix string) *Uploader {
	return &Uploader{client: client, bucket: bucket, prefix: prefix}
}

// Key returns the object key of `name` (a slash separated path).
func (u *Uploader) Key(name string) string {
	return u.prefix + strings.TrimPrefix(name, "/")
}

// ContentType returns the MIME type used for the given file name.
func ContentType(name string) string {
	if t := mime.TypeByExtension(strings.ToLower(path.Ext(name))); t != "" {
		return t
	}
	return "application/octet-stream"
}

// Put uploads `content` under the key of `name`.
func (u *Uploader) Put(ctx context.Context, name string, content []byte) error {
	key := u.Key(name)
	ct := ContentType(name)
	_, err := u.client.PutObject(ctx, &s3.PutObjectInput{
		Bucket:        &u.bucket,
		Key:           &key,
		Body:          bytes.NewReader(content),
		ContentType:   &ct,
		ContentLength: aws.Int64(int64(len(content))),
	})
	if err != nil {
		return fmt.Errorf("uploading %s: %w", key, err)
	}
	return nil
}

// PutFile uploads the file `file` of `fs` under the key of `name`.
func (u *Uploader) PutFile(ctx context.Context, fs billy.Basic, file, name string) error {
	content, err := util.ReadFile(fs, file)
	if err != nil {
		return err
	}
	return u.Put(ctx, name, content)
}

// Sync uploads every regular file found under `dir`, with keys
// <prefix><tree>/<path relative to dir>. It stops at the first failure
// and returns the number of uploaded files.
func (u *Uploader) Sync(ctx context.Context, fs billy.Filesystem, dir, tree string) (int, error) {
	logger := logging.FromContext(ctx)
	uploaded := 0
	err := util.Walk(fs, dir, func(file string, info os.FileInfo, err error) error {
		if err != nil {
			return err
		}
		if info.IsDir() {
			return nil
		}
		if err := ctx.Err(); err != nil {
			return err
		}
		rel, err := filepath.Rel(dir, file)
		if err != nil {
			return err
		}
		name := path.Join(tree, filepath.ToSlash(rel))
		if err := u.PutFile(ctx, fs, file, name); err != nil {
			return err
		}
		logger.Debug("Uploaded file.", "file", file, "key", u.Key(name))
		uploaded++
		return nil
	})
	return uploaded, err
}
