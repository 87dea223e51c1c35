// Package objectstore reads extracts from and publishes outputs to an S3
// bucket (or any S3-compatible store).
package objectstore

import (
	"context"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"log"
	"os"
	"path"
	"path/filepath"
	"strings"

	"github.com/aws/aws-sdk-go-v2/aws"
	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/aws/aws-sdk-go-v2/service/s3/types"

	"github.com/Gerardo1909/ecommerce-reporting-etl/internal/extract"
)

// Config selects a bucket location.
type Config struct {
	Bucket string `json:"bucket" yaml:"bucket"`
	Prefix string `json:"prefix,omitempty" yaml:"prefix,omitempty"`
	Region string `json:"region,omitempty" yaml:"region,omitempty"`

	// Endpoint overrides the S3 endpoint, e.g. a local MinIO.
	Endpoint  string `json:"endpoint,omitempty" yaml:"endpoint,omitempty"`
	PathStyle bool   `json:"path_style,omitempty" yaml:"path_style,omitempty"`
}

// api is the part of *s3.Client used here.
type api interface {
	GetObject(ctx context.Context, in *s3.GetObjectInput, opts ...func(*s3.Options)) (*s3.GetObjectOutput, error)
	PutObject(ctx context.Context, in *s3.PutObjectInput, opts ...func(*s3.Options)) (*s3.PutObjectOutput, error)
}

// S3 is a bucket + prefix.
type S3 struct {
	client api
	bucket string
	prefix string
}

// New loads the default AWS credential chain and returns a client for cfg.
// The region falls back to AWS_REGION, AWS_DEFAULT_REGION, then eu-central-1.
func New(ctx context.Context, cfg Config) (*S3, error) {
	if cfg.Bucket == "" {
		return nil, errors.New("objectstore: bucket is required")
	}
	region := cfg.Region
	if region == "" {
		region = os.Getenv("AWS_REGION")
	}
	if region == "" {
		region = os.Getenv("AWS_DEFAULT_REGION")
	}
	if region == "" {
		region = "eu-central-1"
	}
	awsCfg, err := awsconfig.LoadDefaultConfig(ctx, awsconfig.WithRegion(region))
	if err != nil {
		return nil, fmt.Errorf("objectstore: load aws config: %w", err)
	}
	client := s3.NewFromConfig(awsCfg, func(o *s3.Options) {
		if cfg.Endpoint != "" {
			o.BaseEndpoint = aws.String(cfg.Endpoint)
		}
		o.UsePathStyle = cfg.PathStyle
	})
	return &S3{client: client, bucket: cfg.Bucket, prefix: cleanPrefix(cfg.Prefix)}, nil
}

func cleanPrefix(p string) string {
	p = strings.Trim(p, "/")
	if p == "" {
		return ""
	}
	return p + "/"
}

// URL renders the s3:// location of key.
func (s *S3) URL(key string) string {
	return fmt.Sprintf("s3://%s/%s", s.bucket, key)
}

// Open implements extract.Source. Table t is read from
// "<prefix>ecommerce_<t>.csv", falling back to "<prefix><t>.csv".
func (s *S3) Open(ctx context.Context, name string) (io.ReadCloser, error) {
	for _, k := range []string{"ecommerce_" + name + ".csv", name + ".csv"} {
		key := s.prefix + k
		out, err := s.client.GetObject(ctx, &s3.GetObjectInput{Bucket: aws.String(s.bucket), Key: aws.String(key)})
		if err == nil {
			return out.Body, nil
		}
		var nsk *types.NoSuchKey
		if !errors.As(err, &nsk) {
			return nil, fmt.Errorf("get %s: %w", s.URL(key), err)
		}
	}
	return nil, fmt.Errorf("%w: %s in %s", extract.ErrNotFound, name, s.URL(s.prefix))
}

// UploadDir copies every regular file under dir to "<prefix><sub>/<rel path>"
// and returns the number of objects written.
func (s *S3) UploadDir(ctx context.Context, dir, sub string) (int, error) {
	base := s.prefix + cleanPrefix(sub)
	n := 0
	err := filepath.WalkDir(dir, func(p string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if d.IsDir() {
			return nil
		}
		rel, err := filepath.Rel(dir, p)
		if err != nil {
			return err
		}
		key := base + filepath.ToSlash(rel)
		f, err := os.Open(p)
		if err != nil {
			return err
		}
		defer f.Close()
		_, err = s.client.PutObject(ctx, &s3.PutObjectInput{
			Bucket:      aws.String(s.bucket),
			Key:         aws.String(key),
			Body:        f,
			ContentType: aws.String(contentType(key)),
		})
		if err != nil {
			return fmt.Errorf("put %s: %w", s.URL(key), err)
		}
		n++
		return nil
	})
	if err != nil {
		return n, fmt.Errorf("objectstore: upload %s: %w", dir, err)
	}
	log.Printf("objectstore: uploaded %d objects to %s", n, s.URL(base))
	return n, nil
}

func contentType(key string) string {
	switch path.Ext(key) {
	case ".csv":
		return "text/csv"
	case ".json":
		return "application/json"
	case ".xlsx":
		return "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet"
	default:
		return "application/octet-stream"
	}
}
