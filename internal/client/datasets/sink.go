package datasets

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"os"
	"path"
	"path/filepath"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/credentials"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/dmitrijs2005/assettrack/internal/filex"
)

// Sink stores an exported spreadsheet and returns where it ended up.
type Sink interface {
	Write(ctx context.Context, name, contentType string, body []byte) (string, error)
}

// DirSink writes exports into a local directory.
type DirSink struct {
	Dir string
}

func (d DirSink) Write(_ context.Context, name, _ string, body []byte) (string, error) {
	dir, err := filex.EnsureDir(d.Dir)
	if err != nil {
		return "", err
	}
	p := filepath.Join(dir, filex.SafeName(name))
	if err := os.WriteFile(p, body, 0o640); err != nil {
		return "", fmt.Errorf("write %s: %w", p, err)
	}
	return p, nil
}

type S3Options struct {
	Bucket    string `json:"bucket"`
	Region    string `json:"region"`
	Endpoint  string `json:"endpoint"`
	AccessKey string `json:"access_key"`
	SecretKey string `json:"secret_key"`
}

func (o S3Options) Enabled() bool { return o.Bucket != "" }

type objectPutter interface {
	PutObject(ctx context.Context, in *s3.PutObjectInput, optFns ...func(*s3.Options)) (*s3.PutObjectOutput, error)
}

var (
	loadDefaultAWSConfig = config.LoadDefaultConfig

	newS3ClientFromConfig = func(cfg aws.Config, optFns ...func(*s3.Options)) *s3.Client {
		return s3.NewFromConfig(cfg, optFns...)
	}

	now = time.Now
)

// S3Sink uploads exports to a bucket under exports/<yyyy>/<mm>/<dd>/.
type S3Sink struct {
	client objectPutter
	bucket string
}

// NewS3Sink builds a client for opts. Static credentials are used when an
// access key is given; otherwise the default AWS chain applies.
func NewS3Sink(ctx context.Context, opts S3Options, optFns ...func(*s3.Options)) (*S3Sink, error) {
	if !opts.Enabled() {
		return nil, errors.New("s3 bucket is not configured")
	}
	loadOpts := []func(*config.LoadOptions) error{config.WithRegion(opts.Region)}
	if opts.AccessKey != "" {
		loadOpts = append(loadOpts, config.WithCredentialsProvider(
			credentials.NewStaticCredentialsProvider(opts.AccessKey, opts.SecretKey, "")))
	}
	cfg, err := loadDefaultAWSConfig(ctx, loadOpts...)
	if err != nil {
		return nil, fmt.Errorf("load aws config: %w", err)
	}

	fns := []func(*s3.Options){func(o *s3.Options) {
		if opts.Endpoint != "" {
			o.BaseEndpoint = aws.String(opts.Endpoint)
			o.UsePathStyle = true
		}
	}}
	client := newS3ClientFromConfig(cfg, append(fns, optFns...)...)
	return &S3Sink{client: client, bucket: opts.Bucket}, nil
}

// ExportKey is the object key an export named name gets at t.
func ExportKey(t time.Time, name string) string {
	return path.Join("exports", t.Format("2006"), t.Format("01"), t.Format("02"), filex.SafeName(name))
}

func (s *S3Sink) Write(ctx context.Context, name, contentType string, body []byte) (string, error) {
	key := ExportKey(now().UTC(), name)
	in := &s3.PutObjectInput{
		Bucket: aws.String(s.bucket),
		Key:    aws.String(key),
		Body:   bytes.NewReader(body),
	}
	if contentType != "" {
		in.ContentType = aws.String(contentType)
	}
	if _, err := s.client.PutObject(ctx, in); err != nil {
		return "", fmt.Errorf("put s3://%s/%s: %w", s.bucket, key, err)
	}
	return "s3://" + s.bucket + "/" + key, nil
}
