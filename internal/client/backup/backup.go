// Package backup uploads compressed snapshots of the local store to S3
// compatible object storage through presigned URLs.
package backup

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"path/filepath"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	v4 "github.com/aws/aws-sdk-go-v2/aws/signer/v4"
	"github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/credentials"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/dmitrijs2005/farmsync/internal/logging"
	"github.com/dmitrijs2005/farmsync/internal/netx"
	"github.com/golang/snappy"
	"github.com/google/uuid"
)

var (
	loadDefaultAWSConfig = config.LoadDefaultConfig

	newS3ClientFromConfig = func(cfg aws.Config, optFns ...func(*s3.Options)) *s3.Client {
		return s3.NewFromConfig(cfg, optFns...)
	}

	newS3PresignClient = func(c *s3.Client) *s3.PresignClient {
		return s3.NewPresignClient(c)
	}

	presignPutObject = func(pc *s3.PresignClient, ctx context.Context, in *s3.PutObjectInput, optFns ...func(*s3.PresignOptions)) (*v4.PresignedHTTPRequest, error) {
		return pc.PresignPutObject(ctx, in, optFns...)
	}
)

const presignExpiry = 15 * time.Minute

var ErrNotConfigured = errors.New("backup bucket is not configured")

// Config points at the bucket. Endpoint is optional and selects a non-AWS
// service such as MinIO.
type Config struct {
	Bucket    string `json:"bucket" yaml:"bucket"`
	Region    string `json:"region" yaml:"region"`
	Endpoint  string `json:"endpoint" yaml:"endpoint"`
	AccessKey string `json:"access_key" yaml:"access_key"`
	SecretKey string `json:"secret_key" yaml:"secret_key"`
}

// Snapshotter writes a consistent copy of the database to path.
type Snapshotter interface {
	Snapshot(ctx context.Context, path string) error
}

// Result describes an uploaded backup.
type Result struct {
	Key             string
	RawBytes        int
	CompressedBytes int
}

type Service struct {
	store      Snapshotter
	cfg        Config
	logger     logging.Logger
	httpClient *http.Client
	now        func() time.Time
}

func NewService(s Snapshotter, cfg Config, logger logging.Logger) *Service {
	return &Service{
		store:      s,
		cfg:        cfg,
		logger:     logger.With("module", "backup"),
		httpClient: &http.Client{Timeout: 5 * time.Minute},
		now:        time.Now,
	}
}

func (s *Service) objectKey() string {
	d := s.now().UTC()
	return fmt.Sprintf("backups/%d/%02d/%02d/%s.db.sz", d.Year(), d.Month(), d.Day(), uuid.New())
}

func (s *Service) getPresignClient(ctx context.Context) (*s3.PresignClient, error) {
	opts := []func(*config.LoadOptions) error{config.WithRegion(s.cfg.Region)}
	if s.cfg.AccessKey != "" {
		opts = append(opts, config.WithCredentialsProvider(
			credentials.NewStaticCredentialsProvider(s.cfg.AccessKey, s.cfg.SecretKey, "")))
	}

	cfg, err := loadDefaultAWSConfig(ctx, opts...)
	if err != nil {
		return nil, err
	}

	client := newS3ClientFromConfig(cfg, func(o *s3.Options) {
		if s.cfg.Endpoint != "" {
			o.BaseEndpoint = aws.String(s.cfg.Endpoint)
			o.UsePathStyle = true
		}
	})
	return newS3PresignClient(client), nil
}

// Backup snapshots the store, compresses the snapshot with snappy and PUTs
// it to a fresh key in the bucket.
func (s *Service) Backup(ctx context.Context) (*Result, error) {
	if s.cfg.Bucket == "" {
		return nil, ErrNotConfigured
	}

	dir, err := os.MkdirTemp("", "farmsync-backup-")
	if err != nil {
		return nil, fmt.Errorf("temp dir: %w", err)
	}
	defer os.RemoveAll(dir)

	path := filepath.Join(dir, "snapshot.db")
	if err := s.store.Snapshot(ctx, path); err != nil {
		return nil, err
	}

	raw, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read snapshot: %w", err)
	}
	compressed := snappy.Encode(nil, raw)

	presignClient, err := s.getPresignClient(ctx)
	if err != nil {
		return nil, fmt.Errorf("s3 client: %w", err)
	}

	bucket := s.cfg.Bucket
	key := s.objectKey()
	req, err := presignPutObject(presignClient, ctx, &s3.PutObjectInput{
		Bucket: &bucket,
		Key:    &key,
	}, s3.WithPresignExpires(presignExpiry))
	if err != nil {
		return nil, fmt.Errorf("presign: %w", err)
	}

	if err := netx.UploadToPresignedURL(ctx, s.httpClient, req.URL, compressed); err != nil {
		return nil, err
	}

	res := &Result{Key: key, RawBytes: len(raw), CompressedBytes: len(compressed)}
	s.logger.Info(ctx, "backup uploaded", "key", key, "raw", res.RawBytes, "compressed", res.CompressedBytes)
	return res, nil
}

// Decompress reverses the encoding applied by Backup.
func Decompress(b []byte) ([]byte, error) {
	out, err := snappy.Decode(nil, b)
	if err != nil {
		return nil, fmt.Errorf("decompress backup: %w", err)
	}
	return out, nil
}
