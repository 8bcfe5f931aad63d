package storage

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"path"
	"strings"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/feature/s3/manager"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	s3types "github.com/aws/aws-sdk-go-v2/service/s3/types"
	"github.com/google/uuid"
	"github.com/sony/gobreaker/v2"

	"github.com/vidtube/backend/internal/config"
	"github.com/vidtube/backend/internal/metrics"
)

// ErrUnavailable is returned while the breaker is open.
var ErrUnavailable = errors.New("media store unavailable")

// Store persists uploaded media and returns a public location for it.
type Store interface {
	Save(ctx context.Context, key string, r io.Reader, contentType string) (string, error)
	Delete(ctx context.Context, location string) error
}

type uploader interface {
	Upload(ctx context.Context, input *s3.PutObjectInput, opts ...func(*manager.Uploader)) (*manager.UploadOutput, error)
}

type objectDeleter interface {
	DeleteObject(ctx context.Context, input *s3.DeleteObjectInput, opts ...func(*s3.Options)) (*s3.DeleteObjectOutput, error)
}

// S3Storage stores media in an S3-compatible bucket behind a circuit breaker.
type S3Storage struct {
	uploader uploader
	client   objectDeleter
	bucket   string
	baseURL  string
	breaker  *gobreaker.CircuitBreaker[string]
}

// NewS3Storage configures an uploader targeting the provided object store.
func NewS3Storage(ctx context.Context, cfg config.ObjectStoreConfig, logger *slog.Logger) (*S3Storage, error) {
	if !cfg.Enabled() {
		return nil, fmt.Errorf("s3 storage: bucket is required")
	}

	awsCfg, err := awsconfig.LoadDefaultConfig(ctx, awsconfig.WithRegion(cfg.Region))
	if err != nil {
		return nil, fmt.Errorf("load aws config: %w", err)
	}

	client := s3.NewFromConfig(awsCfg, func(o *s3.Options) {
		o.UsePathStyle = true
		if endpoint := strings.TrimSpace(cfg.Endpoint); endpoint != "" {
			o.BaseEndpoint = aws.String(endpoint)
		}
	})

	up := manager.NewUploader(client, func(u *manager.Uploader) {
		u.PartSize = 5 * 1024 * 1024
		u.LeavePartsOnError = false
	})

	return newS3Storage(up, client, cfg.Bucket, cfg.PublicBaseURL, DefaultBreakerSettings(logger)), nil
}

func newS3Storage(up uploader, client objectDeleter, bucket, baseURL string, settings gobreaker.Settings) *S3Storage {
	return &S3Storage{
		uploader: up,
		client:   client,
		bucket:   bucket,
		baseURL:  strings.TrimSuffix(baseURL, "/"),
		breaker:  gobreaker.NewCircuitBreaker[string](settings),
	}
}

// DefaultBreakerSettings trips after five consecutive failures and probes
// again after thirty seconds.
func DefaultBreakerSettings(logger *slog.Logger) gobreaker.Settings {
	if logger == nil {
		logger = slog.Default()
	}
	return gobreaker.Settings{
		Name:        "media-store",
		MaxRequests: 1,
		Interval:    time.Minute,
		Timeout:     30 * time.Second,
		ReadyToTrip: func(counts gobreaker.Counts) bool {
			return counts.ConsecutiveFailures >= 5
		},
		OnStateChange: func(name string, from, to gobreaker.State) {
			logger.Warn("circuit breaker state change",
				slog.String("breaker", name),
				slog.String("from", from.String()),
				slog.String("to", to.String()),
			)
			metrics.MediaBreakerState(name, stateToFloat(to))
		},
	}
}

// Save uploads the content under key and returns its public location.
func (s *S3Storage) Save(ctx context.Context, key string, r io.Reader, contentType string) (string, error) {
	key = strings.TrimLeft(key, "/")
	if key == "" {
		return "", fmt.Errorf("s3 storage: empty key")
	}

	input := &s3.PutObjectInput{
		Bucket: aws.String(s.bucket),
		Key:    aws.String(key),
		Body:   r,
		ACL:    s3types.ObjectCannedACLPublicRead,
	}
	if contentType != "" {
		input.ContentType = aws.String(contentType)
	}

	_, err := s.breaker.Execute(func() (string, error) {
		if _, err := s.uploader.Upload(ctx, input); err != nil {
			return "", err
		}
		return key, nil
	})
	if err != nil {
		return "", s.wrap("upload", key, err)
	}

	return s.Location(key), nil
}

// Delete removes the object behind a location previously returned by Save.
func (s *S3Storage) Delete(ctx context.Context, location string) error {
	key := s.Key(location)
	if key == "" {
		return nil
	}

	_, err := s.breaker.Execute(func() (string, error) {
		_, err := s.client.DeleteObject(ctx, &s3.DeleteObjectInput{
			Bucket: aws.String(s.bucket),
			Key:    aws.String(key),
		})
		return "", err
	})
	if err != nil {
		return s.wrap("delete", key, err)
	}
	return nil
}

// Location maps an object key to its public URL.
func (s *S3Storage) Location(key string) string {
	if s.baseURL == "" {
		return key
	}
	return s.baseURL + "/" + key
}

// Key maps a public location back to its object key.
func (s *S3Storage) Key(location string) string {
	if s.baseURL != "" {
		location = strings.TrimPrefix(location, s.baseURL+"/")
	}
	return strings.TrimLeft(location, "/")
}

func (s *S3Storage) wrap(op, key string, err error) error {
	if errors.Is(err, gobreaker.ErrOpenState) || errors.Is(err, gobreaker.ErrTooManyRequests) {
		return fmt.Errorf("s3 storage %s %s: %w", op, key, ErrUnavailable)
	}
	return fmt.Errorf("s3 storage %s %s: %w", op, key, err)
}

// ObjectKey builds a unique key under prefix that keeps the extension of filename.
func ObjectKey(prefix, filename string) string {
	ext := strings.ToLower(path.Ext(filename))
	return path.Join(prefix, uuid.NewString()+ext)
}

func stateToFloat(state gobreaker.State) float64 {
	switch state {
	case gobreaker.StateClosed:
		return 0
	case gobreaker.StateHalfOpen:
		return 1
	case gobreaker.StateOpen:
		return 2
	default:
		return -1
	}
}

var _ Store = (*S3Storage)(nil)
