// Package evidence checks that photo evidence URLs point at uploaded media.
package evidence

import (
	"context"
	"errors"
	"fmt"
	"net/url"
	"strings"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/credentials"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	s3types "github.com/aws/aws-sdk-go-v2/service/s3/types"
)

// URLVerifier accepts any absolute http(s) URL.
type URLVerifier struct{}

// Verify implements incidents.EvidenceVerifier.
func (URLVerifier) Verify(_ context.Context, rawURL string) error {
	_, err := parseHTTPURL(rawURL)
	return err
}

// S3Config holds object storage settings.
type S3Config struct {
	Endpoint      string
	Region        string
	Bucket        string
	AccessKey     string
	SecretKey     string
	PublicBaseURL string
}

// NewS3Client returns a path-style S3 client with static credentials.
func NewS3Client(cfg S3Config) *s3.Client {
	opts := s3.Options{
		Region:       cfg.Region,
		Credentials:  credentials.NewStaticCredentialsProvider(cfg.AccessKey, cfg.SecretKey, ""),
		UsePathStyle: true,
	}
	if cfg.Endpoint != "" {
		opts.BaseEndpoint = aws.String(cfg.Endpoint)
	}
	return s3.New(opts)
}

// HeadObjectAPI is the part of the S3 client the verifier uses.
type HeadObjectAPI interface {
	HeadObject(ctx context.Context, params *s3.HeadObjectInput, optFns ...func(*s3.Options)) (*s3.HeadObjectOutput, error)
}

// S3Verifier accepts URLs under the bucket's public base URL whose object exists.
type S3Verifier struct {
	client HeadObjectAPI
	bucket string
	base   *url.URL
}

// NewS3Verifier creates a verifier for objects served from publicBaseURL.
func NewS3Verifier(client HeadObjectAPI, bucket, publicBaseURL string) (*S3Verifier, error) {
	if bucket == "" {
		return nil, errors.New("evidence bucket is required")
	}
	base, err := parseHTTPURL(publicBaseURL)
	if err != nil {
		return nil, fmt.Errorf("public base url: %w", err)
	}
	base.Path = strings.TrimSuffix(base.Path, "/") + "/"
	return &S3Verifier{
		client: client,
		bucket: bucket,
		base:   base,
	}, nil
}

// Verify implements incidents.EvidenceVerifier.
func (v *S3Verifier) Verify(ctx context.Context, rawURL string) error {
	key, err := v.Key(rawURL)
	if err != nil {
		return err
	}

	_, err = v.client.HeadObject(ctx, &s3.HeadObjectInput{
		Bucket: aws.String(v.bucket),
		Key:    aws.String(key),
	})
	if err != nil {
		var notFound *s3types.NotFound
		var noKey *s3types.NoSuchKey
		if errors.As(err, &notFound) || errors.As(err, &noKey) {
			return fmt.Errorf("%w: %s", ErrObjectNotFound, key)
		}
		return fmt.Errorf("head object %s: %w", key, err)
	}
	return nil
}

// Key derives the object key of a URL under the public base URL.
func (v *S3Verifier) Key(rawURL string) (string, error) {
	u, err := parseHTTPURL(rawURL)
	if err != nil {
		return "", err
	}
	if !strings.EqualFold(u.Scheme, v.base.Scheme) || !strings.EqualFold(u.Host, v.base.Host) ||
		!strings.HasPrefix(u.Path, v.base.Path) {
		return "", fmt.Errorf("%w: not under %s", ErrInvalidURL, v.base)
	}

	key := strings.TrimPrefix(u.Path, v.base.Path)
	if key == "" || strings.Contains(key, "..") {
		return "", fmt.Errorf("%w: missing object key", ErrInvalidURL)
	}
	return key, nil
}

func parseHTTPURL(rawURL string) (*url.URL, error) {
	u, err := url.Parse(strings.TrimSpace(rawURL))
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrInvalidURL, err)
	}
	if (u.Scheme != "http" && u.Scheme != "https") || u.Host == "" {
		return nil, fmt.Errorf("%w: absolute http(s) url required", ErrInvalidURL)
	}
	return u, nil
}
