package storage

import (
	"context"
	"errors"
	"fmt"
	"net/url"
	"strings"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/credentials"
	"github.com/aws/aws-sdk-go-v2/service/s3"
)

const defaultPresignTTL = 15 * time.Minute

type CloudflareR2Config struct {
	AccountID       string
	AccessKeyID     string
	SecretAccessKey string
	BucketName      string
	// PublicBaseURL, если задан, используется вместо presigned ссылок.
	PublicBaseURL string
	PresignTTL    time.Duration
}

type cloudflareR2Resolver struct {
	presigner  *s3.PresignClient
	bucketName string
	publicBase *url.URL
	ttl        time.Duration
}

func NewCloudflareR2Resolver(ctx context.Context, cfg CloudflareR2Config) (LogoResolver, error) {
	if cfg.AccountID == "" || cfg.AccessKeyID == "" || cfg.SecretAccessKey == "" || cfg.BucketName == "" {
		return nil, errors.New("invalid Cloudflare R2 configuration: account, credentials and bucket are required")
	}

	sdkCfg, err := config.LoadDefaultConfig(ctx,
		config.WithCredentialsProvider(credentials.NewStaticCredentialsProvider(cfg.AccessKeyID, cfg.SecretAccessKey, "")),
		config.WithRegion("auto"),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to load AWS SDK config for R2: %w", err)
	}

	endpoint := fmt.Sprintf("https://%s.r2.cloudflarestorage.com", cfg.AccountID)
	client := s3.NewFromConfig(sdkCfg, func(o *s3.Options) {
		o.BaseEndpoint = aws.String(endpoint)
	})

	r := &cloudflareR2Resolver{
		presigner:  s3.NewPresignClient(client),
		bucketName: cfg.BucketName,
		ttl:        cfg.PresignTTL,
	}
	if r.ttl <= 0 {
		r.ttl = defaultPresignTTL
	}
	if cfg.PublicBaseURL != "" {
		base, err := url.Parse(cfg.PublicBaseURL)
		if err != nil {
			return nil, fmt.Errorf("invalid R2 public base url %q: %w", cfg.PublicBaseURL, err)
		}
		if !strings.HasSuffix(base.Path, "/") {
			base.Path += "/"
		}
		r.publicBase = base
	}
	return r, nil
}

func (r *cloudflareR2Resolver) ResolveLogoURL(ctx context.Context, key string) (string, error) {
	if r.publicBase != nil {
		return joinPublicURL(r.publicBase, key)
	}
	key = strings.TrimPrefix(key, "/")
	if key == "" {
		return "", errors.New("empty logo key")
	}

	req, err := r.presigner.PresignGetObject(ctx, &s3.GetObjectInput{
		Bucket: aws.String(r.bucketName),
		Key:    aws.String(key),
	}, s3.WithPresignExpires(r.ttl))
	if err != nil {
		return "", fmt.Errorf("failed to presign R2 object (key: %s): %w", key, err)
	}
	return req.URL, nil
}
