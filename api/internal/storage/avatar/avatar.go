// Package avatar issues presigned S3 uploads for profile images.
package avatar

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	v4 "github.com/aws/aws-sdk-go-v2/aws/signer/v4"
	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/credentials"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/google/uuid"
)

// ErrUnsupportedType is returned for content types that are not images we accept.
var ErrUnsupportedType = errors.New("avatar: unsupported content type")

var extensions = map[string]string{
	"image/jpeg": ".jpg",
	"image/png":  ".png",
	"image/webp": ".webp",
	"image/gif":  ".gif",
}

var (
	loadDefaultAWSConfig  = awsconfig.LoadDefaultConfig
	newS3ClientFromConfig = func(cfg aws.Config, optFns ...func(*s3.Options)) *s3.Client {
		return s3.NewFromConfig(cfg, optFns...)
	}
)

type presigner interface {
	PresignPutObject(ctx context.Context, in *s3.PutObjectInput, optFns ...func(*s3.PresignOptions)) (*v4.PresignedHTTPRequest, error)
}

// Config locates the bucket. Endpoint is set for S3 compatible stores such as MinIO.
type Config struct {
	Bucket    string
	Region    string
	Endpoint  string
	AccessKey string
	SecretKey string
	PublicURL string
	TTL       time.Duration
}

// Upload describes a presigned PUT the client performs directly against storage.
type Upload struct {
	Method    string    `json:"method"`
	UploadURL string    `json:"uploadUrl"`
	ImageURL  string    `json:"imageUrl"`
	Key       string    `json:"key"`
	ExpiresAt time.Time `json:"expiresAt"`
}

// Uploads presigns avatar uploads.
type Uploads struct {
	presign presigner
	cfg     Config
	now     func() time.Time
}

// New builds Uploads from static credentials when provided, or the default AWS
// credential chain otherwise.
func New(ctx context.Context, cfg Config) (*Uploads, error) {
	if strings.TrimSpace(cfg.Bucket) == "" {
		return nil, errors.New("avatar: bucket required")
	}
	if cfg.TTL <= 0 {
		cfg.TTL = 15 * time.Minute
	}
	opts := []func(*awsconfig.LoadOptions) error{awsconfig.WithRegion(cfg.Region)}
	if cfg.AccessKey != "" {
		opts = append(opts, awsconfig.WithCredentialsProvider(
			credentials.NewStaticCredentialsProvider(cfg.AccessKey, cfg.SecretKey, ""),
		))
	}
	awsCfg, err := loadDefaultAWSConfig(ctx, opts...)
	if err != nil {
		return nil, fmt.Errorf("load aws config: %w", err)
	}
	client := newS3ClientFromConfig(awsCfg, func(o *s3.Options) {
		if cfg.Endpoint != "" {
			o.BaseEndpoint = aws.String(cfg.Endpoint)
			o.UsePathStyle = true
		}
	})
	return &Uploads{presign: s3.NewPresignClient(client), cfg: cfg, now: time.Now}, nil
}

// PresignUpload returns a PUT URL for a new avatar object owned by userID.
func (u *Uploads) PresignUpload(ctx context.Context, userID, contentType string) (Upload, error) {
	contentType = strings.ToLower(strings.TrimSpace(contentType))
	ext, ok := extensions[contentType]
	if !ok {
		return Upload{}, ErrUnsupportedType
	}
	key := fmt.Sprintf("avatars/%s/%s%s", userID, uuid.NewString(), ext)
	req, err := u.presign.PresignPutObject(ctx, &s3.PutObjectInput{
		Bucket:      aws.String(u.cfg.Bucket),
		Key:         aws.String(key),
		ContentType: aws.String(contentType),
	}, s3.WithPresignExpires(u.cfg.TTL))
	if err != nil {
		return Upload{}, fmt.Errorf("presign avatar upload: %w", err)
	}
	return Upload{
		Method:    req.Method,
		UploadURL: req.URL,
		ImageURL:  u.publicURL(key),
		Key:       key,
		ExpiresAt: u.now().Add(u.cfg.TTL).UTC(),
	}, nil
}

func (u *Uploads) publicURL(key string) string {
	switch {
	case u.cfg.PublicURL != "":
		return strings.TrimRight(u.cfg.PublicURL, "/") + "/" + key
	case u.cfg.Endpoint != "":
		return strings.TrimRight(u.cfg.Endpoint, "/") + "/" + u.cfg.Bucket + "/" + key
	default:
		return fmt.Sprintf("https://%s.s3.%s.amazonaws.com/%s", u.cfg.Bucket, u.cfg.Region, key)
	}
}
