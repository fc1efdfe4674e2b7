// Package avatars issues presigned S3 upload URLs for profile pictures.
package avatars

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	v4 "github.com/aws/aws-sdk-go-v2/aws/signer/v4"
	"github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/credentials"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	sc "github.com/dmitrijs2005/chatterbox/internal/server/config"
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

// UploadValidity is how long a presigned upload URL stays usable.
const UploadValidity = 15 * time.Minute

var allowedContentTypes = map[string]string{
	"image/jpeg": ".jpg",
	"image/png":  ".png",
	"image/gif":  ".gif",
	"image/webp": ".webp",
}

// Upload describes where the client should PUT the picture and the URL the
// picture will be served from afterwards.
type Upload struct {
	Key       string    `json:"key"`
	UploadURL string    `json:"uploadUrl"`
	PublicURL string    `json:"pic"`
	ExpiresAt time.Time `json:"expiresAt"`
}

// S3Presigner presigns PUT requests against an S3-compatible store (MinIO in
// development).
type S3Presigner struct {
	region   string
	user     string
	password string
	bucket   string
	endpoint string
}

func NewS3Presigner(cfg *sc.Config) *S3Presigner {
	return &S3Presigner{
		region:   cfg.S3Region,
		user:     cfg.S3RootUser,
		password: cfg.S3RootPassword,
		bucket:   cfg.S3Bucket,
		endpoint: cfg.S3BaseEndpoint,
	}
}

// IsAllowedContentType reports whether pictures of this type are accepted.
func IsAllowedContentType(contentType string) bool {
	_, ok := allowedContentTypes[contentType]
	return ok
}

func (p *S3Presigner) presignClient(ctx context.Context) (*s3.PresignClient, error) {
	cfg, err := loadDefaultAWSConfig(ctx,
		config.WithRegion(p.region),
		config.WithCredentialsProvider(credentials.NewStaticCredentialsProvider(p.user, p.password, "")))
	if err != nil {
		return nil, err
	}

	client := newS3ClientFromConfig(cfg, func(o *s3.Options) {
		o.BaseEndpoint = aws.String(p.endpoint)
		o.UsePathStyle = true
	})

	return newS3PresignClient(client), nil
}

// storageKey places pictures under avatars/<user>/<random><ext>.
func storageKey(userID, contentType string) string {
	return fmt.Sprintf("avatars/%s/%s%s", userID, uuid.NewString(), allowedContentTypes[contentType])
}

// PresignUpload returns a presigned PUT for a new picture of userID.
func (p *S3Presigner) PresignUpload(ctx context.Context, userID, contentType string) (*Upload, error) {
	if !IsAllowedContentType(contentType) {
		return nil, fmt.Errorf("unsupported content type %q", contentType)
	}

	pc, err := p.presignClient(ctx)
	if err != nil {
		return nil, err
	}

	key := storageKey(userID, contentType)

	req, err := presignPutObject(pc, ctx, &s3.PutObjectInput{
		Bucket:      aws.String(p.bucket),
		Key:         aws.String(key),
		ContentType: aws.String(contentType),
	}, s3.WithPresignExpires(UploadValidity))
	if err != nil {
		return nil, err
	}

	return &Upload{
		Key:       key,
		UploadURL: req.URL,
		PublicURL: strings.TrimRight(p.endpoint, "/") + "/" + p.bucket + "/" + key,
		ExpiresAt: time.Now().Add(UploadValidity),
	}, nil
}
