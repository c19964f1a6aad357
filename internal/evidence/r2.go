package evidence

import (
	"context"
	"fmt"
	"strings"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/credentials"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	log "github.com/sirupsen/logrus"
)

// R2Uploader stores evidence in a Cloudflare R2 (S3-compatible) bucket.
type R2Uploader struct {
	S3        *s3.Client
	Bucket    string
	PublicURL string
}

// NewR2Uploader builds an S3 client for an R2 endpoint
// (https://<account-id>.r2.cloudflarestorage.com).
func NewR2Uploader(ctx context.Context, bucket, accessKey, secretKey, endpoint, publicURL string) (*R2Uploader, error) {
	if bucket == "" || accessKey == "" || secretKey == "" || endpoint == "" {
		return nil, fmt.Errorf("missing R2 settings (R2_BUCKET, R2_ACCESS_KEY_ID, R2_SECRET_ACCESS_KEY, R2_ENDPOINT)")
	}

	cfg, err := config.LoadDefaultConfig(ctx,
		config.WithCredentialsProvider(
			credentials.NewStaticCredentialsProvider(accessKey, secretKey, ""),
		),
		config.WithRegion("auto"),
	)
	if err != nil {
		return nil, fmt.Errorf("r2 config: %w", err)
	}

	client := s3.NewFromConfig(cfg, func(o *s3.Options) {
		o.BaseEndpoint = aws.String(endpoint)
		o.UsePathStyle = true // required for R2
	})

	log.Println("✓ R2 evidence storage configured for bucket", bucket)
	return &R2Uploader{S3: client, Bucket: bucket, PublicURL: strings.TrimRight(publicURL, "/")}, nil
}

// Upload puts the file into the bucket and returns its public URL.
func (u *R2Uploader) Upload(ctx context.Context, complaintID string, kind Kind, f File) (string, error) {
	objectName, err := ObjectName(complaintID, kind, f.Name)
	if err != nil {
		return "", err
	}

	input := &s3.PutObjectInput{
		Bucket:       aws.String(u.Bucket),
		Key:          aws.String(objectName),
		Body:         f.Body,
		ContentType:  aws.String(contentType(f)),
		CacheControl: aws.String("no-cache"),
	}
	if f.Size > 0 {
		input.ContentLength = aws.Int64(f.Size)
	}

	if _, err := u.S3.PutObject(ctx, input); err != nil {
		return "", fmt.Errorf("upload %s: %w", f.Name, err)
	}
	return u.objectURL(objectName), nil
}

// objectURL builds the public URL for a stored object.
func (u *R2Uploader) objectURL(objectName string) string {
	return fmt.Sprintf("%s/%s/%s", u.PublicURL, u.Bucket, objectName)
}
