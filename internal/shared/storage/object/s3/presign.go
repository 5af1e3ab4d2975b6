package s3

import (
	"context"
	"fmt"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/s3"
)

// Presigner issues presigned PUT URLs so the admin UI can upload documents
// straight to the uploads bucket.
type Presigner struct {
	client *s3.PresignClient
	bucket string
	prefix string
	ttl    time.Duration
}

// NewPresigner builds a Presigner over the uploads bucket.
func NewPresigner(client *s3.Client, bucket, prefix string, ttl time.Duration) *Presigner {
	return &Presigner{
		client: s3.NewPresignClient(client),
		bucket: bucket,
		prefix: normalizePrefix(prefix),
		ttl:    ttl,
	}
}

// PresignPut returns a presigned URL and the full object key it targets. The
// content type is part of the signature, so the browser must send the same one.
func (p *Presigner) PresignPut(ctx context.Context, key, contentType string) (string, string, error) {
	objectKey := applyPrefix(p.prefix, key)
	input := &s3.PutObjectInput{
		Bucket: aws.String(p.bucket),
		Key:    aws.String(objectKey),
	}
	if contentType != "" {
		input.ContentType = aws.String(contentType)
	}
	out, err := p.client.PresignPutObject(ctx, input, s3.WithPresignExpires(p.ttl))
	if err != nil {
		return "", "", fmt.Errorf("presign put bucket=%s key=%s: %w", p.bucket, objectKey, err)
	}
	return out.URL, objectKey, nil
}

// TTL reports how long issued URLs remain valid.
func (p *Presigner) TTL() time.Duration { return p.ttl }
