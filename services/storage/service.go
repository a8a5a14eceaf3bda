package storage

import (
	"bytes"
	"context"

	"github.com/aws/aws-sdk-go/aws"
	"github.com/aws/aws-sdk-go/service/s3/s3manager"
	"github.com/opentracing/opentracing-go"

	"github.com/customeros/inboxsync/interfaces"
	"github.com/customeros/inboxsync/internal/tracing"
	"github.com/customeros/inboxsync/services/storage/aws_client"
)

// ObjectStorageService implements StorageService on one bucket
type ObjectStorageService struct {
	client     aws_client.S3Client
	bucketName string
}

func NewStorageService(client aws_client.S3Client, bucketName string) *ObjectStorageService {
	return &ObjectStorageService{
		client:     client,
		bucketName: bucketName,
	}
}

var _ interfaces.StorageService = (*ObjectStorageService)(nil)

func (s *ObjectStorageService) Upload(ctx context.Context, key string, data []byte, contentType string) error {
	span, ctx := opentracing.StartSpanFromContext(ctx, "ObjectStorageService.Upload")
	defer span.Finish()
	tracing.SetDefaultServiceSpanTags(ctx, span)

	return s.client.Upload(ctx, s3manager.UploadInput{
		Bucket:      aws.String(s.bucketName),
		Key:         aws.String(key),
		Body:        bytes.NewReader(data),
		ContentType: aws.String(contentType),
	})
}

func (s *ObjectStorageService) Download(ctx context.Context, key string) ([]byte, error) {
	span, ctx := opentracing.StartSpanFromContext(ctx, "ObjectStorageService.Download")
	defer span.Finish()
	tracing.SetDefaultServiceSpanTags(ctx, span)

	return s.client.Download(ctx, s.bucketName, key)
}

func (s *ObjectStorageService) Delete(ctx context.Context, key string) error {
	span, ctx := opentracing.StartSpanFromContext(ctx, "ObjectStorageService.Delete")
	defer span.Finish()
	tracing.SetDefaultServiceSpanTags(ctx, span)

	return s.client.Delete(ctx, s.bucketName, key)
}

// DeletePrefix removes every object under prefix and returns how many went.
func (s *ObjectStorageService) DeletePrefix(ctx context.Context, prefix string) (int, error) {
	span, ctx := opentracing.StartSpanFromContext(ctx, "ObjectStorageService.DeletePrefix")
	defer span.Finish()
	tracing.SetDefaultServiceSpanTags(ctx, span)

	keys, err := s.client.ListKeys(ctx, s.bucketName, prefix)
	if err != nil {
		tracing.TraceErr(span, err)
		return 0, err
	}
	for i, key := range keys {
		if err := s.client.Delete(ctx, s.bucketName, key); err != nil {
			tracing.TraceErr(span, err)
			return i, err
		}
	}
	return len(keys), nil
}
