package storage

import (
	"context"
	"io"
	"sort"
	"strings"
	"sync"
	"testing"

	"github.com/aws/aws-sdk-go/aws"
	"github.com/aws/aws-sdk-go/service/s3/s3manager"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/customeros/inboxsync/internal/config"
	"github.com/customeros/inboxsync/internal/logger"
	"github.com/customeros/inboxsync/internal/models"
)

type memoryS3 struct {
	mu      sync.Mutex
	objects map[string][]byte
	types   map[string]string
	failPut error
}

func newMemoryS3() *memoryS3 {
	return &memoryS3{objects: map[string][]byte{}, types: map[string]string{}}
}

func (m *memoryS3) Upload(_ context.Context, input s3manager.UploadInput) error {
	if m.failPut != nil {
		return m.failPut
	}
	body, err := io.ReadAll(input.Body)
	if err != nil {
		return err
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	key := aws.StringValue(input.Bucket) + "/" + aws.StringValue(input.Key)
	m.objects[key] = body
	m.types[key] = aws.StringValue(input.ContentType)
	return nil
}

func (m *memoryS3) Download(_ context.Context, bucket, key string) ([]byte, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	body, ok := m.objects[bucket+"/"+key]
	if !ok {
		return nil, assert.AnError
	}
	return body, nil
}

func (m *memoryS3) ListKeys(_ context.Context, bucket, prefix string) ([]string, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var keys []string
	for k := range m.objects {
		if strings.HasPrefix(k, bucket+"/"+prefix) {
			keys = append(keys, strings.TrimPrefix(k, bucket+"/"))
		}
	}
	sort.Strings(keys)
	return keys, nil
}

func (m *memoryS3) Delete(_ context.Context, bucket, key string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.objects, bucket+"/"+key)
	return nil
}

func TestRawEmailKey(t *testing.T) {
	assert.Equal(t, "raw/jane@acme.com/INBOX/42.eml", RawEmailKey("jane@acme.com", "INBOX", 42))
	assert.Equal(t, "raw/jane@acme.com/%5BGmail%5D%2FSent/7.eml", RawEmailKey("jane@acme.com", "[Gmail]/Sent", 7))
	assert.True(t, strings.HasPrefix(RawEmailKey("jane@acme.com", "INBOX", 1), AccountPrefix("jane@acme.com")))
}

func TestRawArchive_Store(t *testing.T) {
	s3 := newMemoryS3()
	archive := NewRawArchiveWithStorage(NewStorageService(s3, "raw-emails"), logger.NewNopLogger())
	msg := &models.Message{ID: "m1", Account: "jane@acme.com", Folder: "INBOX", ServerSeq: 3}

	require.NoError(t, archive.Store(context.Background(), msg, []byte("Subject: hi\r\n\r\nbody")))

	key := "raw-emails/raw/jane@acme.com/INBOX/3.eml"
	assert.Equal(t, "Subject: hi\r\n\r\nbody", string(s3.objects[key]))
	assert.Equal(t, RawEmailContentType, s3.types[key])
}

func TestRawArchive_StoreError(t *testing.T) {
	s3 := newMemoryS3()
	s3.failPut = assert.AnError
	archive := NewRawArchiveWithStorage(NewStorageService(s3, "raw-emails"), logger.NewNopLogger())

	err := archive.Store(context.Background(), &models.Message{ID: "m1", Account: "a", Folder: "INBOX", ServerSeq: 1}, []byte("x"))
	assert.ErrorIs(t, err, assert.AnError)
}

func TestNewRawArchive_Disabled(t *testing.T) {
	archive, err := NewRawArchive(&config.StorageConfig{Enabled: false}, logger.NewNopLogger())
	require.NoError(t, err)
	assert.Nil(t, archive)
}

func TestObjectStorageService_RoundTripAndDeletePrefix(t *testing.T) {
	s3 := newMemoryS3()
	svc := NewStorageService(s3, "bucket")
	ctx := context.Background()

	require.NoError(t, svc.Upload(ctx, RawEmailKey("a@x.com", "INBOX", 1), []byte("one"), RawEmailContentType))
	require.NoError(t, svc.Upload(ctx, RawEmailKey("a@x.com", "INBOX", 2), []byte("two"), RawEmailContentType))
	require.NoError(t, svc.Upload(ctx, RawEmailKey("b@x.com", "INBOX", 1), []byte("other"), RawEmailContentType))

	body, err := svc.Download(ctx, RawEmailKey("a@x.com", "INBOX", 2))
	require.NoError(t, err)
	assert.Equal(t, "two", string(body))

	removed, err := svc.DeletePrefix(ctx, AccountPrefix("a@x.com"))
	require.NoError(t, err)
	assert.Equal(t, 2, removed)

	left, err := s3.ListKeys(ctx, "bucket", "raw/")
	require.NoError(t, err)
	assert.Equal(t, []string{RawEmailKey("b@x.com", "INBOX", 1)}, left)
}
