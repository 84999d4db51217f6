package s3

import (
	"bytes"
	"context"
	"errors"
	"io"
	"testing"

	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/aws/aws-sdk-go-v2/service/s3/types"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"github.com/Voupi/sistema-gestion-addag/internal/ports/out/blobstore"
)

type MockClient struct {
	mock.Mock
}

func (m *MockClient) PutObject(ctx context.Context, params *s3.PutObjectInput, optFns ...func(*s3.Options)) (*s3.PutObjectOutput, error) {
	args := m.Called(ctx, params)
	if out := args.Get(0); out != nil {
		return out.(*s3.PutObjectOutput), args.Error(1)
	}
	return nil, args.Error(1)
}

func (m *MockClient) GetObject(ctx context.Context, params *s3.GetObjectInput, optFns ...func(*s3.Options)) (*s3.GetObjectOutput, error) {
	args := m.Called(ctx, params)
	if out := args.Get(0); out != nil {
		return out.(*s3.GetObjectOutput), args.Error(1)
	}
	return nil, args.Error(1)
}

func (m *MockClient) DeleteObject(ctx context.Context, params *s3.DeleteObjectInput, optFns ...func(*s3.Options)) (*s3.DeleteObjectOutput, error) {
	args := m.Called(ctx, params)
	if out := args.Get(0); out != nil {
		return out.(*s3.DeleteObjectOutput), args.Error(1)
	}
	return nil, args.Error(1)
}

func TestStore_UploadReturnsPublicURL(t *testing.T) {
	client := new(MockClient)
	client.On("PutObject", mock.Anything, mock.MatchedBy(func(in *s3.PutObjectInput) bool {
		return *in.Bucket == "carnets" && *in.Key == "P_procesada_123_1.jpg" && *in.ContentType == "image/jpeg"
	})).Return(&s3.PutObjectOutput{}, nil)

	store, err := NewStore(client, Config{Bucket: "carnets", Region: "us-east-1"})
	require.NoError(t, err)

	url, err := store.Upload(context.Background(), "/P_procesada_123_1.jpg", []byte("x"), "image/jpeg")
	require.NoError(t, err)
	assert.Equal(t, "https://carnets.s3.us-east-1.amazonaws.com/P_procesada_123_1.jpg", url)
	client.AssertExpectations(t)
}

func TestStore_FetchUsesKeyFromURL(t *testing.T) {
	client := new(MockClient)
	client.On("GetObject", mock.Anything, mock.MatchedBy(func(in *s3.GetObjectInput) bool {
		return *in.Key == "a/b.jpg"
	})).Return(&s3.GetObjectOutput{Body: io.NopCloser(bytes.NewReader([]byte("img")))}, nil)

	store, err := NewStore(client, Config{Bucket: "carnets", PublicBaseURL: "https://cdn.test/"})
	require.NoError(t, err)

	data, err := store.Fetch(context.Background(), "https://cdn.test/a/b.jpg")
	require.NoError(t, err)
	assert.Equal(t, "img", string(data))

	_, err = store.Fetch(context.Background(), "https://other.test/a/b.jpg")
	assert.ErrorIs(t, err, blobstore.ErrNotFound)
	client.AssertExpectations(t)
}

func TestStore_FetchMissingKey(t *testing.T) {
	client := new(MockClient)
	client.On("GetObject", mock.Anything, mock.Anything).Return(nil, &types.NoSuchKey{})

	store, err := NewStore(client, Config{Bucket: "carnets", PublicBaseURL: "https://cdn.test"})
	require.NoError(t, err)

	_, err = store.Fetch(context.Background(), "https://cdn.test/missing.jpg")
	assert.True(t, errors.Is(err, blobstore.ErrNotFound))
}

func TestNewStore_RequiresBucket(t *testing.T) {
	_, err := NewStore(new(MockClient), Config{})
	assert.Error(t, err)
}
