package s3

import (
	"context"
	"errors"
	"io"
	"strings"
	"testing"

	"github.com/aws/aws-sdk-go-v2/aws"
	s3aws "github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/aws/aws-sdk-go-v2/service/s3/types"
	"github.com/aws/smithy-go"
	"github.com/msomdec/shopfront/internal/domain"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
)

type mockClient struct {
	mock.Mock
}

func (m *mockClient) PutObject(ctx context.Context, in *s3aws.PutObjectInput, _ ...func(*s3aws.Options)) (*s3aws.PutObjectOutput, error) {
	args := m.Called(ctx, in)
	out, _ := args.Get(0).(*s3aws.PutObjectOutput)
	return out, args.Error(1)
}

func (m *mockClient) GetObject(ctx context.Context, in *s3aws.GetObjectInput, _ ...func(*s3aws.Options)) (*s3aws.GetObjectOutput, error) {
	args := m.Called(ctx, in)
	out, _ := args.Get(0).(*s3aws.GetObjectOutput)
	return out, args.Error(1)
}

func (m *mockClient) HeadObject(ctx context.Context, in *s3aws.HeadObjectInput, _ ...func(*s3aws.Options)) (*s3aws.HeadObjectOutput, error) {
	args := m.Called(ctx, in)
	out, _ := args.Get(0).(*s3aws.HeadObjectOutput)
	return out, args.Error(1)
}

func (m *mockClient) DeleteObject(ctx context.Context, in *s3aws.DeleteObjectInput, _ ...func(*s3aws.Options)) (*s3aws.DeleteObjectOutput, error) {
	args := m.Called(ctx, in)
	out, _ := args.Get(0).(*s3aws.DeleteObjectOutput)
	return out, args.Error(1)
}

func newStore(t *testing.T, client Client) *Store {
	t.Helper()
	s, err := New(context.Background(), Config{Bucket: "shop", Region: "us-east-1", Prefix: "img/"}, client)
	require.NoError(t, err)
	return s
}

func keyIs(want string) any {
	return mock.MatchedBy(func(in any) bool {
		switch v := in.(type) {
		case *s3aws.PutObjectInput:
			return aws.ToString(v.Key) == want && aws.ToString(v.Bucket) == "shop"
		case *s3aws.GetObjectInput:
			return aws.ToString(v.Key) == want
		case *s3aws.HeadObjectInput:
			return aws.ToString(v.Key) == want
		case *s3aws.DeleteObjectInput:
			return aws.ToString(v.Key) == want
		}
		return false
	})
}

func TestNew_RequiresBucketAndRegion(t *testing.T) {
	_, err := New(context.Background(), Config{Bucket: "shop"}, &mockClient{})
	assert.ErrorIs(t, err, ErrInvalidConfig)
}

func TestSave_PutsUnderPrefix(t *testing.T) {
	client := &mockClient{}
	client.On("PutObject", mock.Anything, keyIs("img/products/a.png")).Return(&s3aws.PutObjectOutput{}, nil)

	err := newStore(t, client).Save(context.Background(), "products/a.png", "image/png", []byte("x"))
	require.NoError(t, err)
	client.AssertExpectations(t)
}

func TestGet_ReturnsBodyAndContentType(t *testing.T) {
	client := &mockClient{}
	client.On("GetObject", mock.Anything, keyIs("img/products/a.png")).Return(&s3aws.GetObjectOutput{
		Body:        io.NopCloser(strings.NewReader("bytes")),
		ContentType: aws.String("image/png"),
	}, nil)

	data, ct, err := newStore(t, client).Get(context.Background(), "products/a.png")
	require.NoError(t, err)
	assert.Equal(t, "bytes", string(data))
	assert.Equal(t, "image/png", ct)
}

func TestGet_NoSuchKeyIsNotFound(t *testing.T) {
	client := &mockClient{}
	client.On("GetObject", mock.Anything, mock.Anything).Return(nil, &types.NoSuchKey{})

	_, _, err := newStore(t, client).Get(context.Background(), "missing.png")
	assert.ErrorIs(t, err, domain.ErrNotFound)
}

func TestDelete_AbsentObjectIsNotFound(t *testing.T) {
	client := &mockClient{}
	client.On("HeadObject", mock.Anything, mock.Anything).Return(nil, &types.NotFound{})

	err := newStore(t, client).Delete(context.Background(), "missing.png")
	assert.ErrorIs(t, err, domain.ErrNotFound)
	client.AssertNotCalled(t, "DeleteObject", mock.Anything, mock.Anything)
}

func TestDelete_ExistingObject(t *testing.T) {
	client := &mockClient{}
	client.On("HeadObject", mock.Anything, keyIs("img/products/a.png")).Return(&s3aws.HeadObjectOutput{}, nil)
	client.On("DeleteObject", mock.Anything, keyIs("img/products/a.png")).Return(&s3aws.DeleteObjectOutput{}, nil)

	require.NoError(t, newStore(t, client).Delete(context.Background(), "products/a.png"))
	client.AssertExpectations(t)
}

func TestClassifyError(t *testing.T) {
	denied := &smithy.GenericAPIError{Code: "AccessDenied", Message: "denied"}
	err := classifyError(denied, "put")
	require.Error(t, err)
	assert.NotErrorIs(t, err, domain.ErrNotFound)
	assert.Contains(t, err.Error(), "AccessDenied")

	assert.ErrorIs(t, classifyError(&smithy.GenericAPIError{Code: "NoSuchKey"}, "get"), domain.ErrNotFound)
	assert.ErrorIs(t, classifyError(context.Canceled, "get"), context.Canceled)
	assert.Nil(t, classifyError(nil, "get"))

	plain := errors.New("connection reset")
	assert.ErrorIs(t, classifyError(plain, "get"), plain)
}
