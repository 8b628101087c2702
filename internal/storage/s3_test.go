package storage

import (
	"bytes"
	"context"
	"errors"
	"io"
	"sort"
	"strings"
	"testing"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/aws/aws-sdk-go-v2/service/s3/types"
	"github.com/aws/smithy-go"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// mockS3Client keeps objects in a map and returns the errors S3 would.
type mockS3Client struct {
	objects   map[string][]byte
	putErr    error
	deleteErr error
	copied    []string
}

func newMockS3Client() *mockS3Client {
	return &mockS3Client{objects: make(map[string][]byte)}
}

func noSuchKey() error {
	return &smithy.GenericAPIError{Code: "NoSuchKey", Message: "The specified key does not exist."}
}

func (m *mockS3Client) HeadObject(_ context.Context, in *s3.HeadObjectInput, _ ...func(*s3.Options)) (*s3.HeadObjectOutput, error) {
	if _, ok := m.objects[aws.ToString(in.Key)]; !ok {
		return nil, &types.NotFound{}
	}
	return &s3.HeadObjectOutput{}, nil
}

func (m *mockS3Client) PutObject(_ context.Context, in *s3.PutObjectInput, _ ...func(*s3.Options)) (*s3.PutObjectOutput, error) {
	if m.putErr != nil {
		return nil, m.putErr
	}
	data, err := io.ReadAll(in.Body)
	if err != nil {
		return nil, err
	}
	m.objects[aws.ToString(in.Key)] = data
	return &s3.PutObjectOutput{}, nil
}

func (m *mockS3Client) GetObject(_ context.Context, in *s3.GetObjectInput, _ ...func(*s3.Options)) (*s3.GetObjectOutput, error) {
	data, ok := m.objects[aws.ToString(in.Key)]
	if !ok {
		return nil, noSuchKey()
	}
	return &s3.GetObjectOutput{
		Body:          io.NopCloser(bytes.NewReader(data)),
		ContentLength: aws.Int64(int64(len(data))),
		ContentType:   aws.String("text/plain"),
	}, nil
}

func (m *mockS3Client) DeleteObject(_ context.Context, in *s3.DeleteObjectInput, _ ...func(*s3.Options)) (*s3.DeleteObjectOutput, error) {
	if m.deleteErr != nil {
		return nil, m.deleteErr
	}
	delete(m.objects, aws.ToString(in.Key))
	return &s3.DeleteObjectOutput{}, nil
}

func (m *mockS3Client) CopyObject(_ context.Context, in *s3.CopyObjectInput, _ ...func(*s3.Options)) (*s3.CopyObjectOutput, error) {
	m.copied = append(m.copied, aws.ToString(in.CopySource))
	src := strings.TrimPrefix(aws.ToString(in.CopySource), "bucket/")
	src = strings.ReplaceAll(src, "%20", " ")
	data, ok := m.objects[src]
	if !ok {
		return nil, noSuchKey()
	}
	m.objects[aws.ToString(in.Key)] = data
	return &s3.CopyObjectOutput{}, nil
}

func (m *mockS3Client) ListObjectsV2(_ context.Context, in *s3.ListObjectsV2Input, _ ...func(*s3.Options)) (*s3.ListObjectsV2Output, error) {
	var keys []string
	for k := range m.objects {
		if strings.HasPrefix(k, aws.ToString(in.Prefix)) {
			keys = append(keys, k)
		}
	}
	sort.Strings(keys)
	out := &s3.ListObjectsV2Output{IsTruncated: aws.Bool(false)}
	for _, k := range keys {
		out.Contents = append(out.Contents, types.Object{Key: aws.String(k)})
	}
	return out, nil
}

func newTestS3Store() (*S3Store, *mockS3Client) {
	client := newMockS3Client()
	return &S3Store{client: client, bucket: "bucket"}, client
}

func TestS3Store_PutGetExists(t *testing.T) {
	store, _ := newTestS3Store()
	ctx := context.Background()

	exists, err := store.Exists(ctx, "alice/a.txt")
	require.NoError(t, err)
	assert.False(t, exists)

	require.NoError(t, store.Put(ctx, "alice/a.txt", strings.NewReader("hello"), 5, "text/plain"))

	exists, err = store.Exists(ctx, "alice/a.txt")
	require.NoError(t, err)
	assert.True(t, exists)

	obj, err := store.Get(ctx, "alice/a.txt")
	require.NoError(t, err)
	defer obj.Body.Close()
	body, _ := io.ReadAll(obj.Body)
	assert.Equal(t, "hello", string(body))
	assert.Equal(t, int64(5), obj.Size)
}

func TestS3Store_GetMissingIsNotFound(t *testing.T) {
	store, _ := newTestS3Store()

	_, err := store.Get(context.Background(), "alice/missing.txt")
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestS3Store_ErrorsAreWrapped(t *testing.T) {
	store, client := newTestS3Store()
	client.putErr = errors.New("connection reset")

	err := store.Put(context.Background(), "alice/a.txt", strings.NewReader("x"), 1, "text/plain")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "put object")
	assert.NotErrorIs(t, err, ErrNotFound)
}

func TestS3Store_ListAndMovePrefix(t *testing.T) {
	store, client := newTestS3Store()
	ctx := context.Background()
	client.objects["alice/a b.txt"] = []byte("1")
	client.objects["alice/c.txt"] = []byte("2")
	client.objects["alicex/d.txt"] = []byte("3")

	keys, err := store.List(ctx, "alice/")
	require.NoError(t, err)
	assert.Equal(t, []string{"alice/a b.txt", "alice/c.txt"}, keys)

	require.NoError(t, MovePrefix(ctx, store, "alice/", "alicia/"))

	assert.Contains(t, client.copied, "bucket/alice/a%20b.txt")
	assert.Equal(t, []byte("1"), client.objects["alicia/a b.txt"])
	assert.Equal(t, []byte("2"), client.objects["alicia/c.txt"])
	assert.NotContains(t, client.objects, "alice/c.txt")
	assert.Contains(t, client.objects, "alicex/d.txt")
}

func TestIsNotFound(t *testing.T) {
	assert.True(t, isNotFound(&types.NoSuchKey{}))
	assert.True(t, isNotFound(&types.NotFound{}))
	assert.True(t, isNotFound(noSuchKey()))
	assert.False(t, isNotFound(&smithy.GenericAPIError{Code: "AccessDenied"}))
	assert.False(t, isNotFound(errors.New("boom")))
}
