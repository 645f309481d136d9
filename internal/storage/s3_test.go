package storage

import (
	"context"
	"errors"
	"io"
	"strings"
	"testing"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeS3 struct {
	puts    []*s3.PutObjectInput
	bodies  []string
	deletes []string
	err     error
}

func (f *fakeS3) PutObject(_ context.Context, in *s3.PutObjectInput, _ ...func(*s3.Options)) (*s3.PutObjectOutput, error) {
	if f.err != nil {
		return nil, f.err
	}
	body, _ := io.ReadAll(in.Body)
	f.puts = append(f.puts, in)
	f.bodies = append(f.bodies, string(body))
	return &s3.PutObjectOutput{}, nil
}

func (f *fakeS3) DeleteObject(_ context.Context, in *s3.DeleteObjectInput, _ ...func(*s3.Options)) (*s3.DeleteObjectOutput, error) {
	f.deletes = append(f.deletes, aws.ToString(in.Key))
	return &s3.DeleteObjectOutput{}, f.err
}

func (f *fakeS3) HeadBucket(context.Context, *s3.HeadBucketInput, ...func(*s3.Options)) (*s3.HeadBucketOutput, error) {
	return &s3.HeadBucketOutput{}, f.err
}

func TestGetContentType(t *testing.T) {
	tests := []struct {
		extension string
		expected  string
	}{
		{".mp4", "video/mp4"},
		{".MP4", "video/mp4"},
		{".mov", "video/quicktime"},
		{".webm", "video/webm"},
		{".jpg", "image/jpeg"},
		{".JPEG", "image/jpeg"},
		{".png", "image/png"},
		{".webp", "image/webp"},
		{".unknown", "application/octet-stream"},
		{"", "application/octet-stream"},
	}

	for _, tt := range tests {
		t.Run(tt.extension, func(t *testing.T) {
			assert.Equal(t, tt.expected, ContentType(tt.extension))
		})
	}
}

func TestObjectKey(t *testing.T) {
	now := time.Date(2025, 3, 9, 10, 0, 0, 0, time.UTC)
	key := ObjectKey(KindVideo, "user123", "My Clip.MP4", now, "abc")
	assert.Equal(t, "videos/2025/03/user123/abc.mp4", key)
}

func TestUpload(t *testing.T) {
	api := &fakeS3{}
	u := NewS3UploaderWithClient(api, "us-east-1", "reelhub-media", "https://cdn.reelhub.app/")
	u.now = func() time.Time { return time.Date(2025, 11, 2, 0, 0, 0, 0, time.UTC) }

	res, err := u.Upload(context.Background(), KindThumbnail, "u1", "thumb.png", strings.NewReader("png-bytes"))
	require.NoError(t, err)

	assert.True(t, strings.HasPrefix(res.Key, "thumbnails/2025/11/u1/"))
	assert.True(t, strings.HasSuffix(res.Key, ".png"))
	assert.Equal(t, "https://cdn.reelhub.app/"+res.Key, res.URL)
	assert.Equal(t, "image/png", res.ContentType)

	require.Len(t, api.puts, 1)
	assert.Equal(t, "reelhub-media", aws.ToString(api.puts[0].Bucket))
	assert.Equal(t, "u1", api.puts[0].Metadata["owner-id"])
	assert.Equal(t, "png-bytes", api.bodies[0])
}

func TestUploadRejectsUnknownKind(t *testing.T) {
	u := NewS3UploaderWithClient(&fakeS3{}, "us-east-1", "b", "")
	_, err := u.Upload(context.Background(), Kind("secrets"), "u1", "a.png", strings.NewReader(""))
	assert.Error(t, err)
}

func TestUploadError(t *testing.T) {
	u := NewS3UploaderWithClient(&fakeS3{err: errors.New("denied")}, "us-east-1", "b", "")
	_, err := u.Upload(context.Background(), KindAvatar, "u1", "a.png", strings.NewReader("x"))
	assert.ErrorContains(t, err, "denied")
}

func TestPublicURLRoundTrip(t *testing.T) {
	u := NewS3UploaderWithClient(&fakeS3{}, "eu-west-1", "media", "")
	assert.Equal(t, "https://media.s3.eu-west-1.amazonaws.com/videos/a.mp4", u.PublicURL("videos/a.mp4"))

	key, ok := u.KeyFromURL("https://media.s3.eu-west-1.amazonaws.com/videos/a.mp4?v=2")
	assert.True(t, ok)
	assert.Equal(t, "videos/a.mp4", key)

	_, ok = u.KeyFromURL("https://elsewhere.example.com/videos/a.mp4")
	assert.False(t, ok)
}

func TestDeleteFile(t *testing.T) {
	api := &fakeS3{}
	u := NewS3UploaderWithClient(api, "us-east-1", "b", "")
	require.NoError(t, u.DeleteFile(context.Background(), "avatars/x.png"))
	assert.Equal(t, []string{"avatars/x.png"}, api.deletes)
}
