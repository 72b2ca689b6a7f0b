package s3

import (
	"context"
	"errors"
	"io"
	"strings"
	"testing"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/feature/s3/manager"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeUploader struct {
	input *s3.PutObjectInput
	body  string
	out   *manager.UploadOutput
	err   error
}

func (f *fakeUploader) Upload(ctx context.Context, input *s3.PutObjectInput, opts ...func(*manager.Uploader)) (*manager.UploadOutput, error) {
	f.input = input
	data, _ := io.ReadAll(input.Body)
	f.body = string(data)
	if f.err != nil {
		return nil, f.err
	}
	return f.out, nil
}

func TestArchiver_Put(t *testing.T) {
	u := &fakeUploader{out: &manager.UploadOutput{Location: "https://exports.s3.amazonaws.com/a/b.csv"}}
	a := newArchiver("exports", u)

	loc, err := a.Put(context.Background(), "a/b.csv", "text/csv", strings.NewReader("id\n"))
	require.NoError(t, err)
	assert.Equal(t, "https://exports.s3.amazonaws.com/a/b.csv", loc)
	assert.Equal(t, "exports", aws.ToString(u.input.Bucket))
	assert.Equal(t, "a/b.csv", aws.ToString(u.input.Key))
	assert.Equal(t, "text/csv", aws.ToString(u.input.ContentType))
	assert.Equal(t, "id\n", u.body)
}

func TestArchiver_PutWithoutLocation(t *testing.T) {
	a := newArchiver("exports", &fakeUploader{out: &manager.UploadOutput{}})

	loc, err := a.Put(context.Background(), "k.pdf", "application/pdf", strings.NewReader("%PDF-"))
	require.NoError(t, err)
	assert.Equal(t, "s3://exports/k.pdf", loc)
}

func TestArchiver_PutError(t *testing.T) {
	a := newArchiver("exports", &fakeUploader{err: errors.New("access denied")})

	_, err := a.Put(context.Background(), "k.csv", "text/csv", strings.NewReader(""))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "s3://exports/k.csv")
	assert.Contains(t, err.Error(), "access denied")
}

func TestNew_RequiresBucket(t *testing.T) {
	_, err := New(context.Background(), Options{})
	assert.Error(t, err)
}
