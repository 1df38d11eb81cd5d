package export

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"io"
	"testing"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/aws/aws-sdk-go-v2/service/s3/types"
	"github.com/aws/smithy-go"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeS3 struct {
	puts         []*s3.PutObjectInput
	bodies       [][]byte
	putErr       error
	headErr      error
	createErr    error
	createCalled bool
}

func (f *fakeS3) PutObject(ctx context.Context, in *s3.PutObjectInput, opts ...func(*s3.Options)) (*s3.PutObjectOutput, error) {
	if f.putErr != nil {
		return nil, f.putErr
	}
	body, err := io.ReadAll(in.Body)
	if err != nil {
		return nil, err
	}
	f.puts = append(f.puts, in)
	f.bodies = append(f.bodies, body)
	return &s3.PutObjectOutput{}, nil
}

func (f *fakeS3) HeadBucket(ctx context.Context, in *s3.HeadBucketInput, opts ...func(*s3.Options)) (*s3.HeadBucketOutput, error) {
	if f.headErr != nil {
		return nil, f.headErr
	}
	return &s3.HeadBucketOutput{}, nil
}

func (f *fakeS3) CreateBucket(ctx context.Context, in *s3.CreateBucketInput, opts ...func(*s3.Options)) (*s3.CreateBucketOutput, error) {
	f.createCalled = true
	if f.createErr != nil {
		return nil, f.createErr
	}
	return &s3.CreateBucketOutput{}, nil
}

func TestS3Sink_Write(t *testing.T) {
	client := &fakeS3{}
	sink := NewS3SinkWithClient(client, "evalhub-exports", "demo")

	data := []byte(`{"user_id":42}`)
	require.NoError(t, sink.Write(context.Background(), "42/20261014T033000.000000000Z.json", data))

	require.Len(t, client.puts, 1)
	in := client.puts[0]
	assert.Equal(t, "evalhub-exports", aws.ToString(in.Bucket))
	assert.Equal(t, "demo/42/20261014T033000.000000000Z.json", aws.ToString(in.Key))
	assert.Equal(t, "application/json", aws.ToString(in.ContentType))
	assert.Equal(t, "*", aws.ToString(in.IfNoneMatch))

	sum := sha256.Sum256(data)
	assert.Equal(t, hex.EncodeToString(sum[:]), in.Metadata["checksum-sha256"])
	assert.Equal(t, data, client.bodies[0])
	assert.Equal(t, "s3", sink.Name())
}

func TestS3Sink_WriteErrors(t *testing.T) {
	client := &fakeS3{putErr: &smithy.GenericAPIError{Code: "PreconditionFailed", Message: "exists"}}
	sink := NewS3SinkWithClient(client, "b", "")

	err := sink.Write(context.Background(), "1/x.json", []byte(`{}`))
	assert.ErrorIs(t, err, ErrSnapshotExists)

	client.putErr = errors.New("timeout")
	err = sink.Write(context.Background(), "1/x.json", []byte(`{}`))
	require.Error(t, err)
	assert.NotErrorIs(t, err, ErrSnapshotExists)
}

func TestS3Sink_EnsureBucket(t *testing.T) {
	ctx := context.Background()

	existing := &fakeS3{}
	require.NoError(t, NewS3SinkWithClient(existing, "b", "").EnsureBucket(ctx))
	assert.False(t, existing.createCalled)

	missing := &fakeS3{headErr: errors.New("NotFound")}
	require.NoError(t, NewS3SinkWithClient(missing, "b", "").EnsureBucket(ctx))
	assert.True(t, missing.createCalled)

	raced := &fakeS3{headErr: errors.New("NotFound"), createErr: &types.BucketAlreadyOwnedByYou{}}
	require.NoError(t, NewS3SinkWithClient(raced, "b", "").EnsureBucket(ctx))

	denied := &fakeS3{headErr: errors.New("Forbidden"), createErr: errors.New("AccessDenied")}
	assert.Error(t, NewS3SinkWithClient(denied, "b", "").EnsureBucket(ctx))
}
