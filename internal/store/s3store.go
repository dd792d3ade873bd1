package store

import (
	"bytes"
	"context"
	"fmt"
	"io"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/google/uuid"
)

// S3Source is a Source backed by a ranged-GetObject object in S3 (or any
// S3-compatible endpoint), so the scanner and fixup engine can operate on
// an object without downloading it whole — only moov (plus whatever small
// ranges the scanner probes for headers) is ever pulled into memory before
// the decision to rewrite is made.
type S3Source struct {
	ctx    context.Context
	client *s3.Client
	bucket string
	key    string
	size   int64
}

// NewS3Source HEADs the object to learn its size, then returns a Source
// that satisfies ReadAt with ranged GetObject calls.
func NewS3Source(ctx context.Context, client *s3.Client, bucket, key string) (*S3Source, error) {
	head, err := client.HeadObject(ctx, &s3.HeadObjectInput{
		Bucket: aws.String(bucket),
		Key:    aws.String(key),
	})
	if err != nil {
		return nil, fmt.Errorf("store: head s3://%s/%s: %w", bucket, key, err)
	}
	return &S3Source{
		ctx:    ctx,
		client: client,
		bucket: bucket,
		key:    key,
		size:   aws.ToInt64(head.ContentLength),
	}, nil
}

func (s *S3Source) Size() int64 { return s.size }

func (s *S3Source) ReadAt(p []byte, off int64) (int, error) {
	if len(p) == 0 {
		return 0, nil
	}
	end := off + int64(len(p)) - 1
	rng := fmt.Sprintf("bytes=%d-%d", off, end)

	out, err := s.client.GetObject(s.ctx, &s3.GetObjectInput{
		Bucket: aws.String(s.bucket),
		Key:    aws.String(s.key),
		Range:  aws.String(rng),
	})
	if err != nil {
		return 0, fmt.Errorf("store: get s3://%s/%s range %s: %w", s.bucket, s.key, rng, err)
	}
	defer out.Body.Close()

	n, err := io.ReadFull(out.Body, p)
	if err == io.ErrUnexpectedEOF && off+int64(n) >= s.size {
		// Last range legitimately shorter than the request.
		err = nil
	}
	return n, err
}

// S3Sink buffers the rewritten stream in memory, then lands it at destKey
// via a staging-key PutObject + server-side CopyObject hand-off, so a
// reader of destKey never observes a partially rewritten object — the
// object-storage analogue of FileSink's temp-then-rename. The staging key
// is named with google/uuid the same way the file-storage starters mint
// per-upload object keys.
type S3Sink struct {
	ctx      context.Context
	client   *s3.Client
	bucket   string
	destKey  string
	stageKey string
	buf      bytes.Buffer
	staged   bool
}

// NewS3Sink prepares a sink that will land at destKey on Commit.
func NewS3Sink(ctx context.Context, client *s3.Client, bucket, destKey string) *S3Sink {
	return &S3Sink{
		ctx:      ctx,
		client:   client,
		bucket:   bucket,
		destKey:  destKey,
		stageKey: destKey + ".staging-" + uuid.NewString(),
	}
}

func (s *S3Sink) Write(p []byte) (int, error) { return s.buf.Write(p) }

// Commit uploads the buffered bytes to the staging key, copies the staging
// object onto destKey, then removes the staging key.
func (s *S3Sink) Commit() error {
	_, err := s.client.PutObject(s.ctx, &s3.PutObjectInput{
		Bucket: aws.String(s.bucket),
		Key:    aws.String(s.stageKey),
		Body:   bytes.NewReader(s.buf.Bytes()),
	})
	if err != nil {
		return fmt.Errorf("store: stage s3://%s/%s: %w", s.bucket, s.stageKey, err)
	}
	s.staged = true

	_, err = s.client.CopyObject(s.ctx, &s3.CopyObjectInput{
		Bucket:     aws.String(s.bucket),
		Key:        aws.String(s.destKey),
		CopySource: aws.String(s.bucket + "/" + s.stageKey),
	})
	if err != nil {
		s.Abort()
		return fmt.Errorf("store: copy staging onto s3://%s/%s: %w", s.bucket, s.destKey, err)
	}

	return s.deleteStaging()
}

// Abort removes the staging object, if one was uploaded, leaving destKey
// untouched.
func (s *S3Sink) Abort() error {
	s.buf.Reset()
	if !s.staged {
		return nil
	}
	return s.deleteStaging()
}

func (s *S3Sink) deleteStaging() error {
	_, err := s.client.DeleteObject(s.ctx, &s3.DeleteObjectInput{
		Bucket: aws.String(s.bucket),
		Key:    aws.String(s.stageKey),
	})
	s.staged = false
	return err
}
