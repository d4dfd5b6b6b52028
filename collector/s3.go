/*
Copyright © 2025 Jayson Grace <jayson.e.grace@gmail.com>

Permission is hereby granted, free of charge, to any person obtaining a copy
of this software and associated documentation files (the "Software"), to deal
in the Software without restriction, including without limitation the rights
to use, copy, modify, merge, publish, distribute, sublicense, and/or sell
copies of the Software, and to permit persons to whom the Software is
furnished to do so, subject to the following conditions:

The above copyright notice and this permission notice shall be included in
all copies or substantial portions of the Software.

THE SOFTWARE IS PROVIDED "AS IS", WITHOUT WARRANTY OF ANY KIND, EXPRESS OR
IMPLIED, INCLUDING BUT NOT LIMITED TO THE WARRANTIES OF MERCHANTABILITY,
FITNESS FOR A PARTICULAR PURPOSE AND NONINFRINGEMENT. IN NO EVENT SHALL THE
AUTHORS OR COPYRIGHT HOLDERS BE LIABLE FOR ANY CLAIM, DAMAGES OR OTHER
LIABILITY, WHETHER IN AN ACTION OF CONTRACT, TORT OR OTHERWISE, ARISING FROM,
OUT OF OR IN CONNECTION WITH THE SOFTWARE OR THE USE OR OTHER DEALINGS IN
THE SOFTWARE.
*/

package collector

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"path"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/feature/s3/manager"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/cowdogmoo/pubami/logging"
)

// Uploader is satisfied by *manager.Uploader.
type Uploader interface {
	Upload(ctx context.Context, input *s3.PutObjectInput, opts ...func(*manager.Uploader)) (*manager.UploadOutput, error)
}

// S3Sink uploads artifacts to s3://<bucket>/<prefix>/<run id>/.
type S3Sink struct {
	uploader Uploader
	bucket   string
	prefix   string
}

// NewS3Sink returns a sink uploading below prefix in bucket.
func NewS3Sink(uploader Uploader, bucket, prefix string) *S3Sink {
	return &S3Sink{
		uploader: uploader,
		bucket:   bucket,
		prefix:   path.Join(prefix, NewRunID()),
	}
}

// Key returns the object key name is stored under.
func (s *S3Sink) Key(name string) string {
	return path.Join(s.prefix, name)
}

// AttachFile implements Sink.
func (s *S3Sink) AttachFile(ctx context.Context, name string, content []byte) error {
	key := s.Key(name)
	contentType := "application/octet-stream"
	if path.Ext(name) == ".json" {
		contentType = "application/json"
	}

	_, err := s.uploader.Upload(ctx, &s3.PutObjectInput{
		Bucket:      aws.String(s.bucket),
		Key:         aws.String(key),
		Body:        bytes.NewReader(content),
		ContentType: aws.String(contentType),
		Metadata: map[string]string{
			"writer": "pubami",
		},
	})
	if err != nil {
		return fmt.Errorf("failed to upload s3://%s/%s: %w", s.bucket, key, err)
	}
	logging.InfoContext(ctx, "Uploaded s3://%s/%s", s.bucket, key)
	return nil
}

// UpdatePushItems implements Sink.
func (s *S3Sink) UpdatePushItems(ctx context.Context, items []PushItemRecord) error {
	data, err := json.MarshalIndent(items, "", "  ")
	if err != nil {
		return err
	}
	return s.AttachFile(ctx, PushItemsFile, data)
}
