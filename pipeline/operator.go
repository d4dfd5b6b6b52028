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

package pipeline

import (
	"context"
	"fmt"

	"github.com/cowdogmoo/pubami/cloud/ami"
	"github.com/cowdogmoo/pubami/logging"
)

// ProviderSource hands out the cloud provider of a region.
type ProviderSource interface {
	ForRegion(ctx context.Context, region string) (ami.Provider, error)
}

// PublishError is a failed cloud publish.
type PublishError struct {
	Region string
	Name   string
	Err    error
}

func (e *PublishError) Error() string {
	return fmt.Sprintf("publish %s in %s: %v", e.Name, e.Region, e.Err)
}

func (e *PublishError) Unwrap() error { return e.Err }

// DeleteError is a failed cloud delete.
type DeleteError struct {
	Region  string
	ImageID string
	Err     error
}

func (e *DeleteError) Error() string {
	return fmt.Sprintf("delete %s in %s: %v", e.ImageID, e.Region, e.Err)
}

func (e *DeleteError) Unwrap() error { return e.Err }

// CloudOperator runs provider calls and turns their failures into
// PublishError and DeleteError values.
type CloudOperator struct {
	providers ProviderSource
}

// NewCloudOperator returns an operator using providers.
func NewCloudOperator(providers ProviderSource) *CloudOperator {
	return &CloudOperator{providers: providers}
}

// Publish uploads and registers an image in region.
func (o *CloudOperator) Publish(ctx context.Context, region string, meta ami.PublishingMetadata) (ami.Image, error) {
	provider, err := o.providers.ForRegion(ctx, region)
	if err != nil {
		return ami.Image{}, &PublishError{Region: region, Name: meta.ImageName, Err: err}
	}

	image, err := provider.Publish(ctx, meta)
	if err != nil {
		return ami.Image{}, &PublishError{Region: region, Name: meta.ImageName, Err: err}
	}
	return image, nil
}

// Delete removes an image, and unless meta.SkipSnapshot its snapshot, from
// region.
func (o *CloudOperator) Delete(ctx context.Context, region string, meta ami.DeleteMetadata) (ami.DeleteResult, error) {
	provider, err := o.providers.ForRegion(ctx, region)
	if err != nil {
		return ami.DeleteResult{}, &DeleteError{Region: region, ImageID: meta.ImageID, Err: err}
	}

	result, err := provider.Delete(ctx, meta)
	if err != nil {
		logging.ErrorContext(ctx, "AWS delete failed for AMI %s", meta.ImageID)
		return ami.DeleteResult{}, &DeleteError{Region: region, ImageID: meta.ImageID, Err: err}
	}
	return result, nil
}
