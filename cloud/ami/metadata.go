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

package ami

import (
	"context"
	"errors"
)

// Provider publishes and deletes images in one region.
type Provider interface {
	Publish(ctx context.Context, meta PublishingMetadata) (Image, error)
	Delete(ctx context.Context, meta DeleteMetadata) (DeleteResult, error)
}

// PublishingMetadata describes the image to publish and who may use it.
type PublishingMetadata struct {
	// ImagePath is the local raw disk image.
	ImagePath    string
	ImageName    string
	SnapshotName string
	// Container is the bucket the disk image is uploaded to.
	Container       string
	Description     string
	Arch            string
	VirtType        string
	RootDeviceName  string
	VolumeType      string
	BootMode        string
	BillingProducts []string
	// Accounts receive launch permission on the image.
	Accounts []string
	// SnapshotAccountIDs receive create volume permission on the snapshot.
	SnapshotAccountIDs []string
	// Groups receive launch permission on the image; "all" makes it public.
	Groups          []string
	SriovNetSupport string
	EnaSupport      bool
	Tags            map[string]string
}

// Validate reports missing required fields.
func (m PublishingMetadata) Validate() error {
	var errs []error
	if m.ImageName == "" {
		errs = append(errs, errors.New("image name is required"))
	}
	if m.ImagePath == "" {
		errs = append(errs, errors.New("image path is required"))
	}
	if m.Container == "" {
		errs = append(errs, errors.New("container is required"))
	}
	return errors.Join(errs...)
}

// Image is a registered AMI.
type Image struct {
	ID   string
	Name string
}

// DeleteMetadata identifies the image, and optionally its snapshot, to remove.
type DeleteMetadata struct {
	ImageID      string
	ImageName    string
	SnapshotID   string
	SnapshotName string
	SkipSnapshot bool
}

// DeleteResult holds the ids that were actually removed. An id is empty when
// the object did not exist.
type DeleteResult struct {
	ImageID    string
	SnapshotID string
}

// Found reports whether anything was removed.
func (r DeleteResult) Found() bool {
	return r.ImageID != "" || r.SnapshotID != ""
}
