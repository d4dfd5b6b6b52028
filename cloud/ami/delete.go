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

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/ec2"
	"github.com/aws/aws-sdk-go-v2/service/ec2/types"
	"github.com/cowdogmoo/pubami/logging"
)

// Delete deregisters the image and, unless meta.SkipSnapshot is set, deletes
// its root snapshot. Objects that do not exist are skipped and reported with
// an empty id.
func (s *Service) Delete(ctx context.Context, meta DeleteMetadata) (DeleteResult, error) {
	var result DeleteResult

	image, err := s.lookupImage(ctx, meta.ImageID, meta.ImageName)
	if err != nil {
		return result, WrapWithRemediation(err, "failed to look up image "+meta.ImageID)
	}

	snapshotID := meta.SnapshotID
	if image != nil {
		imageID := aws.ToString(image.ImageId)
		if snapshotID == "" {
			snapshotID = rootSnapshot(image)
		}

		logging.InfoContext(ctx, "Deregistering image %s", imageID)
		if _, err := s.clients.EC2.DeregisterImage(ctx, &ec2.DeregisterImageInput{
			ImageId: aws.String(imageID),
		}); err != nil && !isNotFound(err) {
			return result, WrapWithRemediation(err, "failed to deregister image "+imageID)
		}
		result.ImageID = imageID
	} else {
		logging.WarnContext(ctx, "Image %s not found in %s", firstNonEmpty(meta.ImageID, meta.ImageName), s.region)
	}

	if meta.SkipSnapshot {
		return result, nil
	}

	if snapshotID == "" {
		snapshotID, err = s.findSnapshotByName(ctx, meta.SnapshotName)
		if err != nil {
			return result, WrapWithRemediation(err, "failed to look up snapshot "+meta.SnapshotName)
		}
	}
	if snapshotID == "" {
		return result, nil
	}

	logging.InfoContext(ctx, "Deleting snapshot %s", snapshotID)
	if _, err := s.clients.EC2.DeleteSnapshot(ctx, &ec2.DeleteSnapshotInput{
		SnapshotId: aws.String(snapshotID),
	}); err != nil {
		if isNotFound(err) {
			logging.WarnContext(ctx, "Snapshot %s already gone", snapshotID)
			return result, nil
		}
		return result, WrapWithRemediation(err, "failed to delete snapshot "+snapshotID)
	}
	result.SnapshotID = snapshotID

	return result, nil
}

// lookupImage finds an image by id, falling back to its name.
func (s *Service) lookupImage(ctx context.Context, imageID, name string) (*types.Image, error) {
	if imageID != "" {
		out, err := s.clients.EC2.DescribeImages(ctx, &ec2.DescribeImagesInput{ImageIds: []string{imageID}})
		if err != nil && !isNotFound(err) {
			return nil, err
		}
		if err == nil && len(out.Images) > 0 {
			return &out.Images[0], nil
		}
	}
	if name == "" {
		return nil, nil
	}
	return s.findImageByName(ctx, name)
}

func rootSnapshot(image *types.Image) string {
	root := aws.ToString(image.RootDeviceName)
	var first string
	for _, bdm := range image.BlockDeviceMappings {
		if bdm.Ebs == nil || bdm.Ebs.SnapshotId == nil {
			continue
		}
		if aws.ToString(bdm.DeviceName) == root {
			return *bdm.Ebs.SnapshotId
		}
		if first == "" {
			first = *bdm.Ebs.SnapshotId
		}
	}
	return first
}

func firstNonEmpty(values ...string) string {
	for _, v := range values {
		if v != "" {
			return v
		}
	}
	return ""
}
