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
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/ec2"
	"github.com/aws/aws-sdk-go-v2/service/ec2/types"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	s3types "github.com/aws/aws-sdk-go-v2/service/s3/types"
	"github.com/cowdogmoo/pubami/logging"
)

const (
	defaultPollInterval  = 15 * time.Second
	defaultImportTimeout = 2 * time.Hour

	// usEast1 is the only region whose buckets take no location constraint.
	usEast1 = "us-east-1"
)

// Service implements Provider for one region.
type Service struct {
	clients       *AWSClients
	region        string
	pollInterval  time.Duration
	importTimeout time.Duration
}

var _ Provider = (*Service)(nil)

// NewService returns a Service using clients, which must be configured for
// a single region.
func NewService(clients *AWSClients) *Service {
	return &Service{
		clients:       clients,
		region:        clients.GetRegion(),
		pollInterval:  defaultPollInterval,
		importTimeout: defaultImportTimeout,
	}
}

// Publish makes the image described by meta available. Steps whose result
// already exists are skipped.
func (s *Service) Publish(ctx context.Context, meta PublishingMetadata) (Image, error) {
	if err := meta.Validate(); err != nil {
		return Image{}, fmt.Errorf("invalid publishing metadata: %w", err)
	}

	existing, err := s.findImageByName(ctx, meta.ImageName)
	if err != nil {
		return Image{}, WrapWithRemediation(err, "failed to look up image "+meta.ImageName)
	}

	var imageID string
	if existing != nil {
		imageID = aws.ToString(existing.ImageId)
		logging.InfoContext(ctx, "Image %s already registered as %s", meta.ImageName, imageID)
	} else {
		snapshotID, err := s.ensureSnapshot(ctx, meta)
		if err != nil {
			return Image{}, err
		}

		imageID, err = s.registerImage(ctx, meta, snapshotID)
		if err != nil {
			return Image{}, WrapWithRemediation(err, "failed to register image "+meta.ImageName)
		}
	}

	if err := s.grantLaunchPermissions(ctx, imageID, meta.Accounts, meta.Groups); err != nil {
		return Image{}, WrapWithRemediation(err, "failed to set launch permissions on "+imageID)
	}

	return Image{ID: imageID, Name: meta.ImageName}, nil
}

func (s *Service) findImageByName(ctx context.Context, name string) (*types.Image, error) {
	out, err := s.clients.EC2.DescribeImages(ctx, &ec2.DescribeImagesInput{
		Owners:  []string{"self"},
		Filters: []types.Filter{{Name: aws.String("name"), Values: []string{name}}},
	})
	if err != nil {
		return nil, err
	}
	if len(out.Images) == 0 {
		return nil, nil
	}
	return &out.Images[0], nil
}

func (s *Service) findSnapshotByName(ctx context.Context, name string) (string, error) {
	if name == "" {
		return "", nil
	}
	out, err := s.clients.EC2.DescribeSnapshots(ctx, &ec2.DescribeSnapshotsInput{
		OwnerIds: []string{"self"},
		Filters:  []types.Filter{{Name: aws.String("tag:Name"), Values: []string{name}}},
	})
	if err != nil {
		return "", err
	}
	if len(out.Snapshots) == 0 {
		return "", nil
	}
	return aws.ToString(out.Snapshots[0].SnapshotId), nil
}

// ensureSnapshot returns the snapshot named meta.SnapshotName, importing it
// from the disk image when it does not exist yet.
func (s *Service) ensureSnapshot(ctx context.Context, meta PublishingMetadata) (string, error) {
	snapshotID, err := s.findSnapshotByName(ctx, meta.SnapshotName)
	if err != nil {
		return "", WrapWithRemediation(err, "failed to look up snapshot "+meta.SnapshotName)
	}

	if snapshotID != "" {
		logging.InfoContext(ctx, "Reusing snapshot %s (%s)", snapshotID, meta.SnapshotName)
	} else {
		key, err := s.upload(ctx, meta.Container, meta.ImagePath)
		if err != nil {
			return "", err
		}

		snapshotID, err = s.importSnapshot(ctx, meta, key)
		if err != nil {
			return "", WrapWithRemediation(err, "failed to import snapshot from s3://"+meta.Container+"/"+key)
		}

		tags := map[string]string{"Name": meta.SnapshotName}
		if err := s.tag(ctx, snapshotID, tags, meta.Tags); err != nil {
			return "", WrapWithRemediation(err, "failed to tag snapshot "+snapshotID)
		}
	}

	if len(meta.SnapshotAccountIDs) > 0 {
		if err := s.shareSnapshot(ctx, snapshotID, meta.SnapshotAccountIDs); err != nil {
			return "", WrapWithRemediation(err, "failed to share snapshot "+snapshotID)
		}
	}

	return snapshotID, nil
}

// upload copies the disk image into the container bucket and returns its key.
func (s *Service) upload(ctx context.Context, bucket, path string) (string, error) {
	if err := s.ensureBucket(ctx, bucket); err != nil {
		return "", WrapWithRemediation(err, "failed to prepare container "+bucket)
	}

	file, err := os.Open(path)
	if err != nil {
		return "", fmt.Errorf("failed to open image %s: %w", path, err)
	}
	defer func() { _ = file.Close() }()

	key := filepath.Base(path)
	logging.InfoContext(ctx, "Uploading %s to s3://%s/%s", path, bucket, key)

	if _, err := s.clients.Uploader.Upload(ctx, &s3.PutObjectInput{
		Bucket: aws.String(bucket),
		Key:    aws.String(key),
		Body:   file,
	}); err != nil {
		return "", WrapWithRemediation(err, "failed to upload "+path)
	}

	return key, nil
}

func (s *Service) ensureBucket(ctx context.Context, bucket string) error {
	_, err := s.clients.S3.HeadBucket(ctx, &s3.HeadBucketInput{Bucket: aws.String(bucket)})
	if err == nil {
		return nil
	}
	if !isNotFound(err) {
		return err
	}

	logging.InfoContext(ctx, "Creating container %s in %s", bucket, s.region)
	input := &s3.CreateBucketInput{Bucket: aws.String(bucket)}
	if s.region != "" && s.region != usEast1 {
		input.CreateBucketConfiguration = &s3types.CreateBucketConfiguration{
			LocationConstraint: s3types.BucketLocationConstraint(s.region),
		}
	}
	if _, err := s.clients.S3.CreateBucket(ctx, input); err != nil && !isAlreadyOwned(err) {
		return err
	}
	return nil
}

func (s *Service) importSnapshot(ctx context.Context, meta PublishingMetadata, key string) (string, error) {
	out, err := s.clients.EC2.ImportSnapshot(ctx, &ec2.ImportSnapshotInput{
		Description: aws.String(meta.SnapshotName),
		DiskContainer: &types.SnapshotDiskContainer{
			Description: aws.String(meta.SnapshotName),
			Format:      aws.String(diskFormat(key)),
			UserBucket: &types.UserBucket{
				S3Bucket: aws.String(meta.Container),
				S3Key:    aws.String(key),
			},
		},
	})
	if err != nil {
		return "", err
	}

	taskID := aws.ToString(out.ImportTaskId)
	logging.InfoContext(ctx, "Importing snapshot %s (task %s)", meta.SnapshotName, taskID)
	return s.waitForImport(ctx, taskID)
}

// waitForImport polls the import task until it yields a snapshot.
func (s *Service) waitForImport(ctx context.Context, taskID string) (string, error) {
	ticker := time.NewTicker(s.pollInterval)
	defer ticker.Stop()

	timeout := time.After(s.importTimeout)

	for {
		select {
		case <-ctx.Done():
			return "", fmt.Errorf("context cancelled: %w", ctx.Err())
		case <-timeout:
			return "", fmt.Errorf("timeout waiting for snapshot import %s", taskID)
		case <-ticker.C:
			out, err := s.clients.EC2.DescribeImportSnapshotTasks(ctx, &ec2.DescribeImportSnapshotTasksInput{
				ImportTaskIds: []string{taskID},
			})
			if err != nil {
				return "", fmt.Errorf("failed to describe import task: %w", err)
			}
			if len(out.ImportSnapshotTasks) == 0 || out.ImportSnapshotTasks[0].SnapshotTaskDetail == nil {
				return "", fmt.Errorf("import task not found: %s", taskID)
			}

			detail := out.ImportSnapshotTasks[0].SnapshotTaskDetail
			status := aws.ToString(detail.Status)
			logging.DebugContext(ctx, "Import task %s: %s %s%%", taskID, status, aws.ToString(detail.Progress))

			switch status {
			case "completed":
				return aws.ToString(detail.SnapshotId), nil
			case "deleting", "deleted":
				return "", fmt.Errorf("snapshot import %s failed: %s", taskID, aws.ToString(detail.StatusMessage))
			}
		}
	}
}

func (s *Service) shareSnapshot(ctx context.Context, snapshotID string, accounts []string) error {
	perms := make([]types.CreateVolumePermission, 0, len(accounts))
	for _, account := range accounts {
		perms = append(perms, types.CreateVolumePermission{UserId: aws.String(account)})
	}

	logging.InfoContext(ctx, "Sharing snapshot %s with %d accounts", snapshotID, len(accounts))
	_, err := s.clients.EC2.ModifySnapshotAttribute(ctx, &ec2.ModifySnapshotAttributeInput{
		SnapshotId:             aws.String(snapshotID),
		Attribute:              types.SnapshotAttributeNameCreateVolumePermission,
		CreateVolumePermission: &types.CreateVolumePermissionModifications{Add: perms},
	})
	return err
}

func (s *Service) registerImage(ctx context.Context, meta PublishingMetadata, snapshotID string) (string, error) {
	rootDevice := meta.RootDeviceName
	if rootDevice == "" {
		rootDevice = "/dev/sda1"
	}

	input := &ec2.RegisterImageInput{
		Name:               aws.String(meta.ImageName),
		Description:        optionalString(meta.Description),
		Architecture:       architecture(meta.Arch),
		VirtualizationType: optionalString(strings.ToLower(meta.VirtType)),
		RootDeviceName:     aws.String(rootDevice),
		EnaSupport:         aws.Bool(meta.EnaSupport),
		SriovNetSupport:    optionalString(meta.SriovNetSupport),
		BootMode:           bootMode(meta.BootMode),
		BillingProducts:    meta.BillingProducts,
		BlockDeviceMappings: []types.BlockDeviceMapping{{
			DeviceName: aws.String(rootDevice),
			Ebs: &types.EbsBlockDevice{
				SnapshotId:          aws.String(snapshotID),
				VolumeType:          types.VolumeType(strings.ToLower(meta.VolumeType)),
				DeleteOnTermination: aws.Bool(true),
			},
		}},
	}

	out, err := s.clients.EC2.RegisterImage(ctx, input)
	if err != nil {
		return "", err
	}

	imageID := aws.ToString(out.ImageId)
	logging.InfoContext(ctx, "Registered image %s as %s", meta.ImageName, imageID)

	if err := s.tag(ctx, imageID, map[string]string{"Name": meta.ImageName}, meta.Tags); err != nil {
		return "", err
	}
	return imageID, nil
}

func (s *Service) grantLaunchPermissions(ctx context.Context, imageID string, accounts, groups []string) error {
	if len(accounts) == 0 && len(groups) == 0 {
		return nil
	}

	perms := make([]types.LaunchPermission, 0, len(accounts)+len(groups))
	for _, account := range accounts {
		perms = append(perms, types.LaunchPermission{UserId: aws.String(account)})
	}
	for _, group := range groups {
		perms = append(perms, types.LaunchPermission{Group: types.PermissionGroup(group)})
	}

	logging.InfoContext(ctx, "Granting launch permission on %s to %d accounts and groups %v", imageID, len(accounts), groups)
	_, err := s.clients.EC2.ModifyImageAttribute(ctx, &ec2.ModifyImageAttributeInput{
		ImageId:          aws.String(imageID),
		LaunchPermission: &types.LaunchPermissionModifications{Add: perms},
	})
	return err
}

func (s *Service) tag(ctx context.Context, resourceID string, sets ...map[string]string) error {
	merged := map[string]string{}
	for _, set := range sets {
		for k, v := range set {
			merged[k] = v
		}
	}
	if len(merged) == 0 {
		return nil
	}

	keys := make([]string, 0, len(merged))
	for k := range merged {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	tags := make([]types.Tag, 0, len(keys))
	for _, k := range keys {
		tags = append(tags, types.Tag{Key: aws.String(k), Value: aws.String(merged[k])})
	}

	_, err := s.clients.EC2.CreateTags(ctx, &ec2.CreateTagsInput{
		Resources: []string{resourceID},
		Tags:      tags,
	})
	return err
}

func diskFormat(key string) string {
	switch strings.ToLower(filepath.Ext(key)) {
	case ".vhd", ".vhdx":
		return "VHD"
	case ".vmdk":
		return "VMDK"
	default:
		return "RAW"
	}
}

func architecture(arch string) types.ArchitectureValues {
	switch strings.ToLower(arch) {
	case "aarch64", "arm64":
		return types.ArchitectureValuesArm64
	case "i386", "i686":
		return types.ArchitectureValuesI386
	default:
		return types.ArchitectureValuesX8664
	}
}

func bootMode(mode string) types.BootModeValues {
	switch strings.ToLower(mode) {
	case "uefi":
		return types.BootModeValuesUefi
	case "legacy", "legacy-bios", "bios":
		return types.BootModeValuesLegacyBios
	case "hybrid", "uefi-preferred":
		return types.BootModeValuesUefiPreferred
	default:
		return ""
	}
}

func optionalString(s string) *string {
	if s == "" {
		return nil
	}
	return aws.String(s)
}
