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
	"errors"
	"fmt"
	"time"

	"github.com/cowdogmoo/pubami/cloud/ami"
	"github.com/cowdogmoo/pubami/collector"
	"github.com/cowdogmoo/pubami/logging"
	"github.com/cowdogmoo/pubami/pushitem"
	"github.com/cowdogmoo/pubami/rhsm"
)

// Push defaults.
const (
	DefaultContainerPrefix = "redhat-cloudimg"
	DefaultProviderName    = "AWS"
	DefaultMaxRetries      = 4
	DefaultRetryWait       = 30 * time.Second
)

// PushOptions configures a push.
type PushOptions struct {
	// Ship registers pushed images in the metadata service.
	Ship bool
	// AllowPublicImages lets public images be shared with everyone.
	AllowPublicImages bool
	ContainerPrefix   string
	ProviderName      string
	// Accounts maps a region, or "default", to named account ids that get
	// launch permission.
	Accounts map[string]map[string]string
	// SnapshotAccountIDs maps a region, or "default", to account ids that
	// get access to the snapshot.
	SnapshotAccountIDs map[string][]string
	MaxWorkers         int
	MaxRetries         int
	RetryWait          time.Duration
	Skip               []string
}

// PushTask uploads push items to every region they target.
type PushTask struct {
	opts     PushOptions
	gate     *MetadataGate
	operator *CloudOperator
	sync     *MetadataSynchronizer
	sink     collector.Sink
	steps    *StepSet
}

// NewPushTask wires a push task.
func NewPushTask(opts PushOptions, api rhsm.API, providers ProviderSource, sink collector.Sink) (*PushTask, error) {
	if opts.ContainerPrefix == "" {
		opts.ContainerPrefix = DefaultContainerPrefix
	}
	if opts.ProviderName == "" {
		opts.ProviderName = DefaultProviderName
	}

	steps, err := NewStepSet(PushSteps, opts.Skip)
	if err != nil {
		return nil, err
	}

	gate := NewMetadataGate(api, opts.ProviderName)
	return &PushTask{
		opts:     opts,
		gate:     gate,
		operator: NewCloudOperator(providers),
		sync:     NewMetadataSynchronizer(api, gate, opts.ProviderName),
		sink:     sink,
		steps:    steps,
	}, nil
}

// Run pushes items. It returns ErrTaskFailed when any unit ends without an
// image id; the report is complete in that case too.
func (t *PushTask) Run(ctx context.Context, items []pushitem.Item) (*Report, error) {
	err := t.steps.Run(ctx, StepCheckProducts, func(ctx context.Context) error {
		verified, err := t.gate.Verify(ctx, items)
		if err != nil {
			return err
		}
		if !verified {
			logging.ErrorContext(ctx, "Pre-push verification of push items in metadata service failed")
			return fmt.Errorf("%w: pre-push verification of push items in metadata service failed", ErrTaskFailed)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	for _, item := range items {
		if len(item.Dest) == 0 {
			logging.WarnContext(ctx, "Push item %s has no destination, nothing to upload", item.Name)
		}
	}
	batches := Partition(items)

	var units []*WorkUnit
	err = t.steps.Run(ctx, StepUploadImages, func(ctx context.Context) error {
		pool := NewRegionWorkerPool(t.opts.MaxWorkers, RetryPolicy{
			MaxRetries: t.opts.MaxRetries,
			Wait:       t.opts.RetryWait,
			Retryable:  retryablePushError,
		})
		result := pool.Run(ctx, batches, t.pushUnit)
		units = result.Units()
		return nil
	})
	if err != nil {
		return nil, err
	}

	report := &Report{}
	for _, unit := range units {
		if !unit.State.Done() {
			unit.State = pushitem.StateNotPushed
		}
		if unit.ImageID == "" {
			report.Failed = true
		}
		report.Results = append(report.Results, ResultOf(unit))
	}

	err = t.steps.Run(ctx, StepCollectResults, func(ctx context.Context) error {
		return Collect(ctx, t.sink, report.Results)
	})
	if err != nil {
		return report, err
	}

	if report.Failed {
		logging.ErrorContext(ctx, "AMI upload failed")
		return report, fmt.Errorf("%w: AMI upload failed", ErrTaskFailed)
	}
	logging.InfoContext(ctx, "AMI upload completed")
	return report, nil
}

func (t *PushTask) pushUnit(ctx context.Context, unit *WorkUnit) error {
	image, err := t.upload(ctx, unit)
	if err != nil {
		logging.WarnContext(ctx, "%v", err)
		return err
	}
	unit.ImageID = image.ID
	unit.ImageName = image.Name
	unit.State = pushitem.StatePushed
	return nil
}

// upload publishes the unit's image and, when shipping, registers it and
// optionally opens it to the public. Repeated calls for an image that
// already exists only update its permissions.
func (t *PushTask) upload(ctx context.Context, unit *WorkUnit) (ami.Image, error) {
	item := unit.Item
	region := unit.Region
	logging.InfoContext(ctx, "Uploading %s to region %s (type: %s, ship: %t)", item.Src, region, item.Type, t.opts.Ship)

	name := item.ImageName()
	logging.InfoContext(ctx, "Image name: %s", name)

	meta := t.publishingMetadata(item, name)
	logging.DebugContext(ctx, "%+v", meta)

	image, err := t.operator.Publish(ctx, region, meta)
	if err != nil {
		return ami.Image{}, err
	}
	if image.Name == "" {
		image.Name = name
	}

	if t.opts.Ship {
		if !t.steps.Skipped(StepUpdateMetadata) {
			if err := t.sync.SyncPublished(ctx, item, image); err != nil {
				return ami.Image{}, err
			}
		}

		if item.IsPublic() && t.opts.AllowPublicImages {
			logging.InfoContext(ctx, "Releasing image %s publicly", image.ID)
			meta.Groups = []string{"all"}
			if _, err := t.operator.Publish(ctx, region, meta); err != nil {
				return ami.Image{}, err
			}
		}
	}

	logging.InfoContext(ctx, "Successfully uploaded %s [%s] [%s]", name, region, image.ID)
	return image, nil
}

func (t *PushTask) publishingMetadata(item pushitem.Item, name string) ami.PublishingMetadata {
	meta := ami.PublishingMetadata{
		ImagePath:          item.Src,
		ImageName:          name,
		SnapshotName:       name,
		Container:          fmt.Sprintf("%s-%s", t.opts.ContainerPrefix, item.Region),
		Description:        item.Description,
		VirtType:           item.Virtualization,
		RootDeviceName:     item.RootDevice,
		VolumeType:         item.Volume,
		BootMode:           item.BootMode,
		Accounts:           accountsFor(t.opts.Accounts, item.Region),
		SnapshotAccountIDs: snapshotAccountsFor(t.opts.SnapshotAccountIDs, item.Region),
		SriovNetSupport:    item.SriovNetSupport,
		EnaSupport:         item.ENA(),
	}
	if item.Release != nil {
		meta.Arch = item.Release.Arch
	}
	if item.BillingCodes != nil {
		meta.BillingProducts = item.BillingCodes.Codes
	}
	return meta
}

// retryablePushError reports cloud failures and metadata service error
// responses as worth retrying.
func retryablePushError(err error) bool {
	var publishErr *PublishError
	var httpErr *rhsm.HTTPError
	return errors.As(err, &publishErr) || errors.As(err, &httpErr)
}
