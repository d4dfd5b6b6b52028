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
	mapset "github.com/deckarep/golang-set/v2"
)

// DeleteOptions configures a delete.
type DeleteOptions struct {
	KeepSnapshot bool
	// DryRun logs what would happen without touching the metadata service
	// or AWS. Nothing is collected.
	DryRun bool
	// Limit restricts the run to these image ids when not empty.
	Limit        []string
	ProviderName string
	MaxWorkers   int
	MaxRetries   int
	RetryWait    time.Duration
	Skip         []string
}

// DeleteTask hides images in the metadata service and removes them, with
// their snapshots, from AWS.
type DeleteTask struct {
	opts     DeleteOptions
	gate     *MetadataGate
	operator *CloudOperator
	sync     *MetadataSynchronizer
	sink     collector.Sink
	steps    *StepSet
}

// NewDeleteTask wires a delete task.
func NewDeleteTask(opts DeleteOptions, api rhsm.API, providers ProviderSource, sink collector.Sink) (*DeleteTask, error) {
	if opts.ProviderName == "" {
		opts.ProviderName = DefaultProviderName
	}

	steps, err := NewStepSet(DeleteSteps, opts.Skip)
	if err != nil {
		return nil, err
	}

	gate := NewMetadataGate(api, opts.ProviderName)
	return &DeleteTask{
		opts:     opts,
		gate:     gate,
		operator: NewCloudOperator(providers),
		sync:     NewMetadataSynchronizer(api, gate, opts.ProviderName),
		sink:     sink,
		steps:    steps,
	}, nil
}

// Run deletes items. Every image is hidden in the metadata service before
// anything is removed from AWS; a failure to hide one stops the task. Units
// that never finished are left out of the report and make the task fail.
func (t *DeleteTask) Run(ctx context.Context, items []pushitem.Item) (*Report, error) {
	err := t.steps.Run(ctx, StepPrepareData, func(ctx context.Context) error {
		if err := ctx.Err(); err != nil {
			return err
		}
		items = t.limit(items)
		return nil
	})
	if err != nil {
		return nil, err
	}

	if len(items) == 0 {
		logging.InfoContext(ctx, "No AMI image selected for deletion")
		return &Report{}, nil
	}

	err = t.steps.Run(ctx, StepUpdateMetadata, t.hideImages(items))
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrTaskFailed, err)
	}

	var result *PoolResult
	err = t.steps.Run(ctx, StepDeleteAWS, func(ctx context.Context) error {
		pool := NewRegionWorkerPool(t.opts.MaxWorkers, RetryPolicy{
			MaxRetries: t.opts.MaxRetries,
			Wait:       t.opts.RetryWait,
		})
		result = pool.Run(ctx, Partition(items), t.deleteUnit)
		return nil
	})
	if err != nil {
		return nil, err
	}
	if result == nil {
		result = &PoolResult{}
	}

	if t.opts.DryRun {
		logging.InfoContext(ctx, "AMI delete dry-run completed")
		return &Report{}, nil
	}

	report := &Report{Failed: result.Err != nil}
	for _, unit := range result.Units() {
		if unit.State.Done() {
			report.Results = append(report.Results, ResultOf(unit))
		}
	}

	err = t.steps.Run(ctx, StepCollectResults, func(ctx context.Context) error {
		return Collect(ctx, t.sink, report.Results)
	})
	if err != nil {
		return report, err
	}

	if report.Failed {
		logging.ErrorContext(ctx, "AMI delete finished with failure")
		return report, fmt.Errorf("%w: AMI delete finished with failure: %w", ErrTaskFailed, result.Err)
	}
	logging.InfoContext(ctx, "AMI delete completed")
	return report, nil
}

func (t *DeleteTask) limit(items []pushitem.Item) []pushitem.Item {
	if len(t.opts.Limit) == 0 {
		return items
	}

	wanted := mapset.NewSet(t.opts.Limit...)
	var selected []pushitem.Item
	for _, item := range items {
		if wanted.Contains(item.ImageID) {
			selected = append(selected, item)
		}
	}
	return selected
}

// hideImages marks every known image invisible. Images the metadata service
// does not list, or whose product it does not know, are skipped.
func (t *DeleteTask) hideImages(items []pushitem.Item) func(ctx context.Context) error {
	return func(ctx context.Context) error {
		known, err := t.gate.KnownImageIDs(ctx)
		if err != nil {
			return err
		}

		for _, item := range items {
			if !known.Contains(item.ImageID) {
				logging.WarnContext(ctx, "AMI image: %s not found, skipping update in rhsm.", item.ImageID)
				continue
			}

			if t.opts.DryRun {
				if _, err := t.gate.ResolveProduct(ctx, releaseProduct(item), item.Type); err != nil {
					logging.WarnContext(ctx, "Would have skipped image %s in rhsm: %v", item.ImageID, err)
					continue
				}
				logging.InfoContext(ctx, "Would have updated image %s in rhsm", item.ImageID)
				continue
			}

			err := t.sync.HideImage(ctx, item)
			if errors.Is(err, ErrProductNotFound) {
				logging.WarnContext(ctx, "Skipping update of image %s in rhsm: %v", item.ImageID, err)
				continue
			}
			if err != nil {
				return err
			}
		}
		return nil
	}
}

func (t *DeleteTask) deleteUnit(ctx context.Context, unit *WorkUnit) error {
	item := unit.Item
	if t.opts.DryRun {
		logging.InfoContext(ctx, "Would have deleted image %s and related snapshot in AWS (%s)", item.ImageID, t.opts.ProviderName)
		return nil
	}

	name := item.ImageName()
	logging.InfoContext(ctx, "Attempting to delete image %s and related snapshot on AWS (%s)", name, t.opts.ProviderName)

	result, err := t.operator.Delete(ctx, unit.Region, ami.DeleteMetadata{
		ImageID:      item.ImageID,
		ImageName:    name,
		SnapshotName: name,
		SkipSnapshot: t.opts.KeepSnapshot,
	})
	if err != nil {
		return err
	}

	if result.ImageID != "" {
		logging.InfoContext(ctx, "Successfully deleted image: %s [%s] [%s]", name, unit.Region, result.ImageID)
	}
	if result.SnapshotID != "" {
		logging.InfoContext(ctx, "Successfully deleted snapshot: %s [%s] [%s]", name, unit.Region, result.SnapshotID)
	}

	unit.ImageID = result.ImageID
	unit.SnapshotID = result.SnapshotID
	if result.Found() {
		unit.State = pushitem.StateDeleted
	} else {
		unit.State = pushitem.StateMissing
	}
	return nil
}
