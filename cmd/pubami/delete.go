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

package main

import (
	"strings"

	"github.com/cowdogmoo/pubami/collector"
	"github.com/cowdogmoo/pubami/logging"
	"github.com/cowdogmoo/pubami/pipeline"
	"github.com/cowdogmoo/pubami/source"
	"github.com/spf13/cobra"
)

type deleteOptions struct {
	keepSnapshot bool
	dryRun       bool
	limit        []string
	skip         []string
}

var deleteOpts deleteOptions

var deleteCmd = &cobra.Command{
	Use:   "delete [flags] SOURCE...",
	Short: "Delete AMIs and their snapshots from AWS",
	Long: `Delete reads AMI push items from the given sources, marks the images invisible
in RHSM and then removes the images, and their snapshots, from AWS.`,
	Example: `  pubami delete --dry-run staged:/mnt/staging/ami
  pubami delete --keep-snapshot --limit ami-0123456789abcdef0,ami-0fedcba9876543210 staged:/mnt/staging/ami`,
	Args: cobra.MinimumNArgs(1),
	RunE: runDelete,
}

func init() {
	flags := deleteCmd.Flags()
	flags.BoolVar(&deleteOpts.keepSnapshot, "keep-snapshot", false, "Do not delete the snapshot from AWS")
	flags.BoolVar(&deleteOpts.dryRun, "dry-run", false, "Skip destructive actions on RHSM or AWS")
	flags.StringSliceVar(&deleteOpts.limit, "limit", nil, "Only remove the AMIs with these image ids")
	flags.Int("workers", 0, "Regions processed in parallel (default 5, env AMI_DELETE_REQUEST_THREADS)")
	flags.Int("retry-wait", 0, "Seconds to wait before retrying a failed region (default 30)")
	flags.Int("max-retries", 0, "Retries of a failed region (default 4)")
	flags.StringSliceVar(&deleteOpts.skip, "skip", nil, "Steps to skip: "+joinSteps(pipeline.DeleteSteps))
}

func runDelete(cmd *cobra.Command, args []string) error {
	ctx := cmd.Context()
	cfg, err := mustConfig(cmd)
	if err != nil {
		return err
	}
	if err := validateConfig(cfg); err != nil {
		return err
	}

	opts := pipeline.DeleteOptions{
		KeepSnapshot: deleteOpts.keepSnapshot,
		DryRun:       deleteOpts.dryRun,
		Limit:        splitAndExtend(deleteOpts.limit),
		ProviderName: cfg.AWS.ProviderName,
		MaxWorkers:   cfg.Delete.Workers,
		MaxRetries:   cfg.Delete.MaxRetries,
		RetryWait:    cfg.Delete.RetryWaitDuration(),
		Skip:         deleteOpts.skip,
	}

	api, err := newRHSMClient(cfg)
	if err != nil {
		return err
	}
	var sink collector.Sink = collector.NewMemorySink()
	if !opts.DryRun {
		if sink, err = newSink(ctx, cfg); err != nil {
			return err
		}
	}

	task, err := pipeline.NewDeleteTask(opts, api, newProviderSource(cfg), sink)
	if err != nil {
		return err
	}

	items, err := source.LoadAMIItems(ctx, splitAndExtend(args))
	if err != nil {
		return err
	}
	logging.InfoContext(ctx, "Loaded %d AMI push items", len(items))

	_, err = task.Run(ctx, items)
	return taskError(err)
}

func joinSteps(steps []string) string {
	quoted := make([]string, 0, len(steps))
	for _, step := range steps {
		quoted = append(quoted, "'"+step+"'")
	}
	return strings.Join(quoted, ", ")
}
