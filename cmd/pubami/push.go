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
	"github.com/cowdogmoo/pubami/logging"
	"github.com/cowdogmoo/pubami/pipeline"
	"github.com/cowdogmoo/pubami/source"
	"github.com/spf13/cobra"
)

type pushOptions struct {
	ship               bool
	allowPublicImages  bool
	accounts           string
	snapshotAccountIDs string
	skip               []string
}

var pushOpts pushOptions

var pushCmd = &cobra.Command{
	Use:   "push [flags] SOURCE...",
	Short: "Push AMIs from one or more sources to AWS",
	Long: `Push reads AMI push items from the given sources, checks that their products
exist in RHSM and uploads them to AWS, one worker per region. With --ship the
images are registered in RHSM afterwards.

Sources may be separated by commas, e.g. staged:/path/to/stage/ami.`,
	Example: `  pubami push --ship --rhsm-url https://rhsm.example.com staged:/mnt/staging/ami
  pubami push --accounts '{"default": {"user-1": "123456789012"}}' staged:/a,staged:/b`,
	Args: cobra.MinimumNArgs(1),
	RunE: runPush,
}

func init() {
	flags := pushCmd.Flags()
	flags.BoolVar(&pushOpts.ship, "ship", false, "Publish the AMIs in public domain and register them in RHSM")
	flags.BoolVar(&pushOpts.allowPublicImages, "allow-public-images", false, "Release public images for general use")
	flags.String("container-prefix", "", "Prefix of the storage container used for uploads (default redhat-cloudimg)")
	flags.StringVar(&pushOpts.accounts, "accounts", "",
		`Region to accounts mapping of who may launch the image, e.g. '{"region-1": {"user-1": "key-1"}}' or '{"default": {"user-1": "key-1"}}'`)
	flags.StringVar(&pushOpts.snapshotAccountIDs, "snapshot-account-ids", "",
		`Region to account ids mapping of who may use the snapshot, e.g. '{"default": ["123456789012"]}'`)
	flags.Int("workers", 0, "Regions processed in parallel (default 5, env AMI_PUSH_REQUEST_THREADS)")
	flags.Int("retry-wait", 0, "Seconds to wait before retrying a failed region (default 30)")
	flags.Int("max-retries", 0, "Retries of a failed region (default 4)")
	flags.StringSliceVar(&pushOpts.skip, "skip", nil, "Steps to skip: "+joinSteps(pipeline.PushSteps))
}

func runPush(cmd *cobra.Command, args []string) error {
	ctx := cmd.Context()
	cfg, err := mustConfig(cmd)
	if err != nil {
		return err
	}
	if err := validateConfig(cfg); err != nil {
		return err
	}

	opts := pipeline.PushOptions{
		Ship:              pushOpts.ship,
		AllowPublicImages: pushOpts.allowPublicImages,
		ContainerPrefix:   cfg.AWS.ContainerPrefix,
		ProviderName:      cfg.AWS.ProviderName,
		MaxWorkers:        cfg.Push.Workers,
		MaxRetries:        cfg.Push.MaxRetries,
		RetryWait:         cfg.Push.RetryWaitDuration(),
		Skip:              pushOpts.skip,
	}
	if err := parseJSONFlag("accounts", pushOpts.accounts, &opts.Accounts); err != nil {
		return err
	}
	if err := parseJSONFlag("snapshot-account-ids", pushOpts.snapshotAccountIDs, &opts.SnapshotAccountIDs); err != nil {
		return err
	}

	api, err := newRHSMClient(cfg)
	if err != nil {
		return err
	}
	sink, err := newSink(ctx, cfg)
	if err != nil {
		return err
	}

	task, err := pipeline.NewPushTask(opts, api, newProviderSource(cfg), sink)
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
