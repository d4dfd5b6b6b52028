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
	"context"
	"encoding/json"
	stderrors "errors"
	"fmt"
	"strings"

	"github.com/cowdogmoo/pubami/cloud/ami"
	"github.com/cowdogmoo/pubami/collector"
	"github.com/cowdogmoo/pubami/config"
	"github.com/cowdogmoo/pubami/errors"
	"github.com/cowdogmoo/pubami/pipeline"
	"github.com/cowdogmoo/pubami/rhsm"
	"github.com/spf13/cobra"
)

// exitTaskFailed is the exit code of a task that ran but did not fully
// succeed.
const exitTaskFailed = 30

// Collaborator constructors, replaced in tests.
var (
	newRHSMClient = func(cfg *config.Config) (rhsm.API, error) {
		return rhsm.NewClient(rhsm.Config{
			URL:            cfg.RHSM.URL,
			CertFile:       cfg.RHSM.Cert,
			KeyFile:        cfg.RHSM.Key,
			Timeout:        cfg.RHSM.Timeout,
			MaxRetries:     cfg.RHSM.MaxRetries,
			RequestThreads: cfg.RHSM.RequestThreads,
		})
	}

	newProviderSource = func(cfg *config.Config) pipeline.ProviderSource {
		return ami.NewClientPool(awsClientConfig(cfg, ""))
	}

	newS3Uploader = func(ctx context.Context, cfg *config.Config) (collector.Uploader, error) {
		clients, err := ami.NewAWSClients(ctx, awsClientConfig(cfg, cfg.Collector.Region))
		if err != nil {
			return nil, err
		}
		return clients.Uploader, nil
	}
)

func awsClientConfig(cfg *config.Config, region string) ami.ClientConfig {
	return ami.ClientConfig{
		Region:          region,
		Profile:         cfg.AWS.Profile,
		AccessKeyID:     cfg.AWS.AccessID,
		SecretAccessKey: cfg.AWS.SecretKey,
	}
}

// splitAndExtend splits every value on commas and drops empty entries.
func splitAndExtend(values []string) []string {
	var out []string
	for _, value := range values {
		for _, part := range strings.Split(value, ",") {
			if part = strings.TrimSpace(part); part != "" {
				out = append(out, part)
			}
		}
	}
	return out
}

// parseJSONFlag decodes a JSON flag value into out. An empty value leaves
// out untouched.
func parseJSONFlag(name, value string, out any) error {
	if strings.TrimSpace(value) == "" {
		return nil
	}
	if err := json.Unmarshal([]byte(value), out); err != nil {
		return fmt.Errorf("invalid --%s: %w", name, err)
	}
	return nil
}

// validateConfig checks everything a task needs before any work starts.
func validateConfig(cfg *config.Config) error {
	return stderrors.Join(cfg.ValidateAWS(), cfg.ValidateRHSM(), cfg.ValidateWorkers())
}

// newSink returns the results sink: a run directory, an S3 prefix, or both.
func newSink(ctx context.Context, cfg *config.Config) (collector.Sink, error) {
	var sinks []collector.Sink

	if cfg.Collector.Dir != "" {
		dir, err := collector.NewDirSink(cfg.Collector.Dir)
		if err != nil {
			return nil, errors.Wrap("create results directory", cfg.Collector.Dir, err)
		}
		sinks = append(sinks, dir)
	}

	if cfg.Collector.Bucket != "" {
		uploader, err := newS3Uploader(ctx, cfg)
		if err != nil {
			return nil, errors.Wrap("create results uploader", cfg.Collector.Bucket, err)
		}
		sinks = append(sinks, collector.NewS3Sink(uploader, cfg.Collector.Bucket, cfg.Collector.Prefix))
	}

	switch len(sinks) {
	case 0:
		return collector.NewMemorySink(), nil
	case 1:
		return sinks[0], nil
	default:
		return collector.Multi(sinks...), nil
	}
}

// taskError attaches the task failure exit code to err when it applies.
func taskError(err error) error {
	if stderrors.Is(err, pipeline.ErrTaskFailed) {
		return errors.WithExitCode(exitTaskFailed, err)
	}
	return err
}

func mustConfig(cmd *cobra.Command) (*config.Config, error) {
	cfg := configFromContext(cmd)
	if cfg == nil {
		return nil, fmt.Errorf("configuration not loaded")
	}
	return cfg, nil
}
