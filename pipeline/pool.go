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
	"sync"
	"time"

	"github.com/cenkalti/backoff/v4"
	"github.com/cowdogmoo/pubami/logging"
	"github.com/hashicorp/go-multierror"
	"golang.org/x/sync/errgroup"
)

// DefaultMaxWorkers is the number of regions processed at once when no limit
// is configured.
const DefaultMaxWorkers = 5

// RetryPolicy decides how often a failed batch runs again.
type RetryPolicy struct {
	// MaxRetries is the number of attempts after the first one.
	MaxRetries int
	// Wait is the pause between attempts.
	Wait time.Duration
	// Retryable reports whether err is worth another attempt. Nil retries
	// every error.
	Retryable func(err error) bool
}

func (p RetryPolicy) backOff(ctx context.Context) backoff.BackOff {
	retries := max(p.MaxRetries, 0)
	return backoff.WithContext(
		backoff.WithMaxRetries(backoff.NewConstantBackOff(p.Wait), uint64(retries)),
		ctx,
	)
}

func (p RetryPolicy) retryable(err error) bool {
	return p.Retryable == nil || p.Retryable(err)
}

// UnitFunc processes one work unit. It sets the unit's state on success; an
// error fails the batch the unit belongs to.
type UnitFunc func(ctx context.Context, unit *WorkUnit) error

// PoolResult is the outcome of running every batch.
type PoolResult struct {
	// Batches holds every batch in completion order, failed ones included.
	Batches []*RegionBatch
	// Failed holds the batches whose last attempt returned an error.
	Failed []*RegionBatch
	// Err combines the final error of every failed batch.
	Err error
}

// Units returns the units of all batches in completion order.
func (r *PoolResult) Units() []*WorkUnit {
	var units []*WorkUnit
	for _, batch := range r.Batches {
		units = append(units, batch.Units...)
	}
	return units
}

// RegionWorkerPool runs one task per region on a bounded number of
// goroutines. Units of a region are processed in order by a single task.
type RegionWorkerPool struct {
	maxWorkers int
	policy     RetryPolicy
}

// NewRegionWorkerPool returns a pool running at most maxWorkers regions at
// once.
func NewRegionWorkerPool(maxWorkers int, policy RetryPolicy) *RegionWorkerPool {
	if maxWorkers <= 0 {
		maxWorkers = DefaultMaxWorkers
	}
	return &RegionWorkerPool{maxWorkers: maxWorkers, policy: policy}
}

// Run processes every batch with fn. A failing batch is retried as a whole
// according to the pool's policy; units already in a terminal state are
// skipped on later attempts. Failures of one region never stop the others.
func (p *RegionWorkerPool) Run(ctx context.Context, batches []*RegionBatch, fn UnitFunc) *PoolResult {
	result := &PoolResult{}
	if len(batches) == 0 {
		return result
	}

	var (
		mu   sync.Mutex
		errs *multierror.Error
	)

	g := new(errgroup.Group)
	g.SetLimit(min(len(batches), p.maxWorkers))

	for _, batch := range batches {
		g.Go(func() error {
			regionCtx := logging.WithPrefix(ctx, fmt.Sprintf("[%s]", batch.Region))
			err := p.runBatch(regionCtx, batch, fn)

			mu.Lock()
			defer mu.Unlock()
			result.Batches = append(result.Batches, batch)
			if err != nil {
				logging.ErrorContext(regionCtx, "Processing region %s failed: %v", batch.Region, err)
				result.Failed = append(result.Failed, batch)
				errs = multierror.Append(errs, fmt.Errorf("region %s: %w", batch.Region, err))
			}
			return nil
		})
	}

	// Workers never return an error; failures are collected above.
	_ = g.Wait()

	result.Err = errs.ErrorOrNil()
	return result
}

func (p *RegionWorkerPool) runBatch(ctx context.Context, batch *RegionBatch, fn UnitFunc) error {
	attempt := 0
	operation := func() error {
		attempt++
		for _, unit := range batch.Pending() {
			if err := fn(ctx, unit); err != nil {
				if !p.policy.retryable(err) {
					return backoff.Permanent(err)
				}
				return err
			}
		}
		return nil
	}

	notify := func(err error, wait time.Duration) {
		logging.WarnContext(ctx, "Attempt %d of %d failed: %v", attempt, p.policy.MaxRetries+1, err)
		logging.InfoContext(ctx, "Retrying in %s", wait)
	}

	err := backoff.RetryNotify(operation, p.policy.backOff(ctx), notify)
	if err != nil && p.policy.MaxRetries > 0 && attempt > p.policy.MaxRetries {
		logging.ErrorContext(ctx, "Giving up after %d attempts", attempt)
	}
	return err
}
