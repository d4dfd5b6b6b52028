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
	"sort"
	"strings"

	"github.com/cowdogmoo/pubami/logging"
	"github.com/lithammer/fuzzysearch/fuzzy"
)

// Push steps.
const (
	StepCheckProducts  = "Check products"
	StepUploadImages   = "Upload image to AWS"
	StepUpdateMetadata = "Update RHSM metadata"
	StepCollectResults = "Collect results"
)

// Delete steps. StepUpdateMetadata and StepCollectResults are shared with
// push.
const (
	StepPrepareData = "Prepare data"
	StepDeleteAWS   = "Delete AWS data"
)

// PushSteps lists the steps of a push in execution order.
var PushSteps = []string{StepCheckProducts, StepUploadImages, StepUpdateMetadata, StepCollectResults}

// DeleteSteps lists the steps of a delete in execution order.
var DeleteSteps = []string{StepPrepareData, StepUpdateMetadata, StepDeleteAWS, StepCollectResults}

// StepSet records which steps of a task are skipped.
type StepSet struct {
	steps []string
	skip  map[string]bool
}

// NewStepSet validates skip against steps. Names match case-insensitively and
// dashes or underscores may stand in for spaces, so "collect-results" skips
// "Collect results". An unknown name is an error that lists close matches.
func NewStepSet(steps, skip []string) (*StepSet, error) {
	set := &StepSet{steps: steps, skip: make(map[string]bool)}

	byKey := make(map[string]string, len(steps))
	for _, step := range steps {
		byKey[stepKey(step)] = step
	}

	for _, name := range skip {
		if strings.TrimSpace(name) == "" {
			continue
		}
		step, ok := byKey[stepKey(name)]
		if !ok {
			return nil, unknownStepError(name, steps)
		}
		set.skip[step] = true
	}
	return set, nil
}

// Skipped reports whether step is skipped.
func (s *StepSet) Skipped(step string) bool {
	return s != nil && s.skip[step]
}

// Run executes fn unless step is skipped.
func (s *StepSet) Run(ctx context.Context, step string, fn func(ctx context.Context) error) error {
	if s.Skipped(step) {
		logging.InfoContext(ctx, "%s: skipped", step)
		return nil
	}

	logging.DebugContext(ctx, "%s: started", step)
	if err := fn(ctx); err != nil {
		logging.DebugContext(ctx, "%s: failed", step)
		return err
	}
	logging.DebugContext(ctx, "%s: finished", step)
	return nil
}

func stepKey(name string) string {
	name = strings.NewReplacer("-", " ", "_", " ").Replace(name)
	return strings.Join(strings.Fields(strings.ToLower(name)), " ")
}

func unknownStepError(name string, steps []string) error {
	suggestions := suggestSteps(name, steps)
	if len(suggestions) == 0 {
		return fmt.Errorf("unknown step %q, valid steps: %s", name, strings.Join(steps, ", "))
	}
	return fmt.Errorf("unknown step %q, did you mean: %s", name, strings.Join(suggestions, ", "))
}

func suggestSteps(name string, steps []string) []string {
	key := stepKey(name)

	seen := make(map[string]bool)
	var suggestions []string

	ranks := fuzzy.RankFindFold(key, steps)
	sort.Sort(ranks)
	for _, rank := range ranks {
		seen[rank.Target] = true
		suggestions = append(suggestions, rank.Target)
	}

	for _, step := range steps {
		if seen[step] {
			continue
		}
		if fuzzy.LevenshteinDistance(key, stepKey(step)) <= 3 {
			suggestions = append(suggestions, step)
		}
	}
	return suggestions
}
