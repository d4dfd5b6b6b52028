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
	"encoding/json"

	"github.com/cowdogmoo/pubami/collector"
	"github.com/cowdogmoo/pubami/errors"
	"github.com/cowdogmoo/pubami/logging"
	"github.com/cowdogmoo/pubami/pushitem"
	"golang.org/x/sync/errgroup"
)

// ImagesFile is the name the serialized results are attached under.
const ImagesFile = "images.json"

// OperationResult is the reported outcome of one work unit.
type OperationResult struct {
	ImageID    string
	ImageName  string
	SnapshotID string
	State      pushitem.State
	Item       pushitem.Item
}

// ResultOf builds the result of a processed unit.
func ResultOf(unit *WorkUnit) OperationResult {
	return OperationResult{
		ImageID:    unit.ImageID,
		ImageName:  unit.ImageName,
		SnapshotID: unit.SnapshotID,
		State:      unit.State,
		Item:       unit.Result(),
	}
}

// EncodeResults renders results as an indented JSON array with sorted keys.
// Every entry is the serialized push item without null fields plus "ami",
// "name" and "snapshot_id" when those are known.
func EncodeResults(results []OperationResult) ([]byte, error) {
	entries := make([]map[string]any, 0, len(results))
	for _, result := range results {
		entry, err := toMap(result.Item)
		if err != nil {
			return nil, errors.Wrap("encode result", result.Item.Name, err)
		}
		if result.ImageID != "" {
			entry["ami"] = result.ImageID
		}
		if result.ImageName != "" {
			entry["name"] = result.ImageName
		}
		if result.SnapshotID != "" {
			entry["snapshot_id"] = result.SnapshotID
		}
		entries = append(entries, entry)
	}
	return json.MarshalIndent(entries, "", "  ")
}

func toMap(item pushitem.Item) (map[string]any, error) {
	data, err := json.Marshal(item)
	if err != nil {
		return nil, err
	}
	var m map[string]any
	if err := json.Unmarshal(data, &m); err != nil {
		return nil, err
	}
	return stripNulls(m), nil
}

func stripNulls(m map[string]any) map[string]any {
	for key, value := range m {
		switch v := value.(type) {
		case nil:
			delete(m, key)
		case map[string]any:
			m[key] = stripNulls(v)
		}
	}
	return m
}

// PushItemRecords returns the push item updates for results.
func PushItemRecords(results []OperationResult) []collector.PushItemRecord {
	records := make([]collector.PushItemRecord, 0, len(results))
	for _, result := range results {
		records = append(records, collector.PushItemRecord{
			Filename: result.Item.ImageID,
			State:    result.State,
		})
	}
	return records
}

// Collect attaches images.json and the push item updates to sink. Both are
// sent concurrently.
func Collect(ctx context.Context, sink collector.Sink, results []OperationResult) error {
	logging.InfoContext(ctx, "Collecting results")

	content, err := EncodeResults(results)
	if err != nil {
		return err
	}

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		return sink.AttachFile(gctx, ImagesFile, content)
	})
	g.Go(func() error {
		return sink.UpdatePushItems(gctx, PushItemRecords(results))
	})
	if err := g.Wait(); err != nil {
		return errors.Wrap("collect results", "", err)
	}
	return nil
}
