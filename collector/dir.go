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

package collector

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sync"

	"github.com/cowdogmoo/pubami/config"
	"github.com/cowdogmoo/pubami/logging"
)

// DirSink writes artifacts into a fresh run directory below a root.
type DirSink struct {
	mu    sync.Mutex
	dir   string
	items map[string]PushItemRecord
	order []string
}

// NewDirSink creates <root>/<run id> and returns a sink writing into it.
func NewDirSink(root string) (*DirSink, error) {
	dir := filepath.Join(root, NewRunID())
	if err := config.EnsureDir(dir); err != nil {
		return nil, err
	}
	return &DirSink{dir: dir, items: make(map[string]PushItemRecord)}, nil
}

// Dir is the run directory.
func (d *DirSink) Dir() string { return d.dir }

// AttachFile implements Sink.
func (d *DirSink) AttachFile(ctx context.Context, name string, content []byte) error {
	path := filepath.Join(d.dir, filepath.Base(name))
	if err := os.WriteFile(path, content, config.FilePermReadWrite); err != nil {
		return fmt.Errorf("failed to write %s: %w", path, err)
	}
	logging.InfoContext(ctx, "Saved %s", path)
	return nil
}

// UpdatePushItems implements Sink. Records are merged by filename and the
// whole set is rewritten.
func (d *DirSink) UpdatePushItems(ctx context.Context, items []PushItemRecord) error {
	d.mu.Lock()
	for _, item := range items {
		if _, seen := d.items[item.Filename]; !seen {
			d.order = append(d.order, item.Filename)
		}
		d.items[item.Filename] = item
	}
	merged := make([]PushItemRecord, 0, len(d.order))
	for _, name := range d.order {
		merged = append(merged, d.items[name])
	}
	d.mu.Unlock()

	data, err := json.MarshalIndent(merged, "", "  ")
	if err != nil {
		return err
	}
	return d.AttachFile(ctx, PushItemsFile, data)
}
