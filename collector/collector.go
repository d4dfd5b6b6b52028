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

// Package collector stores the results of a push or delete run.
package collector

import (
	"context"
	"sync"

	"github.com/cowdogmoo/pubami/pushitem"
	"github.com/hashicorp/go-multierror"
	"github.com/oklog/ulid/v2"
)

// PushItemsFile is the name push item updates are stored under.
const PushItemsFile = "pushitems.json"

// PushItemRecord is the reported state of one push item. Filename carries
// the image id for pushed images.
type PushItemRecord struct {
	Filename string         `json:"filename"`
	State    pushitem.State `json:"state"`
}

// Sink receives the artifacts of a run.
type Sink interface {
	AttachFile(ctx context.Context, name string, content []byte) error
	UpdatePushItems(ctx context.Context, items []PushItemRecord) error
}

// NewRunID returns a sortable identifier for one run.
func NewRunID() string {
	return ulid.Make().String()
}

// MemorySink keeps everything in memory. It is used for dry runs and tests.
type MemorySink struct {
	mu    sync.Mutex
	files map[string][]byte
	items []PushItemRecord
}

// NewMemorySink returns an empty MemorySink.
func NewMemorySink() *MemorySink {
	return &MemorySink{files: make(map[string][]byte)}
}

// AttachFile implements Sink.
func (m *MemorySink) AttachFile(_ context.Context, name string, content []byte) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.files[name] = append([]byte(nil), content...)
	return nil
}

// UpdatePushItems implements Sink.
func (m *MemorySink) UpdatePushItems(_ context.Context, items []PushItemRecord) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.items = append(m.items, items...)
	return nil
}

// File returns an attached file.
func (m *MemorySink) File(name string) ([]byte, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	content, ok := m.files[name]
	return content, ok
}

// Items returns every push item update received so far.
func (m *MemorySink) Items() []PushItemRecord {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]PushItemRecord(nil), m.items...)
}

type multiSink []Sink

// Multi returns a Sink writing to every sink. All sinks are attempted; their
// errors are combined.
func Multi(sinks ...Sink) Sink {
	return multiSink(sinks)
}

func (m multiSink) AttachFile(ctx context.Context, name string, content []byte) error {
	var errs *multierror.Error
	for _, sink := range m {
		if err := sink.AttachFile(ctx, name, content); err != nil {
			errs = multierror.Append(errs, err)
		}
	}
	return errs.ErrorOrNil()
}

func (m multiSink) UpdatePushItems(ctx context.Context, items []PushItemRecord) error {
	var errs *multierror.Error
	for _, sink := range m {
		if err := sink.UpdatePushItems(ctx, items); err != nil {
			errs = multierror.Append(errs, err)
		}
	}
	return errs.ErrorOrNil()
}
