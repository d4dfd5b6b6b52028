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
	"bytes"
	"context"
	"net/http"
	"sync"
	"testing"
	"time"

	"github.com/cowdogmoo/pubami/cloud/ami"
	"github.com/cowdogmoo/pubami/logging"
	"github.com/cowdogmoo/pubami/pushitem"
	"github.com/cowdogmoo/pubami/rhsm"
	mapset "github.com/deckarep/golang-set/v2"
)

// mockRHSM implements rhsm.API. Unset funcs answer with success.
type mockRHSM struct {
	mu sync.Mutex

	ProductsFunc     func(ctx context.Context) ([]rhsm.Product, error)
	CreateRegionFunc func(ctx context.Context, region, provider string) (*rhsm.Response, error)
	UpdateImageFunc  func(ctx context.Context, req rhsm.ImageRequest) (*rhsm.Response, error)
	CreateImageFunc  func(ctx context.Context, req rhsm.ImageRequest) (*rhsm.Response, error)
	ListImageIDsFunc func(ctx context.Context) (mapset.Set[string], error)

	productCalls int
	regions      []string
	updates      []rhsm.ImageRequest
	creates      []rhsm.ImageRequest
}

func (m *mockRHSM) Products(ctx context.Context) ([]rhsm.Product, error) {
	m.mu.Lock()
	m.productCalls++
	m.mu.Unlock()
	if m.ProductsFunc != nil {
		return m.ProductsFunc(ctx)
	}
	return testProducts(), nil
}

func (m *mockRHSM) CreateRegion(ctx context.Context, region, provider string) (*rhsm.Response, error) {
	m.mu.Lock()
	m.regions = append(m.regions, region)
	m.mu.Unlock()
	if m.CreateRegionFunc != nil {
		return m.CreateRegionFunc(ctx, region, provider)
	}
	return status(http.StatusOK), nil
}

func (m *mockRHSM) UpdateImage(ctx context.Context, req rhsm.ImageRequest) (*rhsm.Response, error) {
	m.mu.Lock()
	m.updates = append(m.updates, req)
	m.mu.Unlock()
	if m.UpdateImageFunc != nil {
		return m.UpdateImageFunc(ctx, req)
	}
	return status(http.StatusOK), nil
}

func (m *mockRHSM) CreateImage(ctx context.Context, req rhsm.ImageRequest) (*rhsm.Response, error) {
	m.mu.Lock()
	m.creates = append(m.creates, req)
	m.mu.Unlock()
	if m.CreateImageFunc != nil {
		return m.CreateImageFunc(ctx, req)
	}
	return status(http.StatusOK), nil
}

func (m *mockRHSM) ListImageIDs(ctx context.Context) (mapset.Set[string], error) {
	if m.ListImageIDsFunc != nil {
		return m.ListImageIDsFunc(ctx)
	}
	return mapset.NewSet[string](), nil
}

func (m *mockRHSM) Updates() []rhsm.ImageRequest {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]rhsm.ImageRequest(nil), m.updates...)
}

func (m *mockRHSM) Creates() []rhsm.ImageRequest {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]rhsm.ImageRequest(nil), m.creates...)
}

// mockProvider implements ami.Provider and records every call.
type mockProvider struct {
	mu sync.Mutex

	PublishFunc func(ctx context.Context, meta ami.PublishingMetadata) (ami.Image, error)
	DeleteFunc  func(ctx context.Context, meta ami.DeleteMetadata) (ami.DeleteResult, error)

	published []ami.PublishingMetadata
	deleted   []ami.DeleteMetadata
}

func (m *mockProvider) Publish(ctx context.Context, meta ami.PublishingMetadata) (ami.Image, error) {
	m.mu.Lock()
	m.published = append(m.published, meta)
	m.mu.Unlock()
	if m.PublishFunc != nil {
		return m.PublishFunc(ctx, meta)
	}
	return ami.Image{ID: "ami-" + meta.ImageName, Name: meta.ImageName}, nil
}

func (m *mockProvider) Delete(ctx context.Context, meta ami.DeleteMetadata) (ami.DeleteResult, error) {
	m.mu.Lock()
	m.deleted = append(m.deleted, meta)
	m.mu.Unlock()
	if m.DeleteFunc != nil {
		return m.DeleteFunc(ctx, meta)
	}
	return ami.DeleteResult{ImageID: meta.ImageID, SnapshotID: "snap-" + meta.ImageID}, nil
}

func (m *mockProvider) Published() []ami.PublishingMetadata {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]ami.PublishingMetadata(nil), m.published...)
}

func (m *mockProvider) Deleted() []ami.DeleteMetadata {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]ami.DeleteMetadata(nil), m.deleted...)
}

// providersFor serves the same provider for every region.
func providersFor(provider ami.Provider) *ami.ClientPool {
	return ami.NewClientPoolWithFactory(func(context.Context, string) (ami.Provider, error) {
		return provider, nil
	})
}

func status(code int) *rhsm.Response {
	return &rhsm.Response{StatusCode: code}
}

func testProducts() []rhsm.Product {
	return []rhsm.Product{
		{Name: "RHEL", ProviderShortName: "AWS"},
		{Name: "RHEL_HOURLY", ProviderShortName: "AWS"},
		{Name: "RHEL", ProviderShortName: "ACN"},
		{Name: "SAP", ProviderShortName: "ACN"},
	}
}

func testItem(name, region, imageType string) pushitem.Item {
	ena := true
	return pushitem.Item{
		Name:           name,
		State:          pushitem.StatePending,
		Src:            "/staged/" + name + ".raw",
		Dest:           []string{"dest-" + region},
		Description:    "Provided by Red Hat, Inc.",
		Region:         region,
		Type:           imageType,
		Virtualization: "hvm",
		Volume:         "gp2",
		RootDevice:     "/dev/sda1",
		EnaSupport:     &ena,
		Release: &pushitem.Release{
			Product: "RHEL",
			Version: "8.5",
			Arch:    "x86_64",
			Date:    pushitem.NewDate(2021, time.October, 12),
			Respin:  1,
			Type:    "ga",
		},
		BillingCodes: &pushitem.BillingCodes{Name: "Hourly2", Codes: []string{"bp-6fa54006"}},
	}
}

// syncBuffer is a bytes.Buffer safe for loggers writing from several
// goroutines.
type syncBuffer struct {
	mu  sync.Mutex
	buf bytes.Buffer
}

func (b *syncBuffer) Write(p []byte) (int, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.buf.Write(p)
}

func (b *syncBuffer) String() string {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.buf.String()
}

// testContext returns a context logging at debug level into the returned
// buffer.
func testContext(t *testing.T) (context.Context, *syncBuffer) {
	t.Helper()
	buf := &syncBuffer{}
	logger := logging.NewCustomLoggerWithOptions("debug", "plain", false, false)
	logger.SetOutput(buf)
	return logging.WithLogger(context.Background(), logger), buf
}
