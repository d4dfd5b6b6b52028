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
	"sort"
	"strings"
	"sync"

	"github.com/cowdogmoo/pubami/logging"
	"github.com/cowdogmoo/pubami/pushitem"
	"github.com/cowdogmoo/pubami/rhsm"
	mapset "github.com/deckarep/golang-set/v2"
)

// ErrProductNotFound is returned when the metadata service has no product
// group for an image.
var ErrProductNotFound = errors.New("product not in rhsm")

// MetadataGate answers whether the metadata service knows a product or an
// image. The product list is fetched once and kept for the gate's lifetime.
// A failed fetch is not kept; the next caller tries again.
type MetadataGate struct {
	api      rhsm.API
	provider string

	mu       sync.Mutex
	loaded   bool
	products []rhsm.Product
}

// NewMetadataGate returns a gate matching products of the given provider.
func NewMetadataGate(api rhsm.API, provider string) *MetadataGate {
	return &MetadataGate{api: api, provider: provider}
}

// Products returns the product groups of every provider.
func (g *MetadataGate) Products(ctx context.Context) ([]rhsm.Product, error) {
	g.mu.Lock()
	defer g.mu.Unlock()

	if g.loaded {
		return g.products, nil
	}

	products, err := g.api.Products(ctx)
	if err != nil {
		return nil, err
	}
	g.products, g.loaded = products, true

	names := make([]string, 0, len(products))
	for _, p := range products {
		names = append(names, fmt.Sprintf("%s(%s)", p.Name, p.ProviderShortName))
	}
	sort.Strings(names)
	logging.DebugContext(ctx, "%d products in rhsm: %s", len(names), strings.Join(names, ", "))
	return g.products, nil
}

// ResolveProduct finds the product group for a product short name and image
// type. Hourly images live in the "<product>_HOURLY" group.
func (g *MetadataGate) ResolveProduct(ctx context.Context, product, imageType string) (rhsm.Product, error) {
	if strings.ToUpper(imageType) == "HOURLY" {
		product += "_HOURLY"
	}

	products, err := g.Products(ctx)
	if err != nil {
		return rhsm.Product{}, err
	}

	logging.DebugContext(ctx, "Searching for product %s for provider %s in rhsm", product, g.provider)
	for _, p := range products {
		if p.Name == product && p.ProviderShortName == g.provider {
			return p, nil
		}
	}
	return rhsm.Product{}, fmt.Errorf("%w: %s", ErrProductNotFound, product)
}

// KnownImageIDs lists every image id registered in the metadata service.
func (g *MetadataGate) KnownImageIDs(ctx context.Context) (mapset.Set[string], error) {
	return g.api.ListImageIDs(ctx)
}

// Verify checks every item against the product list and reports whether all
// of them resolved.
func (g *MetadataGate) Verify(ctx context.Context, items []pushitem.Item) (bool, error) {
	verified := true
	for _, item := range items {
		_, err := g.ResolveProduct(ctx, releaseProduct(item), item.Type)
		switch {
		case errors.Is(err, ErrProductNotFound):
			logging.ErrorContext(ctx, "Pre-push check in metadata service failed for %s at %s: %v", item.Name, item.Src, err)
			verified = false
		case err != nil:
			return false, err
		}
	}
	return verified, nil
}

func releaseProduct(item pushitem.Item) string {
	if item.Release == nil {
		return ""
	}
	return item.Release.Product
}
