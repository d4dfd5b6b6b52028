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

package ami

import (
	"context"
	"sync"
)

// ProviderFactory builds the Provider for a region.
type ProviderFactory func(ctx context.Context, region string) (Provider, error)

// ClientPool hands out one Provider per region, built on first use. Builds
// for different regions do not wait on each other.
type ClientPool struct {
	mu      sync.Mutex
	entries map[string]*poolEntry
	factory ProviderFactory
}

type poolEntry struct {
	mu       sync.Mutex
	provider Provider
}

// NewClientPool returns a pool building AWS backed services from cfg. The
// region of cfg is ignored.
func NewClientPool(cfg ClientConfig) *ClientPool {
	return NewClientPoolWithFactory(func(ctx context.Context, region string) (Provider, error) {
		regional := cfg
		regional.Region = region
		clients, err := NewAWSClients(ctx, regional)
		if err != nil {
			return nil, err
		}
		return NewService(clients), nil
	})
}

// NewClientPoolWithFactory returns a pool using factory to build providers.
func NewClientPoolWithFactory(factory ProviderFactory) *ClientPool {
	return &ClientPool{
		entries: make(map[string]*poolEntry),
		factory: factory,
	}
}

// ForRegion returns the cached Provider for region, building it if needed.
// A failed build is not cached.
func (p *ClientPool) ForRegion(ctx context.Context, region string) (Provider, error) {
	p.mu.Lock()
	entry, ok := p.entries[region]
	if !ok {
		entry = &poolEntry{}
		p.entries[region] = entry
	}
	p.mu.Unlock()

	entry.mu.Lock()
	defer entry.mu.Unlock()

	if entry.provider != nil {
		return entry.provider, nil
	}

	provider, err := p.factory(ctx, region)
	if err != nil {
		return nil, err
	}
	entry.provider = provider
	return provider, nil
}
