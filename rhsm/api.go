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

// Package rhsm is a client for the cloud access provider API of the Red Hat
// subscription management service, which tracks the AMIs offered to
// customers for each product.
package rhsm

import (
	"context"
	"fmt"
	"net/http"

	mapset "github.com/deckarep/golang-set/v2"
)

// API is the subset of the metadata service used while pushing and deleting
// images. Every call blocks until the service answered or retries ran out.
type API interface {
	Products(ctx context.Context) ([]Product, error)
	CreateRegion(ctx context.Context, region, providerShortName string) (*Response, error)
	UpdateImage(ctx context.Context, req ImageRequest) (*Response, error)
	CreateImage(ctx context.Context, req ImageRequest) (*Response, error)
	ListImageIDs(ctx context.Context) (mapset.Set[string], error)
}

// Product is an image group known to the service.
type Product struct {
	Name              string `json:"name"`
	ProviderShortName string `json:"providerShortName"`
}

// Image statuses.
const (
	StatusVisible   = "VISIBLE"
	StatusInvisible = "invisible"
)

// ImageRequest carries the fields sent when registering or updating an AMI.
// Region is only sent on create. An empty Status means StatusVisible.
type ImageRequest struct {
	ImageID   string
	ImageName string
	Arch      string
	Product   string
	Version   string
	Variant   string
	Region    string
	Status    string
}

// Response is the status and body of a completed request.
type Response struct {
	StatusCode int
	Body       []byte

	method string
	url    string
}

// OK reports whether the request succeeded.
func (r *Response) OK() bool {
	return r != nil && r.StatusCode >= http.StatusOK && r.StatusCode < http.StatusMultipleChoices
}

// Err returns an *HTTPError for an unsuccessful response and nil otherwise.
func (r *Response) Err() error {
	if r.OK() {
		return nil
	}
	if r == nil {
		return &HTTPError{}
	}
	return &HTTPError{
		StatusCode: r.StatusCode,
		Method:     r.method,
		URL:        r.url,
		Body:       string(r.Body),
	}
}

// HTTPError reports a response with a non-success status code.
type HTTPError struct {
	StatusCode int
	Method     string
	URL        string
	Body       string
}

func (e *HTTPError) Error() string {
	if e.Method == "" {
		return fmt.Sprintf("rhsm returned status %d", e.StatusCode)
	}
	return fmt.Sprintf("rhsm %s %s returned status %d", e.Method, e.URL, e.StatusCode)
}
