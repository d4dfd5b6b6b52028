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

package rhsm

import (
	"bytes"
	"context"
	"crypto/tls"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/cenkalti/backoff/v4"
	"github.com/cowdogmoo/pubami/logging"
	mapset "github.com/deckarep/golang-set/v2"
	"golang.org/x/sync/semaphore"
)

// Errors returned while building or using a Client.
var (
	ErrURLEmpty        = errors.New("rhsm url is required")
	ErrCertificatePair = errors.New("rhsm client certificate and key must be given together")
)

var (
	errNewRequestFailure  = errors.New("failed creating an HTTP request")
	errDoRequestFailure   = errors.New("http client failed while sending request")
	errReadingBodyFailure = errors.New("failed while reading http response body")
	errJSONUnmarshal      = errors.New("failed unmarshaling JSON response payload")
	errJSONMarshal        = errors.New("failed marshaling JSON request payload")
)

const (
	apiPath          = "/v1/internal/cloud_access_providers/amazon"
	productsPath     = apiPath + "/provider_image_groups"
	regionsPath      = apiPath + "/regions"
	imagesPath       = apiPath + "/amis"
	listPageSize     = 1000
	errWrappedFmt    = "%w: %s"
	descriptionTime  = "2006-01-02T15:04:05"
	defaultThreads   = 4
	defaultRetryWait = time.Second
)

// Config configures a Client.
type Config struct {
	// URL is the base URL of the service, e.g. https://rhsm.example.com.
	URL string

	// CertFile and KeyFile name the PEM encoded client certificate.
	CertFile string
	KeyFile  string

	// HTTPClient overrides the client built from the certificate settings.
	HTTPClient *http.Client

	// Timeout applies to each request of the built client.
	Timeout time.Duration

	// MaxRetries is the number of retries after a transport error or a 5xx
	// response. RetryWait is the initial wait, doubled on each retry.
	MaxRetries int
	RetryWait  time.Duration

	// RequestThreads bounds the number of requests in flight.
	RequestThreads int
}

// Client talks to the metadata service. It is safe for concurrent use.
type Client struct {
	client     *http.Client
	baseURL    string
	maxRetries int
	retryWait  time.Duration
	sem        *semaphore.Weighted
	now        func() time.Time
}

var _ API = (*Client)(nil)

// NewClient validates cfg and builds a Client.
func NewClient(cfg Config) (*Client, error) {
	if cfg.URL == "" {
		return nil, ErrURLEmpty
	}
	if (cfg.CertFile == "") != (cfg.KeyFile == "") {
		return nil, ErrCertificatePair
	}

	httpClient := cfg.HTTPClient
	if httpClient == nil {
		var err error
		httpClient, err = newHTTPClient(cfg)
		if err != nil {
			return nil, err
		}
	}

	threads := cfg.RequestThreads
	if threads < 1 {
		threads = defaultThreads
	}
	retryWait := cfg.RetryWait
	if retryWait <= 0 {
		retryWait = defaultRetryWait
	}

	return &Client{
		client:     httpClient,
		baseURL:    strings.TrimRight(cfg.URL, "/"),
		maxRetries: max(cfg.MaxRetries, 0),
		retryWait:  retryWait,
		sem:        semaphore.NewWeighted(int64(threads)),
		now:        time.Now,
	}, nil
}

func newHTTPClient(cfg Config) (*http.Client, error) {
	transport := http.DefaultTransport.(*http.Transport).Clone()
	if cfg.CertFile != "" {
		cert, err := tls.LoadX509KeyPair(cfg.CertFile, cfg.KeyFile)
		if err != nil {
			return nil, fmt.Errorf("failed to load rhsm client certificate: %w", err)
		}
		transport.TLSClientConfig = &tls.Config{
			Certificates: []tls.Certificate{cert},
			MinVersion:   tls.VersionTLS12,
		}
	}
	return &http.Client{Transport: transport, Timeout: cfg.Timeout}, nil
}

// Products lists the product image groups of every provider.
func (c *Client) Products(ctx context.Context) ([]Product, error) {
	logging.DebugContext(ctx, "Fetching products from %s", c.baseURL+productsPath)

	resp, err := c.do(ctx, http.MethodGet, productsPath, nil, nil)
	if err != nil {
		return nil, err
	}
	if err := resp.Err(); err != nil {
		return nil, err
	}

	var payload struct {
		Body []Product `json:"body"`
	}
	if err := json.Unmarshal(resp.Body, &payload); err != nil {
		return nil, fmt.Errorf("Products: %w: %s", errJSONUnmarshal, err.Error())
	}
	return payload.Body, nil
}

// CreateRegion registers region for the provider. The service answers OK
// when the region already exists.
func (c *Client) CreateRegion(ctx context.Context, region, providerShortName string) (*Response, error) {
	body := map[string]string{
		"regionID":          region,
		"providerShortname": providerShortName,
	}
	return c.do(ctx, http.MethodPost, regionsPath, nil, body)
}

// UpdateImage replaces the record of an existing image.
func (c *Client) UpdateImage(ctx context.Context, req ImageRequest) (*Response, error) {
	return c.do(ctx, http.MethodPut, imagesPath, nil, c.imageBody(req, false))
}

// CreateImage registers a new visible image in req.Region.
func (c *Client) CreateImage(ctx context.Context, req ImageRequest) (*Response, error) {
	req.Status = StatusVisible
	return c.do(ctx, http.MethodPost, imagesPath, nil, c.imageBody(req, true))
}

func (c *Client) imageBody(req ImageRequest, withRegion bool) map[string]string {
	status := req.Status
	if status == "" {
		status = StatusVisible
	}
	body := map[string]string{
		"amiID":       req.ImageID,
		"arch":        strings.ToLower(req.Arch),
		"product":     req.Product,
		"version":     orNone(req.Version),
		"variant":     orNone(req.Variant),
		"description": fmt.Sprintf("Released %s on %s", req.ImageName, c.now().UTC().Format(descriptionTime)),
		"status":      status,
	}
	if withRegion {
		body["region"] = req.Region
	}
	return body
}

func orNone(s string) string {
	if s == "" {
		return "none"
	}
	return s
}

// ListImageIDs pages through every registered AMI and returns their ids.
func (c *Client) ListImageIDs(ctx context.Context) (mapset.Set[string], error) {
	logging.DebugContext(ctx, "Listing all images from rhsm, %s", c.baseURL+imagesPath)

	ids := mapset.NewSet[string]()
	offset := 0
	for {
		query := url.Values{}
		query.Set("limit", strconv.Itoa(listPageSize))
		query.Set("offset", strconv.Itoa(offset))

		resp, err := c.do(ctx, http.MethodGet, imagesPath, query, nil)
		if err != nil {
			return nil, err
		}
		if err := resp.Err(); err != nil {
			return nil, err
		}

		var page struct {
			Pagination struct {
				Count int `json:"count"`
			} `json:"pagination"`
			Body []struct {
				AmiID string `json:"amiID"`
			} `json:"body"`
		}
		if err := json.Unmarshal(resp.Body, &page); err != nil {
			return nil, fmt.Errorf("ListImageIDs: %w: %s", errJSONUnmarshal, err.Error())
		}
		if page.Pagination.Count == 0 {
			return ids, nil
		}

		for _, item := range page.Body {
			ids.Add(item.AmiID)
		}
		offset += page.Pagination.Count
	}
}

// retryableStatus marks a 5xx response that should be sent again.
type retryableStatus struct {
	code int
}

func (e *retryableStatus) Error() string {
	return fmt.Sprintf("server error: status %d", e.code)
}

// do sends one request, retrying transport errors and 5xx answers. When the
// retries run out on a 5xx answer the last response is returned without error
// so callers can inspect it like any other unsuccessful response.
func (c *Client) do(ctx context.Context, method, path string, query url.Values, body any) (*Response, error) {
	var payload []byte
	if body != nil {
		var err error
		payload, err = json.Marshal(body)
		if err != nil {
			return nil, fmt.Errorf(errWrappedFmt, errJSONMarshal, err.Error())
		}
	}

	target := c.baseURL + path
	if len(query) > 0 {
		target += "?" + query.Encode()
	}

	policy := backoff.NewExponentialBackOff()
	policy.InitialInterval = c.retryWait
	policy.MaxElapsedTime = 0
	policy.Reset()

	operation := func() (*Response, error) {
		resp, err := c.send(ctx, method, target, payload)
		if err != nil {
			if ctx.Err() != nil {
				return nil, backoff.Permanent(err)
			}
			return nil, err
		}
		if resp.StatusCode >= http.StatusInternalServerError {
			return resp, &retryableStatus{code: resp.StatusCode}
		}
		return resp, nil
	}

	notify := func(err error, wait time.Duration) {
		logging.WarnContext(ctx, "Request %s %s failed (%v), retrying in %s", method, logging.RedactURL(target), err, wait)
	}

	resp, err := backoff.RetryNotifyWithData[*Response](operation,
		backoff.WithContext(backoff.WithMaxRetries(policy, uint64(c.maxRetries)), ctx), notify)
	if err != nil {
		var status *retryableStatus
		if errors.As(err, &status) && resp != nil {
			err = nil
		} else {
			logging.ErrorContext(ctx, "Failed to process request to RHSM with exception %v", err)
			return nil, err
		}
	}

	if !resp.OK() {
		logging.DebugContext(ctx, "%s %s returned %d: %s", method, logging.RedactURL(target), resp.StatusCode,
			logging.RedactSensitivePatterns(string(resp.Body)))
	}
	return resp, nil
}

func (c *Client) send(ctx context.Context, method, target string, payload []byte) (*Response, error) {
	if err := c.sem.Acquire(ctx, 1); err != nil {
		return nil, err
	}
	defer c.sem.Release(1)

	var reader io.Reader
	if payload != nil {
		reader = bytes.NewReader(payload)
	}

	req, err := http.NewRequestWithContext(ctx, method, target, reader)
	if err != nil {
		return nil, fmt.Errorf(errWrappedFmt, errNewRequestFailure, err.Error())
	}
	req.Header.Set("Accept", "application/json")
	if payload != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	httpResp, err := c.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf(errWrappedFmt, errDoRequestFailure, err.Error())
	}
	defer func() { _ = httpResp.Body.Close() }()

	data, err := io.ReadAll(httpResp.Body)
	if err != nil {
		return nil, fmt.Errorf(errWrappedFmt, errReadingBodyFailure, err.Error())
	}

	return &Response{
		StatusCode: httpResp.StatusCode,
		Body:       data,
		method:     method,
		url:        target,
	}, nil
}
