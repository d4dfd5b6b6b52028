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
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestClient(t *testing.T, handler http.HandlerFunc) *Client {
	t.Helper()
	server := httptest.NewServer(handler)
	t.Cleanup(server.Close)

	client, err := NewClient(Config{
		URL:        server.URL + "/",
		HTTPClient: server.Client(),
		MaxRetries: 2,
		RetryWait:  time.Millisecond,
	})
	require.NoError(t, err)
	client.now = func() time.Time {
		return time.Date(2024, time.March, 1, 12, 30, 45, 999, time.FixedZone("EST", -5*3600))
	}
	return client
}

func decodeBody(t *testing.T, r *http.Request) map[string]string {
	t.Helper()
	var body map[string]string
	require.NoError(t, json.NewDecoder(r.Body).Decode(&body))
	return body
}

func TestNewClient(t *testing.T) {
	t.Parallel()

	_, err := NewClient(Config{})
	assert.ErrorIs(t, err, ErrURLEmpty)

	_, err = NewClient(Config{URL: "https://rhsm.example.com", CertFile: "cert.pem"})
	assert.ErrorIs(t, err, ErrCertificatePair)

	_, err = NewClient(Config{URL: "https://rhsm.example.com", CertFile: "missing.pem", KeyFile: "missing.key"})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "client certificate")

	client, err := NewClient(Config{URL: "https://rhsm.example.com/"})
	require.NoError(t, err)
	assert.Equal(t, "https://rhsm.example.com", client.baseURL)
}

func TestProducts(t *testing.T) {
	t.Parallel()

	client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, http.MethodGet, r.Method)
		assert.Equal(t, productsPath, r.URL.Path)
		_, _ = fmt.Fprint(w, `{"body":[{"name":"RHEL_HOURLY","providerShortName":"AWS"},{"name":"RHEL","providerShortName":"ACN"}]}`)
	})

	products, err := client.Products(context.Background())
	require.NoError(t, err)
	assert.Equal(t, []Product{
		{Name: "RHEL_HOURLY", ProviderShortName: "AWS"},
		{Name: "RHEL", ProviderShortName: "ACN"},
	}, products)
}

func TestProducts_Errors(t *testing.T) {
	t.Parallel()

	t.Run("status", func(t *testing.T) {
		client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
			w.WriteHeader(http.StatusForbidden)
		})
		_, err := client.Products(context.Background())
		var httpErr *HTTPError
		require.ErrorAs(t, err, &httpErr)
		assert.Equal(t, http.StatusForbidden, httpErr.StatusCode)
		assert.Equal(t, http.MethodGet, httpErr.Method)
	})

	t.Run("payload", func(t *testing.T) {
		client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
			_, _ = fmt.Fprint(w, `not json`)
		})
		_, err := client.Products(context.Background())
		assert.ErrorIs(t, err, errJSONUnmarshal)
	})
}

func TestCreateRegion(t *testing.T) {
	t.Parallel()

	client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, http.MethodPost, r.Method)
		assert.Equal(t, regionsPath, r.URL.Path)
		assert.Equal(t, map[string]string{"regionID": "us-east-1", "providerShortname": "AWS"}, decodeBody(t, r))
	})

	resp, err := client.CreateRegion(context.Background(), "us-east-1", "AWS")
	require.NoError(t, err)
	assert.True(t, resp.OK())
	assert.NoError(t, resp.Err())
}

func TestUpdateImage(t *testing.T) {
	t.Parallel()

	client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, http.MethodPut, r.Method)
		assert.Equal(t, imagesPath, r.URL.Path)
		assert.Equal(t, map[string]string{
			"amiID":       "ami-1234567",
			"arch":        "x86_64",
			"product":     "RHEL_HOURLY",
			"version":     "8.5",
			"variant":     "none",
			"description": "Released ami-rhel on 2024-03-01T17:30:45",
			"status":      "VISIBLE",
		}, decodeBody(t, r))
	})

	resp, err := client.UpdateImage(context.Background(), ImageRequest{
		ImageID:   "ami-1234567",
		ImageName: "ami-rhel",
		Arch:      "X86_64",
		Product:   "RHEL_HOURLY",
		Version:   "8.5",
		Region:    "us-east-1",
	})
	require.NoError(t, err)
	assert.True(t, resp.OK())
}

func TestUpdateImage_Invisible(t *testing.T) {
	t.Parallel()

	client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		body := decodeBody(t, r)
		assert.Equal(t, StatusInvisible, body["status"])
		assert.Equal(t, "none", body["version"])
		w.WriteHeader(http.StatusNotFound)
	})

	resp, err := client.UpdateImage(context.Background(), ImageRequest{ImageID: "ami-1", Status: StatusInvisible})
	require.NoError(t, err)
	assert.False(t, resp.OK())

	var httpErr *HTTPError
	require.ErrorAs(t, resp.Err(), &httpErr)
	assert.Equal(t, http.StatusNotFound, httpErr.StatusCode)
	assert.Contains(t, httpErr.Error(), "PUT")
}

func TestCreateImage(t *testing.T) {
	t.Parallel()

	client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, http.MethodPost, r.Method)
		body := decodeBody(t, r)
		assert.Equal(t, "us-east-1", body["region"])
		assert.Equal(t, StatusVisible, body["status"])
		assert.Equal(t, "aarch64", body["arch"])
	})

	resp, err := client.CreateImage(context.Background(), ImageRequest{
		ImageID: "ami-1",
		Arch:    "aarch64",
		Region:  "us-east-1",
		Status:  StatusInvisible,
	})
	require.NoError(t, err)
	assert.True(t, resp.OK())
}

func TestListImageIDs(t *testing.T) {
	t.Parallel()

	pages := map[string]string{
		"0": `{"pagination":{"count":2},"body":[{"amiID":"ami-1"},{"amiID":"ami-2"}]}`,
		"2": `{"pagination":{"count":1},"body":[{"amiID":"ami-3"}]}`,
		"3": `{"pagination":{"count":0},"body":[]}`,
	}
	var calls atomic.Int32
	client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		calls.Add(1)
		assert.Equal(t, "1000", r.URL.Query().Get("limit"))
		page, ok := pages[r.URL.Query().Get("offset")]
		require.True(t, ok, "unexpected offset %s", r.URL.Query().Get("offset"))
		_, _ = fmt.Fprint(w, page)
	})

	ids, err := client.ListImageIDs(context.Background())
	require.NoError(t, err)
	assert.Equal(t, int32(3), calls.Load())
	assert.ElementsMatch(t, []string{"ami-1", "ami-2", "ami-3"}, ids.ToSlice())
}

func TestListImageIDs_Error(t *testing.T) {
	t.Parallel()

	client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusUnauthorized)
	})

	_, err := client.ListImageIDs(context.Background())
	var httpErr *HTTPError
	require.ErrorAs(t, err, &httpErr)
	assert.Equal(t, http.StatusUnauthorized, httpErr.StatusCode)
}

func TestRetry(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name      string
		responses []int
		wantCalls int32
		wantCode  int
	}{
		{name: "recovers after server errors", responses: []int{503, 502, 200}, wantCalls: 3, wantCode: 200},
		{name: "exhausted returns last response", responses: []int{500, 500, 500, 500}, wantCalls: 3, wantCode: 500},
		{name: "client errors are not retried", responses: []int{404, 200}, wantCalls: 1, wantCode: 404},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			var calls atomic.Int32
			client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
				n := calls.Add(1)
				w.WriteHeader(tt.responses[n-1])
			})

			resp, err := client.CreateRegion(context.Background(), "us-east-1", "AWS")
			require.NoError(t, err)
			assert.Equal(t, tt.wantCode, resp.StatusCode)
			assert.Equal(t, tt.wantCalls, calls.Load())
		})
	}
}

func TestTransportErrorExhausted(t *testing.T) {
	t.Parallel()

	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {}))
	url := server.URL
	server.Close()

	client, err := NewClient(Config{URL: url, MaxRetries: 1, RetryWait: time.Millisecond})
	require.NoError(t, err)

	_, err = client.CreateRegion(context.Background(), "us-east-1", "AWS")
	assert.ErrorIs(t, err, errDoRequestFailure)
}

func TestRequestThreads(t *testing.T) {
	t.Parallel()

	var inFlight, peak atomic.Int32
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		n := inFlight.Add(1)
		for {
			p := peak.Load()
			if n <= p || peak.CompareAndSwap(p, n) {
				break
			}
		}
		time.Sleep(10 * time.Millisecond)
		inFlight.Add(-1)
	}))
	t.Cleanup(server.Close)

	client, err := NewClient(Config{URL: server.URL, HTTPClient: server.Client(), RequestThreads: 2})
	require.NoError(t, err)

	var wg sync.WaitGroup
	for i := 0; i < 8; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, err := client.CreateRegion(context.Background(), fmt.Sprintf("region-%d", i), "AWS")
			assert.NoError(t, err)
		}()
	}
	wg.Wait()

	assert.LessOrEqual(t, peak.Load(), int32(2))
}
