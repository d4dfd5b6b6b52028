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

package main

import (
	"bytes"
	"context"
	"net/http"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"testing"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/feature/s3/manager"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/cowdogmoo/pubami/cloud/ami"
	"github.com/cowdogmoo/pubami/collector"
	"github.com/cowdogmoo/pubami/config"
	"github.com/cowdogmoo/pubami/pipeline"
	"github.com/cowdogmoo/pubami/rhsm"
	mapset "github.com/deckarep/golang-set/v2"
	"github.com/spf13/cobra"
	"github.com/spf13/pflag"
	"github.com/stretchr/testify/require"
)

const testConfig = `log:
  level: error
  format: text
aws:
  access_id: AKIATEST
  secret_key: secret
rhsm:
  url: https://rhsm.example.com
push:
  workers: 2
  retry_wait: 0
  max_retries: 0
delete:
  workers: 2
  retry_wait: 0
  max_retries: 0
`

// testStaging stages the same image for two regions.
const testStaging = `header:
  version: "0.2"
payload:
  items:
    - name: rhel-8.5-hourly
      src: rhel.raw
      region: us-east-1
      dest: [us-east-1]
      type: hourly
      virtualization: hvm
      volume: gp2
      root_device: /dev/sda1
      release:
        product: RHEL
        version: "8.5"
        arch: x86_64
        date: 2021-10-12
        respin: 1
        type: GA
      billing_codes:
        name: Hourly2
        codes: [bp-6fa54006]
    - name: rhel-8.5-hourly
      src: rhel.raw
      region: us-west-2
      dest: [us-west-2]
      type: hourly
      virtualization: hvm
      volume: gp2
      root_device: /dev/sda1
      release:
        product: RHEL
        version: "8.5"
        arch: x86_64
        date: 2021-10-12
        respin: 1
        type: GA
      billing_codes:
        name: Hourly2
        codes: [bp-6fa54006]
`

// fakeRHSM implements rhsm.API with canned answers.
type fakeRHSM struct {
	mu sync.Mutex

	UpdateStatus int
	KnownIDs     []string

	updates []rhsm.ImageRequest
}

func (f *fakeRHSM) Products(context.Context) ([]rhsm.Product, error) {
	return []rhsm.Product{
		{Name: "RHEL", ProviderShortName: "AWS"},
		{Name: "RHEL_HOURLY", ProviderShortName: "AWS"},
	}, nil
}

func (f *fakeRHSM) CreateRegion(context.Context, string, string) (*rhsm.Response, error) {
	return &rhsm.Response{StatusCode: http.StatusOK}, nil
}

func (f *fakeRHSM) UpdateImage(_ context.Context, req rhsm.ImageRequest) (*rhsm.Response, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.updates = append(f.updates, req)
	code := f.UpdateStatus
	if code == 0 {
		code = http.StatusOK
	}
	return &rhsm.Response{StatusCode: code}, nil
}

func (f *fakeRHSM) CreateImage(context.Context, rhsm.ImageRequest) (*rhsm.Response, error) {
	return &rhsm.Response{StatusCode: http.StatusOK}, nil
}

func (f *fakeRHSM) ListImageIDs(context.Context) (mapset.Set[string], error) {
	return mapset.NewSet(f.KnownIDs...), nil
}

func (f *fakeRHSM) Updates() []rhsm.ImageRequest {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]rhsm.ImageRequest(nil), f.updates...)
}

// fakeProvider implements ami.Provider for every region.
type fakeProvider struct {
	mu sync.Mutex

	PublishErr error

	published []ami.PublishingMetadata
	deleted   []ami.DeleteMetadata
}

func (f *fakeProvider) Publish(_ context.Context, meta ami.PublishingMetadata) (ami.Image, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.published = append(f.published, meta)
	if f.PublishErr != nil {
		return ami.Image{}, f.PublishErr
	}
	return ami.Image{ID: "ami-" + meta.Container, Name: meta.ImageName}, nil
}

func (f *fakeProvider) Delete(_ context.Context, meta ami.DeleteMetadata) (ami.DeleteResult, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.deleted = append(f.deleted, meta)
	return ami.DeleteResult{ImageID: meta.ImageID, SnapshotID: "snap-" + meta.ImageID}, nil
}

func (f *fakeProvider) Published() []ami.PublishingMetadata {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]ami.PublishingMetadata(nil), f.published...)
}

func (f *fakeProvider) Deleted() []ami.DeleteMetadata {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]ami.DeleteMetadata(nil), f.deleted...)
}

// testEnv isolates a command run from the user's config and credentials.
type testEnv struct {
	configPath string
	resultsDir string
	stagingDir string
	api        *fakeRHSM
	provider   *fakeProvider
}

func setupTestEnv(t *testing.T) *testEnv {
	t.Helper()

	home := t.TempDir()
	t.Setenv("HOME", home)
	t.Setenv("XDG_CONFIG_HOME", filepath.Join(home, ".config"))
	t.Setenv("XDG_DATA_HOME", filepath.Join(home, ".local", "share"))
	for _, name := range []string{"AWS_PROFILE", "AWS_ACCESS_ID", "AWS_SECRET_KEY", "RHSM_URL", "RHSM_CERT", "RHSM_KEY", "AWS_REGION"} {
		t.Setenv(name, "")
	}

	env := &testEnv{
		configPath: filepath.Join(home, "config.yaml"),
		resultsDir: filepath.Join(home, "results"),
		stagingDir: t.TempDir(),
		api:        &fakeRHSM{KnownIDs: []string{"ami-0123"}},
		provider:   &fakeProvider{},
	}
	require.NoError(t, os.WriteFile(env.configPath, []byte(testConfig), config.FilePermReadWrite))
	require.NoError(t, os.WriteFile(filepath.Join(env.stagingDir, "pushitems.yaml"), []byte(testStaging), config.FilePermReadWrite))

	origRHSM, origProviders, origUploader := newRHSMClient, newProviderSource, newS3Uploader
	newRHSMClient = func(*config.Config) (rhsm.API, error) { return env.api, nil }
	newProviderSource = func(*config.Config) pipeline.ProviderSource {
		return ami.NewClientPoolWithFactory(func(context.Context, string) (ami.Provider, error) {
			return env.provider, nil
		})
	}
	t.Cleanup(func() {
		newRHSMClient, newProviderSource, newS3Uploader = origRHSM, origProviders, origUploader
	})

	resetFlags(rootCmd)
	t.Cleanup(func() { resetFlags(rootCmd) })

	return env
}

// run executes rootCmd with the isolated config and results directory.
func (e *testEnv) run(args ...string) (string, error) {
	full := append([]string{args[0], "--config", e.configPath, "--results-dir", e.resultsDir}, args[1:]...)
	return executeCommand(full...)
}

// deleteStaging writes a staging directory whose items carry imageID.
func (e *testEnv) deleteStaging(t *testing.T, imageID string) string {
	t.Helper()
	dir := t.TempDir()
	content := strings.ReplaceAll(testStaging, "      type: hourly\n", "      type: hourly\n      image_id: "+imageID+"\n")
	require.NoError(t, os.WriteFile(filepath.Join(dir, "pushitems.yaml"), []byte(content), config.FilePermReadWrite))
	return dir
}

// runDir returns the single run directory written under the results dir.
func (e *testEnv) runDir(t *testing.T) string {
	t.Helper()
	entries, err := os.ReadDir(e.resultsDir)
	require.NoError(t, err)
	require.Len(t, entries, 1)
	return filepath.Join(e.resultsDir, entries[0].Name())
}

func executeCommand(args ...string) (string, error) {
	buf := new(bytes.Buffer)
	rootCmd.SetOut(buf)
	rootCmd.SetErr(buf)
	rootCmd.SetArgs(args)
	rootCmd.SetContext(context.Background())
	err := rootCmd.Execute()
	return buf.String(), err
}

// resetFlags restores every flag of cmd and its children to its default so
// runs do not leak into each other.
func resetFlags(cmd *cobra.Command) {
	reset := func(f *pflag.Flag) {
		if sv, ok := f.Value.(pflag.SliceValue); ok {
			_ = sv.Replace(nil)
		} else {
			_ = f.Value.Set(f.DefValue)
		}
		f.Changed = false
	}
	cmd.PersistentFlags().VisitAll(reset)
	cmd.Flags().VisitAll(reset)
	for _, child := range cmd.Commands() {
		resetFlags(child)
	}
}

// memoryUploader implements collector.Uploader and keeps uploads in memory.
type memoryUploader struct {
	mu   sync.Mutex
	keys []string
}

var _ collector.Uploader = (*memoryUploader)(nil)

func (m *memoryUploader) Upload(_ context.Context, input *s3.PutObjectInput, _ ...func(*manager.Uploader)) (*manager.UploadOutput, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.keys = append(m.keys, aws.ToString(input.Key))
	return &manager.UploadOutput{}, nil
}

func (m *memoryUploader) Keys() []string {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]string(nil), m.keys...)
}
