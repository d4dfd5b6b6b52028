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
	"encoding/json"
	stderrors "errors"
	"os"
	"path/filepath"
	"testing"

	"github.com/cowdogmoo/pubami/collector"
	"github.com/cowdogmoo/pubami/errors"
	"github.com/cowdogmoo/pubami/pipeline"
	"github.com/cowdogmoo/pubami/pushitem"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func readResults(t *testing.T, dir string) []map[string]any {
	t.Helper()
	data, err := os.ReadFile(filepath.Join(dir, pipeline.ImagesFile))
	require.NoError(t, err)
	var results []map[string]any
	require.NoError(t, json.Unmarshal(data, &results))
	return results
}

func readRecords(t *testing.T, dir string) []collector.PushItemRecord {
	t.Helper()
	data, err := os.ReadFile(filepath.Join(dir, collector.PushItemsFile))
	require.NoError(t, err)
	var records []collector.PushItemRecord
	require.NoError(t, json.Unmarshal(data, &records))
	return records
}

func TestPushCommand(t *testing.T) {
	env := setupTestEnv(t)

	_, err := env.run("push", "staged:"+env.stagingDir)
	require.NoError(t, err)

	published := env.provider.Published()
	require.Len(t, published, 2)
	containers := []string{published[0].Container, published[1].Container}
	assert.ElementsMatch(t, []string{"redhat-cloudimg-us-east-1", "redhat-cloudimg-us-west-2"}, containers)
	assert.Empty(t, env.api.Updates(), "metadata service is only updated with --ship")

	dir := env.runDir(t)
	results := readResults(t, dir)
	require.Len(t, results, 2)
	for _, result := range results {
		assert.Equal(t, string(pushitem.StatePushed), result["state"])
		assert.NotEmpty(t, result["ami"])
	}

	records := readRecords(t, dir)
	require.Len(t, records, 2)
	for _, record := range records {
		assert.Equal(t, pushitem.StatePushed, record.State)
	}
}

func TestPushCommand_Ship(t *testing.T) {
	env := setupTestEnv(t)

	_, err := env.run("push", "--ship", "--accounts", `{"default": {"user-1": "123456789012"}}`, env.stagingDir)
	require.NoError(t, err)

	updates := env.api.Updates()
	require.Len(t, updates, 2)
	for _, update := range updates {
		assert.Equal(t, "RHEL_HOURLY", update.Product)
	}
	for _, meta := range env.provider.Published() {
		assert.Equal(t, []string{"123456789012"}, meta.Accounts)
	}
}

func TestPushCommand_ContainerPrefix(t *testing.T) {
	env := setupTestEnv(t)

	_, err := env.run("push", "--container-prefix", "custom", env.stagingDir)
	require.NoError(t, err)

	for _, meta := range env.provider.Published() {
		assert.Contains(t, meta.Container, "custom-")
	}
}

func TestPushCommand_UploadFailure(t *testing.T) {
	env := setupTestEnv(t)
	env.provider.PublishErr = stderrors.New("import snapshot failed")

	_, err := env.run("push", env.stagingDir)
	require.Error(t, err)
	assert.ErrorIs(t, err, pipeline.ErrTaskFailed)
	assert.Equal(t, exitTaskFailed, errors.ExitCode(err))

	for _, result := range readResults(t, env.runDir(t)) {
		assert.Equal(t, string(pushitem.StateNotPushed), result["state"])
	}
}

func TestPushCommand_Errors(t *testing.T) {
	tests := []struct {
		name    string
		args    []string
		wantErr string
	}{
		{
			name:    "requires a source",
			args:    []string{"push"},
			wantErr: "requires at least 1 arg",
		},
		{
			name:    "invalid accounts",
			args:    []string{"push", "--accounts", "{not json", "STAGING"},
			wantErr: "invalid --accounts",
		},
		{
			name:    "invalid snapshot accounts",
			args:    []string{"push", "--snapshot-account-ids", "[1]", "STAGING"},
			wantErr: "invalid --snapshot-account-ids",
		},
		{
			name:    "unknown skip step",
			args:    []string{"push", "--skip", "uplod", "STAGING"},
			wantErr: "unknown step",
		},
		{
			name:    "missing source",
			args:    []string{"push", "staged:/does/not/exist"},
			wantErr: "/does/not/exist",
		},
		{
			name:    "unsupported source",
			args:    []string{"push", "koji:build"},
			wantErr: "koji",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			env := setupTestEnv(t)
			for i, arg := range tt.args {
				if arg == "STAGING" {
					tt.args[i] = env.stagingDir
				}
			}

			_, err := env.run(tt.args...)
			require.Error(t, err)
			assert.Contains(t, err.Error(), tt.wantErr)
			assert.Empty(t, env.provider.Published())
		})
	}
}

func TestPushCommand_InvalidConfig(t *testing.T) {
	env := setupTestEnv(t)
	require.NoError(t, os.WriteFile(env.configPath, []byte("rhsm:\n  url: \"\"\n"), 0o644))

	_, err := env.run("push", env.stagingDir)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "AWS credentials are not set")
	assert.Contains(t, err.Error(), "RHSM URL is not set")
	assert.Equal(t, 1, errors.ExitCode(err))
}

func TestPushCommand_WorkersFlag(t *testing.T) {
	env := setupTestEnv(t)

	_, err := env.run("push", "--workers", "0", env.stagingDir)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "push.workers must be at least 1")
}
