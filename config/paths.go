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

package config

import (
	"fmt"
	"os"
	"path/filepath"
)

// Permissions used for directories and files written by pubami.
const (
	DirPermReadWriteExec os.FileMode = 0o755
	FilePermReadWrite    os.FileMode = 0o644
)

// DefaultResultsDir returns the directory task results are collected into
// when collector.dir is not configured.
func DefaultResultsDir() string {
	if dataHome := getDataHome(); dataHome != "" {
		return filepath.Join(dataHome, appName, "results")
	}
	return filepath.Join(os.TempDir(), appName, "results")
}

// EnsureDir creates dir and its parents if they do not exist.
func EnsureDir(dir string) error {
	if dir == "" {
		return fmt.Errorf("directory path is empty")
	}
	if err := os.MkdirAll(dir, DirPermReadWriteExec); err != nil {
		return fmt.Errorf("failed to create directory %s: %w", dir, err)
	}
	return nil
}
