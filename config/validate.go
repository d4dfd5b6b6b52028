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
	"strings"
)

// ValidationError lists every configuration problem found in one pass.
type ValidationError struct {
	Problems []string
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("configuration incomplete:\n  - %s", strings.Join(e.Problems, "\n  - "))
}

// ValidateAWS checks the settings needed to reach AWS.
func (c *Config) ValidateAWS() error {
	var problems []string

	if c.AWS.Profile == "" && (c.AWS.AccessID == "" || c.AWS.SecretKey == "") {
		problems = append(problems, "AWS credentials are not set. Use --aws-access-id/--aws-secret-key or AWS_ACCESS_ID/AWS_SECRET_KEY")
	}
	if c.AWS.ProviderName == "" {
		problems = append(problems, "AWS provider name is empty. Use --aws-provider-name (AWS, ACN, AGOV)")
	}

	return newValidationError(problems)
}

// ValidateRHSM checks the settings needed to reach the metadata service.
func (c *Config) ValidateRHSM() error {
	var problems []string

	if c.RHSM.URL == "" {
		problems = append(problems, "RHSM URL is not set. Use --rhsm-url or RHSM_URL")
	}
	if (c.RHSM.Cert == "") != (c.RHSM.Key == "") {
		problems = append(problems, "RHSM client certificate and key must be set together (--rhsm-cert/--rhsm-key)")
	}

	return newValidationError(problems)
}

// ValidateWorkers checks worker pool settings.
func (c *Config) ValidateWorkers() error {
	var problems []string

	if c.Push.Workers < 1 {
		problems = append(problems, fmt.Sprintf("push.workers must be at least 1, got %d", c.Push.Workers))
	}
	if c.Delete.Workers < 1 {
		problems = append(problems, fmt.Sprintf("delete.workers must be at least 1, got %d", c.Delete.Workers))
	}
	if c.Push.MaxRetries < 0 || c.Delete.MaxRetries < 0 {
		problems = append(problems, "max_retries cannot be negative")
	}
	if c.Push.RetryWait < 0 || c.Delete.RetryWait < 0 {
		problems = append(problems, "retry_wait cannot be negative")
	}

	return newValidationError(problems)
}

func newValidationError(problems []string) error {
	if len(problems) == 0 {
		return nil
	}
	return &ValidationError{Problems: problems}
}
