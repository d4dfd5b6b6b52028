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
	"errors"
	"fmt"
	"strings"

	"github.com/aws/smithy-go"
)

// ProviderError is an AWS failure with a remediation hint.
type ProviderError struct {
	Message     string
	Cause       error
	Remediation string
}

func (e *ProviderError) Error() string {
	if e.Remediation != "" {
		return fmt.Sprintf("%s: %v\n\nRemediation: %s", e.Message, e.Cause, e.Remediation)
	}
	return fmt.Sprintf("%s: %v", e.Message, e.Cause)
}

func (e *ProviderError) Unwrap() error {
	return e.Cause
}

// errorPattern defines a pattern for matching and remediating errors
type errorPattern struct {
	patterns    []string // All patterns must match (AND logic within a pattern set)
	anyPatterns []string // Any of these patterns must match (OR logic)
	msgSuffix   string
	remediation string
}

var errorPatterns = []errorPattern{
	{
		anyPatterns: []string{"vmimport", "ServiceRole"},
		msgSuffix:   "VM import service role missing",
		remediation: "Snapshot imports need the 'vmimport' IAM role with read access to the container bucket. See https://docs.aws.amazon.com/vm-import/latest/userguide/required-permissions.html",
	},
	{
		anyPatterns: []string{"InvalidAMIName.Duplicate", "AMI name is already in use"},
		msgSuffix:   "image name already registered",
		remediation: "An image with this name exists but could not be matched as owned by these credentials. Check the image owner or deregister the old image.",
	},
	{
		anyPatterns: []string{"AuthFailure", "SignatureDoesNotMatch", "InvalidClientTokenId", "RequestExpired"},
		msgSuffix:   "invalid AWS credentials",
		remediation: "Verify --aws-access-id and --aws-secret-key (or AWS_ACCESS_ID/AWS_SECRET_KEY) and that the system clock is correct.",
	},
	{
		anyPatterns: []string{"AccessDenied", "UnauthorizedOperation", "not authorized"},
		msgSuffix:   "permission denied",
		remediation: "The credentials need ec2:ImportSnapshot, ec2:RegisterImage, ec2:ModifyImageAttribute, ec2:ModifySnapshotAttribute, ec2:DeregisterImage, ec2:DeleteSnapshot, ec2:CreateTags and s3:PutObject on the container bucket.",
	},
	{
		patterns:    []string{"InvalidParameter"},
		anyPatterns: []string{"BillingProduct", "billing"},
		msgSuffix:   "billing code rejected",
		remediation: "Billing products can only be attached by accounts allow-listed for them. Check billing_codes of the push item.",
	},
	{
		anyPatterns: []string{"LimitExceeded", "ResourceLimitExceeded", "quota"},
		msgSuffix:   "AWS service quota exceeded",
		remediation: "Check the EC2 snapshot and image quotas of the region. Deregister unused images or request a quota increase.",
	},
	{
		anyPatterns: []string{"InvalidSnapshot.NotFound", "InvalidAMIID.NotFound", "NoSuchBucket"},
		msgSuffix:   "resource not found",
		remediation: "Image, snapshot and bucket names are region specific. Verify the resource exists in the target region.",
	},
}

// WrapWithRemediation wraps an error with a remediation hint based on the error type
func WrapWithRemediation(err error, context string) error {
	if err == nil {
		return nil
	}

	errMsg := err.Error()

	for _, pattern := range errorPatterns {
		if matchesPattern(errMsg, pattern) {
			return &ProviderError{
				Message:     fmt.Sprintf("%s: %s", context, pattern.msgSuffix),
				Cause:       err,
				Remediation: pattern.remediation,
			}
		}
	}

	return fmt.Errorf("%s: %w", context, err)
}

func matchesPattern(errMsg string, p errorPattern) bool {
	for _, pat := range p.patterns {
		if !strings.Contains(errMsg, pat) {
			return false
		}
	}

	if len(p.anyPatterns) == 0 {
		return true
	}
	for _, pat := range p.anyPatterns {
		if strings.Contains(errMsg, pat) {
			return true
		}
	}
	return false
}

// isNotFound reports whether err is an AWS API error for a missing resource,
// e.g. InvalidAMIID.NotFound, InvalidSnapshot.NotFound or NoSuchBucket.
func isNotFound(err error) bool {
	var apiErr smithy.APIError
	if !errors.As(err, &apiErr) {
		return false
	}
	code := apiErr.ErrorCode()
	return strings.HasSuffix(code, "NotFound") || code == "NoSuchBucket"
}

// isAlreadyOwned reports whether a bucket creation failed only because the
// bucket is already ours.
func isAlreadyOwned(err error) bool {
	var apiErr smithy.APIError
	return errors.As(err, &apiErr) && apiErr.ErrorCode() == "BucketAlreadyOwnedByYou"
}
