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

// Package ami publishes and removes Amazon Machine Images.
//
// Publishing follows the path a raw disk image takes to become a launchable
// AMI in one region:
//
//  1. upload the file to the region's storage container (an S3 bucket)
//  2. import the uploaded object as an EBS snapshot
//  3. register the snapshot as an AMI
//  4. grant launch permissions to accounts and groups
//
// Each step is skipped when its result already exists, so publishing the
// same image twice only updates launch permissions. This is what lets a
// failed region batch be retried without repeating expensive uploads.
//
// # Usage
//
//	pool := ami.NewClientPool(ami.ClientConfig{
//	    AccessKeyID:     accessID,
//	    SecretAccessKey: secretKey,
//	})
//
//	provider, err := pool.ForRegion(ctx, "us-east-1")
//	if err != nil {
//	    return err
//	}
//	image, err := provider.Publish(ctx, meta)
//
// # Error Handling
//
// AWS failures are passed through [WrapWithRemediation], which attaches a
// hint for well known problems such as missing permissions, a missing
// vmimport service role or duplicate image names.
package ami
