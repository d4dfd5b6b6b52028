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

package pipeline

import (
	"context"
	"errors"
	"testing"

	"github.com/cowdogmoo/pubami/cloud/ami"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCloudOperator_Publish(t *testing.T) {
	t.Parallel()

	provider := &mockProvider{}
	operator := NewCloudOperator(providersFor(provider))

	image, err := operator.Publish(context.Background(), "us-east-1", ami.PublishingMetadata{ImageName: "rhel"})
	require.NoError(t, err)
	assert.Equal(t, ami.Image{ID: "ami-rhel", Name: "rhel"}, image)

	cause := errors.New("InvalidParameter")
	provider.PublishFunc = func(context.Context, ami.PublishingMetadata) (ami.Image, error) {
		return ami.Image{}, cause
	}
	_, err = operator.Publish(context.Background(), "us-east-1", ami.PublishingMetadata{ImageName: "rhel"})

	var publishErr *PublishError
	require.ErrorAs(t, err, &publishErr)
	assert.Equal(t, "us-east-1", publishErr.Region)
	assert.Equal(t, "rhel", publishErr.Name)
	assert.ErrorIs(t, err, cause)
	assert.Equal(t, "publish rhel in us-east-1: InvalidParameter", err.Error())
}

func TestCloudOperator_Delete(t *testing.T) {
	t.Parallel()

	provider := &mockProvider{}
	operator := NewCloudOperator(providersFor(provider))

	result, err := operator.Delete(context.Background(), "us-east-1", ami.DeleteMetadata{ImageID: "ami-1"})
	require.NoError(t, err)
	assert.Equal(t, ami.DeleteResult{ImageID: "ami-1", SnapshotID: "snap-ami-1"}, result)

	cause := errors.New("UnauthorizedOperation")
	provider.DeleteFunc = func(context.Context, ami.DeleteMetadata) (ami.DeleteResult, error) {
		return ami.DeleteResult{}, cause
	}
	ctx, _ := testContext(t)
	_, err = operator.Delete(ctx, "us-east-1", ami.DeleteMetadata{ImageID: "ami-1"})

	var deleteErr *DeleteError
	require.ErrorAs(t, err, &deleteErr)
	assert.Equal(t, "ami-1", deleteErr.ImageID)
	assert.ErrorIs(t, err, cause)
}

func TestCloudOperator_ProviderUnavailable(t *testing.T) {
	t.Parallel()

	pool := ami.NewClientPoolWithFactory(func(context.Context, string) (ami.Provider, error) {
		return nil, errors.New("no credentials")
	})
	operator := NewCloudOperator(pool)

	_, err := operator.Publish(context.Background(), "us-east-1", ami.PublishingMetadata{ImageName: "rhel"})
	var publishErr *PublishError
	require.ErrorAs(t, err, &publishErr)

	_, err = operator.Delete(context.Background(), "us-east-1", ami.DeleteMetadata{ImageID: "ami-1"})
	var deleteErr *DeleteError
	require.ErrorAs(t, err, &deleteErr)
}
