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
	"net/http"

	"github.com/cowdogmoo/pubami/cloud/ami"
	"github.com/cowdogmoo/pubami/errors"
	"github.com/cowdogmoo/pubami/logging"
	"github.com/cowdogmoo/pubami/pushitem"
	"github.com/cowdogmoo/pubami/rhsm"
)

// PushOutcome is the result of updating an existing image record.
type PushOutcome int

// Update outcomes.
const (
	Updated PushOutcome = iota
	NotFound
	Failed
)

func (o PushOutcome) String() string {
	switch o {
	case Updated:
		return "updated"
	case NotFound:
		return "not found"
	default:
		return "failed"
	}
}

// MetadataSynchronizer mirrors cloud side changes into the metadata service.
type MetadataSynchronizer struct {
	api      rhsm.API
	gate     *MetadataGate
	provider string
}

// NewMetadataSynchronizer returns a synchronizer registering images for
// provider. Product names are resolved through gate.
func NewMetadataSynchronizer(api rhsm.API, gate *MetadataGate, provider string) *MetadataSynchronizer {
	return &MetadataSynchronizer{api: api, gate: gate, provider: provider}
}

// SyncPublished registers a freshly published image. The region is created
// first, then the image record is updated, or created when the update did
// not succeed.
func (s *MetadataSynchronizer) SyncPublished(ctx context.Context, item pushitem.Item, image ami.Image) error {
	region := item.Region

	logging.InfoContext(ctx, "Creating region %s [%s]", region, s.provider)
	resp, err := s.api.CreateRegion(ctx, region, s.provider)
	if err != nil {
		return errors.Wrap("create region", region, err)
	}
	if !resp.OK() {
		logging.ErrorContext(ctx, "Failed creating region %s for image %s", region, image.ID)
		return resp.Err()
	}

	req, err := s.imageRequest(ctx, item, image.ID, image.Name)
	if err != nil {
		return err
	}

	logging.InfoContext(ctx, "Attempting to update the existing image %s in rhsm", image.ID)
	outcome, resp, err := s.update(ctx, req)
	if err != nil {
		return errors.Wrap("update image", image.ID, err)
	}

	if outcome != Updated {
		logging.WarnContext(ctx, "Update to rhsm failed for %s with error code %d (%s). Image might not be present on rhsm for update.",
			image.ID, resp.StatusCode, outcome)

		logging.InfoContext(ctx, "Attempting to create new image %s in rhsm", image.ID)
		req.Region = region
		resp, err = s.api.CreateImage(ctx, req)
		if err != nil {
			return errors.Wrap("create image", image.ID, err)
		}
		if !resp.OK() {
			logging.ErrorContext(ctx, "Failed to create image %s in rhsm with error code %d: %s",
				image.ID, resp.StatusCode, logging.RedactSensitivePatterns(string(resp.Body)))
			return resp.Err()
		}
	}

	logging.InfoContext(ctx, "Successfully registered image %s with rhsm", image.ID)
	return nil
}

// HideImage marks an image invisible. A non-ok response is returned as an
// *rhsm.HTTPError.
func (s *MetadataSynchronizer) HideImage(ctx context.Context, item pushitem.Item) error {
	req, err := s.imageRequest(ctx, item, item.ImageID, item.Name)
	if err != nil {
		return err
	}
	req.Status = rhsm.StatusInvisible

	logging.InfoContext(ctx, "Attempting to update the existing image %s in rhsm", item.ImageID)
	resp, err := s.api.UpdateImage(ctx, req)
	if err != nil {
		return errors.Wrap("update image", item.ImageID, err)
	}
	if !resp.OK() {
		logging.ErrorContext(ctx, "Failed updating image %s", item.ImageID)
		return resp.Err()
	}

	logging.InfoContext(ctx, "Existing image %s successfully updated in rhsm", item.ImageID)
	return nil
}

func (s *MetadataSynchronizer) update(ctx context.Context, req rhsm.ImageRequest) (PushOutcome, *rhsm.Response, error) {
	resp, err := s.api.UpdateImage(ctx, req)
	switch {
	case err != nil:
		return Failed, nil, err
	case resp.OK():
		return Updated, resp, nil
	case resp.StatusCode == http.StatusNotFound:
		return NotFound, resp, nil
	default:
		return Failed, resp, nil
	}
}

func (s *MetadataSynchronizer) imageRequest(ctx context.Context, item pushitem.Item, imageID, imageName string) (rhsm.ImageRequest, error) {
	product, err := s.gate.ResolveProduct(ctx, releaseProduct(item), item.Type)
	if err != nil {
		return rhsm.ImageRequest{}, err
	}

	req := rhsm.ImageRequest{
		ImageID:   imageID,
		ImageName: imageName,
		Product:   product.Name,
	}
	if r := item.Release; r != nil {
		req.Arch = r.Arch
		req.Version = r.Version
		req.Variant = r.Variant
	}
	return req, nil
}
