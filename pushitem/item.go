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

// Package pushitem holds the immutable description of a single AMI push item
// as read from a staging area and as reported back once processed.
package pushitem

import (
	"strconv"
	"strings"
)

// State is the processing state of a push item.
type State string

// Push item states.
const (
	StatePending     State = "PENDING"
	StatePushed      State = "PUSHED"
	StateNotPushed   State = "NOTPUSHED"
	StateDeleted     State = "DELETED"
	StateMissing     State = "MISSING"
	StateInvalidFile State = "INVALIDFILE"
)

// Done reports whether a unit in this state must not be processed again.
// NOTPUSHED is not included: a failed push may be attempted again.
func (s State) Done() bool {
	switch s {
	case StatePushed, StateDeleted, StateMissing:
		return true
	}
	return false
}

// Release describes the product release an image belongs to.
type Release struct {
	Product     string `json:"product,omitempty" yaml:"product"`
	Version     string `json:"version,omitempty" yaml:"version"`
	Variant     string `json:"variant,omitempty" yaml:"variant"`
	Arch        string `json:"arch,omitempty" yaml:"arch"`
	Date        Date   `json:"date" yaml:"date"`
	Respin      int    `json:"respin" yaml:"respin"`
	Type        string `json:"type,omitempty" yaml:"type"`
	BaseProduct string `json:"base_product,omitempty" yaml:"base_product"`
	BaseVersion string `json:"base_version,omitempty" yaml:"base_version"`
}

// BillingCodes names the billing products attached to a registered image.
type BillingCodes struct {
	Name  string   `json:"name,omitempty" yaml:"name"`
	Codes []string `json:"codes,omitempty" yaml:"codes"`
}

// Item is one AMI to publish or delete. Values are never modified in place;
// use the With* helpers to derive an updated copy.
type Item struct {
	Name            string        `json:"name" yaml:"name"`
	State           State         `json:"state,omitempty" yaml:"state"`
	Src             string        `json:"src,omitempty" yaml:"src"`
	Dest            []string      `json:"dest,omitempty" yaml:"dest"`
	Origin          string        `json:"origin,omitempty" yaml:"origin"`
	MD5Sum          string        `json:"md5sum,omitempty" yaml:"md5sum"`
	SHA256Sum       string        `json:"sha256sum,omitempty" yaml:"sha256sum"`
	Description     string        `json:"description,omitempty" yaml:"description"`
	Region          string        `json:"region,omitempty" yaml:"region"`
	Type            string        `json:"type,omitempty" yaml:"type"`
	ImageID         string        `json:"image_id,omitempty" yaml:"image_id"`
	Release         *Release      `json:"release,omitempty" yaml:"release"`
	Virtualization  string        `json:"virtualization,omitempty" yaml:"virtualization"`
	Volume          string        `json:"volume,omitempty" yaml:"volume"`
	RootDevice      string        `json:"root_device,omitempty" yaml:"root_device"`
	BillingCodes    *BillingCodes `json:"billing_codes,omitempty" yaml:"billing_codes"`
	BootMode        string        `json:"boot_mode,omitempty" yaml:"boot_mode"`
	PublicImage     *bool         `json:"public_image,omitempty" yaml:"public_image"`
	SriovNetSupport string        `json:"sriov_net_support,omitempty" yaml:"sriov_net_support"`
	EnaSupport      *bool         `json:"ena_support,omitempty" yaml:"ena_support"`
}

// WithState returns a copy of the item in the given state.
func (i Item) WithState(state State) Item {
	i.State = state
	return i
}

// WithImageID returns a copy of the item carrying the given image id.
func (i Item) WithImageID(id string) Item {
	i.ImageID = id
	return i
}

// IsPublic reports whether the image should be released to everyone. An
// explicit public_image flag wins; without one, hourly images are public.
func (i Item) IsPublic() bool {
	if i.PublicImage != nil {
		return *i.PublicImage
	}
	return i.Type == "hourly"
}

// ENA returns the ena_support flag, false when unset.
func (i Item) ENA() bool {
	return i.EnaSupport != nil && *i.EnaSupport
}

// ImageName builds the AMI name from the release metadata, for example
// RHEL-8.5_HVM_GA-20211012-x86_64-1-Hourly2-GP2.
func (i Item) ImageName() string {
	r := i.Release
	if r == nil {
		return i.Name
	}

	var parts []string
	if r.BaseProduct != "" {
		parts = append(parts, r.BaseProduct)
		if r.BaseVersion != "" {
			parts = append(parts, r.BaseVersion)
		}
	}
	parts = append(parts, r.Product)

	var underscored []string
	if r.Version != "" {
		underscored = append(underscored, r.Version)
	}
	underscored = append(underscored, strings.ToUpper(i.Virtualization))
	if r.Type != "" {
		underscored = append(underscored, strings.ToUpper(r.Type))
	}
	parts = append(parts, strings.Join(underscored, "_"))

	parts = append(parts, r.Date.String(), r.Arch, strconv.Itoa(r.Respin))
	if i.BillingCodes != nil {
		parts = append(parts, i.BillingCodes.Name)
	}
	parts = append(parts, strings.ToUpper(i.Volume))

	return strings.Join(parts, "-")
}
