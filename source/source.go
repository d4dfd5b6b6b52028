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

// Package source reads push item descriptors from staging locations.
package source

import (
	"context"
	"fmt"
	"iter"
	"path/filepath"
	"strings"

	"github.com/cowdogmoo/pubami/errors"
	"github.com/cowdogmoo/pubami/logging"
	"github.com/cowdogmoo/pubami/pushitem"
)

// KindAMI is the descriptor kind handled by pubami.
const KindAMI = "ami"

// Descriptor is a push item as written in a staging file. Kind tells what
// sort of content the item is; only KindAMI items are pushed.
type Descriptor struct {
	Kind          string `json:"kind,omitempty" yaml:"kind" jsonschema:"enum=ami,enum=rpm,enum=file,enum=container"`
	pushitem.Item `yaml:",inline"`
}

// Header identifies the staging file format.
type Header struct {
	Version string `json:"version" yaml:"version"`
}

// Payload holds the staged descriptors.
type Payload struct {
	Items []Descriptor `json:"items" yaml:"items"`
}

// Document is the top level of a staging file.
type Document struct {
	Header  Header  `json:"header" yaml:"header"`
	Payload Payload `json:"payload" yaml:"payload"`
}

// Source yields descriptors lazily. Reading starts on the first iteration.
type Source interface {
	// Location is the string the source was resolved from.
	Location() string
	// Descriptors iterates the staged descriptors. Iteration stops after the
	// first error.
	Descriptors(ctx context.Context) iter.Seq2[Descriptor, error]
}

// Get resolves a location to a Source. Supported forms are
// "staged:<path>" and a bare filesystem path.
func Get(location string) (Source, error) {
	scheme, path := splitLocation(location)
	switch scheme {
	case "", "staged":
		if path == "" {
			return nil, fmt.Errorf("empty staging path in source %q", location)
		}
		return NewStaged(location, path), nil
	default:
		return nil, fmt.Errorf("unsupported source type %q in %q (supported: staged)", scheme, location)
	}
}

func splitLocation(location string) (string, string) {
	if filepath.IsAbs(location) {
		return "", location
	}
	scheme, rest, found := strings.Cut(location, ":")
	if !found {
		return "", location
	}
	return scheme, rest
}

// LoadAMIItems reads every location and returns the AMI items in order.
// Descriptors of any other kind are dropped with a warning.
func LoadAMIItems(ctx context.Context, locations []string) ([]pushitem.Item, error) {
	var items []pushitem.Item

	for _, location := range locations {
		src, err := Get(location)
		if err != nil {
			return nil, err
		}

		for desc, err := range src.Descriptors(ctx) {
			if err != nil {
				return nil, errors.Wrap("read push items", location, err)
			}
			if desc.Kind != KindAMI {
				logging.WarnContext(ctx, "Push Item %s at %s is not an AmiPushItem. Dropping it from the queue",
					desc.Name, desc.Src)
				continue
			}
			items = append(items, desc.Item)
		}
	}

	return items, nil
}
