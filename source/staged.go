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

package source

import (
	"context"
	"encoding/json"
	"fmt"
	"iter"
	"os"
	"path/filepath"
	"strings"

	"github.com/cowdogmoo/pubami/pushitem"
	"gopkg.in/yaml.v3"
)

// StagedFileNames are looked up, in order, inside a staging directory.
var StagedFileNames = []string{"pushitems.yaml", "pushitems.yml", "pushitems.json"}

// Staged reads descriptors from a staging directory or a single staging file.
type Staged struct {
	location string
	path     string
}

// NewStaged returns a Source for the staging directory or file at path.
func NewStaged(location, path string) *Staged {
	return &Staged{location: location, path: path}
}

// Location implements Source.
func (s *Staged) Location() string { return s.location }

// Descriptors implements Source.
func (s *Staged) Descriptors(ctx context.Context) iter.Seq2[Descriptor, error] {
	return func(yield func(Descriptor, error) bool) {
		file, err := s.resolveFile()
		if err != nil {
			yield(Descriptor{}, err)
			return
		}

		doc, err := readDocument(file)
		if err != nil {
			yield(Descriptor{}, err)
			return
		}

		baseDir := filepath.Dir(file)
		for _, desc := range doc.Payload.Items {
			if err := ctx.Err(); err != nil {
				yield(Descriptor{}, err)
				return
			}
			if !yield(normalize(desc, baseDir), nil) {
				return
			}
		}
	}
}

func (s *Staged) resolveFile() (string, error) {
	info, err := os.Stat(s.path)
	if err != nil {
		return "", fmt.Errorf("staging location %s: %w", s.path, err)
	}
	if !info.IsDir() {
		return s.path, nil
	}

	for _, name := range StagedFileNames {
		candidate := filepath.Join(s.path, name)
		if _, err := os.Stat(candidate); err == nil {
			return candidate, nil
		}
	}
	return "", fmt.Errorf("no %s found in staging directory %s", strings.Join(StagedFileNames, ", "), s.path)
}

func readDocument(file string) (*Document, error) {
	data, err := os.ReadFile(file)
	if err != nil {
		return nil, err
	}

	var doc Document
	if strings.EqualFold(filepath.Ext(file), ".json") {
		err = json.Unmarshal(data, &doc)
	} else {
		err = yaml.Unmarshal(data, &doc)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to parse %s: %w", file, err)
	}
	return &doc, nil
}

// normalize fills in defaults for a freshly read descriptor.
func normalize(desc Descriptor, baseDir string) Descriptor {
	if desc.Kind == "" {
		desc.Kind = KindAMI
	}
	desc.Kind = strings.ToLower(desc.Kind)
	if desc.State == "" {
		desc.State = pushitem.StatePending
	}
	if desc.Src != "" && !filepath.IsAbs(desc.Src) {
		desc.Src = filepath.Join(baseDir, desc.Src)
	}
	return desc
}
