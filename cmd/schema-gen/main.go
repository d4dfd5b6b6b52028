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

// Package main generates a JSON schema for pubami staging files.
// The schema enables editor validation of staged AMI push items.
package main

import (
	"encoding/json"
	"flag"
	"fmt"
	"os"
	"path/filepath"

	"github.com/cowdogmoo/pubami/config"
	"github.com/cowdogmoo/pubami/source"
	"github.com/invopop/jsonschema"
)

var (
	output = flag.String("o", "schema/pubami-staging.json", "Output path for JSON schema")
)

func main() {
	flag.Parse()

	if err := run(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

func run() error {
	reflector := jsonschema.Reflector{
		ExpandedStruct:            true,
		AllowAdditionalProperties: false,
	}

	// Field descriptions come from the Go doc comments of the staging types.
	if err := reflector.AddGoComments("github.com/cowdogmoo/pubami", "./"); err != nil {
		fmt.Fprintf(os.Stderr, "Warning: failed to extract type-level comments: %v\n", err)
	}

	schema := reflector.Reflect(&source.Document{})
	schema.ID = jsonschema.ID("https://pubami.dev/schema/staging.json")
	schema.Title = "pubami Staging File"
	schema.Description = "Schema for staged AMI push item files"
	schema.Examples = []any{
		map[string]any{
			"header": map[string]any{"version": "0.2"},
			"payload": map[string]any{
				"items": []any{
					map[string]any{
						"kind": source.KindAMI,
						"name": "rhel-8.5-x86_64.raw",
						"src":  "rhel-8.5-x86_64.raw",
						"dest": []string{"us-east-1", "eu-west-1"},
						"type": "hourly",
						"release": map[string]any{
							"product": "RHEL",
							"version": "8.5",
							"arch":    "x86_64",
							"date":    "2021-10-12",
							"respin":  1,
							"type":    "GA",
						},
						"virtualization": "hvm",
						"volume":         "gp2",
						"root_device":    "/dev/sda1",
						"billing_codes": map[string]any{
							"name":  "Hourly2",
							"codes": []string{"bp-6fa54006"},
						},
					},
				},
			},
		},
	}

	data, err := json.MarshalIndent(schema, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to marshal schema: %w", err)
	}

	dir := filepath.Dir(*output)
	if err := os.MkdirAll(dir, config.DirPermReadWriteExec); err != nil {
		return fmt.Errorf("failed to create output directory: %w", err)
	}

	data = append(data, '\n')
	if err := os.WriteFile(*output, data, config.FilePermReadWrite); err != nil {
		return fmt.Errorf("failed to write schema file: %w", err)
	}

	fmt.Printf("✓ Generated JSON schema: %s\n", *output)
	return nil
}
