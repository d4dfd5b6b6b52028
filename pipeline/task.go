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
	"errors"
	"sort"
)

// ErrTaskFailed is returned when a task attempted all of its work but some of
// it failed. The command line exits with a distinct code for it.
var ErrTaskFailed = errors.New("task failed")

// Report is what a task run produced.
type Report struct {
	Results []OperationResult
	// Failed is set when at least one unit did not complete.
	Failed bool
}

// accountsFor returns the accounts configured for region, falling back to the
// "default" entry. Values are ordered by their key.
func accountsFor(accounts map[string]map[string]string, region string) []string {
	byName, ok := accounts[region]
	if !ok {
		byName = accounts["default"]
	}

	names := make([]string, 0, len(byName))
	for name := range byName {
		names = append(names, name)
	}
	sort.Strings(names)

	ids := make([]string, 0, len(names))
	for _, name := range names {
		ids = append(ids, byName[name])
	}
	return ids
}

func snapshotAccountsFor(accounts map[string][]string, region string) []string {
	if ids, ok := accounts[region]; ok {
		return ids
	}
	return accounts["default"]
}
