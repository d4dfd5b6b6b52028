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

// Package pipeline runs AMI push and delete tasks. Push items are split into
// one batch per region, batches run concurrently on a bounded pool and every
// batch processes its work units in order, retrying the whole batch on
// failure while skipping units that already finished.
package pipeline

import (
	"github.com/cowdogmoo/pubami/pushitem"
)

// WorkUnit is one push item headed for one destination. It is owned by the
// worker processing its region.
type WorkUnit struct {
	Item   pushitem.Item
	Dest   string
	Region string
	State  pushitem.State
	// ImageID is set only by a successful publish or delete in this run. The
	// descriptor's image id stays on Item.
	ImageID    string
	ImageName  string
	SnapshotID string
}

func newWorkUnit(item pushitem.Item, dest string) *WorkUnit {
	return &WorkUnit{
		Item:   item,
		Dest:   dest,
		Region: item.Region,
		State:  pushitem.StatePending,
	}
}

// Result returns the push item reflecting the unit's outcome.
func (u *WorkUnit) Result() pushitem.Item {
	item := u.Item.WithState(u.State)
	if u.ImageID != "" {
		item = item.WithImageID(u.ImageID)
	}
	return item
}

// RegionBatch is the ordered work of one region.
type RegionBatch struct {
	Region string
	Units  []*WorkUnit
}

// Pending returns the units that still need processing.
func (b *RegionBatch) Pending() []*WorkUnit {
	var pending []*WorkUnit
	for _, unit := range b.Units {
		if !unit.State.Done() {
			pending = append(pending, unit)
		}
	}
	return pending
}

// Partition groups items by region. Every destination of an item yields its
// own unit, the region always comes from the item. Regions appear in the order
// they are first seen and units keep the input order inside a region.
func Partition(items []pushitem.Item) []*RegionBatch {
	var batches []*RegionBatch
	byRegion := make(map[string]*RegionBatch)

	for _, item := range items {
		for _, dest := range item.Dest {
			batch, ok := byRegion[item.Region]
			if !ok {
				batch = &RegionBatch{Region: item.Region}
				byRegion[item.Region] = batch
				batches = append(batches, batch)
			}
			batch.Units = append(batch.Units, newWorkUnit(item, dest))
		}
	}
	return batches
}

// CountUnits returns the number of units across batches.
func CountUnits(batches []*RegionBatch) int {
	n := 0
	for _, batch := range batches {
		n += len(batch.Units)
	}
	return n
}
