package hierarchy

import (
	"context"
	"sync"
	"time"

	"github.com/roksva123/go-devops-report/internal/model"
)

// fakeTracker is an in-memory link graph serving both ChildSource and
// ParentLookup.
type fakeTracker struct {
	mu       sync.Mutex
	items    map[int]*model.WorkItem
	children map[int][]int
	parents  map[int]int

	childErr  map[int]error
	parentErr map[int]error
	detailErr error
	// batchErr fails any detail batch that contains the keyed id.
	batchErr map[int]error

	childCalls  map[int]int
	parentCalls map[int]int
}

func newFakeTracker() *fakeTracker {
	return &fakeTracker{
		items:       make(map[int]*model.WorkItem),
		children:    make(map[int][]int),
		parents:     make(map[int]int),
		childErr:    make(map[int]error),
		parentErr:   make(map[int]error),
		batchErr:    make(map[int]error),
		childCalls:  make(map[int]int),
		parentCalls: make(map[int]int),
	}
}

func (f *fakeTracker) add(id int, itemType string, est, done float64) *fakeTracker {
	f.items[id] = &model.WorkItem{
		ID:             id,
		Type:           itemType,
		Title:          itemType + " title",
		EstimatedHours: est,
		CompletedWork:  done,
		RemainingWork:  est - done,
		CreatedDate:    time.Date(2024, 3, 1, 0, 0, 0, 0, time.UTC),
		CustomFields:   model.CustomFields{},
	}
	return f
}

func (f *fakeTracker) link(parent int, children ...int) *fakeTracker {
	f.children[parent] = append(f.children[parent], children...)
	for _, c := range children {
		if _, ok := f.parents[c]; !ok {
			f.parents[c] = parent
		}
	}
	return f
}

// fresh returns a copy of the stored record, the way each fetch decodes a
// new value.
func (f *fakeTracker) fresh(id int) *model.WorkItem {
	cp := *f.items[id]
	return &cp
}

func (f *fakeTracker) FetchDirectChildren(_ context.Context, id int) ([]int, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.childCalls[id]++
	if err := f.childErr[id]; err != nil {
		return nil, err
	}
	return append([]int{}, f.children[id]...), nil
}

func (f *fakeTracker) FetchDetails(_ context.Context, ids []int) ([]*model.WorkItem, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.detailErr != nil {
		return nil, f.detailErr
	}
	for _, id := range ids {
		if err := f.batchErr[id]; err != nil {
			return nil, err
		}
	}
	out := make([]*model.WorkItem, 0, len(ids))
	for _, id := range ids {
		if _, ok := f.items[id]; ok {
			out = append(out, f.fresh(id))
		}
	}
	return out, nil
}

func (f *fakeTracker) FetchParent(_ context.Context, id int) (int, bool, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.parentCalls[id]++
	if err := f.parentErr[id]; err != nil {
		return 0, false, err
	}
	p, ok := f.parents[id]
	return p, ok, nil
}

func (f *fakeTracker) roots(ids ...int) []*model.WorkItem {
	out := make([]*model.WorkItem, 0, len(ids))
	for _, id := range ids {
		out = append(out, f.fresh(id))
	}
	return out
}

func byID(items []*model.WorkItem) map[int]*model.WorkItem {
	m := make(map[int]*model.WorkItem, len(items))
	for _, it := range items {
		m[it.ID] = it
	}
	return m
}

func ids(items []*model.WorkItem) []int {
	out := make([]int, 0, len(items))
	for _, it := range items {
		out = append(out, it.ID)
	}
	return out
}
