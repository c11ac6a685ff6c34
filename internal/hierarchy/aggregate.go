package hierarchy

import (
	"sort"

	"github.com/roksva123/go-devops-report/internal/model"
)

// ChildIndex maps each parent id to the ids of items naming it as parent,
// in item order.
func ChildIndex(items []*model.WorkItem) map[int][]int {
	index := make(map[int][]int)
	for _, item := range items {
		if item.ParentID != nil && *item.ParentID != item.ID {
			index[*item.ParentID] = append(index[*item.ParentID], item.ID)
		}
	}
	return index
}

// Descendants returns the sorted transitive descendants of id. memo caches
// results across calls; visiting breaks cycles and must be empty between
// top-level calls. id itself is never part of the result. Results computed
// inside a cycle are only cached for the item the cycle closes on, since the
// others were cut short.
func Descendants(id int, index map[int][]int, memo map[int][]int, visiting map[int]bool) []int {
	out, _ := descendants(id, index, memo, visiting, make(map[int]int), 0)
	return out
}

// descendants also reports the shallowest stack level a back edge reached,
// or -1 when none did.
func descendants(id int, index, memo map[int][]int, visiting map[int]bool, level map[int]int, depth int) ([]int, int) {
	if d, ok := memo[id]; ok {
		return d, -1
	}
	if visiting[id] {
		return nil, level[id]
	}
	visiting[id] = true
	level[id] = depth
	defer func() {
		delete(visiting, id)
		delete(level, id)
	}()

	low := -1
	set := make(map[int]struct{})
	for _, child := range index[id] {
		set[child] = struct{}{}
		sub, back := descendants(child, index, memo, visiting, level, depth+1)
		for _, d := range sub {
			set[d] = struct{}{}
		}
		if back >= 0 && (low < 0 || back < low) {
			low = back
		}
	}
	delete(set, id)

	out := make([]int, 0, len(set))
	for d := range set {
		out = append(out, d)
	}
	sort.Ints(out)
	if low < 0 || low >= depth {
		memo[id] = out
		low = -1
	}
	return out, low
}

// Aggregate overwrites the effort of every Epic, Feature and Story with the
// sum over the leaf-kind items in its subtree. Intermediate levels are
// skipped so nothing is counted twice. Leaf items keep their own values.
func Aggregate(items []*model.WorkItem) {
	byID := make(map[int]*model.WorkItem, len(items))
	for _, item := range items {
		byID[item.ID] = item
	}
	index := ChildIndex(items)
	memo := make(map[int][]int)

	for _, item := range items {
		if item.Kind().IsLeaf() {
			item.Recompute()
			continue
		}
		var est, done, left float64
		for _, id := range Descendants(item.ID, index, memo, map[int]bool{}) {
			d, ok := byID[id]
			if !ok || !d.Kind().IsLeaf() {
				continue
			}
			est += d.EstimatedHours
			done += d.CompletedWork
			left += d.RemainingWork
		}
		item.SetEffort(est, done, left)
	}
}
