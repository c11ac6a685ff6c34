// Package hierarchy rebuilds work-item trees from their roots, rolls effort
// up to Epics, Features and Stories, and classifies items by ancestry.
package hierarchy

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"

	"golang.org/x/sync/errgroup"

	"github.com/roksva123/go-devops-report/internal/devops"
	"github.com/roksva123/go-devops-report/internal/model"
)

// ChildSource is the part of the remote client the traversal needs.
type ChildSource interface {
	FetchDirectChildren(ctx context.Context, id int) ([]int, error)
	FetchDetails(ctx context.Context, ids []int) ([]*model.WorkItem, error)
}

// DateFilter restricts discovered items by creation date. Only items whose
// type is listed in Types are checked; an empty Types checks every item.
type DateFilter struct {
	Range model.DateRange
	Types []string
}

func (f *DateFilter) excludes(item *model.WorkItem) bool {
	if f == nil || f.Range.IsZero() {
		return false
	}
	if len(f.Types) > 0 {
		applies := false
		for _, t := range f.Types {
			if strings.EqualFold(strings.TrimSpace(t), strings.TrimSpace(item.Type)) {
				applies = true
				break
			}
		}
		if !applies {
			return false
		}
	}
	return !f.Range.Contains(item.CreatedDate)
}

type Option func(*Traverser)

// WithWorkers sets how many child-link lookups run at once. Default 1.
func WithWorkers(n int) Option {
	return func(t *Traverser) {
		if n > 0 {
			t.workers = n
		}
	}
}

// WithDateFilter drops items outside f together with their subtree.
func WithDateFilter(f DateFilter) Option {
	return func(t *Traverser) {
		t.filter = &f
	}
}

// Traverser discovers descendants breadth-first. It holds no per-call state
// and may be reused.
type Traverser struct {
	source  ChildSource
	logger  *slog.Logger
	workers int
	filter  *DateFilter
}

func NewTraverser(source ChildSource, logger *slog.Logger, opts ...Option) *Traverser {
	if logger == nil {
		logger = slog.Default()
	}
	t := &Traverser{source: source, logger: logger, workers: 1}
	for _, opt := range opts {
		opt(t)
	}
	return t
}

// arena is the item pool of one Traverse call.
type arena struct {
	items []*model.WorkItem
	byID  map[int]*model.WorkItem
}

func newArena() *arena {
	return &arena{byID: make(map[int]*model.WorkItem)}
}

func (a *arena) add(item *model.WorkItem) bool {
	if _, ok := a.byID[item.ID]; ok {
		return false
	}
	a.byID[item.ID] = item
	a.items = append(a.items, item)
	return true
}

// Traverse discovers every descendant of roots, aggregates effort and
// returns the items bucketed by kind. Each item appears once even when it is
// linked from several parents; the first parent to reach it keeps it.
func (t *Traverser) Traverse(ctx context.Context, roots []*model.WorkItem, customFields []string) (*model.Hierarchy, error) {
	pool := newArena()
	frontier := make([]int, 0, len(roots))
	for _, r := range roots {
		if r != nil && pool.add(r) {
			frontier = append(frontier, r.ID)
		}
	}

	processed := make(map[int]bool)
	excluded := make(map[int]bool)
	depth := 0
	for len(frontier) > 0 {
		parents := make([]int, 0, len(frontier))
		for _, id := range frontier {
			if !processed[id] {
				processed[id] = true
				parents = append(parents, id)
			}
		}

		children, err := t.expand(ctx, parents)
		if err != nil {
			return nil, err
		}

		// Claim each unseen child for the first parent that lists it.
		var newIDs []int
		parentOf := make(map[int]int)
		for i, parentID := range parents {
			for _, childID := range children[i] {
				if _, seen := pool.byID[childID]; seen || excluded[childID] {
					continue
				}
				if _, claimed := parentOf[childID]; claimed {
					continue
				}
				parentOf[childID] = parentID
				newIDs = append(newIDs, childID)
			}
		}
		if len(newIDs) == 0 {
			break
		}

		got, err := t.fetchLevel(ctx, parents, newIDs, parentOf)
		if err != nil {
			return nil, fmt.Errorf("fetch details at depth %d: %w", depth+1, err)
		}

		next := make([]int, 0, len(newIDs))
		for _, id := range newIDs {
			child, ok := got[id]
			if !ok {
				t.logger.Debug("child not available", "id", id, "parent", parentOf[id])
				continue
			}
			if t.filter.excludes(child) {
				excluded[id] = true
				t.logger.Debug("child outside date range", "id", id, "type", child.Type)
				continue
			}
			child.SetParent(pool.byID[parentOf[id]])
			pool.add(child)
			next = append(next, id)
		}

		t.logger.Debug("traversal level done", "depth", depth+1, "parents", len(parents), "discovered", len(next))
		frontier = next
		depth++
	}

	Aggregate(pool.items)
	h := Partition(pool.items)
	h.CustomFields = append([]string{}, customFields...)
	t.logger.Info("hierarchy built",
		"roots", len(roots),
		"items", h.Len(),
		"features", len(h.Features),
		"stories", len(h.Stories),
		"leaf_items", len(h.LeafItems))
	return h, nil
}

// fetchLevel loads the details of one level's children. When the bulk call
// fails for a non-fatal reason each parent's children are fetched on their
// own, so a failing branch only leaves its own parent childless.
func (t *Traverser) fetchLevel(ctx context.Context, parents, newIDs []int, parentOf map[int]int) (map[int]*model.WorkItem, error) {
	got := make(map[int]*model.WorkItem, len(newIDs))
	details, err := t.source.FetchDetails(ctx, newIDs)
	if err == nil {
		for _, d := range details {
			got[d.ID] = d
		}
		return got, nil
	}
	if fatal(ctx, err) {
		return nil, err
	}
	t.logger.Warn("bulk detail fetch failed, retrying per parent", "count", len(newIDs), "error", err)

	groups := make(map[int][]int, len(parents))
	for _, id := range newIDs {
		groups[parentOf[id]] = append(groups[parentOf[id]], id)
	}
	results := make([][]*model.WorkItem, len(parents))

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(t.workers)
	for i, parentID := range parents {
		group := groups[parentID]
		if len(group) == 0 {
			continue
		}
		g.Go(func() error {
			items, err := t.source.FetchDetails(gctx, group)
			if err != nil {
				if fatal(gctx, err) {
					return fmt.Errorf("children of %d: %w", parentID, err)
				}
				t.logger.Warn("treating item as childless after detail fetch failure",
					"id", parentID, "children", len(group), "error", err)
				return nil
			}
			results[i] = items
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}
	for _, items := range results {
		for _, d := range items {
			got[d.ID] = d
		}
	}
	return got, nil
}

// expand looks up direct children of every parent. Non-fatal failures leave
// that parent childless.
func (t *Traverser) expand(ctx context.Context, parents []int) ([][]int, error) {
	out := make([][]int, len(parents))

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(t.workers)
	for i, id := range parents {
		g.Go(func() error {
			ids, err := t.source.FetchDirectChildren(gctx, id)
			if err != nil {
				if fatal(gctx, err) {
					return fmt.Errorf("fetch children of %d: %w", id, err)
				}
				t.logger.Warn("treating item as childless after lookup failure", "id", id, "error", err)
				return nil
			}
			out[i] = ids
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}
	return out, nil
}

func fatal(ctx context.Context, err error) bool {
	if devops.IsFatal(err) {
		return true
	}
	return ctx.Err() != nil || errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded)
}

// Partition buckets items by kind, preserving order. Buckets are never nil.
func Partition(items []*model.WorkItem) *model.Hierarchy {
	h := &model.Hierarchy{
		Epics:        []*model.WorkItem{},
		Features:     []*model.WorkItem{},
		Stories:      []*model.WorkItem{},
		LeafItems:    []*model.WorkItem{},
		CustomFields: []string{},
	}
	for _, item := range items {
		switch item.Kind() {
		case model.KindEpic:
			h.Epics = append(h.Epics, item)
		case model.KindFeature:
			h.Features = append(h.Features, item)
		case model.KindStory:
			h.Stories = append(h.Stories, item)
		default:
			h.LeafItems = append(h.LeafItems, item)
		}
	}
	return h
}
