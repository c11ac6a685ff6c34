package hierarchy

import (
	"context"
	"errors"
	"log/slog"

	"github.com/roksva123/go-devops-report/internal/devops"
	"github.com/roksva123/go-devops-report/internal/model"
)

// ParentLookup resolves an item's hierarchy parent.
type ParentLookup interface {
	FetchParent(ctx context.Context, id int) (int, bool, error)
}

type parentEntry struct {
	id int
	ok bool
}

// Classifier labels items CAPEX when they are, or descend from, one of its
// category roots. Lookups and outcomes are cached for the classifier's
// lifetime. Not safe for concurrent use.
type Classifier struct {
	lookup  ParentLookup
	roots   map[int]bool
	logger  *slog.Logger
	parents map[int]parentEntry
	outcome map[int]bool
}

func NewClassifier(lookup ParentLookup, roots []*model.WorkItem, logger *slog.Logger) *Classifier {
	if logger == nil {
		logger = slog.Default()
	}
	c := &Classifier{
		lookup:  lookup,
		roots:   make(map[int]bool, len(roots)),
		logger:  logger,
		parents: make(map[int]parentEntry),
		outcome: make(map[int]bool),
	}
	for _, r := range roots {
		if r != nil {
			c.roots[r.ID] = true
		}
	}
	return c
}

// Classify labels every subject and returns the category's share of
// estimated hours. Items whose lineage cannot be resolved count as
// non-CAPEX; only an unauthorized credential or cancellation is returned.
func (c *Classifier) Classify(ctx context.Context, subjects []*model.WorkItem) (*model.Classification, error) {
	for _, s := range subjects {
		if s != nil && s.ParentID != nil {
			c.parents[s.ID] = parentEntry{id: *s.ParentID, ok: true}
		}
	}

	res := &model.Classification{}
	for _, s := range subjects {
		if s == nil {
			continue
		}
		label, err := c.Label(ctx, s)
		if err != nil {
			return nil, err
		}
		res.TotalHours += s.EstimatedHours
		if label == model.CapexLabel {
			res.Members++
			res.CategoryHours += s.EstimatedHours
		} else {
			res.NonMembers++
		}
	}
	if res.TotalHours > 0 {
		res.Proportion = res.CategoryHours / res.TotalHours
	}
	c.logger.Info("classification done",
		"subjects", len(subjects),
		"members", res.Members,
		"proportion", res.Proportion)
	return res, nil
}

// Label sets and returns item's classification.
func (c *Classifier) Label(ctx context.Context, item *model.WorkItem) (string, error) {
	if item.ParentID != nil {
		if _, ok := c.parents[item.ID]; !ok {
			c.parents[item.ID] = parentEntry{id: *item.ParentID, ok: true}
		}
	}
	member, err := c.belongs(ctx, item.ID)
	if err != nil {
		return "", err
	}
	item.CapexClassification = model.NonCapexLabel
	if member {
		item.CapexClassification = model.CapexLabel
	}
	return item.CapexClassification, nil
}

func (c *Classifier) belongs(ctx context.Context, id int) (bool, error) {
	if len(c.roots) == 0 {
		return false, nil
	}

	var chain []int
	visited := make(map[int]bool)
	result := false
	cur := id
walk:
	for {
		if c.roots[cur] {
			result = true
			break
		}
		if known, ok := c.outcome[cur]; ok {
			result = known
			break
		}
		if visited[cur] {
			c.logger.Warn("cycle in parent chain", "id", id, "at", cur)
			break
		}
		visited[cur] = true
		chain = append(chain, cur)

		parent, ok, err := c.parentOf(ctx, cur)
		switch {
		case err != nil:
			if errors.Is(err, devops.ErrUnauthorized) || ctx.Err() != nil {
				return false, err
			}
			c.logger.Warn("parent lookup failed, classifying as non-CAPEX", "id", id, "at", cur, "error", err)
			break walk
		case !ok:
			break walk
		}
		cur = parent
	}

	for _, n := range chain {
		c.outcome[n] = result
	}
	return result, nil
}

func (c *Classifier) parentOf(ctx context.Context, id int) (int, bool, error) {
	if p, ok := c.parents[id]; ok {
		return p.id, p.ok, nil
	}
	parent, ok, err := c.lookup.FetchParent(ctx, id)
	if err != nil {
		return 0, false, err
	}
	c.parents[id] = parentEntry{id: parent, ok: ok}
	return parent, ok, nil
}
