package devops

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"strconv"
	"strings"

	"golang.org/x/sync/errgroup"

	"github.com/roksva123/go-devops-report/internal/model"
)

// RunQuery executes a structured query and returns matching ids. No matches
// is an empty slice, not an error.
func (c *Client) RunQuery(ctx context.Context, q model.ItemQuery) ([]int, error) {
	wiql, err := BuildQuery(q)
	if err != nil {
		return nil, err
	}
	c.logger.Debug("running query", "wiql", wiql)

	body, err := c.do(ctx, request{
		op:     "run query",
		method: http.MethodPost,
		path:   "wit/wiql",
		body:   map[string]string{"query": wiql},
	})
	if err != nil {
		return nil, err
	}

	var out wiqlResponse
	if err := json.Unmarshal(body, &out); err != nil {
		return nil, formatError("run query", err)
	}
	ids := make([]int, 0, len(out.WorkItems))
	for _, ref := range out.WorkItems {
		ids = append(ids, ref.ID)
	}
	c.logger.Info("query matched", "type", q.Type, "count", len(ids))
	return ids, nil
}

// FetchDetails fetches full records for ids in batches of at most BatchSize.
// Results keep the order of ids; ids the service no longer knows are omitted.
func (c *Client) FetchDetails(ctx context.Context, ids []int) ([]*model.WorkItem, error) {
	ids = dedupe(ids)
	if len(ids) == 0 {
		return []*model.WorkItem{}, nil
	}

	batches := chunk(ids, c.cfg.BatchSize)
	results := make([][]*model.WorkItem, len(batches))

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(c.cfg.Workers)
	for i, batch := range batches {
		g.Go(func() error {
			items, err := c.fetchBatch(gctx, batch)
			if err != nil {
				return err
			}
			results[i] = items
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}

	out := make([]*model.WorkItem, 0, len(ids))
	for _, items := range results {
		out = append(out, items...)
	}
	return out, nil
}

func (c *Client) fetchBatch(ctx context.Context, ids []int) ([]*model.WorkItem, error) {
	parts := make([]string, len(ids))
	for i, id := range ids {
		parts[i] = strconv.Itoa(id)
	}
	body, err := c.do(ctx, request{
		op:     "fetch details",
		method: http.MethodGet,
		path:   "wit/workitems",
		query: url.Values{
			"ids":         {strings.Join(parts, ",")},
			"$expand":     {"all"},
			"errorPolicy": {"omit"},
		},
		idempotent: true,
	})
	if err != nil {
		return nil, err
	}

	var out workItemsResponse
	if err := json.Unmarshal(body, &out); err != nil {
		return nil, formatError("fetch details", err)
	}
	items := make([]*model.WorkItem, 0, len(out.Value))
	for _, raw := range out.Value {
		// errorPolicy=omit leaves nulls for deleted or inaccessible ids.
		if raw == nil {
			continue
		}
		if raw.ID <= 0 || raw.Fields == nil {
			return nil, formatError("fetch details", fmt.Errorf("work item without id or fields"))
		}
		items = append(items, toWorkItem(raw))
	}
	if missing := len(ids) - len(items); missing > 0 {
		c.logger.Warn("work items omitted by service", "requested", len(ids), "missing", missing)
	}
	return items, nil
}

// FetchDirectChildren returns the ids linked to id as hierarchy children.
func (c *Client) FetchDirectChildren(ctx context.Context, id int) ([]int, error) {
	raw, err := c.fetchRelations(ctx, "fetch children", id)
	if err != nil {
		return nil, err
	}
	ids, bad := relatedIDs(raw.Relations, relHierarchyForward)
	if len(bad) > 0 {
		c.logger.Warn("ignoring child links without id", "id", id, "links", bad)
	}
	if ids == nil {
		ids = []int{}
	}
	return ids, nil
}

// FetchParent returns the hierarchy parent of id. ok is false when there is none.
func (c *Client) FetchParent(ctx context.Context, id int) (parent int, ok bool, err error) {
	raw, err := c.fetchRelations(ctx, "fetch parent", id)
	if err != nil {
		return 0, false, err
	}
	ids, bad := relatedIDs(raw.Relations, relHierarchyReverse)
	if len(bad) > 0 {
		c.logger.Warn("ignoring parent links without id", "id", id, "links", bad)
	}
	if len(ids) > 0 {
		return ids[0], true, nil
	}
	if p, ok := tryFloatFromInterface(raw.Fields[fieldParent]); ok && p > 0 {
		return int(p), true, nil
	}
	return 0, false, nil
}

// FetchRoots runs q and fetches the details of every match.
func (c *Client) FetchRoots(ctx context.Context, q model.ItemQuery) ([]*model.WorkItem, error) {
	ids, err := c.RunQuery(ctx, q)
	if err != nil {
		return nil, err
	}
	if len(ids) == 0 {
		return []*model.WorkItem{}, nil
	}
	return c.FetchDetails(ctx, ids)
}

func (c *Client) fetchRelations(ctx context.Context, op string, id int) (*rawWorkItem, error) {
	body, err := c.do(ctx, request{
		op:         op,
		method:     http.MethodGet,
		path:       "wit/workitems/" + strconv.Itoa(id),
		query:      url.Values{"$expand": {"relations"}},
		idempotent: true,
	})
	if err != nil {
		return nil, err
	}
	var raw rawWorkItem
	if err := json.Unmarshal(body, &raw); err != nil {
		return nil, formatError(op, err)
	}
	return &raw, nil
}

func dedupe(ids []int) []int {
	seen := make(map[int]bool, len(ids))
	out := make([]int, 0, len(ids))
	for _, id := range ids {
		if seen[id] {
			continue
		}
		seen[id] = true
		out = append(out, id)
	}
	return out
}

func chunk(ids []int, size int) [][]int {
	var out [][]int
	for start := 0; start < len(ids); start += size {
		end := start + size
		if end > len(ids) {
			end = len(ids)
		}
		out = append(out, ids[start:end])
	}
	return out
}
