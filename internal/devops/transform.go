package devops

import (
	"encoding/json"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/roksva123/go-devops-report/internal/model"
)

const (
	relHierarchyForward = "System.LinkTypes.Hierarchy-Forward"
	relHierarchyReverse = "System.LinkTypes.Hierarchy-Reverse"

	fieldType        = "System.WorkItemType"
	fieldTitle       = "System.Title"
	fieldState       = "System.State"
	fieldCreatedDate = "System.CreatedDate"
	fieldAssignedTo  = "System.AssignedTo"
	fieldParent      = "System.Parent"
	fieldEstimate    = "Microsoft.VSTS.Scheduling.OriginalEstimate"
	fieldCompleted   = "Microsoft.VSTS.Scheduling.CompletedWork"
	fieldRemaining   = "Microsoft.VSTS.Scheduling.RemainingWork"
)

type workItemRef struct {
	ID  int    `json:"id"`
	URL string `json:"url"`
}

type wiqlResponse struct {
	QueryType string        `json:"queryType"`
	WorkItems []workItemRef `json:"workItems"`
}

type relation struct {
	Rel        string         `json:"rel"`
	URL        string         `json:"url"`
	Attributes map[string]any `json:"attributes,omitempty"`
}

type rawWorkItem struct {
	ID        int            `json:"id"`
	URL       string         `json:"url"`
	Fields    map[string]any `json:"fields"`
	Relations []relation     `json:"relations,omitempty"`
}

type workItemsResponse struct {
	Count int            `json:"count"`
	Value []*rawWorkItem `json:"value"`
}

// toWorkItem normalises a raw record. Missing effort values become 0.
func toWorkItem(raw *rawWorkItem) *model.WorkItem {
	f := raw.Fields
	item := &model.WorkItem{
		ID:           raw.ID,
		URL:          raw.URL,
		Type:         stringField(f, fieldType),
		Title:        stringField(f, fieldTitle),
		State:        stringField(f, fieldState),
		AssignedTo:   identityName(f[fieldAssignedTo]),
		CustomFields: model.CustomFields{},
	}
	if created, ok := f[fieldCreatedDate].(string); ok && created != "" {
		if t, err := time.Parse(time.RFC3339, created); err == nil {
			item.CreatedDate = t
		}
	}

	est, _ := tryFloatFromInterface(f[fieldEstimate])
	done, _ := tryFloatFromInterface(f[fieldCompleted])
	left, _ := tryFloatFromInterface(f[fieldRemaining])
	item.SetEffort(est, done, left)

	for name, value := range f {
		if strings.HasPrefix(name, model.CustomNamespace) {
			item.CustomFields.Set(name, value)
		}
	}
	return item
}

func stringField(fields map[string]any, key string) string {
	if v, ok := fields[key].(string); ok {
		return v
	}
	return ""
}

// identityName accepts the identity object or a bare string.
func identityName(v any) string {
	switch t := v.(type) {
	case string:
		return t
	case map[string]any:
		if dn, ok := t["displayName"].(string); ok {
			return dn
		}
		if un, ok := t["uniqueName"].(string); ok {
			return un
		}
	}
	return ""
}

// tryFloatFromInterface handles float64, json.Number and numeric strings.
func tryFloatFromInterface(v any) (float64, bool) {
	if v == nil {
		return 0, false
	}
	switch t := v.(type) {
	case float64:
		return t, true
	case int:
		return float64(t), true
	case int64:
		return float64(t), true
	case json.Number:
		if f, err := t.Float64(); err == nil {
			return f, true
		}
	case string:
		if parsed, err := strconv.ParseFloat(strings.TrimSpace(t), 64); err == nil {
			return parsed, true
		}
	}
	return 0, false
}

// relatedIDs returns the ids of relations of kind rel, in link order. Links
// whose url does not end in a numeric id are returned in bad.
func relatedIDs(relations []relation, rel string) (ids []int, bad []string) {
	for _, r := range relations {
		if r.Rel != rel {
			continue
		}
		id, err := idFromURL(r.URL)
		if err != nil {
			bad = append(bad, r.URL)
			continue
		}
		ids = append(ids, id)
	}
	return ids, bad
}

func idFromURL(u string) (int, error) {
	u = strings.TrimRight(u, "/")
	idx := strings.LastIndex(u, "/")
	if idx < 0 || idx == len(u)-1 {
		return 0, fmt.Errorf("no id in %q", u)
	}
	id, err := strconv.Atoi(u[idx+1:])
	if err != nil || id <= 0 {
		return 0, fmt.Errorf("no id in %q", u)
	}
	return id, nil
}
