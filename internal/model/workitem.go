package model

import (
	"math"
	"strings"
	"time"
)

// ItemKind buckets a work item type into a hierarchy level.
type ItemKind int

const (
	KindLeaf ItemKind = iota
	KindEpic
	KindFeature
	KindStory
)

const (
	TypeEpic      = "Epic"
	TypeFeature   = "Feature"
	TypeUserStory = "User Story"
	TypeTask      = "Task"
	TypeBug       = "Bug"
)

// KindOf maps a declared type to its kind. Anything unrecognised is a leaf.
func KindOf(itemType string) ItemKind {
	switch strings.ToLower(strings.TrimSpace(itemType)) {
	case "epic":
		return KindEpic
	case "feature":
		return KindFeature
	case "user story":
		return KindStory
	default:
		return KindLeaf
	}
}

// IsLeaf reports whether kind carries its own authored effort.
func (k ItemKind) IsLeaf() bool { return k == KindLeaf }

func (k ItemKind) String() string {
	switch k {
	case KindEpic:
		return TypeEpic
	case KindFeature:
		return TypeFeature
	case KindStory:
		return TypeUserStory
	default:
		return "Leaf"
	}
}

// WorkItem is one tracker record, normalised at ingestion.
type WorkItem struct {
	ID          int       `json:"id"`
	URL         string    `json:"url,omitempty"`
	Type        string    `json:"type"`
	Title       string    `json:"title"`
	State       string    `json:"state"`
	AssignedTo  string    `json:"assigned_to"`
	CreatedDate time.Time `json:"created_date"`

	EstimatedHours  float64 `json:"estimated_hours"`
	CompletedWork   float64 `json:"completed_work"`
	RemainingWork   float64 `json:"remaining_work"`
	PercentComplete float64 `json:"percent_complete"`

	ParentID    *int   `json:"parent_id,omitempty"`
	ParentType  string `json:"parent_type,omitempty"`
	ParentTitle string `json:"parent_title,omitempty"`

	CustomFields        CustomFields `json:"custom_fields,omitempty"`
	CapexClassification string       `json:"capex_classification,omitempty"`
}

// Kind is KindOf(w.Type).
func (w *WorkItem) Kind() ItemKind { return KindOf(w.Type) }

// Recompute refreshes PercentComplete from the effort fields.
func (w *WorkItem) Recompute() {
	w.PercentComplete = PercentComplete(w.CompletedWork, w.EstimatedHours)
}

// SetEffort replaces all three effort fields and recomputes the percentage.
func (w *WorkItem) SetEffort(estimated, completed, remaining float64) {
	w.EstimatedHours = Hours(estimated)
	w.CompletedWork = Hours(completed)
	w.RemainingWork = Hours(remaining)
	w.Recompute()
}

// SetParent records p as w's parent.
func (w *WorkItem) SetParent(p *WorkItem) {
	id := p.ID
	w.ParentID = &id
	w.ParentType = p.Type
	w.ParentTitle = p.Title
}

// HasParent reports whether a parent id was assigned.
func (w *WorkItem) HasParent() bool { return w.ParentID != nil }

// PercentComplete is completed/estimated, or 0 when there is no estimate.
func PercentComplete(completed, estimated float64) float64 {
	if estimated <= 0 {
		return 0
	}
	pct := completed / estimated
	if math.IsNaN(pct) || math.IsInf(pct, 0) {
		return 0
	}
	return pct
}

// Hours normalises a raw effort value: NaN, Inf and negatives become 0.
func Hours(v float64) float64 {
	if math.IsNaN(v) || math.IsInf(v, 0) || v < 0 {
		return 0
	}
	return v
}
