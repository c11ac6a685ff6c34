package model

// Hierarchy is the categorised, aggregated result of one traversal.
type Hierarchy struct {
	Epics        []*WorkItem `json:"epics"`
	Features     []*WorkItem `json:"features"`
	Stories      []*WorkItem `json:"stories"`
	LeafItems    []*WorkItem `json:"leaf_items"`
	CustomFields []string    `json:"custom_fields"`
}

// All returns every item, epics first.
func (h *Hierarchy) All() []*WorkItem {
	out := make([]*WorkItem, 0, h.Len())
	out = append(out, h.Epics...)
	out = append(out, h.Features...)
	out = append(out, h.Stories...)
	out = append(out, h.LeafItems...)
	return out
}

// Len is the total item count.
func (h *Hierarchy) Len() int {
	return len(h.Epics) + len(h.Features) + len(h.Stories) + len(h.LeafItems)
}

const (
	CapexLabel    = "CAPEX"
	NonCapexLabel = "non-CAPEX"
)

// Classification summarises a CAPEX pass over a subject pool.
type Classification struct {
	Proportion    float64 `json:"proportion"`
	CategoryHours float64 `json:"category_hours"`
	TotalHours    float64 `json:"total_hours"`
	Members       int     `json:"members"`
	NonMembers    int     `json:"non_members"`
}
