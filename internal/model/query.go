package model

import "time"

// DateRange bounds CreatedDate. Nil ends are open.
type DateRange struct {
	From *time.Time
	To   *time.Time
}

// IsZero reports whether neither end is set.
func (r DateRange) IsZero() bool { return r.From == nil && r.To == nil }

// Contains reports whether t falls in the range. To is inclusive of the whole day.
func (r DateRange) Contains(t time.Time) bool {
	if r.From != nil && t.Before(*r.From) {
		return false
	}
	if r.To != nil && !t.Before(r.To.AddDate(0, 0, 1)) {
		return false
	}
	return true
}

// ItemQuery describes a structured lookup of item ids.
type ItemQuery struct {
	Type       string
	Filters    []FieldFilter
	Created    DateRange
	AssignedTo string
}
