package model

import "time"

const (
	RunStatusSucceeded = "succeeded"
	RunStatusEmpty     = "empty"
	RunStatusFailed    = "failed"
)

// ReportRun is the persisted record of one generate-report call.
type ReportRun struct {
	ID           string    `json:"id" gorm:"primaryKey;type:uuid"`
	RequestedAt  time.Time `json:"requested_at" gorm:"index"`
	Organization string    `json:"organization"`
	Project      string    `json:"project"`
	Status       string    `json:"status"`
	DurationMs   int64     `json:"duration_ms"`
	Epics        int       `json:"epics"`
	Items        int       `json:"items"`
	CapexPercent *float64  `json:"capex_percent,omitempty"`
	FileURL      string    `json:"file_url,omitempty"`
	Error        string    `json:"error,omitempty"`
}

func (ReportRun) TableName() string { return "report_runs" }
