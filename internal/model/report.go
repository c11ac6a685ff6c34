package model

// ReportRequest is the body of a generate-report call. Keys follow the
// historical API so existing callers keep working.
type ReportRequest struct {
	PAT          string        `json:"AZURE_PAT"`
	Organization string        `json:"ORGANIZATION"`
	Project      string        `json:"PROJECT"`
	CustomFields []FieldFilter `json:"CUSTOM_FIELDS"`
	CapexFields  []FieldFilter `json:"CAPEX_FIELDS"`
	SheetCount   *int          `json:"SHEET_COUNT"`

	FilterDate      string   `json:"filter_date"`
	FilterEndDate   string   `json:"filter_end_date"`
	DateFilterTypes []string `json:"date_filter_types"`
	AssignedTo      string   `json:"assigned_to"`
	OutputFileName  string   `json:"output_file_name"`

	StorageAccountName string `json:"storage_account_name"`
	ContainerName      string `json:"container_name"`
	StorageAccountSAS  string `json:"storage_account_sas"`
}

type ReportResponse struct {
	Message      string   `json:"message"`
	FileURL      *string  `json:"file_url"`
	RunID        string   `json:"run_id,omitempty"`
	Epics        int      `json:"epics"`
	Items        int      `json:"items"`
	CapexPercent *float64 `json:"capex_percent,omitempty"`
}
