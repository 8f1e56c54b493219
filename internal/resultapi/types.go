package resultapi

import "ashare/internal/store"

// RunsResponse lists persisted runs, newest first.
type RunsResponse struct {
	Runs []store.RunSummary `json:"runs"`
}

// EquityResponse is the resampled equity curve of one run.
type EquityResponse struct {
	RunID       string    `json:"runId"`
	Granularity string    `json:"granularity"`
	Dates       []string  `json:"dates"`
	ReturnsPct  []float64 `json:"returnsPct"`
	TotalAsset  []float64 `json:"totalAsset"`
}

// ErrorResponse is the body of every non-2xx reply.
type ErrorResponse struct {
	Error string `json:"error"`
}
