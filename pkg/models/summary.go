package models

// ErrorDetail is a single captured server error: the request parameters and
// body that produced it. Either part may be absent.
type ErrorDetail struct {
	Parameters map[string]any `json:"parameters"`
	Body       map[string]any `json:"body"`
}

// GroupedErrors maps an operation ID to the server errors observed for it.
type GroupedErrors map[string][]ErrorDetail

// RawFileURLs maps a result-artifact kind (operation_status_codes,
// server_errors, successful_bodies, q_tables, ...) to a retrievable URL.
type RawFileURLs map[string]string

// JobSummary is the structured result summary attached to a job when the
// execution backend reports completion.
type JobSummary struct {
	Title                                       *string        `json:"title,omitempty"`
	StatusCodeDistribution                      map[string]int `json:"status_code_distribution,omitempty"`
	TotalRequestsSent                           *int           `json:"total_requests_sent,omitempty"`
	Duration                                    *string        `json:"duration,omitempty"`
	OperationsWithServerErrors                  GroupedErrors  `json:"operations_with_server_errors,omitempty"`
	NumberOfUniqueServerErrors                  *int           `json:"number_of_unique_server_errors,omitempty"`
	NumberOfSuccessfullyProcessedOperations     *int           `json:"number_of_successfully_processed_operations,omitempty"`
	NumberOfTotalOperations                     *int           `json:"number_of_total_operations,omitempty"`
	PercentageOfSuccessfullyProcessedOperations *string        `json:"percentage_of_successfully_processed_operations,omitempty"`
}
