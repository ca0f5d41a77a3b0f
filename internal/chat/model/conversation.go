package model

import "encoding/json"

// Status is the lifecycle state of a Response or Enrichment.
type Status string

const (
	StatusPending Status = "pending"
	StatusSuccess Status = "success"
	StatusError   Status = "error"
)

// Terminal reports whether s is success or error.
func (s Status) Terminal() bool {
	return s == StatusSuccess || s == StatusError
}

// Record is one row of a query result.
type Record map[string]any

// Query is a submitted user question. Position is its index in submission order.
type Query struct {
	Position int    `json:"position"`
	Text     string `json:"text"`
}

// Response answers the Query at the same Position.
type Response struct {
	Position     int              `json:"position"`
	Status       Status           `json:"status"`
	Payload      *ResponsePayload `json:"payload,omitempty"`
	ErrorMessage string           `json:"error_message,omitempty"`
}

// ResponsePayload is the parsed success body of the Query API.
type ResponsePayload struct {
	GeneratedSQL    string   `json:"generated_sql"`
	BlockedCommands string   `json:"blocked_cmds,omitempty"`
	Rows            []Record `json:"query_result"`
	Columns         []string `json:"columns,omitempty"`
	Suggestions     []string `json:"suggestions,omitempty"`
	Error           string   `json:"error,omitempty"`
	// Debug carries every backend field not consumed above, verbatim.
	Debug map[string]json.RawMessage `json:"debug,omitempty"`
}

// HasRows reports whether the payload carries at least one result row.
func (p *ResponsePayload) HasRows() bool {
	return p != nil && len(p.Rows) > 0
}

// QueryOutcome is the result of one Query API call.
type QueryOutcome struct {
	Payload *ResponsePayload
	Err     error
}
