package models

import "encoding/json"

// Time intent presets recognized by the normalizer.
const (
	PresetToday       = "today"
	PresetYesterday   = "yesterday"
	PresetLastNDays   = "last_n_days"
	PresetMTD         = "mtd"
	PresetQTD         = "qtd"
	PresetYTD         = "ytd"
	PresetPrevMonth   = "prev_month"
	PresetPrevQuarter = "prev_quarter"
	PresetPrevYear    = "prev_year"
	PresetAbsolute    = "absolute"
)

// TimeIntent is a structured, relative description of a date range as
// produced by the NL mapper. It exists only between mapping and validation;
// the validator consumes it and replaces it with a filter entry.
type TimeIntent struct {
	Preset string `json:"preset"`
	N      int    `json:"n,omitempty"`
	Start  string `json:"start,omitempty"`
	End    string `json:"end,omitempty"`
	Field  string `json:"field,omitempty"`
}

// QueryDraft is a structured query against an explore. The validator is the
// only component that mutates a draft: it fills defaults, resolves the time
// intent into a filter, and clears TimeIntent. A terminal draft has no
// TimeIntent.
type QueryDraft struct {
	Model      string            `json:"model"`
	Explore    string            `json:"explore"`
	View       string            `json:"view,omitempty"`
	Fields     []string          `json:"fields,omitempty"`
	Filters    map[string]string `json:"filters,omitempty"`
	Sorts      []string          `json:"sorts,omitempty"`
	Limit      int               `json:"limit,omitempty"`
	Pivots     []string          `json:"pivots,omitempty"`
	TopN       int               `json:"top_n,omitempty"`
	TimeIntent *TimeIntent       `json:"time_intent,omitempty"`
}

// Clone returns a deep copy of the draft so validation never aliases
// caller-owned maps and slices.
func (q *QueryDraft) Clone() *QueryDraft {
	out := *q
	if q.Fields != nil {
		out.Fields = append([]string(nil), q.Fields...)
	}
	if q.Sorts != nil {
		out.Sorts = append([]string(nil), q.Sorts...)
	}
	if q.Pivots != nil {
		out.Pivots = append([]string(nil), q.Pivots...)
	}
	if q.Filters != nil {
		out.Filters = make(map[string]string, len(q.Filters))
		for k, v := range q.Filters {
			out.Filters[k] = v
		}
	}
	if q.TimeIntent != nil {
		ti := *q.TimeIntent
		out.TimeIntent = &ti
	}
	return &out
}

// ClarificationRequest is the terminal alternative to a QueryDraft: the
// agent asks the user to disambiguate rather than guessing.
type ClarificationRequest struct {
	ClarificationRequest string `json:"clarification_request"`
}

// MappingResult is the tagged result of query building: exactly one of
// Draft or Clarification is set. LLM output is decoded into this type at
// the capability boundary so downstream code never inspects raw JSON.
type MappingResult struct {
	Draft         *QueryDraft
	Clarification *ClarificationRequest
}

// NeedsClarification reports whether the result is a clarification request.
func (r MappingResult) NeedsClarification() bool {
	return r.Clarification != nil
}

// DraftResult wraps a query draft as a MappingResult.
func DraftResult(q *QueryDraft) MappingResult {
	return MappingResult{Draft: q}
}

// ClarificationResult wraps a clarification message as a MappingResult.
func ClarificationResult(message string) MappingResult {
	return MappingResult{Clarification: &ClarificationRequest{ClarificationRequest: message}}
}

// ParseMappingResult decodes mapper output into a tagged MappingResult.
// A JSON object with a non-empty "clarification_request" key is a
// clarification; anything else is treated as a query draft.
func ParseMappingResult(data []byte) (MappingResult, error) {
	var probe struct {
		ClarificationRequest string `json:"clarification_request"`
	}
	if err := json.Unmarshal(data, &probe); err != nil {
		return MappingResult{}, err
	}
	if probe.ClarificationRequest != "" {
		return ClarificationResult(probe.ClarificationRequest), nil
	}

	var draft QueryDraft
	if err := json.Unmarshal(data, &draft); err != nil {
		return MappingResult{}, err
	}
	return DraftResult(&draft), nil
}

// Row is a single result row from query execution, keyed by field name.
type Row map[string]any
