// Package eval holds the evaluation adapter contract: the per-case result,
// the summary derived from it, and the report document adapters produce.
package eval

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"strconv"
	"time"
)

// CaseID is a case identifier that decodes from either a JSON number or a
// JSON string. Numeric ids are written back as numbers.
type CaseID struct {
	value   string
	numeric bool
}

// NewCaseID builds a CaseID. numeric marks ids that were declared as JSON numbers.
func NewCaseID(value string, numeric bool) CaseID {
	return CaseID{value: value, numeric: numeric}
}

// String returns the id text.
func (id CaseID) String() string { return id.value }

// Numeric reports whether the id was declared as a number.
func (id CaseID) Numeric() bool { return id.numeric }

// IsZero reports whether no id was present.
func (id CaseID) IsZero() bool { return id.value == "" }

// MarshalJSON implements json.Marshaler.
func (id CaseID) MarshalJSON() ([]byte, error) {
	if id.numeric {
		return []byte(id.value), nil
	}
	return json.Marshal(id.value)
}

// UnmarshalJSON implements json.Unmarshaler.
func (id *CaseID) UnmarshalJSON(data []byte) error {
	data = bytes.TrimSpace(data)
	if bytes.Equal(data, []byte("null")) {
		*id = CaseID{}
		return nil
	}
	if len(data) > 0 && data[0] == '"' {
		var s string
		if err := json.Unmarshal(data, &s); err != nil {
			return err
		}
		*id = CaseID{value: s}
		return nil
	}
	var n json.Number
	if err := json.Unmarshal(data, &n); err != nil {
		return fmt.Errorf("case id must be a number or string: %w", err)
	}
	// Integral floats like 7.0 keep their integer spelling.
	if f, err := n.Float64(); err == nil && f == float64(int64(f)) {
		*id = CaseID{value: strconv.FormatInt(int64(f), 10), numeric: true}
		return nil
	}
	*id = CaseID{value: n.String(), numeric: true}
	return nil
}

// CaseResult is the outcome of one (prompt, case) evaluation.
type CaseResult struct {
	ID        CaseID  `json:"id"`
	Input     string  `json:"input"`
	Expected  string  `json:"expected"`
	Match     string  `json:"match"`
	Actual    string  `json:"actual"`
	Passed    bool    `json:"passed"`
	LatencyMs int64   `json:"latency_ms"`
	Error     *string `json:"error"`
}

// ErrorText returns the case error or "".
func (r CaseResult) ErrorText() string {
	if r.Error == nil {
		return ""
	}
	return *r.Error
}

// Summary aggregates the results of one prompt over one case slice.
type Summary struct {
	TotalCases     int     `json:"total_cases"`
	PassCount      int     `json:"pass_count"`
	FailCount      int     `json:"fail_count"`
	PassRate       float64 `json:"pass_rate"`
	AvgLatencyMs   int64   `json:"avg_latency_ms"`
	TotalLatencyMs int64   `json:"total_latency_ms"`
}

// Summarize derives a Summary from results.
func Summarize(results []CaseResult) Summary {
	s := Summary{TotalCases: len(results)}
	for _, r := range results {
		if r.Passed {
			s.PassCount++
		}
		s.TotalLatencyMs += r.LatencyMs
	}
	s.FailCount = s.TotalCases - s.PassCount
	if s.TotalCases > 0 {
		s.PassRate = float64(s.PassCount) / float64(s.TotalCases) * 100.0
		s.AvgLatencyMs = s.TotalLatencyMs / int64(s.TotalCases)
	}
	return s
}

// Consistent reports whether the summary's counters agree with each other.
func (s Summary) Consistent() bool {
	return s.TotalCases >= 0 && s.PassCount >= 0 && s.FailCount >= 0 &&
		s.PassCount+s.FailCount == s.TotalCases
}

// Request describes one adapter invocation.
type Request struct {
	// Label names the evaluation in logs (for example "train_a").
	Label string

	PromptFile string
	CasesFile  string
	MaxCases   int

	// CaseTimeout bounds one model call; Timeout bounds the whole invocation.
	CaseTimeout time.Duration
	Timeout     time.Duration

	TextReportPath string
	JSONReportPath string

	// Prepared is false only for the first evaluation of a run, which may
	// perform one-time setup such as model download.
	Prepared bool
}

// Result is what an adapter returns for a Request.
type Result struct {
	Summary        Summary
	Cases          []CaseResult
	TextReportPath string
	JSONReportPath string
}

// Evaluator runs a prompt against a case set.
type Evaluator interface {
	Evaluate(ctx context.Context, req Request) (*Result, error)
}
