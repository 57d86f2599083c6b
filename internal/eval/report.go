package eval

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"
)

// Report is the JSON document an evaluation adapter writes.
type Report struct {
	Timestamp string                 `json:"timestamp,omitempty"`
	Config    map[string]interface{} `json:"config,omitempty"`
	Summary   *Summary               `json:"summary"`
	Cases     []CaseResult           `json:"cases"`
}

// HeaderField is one "key: value" line at the top of a text report.
type HeaderField struct {
	Key   string
	Value string
}

// ErrMalformedReport marks a report that cannot be trusted.
var ErrMalformedReport = errors.New("malformed evaluation report")

// NewReport builds a report from results, deriving the summary.
func NewReport(config map[string]interface{}, results []CaseResult, now time.Time) *Report {
	s := Summarize(results)
	if results == nil {
		results = []CaseResult{}
	}
	return &Report{
		Timestamp: now.Format("2006-01-02T15:04:05"),
		Config:    config,
		Summary:   &s,
		Cases:     results,
	}
}

// ParseReport decodes and checks a JSON report.
func ParseReport(data []byte) (*Report, error) {
	var r Report
	dec := json.NewDecoder(bytes.NewReader(data))
	if err := dec.Decode(&r); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrMalformedReport, err)
	}
	if r.Summary == nil {
		return nil, fmt.Errorf("%w: missing summary", ErrMalformedReport)
	}
	if !r.Summary.Consistent() {
		return nil, fmt.Errorf("%w: pass_count %d + fail_count %d != total_cases %d",
			ErrMalformedReport, r.Summary.PassCount, r.Summary.FailCount, r.Summary.TotalCases)
	}
	if len(r.Cases) != r.Summary.TotalCases {
		return nil, fmt.Errorf("%w: %d cases listed, summary says %d",
			ErrMalformedReport, len(r.Cases), r.Summary.TotalCases)
	}
	return &r, nil
}

// ReadReport reads and parses a JSON report file.
func ReadReport(path string) (*Report, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read report %s: %w", path, err)
	}
	r, err := ParseReport(data)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}
	return r, nil
}

// WriteJSONReport writes r to path as indented JSON.
func WriteJSONReport(path string, r *Report) error {
	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return fmt.Errorf("failed to create report directory: %w", err)
	}
	var buf bytes.Buffer
	enc := json.NewEncoder(&buf)
	enc.SetEscapeHTML(false)
	enc.SetIndent("", "  ")
	if err := enc.Encode(r); err != nil {
		return fmt.Errorf("failed to marshal report: %w", err)
	}
	return os.WriteFile(path, buf.Bytes(), 0644)
}

// WriteTextReport writes the human-readable report.
func WriteTextReport(path string, header []HeaderField, results []CaseResult, now time.Time) error {
	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return fmt.Errorf("failed to create report directory: %w", err)
	}

	var b strings.Builder
	b.WriteString("PROMPT EVAL REPORT\n")
	fmt.Fprintf(&b, "timestamp: %s\n", now.Format("2006-01-02 15:04:05"))
	for _, h := range header {
		fmt.Fprintf(&b, "%s: %s\n", h.Key, h.Value)
	}
	b.WriteString("\n")

	for _, r := range results {
		status := "FAIL"
		if r.Passed {
			status = "PASS"
		}
		errText := r.ErrorText()
		if errText == "" {
			errText = "none"
		}
		fmt.Fprintf(&b, "[%s] %s (latency_ms=%d, match=%s)\n", status, r.ID, r.LatencyMs, r.Match)
		fmt.Fprintf(&b, "input: %s\n", r.Input)
		fmt.Fprintf(&b, "expected: %s\n", r.Expected)
		fmt.Fprintf(&b, "actual: %s\n", r.Actual)
		fmt.Fprintf(&b, "error: %s\n", errText)
		b.WriteString("\n")
	}

	s := Summarize(results)
	b.WriteString("[summary]\n")
	fmt.Fprintf(&b, "total_cases: %d\n", s.TotalCases)
	fmt.Fprintf(&b, "pass_count: %d\n", s.PassCount)
	fmt.Fprintf(&b, "fail_count: %d\n", s.FailCount)
	fmt.Fprintf(&b, "pass_rate: %.2f%%\n", s.PassRate)
	fmt.Fprintf(&b, "avg_latency_ms: %d\n", s.AvgLatencyMs)
	fmt.Fprintf(&b, "total_latency_ms: %d\n", s.TotalLatencyMs)

	return os.WriteFile(path, []byte(b.String()), 0644)
}
