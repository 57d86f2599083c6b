package dataset

import (
	"bufio"
	"bytes"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"promptduel/internal/eval"
	"promptduel/internal/fault"
	"promptduel/internal/logging"
)

type rawCase struct {
	ID       *eval.CaseID `json:"id"`
	Input    *string      `json:"input"`
	Expected *string      `json:"expected"`
	Match    *string      `json:"match"`
	Category *string      `json:"category"`
}

// Load reads a case file. Files ending in .json hold an array of case
// objects; anything else is JSONL with blank and #-prefixed lines ignored.
// The first invalid row rejects the whole file.
func Load(path string) ([]Case, error) {
	timer := logging.StartTimer(logging.CategoryDataset, "Load "+path)
	defer timer.Stop()

	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fault.Configuration("failed to read dataset "+path, err)
	}

	var rows []rawCase
	if strings.EqualFold(filepath.Ext(path), ".json") {
		rows, err = decodeArray(data)
	} else {
		rows, err = decodeLines(data)
	}
	if err != nil {
		return nil, err
	}

	cases := make([]Case, 0, len(rows))
	seen := make(map[string]int, len(rows))
	for i, row := range rows {
		c, err := row.toCase(i + 1)
		if err != nil {
			logging.DatasetWarn("rejecting %s: %v", path, err)
			return nil, err
		}
		if prev, dup := seen[c.ID.String()]; dup {
			return nil, fault.CaseValidation("case %q at row %d duplicates row %d", c.ID, i+1, prev)
		}
		seen[c.ID.String()] = i + 1
		cases = append(cases, c)
	}

	logging.Dataset("Loaded %d cases from %s", len(cases), path)
	return cases, nil
}

func decodeArray(data []byte) ([]rawCase, error) {
	var items []json.RawMessage
	if err := json.Unmarshal(data, &items); err != nil {
		return nil, fault.CaseValidation("JSON cases file must be an array of objects: %v", err)
	}
	rows := make([]rawCase, 0, len(items))
	for i, item := range items {
		row, err := decodeObject(item)
		if err != nil {
			return nil, fault.CaseValidation("case #%d: %v", i+1, err)
		}
		rows = append(rows, row)
	}
	return rows, nil
}

func decodeLines(data []byte) ([]rawCase, error) {
	var rows []rawCase
	sc := bufio.NewScanner(bytes.NewReader(data))
	sc.Buffer(make([]byte, 0, 64*1024), 16*1024*1024)
	lineNo := 0
	for sc.Scan() {
		lineNo++
		line := strings.TrimSpace(sc.Text())
		if line == "" || strings.HasPrefix(line, "#") {
			continue
		}
		row, err := decodeObject([]byte(line))
		if err != nil {
			return nil, fault.CaseValidation("invalid JSONL on line %d: %v", lineNo, err)
		}
		rows = append(rows, row)
	}
	if err := sc.Err(); err != nil {
		return nil, fault.CaseValidation("read dataset: %v", err)
	}
	return rows, nil
}

func decodeObject(data []byte) (rawCase, error) {
	var row rawCase
	trimmed := bytes.TrimSpace(data)
	if len(trimmed) == 0 || trimmed[0] != '{' {
		return row, fmt.Errorf("row must be an object")
	}
	if err := json.Unmarshal(trimmed, &row); err != nil {
		return row, err
	}
	return row, nil
}

func (r rawCase) toCase(position int) (Case, error) {
	id := eval.NewCaseID(fmt.Sprintf("case_%03d", position), false)
	if r.ID != nil && !r.ID.IsZero() {
		id = *r.ID
	}

	if r.Input == nil || strings.TrimSpace(*r.Input) == "" {
		return Case{}, fault.CaseValidation("case %q is missing \"input\"", id)
	}
	if r.Expected == nil {
		return Case{}, fault.CaseValidation("case %q is missing \"expected\"", id)
	}

	match := MatchExact
	if r.Match != nil {
		m, err := ParseMatchMode(*r.Match)
		if err != nil {
			return Case{}, fault.CaseValidation("case %q has %v", id, err)
		}
		match = m
	}

	explicit := ""
	if r.Category != nil {
		explicit = strings.TrimSpace(*r.Category)
	}

	return Case{
		ID:       id,
		Input:    *r.Input,
		Expected: *r.Expected,
		Match:    match,
		Category: InferCategory(explicit, *r.Input, *r.Expected),
		Position: position,
	}, nil
}

// WriteCases writes cases as JSONL, creating parent directories.
func WriteCases(path string, cases []Case) error {
	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return fmt.Errorf("failed to create split directory: %w", err)
	}
	var buf bytes.Buffer
	enc := json.NewEncoder(&buf)
	enc.SetEscapeHTML(false)
	for _, c := range cases {
		if err := enc.Encode(c); err != nil {
			return fmt.Errorf("encode case %s: %w", c.ID, err)
		}
	}
	return os.WriteFile(path, buf.Bytes(), 0644)
}
