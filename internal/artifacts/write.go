package artifacts

import (
	"bytes"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sync"

	"promptduel/internal/logging"
)

// WriteText writes content, creating parent directories.
func WriteText(path, content string) error {
	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return fmt.Errorf("failed to create directory for %s: %w", path, err)
	}
	return os.WriteFile(path, []byte(content), 0644)
}

// WriteJSON writes v as indented JSON with a trailing newline.
func WriteJSON(path string, v interface{}) error {
	data, err := marshal(v, "  ")
	if err != nil {
		return fmt.Errorf("failed to marshal %s: %w", filepath.Base(path), err)
	}
	return WriteText(path, string(data))
}

// WriteJSONL writes one compact JSON object per line.
func WriteJSONL[T any](path string, rows []T) error {
	var buf bytes.Buffer
	for _, row := range rows {
		data, err := marshal(row, "")
		if err != nil {
			return fmt.Errorf("failed to marshal row for %s: %w", filepath.Base(path), err)
		}
		buf.Write(data)
	}
	return WriteText(path, buf.String())
}

func marshal(v interface{}, indent string) ([]byte, error) {
	var buf bytes.Buffer
	enc := json.NewEncoder(&buf)
	enc.SetEscapeHTML(false)
	if indent != "" {
		enc.SetIndent("", indent)
	}
	if err := enc.Encode(v); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

// DecisionLog is the run's append-only JSONL log. Records are never rewritten.
type DecisionLog struct {
	mu   sync.Mutex
	path string
}

// NewDecisionLog returns a log appending to path.
func NewDecisionLog(path string) *DecisionLog {
	return &DecisionLog{path: path}
}

// Path returns the log file path.
func (d *DecisionLog) Path() string { return d.path }

// AppendRecord writes v as one line.
func (d *DecisionLog) AppendRecord(v interface{}) error {
	d.mu.Lock()
	defer d.mu.Unlock()

	data, err := marshal(v, "")
	if err != nil {
		return fmt.Errorf("failed to marshal log record: %w", err)
	}
	if err := os.MkdirAll(filepath.Dir(d.path), 0755); err != nil {
		return fmt.Errorf("failed to create log directory: %w", err)
	}
	f, err := os.OpenFile(d.path, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0644)
	if err != nil {
		return fmt.Errorf("failed to open decision log: %w", err)
	}
	if _, err := f.Write(data); err != nil {
		f.Close()
		return fmt.Errorf("failed to append decision log: %w", err)
	}
	logging.TournamentDebug("appended %d bytes to %s", len(data), d.path)
	return f.Close()
}
