package adapter

import (
	"fmt"
	"regexp"
	"strings"
	"unicode"

	"github.com/dlclark/regexp2"

	"promptduel/internal/dataset"
)

var (
	prefixLabelRegex = regexp.MustCompile(`^(?i)(rewritten|rewrite|cleaned|output|result)\s*:\s*`)
	cleanedAnchor    = regexp.MustCompile(`(?im)^cleaned\s*:\s*`)

	// Filler squeezing needs a backreference, which RE2 lacks. regexp2 also
	// gives \s and \b their Unicode meaning.
	whitespaceRun   = regexp2.MustCompile(`\s+`, regexp2.None)
	repeatedFillers = regexp2.MustCompile(`\b(um+|uh+|erm+|emm+|hmm+)(?:\s+\1\b)+`, regexp2.IgnoreCase)
)

// NormalizeInput collapses whitespace and squeezes runs of the same filler
// word ("um um um" becomes "um").
func NormalizeInput(text string) string {
	collapsed, err := whitespaceRun.Replace(text, " ", -1, -1)
	if err != nil {
		collapsed = strings.Join(strings.Fields(text), " ")
	}
	collapsed = strings.TrimSpace(collapsed)
	if collapsed == "" {
		return ""
	}
	squeezed, err := repeatedFillers.Replace(collapsed, "$1", -1, -1)
	if err != nil {
		return collapsed
	}
	return strings.TrimSpace(squeezed)
}

// ExtractMainOutput pulls the model response out of a local model binary's
// stdout: the lines after "input_prompt:" and before "BenchmarkInfo:",
// without INFO:/WARNING: chatter.
func ExtractMainOutput(raw string) string {
	pre, _, _ := strings.Cut(raw, "BenchmarkInfo:")
	pre = strings.ReplaceAll(pre, "\r\n", "\n")
	lines := strings.Split(pre, "\n")

	var response []string
	sawPrompt := false
	for _, line := range lines {
		line = strings.TrimRight(line, " \t\r")
		stripped := strings.TrimSpace(line)
		if strings.HasPrefix(stripped, "input_prompt:") {
			sawPrompt = true
			continue
		}
		if !sawPrompt || isChatter(stripped) {
			continue
		}
		response = append(response, line)
	}

	if len(response) == 0 {
		var filtered []string
		for _, line := range lines {
			stripped := strings.TrimSpace(line)
			if stripped == "" || isChatter(stripped) || strings.HasPrefix(stripped, "input_prompt:") {
				continue
			}
			filtered = append(filtered, strings.TrimRight(line, " \t\r"))
		}
		return strings.TrimSpace(strings.Join(filtered, "\n"))
	}
	return strings.TrimSpace(strings.Join(response, "\n"))
}

func isChatter(line string) bool {
	return strings.HasPrefix(line, "INFO:") || strings.HasPrefix(line, "WARNING:")
}

// CleanModelOutput strips scaffolding a model tends to echo around its answer.
func CleanModelOutput(text string) string {
	cleaned := strings.TrimSpace(text)
	if cleaned == "" {
		return ""
	}

	if locs := cleanedAnchor.FindAllStringIndex(cleaned, -1); len(locs) > 0 {
		cleaned = strings.TrimSpace(cleaned[locs[len(locs)-1][1]:])
	}

	cleaned = strings.TrimSpace(prefixLabelRegex.ReplaceAllString(cleaned, ""))
	cleaned = strings.TrimSpace(strings.Trim(cleaned, "`"))

	if len(cleaned) >= 2 && cleaned[0] == cleaned[len(cleaned)-1] && (cleaned[0] == '"' || cleaned[0] == '\'') {
		cleaned = strings.TrimSpace(cleaned[1 : len(cleaned)-1])
	}
	if cleaned == "" {
		return ""
	}

	if strings.HasPrefix(strings.ToLower(cleaned), "user input:") {
		var nonEmpty []string
		for _, line := range strings.Split(cleaned, "\n") {
			if s := strings.TrimSpace(line); s != "" {
				nonEmpty = append(nonEmpty, s)
			}
		}
		if len(nonEmpty) >= 2 {
			cleaned = nonEmpty[len(nonEmpty)-1]
		}
	}

	if strings.HasPrefix(cleaned, "- ") {
		var parts []string
		for _, line := range strings.Split(cleaned, "\n") {
			if s := strings.TrimSpace(strings.TrimPrefix(line, "- ")); s != "" {
				parts = append(parts, s)
			}
		}
		cleaned = strings.TrimSpace(strings.Join(parts, " "))
	}

	return cleaned
}

func normalizeForExact(s string) string {
	s = strings.ReplaceAll(strings.TrimSpace(s), "\r\n", "\n")
	lines := strings.Split(s, "\n")
	for i, line := range lines {
		lines[i] = strings.TrimRightFunc(line, unicode.IsSpace)
	}
	return strings.TrimSpace(strings.Join(lines, "\n"))
}

// Compare checks actual against expected under mode. An invalid regex is an
// error, which the runner records against the case.
func Compare(expected, actual string, mode dataset.MatchMode) (bool, error) {
	switch mode {
	case dataset.MatchExact, "":
		return normalizeForExact(actual) == normalizeForExact(expected), nil
	case dataset.MatchContains:
		return strings.Contains(actual, expected), nil
	case dataset.MatchRegex:
		re, err := regexp.Compile("(?m)" + expected)
		if err != nil {
			return false, fmt.Errorf("invalid regex %q: %w", expected, err)
		}
		return re.MatchString(actual), nil
	}
	return false, fmt.Errorf("unsupported match mode: %s", mode)
}
