// Package prompt holds the system prompts and response parsing shared by every
// diagnosis provider.
package prompt

import (
	"encoding/json"
	"fmt"
	"strconv"
	"strings"

	"github.com/kiranshivaraju/vulnhunter/pkg/models"
)

// Diagnose is the system prompt for the first stage. The user message is the
// line-numbered batch input.
const Diagnose = `You are a cybersecurity expert tasked with analyzing the following code for potential vulnerabilities.
Identify potential vulnerabilities: carefully examine the code for common vulnerabilities such as:
- Injection attacks (SQL injection, command injection)
- Authentication/authorization issues (insecure password storage, insufficient authorization checks)
- Denial of Service attacks (resource exhaustion)
- Cross-Site Scripting (XSS)
- Exposed credentials
You will be given line numbers in the input as well as file paths for the different files and their contents.
Return a JSON output in the following format (combine all findings into this JSON array):
{"vulnerabilities": [{"file_path": "[vulnerable file path]", "file_name": "[vulnerable file name]", "line_number": 10, "severity": "warning | critical", "vulnerability": "[vulnerability]", "reasoning": "[reasoning]"}]}`

// Analyze is the system prompt for the second stage. The user message is the
// batch input followed by the raw first-stage answer.
const Analyze = `You are a cybersecurity auditor. You are given a piece of code followed by a JSON report of potential vulnerabilities identified by another analyst.
Reason through the code to confirm or refute the reasoning for each vulnerability in the report. Determine whether the reasoning is valid and whether the vulnerability could be meaningfully exploited.
Update the report based on your findings:
- If a vulnerability is confirmed, keep the entry.
- If a vulnerability is not found, the reasoning is invalid, or it has no security implications, remove or modify the entry.
- If you discover additional vulnerabilities not listed in the report, add new entries in the same format.
Return JSON in this format:
{"vulnerabilities": [{"file_path": "[vulnerable file path]", "file_name": "[vulnerable file name]", "line_number": 10, "severity": "warning | critical", "vulnerability": "[vulnerability]", "reasoning": "[reasoning]"}]}
Do not change the format of the entries and do not leave any field null.`

type report struct {
	Vulnerabilities []finding `json:"vulnerabilities"`
}

type finding struct {
	FilePath      string     `json:"file_path"`
	FileName      string     `json:"file_name"`
	LineNumber    lineNumber `json:"line_number"`
	Severity      string     `json:"severity"`
	Vulnerability string     `json:"vulnerability"`
	Reasoning     string     `json:"reasoning"`
}

// lineNumber accepts whatever the model put in line_number: 10, "10", a range
// like "12-14", a list like [3, 4] or "N/A". It keeps the first line it can
// find and falls back to 0; it never fails the decode.
type lineNumber int

func (n *lineNumber) UnmarshalJSON(b []byte) error {
	var v any
	if err := json.Unmarshal(b, &v); err != nil {
		*n = 0
		return nil
	}
	*n = lineNumber(firstLine(v))
	return nil
}

func firstLine(v any) int {
	switch t := v.(type) {
	case float64:
		return int(t)
	case string:
		return leadingInt(t)
	case []any:
		if len(t) > 0 {
			return firstLine(t[0])
		}
	}
	return 0
}

// leadingInt returns the first run of digits in s, or 0 if there is none.
func leadingInt(s string) int {
	start := strings.IndexFunc(s, func(r rune) bool { return r >= '0' && r <= '9' })
	if start < 0 {
		return 0
	}
	end := start
	for end < len(s) && s[end] >= '0' && s[end] <= '9' {
		end++
	}
	i, err := strconv.Atoi(s[start:end])
	if err != nil {
		return 0
	}
	return i
}

// ParseDiagnostics decodes a {"vulnerabilities": [...]} answer. Severity is
// normalised to "critical" or "warning". Errors wrap models.ErrInvalidResponse.
func ParseDiagnostics(raw string) ([]models.Diagnostic, error) {
	var r report
	if err := json.Unmarshal([]byte(StripFences(raw)), &r); err != nil {
		return nil, fmt.Errorf("%w: decoding vulnerabilities: %v", models.ErrInvalidResponse, err)
	}

	diags := make([]models.Diagnostic, 0, len(r.Vulnerabilities))
	for _, f := range r.Vulnerabilities {
		diags = append(diags, models.Diagnostic{
			FilePath:      f.FilePath,
			FileName:      f.FileName,
			LineNumber:    int(f.LineNumber),
			Severity:      NormalizeSeverity(f.Severity),
			Vulnerability: f.Vulnerability,
			Reasoning:     f.Reasoning,
		})
	}
	return diags, nil
}

// NormalizeSeverity lower-cases s and maps anything other than critical to warning.
func NormalizeSeverity(s string) string {
	if strings.EqualFold(strings.TrimSpace(s), models.SeverityCritical) {
		return models.SeverityCritical
	}
	return models.SeverityWarning
}

// StripFences removes a surrounding markdown code fence, if any.
func StripFences(s string) string {
	s = strings.TrimSpace(s)
	if !strings.HasPrefix(s, "```") {
		return s
	}
	s = strings.TrimPrefix(s, "```")
	if i := strings.IndexByte(s, '\n'); i >= 0 {
		s = s[i+1:]
	}
	s = strings.TrimSuffix(strings.TrimSpace(s), "```")
	return strings.TrimSpace(s)
}
