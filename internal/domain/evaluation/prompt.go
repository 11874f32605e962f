package evaluation

import (
	"bytes"
	_ "embed"
	"encoding/json"
	"strings"
	"text/template"
)

//go:embed templates/judge_instructions.tmpl
var judgeInstructionsTmpl string

// judgeTmpl is the parsed evaluation instruction template. It is a static
// asset loaded at startup; there is no runtime fetch for the instructions.
var judgeTmpl = template.Must(template.New("judge_instructions").Parse(judgeInstructionsTmpl))

// judgePromptData carries the candidate and its context into the template.
type judgePromptData struct {
	Candidate string
	Context   string
}

// BuildPrompt composes the full judge prompt for a candidate response.
// The candidate is first reduced to its canonical string form.
func BuildPrompt(candidate any, evalContext string) (string, error) {
	var buf bytes.Buffer
	err := judgeTmpl.Execute(&buf, judgePromptData{
		Candidate: CanonicalCandidate(candidate),
		Context:   evalContext,
	})
	if err != nil {
		return "", err
	}
	return buf.String(), nil
}

// CanonicalCandidate serializes a candidate payload to the canonical string
// form used in judge prompts: strings pass through unchanged, everything
// else is pretty-printed JSON.
func CanonicalCandidate(candidate any) string {
	if s, ok := candidate.(string); ok {
		return s
	}
	data, err := json.MarshalIndent(candidate, "", "  ")
	if err != nil {
		return ""
	}
	return string(data)
}

// ExtractJSON attempts to extract a JSON object from a string that may
// contain markdown fences or other surrounding text.
func ExtractJSON(s string) string {
	s = strings.TrimSpace(s)

	// Strip markdown code fences
	if strings.HasPrefix(s, "```json") {
		s = strings.TrimPrefix(s, "```json")
		if idx := strings.LastIndex(s, "```"); idx >= 0 {
			s = s[:idx]
		}
		return strings.TrimSpace(s)
	}
	if strings.HasPrefix(s, "```") {
		s = strings.TrimPrefix(s, "```")
		if idx := strings.LastIndex(s, "```"); idx >= 0 {
			s = s[:idx]
		}
		return strings.TrimSpace(s)
	}

	// Find first { and last }
	start := strings.Index(s, "{")
	end := strings.LastIndex(s, "}")
	if start >= 0 && end > start {
		return s[start : end+1]
	}

	return s
}
