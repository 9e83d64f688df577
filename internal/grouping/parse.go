package grouping

import (
	"encoding/json"
	"fmt"
	"strings"

	"github.com/noah-isme/sma-grouping-api/pkg/llm"
)

type aiGroup struct {
	GroupID    string   `json:"groupId"`
	GroupName  string   `json:"groupName"`
	StudentIDs []string `json:"studentIds"`
	Rationale  string   `json:"rationale"`
}

type aiGrouping struct {
	Groups                 []aiGroup `json:"groups"`
	OverallRationale       string    `json:"overallRationale"`
	GenderBalanceRationale string    `json:"genderBalanceRationale"`
	PerformanceRationale   string    `json:"performanceRationale"`
}

// parseAIResponse decodes model output. The payload may be a JSON document or a
// JSON string holding one, optionally wrapped in markdown fences with comments.
func parseAIResponse(raw []byte) (*aiGrouping, error) {
	text := strings.TrimSpace(string(raw))
	if strings.HasPrefix(text, `"`) {
		var inner string
		if err := json.Unmarshal([]byte(text), &inner); err == nil {
			text = inner
		}
	}

	cleaned := cleanJSON(text)
	if cleaned == "" {
		return nil, ErrInvalidAIResponse
	}

	if err := llm.ValidateContent(acceptedResponseSchema, json.RawMessage(cleaned)); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidAIResponse, err)
	}

	var out aiGrouping
	if err := json.Unmarshal([]byte(cleaned), &out); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidAIResponse, err)
	}
	if len(out.Groups) == 0 {
		return nil, ErrInvalidAIResponse
	}
	return &out, nil
}

// cleanJSON reduces model output to the first JSON object it carries, reading
// inside the first fenced block when there is one. Comments outside string
// literals are dropped.
func cleanJSON(text string) string {
	return outermostObject(stripComments(fencedBlock(strings.TrimSpace(text))))
}

// fencedBlock returns the body of the first ``` block, or text when there is none.
func fencedBlock(text string) string {
	open := strings.Index(text, "```")
	if open < 0 {
		return text
	}
	body := text[open+3:]
	tag := 0
	for tag < len(body) && isFenceTagByte(body[tag]) {
		tag++
	}
	body = body[tag:]
	if end := strings.Index(body, "```"); end >= 0 {
		body = body[:end]
	}
	return strings.TrimSpace(body)
}

func isFenceTagByte(ch byte) bool {
	return ch >= 'a' && ch <= 'z' || ch >= 'A' && ch <= 'Z' || ch >= '0' && ch <= '9' || ch == '-' || ch == '_'
}

// outermostObject cuts text down to the first balanced {...}. Text without an
// opening brace is returned unchanged so the decoder reports it.
func outermostObject(text string) string {
	open := strings.IndexByte(text, '{')
	if open < 0 {
		return text
	}
	depth := 0
	inString, escaped := false, false
	for i := open; i < len(text); i++ {
		ch := text[i]
		if inString {
			switch {
			case escaped:
				escaped = false
			case ch == '\\':
				escaped = true
			case ch == '"':
				inString = false
			}
			continue
		}
		switch ch {
		case '"':
			inString = true
		case '{':
			depth++
		case '}':
			depth--
			if depth == 0 {
				return text[open : i+1]
			}
		}
	}
	return text[open:]
}

func stripComments(text string) string {
	var b strings.Builder
	b.Grow(len(text))
	inString, escaped := false, false
	for i := 0; i < len(text); i++ {
		ch := text[i]
		if inString {
			b.WriteByte(ch)
			switch {
			case escaped:
				escaped = false
			case ch == '\\':
				escaped = true
			case ch == '"':
				inString = false
			}
			continue
		}
		if ch == '"' {
			inString = true
			b.WriteByte(ch)
			continue
		}
		if ch == '/' && i+1 < len(text) {
			switch text[i+1] {
			case '/':
				for i < len(text) && text[i] != '\n' {
					i++
				}
				if i < len(text) {
					b.WriteByte('\n')
				}
				continue
			case '*':
				end := strings.Index(text[i+2:], "*/")
				if end < 0 {
					i = len(text)
				} else {
					i += end + 3
				}
				continue
			}
		}
		b.WriteByte(ch)
	}
	return strings.TrimSpace(b.String())
}
