package klyptik

import (
	"encoding/json"
	"fmt"
	"regexp"
	"strings"
)

// Strategy names the extraction step that produced a value
type Strategy string

const (
	StrategyGreedy   Strategy = "greedy-brace"
	StrategyBalanced Strategy = "balanced-bracket"
	StrategyQuoted   Strategy = "quoted-strings"

	// StrategyOpenBrace is the unterminated tail offered to deep repair
	StrategyOpenBrace Strategy = "open-brace"
)

// Candidate is a substring of model output believed to delimit one value
type Candidate struct {
	Strategy Strategy
	Text     string
}

// Extraction is a successfully extracted value and the strategy that found it
type Extraction struct {
	Value    Value
	Strategy Strategy
}

var (
	quotedLiteral = regexp.MustCompile(`"(?:[^"\\]|\\.)*"`)

	chatTokens = strings.NewReplacer(
		"<|im_start|>", "",
		"<|im_end|>", "",
		"<|endoftext|>", "",
	)
)

const assistantMarker = "<|im_start|>assistant"

// TrimTranscript drops the echoed prompt and chat template tokens that some
// runtimes leave around the completion. It never repairs anything.
func TrimTranscript(raw string) string {
	if i := strings.LastIndex(raw, assistantMarker); i != -1 {
		raw = raw[i+len(assistantMarker):]
	}
	return strings.TrimSpace(chatTokens.Replace(raw))
}

// Extract isolates the most plausible value in text: the greedy brace span,
// then the first balanced object, then a document rebuilt from quoted strings.
// The brace strategies use ParseValue as is; leniency belongs to Sanitize.
func Extract(text string) (Extraction, error) {
	if ext, ok := parseFirst(Candidates(text)); ok {
		return ext, nil
	}
	return ReconstructQuoted(text)
}

// parseFirst returns the first candidate that passes the strict parser
func parseFirst(candidates []Candidate) (Extraction, bool) {
	for _, c := range candidates {
		if v, err := ParseValue(c.Text); err == nil {
			return Extraction{Value: v, Strategy: c.Strategy}, true
		}
	}
	return Extraction{}, false
}

// Candidates returns the brace-delimited candidates in priority order,
// skipping a balanced candidate identical to the greedy one.
func Candidates(text string) []Candidate {
	var out []Candidate
	greedy, ok := greedySpan(text)
	if ok {
		out = append(out, Candidate{Strategy: StrategyGreedy, Text: greedy})
	}
	if balanced, ok := balancedSpan(text); ok && balanced != greedy {
		out = append(out, Candidate{Strategy: StrategyBalanced, Text: balanced})
	}
	return out
}

// greedySpan is everything from the first '{' to the last '}'
func greedySpan(text string) (string, bool) {
	start := strings.Index(text, "{")
	end := strings.LastIndex(text, "}")
	if start == -1 || end <= start {
		return "", false
	}
	return text[start : end+1], true
}

// balancedSpan walks from the first '{' until depth returns to zero.
// Braces inside string literals do not count.
func balancedSpan(text string) (string, bool) {
	start := strings.Index(text, "{")
	if start == -1 {
		return "", false
	}

	depth := 0
	inString := false
	escaped := false
	for i := start; i < len(text); i++ {
		c := text[i]
		if inString {
			switch {
			case escaped:
				escaped = false
			case c == '\\':
				escaped = true
			case c == '"':
				inString = false
			}
			continue
		}
		switch c {
		case '"':
			inString = true
		case '{':
			depth++
		case '}':
			depth--
			if depth == 0 {
				return text[start : i+1], true
			}
		}
	}
	return "", false
}

// openCandidate is everything from the first '{' to the end of text, for
// output cut off mid-structure. It is skipped when a brace candidate already
// covers the same text.
func openCandidate(text string, existing []Candidate) (Candidate, bool) {
	start := strings.Index(text, "{")
	if start == -1 {
		return Candidate{}, false
	}
	tail := strings.TrimSpace(text[start:])
	for _, c := range existing {
		if c.Text == tail {
			return Candidate{}, false
		}
	}
	return Candidate{Strategy: StrategyOpenBrace, Text: tail}, true
}

// ReconstructQuoted pairs up every double-quoted literal in text as
// (question, answer) and builds a minimal quiz document from the pairs.
func ReconstructQuoted(text string) (Extraction, error) {
	literals := quotedLiteral.FindAllString(text, -1)

	questions := make([]Value, 0, len(literals)/2)
	for i := 0; i+1 < len(literals); i += 2 {
		questions = append(questions, ObjectValue(
			Member{Key: "question", Value: StringValue(unquote(literals[i]))},
			Member{Key: "answer", Value: StringValue(unquote(literals[i+1]))},
		))
	}
	if len(questions) == 0 {
		return Extraction{}, fmt.Errorf("%w: %d quoted strings", ErrExtraction, len(literals))
	}

	doc := ObjectValue(Member{
		Key:   "quiz",
		Value: ObjectValue(Member{Key: "questions", Value: ArrayValue(questions...)}),
	})
	return Extraction{Value: doc, Strategy: StrategyQuoted}, nil
}

// unquote decodes a JSON string literal, falling back to the bare inner text
func unquote(literal string) string {
	var s string
	if err := json.Unmarshal([]byte(literal), &s); err == nil {
		return s
	}
	return literal[1 : len(literal)-1]
}
