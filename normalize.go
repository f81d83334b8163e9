package klyptik

import (
	"strconv"
	"strings"
)

// answerSynonyms are the key spellings, after lower-casing and trimming,
// that mean "the correct answer"
var answerSynonyms = map[string]bool{
	"answer":         true,
	"correct_answer": true,
	"right_answer":   true,
	"ans":            true,
	"solution":       true,
	"correct":        true,
	"response":       true,
}

// NormalizationWarning records an answer that could not be resolved against
// its options. It never stops processing.
type NormalizationWarning struct {
	Question string
	Answer   string
}

func (w NormalizationWarning) String() string {
	return "unresolved answer " + strconv.Quote(w.Answer) + " for question " + strconv.Quote(w.Question)
}

// Normalize renames answer synonyms to "answer" in every object and reduces
// answers to option letters where the options make that unambiguous.
// It is total, order preserving and idempotent.
func Normalize(v Value) (Value, []NormalizationWarning) {
	var warnings []NormalizationWarning
	out := v.Transform(func(obj Value) Value {
		obj = renameAnswerKeys(obj)
		obj, warning, ok := canonicalizeAnswer(obj)
		if !ok {
			warnings = append(warnings, warning)
		}
		return obj
	})
	return out, warnings
}

// renameAnswerKeys rewrites synonym keys to "answer". When several keys
// collapse, the later value wins at the earlier position.
func renameAnswerKeys(obj Value) Value {
	members := make([]Member, 0, len(obj.Members()))
	for _, m := range obj.Members() {
		key := m.Key
		if answerSynonyms[strings.ToLower(strings.TrimSpace(key))] {
			key = "answer"
		}
		members = setMember(members, key, m.Value)
	}
	return Value{kind: KindObject, members: members}
}

// canonicalizeAnswer applies to objects carrying question, options (array)
// and answer. ok is false when the answer could not be resolved.
func canonicalizeAnswer(obj Value) (Value, NormalizationWarning, bool) {
	question, hasQuestion := obj.Get("question")
	options, hasOptions := obj.Get("options")
	answer, hasAnswer := obj.Get("answer")
	if !hasQuestion || !hasAnswer || !hasOptions || options.Kind() != KindArray || len(options.Items()) == 0 {
		return obj, NormalizationWarning{}, true
	}

	texts := optionTexts(options.Items())
	text, isText := scalarText(answer)
	if isText {
		if letter, ok := resolveAnswer(text, texts); ok {
			if letter == text {
				return obj, NormalizationWarning{}, true
			}
			return obj.With("answer", StringValue(letter)), NormalizationWarning{}, true
		}
	}

	if !isText {
		text = answer.String()
	}
	questionText, _ := scalarText(question)
	return obj, NormalizationWarning{Question: questionText, Answer: text}, false
}

// resolveAnswer maps an answer to its option letter. An answer that is already
// a letter comes back unchanged.
func resolveAnswer(answer string, options []string) (string, bool) {
	trimmed := strings.TrimSpace(answer)
	if isLetterAnswer(trimmed, len(options)) {
		return answer, true
	}

	lowered := strings.ToLower(trimmed)
	for i, opt := range options {
		if opt != "" && opt == lowered {
			return optionLetter(i)
		}
	}
	for i, opt := range options {
		if opt != "" && strings.Contains(lowered, opt) {
			return optionLetter(i)
		}
	}
	if !isDigits(trimmed) {
		return "", false
	}
	if n, err := strconv.Atoi(trimmed); err == nil && n >= 1 && n <= len(options) {
		return optionLetter(n - 1)
	}
	return "", false
}

// isLetterAnswer accepts A-D in any case, and any later letter that still
// names an existing option, so resolved answers stay fixed points.
func isLetterAnswer(s string, numOptions int) bool {
	if len(s) != 1 {
		return false
	}
	c := s[0] | 0x20
	if c < 'a' || c > 'z' {
		return false
	}
	idx := int(c - 'a')
	return idx < 4 || idx < numOptions
}

func optionLetter(i int) (string, bool) {
	if i < 0 || i >= 26 {
		return "", false
	}
	return string(rune('A' + i)), true
}

// AnswerIndex converts a canonical letter answer to a 0-based option index,
// or -1 when it is not a letter within numOptions.
func AnswerIndex(answer string, numOptions int) int {
	s := strings.TrimSpace(answer)
	if len(s) != 1 {
		return -1
	}
	c := s[0] | 0x20
	if c < 'a' || c > 'z' {
		return -1
	}
	idx := int(c - 'a')
	if idx >= numOptions {
		return -1
	}
	return idx
}

// optionTexts lower-cases and trims options for matching; non-scalar options
// become "" and never match.
func optionTexts(items []Value) []string {
	texts := make([]string, len(items))
	for i, item := range items {
		if s, ok := scalarText(item); ok {
			texts[i] = strings.ToLower(strings.TrimSpace(s))
		}
	}
	return texts
}

// scalarText returns the text of a string or number value
func scalarText(v Value) (string, bool) {
	if s, ok := v.AsString(); ok {
		return s, true
	}
	if lit, ok := v.NumberLiteral(); ok {
		return lit, true
	}
	return "", false
}

func isDigits(s string) bool {
	if s == "" {
		return false
	}
	for i := 0; i < len(s); i++ {
		if s[i] < '0' || s[i] > '9' {
			return false
		}
	}
	return true
}
