package klyptik

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func mustParse(t *testing.T, text string) Value {
	t.Helper()
	v, err := ParseValue(text)
	require.NoError(t, err)
	return v
}

func TestNormalizeAnswers(t *testing.T) {
	tests := []struct {
		name     string
		input    string
		want     string
		warnings int
	}{
		{
			name:  "synonym key and exact match",
			input: `{"question": "2+2?", "options": ["3","4"], "correct_answer": "4"}`,
			want:  `{"question":"2+2?","options":["3","4"],"answer":"B"}`,
		},
		{
			name:  "case insensitive exact match",
			input: `{"question": "Capital?", "options": ["Paris","London","Berlin"], "answer": "paris"}`,
			want:  `{"question":"Capital?","options":["Paris","London","Berlin"],"answer":"A"}`,
		},
		{
			name:  "one based index",
			input: `{"question": "q", "options": ["x","y","z"], "answer": "2"}`,
			want:  `{"question":"q","options":["x","y","z"],"answer":"B"}`,
		},
		{
			name:  "numeric index",
			input: `{"question": "q", "options": ["x","y","z"], "answer": 3}`,
			want:  `{"question":"q","options":["x","y","z"],"answer":"C"}`,
		},
		{
			name:  "verbose answer contains option",
			input: `{"question": "Largest planet?", "options": ["Mars","Jupiter"], "solution": "The answer is Jupiter, by far"}`,
			want:  `{"question":"Largest planet?","options":["Mars","Jupiter"],"answer":"B"}`,
		},
		{
			name:  "letter kept as written",
			input: `{"question": "q", "options": ["x","y"], "answer": "c"}`,
			want:  `{"question":"q","options":["x","y"],"answer":"c"}`,
		},
		{
			name:  "letter past D within options",
			input: `{"question": "q", "options": ["a1","b1","c1","d1","e1","f1"], "answer": "F"}`,
			want:  `{"question":"q","options":["a1","b1","c1","d1","e1","f1"],"answer":"F"}`,
		},
		{
			name:     "index out of range",
			input:    `{"question": "q", "options": ["x","y"], "answer": "7"}`,
			want:     `{"question":"q","options":["x","y"],"answer":"7"}`,
			warnings: 1,
		},
		{
			name:     "unresolvable text",
			input:    `{"question": "q", "options": ["x","y"], "answer": "none of these"}`,
			want:     `{"question":"q","options":["x","y"],"answer":"none of these"}`,
			warnings: 1,
		},
		{
			name:  "empty options left alone",
			input: `{"question": "q", "options": [], "answer": "whatever"}`,
			want:  `{"question":"q","options":[],"answer":"whatever"}`,
		},
		{
			name:  "record without options only renamed",
			input: `{"question": "q", "Right_Answer ": "free text"}`,
			want:  `{"question":"q","answer":"free text"}`,
		},
		{
			name:  "empty option never matches",
			input: `{"question": "q", "options": ["", "yes"], "answer": "yes"}`,
			want:  `{"question":"q","options":["","yes"],"answer":"B"}`,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			out, warnings := Normalize(mustParse(t, tt.input))
			require.Equal(t, tt.want, out.String())
			require.Len(t, warnings, tt.warnings)
		})
	}
}

func TestNormalizeNestedRecords(t *testing.T) {
	input := mustParse(t, `{"quiz": {"title": "T", "questions": [
		{"question": "a?", "options": ["x","y"], "ans": "y"},
		{"question": "b?", "options": ["x","y"], "response": "1"}
	]}}`)

	out, warnings := Normalize(input)
	require.Empty(t, warnings)
	require.Equal(t,
		`{"quiz":{"title":"T","questions":[{"question":"a?","options":["x","y"],"answer":"B"},{"question":"b?","options":["x","y"],"answer":"A"}]}}`,
		out.String())
}

func TestNormalizeCollidingSynonyms(t *testing.T) {
	out, _ := Normalize(mustParse(t, `{"question": "q", "solution": "first", "extra": 1, "correct_answer": "second"}`))
	require.Equal(t, `{"question":"q","answer":"second","extra":1}`, out.String())
}

func TestNormalizeWarningNamesQuestion(t *testing.T) {
	_, warnings := Normalize(mustParse(t, `{"question": "Which?", "options": ["x"], "answer": "zzz"}`))
	require.Equal(t, []NormalizationWarning{{Question: "Which?", Answer: "zzz"}}, warnings)
	require.Equal(t, `unresolved answer "zzz" for question "Which?"`, warnings[0].String())
}

func TestNormalizeIdempotent(t *testing.T) {
	inputs := []string{
		`{"question": "2+2?", "options": ["3","4"], "correct_answer": "4"}`,
		`{"question": "q", "options": ["x","y","z"], "answer": 2}`,
		`{"question": "q", "options": ["a1","b1","c1","d1","e1","f1"], "answer": "f1"}`,
		`{"question": "q", "options": ["x","y"], "answer": "nope"}`,
		`[{"ANSWER": "b", "question": "q", "options": ["a","b"]}, null, 3, "s"]`,
		`{"quiz": [{"question": "q", "options": [{"nested": true}, "B"], "solution": "b"}]}`,
		`"just a string"`,
		`{}`,
	}
	for _, input := range inputs {
		once, _ := Normalize(mustParse(t, input))
		twice, _ := Normalize(once)
		require.True(t, once.Equal(twice), "input %s: %s != %s", input, once, twice)
	}
}

func TestNormalizeDoesNotModifyInput(t *testing.T) {
	input := mustParse(t, `{"question": "2+2?", "options": ["3","4"], "correct_answer": "4"}`)
	before := input.String()
	Normalize(input)
	require.Equal(t, before, input.String())
}

func TestAnswerIndex(t *testing.T) {
	require.Equal(t, 0, AnswerIndex("A", 4))
	require.Equal(t, 2, AnswerIndex(" c ", 4))
	require.Equal(t, -1, AnswerIndex("E", 4))
	require.Equal(t, -1, AnswerIndex("AB", 4))
	require.Equal(t, -1, AnswerIndex("1", 4))
	require.Equal(t, -1, AnswerIndex("", 4))
}
