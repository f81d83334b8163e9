package klyptik

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestTrimTranscript(t *testing.T) {
	tests := []struct {
		name  string
		input string
		want  string
	}{
		{
			name:  "echoed prompt",
			input: "<|im_start|>user\nGenerate a JSON quiz based on this instruction: {x}<|im_end|>\n<|im_start|>assistant\n{\"quiz\": []}<|im_end|>",
			want:  `{"quiz": []}`,
		},
		{
			name:  "plain text",
			input: "  {\"a\": 1}\n",
			want:  `{"a": 1}`,
		},
		{
			name:  "end of text token",
			input: `{"a": 1}<|endoftext|>`,
			want:  `{"a": 1}`,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			require.Equal(t, tt.want, TrimTranscript(tt.input))
		})
	}
}

func TestExtractStrategies(t *testing.T) {
	tests := []struct {
		name     string
		input    string
		strategy Strategy
		want     string
	}{
		{
			name:     "greedy with surrounding prose",
			input:    `Sure! Here is your quiz: {"quiz": {"questions": []}} Enjoy.`,
			strategy: StrategyGreedy,
			want:     `{"quiz":{"questions":[]}}`,
		},
		{
			name:     "balanced with trailing brace in prose",
			input:    `{"quiz": {"questions": []}} and a stray } here`,
			strategy: StrategyBalanced,
			want:     `{"quiz":{"questions":[]}}`,
		},
		{
			name:     "balanced ignores braces inside strings",
			input:    `{"question": "what is {x}?", "answer": "y"} trailing }`,
			strategy: StrategyBalanced,
			want:     `{"question":"what is {x}?","answer":"y"}`,
		},
		{
			name:     "quoted strings",
			input:    `question "Capital of France?" answer "Paris" question "2+2?" answer "4"`,
			strategy: StrategyQuoted,
			want:     `{"quiz":{"questions":[{"question":"Capital of France?","answer":"Paris"},{"question":"2+2?","answer":"4"}]}}`,
		},
		{
			name:     "quoted strings drop an unpaired literal",
			input:    `"q1" "a1" "orphan"`,
			strategy: StrategyQuoted,
			want:     `{"quiz":{"questions":[{"question":"q1","answer":"a1"}]}}`,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			ext, err := Extract(tt.input)
			require.NoError(t, err)
			require.Equal(t, tt.strategy, ext.Strategy)
			require.Equal(t, tt.want, ext.Value.String())
		})
	}
}

func TestExtractDoesNotSanitize(t *testing.T) {
	// brace candidates fail as written, so the quoted strings are used
	ext, err := Extract(`{question: "x", options: ["a", "b"],}`)
	require.NoError(t, err)
	require.Equal(t, StrategyQuoted, ext.Strategy)
}

func TestExtractFailure(t *testing.T) {
	for _, input := range []string{"", "no structured content here", `only "one" {`, "\x00\xff\xfe"} {
		_, err := Extract(input)
		require.ErrorIs(t, err, ErrExtraction, "input %q", input)
	}
}

func TestCandidates(t *testing.T) {
	require.Empty(t, Candidates("nothing"))
	require.Empty(t, Candidates("} before {"))

	same := Candidates(`x {"a": {"b": 1}} y`)
	require.Len(t, same, 1, "balanced span equal to greedy span is not repeated")
	require.Equal(t, StrategyGreedy, same[0].Strategy)

	two := Candidates(`{"a": 1} {"b": 2}`)
	require.Len(t, two, 2)
	require.Equal(t, `{"a": 1} {"b": 2}`, two[0].Text)
	require.Equal(t, `{"a": 1}`, two[1].Text)
}

func TestOpenCandidate(t *testing.T) {
	c, ok := openCandidate(`prose {"quiz": [{"question": "x"`, nil)
	require.True(t, ok)
	require.Equal(t, StrategyOpenBrace, c.Strategy)
	require.Equal(t, `{"quiz": [{"question": "x"`, c.Text)

	_, ok = openCandidate(`{"a": 1}`, Candidates(`{"a": 1}`))
	require.False(t, ok)

	_, ok = openCandidate("no brace", nil)
	require.False(t, ok)
}
