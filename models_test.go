package klyptik

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestQuestionsFromDocument(t *testing.T) {
	doc := mustParse(t, `{"quiz": {"questions": [
		{"question": "ok?", "options": ["yes", "no"], "answer": "A"},
		{"question": "unresolved", "options": ["x", "y"], "answer": "maybe"},
		{"question": "numeric option", "options": [1, 2], "answer": "A"},
		{"question": "no options", "answer": "A"},
		{"question": 5, "options": ["x"], "answer": "A"},
		"not a record"
	]}}`)

	require.Equal(t, []Question{
		{Text: "ok?", Options: []string{"yes", "no"}, Answer: "A", AnswerIndex: 0},
		{Text: "unresolved", Options: []string{"x", "y"}, Answer: "maybe", AnswerIndex: -1},
	}, QuestionsFromDocument(doc))

	require.Empty(t, QuestionsFromDocument(BuildFallback("x", "y")))
	require.Empty(t, QuestionsFromDocument(NullValue()))
}

func TestQuizQuestionsFlatAndNested(t *testing.T) {
	flat := mustParse(t, `{"quiz": [{"question": "a"}]}`)
	nested := mustParse(t, `{"quiz": {"questions": [{"question": "a"}, {"question": "b"}]}}`)
	require.Len(t, QuizQuestions(flat), 1)
	require.Len(t, QuizQuestions(nested), 2)
	require.Nil(t, QuizQuestions(mustParse(t, `{"other": 1}`)))
}
