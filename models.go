package klyptik

import "time"

// Question is the typed view of one well-formed question record
type Question struct {
	Text        string   `json:"question"`
	Options     []string `json:"options"`
	Answer      string   `json:"answer"`
	AnswerIndex int      `json:"answer_index"` // 0-based, -1 when the answer is not an option letter
}

// Quiz is a generated quiz as stored
type Quiz struct {
	ID          string    `json:"id"`
	Instruction string    `json:"instruction"`
	Title       string    `json:"title"`
	Document    Value     `json:"document"`
	RawOutput   string    `json:"raw_output,omitempty"`
	Degraded    bool      `json:"degraded"`
	Error       string    `json:"error,omitempty"`
	CreatedAt   time.Time `json:"created_at"`
}

// Questions returns the well-formed questions of the quiz document
func (q *Quiz) Questions() []Question {
	return QuestionsFromDocument(q.Document)
}

// GenerationRequest is a request to generate one quiz
type GenerationRequest struct {
	Instruction string `json:"instruction"`
}

// QuestionsFromDocument returns the records of doc that carry a string
// question, an all-string options list and a string answer. Anything else
// is skipped.
func QuestionsFromDocument(doc Value) []Question {
	var out []Question
	for _, rec := range QuizQuestions(doc) {
		q, ok := questionFromRecord(rec)
		if ok {
			out = append(out, q)
		}
	}
	return out
}

func questionFromRecord(rec Value) (Question, bool) {
	text, ok := stringField(rec, "question")
	if !ok {
		return Question{}, false
	}
	answer, ok := stringField(rec, "answer")
	if !ok {
		return Question{}, false
	}
	opts, ok := rec.Get("options")
	if !ok || opts.Kind() != KindArray {
		return Question{}, false
	}

	options := make([]string, 0, len(opts.Items()))
	for _, item := range opts.Items() {
		s, ok := item.AsString()
		if !ok {
			return Question{}, false
		}
		options = append(options, s)
	}

	return Question{
		Text:        text,
		Options:     options,
		Answer:      answer,
		AnswerIndex: AnswerIndex(answer, len(options)),
	}, true
}

func stringField(rec Value, key string) (string, bool) {
	v, ok := rec.Get(key)
	if !ok {
		return "", false
	}
	return v.AsString()
}
