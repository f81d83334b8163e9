package klyptik

import (
	"fmt"
	"strings"
	"unicode/utf8"
)

const maxTitleLength = 80

// BuildFallback returns the minimal valid document used when recovery is
// impossible. It is the only place that sets the "error" key.
func BuildFallback(instruction, reason string) Value {
	return ObjectValue(
		Member{Key: "title", Value: StringValue(titleFromInstruction(instruction))},
		Member{Key: "quiz", Value: ObjectValue(Member{Key: "questions", Value: ArrayValue()})},
		Member{Key: "error", Value: StringValue(reason)},
	)
}

func titleFromInstruction(instruction string) string {
	title := strings.Join(strings.Fields(instruction), " ")
	if title == "" {
		return "Untitled quiz"
	}
	if utf8.RuneCountInString(title) > maxTitleLength {
		runes := []rune(title)
		title = strings.TrimSpace(string(runes[:maxTitleLength])) + "..."
	}
	return title
}

// ShapeDocument coerces a normalized value into the quiz document shape.
// Any "error" key the model produced is dropped.
func ShapeDocument(v Value) (Value, error) {
	switch v.Kind() {
	case KindArray:
		return ObjectValue(Member{Key: "quiz", Value: v}), nil
	case KindObject:
	default:
		return Value{}, fmt.Errorf("%w: top-level %s", ErrNoQuizContent, v.Kind())
	}

	v = v.Without("error")

	if quiz, ok := v.Get("quiz"); ok {
		if quiz.Kind() == KindArray {
			return v, nil
		}
		if questions, ok := quiz.Get("questions"); ok && questions.Kind() == KindArray {
			return v, nil
		}
		return Value{}, fmt.Errorf("%w: quiz holds %s", ErrNoQuizContent, quiz.Kind())
	}

	if questions, ok := v.Get("questions"); ok && questions.Kind() == KindArray {
		members := make([]Member, 0, len(v.Members()))
		for _, m := range v.Members() {
			if m.Key == "questions" {
				m = Member{Key: "quiz", Value: ObjectValue(Member{Key: "questions", Value: questions})}
			}
			members = append(members, m)
		}
		return ObjectValue(members...), nil
	}

	if v.Has("question") {
		return ObjectValue(Member{Key: "quiz", Value: ArrayValue(v)}), nil
	}
	return Value{}, ErrNoQuizContent
}

// FlattenDocument turns {"quiz": {"questions": [...]}} into {"quiz": [...]},
// hoisting a title held inside the quiz object.
func FlattenDocument(doc Value) Value {
	quiz, ok := doc.Get("quiz")
	if !ok || quiz.Kind() != KindObject {
		return doc
	}
	questions, ok := quiz.Get("questions")
	if !ok || questions.Kind() != KindArray {
		return doc
	}

	out := doc.With("quiz", questions)
	if title, ok := quiz.Get("title"); ok && !doc.Has("title") {
		out = hoist(out, Member{Key: "title", Value: title})
	}
	return out
}

// hoist puts m first in an object value
func hoist(obj Value, m Member) Value {
	members := append([]Member{m}, obj.Members()...)
	return ObjectValue(members...)
}

// QuizQuestions returns the question records of a shaped document
func QuizQuestions(doc Value) []Value {
	quiz, ok := doc.Get("quiz")
	if !ok {
		return nil
	}
	if quiz.Kind() == KindArray {
		return quiz.Items()
	}
	questions, _ := quiz.Get("questions")
	return questions.Items()
}

// DocumentTitle returns the document title, looking inside the quiz object too
func DocumentTitle(doc Value) string {
	if title, ok := doc.Get("title"); ok {
		if s, ok := title.AsString(); ok {
			return s
		}
	}
	quiz, _ := doc.Get("quiz")
	if title, ok := quiz.Get("title"); ok {
		if s, ok := title.AsString(); ok {
			return s
		}
	}
	return ""
}

// DocumentError returns the fallback reason, or "" for a recovered document
func DocumentError(doc Value) string {
	if e, ok := doc.Get("error"); ok {
		s, _ := e.AsString()
		return s
	}
	return ""
}
