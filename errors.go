package klyptik

import "errors"

var (
	// ErrExtraction means no brace candidate parsed and no quoted pairs could be collected
	ErrExtraction = errors.New("no structured content found")

	// ErrParse means a candidate failed the strict parser
	ErrParse = errors.New("candidate does not parse")

	// ErrNoQuizContent means the parsed value holds nothing quiz-shaped
	ErrNoQuizContent = errors.New("no quiz content in model output")

	// ErrGeneration wraps failures of the upstream text generator
	ErrGeneration = errors.New("text generation failed")

	// ErrQuizNotFound is returned by store lookups that miss
	ErrQuizNotFound = errors.New("quiz not found")

	ErrQuestionNotFound = errors.New("question not found")

	// ErrRepairLimit means a candidate is too large or too deeply nested for deep repair
	ErrRepairLimit = errors.New("candidate exceeds repair limits")
)
