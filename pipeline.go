package klyptik

import (
	"fmt"
	"log/slog"
)

// State is a step of the recovery state machine
type State string

const (
	StateExtract     State = "extract"
	StateValidate    State = "validate"
	StateSanitize    State = "sanitize"
	StateRepair      State = "repair"
	StateReconstruct State = "reconstruct"
	StateNormalize   State = "normalize"
	StateDone        State = "done"
	StateFallback    State = "fallback"
)

// PipelineOptions configures a Pipeline. The zero value gives the strict
// behaviour: one sanitizer pass, no deep repair, nested quiz shape.
type PipelineOptions struct {
	// DeepRepair offers candidates that survive sanitization to jsonrepair
	DeepRepair bool

	// Flatten returns {"quiz": [...]} instead of {"quiz": {"questions": [...]}}
	// for recovered documents. The fallback document keeps its nested shape.
	Flatten bool

	Logger *slog.Logger
}

// Pipeline turns raw model output into a quiz document. It holds no mutable
// state, so one Pipeline can serve concurrent callers.
type Pipeline struct {
	opts   PipelineOptions
	logger *slog.Logger
}

// Outcome is the finished document plus how the run got there
type Outcome struct {
	Document  Value
	State     State // StateDone or StateFallback
	Strategy  Strategy
	Sanitized bool
	Repaired  bool
	Reason    string // set on fallback
	Warnings  []NormalizationWarning
	Path      []State
}

// Degraded reports whether the document came from the fallback builder
func (o Outcome) Degraded() bool { return o.State == StateFallback }

// NewPipeline creates a recovery pipeline
func NewPipeline(opts PipelineOptions) *Pipeline {
	logger := opts.Logger
	if logger == nil {
		logger = slog.Default()
	}
	return &Pipeline{opts: opts, logger: logger}
}

var defaultPipeline = NewPipeline(PipelineOptions{})

// Run recovers a quiz document from rawText with the default pipeline
func Run(rawText, instruction string) Value {
	return defaultPipeline.Run(rawText, instruction)
}

// Run recovers a quiz document from rawText. It never fails: unrecoverable
// input yields the fallback document labelled with instruction.
func (p *Pipeline) Run(rawText, instruction string) Value {
	return p.Recover(rawText, instruction).Document
}

// Recover is Run with the details of the outcome
func (p *Pipeline) Recover(rawText, instruction string) (out Outcome) {
	defer func() {
		if r := recover(); r != nil {
			out = p.fallback(instruction, fmt.Sprintf("internal error: %v", r))
		}
	}()

	ext, err := p.extract(TrimTranscript(rawText))
	if err != nil {
		return p.fallback(instruction, err.Error(), ext.path...)
	}

	path := append(ext.path, StateNormalize)
	normalized, warnings := Normalize(ext.value)
	for _, w := range warnings {
		p.logger.Warn("Answer not resolved against options", "question", w.Question, "answer", w.Answer)
	}

	doc, err := ShapeDocument(normalized)
	if err != nil {
		return p.fallback(instruction, err.Error(), path...)
	}
	if p.opts.Flatten {
		doc = FlattenDocument(doc)
	}

	out = Outcome{
		Document:  doc,
		State:     StateDone,
		Strategy:  ext.strategy,
		Sanitized: ext.sanitized,
		Repaired:  ext.repaired,
		Warnings:  warnings,
		Path:      append(path, StateDone),
	}
	p.logger.Debug("Quiz recovered",
		"state", out.State,
		"strategy", out.Strategy,
		"sanitized", out.Sanitized,
		"repaired", out.Repaired,
		"questions", len(QuizQuestions(doc)),
		"warnings", len(warnings))
	return out
}

type extraction struct {
	value     Value
	strategy  Strategy
	sanitized bool
	repaired  bool
	path      []State
}

// extract walks EXTRACT -> VALIDATE -> (SANITIZE -> VALIDATE) -> [REPAIR ->
// VALIDATE] -> RECONSTRUCT. Each candidate is sanitized at most once.
func (p *Pipeline) extract(text string) (extraction, error) {
	path := []State{StateExtract}
	candidates := Candidates(text)

	path = append(path, StateValidate)
	if ext, ok := parseFirst(candidates); ok {
		return extraction{value: ext.Value, strategy: ext.Strategy, path: path}, nil
	}

	if len(candidates) > 0 {
		path = append(path, StateSanitize, StateValidate)
		sanitized := make([]Candidate, len(candidates))
		for i, c := range candidates {
			sanitized[i] = Candidate{Strategy: c.Strategy, Text: Sanitize(c.Text)}
		}
		if ext, ok := parseFirst(sanitized); ok {
			return extraction{value: ext.Value, strategy: ext.Strategy, sanitized: true, path: path}, nil
		}
		p.logger.Debug("Candidates abandoned after sanitizing", "candidates", len(candidates))
	}

	if p.opts.DeepRepair {
		// the unterminated tail spans every other candidate, so it is tried first
		repairable := candidates
		if c, ok := openCandidate(text, candidates); ok {
			repairable = append([]Candidate{c}, candidates...)
		}
		if len(repairable) > 0 {
			path = append(path, StateRepair, StateValidate)
		}
		for _, c := range repairable {
			repaired, err := DeepRepair(Sanitize(c.Text))
			if err != nil {
				p.logger.Debug("Candidate not repaired", "strategy", c.Strategy, "error", err)
				continue
			}
			if v, err := ParseValue(repaired); err == nil {
				return extraction{value: v, strategy: c.Strategy, sanitized: true, repaired: true, path: path}, nil
			}
		}
	}

	path = append(path, StateReconstruct)
	ext, err := ReconstructQuoted(text)
	if err != nil {
		return extraction{path: path}, err
	}
	return extraction{value: ext.Value, strategy: ext.Strategy, path: path}, nil
}

// Fallback returns the fallback outcome for a run that never produced text
func (p *Pipeline) Fallback(instruction, reason string) Outcome {
	return p.fallback(instruction, reason)
}

func (p *Pipeline) fallback(instruction, reason string, path ...State) Outcome {
	p.logger.Warn("Quiz recovery fell back", "reason", reason)
	// not flattened: a fallback always carries quiz.questions
	doc := BuildFallback(instruction, reason)
	return Outcome{Document: doc, State: StateFallback, Reason: reason, Path: append(path, StateFallback)}
}
