package klyptik

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/google/uuid"
)

// QuizGenerator turns instructions into stored quiz documents: it asks the
// generator for text, recovers a document from it and keeps the result.
type QuizGenerator struct {
	generator     Generator
	pipeline      *Pipeline
	model         string
	db            *DB
	cache         DocumentCache
	transcriptDir string
	logger        *slog.Logger
}

// NewQuizGenerator creates a quiz generator with no store, no cache and no
// transcripts. model only labels transcripts.
func NewQuizGenerator(gen Generator, pipeline *Pipeline, model string) *QuizGenerator {
	if pipeline == nil {
		pipeline = defaultPipeline
	}
	return &QuizGenerator{
		generator: gen,
		pipeline:  pipeline,
		model:     model,
		cache:     noopCache{},
		logger:    slog.Default(),
	}
}

// SetStore persists every generated quiz to db
func (qg *QuizGenerator) SetStore(db *DB) { qg.db = db }

// SetCache sets the document cache
func (qg *QuizGenerator) SetCache(cache DocumentCache) {
	if cache == nil {
		cache = noopCache{}
	}
	qg.cache = cache
}

// SetTranscriptDir enables per-quiz transcripts under dir
func (qg *QuizGenerator) SetTranscriptDir(dir string) { qg.transcriptDir = dir }

func (qg *QuizGenerator) SetLogger(logger *slog.Logger) { qg.logger = logger }

// GenerateQuiz produces one quiz. The returned quiz always carries a valid
// document; when the generator fails it is the fallback document and the
// error wraps ErrGeneration.
func (qg *QuizGenerator) GenerateQuiz(ctx context.Context, req GenerationRequest) (*Quiz, error) {
	instruction := strings.TrimSpace(req.Instruction)
	quiz := &Quiz{
		ID:          uuid.NewString(),
		Instruction: instruction,
		CreatedAt:   time.Now().UTC(),
	}
	logger := qg.logger.With("quiz_id", quiz.ID)

	if doc, ok := qg.cached(ctx, logger, instruction); ok {
		logger.Info("Quiz served from cache")
		qg.finish(quiz, Outcome{Document: doc, State: StateDone})
		qg.store(logger, quiz)
		return quiz, nil
	}

	tl := qg.openTranscript(logger, quiz.ID, instruction)
	defer tl.Close()

	logger.Info("Generating quiz", "instruction", instruction)
	prompt := BuildPrompt(instruction)
	tl.LogRequest(qg.model, prompt)

	raw, err := qg.generator.Generate(ctx, prompt)
	if err != nil {
		genErr := fmt.Errorf("%w: %w", ErrGeneration, err)
		logger.Error("Text generation failed", "error", err)
		out := qg.pipeline.Fallback(instruction, genErr.Error())
		tl.LogOutcome(out)
		qg.finish(quiz, out)
		qg.store(logger, quiz)
		return quiz, genErr
	}
	tl.LogResponse(qg.model, raw)

	out := qg.pipeline.Recover(raw, instruction)
	tl.LogOutcome(out)
	quiz.RawOutput = raw
	qg.finish(quiz, out)
	qg.store(logger, quiz)

	if !quiz.Degraded {
		if err := qg.cache.Set(ctx, instruction, quiz.Document); err != nil {
			logger.Warn("Failed to cache quiz", "error", err)
		}
	}

	logger.Info("Quiz generated",
		"title", quiz.Title,
		"questions", len(QuizQuestions(quiz.Document)),
		"degraded", quiz.Degraded)
	return quiz, nil
}

func (qg *QuizGenerator) cached(ctx context.Context, logger *slog.Logger, instruction string) (Value, bool) {
	doc, ok, err := qg.cache.Get(ctx, instruction)
	if err != nil {
		logger.Warn("Cache lookup failed", "error", err)
		return Value{}, false
	}
	return doc, ok
}

// openTranscript returns nil when transcripts are off or the file cannot be
// created; a nil *TranscriptLogger discards everything.
func (qg *QuizGenerator) openTranscript(logger *slog.Logger, quizID, instruction string) *TranscriptLogger {
	if qg.transcriptDir == "" {
		return nil
	}
	tl, err := NewTranscriptLogger(qg.transcriptDir, quizID, GenerationRequest{Instruction: instruction})
	if err != nil {
		logger.Warn("Continuing without transcript", "error", err)
		return nil
	}
	return tl
}

func (qg *QuizGenerator) finish(quiz *Quiz, out Outcome) {
	quiz.Document = out.Document
	quiz.Degraded = out.Degraded()
	quiz.Error = DocumentError(out.Document)
	quiz.Title = DocumentTitle(out.Document)
	if quiz.Title == "" {
		quiz.Title = titleFromInstruction(quiz.Instruction)
	}
}

// store failures are logged; the document is still returned to the caller
func (qg *QuizGenerator) store(logger *slog.Logger, quiz *Quiz) {
	if qg.db == nil {
		return
	}
	if err := qg.db.SaveQuiz(quiz); err != nil {
		logger.Error("Failed to store quiz", "error", err)
	}
}
