package klyptik

import (
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"time"
)

// TranscriptLogger writes every model exchange of one quiz to its own file
type TranscriptLogger struct {
	file   *os.File
	mu     sync.Mutex
	quizID string
}

// NewTranscriptLogger creates dir/<quizID>.log and writes the header
func NewTranscriptLogger(dir, quizID string, req GenerationRequest) (*TranscriptLogger, error) {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("failed to create transcript directory: %w", err)
	}

	file, err := os.Create(filepath.Join(dir, quizID+".log"))
	if err != nil {
		return nil, fmt.Errorf("failed to create transcript file: %w", err)
	}

	tl := &TranscriptLogger{file: file, quizID: quizID}
	tl.Logf("=== Quiz Generation Transcript ===\n")
	tl.Logf("Quiz ID: %s\n", quizID)
	tl.Logf("Instruction: %s\n", req.Instruction)
	tl.Logf("Started: %s\n", time.Now().Format(time.RFC3339))
	tl.Logf("==================================\n\n")
	return tl, nil
}

// Path is the transcript file name
func (tl *TranscriptLogger) Path() string {
	return tl.file.Name()
}

// Logf writes a timestamped entry. A nil logger discards it.
func (tl *TranscriptLogger) Logf(format string, args ...any) {
	if tl == nil {
		return
	}
	tl.mu.Lock()
	defer tl.mu.Unlock()
	if tl.file == nil {
		return
	}

	timestamp := time.Now().Format("15:04:05.000")
	fmt.Fprintf(tl.file, "[%s] %s", timestamp, fmt.Sprintf(format, args...))
	tl.file.Sync()
}

// LogRequest logs a prompt sent to the generator
func (tl *TranscriptLogger) LogRequest(model, prompt string) {
	tl.Logf("=== REQUEST (%s) ===\n", model)
	tl.Logf("Prompt:\n%s\n", prompt)
	tl.Logf("====================\n\n")
}

// LogResponse logs raw generator output
func (tl *TranscriptLogger) LogResponse(model, response string) {
	tl.Logf("=== RESPONSE (%s) ===\n", model)
	tl.Logf("Response:\n%s\n", response)
	tl.Logf("=====================\n\n")
}

// LogOutcome logs how recovery ended
func (tl *TranscriptLogger) LogOutcome(out Outcome) {
	tl.Logf("Recovery: state=%s strategy=%s sanitized=%t repaired=%t path=%v\n",
		out.State, out.Strategy, out.Sanitized, out.Repaired, out.Path)
	if out.Reason != "" {
		tl.Logf("Fallback reason: %s\n", out.Reason)
	}
	for _, w := range out.Warnings {
		tl.Logf("Warning: %s\n", w)
	}
}

// Close writes the footer and closes the file
func (tl *TranscriptLogger) Close() error {
	if tl == nil {
		return nil
	}
	tl.Logf("=== Transcript Complete ===\n")
	tl.Logf("Completed: %s\n", time.Now().Format(time.RFC3339))

	tl.mu.Lock()
	defer tl.mu.Unlock()
	if tl.file == nil {
		return nil
	}
	err := tl.file.Close()
	tl.file = nil
	return err
}
