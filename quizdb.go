package klyptik

import (
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"strings"

	_ "github.com/mattn/go-sqlite3"
)

// DB is the quiz store
type DB struct {
	db *sql.DB
}

// OpenDB opens a new database connection
func OpenDB(dbPath string) (*DB, error) {
	db, err := sql.Open("sqlite3", dbPath+"?_foreign_keys=on&_busy_timeout=5000")
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	if err := db.Ping(); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to ping database: %w", err)
	}

	return &DB{db: db}, nil
}

// Close closes the database connection
func (db *DB) Close() error {
	return db.db.Close()
}

// CreateTables creates the necessary tables if they don't exist
func (db *DB) CreateTables() error {
	queries := []string{
		`CREATE TABLE IF NOT EXISTS quizzes (
			id TEXT PRIMARY KEY,
			instruction TEXT NOT NULL,
			title TEXT NOT NULL,
			document TEXT NOT NULL,
			raw_output TEXT NOT NULL DEFAULT '',
			degraded BOOLEAN NOT NULL DEFAULT 0,
			error TEXT NOT NULL DEFAULT '',
			created_at DATETIME NOT NULL
		)`,
		`CREATE TABLE IF NOT EXISTS questions (
			quiz_id TEXT NOT NULL,
			question_num INTEGER NOT NULL,
			text TEXT NOT NULL,
			options TEXT NOT NULL,
			answer TEXT NOT NULL,
			answer_index INTEGER NOT NULL,
			PRIMARY KEY (quiz_id, question_num),
			FOREIGN KEY (quiz_id) REFERENCES quizzes(id) ON DELETE CASCADE
		)`,
		`CREATE INDEX IF NOT EXISTS idx_quizzes_created_at ON quizzes(created_at)`,
	}

	for _, query := range queries {
		if _, err := db.db.Exec(query); err != nil {
			return fmt.Errorf("failed to execute %s: %w", query, err)
		}
	}
	return nil
}

// SaveQuiz stores the quiz and one row per well-formed question
func (db *DB) SaveQuiz(quiz *Quiz) error {
	document, err := quiz.Document.MarshalJSON()
	if err != nil {
		return fmt.Errorf("failed to encode quiz document: %w", err)
	}

	tx, err := db.db.Begin()
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	_, err = tx.Exec(
		"INSERT INTO quizzes (id, instruction, title, document, raw_output, degraded, error, created_at) VALUES (?, ?, ?, ?, ?, ?, ?, ?)",
		quiz.ID, quiz.Instruction, quiz.Title, string(document), quiz.RawOutput, quiz.Degraded, quiz.Error, quiz.CreatedAt.UTC(),
	)
	if err != nil {
		return fmt.Errorf("failed to create quiz: %w", err)
	}

	for i, q := range quiz.Questions() {
		options, err := OptionsToJSON(q.Options)
		if err != nil {
			return err
		}
		_, err = tx.Exec(
			"INSERT INTO questions (quiz_id, question_num, text, options, answer, answer_index) VALUES (?, ?, ?, ?, ?, ?)",
			quiz.ID, i+1, q.Text, options, q.Answer, q.AnswerIndex,
		)
		if err != nil {
			return fmt.Errorf("failed to create question %d: %w", i+1, err)
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit quiz: %w", err)
	}
	return nil
}

const quizColumns = "id, instruction, title, document, raw_output, degraded, error, created_at"

type rowScanner interface {
	Scan(dest ...any) error
}

func scanQuiz(row rowScanner) (*Quiz, error) {
	var (
		quiz     Quiz
		document string
	)
	err := row.Scan(&quiz.ID, &quiz.Instruction, &quiz.Title, &document, &quiz.RawOutput, &quiz.Degraded, &quiz.Error, &quiz.CreatedAt)
	if err != nil {
		return nil, err
	}
	quiz.Document, err = ParseValue(document)
	if err != nil {
		return nil, fmt.Errorf("failed to decode document of quiz %s: %w", quiz.ID, err)
	}
	return &quiz, nil
}

// GetQuiz retrieves a quiz by ID
func (db *DB) GetQuiz(id string) (*Quiz, error) {
	quiz, err := scanQuiz(db.db.QueryRow("SELECT "+quizColumns+" FROM quizzes WHERE id = ?", id))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, fmt.Errorf("%w: %s", ErrQuizNotFound, id)
		}
		return nil, fmt.Errorf("failed to get quiz: %w", err)
	}
	return quiz, nil
}

// GetQuizzes retrieves the most recent quizzes, optionally limited by count
func (db *DB) GetQuizzes(limit int) ([]Quiz, error) {
	query := "SELECT " + quizColumns + " FROM quizzes ORDER BY created_at DESC"
	var args []any
	if limit > 0 {
		query += " LIMIT ?"
		args = append(args, limit)
	}
	return db.queryQuizzes(query, args...)
}

// GetQuizzesByID retrieves the quizzes with the given IDs, newest first.
// Unknown IDs are skipped.
func (db *DB) GetQuizzesByID(ids []string) ([]Quiz, error) {
	if len(ids) == 0 {
		return nil, nil
	}
	placeholders := strings.TrimSuffix(strings.Repeat("?,", len(ids)), ",")
	args := make([]any, len(ids))
	for i, id := range ids {
		args[i] = id
	}
	return db.queryQuizzes("SELECT "+quizColumns+" FROM quizzes WHERE id IN ("+placeholders+") ORDER BY created_at DESC", args...)
}

func (db *DB) queryQuizzes(query string, args ...any) ([]Quiz, error) {
	rows, err := db.db.Query(query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to get quizzes: %w", err)
	}
	defer rows.Close()

	var quizzes []Quiz
	for rows.Next() {
		quiz, err := scanQuiz(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan quiz: %w", err)
		}
		quizzes = append(quizzes, *quiz)
	}

	if err = rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating quizzes: %w", err)
	}
	return quizzes, nil
}

// GetInstructions returns the instructions of recent quizzes, newest first
func (db *DB) GetInstructions(limit int) ([]string, error) {
	rows, err := db.db.Query("SELECT instruction FROM quizzes ORDER BY created_at DESC LIMIT ?", limit)
	if err != nil {
		return nil, fmt.Errorf("failed to get instructions: %w", err)
	}
	defer rows.Close()

	var instructions []string
	for rows.Next() {
		var s string
		if err := rows.Scan(&s); err != nil {
			return nil, fmt.Errorf("failed to scan instruction: %w", err)
		}
		instructions = append(instructions, s)
	}
	return instructions, rows.Err()
}

// GetQuestion retrieves a question by quiz ID and 1-based question number
func (db *DB) GetQuestion(quizID string, questionNum int) (*Question, error) {
	var (
		q       Question
		options string
	)
	err := db.db.QueryRow(
		"SELECT text, options, answer, answer_index FROM questions WHERE quiz_id = ? AND question_num = ?",
		quizID, questionNum,
	).Scan(&q.Text, &options, &q.Answer, &q.AnswerIndex)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, fmt.Errorf("%w: quiz_id=%s, question_num=%d", ErrQuestionNotFound, quizID, questionNum)
		}
		return nil, fmt.Errorf("failed to get question: %w", err)
	}
	if q.Options, err = JSONToOptions(options); err != nil {
		return nil, err
	}
	return &q, nil
}

// GetQuestions retrieves all questions for a quiz in order
func (db *DB) GetQuestions(quizID string) ([]Question, error) {
	rows, err := db.db.Query(
		"SELECT text, options, answer, answer_index FROM questions WHERE quiz_id = ? ORDER BY question_num",
		quizID,
	)
	if err != nil {
		return nil, fmt.Errorf("failed to get questions: %w", err)
	}
	defer rows.Close()

	var questions []Question
	for rows.Next() {
		var (
			q       Question
			options string
		)
		if err := rows.Scan(&q.Text, &options, &q.Answer, &q.AnswerIndex); err != nil {
			return nil, fmt.Errorf("failed to scan question: %w", err)
		}
		if q.Options, err = JSONToOptions(options); err != nil {
			return nil, err
		}
		questions = append(questions, q)
	}

	if err = rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating questions: %w", err)
	}
	return questions, nil
}

// OptionsToJSON encodes an options list for the options column
func OptionsToJSON(options []string) (string, error) {
	data, err := json.Marshal(options)
	if err != nil {
		return "", fmt.Errorf("failed to marshal options: %w", err)
	}
	return string(data), nil
}

// JSONToOptions decodes the options column
func JSONToOptions(optionsJSON string) ([]string, error) {
	var options []string
	if err := json.Unmarshal([]byte(optionsJSON), &options); err != nil {
		return nil, fmt.Errorf("failed to unmarshal options: %w", err)
	}
	return options, nil
}
