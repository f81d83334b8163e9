package main

import (
	"context"
	"encoding/json"
	"errors"
	"flag"
	"log"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"strconv"
	"strings"
	"syscall"
	"time"

	"klyptik"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/gorilla/securecookie"
	"github.com/gorilla/sessions"
)

const (
	maxHistory     = 20
	defaultListLen = 20
	maxListLen     = 100
	maxBodyBytes   = 64 << 10
)

type Server struct {
	db          *klyptik.DB
	generator   *klyptik.QuizGenerator
	store       sessions.Store
	sessionName string
	logger      *slog.Logger
}

func main() {
	configPath := flag.String("config", "", "YAML config file")
	flag.Parse()

	cfg, err := klyptik.LoadConfig(*configPath)
	if err != nil {
		log.Fatalf("Failed to load config: %v", err)
	}
	klyptik.SetVerbose(cfg.Log.Debug)
	logger := klyptik.NewLogger(os.Stderr, cfg.Log.JSON)
	slog.SetDefault(logger)

	if cfg.Model.APIKey == "" && cfg.Model.BaseURL == "" {
		log.Fatal("OPENAI_API_KEY (or OPENAI_BASE_URL for a local server) is required")
	}

	db, err := klyptik.OpenDB(cfg.Store.Path)
	if err != nil {
		log.Fatalf("Failed to open database: %v", err)
	}
	defer db.Close()

	if err := db.CreateTables(); err != nil {
		log.Fatalf("Failed to create tables: %v", err)
	}

	opts := cfg.PipelineOptions()
	opts.Logger = logger
	generator := klyptik.NewQuizGenerator(klyptik.NewOpenAIGenerator(cfg.Model), klyptik.NewPipeline(opts), cfg.Model.Name)
	generator.SetLogger(logger)
	generator.SetStore(db)
	generator.SetTranscriptDir(cfg.Log.TranscriptDir)

	cache := klyptik.NewDocumentCache(cfg.Cache)
	if rc, ok := cache.(*klyptik.RedisCache); ok {
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		if err := rc.Ping(ctx); err != nil {
			log.Fatalf("Failed to ping Redis: %v", err)
		}
		cancel()
		defer rc.Close()
		logger.Info("Connected to Redis", "addr", cfg.Cache.Addr)
	}
	generator.SetCache(cache)

	secret := []byte(cfg.Session.Secret)
	if len(secret) == 0 {
		logger.Warn("SESSION_SECRET not set, sessions will not survive a restart")
		secret = securecookie.GenerateRandomKey(32)
	}

	server := NewServer(db, generator, sessions.NewCookieStore(secret), cfg.Session.Name, logger)
	httpServer := &http.Server{
		Addr:              cfg.Server.Addr(),
		Handler:           server.Routes(),
		ReadHeaderTimeout: 10 * time.Second,
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	go func() {
		logger.Info("Server starting", "addr", httpServer.Addr, "model", cfg.Model.Name)
		if err := httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Fatalf("Server failed: %v", err)
		}
	}()

	<-ctx.Done()
	shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.Server.ShutdownTimeout)
	defer cancel()
	if err := httpServer.Shutdown(shutdownCtx); err != nil {
		logger.Error("Shutdown failed", "error", err)
	}
}

func NewServer(db *klyptik.DB, generator *klyptik.QuizGenerator, store sessions.Store, sessionName string, logger *slog.Logger) *Server {
	return &Server{
		db:          db,
		generator:   generator,
		store:       store,
		sessionName: sessionName,
		logger:      logger,
	}
}

// Routes builds the HTTP handler
func (s *Server) Routes() http.Handler {
	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(middleware.Recoverer)
	r.Use(s.requestLogger)

	r.Get("/", s.handleRoot)
	r.Get("/health", s.handleHealth)

	r.Route("/api", func(r chi.Router) {
		r.Post("/ask", s.handleAsk)
		r.Get("/quizzes", s.handleListQuizzes)
		r.Get("/quizzes/{id}", s.handleGetQuiz)
		r.Get("/quizzes/{id}/questions/{num}", s.handleGetQuestion)
		r.Get("/history", s.handleHistory)
	})
	return r
}

func (s *Server) requestLogger(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)
		start := time.Now()
		next.ServeHTTP(ww, r)
		s.logger.Debug("Request",
			"method", r.Method,
			"path", r.URL.Path,
			"status", ww.Status(),
			"duration", time.Since(start),
			"request_id", middleware.GetReqID(r.Context()))
	})
}

func (s *Server) handleRoot(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"message": "Welcome to Klyptik API"})
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

type askRequest struct {
	Instruction string `json:"instruction"`
}

func (s *Server) handleAsk(w http.ResponseWriter, r *http.Request) {
	var req askRequest
	if err := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxBodyBytes)).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	if strings.TrimSpace(req.Instruction) == "" {
		writeError(w, http.StatusBadRequest, "instruction is required")
		return
	}

	quiz, err := s.generator.GenerateQuiz(r.Context(), klyptik.GenerationRequest{Instruction: req.Instruction})
	status := http.StatusOK
	if err != nil {
		if !errors.Is(err, klyptik.ErrGeneration) {
			s.logger.Error("Quiz generation failed", "error", err)
			writeError(w, http.StatusInternalServerError, "quiz generation failed")
			return
		}
		status = http.StatusBadGateway
	}

	s.remember(w, r, quiz.ID)
	w.Header().Set("X-Quiz-ID", quiz.ID)
	writeJSON(w, status, quiz.Document)
}

// remember adds a quiz ID to the session history, newest first
func (s *Server) remember(w http.ResponseWriter, r *http.Request, quizID string) {
	session, _ := s.store.Get(r, s.sessionName)
	history := append([]string{quizID}, sessionHistory(session)...)
	if len(history) > maxHistory {
		history = history[:maxHistory]
	}
	session.Values["history"] = history
	if err := session.Save(r, w); err != nil {
		s.logger.Warn("Failed to save session", "error", err)
	}
}

func sessionHistory(session *sessions.Session) []string {
	history, _ := session.Values["history"].([]string)
	return history
}

// quizSummary is the list view of a stored quiz
type quizSummary struct {
	ID          string    `json:"id"`
	Instruction string    `json:"instruction"`
	Title       string    `json:"title"`
	Questions   int       `json:"questions"`
	Degraded    bool      `json:"degraded"`
	CreatedAt   time.Time `json:"created_at"`
}

func summarize(quizzes []klyptik.Quiz) []quizSummary {
	out := make([]quizSummary, 0, len(quizzes))
	for _, q := range quizzes {
		out = append(out, quizSummary{
			ID:          q.ID,
			Instruction: q.Instruction,
			Title:       q.Title,
			Questions:   len(klyptik.QuizQuestions(q.Document)),
			Degraded:    q.Degraded,
			CreatedAt:   q.CreatedAt,
		})
	}
	return out
}

func (s *Server) handleListQuizzes(w http.ResponseWriter, r *http.Request) {
	limit := defaultListLen
	if v := r.URL.Query().Get("limit"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil || n <= 0 {
			writeError(w, http.StatusBadRequest, "limit must be a positive integer")
			return
		}
		limit = min(n, maxListLen)
	}

	quizzes, err := s.db.GetQuizzes(limit)
	if err != nil {
		s.logger.Error("Failed to list quizzes", "error", err)
		writeError(w, http.StatusInternalServerError, "failed to list quizzes")
		return
	}
	writeJSON(w, http.StatusOK, summarize(quizzes))
}

// quizView is a stored quiz with its typed questions
type quizView struct {
	ID          string             `json:"id"`
	Instruction string             `json:"instruction"`
	Title       string             `json:"title"`
	Degraded    bool               `json:"degraded"`
	Error       string             `json:"error,omitempty"`
	CreatedAt   time.Time          `json:"created_at"`
	Document    klyptik.Value      `json:"document"`
	Questions   []klyptik.Question `json:"questions"`
}

func (s *Server) handleGetQuiz(w http.ResponseWriter, r *http.Request) {
	quiz, err := s.db.GetQuiz(chi.URLParam(r, "id"))
	if errors.Is(err, klyptik.ErrQuizNotFound) {
		writeError(w, http.StatusNotFound, "quiz not found")
		return
	}
	if err != nil {
		s.logger.Error("Failed to get quiz", "error", err)
		writeError(w, http.StatusInternalServerError, "failed to get quiz")
		return
	}

	questions, err := s.db.GetQuestions(quiz.ID)
	if err != nil {
		s.logger.Error("Failed to get questions", "quiz_id", quiz.ID, "error", err)
		writeError(w, http.StatusInternalServerError, "failed to get quiz")
		return
	}
	if questions == nil {
		questions = []klyptik.Question{}
	}
	writeJSON(w, http.StatusOK, quizView{
		ID:          quiz.ID,
		Instruction: quiz.Instruction,
		Title:       quiz.Title,
		Degraded:    quiz.Degraded,
		Error:       quiz.Error,
		CreatedAt:   quiz.CreatedAt,
		Document:    quiz.Document,
		Questions:   questions,
	})
}

// handleGetQuestion serves one stored question by its 1-based number
func (s *Server) handleGetQuestion(w http.ResponseWriter, r *http.Request) {
	num, err := strconv.Atoi(chi.URLParam(r, "num"))
	if err != nil || num <= 0 {
		writeError(w, http.StatusBadRequest, "question number must be a positive integer")
		return
	}

	question, err := s.db.GetQuestion(chi.URLParam(r, "id"), num)
	if errors.Is(err, klyptik.ErrQuestionNotFound) {
		writeError(w, http.StatusNotFound, "question not found")
		return
	}
	if err != nil {
		s.logger.Error("Failed to get question", "error", err)
		writeError(w, http.StatusInternalServerError, "failed to get question")
		return
	}
	writeJSON(w, http.StatusOK, question)
}

func (s *Server) handleHistory(w http.ResponseWriter, r *http.Request) {
	session, _ := s.store.Get(r, s.sessionName)
	quizzes, err := s.db.GetQuizzesByID(sessionHistory(session))
	if err != nil {
		s.logger.Error("Failed to load history", "error", err)
		writeError(w, http.StatusInternalServerError, "failed to load history")
		return
	}
	writeJSON(w, http.StatusOK, summarize(quizzes))
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		slog.Error("Failed to encode response", "error", err)
	}
}

func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, map[string]string{"error": msg})
}
