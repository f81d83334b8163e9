package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"log"
	"os"
	"time"

	"klyptik"
)

func main() {
	var (
		category   = flag.String("category", "", "Focus on specific category (optional)")
		configPath = flag.String("config", "", "YAML config file")
		history    = flag.Int("history", 100, "How many stored instructions the new one must differ from")
		verbose    = flag.Bool("verbose", false, "Enable verbose output")
	)
	flag.Parse()

	cfg, err := klyptik.LoadConfig(*configPath)
	if err != nil {
		log.Fatalf("Failed to load config: %v", err)
	}
	klyptik.SetVerbose(*verbose || cfg.Log.Debug)
	logger := klyptik.NewLogger(os.Stderr, cfg.Log.JSON)

	if cfg.Model.APIKey == "" && cfg.Model.BaseURL == "" {
		log.Fatal("OpenAI API key is required. Set OPENAI_API_KEY, or OPENAI_BASE_URL for a local server.")
	}

	db, err := klyptik.OpenDB(cfg.Store.Path)
	if err != nil {
		log.Fatalf("Failed to open database: %v", err)
	}
	defer db.Close()

	if err := db.CreateTables(); err != nil {
		log.Fatalf("Failed to create tables: %v", err)
	}

	existing, err := db.GetInstructions(*history)
	if err != nil {
		log.Fatalf("Failed to get existing instructions: %v", err)
	}

	fmt.Printf("📚 Found %d existing quiz instructions in database\n", len(existing))
	for _, instruction := range existing {
		klyptik.VerboseLog("existing: %s", instruction)
	}

	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Minute)
	defer cancel()

	fmt.Print("🎯 Discovering a fresh quiz instruction")
	if *category != "" {
		fmt.Printf(" in category: %s", *category)
	}
	fmt.Println("...")

	suggestion, err := klyptik.NewInstructionDiscoverer(cfg.Model).Discover(ctx, existing, *category)
	if err != nil {
		log.Fatalf("Failed to discover instruction: %v", err)
	}

	fmt.Printf("✅ Instruction: %s\n", suggestion.Instruction)
	fmt.Printf("Category: %s\n", suggestion.Category)
	fmt.Printf("Description: %s\n\n", suggestion.Description)

	opts := cfg.PipelineOptions()
	opts.Logger = logger
	generator := klyptik.NewQuizGenerator(klyptik.NewOpenAIGenerator(cfg.Model), klyptik.NewPipeline(opts), cfg.Model.Name)
	generator.SetLogger(logger)
	generator.SetStore(db)
	generator.SetTranscriptDir(cfg.Log.TranscriptDir)

	quiz, err := generator.GenerateQuiz(context.Background(), klyptik.GenerationRequest{Instruction: suggestion.Instruction})
	if err != nil && !errors.Is(err, klyptik.ErrGeneration) {
		log.Fatalf("Failed to generate quiz: %v", err)
	}

	if quiz.Degraded {
		fmt.Printf("⚠️  Stored fallback quiz %s: %s\n", quiz.ID, quiz.Error)
		os.Exit(1)
	}
	fmt.Printf("🎉 Stored quiz %s \"%s\" with %d questions\n", quiz.ID, quiz.Title, len(quiz.Questions()))
}
