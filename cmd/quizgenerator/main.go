package main

import (
	"bufio"
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"flag"
	"fmt"
	"io"
	"log"
	"os"
	"sort"
	"strings"

	"klyptik"
)

func main() {
	var (
		instruction = flag.String("instruction", "", "Quiz instruction, e.g. \"Create 5 questions about volcanoes\"")
		rawFile     = flag.String("raw", "", "Recover a quiz from captured model output in this file instead of calling the model")
		outputFile  = flag.String("output", "", "Output file for quiz JSON (default: stdout)")
		configPath  = flag.String("config", "", "YAML config file")
		dbPath      = flag.String("db", "", "Also store the quiz in this database")
		playMode    = flag.Bool("play", false, "Play the quiz interactively")
		numPlayers  = flag.Int("players", 1, "Number of players")
		verbose     = flag.Bool("verbose", false, "Enable verbose debugging output")
	)
	flag.Parse()

	cfg, err := klyptik.LoadConfig(*configPath)
	if err != nil {
		log.Fatalf("Failed to load config: %v", err)
	}
	klyptik.SetVerbose(*verbose || cfg.Log.Debug)
	logger := klyptik.NewLogger(os.Stderr, cfg.Log.JSON)

	opts := cfg.PipelineOptions()
	opts.Logger = logger
	pipeline := klyptik.NewPipeline(opts)

	var doc klyptik.Value
	if *rawFile != "" {
		raw, err := os.ReadFile(*rawFile)
		if err != nil {
			log.Fatalf("Failed to read raw output: %v", err)
		}
		out := pipeline.Recover(string(raw), *instruction)
		logger.Info("Recovered quiz from file", "state", out.State, "strategy", out.Strategy, "path", out.Path)
		doc = out.Document
	} else {
		if strings.TrimSpace(*instruction) == "" {
			log.Fatal("Instruction is required. Use -instruction flag or -raw.")
		}
		if cfg.Model.APIKey == "" && cfg.Model.BaseURL == "" {
			log.Fatal("OpenAI API key is required. Set OPENAI_API_KEY, or OPENAI_BASE_URL for a local server.")
		}

		generator := klyptik.NewQuizGenerator(klyptik.NewOpenAIGenerator(cfg.Model), pipeline, cfg.Model.Name)
		generator.SetLogger(logger)
		generator.SetTranscriptDir(cfg.Log.TranscriptDir)
		if *dbPath != "" {
			db, err := klyptik.OpenDB(*dbPath)
			if err != nil {
				log.Fatalf("Failed to open database: %v", err)
			}
			defer db.Close()
			if err := db.CreateTables(); err != nil {
				log.Fatalf("Failed to create tables: %v", err)
			}
			generator.SetStore(db)
		}

		quiz, err := generator.GenerateQuiz(context.Background(), klyptik.GenerationRequest{Instruction: *instruction})
		if err != nil && !errors.Is(err, klyptik.ErrGeneration) {
			log.Fatalf("Failed to generate quiz: %v", err)
		}
		if err != nil {
			logger.Error("Model unavailable, writing fallback quiz", "error", err)
		}
		doc = quiz.Document
	}

	if *playMode {
		playQuiz(os.Stdin, os.Stdout, klyptik.DocumentTitle(doc), klyptik.QuestionsFromDocument(doc), *numPlayers)
		return
	}

	if err := writeDocument(doc, *outputFile); err != nil {
		log.Fatalf("Failed to write quiz: %v", err)
	}
}

func writeDocument(doc klyptik.Value, path string) error {
	data, err := doc.MarshalJSON()
	if err != nil {
		return err
	}
	var out bytes.Buffer
	if err := json.Indent(&out, data, "", "  "); err != nil {
		return err
	}
	out.WriteByte('\n')

	if path == "" {
		_, err = os.Stdout.Write(out.Bytes())
		return err
	}
	if err := os.WriteFile(path, out.Bytes(), 0o644); err != nil {
		return err
	}
	log.Printf("Quiz saved to: %s", path)
	return nil
}

// Player represents a player in the terminal quiz
type Player struct {
	Name  string
	Score int
}

// playQuiz runs one round over every question whose answer names an option
func playQuiz(in io.Reader, out io.Writer, title string, questions []klyptik.Question, numPlayers int) []*Player {
	var playable []klyptik.Question
	for _, q := range questions {
		if q.AnswerIndex >= 0 {
			playable = append(playable, q)
		}
	}
	if len(playable) == 0 {
		fmt.Fprintln(out, "No playable questions in this quiz.")
		return nil
	}
	if numPlayers < 1 {
		numPlayers = 1
	}

	fmt.Fprintf(out, "🎯 %s\n", title)
	fmt.Fprintf(out, "📝 Questions: %d\n\n", len(playable))

	scanner := bufio.NewScanner(in)
	players := make([]*Player, numPlayers)
	for i := range players {
		fmt.Fprintf(out, "Enter name for Player %d: ", i+1)
		scanner.Scan()
		name := strings.TrimSpace(scanner.Text())
		if name == "" {
			name = fmt.Sprintf("Player %d", i+1)
		}
		players[i] = &Player{Name: name}
	}
	fmt.Fprintln(out)

	for n, q := range playable {
		letters := optionLetters(len(q.Options))
		fmt.Fprintf(out, "Question %d/%d:\n%s\n\n", n+1, len(playable), q.Text)
		for i, option := range q.Options {
			fmt.Fprintf(out, "%s) %s\n", letters[i], option)
		}
		fmt.Fprintln(out)

		for _, player := range players {
			choice := -1
			for choice == -1 {
				fmt.Fprintf(out, "%s's answer (%s): ", player.Name, strings.Join(letters, "/"))
				if !scanner.Scan() {
					return players
				}
				choice = klyptik.AnswerIndex(scanner.Text(), len(q.Options))
				if choice == -1 {
					fmt.Fprintf(out, "Please enter one of %s\n", strings.Join(letters, ", "))
				}
			}

			if choice == q.AnswerIndex {
				fmt.Fprintf(out, "✅ %s: Correct!\n", player.Name)
				player.Score++
			} else {
				fmt.Fprintf(out, "❌ %s: Incorrect. The correct answer is %s) %s\n",
					player.Name, letters[q.AnswerIndex], q.Options[q.AnswerIndex])
			}
		}
		fmt.Fprintln(out)
		fmt.Fprintln(out, strings.Repeat("─", 50))
		fmt.Fprintln(out)
	}

	sort.SliceStable(players, func(i, j int) bool {
		return players[i].Score > players[j].Score
	})

	fmt.Fprintln(out, "🏆 Final Results:")
	for _, player := range players {
		percentage := float64(player.Score) / float64(len(playable)) * 100
		fmt.Fprintf(out, "  %s: %d/%d (%.1f%%)\n", player.Name, player.Score, len(playable), percentage)
	}
	if numPlayers > 1 {
		fmt.Fprintf(out, "\n🎊 Winner: %s\n", players[0].Name)
	}
	return players
}

func optionLetters(n int) []string {
	letters := make([]string, n)
	for i := range letters {
		letters[i] = string(rune('A' + i))
	}
	return letters
}
