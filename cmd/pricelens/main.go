// Command pricelens is a terminal chat client for the eBay price-validation
// assistant. Type a query, or pass -image to validate a product photo.
package main

import (
	"bufio"
	"context"
	"errors"
	"flag"
	"fmt"
	"log/slog"
	"os"
	"strings"

	"github.com/joho/godotenv"

	"github.com/pricelens/pricelens"
)

func main() {
	imagePath := flag.String("image", "", "path to a product image to validate")
	query := flag.String("query", "", "optional query sent along with the image")
	logLevel := flag.String("log-level", "warn", "log level: debug, info, warn, error")
	combine := flag.Bool("combine", false, "keep the typed query alongside the image summary")
	flag.Parse()

	// Missing .env is fine; real environments set variables directly.
	_ = godotenv.Load()

	openAIKey := os.Getenv("OPENAI_API_KEY")
	if openAIKey == "" {
		fmt.Fprintln(os.Stderr, "OPENAI_API_KEY not found in environment")
		os.Exit(1)
	}

	serpAPIKey := os.Getenv("SERPAPI")
	if serpAPIKey == "" {
		fmt.Fprintln(os.Stderr, "warning: SERPAPI not set, eBay search will be unavailable")
	}

	merge := pricelens.MergeReplace
	if *combine {
		merge = pricelens.MergeCombine
	}

	assistant, err := pricelens.New(pricelens.Config{
		OpenAIKey:  openAIKey,
		SerpAPIKey: serpAPIKey,
		Merge:      merge,
		Logging:    &pricelens.LoggingConfig{Level: parseLevel(*logLevel)},
	})
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}

	ctx := context.Background()
	sess, err := assistant.NewSession(ctx)
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}

	if *imagePath != "" {
		if err := runImage(ctx, assistant, sess.ID, *imagePath, *query); err != nil {
			fmt.Fprintln(os.Stderr, err)
			os.Exit(1)
		}
	}

	repl(ctx, assistant, sess.ID)
}

func runImage(ctx context.Context, assistant *pricelens.Assistant, sessionID, path, query string) error {
	image, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("read image: %w", err)
	}

	fmt.Println("Analyzing image...")
	reply, _, err := assistant.UploadImage(ctx, sessionID, image, query)
	if err != nil {
		return err
	}

	fmt.Println(reply)
	return nil
}

func repl(ctx context.Context, assistant *pricelens.Assistant, sessionID string) {
	fmt.Println("Enter a query (ctrl-d to quit):")
	scanner := bufio.NewScanner(os.Stdin)

	for {
		fmt.Print("> ")
		if !scanner.Scan() {
			return
		}
		query := strings.TrimSpace(scanner.Text())
		if query == "" {
			continue
		}

		reply, err := assistant.Ask(ctx, sessionID, query)
		if err != nil {
			if errors.Is(err, pricelens.ErrPollDeadline) {
				fmt.Fprintln(os.Stderr, "the assistant took too long to answer, try again")
				continue
			}
			fmt.Fprintln(os.Stderr, err)
			continue
		}

		fmt.Println(reply)
	}
}

func parseLevel(level string) slog.Level {
	switch strings.ToLower(level) {
	case "debug":
		return slog.LevelDebug
	case "info":
		return slog.LevelInfo
	case "error":
		return slog.LevelError
	default:
		return slog.LevelWarn
	}
}
