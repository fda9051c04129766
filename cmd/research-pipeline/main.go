package main

import (
	"bufio"
	"context"
	"fmt"
	"log/slog"
	"os"
	"strings"

	"github.com/joho/godotenv"
	"github.com/spf13/cobra"

	"github.com/mikeboe/research-pipeline/pkg/app"
	"github.com/mikeboe/research-pipeline/pkg/config"
	"github.com/mikeboe/research-pipeline/pkg/database"
	"github.com/mikeboe/research-pipeline/pkg/vectorstore"
)

var queryText string

func main() {
	// Setup structured logging
	handler := slog.NewTextHandler(os.Stdout, nil)
	slog.SetDefault(slog.New(handler))

	// Load .env file; fine if it doesn't exist as long as env vars are set
	_ = godotenv.Load()

	cfg := config.Load()

	rootCmd := &cobra.Command{
		Use:   "research-pipeline",
		Short: "An iterative web research agent",
		Long:  `research-pipeline answers a query by iterating through plan, search, scrape, summarize, and reflect rounds, then writes a cited Markdown report.`,
		Run: func(cmd *cobra.Command, args []string) {
			ctx := context.Background()

			if !cmd.Flags().Changed("query") {
				// Interactive mode
				reader := bufio.NewReader(os.Stdin)
				fmt.Print("Enter research query: ")
				input, _ := reader.ReadString('\n')
				queryText = strings.TrimSpace(input)
			}
			if queryText == "" {
				slog.Error("Query cannot be empty")
				os.Exit(1)
			}

			// The database is optional for CLI runs; without it summaries
			// are ranked in memory only.
			var store vectorstore.Store = vectorstore.NewMemoryStore()
			if cfg.DatabaseURL != "" {
				db, err := database.NewPostgresDB(ctx, cfg.DatabaseURL)
				if err != nil {
					slog.Error("Failed to connect to database", "error", err)
					os.Exit(1)
				}
				defer db.Close()

				if err := db.InitSchema(ctx, cfg.EmbeddingDim); err != nil {
					slog.Error("Failed to initialize schema", "error", err)
					os.Exit(1)
				}
				store = vectorstore.NewPostgresStore(db.Pool)
			}

			p, err := app.BuildPipeline(ctx, cfg, store, slog.Default())
			if err != nil {
				slog.Error("Failed to build pipeline", "error", err)
				os.Exit(1)
			}

			report, err := p.Run(ctx, queryText)
			if err != nil {
				slog.Error("Research failed", "error", err)
				os.Exit(1)
			}

			path, err := p.Reporter.Save(report)
			if err != nil {
				slog.Error("Failed to save report", "error", err)
				os.Exit(1)
			}
			slog.Info("Report written", "path", path, "sources", report.Metadata.NumSources, "rounds", report.Metadata.Rounds)
		},
	}

	rootCmd.Flags().StringVarP(&queryText, "query", "q", "", "The research query")

	if err := rootCmd.Execute(); err != nil {
		slog.Error("Command execution failed", "error", err)
		os.Exit(1)
	}
}
