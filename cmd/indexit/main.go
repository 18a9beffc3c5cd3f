// Copyright 2025 Poiesic Systems
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//     http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.


package main

import (
	"context"
	"fmt"
	"log"
	"log/slog"
	"os"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/poiesic/indexit"
	"github.com/poiesic/indexit/config"
	"github.com/poiesic/indexit/storage"
	"github.com/urfave/cli/v2"
)

func main() {
	_ = godotenv.Load()

	app := &cli.App{
		Name:  "indexit",
		Usage: "Document vectorization and retrieval backend",
		Flags: []cli.Flag{
			&cli.StringFlag{
				Name:    "log-level",
				Aliases: []string{"l"},
				Usage:   "Set logging level (debug, info, warn, error)",
				Value:   "info",
			},
			&cli.StringFlag{
				Name:    "config",
				Aliases: []string{"c"},
				Usage:   "Path to YAML config file",
				Value:   "indexit.yaml",
			},
		},
		Before: setupLogger,
		Commands: []*cli.Command{
			{
				Name:      "add",
				Usage:     "Register a file for vectorization",
				ArgsUsage: "<path>",
				Action:    addCommand,
				Flags: []cli.Flag{
					&cli.StringFlag{
						Name:  "category",
						Usage: "Category ID to assign to the file",
					},
					&cli.BoolFlag{
						Name:  "vectorize",
						Usage: "Run the vectorization pipeline immediately after upload",
					},
				},
			},
			{
				Name:      "vectorize",
				Usage:     "Run the vectorization pipeline for an uploaded file",
				ArgsUsage: "<file-id>",
				Action:    vectorizeCommand,
			},
			{
				Name:      "retry",
				Usage:     "Retry vectorization for a failed file",
				ArgsUsage: "<file-id>",
				Action:    retryCommand,
			},
			{
				Name:      "reprocess",
				Usage:     "Force a full reprocess of a stuck or failed file",
				ArgsUsage: "<file-id>",
				Action:    reprocessCommand,
			},
			{
				Name:      "delete",
				Usage:     "Delete a file and its vectors",
				ArgsUsage: "<file-id>",
				Action:    deleteCommand,
			},
			{
				Name:   "list",
				Usage:  "List registered files",
				Action: listCommand,
				Flags: []cli.Flag{
					&cli.StringFlag{
						Name:  "category",
						Usage: "Restrict listing to one category ID",
					},
					&cli.BoolFlag{
						Name:  "all",
						Usage: "Include deleted files",
					},
				},
			},
			{
				Name:      "create-category",
				Usage:     "Create a new category",
				ArgsUsage: "<name>",
				Action:    createCategoryCommand,
			},
			{
				Name:   "categories",
				Usage:  "List categories",
				Action: categoriesCommand,
			},
			{
				Name:   "reconcile",
				Usage:  "Reconcile file metadata against the vector index",
				Action: reconcileCommand,
			},
			{
				Name:   "status",
				Usage:  "Show vector index status",
				Action: statusCommand,
			},
			{
				Name:      "search",
				Usage:     "Search indexed documents",
				ArgsUsage: "<query>",
				Action:    searchCommand,
				Flags: []cli.Flag{
					&cli.IntFlag{
						Name:    "top-k",
						Aliases: []string{"k"},
						Usage:   "Maximum number of results to return",
					},
					&cli.StringFlag{
						Name:  "category",
						Usage: "Restrict search to one category ID",
					},
				},
			},
			{
				Name:      "ask",
				Usage:     "Ask a question grounded in indexed documents",
				ArgsUsage: "<question>",
				Action:    askCommand,
				Flags: []cli.Flag{
					&cli.StringFlag{
						Name:  "category",
						Usage: "Restrict retrieval to one category ID",
					},
				},
			},
		},
	}

	if err := app.Run(os.Args); err != nil {
		log.Fatal(err)
	}
}

// openDatabase loads configuration and wires up the full database. The
// caller owns the returned handle and must close it.
func openDatabase(c *cli.Context) (*indexit.Database, error) {
	cfg, err := config.Load(c.String("config"))
	if err != nil {
		return nil, fmt.Errorf("failed to load configuration: %w", err)
	}

	db, err := indexit.NewDatabase(cfg)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}
	return db, nil
}

func categoryFilter(c *cli.Context) *string {
	if v := c.String("category"); v != "" {
		return &v
	}
	return nil
}

func addCommand(c *cli.Context) error {
	if c.NArg() != 1 {
		return fmt.Errorf("expected exactly one file path argument")
	}

	db, err := openDatabase(c)
	if err != nil {
		return err
	}
	defer db.Close()

	ctx := context.Background()
	record, err := db.AddFile(ctx, c.Args().First(), categoryFilter(c))
	if err != nil {
		return fmt.Errorf("failed to add file: %w", err)
	}

	fmt.Printf("added %s (%d bytes) as %s\n", record.Filename, record.SizeBytes, record.ID)

	if c.Bool("vectorize") {
		if err := db.Vectorize(ctx, record.ID); err != nil {
			return fmt.Errorf("vectorization failed: %w", err)
		}
		updated, err := db.GetFile(ctx, record.ID)
		if err != nil {
			return err
		}
		fmt.Printf("vectorized %s: %d chunks\n", record.ID, updated.ChunkCount)
	}
	return nil
}

func vectorizeCommand(c *cli.Context) error {
	if c.NArg() != 1 {
		return fmt.Errorf("expected exactly one file ID argument")
	}

	db, err := openDatabase(c)
	if err != nil {
		return err
	}
	defer db.Close()

	ctx := context.Background()
	fileID := c.Args().First()
	if err := db.Vectorize(ctx, fileID); err != nil {
		return fmt.Errorf("vectorization failed: %w", err)
	}

	record, err := db.GetFile(ctx, fileID)
	if err != nil {
		return err
	}
	fmt.Printf("vectorized %s: %d chunks\n", fileID, record.ChunkCount)
	return nil
}

func retryCommand(c *cli.Context) error {
	if c.NArg() != 1 {
		return fmt.Errorf("expected exactly one file ID argument")
	}

	db, err := openDatabase(c)
	if err != nil {
		return err
	}
	defer db.Close()

	ctx := context.Background()
	fileID := c.Args().First()
	if err := db.Retry(ctx, fileID); err != nil {
		return fmt.Errorf("retry failed: %w", err)
	}

	record, err := db.GetFile(ctx, fileID)
	if err != nil {
		return err
	}
	fmt.Printf("retried %s: %s, %d chunks\n", fileID, record.Status, record.ChunkCount)
	return nil
}

func reprocessCommand(c *cli.Context) error {
	if c.NArg() != 1 {
		return fmt.Errorf("expected exactly one file ID argument")
	}

	db, err := openDatabase(c)
	if err != nil {
		return err
	}
	defer db.Close()

	ctx := context.Background()
	fileID := c.Args().First()
	if err := db.ForceReprocess(ctx, fileID); err != nil {
		return fmt.Errorf("reprocess failed: %w", err)
	}

	record, err := db.GetFile(ctx, fileID)
	if err != nil {
		return err
	}
	fmt.Printf("reprocessed %s: %s, %d chunks\n", fileID, record.Status, record.ChunkCount)
	return nil
}

func deleteCommand(c *cli.Context) error {
	if c.NArg() != 1 {
		return fmt.Errorf("expected exactly one file ID argument")
	}

	db, err := openDatabase(c)
	if err != nil {
		return err
	}
	defer db.Close()

	fileID := c.Args().First()
	if err := db.DeleteFile(context.Background(), fileID); err != nil {
		return fmt.Errorf("delete failed: %w", err)
	}

	fmt.Printf("deleted %s\n", fileID)
	return nil
}

func listCommand(c *cli.Context) error {
	db, err := openDatabase(c)
	if err != nil {
		return err
	}
	defer db.Close()

	records, err := db.ListFiles(context.Background(), storage.ListOptions{
		CategoryID:     categoryFilter(c),
		IncludeDeleted: c.Bool("all"),
	})
	if err != nil {
		return fmt.Errorf("failed to list files: %w", err)
	}

	if len(records) == 0 {
		fmt.Println("no files")
		return nil
	}

	for _, record := range records {
		line := fmt.Sprintf("%s  %-13s  %s", record.ID, record.Status, record.Filename)
		if record.Vectorized {
			line += fmt.Sprintf("  (%d chunks)", record.ChunkCount)
		}
		if record.ErrorMessage != "" {
			line += fmt.Sprintf("  [%s: %s]", record.ErrorType, record.ErrorMessage)
		}
		fmt.Println(line)
	}
	return nil
}

func createCategoryCommand(c *cli.Context) error {
	if c.NArg() != 1 {
		return fmt.Errorf("expected exactly one category name argument")
	}

	db, err := openDatabase(c)
	if err != nil {
		return err
	}
	defer db.Close()

	category, err := db.CreateCategory(context.Background(), c.Args().First())
	if err != nil {
		return fmt.Errorf("failed to create category: %w", err)
	}

	fmt.Printf("created category %s as %s\n", category.Name, category.ID)
	return nil
}

func categoriesCommand(c *cli.Context) error {
	db, err := openDatabase(c)
	if err != nil {
		return err
	}
	defer db.Close()

	categories, err := db.Categories(context.Background())
	if err != nil {
		return fmt.Errorf("failed to list categories: %w", err)
	}

	if len(categories) == 0 {
		fmt.Println("no categories")
		return nil
	}
	for _, category := range categories {
		fmt.Printf("%s  %s\n", category.ID, category.Name)
	}
	return nil
}

func reconcileCommand(c *cli.Context) error {
	db, err := openDatabase(c)
	if err != nil {
		return err
	}
	defer db.Close()

	start := time.Now()
	report := db.Reconcile(context.Background())

	for _, step := range report.Steps {
		if step.Err != nil {
			fmt.Printf("%-18s error: %v\n", step.Name, step.Err)
			continue
		}
		fmt.Printf("%-18s found %d, fixed %d\n", step.Name, step.Found, step.Fixed)
	}
	if report.IndexStatus != nil {
		fmt.Printf("index: connected=%t vectors=%d\n",
			report.IndexStatus.Connected, report.IndexStatus.TotalVectors)
	}
	fmt.Printf("reconciliation finished in %s\n", time.Since(start).Round(time.Millisecond))
	return nil
}

func statusCommand(c *cli.Context) error {
	db, err := openDatabase(c)
	if err != nil {
		return err
	}
	defer db.Close()

	status, err := db.IndexStatus(context.Background())
	if err != nil {
		return fmt.Errorf("failed to query index status: %w", err)
	}

	fmt.Printf("connected: %t\n", status.Connected)
	fmt.Printf("vectors:   %d\n", status.TotalVectors)
	fmt.Printf("files:     %d\n", status.CollectionCount)
	return nil
}

func searchCommand(c *cli.Context) error {
	if c.NArg() != 1 {
		return fmt.Errorf("expected exactly one query argument")
	}

	db, err := openDatabase(c)
	if err != nil {
		return err
	}
	defer db.Close()

	results, err := db.Search(context.Background(), c.Args().First(), c.Int("top-k"), categoryFilter(c))
	if err != nil {
		return fmt.Errorf("search failed: %w", err)
	}

	if len(results) == 0 {
		fmt.Println("no results")
		return nil
	}
	for _, result := range results {
		fmt.Printf("%.4f  %s (chunk %d)  %s\n",
			result.Score, result.Filename, result.ChunkIndex, result.FileID)
	}
	return nil
}

func askCommand(c *cli.Context) error {
	if c.NArg() != 1 {
		return fmt.Errorf("expected exactly one question argument")
	}

	db, err := openDatabase(c)
	if err != nil {
		return err
	}
	defer db.Close()

	answer, err := db.Ask(context.Background(), c.Args().First(), categoryFilter(c))
	if err != nil {
		return fmt.Errorf("ask failed: %w", err)
	}

	fmt.Println(answer.Text)
	if len(answer.Sources) > 0 {
		fmt.Println()
		fmt.Println("Sources:")
		for _, source := range answer.Sources {
			fmt.Printf("  %s (chunk %d, score %.4f)\n",
				source.Filename, source.ChunkIndex, source.Score)
		}
	}
	return nil
}

func setupLogger(c *cli.Context) error {
	// Get log level from flag and normalize to lowercase
	levelStr := strings.ToLower(c.String("log-level"))

	// Map string to slog.Level
	var level slog.Level
	switch levelStr {
	case "debug":
		level = slog.LevelDebug
	case "info":
		level = slog.LevelInfo
	case "warn":
		level = slog.LevelWarn
	case "error":
		level = slog.LevelError
	default:
		return fmt.Errorf("invalid log level %q: must be one of debug, info, warn, error", levelStr)
	}

	// Configure slog with the specified level
	logger := slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{
		Level: level,
	}))
	slog.SetDefault(logger)

	return nil
}
