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

	"github.com/urfave/cli/v2"

	"github.com/poiesic/gostash"
	"github.com/poiesic/gostash/core"
	"github.com/poiesic/gostash/embed"
	"github.com/poiesic/gostash/storage"
)

func main() {
	app := &cli.App{
		Name:  "gostash",
		Usage: "Stash and retrieve memory items across swappable storage backends",
		Flags: []cli.Flag{
			&cli.StringFlag{
				Name:    "log-level",
				Aliases: []string{"l"},
				Usage:   "Set logging level (debug, info, warn, error)",
				Value:   "info",
			},
			&cli.StringFlag{
				Name:    "stash",
				Aliases: []string{"s"},
				Usage:   "Name of the configured stash to use",
			},
			&cli.StringFlag{
				Name:  "db",
				Usage: "Database URL, bypassing the stash configuration",
			},
		},
		Before: setupLogger,
		Commands: []*cli.Command{
			{
				Name:      "add",
				Usage:     "Save a snippet",
				ArgsUsage: "<title> <content>",
				Action:    addCommand,
				Flags: []cli.Flag{
					&cli.StringSliceFlag{
						Name:    "tag",
						Aliases: []string{"t"},
						Usage:   "Tag the snippet (repeatable)",
					},
					&cli.BoolFlag{
						Name:  "embed",
						Usage: "Attach an embedding vector before saving",
					},
					embeddingHostFlag,
					embeddingModelFlag,
				},
			},
			{
				Name:      "get",
				Usage:     "Fetch one item by id",
				ArgsUsage: "<id>",
				Action:    getCommand,
			},
			{
				Name:   "list",
				Usage:  "List items matching text and tag filters",
				Action: listCommand,
				Flags: []cli.Flag{
					&cli.StringFlag{
						Name:    "query",
						Aliases: []string{"q"},
						Usage:   "Substring to match against title and content",
					},
					&cli.StringSliceFlag{
						Name:    "tag",
						Aliases: []string{"t"},
						Usage:   "Require this tag (repeatable, all must match)",
					},
					&cli.IntFlag{
						Name:    "limit",
						Aliases: []string{"n"},
						Usage:   "Maximum number of results",
						Value:   storage.DefaultQueryLimit,
					},
				},
			},
			{
				Name:      "search",
				Usage:     "Find items similar to the given text",
				ArgsUsage: "<text>",
				Action:    searchCommand,
				Flags: []cli.Flag{
					&cli.IntFlag{
						Name:    "limit",
						Aliases: []string{"n"},
						Usage:   "Maximum number of results",
						Value:   10,
					},
					embeddingHostFlag,
					embeddingModelFlag,
				},
			},
			{
				Name:      "relate",
				Usage:     "Record a typed relation between two items",
				ArgsUsage: "<from-id> <to-id> <type>",
				Action:    relateCommand,
			},
			{
				Name:      "related",
				Usage:     "List items related to the given item",
				ArgsUsage: "<id>",
				Action:    relatedCommand,
				Flags: []cli.Flag{
					&cli.StringFlag{
						Name:  "type",
						Usage: "Only follow relations of this type",
					},
				},
			},
			{
				Name:      "delete",
				Usage:     "Delete an item by id",
				ArgsUsage: "<id>",
				Action:    deleteCommand,
			},
			{
				Name:  "stash",
				Usage: "Manage the stash registry",
				Subcommands: []*cli.Command{
					{
						Name:   "list",
						Usage:  "List configured stashes",
						Action: stashListCommand,
					},
					{
						Name:      "add",
						Usage:     "Register a stash",
						ArgsUsage: "<name> <database-url>",
						Action:    stashAddCommand,
						Flags: []cli.Flag{
							&cli.StringFlag{
								Name:  "service-type",
								Usage: "Stash purpose (snippet, rag, knowledge_graph)",
								Value: string(gostash.ServiceSnippet),
							},
							&cli.IntFlag{
								Name:  "max-pool-size",
								Usage: "Maximum concurrent sessions (0 = backend default)",
							},
							&cli.BoolFlag{
								Name:  "default",
								Usage: "Make this the default stash",
							},
						},
					},
					{
						Name:      "default",
						Usage:     "Set the default stash",
						ArgsUsage: "<name>",
						Action:    stashDefaultCommand,
					},
				},
			},
		},
	}

	if err := app.Run(os.Args); err != nil {
		log.Fatal(err)
	}
}

var embeddingHostFlag = &cli.StringFlag{
	Name:  "embedding-host",
	Usage: "Embedding service host URL",
	Value: "http://localhost:11434/v1",
}

var embeddingModelFlag = &cli.StringFlag{
	Name:  "embedding-model",
	Usage: "Embedding model name",
	Value: "nomic-embed-text",
}

// openBackend resolves the target store: an explicit --db URL wins,
// otherwise the named (or default) stash from the registry is used.
func openBackend(ctx context.Context, c *cli.Context) (storage.Backend, func(), error) {
	if url := c.String("db"); url != "" {
		backend, err := gostash.OpenBackend(ctx, url, 0, slog.Default())
		if err != nil {
			return nil, nil, fmt.Errorf("open %s: %w", url, err)
		}
		return backend, func() { backend.Close() }, nil
	}

	stash, err := gostash.OpenStash(ctx, c.String("stash"), slog.Default())
	if err != nil {
		return nil, nil, err
	}
	return stash.Backend, func() { stash.Close() }, nil
}

func addCommand(c *cli.Context) error {
	if c.NArg() < 2 {
		return fmt.Errorf("usage: add <title> <content>")
	}
	ctx := context.Background()

	backend, done, err := openBackend(ctx, c)
	if err != nil {
		return err
	}
	defer done()

	snippet := core.NewSnippet(c.Args().Get(0), c.Args().Get(1), c.StringSlice("tag")...)
	if err := snippet.Validate(); err != nil {
		return err
	}

	if c.Bool("embed") {
		embedder, err := embed.NewOpenAI(c.String("embedding-host"), c.String("embedding-model"), "")
		if err != nil {
			return err
		}
		vector, err := embedder.EmbedText(ctx, snippet.Contents)
		if err != nil {
			return fmt.Errorf("embed snippet: %w", err)
		}
		snippet.Vector = vector
	}

	if err := backend.Save(ctx, snippet); err != nil {
		return err
	}
	fmt.Println(snippet.Id)
	return nil
}

func getCommand(c *cli.Context) error {
	if c.NArg() < 1 {
		return fmt.Errorf("usage: get <id>")
	}
	id, err := core.ParseID(c.Args().Get(0))
	if err != nil {
		return fmt.Errorf("invalid id: %w", err)
	}
	ctx := context.Background()

	backend, done, err := openBackend(ctx, c)
	if err != nil {
		return err
	}
	defer done()

	item, err := backend.Get(ctx, id)
	if err != nil {
		return err
	}
	if item == nil {
		return fmt.Errorf("no item with id %s", id)
	}
	printItem(item)
	return nil
}

func listCommand(c *cli.Context) error {
	ctx := context.Background()

	backend, done, err := openBackend(ctx, c)
	if err != nil {
		return err
	}
	defer done()

	query := core.Query{
		Text: c.String("query"),
		Tags: c.StringSlice("tag"),
	}.WithLimit(c.Int("limit"))

	items, err := backend.Query(ctx, query)
	if err != nil {
		return err
	}
	for _, item := range items {
		printItem(item)
	}
	return nil
}

func searchCommand(c *cli.Context) error {
	if c.NArg() < 1 {
		return fmt.Errorf("usage: search <text>")
	}
	ctx := context.Background()

	backend, done, err := openBackend(ctx, c)
	if err != nil {
		return err
	}
	defer done()

	embedder, err := embed.NewOpenAI(c.String("embedding-host"), c.String("embedding-model"), "")
	if err != nil {
		return err
	}
	vector, err := embedder.EmbedText(ctx, c.Args().Get(0))
	if err != nil {
		return fmt.Errorf("embed query: %w", err)
	}

	results, err := backend.VectorSearch(ctx, vector, c.Int("limit"))
	if err != nil {
		return err
	}
	for _, result := range results {
		fmt.Printf("%.4f  ", result.Score)
		printItem(result.Item)
	}
	return nil
}

func relateCommand(c *cli.Context) error {
	if c.NArg() < 3 {
		return fmt.Errorf("usage: relate <from-id> <to-id> <type>")
	}
	from, err := core.ParseID(c.Args().Get(0))
	if err != nil {
		return fmt.Errorf("invalid from-id: %w", err)
	}
	to, err := core.ParseID(c.Args().Get(1))
	if err != nil {
		return fmt.Errorf("invalid to-id: %w", err)
	}
	ctx := context.Background()

	backend, done, err := openBackend(ctx, c)
	if err != nil {
		return err
	}
	defer done()

	return backend.AddRelation(ctx, from, to, c.Args().Get(2))
}

func relatedCommand(c *cli.Context) error {
	if c.NArg() < 1 {
		return fmt.Errorf("usage: related <id>")
	}
	id, err := core.ParseID(c.Args().Get(0))
	if err != nil {
		return fmt.Errorf("invalid id: %w", err)
	}
	ctx := context.Background()

	backend, done, err := openBackend(ctx, c)
	if err != nil {
		return err
	}
	defer done()

	items, err := backend.GetRelated(ctx, id, c.String("type"))
	if err != nil {
		return err
	}
	for _, item := range items {
		printItem(item)
	}
	return nil
}

func deleteCommand(c *cli.Context) error {
	if c.NArg() < 1 {
		return fmt.Errorf("usage: delete <id>")
	}
	id, err := core.ParseID(c.Args().Get(0))
	if err != nil {
		return fmt.Errorf("invalid id: %w", err)
	}
	ctx := context.Background()

	backend, done, err := openBackend(ctx, c)
	if err != nil {
		return err
	}
	defer done()

	return backend.Delete(ctx, id)
}

func stashListCommand(c *cli.Context) error {
	cfg, err := gostash.LoadConfig()
	if err != nil {
		return err
	}
	if len(cfg.Stashes) == 0 {
		fmt.Println("no stashes configured")
		return nil
	}
	for name, stash := range cfg.Stashes {
		marker := " "
		if name == cfg.DefaultStash {
			marker = "*"
		}
		fmt.Printf("%s %-20s %-16s %s\n", marker, name, stash.ServiceType, stash.DatabaseURL)
	}
	return nil
}

func stashAddCommand(c *cli.Context) error {
	if c.NArg() < 2 {
		return fmt.Errorf("usage: stash add <name> <database-url>")
	}
	name := c.Args().Get(0)
	databaseURL := c.Args().Get(1)

	serviceType := gostash.ServiceType(c.String("service-type"))
	switch serviceType {
	case gostash.ServiceSnippet, gostash.ServiceRAG, gostash.ServiceKnowledgeGraph:
	default:
		return fmt.Errorf("invalid service type %q", serviceType)
	}

	cfg, err := gostash.LoadConfig()
	if err != nil {
		return err
	}
	cfg.Stashes[name] = gostash.StashConfig{
		ServiceType: serviceType,
		DatabaseURL: databaseURL,
		MaxPoolSize: c.Int("max-pool-size"),
	}
	if c.Bool("default") || cfg.DefaultStash == "" {
		cfg.DefaultStash = name
	}
	return gostash.SaveConfig(cfg)
}

func stashDefaultCommand(c *cli.Context) error {
	if c.NArg() < 1 {
		return fmt.Errorf("usage: stash default <name>")
	}
	name := c.Args().Get(0)

	cfg, err := gostash.LoadConfig()
	if err != nil {
		return err
	}
	if _, ok := cfg.Stashes[name]; !ok {
		return fmt.Errorf("unknown stash %q", name)
	}
	cfg.DefaultStash = name
	return gostash.SaveConfig(cfg)
}

func printItem(item core.MemoryItem) {
	title := core.MetadataTitle(item)
	tags := core.MetadataTags(item)

	line := item.ItemID().String()
	if title != "" {
		line += "  " + title
	}
	if len(tags) > 0 {
		line += "  [" + strings.Join(tags, ",") + "]"
	}
	fmt.Println(line)

	content := item.ItemContent()
	if len(content) > 120 {
		content = content[:117] + "..."
	}
	fmt.Println("    " + content)
}

func setupLogger(c *cli.Context) error {
	// Get log level from flag and normalize to lowercase
	levelStr := strings.ToLower(c.String("log-level"))

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

	logger := slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{
		Level: level,
	}))
	slog.SetDefault(logger)

	return nil
}
