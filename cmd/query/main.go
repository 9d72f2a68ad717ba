package main

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"os"
	"strings"
	"time"

	"github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb"
	"github.com/urfave/cli/v2"

	"github.com/letmevibethatforyou/bookmarkx"
	"github.com/letmevibethatforyou/bookmarkx/algolia"
	"github.com/letmevibethatforyou/bookmarkx/dynamo"
	"github.com/letmevibethatforyou/bookmarkx/inmemory"
	"github.com/letmevibethatforyou/bookmarkx/planner"
)

const (
	defaultTimeout = 5 * time.Second

	backendMemory = "memory"
	backendDynamo = "dynamo"
)

func main() {
	if os.Getenv("AWS_LAMBDA_RUNTIME_API") != "" || os.Getenv("AWS_REGION") != "" {
		slog.SetDefault(slog.New(slog.NewJSONHandler(os.Stdout, nil)))
	}

	app := &cli.App{
		Name:  "query",
		Usage: "Search a user's bookmarks",
		Flags: []cli.Flag{
			&cli.StringFlag{
				Name:     "user",
				Aliases:  []string{"u"},
				Usage:    "User whose bookmarks are searched",
				EnvVars:  []string{"BOOKMARKX_USER"},
				Required: true,
			},
			&cli.StringFlag{
				Name:    "text",
				Aliases: []string{"q"},
				Usage:   "Search text, or query language with --advanced; positional arg is a fallback",
			},
			&cli.BoolFlag{
				Name:    "advanced",
				Aliases: []string{"a"},
				Usage:   "Parse --text as query language",
			},
			&cli.StringSliceFlag{
				Name:  "id",
				Usage: "Restrict to bookmark id; repeatable",
			},
			&cli.StringFlag{
				Name:  "list",
				Usage: "Restrict to the members of a list",
			},
			&cli.StringFlag{
				Name:  "tag",
				Usage: "Restrict to bookmarks carrying a tag id",
			},
			&cli.BoolFlag{
				Name:  "archived",
				Usage: "Restrict to archived bookmarks",
			},
			&cli.BoolFlag{
				Name:  "favourited",
				Usage: "Restrict to favourited bookmarks",
			},
			&cli.StringFlag{
				Name:    "cursor",
				Aliases: []string{"c"},
				Usage:   "Cursor JSON returned as nextCursor by the previous page",
			},
			&cli.BoolFlag{
				Name:  "cursor-v2",
				Usage: "Use id and creation time cursors",
				Value: true,
			},
			&cli.IntFlag{
				Name:    "limit",
				Aliases: []string{"l"},
				Usage:   "Maximum number of bookmarks to return",
				Value:   planner.DefaultLimit,
			},
			&cli.DurationFlag{
				Name:  "timeout",
				Usage: "Timeout for the search request",
				Value: defaultTimeout,
			},
			&cli.StringFlag{
				Name:  "backend",
				Usage: "Backend to search: memory or dynamo",
				Value: backendMemory,
			},
			&cli.StringFlag{
				Name:  "fixture",
				Usage: "JSON fixture loaded by the memory backend",
			},
			&cli.StringFlag{
				Name:    "table-name",
				Aliases: []string{"t"},
				Usage:   "DynamoDB table name for the dynamo backend",
				EnvVars: []string{"TABLE_NAME"},
			},
			&cli.StringFlag{
				Name:    "index",
				Aliases: []string{"i"},
				Usage:   "Algolia index name for the dynamo backend",
				EnvVars: []string{"ALGOLIA_INDEX"},
			},
			&cli.StringFlag{
				Name:    "env",
				Usage:   "Environment name for AWS Secrets Manager",
				EnvVars: []string{"ENVIRONMENT"},
			},
			&cli.StringFlag{
				Name:    "algolia-secret-arn",
				Usage:   "ARN of AWS Secrets Manager secret containing Algolia credentials",
				EnvVars: []string{"ALGOLIA_SECRET_ARN"},
			},
		},
		Action: runAction,
	}

	if err := app.Run(os.Args); err != nil {
		slog.Error("Application failed", "error", err)
		os.Exit(1)
	}
}

func runAction(c *cli.Context) error {
	ctx := c.Context

	req, err := buildRequest(c)
	if err != nil {
		return fmt.Errorf("invalid request: %w", err)
	}

	timeout := c.Duration("timeout")
	if timeout <= 0 {
		slog.WarnContext(ctx, "timeout must be positive; using default", "timeout", timeout, "default", defaultTimeout)
		timeout = defaultTimeout
	}

	engine, err := buildEngine(c)
	if err != nil {
		return err
	}

	ctx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	userID := strings.TrimSpace(c.String("user"))
	slog.InfoContext(ctx, "executing query",
		"backend", c.String("backend"),
		"user", userID,
		"text", req.Text,
		"advanced", req.Advanced,
		"limit", req.Limit,
		"has_cursor", req.Cursor != nil,
		"timeout", timeout,
	)

	resp, err := engine.PerformSearch(ctx, userID, req)
	if err != nil {
		return fmt.Errorf("search failed: %w", err)
	}

	if err := printResponse(resp); err != nil {
		return fmt.Errorf("failed to serialize results: %w", err)
	}
	return nil
}

func buildRequest(c *cli.Context) (planner.Request, error) {
	text := c.String("text")
	if text == "" && c.NArg() > 0 {
		text = c.Args().First()
	}

	limit := c.Int("limit")
	if limit <= 0 {
		slog.WarnContext(c.Context, "limit must be positive; falling back to default", "limit", limit, "default", planner.DefaultLimit)
		limit = planner.DefaultLimit
	}

	req := planner.Request{
		Text:        text,
		Advanced:    c.Bool("advanced"),
		ListID:      strings.TrimSpace(c.String("list")),
		TagID:       strings.TrimSpace(c.String("tag")),
		Archived:    c.Bool("archived"),
		Favourited:  c.Bool("favourited"),
		Limit:       limit,
		UseCursorV2: c.Bool("cursor-v2"),
	}
	if c.IsSet("id") {
		req.IDs = c.StringSlice("id")
	}

	if raw := strings.TrimSpace(c.String("cursor")); raw != "" {
		var cursor planner.Cursor
		if err := json.Unmarshal([]byte(raw), &cursor); err != nil {
			return planner.Request{}, err
		}
		req.Cursor = &cursor
	}

	return req, req.Validate()
}

func buildEngine(c *cli.Context) (*planner.Engine, error) {
	switch backend := c.String("backend"); backend {
	case backendMemory:
		return memoryEngine(c)
	case backendDynamo:
		return dynamoEngine(c)
	default:
		return nil, fmt.Errorf("unknown backend %q, expected %s or %s", backend, backendMemory, backendDynamo)
	}
}

// memoryEngine serves a fixture file from memory, indexing every stored
// bookmark for text search.
func memoryEngine(c *cli.Context) (*planner.Engine, error) {
	store := inmemory.NewStore()
	index := inmemory.New()

	if path := c.String("fixture"); path != "" {
		f, err := os.Open(path)
		if err != nil {
			return nil, fmt.Errorf("failed to open fixture: %w", err)
		}
		defer f.Close()

		stored, err := store.Load(f)
		if err != nil {
			return nil, fmt.Errorf("failed to load fixture %s: %w", path, err)
		}
		for _, b := range stored {
			index.Index(b.IndexDocument())
		}
		slog.InfoContext(c.Context, "loaded fixture", "path", path, "bookmarks", len(stored))
	}

	return planner.NewEngine(store, index), nil
}

func dynamoEngine(c *cli.Context) (*planner.Engine, error) {
	ctx := c.Context

	tableName := strings.TrimSpace(c.String("table-name"))
	if tableName == "" {
		return nil, fmt.Errorf("--table-name is required for the %s backend", backendDynamo)
	}

	cfg, err := config.LoadDefaultConfig(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to load AWS config: %w", err)
	}
	store := dynamo.NewStore(dynamodb.NewFromConfig(cfg), tableName)

	indexName := strings.TrimSpace(c.String("index"))
	if indexName == "" {
		slog.WarnContext(ctx, "no Algolia index configured; text search is unavailable")
		return planner.NewEngine(store, nil), nil
	}

	fetchSecrets, err := algolia.ResolveSecrets(ctx, algolia.SecretsSource{
		Env:       c.String("env"),
		SecretARN: c.String("algolia-secret-arn"),
	})
	if err != nil {
		return nil, err
	}
	searcher := algolia.NewSearcher(algolia.NewClient(fetchSecrets), indexName,
		algolia.WithSortReplica("createdAt", true, indexName+"_created_desc"),
	)

	return planner.NewEngine(store, searcher), nil
}

func printResponse(resp *planner.Response) error {
	payload := struct {
		Bookmarks    []bookmarkx.Bookmark `json:"bookmarks"`
		NextCursor   *planner.Cursor      `json:"nextCursor"`
		ErrorMessage string               `json:"errorMessage,omitempty"`
		Count        int                  `json:"count"`
	}{
		Bookmarks:    resp.Bookmarks,
		NextCursor:   resp.NextCursor,
		ErrorMessage: resp.ErrorMessage,
		Count:        len(resp.Bookmarks),
	}

	data, err := json.MarshalIndent(payload, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to marshal response: %w", err)
	}

	fmt.Println(string(data))
	return nil
}
