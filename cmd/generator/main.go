package main

import (
	"context"
	"fmt"
	"log/slog"
	"math/rand/v2"
	"os"
	"time"

	"github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb"
	"github.com/segmentio/ksuid"
	"github.com/urfave/cli/v2"

	"github.com/letmevibethatforyou/bookmarkx"
	"github.com/letmevibethatforyou/bookmarkx/dynamo"
)

var (
	sites = map[string][]string{
		"go.dev":              {"Effective Go", "Go Memory Model", "Release Notes", "Tour of Go"},
		"aws.amazon.com":      {"DynamoDB Best Practices", "Lambda Pricing", "Streams Guide"},
		"www.algolia.com":     {"Filters Syntax", "Replicas", "Ranking Formula"},
		"news.ycombinator":    {"Show HN", "Ask HN", "Launch HN"},
		"en.wikipedia.org":    {"B-tree", "Skip list", "Bloom filter", "Trie"},
		"blog.cloudflare.com": {"Rust at the Edge", "Post-quantum TLS", "Outage Report"},
	}

	tagNames = []string{"go", "aws", "search", "reading", "databases", "later", "ops"}

	bookmarkTypes = []bookmarkx.BookmarkType{bookmarkx.TypeLink, bookmarkx.TypeLink, bookmarkx.TypeText, bookmarkx.TypeAsset}
)

type generator struct {
	userID string
	tags   []bookmarkx.Tag
	now    time.Time
}

func newGenerator(userID string, now time.Time) *generator {
	g := &generator{userID: userID, now: now}
	for _, name := range tagNames {
		g.tags = append(g.tags, bookmarkx.Tag{ID: ksuid.New().String(), Name: name})
	}
	return g
}

func (g *generator) randomBookmark() bookmarkx.Bookmark {
	hosts := make([]string, 0, len(sites))
	for h := range sites {
		hosts = append(hosts, h)
	}
	host := hosts[rand.IntN(len(hosts))]
	titles := sites[host]
	title := titles[rand.IntN(len(titles))]

	b := bookmarkx.Bookmark{
		ID:         ksuid.New().String(),
		UserID:     g.userID,
		Type:       bookmarkTypes[rand.IntN(len(bookmarkTypes))],
		Title:      title,
		Archived:   rand.IntN(5) == 0,
		Favourited: rand.IntN(4) == 0,
		// Spread over the last year.
		CreatedAt: g.now.Add(-time.Duration(rand.IntN(365*24)) * time.Hour).Truncate(time.Millisecond),
	}

	switch b.Type {
	case bookmarkx.TypeLink:
		b.URL = fmt.Sprintf("https://%s/%s", host, ksuid.New().String()[:8])
		b.Description = fmt.Sprintf("%s on %s", title, host)
	case bookmarkx.TypeText:
		b.Content = fmt.Sprintf("Notes about %s", title)
	case bookmarkx.TypeAsset:
		b.AssetID = ksuid.New().String()
		b.FileName = fmt.Sprintf("%s.pdf", title)
	}

	for _, i := range rand.Perm(len(g.tags))[:rand.IntN(3)] {
		b.Tags = append(b.Tags, g.tags[i])
	}
	return b
}

func generate(ctx context.Context, store *dynamo.Store, g *generator, count, lists int) error {
	ids := make([]string, 0, count)
	for i := 0; i < count; i++ {
		b := g.randomBookmark()
		if err := store.PutBookmark(ctx, b); err != nil {
			return fmt.Errorf("failed to insert bookmark %d: %w", i+1, err)
		}
		ids = append(ids, b.ID)

		slog.InfoContext(ctx, "Successfully inserted bookmark",
			"id", b.ID,
			"type", b.Type,
			"title", b.Title,
			"tags", len(b.Tags),
		)
	}

	for i := 0; i < lists && len(ids) > 0; i++ {
		listID := ksuid.New().String()
		members := make([]string, 0, len(ids)/2+1)
		for _, id := range ids {
			if rand.IntN(2) == 0 {
				members = append(members, id)
			}
		}
		if err := store.AddToList(ctx, g.userID, listID, members...); err != nil {
			return fmt.Errorf("failed to fill list %d: %w", i+1, err)
		}
		slog.InfoContext(ctx, "Successfully created list", "list_id", listID, "members", len(members))
	}
	return nil
}

func runAction(c *cli.Context) error {
	ctx := c.Context
	env := c.String("env")
	tableName := c.String("table-name")
	userID := c.String("user")
	count := c.Int("count")
	lists := c.Int("lists")

	if userID == "" {
		userID = ksuid.New().String()
	}

	slog.InfoContext(ctx, "Starting bookmark generator",
		"environment", env,
		"table", tableName,
		"user", userID,
		"count", count,
		"lists", lists,
	)

	cfg, err := config.LoadDefaultConfig(ctx)
	if err != nil {
		return fmt.Errorf("failed to load AWS config: %w", err)
	}

	store := dynamo.NewStore(dynamodb.NewFromConfig(cfg), tableName)
	if err := generate(ctx, store, newGenerator(userID, time.Now().UTC()), count, lists); err != nil {
		return err
	}

	slog.InfoContext(ctx, "Successfully generated and inserted all bookmarks", "user", userID, "count", count)
	return nil
}

func main() {
	// Configure JSON logging for AWS environments
	if os.Getenv("AWS_LAMBDA_RUNTIME_API") != "" || os.Getenv("AWS_REGION") != "" {
		slog.SetDefault(slog.New(slog.NewJSONHandler(os.Stdout, nil)))
	}

	app := &cli.App{
		Name:  "generator",
		Usage: "Generate random bookmarks, tags and lists and insert them into DynamoDB",
		Flags: []cli.Flag{
			&cli.StringFlag{
				Name:     "env",
				Aliases:  []string{"e"},
				Usage:    "Environment name",
				EnvVars:  []string{"ENVIRONMENT"},
				Required: true,
			},
			&cli.StringFlag{
				Name:     "table-name",
				Aliases:  []string{"t"},
				Usage:    "DynamoDB table name",
				EnvVars:  []string{"TABLE_NAME"},
				Required: true,
			},
			&cli.StringFlag{
				Name:    "user",
				Aliases: []string{"u"},
				Usage:   "Owner of the generated bookmarks; a new id when empty",
			},
			&cli.IntFlag{
				Name:    "count",
				Aliases: []string{"c"},
				Usage:   "Number of bookmarks to generate",
				Value:   1,
			},
			&cli.IntFlag{
				Name:  "lists",
				Usage: "Number of lists to fill with generated bookmarks",
				Value: 0,
			},
		},
		Action: runAction,
	}

	if err := app.Run(os.Args); err != nil {
		slog.Error("Application failed", "error", err)
		os.Exit(1)
	}
}
