package main

import (
	"context"
	"log/slog"
	"os"

	"github.com/aws/aws-lambda-go/events"
	"github.com/aws/aws-lambda-go/lambda"
	"github.com/urfave/cli/v2"

	"github.com/letmevibethatforyou/bookmarkx"
	"github.com/letmevibethatforyou/bookmarkx/algolia"
	"github.com/letmevibethatforyou/bookmarkx/internal/ddb"
)

// Indexer writes bookmark documents to the full-text index.
type Indexer interface {
	IndexBookmark(ctx context.Context, indexName string, doc bookmarkx.IndexDocument) error
	DeleteBookmark(ctx context.Context, indexName, bookmarkID string) error
}

type Handler struct {
	indexName string
	indexer   Indexer
}

func NewHandler(indexName string, indexer Indexer) *Handler {
	return &Handler{
		indexName: indexName,
		indexer:   indexer,
	}
}

// HandleDynamoDBEvent mirrors bookmark changes of the table into the index.
// Items that are not bookmarks are ignored. Malformed records are logged and
// skipped; an index failure fails the batch so the stream retries it.
func (h *Handler) HandleDynamoDBEvent(ctx context.Context, e events.DynamoDBEvent) error {
	slog.InfoContext(ctx, "Processing DynamoDB stream records", "record_count", len(e.Records))

	for _, record := range e.Records {
		if err := h.processRecord(ctx, record); err != nil {
			slog.ErrorContext(ctx, "Error processing record", "event_id", record.EventID, "error", err)
			return err
		}
	}
	return nil
}

func (h *Handler) processRecord(ctx context.Context, record events.DynamoDBEventRecord) error {
	switch ddb.Operation(record) {
	case ddb.OperationInsert, ddb.OperationModify:
		if record.Change.NewImage == nil {
			slog.WarnContext(ctx, "No new image for insert/modify operation, skipping record", "event_id", record.EventID)
			return nil
		}
		image, err := ddb.FromStreamImage(record.Change.NewImage)
		if err != nil {
			slog.WarnContext(ctx, "Failed to convert new image, skipping", "event_id", record.EventID, "error", err)
			return nil
		}
		item, ok, err := ddb.UnmarshalBookmark(image)
		if err != nil {
			slog.WarnContext(ctx, "Failed to unmarshal bookmark, skipping", "event_id", record.EventID, "error", err)
			return nil
		}
		if !ok {
			slog.DebugContext(ctx, "Ignoring non-bookmark item", "event_id", record.EventID)
			return nil
		}

		doc := item.Bookmark().IndexDocument()
		slog.InfoContext(ctx, "Indexing bookmark", "bookmark_id", doc.ID, "index", h.indexName)
		return h.indexer.IndexBookmark(ctx, h.indexName, doc)

	case ddb.OperationRemove:
		keys, err := ddb.FromStreamImage(record.Change.Keys)
		if err != nil {
			slog.WarnContext(ctx, "Failed to convert keys for delete operation, skipping", "event_id", record.EventID, "error", err)
			return nil
		}
		id, ok := ddb.BookmarkIDFromKeys(keys)
		if !ok {
			slog.DebugContext(ctx, "Ignoring removal of non-bookmark item", "event_id", record.EventID)
			return nil
		}

		slog.InfoContext(ctx, "Removing bookmark from index", "bookmark_id", id, "index", h.indexName)
		return h.indexer.DeleteBookmark(ctx, h.indexName, id)

	default:
		slog.InfoContext(ctx, "Ignoring event type", "event_type", record.EventName)
		return nil
	}
}

func main() {
	if os.Getenv("AWS_LAMBDA_RUNTIME_API") != "" {
		slog.SetDefault(slog.New(slog.NewJSONHandler(os.Stdout, nil)))
	}

	app := &cli.App{
		Name:  "index-bookmarks",
		Usage: "Sync bookmark changes from the DynamoDB stream to Algolia",
		Flags: []cli.Flag{
			&cli.StringFlag{
				Name:     "index",
				Usage:    "Algolia index holding bookmark documents",
				EnvVars:  []string{"ALGOLIA_INDEX"},
				Required: true,
			},
			&cli.StringFlag{
				Name:    "env",
				Usage:   "Environment name for AWS Secrets Manager (takes precedence over the other credential flags)",
				EnvVars: []string{"ENV", "ENVIRONMENT"},
			},
			&cli.StringFlag{
				Name:    "algolia-secret-arn",
				Usage:   "ARN of the Secrets Manager secret holding Algolia credentials",
				EnvVars: []string{"ALGOLIA_SECRET_ARN"},
			},
			&cli.StringFlag{
				Name:    "algolia-app-id",
				Usage:   "Algolia application ID",
				EnvVars: []string{"ALGOLIA_APP_ID"},
			},
			&cli.StringFlag{
				Name:    "algolia-api-key",
				Usage:   "Algolia API key",
				EnvVars: []string{"ALGOLIA_API_KEY"},
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
	indexName := c.String("index")

	fetchSecrets, err := algolia.ResolveSecrets(ctx, algolia.SecretsSource{
		Env:       c.String("env"),
		SecretARN: c.String("algolia-secret-arn"),
		AppID:     c.String("algolia-app-id"),
		APIKey:    c.String("algolia-api-key"),
	})
	if err != nil {
		slog.ErrorContext(ctx, "Failed to resolve Algolia credentials", "error", err)
		return err
	}
	handler := NewHandler(indexName, algolia.NewClient(fetchSecrets))

	if os.Getenv("AWS_LAMBDA_RUNTIME_API") == "" {
		slog.InfoContext(ctx, "Function cannot run outside of AWS Lambda environment")
		return nil
	}
	slog.InfoContext(ctx, "Running in Lambda environment", "index", indexName)
	lambda.Start(handler.HandleDynamoDBEvent)
	return nil
}
