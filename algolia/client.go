// Package algolia is the Algolia backed full-text index for bookmarks: a
// lazily connected client for writing index documents and a Searcher used by
// text search queries.
package algolia

import (
	"context"
	"os"
	"sync"

	"github.com/algolia/algoliasearch-client-go/v3/algolia/search"
	"github.com/cockroachdb/errors"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"github.com/letmevibethatforyou/bookmarkx"
)

// Secrets holds the Algolia application credentials.
type Secrets struct {
	AppID       string `json:"app_id"`
	WriteApiKey string `json:"write_api_key"`
}

// FetchSecrets retrieves Algolia credentials. It runs once, on first use of
// the client.
type FetchSecrets func() (Secrets, error)

// StaticSecrets returns credentials known up front.
func StaticSecrets(appID, writeApiKey string) FetchSecrets {
	return func() (Secrets, error) {
		return Secrets{AppID: appID, WriteApiKey: writeApiKey}, nil
	}
}

// EnvSecrets reads ALGOLIA_APP_ID and ALGOLIA_API_KEY.
func EnvSecrets() FetchSecrets {
	return func() (Secrets, error) {
		appID := os.Getenv("ALGOLIA_APP_ID")
		if appID == "" {
			return Secrets{}, errors.New("ALGOLIA_APP_ID environment variable is not set")
		}
		apiKey := os.Getenv("ALGOLIA_API_KEY")
		if apiKey == "" {
			return Secrets{}, errors.New("ALGOLIA_API_KEY environment variable is not set")
		}
		return Secrets{AppID: appID, WriteApiKey: apiKey}, nil
	}
}

type Client struct {
	getClient func() (*search.Client, error)
	tracer    trace.Tracer
}

func NewClient(fetchSecrets FetchSecrets) *Client {
	getClient := sync.OnceValues(func() (*search.Client, error) {
		secrets, err := fetchSecrets()
		if err != nil {
			return nil, errors.Wrap(err, "failed to fetch secrets")
		}
		if secrets.AppID == "" {
			return nil, errors.New("AppID is empty")
		}
		if secrets.WriteApiKey == "" {
			return nil, errors.New("WriteApiKey is empty")
		}
		return search.NewClient(secrets.AppID, secrets.WriteApiKey), nil
	})

	return &Client{
		getClient: getClient,
		tracer:    otel.Tracer("bookmarkx-algolia"),
	}
}

// IndexBookmark saves the index document of a bookmark, replacing any
// previous version.
func (c *Client) IndexBookmark(ctx context.Context, indexName string, doc bookmarkx.IndexDocument) error {
	ctx, span := c.tracer.Start(ctx, "algolia.index_bookmark",
		trace.WithAttributes(
			attribute.String("algolia.index_name", indexName),
			attribute.String("algolia.object_id", doc.ID),
		),
	)
	defer span.End()

	index, err := c.index(indexName)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "failed to get Algolia client")
		return err
	}

	if _, err := index.SaveObject(doc.Object(), ctx); err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "failed to save bookmark")
		return bookmarkx.WrapBackendError(err, "save bookmark %s to Algolia index %s", doc.ID, indexName)
	}

	span.SetStatus(codes.Ok, "bookmark indexed")
	return nil
}

// IndexBookmarks saves many index documents in one batch.
func (c *Client) IndexBookmarks(ctx context.Context, indexName string, docs []bookmarkx.IndexDocument) error {
	if len(docs) == 0 {
		return nil
	}

	ctx, span := c.tracer.Start(ctx, "algolia.index_bookmarks",
		trace.WithAttributes(
			attribute.String("algolia.index_name", indexName),
			attribute.Int("algolia.object_count", len(docs)),
		),
	)
	defer span.End()

	index, err := c.index(indexName)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "failed to get Algolia client")
		return err
	}

	objects := make([]map[string]interface{}, 0, len(docs))
	for _, doc := range docs {
		objects = append(objects, doc.Object())
	}
	if _, err := index.SaveObjects(objects, ctx); err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "failed to batch save bookmarks")
		return bookmarkx.WrapBackendError(err, "batch save %d bookmarks to Algolia index %s", len(docs), indexName)
	}

	span.SetStatus(codes.Ok, "bookmarks indexed")
	return nil
}

// DeleteBookmark removes a bookmark from the index.
func (c *Client) DeleteBookmark(ctx context.Context, indexName, bookmarkID string) error {
	ctx, span := c.tracer.Start(ctx, "algolia.delete_bookmark",
		trace.WithAttributes(
			attribute.String("algolia.index_name", indexName),
			attribute.String("algolia.object_id", bookmarkID),
		),
	)
	defer span.End()

	index, err := c.index(indexName)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "failed to get Algolia client")
		return err
	}

	if _, err := index.DeleteObject(bookmarkID, ctx); err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "failed to delete bookmark")
		return bookmarkx.WrapBackendError(err, "delete bookmark %s from Algolia index %s", bookmarkID, indexName)
	}

	span.SetStatus(codes.Ok, "bookmark deleted")
	return nil
}

func (c *Client) index(indexName string) (*search.Index, error) {
	client, err := c.getClient()
	if err != nil {
		return nil, errors.WithSecondaryError(
			bookmarkx.ErrBackendUnavailable,
			errors.Wrap(err, "failed to get Algolia client"),
		)
	}
	return client.InitIndex(indexName), nil
}
