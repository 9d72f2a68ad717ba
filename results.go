package bookmarkx

// Result represents a single full-text hit.
type Result struct {
	// ID is the bookmark id of the hit.
	ID string `json:"id"`

	// Score represents the relevance score of this result. Higher is more relevant.
	Score float64 `json:"score"`

	// Fields contains the retrieved document fields as key-value pairs.
	Fields map[string]interface{} `json:"fields,omitempty"`
}

// Results represents a collection of search results with metadata.
type Results struct {
	// Items contains the individual search results.
	Items []Result

	// Total is the total number of matching documents.
	Total int64

	// Took is the time taken to execute the search in milliseconds.
	Took int64

	// MaxScore is the maximum relevance score across all results.
	MaxScore float64

	// Query is the original query string for reference.
	Query string
}
