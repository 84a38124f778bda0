package models

import "strings"

// Connection carries the endpoint details a user enters in the UI sidebar.
// Values live for the duration of a single request and are never persisted.
// Which endpoint is mandatory depends on the operation, so presence checks
// live with the handlers.
type Connection struct {
	MeilisearchURL string `json:"meilisearch_url" validate:"omitempty,url"`
	MeilisearchKey string `json:"meilisearch_key"`
	EmbeddingURL   string `json:"embedding_url" validate:"omitempty,url"`
	EmbeddingKey   string `json:"embedding_key"`
}

// HasMeilisearch reports whether Meilisearch endpoint details are present.
func (c Connection) HasMeilisearch() bool {
	return c.MeilisearchURL != "" && c.MeilisearchKey != ""
}

// HasEmbedding reports whether embedding API endpoint details are present.
func (c Connection) HasEmbedding() bool {
	return c.EmbeddingURL != ""
}

// Normalize strips trailing slashes so path joining stays predictable.
func (c *Connection) Normalize() {
	c.MeilisearchURL = strings.TrimRight(c.MeilisearchURL, "/")
	c.EmbeddingURL = strings.TrimRight(c.EmbeddingURL, "/")
}
