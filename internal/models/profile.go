package models

// Profile is a named connection preset loaded from profiles.yaml to pre-fill
// the UI sidebar. API keys are optional and redacted when listed.
type Profile struct {
	Name           string `yaml:"name" json:"name"`
	MeilisearchURL string `yaml:"meilisearch_url" json:"meilisearch_url"`
	MeilisearchKey string `yaml:"meilisearch_key" json:"meilisearch_key,omitempty"`
	EmbeddingURL   string `yaml:"embedding_url" json:"embedding_url,omitempty"`
	EmbeddingKey   string `yaml:"embedding_key" json:"embedding_key,omitempty"`
}

// Redacted returns a copy with key material blanked for listing endpoints.
func (p Profile) Redacted() Profile {
	clone := p
	if clone.MeilisearchKey != "" {
		clone.MeilisearchKey = "********"
	}
	if clone.EmbeddingKey != "" {
		clone.EmbeddingKey = "********"
	}
	return clone
}
