package models

// IndexInfo describes a Meilisearch index as returned by GET /indexes.
type IndexInfo struct {
	UID        string `json:"uid"`
	PrimaryKey string `json:"primaryKey,omitempty"`
	CreatedAt  string `json:"createdAt,omitempty"`
	UpdatedAt  string `json:"updatedAt,omitempty"`
}

// IndexSettings holds an index's settings document. Meilisearch treats
// settings as an open JSON object and new setting types appear between
// versions, so the whole document is kept generic.
type IndexSettings map[string]interface{}

// IndexStats is the subset of GET /indexes/{uid}/stats the console uses.
type IndexStats struct {
	NumberOfDocuments int64 `json:"numberOfDocuments"`
	IsIndexing        bool  `json:"isIndexing"`
}

// IndexSummary combines index metadata with its document count for listings.
type IndexSummary struct {
	UID           string `json:"uid"`
	PrimaryKey    string `json:"primary_key,omitempty"`
	DocumentCount int64  `json:"document_count"`
}

// SettingTypes are the individually-settable setting endpoints used as a
// fallback when a full settings PATCH is rejected.
var SettingTypes = []string{
	"displayedAttributes",
	"filterableAttributes",
	"sortableAttributes",
	"rankingRules",
	"stopWords",
	"synonyms",
	"distinctAttribute",
}
