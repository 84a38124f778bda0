package models

// QueryRequest asks a natural-language question against an index.
type QueryRequest struct {
	Connection Connection `json:"connection"`
	Index      string     `json:"index" validate:"required"`
	Question   string     `json:"question" validate:"required"`
	K          int        `json:"k" validate:"min=0,max=100"`
}

// QuerySource is one supporting snippet behind an answer.
type QuerySource struct {
	DocumentID string  `json:"document_id,omitempty"`
	Title      string  `json:"title,omitempty"`
	Snippet    string  `json:"snippet"`
	Score      float64 `json:"score,omitempty"`
}

// QueryResult is the answer plus its sources. Not persisted.
type QueryResult struct {
	Answer  string        `json:"answer"`
	Sources []QuerySource `json:"sources"`
}
