package models

// IngestTextRequest submits a raw text blob for embedding.
type IngestTextRequest struct {
	Connection Connection `json:"connection"`
	Index      string     `json:"index" validate:"required"`
	Text       string     `json:"text" validate:"required"`
	Title      string     `json:"title"`
}

// IngestPDFRequest submits a reference to a PDF stored externally (S3).
type IngestPDFRequest struct {
	Connection Connection `json:"connection"`
	Index      string     `json:"index" validate:"required"`
	URL        string     `json:"url" validate:"required,url"`
}

// IngestResult reports the outcome of a single submission. Ownership of the
// document transfers to the embedding API on success; nothing is kept here.
type IngestResult struct {
	DocumentID string `json:"document_id,omitempty"`
	Message    string `json:"message,omitempty"`
}
