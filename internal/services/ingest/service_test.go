package ingest

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"

	"github.com/go-pdf/fpdf"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/searchops/meilivault/internal/common"
	"github.com/searchops/meilivault/internal/models"
)

func testPDF(t *testing.T, pages int) []byte {
	t.Helper()
	pdf := fpdf.New("P", "mm", "A4", "")
	pdf.SetFont("Arial", "", 12)
	for i := 0; i < pages; i++ {
		pdf.AddPage()
		pdf.Write(5, fmt.Sprintf("page %d", i+1))
	}
	var buf bytes.Buffer
	require.NoError(t, pdf.Output(&buf))
	return buf.Bytes()
}

func fakeEmbeddingServer(t *testing.T, ingested *int32) *httptest.Server {
	t.Helper()
	return httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		n := atomic.AddInt32(ingested, 1)
		w.Header().Set("Content-Type", "application/json")
		json.NewEncoder(w).Encode(map[string]string{
			"document_id": fmt.Sprintf("doc-%d", n),
			"message":     "ingested",
		})
	}))
}

func TestIngestSameTextTwiceYieldsTwoIngestions(t *testing.T) {
	var ingested int32
	server := fakeEmbeddingServer(t, &ingested)
	defer server.Close()

	svc := NewService(common.NewDefaultConfig(), common.GetLogger())
	req := models.IngestTextRequest{
		Connection: models.Connection{EmbeddingURL: server.URL},
		Index:      "docs",
		Text:       "the same text",
	}

	first, err := svc.IngestText(context.Background(), req)
	require.NoError(t, err)
	second, err := svc.IngestText(context.Background(), req)
	require.NoError(t, err)

	assert.Equal(t, int32(2), atomic.LoadInt32(&ingested))
	assert.NotEqual(t, first.DocumentID, second.DocumentID)
}

func TestIngestPDFByURL(t *testing.T) {
	var ingested int32
	server := fakeEmbeddingServer(t, &ingested)
	defer server.Close()

	svc := NewService(common.NewDefaultConfig(), common.GetLogger())
	result, err := svc.IngestPDF(context.Background(), models.IngestPDFRequest{
		Connection: models.Connection{EmbeddingURL: server.URL},
		Index:      "docs",
		URL:        "https://bucket.s3.amazonaws.com/report.pdf",
	})

	require.NoError(t, err)
	assert.Equal(t, "doc-1", result.DocumentID)
}

func TestIngestUploadValidPDF(t *testing.T) {
	var ingested int32
	server := fakeEmbeddingServer(t, &ingested)
	defer server.Close()

	svc := NewService(common.NewDefaultConfig(), common.GetLogger())
	conn := models.Connection{EmbeddingURL: server.URL}

	result, err := svc.IngestUpload(context.Background(), conn, "docs", "report.pdf", testPDF(t, 3))

	require.NoError(t, err)
	assert.NotEmpty(t, result.DocumentID)
	assert.Equal(t, int32(1), atomic.LoadInt32(&ingested))
}

func TestIngestUploadRejectsNonPDF(t *testing.T) {
	var ingested int32
	server := fakeEmbeddingServer(t, &ingested)
	defer server.Close()

	svc := NewService(common.NewDefaultConfig(), common.GetLogger())
	conn := models.Connection{EmbeddingURL: server.URL}

	_, err := svc.IngestUpload(context.Background(), conn, "docs", "notes.txt", []byte("plain text"))

	require.Error(t, err)
	assert.Zero(t, atomic.LoadInt32(&ingested))
}

func TestIngestUploadRejectsTooManyPages(t *testing.T) {
	config := common.NewDefaultConfig()
	config.Ingest.MaxPDFPages = 2

	var ingested int32
	server := fakeEmbeddingServer(t, &ingested)
	defer server.Close()

	svc := NewService(config, common.GetLogger())
	conn := models.Connection{EmbeddingURL: server.URL}

	_, err := svc.IngestUpload(context.Background(), conn, "docs", "big.pdf", testPDF(t, 3))

	require.Error(t, err)
	assert.Contains(t, err.Error(), "maximum is 2")
	assert.Zero(t, atomic.LoadInt32(&ingested))
}

func TestIngestUploadRejectsOversizedFile(t *testing.T) {
	config := common.NewDefaultConfig()
	config.Ingest.MaxUploadSize = 10

	svc := NewService(config, common.GetLogger())
	_, err := svc.IngestUpload(context.Background(), models.Connection{EmbeddingURL: "http://localhost"}, "docs", "big.pdf", testPDF(t, 1))

	require.Error(t, err)
	assert.Contains(t, err.Error(), "maximum is 10")
}
