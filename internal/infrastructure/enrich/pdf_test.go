package enrich

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Seeker214/SystemPaperDaily/internal/config"
	"github.com/Seeker214/SystemPaperDaily/internal/domain"
)

func partialExtractor(first, last int) *PDFExtractor {
	return NewPDFExtractor(config.PDFConfig{
		Mode:       "partial",
		FirstPages: first,
		LastPages:  last,
		MaxChars:   50000,
	}, nil, nil)
}

func TestSelectPagesPartial(t *testing.T) {
	t.Parallel()

	e := partialExtractor(3, 1)

	assert.Equal(t, []int{1, 2, 3, 12}, e.selectPages(12))
	assert.Equal(t, []int{1, 2, 3, 4}, e.selectPages(4))
	// Overlapping windows never duplicate a page.
	assert.Equal(t, []int{1, 2, 3}, e.selectPages(3))
	assert.Equal(t, []int{1, 2}, e.selectPages(2))
	assert.Nil(t, e.selectPages(0))
}

func TestSelectPagesFull(t *testing.T) {
	t.Parallel()

	e := NewPDFExtractor(config.PDFConfig{Mode: "full"}, nil, nil)
	assert.Equal(t, []int{1, 2, 3, 4, 5}, e.selectPages(5))
}

func TestExtractNoPDFURL(t *testing.T) {
	t.Parallel()

	e := partialExtractor(3, 1)
	_, err := e.Extract(context.Background(), domain.Paper{ID: "x"})
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrNoPDF)
}

func TestExtractDownloadFailure(t *testing.T) {
	t.Parallel()

	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "gone", http.StatusNotFound)
	}))
	defer server.Close()

	e := NewPDFExtractor(config.PDFConfig{Mode: "partial", FirstPages: 3, LastPages: 1}, server.Client(), nil)
	_, err := e.Extract(context.Background(), domain.Paper{ID: "x", PDFURL: server.URL + "/x.pdf"})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "404")
}

func TestExtractRejectsNonPDF(t *testing.T) {
	t.Parallel()

	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte("<html>not a pdf</html>"))
	}))
	defer server.Close()

	e := NewPDFExtractor(config.PDFConfig{Mode: "partial", FirstPages: 3, LastPages: 1}, server.Client(), nil)
	_, err := e.Extract(context.Background(), domain.Paper{ID: "x", PDFURL: server.URL + "/x.pdf"})
	require.Error(t, err)
}
