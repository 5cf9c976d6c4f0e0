package loader

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"strconv"

	"github.com/kart-io/logger"
	"github.com/ledongthuc/pdf"

	"github.com/kart-io/sentinel-advisor/internal/model"
)

// PDFLoader extracts plain text from a PDF file, one document per page.
type PDFLoader struct{}

// NewPDFLoader creates a PDFLoader.
func NewPDFLoader() *PDFLoader { return &PDFLoader{} }

// Load reads the PDF at src.Location.
func (l *PDFLoader) Load(ctx context.Context, src Source) ([]model.Document, error) {
	f, r, err := pdf.Open(src.Location)
	if err != nil {
		return nil, fmt.Errorf("failed to open pdf %s: %w", src.name(), err)
	}
	defer func() { _ = f.Close() }()
	return readPages(ctx, r, src.name())
}

// LoadReader reads a PDF from memory.
func (l *PDFLoader) LoadReader(ctx context.Context, r io.Reader, name string) ([]model.Document, error) {
	data, err := io.ReadAll(r)
	if err != nil {
		return nil, fmt.Errorf("failed to read pdf %s: %w", name, err)
	}
	pr, err := pdf.NewReader(bytes.NewReader(data), int64(len(data)))
	if err != nil {
		return nil, fmt.Errorf("failed to parse pdf %s: %w", name, err)
	}
	return readPages(ctx, pr, name)
}

func readPages(ctx context.Context, r *pdf.Reader, name string) (docs []model.Document, err error) {
	// the pdf package panics on some malformed content streams
	defer func() {
		if rec := recover(); rec != nil {
			docs, err = nil, fmt.Errorf("failed to parse pdf %s: %v", name, rec)
		}
	}()

	total := r.NumPage()
	for i := 1; i <= total; i++ {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		page := r.Page(i)
		if page.V.IsNull() {
			continue
		}
		text, err := page.GetPlainText(nil)
		if err != nil {
			logger.Warnw("skipping unreadable pdf page", "source", name, "page", i, "error", err.Error())
			continue
		}
		// 空白页同样计入文档数，切分时不产生文本块
		doc := model.NewDocument(text, name)
		doc.Metadata[model.MetaPage] = strconv.Itoa(i - 1)
		docs = append(docs, doc)
	}
	return docs, nil
}

// IsPDF reports whether data starts with the PDF magic header.
func IsPDF(data []byte) bool {
	return bytes.HasPrefix(data, []byte("%PDF-"))
}
