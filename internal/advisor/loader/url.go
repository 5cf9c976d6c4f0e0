package loader

import (
	"bytes"
	"context"
	"fmt"
	"strings"

	"github.com/kart-io/logger"

	"github.com/kart-io/sentinel-advisor/internal/model"
	"github.com/kart-io/sentinel-advisor/pkg/infra/pool"
	"github.com/kart-io/sentinel-advisor/pkg/utils/httpclient"
)

// Fetcher downloads a URL and returns its body and Content-Type.
type Fetcher interface {
	Get(ctx context.Context, url string) ([]byte, string, error)
}

var _ Fetcher = (*httpclient.Client)(nil)

// URLLoader fetches web pages and reduces them to visible text.
// PDF responses are parsed page by page instead.
type URLLoader struct {
	fetcher Fetcher
	pool    *pool.Pool
	pdf     *PDFLoader
}

// NewURLLoader creates a URLLoader. p may be nil, in which case LoadAll
// fetches sequentially.
func NewURLLoader(fetcher Fetcher, p *pool.Pool) *URLLoader {
	return &URLLoader{fetcher: fetcher, pool: p, pdf: NewPDFLoader()}
}

// Load fetches src.Location.
func (l *URLLoader) Load(ctx context.Context, src Source) ([]model.Document, error) {
	body, contentType, err := l.fetcher.Get(ctx, src.Location)
	if err != nil {
		return nil, fmt.Errorf("failed to fetch %s: %w", src.Location, err)
	}

	if strings.Contains(contentType, "application/pdf") || IsPDF(body) {
		return l.pdf.LoadReader(ctx, bytes.NewReader(body), src.name())
	}

	text, err := ExtractText(bytes.NewReader(body), contentType)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", src.Location, err)
	}
	logger.Debugw("url loaded", "url", src.Location, "bytes", len(body), "chars", len(text))
	if text == "" {
		return nil, nil
	}
	return []model.Document{model.NewDocument(text, src.name())}, nil
}

// LoadAll fetches every URL concurrently and returns the documents in
// input order. The first failure cancels the remaining fetches.
func (l *URLLoader) LoadAll(ctx context.Context, urls []string) ([]model.Document, error) {
	results := make([][]model.Document, len(urls))
	tasks := make([]func(ctx context.Context) error, len(urls))
	for i, u := range urls {
		tasks[i] = func(ctx context.Context) error {
			docs, err := l.Load(ctx, Source{Location: u})
			if err != nil {
				return err
			}
			results[i] = docs
			return nil
		}
	}

	if l.pool != nil {
		if err := l.pool.RunAll(ctx, tasks...); err != nil {
			return nil, err
		}
	} else {
		for _, task := range tasks {
			if err := task(ctx); err != nil {
				return nil, err
			}
		}
	}

	var docs []model.Document
	for _, r := range results {
		docs = append(docs, r...)
	}
	return docs, nil
}
