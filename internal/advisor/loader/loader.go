// Package loader turns PDFs, HTML files and web pages into documents.
package loader

import (
	"context"

	"github.com/kart-io/sentinel-advisor/internal/model"
)

// Source identifies something to load.
type Source struct {
	// Location is a file path or a URL.
	Location string
	// Name is recorded as the document source. Location is used when empty.
	Name string
}

func (s Source) name() string {
	if s.Name != "" {
		return s.Name
	}
	return s.Location
}

// DocumentLoader loads documents from a single source.
type DocumentLoader interface {
	Load(ctx context.Context, src Source) ([]model.Document, error)
}

var (
	_ DocumentLoader = (*PDFLoader)(nil)
	_ DocumentLoader = (*URLLoader)(nil)
	_ DocumentLoader = (*HTMLFileLoader)(nil)
)
