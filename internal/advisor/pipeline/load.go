package pipeline

import (
	"context"
	"fmt"
	"path/filepath"
	"strings"

	"github.com/kart-io/logger"

	"github.com/kart-io/sentinel-advisor/internal/advisor/loader"
	"github.com/kart-io/sentinel-advisor/internal/model"
	"github.com/kart-io/sentinel-advisor/pkg/llm"
	"github.com/kart-io/sentinel-advisor/pkg/utils/errors"
)

// LoadDocuments 加载 .pdf（逐页）与 .html（整页可见文本），
// 文档来源记为 sourceMap 中的原始地址。其他扩展名被忽略。
func LoadDocuments(ctx context.Context, files []string, sourceMap map[string]string) ([]model.Document, error) {
	pdfLoader := loader.NewPDFLoader()
	htmlLoader := loader.NewHTMLFileLoader()

	var docs []model.Document
	for _, path := range files {
		var l loader.DocumentLoader
		switch strings.ToLower(filepath.Ext(path)) {
		case ".pdf":
			l = pdfLoader
		case ".html":
			l = htmlLoader
		default:
			continue
		}

		origin, ok := sourceMap[path]
		if !ok {
			return nil, fmt.Errorf("no source recorded for %s", path)
		}
		loaded, err := l.Load(ctx, loader.Source{Location: path, Name: origin})
		if err != nil {
			return nil, errors.ErrLoadFailed.WithCause(err)
		}
		docs = append(docs, loaded...)
	}

	logger.Infow("documents loaded", "files", len(files), "documents", len(docs))
	return docs, nil
}

// SegmentDocuments 调用分段服务将每个文档拆成语义段落，段落继承文档来源。
func SegmentDocuments(ctx context.Context, docs []model.Document, segmenter llm.SegmentationProvider) ([]model.Document, error) {
	var segmented []model.Document
	for _, doc := range docs {
		segments, err := segmenter.Segment(ctx, doc.Content)
		if err != nil {
			return nil, errors.ErrSegmentFailed.WithCause(fmt.Errorf("%s: %w", doc.Source(), err))
		}
		for _, seg := range segments {
			segmented = append(segmented, model.NewDocument(seg, doc.Source()))
		}
	}

	logger.Infow("documents segmented",
		"provider", segmenter.Name(),
		"documents", len(docs),
		"segments", len(segmented),
	)
	return segmented, nil
}
