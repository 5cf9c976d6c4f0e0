package pipeline

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"sort"

	"github.com/kart-io/logger"
	"golang.org/x/net/html/charset"

	"github.com/kart-io/sentinel-advisor/internal/advisor/loader"
	"github.com/kart-io/sentinel-advisor/internal/pkg/rag/docutil"
)

// SourceMapFile 记录本地文件与原始地址对应关系的文件名。
const SourceMapFile = "source_map.json"

// DefaultOutputDir 默认文档缓存目录。
const DefaultOutputDir = "data/docs"

// DefaultURLs 默认抓取的论坛页面。
var DefaultURLs = []string{
	"https://www.ncloud-forums.com/topic/422/",
	"https://www.ncloud-forums.com/topic/428/",
	"https://www.ncloud-forums.com/topic/307/",
}

// FetchSources 下载网页并把 PDF 移入 outputDir，写出 source_map.json。
// 返回的文件列表先网页后 PDF，与输入顺序一致。
func FetchSources(ctx context.Context, fetcher loader.Fetcher, urls, pdfPaths []string, outputDir string) ([]string, map[string]string, error) {
	if outputDir == "" {
		outputDir = DefaultOutputDir
	}
	if err := docutil.EnsureDir(outputDir); err != nil {
		return nil, nil, fmt.Errorf("failed to create %s: %w", outputDir, err)
	}

	var files []string
	sourceMap := make(map[string]string, len(urls)+len(pdfPaths))
	record := func(path, origin string) {
		if _, ok := sourceMap[path]; !ok {
			files = append(files, path)
		}
		sourceMap[path] = origin
	}

	for _, u := range urls {
		name, err := docutil.FileNameFromURL(u)
		if err != nil {
			return nil, nil, err
		}
		path := filepath.Join(outputDir, name)
		if err := fetchPage(ctx, fetcher, u, path); err != nil {
			return nil, nil, err
		}
		logger.Infow("page fetched", "url", u, "path", path)
		record(path, u)
	}

	for _, pdf := range pdfPaths {
		dest := filepath.Join(outputDir, filepath.Base(pdf))
		moved, err := docutil.MoveFile(pdf, dest)
		if err != nil {
			return nil, nil, fmt.Errorf("failed to move %s: %w", pdf, err)
		}
		logger.Infow("pdf staged", "path", dest, "moved", moved)
		record(dest, pdf)
	}

	if err := docutil.WriteJSON(filepath.Join(outputDir, SourceMapFile), sourceMap); err != nil {
		return nil, nil, fmt.Errorf("failed to write source map: %w", err)
	}
	return files, sourceMap, nil
}

// LoadCachedSources 读取 outputDir 中上次抓取留下的 source_map.json，
// 返回其中记录且仍存在的 .pdf 与 .html 文件（按路径排序）。
func LoadCachedSources(outputDir string) ([]string, map[string]string, error) {
	if outputDir == "" {
		outputDir = DefaultOutputDir
	}

	var sourceMap map[string]string
	if err := docutil.ReadJSON(filepath.Join(outputDir, SourceMapFile), &sourceMap); err != nil {
		return nil, nil, fmt.Errorf("failed to read source map: %w", err)
	}

	found, err := docutil.FindFiles(outputDir, []string{".pdf", ".html"})
	if err != nil {
		return nil, nil, fmt.Errorf("failed to scan %s: %w", outputDir, err)
	}

	var files []string
	for _, path := range found {
		if _, ok := sourceMap[path]; ok {
			files = append(files, path)
			continue
		}
		logger.Warnw("cached file has no recorded source, skipped", "path", path)
	}
	if len(files) == 0 {
		return nil, nil, fmt.Errorf("no cached sources in %s", outputDir)
	}
	sort.Strings(files)
	return files, sourceMap, nil
}

// fetchPage 下载页面并按 UTF-8 写入 path。
func fetchPage(ctx context.Context, fetcher loader.Fetcher, url, path string) error {
	body, contentType, err := fetcher.Get(ctx, url)
	if err != nil {
		return fmt.Errorf("failed to fetch %s: %w", url, err)
	}

	r, err := charset.NewReader(bytes.NewReader(body), contentType)
	if err != nil {
		return fmt.Errorf("failed to decode %s: %w", url, err)
	}
	text, err := io.ReadAll(r)
	if err != nil {
		return fmt.Errorf("failed to decode %s: %w", url, err)
	}
	return os.WriteFile(path, text, 0o644)
}
