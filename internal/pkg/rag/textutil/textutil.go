// Package textutil 提供 RAG 相关的文本处理工具函数。
package textutil

import (
	"crypto/sha256"
	"encoding/hex"
	"math"
	"regexp"
	"strings"
	"unicode/utf8"
)

// DefaultSeparators 递归切分使用的默认分隔符，按优先级排列。
var DefaultSeparators = []string{"\n\n", "\n", " ", ""}

// CosineSimilarity 计算两个向量的余弦相似度。
// 返回值范围为 [-1, 1]，维度不一致或零向量返回 0。
func CosineSimilarity(a, b []float32) float64 {
	if len(a) != len(b) || len(a) == 0 {
		return 0
	}

	var dotProduct, normA, normB float64
	for i := range a {
		dotProduct += float64(a[i]) * float64(b[i])
		normA += float64(a[i]) * float64(a[i])
		normB += float64(b[i]) * float64(b[i])
	}

	if normA == 0 || normB == 0 {
		return 0
	}

	return dotProduct / (math.Sqrt(normA) * math.Sqrt(normB))
}

// HashString 计算字符串的 SHA-256 哈希值（十六进制）。
func HashString(s string) string {
	hash := sha256.Sum256([]byte(s))
	return hex.EncodeToString(hash[:])
}

// TruncateString 截断字符串到指定的最大 Unicode 字符数。
func TruncateString(s string, maxLen int) string {
	if utf8.RuneCountInString(s) <= maxLen {
		return s
	}
	runes := []rune(s)
	return string(runes[:maxLen])
}

// TruncateBytes 截断字符串到不超过 maxBytes 字节，且不截断多字节字符。
// Milvus VARCHAR 的 max_length 按字节计算。
func TruncateBytes(s string, maxBytes int) string {
	if len(s) <= maxBytes {
		return s
	}
	cut := maxBytes
	for cut > 0 && !utf8.RuneStart(s[cut]) {
		cut--
	}
	return s[:cut]
}

var whitespaceRun = regexp.MustCompile(`[ \t\f\v\r]+`)
var blankLines = regexp.MustCompile(`\n{3,}`)

// NormalizeWhitespace 折叠连续空白并把三个以上换行压缩为段落分隔。
func NormalizeWhitespace(s string) string {
	lines := strings.Split(s, "\n")
	for i, line := range lines {
		lines[i] = strings.TrimSpace(whitespaceRun.ReplaceAllString(line, " "))
	}
	return strings.TrimSpace(blankLines.ReplaceAllString(strings.Join(lines, "\n"), "\n\n"))
}

// Splitter 递归字符切分器：优先按段落切分，超长的片段再按更细的分隔符切分，
// 然后把小片段合并成不超过 ChunkSize 的块，相邻块保留最多 ChunkOverlap 的重叠。
// 长度按 Unicode 字符数计算；分隔符保留在后一片段的开头。
type Splitter struct {
	ChunkSize    int
	ChunkOverlap int
	Separators   []string
}

// NewSplitter 创建使用默认分隔符的切分器。
func NewSplitter(chunkSize, chunkOverlap int) *Splitter {
	if chunkOverlap >= chunkSize {
		chunkOverlap = 0
	}
	return &Splitter{
		ChunkSize:    chunkSize,
		ChunkOverlap: max(chunkOverlap, 0),
		Separators:   DefaultSeparators,
	}
}

// SplitRecursive 使用默认分隔符递归切分文本。
func SplitRecursive(text string, chunkSize, chunkOverlap int) []string {
	return NewSplitter(chunkSize, chunkOverlap).Split(text)
}

// Split 切分文本，结果中不含空块。
func (s *Splitter) Split(text string) []string {
	if s.ChunkSize <= 0 {
		return nil
	}
	seps := s.Separators
	if len(seps) == 0 {
		seps = DefaultSeparators
	}
	return s.split(text, seps)
}

func (s *Splitter) split(text string, separators []string) []string {
	separator := separators[len(separators)-1]
	var rest []string
	for i, sep := range separators {
		if sep == "" {
			separator = sep
			break
		}
		if strings.Contains(text, sep) {
			separator = sep
			rest = separators[i+1:]
			break
		}
	}

	var final, good []string
	for _, piece := range splitKeepSeparator(text, separator) {
		if runeLen(piece) < s.ChunkSize {
			good = append(good, piece)
			continue
		}
		if len(good) > 0 {
			final = append(final, s.merge(good)...)
			good = nil
		}
		if len(rest) == 0 {
			final = append(final, piece)
		} else {
			final = append(final, s.split(piece, rest)...)
		}
	}
	if len(good) > 0 {
		final = append(final, s.merge(good)...)
	}
	return final
}

// merge 合并片段；片段已自带分隔符，因此直接拼接。
func (s *Splitter) merge(pieces []string) []string {
	var docs, current []string
	total := 0

	flush := func() {
		if doc := strings.TrimSpace(strings.Join(current, "")); doc != "" {
			docs = append(docs, doc)
		}
	}

	for _, p := range pieces {
		n := runeLen(p)
		if total+n > s.ChunkSize && len(current) > 0 {
			flush()
			for total > s.ChunkOverlap || (total+n > s.ChunkSize && total > 0) {
				total -= runeLen(current[0])
				current = current[1:]
			}
		}
		current = append(current, p)
		total += n
	}
	flush()
	return docs
}

// splitKeepSeparator 按 sep 切分并把分隔符保留在后一片段开头；sep 为空时按字符切分。
func splitKeepSeparator(text, sep string) []string {
	if sep == "" {
		out := make([]string, 0, utf8.RuneCountInString(text))
		for _, r := range text {
			out = append(out, string(r))
		}
		return out
	}

	parts := strings.Split(text, sep)
	out := make([]string, 0, len(parts))
	for i, p := range parts {
		if i > 0 {
			p = sep + p
		}
		if p != "" {
			out = append(out, p)
		}
	}
	return out
}

func runeLen(s string) int {
	return utf8.RuneCountInString(s)
}
