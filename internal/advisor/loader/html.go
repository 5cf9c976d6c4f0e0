package loader

import (
	"context"
	"fmt"
	"io"
	"os"
	"strings"

	"golang.org/x/net/html"
	"golang.org/x/net/html/atom"
	"golang.org/x/net/html/charset"

	"github.com/kart-io/sentinel-advisor/internal/model"
	"github.com/kart-io/sentinel-advisor/internal/pkg/rag/textutil"
)

// skipped elements never contribute visible text.
var skipped = map[atom.Atom]bool{
	atom.Script:   true,
	atom.Style:    true,
	atom.Noscript: true,
	atom.Template: true,
	atom.Head:     true,
	atom.Svg:      true,
	atom.Iframe:   true,
}

var blocks = map[atom.Atom]bool{
	atom.P: true, atom.Div: true, atom.Br: true, atom.Li: true,
	atom.H1: true, atom.H2: true, atom.H3: true, atom.H4: true, atom.H5: true, atom.H6: true,
	atom.Tr: true, atom.Table: true, atom.Section: true, atom.Article: true,
	atom.Header: true, atom.Footer: true, atom.Pre: true, atom.Blockquote: true,
	atom.Ul: true, atom.Ol: true, atom.Hr: true,
}

// ExtractText returns the visible text of an HTML document. contentType is
// used to pick a charset; pass "" to sniff it from the document.
func ExtractText(r io.Reader, contentType string) (string, error) {
	utf8Reader, err := charset.NewReader(r, contentType)
	if err != nil {
		return "", fmt.Errorf("failed to detect charset: %w", err)
	}
	root, err := html.Parse(utf8Reader)
	if err != nil {
		return "", fmt.Errorf("failed to parse html: %w", err)
	}

	var sb strings.Builder
	var walk func(n *html.Node)
	walk = func(n *html.Node) {
		if n.Type == html.ElementNode && skipped[n.DataAtom] {
			return
		}
		if n.Type == html.TextNode {
			if t := strings.TrimSpace(n.Data); t != "" {
				sb.WriteString(t)
				sb.WriteByte(' ')
			}
			return
		}
		isBlock := n.Type == html.ElementNode && blocks[n.DataAtom]
		if isBlock {
			sb.WriteByte('\n')
		}
		for c := n.FirstChild; c != nil; c = c.NextSibling {
			walk(c)
		}
		if isBlock {
			sb.WriteByte('\n')
		}
	}
	walk(root)

	return textutil.NormalizeWhitespace(sb.String()), nil
}

// HTMLFileLoader loads a saved HTML page as a single document.
type HTMLFileLoader struct{}

// NewHTMLFileLoader creates an HTMLFileLoader.
func NewHTMLFileLoader() *HTMLFileLoader { return &HTMLFileLoader{} }

// Load reads the file at src.Location.
func (l *HTMLFileLoader) Load(ctx context.Context, src Source) ([]model.Document, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	f, err := os.Open(src.Location)
	if err != nil {
		return nil, fmt.Errorf("failed to open %s: %w", src.Location, err)
	}
	defer func() { _ = f.Close() }()

	text, err := ExtractText(f, "text/html; charset=utf-8")
	if err != nil {
		return nil, fmt.Errorf("%s: %w", src.name(), err)
	}
	if text == "" {
		return nil, nil
	}
	return []model.Document{model.NewDocument(text, src.name())}, nil
}
