package model

// Metadata keys.
const (
	MetaSource = "source"
	MetaPage   = "page"
)

// Document is a unit of loaded text with its metadata. Metadata always
// carries MetaSource: the original file name, URL or path.
type Document struct {
	Content  string            `json:"content"`
	Metadata map[string]string `json:"metadata,omitempty"`
}

// NewDocument creates a document attributed to source.
func NewDocument(content, source string) Document {
	return Document{
		Content:  content,
		Metadata: map[string]string{MetaSource: source},
	}
}

// Source returns the document source.
func (d Document) Source() string {
	return d.Metadata[MetaSource]
}

// Chunk is a piece of a Document that is embedded and indexed.
type Chunk struct {
	ID        string    `json:"id"`
	Source    string    `json:"source"`
	Content   string    `json:"content"`
	Embedding []float32 `json:"-"`
}

// SourceRef describes a retrieved chunk returned alongside an answer.
type SourceRef struct {
	Source  string  `json:"source"`
	Content string  `json:"content"`
	Score   float32 `json:"score"`
}
