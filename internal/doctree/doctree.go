package doctree

// Format identifies how a RawDocument's bytes are laid out.
type Format string

const (
	FormatText     Format = "text"
	FormatEPUB     Format = "epub"
	FormatMarkdown Format = "markdown"
	FormatHTML     Format = "html"
	FormatDOCX     Format = "docx"
	FormatPDF      Format = "pdf"
)

// IsText reports whether the format is raw text whose encoding must be guessed.
func (f Format) IsText() bool {
	return f == FormatText || f == FormatMarkdown
}

// RawDocument is a document as read from disk. It is never mutated after loading.
type RawDocument struct {
	Path   string
	Format Format
	Data   []byte
}

// BlockKind tags a Block as either a chapter heading or body text.
type BlockKind int

const (
	BlockBody BlockKind = iota
	BlockHeading
)

func (k BlockKind) String() string {
	if k == BlockHeading {
		return "heading"
	}
	return "body"
}

// Block is one labeled unit of extracted text, in document order.
type Block struct {
	Kind BlockKind
	Text string
}

// Heading returns a chapter-heading block.
func Heading(text string) Block { return Block{Kind: BlockHeading, Text: text} }

// Body returns a body-text block.
func Body(text string) Block { return Block{Kind: BlockBody, Text: text} }

// Document is the format-agnostic result of loading a RawDocument.
type Document struct {
	Title  string  // From container metadata or the file name
	Path   string  // Source path on disk
	Format Format  // Format the blocks were extracted from
	Blocks []Block // Headings and body text in document order
}

// Line is a single display unit produced by pagination.
type Line struct {
	Text          string
	ChapterMarker bool
}

// Chapter maps a heading to the display line it starts on.
type Chapter struct {
	Index     int    `json:"index"`
	Title     string `json:"title"`
	StartLine int    `json:"start_line"`
}
