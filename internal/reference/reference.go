// Package reference serves the embedded medical reference content, both as
// HTML for the web page and as a block structure the PDF report lays out.
package reference

import (
	"embed"
	"strings"

	"github.com/gomarkdown/markdown"
	"github.com/gomarkdown/markdown/ast"
	"github.com/gomarkdown/markdown/html"
	"github.com/gomarkdown/markdown/parser"
)

//go:embed content/*.md
var content embed.FS

// Documents shipped with the application.
const (
	Medical = "medical"
	Sources = "sources"
)

// Span is a run of inline text.
type Span struct {
	Text string
	Bold bool
	Href string
}

// BlockKind distinguishes paragraphs from list items.
type BlockKind int

const (
	Paragraph BlockKind = iota
	Bullet
)

// Block is one paragraph or bullet.
type Block struct {
	Kind  BlockKind
	Spans []Span
}

// Text returns the block's plain text.
func (b Block) Text() string {
	var sb strings.Builder
	for _, s := range b.Spans {
		sb.WriteString(s.Text)
	}
	return sb.String()
}

// Section is a heading followed by its blocks.
type Section struct {
	Level  int
	Title  string
	Blocks []Block
}

// Source returns the raw markdown of a document.
func Source(name string) ([]byte, error) {
	return content.ReadFile("content/" + name + ".md")
}

func newParser() *parser.Parser {
	return parser.NewWithExtensions(parser.CommonExtensions | parser.AutoHeadingIDs)
}

// HTML renders a document for the web page. Links open in a new tab.
func HTML(name string) ([]byte, error) {
	md, err := Source(name)
	if err != nil {
		return nil, err
	}
	renderer := html.NewRenderer(html.RendererOptions{Flags: html.CommonFlags | html.HrefTargetBlank})
	return markdown.ToHTML(md, newParser(), renderer), nil
}

// Sections parses a document into headings and blocks.
func Sections(name string) ([]Section, error) {
	md, err := Source(name)
	if err != nil {
		return nil, err
	}
	return Parse(md), nil
}

// Parse walks the top level of a markdown document. Content before the first
// heading lands in a section with an empty title.
func Parse(md []byte) []Section {
	doc := markdown.Parse(md, newParser())

	var sections []Section
	current := func() *Section {
		if len(sections) == 0 {
			sections = append(sections, Section{})
		}
		return &sections[len(sections)-1]
	}

	for _, child := range doc.GetChildren() {
		switch n := child.(type) {
		case *ast.Heading:
			sections = append(sections, Section{Level: n.Level, Title: plain(collectSpans(n))})
		case *ast.Paragraph:
			s := current()
			s.Blocks = append(s.Blocks, Block{Kind: Paragraph, Spans: collectSpans(n)})
		case *ast.List:
			s := current()
			for _, item := range n.GetChildren() {
				s.Blocks = append(s.Blocks, Block{Kind: Bullet, Spans: collectSpans(item)})
			}
		}
	}
	return sections
}

func collectSpans(node ast.Node) []Span {
	var spans []Span
	var walk func(n ast.Node, bold bool, href string)
	walk = func(n ast.Node, bold bool, href string) {
		switch t := n.(type) {
		case *ast.Text:
			if len(t.Literal) > 0 {
				spans = append(spans, Span{Text: string(t.Literal), Bold: bold, Href: href})
			}
			return
		case *ast.Code:
			spans = append(spans, Span{Text: string(t.Literal), Bold: bold, Href: href})
			return
		case *ast.Softbreak, *ast.Hardbreak:
			spans = append(spans, Span{Text: "\n", Bold: bold, Href: href})
			return
		case *ast.Strong:
			bold = true
		case *ast.Link:
			href = string(t.Destination)
		}
		for _, c := range n.GetChildren() {
			walk(c, bold, href)
		}
	}
	walk(node, false, "")
	return mergeSpans(spans)
}

// mergeSpans joins adjacent spans with the same style.
func mergeSpans(spans []Span) []Span {
	var out []Span
	for _, s := range spans {
		if k := len(out) - 1; k >= 0 && out[k].Bold == s.Bold && out[k].Href == s.Href {
			out[k].Text += s.Text
			continue
		}
		out = append(out, s)
	}
	return out
}

func plain(spans []Span) string {
	return Block{Spans: spans}.Text()
}
