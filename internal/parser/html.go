package parser

import (
	"bytes"
	"fmt"
	"strings"

	"github.com/dgallion1/docreader/internal/doctree"
	"golang.org/x/net/html"
	"golang.org/x/net/html/charset"
)

// HTMLParser handles standalone HTML files. h1 and h2 open chapters; block
// content becomes body text.
type HTMLParser struct{}

func (p *HTMLParser) Parse(raw *doctree.RawDocument) (*doctree.Document, error) {
	r, err := charset.NewReader(bytes.NewReader(raw.Data), "text/html")
	if err != nil {
		return nil, fmt.Errorf("%w: decode html: %w", ErrCorruptDocument, err)
	}
	root, err := html.Parse(r)
	if err != nil {
		return nil, fmt.Errorf("%w: parse html: %w", ErrCorruptDocument, err)
	}

	doc := &doctree.Document{Title: titleFromPath(raw.Path)}
	if title := collapseSpace(textContent(findElement(root, "title"))); title != "" {
		doc.Title = title
	}

	var walk func(*html.Node)
	walk = func(n *html.Node) {
		if n.Type == html.ElementNode {
			switch level := headingLevel(n.Data); {
			case level == 1 || level == 2:
				if t := collapseSpace(textContent(n)); t != "" {
					doc.Blocks = append(doc.Blocks, doctree.Heading(t))
				}
				return
			case level > 2:
				doc.Blocks = append(doc.Blocks, textBlocks(collapseSpace(textContent(n)))...)
				return
			}

			switch n.Data {
			case "script", "style", "nav", "footer", "header", "head":
				return
			case "pre":
				doc.Blocks = append(doc.Blocks, textBlocks(strings.Trim(textContent(n), "\n"))...)
				return
			case "p", "li", "td", "blockquote":
				if hasBlockChild(n) {
					break
				}
				doc.Blocks = append(doc.Blocks, textBlocks(collapseSpace(textContent(n)))...)
				return
			}
		}

		for c := n.FirstChild; c != nil; c = c.NextSibling {
			walk(c)
		}
	}

	if body := findElement(root, "body"); body != nil {
		walk(body)
	} else {
		walk(root)
	}

	return doc, nil
}

func headingLevel(tag string) int {
	switch tag {
	case "h1":
		return 1
	case "h2":
		return 2
	case "h3":
		return 3
	case "h4":
		return 4
	case "h5":
		return 5
	case "h6":
		return 6
	}
	return 0
}

// hasBlockChild reports whether a container holds nested paragraph-level
// elements, which are then visited on their own.
func hasBlockChild(n *html.Node) bool {
	for c := n.FirstChild; c != nil; c = c.NextSibling {
		if c.Type != html.ElementNode {
			continue
		}
		switch c.Data {
		case "p", "li", "blockquote", "pre", "ul", "ol", "table":
			return true
		}
		if headingLevel(c.Data) > 0 || hasBlockChild(c) {
			return true
		}
	}
	return false
}

func textContent(n *html.Node) string {
	if n == nil {
		return ""
	}
	var buf strings.Builder
	var extract func(*html.Node)
	extract = func(n *html.Node) {
		if n.Type == html.TextNode {
			buf.WriteString(n.Data)
		}
		if n.Type == html.ElementNode && n.Data == "br" {
			buf.WriteByte('\n')
		}
		for c := n.FirstChild; c != nil; c = c.NextSibling {
			extract(c)
		}
	}
	extract(n)
	return buf.String()
}

func findElement(n *html.Node, tag string) *html.Node {
	if n.Type == html.ElementNode && n.Data == tag {
		return n
	}
	for c := n.FirstChild; c != nil; c = c.NextSibling {
		if found := findElement(c, tag); found != nil {
			return found
		}
	}
	return nil
}
