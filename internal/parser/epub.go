package parser

import (
	"archive/zip"
	"bytes"
	"encoding/xml"
	"fmt"
	"io"
	"net/url"
	"path"
	"strings"

	"github.com/PuerkitoBio/goquery"
	"github.com/dgallion1/docreader/internal/doctree"
	"golang.org/x/net/html/charset"
)

const epubMimetype = "application/epub+zip"

// EPUBParser handles zipped e-book containers. Spine order is chapter order:
// each XHTML spine resource contributes its title as a heading followed by
// its paragraphs as body blocks.
type EPUBParser struct{}

// container.xml structure
type epubContainer struct {
	Rootfiles struct {
		Rootfile []struct {
			FullPath  string `xml:"full-path,attr"`
			MediaType string `xml:"media-type,attr"`
		} `xml:"rootfile"`
	} `xml:"rootfiles"`
}

type opfPackage struct {
	XMLName  xml.Name `xml:"package"`
	Metadata struct {
		Title []string `xml:"http://purl.org/dc/elements/1.1/ title"`
	} `xml:"metadata"`
	Manifest struct {
		Items []struct {
			ID        string `xml:"id,attr"`
			Href      string `xml:"href,attr"`
			MediaType string `xml:"media-type,attr"`
		} `xml:"item"`
	} `xml:"manifest"`
	Spine struct {
		ItemRefs []struct {
			IDRef string `xml:"idref,attr"`
		} `xml:"itemref"`
	} `xml:"spine"`
}

type manifestItem struct {
	href      string
	mediaType string
}

type epubArchive struct {
	files map[string]*zip.File
}

func (p *EPUBParser) Parse(raw *doctree.RawDocument) (*doctree.Document, error) {
	zr, err := zip.NewReader(bytes.NewReader(raw.Data), int64(len(raw.Data)))
	if err != nil {
		return nil, fmt.Errorf("%w: open zip: %w", ErrCorruptDocument, err)
	}
	a := &epubArchive{files: make(map[string]*zip.File, len(zr.File))}
	for _, f := range zr.File {
		a.files[normalizePath(f.Name)] = f
	}

	if err := a.validateMimetype(); err != nil {
		return nil, err
	}
	opfPath, err := a.opfPath()
	if err != nil {
		return nil, err
	}
	opfData, err := a.readFile(opfPath)
	if err != nil {
		return nil, err
	}
	var pkg opfPackage
	if err := decodeXML(opfData, &pkg); err != nil {
		return nil, fmt.Errorf("%w: parse %s: %w", ErrCorruptDocument, opfPath, err)
	}

	opfDir := path.Dir(opfPath)
	manifest := make(map[string]manifestItem, len(pkg.Manifest.Items))
	for _, item := range pkg.Manifest.Items {
		manifest[item.ID] = manifestItem{
			href:      resolveHref(opfDir, item.Href),
			mediaType: item.MediaType,
		}
	}

	doc := &doctree.Document{Title: titleFromPath(raw.Path)}
	if len(pkg.Metadata.Title) > 0 {
		if t := collapseSpace(pkg.Metadata.Title[0]); t != "" {
			doc.Title = t
		}
	}

	for _, ref := range pkg.Spine.ItemRefs {
		item, ok := manifest[ref.IDRef]
		if !ok {
			return nil, fmt.Errorf("%w: spine item %q not in manifest", ErrCorruptDocument, ref.IDRef)
		}
		if !isXHTML(item.mediaType) {
			continue
		}
		data, err := a.readFile(item.href)
		if err != nil {
			return nil, err
		}
		blocks, err := resourceBlocks(item, data)
		if err != nil {
			return nil, err
		}
		doc.Blocks = append(doc.Blocks, blocks...)
	}

	return doc, nil
}

// resourceBlocks extracts one heading and the paragraph text of a spine resource.
func resourceBlocks(item manifestItem, data []byte) ([]doctree.Block, error) {
	r, err := charset.NewReader(bytes.NewReader(data), item.mediaType)
	if err != nil {
		return nil, fmt.Errorf("%w: decode %s: %w", ErrCorruptDocument, item.href, err)
	}
	gq, err := goquery.NewDocumentFromReader(r)
	if err != nil {
		return nil, fmt.Errorf("%w: parse %s: %w", ErrCorruptDocument, item.href, err)
	}

	title := collapseSpace(gq.Find("title").First().Text())
	if title == "" {
		title = collapseSpace(gq.Find("h1, h2, h3").First().Text())
	}
	if title == "" {
		title = strings.TrimSuffix(path.Base(item.href), path.Ext(item.href))
	}

	blocks := []doctree.Block{doctree.Heading(title)}
	gq.Find("body").Find("h1, h2, h3, h4, h5, h6, p, li, blockquote").Each(func(_ int, s *goquery.Selection) {
		switch goquery.NodeName(s) {
		case "li", "blockquote":
			// Nested paragraphs are picked up on their own.
			if s.Find("p, li, blockquote").Length() > 0 {
				return
			}
		case "h1", "h2", "h3", "h4", "h5", "h6":
			if collapseSpace(s.Text()) == title {
				return
			}
		}
		if text := collapseSpace(s.Text()); text != "" {
			blocks = append(blocks, doctree.Body(text))
		}
	})
	return blocks, nil
}

func (a *epubArchive) readFile(name string) ([]byte, error) {
	f, ok := a.files[normalizePath(name)]
	if !ok {
		return nil, fmt.Errorf("%w: file not found: %s", ErrCorruptDocument, name)
	}
	rc, err := f.Open()
	if err != nil {
		return nil, fmt.Errorf("%w: open %s: %w", ErrCorruptDocument, name, err)
	}
	defer rc.Close()

	data, err := io.ReadAll(rc)
	if err != nil {
		return nil, fmt.Errorf("%w: read %s: %w", ErrCorruptDocument, name, err)
	}
	return data, nil
}

func (a *epubArchive) validateMimetype() error {
	content, err := a.readFile("mimetype")
	if err != nil {
		return err
	}
	if strings.TrimSpace(string(content)) != epubMimetype {
		return fmt.Errorf("%w: invalid mimetype %q", ErrCorruptDocument, content)
	}
	return nil
}

func (a *epubArchive) opfPath() (string, error) {
	content, err := a.readFile("META-INF/container.xml")
	if err != nil {
		return "", err
	}
	var c epubContainer
	if err := decodeXML(content, &c); err != nil {
		return "", fmt.Errorf("%w: parse container.xml: %w", ErrCorruptDocument, err)
	}
	for _, rf := range c.Rootfiles.Rootfile {
		if rf.MediaType == "application/oebps-package+xml" || rf.MediaType == "" {
			return normalizePath(rf.FullPath), nil
		}
	}
	if len(c.Rootfiles.Rootfile) > 0 {
		return normalizePath(c.Rootfiles.Rootfile[0].FullPath), nil
	}
	return "", fmt.Errorf("%w: no rootfile in container.xml", ErrCorruptDocument)
}

// decodeXML unmarshals package metadata, honoring a non-UTF-8 declaration.
func decodeXML(data []byte, v any) error {
	dec := xml.NewDecoder(bytes.NewReader(data))
	dec.CharsetReader = charset.NewReaderLabel
	return dec.Decode(v)
}

// resolveHref resolves a manifest href against the OPF directory.
func resolveHref(base, href string) string {
	if i := strings.IndexByte(href, '#'); i >= 0 {
		href = href[:i]
	}
	if unescaped, err := url.PathUnescape(href); err == nil {
		href = unescaped
	}
	return normalizePath(path.Join(base, href))
}

func normalizePath(p string) string {
	return strings.TrimPrefix(p, "./")
}

func isXHTML(mediaType string) bool {
	return strings.Contains(mediaType, "html")
}
