// CLAUDE:SUMMARY Decomposes .docx files into a paragraph tree by streaming word/document.xml from the ZIP archive.
package docpipe

import (
	"archive/zip"
	"bytes"
	"encoding/xml"
	"fmt"
	"io"
	"strings"
)

// maxXMLDepth bounds element nesting in office XML streams (XML bomb defense).
const maxXMLDepth = 256

// decomposeDocx parses a .docx file by reading word/document.xml from the
// ZIP archive. Word has no page concept at the XML level, so PageCount is 0.
func decomposeDocx(name string, data []byte) (*Document, error) {
	rc, err := openZipPart(data, "word/document.xml")
	if err != nil {
		return nil, err
	}
	defer rc.Close()

	root := &Node{Kind: NodeContainer, Tag: "section"}

	decoder := xml.NewDecoder(rc)
	var currentText strings.Builder
	var inParagraph, inText bool
	var paragraphStyle string
	depth := 0

	for {
		tok, err := decoder.Token()
		if err == io.EOF {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("parse document.xml: %w", err)
		}

		switch t := tok.(type) {
		case xml.StartElement:
			depth++
			if depth > maxXMLDepth {
				return nil, fmt.Errorf("xml nesting depth exceeds %d", maxXMLDepth)
			}
			switch {
			case t.Name.Local == "p":
				inParagraph = true
				currentText.Reset()
				paragraphStyle = ""
			case t.Name.Local == "pStyle" && inParagraph:
				for _, attr := range t.Attr {
					if attr.Name.Local == "val" {
						paragraphStyle = attr.Value
					}
				}
			case t.Name.Local == "t" && inParagraph:
				inText = true
			case t.Name.Local == "tab" && inParagraph:
				currentText.WriteByte('\t')
			}

		case xml.CharData:
			if inText {
				currentText.Write(t)
			}

		case xml.EndElement:
			depth--
			switch {
			case t.Name.Local == "t":
				inText = false
			case t.Name.Local == "p" && inParagraph:
				inParagraph = false
				text := currentText.String()
				if strings.TrimSpace(text) == "" {
					continue
				}
				tag := "p"
				if lvl := docxHeadingLevel(paragraphStyle); lvl > 0 {
					tag = fmt.Sprintf("h%d", lvl)
				}
				para := root.AddChild(&Node{Kind: NodeContainer, Tag: tag})
				para.AddChild(&Node{Kind: NodeText, Text: text})
			}
		}
	}

	return &Document{Name: name, Format: FormatDocx, Root: root}, nil
}

// docxHeadingLevel extracts the heading level from a paragraph style name.
// e.g. "Heading1" → 1, "Titre2" → 2, "Title" → 1.
func docxHeadingLevel(style string) int {
	lower := strings.ToLower(style)

	if lower == "title" {
		return 1
	}
	if lower == "subtitle" {
		return 2
	}

	for _, prefix := range []string{"heading", "titre", "überschrift"} {
		if strings.HasPrefix(lower, prefix) {
			rest := lower[len(prefix):]
			if len(rest) == 1 && rest[0] >= '1' && rest[0] <= '6' {
				return int(rest[0] - '0')
			}
		}
	}
	return 0
}

// openZipPart opens one named stream from an in-memory ZIP archive.
func openZipPart(data []byte, part string) (io.ReadCloser, error) {
	r, err := zip.NewReader(bytes.NewReader(data), int64(len(data)))
	if err != nil {
		return nil, fmt.Errorf("open zip: %w", err)
	}
	for _, f := range r.File {
		if f.Name == part {
			rc, err := f.Open()
			if err != nil {
				return nil, fmt.Errorf("open %s: %w", part, err)
			}
			return rc, nil
		}
	}
	return nil, fmt.Errorf("%s not found in archive", part)
}

// zipPartNames lists archive entries matching the given prefix and suffix.
func zipPartNames(data []byte, prefix, suffix string) ([]string, error) {
	r, err := zip.NewReader(bytes.NewReader(data), int64(len(data)))
	if err != nil {
		return nil, fmt.Errorf("open zip: %w", err)
	}
	var names []string
	for _, f := range r.File {
		if strings.HasPrefix(f.Name, prefix) && strings.HasSuffix(f.Name, suffix) {
			names = append(names, f.Name)
		}
	}
	return names, nil
}
