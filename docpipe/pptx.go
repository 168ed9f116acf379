// CLAUDE:SUMMARY Decomposes .pptx files slide by slide; each slide is one page-equivalent unit.
package docpipe

import (
	"encoding/xml"
	"fmt"
	"io"
	"regexp"
	"sort"
	"strconv"
	"strings"
)

var slidePartRe = regexp.MustCompile(`^ppt/slides/slide(\d+)\.xml$`)

// decomposePptx parses a .pptx file by reading every ppt/slides/slideN.xml
// part in slide-number order. Each slide becomes one page-equivalent
// container; PageCount is the slide count.
func decomposePptx(name string, data []byte) (*Document, error) {
	names, err := zipPartNames(data, "ppt/slides/slide", ".xml")
	if err != nil {
		return nil, err
	}

	type slidePart struct {
		name string
		nr   int
	}
	var slides []slidePart
	for _, n := range names {
		m := slidePartRe.FindStringSubmatch(n)
		if m == nil {
			continue
		}
		nr, _ := strconv.Atoi(m[1])
		slides = append(slides, slidePart{name: n, nr: nr})
	}
	if len(slides) == 0 {
		return nil, fmt.Errorf("no slides found in archive")
	}
	sort.Slice(slides, func(i, j int) bool { return slides[i].nr < slides[j].nr })

	root := &Node{Kind: NodeContainer, Tag: "section"}
	for _, s := range slides {
		rc, err := openZipPart(data, s.name)
		if err != nil {
			return nil, err
		}
		paragraphs, err := pptxSlideParagraphs(rc)
		rc.Close()
		if err != nil {
			return nil, fmt.Errorf("slide %d: %w", s.nr, err)
		}

		slide := root.AddChild(&Node{Kind: NodeContainer, Tag: "section", Page: s.nr})
		for _, text := range paragraphs {
			para := slide.AddChild(&Node{Kind: NodeContainer, Tag: "p"})
			para.AddChild(&Node{Kind: NodeText, Text: text})
		}
	}

	return &Document{
		Name:      name,
		Format:    FormatPptx,
		Root:      root,
		PageCount: len(slides),
	}, nil
}

// pptxSlideParagraphs streams one slide part and returns its non-empty
// paragraph texts. DrawingML fragments a paragraph (a:p) into runs (a:r/a:t);
// run texts are concatenated per paragraph.
func pptxSlideParagraphs(rc io.Reader) ([]string, error) {
	decoder := xml.NewDecoder(rc)
	var paragraphs []string
	var currentText strings.Builder
	var inParagraph, inText bool
	depth := 0

	for {
		tok, err := decoder.Token()
		if err == io.EOF {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("parse slide xml: %w", err)
		}

		switch t := tok.(type) {
		case xml.StartElement:
			depth++
			if depth > maxXMLDepth {
				return nil, fmt.Errorf("xml nesting depth exceeds %d", maxXMLDepth)
			}
			switch t.Name.Local {
			case "p":
				inParagraph = true
				currentText.Reset()
			case "t":
				inText = inParagraph
			}

		case xml.CharData:
			if inText {
				currentText.Write(t)
			}

		case xml.EndElement:
			depth--
			switch t.Name.Local {
			case "t":
				inText = false
			case "p":
				if inParagraph {
					inParagraph = false
					if text := currentText.String(); strings.TrimSpace(text) != "" {
						paragraphs = append(paragraphs, text)
					}
				}
			}
		}
	}
	return paragraphs, nil
}
