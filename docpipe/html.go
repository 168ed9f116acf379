// CLAUDE:SUMMARY Decomposes HTML files into heading/paragraph/table/list nodes, filtering hidden elements.
package docpipe

import (
	"bytes"
	"regexp"
	"strings"

	"golang.org/x/net/html"
	"golang.org/x/net/html/atom"
)

var hiddenStylePatterns = []*regexp.Regexp{
	regexp.MustCompile(`(?i)display\s*:\s*none`),
	regexp.MustCompile(`(?i)visibility\s*:\s*hidden`),
	regexp.MustCompile(`(?i)font-size\s*:\s*0[^1-9]`),
	regexp.MustCompile(`(?i)opacity\s*:\s*0[^.]`),
	regexp.MustCompile(`(?i)position\s*:\s*absolute[^;]*-\d{4,}`),
}

func hasHiddenStyle(n *html.Node) bool {
	if n.Type != html.ElementNode {
		return false
	}
	for _, a := range n.Attr {
		if a.Key == "style" {
			for _, pat := range hiddenStylePatterns {
				if pat.MatchString(a.Val) {
					return true
				}
			}
		}
	}
	return false
}

// decomposeHTML parses an HTML file into the structural tree. Hidden
// elements (display:none, visibility:hidden, zero font/opacity) are
// excluded: invisible text must never reach the translation batches.
func decomposeHTML(name string, data []byte) (*Document, error) {
	doc, err := html.Parse(bytes.NewReader(data))
	if err != nil {
		return nil, err
	}

	root := &Node{Kind: NodeContainer, Tag: "section"}
	walkHTMLBlocks(doc, root)

	if len(root.Children) == 0 {
		// Fallback: all visible text as one block.
		if text := collectHTMLText(doc); text != "" {
			p := root.AddChild(&Node{Kind: NodeContainer, Tag: "p"})
			p.AddChild(&Node{Kind: NodeText, Text: text})
		}
	}

	return &Document{Name: name, Format: FormatHTML, Root: root}, nil
}

// walkHTMLBlocks maps block-level HTML elements onto tree containers.
func walkHTMLBlocks(n *html.Node, parent *Node) {
	if n.Type == html.ElementNode {
		switch n.DataAtom {
		case atom.Script, atom.Style, atom.Noscript, atom.Nav, atom.Footer, atom.Header:
			return
		}
		if hasHiddenStyle(n) {
			return
		}

		switch n.DataAtom {
		case atom.H1, atom.H2, atom.H3, atom.H4, atom.H5, atom.H6:
			if text := collectHTMLText(n); text != "" {
				h := parent.AddChild(&Node{Kind: NodeContainer, Tag: n.Data})
				h.AddChild(&Node{Kind: NodeText, Text: text})
			}
			return
		case atom.P, atom.Li, atom.Td, atom.Th, atom.Blockquote:
			if text := collectHTMLText(n); text != "" {
				p := parent.AddChild(&Node{Kind: NodeContainer, Tag: "p"})
				p.AddChild(&Node{Kind: NodeText, Text: text})
			}
			return
		}
	}

	for c := n.FirstChild; c != nil; c = c.NextSibling {
		walkHTMLBlocks(c, parent)
	}
}

// collectHTMLText extracts all visible text from a node subtree.
func collectHTMLText(n *html.Node) string {
	var sb bytes.Buffer
	var walk func(*html.Node)
	walk = func(n *html.Node) {
		if n.Type == html.TextNode {
			text := strings.TrimSpace(n.Data)
			if text != "" {
				if sb.Len() > 0 {
					sb.WriteByte(' ')
				}
				sb.WriteString(text)
			}
		}
		if n.Type == html.ElementNode {
			switch n.DataAtom {
			case atom.Script, atom.Style, atom.Noscript:
				return
			}
			if hasHiddenStyle(n) {
				return
			}
		}
		for c := n.FirstChild; c != nil; c = c.NextSibling {
			walk(c)
		}
	}
	walk(n)
	return sb.String()
}
