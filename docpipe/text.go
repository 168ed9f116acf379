// CLAUDE:SUMMARY Fallback decomposer for plain text, XML and unrecognized formats: whole content as one block.
package docpipe

import (
	"fmt"
	"strings"
	"unicode/utf8"
)

// decomposeText wraps the whole content as a single pre-formatted block.
// Serialization escapes it for safe structural embedding; there is no page
// concept. Used for .txt, .xml and any unrecognized extension.
func decomposeText(name string, data []byte) (*Document, error) {
	if !utf8.Valid(data) {
		return nil, fmt.Errorf("content is not valid UTF-8 text")
	}
	root := &Node{Kind: NodeContainer, Tag: "section"}
	text := strings.TrimSpace(string(data))
	if text != "" {
		pre := root.AddChild(&Node{Kind: NodeContainer, Tag: "pre"})
		pre.AddChild(&Node{Kind: NodeText, Text: text})
	}
	return &Document{Name: name, Format: FormatText, Root: root}, nil
}
