// CLAUDE:SUMMARY Segmentation walk: claims text leaves in document order, assigns IDs, indices and page attribution.
package docpipe

import (
	"html"
	"strconv"
	"strings"
)

// Segment walks the structural tree in document order and claims every text
// leaf with non-whitespace content: the leaf gets a unique segment ID (its
// placeholder anchor) and a Segment is appended with the nearest ancestor's
// page attribution. Index is a single running counter over the whole
// document — the canonical order for display and batching.
//
// Calling Segment twice on the same decomposition of the same file yields
// the same count, ordering and page attribution (IDs differ).
func (p *Pipeline) Segment(doc *Document) []*Segment {
	if doc == nil || doc.Root == nil {
		return nil
	}
	w := &segmentWalker{newID: p.cfg.SegmentIDs}
	w.walk(doc.Root, 0)
	return w.segments
}

type segmentWalker struct {
	newID    func() string
	index    int
	segments []*Segment
}

func (w *segmentWalker) walk(n *Node, page int) {
	if n.Page > 0 {
		page = n.Page
	}
	if n.Kind == NodeText {
		if strings.TrimSpace(n.Text) == "" {
			return
		}
		n.SegID = w.newID()
		w.segments = append(w.segments, &Segment{
			ID:         n.SegID,
			Index:      w.index,
			Original:   n.Text,
			Status:     SegmentPending,
			PageNumber: page,
		})
		w.index++
		return
	}
	for _, c := range n.Children {
		w.walk(c, page)
	}
}

// RenderHTML serializes the annotated tree to markup for the presentation
// boundary. Claimed text leaves become span anchors carrying their segment
// ID; all text is escaped for safe embedding.
func RenderHTML(doc *Document) string {
	var sb strings.Builder
	if doc == nil || doc.Root == nil {
		return ""
	}
	if doc.Err != "" {
		sb.WriteString(`<div class="parse-error">`)
		sb.WriteString(html.EscapeString(doc.Err))
		sb.WriteString("</div>")
	}
	renderNode(&sb, doc.Root)
	return sb.String()
}

func renderNode(sb *strings.Builder, n *Node) {
	switch n.Kind {
	case NodeText:
		if n.SegID != "" {
			sb.WriteString(`<span data-seg="`)
			sb.WriteString(html.EscapeString(n.SegID))
			sb.WriteString(`">`)
			sb.WriteString(html.EscapeString(n.Text))
			sb.WriteString("</span>")
			return
		}
		sb.WriteString(html.EscapeString(n.Text))
	case NodePageBreak:
		sb.WriteString(`<hr class="page-break">`)
	case NodeContainer:
		tag := n.Tag
		if tag == "" {
			tag = "div"
		}
		sb.WriteString("<" + tag)
		if n.Page > 0 {
			sb.WriteString(` data-page="` + strconv.Itoa(n.Page) + `"`)
		}
		sb.WriteString(">")
		for _, c := range n.Children {
			renderNode(sb, c)
		}
		sb.WriteString("</" + tag + ">")
	}
}
