// CLAUDE:SUMMARY Defines Format, Segment, PageRange, Node and Document types for the decomposition pipeline.
package docpipe

import "fmt"

// Format identifies a document type.
type Format string

const (
	FormatDocx Format = "docx"
	FormatPptx Format = "pptx"
	FormatXlsx Format = "xlsx"
	FormatPDF  Format = "pdf"
	FormatHTML Format = "html"
	FormatText Format = "text"
)

// SegmentStatus is the forward-only lifecycle of a segment:
// pending → translating → completed | warning.
type SegmentStatus string

const (
	SegmentPending     SegmentStatus = "pending"
	SegmentTranslating SegmentStatus = "translating"
	SegmentCompleted   SegmentStatus = "completed"
	SegmentWarning     SegmentStatus = "warning"
)

// Segment is the atomic translatable unit. Original is immutable after
// creation; Translated is written at most progressively by the pipeline.
type Segment struct {
	ID             string        `json:"id"`
	Index          int           `json:"index"`
	Original       string        `json:"original"`
	Translated     string        `json:"translated"`
	Status         SegmentStatus `json:"status"`
	PageNumber     int           `json:"pageNumber,omitempty"` // 0 = no page attribution
	WarningMessage string        `json:"warningMessage,omitempty"`
}

// PageRange is an inclusive 1-based page window.
type PageRange struct {
	Start int `json:"start"`
	End   int `json:"end"`
}

// Validate checks the range against a known page count. Documents without
// page attribution (pageCount 0) accept no range at all: selecting pages of
// an unpaged document would silently translate nothing.
func (r PageRange) Validate(pageCount int) error {
	if pageCount < 1 {
		return fmt.Errorf("document has no pages to select")
	}
	if r.Start < 1 || r.End < 1 {
		return fmt.Errorf("page range must be positive, got %d-%d", r.Start, r.End)
	}
	if r.Start > r.End {
		return fmt.Errorf("page range start %d after end %d", r.Start, r.End)
	}
	if r.End > pageCount {
		return fmt.Errorf("page range %d-%d exceeds page count %d", r.Start, r.End, pageCount)
	}
	return nil
}

// NodeKind discriminates tree nodes.
type NodeKind int

const (
	NodeContainer NodeKind = iota
	NodeText
	NodePageBreak
)

// Node is one node of the structural document tree. Text leaves carry the
// extracted text; after segmentation a claimed leaf also carries its SegID.
// Page is set on page-equivalent containers (PDF page, PPTX slide).
type Node struct {
	Kind     NodeKind
	Tag      string // serialization tag: p, h1..h6, table, tr, td, section, pre
	Page     int
	Text     string
	SegID    string
	Children []*Node
}

// AddChild appends a child node and returns it.
func (n *Node) AddChild(c *Node) *Node {
	n.Children = append(n.Children, c)
	return c
}

// Document is the structural representation of one decomposed file.
type Document struct {
	Name      string
	Format    Format
	Root      *Node
	PageCount int
	Err       string // embedded parse error marker, empty on success
}

// ErrorDocument builds a document carrying an embedded error marker and no
// extractable content. Used so one bad file never aborts sibling uploads.
func ErrorDocument(name string, format Format, err error) *Document {
	return &Document{
		Name:   name,
		Format: format,
		Root:   &Node{Kind: NodeContainer, Tag: "section"},
		Err:    err.Error(),
	}
}

// SupportedFormats returns all supported format names.
func SupportedFormats() []string {
	return []string{"docx", "pptx", "xlsx", "pdf", "html", "text"}
}
