// CLAUDE:SUMMARY Core decomposition engine that dispatches by format (docx, pptx, xlsx, pdf, html, text).
// Package docpipe decomposes uploaded documents into a structural node tree
// and an ordered set of translatable segments with page attribution.
//
// Supported formats:
//   - .docx — Microsoft Word (archive/zip → word/document.xml)
//   - .pptx — PowerPoint (one page unit per slide)
//   - .xlsx — Excel (one table per sheet, shared strings resolved)
//   - .pdf  — PDF text extraction (pdfcpu, paragraph-level chunking per page)
//   - .html — HTML (x/net/html walker, hidden elements filtered)
//   - anything else — plain text, one block
//
// Usage:
//
//	pipe := docpipe.New(docpipe.Config{})
//	doc, err := pipe.Decompose("report.docx", data)
//	segs := pipe.Segment(doc)
package docpipe

import (
	"errors"
	"fmt"
	"log/slog"
	"path/filepath"
	"strings"

	"github.com/hazyhaar/tradbench/idgen"
)

// ErrRejected marks validation failures (oversized file, scanned PDF) that
// should be reported to the uploader instead of producing an error-marked
// document. Test with errors.Is.
var ErrRejected = errors.New("document rejected")

// Config configures the decomposition pipeline.
type Config struct {
	// MaxFileSize is the maximum file size to process (default: 100 MB).
	MaxFileSize int64 `json:"max_file_size" yaml:"max_file_size"`

	// MaxChunkChars bounds a single PDF paragraph chunk (default: 1000).
	MaxChunkChars int `json:"max_chunk_chars" yaml:"max_chunk_chars"`

	// SegmentIDs generates segment identifiers. Default: "seg_" + UUIDv7.
	SegmentIDs idgen.Generator `json:"-" yaml:"-"`

	// Logger for debug/error messages.
	Logger *slog.Logger `json:"-" yaml:"-"`
}

func (c *Config) defaults() {
	if c.MaxFileSize <= 0 {
		c.MaxFileSize = 100 * 1024 * 1024
	}
	if c.MaxChunkChars <= 0 {
		c.MaxChunkChars = 1000
	}
	if c.SegmentIDs == nil {
		c.SegmentIDs = idgen.Prefixed("seg_", idgen.Default)
	}
	if c.Logger == nil {
		c.Logger = slog.Default()
	}
}

// Pipeline is the document decomposition engine.
type Pipeline struct {
	cfg    Config
	logger *slog.Logger
}

// New creates a Pipeline with the given configuration.
func New(cfg Config) *Pipeline {
	cfg.defaults()
	return &Pipeline{
		cfg:    cfg,
		logger: cfg.Logger,
	}
}

// Detect returns the document format based on the file name extension.
// Unknown extensions fall through to plain text rather than erroring: the
// text path accepts any content.
func (p *Pipeline) Detect(name string) Format {
	switch strings.ToLower(filepath.Ext(name)) {
	case ".docx":
		return FormatDocx
	case ".pptx":
		return FormatPptx
	case ".xlsx", ".xls":
		return FormatXlsx
	case ".pdf":
		return FormatPDF
	case ".html", ".htm":
		return FormatHTML
	default:
		return FormatText
	}
}

// Decompose parses a document into its structural tree. The returned error is
// upload-fatal for this file only; callers that want an error-marked document
// instead should wrap it with ErrorDocument.
func (p *Pipeline) Decompose(name string, data []byte) (*Document, error) {
	format := p.Detect(name)
	p.logger.Debug("decomposing document", "name", name, "format", format, "bytes", len(data))

	if int64(len(data)) > p.cfg.MaxFileSize {
		return nil, fmt.Errorf("%w: file too large: %d bytes (max %d)", ErrRejected, len(data), p.cfg.MaxFileSize)
	}

	switch format {
	case FormatDocx:
		return decomposeDocx(name, data)
	case FormatPptx:
		return decomposePptx(name, data)
	case FormatXlsx:
		return decomposeXlsx(name, data)
	case FormatPDF:
		return p.decomposePDF(name, data)
	case FormatHTML:
		return decomposeHTML(name, data)
	default:
		return decomposeText(name, data)
	}
}
