// CLAUDE:SUMMARY PDF decomposer using pdfcpu — page-aware extraction with programmatic-PDF gating and paragraph chunking.
package docpipe

import (
	"bytes"
	"fmt"
	"io"
	"regexp"
	"strings"
	"unicode"

	"github.com/pdfcpu/pdfcpu/pkg/api"
	"github.com/pdfcpu/pdfcpu/pkg/pdfcpu"
	"github.com/pdfcpu/pdfcpu/pkg/pdfcpu/model"
)

// programmaticGatePages and programmaticGateChars define the scanned-PDF
// gate: the first gatePages pages must yield more than gateChars characters
// of extractable text, otherwise the file is rejected before decomposition.
const (
	programmaticGatePages = 3
	programmaticGateChars = 50
)

// decomposePDF extracts text from a PDF page by page. Each page becomes one
// page-equivalent container whose text is split into paragraph-level chunks,
// never one giant per-page blob, so downstream batches stay bounded.
func (p *Pipeline) decomposePDF(name string, data []byte) (*Document, error) {
	conf := model.NewDefaultConfiguration()
	ctx, err := api.ReadValidateAndOptimize(bytes.NewReader(data), conf)
	if err != nil {
		return nil, fmt.Errorf("pdfcpu read: %w", err)
	}
	if ctx.PageCount < 1 {
		return nil, fmt.Errorf("pdf has no pages")
	}

	// Programmatic-PDF gate: scanned/image-only PDFs are out of scope.
	gateChars := 0
	gatePages := min(programmaticGatePages, ctx.PageCount)
	for pageNr := 1; pageNr <= gatePages; pageNr++ {
		gateChars += len([]rune(extractPageText(ctx, pageNr)))
	}
	if gateChars <= programmaticGateChars {
		return nil, fmt.Errorf("%w: pdf appears scanned or image-only: %d chars of text in first %d pages", ErrRejected, gateChars, gatePages)
	}

	root := &Node{Kind: NodeContainer, Tag: "section"}
	for pageNr := 1; pageNr <= ctx.PageCount; pageNr++ {
		page := root.AddChild(&Node{Kind: NodeContainer, Tag: "section", Page: pageNr})
		pageText := extractPageText(ctx, pageNr)
		for _, chunk := range splitParagraphChunks(pageText, p.cfg.MaxChunkChars) {
			para := page.AddChild(&Node{Kind: NodeContainer, Tag: "p"})
			para.AddChild(&Node{Kind: NodeText, Text: chunk})
		}
		if pageNr < ctx.PageCount {
			root.AddChild(&Node{Kind: NodePageBreak})
		}
	}

	return &Document{
		Name:      name,
		Format:    FormatPDF,
		Root:      root,
		PageCount: ctx.PageCount,
	}, nil
}

// extractPageText extracts text from a single PDF page via pdfcpu content stream.
func extractPageText(ctx *model.Context, pageNr int) string {
	r, err := pdfcpu.ExtractPageContent(ctx, pageNr)
	if err != nil {
		return ""
	}
	data, err := io.ReadAll(r)
	if err != nil || len(data) == 0 {
		return ""
	}
	return extractTextFromStream(data)
}

// pdfStringRe matches PDF string literals in parentheses, tolerating escaped
// parentheses and backslashes inside.
var pdfStringRe = regexp.MustCompile(`\(((?:\\.|[^\\()])*)\)`)

// extractTextFromStream parses PDF content stream operators for text.
// Line-motion operators (T*, ') become newlines so paragraph structure
// survives into chunking.
func extractTextFromStream(data []byte) string {
	var sb strings.Builder

	writeMatches := func(line []byte, sep byte) {
		for _, m := range pdfStringRe.FindAllSubmatch(line, -1) {
			text := decodePDFString(m[1])
			if text == "" {
				continue
			}
			if sep != 0 && sb.Len() > 0 {
				sb.WriteByte(sep)
				sep = 0
			}
			sb.WriteString(text)
		}
	}

	for _, line := range bytes.Split(data, []byte{'\n'}) {
		line = bytes.TrimSpace(line)
		if len(line) == 0 {
			continue
		}

		switch {
		// Tj / TJ show-text operators.
		case bytes.HasSuffix(line, []byte("Tj")), bytes.HasSuffix(line, []byte("TJ")):
			writeMatches(line, 0)

		// ' operator: move to next line and show text.
		case bytes.HasSuffix(line, []byte("'")) && bytes.Contains(line, []byte("(")):
			writeMatches(line, '\n')

		// Td/TD text positioning: word boundary.
		case bytes.HasSuffix(line, []byte("Td")), bytes.HasSuffix(line, []byte("TD")):
			if sb.Len() > 0 {
				sb.WriteByte(' ')
			}

		// T*: move to start of next line.
		case bytes.Equal(line, []byte("T*")):
			sb.WriteByte('\n')
		}
	}

	return cleanPageText(sb.String())
}

// decodePDFString handles basic PDF escape sequences.
func decodePDFString(raw []byte) string {
	var sb strings.Builder
	for i := 0; i < len(raw); i++ {
		if raw[i] != '\\' || i+1 >= len(raw) {
			sb.WriteByte(raw[i])
			continue
		}
		i++
		switch raw[i] {
		case 'n':
			sb.WriteByte('\n')
		case 'r':
			sb.WriteByte('\r')
		case 't':
			sb.WriteByte('\t')
		case '\\', '(', ')':
			sb.WriteByte(raw[i])
		default:
			// Octal escape (e.g. \040 for space).
			if raw[i] >= '0' && raw[i] <= '7' {
				val := int(raw[i] - '0')
				for n := 0; n < 2 && i+1 < len(raw) && raw[i+1] >= '0' && raw[i+1] <= '7'; n++ {
					i++
					val = val*8 + int(raw[i]-'0')
				}
				sb.WriteByte(byte(val))
			} else {
				sb.WriteByte(raw[i])
			}
		}
	}
	return sb.String()
}

// cleanPageText normalises horizontal whitespace but preserves line breaks,
// which carry paragraph structure for chunking.
func cleanPageText(text string) string {
	var sb strings.Builder
	prevSpace := false
	for _, r := range text {
		switch {
		case r == '\n':
			sb.WriteByte('\n')
			prevSpace = true
		case unicode.IsSpace(r):
			if !prevSpace && sb.Len() > 0 {
				sb.WriteByte(' ')
				prevSpace = true
			}
		case unicode.IsPrint(r):
			sb.WriteRune(r)
			prevSpace = false
		}
	}
	return strings.TrimSpace(sb.String())
}

var sentenceEndRe = regexp.MustCompile(`([.!?。！？])\s+`)

// splitParagraphChunks splits page text into paragraph-level chunks. Blank
// lines and line breaks delimit paragraphs; paragraphs longer than maxChars
// are further split at sentence boundaries so no single chunk dominates a
// translation batch.
func splitParagraphChunks(text string, maxChars int) []string {
	text = strings.ReplaceAll(text, "\r\n", "\n")
	text = strings.ReplaceAll(text, "\r", "\n")

	var paras []string
	for _, p := range strings.Split(text, "\n") {
		p = strings.TrimSpace(p)
		if p != "" {
			paras = append(paras, p)
		}
	}
	if len(paras) == 0 {
		if t := strings.TrimSpace(text); t != "" {
			paras = []string{t}
		} else {
			return nil
		}
	}

	var chunks []string
	for _, p := range paras {
		if len([]rune(p)) <= maxChars {
			chunks = append(chunks, p)
			continue
		}
		chunks = append(chunks, splitAtSentences(p, maxChars)...)
	}
	return chunks
}

// splitAtSentences accumulates sentences up to maxChars per chunk. A single
// sentence longer than maxChars stays whole: cutting mid-sentence would
// wreck the translation.
func splitAtSentences(text string, maxChars int) []string {
	marks := sentenceEndRe.FindAllStringIndex(text, -1)
	if len(marks) == 0 {
		return []string{text}
	}

	var chunks []string
	var sb strings.Builder
	prev := 0
	flush := func() {
		if s := strings.TrimSpace(sb.String()); s != "" {
			chunks = append(chunks, s)
		}
		sb.Reset()
	}
	for _, m := range marks {
		sentence := text[prev:m[1]]
		prev = m[1]
		if sb.Len() > 0 && len([]rune(sb.String()))+len([]rune(sentence)) > maxChars {
			flush()
		}
		sb.WriteString(sentence)
	}
	sb.WriteString(text[prev:])
	flush()
	return chunks
}
