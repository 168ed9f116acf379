// CLAUDE:SUMMARY PDF synthesis: flowed translated text with CJK-aware wrapping and proper xref offsets.
package reassemble

import (
	"fmt"
	"sort"
	"strings"
	"unicode"

	"github.com/hazyhaar/tradbench/docpipe"
)

// Page geometry (US Letter) and type metrics. Advances are estimates for the
// base-14 Helvetica; CJK glyphs take a full em, Latin roughly half.
const (
	pdfPageWidth  = 612
	pdfPageHeight = 792
	pdfMargin     = 72
	pdfFontSize   = 11
	pdfLineHeight = 16

	pdfLineWidth    = pdfPageWidth - 2*pdfMargin
	pdfCJKAdvance   = pdfFontSize
	pdfLatinAdvance = pdfFontSize * 55 / 100
)

// synthesizePDF builds a fresh PDF from the translated segments. The original
// file's layout is not preserved: text flows top-down, grouped by the source
// page with a forced break between groups, wrapping at the line width and
// spilling onto new pages as needed.
//
// The text is set in Helvetica, which has no CJK glyphs; wrapping still
// treats CJK runes as individually breakable so mixed documents paginate
// consistently.
func synthesizePDF(segments []*docpipe.Segment) ([]byte, error) {
	ordered := make([]*docpipe.Segment, 0, len(segments))
	for _, s := range segments {
		ordered = append(ordered, s)
	}
	sort.SliceStable(ordered, func(a, b int) bool {
		if ordered[a].PageNumber != ordered[b].PageNumber {
			return ordered[a].PageNumber < ordered[b].PageNumber
		}
		return ordered[a].Index < ordered[b].Index
	})

	var pages [][]string
	var cur []string
	y := pdfPageHeight - pdfMargin

	newPage := func() {
		if cur != nil {
			pages = append(pages, cur)
		}
		cur = nil
		y = pdfPageHeight - pdfMargin
	}
	emit := func(line string) {
		if y < pdfMargin+pdfLineHeight {
			newPage()
		}
		if line != "" {
			cur = append(cur, fmt.Sprintf("1 0 0 1 %d %d Tm (%s) Tj", pdfMargin, y, escapePDFString(line)))
		} else if cur == nil {
			cur = []string{} // blank leading line still opens the page
		}
		y -= pdfLineHeight
	}

	lastPage := -1
	for _, s := range ordered {
		text := s.Translated
		if text == "" {
			text = s.Original
		}
		if strings.TrimSpace(text) == "" {
			continue
		}

		if lastPage >= 0 && s.PageNumber != lastPage {
			newPage()
		}
		lastPage = s.PageNumber

		for _, raw := range strings.Split(text, "\n") {
			if strings.TrimSpace(raw) == "" {
				emit("") // vertical spacing
				continue
			}
			for _, line := range wrapLine(raw, pdfLineWidth) {
				emit(line)
			}
		}
		emit("") // paragraph gap
	}
	if cur != nil {
		pages = append(pages, cur)
	}
	if len(pages) == 0 {
		pages = [][]string{{}}
	}

	return writePDF(pages), nil
}

// wrapLine breaks one logical line into physical lines within width points.
// CJK runes break anywhere; Latin words stay whole unless a single word
// exceeds the full line, in which case it is split by rune.
func wrapLine(text string, width int) []string {
	var lines []string
	var line strings.Builder
	lineW := 0

	flush := func() {
		if line.Len() > 0 {
			lines = append(lines, line.String())
			line.Reset()
			lineW = 0
		}
	}

	for _, tok := range tokenize(text) {
		w := tokenWidth(tok)
		if lineW+w <= width {
			line.WriteString(tok)
			lineW += w
			continue
		}
		if w > width {
			// Oversized word: hard-split by rune.
			for _, r := range tok {
				rw := runeAdvance(r)
				if lineW+rw > width {
					flush()
				}
				line.WriteRune(r)
				lineW += rw
			}
			continue
		}
		flush()
		if strings.TrimSpace(tok) == "" {
			continue // drop the separator that caused the break
		}
		line.WriteString(tok)
		lineW = w
	}
	flush()

	if len(lines) == 0 {
		return []string{""}
	}
	return lines
}

// tokenize splits text into wrap units: whitespace runs, single CJK runes
// and unbreakable Latin words.
func tokenize(text string) []string {
	var toks []string
	var word strings.Builder

	flushWord := func() {
		if word.Len() > 0 {
			toks = append(toks, word.String())
			word.Reset()
		}
	}

	for _, r := range text {
		switch {
		case unicode.IsSpace(r):
			flushWord()
			toks = append(toks, string(r))
		case cjkRune(r):
			flushWord()
			toks = append(toks, string(r))
		default:
			word.WriteRune(r)
		}
	}
	flushWord()
	return toks
}

func tokenWidth(tok string) int {
	w := 0
	for _, r := range tok {
		w += runeAdvance(r)
	}
	return w
}

func runeAdvance(r rune) int {
	if cjkRune(r) {
		return pdfCJKAdvance
	}
	return pdfLatinAdvance
}

func cjkRune(r rune) bool {
	return unicode.Is(unicode.Han, r) ||
		unicode.Is(unicode.Hiragana, r) ||
		unicode.Is(unicode.Katakana, r) ||
		unicode.Is(unicode.Hangul, r) ||
		(r >= 0x3000 && r <= 0x303f) // CJK punctuation
}

func escapePDFString(s string) string {
	s = strings.ReplaceAll(s, `\`, `\\`)
	s = strings.ReplaceAll(s, "(", `\(`)
	s = strings.ReplaceAll(s, ")", `\)`)
	return s
}

// writePDF assembles the document with a correct xref table. Object layout:
// 1 catalog, 2 pages, then one page and one content stream object per page,
// and the shared font object last.
func writePDF(pages [][]string) []byte {
	var b strings.Builder
	b.WriteString("%PDF-1.4\n")

	fontObj := 3 + 2*len(pages)
	offsets := make([]int, fontObj+1)

	offsets[1] = b.Len()
	b.WriteString("1 0 obj\n<< /Type /Catalog /Pages 2 0 R >>\nendobj\n")

	offsets[2] = b.Len()
	kids := make([]string, len(pages))
	for i := range pages {
		kids[i] = fmt.Sprintf("%d 0 R", 3+2*i)
	}
	fmt.Fprintf(&b, "2 0 obj\n<< /Type /Pages /Kids [%s] /Count %d >>\nendobj\n",
		strings.Join(kids, " "), len(pages))

	for i, lines := range pages {
		pageObj := 3 + 2*i
		contentObj := pageObj + 1

		stream := "BT\n/F1 " + fmt.Sprint(pdfFontSize) + " Tf\n"
		if len(lines) > 0 {
			stream += strings.Join(lines, "\n") + "\n"
		}
		stream += "ET"

		offsets[pageObj] = b.Len()
		fmt.Fprintf(&b, "%d 0 obj\n<< /Type /Page /Parent 2 0 R /MediaBox [0 0 %d %d] /Contents %d 0 R /Resources << /Font << /F1 %d 0 R >> >> >>\nendobj\n",
			pageObj, pdfPageWidth, pdfPageHeight, contentObj, fontObj)

		offsets[contentObj] = b.Len()
		fmt.Fprintf(&b, "%d 0 obj\n<< /Length %d >>\nstream\n%s\nendstream\nendobj\n",
			contentObj, len(stream), stream)
	}

	offsets[fontObj] = b.Len()
	fmt.Fprintf(&b, "%d 0 obj\n<< /Type /Font /Subtype /Type1 /BaseFont /Helvetica >>\nendobj\n", fontObj)

	xrefPos := b.Len()
	fmt.Fprintf(&b, "xref\n0 %d\n", fontObj+1)
	b.WriteString("0000000000 65535 f \n")
	for i := 1; i <= fontObj; i++ {
		fmt.Fprintf(&b, "%010d 00000 n \n", offsets[i])
	}
	fmt.Fprintf(&b, "trailer\n<< /Size %d /Root 1 0 R >>\nstartxref\n%d\n%%%%EOF\n",
		fontObj+1, xrefPos)

	return []byte(b.String())
}
