// CLAUDE:SUMMARY OOXML rewrite: zip copy with per-part transforms, two-pass run substitution for docx and pptx.
package reassemble

import (
	"archive/zip"
	"bytes"
	"fmt"
	"io"
	"regexp"
	"strings"
	"unicode"
)

var (
	docxPartRe  = regexp.MustCompile(`^word/(document|header\d*|footer\d*)\.xml$`)
	pptxSlideRe = regexp.MustCompile(`^ppt/slides/slide\d+\.xml$`)

	// Word stores text runs as <w:t>, DrawingML (slides) as <a:t>. Group 1
	// keeps the attributes (xml:space), group 2 is the text.
	wordParaRe  = regexp.MustCompile(`(?s)<w:p[ >].*?</w:p>`)
	wordRunRe   = regexp.MustCompile(`(?s)<w:t(\s[^>]*)?>(.*?)</w:t>`)
	slideParaRe = regexp.MustCompile(`(?s)<a:p>.*?</a:p>`)
	slideRunRe  = regexp.MustCompile(`(?s)<a:t(\s[^>]*)?>(.*?)</a:t>`)
)

func rewriteDocx(original []byte, lookup map[string]string) ([]byte, error) {
	return rewriteArchive(original, "word/document.xml",
		func(name string) bool { return docxPartRe.MatchString(name) },
		func(data []byte) []byte {
			return substituteRuns(data, wordParaRe, wordRunRe, lookup)
		})
}

func rewritePptx(original []byte, lookup map[string]string) ([]byte, error) {
	return rewriteArchive(original, "ppt/presentation.xml",
		func(name string) bool { return pptxSlideRe.MatchString(name) },
		func(data []byte) []byte {
			return substituteRuns(data, slideParaRe, slideRunRe, lookup)
		})
}

// rewriteArchive copies a zip archive entry by entry, applying transform to
// the parts selected by match. requiredPart guards against rewriting a file
// that is not the expected container type.
func rewriteArchive(original []byte, requiredPart string, match func(string) bool, transform func([]byte) []byte) ([]byte, error) {
	zr, err := zip.NewReader(bytes.NewReader(original), int64(len(original)))
	if err != nil {
		return nil, fmt.Errorf("reassemble: open archive: %w", err)
	}

	found := false
	var buf bytes.Buffer
	zw := zip.NewWriter(&buf)
	for _, f := range zr.File {
		if f.Name == requiredPart {
			found = true
		}

		rc, err := f.Open()
		if err != nil {
			return nil, fmt.Errorf("reassemble: open %s: %w", f.Name, err)
		}
		data, err := io.ReadAll(rc)
		rc.Close()
		if err != nil {
			return nil, fmt.Errorf("reassemble: read %s: %w", f.Name, err)
		}

		if match(f.Name) {
			data = transform(data)
		}

		w, err := zw.CreateHeader(&zip.FileHeader{Name: f.Name, Method: zip.Deflate})
		if err != nil {
			return nil, fmt.Errorf("reassemble: write %s: %w", f.Name, err)
		}
		if _, err := w.Write(data); err != nil {
			return nil, fmt.Errorf("reassemble: write %s: %w", f.Name, err)
		}
	}
	if !found {
		return nil, errNoPart(requiredPart)
	}
	if err := zw.Close(); err != nil {
		return nil, fmt.Errorf("reassemble: close archive: %w", err)
	}
	return buf.Bytes(), nil
}

// substituteRuns rewrites every paragraph of one XML part in two passes.
//
// Pass 1 replaces runs whose own text matches a segment, which covers
// paragraphs Word kept in a single run. Pass 2 handles paragraphs split
// across several runs (spell-check and formatting boundaries): when the
// concatenated text of the runs pass 1 did not substitute matches a segment,
// the whole translation goes into the dominant run and the other runs are
// blanked, preserving that run's formatting for the full sentence.
func substituteRuns(part []byte, paraRe, runRe *regexp.Regexp, lookup map[string]string) []byte {
	out := paraRe.ReplaceAllFunc(part, func(para []byte) []byte {
		return rewriteParagraph(para, runRe, lookup)
	})
	return out
}

func rewriteParagraph(para []byte, runRe *regexp.Regexp, lookup map[string]string) []byte {
	matches := runRe.FindAllSubmatchIndex(para, -1)
	if len(matches) == 0 {
		return para
	}

	texts := make([]string, len(matches))
	for i, m := range matches {
		texts[i] = xmlUnescape(string(para[m[4]:m[5]]))
	}

	replacements := make([]string, len(matches))
	exact := make([]bool, len(matches))
	replaced := false
	for i, t := range texts {
		if tr, ok := lookup[strings.TrimSpace(t)]; ok {
			replacements[i] = tr
			exact[i] = true
			replaced = true
		} else {
			replacements[i] = t
		}
	}

	// Pass 2 merges over the runs pass 1 left alone, so a paragraph mixing
	// an exactly-matched run with a split sentence still resolves both.
	var rest []int
	for i := range texts {
		if !exact[i] {
			rest = append(rest, i)
		}
	}
	if len(rest) > 1 {
		restTexts := make([]string, len(rest))
		for j, i := range rest {
			restTexts[j] = texts[i]
		}
		joined := strings.TrimSpace(strings.Join(restTexts, ""))
		if tr, ok := lookup[joined]; ok {
			dom := rest[dominantRun(restTexts)]
			for _, i := range rest {
				if i == dom {
					replacements[i] = tr
				} else {
					replacements[i] = ""
				}
			}
			replaced = true
		}
	}

	if !replaced {
		return para
	}

	var b bytes.Buffer
	prev := 0
	for i, m := range matches {
		b.Write(para[prev:m[4]])
		b.WriteString(xmlEscape(replacements[i]))
		prev = m[5]
	}
	b.Write(para[prev:])
	return b.Bytes()
}

// dominantRun picks the run that should carry a merged translation: prefer
// runs with meaningful content (letters or digits, not underscores or bare
// punctuation), then the longest once separator whitespace is trimmed, then
// runs without surrounding whitespace, then the first. Trailing spaces are
// word separators Word attaches to whichever run came first; they must not
// make that run win over the actual word.
func dominantRun(texts []string) int {
	best := -1
	bestLen := -1
	bestBare := false
	for i, t := range texts {
		if !meaningful(t) {
			continue
		}
		trimmed := strings.TrimSpace(t)
		n := len([]rune(trimmed))
		bare := trimmed == t
		if n > bestLen || (n == bestLen && bare && !bestBare) {
			best, bestLen, bestBare = i, n, bare
		}
	}
	if best >= 0 {
		return best
	}
	// No run has real content; fall back to the longest.
	for i, t := range texts {
		if n := len([]rune(t)); n > bestLen {
			best, bestLen = i, n
		}
	}
	return best
}

func meaningful(s string) bool {
	for _, r := range s {
		if unicode.IsLetter(r) || unicode.IsDigit(r) {
			return true
		}
	}
	return false
}
