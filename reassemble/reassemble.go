// CLAUDE:SUMMARY Reassembler entry point: translated-text lookup, format dispatch and MIME mapping.
// Package reassemble rebuilds a translated document in its original container
// format from the segment set produced by decomposition.
//
// OOXML containers (docx, pptx) are rewritten in place: the archive is
// copied entry by entry and only the text-bearing XML parts are transformed.
// XLSX substitutes shared and inline strings. PDF output is synthesized from
// scratch. Everything else falls back to a global text replace.
package reassemble

import (
	"fmt"
	"strings"

	"github.com/hazyhaar/tradbench/docpipe"
)

// MIME returns the content type served for a format.
func MIME(format docpipe.Format) string {
	switch format {
	case docpipe.FormatDocx:
		return "application/vnd.openxmlformats-officedocument.wordprocessingml.document"
	case docpipe.FormatPptx:
		return "application/vnd.openxmlformats-officedocument.presentationml.presentation"
	case docpipe.FormatXlsx:
		return "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet"
	case docpipe.FormatPDF:
		return "application/pdf"
	case docpipe.FormatHTML:
		return "text/html; charset=utf-8"
	default:
		return "text/plain; charset=utf-8"
	}
}

// Output rebuilds the document with translations applied and returns the
// bytes plus their MIME type. Failure is terminal for this download attempt
// only; callers keep job state untouched.
func Output(name string, format docpipe.Format, original []byte, segments []*docpipe.Segment) ([]byte, string, error) {
	lookup := buildLookup(segments)

	switch format {
	case docpipe.FormatDocx:
		out, err := rewriteDocx(original, lookup)
		return out, MIME(format), err
	case docpipe.FormatPptx:
		out, err := rewritePptx(original, lookup)
		return out, MIME(format), err
	case docpipe.FormatXlsx:
		out, err := rewriteXlsx(original, lookup)
		return out, MIME(format), err
	case docpipe.FormatPDF:
		out, err := synthesizePDF(segments)
		return out, MIME(format), err
	default:
		return replaceText(original, segments), MIME(format), nil
	}
}

// buildLookup maps trimmed original text to its translation. Only segments
// with a non-empty translation participate; when two segments share the same
// original text the later one wins.
func buildLookup(segments []*docpipe.Segment) map[string]string {
	lookup := make(map[string]string, len(segments))
	for _, s := range segments {
		key := strings.TrimSpace(s.Original)
		if key == "" || s.Translated == "" {
			continue
		}
		lookup[key] = s.Translated
	}
	return lookup
}

// replaceText applies each segment's translation as a sequential global
// substring replace. Two segments where one original contains the other can
// collide; acceptable for the unstructured fallback path.
func replaceText(original []byte, segments []*docpipe.Segment) []byte {
	content := string(original)
	for _, s := range segments {
		if s.Original == "" || s.Translated == "" || s.Translated == s.Original {
			continue
		}
		content = strings.ReplaceAll(content, s.Original, s.Translated)
	}
	return []byte(content)
}

// xmlEscape escapes text for insertion into an XML text node.
func xmlEscape(s string) string {
	return xmlEscaper.Replace(s)
}

// xmlUnescape resolves the predefined XML entities in extracted run text so
// it compares equal to the decomposer's decoded output.
func xmlUnescape(s string) string {
	return xmlUnescaper.Replace(s)
}

var (
	xmlEscaper = strings.NewReplacer(
		"&", "&amp;",
		"<", "&lt;",
		">", "&gt;",
	)
	xmlUnescaper = strings.NewReplacer(
		"&lt;", "<",
		"&gt;", ">",
		"&quot;", `"`,
		"&apos;", "'",
		"&amp;", "&",
	)
)

// errNoPart reports a container missing its text-bearing XML part.
func errNoPart(part string) error {
	return fmt.Errorf("reassemble: archive has no %s", part)
}
