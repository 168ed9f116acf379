// CLAUDE:SUMMARY XLSX rewrite: shared-string and inline-string substitution, rich text left untouched.
package reassemble

import (
	"regexp"
	"strings"
)

var (
	xlsxSheetRe = regexp.MustCompile(`^xl/worksheets/sheet\d+\.xml$`)

	// Plain shared strings only: a <si> whose sole child is one <t>. Rich
	// text (<si> with <r> runs) never matches and keeps its formatting.
	sharedStringRe = regexp.MustCompile(`(?s)<si>\s*<t(\s[^>]*)?>(.*?)</t>\s*</si>`)
	inlineStringRe = regexp.MustCompile(`(?s)<is>\s*<t(\s[^>]*)?>(.*?)</t>\s*</is>`)
)

func rewriteXlsx(original []byte, lookup map[string]string) ([]byte, error) {
	return rewriteArchive(original, "xl/workbook.xml",
		func(name string) bool {
			return name == "xl/sharedStrings.xml" || xlsxSheetRe.MatchString(name)
		},
		func(data []byte) []byte {
			data = substituteCellText(data, sharedStringRe, lookup)
			return substituteCellText(data, inlineStringRe, lookup)
		})
}

func substituteCellText(part []byte, re *regexp.Regexp, lookup map[string]string) []byte {
	return re.ReplaceAllFunc(part, func(cell []byte) []byte {
		m := re.FindSubmatchIndex(cell)
		text := xmlUnescape(string(cell[m[4]:m[5]]))
		tr, ok := lookup[strings.TrimSpace(text)]
		if !ok {
			return cell
		}
		out := make([]byte, 0, len(cell)+len(tr))
		out = append(out, cell[:m[4]]...)
		out = append(out, xmlEscape(tr)...)
		out = append(out, cell[m[5]:]...)
		return out
	})
}
