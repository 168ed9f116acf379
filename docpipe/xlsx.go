// CLAUDE:SUMMARY Decomposes .xlsx files into per-sheet table trees, resolving shared strings.
package docpipe

import (
	"encoding/xml"
	"fmt"
	"io"
	"regexp"
	"sort"
	"strconv"
	"strings"
)

var sheetPartRe = regexp.MustCompile(`^xl/worksheets/sheet(\d+)\.xml$`)

// decomposeXlsx parses a .xlsx file by rendering each worksheet to a table
// container. Spreadsheets have no page concept, so PageCount is 0.
//
// Legacy binary .xls files are accepted only when they are actually OOXML
// archives with a wrong extension; true BIFF files fail at the zip layer and
// surface as a parse error for this file.
func decomposeXlsx(name string, data []byte) (*Document, error) {
	shared, err := xlsxSharedStrings(data)
	if err != nil {
		return nil, err
	}

	names, err := zipPartNames(data, "xl/worksheets/sheet", ".xml")
	if err != nil {
		return nil, err
	}

	type sheetPart struct {
		name string
		nr   int
	}
	var sheets []sheetPart
	for _, n := range names {
		m := sheetPartRe.FindStringSubmatch(n)
		if m == nil {
			continue
		}
		nr, _ := strconv.Atoi(m[1])
		sheets = append(sheets, sheetPart{name: n, nr: nr})
	}
	if len(sheets) == 0 {
		return nil, fmt.Errorf("no worksheets found in archive")
	}
	sort.Slice(sheets, func(i, j int) bool { return sheets[i].nr < sheets[j].nr })

	root := &Node{Kind: NodeContainer, Tag: "section"}
	for _, s := range sheets {
		rc, err := openZipPart(data, s.name)
		if err != nil {
			return nil, err
		}
		table, err := xlsxSheetTable(rc, shared)
		rc.Close()
		if err != nil {
			return nil, fmt.Errorf("sheet %d: %w", s.nr, err)
		}
		if len(table.Children) > 0 {
			root.AddChild(table)
		}
	}

	return &Document{Name: name, Format: FormatXlsx, Root: root}, nil
}

// xlsxSharedStrings reads xl/sharedStrings.xml into an indexed slice.
// Rich-text entries (si with r runs) are flattened to their concatenated
// text for display; the reassembler leaves them untouched.
func xlsxSharedStrings(data []byte) ([]string, error) {
	rc, err := openZipPart(data, "xl/sharedStrings.xml")
	if err != nil {
		// A workbook with only numeric cells has no shared strings part.
		return nil, nil
	}
	defer rc.Close()

	decoder := xml.NewDecoder(rc)
	var strs []string
	var current strings.Builder
	var inSI, inT bool
	depth := 0

	for {
		tok, err := decoder.Token()
		if err == io.EOF {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("parse sharedStrings.xml: %w", err)
		}

		switch t := tok.(type) {
		case xml.StartElement:
			depth++
			if depth > maxXMLDepth {
				return nil, fmt.Errorf("xml nesting depth exceeds %d", maxXMLDepth)
			}
			switch t.Name.Local {
			case "si":
				inSI = true
				current.Reset()
			case "t":
				inT = inSI
			}
		case xml.CharData:
			if inT {
				current.Write(t)
			}
		case xml.EndElement:
			depth--
			switch t.Name.Local {
			case "t":
				inT = false
			case "si":
				if inSI {
					inSI = false
					strs = append(strs, current.String())
				}
			}
		}
	}
	return strs, nil
}

// xlsxSheetTable streams one worksheet part into a table node. Only cells
// resolving to a string value produce text leaves: shared strings (t="s"),
// inline strings (t="inlineStr") and formula strings (t="str").
func xlsxSheetTable(rc io.Reader, shared []string) (*Node, error) {
	decoder := xml.NewDecoder(rc)
	table := &Node{Kind: NodeContainer, Tag: "table"}

	var row *Node
	var cellType string
	var current strings.Builder
	var inValue bool
	depth := 0

	flushCell := func() {
		raw := current.String()
		current.Reset()
		var text string
		switch cellType {
		case "s":
			idx, err := strconv.Atoi(strings.TrimSpace(raw))
			if err != nil || idx < 0 || idx >= len(shared) {
				return
			}
			text = shared[idx]
		case "inlineStr", "str":
			text = raw
		default:
			// Numeric/bool cells are not translatable.
			return
		}
		if strings.TrimSpace(text) == "" || row == nil {
			return
		}
		cell := row.AddChild(&Node{Kind: NodeContainer, Tag: "td"})
		cell.AddChild(&Node{Kind: NodeText, Text: text})
	}

	for {
		tok, err := decoder.Token()
		if err == io.EOF {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("parse sheet xml: %w", err)
		}

		switch t := tok.(type) {
		case xml.StartElement:
			depth++
			if depth > maxXMLDepth {
				return nil, fmt.Errorf("xml nesting depth exceeds %d", maxXMLDepth)
			}
			switch t.Name.Local {
			case "row":
				row = &Node{Kind: NodeContainer, Tag: "tr"}
			case "c":
				cellType = ""
				for _, attr := range t.Attr {
					if attr.Name.Local == "t" {
						cellType = attr.Value
					}
				}
			case "v", "t":
				inValue = true
			}
		case xml.CharData:
			if inValue {
				current.Write(t)
			}
		case xml.EndElement:
			depth--
			switch t.Name.Local {
			case "v", "t":
				inValue = false
			case "c":
				flushCell()
			case "row":
				if row != nil && len(row.Children) > 0 {
					table.AddChild(row)
				}
				row = nil
			}
		}
	}
	return table, nil
}
