package docpipe

import (
	"archive/zip"
	"bytes"
	"strings"
	"testing"
)

func buildZipFixture(t *testing.T, parts map[string]string) []byte {
	t.Helper()
	var buf bytes.Buffer
	zw := zip.NewWriter(&buf)
	for name, content := range parts {
		w, err := zw.Create(name)
		if err != nil {
			t.Fatal(err)
		}
		if _, err := w.Write([]byte(content)); err != nil {
			t.Fatal(err)
		}
	}
	if err := zw.Close(); err != nil {
		t.Fatal(err)
	}
	return buf.Bytes()
}

func buildDocx(t *testing.T, body string) []byte {
	t.Helper()
	return buildZipFixture(t, map[string]string{
		"word/document.xml": `<?xml version="1.0"?>` +
			`<w:document xmlns:w="http://schemas.openxmlformats.org/wordprocessingml/2006/main">` +
			`<w:body>` + body + `</w:body></w:document>`,
	})
}

func TestDecomposeDocx_ParagraphsAndHeadings(t *testing.T) {
	data := buildDocx(t, `
		<w:p><w:pPr><w:pStyle w:val="Heading1"/></w:pPr><w:r><w:t>Introduction</w:t></w:r></w:p>
		<w:p><w:r><w:t>Premier </w:t></w:r><w:r><w:t>paragraphe.</w:t></w:r></w:p>
		<w:p><w:r><w:t>   </w:t></w:r></w:p>
		<w:p><w:r><w:t>Deuxième.</w:t></w:r></w:p>`)

	p := New(Config{})
	doc, err := p.Decompose("report.docx", data)
	if err != nil {
		t.Fatal(err)
	}
	if doc.PageCount != 0 {
		t.Errorf("PageCount = %d, want 0 for docx", doc.PageCount)
	}

	segs := p.Segment(doc)
	want := []string{"Introduction", "Premier paragraphe.", "Deuxième."}
	if len(segs) != len(want) {
		t.Fatalf("got %d segments, want %d: %+v", len(segs), len(want), segs)
	}
	for i, s := range segs {
		if s.Original != want[i] {
			t.Errorf("segment %d = %q, want %q", i, s.Original, want[i])
		}
	}

	html := RenderHTML(doc)
	if !strings.Contains(html, "<h1>") {
		t.Errorf("heading style not mapped: %s", html)
	}
}

func TestDecomposeDocx_TabsBecomeWhitespace(t *testing.T) {
	data := buildDocx(t, `<w:p><w:r><w:t>avant</w:t><w:tab/><w:t>après</w:t></w:r></w:p>`)

	p := New(Config{})
	doc, err := p.Decompose("report.docx", data)
	if err != nil {
		t.Fatal(err)
	}
	segs := p.Segment(doc)
	if len(segs) != 1 || segs[0].Original != "avant\taprès" {
		t.Errorf("segments = %+v", segs)
	}
}

func TestDecomposeDocx_NotAnArchive(t *testing.T) {
	p := New(Config{})
	if _, err := p.Decompose("report.docx", []byte("plain text")); err == nil {
		t.Fatal("expected error for non-zip input")
	}
}

func TestDecomposeDocx_MissingDocumentPart(t *testing.T) {
	data := buildZipFixture(t, map[string]string{"other.xml": "<x/>"})
	p := New(Config{})
	if _, err := p.Decompose("report.docx", data); err == nil {
		t.Fatal("expected error for archive without word/document.xml")
	}
}

func TestDecomposeDocx_DepthBomb(t *testing.T) {
	// WHAT: Pathological nesting is cut off instead of exhausting the stack.
	var sb strings.Builder
	for range maxXMLDepth + 10 {
		sb.WriteString("<w:x>")
	}
	for range maxXMLDepth + 10 {
		sb.WriteString("</w:x>")
	}
	data := buildDocx(t, sb.String())

	p := New(Config{})
	if _, err := p.Decompose("bomb.docx", data); err == nil {
		t.Fatal("expected depth error")
	}
}

func TestDocxHeadingLevel(t *testing.T) {
	cases := []struct {
		style string
		want  int
	}{
		{"Heading1", 1},
		{"heading3", 3},
		{"Titre2", 2},
		{"Title", 1},
		{"Subtitle", 2},
		{"Heading9", 0},
		{"Normal", 0},
		{"", 0},
	}
	for _, tc := range cases {
		if got := docxHeadingLevel(tc.style); got != tc.want {
			t.Errorf("docxHeadingLevel(%q) = %d, want %d", tc.style, got, tc.want)
		}
	}
}
