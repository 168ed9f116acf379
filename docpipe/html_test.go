package docpipe

import (
	"testing"
)

func TestDecomposeHTML_BlocksAndOrder(t *testing.T) {
	data := []byte(`<html><body>
		<h1>Titre principal</h1>
		<p>Premier paragraphe.</p>
		<ul><li>Point un</li><li>Point deux</li></ul>
	</body></html>`)

	p := New(Config{})
	doc, err := p.Decompose("page.html", data)
	if err != nil {
		t.Fatal(err)
	}
	segs := p.Segment(doc)
	want := []string{"Titre principal", "Premier paragraphe.", "Point un", "Point deux"}
	if len(segs) != len(want) {
		t.Fatalf("got %d segments, want %d: %+v", len(segs), len(want), segs)
	}
	for i, s := range segs {
		if s.Original != want[i] {
			t.Errorf("segment %d = %q, want %q", i, s.Original, want[i])
		}
	}
}

func TestDecomposeHTML_HiddenElementsFiltered(t *testing.T) {
	// WHAT: Invisible text must never reach the translation batches.
	data := []byte(`<html><body>
		<p>Visible.</p>
		<p style="display:none">Caché.</p>
		<p style="visibility: hidden">Invisible.</p>
		<script>var x = "code";</script>
	</body></html>`)

	p := New(Config{})
	doc, err := p.Decompose("page.html", data)
	if err != nil {
		t.Fatal(err)
	}
	segs := p.Segment(doc)
	if len(segs) != 1 || segs[0].Original != "Visible." {
		t.Errorf("segments = %+v", segs)
	}
}

func TestDecomposeHTML_FallbackWithoutBlocks(t *testing.T) {
	data := []byte(`<html><body><span>Texte en vrac</span> <b>sans blocs</b></body></html>`)

	p := New(Config{})
	doc, err := p.Decompose("page.html", data)
	if err != nil {
		t.Fatal(err)
	}
	segs := p.Segment(doc)
	if len(segs) != 1 || segs[0].Original != "Texte en vrac sans blocs" {
		t.Errorf("segments = %+v", segs)
	}
}
