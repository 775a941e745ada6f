package escape

import (
	"strings"
	"testing"

	"github.com/beevik/etree"
)

// render serializes el the way the validator does.
func render(el *etree.Element) string {
	doc := etree.NewDocument()
	doc.WriteSettings.CanonicalText = true
	doc.SetRoot(el)
	s, _ := doc.WriteToString()
	return FixCharRefs(s)
}

func TestCharRefs(t *testing.T) {
	r := New(`\`)
	tests := []struct {
		in, want string
	}{
		{`line\X0D\end`, "line&#x0d;end"},
		{`\X0D0A\`, "&#x0d;&#x0a;"},
		{`\Z4142\ and \X43\`, "&#x41;&#x42; and &#x43;"},
		{`odd \X0D1\ digits`, `odd \X0D1\ digits`},
		{`no escapes at all`, `no escapes at all`},
	}
	for _, tt := range tests {
		if got := r.CharRefs(tt.in); got != tt.want {
			t.Errorf("CharRefs(%q) = %q, want %q", tt.in, got, tt.want)
		}
	}
}

func TestApplyCharRefIsText(t *testing.T) {
	el := etree.NewElement("OBX.5")
	New(`\`).Apply(el, `a\X0D\b`)

	if len(el.ChildElements()) != 0 {
		t.Fatalf("character escape created %d child elements", len(el.ChildElements()))
	}
	if got := render(el); got != "<OBX.5>a&#x0d;b</OBX.5>" {
		t.Errorf("rendered %q", got)
	}
}

func TestApplyLineBreak(t *testing.T) {
	el := etree.NewElement("NTE.3")
	New(`\`).Apply(el, `first\.br\second`)

	children := el.ChildElements()
	if len(children) != 1 {
		t.Fatalf("got %d escape children, want 1", len(children))
	}
	esc := children[0]
	if esc.Tag != ElementTag || esc.SelectAttrValue(ValueAttr, "") != ".br" {
		t.Errorf("child = <%s V=%q>", esc.Tag, esc.SelectAttrValue(ValueAttr, ""))
	}
	if el.Text() != "first" || esc.Tail() != "second" {
		t.Errorf("text = %q, tail = %q", el.Text(), esc.Tail())
	}
}

func TestApplySequence(t *testing.T) {
	el := etree.NewElement("NTE.3")
	New(`\`).Apply(el, `\H\Bold\N\ normal\.sp 2\\.in -4\x\.ti+3\`)

	var codes []string
	for _, c := range el.ChildElements() {
		codes = append(codes, c.SelectAttrValue(ValueAttr, "")+"|"+c.Tail())
	}
	want := []string{"H|Bold", "N| normal", ".sp 2|", ".in -4|x", ".ti+3|"}
	if strings.Join(codes, ",") != strings.Join(want, ",") {
		t.Errorf("escapes = %q, want %q", codes, want)
	}
	if el.Text() != "" {
		t.Errorf("text = %q, want empty", el.Text())
	}
}

func TestApplyLiteralIsIdentity(t *testing.T) {
	inputs := []string{"plain text", "a & b < c", "H N .br sp", "50% of 3/4"}
	r := New(`\`)
	for _, in := range inputs {
		el := etree.NewElement("TX")
		r.Apply(el, in)
		if el.Text() != in || len(el.ChildElements()) != 0 {
			t.Errorf("Apply(%q) changed text to %q with %d children", in, el.Text(), len(el.ChildElements()))
		}
	}
}

func TestOtherEscapeCharacter(t *testing.T) {
	el := etree.NewElement("TX")
	New("!").Apply(el, `a!.br!b\.br\c`)
	if len(el.ChildElements()) != 1 || el.ChildElements()[0].Tail() != `b\.br\c` {
		t.Errorf("text = %q, children = %d", el.Text(), len(el.ChildElements()))
	}
}

func TestNoEscapeCharacter(t *testing.T) {
	el := etree.NewElement("TX")
	New("").Apply(el, `a\.br\b\X41\`)
	if el.Text() != `a\.br\b\X41\` || len(el.ChildElements()) != 0 {
		t.Errorf("empty escape character rewrote text to %q", el.Text())
	}
}

func TestFixCharRefs(t *testing.T) {
	tests := []struct {
		in, want string
	}{
		{"<a>&amp;#x0d;</a>", "<a>&#x0d;</a>"},
		{"<a>&amp;#x41;&amp;#x42;</a>", "<a>&#x41;&#x42;</a>"},
		{"<a>&amp;amp;</a>", "<a>&amp;amp;</a>"},
		{"<a>&amp;#x4;</a>", "<a>&amp;#x4;</a>"},
	}
	for _, tt := range tests {
		if got := FixCharRefs(tt.in); got != tt.want {
			t.Errorf("FixCharRefs(%q) = %q, want %q", tt.in, got, tt.want)
		}
	}
}
