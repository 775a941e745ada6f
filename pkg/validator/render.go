package validator

import (
	"io"
	"strings"

	"github.com/beevik/etree"

	"github.com/gofhir/hl7validator/pkg/escape"
	"github.com/gofhir/hl7validator/pkg/issue"
	"github.com/gofhir/hl7validator/pkg/message"
)

// indentUnit is one level of output indentation.
const indentUnit = "    "

// Result is the outcome of validating one message: its issues, the parsed
// message and the v2.xml document.
type Result struct {
	*issue.Result

	Message  *message.Message
	Document *etree.Document
}

// XML renders the v2.xml document. Elements are indented by four spaces per
// level; text that is not whitespace only is never changed.
func (r *Result) XML() (string, error) {
	root := r.Document.Root()
	if root == nil {
		return "", nil
	}
	indent(root, 0)

	doc := etree.NewDocument()
	doc.WriteSettings.CanonicalText = true
	doc.SetRoot(root.Copy())
	s, err := doc.WriteToString()
	if err != nil {
		return "", err
	}
	return escape.FixCharRefs(s), nil
}

// WriteXML writes the rendered document followed by a newline.
func (r *Result) WriteXML(w io.Writer) (int64, error) {
	s, err := r.XML()
	if err != nil {
		return 0, err
	}
	n, err := io.WriteString(w, s+"\n")
	return int64(n), err
}

// indent sets the whitespace-only text and tails of el's subtree to a
// newline and the indentation of the following node.
func indent(el *etree.Element, level int) {
	if !hasNodes(el, 0) {
		return
	}
	inner := "\n" + strings.Repeat(indentUnit, level+1)
	outer := "\n" + strings.Repeat(indentUnit, level)

	setWhitespace(el, 0, inner)
	for i := 0; i < len(el.Child); i++ {
		switch tok := el.Child[i].(type) {
		case *etree.CharData:
			continue
		case *etree.Element:
			indent(tok, level+1)
		}
		if hasNodes(el, i+1) {
			setWhitespace(el, i+1, inner)
		} else {
			setWhitespace(el, i+1, outer)
		}
	}
}

// hasNodes reports whether el has an element or comment child at or after
// index from.
func hasNodes(el *etree.Element, from int) bool {
	for _, tok := range el.Child[from:] {
		switch tok.(type) {
		case *etree.Element, *etree.Comment:
			return true
		}
	}
	return false
}

// setWhitespace makes the character data at index of el's children pad,
// unless it holds more than whitespace.
func setWhitespace(el *etree.Element, index int, pad string) {
	if index < len(el.Child) {
		if cd, ok := el.Child[index].(*etree.CharData); ok {
			if strings.TrimSpace(cd.Data) == "" {
				cd.SetData(pad)
			}
			return
		}
	}
	el.InsertChildAt(index, etree.NewText(pad))
}
