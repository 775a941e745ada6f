// Package escape rewrites HL7 escape sequences in free text values.
//
// Character escapes (\Xhh..\ and \Zhh..\) become XML numeric character
// references spliced into the text. Formatting escapes (\H\, \N\, \.br\,
// \.sp n\, \.in n\, \.ti n\) become <escape V="..."/> children of the
// element holding the text, with the surrounding text kept as text and tails.
package escape

import (
	"regexp"
	"strings"

	"github.com/beevik/etree"
)

// ElementTag is the tag of the child element created for a markup escape.
const ElementTag = "escape"

// ValueAttr is the attribute of an escape element holding the escape code.
const ValueAttr = "V"

// markupCodes are the formatting escape bodies, in match precedence order.
var markupCodes = []string{
	`(H)`,
	`(N)`,
	`(\.br)`,
	`(\.sp\s*\d+)`,
	`(\.in\s*[-+]?\d+)`,
	`(\.ti\s*[-+]?\d+)`,
}

// charRefFix matches a character reference whose ampersand was escaped by
// XML text serialization.
var charRefFix = regexp.MustCompile(`&amp;(#x([0-9A-Fa-f][0-9A-Fa-f])+;)`)

// Rewriter rewrites escape sequences delimited by one escape character.
// A Rewriter is immutable and safe for concurrent use.
type Rewriter struct {
	charRefs []*regexp.Regexp
	markup   []*regexp.Regexp
}

// New creates a Rewriter for the given escape character. An empty escape
// character yields a Rewriter that leaves text unchanged.
func New(escapeChar string) *Rewriter {
	r := &Rewriter{}
	if escapeChar == "" {
		return r
	}
	esc := regexp.QuoteMeta(escapeChar)
	for _, prefix := range []string{"X", "Z"} {
		r.charRefs = append(r.charRefs,
			regexp.MustCompile(esc+prefix+`((?:[0-9A-Fa-f][0-9A-Fa-f])+)`+esc))
	}
	for _, code := range markupCodes {
		r.markup = append(r.markup, regexp.MustCompile(esc+code+esc))
	}
	return r
}

// CharRefs replaces every character escape in text with one numeric
// character reference per pair of hex digits, e.g. \X0D0A\ becomes
// "&#x0d;&#x0a;".
func (r *Rewriter) CharRefs(text string) string {
	for _, re := range r.charRefs {
		text = re.ReplaceAllStringFunc(text, func(m string) string {
			hex := re.FindStringSubmatch(m)[1]
			var b strings.Builder
			for i := 0; i+1 < len(hex); i += 2 {
				b.WriteString("&#x")
				b.WriteString(strings.ToLower(hex[i : i+2]))
				b.WriteByte(';')
			}
			return b.String()
		})
	}
	return text
}

// Apply sets text as the content of el, rewriting character escapes in
// place and turning each formatting escape into an escape child element.
// The text following an escape becomes that child's tail.
func (r *Rewriter) Apply(el *etree.Element, text string) {
	text = r.CharRefs(text)
	start, end, code := r.nextMarkup(text)
	if start < 0 {
		el.SetText(text)
		return
	}
	el.SetText(text[:start])
	for {
		child := el.CreateElement(ElementTag)
		child.CreateAttr(ValueAttr, code)
		text = text[end:]
		start, end, code = r.nextMarkup(text)
		if start < 0 {
			child.SetTail(text)
			return
		}
		child.SetTail(text[:start])
	}
}

// nextMarkup finds the earliest formatting escape in text. When two
// patterns match at the same offset the earlier pattern wins. start is -1
// when there is none.
func (r *Rewriter) nextMarkup(text string) (start, end int, code string) {
	start = -1
	for _, re := range r.markup {
		m := re.FindStringSubmatchIndex(text)
		if m == nil || (start >= 0 && m[0] >= start) {
			continue
		}
		start, end, code = m[0], m[1], text[m[2]:m[3]]
	}
	return start, end, code
}

// FixCharRefs undoes the escaping of character references by XML text
// serialization: "&amp;#x0d;" becomes "&#x0d;".
func FixCharRefs(xml string) string {
	return charRefFix.ReplaceAllString(xml, "&$1")
}
