// Package structural aligns the segments of a message against the grammar
// of its message structure and builds the group/segment skeleton of the
// output tree.
//
// The matcher is a recursive-descent parser whose grammar is data: each
// group of a registry.Grammar is a sequence or a choice of segment and
// group references with occurrence bounds. Segments are consumed through a
// Cursor that only moves forward; segments that fit nowhere are reported as
// unexpected and kept as comments so matching can continue.
package structural

import (
	"context"
	"strings"

	"github.com/beevik/etree"

	"github.com/gofhir/hl7validator/pkg/issue"
	"github.com/gofhir/hl7validator/pkg/message"
	"github.com/gofhir/hl7validator/pkg/registry"
)

// MaxDepth is the recursion ceiling. Past it every segment is unexpected,
// which bounds the work done for cyclic grammars.
const MaxDepth = 200

// SegmentBuilder builds the element of one matched segment. segNo is the
// 1-based position of the segment in the message.
type SegmentBuilder interface {
	Segment(ctx context.Context, text string, segNo int) (*etree.Element, error)
}

// Cursor is the position of the next unconsumed segment. It never moves
// backwards.
type Cursor struct {
	segments []string
	next     int
}

// NewCursor creates a cursor at the first of segments.
func NewCursor(segments []string) *Cursor {
	return &Cursor{segments: segments}
}

// Done reports whether every segment has been consumed.
func (c *Cursor) Done() bool {
	return c.next >= len(c.segments)
}

// Segment returns the text of the current segment.
func (c *Cursor) Segment() string {
	return c.segments[c.next]
}

// Code returns the code of the current segment.
func (c *Cursor) Code() string {
	return message.Code(c.segments[c.next])
}

// Position returns the 1-based position of the current segment.
func (c *Cursor) Position() int {
	return c.next + 1
}

// Consumed returns the number of segments consumed so far.
func (c *Cursor) Consumed() int {
	return c.next
}

func (c *Cursor) advance() {
	c.next++
}

// Matcher matches the segments of one message. It holds the message's
// cursor and must not be shared between messages.
type Matcher struct {
	grammar  *registry.Grammar
	segments SegmentBuilder
	rec      *issue.Recorder
	cur      *Cursor
}

// NewMatcher creates a Matcher for segments against grammar. Matched
// segments are built by b; diagnostics go to rec.
func NewMatcher(grammar *registry.Grammar, b SegmentBuilder, rec *issue.Recorder, segments []string) *Matcher {
	return &Matcher{
		grammar:  grammar,
		segments: b,
		rec:      rec,
		cur:      NewCursor(segments),
	}
}

// Cursor returns the matcher's cursor.
func (m *Matcher) Cursor() *Cursor {
	return m.cur
}

// MatchMessage matches the whole message against the grammar root and
// reports every segment left over as unexpected under the root element.
func (m *Matcher) MatchMessage(ctx context.Context) (*etree.Element, error) {
	root, err := m.Match(ctx, m.grammar.Root, m.grammar.Structure, false, 0)
	if err != nil {
		return nil, err
	}
	if root == nil {
		root = etree.NewElement(m.grammar.Structure)
	}
	for !m.cur.Done() {
		m.unexpected(root)
	}
	return root, nil
}

// Match matches content, the members of the group tag, from the current
// segment on. It returns the group element, or nil when nothing matched.
//
// When optional is true a required member that does not match ends the
// group and is left to the caller. Otherwise the current segment is
// reported as unexpected, consumed, and matching resumes at the same
// member. Errors are schema defects and abort the match.
func (m *Matcher) Match(ctx context.Context, content registry.Content, tag string, optional bool, depth int) (*etree.Element, error) {
	if m.cur.Done() {
		return nil, nil
	}
	if depth > MaxDepth {
		el := etree.NewElement(tag)
		m.unexpected(el)
		return el, nil
	}
	if content.IsChoice() {
		return m.choice(ctx, content, tag, optional, depth+1)
	}
	return m.sequence(ctx, content, tag, optional, depth+1)
}

func (m *Matcher) sequence(ctx context.Context, content registry.Content, tag string, optional bool, depth int) (*etree.Element, error) {
	var el *etree.Element
	members := content.Members
	at, occurs := 0, 0

	for at < len(members) && !m.cur.Done() {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		node := members[at]

		var child *etree.Element
		var err error
		switch {
		case node.Ref == m.cur.Code():
			child, err = m.segment(ctx)
		case node.IsGroup():
			// Repeats beyond the minimum, and groups opening an optional
			// list, may come back empty.
			groupOptional := node.Optional() || occurs >= node.MinOccurs || (optional && el == nil)
			child, err = m.group(ctx, node.Ref, groupOptional, depth)
		}
		if err != nil {
			return nil, err
		}

		if child != nil {
			el = ensure(el, tag)
			el.AddChild(child)
			occurs++
			if m.cur.Done() {
				m.missing(el, tag, members, at, occurs)
				return el, nil
			}
			if !node.Allows(occurs + 1) {
				at, occurs = at+1, 0
			}
			continue
		}

		if node.Optional() || occurs >= node.MinOccurs {
			at, occurs = at+1, 0
			continue
		}
		if node.IsGroup() || optional {
			// A required group that never starts is omitted silently.
			return el, nil
		}
		el = ensure(el, tag)
		m.unexpected(el)
		if m.cur.Done() {
			m.missing(el, tag, members, at, occurs)
			return el, nil
		}
	}
	return el, nil
}

// choice matches the first member that fits the current segment. Only one
// member matches and it does not repeat.
func (m *Matcher) choice(ctx context.Context, content registry.Content, tag string, optional bool, depth int) (*etree.Element, error) {
	var el *etree.Element
	for !m.cur.Done() {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		for _, node := range content.Members {
			var child *etree.Element
			var err error
			switch {
			case node.Ref == m.cur.Code():
				child, err = m.segment(ctx)
			case node.IsGroup():
				child, err = m.group(ctx, node.Ref, true, depth)
			}
			if err != nil {
				return nil, err
			}
			if child != nil {
				el = ensure(el, tag)
				el.AddChild(child)
				return el, nil
			}
		}
		if optional {
			return el, nil
		}
		el = ensure(el, tag)
		m.unexpected(el)
	}
	return el, nil
}

// segment builds the current segment and consumes it.
func (m *Matcher) segment(ctx context.Context) (*etree.Element, error) {
	el, err := m.segments.Segment(ctx, m.cur.Segment(), m.cur.Position())
	if err != nil {
		return nil, err
	}
	m.cur.advance()
	return el, nil
}

func (m *Matcher) group(ctx context.Context, ref string, optional bool, depth int) (*etree.Element, error) {
	content, err := m.grammar.Content(ref)
	if err != nil {
		return nil, err
	}
	return m.Match(ctx, content, ref, optional, depth)
}

// unexpected reports the current segment as unexpected under el and
// consumes it.
func (m *Matcher) unexpected(el *etree.Element) {
	loc := &issue.Location{Segment: m.cur.Position(), SegmentID: m.cur.Code()}
	m.rec.Raise(el, issue.DiagUnexpectedSegment, map[string]any{"text": m.cur.Segment()}, loc)
	m.cur.advance()
}

// missing reports the required members of a list still outstanding when
// the input runs out. The member at index at has matched occurs times.
func (m *Matcher) missing(el *etree.Element, tag string, members []registry.Node, at, occurs int) {
	for i := at; i < len(members); i++ {
		node := members[i]
		count := 0
		if i == at {
			count = occurs
		}
		if count >= node.MinOccurs {
			continue
		}
		id := issue.DiagMissingRequiredSegment
		if node.IsGroup() {
			id = issue.DiagMissingRequiredGroup
		}
		m.rec.Raise(el, id, map[string]any{"ref": node.Ref, "tag": tag}, nil)
	}
}

func ensure(el *etree.Element, tag string) *etree.Element {
	if el != nil {
		return el
	}
	return etree.NewElement(tag)
}

// Summary renders the codes of segments for log lines, e.g. "MSH,PID,PV1".
func Summary(segments []string) string {
	codes := make([]string, len(segments))
	for i, s := range segments {
		codes[i] = message.Code(s)
	}
	return strings.Join(codes, ",")
}
