// Package location finds the line and column of an HL7 coordinate such as
// PID-3.1.2 in the segment text of a message.
package location

import (
	"strconv"
	"strings"
	"unicode/utf8"

	"github.com/gofhir/hl7validator/pkg/issue"
	"github.com/gofhir/hl7validator/pkg/message"
)

// Location represents a position in the message text. Line is the 1-based
// segment number; Column is the 1-based character offset in that segment.
type Location struct {
	Line   int
	Column int
}

// Finder locates coordinates in the segments of one message.
type Finder struct {
	segments []string
	enc      message.Encoding
}

// NewFinder creates a Finder for the segments of a message with encoding enc.
func NewFinder(segments []string, enc message.Encoding) *Finder {
	return &Finder{segments: segments, enc: enc}
}

// Find locates the start of the most specific unit named by loc. It returns
// nil when loc does not name a segment of the message.
func (f *Finder) Find(loc *issue.Location) *Location {
	if loc == nil || loc.Segment < 1 || loc.Segment > len(f.segments) {
		return nil
	}
	text := f.segments[loc.Segment-1]
	offset := 0

	field := lastIndex(loc.Field)
	if field > 0 {
		start, value, ok := f.field(text, field)
		if !ok {
			return f.at(loc.Segment, text, offset)
		}
		offset = start

		if loc.Repetition > 1 {
			start, value, ok = unit(value, f.enc.Repetition, loc.Repetition)
			if !ok {
				return f.at(loc.Segment, text, offset)
			}
			offset += start
		}
		if k := lastIndex(loc.Component); k > 0 {
			start, value, ok = unit(value, f.enc.Component, k)
			if !ok {
				return f.at(loc.Segment, text, offset)
			}
			offset += start
		}
		if l := lastIndex(loc.SubComponent); l > 0 && f.enc.SubComponent != "" {
			if start, _, ok = unit(value, f.enc.SubComponent, l); ok {
				offset += start
			}
		}
	}
	return f.at(loc.Segment, text, offset)
}

func (f *Finder) at(line int, text string, offset int) *Location {
	return &Location{Line: line, Column: utf8.RuneCountInString(text[:offset]) + 1}
}

// field returns the byte offset and value of the 1-based field n. MSH-1 is
// the field separator following the segment code.
func (f *Finder) field(text string, n int) (int, string, bool) {
	if message.Code(text) == "MSH" {
		if n == 1 {
			return 3, f.enc.Field, len(text) > 3
		}
		n--
	}
	return unit(text, f.enc.Field, n+1)
}

// unit returns the byte offset and value of the 1-based part n of text
// split on sep.
func unit(text, sep string, n int) (int, string, bool) {
	if sep == "" {
		return 0, text, n == 1
	}
	offset := 0
	for i := 1; ; i++ {
		end := strings.Index(text[offset:], sep)
		if i == n {
			if end < 0 {
				return offset, text[offset:], true
			}
			return offset, text[offset : offset+end], true
		}
		if end < 0 {
			return 0, "", false
		}
		offset += end + len(sep)
	}
}

// lastIndex returns the trailing position number of a coordinate:
// 3 for "PID-3", 1 for "PID-3.1". It returns 0 when there is none.
func lastIndex(code string) int {
	i := strings.LastIndexAny(code, "-.")
	if i < 0 {
		return 0
	}
	n, err := strconv.Atoi(code[i+1:])
	if err != nil {
		return 0
	}
	return n
}

// EnrichIssues adds line and column information to the issues of result.
func EnrichIssues(result *issue.Result, segments []string, enc message.Encoding) {
	f := NewFinder(segments, enc)
	result.EnrichLocations(func(loc *issue.Location) (int, int, bool) {
		if found := f.Find(loc); found != nil {
			return found.Line, found.Column, true
		}
		return 0, 0, false
	})
}
