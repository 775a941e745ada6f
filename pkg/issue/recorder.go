package issue

import (
	"fmt"
	"io"
	"strings"
	"sync"

	"github.com/beevik/etree"
)

// Sink receives one report line per diagnostic.
type Sink interface {
	Report(text string)
}

// SinkFunc adapts a function to the Sink interface.
type SinkFunc func(text string)

// Report calls f(text).
func (f SinkFunc) Report(text string) { f(text) }

// WriterSink writes each report line, newline terminated, to an io.Writer.
// It is safe for use by concurrent validations sharing one writer.
type WriterSink struct {
	mu sync.Mutex
	w  io.Writer
}

// NewWriterSink creates a sink writing to w.
func NewWriterSink(w io.Writer) *WriterSink {
	return &WriterSink{w: w}
}

// Report writes text followed by a newline.
func (s *WriterSink) Report(text string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	_, _ = fmt.Fprintln(s.w, text)
}

// Discard is a Sink that drops every line.
var Discard Sink = SinkFunc(func(string) {})

// Recorder emits diagnostics in both places they are visible: as a comment
// under the offending element of the output tree and as a report line.
// Every emitted issue is also kept in the Result.
type Recorder struct {
	result *Result
	sink   Sink
}

// NewRecorder creates a Recorder appending to result and reporting to sink.
// A nil sink discards report lines.
func NewRecorder(result *Result, sink Sink) *Recorder {
	if result == nil {
		result = NewResult()
	}
	if sink == nil {
		sink = Discard
	}
	return &Recorder{result: result, sink: sink}
}

// Emit records iss. When el is non-nil the diagnostics text is appended to
// it as an XML comment.
func (r *Recorder) Emit(el *etree.Element, iss Issue) {
	if el != nil {
		el.CreateComment(CommentText(iss.Diagnostics))
	}
	r.result.AddIssue(iss)
	r.sink.Report(iss.Diagnostics)
}

// Raise builds an issue from the catalogue and emits it.
func (r *Recorder) Raise(el *etree.Element, id DiagnosticID, params map[string]any, loc *Location) {
	r.Emit(el, New(id, params, loc))
}

// Result returns the result the recorder appends to.
func (r *Recorder) Result() *Result {
	return r.result
}

// CommentText makes text legal as XML comment content: "--" may not appear
// and the content may not end in "-".
func CommentText(text string) string {
	for strings.Contains(text, "--") {
		text = strings.ReplaceAll(text, "--", "- -")
	}
	if strings.HasSuffix(text, "-") {
		text += " "
	}
	return text
}
