// Package message turns raw HL7 v2.x vertical bar text into segments and
// derives the encoding characters and message structure from MSH.
package message

import (
	"bytes"
	"errors"
	"fmt"
	"strings"
)

// MLLP framing bytes.
const (
	StartBlock = 0x0B
	EndBlock   = 0x1C
)

// MinHeaderLength is the shortest acceptable MSH segment.
const MinHeaderLength = 20

// MinHeaderFields is the number of MSH fields up to and including MSH-12.
const MinHeaderFields = 12

// ErrMalformedMessage is returned when a message cannot be minimally parsed.
// Content problems in a parseable message are diagnostics, not errors.
var ErrMalformedMessage = errors.New("malformed message")

// Encoding holds the separators of one message. Escape and SubComponent may
// be empty, which disables escape rewriting and sub-component splitting.
type Encoding struct {
	Field        string
	Component    string
	Repetition   string
	Escape       string
	SubComponent string
}

// Message is a preprocessed message ready for matching.
type Message struct {
	// Segments are the raw segment texts in message order.
	Segments []string
	Encoding Encoding

	// Header fields taken from MSH-9, MSH-12 and MSH-18.
	Type      string
	Trigger   string
	Structure string
	Version   string
	Charset   string
}

// StructureResolver maps a message type and trigger event to a message
// structure. The schema registry implements it.
type StructureResolver interface {
	HasMessageType(msgType string) bool
	MessageStructure(msgType, trigger string) (string, bool)
}

// StripMLLP removes MLLP framing: a leading start block byte and a trailing
// end block byte followed by a carriage return. Trailing line breaks after
// the end block are tolerated. Unframed input is returned unchanged.
func StripMLLP(raw []byte) []byte {
	if len(raw) < 2 || raw[0] != StartBlock {
		return raw
	}
	body := bytes.TrimRight(raw[1:], "\r\n")
	if len(body) == 0 || body[len(body)-1] != EndBlock {
		return raw
	}
	return body[:len(body)-1]
}

// Split breaks message text into segments. CR, LF and CRLF all end a
// segment; trailing white space is dropped from each segment and blank
// lines are skipped.
func Split(text string) []string {
	text = strings.ReplaceAll(text, "\r\n", "\r")
	text = strings.ReplaceAll(text, "\n", "\r")
	lines := strings.Split(text, "\r")
	segments := make([]string, 0, len(lines))
	for _, line := range lines {
		line = strings.TrimRight(line, " \t\v\f")
		if line == "" {
			continue
		}
		segments = append(segments, line)
	}
	return segments
}

// Code returns the three character code of a segment.
func Code(segment string) string {
	if len(segment) < 3 {
		return segment
	}
	return segment[:3]
}

// ParseEncoding reads the separators from the MSH segment. The field
// separator is the fourth character; the field that follows supplies the
// component, repetition, escape and sub-component separators in that order.
func ParseEncoding(msh string) (Encoding, error) {
	if len(msh) < 4 {
		return Encoding{}, fmt.Errorf("%w: no field separator", ErrMalformedMessage)
	}
	enc := Encoding{Field: msh[3:4]}
	chars, _, _ := strings.Cut(msh[4:], enc.Field)
	if len(chars) < 2 {
		return Encoding{}, fmt.Errorf("%w: MSH-2 field less than 2 characters long", ErrMalformedMessage)
	}
	enc.Component = chars[0:1]
	enc.Repetition = chars[1:2]
	if len(chars) >= 3 {
		enc.Escape = chars[2:3]
	}
	if len(chars) >= 4 {
		enc.SubComponent = chars[3:4]
	}
	return enc, nil
}

// Parse preprocesses decoded message text: MLLP framing is removed, the
// text is split into segments, the encoding characters are derived from MSH
// and the message structure is resolved from MSH-9.
func Parse(text string, resolver StructureResolver) (*Message, error) {
	text = string(StripMLLP([]byte(text)))
	segments := Split(text)
	if len(segments) == 0 {
		return nil, fmt.Errorf("%w: no segments", ErrMalformedMessage)
	}
	msh := segments[0]
	if len(msh) < MinHeaderLength {
		return nil, fmt.Errorf("%w: first segment too short - less than %d characters", ErrMalformedMessage, MinHeaderLength)
	}
	if Code(msh) != "MSH" {
		return nil, fmt.Errorf("%w: first segment not MSH", ErrMalformedMessage)
	}

	enc, err := ParseEncoding(msh)
	if err != nil {
		return nil, err
	}
	fields := strings.Split(msh, enc.Field)
	if len(fields) < MinHeaderFields {
		return nil, fmt.Errorf("%w: MSH segment too short - no version", ErrMalformedMessage)
	}

	msg := &Message{
		Segments: segments,
		Encoding: enc,
		Version:  fields[11],
	}
	if len(fields) > 17 {
		msg.Charset, _, _ = strings.Cut(fields[17], enc.Repetition)
	}
	if err := msg.resolveStructure(fields[8], resolver); err != nil {
		return nil, err
	}
	return msg, nil
}

// resolveStructure determines the message structure from MSH-9.
func (m *Message) resolveStructure(msh9 string, resolver StructureResolver) error {
	if msh9 == "" {
		return fmt.Errorf("%w: missing MSH-9.1 component [Message Code]", ErrMalformedMessage)
	}
	if msh9 == "ACK" {
		m.Type, m.Structure = "ACK", "ACK"
		return nil
	}

	parts := strings.Split(msh9, m.Encoding.Component)
	if len(parts) == 1 {
		return fmt.Errorf("%w: missing MSH-9.2 component [Trigger Event] and MSH-9.3 component [Message Structure]", ErrMalformedMessage)
	}
	m.Type, m.Trigger = parts[0], parts[1]
	if len(parts) > 2 && parts[2] != "" {
		m.Structure = parts[2]
		return nil
	}

	switch {
	case m.Type == "":
		return fmt.Errorf("%w: missing MSH-9.1 component [Message Type]", ErrMalformedMessage)
	case m.Trigger == "" && m.Type == "ACK":
		m.Structure = "ACK"
		return nil
	case m.Trigger == "":
		return fmt.Errorf("%w: missing MSH-9.2 component [Trigger Event] and MSH-9.3 component [Message Structure]", ErrMalformedMessage)
	case resolver == nil || !resolver.HasMessageType(m.Type):
		return fmt.Errorf("%w: unknown MSH-9.1 [Message Type] (%s)", ErrMalformedMessage, m.Type)
	}
	structure, ok := resolver.MessageStructure(m.Type, m.Trigger)
	if !ok {
		return fmt.Errorf("%w: unknown MSH-9.2 [Message Trigger] (%s)", ErrMalformedMessage, m.Trigger)
	}
	m.Structure = structure
	return nil
}
