package message

import (
	"errors"
	"strings"
	"testing"

	"golang.org/x/text/encoding/charmap"
)

// structures is a StructureResolver backed by a map.
type structures map[string]map[string]string

func (s structures) HasMessageType(msgType string) bool {
	_, ok := s[msgType]
	return ok
}

func (s structures) MessageStructure(msgType, trigger string) (string, bool) {
	st, ok := s[msgType][trigger]
	return st, ok
}

var testStructures = structures{
	"ADT": {"A01": "ADT_A01", "A04": "ADT_A01"},
	"ORU": {"R01": "ORU_R01"},
}

const header = `MSH|^~\&|A|B|C|D|20230101||`

func TestStripMLLP(t *testing.T) {
	tests := []struct {
		name string
		in   string
		want string
	}{
		{"framed", "\x0bMSH|x\x1c\r", "MSH|x"},
		{"trailing newline", "\x0bMSH|x\x1c\r\n", "MSH|x"},
		{"unframed", "MSH|x\r", "MSH|x\r"},
		{"start only", "\x0bMSH|x\r", "\x0bMSH|x\r"},
		{"empty", "", ""},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := string(StripMLLP([]byte(tt.in))); got != tt.want {
				t.Errorf("StripMLLP(%q) = %q, want %q", tt.in, got, tt.want)
			}
		})
	}
}

func TestSplit(t *testing.T) {
	got := Split("MSH|a  \rPID|1\r\nPV1|2\n\nNTE|3\r")
	want := []string{"MSH|a", "PID|1", "PV1|2", "NTE|3"}
	if strings.Join(got, ",") != strings.Join(want, ",") {
		t.Errorf("Split() = %q, want %q", got, want)
	}
}

func TestParseEncoding(t *testing.T) {
	tests := []struct {
		name    string
		msh     string
		want    Encoding
		wantErr bool
	}{
		{"all five", `MSH|^~\&|A`, Encoding{"|", "^", "~", `\`, "&"}, false},
		{"no subcomponent", `MSH|^~\|A`, Encoding{"|", "^", "~", `\`, ""}, false},
		{"no escape", `MSH|^~|A`, Encoding{"|", "^", "~", "", ""}, false},
		{"other separators", `MSH#$%!*#A`, Encoding{"#", "$", "%", "!", "*"}, false},
		{"one character", `MSH|^|A`, Encoding{}, true},
		{"too short", `MSH`, Encoding{}, true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := ParseEncoding(tt.msh)
			if (err != nil) != tt.wantErr {
				t.Fatalf("ParseEncoding() error = %v, wantErr %v", err, tt.wantErr)
			}
			if err != nil && !errors.Is(err, ErrMalformedMessage) {
				t.Errorf("error %v is not ErrMalformedMessage", err)
			}
			if got != tt.want {
				t.Errorf("ParseEncoding() = %+v, want %+v", got, tt.want)
			}
		})
	}
}

func TestParseStructure(t *testing.T) {
	tests := []struct {
		name string
		msh9 string
		want string
	}{
		{"lookup", "ADT^A01", "ADT_A01"},
		{"lookup shared structure", "ADT^A04", "ADT_A01"},
		{"explicit structure", "ADT^A04^ADT_A05", "ADT_A05"},
		{"empty explicit structure", "ORU^R01^", "ORU_R01"},
		{"bare ACK", "ACK", "ACK"},
		{"ACK without trigger", "ACK^", "ACK"},
		{"ACK with trigger and structure", "ACK^A01^ACK", "ACK"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			msg, err := Parse(header+tt.msh9+"|1|P|2.4\rPID|1", testStructures)
			if err != nil {
				t.Fatalf("Parse() error = %v", err)
			}
			if msg.Structure != tt.want {
				t.Errorf("Structure = %q, want %q", msg.Structure, tt.want)
			}
		})
	}
}

func TestParseMalformed(t *testing.T) {
	tests := []struct {
		name string
		text string
	}{
		{"empty", "\r\n"},
		{"short first segment", "MSH|^~\\&|A|B|C\r"},
		{"not MSH", "PID|^~\\&|A|B|C|D|20230101||ADT^A01|1|P|2.4"},
		{"one encoding character", "MSH|^|A|B|C|D|20230101||ADT^A01|1|P|2.4"},
		{"no version", header + "ADT^A01|1"},
		{"no message type", header + "|1|P|2.4"},
		{"type only", header + "ADT|1|P|2.4"},
		{"no type", header + "^A01|1|P|2.4"},
		{"no trigger", header + "ADT^|1|P|2.4"},
		{"unknown type", header + "ZZZ^A01|1|P|2.4"},
		{"unknown trigger", header + "ADT^A99|1|P|2.4"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := Parse(tt.text, testStructures)
			if !errors.Is(err, ErrMalformedMessage) {
				t.Errorf("Parse() error = %v, want ErrMalformedMessage", err)
			}
		})
	}
}

func TestParseMessage(t *testing.T) {
	text := "\x0b" + header + "ADT^A01|1|P|2.4||||||8859/1~UNICODE UTF-8\rEVN|A01|20230101\rPID|1\x1c\r"
	msg, err := Parse(text, testStructures)
	if err != nil {
		t.Fatalf("Parse() error = %v", err)
	}
	if len(msg.Segments) != 3 || Code(msg.Segments[2]) != "PID" {
		t.Errorf("Segments = %q", msg.Segments)
	}
	if msg.Type != "ADT" || msg.Trigger != "A01" || msg.Version != "2.4" {
		t.Errorf("header = %s^%s version %s", msg.Type, msg.Trigger, msg.Version)
	}
	if msg.Charset != "8859/1" {
		t.Errorf("Charset = %q, want 8859/1", msg.Charset)
	}
	if msg.Encoding.Escape != `\` || msg.Encoding.SubComponent != "&" {
		t.Errorf("Encoding = %+v", msg.Encoding)
	}
}

func TestDecode(t *testing.T) {
	latin, err := charmap.ISO8859_1.NewEncoder().String(header + "ADT^A01|1|P|2.4||||||8859/1\rPID|1||||Müller")
	if err != nil {
		t.Fatal(err)
	}
	text, name, err := Decode([]byte(latin))
	if err != nil {
		t.Fatalf("Decode() error = %v", err)
	}
	if name != "8859/1" || !strings.Contains(text, "Müller") {
		t.Errorf("Decode() = %q, %q", text, name)
	}

	plain := header + "ADT^A01|1|P|2.4\rPID|1"
	text, name, err = Decode([]byte("\xef\xbb\xbf" + plain))
	if err != nil || name != "" || text != plain {
		t.Errorf("Decode(UTF-8 BOM) = %q, %q, %v", text, name, err)
	}

	utf16 := []byte{0xFE, 0xFF}
	for _, r := range plain {
		utf16 = append(utf16, 0, byte(r))
	}
	text, _, err = Decode(utf16)
	if err != nil || text != plain {
		t.Errorf("Decode(UTF-16) = %q, %v", text, err)
	}

	_, name, err = Decode([]byte(header + "ADT^A01|1|P|2.4||||||ISO IR87\rPID|1"))
	if !errors.Is(err, ErrUnknownCharset) || name != "ISO IR87" {
		t.Errorf("Decode(unknown) = %q, %v; want ErrUnknownCharset", name, err)
	}
}
