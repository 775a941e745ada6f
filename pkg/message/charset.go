package message

import (
	"bytes"
	"errors"
	"fmt"
	"strings"

	"golang.org/x/text/encoding"
	"golang.org/x/text/encoding/charmap"
	"golang.org/x/text/encoding/unicode"
)

// ErrUnknownCharset is returned by Decode when MSH-18 names a character set
// it cannot convert. The text is still returned as is.
var ErrUnknownCharset = errors.New("unknown character set")

// charsets maps HL7 table 0211 character set names to decoders. A nil
// encoding means the bytes are already UTF-8 compatible. UTF-16 text is
// converted before MSH-18 is read, so by then it is UTF-8.
var charsets = map[string]encoding.Encoding{
	"":               nil,
	"ASCII":          nil,
	"UNICODE UTF-8":  nil,
	"UNICODE":        nil,
	"UNICODE UTF-16": nil,
	"8859/1":         charmap.ISO8859_1,
	"8859/2":         charmap.ISO8859_2,
	"8859/3":         charmap.ISO8859_3,
	"8859/4":         charmap.ISO8859_4,
	"8859/5":         charmap.ISO8859_5,
	"8859/6":         charmap.ISO8859_6,
	"8859/7":         charmap.ISO8859_7,
	"8859/8":         charmap.ISO8859_8,
	"8859/9":         charmap.ISO8859_9,
	"8859/15":        charmap.ISO8859_15,
}

var (
	bomUTF8    = []byte{0xEF, 0xBB, 0xBF}
	bomUTF16BE = []byte{0xFE, 0xFF}
	bomUTF16LE = []byte{0xFF, 0xFE}
)

// Decode converts raw message bytes to text. UTF-16 input is recognised by
// its byte order mark; otherwise the character set named in MSH-18 is used.
// It returns the decoded text and the MSH-18 character set name.
func Decode(raw []byte) (string, string, error) {
	if bytes.HasPrefix(raw, bomUTF16BE) || bytes.HasPrefix(raw, bomUTF16LE) {
		out, err := unicode.UTF16(unicode.BigEndian, unicode.ExpectBOM).NewDecoder().Bytes(raw)
		if err != nil {
			return "", "", fmt.Errorf("%w: invalid UTF-16 text: %v", ErrMalformedMessage, err)
		}
		text := string(out)
		return text, headerCharset([]byte(text)), nil
	}
	raw = bytes.TrimPrefix(raw, bomUTF8)

	name := headerCharset(raw)
	enc, ok := charsets[strings.ToUpper(name)]
	if !ok {
		return string(raw), name, fmt.Errorf("%w (%s)", ErrUnknownCharset, name)
	}
	if enc == nil {
		return string(raw), name, nil
	}
	out, err := enc.NewDecoder().Bytes(raw)
	if err != nil {
		return "", name, fmt.Errorf("%w: cannot decode %s text: %v", ErrMalformedMessage, name, err)
	}
	return string(out), name, nil
}

// headerCharset returns the first repetition of MSH-18, or "" when the
// header does not carry one. It works on the raw bytes because every
// supported single byte character set is ASCII compatible.
func headerCharset(raw []byte) string {
	if len(raw) > 0 && raw[0] == StartBlock {
		raw = raw[1:]
	}
	if end := bytes.IndexAny(raw, "\r\n"); end >= 0 {
		raw = raw[:end]
	}
	if len(raw) < 8 || string(raw[:3]) != "MSH" {
		return ""
	}
	sep := raw[3:4]
	fields := bytes.Split(raw, sep)
	if len(fields) < 18 || len(fields[1]) < 2 {
		return ""
	}
	first, _, _ := bytes.Cut(fields[17], fields[1][1:2])
	return strings.TrimSpace(string(first))
}
