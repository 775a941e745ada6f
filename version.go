package hl7validator

import "strings"

// Version is the release of the validator.
const Version = "0.3.0"

// HL7Version represents an HL7 v2.x version with a v2.xml schema set.
type HL7Version string

// Versions for which v2.xml schema sets are published.
const (
	V231 HL7Version = "2.3.1"
	V24  HL7Version = "2.4"
	V25  HL7Version = "2.5"
	V251 HL7Version = "2.5.1"
	V26  HL7Version = "2.6"
	V27  HL7Version = "2.7"
	V271 HL7Version = "2.7.1"
	V28  HL7Version = "2.8"
)

// DefaultHL7Version is used when no schema set is named.
const DefaultHL7Version = V24

var knownVersions = []HL7Version{V231, V24, V25, V251, V26, V27, V271, V28}

// ParseHL7Version normalises a version as written in MSH-12 or in a schema
// directory name: "2.4", "v2.4" and "2.4^ISO" all yield V24.
func ParseHL7Version(s string) HL7Version {
	s = strings.TrimSpace(s)
	if i := strings.IndexAny(s, "^&~"); i >= 0 {
		s = s[:i]
	}
	return HL7Version(strings.TrimPrefix(strings.ToLower(s), "v"))
}

// String returns the version string.
func (v HL7Version) String() string {
	return string(v)
}

// IsValid returns true if a v2.xml schema set exists for this version.
func (v HL7Version) IsValid() bool {
	for _, known := range knownVersions {
		if v == known {
			return true
		}
	}
	return false
}

// SchemaDir returns the conventional name of the schema set directory,
// e.g. "v2.4".
func (v HL7Version) SchemaDir() string {
	return "v" + string(v)
}

// KnownVersions returns the versions for which schema sets are published.
func KnownVersions() []HL7Version {
	return append([]HL7Version(nil), knownVersions...)
}
