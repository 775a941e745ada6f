// Package schematest writes a small HL7 v2.4-shaped schema set for tests.
//
// The set covers the segments, datatypes and message structures used by the
// package tests: ADT_A01 (with a repeating PROCEDURE group), ORU_R01 (nested
// groups), ACK, and CHC_C01 whose body is a choice between PID and PV1.
package schematest

import (
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"testing"
)

const xsdHeader = `<?xml version="1.0" encoding="UTF-8"?>
<xsd:schema xmlns:xsd="http://www.w3.org/2001/XMLSchema" xmlns="urn:hl7-org:v2xml" targetNamespace="urn:hl7-org:v2xml">
`

const xsdFooter = "</xsd:schema>\n"

// Unit is a field or datatype component definition.
type Unit struct {
	Type  string
	Table string
	Min   int
	Max   string // "" means 1
}

func u(typ string, min int) Unit { return Unit{Type: typ, Min: min} }

// Segments maps a segment code to its fields in order.
var Segments = map[string][]Unit{
	"MSH": {
		u("ST", 1), u("ST", 1), u("HD", 0), u("HD", 0), u("HD", 0), u("HD", 0),
		u("TS", 1), u("ST", 0), u("CM_MSG", 1), u("ST", 1), u("PT", 1), u("VID", 1),
		u("NM", 0), u("ST", 0), u("ID", 0), u("ID", 0), u("ID", 0),
		{Type: "ID", Max: "unbounded"},
	},
	"EVN": {{Type: "ID", Table: "HL70003"}, u("TS", 1)},
	"PID": {
		u("SI", 0), u("CX", 0), {Type: "CX", Min: 1, Max: "unbounded"}, u("CX", 0),
		{Type: "XPN", Min: 1, Max: "unbounded"}, u("XPN", 0), u("TS", 0),
		{Type: "IS", Table: "HL70001"}, u("XPN", 0), u("CE", 0), u("XAD", 0), u("IS", 0),
		{Type: "XTN", Max: "unbounded"},
	},
	"PV1": {u("SI", 0), {Type: "IS", Table: "HL70004", Min: 1}},
	"NK1": {u("SI", 1), u("XPN", 0)},
	"AL1": {u("SI", 1), u("IS", 0), u("CE", 1)},
	"PR1": {u("SI", 1), u("IS", 0)},
	"ROL": {u("EI", 0), u("ID", 0)},
	"OBR": {u("SI", 0), u("EI", 0), u("EI", 0), u("CE", 1)},
	"OBX": {
		u("SI", 0), {Type: "ID", Table: "HL70125"}, u("CE", 1), u("ST", 0),
		{Type: "varies", Max: "unbounded"}, u("CE", 0),
	},
	"NTE": {u("SI", 0), u("ID", 0), {Type: "FT", Max: "unbounded"}},
	"MSA": {u("ID", 1), u("ST", 1)},
	"ERR": {u("ST", 0)},
	// ZDF has a field with no fixed Type.
	"ZDF": {u("", 0)},
}

// DataTypes maps a composite datatype to its components in order.
var DataTypes = map[string][]Unit{
	"TS":     {u("DTM", 0), u("ID", 0)},
	"HD":     {u("IS", 0), u("ST", 0), {Type: "ID", Table: "HL70301"}},
	"CM_MSG": {u("ID", 0), u("ID", 0), u("ID", 0)},
	"PT":     {u("ID", 0), u("ID", 0)},
	"VID":    {u("ID", 0), u("CE", 0), u("CE", 0)},
	"CX":     {u("ST", 1), u("ST", 0), u("ST", 0), u("HD", 0), {Type: "ID", Table: "HL70203"}},
	"XPN":    {u("FN", 0), u("ST", 0), u("ST", 0)},
	"FN":     {u("ST", 0), u("ST", 0)},
	"CE":     {u("ST", 0), u("ST", 0), u("ID", 0), u("ST", 0), u("ST", 0), u("ID", 0)},
	"XTN":    {u("TN", 0), u("ID", 0)},
	"XAD":    {u("SAD", 0), u("ST", 0), u("ST", 0)},
	"SAD":    {u("ST", 0), u("ST", 0)},
	"EI":     {u("ST", 0)},
	"SN":     {u("ST", 0), u("NM", 0), u("ST", 0), u("NM", 0)},
	"ED":     {u("HD", 0), u("ID", 0), u("ID", 0), u("ID", 0), u("TX", 0)},
	"RI":     {u("IS", 0), u("ST", 0)},
	// CW has a component with no fixed Type.
	"CW": {u("ST", 0), u("", 0)},
}

// Atomic lists the primitive datatypes declared without a sequence.
var Atomic = []string{"ST", "ID", "IS", "SI", "NM", "DT", "TM", "DTM", "TX", "FT", "TN"}

// Member is one entry of a message grammar list.
type Member struct {
	Ref string
	Min int
	Max string
}

// List is a named sequence or choice in a message structure schema.
type List struct {
	Name   string
	Choice bool
	Items  []Member
}

func m(ref string, min int, max string) Member { return Member{Ref: ref, Min: min, Max: max} }

// Structures maps a message structure to its lists. The first list is the
// top-level content.
var Structures = map[string][]List{
	"ADT_A01": {
		{Name: "ADT_A01", Items: []Member{
			m("MSH", 1, "1"), m("EVN", 1, "1"), m("PID", 1, "1"), m("NK1", 0, "unbounded"),
			m("PV1", 1, "1"), m("OBX", 0, "unbounded"), m("AL1", 0, "unbounded"),
			m("ADT_A01.PROCEDURE", 0, "unbounded"),
		}},
		{Name: "ADT_A01.PROCEDURE", Items: []Member{m("PR1", 1, "1"), m("ROL", 0, "unbounded")}},
	},
	"ORU_R01": {
		{Name: "ORU_R01", Items: []Member{m("MSH", 1, "1"), m("ORU_R01.PATIENT_RESULT", 1, "unbounded")}},
		{Name: "ORU_R01.PATIENT_RESULT", Items: []Member{
			m("ORU_R01.PATIENT", 0, "1"), m("ORU_R01.ORDER_OBSERVATION", 1, "unbounded"),
		}},
		{Name: "ORU_R01.PATIENT", Items: []Member{m("PID", 1, "1"), m("NTE", 0, "unbounded")}},
		{Name: "ORU_R01.ORDER_OBSERVATION", Items: []Member{
			m("OBR", 1, "1"), m("NTE", 0, "unbounded"), m("ORU_R01.OBSERVATION", 0, "unbounded"),
		}},
		{Name: "ORU_R01.OBSERVATION", Items: []Member{m("OBX", 1, "1"), m("NTE", 0, "unbounded")}},
	},
	"ACK": {
		{Name: "ACK", Items: []Member{m("MSH", 1, "1"), m("MSA", 1, "1"), m("ERR", 0, "1")}},
	},
	"CHC_C01": {
		{Name: "CHC_C01", Items: []Member{m("MSH", 1, "1"), m("CHC_C01.CHOICE", 1, "1"), m("NTE", 0, "unbounded")}},
		{Name: "CHC_C01.CHOICE", Choice: true, Items: []Member{m("PID", 1, "1"), m("PV1", 1, "1")}},
	},
}

// Tables holds the tab-separated tables of the schema set.
var Tables = map[string]string{
	"hl7Table0354.csv": "Structure\tEvents\n" +
		"ADT_A01\tA01, A04, A08, A13\n" +
		"ADT_A02\tA02\n" +
		"ORU_R01\tR01\n" +
		"ACK\tA01-A05\n" +
		"CHC_C01\tC01\n",
	"hl7Tables.csv": "Type\tTable\tDescription\tCode\n" +
		"HL7\tHL70003\tEvent type\tA01\n" +
		"\t\t\tA04\n" +
		"User\tHL70001\tAdministrative sex\tF\n" +
		"\t\t\tM\n" +
		"\t\t\tU\n" +
		"User\tHL70004\tPatient class\tI\n" +
		"\t\t\tO\n" +
		"HL7\tHL70125\tValue type\tST\n" +
		"\t\t\tNM\n" +
		"\t\t\tCE\n" +
		"\t\t\tTX\n" +
		"\t\t\tFT\n" +
		"\t\t\tSN\n" +
		"HL7\tHL70203\tIdentifier type\tMR\n" +
		"\t\t\tPI\n" +
		"HL7\tHL70301\tUniversal ID type\tISO\n" +
		"\t\t\tDNS\n" +
		"User\tHL70099\tEmpty table\t\n",
	"hl7Fields.csv": "Segment\tField\tLength\n" +
		"PID\t3\t999999\n" +
		"PID\t7\t26\n" +
		"PID\t8\t1\n" +
		"MSH\t10\t20\n",
	"hl7DataTypes.csv": "DataType\n" +
		"CX\n" +
		"1\t15\n" +
		"CE\n" +
		"1\t20\n" +
		"3\t20\n",
	"valueSets.csv": "Field\tSystem\tIdentifier\n" +
		"OBX-3\tLN\t1234-5\n" +
		"\t\t2345-7\n" +
		"\tL\tGLU\n",
}

// Files renders the whole schema set as slash-separated name -> content.
func Files() map[string]string {
	files := make(map[string]string, len(Tables)+len(Structures)+3)
	for name, content := range Tables {
		files[name] = content
	}
	files["xsd/segments.xsd"] = segmentsXSD()
	files["xsd/fields.xsd"] = fieldsXSD()
	files["xsd/datatypes.xsd"] = dataTypesXSD()
	for structure, lists := range Structures {
		files["xsd/"+structure+".xsd"] = StructureXSD(lists)
	}
	return files
}

// Dir writes the schema set into a new temporary directory.
func Dir(tb testing.TB) string {
	tb.Helper()
	dir := tb.TempDir()
	for name, content := range Files() {
		WriteFile(tb, dir, name, content)
	}
	return dir
}

// WriteFile writes content to dir/name, creating parent directories.
func WriteFile(tb testing.TB, dir, name, content string) {
	tb.Helper()
	full := filepath.Join(dir, filepath.FromSlash(name))
	if err := os.MkdirAll(filepath.Dir(full), 0o755); err != nil {
		tb.Fatal(err)
	}
	if err := os.WriteFile(full, []byte(content), 0o644); err != nil {
		tb.Fatal(err)
	}
}

func maxOf(unit Unit) string {
	if unit.Max == "" {
		return "1"
	}
	return unit.Max
}

func segmentsXSD() string {
	var b strings.Builder
	b.WriteString(xsdHeader)
	for _, code := range sortedKeys(Segments) {
		fmt.Fprintf(&b, "  <xsd:complexType name=\"%s.CONTENT\">\n    <xsd:sequence>\n", code)
		for i, unit := range Segments[code] {
			fmt.Fprintf(&b, "      <xsd:element ref=\"%s.%d\" minOccurs=\"%d\" maxOccurs=\"%s\"/>\n", code, i+1, unit.Min, maxOf(unit))
		}
		fmt.Fprintf(&b, "    </xsd:sequence>\n  </xsd:complexType>\n  <xsd:element name=\"%s\" type=\"%s.CONTENT\"/>\n", code, code)
	}
	b.WriteString(xsdFooter)
	return b.String()
}

func attributeGroup(b *strings.Builder, ref string, unit Unit) {
	fmt.Fprintf(b, "  <xsd:attributeGroup name=\"%s.ATTRIBUTES\">\n", ref)
	if unit.Type != "" {
		fmt.Fprintf(b, "    <xsd:attribute name=\"Type\" type=\"xsd:token\" fixed=\"%s\"/>\n", unit.Type)
	}
	if unit.Table != "" {
		fmt.Fprintf(b, "    <xsd:attribute name=\"Table\" type=\"xsd:token\" fixed=\"%s\"/>\n", unit.Table)
	}
	b.WriteString("  </xsd:attributeGroup>\n")
}

func fieldsXSD() string {
	var b strings.Builder
	b.WriteString(xsdHeader)
	for _, code := range sortedKeys(Segments) {
		for i, unit := range Segments[code] {
			attributeGroup(&b, fmt.Sprintf("%s.%d", code, i+1), unit)
		}
	}
	b.WriteString(xsdFooter)
	return b.String()
}

func dataTypesXSD() string {
	var b strings.Builder
	b.WriteString(xsdHeader)
	for _, code := range Atomic {
		fmt.Fprintf(&b, "  <xsd:complexType name=\"%s\">\n    <xsd:simpleContent>\n      <xsd:extension base=\"xsd:string\"/>\n    </xsd:simpleContent>\n  </xsd:complexType>\n", code)
	}
	b.WriteString("  <xsd:complexType name=\"varies\" mixed=\"true\">\n    <xsd:sequence>\n      <xsd:any processContents=\"lax\" minOccurs=\"0\" maxOccurs=\"unbounded\"/>\n    </xsd:sequence>\n  </xsd:complexType>\n")
	for _, code := range sortedKeys(DataTypes) {
		fmt.Fprintf(&b, "  <xsd:complexType name=\"%s\">\n    <xsd:sequence>\n", code)
		for i, unit := range DataTypes[code] {
			fmt.Fprintf(&b, "      <xsd:element ref=\"%s.%d\" minOccurs=\"%d\" maxOccurs=\"1\"/>\n", code, i+1, unit.Min)
		}
		b.WriteString("    </xsd:sequence>\n  </xsd:complexType>\n")
		for i, unit := range DataTypes[code] {
			attributeGroup(&b, fmt.Sprintf("%s.%d", code, i+1), unit)
		}
	}
	b.WriteString(xsdFooter)
	return b.String()
}

// StructureXSD renders the grammar schema of one message structure.
func StructureXSD(lists []List) string {
	var b strings.Builder
	b.WriteString(xsdHeader)
	for _, l := range lists {
		kind := "sequence"
		if l.Choice {
			kind = "choice"
		}
		fmt.Fprintf(&b, "  <xsd:complexType name=\"%s.CONTENT\">\n    <xsd:%s>\n", l.Name, kind)
		for _, item := range l.Items {
			fmt.Fprintf(&b, "      <xsd:element ref=\"%s\" minOccurs=\"%d\" maxOccurs=\"%s\"/>\n", item.Ref, item.Min, item.Max)
		}
		fmt.Fprintf(&b, "    </xsd:%s>\n  </xsd:complexType>\n  <xsd:element name=\"%s\" type=\"%s.CONTENT\"/>\n", kind, l.Name, l.Name)
	}
	b.WriteString(xsdFooter)
	return b.String()
}

func sortedKeys(m map[string][]Unit) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}
