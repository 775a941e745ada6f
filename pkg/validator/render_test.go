package validator

import (
	"bytes"
	"context"
	"strings"
	"testing"

	"github.com/beevik/etree"
)

func TestXMLIndentation(t *testing.T) {
	v := newValidator(t)

	result, err := v.ValidateString(context.Background(), header+"ACK^A01|1|P|2.4\rMSA|AA|1")
	if err != nil {
		t.Fatalf("Validate() error = %v", err)
	}

	want := `<ACK xmlns="urn:hl7-org:v2xml" xmlns:xsi="http://www.w3.org/2001/XMLSchema-instance" xsi:schemaLocation="urn:hl7-org:v2xml ACK.xsd">
    <MSH>
        <MSH.1>|</MSH.1>
        <MSH.2>^~\&amp;</MSH.2>
        <MSH.3>
            <HD.1>SEND</HD.1>
        </MSH.3>
        <MSH.4>
            <HD.1>FAC</HD.1>
        </MSH.4>
        <MSH.5>
            <HD.1>REC</HD.1>
        </MSH.5>
        <MSH.6>
            <HD.1>FAC</HD.1>
        </MSH.6>
        <MSH.7>
            <TS.1>20230101</TS.1>
        </MSH.7>
        <MSH.9>
            <CM_MSG.1>ACK</CM_MSG.1>
            <CM_MSG.2>A01</CM_MSG.2>
        </MSH.9>
        <MSH.10>1</MSH.10>
        <MSH.11>
            <PT.1>P</PT.1>
        </MSH.11>
        <MSH.12>
            <VID.1>2.4</VID.1>
        </MSH.12>
    </MSH>
    <MSA>
        <MSA.1>AA</MSA.1>
        <MSA.2>1</MSA.2>
    </MSA>
</ACK>`

	got, err := result.XML()
	if err != nil {
		t.Fatal(err)
	}
	if got != want {
		t.Errorf("XML() =\n%s\nwant\n%s", got, want)
	}

	again, _ := result.XML()
	if again != got {
		t.Error("rendering twice changed the output")
	}

	var buf bytes.Buffer
	if _, err := result.WriteXML(&buf); err != nil {
		t.Fatal(err)
	}
	if buf.String() != want+"\n" {
		t.Error("WriteXML() output differs from XML()")
	}
}

func TestXMLEscapes(t *testing.T) {
	v := newValidator(t)

	msg := header + "CHC^C01|1|P|2.4\r" +
		"PV1|1|I\r" +
		`NTE|1||a\X0D0A\b` + "\r" +
		`NTE|2||first\.br\second` + "\r" +
		"NTE|3||x < y"
	result, err := v.ValidateString(context.Background(), msg)
	if err != nil {
		t.Fatalf("Validate() error = %v", err)
	}
	got, err := result.XML()
	if err != nil {
		t.Fatal(err)
	}

	for _, want := range []string{
		"<NTE.3>a&#x0d;&#x0a;b</NTE.3>",
		`<NTE.3>first<escape V=".br"/>second</NTE.3>`,
		"<NTE.3>x &lt; y</NTE.3>",
	} {
		if !strings.Contains(got, want) {
			t.Errorf("output lacks %s:\n%s", want, got)
		}
	}
	if strings.HasPrefix(got, "<?xml") {
		t.Error("output carries an XML declaration")
	}
}

func TestIndentKeepsText(t *testing.T) {
	root := etree.NewElement("A")
	b := root.CreateElement("B")
	b.SetText("keep ")
	b.CreateElement("C")
	b.CreateText(" tail")
	root.CreateComment("note")

	indent(root, 0)

	doc := etree.NewDocument()
	doc.SetRoot(root)
	got, err := doc.WriteToString()
	if err != nil {
		t.Fatal(err)
	}
	want := "<A>\n    <B>keep <C/> tail</B>\n    <!--note-->\n</A>"
	if got != want {
		t.Errorf("indent() =\n%q\nwant\n%q", got, want)
	}
}

func TestXMLEmptyDocument(t *testing.T) {
	r := &Result{Document: etree.NewDocument()}
	got, err := r.XML()
	if err != nil || got != "" {
		t.Errorf("XML() = %q, %v", got, err)
	}
}
