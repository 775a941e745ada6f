// Package hl7validator validates HL7 v2.x vertical bar messages against the
// HL7 v2.xml XML Schema set of their version and converts them to v2.xml.
//
// Every problem found is reported twice: as a line in the validation
// report and as an XML comment under the offending element of the v2.xml
// output. A message that cannot be parsed at all (no MSH, unknown message
// type) produces no output.
//
// # Quick Start
//
//	import (
//	    "github.com/gofhir/hl7validator/pkg/issue"
//	    "github.com/gofhir/hl7validator/pkg/validator"
//	)
//
//	v, err := validator.New(validator.WithSchemaDir("schema/v2.4"))
//	if err != nil {
//	    log.Fatal(err)
//	}
//
//	result, err := v.Validate(ctx, raw,
//	    validator.ValidateWithSink(issue.NewWriterSink(os.Stderr)))
//	if err != nil {
//	    log.Fatal(err) // malformed message
//	}
//	result.WriteXML(os.Stdout)
//
// # Packages
//
//   - pkg/loader: schema sets from directories, .tgz bundles or URLs
//   - pkg/registry: segments, fields, datatypes and message grammars
//   - pkg/terminology: code tables and coding system value sets
//   - pkg/message: character sets, MLLP framing, MSH parsing
//   - pkg/structural: grammar matching of the segment sequence
//   - pkg/field: field, component and sub-component decomposition
//   - pkg/primitive: format rules of the primitive datatypes
//   - pkg/escape: escape sequences of free text
//   - pkg/outcome: FHIR OperationOutcome reports and FHIRPath assertions
//   - pkg/location: line and column of issue coordinates
//   - worker: parallel batch validation
//   - cache: LRU cache of parsed grammars and escape rewriters
//   - pool: pooled builders of HL7 coordinate names
//   - cmd/hl7validator: the command line tool
//
// # Functional Options
//
//	v, err := validator.New(
//	    validator.WithVersion("2.5"),
//	    validator.WithCacheSize(128),
//	    validator.WithTerminologyProvider(provider),
//	)
//
// The root package holds the tool version, the known HL7 versions and the
// run Metrics.
package hl7validator
