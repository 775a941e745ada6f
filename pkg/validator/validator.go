// Package validator provides an HL7 v2.x vertical bar message validator that
// also converts the message to its v2.xml form.
package validator

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/beevik/etree"

	"github.com/gofhir/hl7validator"
	"github.com/gofhir/hl7validator/cache"
	"github.com/gofhir/hl7validator/pkg/escape"
	"github.com/gofhir/hl7validator/pkg/field"
	"github.com/gofhir/hl7validator/pkg/issue"
	"github.com/gofhir/hl7validator/pkg/loader"
	"github.com/gofhir/hl7validator/pkg/location"
	"github.com/gofhir/hl7validator/pkg/logger"
	"github.com/gofhir/hl7validator/pkg/message"
	"github.com/gofhir/hl7validator/pkg/primitive"
	"github.com/gofhir/hl7validator/pkg/registry"
	"github.com/gofhir/hl7validator/pkg/structural"
	"github.com/gofhir/hl7validator/pkg/terminology"
)

// Namespace is the v2.xml namespace of the output document.
const Namespace = "urn:hl7-org:v2xml"

// XSINamespace is the XML Schema instance namespace.
const XSINamespace = "http://www.w3.org/2001/XMLSchema-instance"

// DefaultVersion is the HL7 version whose schema set is loaded when no
// schema location is given.
const DefaultVersion = string(hl7validator.DefaultHL7Version)

// Validator validates messages against one schema set. It is safe for
// concurrent use: every Validate call gets its own cursor and output tree.
type Validator struct {
	registry     *registry.Registry
	termRegistry *terminology.Registry
	config       *Config

	// escape rewriters by escape character
	escapes *cache.Cache[string, *escape.Rewriter]
}

// Config holds the validator configuration.
type Config struct {
	Version             string               // HL7 version, e.g. "2.4"
	SchemaDir           string               // Schema set directory, .tgz bundle or URL
	SchemaBase          string               // Directory of versioned schema sets
	Source              loader.Source        // Already opened schema set; wins over SchemaDir
	Sink                issue.Sink           // Default destination of report lines
	GrammarCacheSize    int                  // Parsed message grammars kept in memory
	TerminologyProvider terminology.Provider // Answers tables missing from hl7Tables.csv
	Locations           bool                 // Fill line/column of issue locations
}

// Option is a functional option for configuring the validator.
type Option func(*Config)

// WithVersion sets the HL7 version whose schema set is loaded from the
// schema base directory. It has no effect when a schema set location is
// given.
func WithVersion(version string) Option {
	return func(c *Config) {
		c.Version = version
	}
}

// WithSchemaBase sets the directory holding versioned schema sets
// (v2.4, v2.5.tgz, ...).
func WithSchemaBase(dir string) Option {
	return func(c *Config) {
		c.SchemaBase = dir
	}
}

// WithSchemaDir sets the schema set location.
func WithSchemaDir(dir string) Option {
	return func(c *Config) {
		c.SchemaDir = dir
	}
}

// WithSource uses an already opened schema set.
func WithSource(src loader.Source) Option {
	return func(c *Config) {
		c.Source = src
	}
}

// WithSink sets the default destination of report lines.
func WithSink(sink issue.Sink) Option {
	return func(c *Config) {
		c.Sink = sink
	}
}

// WithCacheSize sets the number of parsed message grammars kept in memory.
func WithCacheSize(n int) Option {
	return func(c *Config) {
		c.GrammarCacheSize = n
	}
}

// WithTerminologyProvider sets an external provider for code tables that
// are not configured in hl7Tables.csv.
func WithTerminologyProvider(provider terminology.Provider) Option {
	return func(c *Config) {
		c.TerminologyProvider = provider
	}
}

// WithLocations enables line/column enrichment of issue locations.
func WithLocations(enabled bool) Option {
	return func(c *Config) {
		c.Locations = enabled
	}
}

// validateConfig holds per-call validation options.
type validateConfig struct {
	sink issue.Sink
}

// ValidateOption configures a single Validate call.
type ValidateOption func(*validateConfig)

// ValidateWithSink sends the report lines of this call to sink instead of
// the configured default.
func ValidateWithSink(sink issue.Sink) ValidateOption {
	return func(c *validateConfig) {
		c.sink = sink
	}
}

// New loads the schema set and creates a Validator. Any defect of the
// schema set is reported as registry.ErrSchema.
func New(opts ...Option) (*Validator, error) {
	startTime := time.Now()

	config := &Config{
		Version:   DefaultVersion,
		Locations: true,
	}
	for _, opt := range opts {
		opt(config)
	}

	src, err := openSource(config)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", registry.ErrSchema, err)
	}

	reg, err := registry.Load(src, config.GrammarCacheSize)
	if err != nil {
		return nil, err
	}
	stats := reg.Stats()
	logger.Info("  Indexed %d segments, %d datatypes, %d message types", stats.Segments, stats.DataTypes, stats.MessageTypes)
	logger.Debug("  %d field lengths, %d datatype lengths", stats.FieldLengths, stats.DataTypeLengths)

	termReg := terminology.NewRegistry()
	if err := termReg.Load(src); err != nil {
		return nil, err
	}
	logger.Debug("  Indexed %d code tables, %d value sets", termReg.TableCount(), termReg.ValueSetCount())
	if config.TerminologyProvider != nil {
		termReg.SetProvider(config.TerminologyProvider)
		logger.Debug("  External terminology provider configured")
	}

	logger.Info("Validator ready in %v", time.Since(startTime).Round(time.Millisecond))

	return &Validator{
		registry:     reg,
		termRegistry: termReg,
		config:       config,
		escapes:      cache.New[string, *escape.Rewriter](8),
	}, nil
}

func openSource(config *Config) (loader.Source, error) {
	switch {
	case config.Source != nil:
		return config.Source, nil
	case config.SchemaDir != "":
		logger.Info("Loading schema set %s", config.SchemaDir)
		return loader.Open(config.SchemaDir)
	default:
		l := loader.NewLoader(config.SchemaBase)
		logger.Info("Loading HL7 v%s schema set from %s", config.Version, l.BasePath())
		return l.LoadVersion(config.Version)
	}
}

// Validate validates one message and converts it to v2.xml. Content
// problems are returned as issues of the Result. The error is non-nil only
// when the message cannot be parsed at all (message.ErrMalformedMessage)
// or the schema set is defective (registry.ErrSchema).
func (v *Validator) Validate(ctx context.Context, raw []byte, opts ...ValidateOption) (*Result, error) {
	startTime := time.Now()

	vc := validateConfig{sink: v.config.Sink}
	for _, opt := range opts {
		opt(&vc)
	}

	if err := ctx.Err(); err != nil {
		return nil, err
	}

	text, charset, err := message.Decode(raw)
	switch {
	case errors.Is(err, message.ErrUnknownCharset):
		logger.Warn("Unsupported character set %q in MSH-18, reading the message as is", charset)
	case err != nil:
		return nil, err
	}

	msg, err := message.Parse(text, v.registry)
	if err != nil {
		return nil, err
	}

	grammar, err := v.registry.Grammar(msg.Structure)
	if errors.Is(err, registry.ErrUnknownStructure) {
		return nil, fmt.Errorf("%w: %w", message.ErrMalformedMessage, err)
	}
	if err != nil {
		return nil, err
	}

	logger.Debug("Matching %s against %s: %s", msg.Type+"^"+msg.Trigger, msg.Structure, structural.Summary(msg.Segments))

	result := issue.NewResult()
	rec := issue.NewRecorder(result, vc.sink)
	escapes, _ := v.escapes.GetOrLoad(msg.Encoding.Escape, func() (*escape.Rewriter, error) {
		return escape.New(msg.Encoding.Escape), nil
	})
	decomposer := field.New(v.registry, v.termRegistry, msg.Encoding, primitive.New(escapes), rec)
	matcher := structural.NewMatcher(grammar, decomposer, rec, msg.Segments)

	root, err := matcher.MatchMessage(ctx)
	if err != nil {
		return nil, err
	}
	setRootAttributes(root, msg.Structure)

	if v.config.Locations {
		location.EnrichIssues(result, msg.Segments, msg.Encoding)
	}

	doc := etree.NewDocument()
	doc.SetRoot(root)

	result.Stats = &issue.Stats{
		Structure:   msg.Structure,
		Segments:    len(msg.Segments),
		MessageSize: len(raw),
		Duration:    time.Since(startTime).Nanoseconds(),
	}

	logger.Info("Validated %s (%d segments) in %.3fms: %d errors, %d warnings",
		msg.Structure,
		len(msg.Segments),
		result.Stats.DurationMs(),
		result.ErrorCount(),
		result.WarningCount(),
	)

	return &Result{Result: result, Message: msg, Document: doc}, nil
}

// ValidateString validates a message held in a string.
func (v *Validator) ValidateString(ctx context.Context, text string, opts ...ValidateOption) (*Result, error) {
	return v.Validate(ctx, []byte(text), opts...)
}

func setRootAttributes(root *etree.Element, structure string) {
	root.CreateAttr("xmlns", Namespace)
	root.CreateAttr("xmlns:xsi", XSINamespace)
	root.CreateAttr("xsi:schemaLocation", Namespace+" "+structure+".xsd")
}

// Version returns the configured HL7 version.
func (v *Validator) Version() string {
	return v.config.Version
}

// Registry returns the underlying schema registry.
func (v *Validator) Registry() *registry.Registry {
	return v.registry
}

// Terminology returns the code table and value set registry.
func (v *Validator) Terminology() *terminology.Registry {
	return v.termRegistry
}

// Config returns the validator configuration.
func (v *Validator) Config() *Config {
	return v.config
}
