package main

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"time"

	"github.com/spf13/cobra"

	hl7validator "github.com/gofhir/hl7validator"
	"github.com/gofhir/hl7validator/pkg/issue"
	"github.com/gofhir/hl7validator/pkg/logger"
	"github.com/gofhir/hl7validator/pkg/message"
	"github.com/gofhir/hl7validator/pkg/outcome"
	"github.com/gofhir/hl7validator/pkg/validator"
	"github.com/gofhir/hl7validator/worker"
)

// Report formats.
const (
	formatText = "text"
	formatFHIR = "fhir"
)

// stdinName marks standard input in the input list.
const stdinName = "-"

// runner validates the inputs of one command invocation.
type runner struct {
	opts      *options
	validator *validator.Validator
	assertion *outcome.Assertion
	metrics   *hl7validator.Metrics
	summary   *summary

	stdin  io.Reader
	stdout io.Writer
	stderr io.Writer

	assertFailed bool
}

func run(cmd *cobra.Command, o *options, args []string) error {
	if o.configFile != "" {
		cfg, err := loadConfig(o.configFile)
		if err != nil {
			return &exitError{code: exitConfig, err: err}
		}
		cfg.apply(o, cmd.Flags().Changed)
	}
	if err := checkOptions(o); err != nil {
		return err
	}

	closeLog, err := setupLogging(o, cmd.ErrOrStderr())
	if err != nil {
		return err
	}
	defer closeLog()

	inputs, dirMode, err := resolveInputs(o, args)
	if err != nil {
		return err
	}

	var assertion *outcome.Assertion
	if o.assert != "" {
		if assertion, err = outcome.NewAssertion(o.assert); err != nil {
			return &exitError{code: exitUsage, err: err}
		}
	}

	v, err := validator.New(validatorOptions(o)...)
	if err != nil {
		return &exitError{code: exitConfig, err: err}
	}

	// With standard input the console belongs to the v2.xml document.
	summaryOut := cmd.OutOrStdout()
	for _, in := range inputs {
		if in == stdinName {
			summaryOut = cmd.ErrOrStderr()
		}
	}

	r := &runner{
		opts:      o,
		validator: v,
		assertion: assertion,
		metrics:   hl7validator.NewMetrics(),
		summary:   newSummary(summaryOut, useColor(o.color, summaryOut)),
		stdin:     cmd.InOrStdin(),
		stdout:    cmd.OutOrStdout(),
		stderr:    cmd.ErrOrStderr(),
	}

	if dirMode {
		err = r.runBatch(cmd.Context(), inputs)
	} else {
		err = r.runFiles(cmd.Context(), inputs)
	}

	r.metrics.RecordCacheStats(v.Registry().GrammarCacheStats())
	if !o.quiet {
		r.summary.totals(r.metrics)
	}
	logMetrics(r.metrics)

	if err != nil {
		return err
	}
	if r.assertFailed {
		return &exitError{code: exitAssertion, err: fmt.Errorf("%w: %s", errAssertionFailed, assertion)}
	}
	return nil
}

func checkOptions(o *options) error {
	if o.verbose < 0 || o.verbose > 4 {
		return withCode(exitUsage, "invalid verbose level %d, want 0..4", o.verbose)
	}
	switch o.format {
	case formatText, formatFHIR:
	default:
		return withCode(exitUsage, "invalid format %q, want text or fhir", o.format)
	}
	switch o.color {
	case "auto", "on", "off":
	default:
		return withCode(exitUsage, "invalid color %q, want auto, on or off", o.color)
	}
	if v := hl7validator.ParseHL7Version(o.hl7Version); !v.IsValid() {
		return withCode(exitConfig, "unsupported HL7 version %q", o.hl7Version)
	}
	return nil
}

// setupLogging sets the log level and, with a log file, truncates the file
// and sends the log there. The returned function closes the file.
func setupLogging(o *options, stderr io.Writer) (func(), error) {
	logger.SetLevel(logger.FromVerbosity(o.verbose))
	logger.SetOutput(stderr)
	if o.logFile == "" {
		return func() {}, nil
	}

	path := filepath.Join(o.logDir, o.logFile)
	f, err := os.Create(path)
	if err != nil {
		return nil, withCode(exitCantCreate, "cannot create log file %s: %w", path, err)
	}
	logger.SetOutput(f)
	logger.Debug("Logging set up")
	return func() {
		logger.SetOutput(stderr)
		_ = f.Close()
	}, nil
}

func validatorOptions(o *options) []validator.Option {
	opts := []validator.Option{
		validator.WithVersion(hl7validator.ParseHL7Version(o.hl7Version).String()),
		validator.WithCacheSize(o.cacheSize),
	}
	if o.schemaDir != "" {
		opts = append(opts, validator.WithSchemaDir(o.schemaDir))
	} else {
		opts = append(opts, validator.WithSchemaBase(o.schemaBase))
	}
	return opts
}

// resolveInputs lists the messages to validate. A lone --inputDir selects
// every file in the directory; --inputFile and positional arguments are
// taken relative to --inputDir when it is given; with neither, the message
// comes from standard input.
func resolveInputs(o *options, args []string) ([]string, bool, error) {
	var names []string
	if o.inputFile != "" {
		names = append(names, o.inputFile)
	}
	names = append(names, args...)

	if len(names) == 0 {
		if o.inputDir == "" {
			return []string{stdinName}, false, nil
		}
		files, err := listDir(o.inputDir)
		return files, true, err
	}

	inputs := make([]string, 0, len(names))
	for _, name := range names {
		if name != stdinName && o.inputDir != "" {
			name = filepath.Join(o.inputDir, name)
		}
		inputs = append(inputs, name)
	}
	return inputs, false, nil
}

func listDir(dir string) ([]string, error) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		return nil, withCode(exitNoInput, "cannot read input directory: %w", err)
	}
	var files []string
	for _, e := range entries {
		if e.IsDir() {
			continue
		}
		files = append(files, filepath.Join(dir, e.Name()))
	}
	sort.Strings(files)
	return files, nil
}

// runFiles validates the inputs one after another and stops at the first
// message that cannot be processed.
func (r *runner) runFiles(ctx context.Context, inputs []string) error {
	for _, in := range inputs {
		if in == stdinName {
			if err := r.runStdin(ctx); err != nil {
				return err
			}
			continue
		}

		data, err := readInput(in)
		if err != nil {
			return err
		}
		var report bytes.Buffer
		res, err := r.validator.Validate(ctx, data, validator.ValidateWithSink(issue.NewWriterSink(&report)))
		if err != nil {
			r.failed(in, err)
			return err
		}
		if err := r.writeOutputs(in, res, report.Bytes()); err != nil {
			return err
		}
		r.done(in, res)
	}
	return nil
}

// runStdin validates one message from standard input. The v2.xml document
// goes to standard output and the report to standard error.
func (r *runner) runStdin(ctx context.Context) error {
	data, err := io.ReadAll(r.stdin)
	if err != nil {
		return withCode(exitNoInput, "cannot read standard input: %w", err)
	}
	res, err := r.validator.Validate(ctx, data, validator.ValidateWithSink(issue.NewWriterSink(r.stderr)))
	if err != nil {
		r.failed(stdinName, err)
		return err
	}
	if _, err := res.WriteXML(r.stdout); err != nil {
		return withCode(exitCantCreate, "cannot write document: %w", err)
	}
	if r.opts.format == formatFHIR {
		data, err := outcome.JSON(res.Result)
		if err != nil {
			return err
		}
		_, _ = fmt.Fprintln(r.stderr, string(data))
	}
	r.done("stdin", res)
	return nil
}

// runBatch validates every file of the input directory in parallel. A
// malformed message is reported and skipped; the run then ends with the
// data error exit code once all other messages are written.
func (r *runner) runBatch(ctx context.Context, inputs []string) error {
	jobs := make([]worker.Job, len(inputs))
	reports := make([]*bytes.Buffer, len(inputs))
	for i, in := range inputs {
		data, err := readInput(in)
		if err != nil {
			return err
		}
		reports[i] = &bytes.Buffer{}
		jobs[i] = worker.Job{
			Name:    in,
			Data:    data,
			Options: []validator.ValidateOption{validator.ValidateWithSink(issue.NewWriterSink(reports[i]))},
		}
	}

	bv := worker.NewBatchValidator(r.validator.Validate, r.opts.jobs)
	logger.Info("Validating %d messages with %d workers", len(jobs), bv.Workers())
	batch, err := bv.ValidateBatch(ctx, jobs)
	if err != nil {
		return err
	}
	logger.Info("Batch finished in %v", time.Duration(batch.TotalDuration).Round(time.Millisecond))

	malformed := 0
	for i, jr := range batch.Results {
		if jr == nil {
			continue
		}
		if jr.Error != nil {
			malformed++
			logger.Error("%s: %v", jr.Name, jr.Error)
			r.failed(jr.Name, jr.Error)
			continue
		}
		if err := r.writeOutputs(jr.Name, jr.Result, reports[i].Bytes()); err != nil {
			return err
		}
		r.done(jr.Name, jr.Result)
	}
	if malformed > 0 {
		return withCode(exitDataErr, "%d of %d messages malformed", malformed, len(jobs))
	}
	return nil
}

func readInput(path string) ([]byte, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, withCode(exitNoInput, "cannot open input: %w", err)
	}
	return data, nil
}

// writeOutputs writes the report, the v2.xml document and, for the fhir
// format, the OperationOutcome of one message.
func (r *runner) writeOutputs(input string, res *validator.Result, report []byte) error {
	if err := writeFile(reportPath(r.opts.reportDir, input, ".rpt"), report); err != nil {
		return err
	}

	xml, err := res.XML()
	if err != nil {
		return err
	}
	logger.Debug("%s", xml)
	if err := writeFile(outputPath(r.opts.outputDir, input), []byte(xml+"\n")); err != nil {
		return err
	}

	if r.opts.format == formatFHIR {
		data, err := outcome.JSON(res.Result)
		if err != nil {
			return err
		}
		if err := writeFile(reportPath(r.opts.reportDir, input, ".json"), append(data, '\n')); err != nil {
			return err
		}
	}
	return nil
}

func writeFile(path string, data []byte) error {
	if err := os.WriteFile(path, data, 0o644); err != nil { //nolint:gosec // reports are meant to be readable
		return withCode(exitCantCreate, "cannot create output file: %w", err)
	}
	return nil
}

// reportPath names the report of input in dir: the input's base name with
// ext, prefixed with "report_" when that would overwrite the input.
func reportPath(dir, input, ext string) string {
	return artifactPath(dir, input, ext, "report_")
}

// outputPath names the v2.xml document of input in dir, prefixed with
// "XML_" when that would overwrite the input.
func outputPath(dir, input string) string {
	return artifactPath(dir, input, ".xml", "XML_")
}

func artifactPath(dir, input, ext, prefix string) string {
	base := filepath.Base(input)
	name := strings.TrimSuffix(base, filepath.Ext(base)) + ext
	path := filepath.Join(dir, name)
	if samePath(path, input) {
		path = filepath.Join(dir, prefix+name)
	}
	return path
}

func samePath(a, b string) bool {
	if filepath.Clean(a) == filepath.Clean(b) {
		return true
	}
	absA, errA := filepath.Abs(a)
	absB, errB := filepath.Abs(b)
	return errA == nil && errB == nil && absA == absB
}

// done records a validated message and checks the assertion.
func (r *runner) done(name string, res *validator.Result) {
	r.metrics.RecordResult(res.Result)
	logger.Info("%s: %s with %d issues", name, res.Stats.Structure, len(res.Issues))

	if r.assertion != nil {
		ok, err := r.assertion.Check(res.Result)
		if err != nil {
			logger.Error("%s: %v", name, err)
		}
		if !ok {
			r.assertFailed = true
			logger.Error("%s: assertion %s not satisfied", name, r.assertion)
		}
	}

	if !r.opts.quiet {
		r.summary.message(name, res)
	}
}

// failed records a message that could not be validated.
func (r *runner) failed(name string, err error) {
	if errors.Is(err, message.ErrMalformedMessage) {
		r.metrics.RecordMalformed()
	}
	if !r.opts.quiet {
		r.summary.failure(name, err)
	}
}

func logMetrics(m *hl7validator.Metrics) {
	if !logger.Enabled(logger.LevelInfo) {
		return
	}
	s := m.Snapshot()
	logger.Info("Messages: %d validated, %d valid, %d malformed", s.ValidationsTotal, s.ValidationsValid, s.MalformedTotal)
	logger.Info("Issues: %d errors, %d warnings, %d information", s.ErrorsTotal, s.WarningsTotal, s.InfosTotal)
	logger.Info("Time: avg %v, min %v, max %v",
		time.Duration(s.AvgValidationTimeNs), time.Duration(s.MinValidationTimeNs), time.Duration(s.MaxValidationTimeNs))
	logger.Info("Grammar cache: %d hits, %d misses (%.0f%%)", s.CacheHits, s.CacheMisses, s.CacheHitRate*100)
	for _, st := range s.Structures {
		logger.Info("  %s: %d messages, %d issues", st.Name, st.Messages, st.IssuesFound)
	}
}
