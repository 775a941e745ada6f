// Command hl7validator validates HL7 v2.x vertical bar messages and
// converts them to HL7 v2.xml.
//
// Usage:
//
//	hl7validator -S schema/v2.4 -i message.hl7
//	hl7validator -S schema/v2.4 -I messages/ -R reports/ -O xml/
//	hl7validator -S schema/v2.4 < message.hl7 > message.xml
//	hl7validator --hl7 2.5 --schemaBase schemas/ --format fhir a.hl7 b.hl7
//
// Exit codes follow sysexits: 0 success, 1 assertion failed, 65 malformed
// message, 66 missing input, 73 cannot create output, 78 schema or
// configuration error.
package main

import (
	"context"
	"os"
	"os/signal"

	"github.com/spf13/cobra"
	"golang.org/x/term"

	hl7validator "github.com/gofhir/hl7validator"
	"github.com/gofhir/hl7validator/pkg/logger"
)

// options holds the command line configuration.
type options struct {
	inputDir  string
	inputFile string
	reportDir string
	outputDir string

	schemaDir  string
	schemaBase string
	hl7Version string
	cacheSize  int

	verbose int
	logDir  string
	logFile string

	format     string
	assert     string
	jobs       int
	color      string
	quiet      bool
	configFile string
}

// newRootCmd builds the command with its flags bound to a fresh options.
func newRootCmd() *cobra.Command {
	o := &options{}

	cmd := &cobra.Command{
		Use:   "hl7validator [flags] [file ...]",
		Short: "Validate HL7 v2.x messages and convert them to v2.xml",
		Long: `hl7validator validates HL7 v2.x vertical bar messages against an HL7 v2.xml
schema set and writes the v2.xml conversion of each message.

With no input file and no input directory one message is read from standard
input; its v2.xml document goes to standard output and its report to
standard error. Otherwise each message gets a <name>.rpt report in the
report directory and a <name>.xml document in the output directory.`,
		Version:       hl7validator.Version,
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return run(cmd, o, args)
		},
	}

	flags := cmd.Flags()
	flags.StringVarP(&o.inputDir, "inputDir", "I", "", "directory of messages, or the directory of --inputFile")
	flags.StringVarP(&o.inputFile, "inputFile", "i", "", "message file, or - for standard input")
	flags.StringVarP(&o.reportDir, "reportDir", "R", ".", "directory for report files")
	flags.StringVarP(&o.outputDir, "outputDir", "O", ".", "directory for v2.xml files")
	flags.StringVarP(&o.schemaDir, "schemaDir", "S", "", "schema set directory or .tgz bundle")
	flags.StringVar(&o.schemaBase, "schemaBase", "", "directory of versioned schema sets, used when --schemaDir is not set")
	flags.StringVar(&o.hl7Version, "hl7", string(hl7validator.DefaultHL7Version), "HL7 version loaded from --schemaBase")
	flags.IntVar(&o.cacheSize, "cache", 0, "number of message grammars kept in memory (0 for the default)")
	flags.IntVarP(&o.verbose, "verbose", "v", 2, "logging level 0=fatal 1=error 2=warning 3=info 4=debug")
	flags.StringVarP(&o.logDir, "logDir", "L", ".", "directory of the log file")
	flags.StringVarP(&o.logFile, "logFile", "l", "", "log file name (truncated at start)")
	flags.StringVar(&o.format, "format", formatText, "report format (text|fhir)")
	flags.StringVar(&o.assert, "assert", "", "FHIRPath expression every message's OperationOutcome must satisfy")
	flags.IntVarP(&o.jobs, "jobs", "j", 0, "parallel validations for --inputDir (0 for one per CPU)")
	flags.StringVar(&o.color, "color", "auto", "colorize the console summary (auto|on|off)")
	flags.BoolVarP(&o.quiet, "quiet", "q", false, "suppress the console summary")
	flags.StringVar(&o.configFile, "config", "", "TOML file with defaults for these flags")

	return cmd
}

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
	defer stop()

	if err := newRootCmd().ExecuteContext(ctx); err != nil {
		logger.Fatal("%v", err)
		stop()
		os.Exit(exitCode(err))
	}
}

// isTerminal reports whether f is a terminal.
func isTerminal(f *os.File) bool {
	return term.IsTerminal(int(f.Fd()))
}
