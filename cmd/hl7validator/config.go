package main

import (
	"fmt"
	"strings"

	"github.com/BurntSushi/toml"
)

// fileConfig is the --config TOML file. Every key is a default for the
// flag of the same meaning; flags given on the command line win.
//
//	schema_dir = "schema/v2.4"
//	report_dir = "reports"
//	output_dir = "xml"
//	verbose = 3
//	format = "fhir"
//	assert = "issue.where(severity='error').empty()"
type fileConfig struct {
	InputDir   string `toml:"input_dir"`
	InputFile  string `toml:"input_file"`
	ReportDir  string `toml:"report_dir"`
	OutputDir  string `toml:"output_dir"`
	SchemaDir  string `toml:"schema_dir"`
	SchemaBase string `toml:"schema_base"`
	HL7Version string `toml:"hl7_version"`
	CacheSize  *int   `toml:"cache_size"`
	Verbose    *int   `toml:"verbose"`
	LogDir     string `toml:"log_dir"`
	LogFile    string `toml:"log_file"`
	Format     string `toml:"format"`
	Assert     string `toml:"assert"`
	Jobs       *int   `toml:"jobs"`
	Color      string `toml:"color"`
	Quiet      *bool  `toml:"quiet"`
}

// loadConfig reads a TOML defaults file. Unknown keys are an error so
// that a misspelt key does not silently fall back to the flag default.
func loadConfig(path string) (*fileConfig, error) {
	var cfg fileConfig
	md, err := toml.DecodeFile(path, &cfg)
	if err != nil {
		return nil, fmt.Errorf("failed to read config %s: %w", path, err)
	}
	if undecoded := md.Undecoded(); len(undecoded) > 0 {
		keys := make([]string, len(undecoded))
		for i, key := range undecoded {
			keys[i] = key.String()
		}
		return nil, fmt.Errorf("unknown keys in config %s: %s", path, strings.Join(keys, ", "))
	}
	return &cfg, nil
}

// apply copies the configured values into o for every flag that was not
// set on the command line.
func (c *fileConfig) apply(o *options, changed func(name string) bool) {
	setString := func(flag string, dst *string, value string) {
		if value != "" && !changed(flag) {
			*dst = value
		}
	}
	setInt := func(flag string, dst *int, value *int) {
		if value != nil && !changed(flag) {
			*dst = *value
		}
	}

	setString("inputDir", &o.inputDir, c.InputDir)
	setString("inputFile", &o.inputFile, c.InputFile)
	setString("reportDir", &o.reportDir, c.ReportDir)
	setString("outputDir", &o.outputDir, c.OutputDir)
	setString("schemaDir", &o.schemaDir, c.SchemaDir)
	setString("schemaBase", &o.schemaBase, c.SchemaBase)
	setString("hl7", &o.hl7Version, c.HL7Version)
	setInt("cache", &o.cacheSize, c.CacheSize)
	setInt("verbose", &o.verbose, c.Verbose)
	setString("logDir", &o.logDir, c.LogDir)
	setString("logFile", &o.logFile, c.LogFile)
	setString("format", &o.format, c.Format)
	setString("assert", &o.assert, c.Assert)
	setInt("jobs", &o.jobs, c.Jobs)
	setString("color", &o.color, c.Color)
	if c.Quiet != nil && !changed("quiet") {
		o.quiet = *c.Quiet
	}
}
