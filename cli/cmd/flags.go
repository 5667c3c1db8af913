// Package cmd provides the commands of the sextant binary.
package cmd

import "github.com/urfave/cli/v2"

// Exit codes of sextant watch.
const (
	exitSuccess   = 0
	exitUsage     = 1
	exitTransport = 2
	exitPipeline  = 3
)

// Shared flags.
var (
	// ConfigFlag points at a sextant.yaml; the default file is optional.
	ConfigFlag = &cli.StringFlag{
		Name:    "config",
		Aliases: []string{"c"},
		Usage:   "Path to config file (default: ./sextant.yaml if present)",
		EnvVars: []string{"SEXTANT_CONFIG"},
	}

	// FormatFlag selects output format: json, table, yaml.
	FormatFlag = &cli.StringFlag{
		Name:    "format",
		Aliases: []string{"f"},
		Usage:   "Output format: json, table, yaml",
	}

	// NoColorFlag disables colored table output.
	NoColorFlag = &cli.BoolFlag{
		Name:  "no-color",
		Usage: "Disable colored output",
	}
)

// ReadOnlyFlags returns the flags shared by inspect and version.
func ReadOnlyFlags() []cli.Flag {
	return []cli.Flag{FormatFlag, NoColorFlag}
}
