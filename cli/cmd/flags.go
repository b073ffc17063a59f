// Package cmd provides CLI commands for the zigserve binary.
package cmd

import "github.com/urfave/cli/v2"

// Shared flags across commands.
var (
	// FormatFlag selects output format: text, json, yaml, msgpack.
	FormatFlag = &cli.StringFlag{
		Name:    "format",
		Aliases: []string{"f"},
		Usage:   "Output format: text, json, yaml, msgpack",
	}

	// NoColorFlag disables colored output.
	NoColorFlag = &cli.BoolFlag{
		Name:  "no-color",
		Usage: "Disable colored output",
	}

	// TUIFlag enables the Bubble Tea live build view.
	// Only valid for the build command.
	TUIFlag = &cli.BoolFlag{
		Name:  "tui",
		Usage: "Enable interactive TUI mode (build only)",
	}
)

// OutputFlags returns the shared output flags.
// Includes --tui so that unsupported commands can provide explicit error
// messages instead of generic "flag not defined" errors.
func OutputFlags() []cli.Flag {
	return []cli.Flag{
		FormatFlag,
		NoColorFlag,
		TUIFlag,
	}
}

// RenderToggleFlags returns the text renderer toggles shared by build and
// decode. Defaults are true; an explicit flag always wins over the config
// file (checked via IsSet).
func RenderToggleFlags() []cli.Flag {
	return []cli.Flag{
		&cli.BoolFlag{
			Name:  "include-source",
			Usage: "Show offending source lines with caret markers",
			Value: true,
		},
		&cli.BoolFlag{
			Name:  "include-trace",
			Usage: "Show reference traces",
			Value: true,
		},
		&cli.BoolFlag{
			Name:  "include-log",
			Usage: "Show compile log output",
			Value: true,
		},
	}
}
