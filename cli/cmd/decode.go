package cmd

import (
	"fmt"
	"os"

	"github.com/urfave/cli/v2"

	"github.com/techatrix/zigserve/cli/render"
	"github.com/techatrix/zigserve/errbundle"
	"github.com/techatrix/zigserve/ipc"
	"github.com/techatrix/zigserve/session"
	"github.com/techatrix/zigserve/types"
)

// DecodeCommand returns the decode command: offline rendering of an error
// bundle payload previously saved with build --dump-bundle.
func DecodeCommand() *cli.Command {
	flags := OutputFlags()
	flags = append(flags, RenderToggleFlags()...)

	return &cli.Command{
		Name:      "decode",
		Usage:     "Decode a dumped error bundle payload and render it",
		ArgsUsage: "<file>",
		Flags:     flags,
		Action:    decodeAction,
	}
}

func decodeAction(c *cli.Context) error {
	if c.NArg() != 1 {
		return cli.Exit("decode requires exactly one payload file argument", exitUsage)
	}
	if c.Bool("tui") {
		return cli.Exit("--tui is not supported for decode", exitUsage)
	}

	payload, err := os.ReadFile(c.Args().First())
	if err != nil {
		return cli.Exit(fmt.Sprintf("cannot read payload: %v", err), exitUsage)
	}

	bundle, err := ipc.DecodeErrorBundle(payload)
	if err != nil {
		return cli.Exit(fmt.Sprintf("malformed bundle payload: %v", err), exitCrash)
	}

	format, err := render.ParseFormat(c.String("format"))
	if err != nil {
		return cli.Exit(err.Error(), exitUsage)
	}
	if format == "" {
		format = render.DefaultFormat()
	}

	opts := errbundle.DefaultRenderOptions()
	opts.IncludeSourceLine = c.Bool("include-source")
	opts.IncludeReferenceTrace = c.Bool("include-trace")
	opts.IncludeLogText = c.Bool("include-log")

	if format == render.FormatText {
		if err := errbundle.Render(os.Stdout, bundle, opts); err != nil {
			return cli.Exit(fmt.Sprintf("failed to render diagnostics: %v", err), exitCrash)
		}
		return nil
	}

	diags, logText, err := types.Flatten(bundle)
	if err != nil {
		return cli.Exit(fmt.Sprintf("failed to flatten diagnostics: %v", err), exitCrash)
	}
	result := &types.BuildResult{
		Outcome:    string(session.StatusFailure),
		Errors:     diags,
		CompileLog: logText,
	}

	r := render.NewRendererWithWriter(format, c.Bool("no-color"), os.Stdout)
	return r.Render(result)
}
