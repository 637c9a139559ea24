package main

import (
	"fmt"
	"log/slog"

	"github.com/alecthomas/kong"
	"go.uber.org/automaxprocs/maxprocs"

	"git.home.luguber.info/inful/livedocs/cmd/livedocs/commands"
	lderrors "git.home.luguber.info/inful/livedocs/internal/errors"
	"git.home.luguber.info/inful/livedocs/internal/version"
)

func main() {
	if _, err := maxprocs.Set(maxprocs.Logger(func(format string, args ...any) {
		slog.Debug(fmt.Sprintf(format, args...))
	})); err != nil {
		slog.Warn("Failed to set GOMAXPROCS", "error", err)
	}

	cli := &commands.CLI{}
	parser := kong.Parse(cli,
		kong.Name("livedocs"),
		kong.Description("Render markdown documentation sites on the server or in the terminal."),
		kong.Vars{"version": version.String()},
		kong.UsageOnError(),
	)

	global := &commands.Global{Logger: slog.Default()}
	err := parser.Run(global, cli)
	lderrors.NewCLIErrorAdapter(cli.Verbose, global.Logger).HandleError(err)
}
