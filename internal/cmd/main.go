package cmd

import (
	"bufio"
	"os"
	"path/filepath"

	"github.com/hashicorp/go-hclog"
	"github.com/mitchellh/cli"

	"github.com/hashicorp-forge/recall/internal/version"
)

// Main runs the CLI with the given arguments and returns the exit code.
func Main(args []string) int {
	cliName := filepath.Base(args[0])

	log := hclog.New(&hclog.LoggerOptions{
		Name:   cliName,
		Level:  hclog.LevelFromString(os.Getenv("RECALL_LOG_LEVEL")),
		Output: os.Stderr,
	})

	args = normalizeArgs(args)

	ui := &cli.BasicUi{
		Reader:      bufio.NewReader(os.Stdin),
		Writer:      os.Stdout,
		ErrorWriter: os.Stderr,
	}

	initCommands(log, ui)

	c := &cli.CLI{
		Name:     cliName,
		Args:     args[1:],
		Version:  version.Version,
		Commands: Commands,
	}

	exitCode, err := c.Run()
	if err != nil {
		ui.Error(err.Error())
		return 1
	}

	return exitCode
}

// normalizeArgs rewrites version flag aliases into the version subcommand
// and fills in the default subcommand. The stdio server is the primary mode,
// so a bare invocation serves.
func normalizeArgs(args []string) []string {
	switch {
	case len(args) == 1:
		return append(args, "serve")
	case args[1] == "-v" || args[1] == "-version" || args[1] == "--version":
		args[1] = "version"
	}
	return args
}
