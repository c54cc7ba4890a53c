package cmd

import (
	"github.com/hashicorp/go-hclog"
	"github.com/mitchellh/cli"

	"github.com/hashicorp-forge/recall/internal/cmd/base"
	"github.com/hashicorp-forge/recall/internal/cmd/commands/ingest"
	"github.com/hashicorp-forge/recall/internal/cmd/commands/serve"
	"github.com/hashicorp-forge/recall/internal/cmd/commands/stats"
	versioncmd "github.com/hashicorp-forge/recall/internal/cmd/commands/version"
)

// Commands is the mapping of subcommand names to factories.
var Commands map[string]cli.CommandFactory

func initCommands(log hclog.Logger, ui cli.Ui) {
	baseCommand := &base.Command{
		UI:  ui,
		Log: log,
	}

	Commands = map[string]cli.CommandFactory{
		"serve": func() (cli.Command, error) {
			return &serve.Command{Command: baseCommand}, nil
		},
		"ingest": func() (cli.Command, error) {
			return &ingest.Command{Command: baseCommand}, nil
		},
		"stats": func() (cli.Command, error) {
			return &stats.Command{Command: baseCommand}, nil
		},
		"version": func() (cli.Command, error) {
			return &versioncmd.Command{Command: baseCommand}, nil
		},
	}
}
