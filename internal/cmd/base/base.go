// Package base carries the state shared by every CLI command and the
// bootstrap that wires the retrieval pipeline together.
package base

import (
	"github.com/hashicorp/go-hclog"
	"github.com/mitchellh/cli"
)

// Command is embedded by every subcommand.
type Command struct {
	UI  cli.Ui
	Log hclog.Logger
}
