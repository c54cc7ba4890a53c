// Package stats implements the `recall stats` command: print the persisted
// telemetry counters.
package stats

import (
	"flag"
	"fmt"
	"os"

	"github.com/hashicorp-forge/recall/internal/cmd/base"
)

type Command struct {
	*base.Command
}

func (c *Command) Synopsis() string {
	return "Print the persisted gateway counters"
}

func (c *Command) Help() string {
	return `Usage: recall stats

  Prints the stats snapshot written by the gateway (queries, blocked
  releases, redactions, ingest counts) as JSON.
`
}

func (c *Command) Run(args []string) int {
	f := flag.NewFlagSet("stats", flag.ContinueOnError)
	if err := f.Parse(args); err != nil {
		c.UI.Error(fmt.Sprintf("error parsing flags: %v", err))
		return 1
	}

	cfg, err := base.LoadConfig(base.Environ(), c.Log)
	if err != nil {
		c.UI.Error(err.Error())
		return 1
	}

	path := base.StatsPath(cfg.DataDir)
	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			c.UI.Output("No stats recorded yet.")
			return 0
		}
		c.UI.Error(fmt.Sprintf("error reading stats snapshot: %v", err))
		return 1
	}

	c.UI.Output(string(data))
	return 0
}
