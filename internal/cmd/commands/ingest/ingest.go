// Package ingest implements the `recall ingest` command: a one-shot
// directory ingest into the document table.
package ingest

import (
	"context"
	"flag"
	"fmt"

	"github.com/hashicorp-forge/recall/internal/cmd/base"
)

type Command struct {
	*base.Command
}

func (c *Command) Synopsis() string {
	return "Ingest a directory of .txt/.md files into memory"
}

func (c *Command) Help() string {
	return `Usage: recall ingest <directory>

  Reads every supported file under the directory, chunks it, and writes
  the chunks to the document table. Files unchanged since the last
  ingest (by size and mtime) are skipped.
`
}

func (c *Command) Run(args []string) int {
	f := flag.NewFlagSet("ingest", flag.ContinueOnError)
	if err := f.Parse(args); err != nil {
		c.UI.Error(fmt.Sprintf("error parsing flags: %v", err))
		return 1
	}
	if len(f.Args()) != 1 {
		c.UI.Error("exactly one directory argument is required")
		return 1
	}
	dir := f.Args()[0]

	cfg, err := base.LoadConfig(base.Environ(), c.Log)
	if err != nil {
		c.UI.Error(err.Error())
		return 1
	}

	rt, err := base.NewRuntime(cfg, c.Log)
	if err != nil {
		c.UI.Error(fmt.Sprintf("error starting pipeline: %v", err))
		return 1
	}
	defer rt.Close()

	files, chunks, err := rt.Ingestor.IngestDir(context.Background(), dir)
	if err != nil {
		c.UI.Warn(fmt.Sprintf("ingest completed with errors: %v", err))
	}
	c.UI.Output(fmt.Sprintf("Ingested %d files (%d chunks) from %s", files, chunks, dir))

	if err != nil {
		return 1
	}
	return 0
}
