package main

import (
	"os"

	"github.com/hashicorp-forge/recall/internal/cmd"
)

func main() {
	os.Exit(cmd.Main(os.Args))
}
