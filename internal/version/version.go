package version

// Version is the CLI version reported by the version subcommand. Overridden
// at build time via -ldflags.
var Version = "0.1.0-dev"
