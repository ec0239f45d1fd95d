// Command conductor boots the mission runtime: the agent/pattern/mission
// stack wired around a config file, serving the Mission Control API and
// the background watchdog until terminated.
//
// Usage:
//
//	conductor serve --config conductor.yaml
//	conductor validate --config conductor.yaml
//	conductor version
package main

import (
	"fmt"
	"os"
	"runtime/debug"

	"github.com/alecthomas/kong"
)

// CLI defines the command-line interface (grounded on hector's cmd/hector
// CLI struct — one kong command per top-level action, a shared --config
// flag threaded through every subcommand).
type CLI struct {
	Serve    ServeCmd    `cmd:"" help:"Start the mission runtime and Mission Control API."`
	Validate ValidateCmd `cmd:"" help:"Validate a configuration file."`
	Version  VersionCmd  `cmd:"" help:"Show version information."`

	Config string `short:"c" help:"Path to config file." type:"path" default:"conductor.yaml"`
}

// VersionCmd shows version information.
type VersionCmd struct{}

func (c *VersionCmd) Run() error {
	version := "dev"
	if info, ok := debug.ReadBuildInfo(); ok {
		if info.Main.Version != "(devel)" && info.Main.Version != "" {
			version = info.Main.Version
		}
	}
	fmt.Printf("conductor version %s\n", version)
	return nil
}

func main() {
	var cli CLI
	ctx := kong.Parse(&cli,
		kong.Name("conductor"),
		kong.Description("Multi-agent mission runtime."),
		kong.UsageOnError(),
	)
	if err := ctx.Run(&cli); err != nil {
		fmt.Fprintln(os.Stderr, "conductor:", err)
		os.Exit(1)
	}
}
