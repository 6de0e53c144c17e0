// Command holdingsctl records trades and cash movements and prints portfolio
// reports against the holdings data directory (HOLDINGS_DATA_DIR).
package main

import (
	"context"
	"flag"
	"os"
	"path"

	"github.com/google/subcommands"
)

// commands lists every holdingsctl subcommand
var commands = []subcommands.Command{
	&buyCmd{},
	&sellCmd{},
	&depositCmd{},
	&withdrawCmd{},
	&positionsCmd{},
	&distributionCmd{},
	&reconcileCmd{},
}

func main() {
	commander := subcommands.NewCommander(flag.CommandLine, path.Base(os.Args[0]))
	commander.Register(commander.HelpCommand(), "")
	commander.Register(commander.FlagsCommand(), "")
	commander.Register(commander.CommandsCommand(), "")

	for _, c := range commands {
		commander.Register(c, "")
	}

	flag.Parse()
	os.Exit(int(commander.Execute(context.Background())))
}
