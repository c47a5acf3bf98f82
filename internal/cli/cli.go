// Package cli implements the clickctl operator commands.
package cli

import (
	"fmt"
	"io"
	"os"

	goflags "github.com/jessevdk/go-flags"

	"github.com/clicktrail/clicktrail/internal/config"
)

// commands holds references to all subcommand structs for inspection/testing.
type commands struct {
	Stats     *StatsCommand
	Prune     *PruneCommand
	HashToken *HashTokenCommand
}

// buildParser constructs the go-flags parser with all subcommands registered.
func buildParser(version string, out io.Writer) (*goflags.Parser, *GlobalFlags, *commands) {
	var globals GlobalFlags

	parser := goflags.NewParser(&globals, goflags.Default)
	parser.Name = "clickctl"
	parser.LongDescription = "Operator tool for the clicktrail click log and admission state."

	cmds := &commands{
		Stats:     &StatsCommand{globals: &globals, version: version, out: out},
		Prune:     &PruneCommand{globals: &globals, version: version, out: out},
		HashToken: &HashTokenCommand{globals: &globals, version: version, out: out},
	}

	parser.AddCommand("stats", "Aggregate the click log",
		"Aggregate totals, today's clicks, top domains and hourly buckets from the click log. Read-only; safe while the server runs.",
		cmds.Stats)
	parser.AddCommand("prune", "Prune expired admission state",
		"Delete unique-impression markers older than the retention and expired rate-limit windows. With the bolt backend the server must be stopped first.",
		cmds.Prune)
	parser.AddCommand("hash-token", "Generate or hash an admin token",
		"Print an admin token and the argon2id hash to put in ADMIN_TOKEN_HASH.",
		cmds.HashToken)

	return parser, &globals, cmds
}

// Run is the main entry point for clickctl using os.Args.
func Run(version string) error {
	return RunWithArgs(version, nil, os.Stdout)
}

// RunWithArgs parses the given args (or os.Args if nil) and executes the matched subcommand.
func RunWithArgs(version string, args []string, out io.Writer) error {
	// go-flags requires a subcommand, but --version is valid without one.
	checkArgs := args
	if checkArgs == nil {
		checkArgs = os.Args[1:]
	}
	for _, arg := range checkArgs {
		if arg == "--version" {
			fmt.Fprintf(out, "clickctl %s\n", version)
			return nil
		}
		if arg == "--" {
			break
		}
	}

	parser, _, _ := buildParser(version, out)

	var err error
	if args != nil {
		_, err = parser.ParseArgs(args)
	} else {
		_, err = parser.Parse()
	}

	if err != nil {
		if flagsErr, ok := err.(*goflags.Error); ok {
			if flagsErr.Type == goflags.ErrHelp {
				return nil
			}
		}
		return err
	}

	return nil
}

// loadConfig returns cfg when a test injected one, the environment otherwise.
func loadConfig(cfg *config.Config) (*config.Config, error) {
	if cfg != nil {
		return cfg, nil
	}
	return config.Load()
}
