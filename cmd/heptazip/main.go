// Command heptazip is a thin CLI over the heptazip library: extract, create,
// list, test and info subcommands, each a few lines of glue atop the
// package's own Reader/Writer/RecoverArchive surface.
package main

import (
	"os"

	"github.com/hashicorp/go-hclog"
	"github.com/spf13/cobra"
)

var logger hclog.Logger

func main() {
	root := newRootCommand()

	if err := root.Execute(); err != nil {
		os.Exit(1)
	}
}

func newRootCommand() *cobra.Command {
	var level string

	cmd := &cobra.Command{
		Use:           "heptazip",
		Short:         "Read, write and repair 7z archives",
		SilenceUsage:  true,
		SilenceErrors: false,
		PersistentPreRun: func(*cobra.Command, []string) {
			logger = hclog.New(&hclog.LoggerOptions{
				Name:   "heptazip",
				Level:  hclog.LevelFromString(level),
				Output: os.Stderr,
			})
		},
	}

	cmd.PersistentFlags().StringVar(&level, "log-level", "warn", "log level: trace|debug|info|warn|error")

	cmd.AddCommand(
		newListCommand(),
		newExtractCommand(),
		newCreateCommand(),
		newTestCommand(),
		newInfoCommand(),
	)

	return cmd
}
