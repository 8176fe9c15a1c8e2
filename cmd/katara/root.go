package main

import (
	"errors"

	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"

	"github.com/arneph/katara/internal/debugdump"
	"github.com/arneph/katara/internal/driver"
)

const version = "0.1"

// rootFlags holds flags shared by every subcommand, set up on the root
// command with PersistentFlags so "-d" works regardless of where it
// appears on the command line.
type rootFlags struct {
	debugDir string
	verbose  bool
}

func newRootCmd() *cobra.Command {
	flags := &rootFlags{}

	root := &cobra.Command{
		Use:           "katara",
		Short:         "Katara is a tool to work with Katara source code.",
		SilenceUsage:  true,
		SilenceErrors: true,
	}
	root.PersistentFlags().StringVarP(&flags.debugDir, "debug", "d", "", "write staged debug artifacts to this directory")
	root.PersistentFlags().Lookup("debug").NoOptDefVal = ".katara-debug"
	root.PersistentFlags().BoolVarP(&flags.verbose, "verbose", "v", false, "enable debug-level logging")

	root.AddCommand(
		newCompileCmd(flags),
		newRunCmd(flags),
		newInterpretCmd(),
		newDocCmd(),
		newVersionCmd(),
	)
	return root
}

func (f *rootFlags) logger() *logrus.Logger {
	log := logrus.New()
	if f.verbose {
		log.SetLevel(logrus.DebugLevel)
	}
	return log
}

func (f *rootFlags) newPipeline() *driver.Pipeline {
	log := f.logger()
	p := &driver.Pipeline{Log: log}
	if f.debugDir == "" {
		return p
	}
	dumper, err := debugdump.New(f.debugDir, log)
	if err != nil {
		log.WithError(err).Warn("katara: could not enable debug dumping")
		return p
	}
	p.Debug = dumper
	return p
}

// exitCodeFor maps a pipeline failure to one of spec.md §6/§7's staged
// exit codes. A plain non-pipeline error (a bad file path, say) falls
// back to 1: only StageError carries enough information to distinguish
// load/build/translate.
func exitCodeFor(err error) int {
	var stageErr *driver.StageError
	if errors.As(err, &stageErr) {
		switch stageErr.Stage {
		case driver.StageLoad:
			return 1
		case driver.StageBuild:
			return 2
		case driver.StageTranslate:
			return 3
		}
	}
	return 1
}
