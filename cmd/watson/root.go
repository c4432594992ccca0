package main

import (
	"os"

	"github.com/spf13/cobra"
)

var noColor bool

func newRootCmd() *cobra.Command {
	root := &cobra.Command{
		Use:           "watson",
		Short:         "A proof assistant for user-extensible formal languages",
		SilenceErrors: true,
		SilenceUsage:  true,
	}
	root.PersistentFlags().BoolVar(&noColor, "no-color", false, "disable colored output")
	root.AddCommand(newNewCmd(), newCheckCmd(), newBookCmd())
	return root
}

func fail(err error) {
	FormatError(os.Stderr, err, ShouldUseColor(noColor))
	os.Exit(1)
}

func main() {
	if err := newRootCmd().Execute(); err != nil {
		fail(err)
	}
}
