// Command posctl is the operator tool for the POS service: it finalizes
// and re-signs sales by hand and applies database migrations.
package main

import (
	"fmt"
	"os"
	_ "time/tzdata"

	"github.com/spf13/cobra"
)

var Version = "dev"

func main() {
	if err := newRootCmd(openBackend).Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func newRootCmd(open opener) *cobra.Command {
	root := &cobra.Command{
		Use:           "posctl",
		Short:         "Operate the studio POS backend",
		Version:       Version,
		SilenceUsage:  true,
		SilenceErrors: true,
	}
	root.AddCommand(finalizeCmd(open))
	root.AddCommand(resignCmd(open))
	root.AddCommand(migrateCmd(open))
	return root
}
