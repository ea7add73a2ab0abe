// Command storyctl is the operator-facing CLI for the service-dispatch
// engine: it can run a story against a live engine's gateway and analyze a
// dispatch event log.
package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
)

func main() {
	root := newRootCmd()
	if err := root.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func newRootCmd() *cobra.Command {
	root := &cobra.Command{
		Use:   "storyctl",
		Short: "Operate a storyengine deployment",
	}
	root.AddCommand(newExplainCmd())
	root.AddCommand(newRunCmd())
	return root
}
