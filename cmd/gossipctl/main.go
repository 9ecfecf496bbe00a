package main

import (
	"fmt"
	"os"

	"github.com/996BC/996.Gossip/utils"
	"github.com/spf13/cobra"
)

var rootCmd = &cobra.Command{
	Use:   "gossipctl [command]",
	Short: "gossip node and tools",
	Long: `
  Runs a gossip node, probes peers for liveness, manages node keys and
  inspects the record archive of a node.
`,
	SilenceUsage: true,
}

func init() {
	rootCmd.AddCommand(
		keygenCmd,
		listenCmd,
		pingCmd,
		dumpCmd,
		queryCmd,
	)
}

func main() {
	defer utils.Sync()

	if err := rootCmd.Execute(); err != nil {
		fmt.Printf("error happen: %v\n", err)
		os.Exit(1)
	}
}
