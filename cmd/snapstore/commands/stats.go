package commands

import (
	"encoding/json"
	"os"

	"github.com/spf13/cobra"

	"github.com/snapstore-db/snapstore/pkg/snapshot"
)

func init() {
	rootCmd.AddCommand(statsCmd)
}

var statsCmd = &cobra.Command{
	Use:   "stats <database>",
	Short: "Show store counts and schema for a database",
	Args:  cobra.ExactArgs(1),
	Run: func(cmd *cobra.Command, args []string) {
		engine := newEngine()

		conn, err := engine.Open(args[0], 0, nil)
		if err != nil {
			fatal("open database", err)
		}
		defer conn.Close()

		stats, err := snapshot.Stats(conn)
		if err != nil {
			fatal("collect stats", err)
		}

		encoder := json.NewEncoder(os.Stdout)
		encoder.SetIndent("", "  ")
		if err := encoder.Encode(stats); err != nil {
			fatal("write stats", err)
		}
	},
}
