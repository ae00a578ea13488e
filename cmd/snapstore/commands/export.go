package commands

import (
	"encoding/json"
	"os"

	"github.com/spf13/cobra"

	"github.com/snapstore-db/snapstore/pkg/snapshot"
)

var exportOutput string

func init() {
	exportCmd.Flags().StringVarP(&exportOutput, "output", "o", "", "Write the snapshot document to a file instead of stdout")
	rootCmd.AddCommand(exportCmd)
}

var exportCmd = &cobra.Command{
	Use:   "export <database>",
	Short: "Export a database as a snapshot document",
	Args:  cobra.ExactArgs(1),
	Run: func(cmd *cobra.Command, args []string) {
		dbName := args[0]
		engine := newEngine()

		conn, err := engine.Open(dbName, 0, nil)
		if err != nil {
			fatal("open database", err)
		}
		defer conn.Close()

		doc, err := snapshot.Export(conn)
		if err != nil {
			fatal("export database", err)
		}

		out := os.Stdout
		if exportOutput != "" {
			out, err = os.Create(exportOutput)
			if err != nil {
				fatal("create output file", err)
			}
			defer out.Close()
		}

		encoder := json.NewEncoder(out)
		encoder.SetIndent("", "  ")
		if err := encoder.Encode(doc); err != nil {
			fatal("write snapshot document", err)
		}
		logger.Infow("export complete", "database", dbName, "stores", len(doc.Stores))
	},
}
