package commands

import (
	"encoding/json"
	"os"

	"github.com/spf13/cobra"

	"github.com/snapstore-db/snapstore/pkg/snapshot"
)

var (
	importMerge        bool
	importKeepExisting bool
)

func init() {
	importCmd.Flags().BoolVar(&importMerge, "merge", false, "Preserve existing records and upsert snapshot records over them")
	importCmd.Flags().BoolVar(&importKeepExisting, "keep-existing", false, "Do not delete the existing database before importing")
	rootCmd.AddCommand(importCmd)
}

var importCmd = &cobra.Command{
	Use:   "import <file>",
	Short: "Import a snapshot document into the database it names",
	Long: `Import a snapshot document into the database it names.

Without --merge and --keep-existing the existing on-disk database is deleted
entirely before the import. That step is destructive and irreversible.`,
	Args: cobra.ExactArgs(1),
	Run: func(cmd *cobra.Command, args []string) {
		data, err := os.ReadFile(args[0])
		if err != nil {
			fatal("read snapshot file", err)
		}

		var doc snapshot.Document
		if err := json.Unmarshal(data, &doc); err != nil {
			fatal("parse snapshot document", err)
		}

		opts := snapshot.DefaultOptions()
		opts.Merge = importMerge
		opts.ClearExisting = !importKeepExisting

		engine := newEngine()
		importer := snapshot.NewImporter(engine, nil, logger)
		result, err := importer.Import(&doc, opts)
		if err != nil {
			fatal("import snapshot", err)
		}
		if conn := importer.Conn(); conn != nil {
			if err := conn.Close(); err != nil {
				fatal("close database", err)
			}
		}
		logger.Infow("import complete", "message", result.Message)
	},
}
