package commands

import (
	"os"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/snapstore-db/snapstore/pkg/config"
	"github.com/snapstore-db/snapstore/pkg/storage"
)

var (
	configFile string
	debug      bool
	conf       config.Config
	logger     *zap.SugaredLogger
)

var rootCmd = &cobra.Command{
	Use:   "snapstore",
	Short: "An embedded multi-store keyed database with snapshot export and import",
	PersistentPreRun: func(cmd *cobra.Command, args []string) {
		conf = config.Default()
		if err := conf.LoadYAMLFile(configFile, cmd.Flags().Changed("config")); err != nil {
			fatal("load config file", err)
		}
		if debug {
			conf.Debug = true
		}
		if err := conf.Check(); err != nil {
			fatal("config file error", err)
		}

		var zl *zap.Logger
		var err error
		if conf.Debug {
			zl, err = zap.NewDevelopment()
		} else {
			zl, err = zap.NewProduction()
		}
		if err != nil {
			fatal("build logger", err)
		}
		zap.ReplaceGlobals(zl)
		logger = zl.Sugar()
	},
	Run: func(cmd *cobra.Command, args []string) {
		_ = cmd.Help()
	},
}

func init() {
	rootCmd.PersistentFlags().StringVarP(&configFile, "config", "c", "snapstore.yaml", "Config file")
	rootCmd.PersistentFlags().BoolVar(&debug, "debug", false, "Enable debug logging")
}

// newEngine builds a storage engine from the effective configuration.
func newEngine() *storage.Engine {
	return storage.NewEngine(
		storage.WithDataDir(conf.DataDir),
		storage.WithSaveOnCommit(conf.SaveOnCommit),
		storage.WithLogger(logger),
	)
}

func fatal(msg string, err error) {
	if logger != nil {
		logger.Errorw(msg, "error", err)
	} else {
		os.Stderr.WriteString(msg + ": " + err.Error() + "\n")
	}
	os.Exit(1)
}

func Execute() {
	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}
