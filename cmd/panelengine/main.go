// Command panelengine serves a panelengine site and runs its maintenance
// tasks from the command line.
package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"

	"github.com/eringen/panelengine"
)

// version is set at build time via ldflags.
var version = "dev"

var (
	configPath string
	verbose    bool
	logger     *zap.Logger
)

var rootCmd = &cobra.Command{
	Use:   "panelengine",
	Short: "Admin back office, onboarding console and blog on SQLite",
	Long: `panelengine runs the admin dashboards, the website onboarding wizard,
the marketing blog and the template and freelancer catalog as one server.

Configuration comes from an optional YAML file and the environment.`,
	SilenceUsage: true,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		config := zap.NewProductionConfig()
		if verbose {
			config.Level = zap.NewAtomicLevelAt(zapcore.DebugLevel)
		}
		var err error
		logger, err = config.Build()
		if err != nil {
			return fmt.Errorf("failed to initialize logger: %w", err)
		}
		return nil
	},
	PersistentPostRun: func(cmd *cobra.Command, args []string) {
		if logger != nil {
			_ = logger.Sync()
		}
	},
}

var versionCmd = &cobra.Command{
	Use:   "version",
	Short: "Print the panelengine version",
	Run: func(cmd *cobra.Command, args []string) {
		fmt.Fprintf(cmd.OutOrStdout(), "panelengine %s\n", version)
	},
}

func init() {
	rootCmd.PersistentFlags().StringVarP(&configPath, "config", "c", "panelengine.yaml", "Path to the YAML config file")
	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "Enable debug logging")

	settingsCmd.AddCommand(settingsInitCmd)
	blogCmd.AddCommand(blogPublishDueCmd)
	catalogCmd.AddCommand(catalogListCmd)
	usersCmd.AddCommand(usersCreateCmd)

	rootCmd.AddCommand(serveCmd)
	rootCmd.AddCommand(versionCmd)
	rootCmd.AddCommand(initCmd)
	rootCmd.AddCommand(settingsCmd)
	rootCmd.AddCommand(blogCmd)
	rootCmd.AddCommand(catalogCmd)
	rootCmd.AddCommand(usersCmd)
	rootCmd.AddCommand(maintenanceCmd)
	rootCmd.AddCommand(hashPasswordCmd)
}

// openApp loads the config and opens the stores without mounting routes.
func openApp() (*panelengine.App, error) {
	cfg, err := panelengine.LoadConfig(configPath)
	if err != nil {
		return nil, err
	}
	app := panelengine.New(cfg, panelengine.ViewFuncs{}, panelengine.WithLogger(logger))
	if err := app.Open(); err != nil {
		return nil, err
	}
	return app, nil
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}
