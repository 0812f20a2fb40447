package cmd

import (
	"fmt"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/casetrail/casetrail/cmd/replay"
	"github.com/casetrail/casetrail/cmd/serve"
	"github.com/casetrail/casetrail/internal/conf"
)

// RootCommand creates and returns the root command.
func RootCommand(settings *conf.Settings) *cobra.Command {
	rootCmd := &cobra.Command{
		Use:   "casetrail",
		Short: "CaseTrail investigation coordination engine",
	}

	if err := setupFlags(rootCmd, settings); err != nil {
		cobra.CheckErr(err)
	}

	rootCmd.AddCommand(
		serve.Command(settings),
		replay.Command(settings),
	)

	return rootCmd
}

// setupFlags defines flags that are global to the command line interface.
func setupFlags(rootCmd *cobra.Command, settings *conf.Settings) error {
	rootCmd.PersistentFlags().BoolVarP(&settings.Debug, "debug", "d", viper.GetBool("debug"), "Enable debug output")
	rootCmd.PersistentFlags().StringVar(&settings.Database.Backend, "db", viper.GetString("database.backend"), "Database backend: sqlite or mysql")
	rootCmd.PersistentFlags().StringVar(&settings.Database.SQLite.Path, "db-path", viper.GetString("database.sqlite.path"), "SQLite database file path")

	if err := viper.BindPFlags(rootCmd.PersistentFlags()); err != nil {
		return fmt.Errorf("error binding flags: %w", err)
	}
	return nil
}
