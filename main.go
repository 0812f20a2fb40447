package main

import (
	"os"

	"github.com/casetrail/casetrail/cmd"
	"github.com/casetrail/casetrail/internal/conf"
)

func main() {
	settings := conf.Setting()

	rootCmd := cmd.RootCommand(settings)
	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}
