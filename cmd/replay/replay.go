// Package replay implements the replay subcommand: it folds an
// investigation's activity log into the state it implies and prints it,
// for audit reconciliation against the live rows.
package replay

import (
	"encoding/json"
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/casetrail/casetrail/internal/activity"
	"github.com/casetrail/casetrail/internal/conf"
	"github.com/casetrail/casetrail/internal/datastore"
	"github.com/casetrail/casetrail/internal/logging"
)

// Command returns the replay subcommand.
func Command(settings *conf.Settings) *cobra.Command {
	return &cobra.Command{
		Use:   "replay <investigation-id>",
		Short: "Reconstruct investigation state from its activity log",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return runReplay(settings, args[0])
		},
	}
}

func runReplay(settings *conf.Settings, investigationID string) error {
	logging.Init()

	store := datastore.New(settings)
	if err := store.Open(); err != nil {
		return fmt.Errorf("opening datastore: %w", err)
	}
	defer func() {
		if err := store.Close(); err != nil {
			logging.Error("closing datastore failed", "error", err)
		}
	}()

	state, err := activity.NewLog(store).Replay(investigationID)
	if err != nil {
		return fmt.Errorf("replaying activity log: %w", err)
	}

	enc := json.NewEncoder(os.Stdout)
	enc.SetIndent("", "  ")
	return enc.Encode(state)
}
