package tube

import (
	"github.com/ValentinKolb/dTube/cmd/util"
	"github.com/ValentinKolb/dTube/rpc/client"
	"github.com/spf13/cobra"
)

var (
	pool *client.Pool

	// TubeCommands represents the tube command group
	TubeCommands = &cobra.Command{
		Use:               "tube",
		Short:             "Inspect and administrate tubes across all brokers",
		PersistentPreRunE: setupPool,
		PersistentPostRun: func(_ *cobra.Command, _ []string) {
			util.FinishCommand(pool)
		},
	}
)

func init() {
	TubeCommands.PersistentFlags().String("endpoint", "", util.WrapString("Broker to send single-broker commands to (default: any active broker)"))

	// Add subcommands
	TubeCommands.AddCommand(listCmd)
	TubeCommands.AddCommand(watchedCmd)
	TubeCommands.AddCommand(usedCmd)
	TubeCommands.AddCommand(statsCmd)
	TubeCommands.AddCommand(summaryCmd)
	TubeCommands.AddCommand(pauseCmd)
	TubeCommands.AddCommand(kickCmd)
	TubeCommands.AddCommand(peekReadyCmd)
	TubeCommands.AddCommand(peekDelayedCmd)
	TubeCommands.AddCommand(peekBuriedCmd)
}

// setupPool creates the broker pool for the tube commands
func setupPool(cmd *cobra.Command, _ []string) (err error) {
	pool, err = util.PreparePool(cmd)
	return err
}
