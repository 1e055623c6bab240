package job

import (
	"github.com/ValentinKolb/dTube/cmd/util"
	"github.com/ValentinKolb/dTube/rpc/client"
	"github.com/spf13/cobra"
)

var (
	pool *client.Pool

	// JobCommands represents the job command group
	JobCommands = &cobra.Command{
		Use:               "job",
		Short:             "Put, reserve and manage jobs",
		PersistentPreRunE: setupPool,
		PersistentPostRun: func(_ *cobra.Command, _ []string) {
			util.FinishCommand(pool)
		},
	}
)

func init() {
	// Add subcommands
	JobCommands.AddCommand(putCmd)
	JobCommands.AddCommand(reserveCmd)
	JobCommands.AddCommand(deleteCmd)
	JobCommands.AddCommand(releaseCmd)
	JobCommands.AddCommand(buryCmd)
	JobCommands.AddCommand(touchCmd)
	JobCommands.AddCommand(kickCmd)
	JobCommands.AddCommand(peekCmd)
	JobCommands.AddCommand(statsCmd)
	JobCommands.AddCommand(perfTestCmd)
}

// setupPool creates the broker pool for the job commands
func setupPool(cmd *cobra.Command, _ []string) (err error) {
	pool, err = util.PreparePool(cmd)
	return err
}
