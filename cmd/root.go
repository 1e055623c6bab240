package cmd

import (
	"fmt"
	"github.com/ValentinKolb/dTube/cmd/job"
	"github.com/ValentinKolb/dTube/cmd/tube"
	"github.com/ValentinKolb/dTube/cmd/util"
	"github.com/ValentinKolb/dTube/rpc/client"
	"github.com/spf13/cobra"
	"os"
)

const (
	Version = "0.3.0"
)

var (
	pool *client.Pool

	// RootCmd represents the base command when called without any subcommands
	RootCmd = &cobra.Command{
		Use:   "dtube",
		Short: "client for a pool of beanstalkd brokers",
		Long: fmt.Sprintf(`dTube (v%s)

A client for several independent beanstalkd brokers that presents them
as one work queue. Jobs are put on any reachable broker, reserved from
all of them, and failed brokers are retried after a backoff.`, Version),
		SilenceUsage: true,
	}
	versionCmd = &cobra.Command{
		Use:   "version",
		Short: "Print the version number of dTube",
		Run: func(cmd *cobra.Command, args []string) {
			fmt.Printf("dTube v%s\n", Version)
		},
	}
	statsCmd = &cobra.Command{
		Use:   "stats [endpoint]",
		Short: "Print the statistics of all brokers or of a single broker",
		Args:  cobra.MaximumNArgs(1),
		PreRunE: func(cmd *cobra.Command, args []string) (err error) {
			pool, err = util.PreparePool(cmd)
			return err
		},
		PostRun: func(_ *cobra.Command, _ []string) {
			util.FinishCommand(pool)
		},
		RunE: func(cmd *cobra.Command, args []string) error {
			if len(args) == 1 {
				stats, err := pool.StatsFor(args[0])
				if err != nil {
					return err
				}
				return util.PrintStats(stats)
			}
			stats, err := pool.Stats()
			if err != nil {
				return err
			}
			return util.PrintStatsPerEndpoint(pool, stats)
		},
	}
)

func init() {
	// Initialize viper
	cobra.OnInitialize(util.InitClientConfig)

	// Add Commands
	RootCmd.AddCommand(job.JobCommands)
	RootCmd.AddCommand(tube.TubeCommands)
	RootCmd.AddCommand(statsCmd)
	RootCmd.AddCommand(versionCmd)

	// Add Flags
	util.SetupClientFlags(RootCmd)
}

// Execute adds all child commands to the root command and sets flags appropriately.
// This is called by main.main(). It only needs to happen once to the RootCmd.
func Execute() {
	if err := RootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}
