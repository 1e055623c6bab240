package tube

import (
	"fmt"
	"github.com/ValentinKolb/dTube/cmd/util"
	"github.com/ValentinKolb/dTube/rpc/client"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
	"io"
	"strconv"
	"time"
)

var (
	listCmd = &cobra.Command{
		Use:   "list",
		Short: "Lists the tubes of all brokers",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			tubes, err := pool.ListTubes()
			if err != nil {
				return err
			}
			return util.PrintResult(tubes, func(w io.Writer) {
				for _, tube := range tubes {
					_, _ = fmt.Fprintln(w, tube)
				}
			})
		},
	}
	watchedCmd = &cobra.Command{
		Use:   "watched",
		Short: "Lists the watched tubes as reported by every broker",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			watched, err := pool.ListTubesWatchedPerEndpoint()
			if err != nil {
				return err
			}
			return util.PrintResult(watched, func(w io.Writer) {
				for _, c := range pool.GetConnections() {
					if tubes, ok := watched[c.Name()]; ok {
						_, _ = fmt.Fprintf(w, "%-24s%v\n", c.Name(), tubes)
					}
				}
			})
		},
	}
	usedCmd = &cobra.Command{
		Use:   "used",
		Short: "Prints the used tube as reported by every broker",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			used, err := pool.ListTubeUsedPerEndpoint()
			if err != nil {
				return err
			}
			return util.PrintResult(used, func(w io.Writer) {
				for _, c := range pool.GetConnections() {
					if tube, ok := used[c.Name()]; ok {
						_, _ = fmt.Fprintf(w, "%-24s%s\n", c.Name(), tube)
					}
				}
			})
		},
	}
	statsCmd = &cobra.Command{
		Use:   "stats [tube]",
		Short: "Prints the statistics of a tube per broker",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			if endpoint := viper.GetString("endpoint"); endpoint != "" {
				stats, err := pool.StatsTubeFor(args[0], endpoint)
				if err != nil {
					return err
				}
				return util.PrintStats(stats)
			}
			stats, err := pool.StatsTube(args[0])
			if err != nil {
				return err
			}
			return util.PrintStatsPerEndpoint(pool, stats)
		},
	}
	summaryCmd = &cobra.Command{
		Use:   "summary [tube]",
		Short: "Prints the statistics of a tube summed over all brokers",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			stats, err := pool.StatsTubeSummary(args[0])
			if err != nil {
				return err
			}
			return util.PrintStats(stats)
		},
	}
	pauseCmd = &cobra.Command{
		Use:   "pause [tube] [seconds]",
		Short: "Stops handing out jobs of a tube on all brokers",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			seconds, err := strconv.ParseUint(args[1], 10, 32)
			if err != nil {
				return fmt.Errorf("seconds must be a number: %w", err)
			}
			if err := pool.PauseTube(args[0], time.Duration(seconds)*time.Second); err != nil {
				return err
			}
			fmt.Printf("tube %s paused for %ds\n", args[0], seconds)
			return nil
		},
	}
	kickCmd = &cobra.Command{
		Use:   "kick [tube] [max]",
		Short: "Moves up to max buried or delayed jobs of a tube back into the ready queue, per broker",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			max, err := strconv.ParseUint(args[1], 10, 64)
			if err != nil {
				return fmt.Errorf("max must be a number: %w", err)
			}
			if err := pool.Use(args[0]); err != nil {
				return err
			}
			kicked, err := pool.Kick(max)
			if err != nil {
				return err
			}
			return util.PrintResult(map[string]uint64{"kicked": kicked}, func(w io.Writer) {
				_, _ = fmt.Fprintf(w, "kicked %d jobs\n", kicked)
			})
		},
	}
	peekReadyCmd = &cobra.Command{
		Use:   "peek-ready [tube]",
		Short: "Reads the next ready job of a tube",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return printPeeked(pool.PeekReady(args[0], viper.GetString("endpoint")))
		},
	}
	peekDelayedCmd = &cobra.Command{
		Use:   "peek-delayed [tube]",
		Short: "Reads the delayed job of a tube with the shortest delay left",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return printPeeked(pool.PeekDelayed(args[0], viper.GetString("endpoint")))
		},
	}
	peekBuriedCmd = &cobra.Command{
		Use:   "peek-buried [tube]",
		Short: "Reads the next buried job of a tube",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return printPeeked(pool.PeekBuried(args[0], viper.GetString("endpoint")))
		},
	}
)

func printPeeked(job *client.Job, err error) error {
	if err != nil {
		return err
	}
	return util.PrintJob(job)
}
