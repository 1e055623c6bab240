package job

import (
	"fmt"
	"github.com/ValentinKolb/dTube/cmd/util"
	"github.com/ValentinKolb/dTube/rpc/client"
	"github.com/ValentinKolb/dTube/rpc/common"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
	"io"
)

var (
	putCmd = &cobra.Command{
		Use:   "put [data]",
		Short: "Puts a job on one of the brokers",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			var (
				job      *client.Job
				err      error
				tube     = viper.GetString("tube")
				priority = viper.GetUint32("priority")
				delay    = viper.GetDuration("delay")
				ttr      = viper.GetDuration("ttr")
			)
			if tube != "" {
				job, err = pool.PutInTube(tube, []byte(args[0]), priority, delay, ttr)
			} else {
				job, err = pool.Put([]byte(args[0]), priority, delay, ttr)
			}
			if err != nil {
				return err
			}
			return util.PrintJob(job)
		},
	}
	reserveCmd = &cobra.Command{
		Use:   "reserve",
		Short: "Reserves a job from any of the brokers",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			if viper.GetBool("delete") && viper.GetBool("release") {
				return fmt.Errorf("--delete and --release are mutually exclusive")
			}

			var (
				job     *client.Job
				ok      bool
				err     error
				tube    = viper.GetString("tube")
				timeout = viper.GetDuration("wait")
			)
			if timeout < 0 {
				timeout = client.NoTimeout
			}
			if tube != "" {
				job, ok, err = pool.ReserveFromTube(tube, timeout)
			} else {
				job, ok, err = pool.Reserve(timeout)
			}
			if err != nil {
				return err
			}
			if !ok {
				return util.PrintResult(nil, func(w io.Writer) {
					_, _ = fmt.Fprintln(w, "no job ready")
				})
			}

			switch {
			case viper.GetBool("delete"):
				err = pool.Delete(job)
			case viper.GetBool("release"):
				err = pool.Release(job, common.DefaultPriority, common.DefaultDelay)
			}
			if err != nil {
				return err
			}
			return util.PrintJob(job)
		},
	}
	deleteCmd = &cobra.Command{
		Use:   "delete [endpoint] [id]",
		Short: "Deletes a job",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			return onJob(args, "deleted", pool.Delete)
		},
	}
	releaseCmd = &cobra.Command{
		Use:   "release [endpoint] [id]",
		Short: "Puts a reserved job back into the ready queue",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			return onJob(args, "released", func(job *client.Job) error {
				return pool.Release(job, viper.GetUint32("priority"), viper.GetDuration("delay"))
			})
		},
	}
	buryCmd = &cobra.Command{
		Use:   "bury [endpoint] [id]",
		Short: "Buries a reserved job",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			return onJob(args, "buried", func(job *client.Job) error {
				return pool.Bury(job, viper.GetUint32("priority"))
			})
		},
	}
	touchCmd = &cobra.Command{
		Use:   "touch [endpoint] [id]",
		Short: "Requests more time to work on a reserved job",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			return onJob(args, "touched", pool.Touch)
		},
	}
	kickCmd = &cobra.Command{
		Use:   "kick [endpoint] [id]",
		Short: "Moves a buried or delayed job into the ready queue",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			return onJob(args, "kicked", pool.KickJob)
		},
	}
	peekCmd = &cobra.Command{
		Use:   "peek [endpoint] [id]",
		Short: "Reads a job without reserving it",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			ref, err := util.ParseJobRef(pool, args)
			if err != nil {
				return err
			}
			job, err := pool.Peek(ref.Endpoint(), ref.ID)
			if err != nil {
				return err
			}
			return util.PrintJob(job)
		},
	}
	statsCmd = &cobra.Command{
		Use:   "stats [endpoint] [id]",
		Short: "Prints the statistics of a job",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			job, err := util.ParseJobRef(pool, args)
			if err != nil {
				return err
			}
			stats, err := pool.StatsJob(job)
			if err != nil {
				return err
			}
			return util.PrintStats(stats)
		},
	}
)

func init() {
	// put
	putCmd.Flags().String("tube", "", util.WrapString("Tube to put the job into (default: the currently used tube)"))
	putCmd.Flags().Uint32("priority", common.DefaultPriority, util.WrapString("Priority of the job, 0 is the most urgent"))
	putCmd.Flags().Duration("delay", common.DefaultDelay, util.WrapString("Time before the job becomes ready"))
	putCmd.Flags().Duration("ttr", common.DefaultTTR, util.WrapString("Time a worker may hold the job"))

	// reserve
	reserveCmd.Flags().String("tube", "", util.WrapString("Watch only this tube before reserving"))
	reserveCmd.Flags().Duration("wait", 0, util.WrapString("How long to wait for a job, negative waits forever"))
	reserveCmd.Flags().Bool("delete", false, util.WrapString("Delete the job after it was reserved"))
	reserveCmd.Flags().Bool("release", false, util.WrapString("Release the job after it was reserved"))

	// release / bury
	releaseCmd.Flags().Uint32("priority", common.DefaultPriority, util.WrapString("New priority of the job"))
	releaseCmd.Flags().Duration("delay", common.DefaultDelay, util.WrapString("Time before the job becomes ready again"))
	buryCmd.Flags().Uint32("priority", common.DefaultPriority, util.WrapString("New priority of the job"))
}

// onJob runs op on the job named by the "[endpoint] [id]" arguments
func onJob(args []string, done string, op func(job *client.Job) error) error {
	job, err := util.ParseJobRef(pool, args)
	if err != nil {
		return err
	}
	if err := op(job); err != nil {
		return err
	}
	return util.PrintResult(util.NewJobView(job), func(w io.Writer) {
		_, _ = fmt.Fprintf(w, "job %d on %s %s\n", job.ID, job.Endpoint(), done)
	})
}
