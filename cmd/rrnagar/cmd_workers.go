package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"github.com/rrnagar/marketplace/internal/server"
	"github.com/rrnagar/marketplace/pkg/logger"
)

var (
	queueWorkersFlag int
	scheduleTaskFlag string
)

var queueWorkCmd = &cobra.Command{
	Use:   "queue:work",
	Short: "Run queue workers until interrupted",
	RunE: func(cmd *cobra.Command, args []string) error {
		a, err := server.Boot()
		if err != nil {
			return err
		}
		defer a.Close()

		ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
		defer stop()

		workers := queueWorkersFlag
		if workers < 1 {
			workers = 1
		}
		wg := a.RunWorkers(ctx, workers)
		<-ctx.Done()
		wg.Wait()
		logger.Info("queue: workers stopped")
		return nil
	},
}

var scheduleRunCmd = &cobra.Command{
	Use:   "schedule:run",
	Short: "Run the maintenance scheduler, or one task with --task",
	RunE: func(cmd *cobra.Command, args []string) error {
		a, err := server.Boot()
		if err != nil {
			return err
		}
		defer a.Close()

		if scheduleTaskFlag != "" {
			return a.Scheduler.RunNow(scheduleTaskFlag)
		}

		w := tabwriter.NewWriter(os.Stdout, 0, 0, 3, ' ', 0)
		fmt.Fprintln(w, "TASK\tSPEC\tNEXT")
		for _, e := range a.Scheduler.Entries() {
			fmt.Fprintf(w, "%s\t%s\t%s\n", e.Name, e.Spec, e.Next.Format("2006-01-02 15:04:05 MST"))
		}
		if err := w.Flush(); err != nil {
			return err
		}

		ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
		defer stop()
		a.Scheduler.Start()
		<-ctx.Done()
		a.Scheduler.Stop(context.Background())
		return nil
	},
}

func init() {
	queueWorkCmd.Flags().IntVarP(&queueWorkersFlag, "workers", "w", 4, "number of concurrent workers")
	scheduleRunCmd.Flags().StringVarP(&scheduleTaskFlag, "task", "t", "", "run a single task now and exit")
}
