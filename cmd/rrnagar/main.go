// Command rrnagar runs the RR Nagar marketplace and its maintenance tasks.
//
//	rrnagar serve             # HTTP + gRPC health + cron + queue workers
//	rrnagar migrate           # run pending migrations
//	rrnagar migrate:rollback
//	rrnagar migrate:status
//	rrnagar seed              # categories, platform config, super admin
//	rrnagar route:list
//	rrnagar queue:work        # standalone queue workers
//	rrnagar schedule:run      # standalone cron, or --task to run one now
package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	_ "github.com/rrnagar/marketplace/database/migrations"
)

func main() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

var rootCmd = &cobra.Command{
	Use:           "rrnagar",
	Short:         "RR Nagar marketplace server and tools",
	SilenceUsage:  true,
	SilenceErrors: true,
}

func init() {
	rootCmd.AddCommand(serveCmd)
	rootCmd.AddCommand(routeListCmd)

	rootCmd.AddCommand(migrateCmd)
	rootCmd.AddCommand(migrateRollbackCmd)
	rootCmd.AddCommand(migrateStatusCmd)
	rootCmd.AddCommand(seedCmd)

	rootCmd.AddCommand(queueWorkCmd)
	rootCmd.AddCommand(scheduleRunCmd)
}
