package main

import (
	"fmt"
	"os"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"github.com/rrnagar/marketplace/app/services"
	"github.com/rrnagar/marketplace/internal/kernel"
	"github.com/rrnagar/marketplace/internal/server"
)

var serveCmd = &cobra.Command{
	Use:     "serve",
	Aliases: []string{"run"},
	Short:   "Start the HTTP server, gRPC health service, scheduler and queue workers",
	RunE: func(cmd *cobra.Command, args []string) error {
		return server.Start()
	},
}

// route:list builds the router over unconnected services; registering
// routes never touches the database.
var routeListCmd = &cobra.Command{
	Use:   "route:list",
	Short: "List every named route",
	RunE: func(cmd *cobra.Command, args []string) error {
		r, err := kernel.NewHTTP(services.New(services.Deps{}))
		if err != nil {
			return err
		}
		w := tabwriter.NewWriter(os.Stdout, 0, 0, 3, ' ', 0)
		fmt.Fprintln(w, "METHOD\tPATH\tNAME")
		for _, ri := range r.Routes() {
			fmt.Fprintf(w, "%s\t%s\t%s\n", ri.Method, ri.Path, ri.Name)
		}
		return w.Flush()
	},
}
