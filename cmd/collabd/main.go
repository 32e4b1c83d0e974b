// Package main provides the entry point for the collabd collaboration
// server.
package main

import (
	"fmt"
	"net/http"
	nethttppprof "net/http/pprof"
	"os"
	"time"

	"github.com/spf13/cobra"

	"github.com/sumatoshi-tech/collabgraph/cmd/collabd/commands"
)

const pprofReadHeaderTimeout = 10 * time.Second

func main() {
	if os.Getenv("COLLABD_PPROF") != "" {
		go func() {
			mux := http.NewServeMux()
			mux.HandleFunc("/debug/pprof/", nethttppprof.Index)
			mux.HandleFunc("/debug/pprof/cmdline", nethttppprof.Cmdline)
			mux.HandleFunc("/debug/pprof/profile", nethttppprof.Profile)
			mux.HandleFunc("/debug/pprof/symbol", nethttppprof.Symbol)
			mux.HandleFunc("/debug/pprof/trace", nethttppprof.Trace)
			server := &http.Server{
				Addr:              "localhost:6060",
				Handler:           mux,
				ReadHeaderTimeout: pprofReadHeaderTimeout,
			}
			_ = server.ListenAndServe()
		}()
	}

	rootCmd := &cobra.Command{
		Use:   "collabd",
		Short: "collabd - real-time collaborative graph-editing server",
		Long: `collabd serves the WebSocket collaboration protocol for live
multi-user graph editing: session/presence tracking, per-project
operation serialization, and cross-instance coordination.

Commands:
  serve    Run the collaboration server
  migrate  Apply or inspect the snapshot store's database schema
  version  Show version information`,
		SilenceUsage:  true,
		SilenceErrors: true,
	}

	rootCmd.AddCommand(commands.NewServeCommand())
	rootCmd.AddCommand(commands.NewMigrateCommand())
	rootCmd.AddCommand(commands.NewVersionCommand())

	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}
