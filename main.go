package main

import (
	"log"

	"github.com/rm-hull/fuel-prices-aggregator/cmd"
	"github.com/spf13/cobra"
)

func main() {
	var err error
	var dbPath string
	var port int
	var debug bool

	rootCmd := &cobra.Command{
		Use:   "fuel-prices",
		Short: "UK fuel price aggregator",
		Long:  "Aggregates open fuel price feeds published by UK retailers into a single cached dataset",
	}

	apiServerCmd := &cobra.Command{
		Use:   "api-server [--db <path>] [--port <port>] [--debug]",
		Short: "Start HTTP API server",
		Run: func(_ *cobra.Command, _ []string) {
			if err := cmd.ApiServer(dbPath, port, debug); err != nil {
				log.Fatalf("API Server failed: %v", err)
			}
		},
	}

	refreshCmd := &cobra.Command{
		Use:   "refresh [--db <path>] [--debug]",
		Short: "Fetch every retailer feed once and update the cache",
		Run: func(_ *cobra.Command, _ []string) {
			if err := cmd.Refresh(dbPath, debug); err != nil {
				log.Fatalf("Refresh failed: %v", err)
			}
		},
	}

	rootCmd.PersistentFlags().StringVar(&dbPath, "db", "./data/fuel_prices.db", "Path to fuel prices SQLite database")
	rootCmd.PersistentFlags().BoolVar(&debug, "debug", false, "Enable debugging (pprof) - WARNING: do not enable in production")
	apiServerCmd.Flags().IntVar(&port, "port", 8080, "Port to run HTTP server on")

	rootCmd.AddCommand(apiServerCmd)
	rootCmd.AddCommand(refreshCmd)
	if err = rootCmd.Execute(); err != nil {
		log.Fatal(err)
	}
}
