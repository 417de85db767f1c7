package main

import (
	"os"
	"os/signal"
	"syscall"

	"liftctl/internal/config"
	"liftctl/internal/daemon"
	"liftctl/internal/support/logging"

	"github.com/spf13/cobra"
)

// nodeCmd groups the fleet-node lifecycle under "node", mirroring the
// teacher's daemon command group (ployz/cmd/ployz/daemon/daemon.go) —
// liftctl only ever has the one lifecycle action, "run", since a fleet
// node is meant to run under an init system or container supervisor, not
// a detached self-fork with its own start/stop/status bookkeeping.
func nodeCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "node",
		Short: "Manage this process's fleet node",
	}
	cmd.AddCommand(nodeRunCmd())
	return cmd
}

func nodeRunCmd() *cobra.Command {
	var (
		configPath   string
		probeAddr    string
		hardwareAddr string
	)

	cmd := &cobra.Command{
		Use:   "run",
		Short: "Run this process as a fleet node in the foreground",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := config.Load(configPath)
			if err != nil {
				return err
			}
			if err := cfg.Validate(); err != nil {
				return err
			}

			log := logging.Component("node", 0)

			ctx, cancel := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
			defer cancel()

			return daemon.Run(ctx, cfg, probeAddr, hardwareAddr, log)
		},
	}

	cmd.Flags().StringVar(&configPath, "config", "", "Path to a YAML config file (defaults used if absent)")
	cmd.Flags().StringVar(&probeAddr, "probe-addr", "8.8.8.8:80", "Address dialed (never sent to) to discover this node's LAN address")
	cmd.Flags().StringVar(&hardwareAddr, "hardware-addr", "localhost:15657", "host:port of the elevator hardware driver")

	return cmd
}
