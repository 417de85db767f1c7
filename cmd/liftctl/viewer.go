package main

import (
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"liftctl/internal/config"
	"liftctl/internal/transport"
	"liftctl/internal/worldview"

	"github.com/spf13/cobra"
)

// viewerCmd is the §6 "backup viewer": a read-only sub-mode that joins no
// fleet, submits nothing to anyone's Store, and only renders the
// WorldView broadcasts it overhears. Grounded on the original
// implementation's BCU_PORT backup-client concept (SPEC_FULL.md
// "Supplemented features"), restored here as a real cobra subcommand instead of the
// out-of-scope placeholder in spec.md.
func viewerCmd() *cobra.Command {
	var (
		configPath string
		groupKey   string
		port       int
	)

	cmd := &cobra.Command{
		Use:   "viewer",
		Short: "Render a fleet's WorldView read-only, without joining it",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := config.Load(configPath)
			if err != nil {
				return err
			}
			if groupKey != "" {
				cfg.GroupKey = groupKey
			}
			if port != 0 {
				cfg.BroadcastPort = port
			}

			ctx, cancel := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
			defer cancel()

			updates, err := transport.Watch(ctx, cfg.GroupKey, cfg.BroadcastPort)
			if err != nil {
				return fmt.Errorf("listen on broadcast port %d: %w", cfg.BroadcastPort, err)
			}

			fmt.Printf("watching fleet %q on broadcast port %d (read-only, ctrl-c to quit)\n\n", cfg.GroupKey, cfg.BroadcastPort)
			for wv := range updates {
				renderWorldView(wv)
			}
			return nil
		},
	}

	cmd.Flags().StringVar(&configPath, "config", "", "Path to a YAML config file (defaults used if absent)")
	cmd.Flags().StringVar(&groupKey, "group-key", "", "Override the fleet group key")
	cmd.Flags().IntVar(&port, "broadcast-port", 0, "Override the broadcast port")

	return cmd
}

// renderWorldView prints one WorldView snapshot as a plain-text table.
// The viewer is explicitly out of scope for styling (§1), so this is a
// deliberately unstyled fmt.Printf render.
func renderWorldView(wv *worldview.WorldView) {
	fmt.Printf("master=%d\n", wv.MasterID)
	for _, id := range wv.SortedIDs() {
		c := wv.Containers[id]
		fmt.Printf("  cabin %-3d floor=%-3d dir=%-4s behaviour=%-16s obstruction=%v\n",
			c.ID, c.LastFloorSensor, c.Direction, c.Behaviour, c.Obstruction)
	}
	fmt.Printf("  hall requests:\n")
	for floor, f := range wv.HallRequests {
		fmt.Printf("    floor %-3d up=%-5v down=%-5v\n", floor, f[worldview.HallUp], f[worldview.HallDown])
	}
	fmt.Println()
}
