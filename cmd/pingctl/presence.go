package main

import (
	"context"
	"fmt"

	"github.com/spf13/cobra"
)

var (
	heartbeatID      string
	heartbeatOffline bool
)

var heartbeatCmd = &cobra.Command{
	Use:   "heartbeat <lat,lon>",
	Short: "Record presence activity at a coordinate",
	Example: `  pingctl heartbeat 43.26,-2.93
  pingctl heartbeat --id 7f7e... 43.26,-2.93`,
	Args: cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		at, err := parsePoint(args[0])
		if err != nil {
			return err
		}
		ctx, cancel := context.WithTimeout(cmd.Context(), timeout)
		defer cancel()

		p, err := api.Heartbeat(ctx, heartbeatID, at.Lat, at.Lon, !heartbeatOffline)
		if err != nil {
			return err
		}
		if asJSON {
			return printJSON(p)
		}
		fmt.Printf("presence %s at %.2f,%.2f online=%t\n", p.ID, p.Location.Lat, p.Location.Lon, p.IsOnline)
		return nil
	},
}

var offlineCmd = &cobra.Command{
	Use:   "offline <id>",
	Short: "Mark a presence offline so it starts fading",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx, cancel := context.WithTimeout(cmd.Context(), timeout)
		defer cancel()

		p, err := api.Disconnect(ctx, args[0])
		if err != nil {
			return err
		}
		if asJSON {
			return printJSON(p)
		}
		fmt.Printf("presence %s offline since %s\n", p.ID, p.LastActiveAt.Format("15:04:05"))
		return nil
	},
}

func init() {
	heartbeatCmd.Flags().StringVar(&heartbeatID, "id", "", "presence id (omit to allocate one)")
	heartbeatCmd.Flags().BoolVar(&heartbeatOffline, "offline", false, "report the presence as offline")
}
