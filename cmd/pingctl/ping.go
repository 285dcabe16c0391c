package main

import (
	"context"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/samirrijal/pingsphere/internal/pkg/geospatial"
)

var pingLocal bool

var pingCmd = &cobra.Command{
	Use:     "ping <from> <to>",
	Short:   "Send a ping arc between two coordinates",
	Example: `  pingctl ping 43.26,-2.93 35.68,139.69 --local`,
	Args:    cobra.ExactArgs(2),
	RunE: func(cmd *cobra.Command, args []string) error {
		from, err := parsePoint(args[0])
		if err != nil {
			return err
		}
		to, err := parsePoint(args[1])
		if err != nil {
			return err
		}
		ctx, cancel := context.WithTimeout(cmd.Context(), timeout)
		defer cancel()

		p, err := api.SendPing(ctx, from, to, pingLocal)
		if err != nil {
			return err
		}
		if asJSON {
			return printJSON(p)
		}
		fmt.Printf("ping %s %.2f,%.2f -> %.2f,%.2f (%.0f km)\n",
			p.ID, p.From.Lat, p.From.Lon, p.To.Lat, p.To.Lon, geospatial.DistanceKm(p.From, p.To))
		return nil
	},
}

var scenePaths bool

var sceneCmd = &cobra.Command{
	Use:   "scene",
	Short: "Print the current scene frame",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx, cancel := context.WithTimeout(cmd.Context(), timeout)
		defer cancel()

		f, err := api.Scene(ctx, scenePaths)
		if err != nil {
			return err
		}
		if asJSON {
			return printJSON(f)
		}
		fmt.Printf("scene at %s: %d presences, %d pings\n", f.Time.Format("15:04:05.000"), len(f.Presences), len(f.Pings))
		for _, p := range f.Pings {
			fmt.Printf("  %-36s %-8s reveal=%.2f opacity=%.2f %s\n", p.ID, p.Phase, p.RevealFraction, p.PrimaryOpacity, p.Color)
		}
		return nil
	},
}

func init() {
	pingCmd.Flags().BoolVar(&pingLocal, "local", false, "mark the ping as involving the local actor")
	sceneCmd.Flags().BoolVar(&scenePaths, "paths", false, "include arc geometry")
}
