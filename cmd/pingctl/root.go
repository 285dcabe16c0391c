package main

import (
	"encoding/json"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/spf13/cobra"

	"github.com/samirrijal/pingsphere/internal/client"
	"github.com/samirrijal/pingsphere/internal/core/domain"
)

var (
	// Global flags
	serverURL string
	timeout   time.Duration
	asJSON    bool

	api *client.Client
)

var rootCmd = &cobra.Command{
	Use:   "pingctl",
	Short: "Send heartbeats and pings to PingSphere and watch the scene",
	Long: `pingctl talks to a PingSphere API node.

The server address defaults to $PINGSPHERE_URL, then http://localhost:8080.
Coordinates are given as "lat,lon", for example 43.26,-2.93.`,
	SilenceUsage: true,
	PersistentPreRun: func(cmd *cobra.Command, args []string) {
		api = client.New(serverURL)
	},
}

func init() {
	rootCmd.PersistentFlags().StringVarP(&serverURL, "server", "s", "", "API base URL")
	rootCmd.PersistentFlags().DurationVar(&timeout, "timeout", 10*time.Second, "request timeout")
	rootCmd.PersistentFlags().BoolVar(&asJSON, "json", false, "print raw JSON")

	rootCmd.AddCommand(heartbeatCmd)
	rootCmd.AddCommand(offlineCmd)
	rootCmd.AddCommand(pingCmd)
	rootCmd.AddCommand(sceneCmd)
	rootCmd.AddCommand(watchCmd)
}

// parsePoint reads a "lat,lon" pair.
func parsePoint(s string) (domain.GeoPoint, error) {
	parts := strings.Split(s, ",")
	if len(parts) != 2 {
		return domain.GeoPoint{}, fmt.Errorf("coordinate %q: want lat,lon", s)
	}
	lat, err := strconv.ParseFloat(strings.TrimSpace(parts[0]), 64)
	if err != nil {
		return domain.GeoPoint{}, fmt.Errorf("coordinate %q: latitude: %w", s, err)
	}
	lon, err := strconv.ParseFloat(strings.TrimSpace(parts[1]), 64)
	if err != nil {
		return domain.GeoPoint{}, fmt.Errorf("coordinate %q: longitude: %w", s, err)
	}
	p := domain.GeoPoint{Lat: lat, Lon: lon}
	return p, p.Validate()
}

func printJSON(v any) error {
	enc := json.NewEncoder(os.Stdout)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}
