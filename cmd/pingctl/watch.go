package main

import (
	"encoding/json"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/samirrijal/pingsphere/internal/client"
	"github.com/samirrijal/pingsphere/internal/core/domain"
)

var (
	watchCues bool
	watchAt   string
)

var watchCmd = &cobra.Command{
	Use:   "watch",
	Short: "Stream the live scene over WebSocket",
	Long: `Stream scene frames, ping paths and evictions until interrupted.

With --cues, phase transitions are printed too. With --at, pings that start
or end within 0.01 degrees of that coordinate are marked local (*).`,
	Example: `  pingctl watch --cues --at 43.26,-2.93`,
	Args:    cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		opts := client.WatchOptions{Cues: watchCues}
		if watchAt != "" {
			at, err := parsePoint(watchAt)
			if err != nil {
				return err
			}
			opts.At = &at
		}

		ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
		defer stop()

		return api.Watch(ctx, opts, func(m client.Message) error {
			if asJSON {
				fmt.Println(string(m.Data))
				return nil
			}
			return printMessage(m)
		})
	},
}

// printMessage renders one stream message as a single line.
func printMessage(m client.Message) error {
	switch m.Type {
	case "frame":
		var f domain.Frame
		if err := json.Unmarshal(m.Data, &f); err != nil {
			return fmt.Errorf("decode frame: %w", err)
		}
		local := 0
		for _, p := range f.Pings {
			if p.Local {
				local++
			}
		}
		fmt.Printf("\r%s  presences=%-4d pings=%-4d local=%-3d", f.Time.Format("15:04:05.000"), len(f.Presences), len(f.Pings), local)
	case "cue":
		var c struct {
			domain.PhaseTransition
			Local bool `json:"local"`
		}
		if err := json.Unmarshal(m.Data, &c); err != nil {
			return fmt.Errorf("decode cue: %w", err)
		}
		mark := " "
		if c.Local {
			mark = "*"
		}
		fmt.Printf("\n%s cue %s %s -> %s\n", mark, c.PingID, c.From, c.To)
	case "path":
		var pp domain.PingPath
		if err := json.Unmarshal(m.Data, &pp); err != nil {
			return fmt.Errorf("decode path: %w", err)
		}
		fmt.Printf("\n  path %s %d points %.0f km\n", pp.PingID, len(pp.Path.Points), pp.Path.DistanceKm)
	case "evicted":
		var ev domain.Eviction
		if err := json.Unmarshal(m.Data, &ev); err != nil {
			return fmt.Errorf("decode eviction: %w", err)
		}
		fmt.Printf("\n  evicted %s %s\n", ev.Kind, ev.ID)
	}
	return nil
}

func init() {
	watchCmd.Flags().BoolVar(&watchCues, "cues", false, "also print phase transitions")
	watchCmd.Flags().StringVar(&watchAt, "at", "", "your own coordinate as lat,lon")
}
