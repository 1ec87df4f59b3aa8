package main

import (
	"encoding/json"
	"fmt"
	"net/http"
	"os"
	"text/tabwriter"
	"time"

	"github.com/spf13/cobra"
)

type statusResponse struct {
	LastKillTime         *time.Time `json:"last_kill_time,omitempty"`
	TotalKills           uint64     `json:"total_kills"`
	TotalMemoryReclaimed uint64     `json:"total_memory_reclaimed_bytes"`
	RunningSince         time.Time  `json:"running_since"`
	Pressure             *struct {
		TotalBytes           uint64  `json:"total_bytes"`
		AvailableBytes       uint64  `json:"available_bytes"`
		PressureDurationSecs float64 `json:"pressure_duration_secs"`
	} `json:"pressure,omitempty"`
}

func main() {
	var addr string

	root := &cobra.Command{
		Use:   "oomkillctl",
		Short: "Query a running oomkilld daemon",
	}
	root.PersistentFlags().StringVar(&addr, "addr", "127.0.0.1:9110", "oomkilld status server address")

	root.AddCommand(statusCmd(&addr))

	if err := root.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func statusCmd(addr *string) *cobra.Command {
	return &cobra.Command{
		Use:   "status",
		Short: "Print the daemon's current status",
		RunE: func(cmd *cobra.Command, args []string) error {
			return printStatus(*addr)
		},
	}
}

func printStatus(addr string) error {
	client := &http.Client{Timeout: 3 * time.Second}
	resp, err := client.Get(fmt.Sprintf("http://%s/status", addr))
	if err != nil {
		return fmt.Errorf("request status: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("status server returned %s", resp.Status)
	}

	var status statusResponse
	if err := json.NewDecoder(resp.Body).Decode(&status); err != nil {
		return fmt.Errorf("decode status: %w", err)
	}

	tw := tabwriter.NewWriter(os.Stdout, 0, 0, 2, ' ', 0)
	fmt.Fprintf(tw, "RUNNING SINCE\t%s\n", status.RunningSince.Format(time.RFC3339))
	fmt.Fprintf(tw, "TOTAL KILLS\t%d\n", status.TotalKills)
	fmt.Fprintf(tw, "MEMORY RECLAIMED\t%s\n", formatBytes(status.TotalMemoryReclaimed))
	if status.LastKillTime != nil {
		fmt.Fprintf(tw, "LAST KILL\t%s\n", status.LastKillTime.Format(time.RFC3339))
	} else {
		fmt.Fprintf(tw, "LAST KILL\t(none yet)\n")
	}
	if status.Pressure != nil {
		fmt.Fprintf(tw, "MEMORY TOTAL\t%s\n", formatBytes(status.Pressure.TotalBytes))
		fmt.Fprintf(tw, "MEMORY AVAILABLE\t%s\n", formatBytes(status.Pressure.AvailableBytes))
		fmt.Fprintf(tw, "PRESSURE DURATION\t%.1fs\n", status.Pressure.PressureDurationSecs)
	}
	return tw.Flush()
}

func formatBytes(b uint64) string {
	const unit = 1024
	if b < unit {
		return fmt.Sprintf("%d B", b)
	}
	div, exp := uint64(unit), 0
	for n := b / unit; n >= unit; n /= unit {
		div *= unit
		exp++
	}
	return fmt.Sprintf("%.1f %cB", float64(b)/float64(div), "KMGTPE"[exp])
}
