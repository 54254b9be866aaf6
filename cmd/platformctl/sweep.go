package main

import (
	"fmt"
	"time"

	"github.com/spf13/cobra"
)

var sweepAt string

var sweepCmd = &cobra.Command{
	Use:   "sweep",
	Short: "Delete notifications older than the retention window",
	RunE:  runSweep,
}

func init() {
	sweepCmd.Flags().StringVar(&sweepAt, "now", "", "reference time (RFC3339), defaults to the current time")
}

func runSweep(cmd *cobra.Command, args []string) error {
	now := time.Now().UTC()
	if sweepAt != "" {
		t, err := time.Parse(time.RFC3339, sweepAt)
		if err != nil {
			return fmt.Errorf("--now: %w", err)
		}
		now = t.UTC()
	}

	a, err := openApp(cmd.Context())
	if err != nil {
		return err
	}
	defer func() { _ = a.Close() }()

	res, err := a.Sweeper.Sweep(cmd.Context(), now)
	if err != nil {
		return err
	}
	fmt.Printf("deleted %d notifications in %d batches", res.Deleted, res.Batches)
	if res.Truncated {
		fmt.Print(" (stopped at batch limit, run again)")
	}
	fmt.Println()
	return nil
}
