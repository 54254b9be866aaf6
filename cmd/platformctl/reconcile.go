package main

import (
	"fmt"

	"github.com/spf13/cobra"
)

var reconcileCmd = &cobra.Command{
	Use:   "reconcile <user-id>...",
	Short: "Rewrite role claims from the stored role",
	Args:  cobra.MinimumNArgs(1),
	RunE:  runReconcile,
}

func runReconcile(cmd *cobra.Command, args []string) error {
	a, err := openApp(cmd.Context())
	if err != nil {
		return err
	}
	defer func() { _ = a.Close() }()

	failed := 0
	for _, id := range args {
		role, changed, err := a.Authority.ReconcileClaim(cmd.Context(), id)
		switch {
		case err != nil:
			failed++
			fmt.Printf("%s: error: %v\n", id, err)
		case changed:
			fmt.Printf("%s: claim set to %s\n", id, role)
		default:
			fmt.Printf("%s: already %s\n", id, role)
		}
	}
	if failed > 0 {
		return fmt.Errorf("%d of %d users not reconciled", failed, len(args))
	}
	return nil
}
