package cli

import (
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/example/safebridge/internal/wire"
)

var handoffCmd = &cobra.Command{
	Use:   "handoff",
	Short: "Inspect case handoffs to the session layer",
	Long:  "List and show the local handoff journal: one entry per approved case, synced or still local.",
}

var handoffListCmd = &cobra.Command{
	Use:   "list",
	Short: "List handoffs",
	RunE: func(cmd *cobra.Command, args []string) error {
		unsynced, _ := cmd.Flags().GetBool("unsynced")
		limit, _ := cmd.Flags().GetInt("limit")
		return wire.HandoffAdapter().List(NewContext(), unsynced, limit)
	},
}

var handoffShowCmd = &cobra.Command{
	Use:   "show [case-id]",
	Short: "Show a handoff",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		return wire.HandoffAdapter().Show(NewContext(), args[0])
	},
}

var reconcileCmd = &cobra.Command{
	Use:   "reconcile",
	Short: "Sync local-only handoffs with the store",
	Long: `Retry every handoff that fell back to a local session.

With --watch, keep reconciling every dispatch.reconcile_interval until interrupted.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		watch, _ := cmd.Flags().GetBool("watch")
		if !watch {
			return wire.HandoffAdapter().Reconcile(NewContext())
		}

		ctx, stop := signal.NotifyContext(NewContext(), os.Interrupt, syscall.SIGTERM)
		defer stop()
		serveMetrics(ctx)

		fmt.Printf("Reconciling every %s (Ctrl-C to stop)\n", wire.Config().Dispatch.ReconcileInterval)
		return wire.ReconcileService().Run(ctx)
	},
}

// HandoffCmd returns the handoff command
func HandoffCmd() *cobra.Command {
	handoffListCmd.Flags().Bool("unsynced", false, "Only handoffs still waiting for the store")
	handoffListCmd.Flags().IntP("limit", "n", 50, "Maximum entries to show")

	handoffCmd.AddCommand(handoffListCmd)
	handoffCmd.AddCommand(handoffShowCmd)
	return handoffCmd
}

// ReconcileCmd returns the reconcile command
func ReconcileCmd() *cobra.Command {
	reconcileCmd.Flags().BoolP("watch", "w", false, "Keep reconciling periodically")
	return reconcileCmd
}
