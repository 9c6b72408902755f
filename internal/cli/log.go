package cli

import (
	"github.com/spf13/cobra"

	"github.com/example/safebridge/internal/ports/primary"
	"github.com/example/safebridge/internal/wire"
)

var logCmd = &cobra.Command{
	Use:   "log",
	Short: "View the decision log",
	Long:  "View and prune the append-only log of applied hospital decisions (audit trail)",
}

var logListCmd = &cobra.Command{
	Use:   "list",
	Short: "List decisions",
	RunE: func(cmd *cobra.Command, args []string) error {
		caseID, _ := cmd.Flags().GetString("case")
		hospitalID, _ := cmd.Flags().GetString("hospital")
		decision, _ := cmd.Flags().GetString("decision")
		limit, _ := cmd.Flags().GetInt("limit")

		if limit <= 0 {
			limit = 50
		}

		return wire.LogAdapter().List(NewContext(), primary.DecisionFilters{
			CaseID:     caseID,
			HospitalID: hospitalID,
			Decision:   decision,
			Limit:      limit,
		})
	},
}

var logShowCmd = &cobra.Command{
	Use:   "show [decision-id]",
	Short: "Show a decision",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		return wire.LogAdapter().Show(NewContext(), args[0])
	},
}

var logPruneCmd = &cobra.Command{
	Use:   "prune",
	Short: "Delete old decisions",
	RunE: func(cmd *cobra.Command, args []string) error {
		days, _ := cmd.Flags().GetInt("days")
		return wire.LogAdapter().Prune(NewContext(), days)
	},
}

// LogCmd returns the log command
func LogCmd() *cobra.Command {
	logListCmd.Flags().String("case", "", "Filter by case ID")
	logListCmd.Flags().String("hospital", "", "Filter by hospital ID (hpid)")
	logListCmd.Flags().String("decision", "", "Filter by decision (approved, rejected)")
	logListCmd.Flags().IntP("limit", "n", 50, "Maximum entries to show")

	logPruneCmd.Flags().Int("days", 30, "Delete entries older than N days")

	logCmd.AddCommand(logListCmd)
	logCmd.AddCommand(logShowCmd)
	logCmd.AddCommand(logPruneCmd)
	return logCmd
}
