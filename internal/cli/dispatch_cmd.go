package cli

import (
	gocontext "context"
	"fmt"
	"os"
	"os/signal"
	"regexp"
	"strings"
	"syscall"

	"github.com/google/uuid"
	"github.com/spf13/cobra"

	"github.com/example/safebridge/internal/core/dispatch"
	"github.com/example/safebridge/internal/ctxutil"
	"github.com/example/safebridge/internal/wire"
)

var dispatchCmd = &cobra.Command{
	Use:   "dispatch",
	Short: "Dispatch a case to hospitals from the operator console",
	Long: `Search hospitals for a case and call them one by one until one accepts.

The console accepts approve/reject overrides, research, status and cancel.
Without a backend (or with backend.mock_ars) calls go to an in-process ARS
answered with press <hpid> 1|2.

Examples:
  safebridge dispatch --age 67 --sex male --symptom 흉통 --ktas 2 --lat 37.57 --lon 126.98
  safebridge dispatch --candidates drill.yaml --summary "60대 남성 흉통"`,
	RunE: func(cmd *cobra.Command, args []string) error {
		c, err := caseFromFlags(cmd)
		if err != nil {
			return err
		}
		if candidates, _ := cmd.Flags().GetString("candidates"); candidates != "" {
			wire.Config().Backend.Fixture = candidates
		}
		if noAuto, _ := cmd.Flags().GetBool("no-auto-dial"); noAuto {
			wire.Config().Dispatch.AutoDial = false
		}

		ctx, stop := signal.NotifyContext(ctxutil.WithCaseID(NewContext(), c.CaseID), os.Interrupt, syscall.SIGTERM)
		defer stop()
		ctx, cancel := gocontext.WithCancel(ctx)
		defer cancel()

		serveMetrics(ctx)

		controller := wire.NewDispatchController(c)
		runDone := make(chan error, 1)
		go func() { runDone <- controller.Run(ctx) }()

		adapter := wire.DispatchAdapter(controller)
		go adapter.Watch(ctx)

		fmt.Printf("Dispatching case %s (operator %s)\n", c.CaseID, GetActorID())
		if err := adapter.Research(ctx, c); err != nil {
			fmt.Printf("Initial search failed: %v\nType research to retry.\n", err)
		}

		var sim hospitalSimulator
		if ars := wire.MockARS(); ars != nil {
			sim = ars
			fmt.Println("Mock ARS: answer calls with press <hpid> 1|2")
		}

		console := NewConsole(adapter, sim, c, os.Stdout)
		if err := console.Run(ctx, os.Stdin); err != nil {
			return fmt.Errorf("console: %w", err)
		}

		cancel()
		return <-runDone
	},
}

// caseIDPattern keeps case IDs usable as URL query values and push subjects.
var caseIDPattern = regexp.MustCompile(`^[A-Za-z0-9_-]{1,64}$`)

func validateCaseID(id string) error {
	if !caseIDPattern.MatchString(id) {
		return fmt.Errorf("--case %q: use 1-64 letters, digits, '-' or '_'", id)
	}
	return nil
}

func caseFromFlags(cmd *cobra.Command) (dispatch.CaseInfo, error) {
	f := cmd.Flags()
	caseID, _ := f.GetString("case")
	team, _ := f.GetString("team")
	age, _ := f.GetInt("age")
	ageBand, _ := f.GetString("age-band")
	sex, _ := f.GetString("sex")
	symptom, _ := f.GetString("symptom")
	ktas, _ := f.GetInt("ktas")
	summary, _ := f.GetString("summary")
	transcript, _ := f.GetString("transcript")
	lat, _ := f.GetFloat64("lat")
	lon, _ := f.GetFloat64("lon")

	if caseID == "" {
		caseID = "CASE-" + strings.ToUpper(uuid.NewString()[:8])
	}
	if err := validateCaseID(caseID); err != nil {
		return dispatch.CaseInfo{}, err
	}
	if ageBand == "" && age > 0 {
		ageBand = dispatch.AgeBand(age)
	}
	switch sex {
	case "", "male", "female":
	default:
		return dispatch.CaseInfo{}, fmt.Errorf("--sex must be male or female")
	}
	if ktas < 0 || ktas > 5 {
		return dispatch.CaseInfo{}, fmt.Errorf("--ktas must be between 1 and 5")
	}

	return dispatch.CaseInfo{
		CaseID:     caseID,
		TeamID:     team,
		AgeBand:    ageBand,
		Age:        age,
		Sex:        sex,
		Symptom:    symptom,
		PreKTAS:    ktas,
		Summary:    summary,
		Transcript: transcript,
		Lat:        lat,
		Lon:        lon,
	}, nil
}

// DispatchCmd returns the dispatch command
func DispatchCmd() *cobra.Command {
	f := dispatchCmd.Flags()
	f.String("case", "", "Case ID (default: generated)")
	f.String("team", "", "Ambulance team ID")
	f.Int("age", 0, "Patient age")
	f.String("age-band", "", "Patient age band, e.g. 60대 (default: derived from --age)")
	f.String("sex", "", "Patient sex: male or female")
	f.String("symptom", "", "Chief symptom")
	f.Int("ktas", 0, "Pre-KTAS level (1-5)")
	f.String("summary", "", "SBAR summary read when structured fields are missing")
	f.String("transcript", "", "Raw field transcript")
	f.Float64("lat", 0, "Current latitude")
	f.Float64("lon", 0, "Current longitude")
	f.String("candidates", "", "YAML candidate file used instead of the search backend")
	f.Bool("no-auto-dial", false, "Wait for operator approve/reject instead of calling")
	return dispatchCmd
}
