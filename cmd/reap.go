package cmd

import (
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"github.com/Pranav1703/queuectl/internal/model"
)

// reapCmd implements the orphan-recovery Open Question from spec.md §9:
// not an automatic reaper, but an operator-invoked, config-gated sweep.
// Disabled unless the "orphan_reap_secs" config key is set to a positive
// value, so the policy is an explicit operator choice, never a silent one.
func reapCmd(app *App) *cobra.Command {
	return &cobra.Command{
		Use:   "reap",
		Short: "Record a failed attempt for orphaned 'processing' jobs, moving them to 'failed' or 'dead' (requires orphan_reap_secs config)",
		RunE: func(cmd *cobra.Command, args []string) error {
			raw, ok, err := app.Store.Config().Get("orphan_reap_secs")
			if err != nil {
				return err
			}
			secs := 0
			if ok {
				fmt.Sscanf(raw, "%d", &secs)
			}
			if secs <= 0 {
				return model.NewInvalidInput("orphan reaping is disabled; set config key orphan_reap_secs to a positive value to enable it")
			}

			threshold := time.Now().UTC().Add(-time.Duration(secs) * time.Second)
			jobs, err := app.Store.List(model.StateProcessing, 0)
			if err != nil {
				return err
			}
			reaped := 0
			for _, j := range jobs {
				if j.UpdatedAt.Before(threshold) {
					if err := app.Store.RescheduleOrDead(j.ID, model.JobRun{
						JobID:      j.ID,
						Attempt:    j.Attempts + 1,
						StartedAt:  j.UpdatedAt,
						FinishedAt: time.Now().UTC(),
						Outcome:    model.OutcomeFailure,
						WorkerName: j.WorkerName,
					}, app.Store.Config()); err != nil {
						return err
					}
					reaped++
				}
			}
			fmt.Printf("Reaped %d orphaned job(s).\n", reaped)
			return nil
		},
	}
}
