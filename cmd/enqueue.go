package cmd

import (
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/spf13/cobra"

	"github.com/Pranav1703/queuectl/internal/model"
)

// rawSpec mirrors model.Spec; max_retries and priority are pointers so an
// omitted value in the incoming JSON is distinguishable from an explicit
// zero.
type rawSpec struct {
	ID          string     `json:"id"`
	Command     string     `json:"command"`
	MaxRetries  *int       `json:"max_retries"`
	Priority    *int       `json:"priority"`
	TimeoutSecs int        `json:"timeout_secs"`
	RunAt       *time.Time `json:"run_at"`
}

func enqueueCmd(app *App) *cobra.Command {
	var generateID bool

	c := &cobra.Command{
		Use:   "enqueue <job(json)>",
		Short: "Add a job to the queue",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			var raw rawSpec
			if err := json.Unmarshal([]byte(args[0]), &raw); err != nil {
				return model.NewInvalidInput(fmt.Sprintf("invalid job JSON: %v", err))
			}
			if raw.ID == "" && generateID {
				raw.ID = uuid.NewString()
			}

			job, err := app.Store.Enqueue(model.Spec{
				ID:          raw.ID,
				Command:     raw.Command,
				MaxRetries:  raw.MaxRetries,
				Priority:    raw.Priority,
				TimeoutSecs: raw.TimeoutSecs,
				RunAt:       raw.RunAt,
			})
			if err != nil {
				return err
			}
			fmt.Printf("Job %s enqueued (state=%s, priority=%d).\n", job.ID, job.State, job.Priority)
			return nil
		},
	}
	c.Flags().BoolVar(&generateID, "generate-id", false, "mint a random id when the job JSON omits one")
	return c
}
