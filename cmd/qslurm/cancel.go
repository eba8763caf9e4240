package main

import (
	"errors"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/tuanbt/qslurm/internal/jobs"
	"github.com/tuanbt/qslurm/internal/scheduler"
)

func newCancelCmd(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "cancel [job-id]",
		Short: "Cancel a job with scancel (last recorded job by default)",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			id, _, err := a.resolveJob(args)
			if err != nil {
				return err
			}

			a.logger.Debug("running scancel", "command", a.cfg.ScancelCommand, "job_id", id)
			if err := a.client.Cancel(cmd.Context(), scheduler.JobID(id)); err != nil {
				return fmt.Errorf("failed to cancel job %s: %w", id, err)
			}

			err = a.registry.UpdateStatus(id, jobs.StatusCancelled)
			switch {
			case errors.Is(err, jobs.ErrNotFound):
				a.logger.Debug("cancelled job has no record", "job_id", id)
			case err != nil:
				return fmt.Errorf("job %s cancelled but its record was not updated: %w", id, err)
			default:
				a.logger.Debug("job record marked cancelled", "job_id", id)
			}

			fmt.Fprintf(cmd.OutOrStdout(), "Cancelled job %s\n", id)
			return nil
		},
	}
}
