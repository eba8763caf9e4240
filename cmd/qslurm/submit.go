package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/tuanbt/qslurm/internal/jobs"
)

func newSubmitCmd(a *app) *cobra.Command {
	var (
		showStatus bool
		noUI       bool
		detach     bool
	)

	cmd := &cobra.Command{
		Use:   "submit <script>",
		Short: "Submit a batch script with sbatch and follow it",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			script := args[0]
			if _, err := os.Stat(script); err != nil {
				return fmt.Errorf("script not found: %w", err)
			}
			if err := a.requireScheduler(); err != nil {
				return err
			}

			// sbatch will not create the log directory for -o/-e.
			if err := os.MkdirAll(a.cfg.LogDirectory, 0755); err != nil {
				return fmt.Errorf("failed to create log directory: %w", err)
			}

			a.logger.Debug("running sbatch", "command", a.cfg.SbatchCommand, "script", script)
			id, err := a.client.Submit(cmd.Context(), script)
			if err != nil {
				return fmt.Errorf("failed to submit %s: %w", script, err)
			}

			job := jobs.NewJob(string(id), script, a.cfg.JobLogPath(string(id)), a.cfg.JobErrPath(string(id)))
			if err := a.registry.Add(job); err != nil {
				return fmt.Errorf("failed to record job %s: %w", id, err)
			}
			a.logger.Debug("job recorded", "job_id", job.ID, "log_path", job.LogPath, "state_file", a.registry.Path())
			fmt.Fprintf(cmd.OutOrStdout(), "Submitted job %s\n", id)

			if detach {
				return nil
			}

			_, err = a.runSession(cmd.Context(), cmd.OutOrStdout(), sessionRequest{
				jobID:      job.ID,
				logPath:    job.LogPath,
				errPath:    job.ErrPath,
				status:     a.client,
				showStatus: showStatus || a.cfg.ShowStatus,
				noUI:       noUI,
				record:     job,
			})
			return err
		},
	}

	cmd.Flags().BoolVarP(&showStatus, "status", "s", false, "Show live squeue status")
	cmd.Flags().BoolVar(&noUI, "no-ui", false, "Print plain output instead of the interactive view")
	cmd.Flags().BoolVarP(&detach, "detach", "d", false, "Submit only, do not follow the job")
	return cmd
}
